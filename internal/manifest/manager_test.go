package manifest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/commander-vault/internal/deck"
	"github.com/ramonehamilton/commander-vault/internal/versioning"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestManager() (*Manager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
	return NewManager(nil, clock.Now), clock
}

// committed returns a manifest with main at 0.0.1, 0.0.2 and 0.1.0.
func committed(t *testing.T, mgr *Manager) *DeckManifest {
	t.Helper()
	m := mgr.New("Test", "", versioning.SchemeSemantic)
	d := deck.New("Test", "")
	var err error
	for _, changes := range []int{0, 1, 5} {
		m, _, err = mgr.CreateVersion(m, d, CommitOptions{Message: "commit", ChangeCount: changes})
		require.NoError(t, err)
	}
	require.Equal(t, "0.1.0", m.CurrentVersion)
	return m
}

func TestNew(t *testing.T) {
	mgr, _ := newTestManager()
	m := mgr.New("Atraxa Superfriends", "", "")

	assert.Equal(t, "Atraxa Superfriends", m.DeckName)
	assert.Equal(t, deck.FormatCommander, m.Format)
	assert.Equal(t, deck.MainBranch, m.CurrentBranch)
	assert.Equal(t, versioning.Unsaved, m.CurrentVersion)
	assert.Equal(t, versioning.SchemeSemantic, m.VersioningScheme)
	assert.NotEmpty(t, m.ID)
	require.Len(t, m.Branches, 1)
	assert.Empty(t, m.Branches[0].Versions)
	assert.NoError(t, m.Validate())
}

func TestCreateVersionFirstCommit(t *testing.T) {
	mgr, _ := newTestManager()
	m := mgr.New("Test", "", versioning.SchemeSemantic)

	out, v, err := mgr.CreateVersion(m, deck.New("Test", ""), CommitOptions{Message: "initial build", ChangeCount: 40})
	require.NoError(t, err)

	assert.Equal(t, "0.0.1", v)
	assert.Equal(t, "0.0.1", out.CurrentVersion)
	main := out.Branch(deck.MainBranch)
	require.Len(t, main.Versions, 1)
	assert.Equal(t, "initial build", main.Versions[0].Message)
	assert.Equal(t, deck.MainBranch, main.Versions[0].Branch)

	// Input untouched.
	assert.Equal(t, versioning.Unsaved, m.CurrentVersion)
	assert.Empty(t, m.Branches[0].Versions)
}

func TestCreateVersionBumps(t *testing.T) {
	mgr, _ := newTestManager()
	m := committed(t, mgr)

	tests := []struct {
		changes int
		want    string
	}{
		{1, "0.1.1"},
		{10, "0.2.0"},
		{11, "1.0.0"},
	}
	for _, tt := range tests {
		out, v, err := mgr.CreateVersion(m, nil, CommitOptions{ChangeCount: tt.changes})
		require.NoError(t, err)
		assert.Equal(t, tt.want, v, "changes=%d", tt.changes)
		assert.Equal(t, tt.want, out.Branch(deck.MainBranch).CurrentVersion)
	}

	_, _, err := mgr.CreateVersion(m, nil, CommitOptions{ChangeCount: versioning.NoChangeCount})
	assert.ErrorIs(t, err, versioning.ErrChangeCountRequired)
}

func TestCreateVersionDateScheme(t *testing.T) {
	mgr, clock := newTestManager()
	m := mgr.New("Test", "", versioning.SchemeDate)

	m, v, err := mgr.CreateVersion(m, nil, CommitOptions{ChangeCount: versioning.NoChangeCount})
	require.NoError(t, err)
	assert.Equal(t, "25.03.14-rev.1", v)

	m, v, err = mgr.CreateVersion(m, nil, CommitOptions{})
	require.NoError(t, err)
	assert.Equal(t, "25.03.14-rev.2", v)

	clock.t = clock.t.Add(24 * time.Hour)
	_, v, err = mgr.CreateVersion(m, nil, CommitOptions{})
	require.NoError(t, err)
	assert.Equal(t, "25.03.15-rev.1", v)
}

func TestCreateVersionOverride(t *testing.T) {
	mgr, _ := newTestManager()
	m := committed(t, mgr)

	out, v, err := mgr.CreateVersion(m, nil, CommitOptions{VersionOverride: "2.0.0"})
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", v)
	assert.Equal(t, "2.0.0", out.CurrentVersion)

	_, _, err = mgr.CreateVersion(m, nil, CommitOptions{VersionOverride: "0.0.2"})
	assert.ErrorIs(t, err, ErrVersionExists)

	_, _, err = mgr.CreateVersion(m, nil, CommitOptions{VersionOverride: "banana"})
	assert.ErrorIs(t, err, versioning.ErrInvalidVersion)
}

func TestCreateVersionDropsStashAndSyncsName(t *testing.T) {
	mgr, _ := newTestManager()
	m := committed(t, mgr)
	m, err := mgr.SaveStash(m, deck.MainBranch, "", "1 Sol Ring")
	require.NoError(t, err)
	require.Contains(t, m.Stashes, deck.MainBranch)
	assert.Equal(t, "0.1.0", m.Stashes[deck.MainBranch].BaseVersion)

	out, _, err := mgr.CreateVersion(m, deck.New("Renamed", ""), CommitOptions{ChangeCount: 1})
	require.NoError(t, err)
	assert.NotContains(t, out.Stashes, deck.MainBranch)
	assert.Equal(t, "Renamed", out.DeckName)
}

func TestCreateVersionCorruptManifest(t *testing.T) {
	mgr, _ := newTestManager()
	m := committed(t, mgr)
	m.CurrentBranch = "ghost"

	_, _, err := mgr.CreateVersion(m, nil, CommitOptions{ChangeCount: 1})
	assert.ErrorIs(t, err, ErrCorruptManifest)
}

func TestCreateBranchFork(t *testing.T) {
	mgr, _ := newTestManager()
	m := committed(t, mgr)

	out, err := mgr.CreateBranch(m, BranchOptions{Name: "budget", SourceVersion: "0.0.2"})
	require.NoError(t, err)

	b := out.Branch("budget")
	require.NotNil(t, b)
	require.Len(t, b.Versions, 2)
	for i, want := range []string{"0.0.1", "0.0.2"} {
		assert.Equal(t, want, b.Versions[i].Version)
		assert.Equal(t, "budget", b.Versions[i].Branch)
	}
	assert.Equal(t, "0.0.2", b.CurrentVersion)
	assert.Equal(t, deck.MainBranch, b.ParentBranch)
	assert.Equal(t, "0.0.2", b.ForkedFromVersion)

	// Creating does not switch, and the source log is unchanged.
	assert.Equal(t, deck.MainBranch, out.CurrentBranch)
	assert.Len(t, out.Branch(deck.MainBranch).Versions, 3)
	for _, v := range out.Branch(deck.MainBranch).Versions {
		assert.Equal(t, deck.MainBranch, v.Branch)
	}

	// Defaults to the current branch's current version.
	out, err = mgr.CreateBranch(m, BranchOptions{Name: "latest"})
	require.NoError(t, err)
	assert.Len(t, out.Branch("latest").Versions, 3)
	assert.Equal(t, "0.1.0", out.Branch("latest").ForkedFromVersion)
}

func TestCreateBranchFromScratch(t *testing.T) {
	mgr, _ := newTestManager()
	m := committed(t, mgr)

	out, err := mgr.CreateBranch(m, BranchOptions{Name: "rebuild", FromScratch: true})
	require.NoError(t, err)
	b := out.Branch("rebuild")
	assert.Empty(t, b.Versions)
	assert.Equal(t, "0.0.1", b.CurrentVersion)
	assert.Empty(t, b.ParentBranch)

	// First commit on the new branch records the pending initial version.
	out, err = mgr.SwitchBranch(out, "rebuild")
	require.NoError(t, err)
	out, v, err := mgr.CreateVersion(out, nil, CommitOptions{ChangeCount: 30})
	require.NoError(t, err)
	assert.Equal(t, "0.0.1", v)
	assert.Len(t, out.Branch("rebuild").Versions, 1)
}

func TestCreateBranchRejections(t *testing.T) {
	mgr, _ := newTestManager()
	m := committed(t, mgr)

	tests := []struct {
		name string
		opts BranchOptions
		want error
	}{
		{"duplicate", BranchOptions{Name: deck.MainBranch}, ErrBranchExists},
		{"reserved", BranchOptions{Name: "maybeboards"}, ErrReservedBranchName},
		{"reserved case", BranchOptions{Name: "Maybeboards"}, ErrReservedBranchName},
		{"empty", BranchOptions{Name: ""}, ErrInvalidBranchName},
		{"slash", BranchOptions{Name: "a/b"}, ErrInvalidBranchName},
		{"dots", BranchOptions{Name: ".."}, ErrInvalidBranchName},
		{"missing source", BranchOptions{Name: "x", SourceBranch: "ghost"}, ErrBranchNotFound},
		{"missing version", BranchOptions{Name: "x", SourceVersion: "9.9.9"}, ErrVersionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mgr.CreateBranch(m, tt.opts)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Len(t, m.Branches, 1)
}

func TestSwitchBranch(t *testing.T) {
	mgr, _ := newTestManager()
	m := committed(t, mgr)
	m, err := mgr.CreateBranch(m, BranchOptions{Name: "budget", SourceVersion: "0.0.1"})
	require.NoError(t, err)

	out, err := mgr.SwitchBranch(m, "budget")
	require.NoError(t, err)
	assert.Equal(t, "budget", out.CurrentBranch)
	assert.Equal(t, "0.0.1", out.CurrentVersion)

	_, err = mgr.SwitchBranch(m, "ghost")
	assert.ErrorIs(t, err, ErrBranchNotFound)
}

func TestDeleteBranch(t *testing.T) {
	mgr, _ := newTestManager()
	m := committed(t, mgr)
	m, err := mgr.CreateBranch(m, BranchOptions{Name: "budget"})
	require.NoError(t, err)
	m, err = mgr.SaveStash(m, "budget", "", "1 Sol Ring")
	require.NoError(t, err)

	_, err = mgr.DeleteBranch(m, deck.MainBranch)
	assert.ErrorIs(t, err, ErrProtectedBranch)

	switched, err := mgr.SwitchBranch(m, "budget")
	require.NoError(t, err)
	_, err = mgr.DeleteBranch(switched, "budget")
	assert.ErrorIs(t, err, ErrActiveBranch)

	_, err = mgr.DeleteBranch(m, "ghost")
	assert.ErrorIs(t, err, ErrBranchNotFound)

	out, err := mgr.DeleteBranch(m, "budget")
	require.NoError(t, err)
	assert.Nil(t, out.Branch("budget"))
	assert.NotContains(t, out.Stashes, "budget")
	assert.NotNil(t, m.Branch("budget"))
}

func TestRenameBranch(t *testing.T) {
	mgr, _ := newTestManager()
	m := committed(t, mgr)
	m, err := mgr.CreateBranch(m, BranchOptions{Name: "budget"})
	require.NoError(t, err)
	m, err = mgr.SwitchBranch(m, "budget")
	require.NoError(t, err)
	m, err = mgr.CreateBranch(m, BranchOptions{Name: "budget-lite"})
	require.NoError(t, err)
	m, err = mgr.SaveStash(m, "budget", "", "1 Sol Ring")
	require.NoError(t, err)

	out, err := mgr.RenameBranch(m, "budget", "cheap")
	require.NoError(t, err)

	assert.Nil(t, out.Branch("budget"))
	b := out.Branch("cheap")
	require.NotNil(t, b)
	for _, v := range b.Versions {
		assert.Equal(t, "cheap", v.Branch)
	}
	assert.Equal(t, "cheap", out.CurrentBranch)
	assert.Equal(t, "cheap", out.Stashes["cheap"].Branch)
	assert.NotContains(t, out.Stashes, "budget")
	assert.Equal(t, "cheap", out.Branch("budget-lite").ParentBranch)

	tests := []struct {
		name     string
		from, to string
		want     error
	}{
		{"main", deck.MainBranch, "trunk", ErrProtectedBranch},
		{"reserved", "budget", "maybeboards", ErrReservedBranchName},
		{"collision", "budget", "budget-lite", ErrBranchExists},
		{"missing", "ghost", "x", ErrBranchNotFound},
		{"invalid", "budget", "a\\b", ErrInvalidBranchName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mgr.RenameBranch(m, tt.from, tt.to)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestChangeVersioningScheme(t *testing.T) {
	mgr, _ := newTestManager()
	m := committed(t, mgr)

	same, err := mgr.ChangeVersioningScheme(m, versioning.SchemeSemantic)
	require.NoError(t, err)
	assert.Equal(t, m.CurrentVersion, same.CurrentVersion)

	out, err := mgr.ChangeVersioningScheme(m, versioning.SchemeDate)
	require.NoError(t, err)
	assert.Equal(t, versioning.SchemeDate, out.VersioningScheme)
	assert.Equal(t, "25.03.14-rev.1", out.CurrentVersion)
	assert.Equal(t, "25.03.14-rev.1", out.Branch(deck.MainBranch).CurrentVersion)
	assert.Len(t, out.Branch(deck.MainBranch).Versions, 3, "history untouched")

	// Back to semantic: 0.0.1 is taken, so numbering continues past it.
	back, err := mgr.ChangeVersioningScheme(out, versioning.SchemeSemantic)
	require.NoError(t, err)
	assert.Equal(t, "0.0.3", back.CurrentVersion)

	_, err = mgr.ChangeVersioningScheme(m, "calendar")
	assert.ErrorIs(t, err, versioning.ErrUnknownScheme)
}

func TestVersionIndex(t *testing.T) {
	mgr, _ := newTestManager()
	m := committed(t, mgr)
	main := m.Branch(deck.MainBranch)

	assert.Equal(t, 0, VersionIndex(main, "0.0.1"))
	assert.Equal(t, 2, VersionIndex(main, "0.1.0"))
	assert.Equal(t, -1, VersionIndex(main, "9.9.9"))
	assert.Equal(t, -1, VersionIndex(nil, "0.0.1"))
}

func TestDecode(t *testing.T) {
	legacy := []byte(`{
		"deckName": "Old Deck",
		"format": "commander",
		"currentBranch": "main",
		"currentVersion": "1.0.0",
		"branches": [{"name": "main", "currentVersion": "1.0.0",
			"versions": [{"version": "1.0.0", "branch": "main", "message": "imported"}]}]
	}`)
	m, err := Decode(legacy)
	require.NoError(t, err)
	assert.Equal(t, versioning.SchemeSemantic, m.VersioningScheme)
	assert.NotNil(t, m.Stashes)

	for raw, want := range map[string]versioning.Scheme{
		"Semantic": versioning.SchemeSemantic,
		" DATE ":   versioning.SchemeDate,
	} {
		data := `{"deckName":"x","currentBranch":"main","versioningScheme":"` + raw + `","branches":[{"name":"main"}]}`
		m, err := Decode([]byte(data))
		require.NoError(t, err, raw)
		assert.Equal(t, want, m.VersioningScheme, raw)
	}

	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"no name", `{"currentBranch":"main","branches":[{"name":"main"}]}`},
		{"no main", `{"deckName":"x","currentBranch":"dev","branches":[{"name":"dev"}]}`},
		{"dangling current", `{"deckName":"x","currentBranch":"dev","branches":[{"name":"main"}]}`},
		{"bad scheme", `{"deckName":"x","currentBranch":"main","versioningScheme":"calendar","branches":[{"name":"main"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.ErrorIs(t, err, ErrCorruptManifest)
		})
	}
}

func TestEncodeDecodeKeepsStashMetadataOnly(t *testing.T) {
	mgr, _ := newTestManager()
	m := committed(t, mgr)
	m, err := mgr.SaveStash(m, deck.MainBranch, "", "1 Sol Ring")
	require.NoError(t, err)

	data, err := Encode(m)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Sol Ring")

	back, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "0.1.0", back.Stashes[deck.MainBranch].BaseVersion)
	assert.Empty(t, back.Stashes[deck.MainBranch].Content)
}
