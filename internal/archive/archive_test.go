package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/commander-vault/internal/deck"
	"github.com/ramonehamilton/commander-vault/internal/manifest"
	"github.com/ramonehamilton/commander-vault/internal/versioning"
)

var errNotFound = errors.New("not found")

// fakeLookup resolves a fixed set of cards and counts calls.
type fakeLookup struct {
	cards map[string]*deck.Card
	calls int
}

func (f *fakeLookup) GetCardByName(_ context.Context, name string) (*deck.Card, error) {
	f.calls++
	if c, ok := f.cards[name]; ok {
		clone := c.Clone()
		return &clone, nil
	}
	return nil, errNotFound
}

func newLookup() *fakeLookup {
	return &fakeLookup{cards: map[string]*deck.Card{
		"Sol Ring": {Name: "Sol Ring", Metadata: &deck.Metadata{
			ScryfallID: "sr-1", OracleID: "sr-o", TypeLine: "Artifact", Types: []string{"Artifact"},
		}},
		"Forest": {Name: "Forest", Metadata: &deck.Metadata{
			ScryfallID: "f-1", OracleID: "f-o", TypeLine: "Basic Land — Forest", Types: []string{"Land"},
		}},
	}}
}

func testClock() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }

func sampleDeck() *deck.Deck {
	d := deck.FromCards("Omnath Lands", deck.FormatCommander, deck.Cards{
		deck.CategoryCommander: {{Name: "Omnath, Locus of Creation", Quantity: 1, SetCode: "ZNR", CollectorNumber: "232",
			Metadata: &deck.Metadata{ScryfallID: "om-1", OracleID: "om-o", TypeLine: "Legendary Creature — Elemental",
				Types: []string{"Creature"}, ColorIdentity: []string{"R", "G", "W", "U"}}}},
		deck.CategoryArtifact: {{Name: "Sol Ring", Quantity: 1}},
		deck.CategoryLand:     {{Name: "Forest", Quantity: 12}},
	})
	d.UpdatedAt = testClock()
	return d
}

// committedArchive builds an archive holding one commit on main.
func committedArchive(t *testing.T) (*Archive, *manifest.Manager) {
	t.Helper()
	mgr := manifest.NewManager(nil, testClock)
	d := sampleDeck()
	m, _, err := mgr.CreateVersion(mgr.New(d.Name, d.Format, versioning.SchemeSemantic), d, manifest.CommitOptions{Message: "initial build"})
	require.NoError(t, err)

	content, err := SerializeSnapshot(d)
	require.NoError(t, err)

	mb := deck.NewMaybeboard()
	mb.Add("Ramp", deck.Card{Name: "Cultivate", Quantity: 1})
	return BuildArchive(d, m, mb, content), mgr
}

func TestSnapshotRoundTrip(t *testing.T) {
	d := sampleDeck()
	content, err := SerializeSnapshot(d)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(content, "{"))
	assert.Contains(t, content, `"schemaVersion": 1`)

	snap, err := DeserializeSnapshot(context.Background(), content, nil)
	require.NoError(t, err)
	assert.Equal(t, d.Cards, snap.Cards)
	assert.True(t, snap.LastModified.Equal(testClock()))
}

func TestDeserializeRejectsFutureSchema(t *testing.T) {
	_, err := DeserializeSnapshot(context.Background(), `{"schemaVersion": 99, "cards": {}}`, nil)
	assert.ErrorIs(t, err, ErrUnsupportedSchema)
}

func TestDeserializeLegacy(t *testing.T) {
	lookup := newLookup()
	content := "1 Sol Ring (C21) 263\n12 Forest\n1 Mystery Card\n"

	snap, err := DeserializeSnapshot(context.Background(), content, lookup)
	require.NoError(t, err)

	require.Len(t, snap.Cards[deck.CategoryArtifact], 1)
	sol := snap.Cards[deck.CategoryArtifact][0]
	assert.Equal(t, "C21", sol.SetCode)
	assert.Equal(t, "263", sol.CollectorNumber)
	assert.True(t, sol.HasCompleteMetadata())

	require.Len(t, snap.Cards[deck.CategoryLand], 1)
	assert.Equal(t, 12, snap.Cards[deck.CategoryLand][0].Quantity)

	// Unresolvable cards degrade to stubs.
	require.Len(t, snap.Cards[deck.CategoryOther], 1)
	stub := snap.Cards[deck.CategoryOther][0]
	assert.Equal(t, "Mystery Card", stub.Name)
	assert.Equal(t, 1, stub.Quantity)
	assert.Nil(t, stub.Metadata)
	assert.Equal(t, 3, lookup.calls)
}

func TestDeserializeLegacyWithoutLookup(t *testing.T) {
	snap, err := DeserializeSnapshot(context.Background(), "// Commander\n1 Omnath, Locus of Creation\n4 Forest", nil)
	require.NoError(t, err)
	assert.Len(t, snap.Cards[deck.CategoryCommander], 1)
	assert.Equal(t, 4, snap.Cards[deck.CategoryOther][0].Quantity)
}

func TestDeserializeJSONIsLocal(t *testing.T) {
	lookup := newLookup()
	content := `{"schemaVersion":1,"cards":{"artifact":[{"name":"Sol Ring","quantity":1}],"other":[{"name":"Homebrew Card","quantity":2}]}}`

	snap, err := DeserializeSnapshot(context.Background(), content, lookup)
	require.NoError(t, err)
	assert.Zero(t, lookup.calls)
	assert.False(t, snap.Cards[deck.CategoryArtifact][0].HasCompleteMetadata())
	assert.Equal(t, 2, snap.Cards[deck.CategoryOther][0].Quantity)
}

func TestArchiveRoundTrip(t *testing.T) {
	a, _ := committedArchive(t)
	require.NoError(t, a.Validate())

	data, err := Pack(a)
	require.NoError(t, err)

	again, err := Pack(a)
	require.NoError(t, err)
	assert.Equal(t, data, again, "packing is deterministic")

	back, err := Unpack(data)
	require.NoError(t, err)
	require.NoError(t, back.Validate())
	assert.Equal(t, a.Versions, back.Versions)
	assert.Equal(t, a.Manifest.CurrentVersion, back.Manifest.CurrentVersion)
	assert.Equal(t, a.Manifest.ID, back.Manifest.ID)
	assert.Equal(t, 1, back.Maybeboard.Count())

	ex, err := back.Extract(context.Background(), nil)
	require.NoError(t, err)
	orig := sampleDeck()
	assert.Equal(t, orig.Cards, ex.Deck.Cards)
	assert.Equal(t, 14, ex.Deck.Count)
	assert.Equal(t, []string{"W", "U", "R", "G"}, ex.Deck.ColorIdentity)
	assert.Equal(t, "0.0.1", ex.Deck.Version)
	assert.Equal(t, deck.MainBranch, ex.Deck.Branch)
	assert.Equal(t, "Omnath Lands", ex.Deck.Name)
}

func TestBuildArchiveUsesManifestVersion(t *testing.T) {
	a, _ := committedArchive(t)
	_, ok := a.Versions[deck.MainBranch]["v0.0.1.json"]
	assert.True(t, ok, "files: %v", a.Files())
}

func TestArchiveStashRoundTrip(t *testing.T) {
	a, mgr := committedArchive(t)
	m, err := mgr.SaveStash(a.Manifest, deck.MainBranch, "", "2 Forest")
	require.NoError(t, err)
	a.SetManifest(m)

	data, err := Pack(a)
	require.NoError(t, err)
	back, err := Unpack(data)
	require.NoError(t, err)

	assert.Equal(t, "2 Forest", back.Stashes[deck.MainBranch])
	assert.Equal(t, "2 Forest", back.Manifest.Stashes[deck.MainBranch].Content)
	assert.Contains(t, back.Files(), "main/stash.txt")

	stashed, ok, err := back.StashDeck(context.Background(), deck.MainBranch, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, stashed.Count)

	// Committing drops the stash file.
	m, _, err = mgr.CreateVersion(back.Manifest, stashed, manifest.CommitOptions{ChangeCount: 12})
	require.NoError(t, err)
	back.SetManifest(m)
	assert.Empty(t, back.Stashes)
}

func TestExtractLegacyTextFallback(t *testing.T) {
	a, _ := committedArchive(t)
	a.Versions[deck.MainBranch] = map[string]string{"v0.0.1.txt": "1 Sol Ring\n12 Forest"}

	ex, err := a.Extract(context.Background(), newLookup())
	require.NoError(t, err)
	assert.Equal(t, 13, ex.Deck.Count)
	assert.Len(t, ex.Deck.Cards[deck.CategoryLand], 1)
}

func TestExtractErrors(t *testing.T) {
	a, _ := committedArchive(t)
	a.Versions = map[string]map[string]string{}

	_, err := a.Extract(context.Background(), nil)
	assert.ErrorIs(t, err, ErrVersionContentMissing)
	assert.ErrorIs(t, a.Validate(), ErrVersionContentMissing)

	a.Manifest.CurrentBranch = "ghost"
	_, err = a.Extract(context.Background(), nil)
	assert.ErrorIs(t, err, ErrCorruptArchive)
}

func TestBranchFileMaintenance(t *testing.T) {
	a, _ := committedArchive(t)

	require.NoError(t, a.CopyBranch(deck.MainBranch, "budget", []string{"0.0.1"}))
	assert.True(t, a.HasVersion("budget", "0.0.1"))

	a.RenameBranch("budget", "cheap")
	assert.False(t, a.HasVersion("budget", "0.0.1"))
	assert.True(t, a.HasVersion("cheap", "0.0.1"))

	a.RemoveBranch("cheap")
	assert.NotContains(t, a.Versions, "cheap")

	assert.ErrorIs(t, a.CopyBranch(deck.MainBranch, "x", []string{"9.9.9"}), ErrVersionContentMissing)
}

func writeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestUnpackLegacyManifestDefaultsScheme(t *testing.T) {
	data := writeZip(t, map[string]string{
		"manifest.json": `{"deckName":"Old","format":"commander","currentBranch":"main","currentVersion":"1.0.0",
			"branches":[{"name":"main","currentVersion":"1.0.0","versions":[{"version":"1.0.0","branch":"main"}]}]}`,
		"maybeboard.json": `{"categories":{}}`,
		"main/v1.0.0.txt": "1 Sol Ring",
	})

	a, err := Unpack(data)
	require.NoError(t, err)
	assert.Equal(t, versioning.SchemeSemantic, a.Manifest.VersioningScheme)
	require.NoError(t, a.Validate())

	ex, err := a.Extract(context.Background(), newLookup())
	require.NoError(t, err)
	assert.Equal(t, 1, ex.Deck.Count)
}

func TestUnpackErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not a zip", []byte("definitely not a zip")},
		{"missing manifest", writeZip(t, map[string]string{"maybeboard.json": `{}`})},
		{"missing maybeboard", writeZip(t, map[string]string{
			"manifest.json": `{"deckName":"x","currentBranch":"main","branches":[{"name":"main"}]}`,
		})},
		{"corrupt manifest", writeZip(t, map[string]string{
			"manifest.json":   `{"deckName":"x","currentBranch":"dev","branches":[{"name":"main"}]}`,
			"maybeboard.json": `{}`,
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unpack(tt.data)
			assert.ErrorIs(t, err, ErrCorruptArchive)
		})
	}
}
