// Package manifest owns a deck's branch and version history.
//
// Every operation is a state transition: it takes a manifest and returns a
// new one, leaving the input untouched. Policy violations are reported
// before anything is modified.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ramonehamilton/commander-vault/internal/deck"
	"github.com/ramonehamilton/commander-vault/internal/versioning"
)

// ReservedBranchName collides with the archive's maybeboard storage and can
// never be used for a branch.
const ReservedBranchName = "maybeboards"

var (
	ErrBranchNotFound     = errors.New("branch not found")
	ErrBranchExists       = errors.New("branch already exists")
	ErrReservedBranchName = errors.New("branch name is reserved")
	ErrInvalidBranchName  = errors.New("invalid branch name")
	ErrProtectedBranch    = errors.New("main branch cannot be deleted or renamed")
	ErrActiveBranch       = errors.New("cannot delete the active branch")
	ErrVersionNotFound    = errors.New("version not found")
	ErrVersionExists      = errors.New("version already exists on branch")

	// ErrCorruptManifest indicates structural damage, such as a current
	// branch that is missing from the branch list.
	ErrCorruptManifest = errors.New("corrupt manifest")
)

// VersionMetadata is one entry in a branch's commit log. Entries are never
// modified once appended.
type VersionMetadata struct {
	Version     string    `json:"version"`
	Branch      string    `json:"branch"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	ChangeCount int       `json:"changeCount"`
}

// BranchMetadata describes one line of history.
type BranchMetadata struct {
	Name           string            `json:"name"`
	Versions       []VersionMetadata `json:"versions"`
	CurrentVersion string            `json:"currentVersion"`
	// ParentBranch and ForkedFromVersion record lineage for forks and are
	// empty on main and on branches started from scratch.
	ParentBranch      string    `json:"parentBranch,omitempty"`
	ForkedFromVersion string    `json:"forkedFromVersion,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// HasVersion reports whether version was committed on the branch.
func (b *BranchMetadata) HasVersion(version string) bool {
	return VersionIndex(b, version) >= 0
}

// Latest returns the most recent log entry, or nil for an empty log.
func (b *BranchMetadata) Latest() *VersionMetadata {
	if len(b.Versions) == 0 {
		return nil
	}
	return &b.Versions[len(b.Versions)-1]
}

// Stash is uncommitted work on a branch. Only the metadata lives in the
// manifest; Content is stored as a separate archive file.
type Stash struct {
	Branch      string    `json:"branch"`
	BaseVersion string    `json:"baseVersion"`
	Timestamp   time.Time `json:"timestamp"`
	Content     string    `json:"-"`
}

// DeckManifest is the root document of a deck archive.
type DeckManifest struct {
	ID               string            `json:"id,omitempty"`
	DeckName         string            `json:"deckName"`
	Format           string            `json:"format"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	CurrentBranch    string            `json:"currentBranch"`
	CurrentVersion   string            `json:"currentVersion"`
	VersioningScheme versioning.Scheme `json:"versioningScheme,omitempty"`
	Branches         []BranchMetadata  `json:"branches"`
	Stashes          map[string]Stash  `json:"stashes,omitempty"`
	AppVersion       string            `json:"appVersion,omitempty"`
}

// Scheme returns the manifest's versioning scheme, treating an absent
// value as semantic.
func (m *DeckManifest) Scheme() versioning.Scheme {
	if m.VersioningScheme == "" {
		return versioning.SchemeSemantic
	}
	return m.VersioningScheme
}

// Branch returns the named branch, or nil.
func (m *DeckManifest) Branch(name string) *BranchMetadata {
	for i := range m.Branches {
		if m.Branches[i].Name == name {
			return &m.Branches[i]
		}
	}
	return nil
}

// ActiveBranch returns the current branch, or nil if the manifest is corrupt.
func (m *DeckManifest) ActiveBranch() *BranchMetadata {
	return m.Branch(m.CurrentBranch)
}

// BranchNames lists branch names in creation order.
func (m *DeckManifest) BranchNames() []string {
	names := make([]string, 0, len(m.Branches))
	for _, b := range m.Branches {
		names = append(names, b.Name)
	}
	return names
}

// Clone returns a deep copy.
func (m *DeckManifest) Clone() *DeckManifest {
	if m == nil {
		return nil
	}
	out := *m
	out.Branches = make([]BranchMetadata, len(m.Branches))
	for i, b := range m.Branches {
		b.Versions = append([]VersionMetadata(nil), b.Versions...)
		if b.Versions == nil {
			b.Versions = []VersionMetadata{}
		}
		out.Branches[i] = b
	}
	out.Stashes = make(map[string]Stash, len(m.Stashes))
	for k, v := range m.Stashes {
		out.Stashes[k] = v
	}
	return &out
}

// VersionIndex returns the position of version in the branch log, or -1.
func VersionIndex(b *BranchMetadata, version string) int {
	if b == nil {
		return -1
	}
	for i, v := range b.Versions {
		if v.Version == version {
			return i
		}
	}
	return -1
}

// Validate checks the structural invariants of a decoded manifest.
func (m *DeckManifest) Validate() error {
	if m.DeckName == "" {
		return fmt.Errorf("%w: missing deck name", ErrCorruptManifest)
	}
	if len(m.Branches) == 0 {
		return fmt.Errorf("%w: no branches", ErrCorruptManifest)
	}
	seen := make(map[string]bool, len(m.Branches))
	for _, b := range m.Branches {
		if seen[b.Name] {
			return fmt.Errorf("%w: duplicate branch %q", ErrCorruptManifest, b.Name)
		}
		seen[b.Name] = true
	}
	if !seen[deck.MainBranch] {
		return fmt.Errorf("%w: missing %q branch", ErrCorruptManifest, deck.MainBranch)
	}
	if !seen[m.CurrentBranch] {
		return fmt.Errorf("%w: current branch %q not in branch list", ErrCorruptManifest, m.CurrentBranch)
	}
	if _, err := versioning.ParseScheme(string(m.VersioningScheme)); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptManifest, err)
	}
	return nil
}

// Decode parses manifest.json. The versioning scheme is normalized and a
// missing one defaults to semantic in memory; the stored document is only
// rewritten on the next save.
func Decode(data []byte) (*DeckManifest, error) {
	var m DeckManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptManifest, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	scheme, err := versioning.ParseScheme(string(m.VersioningScheme))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptManifest, err)
	}
	m.VersioningScheme = scheme
	if m.Stashes == nil {
		m.Stashes = map[string]Stash{}
	}
	for i := range m.Branches {
		if m.Branches[i].Versions == nil {
			m.Branches[i].Versions = []VersionMetadata{}
		}
	}
	return &m, nil
}

// Encode renders manifest.json.
func Encode(m *DeckManifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return data, nil
}
