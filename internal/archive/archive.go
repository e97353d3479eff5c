// Package archive stores a deck's full history as one blob: the manifest,
// the shared maybeboard, one snapshot file per committed version per
// branch and an optional stash per branch.
package archive

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ramonehamilton/commander-vault/internal/deck"
	"github.com/ramonehamilton/commander-vault/internal/manifest"
)

const (
	ManifestFile   = "manifest.json"
	MaybeboardFile = "maybeboard.json"
	StashFile      = "stash.txt"
)

var (
	// ErrCorruptArchive indicates missing top-level files or a manifest
	// that references a branch the archive does not have.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrVersionContentMissing is returned when a recorded version has no
	// snapshot file.
	ErrVersionContentMissing = errors.New("version content missing")
)

// VersionFilename is the snapshot filename for version.
func VersionFilename(version string) string {
	return "v" + version + ".json"
}

// LegacyVersionFilename is the plaintext filename older releases wrote.
func LegacyVersionFilename(version string) string {
	return "v" + version + ".txt"
}

// Archive is the in-memory form of a deck archive.
type Archive struct {
	Manifest   *manifest.DeckManifest
	Maybeboard *deck.Maybeboard
	// Versions maps branch name to filename to snapshot content.
	Versions map[string]map[string]string
	// Stashes maps branch name to uncommitted snapshot content.
	Stashes map[string]string
}

// Extracted is the working state recovered from an archive.
type Extracted struct {
	Deck       *deck.Deck
	Manifest   *manifest.DeckManifest
	Maybeboard *deck.Maybeboard
}

// BuildArchive assembles a new archive whose only content is the snapshot
// for the manifest's current branch and version. The manifest is expected
// to be updated already; d's own version field is ignored.
func BuildArchive(d *deck.Deck, m *manifest.DeckManifest, maybeboard *deck.Maybeboard, content string) *Archive {
	if maybeboard == nil {
		maybeboard = deck.NewMaybeboard()
	}
	a := &Archive{
		Maybeboard: maybeboard,
		Versions:   map[string]map[string]string{},
		Stashes:    map[string]string{},
	}
	a.SetManifest(m)
	a.PutVersion(m.CurrentBranch, m.CurrentVersion, content)
	return a
}

// SetManifest replaces the manifest and brings stash files in line with
// the manifest's stash entries.
func (a *Archive) SetManifest(m *manifest.DeckManifest) {
	a.Manifest = m
	if a.Stashes == nil {
		a.Stashes = map[string]string{}
	}
	for branch := range a.Stashes {
		if _, ok := m.Stashes[branch]; !ok {
			delete(a.Stashes, branch)
		}
	}
	for branch, s := range m.Stashes {
		if s.Content != "" {
			a.Stashes[branch] = s.Content
		}
	}
}

// PutVersion stores snapshot content for branch at version, replacing a
// legacy file for the same version.
func (a *Archive) PutVersion(branch, version, content string) {
	if a.Versions == nil {
		a.Versions = map[string]map[string]string{}
	}
	files := a.Versions[branch]
	if files == nil {
		files = map[string]string{}
		a.Versions[branch] = files
	}
	delete(files, LegacyVersionFilename(version))
	files[VersionFilename(version)] = content
}

// HasVersion reports whether content exists for branch at version.
func (a *Archive) HasVersion(branch, version string) bool {
	_, err := a.VersionContent(branch, version)
	return err == nil
}

// VersionContent returns the snapshot for branch at version, falling back
// to the legacy plaintext file.
func (a *Archive) VersionContent(branch, version string) (string, error) {
	files := a.Versions[branch]
	if content, ok := files[VersionFilename(version)]; ok {
		return content, nil
	}
	if content, ok := files[LegacyVersionFilename(version)]; ok {
		return content, nil
	}
	return "", fmt.Errorf("%w: %s/%s", ErrVersionContentMissing, branch, VersionFilename(version))
}

// CopyBranch copies the snapshot files of the given versions from one
// branch to another.
func (a *Archive) CopyBranch(from, to string, versions []string) error {
	for _, v := range versions {
		content, err := a.VersionContent(from, v)
		if err != nil {
			return err
		}
		a.PutVersion(to, v, content)
	}
	return nil
}

// RemoveBranch drops every file stored for branch.
func (a *Archive) RemoveBranch(branch string) {
	delete(a.Versions, branch)
	delete(a.Stashes, branch)
}

// RenameBranch moves every file stored for a branch.
func (a *Archive) RenameBranch(oldName, newName string) {
	if files, ok := a.Versions[oldName]; ok {
		delete(a.Versions, oldName)
		a.Versions[newName] = files
	}
	if stash, ok := a.Stashes[oldName]; ok {
		delete(a.Stashes, oldName)
		a.Stashes[newName] = stash
	}
}

// Validate checks that every recorded version has content.
func (a *Archive) Validate() error {
	if a.Manifest == nil {
		return fmt.Errorf("%w: missing %s", ErrCorruptArchive, ManifestFile)
	}
	if a.Maybeboard == nil {
		return fmt.Errorf("%w: missing %s", ErrCorruptArchive, MaybeboardFile)
	}
	if a.Manifest.ActiveBranch() == nil {
		return fmt.Errorf("%w: current branch %q not in manifest", ErrCorruptArchive, a.Manifest.CurrentBranch)
	}
	for _, b := range a.Manifest.Branches {
		for _, v := range b.Versions {
			if !a.HasVersion(b.Name, v.Version) {
				return fmt.Errorf("%w: %s/%s", ErrVersionContentMissing, b.Name, VersionFilename(v.Version))
			}
		}
	}
	return nil
}

// Extract reconstructs the working deck at the manifest's current branch
// and version.
func (a *Archive) Extract(ctx context.Context, lookup deck.CardLookup) (*Extracted, error) {
	if a.Manifest == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrCorruptArchive, ManifestFile)
	}
	m := a.Manifest
	if m.ActiveBranch() == nil {
		return nil, fmt.Errorf("%w: current branch %q not in manifest", ErrCorruptArchive, m.CurrentBranch)
	}

	d, err := a.ExtractVersion(ctx, m.CurrentBranch, m.CurrentVersion, lookup)
	if err != nil {
		return nil, err
	}

	maybeboard := a.Maybeboard
	if maybeboard == nil {
		maybeboard = deck.NewMaybeboard()
	}
	return &Extracted{Deck: d, Manifest: m.Clone(), Maybeboard: maybeboard}, nil
}

// ExtractVersion reconstructs the deck as committed at branch and version.
func (a *Archive) ExtractVersion(ctx context.Context, branch, version string, lookup deck.CardLookup) (*deck.Deck, error) {
	if a.Manifest == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrCorruptArchive, ManifestFile)
	}
	if a.Manifest.Branch(branch) == nil {
		return nil, fmt.Errorf("%w: branch %q not in manifest", ErrCorruptArchive, branch)
	}
	content, err := a.VersionContent(branch, version)
	if err != nil {
		return nil, err
	}
	snap, err := DeserializeSnapshot(ctx, content, lookup)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", branch, VersionFilename(version), err)
	}
	return a.deckFrom(snap.Cards, branch, version, snap), nil
}

// StashDeck reconstructs the uncommitted deck stashed on branch. It
// reports false when the branch has no stash.
func (a *Archive) StashDeck(ctx context.Context, branch string, lookup deck.CardLookup) (*deck.Deck, bool, error) {
	content, ok := a.Stashes[branch]
	if !ok {
		return nil, false, nil
	}
	snap, err := DeserializeSnapshot(ctx, content, lookup)
	if err != nil {
		return nil, true, fmt.Errorf("read %s/%s: %w", branch, StashFile, err)
	}
	version := ""
	if b := a.Manifest.Branch(branch); b != nil {
		version = b.CurrentVersion
	}
	return a.deckFrom(snap.Cards, branch, version, snap), true, nil
}

func (a *Archive) deckFrom(cards deck.Cards, branch, version string, snap *Snapshot) *deck.Deck {
	m := a.Manifest
	d := deck.FromCards(m.DeckName, m.Format, cards)
	d.Branch = branch
	d.Version = version
	d.CreatedAt = m.CreatedAt
	d.UpdatedAt = m.UpdatedAt
	if !snap.LastModified.IsZero() {
		d.UpdatedAt = snap.LastModified
	}
	return d
}

// Files lists every path in the archive, sorted.
func (a *Archive) Files() []string {
	paths := []string{ManifestFile, MaybeboardFile}
	for branch, files := range a.Versions {
		for name := range files {
			paths = append(paths, branch+"/"+name)
		}
	}
	for branch := range a.Stashes {
		paths = append(paths, branch+"/"+StashFile)
	}
	sort.Strings(paths)
	return paths
}
