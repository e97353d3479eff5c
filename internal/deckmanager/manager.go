// Package deckmanager coordinates deck workflows: saving and loading
// versioned archives, branching, stashing and deck housekeeping on top of
// a storage backend.
//
// Every operation loads the archive, mutates an in-memory copy and writes
// the whole archive back. Nothing is shared between calls, so two calls
// racing on one deck can lose an update. A Manager is not safe for
// concurrent use.
package deckmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ramonehamilton/commander-vault/internal/archive"
	"github.com/ramonehamilton/commander-vault/internal/deck"
	"github.com/ramonehamilton/commander-vault/internal/deckdiff"
	"github.com/ramonehamilton/commander-vault/internal/manifest"
	"github.com/ramonehamilton/commander-vault/internal/storage"
	"github.com/ramonehamilton/commander-vault/internal/versioning"
)

// ActiveDeckKey is the settings key holding the last opened deck.
const ActiveDeckKey = "activeDeck"

var (
	// ErrNoActiveDeck is returned by operations on the active deck when
	// none is open.
	ErrNoActiveDeck = errors.New("no active deck")

	// ErrInvalidDeckName is returned for empty deck names.
	ErrInvalidDeckName = errors.New("invalid deck name")

	// ErrDeckNameMismatch is returned when saving a deck under a different
	// name than the active one. Use RenameDeck instead.
	ErrDeckNameMismatch = errors.New("deck name does not match active deck")
)

// Backend persists packed deck archives.
type Backend interface {
	Initialize(ctx context.Context) error
	ListDecks(ctx context.Context) ([]storage.DeckInfo, error)
	LoadDeck(ctx context.Context, name string) ([]byte, error)
	SaveDeck(ctx context.Context, name string, data []byte) error
	DeleteDeck(ctx context.Context, name string) error
	RenameDeck(ctx context.Context, oldName, newName string) error
}

// Settings persists small JSON values such as the active deck.
type Settings interface {
	GetTyped(ctx context.Context, key string, target interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
}

// Options configures a Manager.
type Options struct {
	Backend Backend
	// Settings is optional; without it the active deck is not remembered
	// across processes.
	Settings Settings
	// Lookup enriches legacy snapshots and seeds commander decks.
	Lookup deck.CardLookup
	Logger *slog.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
	// DefaultScheme is used for first saves. Defaults to semantic.
	DefaultScheme versioning.Scheme
}

// Manager is the deck workflow coordinator.
type Manager struct {
	backend   Backend
	settings  Settings
	lookup    deck.CardLookup
	logger    *slog.Logger
	now       func() time.Time
	scheme    versioning.Scheme
	manifests *manifest.Manager

	active string
}

// New creates a Manager. A backend is required.
func New(opts Options) (*Manager, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("deck manager: backend is required")
	}
	m := &Manager{
		backend:  opts.Backend,
		settings: opts.Settings,
		lookup:   opts.Lookup,
		logger:   opts.Logger,
		now:      opts.Clock,
		scheme:   opts.DefaultScheme,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	scheme, err := versioning.ParseScheme(string(m.scheme))
	if err != nil {
		return nil, fmt.Errorf("deck manager: %w", err)
	}
	m.scheme = scheme
	m.manifests = manifest.NewManager(versioning.NewEngineWithClock(m.now), m.now)
	return m, nil
}

// Initialize prepares the backend and restores the remembered active deck.
func (m *Manager) Initialize(ctx context.Context) error {
	if err := m.backend.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize backend: %w", err)
	}
	if m.settings == nil {
		return nil
	}
	var name string
	err := m.settings.GetTyped(ctx, ActiveDeckKey, &name)
	switch {
	case errors.Is(err, storage.ErrSettingNotFound):
	case err != nil:
		m.logger.Warn("could not read active deck setting", "error", err)
	default:
		m.active = name
	}
	return nil
}

// ActiveDeck returns the name of the open deck, or "" when none is open.
func (m *Manager) ActiveDeck() string {
	return m.active
}

func (m *Manager) setActive(ctx context.Context, name string) {
	m.active = name
	if m.settings == nil {
		return
	}
	if err := m.settings.Set(ctx, ActiveDeckKey, name); err != nil {
		m.logger.Warn("could not persist active deck", "deck", name, "error", err)
	}
}

// ClearActiveDeck forgets the open deck.
func (m *Manager) ClearActiveDeck(ctx context.Context) error {
	m.active = ""
	if m.settings == nil {
		return nil
	}
	if err := m.settings.Delete(ctx, ActiveDeckKey); err != nil {
		return fmt.Errorf("clear active deck: %w", err)
	}
	return nil
}

func (m *Manager) requireActive() (string, error) {
	if m.active == "" {
		return "", ErrNoActiveDeck
	}
	return m.active, nil
}

// NewDeck returns an empty, never-saved deck.
func (m *Manager) NewDeck(name, format string) *deck.Deck {
	return deck.New(name, format)
}

// NewCommanderDeck returns a never-saved deck seeded with commander.
func (m *Manager) NewCommanderDeck(ctx context.Context, name, format, commander string) (*deck.Deck, error) {
	return deck.NewCommanderDeck(ctx, name, format, commander, m.lookup)
}

// open loads, unpacks and validates the archive stored under name. A
// recorded version without content fails the load.
func (m *Manager) open(ctx context.Context, name string) (*archive.Archive, error) {
	data, err := m.backend.LoadDeck(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load deck %q: %w", name, err)
	}
	a, err := archive.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack deck %q: %w", name, err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("validate deck %q: %w", name, err)
	}
	return a, nil
}

// persist validates, packs and stores a fully assembled archive.
func (m *Manager) persist(ctx context.Context, name string, a *archive.Archive) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("validate deck %q: %w", name, err)
	}
	data, err := archive.Pack(a)
	if err != nil {
		return fmt.Errorf("pack deck %q: %w", name, err)
	}
	if err := m.backend.SaveDeck(ctx, name, data); err != nil {
		return fmt.Errorf("save deck %q: %w", name, err)
	}
	return nil
}

// SaveOptions tunes a commit.
type SaveOptions struct {
	Message string
	// VersionOverride records this version instead of the computed one.
	VersionOverride string
	// Scheme picks the versioning scheme of a first save.
	Scheme versioning.Scheme
	// Maybeboard is stored with a first save.
	Maybeboard *deck.Maybeboard
}

// SaveResult describes a commit.
type SaveResult struct {
	// Deck is a copy of the saved deck carrying the new branch and version.
	Deck    *deck.Deck
	Version string
	Branch  string
	Changes *deckdiff.Result
}

// Save commits d. Without an active deck, or for a deck that was never
// saved, it creates a new archive and refuses to overwrite an existing
// deck of the same name. Otherwise it records a new version on the
// current branch of the active deck, even when nothing changed. The
// caller's deck is left untouched.
func (m *Manager) Save(ctx context.Context, d *deck.Deck, opts SaveOptions) (*SaveResult, error) {
	if d == nil {
		return nil, fmt.Errorf("save: deck is nil")
	}
	if m.active == "" || d.Version == versioning.Unsaved || d.Version == "" {
		return m.saveNew(ctx, d, opts)
	}
	return m.saveExisting(ctx, d, opts)
}

func (m *Manager) saveNew(ctx context.Context, d *deck.Deck, opts SaveOptions) (*SaveResult, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return nil, ErrInvalidDeckName
	}

	_, err := m.backend.LoadDeck(ctx, name)
	switch {
	case err == nil:
		return nil, fmt.Errorf("save deck %q: %w", name, storage.ErrDeckExists)
	case !errors.Is(err, storage.ErrDeckNotFound):
		return nil, fmt.Errorf("check deck %q: %w", name, err)
	}

	scheme := opts.Scheme
	if scheme == "" {
		scheme = m.scheme
	}
	scheme, err = versioning.ParseScheme(string(scheme))
	if err != nil {
		return nil, err
	}

	working := d.Clone()
	working.Name = name
	fresh := m.manifests.New(name, working.Format, scheme)
	changes := deckdiff.Diff(nil, working)

	mf, version, err := m.manifests.CreateVersion(fresh, working, manifest.CommitOptions{
		Message:         opts.Message,
		ChangeCount:     changes.TotalChanges,
		VersionOverride: opts.VersionOverride,
	})
	if err != nil {
		return nil, fmt.Errorf("create version: %w", err)
	}

	saved := m.committed(working, mf, version)
	content, err := archive.SerializeSnapshot(saved)
	if err != nil {
		return nil, err
	}
	a := archive.BuildArchive(saved, mf, opts.Maybeboard, content)
	if err := m.persist(ctx, name, a); err != nil {
		return nil, err
	}

	m.setActive(ctx, name)
	m.logger.Info("deck created", "deck", name, "version", version, "scheme", scheme)
	return &SaveResult{Deck: saved, Version: version, Branch: mf.CurrentBranch, Changes: changes}, nil
}

func (m *Manager) saveExisting(ctx context.Context, d *deck.Deck, opts SaveOptions) (*SaveResult, error) {
	name := m.active
	if d.Name != "" && d.Name != name {
		return nil, fmt.Errorf("%w: %q is open, got %q", ErrDeckNameMismatch, name, d.Name)
	}

	a, err := m.open(ctx, name)
	if err != nil {
		return nil, err
	}
	current := a.Manifest
	if d.Branch != "" && d.Branch != current.CurrentBranch {
		m.logger.Warn("saving onto the archive's current branch",
			"deck", name, "deckBranch", d.Branch, "currentBranch", current.CurrentBranch)
	}

	previous, err := m.lastSaved(ctx, a)
	if err != nil {
		return nil, err
	}
	changes := deckdiff.Diff(previous, d)

	mf, version, err := m.manifests.CreateVersion(current, d, manifest.CommitOptions{
		Message:         opts.Message,
		ChangeCount:     changes.TotalChanges,
		VersionOverride: opts.VersionOverride,
	})
	if err != nil {
		return nil, fmt.Errorf("create version: %w", err)
	}

	saved := m.committed(d, mf, version)
	content, err := archive.SerializeSnapshot(saved)
	if err != nil {
		return nil, err
	}
	a.SetManifest(mf)
	a.PutVersion(mf.CurrentBranch, version, content)
	if err := m.persist(ctx, name, a); err != nil {
		return nil, err
	}

	m.logger.Info("version saved", "deck", name, "branch", mf.CurrentBranch,
		"version", version, "changes", changes.TotalChanges)
	return &SaveResult{Deck: saved, Version: version, Branch: mf.CurrentBranch, Changes: changes}, nil
}

// lastSaved returns the snapshot at the current branch's current version,
// or an empty deck when that version has no content yet.
func (m *Manager) lastSaved(ctx context.Context, a *archive.Archive) (*deck.Deck, error) {
	mf := a.Manifest
	if !a.HasVersion(mf.CurrentBranch, mf.CurrentVersion) {
		return deck.New(mf.DeckName, mf.Format), nil
	}
	previous, err := a.ExtractVersion(ctx, mf.CurrentBranch, mf.CurrentVersion, m.lookup)
	if err != nil {
		return nil, fmt.Errorf("read last saved version: %w", err)
	}
	return previous, nil
}

func (m *Manager) committed(d *deck.Deck, mf *manifest.DeckManifest, version string) *deck.Deck {
	out := d.Clone()
	out.Name = mf.DeckName
	out.Format = mf.Format
	out.Branch = mf.CurrentBranch
	out.Version = version
	out.CreatedAt = mf.CreatedAt
	out.UpdatedAt = m.now()
	out.Recalculate()
	return out
}

// Loaded is an opened deck.
type Loaded struct {
	// Deck is the committed state at the current branch and version.
	Deck       *deck.Deck
	Manifest   *manifest.DeckManifest
	Maybeboard *deck.Maybeboard
	// Stash is uncommitted work on the current branch, nil when none.
	Stash *deck.Deck
}

// Working returns the stash when there is one, else the committed deck.
func (l *Loaded) Working() *deck.Deck {
	if l.Stash != nil {
		return l.Stash
	}
	return l.Deck
}

// Load opens the deck stored under name and makes it the active deck.
func (m *Manager) Load(ctx context.Context, name string) (*Loaded, error) {
	a, err := m.open(ctx, name)
	if err != nil {
		return nil, err
	}
	loaded, err := m.extract(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("extract deck %q: %w", name, err)
	}
	m.setActive(ctx, name)
	return loaded, nil
}

func (m *Manager) extract(ctx context.Context, a *archive.Archive) (*Loaded, error) {
	ex, err := a.Extract(ctx, m.lookup)
	if err != nil {
		return nil, err
	}
	stash, ok, err := a.StashDeck(ctx, ex.Manifest.CurrentBranch, m.lookup)
	if err != nil {
		m.logger.Warn("ignoring unreadable stash", "deck", ex.Manifest.DeckName,
			"branch", ex.Manifest.CurrentBranch, "error", err)
		stash, ok = nil, false
	}
	if !ok {
		stash = nil
	}
	return &Loaded{Deck: ex.Deck, Manifest: ex.Manifest, Maybeboard: ex.Maybeboard, Stash: stash}, nil
}

// Reload re-reads the active deck.
func (m *Manager) Reload(ctx context.Context) (*Loaded, error) {
	name, err := m.requireActive()
	if err != nil {
		return nil, err
	}
	return m.Load(ctx, name)
}

// Manifest returns a copy of the manifest of the deck stored under name.
// An empty name means the active deck.
func (m *Manager) Manifest(ctx context.Context, name string) (*manifest.DeckManifest, error) {
	name, err := m.resolve(name)
	if err != nil {
		return nil, err
	}
	a, err := m.open(ctx, name)
	if err != nil {
		return nil, err
	}
	return a.Manifest.Clone(), nil
}

func (m *Manager) resolve(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	return m.requireActive()
}

// LoadVersion reconstructs a committed version without changing the
// active deck or the archive. Empty branch and version default to the
// current ones.
func (m *Manager) LoadVersion(ctx context.Context, name, branch, version string) (*deck.Deck, error) {
	name, err := m.resolve(name)
	if err != nil {
		return nil, err
	}
	a, err := m.open(ctx, name)
	if err != nil {
		return nil, err
	}
	branch, version, err = resolveRef(a.Manifest, branch, version)
	if err != nil {
		return nil, err
	}
	d, err := a.ExtractVersion(ctx, branch, version, m.lookup)
	if err != nil {
		return nil, fmt.Errorf("checkout %s@%s: %w", branch, version, err)
	}
	return d, nil
}

func resolveRef(mf *manifest.DeckManifest, branch, version string) (string, string, error) {
	if branch == "" {
		branch = mf.CurrentBranch
	}
	b := mf.Branch(branch)
	if b == nil {
		return "", "", fmt.Errorf("%w: %s", manifest.ErrBranchNotFound, branch)
	}
	if version == "" {
		version = b.CurrentVersion
	}
	return branch, version, nil
}

// History returns the version log of branch, oldest first. An empty
// branch means the current one.
func (m *Manager) History(ctx context.Context, name, branch string) ([]manifest.VersionMetadata, error) {
	mf, err := m.Manifest(ctx, name)
	if err != nil {
		return nil, err
	}
	if branch == "" {
		branch = mf.CurrentBranch
	}
	b := mf.Branch(branch)
	if b == nil {
		return nil, fmt.Errorf("%w: %s", manifest.ErrBranchNotFound, branch)
	}
	return append([]manifest.VersionMetadata(nil), b.Versions...), nil
}

// Ref names a committed version. Empty fields default to the current
// branch and its current version.
type Ref struct {
	Branch  string
	Version string
}

// Comparison is the result of DiffVersions.
type Comparison struct {
	From    Ref
	To      Ref
	Changes *deckdiff.Result
	// Unified is a line diff of the two decklists, empty when identical.
	Unified string
}

// DiffVersions compares two committed versions of a deck.
func (m *Manager) DiffVersions(ctx context.Context, name string, from, to Ref) (*Comparison, error) {
	name, err := m.resolve(name)
	if err != nil {
		return nil, err
	}
	a, err := m.open(ctx, name)
	if err != nil {
		return nil, err
	}

	refs := [2]*Ref{&from, &to}
	decks := [2]*deck.Deck{}
	for i, ref := range refs {
		if ref.Branch, ref.Version, err = resolveRef(a.Manifest, ref.Branch, ref.Version); err != nil {
			return nil, err
		}
		if decks[i], err = a.ExtractVersion(ctx, ref.Branch, ref.Version, m.lookup); err != nil {
			return nil, fmt.Errorf("checkout %s@%s: %w", ref.Branch, ref.Version, err)
		}
	}

	unified, err := deckdiff.Unified(from.Branch+"@"+from.Version, to.Branch+"@"+to.Version, decks[0], decks[1])
	if err != nil {
		return nil, err
	}
	return &Comparison{From: from, To: to, Changes: deckdiff.Diff(decks[0], decks[1]), Unified: unified}, nil
}

// Status describes uncommitted changes of a working deck and the version
// a save would record.
type Status struct {
	Deck      string
	Branch    string
	Version   string
	Changes   *deckdiff.Result
	Suggested string
	Stashed   bool
}

// Status reports uncommitted changes of d against the active deck.
func (m *Manager) Status(ctx context.Context, d *deck.Deck) (*Status, error) {
	name, err := m.requireActive()
	if err != nil {
		return nil, err
	}
	a, err := m.open(ctx, name)
	if err != nil {
		return nil, err
	}
	previous, err := m.lastSaved(ctx, a)
	if err != nil {
		return nil, err
	}
	mf := a.Manifest
	changes := deckdiff.Diff(previous, d)

	suggested := mf.CurrentVersion
	if b := mf.ActiveBranch(); b != nil && b.HasVersion(mf.CurrentVersion) {
		suggested, err = deckdiff.SuggestVersion(m.manifests.Engine(), mf.CurrentVersion, mf.Scheme(), changes)
		if err != nil {
			return nil, err
		}
	}
	_, stashed := mf.Stashes[mf.CurrentBranch]
	return &Status{
		Deck:      name,
		Branch:    mf.CurrentBranch,
		Version:   mf.CurrentVersion,
		Changes:   changes,
		Suggested: suggested,
		Stashed:   stashed,
	}, nil
}
