package manifest

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ramonehamilton/commander-vault/internal/deck"
	"github.com/ramonehamilton/commander-vault/internal/version"
	"github.com/ramonehamilton/commander-vault/internal/versioning"
)

// Manager applies branch and version operations to manifests.
type Manager struct {
	engine *versioning.Engine
	now    func() time.Time
}

// NewManager creates a manager. A nil engine or clock uses the wall clock.
func NewManager(engine *versioning.Engine, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	if engine == nil {
		engine = versioning.NewEngineWithClock(now)
	}
	return &Manager{engine: engine, now: now}
}

// Engine returns the versioning engine used for version computation.
func (mgr *Manager) Engine() *versioning.Engine {
	return mgr.engine
}

// New creates the manifest of a never-saved deck: a single empty main
// branch at the unsaved sentinel.
func (mgr *Manager) New(deckName, format string, scheme versioning.Scheme) *DeckManifest {
	if scheme == "" {
		scheme = versioning.SchemeSemantic
	}
	if format == "" {
		format = deck.FormatCommander
	}
	now := mgr.now()
	return &DeckManifest{
		ID:               uuid.New().String(),
		DeckName:         deckName,
		Format:           format,
		CreatedAt:        now,
		UpdatedAt:        now,
		CurrentBranch:    deck.MainBranch,
		CurrentVersion:   versioning.Unsaved,
		VersioningScheme: scheme,
		Branches: []BranchMetadata{{
			Name:           deck.MainBranch,
			Versions:       []VersionMetadata{},
			CurrentVersion: versioning.Unsaved,
			CreatedAt:      now,
			UpdatedAt:      now,
		}},
		Stashes:    map[string]Stash{},
		AppVersion: version.ArchiveMarker(),
	}
}

// CommitOptions describes a new version.
type CommitOptions struct {
	Message string
	// ChangeCount is the diff size driving semantic bumps. Use
	// versioning.NoChangeCount when unknown; semantic commits then fail.
	ChangeCount int
	// VersionOverride replaces the computed version when non-empty.
	VersionOverride string
}

// CreateVersion records a commit on the active branch and returns the new
// manifest and the version string. The caller stores the snapshot content
// under that version.
func (mgr *Manager) CreateVersion(m *DeckManifest, d *deck.Deck, opts CommitOptions) (*DeckManifest, string, error) {
	out := m.Clone()
	branch := out.ActiveBranch()
	if branch == nil {
		return nil, "", fmt.Errorf("%w: active branch %q missing", ErrCorruptManifest, out.CurrentBranch)
	}

	next, err := mgr.nextVersion(out.Scheme(), branch, opts)
	if err != nil {
		return nil, "", err
	}

	now := mgr.now()
	branch.Versions = append(branch.Versions, VersionMetadata{
		Version:     next,
		Branch:      branch.Name,
		Message:     opts.Message,
		Timestamp:   now,
		ChangeCount: opts.ChangeCount,
	})
	branch.CurrentVersion = next
	branch.UpdatedAt = now

	out.CurrentVersion = next
	out.UpdatedAt = now
	out.AppVersion = version.ArchiveMarker()
	out.VersioningScheme = out.Scheme()
	if d != nil {
		if d.Name != "" {
			out.DeckName = d.Name
		}
		if d.Format != "" {
			out.Format = d.Format
		}
	}
	delete(out.Stashes, branch.Name)
	return out, next, nil
}

func (mgr *Manager) nextVersion(scheme versioning.Scheme, branch *BranchMetadata, opts CommitOptions) (string, error) {
	if opts.VersionOverride != "" {
		v := strings.TrimSpace(opts.VersionOverride)
		if _, ok := versioning.DetectScheme(v); !ok {
			return "", fmt.Errorf("%w: %q", versioning.ErrInvalidVersion, v)
		}
		if branch.HasVersion(v) {
			return "", fmt.Errorf("%w: %s on %s", ErrVersionExists, v, branch.Name)
		}
		return v, nil
	}

	current := branch.CurrentVersion
	if current == "" || current == versioning.Unsaved {
		return mgr.engine.Initial(scheme)
	}
	if detected, ok := versioning.DetectScheme(current); !ok || detected != scheme {
		// The branch predates a scheme change.
		migrated, err := mgr.engine.Migrate(current, detected, scheme)
		if err != nil {
			return "", err
		}
		current = migrated
	}
	if !branch.HasVersion(current) {
		// Pending initial version of a fresh or migrated branch.
		return current, nil
	}

	next, err := mgr.engine.Next(current, scheme, opts.ChangeCount)
	if err != nil {
		return "", err
	}
	return mgr.unused(branch, next, scheme, opts.ChangeCount)
}

// unused bumps v past any version already recorded on branch. This only
// happens after switching schemes back and forth.
func (mgr *Manager) unused(branch *BranchMetadata, v string, scheme versioning.Scheme, changeCount int) (string, error) {
	if changeCount < 0 {
		changeCount = 0
	}
	var err error
	for i := 0; branch.HasVersion(v) && i <= len(branch.Versions); i++ {
		if v, err = mgr.engine.Next(v, scheme, changeCount); err != nil {
			return "", err
		}
	}
	if branch.HasVersion(v) {
		return "", fmt.Errorf("%w: %s on %s", ErrVersionExists, v, branch.Name)
	}
	return v, nil
}

// BranchOptions describes a new branch.
type BranchOptions struct {
	Name string
	// SourceBranch defaults to the current branch.
	SourceBranch string
	// SourceVersion defaults to the source branch's current version.
	SourceVersion string
	// FromScratch starts an empty history instead of forking.
	FromScratch bool
}

// ValidateBranchName rejects empty, reserved and path-unsafe names.
func ValidateBranchName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed != name {
		return fmt.Errorf("%w: %q", ErrInvalidBranchName, name)
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidBranchName, name)
	}
	if strings.EqualFold(name, ReservedBranchName) {
		return fmt.Errorf("%w: %q", ErrReservedBranchName, name)
	}
	return nil
}

// CreateBranch adds a branch. It does not switch to it.
func (mgr *Manager) CreateBranch(m *DeckManifest, opts BranchOptions) (*DeckManifest, error) {
	if err := ValidateBranchName(opts.Name); err != nil {
		return nil, err
	}
	if m.Branch(opts.Name) != nil {
		return nil, fmt.Errorf("%w: %s", ErrBranchExists, opts.Name)
	}

	out := m.Clone()
	now := mgr.now()
	branch := BranchMetadata{
		Name:      opts.Name,
		Versions:  []VersionMetadata{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if opts.FromScratch {
		initial, err := mgr.engine.Initial(out.Scheme())
		if err != nil {
			return nil, err
		}
		branch.CurrentVersion = initial
	} else {
		sourceName := opts.SourceBranch
		if sourceName == "" {
			sourceName = out.CurrentBranch
		}
		source := out.Branch(sourceName)
		if source == nil {
			return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, sourceName)
		}
		forkPoint := opts.SourceVersion
		if forkPoint == "" {
			forkPoint = source.CurrentVersion
		}
		idx := VersionIndex(source, forkPoint)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s on %s", ErrVersionNotFound, forkPoint, sourceName)
		}
		for _, v := range source.Versions[:idx+1] {
			v.Branch = opts.Name
			branch.Versions = append(branch.Versions, v)
		}
		branch.CurrentVersion = forkPoint
		branch.ParentBranch = sourceName
		branch.ForkedFromVersion = forkPoint
	}

	out.Branches = append(out.Branches, branch)
	out.UpdatedAt = now
	return out, nil
}

// SwitchBranch makes name the active branch at its own current version.
func (mgr *Manager) SwitchBranch(m *DeckManifest, name string) (*DeckManifest, error) {
	target := m.Branch(name)
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, name)
	}
	out := m.Clone()
	out.CurrentBranch = name
	out.CurrentVersion = target.CurrentVersion
	out.UpdatedAt = mgr.now()
	return out, nil
}

// DeleteBranch removes a branch and its stash. Main and the active branch
// are protected.
func (mgr *Manager) DeleteBranch(m *DeckManifest, name string) (*DeckManifest, error) {
	if name == deck.MainBranch {
		return nil, ErrProtectedBranch
	}
	if name == m.CurrentBranch {
		return nil, fmt.Errorf("%w: %s", ErrActiveBranch, name)
	}
	if m.Branch(name) == nil {
		return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, name)
	}

	out := m.Clone()
	kept := out.Branches[:0]
	for _, b := range out.Branches {
		if b.Name != name {
			kept = append(kept, b)
		}
	}
	out.Branches = kept
	delete(out.Stashes, name)
	out.UpdatedAt = mgr.now()
	return out, nil
}

// RenameBranch renames a branch everywhere it is referenced: its log
// entries, its stash, the current branch pointer and children's lineage.
func (mgr *Manager) RenameBranch(m *DeckManifest, oldName, newName string) (*DeckManifest, error) {
	if oldName == deck.MainBranch {
		return nil, ErrProtectedBranch
	}
	if m.Branch(oldName) == nil {
		return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, oldName)
	}
	if err := ValidateBranchName(newName); err != nil {
		return nil, err
	}
	if oldName == newName {
		return m.Clone(), nil
	}
	if m.Branch(newName) != nil {
		return nil, fmt.Errorf("%w: %s", ErrBranchExists, newName)
	}

	out := m.Clone()
	now := mgr.now()
	for i := range out.Branches {
		b := &out.Branches[i]
		if b.ParentBranch == oldName {
			b.ParentBranch = newName
		}
		if b.Name != oldName {
			continue
		}
		b.Name = newName
		b.UpdatedAt = now
		for j := range b.Versions {
			b.Versions[j].Branch = newName
		}
	}
	if stash, ok := out.Stashes[oldName]; ok {
		delete(out.Stashes, oldName)
		stash.Branch = newName
		out.Stashes[newName] = stash
	}
	if out.CurrentBranch == oldName {
		out.CurrentBranch = newName
	}
	out.UpdatedAt = now
	return out, nil
}

// ChangeVersioningScheme switches schemes. History is preserved; the
// active branch restarts at the new scheme's initial version.
func (mgr *Manager) ChangeVersioningScheme(m *DeckManifest, scheme versioning.Scheme) (*DeckManifest, error) {
	scheme, err := versioning.ParseScheme(string(scheme))
	if err != nil {
		return nil, err
	}
	from := m.Scheme()
	if from == scheme {
		return m.Clone(), nil
	}

	out := m.Clone()
	next, err := mgr.engine.Migrate(out.CurrentVersion, from, scheme)
	if err != nil {
		return nil, err
	}
	if b := out.ActiveBranch(); b != nil {
		if next, err = mgr.unused(b, next, scheme, 0); err != nil {
			return nil, err
		}
		b.CurrentVersion = next
		b.UpdatedAt = mgr.now()
	}
	out.VersioningScheme = scheme
	out.CurrentVersion = next
	out.UpdatedAt = mgr.now()
	return out, nil
}

// SaveStash records uncommitted work on branch, replacing any previous
// stash. An empty baseVersion uses the branch's current version.
func (mgr *Manager) SaveStash(m *DeckManifest, branch, baseVersion, content string) (*DeckManifest, error) {
	b := m.Branch(branch)
	if b == nil {
		return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, branch)
	}
	if baseVersion == "" {
		baseVersion = b.CurrentVersion
	}
	out := m.Clone()
	out.Stashes[branch] = Stash{
		Branch:      branch,
		BaseVersion: baseVersion,
		Timestamp:   mgr.now(),
		Content:     content,
	}
	return out, nil
}

// DropStash discards a branch's stash. Dropping a missing stash is not an
// error.
func (mgr *Manager) DropStash(m *DeckManifest, branch string) (*DeckManifest, error) {
	if m.Branch(branch) == nil {
		return nil, fmt.Errorf("%w: %s", ErrBranchNotFound, branch)
	}
	out := m.Clone()
	delete(out.Stashes, branch)
	return out, nil
}
