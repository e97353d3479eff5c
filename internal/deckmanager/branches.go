package deckmanager

import (
	"context"
	"fmt"

	"github.com/ramonehamilton/commander-vault/internal/archive"
	"github.com/ramonehamilton/commander-vault/internal/deck"
	"github.com/ramonehamilton/commander-vault/internal/manifest"
	"github.com/ramonehamilton/commander-vault/internal/versioning"
)

// mutate runs one load-change-persist round trip on the active deck.
func (m *Manager) mutate(ctx context.Context, fn func(a *archive.Archive) (*manifest.DeckManifest, error)) (*manifest.DeckManifest, error) {
	name, err := m.requireActive()
	if err != nil {
		return nil, err
	}
	a, err := m.open(ctx, name)
	if err != nil {
		return nil, err
	}
	mf, err := fn(a)
	if err != nil {
		return nil, err
	}
	a.SetManifest(mf)
	if err := m.persist(ctx, name, a); err != nil {
		return nil, err
	}
	return mf.Clone(), nil
}

// emptySnapshot is the content of a version with no cards.
func (m *Manager) emptySnapshot(mf *manifest.DeckManifest) (string, error) {
	empty := deck.New(mf.DeckName, mf.Format)
	empty.UpdatedAt = m.now()
	return archive.SerializeSnapshot(empty)
}

// CreateBranch adds a branch to the active deck without switching to it.
// A fork copies the snapshot files of every inherited version; a branch
// from scratch starts with an empty snapshot at the scheme's initial
// version, which its first save replaces.
func (m *Manager) CreateBranch(ctx context.Context, opts manifest.BranchOptions) (*manifest.DeckManifest, error) {
	out, err := m.mutate(ctx, func(a *archive.Archive) (*manifest.DeckManifest, error) {
		mf, err := m.manifests.CreateBranch(a.Manifest, opts)
		if err != nil {
			return nil, err
		}
		branch := mf.Branch(opts.Name)

		if opts.FromScratch {
			content, err := m.emptySnapshot(mf)
			if err != nil {
				return nil, err
			}
			a.PutVersion(branch.Name, branch.CurrentVersion, content)
			return mf, nil
		}

		versions := make([]string, 0, len(branch.Versions))
		for _, v := range branch.Versions {
			versions = append(versions, v.Version)
		}
		if err := a.CopyBranch(branch.ParentBranch, branch.Name, versions); err != nil {
			return nil, fmt.Errorf("copy branch files: %w", err)
		}
		return mf, nil
	})
	if err != nil {
		return nil, fmt.Errorf("create branch %q: %w", opts.Name, err)
	}
	m.logger.Info("branch created", "deck", m.active, "branch", opts.Name, "fromScratch", opts.FromScratch)
	return out, nil
}

// SwitchBranch makes branch current on the active deck and returns the
// deck as committed there, with that branch's stash if any.
func (m *Manager) SwitchBranch(ctx context.Context, branch string) (*Loaded, error) {
	var loaded *Loaded
	_, err := m.mutate(ctx, func(a *archive.Archive) (*manifest.DeckManifest, error) {
		mf, err := m.manifests.SwitchBranch(a.Manifest, branch)
		if err != nil {
			return nil, err
		}
		a.SetManifest(mf)
		if loaded, err = m.extract(ctx, a); err != nil {
			return nil, err
		}
		return mf, nil
	})
	if err != nil {
		return nil, fmt.Errorf("switch to branch %q: %w", branch, err)
	}
	return loaded, nil
}

// DeleteBranch removes a branch and all of its files from the active deck.
func (m *Manager) DeleteBranch(ctx context.Context, branch string) (*manifest.DeckManifest, error) {
	out, err := m.mutate(ctx, func(a *archive.Archive) (*manifest.DeckManifest, error) {
		mf, err := m.manifests.DeleteBranch(a.Manifest, branch)
		if err != nil {
			return nil, err
		}
		a.RemoveBranch(branch)
		return mf, nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete branch %q: %w", branch, err)
	}
	return out, nil
}

// RenameBranch renames a branch of the active deck and moves its files.
func (m *Manager) RenameBranch(ctx context.Context, oldName, newName string) (*manifest.DeckManifest, error) {
	out, err := m.mutate(ctx, func(a *archive.Archive) (*manifest.DeckManifest, error) {
		mf, err := m.manifests.RenameBranch(a.Manifest, oldName, newName)
		if err != nil {
			return nil, err
		}
		if oldName != newName {
			a.RenameBranch(oldName, newName)
		}
		return mf, nil
	})
	if err != nil {
		return nil, fmt.Errorf("rename branch %q: %w", oldName, err)
	}
	return out, nil
}

// ChangeVersioningScheme switches the active deck's scheme. The current
// branch restarts at the new scheme's initial version, seeded with the
// content of the version it leaves so the deck still opens unchanged.
func (m *Manager) ChangeVersioningScheme(ctx context.Context, scheme versioning.Scheme) (*manifest.DeckManifest, error) {
	out, err := m.mutate(ctx, func(a *archive.Archive) (*manifest.DeckManifest, error) {
		before := a.Manifest
		mf, err := m.manifests.ChangeVersioningScheme(before, scheme)
		if err != nil {
			return nil, err
		}
		branch := mf.CurrentBranch
		if mf.CurrentVersion == before.CurrentVersion || a.HasVersion(branch, mf.CurrentVersion) {
			return mf, nil
		}

		content, err := a.VersionContent(branch, before.CurrentVersion)
		if err != nil {
			if content, err = m.emptySnapshot(mf); err != nil {
				return nil, err
			}
		}
		a.PutVersion(branch, mf.CurrentVersion, content)
		return mf, nil
	})
	if err != nil {
		return nil, fmt.Errorf("change versioning scheme: %w", err)
	}
	m.logger.Info("versioning scheme changed", "deck", m.active, "scheme", out.VersioningScheme, "version", out.CurrentVersion)
	return out, nil
}
