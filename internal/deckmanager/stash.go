package deckmanager

import (
	"context"
	"fmt"

	"github.com/ramonehamilton/commander-vault/internal/archive"
	"github.com/ramonehamilton/commander-vault/internal/deck"
	"github.com/ramonehamilton/commander-vault/internal/manifest"
)

// Stash records d as uncommitted work on the active deck's current branch,
// replacing any earlier stash there. The next save on that branch drops it.
func (m *Manager) Stash(ctx context.Context, d *deck.Deck) error {
	if d == nil {
		return fmt.Errorf("stash: deck is nil")
	}
	snapshot := d.Clone()
	snapshot.UpdatedAt = m.now()
	content, err := archive.SerializeSnapshot(snapshot)
	if err != nil {
		return err
	}

	_, err = m.mutate(ctx, func(a *archive.Archive) (*manifest.DeckManifest, error) {
		return m.manifests.SaveStash(a.Manifest, a.Manifest.CurrentBranch, "", content)
	})
	if err != nil {
		return fmt.Errorf("stash: %w", err)
	}
	return nil
}

// DropStash discards the stash of branch, or of the current branch when
// branch is empty.
func (m *Manager) DropStash(ctx context.Context, branch string) error {
	_, err := m.mutate(ctx, func(a *archive.Archive) (*manifest.DeckManifest, error) {
		target := branch
		if target == "" {
			target = a.Manifest.CurrentBranch
		}
		return m.manifests.DropStash(a.Manifest, target)
	})
	if err != nil {
		return fmt.Errorf("drop stash: %w", err)
	}
	return nil
}

// ApplyStash returns the deck stashed on the active deck's current branch.
// The stash is kept until the next save. It reports false when there is
// nothing stashed.
func (m *Manager) ApplyStash(ctx context.Context) (*deck.Deck, bool, error) {
	name, err := m.requireActive()
	if err != nil {
		return nil, false, err
	}
	a, err := m.open(ctx, name)
	if err != nil {
		return nil, false, err
	}
	d, ok, err := a.StashDeck(ctx, a.Manifest.CurrentBranch, m.lookup)
	if err != nil {
		return nil, false, fmt.Errorf("apply stash: %w", err)
	}
	return d, ok, nil
}

// SaveMaybeboard replaces the active deck's maybeboard.
func (m *Manager) SaveMaybeboard(ctx context.Context, mb *deck.Maybeboard) error {
	if mb == nil {
		mb = deck.NewMaybeboard()
	}
	_, err := m.mutate(ctx, func(a *archive.Archive) (*manifest.DeckManifest, error) {
		board := *mb
		board.UpdatedAt = m.now()
		a.Maybeboard = &board
		return a.Manifest, nil
	})
	if err != nil {
		return fmt.Errorf("save maybeboard: %w", err)
	}
	return nil
}
