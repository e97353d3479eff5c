package deckmanager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ramonehamilton/commander-vault/internal/storage"
)

// ListDecks returns every stored deck.
func (m *Manager) ListDecks(ctx context.Context) ([]storage.DeckInfo, error) {
	decks, err := m.backend.ListDecks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	return decks, nil
}

// DeleteDeck removes a stored deck. Deleting the active deck closes it.
func (m *Manager) DeleteDeck(ctx context.Context, name string) error {
	if err := m.backend.DeleteDeck(ctx, name); err != nil {
		return fmt.Errorf("delete deck %q: %w", name, err)
	}
	if name == m.active {
		if err := m.ClearActiveDeck(ctx); err != nil {
			m.logger.Warn("deck deleted but active deck setting kept", "deck", name, "error", err)
		}
	}
	m.logger.Info("deck deleted", "deck", name)
	return nil
}

// RenameDeck moves a deck to a new name and rewrites the deck name stored
// in its manifest. The active deck follows the rename.
func (m *Manager) RenameDeck(ctx context.Context, oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrInvalidDeckName
	}
	if oldName == newName {
		return nil
	}

	a, err := m.open(ctx, oldName)
	if err != nil {
		return err
	}

	_, err = m.backend.LoadDeck(ctx, newName)
	switch {
	case err == nil:
		return fmt.Errorf("rename deck %q: %w: %s", oldName, storage.ErrDeckExists, newName)
	case !errors.Is(err, storage.ErrDeckNotFound):
		return fmt.Errorf("rename deck %q: %w", oldName, err)
	}

	mf := a.Manifest.Clone()
	mf.DeckName = newName
	mf.UpdatedAt = m.now()
	a.SetManifest(mf)

	if err := m.backend.RenameDeck(ctx, oldName, newName); err != nil {
		return fmt.Errorf("rename deck %q: %w", oldName, err)
	}
	if err := m.persist(ctx, newName, a); err != nil {
		// The stored manifest still names oldName; move it back.
		if rbErr := m.backend.RenameDeck(ctx, newName, oldName); rbErr != nil {
			m.logger.Error("deck rename rollback failed", "from", newName, "to", oldName, "error", rbErr)
			return errors.Join(err, fmt.Errorf("roll back rename of %q: %w", oldName, rbErr))
		}
		return err
	}

	if m.active == oldName {
		m.setActive(ctx, newName)
	}
	m.logger.Info("deck renamed", "from", oldName, "to", newName)
	return nil
}
