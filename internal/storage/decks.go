package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDeckNotFound is returned when no deck is stored under a name.
	ErrDeckNotFound = errors.New("deck not found")

	// ErrDeckExists is returned when a rename target is already taken.
	ErrDeckExists = errors.New("deck already exists")
)

// BackendError tags a persistence failure with the operation and deck.
type BackendError struct {
	Op   string
	Deck string
	Err  error
}

func (e *BackendError) Error() string {
	if e.Deck == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Deck, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// DeckInfo describes a stored deck without loading its archive.
type DeckInfo struct {
	Name         string
	LastModified time.Time
	Size         int64
}

// DeckRepository stores packed deck archives in the decks table.
type DeckRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewDeckRepository creates a deck repository over an open connection.
func NewDeckRepository(db *sql.DB) *DeckRepository {
	return &DeckRepository{db: db, now: time.Now}
}

// Initialize checks that the schema is in place.
func (r *DeckRepository) Initialize(ctx context.Context) error {
	var name string
	err := r.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'decks'").Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &BackendError{Op: "initialize", Err: errors.New("decks table missing, run migrations")}
		}
		return &BackendError{Op: "initialize", Err: err}
	}
	return nil
}

// ListDecks returns every stored deck ordered by name.
func (r *DeckRepository) ListDecks(ctx context.Context) ([]DeckInfo, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name, size, last_modified FROM decks ORDER BY name")
	if err != nil {
		return nil, &BackendError{Op: "list", Err: fmt.Errorf("failed to query decks: %w", err)}
	}
	defer func() {
		_ = rows.Close()
	}()

	decks := []DeckInfo{}
	for rows.Next() {
		var (
			info     DeckInfo
			modified int64
		)
		if err := rows.Scan(&info.Name, &info.Size, &modified); err != nil {
			return nil, &BackendError{Op: "list", Err: fmt.Errorf("failed to scan deck: %w", err)}
		}
		info.LastModified = time.UnixMilli(modified).UTC()
		decks = append(decks, info)
	}
	if err := rows.Err(); err != nil {
		return nil, &BackendError{Op: "list", Err: fmt.Errorf("error iterating decks: %w", err)}
	}
	return decks, nil
}

// LoadDeck returns the packed archive stored under name.
func (r *DeckRepository) LoadDeck(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, "SELECT archive FROM decks WHERE name = ?", name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &BackendError{Op: "load", Deck: name, Err: ErrDeckNotFound}
		}
		return nil, &BackendError{Op: "load", Deck: name, Err: err}
	}
	return data, nil
}

// SaveDeck inserts or replaces the archive stored under name.
func (r *DeckRepository) SaveDeck(ctx context.Context, name string, data []byte) error {
	now := r.now().UnixMilli()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO decks (name, archive, size, created_at, last_modified) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			archive = excluded.archive,
			size = excluded.size,
			last_modified = excluded.last_modified
	`, name, data, len(data), now, now)
	if err != nil {
		return &BackendError{Op: "save", Deck: name, Err: err}
	}
	return nil
}

// DeleteDeck removes the deck stored under name.
func (r *DeckRepository) DeleteDeck(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM decks WHERE name = ?", name)
	if err != nil {
		return &BackendError{Op: "delete", Deck: name, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &BackendError{Op: "delete", Deck: name, Err: err}
	}
	if n == 0 {
		return &BackendError{Op: "delete", Deck: name, Err: ErrDeckNotFound}
	}
	return nil
}

// RenameDeck moves a deck to a new name in a single transaction.
func (r *DeckRepository) RenameDeck(ctx context.Context, oldName, newName string) error {
	fail := func(err error) error {
		return &BackendError{Op: "rename", Deck: oldName, Err: err}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback() // nil after Commit
	}()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM decks WHERE name = ?", newName).Scan(&exists)
	if err != nil {
		return fail(err)
	}
	if exists > 0 {
		return fail(fmt.Errorf("%w: %s", ErrDeckExists, newName))
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE decks SET name = ?, last_modified = ? WHERE name = ?",
		newName, r.now().UnixMilli(), oldName)
	if err != nil {
		return fail(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fail(err)
	}
	if n == 0 {
		return fail(ErrDeckNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fail(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}
