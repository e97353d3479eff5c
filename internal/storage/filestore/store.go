// Package filestore keeps deck archives as files in a directory.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/ramonehamilton/commander-vault/internal/storage"
)

// Ext is the file extension of a stored deck archive.
const Ext = ".deck"

// Store is a deck backend over a directory of <name>.deck files.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates a store rooted at dir. A nil logger uses slog.Default().
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the store's directory.
func (s *Store) Dir() string {
	return s.dir
}

// fileName maps a deck name to a file name. Escaping keeps separators
// out of the path and is reversed by deckName.
func fileName(name string) string {
	return url.PathEscape(name) + Ext
}

func deckName(file string) (string, bool) {
	if !strings.HasSuffix(file, Ext) {
		return "", false
	}
	name, err := url.PathUnescape(strings.TrimSuffix(file, Ext))
	if err != nil {
		return "", false
	}
	return name, true
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, fileName(name))
}

// Initialize creates the directory.
func (s *Store) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return &storage.BackendError{Op: "initialize", Err: err}
	}
	return nil
}

// ListDecks returns every stored deck ordered by name.
func (s *Store) ListDecks(ctx context.Context) ([]storage.DeckInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []storage.DeckInfo{}, nil
		}
		return nil, &storage.BackendError{Op: "list", Err: err}
	}

	decks := []storage.DeckInfo{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, ok := deckName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		decks = append(decks, storage.DeckInfo{
			Name:         name,
			LastModified: info.ModTime().UTC(),
			Size:         info.Size(),
		})
	}
	sort.Slice(decks, func(i, j int) bool { return decks[i].Name < decks[j].Name })
	return decks, nil
}

// LoadDeck returns the archive stored under name.
func (s *Store) LoadDeck(ctx context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &storage.BackendError{Op: "load", Deck: name, Err: storage.ErrDeckNotFound}
		}
		return nil, &storage.BackendError{Op: "load", Deck: name, Err: err}
	}
	return data, nil
}

// SaveDeck writes the archive through a temp file and rename, so readers
// never see a partial archive.
func (s *Store) SaveDeck(ctx context.Context, name string, data []byte) error {
	if err := writeAtomic(s.dir, s.path(name), data); err != nil {
		return &storage.BackendError{Op: "save", Deck: name, Err: err}
	}
	return nil
}

// DeleteDeck removes the archive stored under name.
func (s *Store) DeleteDeck(ctx context.Context, name string) error {
	if err := os.Remove(s.path(name)); err != nil {
		if os.IsNotExist(err) {
			return &storage.BackendError{Op: "delete", Deck: name, Err: storage.ErrDeckNotFound}
		}
		return &storage.BackendError{Op: "delete", Deck: name, Err: err}
	}
	return nil
}

// RenameDeck moves an archive to a new name without replacing an existing one.
func (s *Store) RenameDeck(ctx context.Context, oldName, newName string) error {
	from, to := s.path(oldName), s.path(newName)
	if _, err := os.Stat(from); err != nil {
		if os.IsNotExist(err) {
			return &storage.BackendError{Op: "rename", Deck: oldName, Err: storage.ErrDeckNotFound}
		}
		return &storage.BackendError{Op: "rename", Deck: oldName, Err: err}
	}
	if _, err := os.Stat(to); err == nil {
		return &storage.BackendError{Op: "rename", Deck: oldName, Err: fmt.Errorf("%w: %s", storage.ErrDeckExists, newName)}
	}
	if err := os.Rename(from, to); err != nil {
		return &storage.BackendError{Op: "rename", Deck: oldName, Err: err}
	}
	return nil
}

func writeAtomic(dir, path string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create deck directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to move temp file into place: %w", err)
	}
	return nil
}

// EventKind classifies a change seen by Watch.
type EventKind int

const (
	DeckChanged EventKind = iota
	DeckRemoved
)

func (k EventKind) String() string {
	if k == DeckRemoved {
		return "removed"
	}
	return "changed"
}

// Event reports a deck file changed by this or another process.
type Event struct {
	Deck string
	Kind EventKind
}

// Watch calls fn for every deck created, written, renamed or removed in the
// store directory until ctx is cancelled. Temp files are ignored.
func (s *Store) Watch(ctx context.Context, fn func(Event)) (err error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create deck directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("failed to watch deck directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, ok := deckName(filepath.Base(event.Name))
			if !ok {
				continue
			}
			switch {
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				fn(Event{Deck: name, Kind: DeckRemoved})
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				fn(Event{Deck: name, Kind: DeckChanged})
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(werr, fsnotify.ErrEventOverflow) {
				s.logger.Warn("deck watcher overflowed, events were lost", "dir", s.dir)
				continue
			}
			s.logger.Warn("deck watcher error", "error", werr)
		}
	}
}
