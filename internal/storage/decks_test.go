package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DefaultConfig(MemoryPath))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDeckRepository_SaveLoad(t *testing.T) {
	ctx := context.Background()
	repo := newTestDB(t).Decks()
	require.NoError(t, repo.Initialize(ctx))

	require.NoError(t, repo.SaveDeck(ctx, "Omnath Lands", []byte("v1")))
	data, err := repo.LoadDeck(ctx, "Omnath Lands")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)

	require.NoError(t, repo.SaveDeck(ctx, "Omnath Lands", []byte("version two")))
	data, err = repo.LoadDeck(ctx, "Omnath Lands")
	require.NoError(t, err)
	assert.Equal(t, []byte("version two"), data)
}

func TestDeckRepository_LoadMissing(t *testing.T) {
	repo := newTestDB(t).Decks()

	_, err := repo.LoadDeck(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeckNotFound)

	var be *BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "load", be.Op)
	assert.Equal(t, "nope", be.Deck)
}

func TestDeckRepository_ListDecks(t *testing.T) {
	ctx := context.Background()
	repo := newTestDB(t).Decks()
	fixed := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	decks, err := repo.ListDecks(ctx)
	require.NoError(t, err)
	assert.Empty(t, decks)

	require.NoError(t, repo.SaveDeck(ctx, "Zur", []byte("abc")))
	require.NoError(t, repo.SaveDeck(ctx, "Atraxa", []byte("abcdef")))

	decks, err = repo.ListDecks(ctx)
	require.NoError(t, err)
	require.Len(t, decks, 2)
	assert.Equal(t, "Atraxa", decks[0].Name)
	assert.Equal(t, int64(6), decks[0].Size)
	assert.True(t, fixed.Equal(decks[0].LastModified))
	assert.Equal(t, "Zur", decks[1].Name)
	assert.Equal(t, int64(3), decks[1].Size)
}

func TestDeckRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newTestDB(t).Decks()

	require.NoError(t, repo.SaveDeck(ctx, "Zur", []byte("abc")))
	require.NoError(t, repo.DeleteDeck(ctx, "Zur"))

	_, err := repo.LoadDeck(ctx, "Zur")
	assert.ErrorIs(t, err, ErrDeckNotFound)
	assert.ErrorIs(t, repo.DeleteDeck(ctx, "Zur"), ErrDeckNotFound)
}

func TestDeckRepository_Rename(t *testing.T) {
	ctx := context.Background()
	repo := newTestDB(t).Decks()

	require.NoError(t, repo.SaveDeck(ctx, "Old", []byte("old")))
	require.NoError(t, repo.SaveDeck(ctx, "Taken", []byte("taken")))

	tests := []struct {
		name    string
		from    string
		to      string
		wantErr error
	}{
		{name: "target exists", from: "Old", to: "Taken", wantErr: ErrDeckExists},
		{name: "source missing", from: "Ghost", to: "Anything", wantErr: ErrDeckNotFound},
		{name: "ok", from: "Old", to: "New"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.RenameDeck(ctx, tt.from, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	data, err := repo.LoadDeck(ctx, "New")
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), data)
	_, err = repo.LoadDeck(ctx, "Old")
	assert.ErrorIs(t, err, ErrDeckNotFound)

	taken, err := repo.LoadDeck(ctx, "Taken")
	require.NoError(t, err)
	assert.Equal(t, []byte("taken"), taken)
}

func TestDeckRepository_InitializeWithoutSchema(t *testing.T) {
	config := DefaultConfig(MemoryPath)
	config.AutoMigrate = false
	db, err := Open(config)
	require.NoError(t, err)
	defer db.Close()

	err = db.Decks().Initialize(context.Background())
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "initialize", be.Op)
}
