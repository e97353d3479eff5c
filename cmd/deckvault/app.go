package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ramonehamilton/commander-vault/internal/cache"
	"github.com/ramonehamilton/commander-vault/internal/cards/bulkdata"
	"github.com/ramonehamilton/commander-vault/internal/cards/cardlookup"
	"github.com/ramonehamilton/commander-vault/internal/cards/imagecache"
	"github.com/ramonehamilton/commander-vault/internal/cards/scryfall"
	"github.com/ramonehamilton/commander-vault/internal/cards/setcache"
	"github.com/ramonehamilton/commander-vault/internal/config"
	"github.com/ramonehamilton/commander-vault/internal/deckmanager"
	"github.com/ramonehamilton/commander-vault/internal/logging"
	"github.com/ramonehamilton/commander-vault/internal/storage"
	"github.com/ramonehamilton/commander-vault/internal/storage/filestore"
)

// app holds the services of one CLI invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db    *storage.DB // nil with the filesystem backend
	files *filestore.Store
	bolt  *cache.BoltMedium

	store    *cache.Store
	scryfall *scryfall.Client
	bulk     *bulkdata.Loader
	lookup   *cardlookup.Service
	sets     *setcache.Fetcher
	images   *imagecache.Cache
	decks    *deckmanager.Manager
}

func newApp(ctx context.Context, path string, verbose bool) (a *app, err error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Options{
		Output:  os.Stderr,
		Level:   cfg.Log.Level,
		Verbose: verbose,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	a = &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if err := a.openCache(); err != nil {
		return nil, err
	}

	a.scryfall = scryfall.NewClient(scryfall.Config{
		BaseURL:           cfg.Scryfall.BaseURL,
		UserAgent:         cfg.Scryfall.UserAgent,
		RequestsPerSecond: cfg.Scryfall.RequestsPerSecond,
	})
	a.bulk = bulkdata.NewLoader(a.scryfall, a.store, logger)
	if ds, ok := a.bulk.Load(bulkdata.DefaultType); ok {
		logger.Debug("bulk card index loaded", "type", ds.Type, "cards", len(ds.Cards), "updated", ds.UpdatedAt)
	}
	a.lookup = cardlookup.New(cardlookup.Options{
		Client: a.scryfall,
		Store:  a.store,
		Index:  a.bulk,
		Logger: logger,
	})
	a.sets = setcache.NewFetcher(a.scryfall, a.store)
	a.images = imagecache.NewCache(a.scryfall, a.store)

	backend, settings, err := a.openBackend()
	if err != nil {
		return nil, err
	}
	a.decks, err = deckmanager.New(deckmanager.Options{
		Backend:       backend,
		Settings:      settings,
		Lookup:        a.lookup,
		Logger:        logger,
		DefaultScheme: cfg.DefaultScheme(),
	})
	if err != nil {
		return nil, err
	}
	if err := a.decks.Initialize(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// openCache sets up the card-data cache. A bolt file that cannot be opened
// downgrades to running without a cache.
func (a *app) openCache() error {
	ttls, err := a.cfg.CacheTTLs()
	if err != nil {
		return err
	}

	var medium cache.Medium
	switch a.cfg.Cache.Medium {
	case config.MediumBolt:
		bolt, err := cache.OpenBolt(a.cfg.Cache.Path, a.cfg.Cache.QuotaBytes)
		if err != nil {
			a.logger.Warn("card cache unavailable, continuing without it", "path", a.cfg.Cache.Path, "error", err)
			break
		}
		a.bolt = bolt
		medium = bolt
	case config.MediumMemory:
		medium = cache.NewMemoryMedium(a.cfg.Cache.QuotaBytes)
	}

	a.store = cache.NewStore(medium, cache.Options{TTLs: ttls, Logger: a.logger})
	return nil
}

func (a *app) openBackend() (deckmanager.Backend, deckmanager.Settings, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendFilesystem:
		a.files = filestore.New(a.cfg.Storage.DeckDir, a.logger)
		return a.files, filestore.NewSettings(a.cfg.Storage.DeckDir), nil
	default:
		db, err := storage.Open(storage.DefaultConfig(a.cfg.Storage.DBPath))
		if err != nil {
			return nil, nil, fmt.Errorf("open deck database: %w", err)
		}
		a.db = db
		return db.Decks(), db.Settings(), nil
	}
}

// Close releases the database and the cache file.
func (a *app) Close() error {
	var errs []error
	if a.db != nil {
		errs = append(errs, a.db.Close())
		a.db = nil
	}
	if a.bolt != nil {
		errs = append(errs, a.bolt.Close())
		a.bolt = nil
	}
	return errors.Join(errs...)
}
