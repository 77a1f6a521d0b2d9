package commands

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/text/language"

	"github.com/vendorlink/marketplace/cmd/marketplace/auth"
	"github.com/vendorlink/marketplace/cmd/marketplace/config"
	"github.com/vendorlink/marketplace/cmd/marketplace/discovery"
	"github.com/vendorlink/marketplace/cmd/marketplace/store"
)

// app holds the long-lived dependencies shared by the subcommands.
// The relational database always backs accounts. Documents come from the
// same database or from the remote document API, depending on cfg.Store.
type app struct {
	db        *sqlx.DB
	accounts  *auth.AccountRepository
	documents store.DocumentStore
	cache     *store.CachedStore
	pipeline  *discovery.Pipeline
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	pipeline, err := newPipeline(cfg)
	if err != nil {
		return nil, err
	}

	db, err := store.Connect(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	accounts, err := auth.NewAccountRepository(cfg.DBDriver, db.DB)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &app{db: db, accounts: accounts, pipeline: pipeline}

	var documents store.DocumentStore
	switch cfg.Store {
	case config.StoreRemote:
		documents = store.NewRemoteStore(store.RemoteConfig{
			BaseURL:  cfg.RemoteURL,
			Token:    cfg.RemoteToken,
			RetryMax: cfg.RemoteRetryMax,
		}, log)
	default:
		documents = store.NewSQLStore(db, log)
	}

	if cfg.CacheEnabled {
		cacheConfig := store.DefaultCacheConfig()
		cacheConfig.DefaultTTL = cfg.CacheTTL
		a.cache = store.NewCachedStore(documents, cacheConfig, log)
		documents = a.cache
	}
	a.documents = documents

	log.Debug().
		Str("store", cfg.Store).
		Str("db_driver", cfg.DBDriver).
		Bool("cache", cfg.CacheEnabled).
		Msg("Opened marketplace stores")
	return a, nil
}

// migrate creates the account table and, for the SQL store, the document tables.
func (a *app) migrate(ctx context.Context, cfg *config.Config) error {
	if err := a.accounts.Migrate(); err != nil {
		return err
	}
	if cfg.Store != config.StoreSQL {
		return nil
	}
	return store.Migrate(ctx, a.db)
}

func (a *app) Close() {
	if a.cache != nil {
		a.cache.Stop()
	}
	if err := a.db.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close database")
	}
}

func newPipeline(cfg *config.Config) (*discovery.Pipeline, error) {
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", cfg.Locale, err)
	}

	var estimator discovery.DistanceEstimator = discovery.GeoEstimator{}
	if cfg.Distance == config.DistanceStub {
		estimator = discovery.StubEstimator{}
	}
	return discovery.NewPipeline(discovery.WithEstimator(estimator), discovery.WithLocale(tag)), nil
}
