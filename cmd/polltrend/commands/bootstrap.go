package commands

import (
	"context"
	"fmt"

	"github.com/wonny/polltrend/internal/pipeline"
	"github.com/wonny/polltrend/internal/source"
	"github.com/wonny/polltrend/internal/store"
	"github.com/wonny/polltrend/pkg/config"
	"github.com/wonny/polltrend/pkg/database"
	"github.com/wonny/polltrend/pkg/httputil"
	"github.com/wonny/polltrend/pkg/logger"
)

// storeMode selects where runs are kept
type storeMode int

const (
	storeNone     storeMode = iota // runs are not kept
	storeAuto                      // postgres when DATABASE_URL is set, memory otherwise
	storePostgres                  // postgres, error if not configured
)

// app holds the wired dependencies shared by the commands
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	store    store.Store
	ingester *source.Ingester
}

// newApp wires the HTTP client, ingester and run store
func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger, mode storeMode) (*app, error) {
	a := &app{
		cfg:      cfg,
		log:      log,
		ingester: source.New(httputil.New(cfg, log), log),
	}

	switch {
	case mode == storeNone:
	case mode == storePostgres && !cfg.Database.Enabled():
		return nil, fmt.Errorf("saving runs requires DATABASE_URL")
	case cfg.Database.Enabled():
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		pg := store.NewPostgresStore(db.Pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		a.db = db
		a.store = pg
		log.Info("Connected to database")
	default:
		a.store = store.NewMemoryStore(store.DefaultMemoryCapacity)
	}

	return a, nil
}

// pipeline builds a pipeline over the app's ingester and store
func (a *app) pipeline(opts pipeline.Options) (*pipeline.Pipeline, error) {
	return pipeline.New(opts, a.ingester, a.store, a.log)
}

// Close releases the database pool, if any
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
