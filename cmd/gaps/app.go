package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aschepis/backscratcher/gaps/config"
	"github.com/aschepis/backscratcher/gaps/gap"
	"github.com/aschepis/backscratcher/gaps/llm"
	"github.com/aschepis/backscratcher/gaps/llm/provider"
	gapslogger "github.com/aschepis/backscratcher/gaps/logger"
	"github.com/aschepis/backscratcher/gaps/migrations"
	"github.com/aschepis/backscratcher/gaps/store"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// app is everything a command needs once flags and config are resolved.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	db     *sql.DB
	store  *store.Store
}

func newApp(ctx context.Context) (*app, error) {
	if logFile != "" && pretty {
		return nil, fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}
	logger, err := gapslogger.InitWithOptions(logFile, pretty)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dbDSN != "" {
		cfg.Database.DSN = dbDSN
	}
	logger.Debug().Str("config", path).Str("driver", cfg.Database.Driver).Msg("Loaded configuration")

	db, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		store:  store.NewStore(db, store.Dialect(cfg.Database.Driver), logger),
	}
	if store.Dialect(cfg.Database.Driver) == store.DialectSQLite {
		if err := a.migrate(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return a, nil
}

func (a *app) Close() {
	_ = a.db.Close() //nolint:errcheck // No remedy for db close errors
}

// migrate applies the embedded schema. Postgres deployments own their schema.
func (a *app) migrate() error {
	if store.Dialect(a.cfg.Database.Driver) != store.DialectSQLite {
		return fmt.Errorf("embedded migrations only target sqlite3; %s schema is managed externally", a.cfg.Database.Driver)
	}
	return migrations.RunMigrations(a.db, a.logger)
}

// service builds the gap service. An unconfigured provider yields a
// fallback-only service rather than an error.
func (a *app) service() (*gap.Service, error) {
	registry := llm.NewProviderRegistry(a.cfg.ProviderConfig())
	client, err := provider.FromRegistry(registry, a.cfg.LLM.Provider, a.cfg.LLM.Model, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create completion client: %w", err)
	}
	return gap.NewService(client, a.cfg.ServiceOptions(), a.logger), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
