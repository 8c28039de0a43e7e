package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/facegraph/internal/config"
	"github.com/kozaktomas/facegraph/internal/database/mariadb"
	"github.com/kozaktomas/facegraph/internal/database/postgres"
	"github.com/kozaktomas/facegraph/internal/database/sqlite"
	"github.com/kozaktomas/facegraph/internal/database/sqlstore"
	"github.com/kozaktomas/facegraph/internal/logger"
)

// app holds what a command needs: configuration, a logger and an open store.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *sqlstore.Store
}

// loadConfig reads the environment and applies the --profile flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if profilePath != "" {
		profile, err := config.LoadProfile(profilePath)
		if err != nil {
			return nil, err
		}
		cfg.ProfilePath = profilePath
		cfg.Profile = profile
	}
	return cfg, nil
}

// newApp loads configuration, opens the configured store and brings its
// schema up to date. Callers must defer Close.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}

	a := &app{cfg: cfg, logger: log, store: store}
	// applied migrations are skipped
	if err := store.Migrate(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return a, nil
}

// openStore opens the backend selected by DATABASE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*sqlstore.Store, error) {
	if err := cfg.Database.Validate(); err != nil {
		return nil, err
	}

	opts := []sqlstore.Option{
		sqlstore.WithRoles(cfg.Profile.DatabaseRoles()),
		sqlstore.WithLogger(log),
	}

	var (
		store *sqlstore.Store
		err   error
	)
	switch cfg.Database.Driver {
	case "postgres":
		store, err = postgres.Open(ctx, &cfg.Database, opts...)
	case "sqlite":
		store, err = sqlite.Open(ctx, &cfg.Database, opts...)
	case "mariadb":
		store, err = mariadb.Open(ctx, &cfg.Database, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}
	log.Debug("opened store", zap.String("driver", cfg.Database.Driver))
	return store, nil
}

// Close closes the store and flushes the logger.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// outputJSON writes data as indented JSON to stdout.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// limitFlag returns --limit, or the profile default when the flag was not given.
func (a *app) limitFlag(cmd *cobra.Command) int {
	return intFlagOr(cmd, "limit", a.cfg.Profile.Defaults.Limit)
}
