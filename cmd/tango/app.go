package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/tango/internal/cli"
	"github.com/at-ishikawa/tango/internal/config"
	"github.com/at-ishikawa/tango/internal/database"
	"github.com/at-ishikawa/tango/internal/inference"
	"github.com/at-ishikawa/tango/internal/inference/openai"
	"github.com/at-ishikawa/tango/internal/learning"
	"github.com/at-ishikawa/tango/internal/logger"
	"github.com/at-ishikawa/tango/internal/remote"
	"github.com/at-ishikawa/tango/internal/statistics"
	"github.com/at-ishikawa/tango/internal/study"
	"github.com/at-ishikawa/tango/internal/syncer"
	"github.com/at-ishikawa/tango/internal/syncqueue"
	"github.com/at-ishikawa/tango/internal/word"
)

func loadConfig() (*config.Config, error) {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create config loader: %w", err)
	}
	return loader.Load()
}

// application wires the local store for one command.
type application struct {
	cfg     *config.Config
	db      *sqlx.DB
	logger  *logger.Logger
	engine  *syncqueue.Engine
	service *study.Service
	closers []func() error
}

func newApplication(ctx context.Context) (*application, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Log.Mode, debugMode)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database.Open > %w", err)
	}
	if err := database.Migrate(ctx, db, database.SchemaClient); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database.Migrate > %w", err)
	}

	app := &application{
		cfg:    cfg,
		db:     db,
		logger: log,
		engine: syncqueue.NewEngine(syncqueue.NewDBStore(db), nil),
	}
	options := []study.Option{
		study.WithLocation(cfg.Study.Location()),
		study.WithDailyLimit(cfg.Study.DailyLimit),
		study.WithLogger(log),
		study.WithTransactor(database.NewTransactor(db)),
	}
	if cfg.OpenAI.APIKey != "" {
		openaiClient := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, inference.DefaultMaxRetryAttempts, log)
		app.closers = append(app.closers, openaiClient.Close)
		options = append(options, study.WithGenerator(openaiClient))
	}
	app.service = study.NewService(
		word.NewDBRepository(db),
		learning.NewDBRepository(db),
		statistics.NewDBActivityRepository(db),
		app.engine,
		options...,
	)
	return app, nil
}

// newRunner builds the sync runner for the configured endpoint.
func (app *application) newRunner() (*syncer.Runner, error) {
	syncCfg := app.cfg.Sync
	if syncCfg.Endpoint == "" {
		return nil, errors.New("sync.endpoint is not configured; set it in the config file or TANGO_SYNC_ENDPOINT")
	}
	client := remote.NewClient(remote.Options{
		Endpoint:      syncCfg.Endpoint,
		Token:         syncCfg.Token,
		RetryAttempts: uint(syncCfg.RetryAttempts),
	}, app.logger)
	app.closers = append(app.closers, client.Close)

	return syncer.NewRunner(app.engine, client, nil, app.logger, syncer.Options{
		Interval:       syncCfg.Interval,
		RequestTimeout: syncCfg.RequestTimeout,
		BatchSize:      syncCfg.BatchSize,
	}), nil
}

func (app *application) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i]())
	}
	errs = append(errs, app.db.Close())
	app.logger.Sync()
	return errors.Join(errs...)
}

// withApplication runs fn with a wired application and closes it afterwards.
func withApplication(cmd *cobra.Command, fn func(app *application) error) (err error) {
	app, err := newApplication(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, app.Close())
	}()
	return fn(app)
}

func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "o", string(cli.FormatTable), "output format: table, yaml or json")
}

func newPrinter(cmd *cobra.Command) (*cli.Printer, error) {
	value, err := cmd.Flags().GetString("format")
	if err != nil {
		value = ""
	}
	format, err := cli.ParseFormat(value)
	if err != nil {
		return nil, err
	}
	return cli.NewPrinter(cmd.OutOrStdout(), format), nil
}
