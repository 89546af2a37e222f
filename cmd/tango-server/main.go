package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/tango/internal/bootstrap"
	"github.com/at-ishikawa/tango/internal/config"
	"github.com/at-ishikawa/tango/internal/database"
	"github.com/at-ishikawa/tango/internal/logger"
	"github.com/at-ishikawa/tango/internal/server"
)

var (
	configFile string
	debugMode  bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tango-server",
		Short:         "Reference sync server keeping the last-writer-wins copy of every entity",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
	rootCmd.Flags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug mode")
	return rootCmd
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loadConfig() > %w", err)
	}
	log, err := logger.New(cfg.Log.Mode, debugMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	app := bootstrap.New(log)

	db, err := database.Open(cfg.Server.Database)
	if err != nil {
		return fmt.Errorf("database.Open > %w", err)
	}
	app.AddShutdownHook(func(context.Context) error {
		return db.Close()
	})
	if err := database.Migrate(ctx, db, database.SchemaServer); err != nil {
		_ = db.Close()
		return fmt.Errorf("database.Migrate > %w", err)
	}

	handler := server.NewSyncHandler(server.NewDBRecordRepository(db), nil, log)
	router := server.NewRouter(server.RouterConfig{
		SyncHandler:    handler,
		Token:          cfg.Server.Token,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	})
	if cfg.Server.Token == "" {
		log.Warn("server.token is empty; sync endpoints accept unauthenticated requests")
	}

	srv := server.NewServer(fmt.Sprintf(":%d", cfg.Server.Port), router, log)
	app.AddShutdownHook(srv.Shutdown)

	return app.Run(ctx, srv.Run)
}

func loadConfig() (*config.Config, error) {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("config.NewConfigLoader() > %w", err)
	}
	return loader.Load()
}
