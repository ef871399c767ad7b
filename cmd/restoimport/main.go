// Command restoimport loads the restaurant platform's generated CSV files into
// MongoDB and serves a small run-control API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/JonMunkholm/restoimport/internal/config"
	"github.com/JonMunkholm/restoimport/internal/core"
	_ "github.com/JonMunkholm/restoimport/internal/core/entities" // Register all entity kinds
	"github.com/JonMunkholm/restoimport/internal/logging"
	"github.com/JonMunkholm/restoimport/internal/store/mongostore"
)

// envLoaded records whether a .env file was found.
var envLoaded bool

func main() {
	// A .env file is optional; real environment variables win over it
	envLoaded = godotenv.Load() == nil

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cli.Command{
		Name:  "restoimport",
		Usage: "Load restaurant platform CSV exports into MongoDB",
		Commands: []*cli.Command{
			importCommand(),
			indexCommand(),
			serveCommand(),
			historyCommand(),
			resetCommand(),
		},
	}

	if err := root.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", core.FormatUserError(err))
		fmt.Fprintln(os.Stderr, "  ", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the environment and sets up logging. Offline commands do
// not need MongoDB settings.
func loadConfig(offline bool) (*config.Config, error) {
	load := config.Load
	if offline {
		load = config.LoadOffline
	}

	cfg, err := load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if envLoaded {
		slog.Debug("loaded .env file")
	}
	slog.Debug("configuration loaded", "config", cfg.String())
	return cfg, nil
}

// buildPlan applies the configured file and collection overrides to the
// registered entities.
func buildPlan(cfg *config.Config) ([]core.EntityDefinition, error) {
	overrides := make(map[core.Kind]core.Source)
	for kind, sc := range cfg.Sources.Overrides() {
		overrides[core.Kind(kind)] = core.Source{File: sc.File, Collection: sc.Collection}
	}
	return core.Plan(overrides)
}

func openStore(ctx context.Context, cfg *config.Config) (*mongostore.Store, error) {
	store, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.ConnectTimeout, mongostore.Options{
		RunsCollection:   cfg.Import.RunsCollection,
		OperationTimeout: cfg.Mongo.OperationTimeout,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("connected to mongodb", "uri", config.MaskURI(cfg.Mongo.URI), "database", cfg.Mongo.Database)
	return store, nil
}

func closeStore(store *mongostore.Store) {
	if err := store.Close(context.Background()); err != nil {
		slog.Warn("disconnect from mongodb", "error", err)
	}
}
