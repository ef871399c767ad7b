package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/JonMunkholm/restoimport/internal/admin"
	"github.com/JonMunkholm/restoimport/internal/config"
	"github.com/JonMunkholm/restoimport/internal/core"
	"github.com/JonMunkholm/restoimport/internal/store/memstore"
	"github.com/JonMunkholm/restoimport/internal/web"
)

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Load every entity file in dependency order, then create indexes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "directory holding the CSV files (default: IMPORT_DIR)"},
			&cli.StringFlag{Name: "database", Usage: "target database (default: MONGO_DATABASE)"},
			&cli.IntFlag{Name: "batch-size", Usage: "records per bulk insert (default: IMPORT_BATCH_SIZE)"},
			&cli.BoolFlag{Name: "skip-indexes", Usage: "create only unique indexes (the rest can be added later with index)"},
			&cli.BoolFlag{Name: "dry-run", Usage: "validate files and references in memory without writing"},
			&cli.BoolFlag{Name: "json", Usage: "print the run result as JSON"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			dryRun := c.Bool("dry-run")
			cfg, err := loadConfig(dryRun)
			if err != nil {
				return err
			}
			if dir := c.String("dir"); dir != "" {
				cfg.Import.Dir = dir
			}
			if db := c.String("database"); db != "" {
				cfg.Mongo.Database = db
			}
			if n := c.Int("batch-size"); n > 0 {
				cfg.Import.BatchSize = n
			}

			stages, err := buildPlan(cfg)
			if err != nil {
				return err
			}

			var (
				store  core.Store
				ledger core.Ledger
				mem    *memstore.Store
			)
			if dryRun {
				mem = memstore.New()
				store = mem
			} else {
				ms, err := openStore(ctx, cfg)
				if err != nil {
					return err
				}
				defer closeStore(ms)
				store, ledger = ms, ms
			}

			svc, err := core.NewService(store, ledger, core.ServiceOptions{
				Stages:      stages,
				Dir:         cfg.Import.Dir,
				BatchSize:   cfg.Import.BatchSize,
				SkipIndexes: c.Bool("skip-indexes"),
			})
			if err != nil {
				return err
			}

			asJSON := c.Bool("json")
			var progress core.ProgressFunc
			if !asJSON {
				progress = newProgressPrinter(os.Stdout).print
			}

			result, runErr := svc.Run(ctx, progress)
			if result != nil {
				if asJSON {
					if err := printJSON(result); err != nil {
						return err
					}
				} else {
					printResult(result)
					if mem != nil {
						printCounts(mem.Counts())
					}
				}
			}
			return runErr
		},
	}
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Create the declared indexes without loading data",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "database", Usage: "target database (default: MONGO_DATABASE)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			if db := c.String("database"); db != "" {
				cfg.Mongo.Database = db
			}

			svc, closeFn, err := newService(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := svc.ProvisionIndexes(ctx)
			printIndexes(svc.Stages(), n)
			return err
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the run-control HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address (default: SERVER_HOST:SERVER_PORT)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			addr := c.String("addr")
			if addr == "" {
				addr = cfg.Server.Addr()
			}

			svc, closeFn, err := newService(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			server := web.NewServer(svc, web.Options{
				ReadTimeout: cfg.Server.ReadTimeout,
				IdleTimeout: cfg.Server.IdleTimeout,
			})

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start(addr) }()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			slog.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
			defer cancel()

			if status := svc.Limiter(); status.Active > 0 {
				slog.Info("stopping active import run", "active", status.Active)
			}
			if err := svc.Shutdown(shutdownCtx); err != nil {
				slog.Warn("import run did not stop in time", "error", err)
			}
			return server.Shutdown(shutdownCtx)
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recent import runs from the ledger",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: core.DefaultHistoryLimit, Usage: "number of runs to show"},
			&cli.BoolFlag{Name: "json", Usage: "print raw JSON"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}

			svc, closeFn, err := newService(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			runs, err := svc.History(ctx, c.Int("limit"))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return printJSON(runs)
			}
			printRuns(runs)
			return nil
		},
	}
}

func resetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Drop every target collection so a failed import can be rerun",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "database", Usage: "target database (default: MONGO_DATABASE)"},
			&cli.BoolFlag{Name: "yes", Usage: "confirm dropping the collections"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			if db := c.String("database"); db != "" {
				cfg.Mongo.Database = db
			}

			stages, err := buildPlan(cfg)
			if err != nil {
				return err
			}
			if !c.Bool("yes") {
				return errors.Errorf("refusing to drop %d collections in %s without --yes", len(stages), cfg.Mongo.Database)
			}

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore(store)

			dropped, err := admin.Reset(ctx, store, stages)
			for _, name := range dropped {
				fmt.Printf("dropped %s.%s\n", cfg.Mongo.Database, name)
			}
			return err
		},
	}
}

// newService connects to MongoDB and builds a service over the configured
// plan. The returned func disconnects.
func newService(ctx context.Context, cfg *config.Config) (*core.Service, func(), error) {
	stages, err := buildPlan(cfg)
	if err != nil {
		return nil, nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	svc, err := core.NewService(store, store, core.ServiceOptions{
		Stages:    stages,
		Dir:       cfg.Import.Dir,
		BatchSize: cfg.Import.BatchSize,
	})
	if err != nil {
		closeStore(store)
		return nil, nil, err
	}
	return svc, func() { closeStore(store) }, nil
}
