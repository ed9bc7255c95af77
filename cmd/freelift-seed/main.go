package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/freelift/internal/catalog"
	"github.com/claude/freelift/internal/config"
	"github.com/claude/freelift/internal/seed"
	"github.com/claude/freelift/internal/storage"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Templates belong to a dedicated user so they survive any real user.
const (
	seedLogin       = "freelift-library"
	seedDisplayName = "FreeLift Library"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	file := flag.String("file", "", "seed YAML (defaults to the built-in catalog)")
	dryRun := flag.Bool("dry-run", false, "parse the seed file and exit")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("freelift-seed", Version)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var (
		f   *seed.File
		err error
	)
	if *file != "" {
		f, err = seed.Load(*file)
	} else {
		f, err = seed.Parse(seed.Default)
	}
	if err != nil {
		log.Error("failed to read seed", "error", err)
		os.Exit(1)
	}
	log.Info("seed parsed", "exercises", len(f.Exercises), "workouts", len(f.Workouts))
	if *dryRun {
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		log.Error("seeding needs a postgres database", "driver", cfg.Database.Driver)
		os.Exit(1)
	}

	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, cfg.Server.MigrationsPath); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	owner, err := db.GetOrCreateUser(ctx, seedLogin, seedDisplayName)
	if err != nil {
		log.Error("failed to create seed user", "error", err)
		os.Exit(1)
	}

	if _, err := seed.Apply(ctx, catalog.NewService(db), owner, f, log); err != nil {
		log.Error("seeding failed", "error", err)
		os.Exit(1)
	}
}
