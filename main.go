package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/razvivashka/bot/razvivashka"
	"github.com/razvivashka/bot/razvivashka/database"
	"github.com/razvivashka/bot/razvivashka/logger"
	"github.com/razvivashka/bot/razvivashka/media"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	customHandler := logger.NewHandler(slog.LevelInfo)
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting Razvivashka progression engine",
		slog.String("version", version),
		slog.String("commit", commit))

	path := flag.String("config", "config.toml", "path to config")
	warmCatalog := flag.Bool("warm-catalog", true, "preload content listings on startup")
	flag.Parse()

	cfg, err := razvivashka.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Configuration loaded successfully")

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	slog.Info("Database connected successfully",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	slog.Info("Initializing database schema...")
	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	slog.Info("Database schema initialized successfully")

	a := razvivashka.New(*cfg, version, commit)
	a.DB = db

	if cfg.Spaces.Bucket != "" {
		spacesService, err := media.NewSpacesService(
			cfg.Spaces.Key,
			cfg.Spaces.Secret,
			cfg.Spaces.Region,
			cfg.Spaces.Bucket,
			cfg.Spaces.MediaRoot,
		)
		if err != nil {
			slog.Error("Failed to initialize media storage", slog.Any("error", err))
			os.Exit(-1)
		}
		a.SpacesService = spacesService
	}

	if err := a.SetupEngine(); err != nil {
		slog.Error("Failed to set up engine", slog.Any("error", err))
		os.Exit(-1)
	}

	if *warmCatalog {
		warmStart := time.Now()
		if err := a.Catalog.WarmUp(ctx); err != nil {
			slog.Warn("Catalog warm-up incomplete", slog.Any("error", err))
		} else {
			slog.Info("Catalog warmed up", slog.Duration("took", time.Since(warmStart)))
		}
	}

	logger.LogSystem("Engine is ready",
		slog.String("timezone", cfg.Engine.Timezone),
		slog.Int("referral_bonus_days", cfg.Engine.ReferralBonusDays))

	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-s
	slog.Info("Shutting down...")
}
