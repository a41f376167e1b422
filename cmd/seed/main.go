package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/razvivashka/bot/razvivashka"
	"github.com/razvivashka/bot/razvivashka/database"
	"github.com/razvivashka/bot/razvivashka/database/models"
	"github.com/razvivashka/bot/razvivashka/database/repositories"
)

// seedFile is the authoring format: a flat list of content items, one TOML
// table per item.
type seedFile struct {
	Items []seedItem `toml:"items"`
}

type seedItem struct {
	Category string   `toml:"category"`
	Prompt   string   `toml:"prompt"`
	Answers  []string `toml:"answers"`
	Parts    int      `toml:"parts"`
	MediaKey string   `toml:"media_key"`
	Position int      `toml:"position"`
}

func main() {
	ctx := context.Background()

	configPath := flag.String("config", "config.toml", "path to config")
	seedPath := flag.String("items", "content.toml", "path to the content file")
	flag.Parse()

	cfg, err := razvivashka.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	items, err := loadSeedFile(*seedPath)
	if err != nil {
		slog.Error("Failed to load content file", "error", err)
		os.Exit(1)
	}

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize schema", "error", err)
		os.Exit(1)
	}

	repo := repositories.NewContentRepository(db.BunDB())
	for i, item := range items {
		if err := repo.Create(ctx, item); err != nil {
			slog.Error("Failed to insert content item",
				"index", i,
				"category", item.Category,
				"error", err)
			os.Exit(1)
		}
	}

	slog.Info("Content seeded successfully", "items", len(items))
}

func loadSeedFile(path string) ([]*models.ContentItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var sf seedFile
	if err := toml.NewDecoder(file).Decode(&sf); err != nil {
		return nil, err
	}

	items := make([]*models.ContentItem, 0, len(sf.Items))
	for i, si := range sf.Items {
		category := models.Category(si.Category)
		if !category.Valid() {
			return nil, fmt.Errorf("item %d: unknown category %q", i, si.Category)
		}
		parts := si.Parts
		if parts < 1 {
			parts = 1
		}
		if parts > 1 && len(si.Answers) != parts {
			return nil, fmt.Errorf("item %d: %d parts need %d answers, got %d", i, parts, parts, len(si.Answers))
		}
		items = append(items, &models.ContentItem{
			Category: category,
			Prompt:   si.Prompt,
			Answers:  si.Answers,
			Parts:    parts,
			MediaKey: si.MediaKey,
			Position: si.Position,
		})
	}
	return items, nil
}
