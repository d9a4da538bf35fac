package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"venuebook/internal/database"
	"venuebook/internal/models"
	"venuebook/internal/service"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		catalogPath = flag.String("catalog", "configs/catalog.yaml", "path to catalog.yaml")
		dbPath      = flag.String("db", "./data/venuebook.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*catalogPath)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var catalog models.Catalog
	if err = yaml.Unmarshal(data, &catalog); err != nil {
		return fmt.Errorf("parse catalog: %w", err)
	}
	if len(catalog.Venues) == 0 && len(catalog.Activities) == 0 {
		return fmt.Errorf("no venues or activities in yaml")
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created, updated := 0, 0
	for _, v := range catalog.Venues {
		_, err = db.GetVenue(ctx, v.ID)
		switch {
		case err == nil:
			updated++
		case errors.Is(err, database.ErrNotFound):
			created++
		default:
			return fmt.Errorf("get venue %d: %w", v.ID, err)
		}
	}
	for _, a := range catalog.Activities {
		_, err = db.GetActivity(ctx, a.ID)
		switch {
		case err == nil:
			updated++
		case errors.Is(err, database.ErrNotFound):
			created++
		default:
			return fmt.Errorf("get activity %d: %w", a.ID, err)
		}
	}

	if err = service.NewCatalogService(db, &logger).Sync(ctx, catalog); err != nil {
		return err
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
