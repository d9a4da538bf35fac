package service

import (
	"context"
	"fmt"
	"sync"

	"venuebook/internal/config"
	"venuebook/internal/domain"
	"venuebook/internal/models"

	"github.com/rs/zerolog"
)

// CatalogService loads the static catalog into the store and serves venue reads from memory.
// Activities are always read through because their seat counters change with every booking.
type CatalogService struct {
	store     domain.CatalogStore
	logger    *zerolog.Logger
	venues    []*models.Venue
	venuesMap map[int64]*models.Venue
	mu        sync.RWMutex
}

func NewCatalogService(store domain.CatalogStore, logger *zerolog.Logger) *CatalogService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CatalogService{
		store:     store,
		logger:    logger,
		venuesMap: make(map[int64]*models.Venue),
	}
}

// Sync validates the catalog, upserts it and refreshes the venue cache.
func (s *CatalogService) Sync(ctx context.Context, catalog models.Catalog) error {
	if err := config.ValidateCatalog(catalog); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	if err := s.store.SyncCatalog(ctx, catalog); err != nil {
		return err
	}
	s.logger.Info().Int("venues", len(catalog.Venues)).Int("activities", len(catalog.Activities)).Msg("catalog synced")
	return s.Refresh(ctx)
}

func (s *CatalogService) Refresh(ctx context.Context) error {
	venues, err := s.store.ListVenues(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.venues = venues
	s.venuesMap = make(map[int64]*models.Venue, len(venues))
	for _, v := range venues {
		s.venuesMap[v.ID] = v
	}
	return nil
}

func (s *CatalogService) ListVenues(ctx context.Context) ([]*models.Venue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.venues, nil
}

func (s *CatalogService) GetVenue(ctx context.Context, id int64) (*models.Venue, error) {
	s.mu.RLock()
	v, ok := s.venuesMap[id]
	s.mu.RUnlock()
	if ok {
		return v, nil
	}

	v, err := s.store.GetVenue(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return v, nil
}

func (s *CatalogService) GetActivity(ctx context.Context, id int64) (*models.Activity, error) {
	a, err := s.store.GetActivity(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return a, nil
}

// ListActivities reads through to the store so remaining seats are current.
func (s *CatalogService) ListActivities(ctx context.Context) ([]*models.Activity, error) {
	activities, err := s.store.ListActivities(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return activities, nil
}
