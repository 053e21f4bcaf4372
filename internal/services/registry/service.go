// Package registry owns the per-community ticker registry
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/interfaces"
	"github.com/bobmcallan/tickercal/internal/models"
)

// Compile-time interface check
var _ interfaces.RegistryService = (*Service)(nil)

// Service implements RegistryService on top of a single-document store.
// Every operation is load-modify-save under one mutex, so the store always
// holds the last completed mutation.
type Service struct {
	store  interfaces.BlobStore
	logger *common.Logger
	mu     sync.Mutex
}

// NewService creates a new registry service
func NewService(store interfaces.BlobStore, logger *common.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Load reads the registry. A missing or blank document is an empty registry.
func (s *Service) Load(ctx context.Context) (models.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Save overwrites the stored registry.
func (s *Service) Save(ctx context.Context, registry models.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, registry)
}

// Add tracks ticker for community. It reports false without writing when the
// ticker is already tracked.
func (s *Service) Add(ctx context.Context, community, ticker string) (bool, error) {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return false, common.ErrInvalidTicker
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	if !reg.Add(community, ticker) {
		return false, nil
	}
	if err := s.save(ctx, reg); err != nil {
		return false, err
	}

	s.logger.Info().Str("community", community).Str("ticker", ticker).Msg("Ticker added")
	return true, nil
}

// Remove stops tracking ticker for community. It reports false without writing
// when the ticker was not tracked.
func (s *Service) Remove(ctx context.Context, community, ticker string) (bool, error) {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return false, common.ErrInvalidTicker
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	if !reg.Remove(community, ticker) {
		return false, nil
	}
	if err := s.save(ctx, reg); err != nil {
		return false, err
	}

	s.logger.Info().Str("community", community).Str("ticker", ticker).Msg("Ticker removed")
	return true, nil
}

// List returns the community's tickers in insertion order, never nil.
func (s *Service) List(ctx context.Context, community string) ([]string, error) {
	reg, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return reg.List(community), nil
}

// Snapshot returns an independent copy for one sync pass.
func (s *Service) Snapshot(ctx context.Context) (models.Registry, error) {
	reg, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return reg.Clone(), nil
}

func (s *Service) load(ctx context.Context) (models.Registry, error) {
	data, ok, err := s.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrRegistryStorage, err)
	}
	if !ok || len(bytes.TrimSpace(data)) == 0 {
		return models.Registry{}, nil
	}

	var reg models.Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageCorrupt, err)
	}
	if reg == nil {
		reg = models.Registry{}
	}
	reg.Normalize()
	return reg, nil
}

func (s *Service) save(ctx context.Context, registry models.Registry) error {
	if registry == nil {
		registry = models.Registry{}
	}
	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorageWrite, err)
	}
	if err := s.store.WriteAll(ctx, data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write ticker registry")
		return fmt.Errorf("%w: %v", common.ErrStorageWrite, err)
	}
	return nil
}
