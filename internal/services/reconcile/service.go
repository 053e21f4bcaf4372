// Package reconcile publishes missing earnings events to a community calendar
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/interfaces"
	"github.com/bobmcallan/tickercal/internal/models"
)

// DefaultSpacing is the minimum gap between two creates in one community.
const DefaultSpacing = time.Second

// Compile-time interface check
var _ interfaces.EventReconciler = (*Service)(nil)

// Service implements EventReconciler. Passes for the same community are
// serialized; different communities proceed in parallel.
type Service struct {
	location string
	spacing  time.Duration
	logger   *common.Logger

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option configures the service
type Option func(*Service)

// WithSpacing sets the create spacing. Zero disables waiting.
func WithSpacing(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.spacing = d
		}
	}
}

// WithLocation sets the location text on created events
func WithLocation(location string) Option {
	return func(s *Service) {
		if location != "" {
			s.location = location
		}
	}
}

// NewService creates a new reconciler
func NewService(logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		location: "Stock Market",
		spacing:  DefaultSpacing,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// community returns the lock and create limiter for a community.
func (s *Service) community(id string) (*sync.Mutex, *rate.Limiter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	lim, ok := s.limiters[id]
	if !ok {
		if s.spacing > 0 {
			lim = rate.NewLimiter(rate.Every(s.spacing), 1)
		} else {
			lim = rate.NewLimiter(rate.Inf, 1)
		}
		s.limiters[id] = lim
	}
	return lock, lim
}

// Reconcile creates every desired event whose name is not already published.
// Existing events are never modified. A failed snapshot counts every desired
// event as failed and returns the error.
func (s *Service) Reconcile(ctx context.Context, target interfaces.EventTarget, desired []models.MarketEvent) (models.ReconcileResult, error) {
	var result models.ReconcileResult
	if len(desired) == 0 {
		return result, nil
	}

	communityID := target.CommunityID()
	lock, limiter := s.community(communityID)
	lock.Lock()
	defer lock.Unlock()

	published, err := target.ListEvents(ctx)
	if err != nil {
		result.Failed = len(desired)
		return result, fmt.Errorf("list events for %s: %w", communityID, err)
	}

	present := make(map[string]bool, len(published)+len(desired))
	for _, ev := range published {
		present[ev.Name] = true
	}

	for _, want := range desired {
		if present[want.Name] {
			result.Skipped++
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			// cancelled; the rest of this pass is not attempted
			result.Failed++
			s.logger.Debug().Err(err).Str("community", communityID).Str("event", want.Name).Msg("Event create abandoned")
			continue
		}

		draft := models.EventDraft{
			Name:        want.Name,
			StartTime:   want.OccursAt,
			EndTime:     want.EndsAt(),
			Description: want.Description,
			Location:    s.location,
		}

		created, err := target.CreateEvent(ctx, draft)
		if err != nil {
			result.Failed++
			s.logger.Warn().Err(err).Str("community", communityID).Str("event", want.Name).Msg("Event create failed")
			continue
		}

		present[want.Name] = true
		result.Created++

		id := ""
		if created != nil {
			id = created.ID
		}
		s.logger.Info().
			Str("community", communityID).
			Str("event", want.Name).
			Str("id", id).
			Time("start", draft.StartTime).
			Msg("Event created")
	}

	return result, nil
}

// Purge deletes every published event carrying the reserved name prefix.
// Events without the prefix are never touched.
func (s *Service) Purge(ctx context.Context, target interfaces.EventTarget) (models.PurgeResult, error) {
	var result models.PurgeResult

	communityID := target.CommunityID()
	lock, _ := s.community(communityID)
	lock.Lock()
	defer lock.Unlock()

	published, err := target.ListEvents(ctx)
	if err != nil {
		return result, fmt.Errorf("list events for %s: %w", communityID, err)
	}

	for _, ev := range published {
		if !ev.Owned() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := target.DeleteEvent(ctx, ev.ID); err != nil {
			result.Failed++
			s.logger.Warn().Err(err).Str("community", communityID).Str("event", ev.Name).Msg("Event delete failed")
			continue
		}
		result.Deleted++
	}

	s.logger.Info().
		Str("community", communityID).
		Int("deleted", result.Deleted).
		Int("failed", result.Failed).
		Msg("Published events purged")
	return result, nil
}
