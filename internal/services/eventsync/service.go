// Package eventsync drives earnings event synchronization across communities
package eventsync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/interfaces"
	"github.com/bobmcallan/tickercal/internal/models"
)

// Compile-time interface check
var _ interfaces.SyncService = (*Service)(nil)

// Service implements SyncService
type Service struct {
	registry   interfaces.RegistryService
	fetcher    interfaces.EventFetcher
	reconciler interfaces.EventReconciler
	resolver   interfaces.TargetResolver
	logger     *common.Logger

	running atomic.Bool
	now     func() time.Time
}

// NewService creates a new sync service
func NewService(
	registry interfaces.RegistryService,
	fetcher interfaces.EventFetcher,
	reconciler interfaces.EventReconciler,
	resolver interfaces.TargetResolver,
	logger *common.Logger,
) *Service {
	return &Service{
		registry:   registry,
		fetcher:    fetcher,
		reconciler: reconciler,
		resolver:   resolver,
		logger:     logger,
		now:        time.Now,
	}
}

// Running reports whether a batch pass is in progress.
func (s *Service) Running() bool {
	return s.running.Load()
}

// RunDailySync walks every registered community and publishes missing events
// for each tracked ticker. One community or ticker failing never stops the
// others. Cancellation is checked between tickers; the summary covers the work
// done before it.
func (s *Service) RunDailySync(ctx context.Context) (*models.SyncSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, common.ErrSyncInProgress
	}
	defer s.running.Store(false)

	summary := &models.SyncSummary{
		RunID:     uuid.New().String(),
		StartedAt: s.now().UTC(),
	}
	log := s.logger.With().Str("run_id", summary.RunID).Logger()

	reg, err := s.registry.Snapshot(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Earnings sync aborted: registry unavailable")
		return nil, fmt.Errorf("registry snapshot: %w", err)
	}

	log.Info().Int("communities", len(reg)).Msg("Earnings sync started")

	for _, communityID := range reg.Communities() {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		target, err := s.resolver.Resolve(ctx, communityID)
		if err != nil {
			summary.SkippedCommunities = append(summary.SkippedCommunities, communityID)
			log.Warn().Err(err).Str("community", communityID).Msg("Community skipped")
			continue
		}
		summary.Communities++

		for _, ticker := range reg[communityID] {
			if ctx.Err() != nil {
				summary.Cancelled = true
				break
			}
			summary.Tickers++

			res, found, err := s.syncOne(ctx, target, ticker)
			if err != nil {
				log.Warn().Err(err).Str("community", communityID).Str("ticker", ticker).Msg("Ticker sync failed")
			}
			if !found {
				summary.TickersWithoutEvents++
			}
			summary.Events.Add(res)
		}
		if summary.Cancelled {
			break
		}
	}

	summary.Elapsed = s.now().Sub(summary.StartedAt)

	evt := log.Info()
	if summary.Cancelled {
		evt = log.Warn().Bool("cancelled", true)
	}
	evt.Int("communities", summary.Communities).
		Strs("skipped_communities", summary.SkippedCommunities).
		Int("tickers", summary.Tickers).
		Int("without_events", summary.TickersWithoutEvents).
		Int("created", summary.Events.Created).
		Int("skipped", summary.Events.Skipped).
		Int("failed", summary.Events.Failed).
		Dur("elapsed", summary.Elapsed).
		Msg("Earnings sync finished")

	if summary.Cancelled {
		return summary, ctx.Err()
	}
	return summary, nil
}

// SyncTicker publishes the earnings event of one ticker to one community.
func (s *Service) SyncTicker(ctx context.Context, community, ticker string) (models.ReconcileResult, error) {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return models.ReconcileResult{}, common.ErrInvalidTicker
	}

	target, err := s.resolver.Resolve(ctx, community)
	if err != nil {
		return models.ReconcileResult{}, err
	}

	res, _, err := s.syncOne(ctx, target, ticker)
	return res, err
}

// syncOne fetches and reconciles a single ticker. found reports whether the
// provider yielded any event.
func (s *Service) syncOne(ctx context.Context, target interfaces.EventTarget, ticker string) (res models.ReconcileResult, found bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = models.ReconcileResult{Failed: 1}
			found = true
			err = fmt.Errorf("ticker %s panicked: %v", ticker, r)
		}
	}()

	events := s.fetcher.Fetch(ctx, ticker)
	if len(events) == 0 {
		return models.ReconcileResult{}, false, nil
	}

	res, err = s.reconciler.Reconcile(ctx, target, events)
	return res, true, err
}

// OnTickerAdded records the ticker and, when it is new, publishes its event
// right away. A sync failure is reported on the change, not as an error; the
// ticker stays registered and the next batch pass retries it.
func (s *Service) OnTickerAdded(ctx context.Context, community, ticker string) (*models.TickerChange, error) {
	ticker = models.NormalizeTicker(ticker)
	added, err := s.registry.Add(ctx, community, ticker)
	if err != nil {
		return nil, err
	}

	change := &models.TickerChange{Community: community, Ticker: ticker, Changed: added}
	if !added {
		return change, nil
	}

	res, err := s.SyncTicker(ctx, community, ticker)
	change.Events = res
	if err != nil {
		change.SyncError = err.Error()
		s.logger.Warn().Err(err).Str("community", community).Str("ticker", ticker).Msg("Sync after add failed")
	}
	return change, nil
}

// OnTickerRemoved stops tracking the ticker. Its published event stays; use
// PurgeAllPublishedEvents to clear events.
func (s *Service) OnTickerRemoved(ctx context.Context, community, ticker string) (*models.TickerChange, error) {
	ticker = models.NormalizeTicker(ticker)
	removed, err := s.registry.Remove(ctx, community, ticker)
	if err != nil {
		return nil, err
	}
	return &models.TickerChange{Community: community, Ticker: ticker, Changed: removed}, nil
}

// ListTickers returns the community's tracked tickers.
func (s *Service) ListTickers(ctx context.Context, community string) ([]string, error) {
	return s.registry.List(ctx, community)
}

// PurgeAllPublishedEvents deletes every owned event in the community.
func (s *Service) PurgeAllPublishedEvents(ctx context.Context, community string) (models.PurgeResult, error) {
	target, err := s.resolver.Resolve(ctx, community)
	if err != nil {
		return models.PurgeResult{}, err
	}
	return s.reconciler.Purge(ctx, target)
}

// IsUserError reports whether err is caused by the request rather than by a
// dependency.
func IsUserError(err error) bool {
	return errors.Is(err, common.ErrInvalidTicker) || errors.Is(err, common.ErrCommunityUnresolvable)
}
