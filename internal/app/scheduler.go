package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/interfaces"
)

// Job tags
const (
	JobEarningsSync = "earnings-sync"
	JobMarketStatus = "market-status"
)

// Scheduler runs the periodic earnings sync and presence refresh once the chat
// connection is ready. Each job runs at most once at a time.
type Scheduler struct {
	cron     *gocron.Scheduler
	sync     interfaces.SyncService
	status   interfaces.MarketStatusService
	presence interfaces.PresenceUpdater
	ready    <-chan struct{}
	logger   *common.Logger

	syncInterval   time.Duration
	statusInterval time.Duration
	now            func() time.Time

	mu         sync.Mutex
	started    bool
	ctx        context.Context
	cancel     context.CancelFunc
	lastStatus string
}

// NewScheduler creates a scheduler. presence and status may be nil, in which
// case the market-status job is not registered.
func NewScheduler(
	syncService interfaces.SyncService,
	status interfaces.MarketStatusService,
	presence interfaces.PresenceUpdater,
	ready <-chan struct{},
	cfg common.SyncConfig,
	logger *common.Logger,
) *Scheduler {
	return &Scheduler{
		cron:           gocron.NewScheduler(time.UTC),
		sync:           syncService,
		status:         status,
		presence:       presence,
		ready:          ready,
		logger:         logger,
		syncInterval:   cfg.GetInterval(),
		statusInterval: cfg.GetStatusInterval(),
		now:            time.Now,
	}
}

// Start waits for the readiness gate, then schedules both jobs. The first
// sync runs immediately. Calling Start again is a no-op. It returns ctx's
// error if ctx ends before the gate opens.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.ready != nil {
		select {
		case <-s.ready:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	// Stop may have run while we waited on the gate.
	if err := ctx.Err(); err != nil {
		return err
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	if _, err := s.cron.Every(s.syncInterval).Tag(JobEarningsSync).SingletonMode().Do(s.runEarningsSync); err != nil {
		s.cancel()
		return err
	}
	if s.status != nil && s.presence != nil {
		if _, err := s.cron.Every(s.statusInterval).Tag(JobMarketStatus).SingletonMode().Do(s.refreshStatus); err != nil {
			s.cancel()
			s.cron.Clear()
			return err
		}
	}

	s.cron.StartAsync()
	s.started = true

	s.logger.Info().
		Dur("sync_interval", s.syncInterval).
		Dur("status_interval", s.statusInterval).
		Msg("Scheduler started")
	return nil
}

// Stop cancels running jobs, stops scheduling and drops the job list so a
// later Start registers a fresh set.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.cancel()
	s.cron.Stop()
	s.cron.Clear()
	s.started = false
	s.lastStatus = ""
	s.logger.Info().Msg("Scheduler stopped")
}

// RunNow triggers an out-of-schedule earnings sync. It does not wait for the
// run to finish.
func (s *Scheduler) RunNow() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("scheduler not started")
	}
	return s.cron.RunByTag(JobEarningsSync)
}

func (s *Scheduler) runEarningsSync() {
	summary, err := s.sync.RunDailySync(s.ctx)
	switch {
	case errors.Is(err, common.ErrSyncInProgress):
		s.logger.Info().Msg("Earnings sync already running, skipping")
	case errors.Is(err, context.Canceled):
		s.logger.Info().Msg("Earnings sync cancelled")
	case err != nil:
		s.logger.Error().Err(err).Msg("Earnings sync failed")
	case summary != nil:
		s.logger.Debug().Str("run_id", summary.RunID).Msg("Earnings sync job complete")
	}
}

// ResetPresence forgets the last pushed status. The gateway drops presence
// when a session is re-established, so the next refresh must push again.
// Once started, the refresh runs immediately.
func (s *Scheduler) ResetPresence() {
	s.mu.Lock()
	s.lastStatus = ""
	started := s.started
	s.mu.Unlock()

	if started && s.status != nil && s.presence != nil {
		if err := s.cron.RunByTag(JobMarketStatus); err != nil {
			s.logger.Warn().Err(err).Msg("Presence refresh failed")
		}
	}
}

func (s *Scheduler) refreshStatus() {
	line := s.status.Status(s.now())

	s.mu.Lock()
	unchanged := line == s.lastStatus
	s.mu.Unlock()
	if unchanged {
		return
	}

	if err := s.presence.UpdateStatus(line); err != nil {
		s.logger.Warn().Err(err).Msg("Presence update failed")
		return
	}

	s.mu.Lock()
	s.lastStatus = line
	s.mu.Unlock()
}
