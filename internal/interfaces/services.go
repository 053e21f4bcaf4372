package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/tickercal/internal/models"
)

// RegistryService owns the community -> tickers registry
type RegistryService interface {
	Load(ctx context.Context) (models.Registry, error)
	Save(ctx context.Context, registry models.Registry) error
	Add(ctx context.Context, community, ticker string) (bool, error)
	Remove(ctx context.Context, community, ticker string) (bool, error)
	List(ctx context.Context, community string) ([]string, error)
	Snapshot(ctx context.Context) (models.Registry, error)
}

// EventFetcher turns provider data into market events
type EventFetcher interface {
	// Fetch never fails; provider problems are logged and yield no events.
	Fetch(ctx context.Context, ticker string) []models.MarketEvent
}

// EventReconciler publishes missing events to a community
type EventReconciler interface {
	Reconcile(ctx context.Context, target EventTarget, desired []models.MarketEvent) (models.ReconcileResult, error)
	Purge(ctx context.Context, target EventTarget) (models.PurgeResult, error)
}

// SyncService is the trigger surface used by command handlers, the HTTP API
// and the scheduler.
type SyncService interface {
	RunDailySync(ctx context.Context) (*models.SyncSummary, error)
	SyncTicker(ctx context.Context, community, ticker string) (models.ReconcileResult, error)
	OnTickerAdded(ctx context.Context, community, ticker string) (*models.TickerChange, error)
	OnTickerRemoved(ctx context.Context, community, ticker string) (*models.TickerChange, error)
	ListTickers(ctx context.Context, community string) ([]string, error)
	PurgeAllPublishedEvents(ctx context.Context, community string) (models.PurgeResult, error)
}

// ChartService renders price charts
type ChartService interface {
	Render(ctx context.Context, ticker, period string) (*models.Chart, error)
}

// MarketStatusService describes the exchange session relative to a moment.
type MarketStatusService interface {
	Status(now time.Time) string
}
