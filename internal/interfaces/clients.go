// Package interfaces defines service contracts for tickercal
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/tickercal/internal/models"
)

// MarketDataClient provides access to the market data provider
type MarketDataClient interface {
	// GetEarningsCalendar returns upcoming earnings dates for a ticker.
	// An unknown ticker yields models.EmptyCalendar, not an error.
	GetEarningsCalendar(ctx context.Context, ticker string) (models.ProviderCalendar, error)

	// GetEOD retrieves end-of-day price data
	GetEOD(ctx context.Context, ticker string, opts ...EODOption) (*models.EODResponse, error)

	// GetIntraday retrieves intraday candles for interval "1m", "5m" or "1h"
	GetIntraday(ctx context.Context, ticker, interval string, from, to time.Time) ([]models.IntradayBar, error)
}

// EODOption configures EOD data requests
type EODOption func(*EODParams)

// EODParams holds EOD query parameters
type EODParams struct {
	From   time.Time
	To     time.Time
	Period string // d=daily, w=weekly, m=monthly
	Order  string // a=ascending, d=descending
}

// WithDateRange sets the date range for EOD query
func WithDateRange(from, to time.Time) EODOption {
	return func(p *EODParams) {
		p.From = from
		p.To = to
	}
}

// WithPeriod sets the period for EOD query
func WithPeriod(period string) EODOption {
	return func(p *EODParams) {
		p.Period = period
	}
}

// EventTarget is one community's scheduled-events surface.
type EventTarget interface {
	CommunityID() string

	// ListEvents returns every event currently scheduled in the community.
	ListEvents(ctx context.Context) ([]models.PublishedEvent, error)

	// CreateEvent publishes an external event.
	CreateEvent(ctx context.Context, draft models.EventDraft) (*models.PublishedEvent, error)

	// DeleteEvent removes an event by id.
	DeleteEvent(ctx context.Context, eventID string) error
}

// TargetResolver maps a community id to its event surface.
// Returns common.ErrCommunityUnresolvable when the community cannot be reached.
type TargetResolver interface {
	Resolve(ctx context.Context, communityID string) (EventTarget, error)
}

// PresenceUpdater publishes a short status line for the bot.
type PresenceUpdater interface {
	UpdateStatus(status string) error
}
