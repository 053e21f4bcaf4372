// Package earnings turns provider earnings calendars into market events
package earnings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/interfaces"
	"github.com/bobmcallan/tickercal/internal/models"
)

// Compile-time interface check
var _ interfaces.EventFetcher = (*Fetcher)(nil)

// Fetcher implements EventFetcher
type Fetcher struct {
	client interfaces.MarketDataClient
	logger *common.Logger
}

// NewFetcher creates a new earnings event fetcher
func NewFetcher(client interfaces.MarketDataClient, logger *common.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		logger: logger,
	}
}

// Fetch returns at most one event for ticker, placed on the earliest upcoming
// report date. Provider failures are logged and produce no events.
func (f *Fetcher) Fetch(ctx context.Context, ticker string) (events []models.MarketEvent) {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			f.logger.Error().Str("ticker", ticker).Interface("panic", r).Msg("Earnings fetch panicked")
			events = nil
		}
	}()

	cal, err := f.client.GetEarningsCalendar(ctx, ticker)
	if err != nil {
		evt := f.logger.Warn()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			evt = f.logger.Debug()
		}
		evt.Err(err).
			Str("ticker", ticker).
			Bool("unavailable", errors.Is(err, common.ErrProviderUnavailable)).
			Bool("unrecognized", errors.Is(err, common.ErrProviderDataUnrecognized)).
			Msg("Earnings calendar fetch failed")
		return nil
	}

	event, ok := BuildEvent(ticker, cal)
	if !ok {
		f.logger.Debug().Str("ticker", ticker).Msg("No upcoming earnings dates")
		return nil
	}

	f.logger.Debug().
		Str("ticker", ticker).
		Str("event", event.Name).
		Time("occurs_at", event.OccursAt).
		Int("candidates", len(event.CandidateDates)).
		Msg("Earnings event built")
	return []models.MarketEvent{event}
}

// BuildEvent derives the single earnings event for ticker from a calendar.
// It reports false when the calendar holds no usable dates.
func BuildEvent(ticker string, cal models.ProviderCalendar) (models.MarketEvent, bool) {
	if cal == nil {
		return models.MarketEvent{}, false
	}
	dates := models.NormalizeDates(cal.EarningsDates())
	if len(dates) == 0 {
		return models.MarketEvent{}, false
	}

	ticker = models.NormalizeTicker(ticker)
	return models.MarketEvent{
		Name:           models.EventName(ticker),
		Ticker:         ticker,
		OccursAt:       dates[0],
		Description:    Describe(ticker, dates),
		CandidateDates: dates,
	}, true
}

// Describe renders "Earnings reports for ABC on: 2024-04-20, 2024-05-01".
func Describe(ticker string, dates []time.Time) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.Format(models.DateLayout)
	}
	return fmt.Sprintf("Earnings reports for %s on: %s", ticker, strings.Join(parts, ", "))
}
