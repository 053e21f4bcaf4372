package earnings

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/interfaces"
	"github.com/bobmcallan/tickercal/internal/models"
)

type mockMarketData struct {
	calendarFn func(ctx context.Context, ticker string) (models.ProviderCalendar, error)
	calls      []string
}

func (m *mockMarketData) GetEarningsCalendar(ctx context.Context, ticker string) (models.ProviderCalendar, error) {
	m.calls = append(m.calls, ticker)
	return m.calendarFn(ctx, ticker)
}

func (m *mockMarketData) GetEOD(ctx context.Context, ticker string, opts ...interfaces.EODOption) (*models.EODResponse, error) {
	return nil, errors.New("not implemented")
}

func (m *mockMarketData) GetIntraday(ctx context.Context, ticker, interval string, from, to time.Time) ([]models.IntradayBar, error) {
	return nil, errors.New("not implemented")
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fetchWith(cal models.ProviderCalendar, err error) []models.MarketEvent {
	client := &mockMarketData{calendarFn: func(ctx context.Context, ticker string) (models.ProviderCalendar, error) {
		return cal, err
	}}
	return NewFetcher(client, common.NewSilentLogger()).Fetch(context.Background(), "abc")
}

func TestFetch_CompositeShape(t *testing.T) {
	events := fetchWith(models.CompositeCalendar{Dates: []time.Time{
		day(2024, 5, 1),
		time.Date(2024, 4, 20, 13, 30, 0, 0, time.UTC),
	}}, nil)

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "Earnings: ABC", ev.Name)
	assert.Equal(t, "ABC", ev.Ticker)
	assert.Equal(t, day(2024, 4, 20), ev.OccursAt)
	assert.Equal(t, day(2024, 4, 20).Add(time.Hour), ev.EndsAt())
	assert.Equal(t, "Earnings reports for ABC on: 2024-04-20, 2024-05-01", ev.Description)
}

func TestFetch_TabularShape(t *testing.T) {
	events := fetchWith(models.TabularCalendar{Rows: []models.CalendarRow{
		{Code: "ABC.US", ReportDate: day(2024, 5, 1)},
		{Code: "ABC.US", ReportDate: day(2024, 4, 20)},
		{Code: "ABC.US", ReportDate: day(2024, 5, 1)},
	}}, nil)

	require.Len(t, events, 1)
	assert.Equal(t, day(2024, 4, 20), events[0].OccursAt)
	assert.Equal(t, "Earnings reports for ABC on: 2024-04-20, 2024-05-01", events[0].Description)
	assert.Equal(t, []time.Time{day(2024, 4, 20), day(2024, 5, 1)}, events[0].CandidateDates)
}

func TestFetch_BothShapesAgree(t *testing.T) {
	a := fetchWith(models.CompositeCalendar{Dates: []time.Time{day(2024, 5, 1), day(2024, 4, 20)}}, nil)
	b := fetchWith(models.TabularCalendar{Rows: []models.CalendarRow{
		{ReportDate: day(2024, 5, 1)},
		{ReportDate: day(2024, 4, 20)},
	}}, nil)
	assert.Equal(t, a, b)
}

func TestFetch_NoEvents(t *testing.T) {
	tests := []struct {
		name string
		cal  models.ProviderCalendar
		err  error
	}{
		{"nil calendar", nil, nil},
		{"empty calendar", models.EmptyCalendar{}, nil},
		{"composite without dates", models.CompositeCalendar{}, nil},
		{"provider unavailable", nil, fmt.Errorf("%w: timeout", common.ErrProviderUnavailable)},
		{"unrecognized payload", nil, fmt.Errorf("%w: huh", common.ErrProviderDataUnrecognized)},
		{"cancelled", nil, context.Canceled},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Empty(t, fetchWith(tc.cal, tc.err))
		})
	}
}

func TestFetch_RecoversPanic(t *testing.T) {
	client := &mockMarketData{calendarFn: func(ctx context.Context, ticker string) (models.ProviderCalendar, error) {
		panic("provider exploded")
	}}
	f := NewFetcher(client, common.NewSilentLogger())

	assert.NotPanics(t, func() {
		assert.Empty(t, f.Fetch(context.Background(), "ABC"))
	})
}

func TestFetch_EmptyTickerSkipsProvider(t *testing.T) {
	client := &mockMarketData{calendarFn: func(ctx context.Context, ticker string) (models.ProviderCalendar, error) {
		return models.EmptyCalendar{}, nil
	}}
	f := NewFetcher(client, common.NewSilentLogger())

	assert.Empty(t, f.Fetch(context.Background(), " "))
	assert.Empty(t, client.calls)
}

func TestFetch_PassesNormalizedTicker(t *testing.T) {
	client := &mockMarketData{calendarFn: func(ctx context.Context, ticker string) (models.ProviderCalendar, error) {
		return models.EmptyCalendar{}, nil
	}}
	NewFetcher(client, common.NewSilentLogger()).Fetch(context.Background(), " msft ")
	assert.Equal(t, []string{"MSFT"}, client.calls)
}

func TestBuildEvent_NonUTCDates(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	ev, ok := BuildEvent("abc", models.CompositeCalendar{Dates: []time.Time{time.Date(2024, 4, 20, 22, 0, 0, 0, ny)}})
	require.True(t, ok)
	assert.Equal(t, day(2024, 4, 20), ev.OccursAt)
}
