// Package models defines data structures for tickercal
package models

import (
	"sort"
	"time"
)

// EODBar represents a single day's price data
type EODBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjusted_close"`
	Volume   int64     `json:"volume"`
}

// EODResponse is the EOD price history for one ticker
type EODResponse struct {
	Data []EODBar `json:"data"`
}

// IntradayBar is one intraday candle.
type IntradayBar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PricePoint is a single close price used for charting.
type PricePoint struct {
	Time  time.Time
	Close float64
	High  float64
	Low   float64
}

// ProviderCalendar is the earnings calendar returned by a market data provider.
// The provider answers in more than one shape; every shape reduces to a list of
// candidate report dates. Implementations are limited to this package.
type ProviderCalendar interface {
	// EarningsDates returns the candidate report dates as reported, unsorted.
	EarningsDates() []time.Time
	isProviderCalendar()
}

// CompositeCalendar is a single record carrying a list of candidate dates.
type CompositeCalendar struct {
	Dates []time.Time
}

func (c CompositeCalendar) EarningsDates() []time.Time { return c.Dates }
func (CompositeCalendar) isProviderCalendar()          {}

// CalendarRow is one row of a tabular earnings calendar.
type CalendarRow struct {
	Code              string
	ReportDate        time.Time
	PeriodEnd         time.Time
	BeforeAfterMarket string
	Estimate          *float64
}

// TabularCalendar is a row set, one candidate date per row.
type TabularCalendar struct {
	Rows []CalendarRow
}

func (c TabularCalendar) EarningsDates() []time.Time {
	dates := make([]time.Time, 0, len(c.Rows))
	for _, r := range c.Rows {
		if !r.ReportDate.IsZero() {
			dates = append(dates, r.ReportDate)
		}
	}
	return dates
}

func (TabularCalendar) isProviderCalendar() {}

// EmptyCalendar means the provider knows of no upcoming report.
type EmptyCalendar struct{}

func (EmptyCalendar) EarningsDates() []time.Time { return nil }
func (EmptyCalendar) isProviderCalendar()        {}

// NormalizeDates truncates every date to its UTC day, drops zero values and
// duplicates, and returns them ascending.
func NormalizeDates(dates []time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(dates))
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		if seen[day] {
			continue
		}
		seen[day] = true
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
