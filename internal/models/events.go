package models

import (
	"strings"
	"time"
)

const (
	// EventPrefix marks every event this service owns. Purge matches on it.
	EventPrefix = "Earnings:"

	// EventDuration is the fixed length of a published event. The events
	// service rejects zero-length events; the value is not a real session length.
	EventDuration = time.Hour

	// DateLayout is used in descriptions and provider payloads.
	DateLayout = "2006-01-02"
)

// NormalizeTicker trims and upper-cases a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// EventName returns the identity key of the earnings event for a ticker.
func EventName(ticker string) string {
	return EventPrefix + " " + NormalizeTicker(ticker)
}

// MarketEvent is one upcoming earnings disclosure derived from provider data.
type MarketEvent struct {
	Name           string      `json:"name"`
	Ticker         string      `json:"ticker"`
	OccursAt       time.Time   `json:"occurs_at"`
	Description    string      `json:"description"`
	CandidateDates []time.Time `json:"candidate_dates"`
}

// EndsAt returns the fabricated end time of the event.
func (e MarketEvent) EndsAt() time.Time {
	return e.OccursAt.Add(EventDuration)
}

// PublishedEvent is an event as read back from the scheduled-events service.
type PublishedEvent struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Description string    `json:"description,omitempty"`
}

// Owned reports whether the event carries the reserved prefix.
func (e PublishedEvent) Owned() bool {
	return strings.HasPrefix(e.Name, EventPrefix)
}

// EventDraft is the payload for creating an external, community-only event.
type EventDraft struct {
	Name        string    `json:"name"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
}

// ReconcileResult counts the outcome of one reconciliation pass.
type ReconcileResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Add accumulates another result.
func (r *ReconcileResult) Add(other ReconcileResult) {
	r.Created += other.Created
	r.Skipped += other.Skipped
	r.Failed += other.Failed
}

// PurgeResult counts deletions of owned events.
type PurgeResult struct {
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// TickerChange is the outcome of a registry mutation triggered by a user.
type TickerChange struct {
	Community string          `json:"community"`
	Ticker    string          `json:"ticker"`
	Changed   bool            `json:"changed"`
	Events    ReconcileResult `json:"events"`
	SyncError string          `json:"sync_error,omitempty"`
}

// SyncSummary describes one batch pass over every community.
type SyncSummary struct {
	RunID                string          `json:"run_id"`
	StartedAt            time.Time       `json:"started_at"`
	Elapsed              time.Duration   `json:"elapsed"`
	Communities          int             `json:"communities"`
	SkippedCommunities   []string        `json:"skipped_communities,omitempty"`
	Tickers              int             `json:"tickers"`
	TickersWithoutEvents int             `json:"tickers_without_events"`
	Events               ReconcileResult `json:"events"`
	Cancelled            bool            `json:"cancelled"`
}
