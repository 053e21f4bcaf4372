package eventsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tickercal/internal/common"
	"github.com/bobmcallan/tickercal/internal/interfaces"
	"github.com/bobmcallan/tickercal/internal/models"
	"github.com/bobmcallan/tickercal/internal/services/reconcile"
	"github.com/bobmcallan/tickercal/internal/services/registry"
)

// --- mocks ---

type memStore struct {
	mu   sync.Mutex
	data []byte
}

func (m *memStore) ReadAll(ctx context.Context) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...), m.data != nil, nil
}

func (m *memStore) WriteAll(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Close() error { return nil }

type fakeFetcher struct {
	fetchFn func(ctx context.Context, ticker string) []models.MarketEvent
	mu      sync.Mutex
	calls   []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, ticker string) []models.MarketEvent {
	f.mu.Lock()
	f.calls = append(f.calls, ticker)
	f.mu.Unlock()
	return f.fetchFn(ctx, ticker)
}

type fakeTarget struct {
	id       string
	mu       sync.Mutex
	events   []models.PublishedEvent
	createFn func(draft models.EventDraft) error
}

func (f *fakeTarget) CommunityID() string { return f.id }

func (f *fakeTarget) ListEvents(ctx context.Context) ([]models.PublishedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PublishedEvent(nil), f.events...), nil
}

func (f *fakeTarget) CreateEvent(ctx context.Context, draft models.EventDraft) (*models.PublishedEvent, error) {
	if f.createFn != nil {
		if err := f.createFn(draft); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ev := models.PublishedEvent{ID: fmt.Sprintf("%s-%d", f.id, len(f.events)+1), Name: draft.Name, StartTime: draft.StartTime, EndTime: draft.EndTime}
	f.events = append(f.events, ev)
	return &ev, nil
}

func (f *fakeTarget) DeleteEvent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, ev := range f.events {
		if ev.ID == id {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeTarget) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, ev := range f.events {
		out = append(out, ev.Name)
	}
	return out
}

type fakeResolver struct {
	targets map[string]*fakeTarget
}

func (r *fakeResolver) Resolve(ctx context.Context, communityID string) (interfaces.EventTarget, error) {
	t, ok := r.targets[communityID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrCommunityUnresolvable, communityID)
	}
	return t, nil
}

// --- helpers ---

var reportDay = time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)

func eventFor(ticker string) []models.MarketEvent {
	return []models.MarketEvent{{
		Name:        models.EventName(ticker),
		Ticker:      ticker,
		OccursAt:    reportDay,
		Description: "Earnings reports for " + ticker + " on: 2024-04-20",
	}}
}

type fixture struct {
	svc      *Service
	registry *registry.Service
	fetcher  *fakeFetcher
	resolver *fakeResolver
}

func newFixture(t *testing.T, targets ...*fakeTarget) *fixture {
	t.Helper()
	logger := common.NewSilentLogger()
	reg := registry.NewService(&memStore{}, logger)
	fetcher := &fakeFetcher{fetchFn: func(ctx context.Context, ticker string) []models.MarketEvent {
		return eventFor(ticker)
	}}
	resolver := &fakeResolver{targets: map[string]*fakeTarget{}}
	for _, tg := range targets {
		resolver.targets[tg.id] = tg
	}
	rec := reconcile.NewService(logger, reconcile.WithSpacing(0))
	return &fixture{
		svc:      NewService(reg, fetcher, rec, resolver, logger),
		registry: reg,
		fetcher:  fetcher,
		resolver: resolver,
	}
}

func (f *fixture) track(t *testing.T, community string, tickers ...string) {
	t.Helper()
	for _, tk := range tickers {
		_, err := f.registry.Add(context.Background(), community, tk)
		require.NoError(t, err)
	}
}

// --- tests ---

func TestRunDailySync_PublishesForEveryCommunity(t *testing.T) {
	a := &fakeTarget{id: "a"}
	b := &fakeTarget{id: "b"}
	f := newFixture(t, a, b)
	f.track(t, "a", "AAPL", "MSFT")
	f.track(t, "b", "TSLA")

	summary, err := f.svc.RunDailySync(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 2, summary.Communities)
	assert.Equal(t, 3, summary.Tickers)
	assert.Equal(t, models.ReconcileResult{Created: 3}, summary.Events)
	assert.Equal(t, []string{"Earnings: AAPL", "Earnings: MSFT"}, a.names())
	assert.Equal(t, []string{"Earnings: TSLA"}, b.names())
	assert.False(t, f.svc.Running())
}

func TestRunDailySync_Idempotent(t *testing.T) {
	a := &fakeTarget{id: "a"}
	f := newFixture(t, a)
	f.track(t, "a", "AAPL")

	_, err := f.svc.RunDailySync(context.Background())
	require.NoError(t, err)
	summary, err := f.svc.RunDailySync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.ReconcileResult{Skipped: 1}, summary.Events)
	assert.Len(t, a.names(), 1)
}

func TestRunDailySync_PartialFailureIsolation(t *testing.T) {
	a := &fakeTarget{id: "a", createFn: func(models.EventDraft) error {
		return fmt.Errorf("%w: 500", common.ErrEventPublishRejected)
	}}
	b := &fakeTarget{id: "b"}
	f := newFixture(t, a, b)
	f.track(t, "a", "AAPL")
	f.track(t, "b", "AAPL")

	summary, err := f.svc.RunDailySync(context.Background())
	require.NoError(t, err)

	assert.Empty(t, a.names())
	assert.Equal(t, []string{"Earnings: AAPL"}, b.names())
	assert.Equal(t, models.ReconcileResult{Created: 1, Failed: 1}, summary.Events)
}

func TestRunDailySync_SkipsUnresolvableCommunity(t *testing.T) {
	b := &fakeTarget{id: "b"}
	f := newFixture(t, b)
	f.track(t, "gone", "AAPL")
	f.track(t, "b", "MSFT")

	summary, err := f.svc.RunDailySync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gone"}, summary.SkippedCommunities)
	assert.Equal(t, 1, summary.Communities)
	assert.Equal(t, []string{"Earnings: MSFT"}, b.names())
}

func TestRunDailySync_TickerWithoutEvents(t *testing.T) {
	a := &fakeTarget{id: "a"}
	f := newFixture(t, a)
	f.track(t, "a", "NOPE", "AAPL")
	f.fetcher.fetchFn = func(ctx context.Context, ticker string) []models.MarketEvent {
		if ticker == "NOPE" {
			return nil
		}
		return eventFor(ticker)
	}

	summary, err := f.svc.RunDailySync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TickersWithoutEvents)
	assert.Equal(t, []string{"Earnings: AAPL"}, a.names())
}

func TestRunDailySync_RecoversTickerPanic(t *testing.T) {
	a := &fakeTarget{id: "a"}
	f := newFixture(t, a)
	f.track(t, "a", "BOOM", "AAPL")
	f.fetcher.fetchFn = func(ctx context.Context, ticker string) []models.MarketEvent {
		if ticker == "BOOM" {
			panic("bad data")
		}
		return eventFor(ticker)
	}

	summary, err := f.svc.RunDailySync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ReconcileResult{Created: 1, Failed: 1}, summary.Events)
	assert.Equal(t, []string{"Earnings: AAPL"}, a.names())
}

func TestRunDailySync_CancelledBetweenTickers(t *testing.T) {
	a := &fakeTarget{id: "a"}
	f := newFixture(t, a)
	f.track(t, "a", "AAA", "BBB", "CCC")

	ctx, cancel := context.WithCancel(context.Background())
	f.fetcher.fetchFn = func(_ context.Context, ticker string) []models.MarketEvent {
		if ticker == "AAA" {
			cancel()
		}
		return eventFor(ticker)
	}

	summary, err := f.svc.RunDailySync(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.True(t, summary.Cancelled)
	assert.Equal(t, 1, summary.Tickers)
	assert.Equal(t, []string{"AAA"}, f.fetcher.calls)
}

func TestRunDailySync_RejectsOverlap(t *testing.T) {
	a := &fakeTarget{id: "a"}
	f := newFixture(t, a)
	f.track(t, "a", "AAPL")

	entered := make(chan struct{})
	release := make(chan struct{})
	f.fetcher.fetchFn = func(ctx context.Context, ticker string) []models.MarketEvent {
		close(entered)
		<-release
		return eventFor(ticker)
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.RunDailySync(context.Background())
		done <- err
	}()

	<-entered
	assert.True(t, f.svc.Running())
	_, err := f.svc.RunDailySync(context.Background())
	assert.ErrorIs(t, err, common.ErrSyncInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestOnTickerAdded_SyncsNewTickerOnly(t *testing.T) {
	a := &fakeTarget{id: "a"}
	f := newFixture(t, a)
	ctx := context.Background()

	change, err := f.svc.OnTickerAdded(ctx, "a", "aapl")
	require.NoError(t, err)
	assert.True(t, change.Changed)
	assert.Equal(t, "AAPL", change.Ticker)
	assert.Equal(t, 1, change.Events.Created)

	change, err = f.svc.OnTickerAdded(ctx, "a", "AAPL")
	require.NoError(t, err)
	assert.False(t, change.Changed)
	assert.Equal(t, []string{"AAPL"}, f.fetcher.calls, "duplicate add must not fetch")
	assert.Len(t, a.names(), 1)
}

func TestOnTickerAdded_SyncFailureKeepsTicker(t *testing.T) {
	f := newFixture(t) // community not resolvable
	ctx := context.Background()

	change, err := f.svc.OnTickerAdded(ctx, "a", "AAPL")
	require.NoError(t, err)
	assert.True(t, change.Changed)
	assert.NotEmpty(t, change.SyncError)

	list, err := f.svc.ListTickers(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, list)
}

func TestOnTickerAdded_InvalidTicker(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.OnTickerAdded(context.Background(), "a", " ")
	assert.ErrorIs(t, err, common.ErrInvalidTicker)
	assert.True(t, IsUserError(err))
}

func TestOnTickerRemoved_LeavesPublishedEvents(t *testing.T) {
	a := &fakeTarget{id: "a"}
	f := newFixture(t, a)
	ctx := context.Background()

	_, err := f.svc.OnTickerAdded(ctx, "a", "AAPL")
	require.NoError(t, err)

	change, err := f.svc.OnTickerRemoved(ctx, "a", "aapl")
	require.NoError(t, err)
	assert.True(t, change.Changed)

	change, err = f.svc.OnTickerRemoved(ctx, "a", "AAPL")
	require.NoError(t, err)
	assert.False(t, change.Changed)

	assert.Equal(t, []string{"Earnings: AAPL"}, a.names())
	list, err := f.svc.ListTickers(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPurgeAllPublishedEvents(t *testing.T) {
	a := &fakeTarget{id: "a", events: []models.PublishedEvent{
		{ID: "x", Name: "Earnings: AAPL"},
		{ID: "y", Name: "Book club"},
	}}
	f := newFixture(t, a)

	res, err := f.svc.PurgeAllPublishedEvents(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, models.PurgeResult{Deleted: 1}, res)
	assert.Equal(t, []string{"Book club"}, a.names())

	_, err = f.svc.PurgeAllPublishedEvents(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrCommunityUnresolvable)
}
