package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angas/pricewatch-go/types"
)

// fakeProvider serves scripted results in order, then repeats the last one.
type fakeProvider struct {
	results []fakeResult
	calls   atomic.Int32
	mu      sync.Mutex
	gate    chan struct{} // when set, each call blocks until released
}

type fakeResult struct {
	series types.PriceSeries
	err    error
}

func (f *fakeProvider) GetHomes(ctx context.Context) ([]types.Household, error) {
	return []types.Household{{ID: "home-1", Name: "Test Home"}}, nil
}

func (f *fakeProvider) GetPriceSeries(ctx context.Context, householdID string) (types.PriceSeries, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	n := int(f.calls.Add(1)) - 1
	if n >= len(f.results) {
		n = len(f.results) - 1
	}
	r := f.results[n]
	return r.series, r.err
}

func (f *fakeProvider) setGate(gate chan struct{}) {
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()
}

func seriesWithTotals(totals ...float64) types.PriceSeries {
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	entries := make([]types.PriceEntry, len(totals))
	for i, total := range totals {
		entries[i] = types.PriceEntry{StartsAt: start.Add(time.Duration(i) * time.Hour), Total: total}
	}
	return types.PriceSeries{Today: entries}
}

func newTestCoordinator(provider types.PriceProvider) *Coordinator {
	c := New(slog.Default(), provider, types.Household{ID: "home-1", Name: "Test Home"}, nil)
	c.baseDelay = time.Millisecond
	return c
}

func transientErr() error {
	return types.NewFetchError(types.FetchTransport, errors.New("connection refused"))
}

func TestUninitializedUntilFirstSuccess(t *testing.T) {
	provider := &fakeProvider{results: []fakeResult{{err: transientErr()}}}
	c := newTestCoordinator(provider)

	if err := c.Refresh(context.Background()); err == nil {
		t.Error("expected the cycle to report failure")
	}
	if _, ok := c.Current(); ok {
		t.Error("snapshot must stay uninitialized when no fetch ever succeeded")
	}
	if got := provider.calls.Load(); got != 3 {
		t.Errorf("transient failures should be retried 3 times, got %d calls", got)
	}
}

func TestCachedFallbackThenRecovery(t *testing.T) {
	first := seriesWithTotals(0.1, 0.2, 0.3)
	second := seriesWithTotals(0.4, 0.5, 0.6)
	provider := &fakeProvider{results: []fakeResult{
		{series: first},
		// One full failed cycle: three attempts.
		{err: transientErr()}, {err: transientErr()}, {err: transientErr()},
		{series: second},
	}}
	c := newTestCoordinator(provider)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh failed: %v", err)
	}
	snap, ok := c.Current()
	if !ok || snap.Freshness != FreshnessLive {
		t.Fatalf("expected a live snapshot, got %+v", snap)
	}
	liveFetchedAt := snap.FetchedAt

	if err := c.Refresh(context.Background()); err == nil {
		t.Error("expected the failed cycle to report its error")
	}
	snap, ok = c.Current()
	if !ok {
		t.Fatal("snapshot must survive a failed cycle")
	}
	if snap.Freshness != FreshnessCached {
		t.Errorf("got freshness %q, wanted cached", snap.Freshness)
	}
	if snap.Warning == "" {
		t.Error("a degraded snapshot must carry a warning")
	}
	if !snap.FetchedAt.Equal(liveFetchedAt) {
		t.Error("fetchedAt must not move on failure")
	}
	if len(snap.Series.Today) != 3 || snap.Series.Today[0].Total != 0.1 {
		t.Error("the cached series must equal the last successful fetch")
	}

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("recovery refresh failed: %v", err)
	}
	snap, _ = c.Current()
	if snap.Freshness != FreshnessLive {
		t.Errorf("got freshness %q after recovery, wanted live", snap.Freshness)
	}
	if snap.Warning != "" {
		t.Error("recovery must clear the warning")
	}
	if !snap.FetchedAt.After(liveFetchedAt) {
		t.Error("recovery must update fetchedAt")
	}
	if snap.Series.Today[0].Total != 0.4 {
		t.Error("recovery must swap in the new series")
	}
}

func TestAuthFailureNotRetried(t *testing.T) {
	provider := &fakeProvider{results: []fakeResult{
		{err: types.NewFetchError(types.FetchAuth, errors.New("got status 401 Unauthorized"))},
	}}
	c := newTestCoordinator(provider)

	err := c.Refresh(context.Background())
	var fetchErr *types.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Kind != types.FetchAuth {
		t.Fatalf("expected an auth error, got %v", err)
	}
	if got := provider.calls.Load(); got != 1 {
		t.Errorf("auth failures must not be retried, got %d calls", got)
	}
}

func TestOverlappingRefreshSuppressed(t *testing.T) {
	provider := &fakeProvider{
		results: []fakeResult{{series: seriesWithTotals(0.1)}},
		gate:    make(chan struct{}),
	}
	c := newTestCoordinator(provider)

	done := make(chan error, 1)
	go func() { done <- c.Refresh(context.Background()) }()

	// Wait until the first cycle is inside the provider call.
	for !c.inFlight.Load() {
		time.Sleep(time.Millisecond)
	}

	if err := c.Refresh(context.Background()); err != nil {
		t.Errorf("suppressed refresh should be a no-op, got %v", err)
	}

	close(provider.gate)
	if err := <-done; err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	if got := provider.calls.Load(); got != 1 {
		t.Errorf("overlapping refresh must not reach the provider, got %d calls", got)
	}
}

func TestCancellationAbandonsRetries(t *testing.T) {
	provider := &fakeProvider{results: []fakeResult{{err: transientErr()}}}
	c := New(slog.Default(), provider, types.Household{ID: "home-1"}, nil)
	c.baseDelay = time.Hour // cancellation must win over the backoff wait

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Refresh(ctx) }()

	for provider.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("refresh did not return after cancellation")
	}
	if _, ok := c.Current(); ok {
		t.Error("an abandoned cycle must leave no snapshot behind")
	}
}

func TestOnUpdateNotified(t *testing.T) {
	provider := &fakeProvider{results: []fakeResult{
		{series: seriesWithTotals(0.1)},
		{err: transientErr()}, {err: transientErr()}, {err: transientErr()},
	}}

	var updates []Snapshot
	c := New(slog.Default(), provider, types.Household{ID: "home-1"}, func(h types.Household, snap Snapshot) {
		updates = append(updates, snap)
	})
	c.baseDelay = time.Millisecond

	c.Refresh(context.Background())
	c.Refresh(context.Background())

	if len(updates) != 2 {
		t.Fatalf("got %d updates, wanted 2 (live then cached)", len(updates))
	}
	if updates[0].Freshness != FreshnessLive || updates[1].Freshness != FreshnessCached {
		t.Errorf("got freshness sequence %q, %q", updates[0].Freshness, updates[1].Freshness)
	}
}

func TestManagerRegisterAndDeregister(t *testing.T) {
	provider := &fakeProvider{results: []fakeResult{{series: seriesWithTotals(0.1)}}}
	m := NewManager(provider, nil)

	if err := m.Register(context.Background(), types.Household{ID: "home-1", Name: "Test Home"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	c, ok := m.Coordinator("home-1")
	if !ok {
		t.Fatal("coordinator missing after registration")
	}
	if snap, ok := c.Current(); !ok || snap.Freshness != FreshnessLive {
		t.Error("registration should perform the first fetch")
	}
	if got := len(m.Households()); got != 1 {
		t.Errorf("got %d households, wanted 1", got)
	}

	m.Deregister("home-1")
	if _, ok := m.Coordinator("home-1"); ok {
		t.Error("coordinator still present after deregistration")
	}
}

func TestManagerRegisterSurvivesTransientFailure(t *testing.T) {
	provider := &fakeProvider{results: []fakeResult{{err: transientErr()}}}
	m := NewManager(provider, nil)

	if err := m.Register(context.Background(), types.Household{ID: "home-1"}); err != nil {
		t.Fatalf("transient failure must not abort registration: %v", err)
	}
	if _, ok := m.Coordinator("home-1"); !ok {
		t.Error("household should be registered even though uninitialized")
	}
}

func TestStopAbandonsInFlightRefresh(t *testing.T) {
	provider := &fakeProvider{
		results: []fakeResult{{series: seriesWithTotals(0.1)}},
		gate:    make(chan struct{}),
	}
	var updates atomic.Int32
	c := New(slog.Default(), provider, types.Household{ID: "home-1"}, func(types.Household, Snapshot) {
		updates.Add(1)
	})
	c.baseDelay = time.Millisecond

	done := make(chan error, 1)
	go func() { done <- c.Refresh(context.Background()) }()

	for !c.inFlight.Load() {
		time.Sleep(time.Millisecond)
	}
	c.Stop()
	close(provider.gate)

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("refresh did not return after stop")
	}
	if _, ok := c.Current(); ok {
		t.Error("a stopped coordinator must not store a snapshot")
	}
	if got := updates.Load(); got != 0 {
		t.Errorf("onUpdate fired %d time(s) after stop", got)
	}
}

func TestDeregisterAbandonsInFlightRefresh(t *testing.T) {
	provider := &fakeProvider{results: []fakeResult{{series: seriesWithTotals(0.1)}}}
	var updates atomic.Int32
	m := NewManager(provider, func(types.Household, Snapshot) {
		updates.Add(1)
	})

	if err := m.Register(context.Background(), types.Household{ID: "home-1"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if got := updates.Load(); got != 1 {
		t.Fatalf("got %d updates after registration, wanted 1", got)
	}

	c, ok := m.Coordinator("home-1")
	if !ok {
		t.Fatal("coordinator missing after registration")
	}

	// Block the next fetch inside the provider, then pull the household out
	// from under the running cycle.
	gate := make(chan struct{})
	provider.setGate(gate)
	m.RefreshAll(context.Background())
	for !c.inFlight.Load() {
		time.Sleep(time.Millisecond)
	}
	m.Deregister("home-1")
	close(gate)

	deadline := time.Now().Add(time.Second)
	for c.inFlight.Load() {
		if time.Now().After(deadline) {
			t.Fatal("refresh cycle did not finish")
		}
		time.Sleep(time.Millisecond)
	}
	if got := updates.Load(); got != 1 {
		t.Errorf("onUpdate fired %d time(s) after deregistration, wanted none", got-1)
	}
	if snap, _ := c.Current(); snap.Series.Today != nil && snap.Series.Today[0].Total != 0.1 {
		t.Error("the abandoned cycle must not replace the snapshot")
	}
}

func TestManagerRegisterRejectsBadToken(t *testing.T) {
	provider := &fakeProvider{results: []fakeResult{
		{err: types.NewFetchError(types.FetchAuth, fmt.Errorf("got status 403 Forbidden"))},
	}}
	m := NewManager(provider, nil)

	err := m.Register(context.Background(), types.Household{ID: "home-1"})
	var fetchErr *types.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Kind != types.FetchAuth {
		t.Fatalf("expected registration to surface the auth error, got %v", err)
	}
	if _, ok := m.Coordinator("home-1"); ok {
		t.Error("household must not be registered on auth failure")
	}
}
