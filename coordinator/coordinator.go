package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/angas/pricewatch-go/types"
)

const (
	fetchAttempts = 3
	fetchTimeout  = 30 * time.Second
)

// Coordinator keeps one household's price snapshot up to date. A refresh cycle
// tries the upstream a few times with backoff and falls back to the cached
// snapshot when every attempt fails, so consumers never lose data over a
// transient outage. At most one refresh is in flight per household.
type Coordinator struct {
	logger     *slog.Logger
	provider   types.PriceProvider
	household  types.Household
	onUpdate   func(types.Household, Snapshot)
	snapshot   atomic.Pointer[Snapshot]
	inFlight   atomic.Bool
	baseDelay  time.Duration
	lifeCtx    context.Context
	lifeCancel context.CancelFunc
	done       chan struct{}
}

func New(logger *slog.Logger, provider types.PriceProvider, household types.Household, onUpdate func(types.Household, Snapshot)) *Coordinator {
	lifeCtx, lifeCancel := context.WithCancel(context.Background())
	return &Coordinator{
		logger:     logger.With(slog.String("household", household.ID)),
		provider:   provider,
		household:  household,
		onUpdate:   onUpdate,
		baseDelay:  time.Second,
		lifeCtx:    lifeCtx,
		lifeCancel: lifeCancel,
	}
}

func (c *Coordinator) Household() types.Household {
	return c.household
}

// Current returns the household's snapshot. ok is false until the first
// successful fetch ever, which consumers must treat as unavailable rather
// than stale.
func (c *Coordinator) Current() (Snapshot, bool) {
	snap := c.snapshot.Load()
	if snap == nil {
		return Snapshot{}, false
	}
	return *snap, true
}

// Start runs the backup timer: a plain one-hour ticker catching cycles the
// clock-aligned trigger missed (e.g. around a process restart).
func (c *Coordinator) Start(parent context.Context) {
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-parent.Done():
				return
			case <-c.lifeCtx.Done():
				return
			case <-ticker.C:
				if err := c.Refresh(parent); err != nil {
					c.logger.Warn("backup refresh failed", slog.Any("error", err))
				}
			}
		}
	}()
}

// Stop ends the coordinator's lifetime: the backup timer exits and any
// in-flight retry loop is abandoned without touching the snapshot, no matter
// which trigger's context the cycle was started with.
func (c *Coordinator) Stop() {
	c.lifeCancel()
	if c.done != nil {
		<-c.done
	}
}

// Refresh runs one refresh cycle. It is safe to call from any trigger at any
// time: a cycle already in progress makes this call a no-op. The returned
// error reports the cycle's terminal outcome and has already been logged.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.logger.Debug("refresh already in progress, skipping")
		return nil
	}
	defer c.inFlight.Store(false)

	// The cycle answers to both the trigger's context and the coordinator's
	// own lifetime, so Stop abandons it even when the trigger outlives the
	// coordinator (shared cron, detached API request).
	cycleCtx, cancel := context.WithCancel(c.lifeCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	lastErr := c.fetchWithRetry(cycleCtx)
	if lastErr == nil {
		return nil
	}
	if cycleCtx.Err() != nil {
		c.logger.Debug("refresh cycle abandoned", slog.Any("error", lastErr))
		return lastErr
	}

	prev := c.snapshot.Load()
	if prev == nil {
		c.logger.Error("price fetch failed with no cached prices to fall back on", slog.Any("error", lastErr))
		return lastErr
	}

	// Keep the old series, flip provenance to cached. FetchedAt stays at the
	// last successful fetch so consumers can see how stale the data is.
	degraded := *prev
	degraded.Freshness = FreshnessCached
	degraded.Warning = fmt.Sprintf("upstream unavailable, using prices fetched at %s: %v",
		prev.FetchedAt.Format(time.RFC3339), lastErr)
	c.snapshot.Store(&degraded)

	c.logger.Warn("price fetch failed, serving cached prices",
		slog.Time("fetchedAt", prev.FetchedAt),
		slog.Any("error", lastErr))
	c.notify(degraded)

	return lastErr
}

func (c *Coordinator) fetchWithRetry(ctx context.Context) error {
	delay := c.baseDelay
	var lastErr error

	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
		series, err := c.provider.GetPriceSeries(fetchCtx, c.household.ID)
		cancel()

		if err == nil {
			// The coordinator may have been stopped while the provider was
			// responding; a dead coordinator must not publish.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			snap := Snapshot{
				Series:    series,
				FetchedAt: time.Now(),
				Freshness: FreshnessLive,
			}
			c.snapshot.Store(&snap)
			c.logger.Info("price snapshot refreshed",
				slog.Int("attempt", attempt),
				slog.Int("todayHours", len(series.Today)),
				slog.Int("tomorrowHours", len(series.Tomorrow)))
			c.notify(snap)
			return nil
		}

		lastErr = err

		var fetchErr *types.FetchError
		if errors.As(err, &fetchErr) && !fetchErr.Retryable() {
			c.logger.Error("authentication failed, not retrying", slog.Any("error", err))
			return err
		}

		c.logger.Warn("price fetch attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("maxAttempts", fetchAttempts),
			slog.Any("error", err))
	}

	return lastErr
}

func (c *Coordinator) notify(snap Snapshot) {
	if c.onUpdate != nil {
		c.onUpdate(c.household, snap)
	}
}
