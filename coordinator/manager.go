package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/angas/pricewatch-go/hours"
	"github.com/angas/pricewatch-go/types"
	"github.com/robfig/cron/v3"
)

// Clock-aligned trigger: 5 seconds past every hour, right after the upstream
// has rolled over to the next hour's price.
const hourlySpec = "5 0 * * * *"

// Manager owns one Coordinator per registered household. Households are fully
// independent: each has its own snapshot, in-flight flag and backup timer, and
// the only shared piece is the clock-aligned cron that fans a refresh out to
// all of them.
type Manager struct {
	logger       *slog.Logger
	provider     types.PriceProvider
	cron         *cron.Cron
	onUpdate     func(types.Household, Snapshot)
	mu           sync.RWMutex
	coordinators map[string]*Coordinator
	runCtx       context.Context
}

func NewManager(provider types.PriceProvider, onUpdate func(types.Household, Snapshot)) *Manager {
	return &Manager{
		logger:       slog.Default().With("module", "coordinator"),
		provider:     provider,
		cron:         cron.New(cron.WithSeconds()),
		onUpdate:     onUpdate,
		coordinators: make(map[string]*Coordinator),
	}
}

// Register creates a coordinator for the household and performs its first
// fetch. A transient failure leaves the household registered but
// uninitialized, only a bad token aborts registration.
func (m *Manager) Register(ctx context.Context, household types.Household) error {
	c := New(m.logger, m.provider, household, m.onUpdate)

	if err := c.Refresh(ctx); err != nil {
		var fetchErr *types.FetchError
		if errors.As(err, &fetchErr) && !fetchErr.Retryable() {
			return err
		}
		// Retries exhausted; the hourly schedule will keep trying.
	}

	m.mu.Lock()
	m.coordinators[household.ID] = c
	runCtx := m.runCtx
	m.mu.Unlock()

	if runCtx != nil {
		c.Start(runCtx)
	}

	m.logger.Info("household registered",
		slog.String("household", household.ID),
		slog.String("name", household.Name))
	return nil
}

// Deregister stops the household's timers, abandons any in-flight retries and
// discards its snapshot.
func (m *Manager) Deregister(householdID string) {
	m.mu.Lock()
	c, ok := m.coordinators[householdID]
	delete(m.coordinators, householdID)
	m.mu.Unlock()

	if ok {
		c.Stop()
		m.logger.Info("household deregistered", slog.String("household", householdID))
	}
}

// Run starts the clock-aligned cron and every coordinator's backup timer.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	m.runCtx = ctx
	coordinators := m.all()
	m.mu.Unlock()

	if _, err := m.cron.AddFunc(hourlySpec, func() { m.RefreshAll(ctx) }); err != nil {
		return err
	}
	m.cron.Start()
	m.logger.Info("hourly refresh scheduled",
		slog.Time("nextRefreshAt", hours.NextTick(time.Now(), 5*time.Second)))

	for _, c := range coordinators {
		c.Start(ctx)
	}

	return nil
}

// Stop halts scheduling and all coordinators.
func (m *Manager) Stop() {
	m.cron.Stop()

	m.mu.Lock()
	coordinators := m.all()
	m.mu.Unlock()

	for _, c := range coordinators {
		c.Stop()
	}
}

// RefreshAll kicks off a refresh cycle for every household. Cycles run
// concurrently, one slow household never delays another.
func (m *Manager) RefreshAll(ctx context.Context) {
	m.mu.RLock()
	coordinators := m.all()
	m.mu.RUnlock()

	for _, c := range coordinators {
		go func(c *Coordinator) {
			if err := c.Refresh(ctx); err != nil {
				m.logger.Debug("scheduled refresh failed",
					slog.String("household", c.Household().ID),
					slog.Any("error", err))
			}
		}(c)
	}
}

// Schedule adds an extra job (such as nightly maintenance) to the manager's
// scheduler. The spec uses the seconds-enabled cron format.
func (m *Manager) Schedule(spec string, fn func()) error {
	_, err := m.cron.AddFunc(spec, fn)
	return err
}

// Coordinator returns the household's coordinator.
func (m *Manager) Coordinator(householdID string) (*Coordinator, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.coordinators[householdID]
	return c, ok
}

// Households lists the registered households sorted by name.
func (m *Manager) Households() []types.Household {
	m.mu.RLock()
	defer m.mu.RUnlock()

	households := make([]types.Household, 0, len(m.coordinators))
	for _, c := range m.coordinators {
		households = append(households, c.Household())
	}
	sort.Slice(households, func(i, j int) bool { return households[i].Name < households[j].Name })
	return households
}

// all returns the coordinators; callers must hold at least a read lock.
func (m *Manager) all() []*Coordinator {
	coordinators := make([]*Coordinator, 0, len(m.coordinators))
	for _, c := range m.coordinators {
		coordinators = append(coordinators, c)
	}
	return coordinators
}
