package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/deposit-watcher/internal/core/cursor"
)

// BlockHeightFetcher fetches the latest block height of the chain.
type BlockHeightFetcher interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// FailedCounter reports the size of the retry queue.
type FailedCounter interface {
	Count(ctx context.Context) (int, error)
}

// Check probes one dependency, e.g. a database ping.
type Check func(ctx context.Context) error

// Monitor aggregates health status from various system components.
type Monitor struct {
	tracker       *cursor.Tracker
	failedRepo    FailedCounter
	heightFetcher BlockHeightFetcher
	checks        map[string]Check
	cacheTTL      time.Duration
	lastCheck     time.Time
	lastReport    *HealthReport
	mu            sync.Mutex
}

// NewMonitor creates a new health monitor. failedRepo may be nil.
func NewMonitor(
	tracker *cursor.Tracker,
	failedRepo FailedCounter,
	heightFetcher BlockHeightFetcher,
) *Monitor {
	return &Monitor{
		tracker:       tracker,
		failedRepo:    failedRepo,
		heightFetcher: heightFetcher,
		checks:        make(map[string]Check),
		cacheTTL:      10 * time.Second,
	}
}

// AddCheck registers a dependency probe reported under name.
func (m *Monitor) AddCheck(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// CheckHealth builds a report, reusing the previous one for cacheTTL.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks to avoid spamming RPC
	if m.lastReport != nil && time.Since(m.lastCheck) < m.cacheTTL {
		return *m.lastReport
	}

	report := HealthReport{
		Chain:      m.chainHealth(ctx),
		Components: make(map[string]ComponentHealth, len(m.checks)),
		CheckedAt:  time.Now().UTC(),
	}
	report.SystemStatus = report.Chain.Status

	for name, check := range m.checks {
		c := ComponentHealth{Status: StatusHealthy}
		if err := check(ctx); err != nil {
			c.Status = StatusCritical
			c.Error = err.Error()
		}
		report.Components[name] = c
		report.SystemStatus = worse(report.SystemStatus, c.Status)
	}

	m.lastCheck = time.Now()
	m.lastReport = &report
	return report
}

func (m *Monitor) chainHealth(ctx context.Context) ChainHealth {
	health := ChainHealth{Status: StatusHealthy}

	cursorBlock, loaded := m.tracker.Position()
	health.CursorBlock = cursorBlock
	health.BlocksPerSecond = m.tracker.Metrics().BlocksPerSecond

	latest, err := m.heightFetcher.LatestBlockNumber(ctx)
	if err != nil {
		// If we can't get height, that's degradation
		health.Status = StatusDegraded
		health.Error = err.Error()
	} else {
		health.LatestBlock = latest
		if loaded {
			if lag := m.tracker.Lag(latest); lag > 0 {
				health.BlockLag = uint64(lag)
			}
		}
	}

	if m.failedRepo != nil {
		if count, err := m.failedRepo.Count(ctx); err == nil {
			health.FailedBlocks = count
		}
	}

	if health.BlockLag > 100 || health.FailedBlocks > 50 {
		health.Status = StatusCritical
	} else if health.BlockLag > 10 || health.FailedBlocks > 0 {
		health.Status = worse(health.Status, StatusDegraded)
	}
	return health
}
