package results

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"election_client/pkg/api"
)

// Backend is the slice of the API the poller needs.
type Backend interface {
	Results(ctx context.Context) (map[string][]api.TallyEntry, error)
}

// Poller refreshes the tally snapshot on a schedule and keeps the latest
// computed standings for cheap reads. The snapshot is replaced wholesale on
// every refresh, never patched.
type Poller struct {
	backend  Backend
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
	logger   *zap.Logger

	mu        sync.RWMutex
	latest    []PositionResult
	refreshed time.Time
}

// NewPoller creates a results poller. schedule is a cron expression, e.g.
// "@every 1m".
func NewPoller(backend Backend, schedule string, timeout time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		backend:  backend,
		cron:     cron.New(),
		schedule: schedule,
		timeout:  timeout,
		logger:   logger,
	}
}

// Start begins the refresh schedule.
func (p *Poller) Start() error {
	_, err := p.cron.AddFunc(p.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if _, err := p.Refresh(ctx); err != nil {
			p.logger.Warn("Scheduled results refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("registering refresh schedule: %w", err)
	}

	p.cron.Start()
	p.logger.Info("Results poller started", zap.String("schedule", p.schedule))
	return nil
}

// Stop halts the refresh schedule and waits for a running refresh to finish.
func (p *Poller) Stop() {
	<-p.cron.Stop().Done()
	p.logger.Info("Results poller stopped")
}

// Refresh fetches the raw tallies, computes standings and replaces the
// cached snapshot. Fetch failures surface as ErrResultsUnavailable.
func (p *Poller) Refresh(ctx context.Context) ([]PositionResult, error) {
	raw, err := p.backend.Results(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", api.ErrResultsUnavailable, api.ErrorMessage(err))
	}

	computed := Compute(raw)

	p.mu.Lock()
	p.latest = computed
	p.refreshed = time.Now()
	p.mu.Unlock()

	p.logger.Debug("Results refreshed", zap.Int("positions", len(computed)))
	return computed, nil
}

// Latest returns the cached standings and when they were fetched. ok is
// false before the first successful refresh.
func (p *Poller) Latest() ([]PositionResult, time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return nil, time.Time{}, false
	}
	return p.latest, p.refreshed, true
}
