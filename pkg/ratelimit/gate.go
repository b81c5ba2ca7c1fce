package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for the backoff gate.
var (
	backoffPausesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enrich_backoff_pauses_total",
		Help: "Total number of times the backoff window was extended",
	})

	backoffWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrich_backoff_wait_seconds",
		Help:    "Time workers spent waiting on the backoff gate",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	backoffStoreErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrich_backoff_store_errors_total",
		Help: "Total number of shared backoff store errors by operation",
	}, []string{"operation"})
)

// DefaultMaxPause caps a single pause so that a hostile or broken Retry-After
// cannot park the workers indefinitely.
const DefaultMaxPause = 5 * time.Minute

// DefaultStoreRefresh is how often an open gate re-reads the shared window.
const DefaultStoreRefresh = 500 * time.Millisecond

// Gate is a cooperative pause shared by all workers of an enricher. It holds a
// single resume timestamp; Wait returns once that timestamp has passed.
type Gate struct {
	mu       sync.Mutex
	state    BackoffState
	store    Store
	maxPause time.Duration
	logger   zerolog.Logger

	refresh  time.Duration
	lastLoad time.Time
}

// NewGate creates a gate. store may be nil, in which case the pause window is
// local to this process.
func NewGate(store Store, logger zerolog.Logger) *Gate {
	return &Gate{
		store:    store,
		maxPause: DefaultMaxPause,
		refresh:  DefaultStoreRefresh,
		logger:   logger,
	}
}

// SetStoreRefresh overrides DefaultStoreRefresh. Zero reads the store on
// every check.
func (g *Gate) SetStoreRefresh(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refresh = d
}

// SetMaxPause overrides DefaultMaxPause. Non-positive values disable the cap.
func (g *Gate) SetMaxPause(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.maxPause = d
}

// State returns a copy of the local backoff state.
func (g *Gate) State() BackoffState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Pause asks every worker to hold off for d. Overlapping pauses merge: the
// window only ever grows. Returns the resulting resume time.
func (g *Gate) Pause(ctx context.Context, d time.Duration) time.Time {
	g.mu.Lock()
	if g.maxPause > 0 && d > g.maxPause {
		d = g.maxPause
	}
	extended := d > 0 && g.state.Extend(time.Now().Add(d))
	resumeAt := g.state.ResumeAt
	g.mu.Unlock()

	if !extended {
		return resumeAt
	}

	backoffPausesTotal.Inc()
	g.logger.Warn().
		Dur("pause", d).
		Time("resume_at", resumeAt).
		Msg("Remote service requested backoff - pausing all workers")

	if g.store != nil {
		if err := g.store.Extend(ctx, resumeAt); err != nil {
			backoffStoreErrorsTotal.WithLabelValues("extend").Inc()
			g.logger.Warn().Err(err).Msg("Failed to share backoff window")
		}
	}

	return resumeAt
}

// Wait blocks until the gate is open or ctx is done. The window may be
// extended while waiting; Wait keeps waiting until the latest resume time.
func (g *Gate) Wait(ctx context.Context) error {
	start := time.Now()
	waited := false
	defer func() {
		if waited {
			backoffWaitSeconds.Observe(time.Since(start).Seconds())
		}
	}()

	for {
		remaining := g.remaining(ctx)
		if remaining <= 0 {
			return nil
		}
		waited = true

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// remaining returns how long the caller still has to wait, merging in the
// shared window when a store is configured. While the gate is open locally
// the store is read at most once per refresh interval.
func (g *Gate) remaining(ctx context.Context) time.Duration {
	if g.shouldLoad() {
		shared, err := g.store.Load(ctx)
		if err != nil {
			backoffStoreErrorsTotal.WithLabelValues("load").Inc()
			g.logger.Debug().Err(err).Msg("Failed to load shared backoff window, using local state")
		} else if !shared.IsZero() {
			g.mu.Lock()
			if g.state.Extend(shared) {
				g.logger.Info().
					Time("resume_at", shared).
					Msg("Adopted backoff window from shared store")
			}
			g.mu.Unlock()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.TimeUntilResume()
}

func (g *Gate) shouldLoad() bool {
	if g.store == nil {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if !g.state.IsPaused() && !g.lastLoad.IsZero() && now.Sub(g.lastLoad) < g.refresh {
		return false
	}
	g.lastLoad = now
	return true
}
