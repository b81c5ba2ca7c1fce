package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/people-enricher/pkg/logging"
	"github.com/Sternrassler/people-enricher/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Prometheus metrics for enrichment runs.
var (
	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrich_items_total",
		Help: "Total processed person IDs by outcome",
	}, []string{"outcome"})

	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "enrich_fetches_in_flight",
		Help: "Attribute fetches currently in flight",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrich_runs_total",
		Help: "Total enrichment runs by status",
	}, []string{"status"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrich_run_duration_seconds",
		Help:    "Enrichment run duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	})
)

// ErrSourceUnavailable is returned when the IdentifierSource fails. No worker
// is started in that case.
var ErrSourceUnavailable = errors.New("identifier source unavailable")

// IdentifierSource produces the full set of person IDs for a run.
type IdentifierSource interface {
	FetchAllIDs(ctx context.Context) ([]int64, error)
}

// AttributeClient fetches the attribute of a single person.
// Implementations must be safe for concurrent use.
type AttributeClient interface {
	FetchAttribute(ctx context.Context, personID int64) (int, error)
}

// Config holds enricher configuration.
type Config struct {
	// Workers is the number of concurrent fetches. It caps the load put on
	// the attribute service.
	Workers int

	// MaxRateLimitRetries is how many times a worker retries an ID after a
	// rate-limit pause before recording it as a failure.
	MaxRateLimitRetries int

	// FailFast aborts the run on the first per-item failure instead of
	// logging it and continuing.
	FailFast bool
}

// DefaultConfig returns the default configuration (5 workers, log and continue).
func DefaultConfig() Config {
	return Config{
		Workers:             5,
		MaxRateLimitRetries: 3,
		FailFast:            false,
	}
}

// Failure is a person ID whose attribute could not be fetched.
type Failure struct {
	PersonID int64
	Err      error
}

// Result is the outcome of one run.
type Result struct {
	RunID    uuid.UUID
	Ages     map[int64]int
	Failures []Failure
	Duration time.Duration
}

// Enricher runs the enrichment pipeline. One Enricher may execute any number
// of runs, sequentially or concurrently; each run gets its own queue and store.
type Enricher struct {
	source IdentifierSource
	client AttributeClient
	gate   *ratelimit.Gate
	config Config
	logger zerolog.Logger
}

// New creates an enricher. gate may be nil, in which case a process-local
// gate is created.
func New(source IdentifierSource, client AttributeClient, gate *ratelimit.Gate, cfg Config) *Enricher {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.MaxRateLimitRetries < 0 {
		cfg.MaxRateLimitRetries = 0
	}
	if gate == nil {
		gate = ratelimit.NewGate(nil, logging.NewLogger(logging.ComponentGate))
	}

	return &Enricher{
		source: source,
		client: client,
		gate:   gate,
		config: cfg,
		logger: logging.NewLogger(logging.ComponentEnricher),
	}
}

// GetPeopleInfo runs the pipeline and returns the person ID to age mapping.
// Per-item failures are only logged; use Run to inspect them.
func (e *Enricher) GetPeopleInfo(ctx context.Context) (map[int64]int, error) {
	result, err := e.Run(ctx)
	return result.Ages, err
}

// Run executes one enrichment run.
//
// It never returns a nil Result. If the source fails, the Result is empty
// and the error wraps ErrSourceUnavailable. If ctx is cancelled mid-run, the
// Result holds what was fetched so far and the error is ctx.Err(). With
// FailFast, the first per-item failure is returned alongside the partial
// Result.
func (e *Enricher) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	runID := uuid.New()
	logger := e.logger.With().Str("run_id", runID.String()).Logger()

	result := &Result{RunID: runID, Ages: map[int64]int{}}
	defer func() {
		result.Duration = time.Since(start)
		runDuration.Observe(result.Duration.Seconds())
	}()

	logger.Info().
		Int("workers", e.config.Workers).
		Bool("fail_fast", e.config.FailFast).
		Msg("Executing GetPeopleInfo")

	ids, err := e.source.FetchAllIDs(ctx)
	if err != nil {
		runsTotal.WithLabelValues("source_error").Inc()
		logger.Error().Err(err).Msg("Failed to fetch person IDs - aborting run")
		return result, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	logger.Info().Int("total_ids", len(ids)).Msg("Fetched person IDs, starting workers")

	if len(ids) == 0 {
		runsTotal.WithLabelValues("ok").Inc()
		return result, nil
	}

	r := &run{
		enricher: e,
		queue:    NewWorkQueue(),
		store:    NewResultStore(),
		total:    len(ids),
		logger:   logger,
	}
	r.queue.EnqueueAll(ids...)

	var g *errgroup.Group
	workCtx := ctx
	if e.config.FailFast {
		g, workCtx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}

	for i := 0; i < e.config.Workers; i++ {
		workerID := i
		g.Go(func() error {
			return r.worker(workCtx, workerID)
		})
	}
	runErr := g.Wait()

	result.Ages = r.store.Snapshot()
	result.Failures = r.failureList()

	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}

	switch {
	case runErr == nil:
		runsTotal.WithLabelValues("ok").Inc()
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		runsTotal.WithLabelValues("cancelled").Inc()
	default:
		runsTotal.WithLabelValues("aborted").Inc()
	}

	event := logger.Info()
	if runErr != nil {
		event = logger.Warn().Err(runErr)
	}
	event.
		Int("fetched", len(result.Ages)).
		Int("failed", len(result.Failures)).
		Int("total", len(ids)).
		Dur("duration", time.Since(start)).
		Msg("GetPeopleInfo complete")

	return result, runErr
}

// run holds the state shared by the workers of a single Run.
type run struct {
	enricher *Enricher
	queue    *WorkQueue
	store    *ResultStore
	total    int
	logger   zerolog.Logger

	mu       sync.Mutex
	failures []Failure
	done     int
}

// worker drains the queue until it is empty or ctx is done. It returns an
// error only in FailFast mode.
func (r *run) worker(ctx context.Context, workerID int) error {
	processed := 0
	cfg := r.enricher.config

	for {
		if err := r.enricher.gate.Wait(ctx); err != nil {
			r.logger.Debug().
				Int("worker_id", workerID).
				Int("processed", processed).
				Msg("Worker stopping (context cancelled during backoff)")
			return nil
		}

		// Stop claiming new work once cancelled
		if ctx.Err() != nil {
			r.logger.Debug().
				Int("worker_id", workerID).
				Int("processed", processed).
				Msg("Worker stopping (context cancelled)")
			return nil
		}

		id, ok := r.queue.TryDequeue()
		if !ok {
			if processed > 0 {
				r.logger.Debug().
					Int("worker_id", workerID).
					Int("processed", processed).
					Msg("Worker completed")
			}
			return nil
		}

		outcome := r.fetch(ctx, id, cfg.MaxRateLimitRetries)

		switch {
		case outcome.IsSuccess():
			if !r.store.Put(id, outcome.Value()) {
				r.logger.Error().Int64("person_id", id).Msg("Duplicate result for person ID")
			}
			itemsTotal.WithLabelValues("success").Inc()

		case outcome.IsCancel():
			itemsTotal.WithLabelValues("cancelled").Inc()
			return nil

		default:
			r.recordFailure(workerID, outcome)
			if cfg.FailFast {
				return fmt.Errorf("person %d: %w", id, outcome.Err())
			}
		}

		processed++
		r.progress()
	}
}

// fetch calls the client for one ID. Rate-limited attempts pause the shared
// gate and are retried by this worker up to maxRetries times.
func (r *run) fetch(ctx context.Context, id int64, maxRetries int) Outcome {
	for attempt := 0; ; attempt++ {
		inFlight.Inc()
		outcome := fetchOutcome(ctx, r.enricher.client, id)
		inFlight.Dec()

		retryAfter, limited := outcome.RateLimited()
		if !limited || attempt >= maxRetries {
			return outcome
		}

		itemsTotal.WithLabelValues("rate_limited").Inc()
		r.logger.Warn().
			Int64("person_id", id).
			Dur("retry_after", retryAfter).
			Int("attempt", attempt+1).
			Msg("Rate limited - pausing workers")

		r.enricher.gate.Pause(ctx, retryAfter)
		if err := r.enricher.gate.Wait(ctx); err != nil {
			return Cancel(id, err)
		}
	}
}

func (r *run) recordFailure(workerID int, outcome Outcome) {
	itemsTotal.WithLabelValues("failure").Inc()

	event := r.logger.Warn().
		Err(outcome.Err()).
		Int("worker_id", workerID).
		Int64("person_id", outcome.PersonID())
	if status, class, ok := describe(outcome.Err()); ok {
		event = event.Int("status_code", status).Str("error_class", class)
	}
	event.Msg("Attribute fetch failed - continuing")

	r.mu.Lock()
	r.failures = append(r.failures, Failure{PersonID: outcome.PersonID(), Err: outcome.Err()})
	r.mu.Unlock()
}

func (r *run) progress() {
	r.mu.Lock()
	r.done++
	done := r.done
	r.mu.Unlock()

	if done%50 == 0 {
		r.logger.Info().
			Int("processed", done).
			Int("total", r.total).
			Float64("progress_pct", float64(done)/float64(r.total)*100).
			Msg("Enrichment progress")
	}
}

func (r *run) failureList() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Failure, len(r.failures))
	copy(out, r.failures)
	return out
}

// classifiedError is implemented by client.FetchError.
type classifiedError interface {
	Status() int
	Class() string
}

func describe(err error) (int, string, bool) {
	var ce classifiedError
	if errors.As(err, &ce) {
		return ce.Status(), ce.Class(), true
	}
	return 0, "", false
}
