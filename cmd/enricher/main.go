// Command enricher runs one enrichment pass: it loads person IDs, fetches the
// age of each person from the people service and prints the resulting
// mapping, plus any per-person failures, as JSON on stdout.
//
// Configuration is read from the environment (see pkg/config).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/people-enricher/pkg/client"
	"github.com/Sternrassler/people-enricher/pkg/config"
	"github.com/Sternrassler/people-enricher/pkg/enrich"
	"github.com/Sternrassler/people-enricher/pkg/logging"
	"github.com/Sternrassler/people-enricher/pkg/metrics"
	"github.com/Sternrassler/people-enricher/pkg/ratelimit"
	"github.com/Sternrassler/people-enricher/pkg/source"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Exit codes
const (
	exitOK      = 0
	exitFailed  = 1 // setup error or identifier source unavailable
	exitConfig  = 2
	exitPartial = 3 // run cancelled or aborted, partial output written
)

func main() {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(exitConfig)
	}

	logging.Setup(cfg.LoggingConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, os.Stdout)
	stop()

	os.Exit(code)
}

// run wires the pipeline from cfg, executes a single run and writes the
// report to out. It returns the process exit code.
func run(ctx context.Context, cfg *config.Config, out io.Writer) int {
	logger := logging.NewLogger(logging.ComponentCLI)

	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	rdb := connectRedis(ctx, cfg.RedisURL, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	clientCfg := cfg.ClientConfig()
	clientCfg.Redis = rdb
	peopleClient, err := client.New(clientCfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create people client")
		return exitFailed
	}
	defer peopleClient.Close()

	var store ratelimit.Store
	if rdb != nil {
		store = ratelimit.NewRedisStore(rdb)
	}
	gate := ratelimit.NewGate(store, logging.NewLogger(logging.ComponentGate))

	src, closeSource, err := buildSource(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open identifier source")
		return exitFailed
	}
	defer closeSource()

	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("Metrics server shutdown failed")
			}
		}()
	}

	logger.Info().
		Str("base_url", cfg.BaseURL).
		Int("workers", cfg.Workers).
		Bool("redis", rdb != nil).
		Msg("Starting enrichment")

	result, runErr := enrich.New(src, peopleClient, gate, cfg.EnrichConfig()).Run(ctx)

	if err := writeReport(out, result, runErr); err != nil {
		logger.Error().Err(err).Msg("Failed to write report")
		return exitFailed
	}

	switch {
	case runErr == nil:
		return exitOK
	case errors.Is(runErr, enrich.ErrSourceUnavailable):
		return exitFailed
	default:
		return exitPartial
	}
}

// connectRedis returns nil when url is empty or Redis is unreachable; the
// enricher then runs without cache and with a process-local backoff gate.
func connectRedis(ctx context.Context, url string, logger zerolog.Logger) *redis.Client {
	if url == "" {
		return nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn().Err(err).Msg("Invalid REDIS_URL - continuing without Redis")
		return nil
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis unreachable - continuing without Redis")
		rdb.Close()
		return nil
	}

	logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")
	return rdb
}

// buildSource returns the SQLite source when a database is configured and the
// ID range otherwise.
func buildSource(cfg *config.Config) (enrich.IdentifierSource, func() error, error) {
	if cfg.DBPath == "" {
		return source.Range{From: cfg.IDFrom, To: cfg.IDTo}, func() error { return nil }, nil
	}

	src, err := source.NewSQLite(cfg.DBPath, cfg.DBQuery)
	if err != nil {
		return nil, nil, err
	}
	return src, src.Close, nil
}

func startMetricsServer(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", healthHandler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return srv
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

type report struct {
	RunID      string          `json:"run_id"`
	DurationMS int64           `json:"duration_ms"`
	Ages       map[int64]int   `json:"ages"`
	Failures   []failureReport `json:"failures"`
	Error      string          `json:"error,omitempty"`
}

type failureReport struct {
	PersonID int64  `json:"person_id"`
	Error    string `json:"error"`
}

func writeReport(out io.Writer, result *enrich.Result, runErr error) error {
	rep := report{
		RunID:      result.RunID.String(),
		DurationMS: result.Duration.Milliseconds(),
		Ages:       result.Ages,
		Failures:   make([]failureReport, 0, len(result.Failures)),
	}
	for _, f := range result.Failures {
		rep.Failures = append(rep.Failures, failureReport{PersonID: f.PersonID, Error: f.Err.Error()})
	}
	if runErr != nil {
		rep.Error = runErr.Error()
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
