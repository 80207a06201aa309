// Package batch runs independent sub-fetches in fixed-size chunks so a report
// never puts more than ChunkSize concurrent reads on the record store.
package batch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lorrc/field-metrics/internal/core/domain"
	"github.com/lorrc/field-metrics/internal/core/ports"
)

const (
	DefaultChunkSize = 5
	DefaultRetries   = 1
)

// Config controls chunking and retries.
type Config struct {
	ChunkSize int
	Retries   int
}

// DefaultConfig returns chunks of 5 with one retry.
func DefaultConfig() Config {
	return Config{ChunkSize: DefaultChunkSize, Retries: DefaultRetries}
}

// Scheduler is stateless apart from its configuration and may be shared.
type Scheduler struct {
	cfg     Config
	logger  *slog.Logger
	metrics ports.MetricsRecorder
}

// New builds a Scheduler. Non-positive sizes fall back to the defaults.
func New(cfg Config, logger *slog.Logger, metrics ports.MetricsRecorder) *Scheduler {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Scheduler{
		cfg:     cfg,
		logger:  logger.With("component", "batch"),
		metrics: metrics,
	}
}

// ChunkSize reports the configured fan-out.
func (s *Scheduler) ChunkSize() int {
	return s.cfg.ChunkSize
}

// Result is the outcome of one item. A degraded item holds the zero value
// and the last error it saw.
type Result[T any] struct {
	Value    T
	Degraded bool
	Err      error
}

// Run calls fn for indices 0..n-1. Chunks run one after another and the
// items of a chunk run concurrently. Results are stored by index, so the
// output order never depends on completion order. Item failures never abort
// the run; only context cancellation does.
func Run[T any](ctx context.Context, s *Scheduler, n int, fn func(ctx context.Context, i int) (T, error)) ([]Result[T], error) {
	results := make([]Result[T], n)

	for lo := 0; lo < n; lo += s.cfg.ChunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hi := min(lo+s.cfg.ChunkSize, n)

		var g errgroup.Group
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				results[i] = runItem(ctx, s, i, fn)
				return nil
			})
		}
		_ = g.Wait()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func runItem[T any](ctx context.Context, s *Scheduler, i int, fn func(ctx context.Context, i int) (T, error)) Result[T] {
	s.metrics.BatchStarted()
	defer s.metrics.BatchFinished()

	var lastErr error
	for attempt := 0; attempt <= s.cfg.Retries; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		v, err := fn(ctx, i)
		if err == nil {
			if attempt > 0 {
				s.metrics.ObserveBatchItem("retried")
			} else {
				s.metrics.ObserveBatchItem("ok")
			}
			return Result[T]{Value: v}
		}
		lastErr = err
		s.logger.DebugContext(ctx, "batch item failed", "index", i, "attempt", attempt+1, "error", err)
	}

	s.metrics.ObserveBatchItem("degraded")
	s.logger.WarnContext(ctx, "batch item degraded to zero", "index", i, "error", lastErr)
	var zero T
	return Result[T]{Value: zero, Degraded: true, Err: lastErr}
}

// RunDays runs fn once per local calendar day of window, in chronological order.
func RunDays[T any](ctx context.Context, s *Scheduler, window domain.TimeWindow, loc *time.Location, fn func(ctx context.Context, day domain.TimeWindow) (T, error)) ([]domain.TimeWindow, []Result[T], error) {
	days := window.Days(loc)
	results, err := Run(ctx, s, len(days), func(ctx context.Context, i int) (T, error) {
		return fn(ctx, days[i])
	})
	if err != nil {
		return nil, nil, err
	}
	return days, results, nil
}

type nopRecorder struct{}

func (nopRecorder) ObserveReport(string, string, int, time.Duration) {}
func (nopRecorder) ObserveFetch(string, string, time.Duration)       {}
func (nopRecorder) ObserveBatchItem(string)                          {}
func (nopRecorder) BatchStarted()                                    {}
func (nopRecorder) BatchFinished()                                   {}
func (nopRecorder) ObserveExport(string, string, int64)              {}
