// Package identity allocates person identifiers: unique and strictly
// increasing per chart, assigned once, never reused. An allocated id that
// is never attached to a node (a failed create) is wasted, which is
// acceptable; handing the same id to two callers is not.
package identity

import (
	"context"
	"errors"
	"log/slog"

	"lineage/internal/platform/metrics"
	dErrors "lineage/pkg/domain-errors"
	"lineage/pkg/platform/sentinel"
)

// Counter is the slice of the graph store the allocator needs.
type Counter interface {
	NextPersonID(ctx context.Context, chartID string) (int64, error)
}

// maxRetries bounds the conflict retry loop. The increment itself is
// atomic at the store; retries only cover transient conflicts surfaced by
// optimistic backends.
const maxRetries = 3

// Allocator produces chart-scoped person ids.
type Allocator struct {
	counter Counter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Allocator)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Allocator) { a.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Allocator) { a.metrics = m }
}

func New(counter Counter, opts ...Option) *Allocator {
	a := &Allocator{counter: counter, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Next returns the chart's next person id. On deadline expiry it returns
// CodeTimeout; on store failure or retry exhaustion, CodeAllocation. The
// caller must never assume a partially-applied increment.
func (a *Allocator) Next(ctx context.Context, chartID string) (int64, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			a.metrics.IncAllocatorRetries()
		}
		id, err := a.counter.NextPersonID(ctx, chartID)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, dErrors.Wrap(err, dErrors.CodeTimeout, "person id allocation timed out")
		}
		if errors.Is(err, context.Canceled) {
			return 0, dErrors.Wrap(err, dErrors.CodeAllocation, "person id allocation canceled")
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			break
		}
		a.logger.WarnContext(ctx, "person id allocation conflict, retrying",
			"chart_id", chartID,
			"attempt", attempt+1,
		)
	}
	return 0, dErrors.Wrap(lastErr, dErrors.CodeAllocation, "could not allocate person id")
}
