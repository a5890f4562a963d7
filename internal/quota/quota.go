// Package quota admits or denies usage against an organization's monthly
// plan limits.
//
// Every Gate implementation performs the check and the increment as one
// atomic operation in the backing store. Callers must never read a counter
// and increment it separately: two concurrent requests at limit-1 would both
// pass.
package quota

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/vectorvault/internal/observ"
)

// Metric is the counter a request consumes.
type Metric string

const (
	MetricRecords Metric = "records"
	MetricQueries Metric = "queries"
)

func (m Metric) Valid() bool {
	return m == MetricRecords || m == MetricQueries
}

// ErrInvalidAmount is returned for amounts below one.
var ErrInvalidAmount = errors.New("quota: amount must be positive")

// Gate admits amount units of metric for orgID in the current month.
//
// Admit returns true after incrementing the counter, or false without
// touching it. An error means the decision could not be made; it is never
// an implicit deny.
//
// Release gives back amount units previously admitted: records that were
// deleted, or charged for a write that never committed. The counter never
// drops below zero.
type Gate interface {
	Admit(ctx context.Context, orgID uuid.UUID, metric Metric, amount int) (bool, error)
	Release(ctx context.Context, orgID uuid.UUID, metric Metric, amount int) error
}

// Check validates the arguments every Gate method takes.
func Check(metric Metric, amount int) error {
	if amount < 1 {
		return ErrInvalidAmount
	}
	if !metric.Valid() {
		return fmt.Errorf("quota: unknown metric %q", metric)
	}
	return nil
}

// Instrumented counts gate decisions.
type Instrumented struct {
	next    Gate
	metrics *observ.Metrics
}

func NewInstrumented(next Gate, metrics *observ.Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: metrics}
}

func (g *Instrumented) Admit(ctx context.Context, orgID uuid.UUID, metric Metric, amount int) (bool, error) {
	ok, err := g.next.Admit(ctx, orgID, metric, amount)
	switch {
	case err != nil:
		g.metrics.ObserveQuota(string(metric), "error")
	case ok:
		g.metrics.ObserveQuota(string(metric), "admit")
	default:
		g.metrics.ObserveQuota(string(metric), "deny")
	}
	return ok, err
}

func (g *Instrumented) Release(ctx context.Context, orgID uuid.UUID, metric Metric, amount int) error {
	err := g.next.Release(ctx, orgID, metric, amount)
	if err != nil {
		g.metrics.ObserveQuota(string(metric), "error")
		return err
	}
	g.metrics.ObserveQuota(string(metric), "release")
	return nil
}
