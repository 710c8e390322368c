package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type publishedPruner interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type pendingPurger interface {
	PurgePendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewOutboxRetention drops outbox rows delivered more than retention ago.
func NewOutboxRetention(repo publishedPruner, retention time.Duration, logg *logger.Logger) (Task, error) {
	if repo == nil {
		return nil, errors.New("outbox repository required")
	}
	return newCutoffTask("outbox-retention", retention, logg, repo.DeletePublishedBefore)
}

// NewPendingOrderPurge removes checkouts that were started but never
// captured. PayPal approvals expire long before maxAge.
func NewPendingOrderPurge(repo pendingPurger, maxAge time.Duration, logg *logger.Logger) (Task, error) {
	if repo == nil {
		return nil, errors.New("order repository required")
	}
	return newCutoffTask("pending-order-purge", maxAge, logg, repo.PurgePendingBefore)
}

type cutoffTask struct {
	name  string
	age   time.Duration
	sweep func(ctx context.Context, cutoff time.Time) (int64, error)
	logg  *logger.Logger
	now   func() time.Time
}

func newCutoffTask(name string, age time.Duration, logg *logger.Logger, sweep func(context.Context, time.Time) (int64, error)) (*cutoffTask, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if age <= 0 {
		return nil, errors.New(name + ": age must be positive")
	}
	return &cutoffTask{name: name, age: age, sweep: sweep, logg: logg, now: time.Now}, nil
}

func (t *cutoffTask) Name() string { return t.name }

func (t *cutoffTask) Run(ctx context.Context) (int64, error) {
	cutoff := t.now().UTC().Add(-t.age)
	removed, err := t.sweep(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	t.logg.Info(t.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"removed": removed,
	}), "sweep complete")
	return removed, nil
}
