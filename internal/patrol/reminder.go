package patrol

import (
	"context"
	"errors"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/i474232898/snow-patrol/internal/metrics"
	"github.com/i474232898/snow-patrol/internal/notify"
	"github.com/i474232898/snow-patrol/internal/store"
)

// SnowHistory answers when it last snowed.
type SnowHistory interface {
	LastSnow() (store.PollRecord, error)
}

// DrySpellReminder texts the recipient after a long stretch without snow.
// Check runs on the scheduler goroutine, so its state is kept in atomics.
type DrySpellReminder struct {
	history   SnowHistory
	gateway   notify.Gateway
	policy    *notify.Policy
	recipient Recipient
	window    time.Duration
	metrics   *metrics.Metrics
	logger    *zap.SugaredLogger
	clock     func() time.Time

	// since is the start of the current dry-spell window.
	since *atomic.Time
	sent  *atomic.Int64
}

// NewDrySpellReminder starts the first window at the current time.
func NewDrySpellReminder(
	history SnowHistory,
	gateway notify.Gateway,
	policy *notify.Policy,
	recipient Recipient,
	window time.Duration,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
	clock func() time.Time,
) *DrySpellReminder {
	if clock == nil {
		clock = time.Now
	}
	return &DrySpellReminder{
		history:   history,
		gateway:   gateway,
		policy:    policy,
		recipient: recipient,
		window:    window,
		metrics:   m,
		logger:    logger,
		clock:     clock,
		since:     atomic.NewTime(clock()),
		sent:      atomic.NewInt64(0),
	}
}

// Check sends one reminder when no snow has been seen for the whole window,
// then starts a new window. It reports whether a message was attempted.
func (r *DrySpellReminder) Check(ctx context.Context) bool {
	now := r.clock()

	start := r.since.Load()
	last, err := r.history.LastSnow()
	switch {
	case err == nil && last.CheckedAt.After(start):
		start = last.CheckedAt
	case err != nil && !errors.Is(err, store.ErrNotFound):
		r.logger.Warnw("dry spell: history unavailable", "error", err)
		return false
	}

	if now.Sub(start) < r.window {
		r.logger.Debugw("dry spell: within window", "since", start, "window", r.window)
		return false
	}

	msg := r.policy.DrySpellMessage()
	res, err := r.gateway.Send(ctx, r.recipient.Phone, msg)
	r.metrics.Notification(err)
	r.since.Store(now)
	if err != nil {
		r.logger.Errorw("failed to send dry spell reminder", "error", err)
		return true
	}
	r.sent.Inc()
	r.logger.Infow("dry spell reminder sent", "since", start, "text_id", res.TextID)
	return true
}

// Sent returns how many reminders were delivered.
func (r *DrySpellReminder) Sent() int64 {
	return r.sent.Load()
}
