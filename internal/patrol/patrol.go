// Package patrol runs the snow watch: poll the forecast, decide, notify, sleep.
package patrol

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/snow-patrol/internal/metrics"
	"github.com/i474232898/snow-patrol/internal/notify"
	"github.com/i474232898/snow-patrol/internal/scheduler"
	"github.com/i474232898/snow-patrol/internal/store"
	"github.com/i474232898/snow-patrol/internal/weather"
)

// Fetcher returns the current forecast, retrying transient failures itself.
type Fetcher interface {
	Fetch(ctx context.Context) (weather.Forecast, error)
}

// History records every poll.
type History interface {
	Save(rec store.PollRecord) store.PollRecord
}

// Recipient is who gets the texts.
type Recipient struct {
	Name  string
	Phone string
}

// Patrol is the main loop. It is not safe for concurrent use; Run owns it.
type Patrol struct {
	location  weather.Location
	recipient Recipient

	fetcher Fetcher
	gateway notify.Gateway
	policy  *notify.Policy
	history History
	metrics *metrics.Metrics
	logger  *zap.SugaredLogger

	clock func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customizes a Patrol.
type Option func(*Patrol)

// WithClock replaces the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(p *Patrol) { p.clock = clock }
}

// WithSleep replaces the wait between polls.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(p *Patrol) { p.sleep = sleep }
}

// New creates a Patrol. now is taken in zone.
func New(
	location weather.Location,
	recipient Recipient,
	zone *time.Location,
	fetcher Fetcher,
	gateway notify.Gateway,
	policy *notify.Policy,
	history History,
	m *metrics.Metrics,
	logger *zap.SugaredLogger,
	opts ...Option,
) *Patrol {
	p := &Patrol{
		location:  location,
		recipient: recipient,
		fetcher:   fetcher,
		gateway:   gateway,
		policy:    policy,
		history:   history,
		metrics:   m,
		logger:    logger,
		clock:     func() time.Time { return time.Now().In(zone) },
		sleep:     weather.Sleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled, which returns nil, or until the forecast
// source fails with a non-transient error, which is returned.
func (p *Patrol) Run(ctx context.Context) error {
	p.logger.Infow("patrol started", "location", p.location.Key())

	state := scheduler.State{}
	for {
		if ctx.Err() != nil {
			p.logger.Infow("patrol stopped")
			return nil
		}

		next, delay, err := p.Step(ctx, state)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Infow("patrol stopped")
				return nil
			}
			return err
		}
		state = next

		if err := p.sleep(ctx, delay); err != nil {
			p.logger.Infow("patrol stopped")
			return nil
		}
	}
}

// Step runs one poll and returns the state and delay for the next one.
func (p *Patrol) Step(ctx context.Context, state scheduler.State) (scheduler.State, time.Duration, error) {
	forecast, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return state, 0, err
	}
	// Fetch may retry for a long time; stamp the poll once it returns.
	now := p.clock()

	var event *weather.SnowEvent
	if e, ok := weather.Scan(forecast, now); ok {
		event = &e
		p.logger.Debugw("snow in the forecast", "event", e.String())
	} else {
		p.logger.Debugw("no snow in the forecast", "currently", forecast.Currently.String(), "hours", len(forecast.Hourly))
	}

	decision := scheduler.NextInterval(event, now, state.AlreadySnowing)

	switch decision.Transition {
	case scheduler.EnteringSnow, scheduler.ContinuingSnow:
		p.logger.Infof("It's snowing in %s!", p.location.Name)
	case scheduler.EndingSnow:
		p.logger.Infof("Stopped snowing in %s.", p.location.Name)
	}

	notified := false
	var accumulation *float64
	if event != nil {
		accumulation = event.Accumulation
	}
	if msg, ok := p.policy.DecideMessage(decision.Transition, accumulation, p.recipient.Name); ok {
		notified = p.notify(ctx, msg)
	}

	p.history.Save(store.PollRecord{
		CheckedAt:  now,
		Transition: decision.Transition,
		Snowing:    decision.Transition.Snowing(),
		NextPoll:   now.Add(decision.Delay),
		Event:      event,
		Notified:   notified,
	})
	p.metrics.ObservePoll(decision.Transition, decision.Delay)

	p.logger.Debugw("next poll scheduled",
		"transition", decision.Transition,
		"estimate", decision.Estimate,
		"delay", decision.Delay,
		"at", now.Add(decision.Delay).Format(time.RFC3339),
	)
	return decision.Next(), decision.Delay, nil
}

// notify makes a single delivery attempt and reports whether it succeeded.
func (p *Patrol) notify(ctx context.Context, msg string) bool {
	res, err := p.gateway.Send(ctx, p.recipient.Phone, msg)
	p.metrics.Notification(err)
	if err != nil {
		p.logger.Errorw("failed to send notification", "error", err, "quota_remaining", res.QuotaRemaining)
		return false
	}
	p.logger.Debugw("notification sent", "message", msg, "text_id", res.TextID, "quota_remaining", res.QuotaRemaining)
	return true
}
