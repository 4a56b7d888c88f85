package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultConnectionWait is the pause between attempts after a connection failure.
	DefaultConnectionWait = 5 * time.Minute
	// DefaultReportEvery is how many consecutive failures produce one error report.
	DefaultReportEvery = 10
)

// RetryPolicy controls how Fetcher reacts to connection-level failures.
type RetryPolicy struct {
	Wait        time.Duration
	ReportEvery int
}

// DefaultRetryPolicy waits DefaultConnectionWait and reports every DefaultReportEvery failures.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Wait: DefaultConnectionWait, ReportEvery: DefaultReportEvery}
}

// Fetcher retrieves forecasts for one location, retrying transient failures forever.
type Fetcher struct {
	provider Provider
	loc      Location
	policy   RetryPolicy
	logger   *zap.SugaredLogger

	sleep     func(ctx context.Context, d time.Duration) error
	onFailure func(err error)
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithSleep replaces the wait between attempts (tests use a non-blocking fake).
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) FetcherOption {
	return func(f *Fetcher) { f.sleep = sleep }
}

// WithFailureHook is called once for every failed attempt.
func WithFailureHook(hook func(err error)) FetcherOption {
	return func(f *Fetcher) { f.onFailure = hook }
}

// NewFetcher creates a Fetcher. A zero policy field falls back to the default.
func NewFetcher(provider Provider, loc Location, policy RetryPolicy, logger *zap.SugaredLogger, opts ...FetcherOption) *Fetcher {
	if policy.Wait <= 0 {
		policy.Wait = DefaultConnectionWait
	}
	if policy.ReportEvery <= 0 {
		policy.ReportEvery = DefaultReportEvery
	}
	f := &Fetcher{
		provider:  provider,
		loc:       loc,
		policy:    policy,
		logger:    logger,
		sleep:     Sleep,
		onFailure: func(error) {},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch blocks until the provider returns a forecast.
// Connection failures are retried indefinitely; every ReportEvery-th consecutive
// failure is reported once at error level. Other errors are returned as is, and
// a cancelled context ends the wait with ctx.Err().
func (f *Fetcher) Fetch(ctx context.Context) (Forecast, error) {
	f.logger.Debugw("checking the forecast", "provider", f.provider.Name(), "location", f.loc.Key())

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return Forecast{}, err
		}

		forecast, err := f.provider.Forecast(ctx, f.loc)
		if err == nil {
			return forecast, nil
		}

		f.onFailure(err)
		if !errors.Is(err, ErrConnection) {
			return Forecast{}, fmt.Errorf("fetch forecast from %s: %w", f.provider.Name(), err)
		}

		failures++
		if failures%f.policy.ReportEvery == 0 {
			f.logger.Errorw("persistent connection issue",
				"provider", f.provider.Name(),
				"failures", failures,
				"error_type", causeType(err),
				"error", err,
			)
		}

		f.logger.Debugw("connection error, waiting", "wait", f.policy.Wait, "error", err)
		if err := f.sleep(ctx, f.policy.Wait); err != nil {
			return Forecast{}, err
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func causeType(err error) string {
	var ce *ConnectionError
	if errors.As(err, &ce) && ce.Err != nil {
		return fmt.Sprintf("%T", ce.Err)
	}
	return fmt.Sprintf("%T", err)
}
