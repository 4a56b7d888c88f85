package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/snow-patrol/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

func defaultHTTPConfig(client *http.Client) HTTPClientConfig {
	return HTTPClientConfig{
		Client: client,
		Backoff: BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
	}
}

// tripAfter is the number of consecutive upstream failures that opens the circuit.
const tripAfter = 5

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		IsSuccessful: upstreamHealthy,
	})
}

// upstreamHealthy reports whether err says nothing bad about the provider
// itself. Client errors and our own cancellations do not count as failures.
func upstreamHealthy(err error) bool {
	var se *statusError
	return err == nil || errors.As(err, &se) || errors.Is(err, context.Canceled)
}

// statusError carries a non-2xx status that is neither throttling nor a server fault.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: %d", errUnexpected, e.code)
}

func (e *statusError) Unwrap() error { return errUnexpected }

// doRequestWithResilience executes the HTTP request with retries, exponential backoff,
// and a circuit breaker. Failures that are worth retrying later (transport errors,
// 429, 5xx, open circuit) come back as *weather.ConnectionError; anything else
// is returned unwrapped.
func doRequestWithResilience(
	ctx context.Context,
	provider string,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				resp.Body.Close()
				return nil, errRateLimited
			case resp.StatusCode >= 500:
				resp.Body.Close()
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				resp.Body.Close()
				return nil, &statusError{code: resp.StatusCode}
			}

			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &weather.ConnectionError{Provider: provider, Err: fmt.Errorf("%w: %v", errCircuitOpen, err)}
		}

		// Client errors will not get better by asking again.
		var se *statusError
		if errors.As(err, &se) {
			return nil, err
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt >= cfg.Backoff.MaxRetries {
			return nil, &weather.ConnectionError{Provider: provider, Err: err}
		}

		// Backoff with exponential delay.
		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
			// continue to next attempt
		}

		attempt++
	}
}

// snowToLiquidRatio is the usual 10:1 rule of thumb for fresh snow.
const snowToLiquidRatio = 10.0

const mmPerCm = 10.0

// snowDepthCm estimates snow depth in cm from its liquid equivalent in mm.
// At 10:1, 1 mm of liquid gives 1 cm of snow.
func snowDepthCm(liquidMm float64) float64 {
	return liquidMm * snowToLiquidRatio / mmPerCm
}
