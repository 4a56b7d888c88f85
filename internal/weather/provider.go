package weather

import (
	"context"
	"errors"
)

// ErrConnection marks a transient, connection-level failure of a provider.
// Callers retry these; any other provider error is treated as fatal.
var ErrConnection = errors.New("forecast provider connection error")

// Provider abstracts a forecast source (e.g. OpenWeather, WeatherAPI, Open-Meteo).
type Provider interface {
	Name() string
	Forecast(ctx context.Context, loc Location) (Forecast, error)
}

// ConnectionError wraps the underlying cause of a transient provider failure.
type ConnectionError struct {
	Provider string
	Err      error
}

func (e *ConnectionError) Error() string {
	return e.Provider + ": " + ErrConnection.Error() + ": " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrConnection) hold for every ConnectionError.
func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }
