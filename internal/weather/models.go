package weather

import (
	"fmt"
	"time"
)

// PrecipType is the normalized kind of precipitation reported by a provider.
type PrecipType string

const (
	PrecipNone  PrecipType = ""
	PrecipSnow  PrecipType = "snow"
	PrecipRain  PrecipType = "rain"
	PrecipSleet PrecipType = "sleet"
)

// Location is the single place snow-patrol watches.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Key returns a canonical string key for logging and metrics labels.
func (l Location) Key() string {
	return fmt.Sprintf("%s(%.4f,%.4f)", l.Name, l.Latitude, l.Longitude)
}

// PrecipitationSample is one forecast data point.
// An empty Type means no precipitation; a nil Accumulation means the amount is
// unknown, not zero.
type PrecipitationSample struct {
	Time         time.Time  `json:"time"`
	Probability  float64    `json:"probability"`
	Intensity    float64    `json:"intensityMmPerHour"`
	Type         PrecipType `json:"type,omitempty"`
	Accumulation *float64   `json:"accumulationCm,omitempty"`
}

// At returns a copy of the sample stamped with t.
func (s PrecipitationSample) At(t time.Time) PrecipitationSample {
	s.Time = t
	return s
}

func (s PrecipitationSample) String() string {
	precipitation := "none"
	if s.Type != PrecipNone {
		prefix := ""
		if s.Accumulation != nil {
			prefix = fmt.Sprintf("%gcm of ", *s.Accumulation)
		}
		precipitation = fmt.Sprintf("%s%s, p=%.4f, i=%.4f", prefix, s.Type, s.Probability, s.Intensity)
	}
	return fmt.Sprintf("PrecipitationPoint{%s, %s}", s.Time.Format(time.RFC3339), precipitation)
}

// Forecast is the current sample plus hourly samples in chronological order.
// Hourly[i] is treated as now+(i+1)h regardless of its embedded timestamp.
type Forecast struct {
	Currently PrecipitationSample   `json:"currently"`
	Hourly    []PrecipitationSample `json:"hourly"`
}

// SnowEvent is a sample that classified as snowing.
type SnowEvent struct {
	PrecipitationSample
}

// Float returns a pointer to v, for optional sample fields.
func Float(v float64) *float64 {
	return &v
}
