package scheduler

import (
	"time"

	"github.com/i474232898/snow-patrol/internal/weather"
)

const (
	// LongPoll is the longest gap between checks when no snow is imminent.
	LongPoll = 1 * time.Hour
	// SnowPoll is the gap between checks while it is snowing.
	SnowPoll = 10 * time.Minute
	// SnowThreshold is how close an event must be to count as snowing now.
	SnowThreshold = 5 * time.Minute
	// ConnectionWait is the pause after a failed forecast request.
	ConnectionWait = weather.DefaultConnectionWait

	// approachFactor shrinks the wait as predicted snowfall gets closer.
	approachFactor = 0.8
)

// Transition classifies how the snowing state changed between two polls.
type Transition string

const (
	EnteringSnow   Transition = "entering_snow"
	ContinuingSnow Transition = "continuing_snow"
	EndingSnow     Transition = "ending_snow"
	NoSnow         Transition = "no_snow"
	NoForecast     Transition = "no_forecast"
)

// Snowing reports whether the transition leaves the patrol in the snowing state.
func (t Transition) Snowing() bool {
	return t == EnteringSnow || t == ContinuingSnow
}

// State is carried from one poll to the next by the main loop.
type State struct {
	AlreadySnowing bool
}

// Decision is the outcome of one scheduling step.
type Decision struct {
	Delay      time.Duration
	Transition Transition
	Estimate   time.Duration
}

// Next returns the state that follows the decision.
func (d Decision) Next() State {
	return State{AlreadySnowing: d.Transition.Snowing()}
}

// NextInterval decides how long to wait before the next poll and how the
// snowing state changes. A nil event means nothing in the forecast qualified.
func NextInterval(event *weather.SnowEvent, now time.Time, alreadySnowing bool) Decision {
	if event == nil {
		return Decision{Delay: LongPoll, Transition: NoForecast}
	}

	// An event stamped before now is treated as happening right now.
	var estimate time.Duration
	if !event.Time.Before(now) {
		estimate = event.Time.Sub(now)
	}

	if estimate < SnowThreshold {
		t := EnteringSnow
		if alreadySnowing {
			t = ContinuingSnow
		}
		return Decision{Delay: SnowPoll, Transition: t, Estimate: estimate}
	}

	t := NoSnow
	if alreadySnowing {
		t = EndingSnow
	}
	return Decision{Delay: approachDelay(estimate), Transition: t, Estimate: estimate}
}

// approachDelay polls at 80% of the remaining time, bounded to
// [SnowThreshold, LongPoll].
func approachDelay(estimate time.Duration) time.Duration {
	if estimate > LongPoll {
		return LongPoll
	}
	delay := time.Duration(float64(estimate) * approachFactor)
	if delay < SnowThreshold {
		return SnowThreshold
	}
	return delay
}
