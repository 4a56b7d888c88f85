package notify

import (
	"fmt"
	"math/rand/v2"

	"github.com/i474232898/snow-patrol/internal/scheduler"
)

const (
	initialSnowingMessage = "Congratulations %s, it's FINALLY snowing!  Expecting ~%.2fcm"
	unknownAmountMessage  = "Congratulations %s, it's FINALLY snowing!  Expecting an unknown amount"
)

// StillSnowingMessages is the pool used while a snowfall continues.
var StillSnowingMessages = []string{
	"What a day - still snowing!",
	"Snow is pure bliss.",
	"Yes, snowing is nigh!",
	"Suck it sun, its time for SNOW!",
}

// DrySpellMessages is the pool used by the optional dry-spell reminder.
var DrySpellMessages = []string{
	"We should move to Anchorage..",
}

// Policy chooses the text to send for a snowing transition.
type Policy struct {
	intn func(n int) int
}

// PolicyOption customizes a Policy.
type PolicyOption func(*Policy)

// WithRand makes message picks deterministic in tests.
func WithRand(r *rand.Rand) PolicyOption {
	return func(p *Policy) { p.intn = r.IntN }
}

// NewPolicy returns a Policy drawing from the package random source.
func NewPolicy(opts ...PolicyOption) *Policy {
	p := &Policy{intn: rand.IntN}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DecideMessage returns the alert text for a transition, or false when nothing
// should be sent. The accumulation only shows up in the first message of a
// snowfall.
func (p *Policy) DecideMessage(t scheduler.Transition, accumulation *float64, name string) (string, bool) {
	switch t {
	case scheduler.EnteringSnow:
		if accumulation == nil {
			return fmt.Sprintf(unknownAmountMessage, name), true
		}
		return fmt.Sprintf(initialSnowingMessage, name, *accumulation), true
	case scheduler.ContinuingSnow:
		return p.pick(StillSnowingMessages), true
	default:
		return "", false
	}
}

// DrySpellMessage returns a message for a long stretch without snow.
func (p *Policy) DrySpellMessage() string {
	return p.pick(DrySpellMessages)
}

func (p *Policy) pick(pool []string) string {
	return pool[p.intn(len(pool))]
}
