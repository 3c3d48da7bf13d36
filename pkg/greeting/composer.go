package greeting

import (
	"fmt"
	"strings"
	"time"
)

// Composer builds the opening line of a call
type Composer struct {
	phrases  Phrases
	brand    string
	location *time.Location
	now      func() time.Time
}

// NewComposer creates a composer; a nil location means time.Local
func NewComposer(phrases Phrases, brand string, location *time.Location) *Composer {
	if location == nil {
		location = time.Local
	}
	return &Composer{
		phrases:  phrases,
		brand:    brand,
		location: location,
		now:      time.Now,
	}
}

// Phrases returns the locale pack in use
func (c *Composer) Phrases() Phrases {
	return c.phrases
}

// Opener maps a local hour to the time-of-day opener.
// [5,12) morning, [12,19) afternoon, everything else evening.
func (c *Composer) Opener(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return c.phrases.Morning
	case hour >= 12 && hour < 19:
		return c.phrases.Afternoon
	default:
		return c.phrases.Evening
	}
}

// Compose is a pure function of the hour and an optional given name
func (c *Composer) Compose(hour int, name string) string {
	headline := c.Opener(hour)
	if name = strings.TrimSpace(name); name != "" {
		headline = headline + ", " + name
	}
	return fmt.Sprintf(c.phrases.Exclaim, headline) + " " + fmt.Sprintf(c.phrases.Identification, c.brand)
}

// ComposeNow composes using the current wall clock in the configured zone
func (c *Composer) ComposeNow(name string) string {
	return c.Compose(c.now().In(c.location).Hour(), name)
}

// WithClock replaces the wall clock, mostly for tests
func (c *Composer) WithClock(now func() time.Time) *Composer {
	c.now = now
	return c
}
