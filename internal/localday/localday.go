// Package localday resolves "today" and "next local midnight" for a player's
// declared IANA time zone. It is pure: callers pass the current instant in.
package localday

import (
	"errors"
	"strings"
	"time"
	_ "time/tzdata"
)

// DefaultZone is used whenever a client supplies no zone or an unknown one.
// Availability beats zone precision: a write must never fail on a bad zone.
const DefaultZone = "UTC"

const dayFormat = "2006-01-02"

// Resolution describes one instant projected into a zone.
type Resolution struct {
	// Day is the calendar date (YYYY-MM-DD) the instant falls on in Zone.
	Day string
	// NextMidnight is the absolute instant of the next local midnight after
	// the resolved day begins. On DST-transition days the local day may be 23
	// or 25 wall-clock hours long; NextMidnight is still exact in absolute
	// time. If 00:00 does not exist in the zone that day, this is the first
	// instant of the following local day.
	NextMidnight time.Time
	// Zone is the IANA name actually used, after any fallback.
	Zone string
	// Fallback reports that the supplied zone was absent or unknown and
	// DefaultZone was used instead.
	Fallback bool
}

// Resolve projects now into the named zone.
func Resolve(name string, now time.Time) Resolution {
	name = strings.TrimSpace(name)
	loc, err := loadZone(name)
	fallback := false
	if name == "" || err != nil {
		loc = time.UTC
		fallback = true
	}

	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)

	zone := DefaultZone
	if !fallback {
		zone = name
	}
	return Resolution{
		Day:          local.Format(dayFormat),
		NextMidnight: next,
		Zone:         zone,
		Fallback:     fallback,
	}
}

// Valid reports whether name is a known IANA zone identifier.
func Valid(name string) bool {
	_, err := loadZone(strings.TrimSpace(name))
	return err == nil
}

// ValidDay reports whether day is a well-formed YYYY-MM-DD date.
func ValidDay(day string) bool {
	_, err := time.Parse(dayFormat, day)
	return err == nil
}

func loadZone(name string) (*time.Location, error) {
	if name == "" {
		return nil, errEmptyZone
	}
	return time.LoadLocation(name)
}

var errEmptyZone = errors.New("empty zone")
