// Package demand implements override requests: caller-scoped, time-bounded
// overrides of a zone's target temperature or an actuator's on/off state.
// Every request source (REST, MQTT, Slack, CLI) funnels through this model.
package demand

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// A Request overrides the scheduled target until it expires. A boost request
// ignores Until: it lasts until the owner's sensed value reaches the target
// or the schedule ceiling, whichever comes first.
type Request struct {
	ID     uuid.UUID `json:"id"`
	Source string    `json:"source"`
	Target float64   `json:"target"`
	Until  time.Time `json:"until,omitzero"`
	Boost  bool      `json:"boost,omitempty"`
	Added  time.Time `json:"added"`
}

// Expired reports whether a timed request has passed its deadline. Boost
// requests and requests without a deadline never expire by time.
func (r Request) Expired(now time.Time) bool {
	return !r.Boost && !r.Until.IsZero() && !now.Before(r.Until)
}

// A List holds the active requests of one zone or actuator. Requests are kept
// in insertion order, and resolution depends on that order, so List is an
// ordered sequence, never a map. List is not safe for concurrent use: the
// owning entity serializes access.
type List struct {
	requests []Request
}

// Match selects requests for explicit purging. The zero value matches every
// request.
type Match struct {
	Source string   // empty matches any source
	Target *float64 // nil matches any target
}

func (m Match) matches(r Request) bool {
	if m.Source != "" && m.Source != r.Source {
		return false
	}
	if m.Target != nil && *m.Target != r.Target {
		return false
	}
	return true
}

// Add appends a request from source. An existing request from the same
// source is removed first, so a source holds at most one active request.
func (l *List) Add(source string, target float64, until time.Time, boost bool, now time.Time) Request {
	l.Purge(Match{Source: source})
	r := Request{
		ID:     uuid.New(),
		Source: source,
		Target: target,
		Until:  until,
		Boost:  boost,
		Added:  now,
	}
	l.requests = append(l.requests, r)
	return r
}

// Purge removes all requests matching m and returns how many were removed.
func (l *List) Purge(m Match) int {
	before := len(l.requests)
	l.requests = slices.DeleteFunc(l.requests, m.matches)
	return before - len(l.requests)
}

// Expire removes timed requests that have passed their deadline, and boost
// requests for which done returns true.
func (l *List) Expire(now time.Time, done func(Request) bool) {
	l.requests = slices.DeleteFunc(l.requests, func(r Request) bool {
		if r.Boost {
			return done != nil && done(r)
		}
		return r.Expired(now)
	})
}

// Latest returns the most recently added request.
func (l *List) Latest() (Request, bool) {
	if len(l.requests) == 0 {
		return Request{}, false
	}
	return l.requests[len(l.requests)-1], true
}

// LatestBoost returns the most recently added boost request.
func (l *List) LatestBoost() (Request, bool) {
	for i := len(l.requests) - 1; i >= 0; i-- {
		if l.requests[i].Boost {
			return l.requests[i], true
		}
	}
	return Request{}, false
}

// Len returns the number of active requests.
func (l *List) Len() int {
	return len(l.requests)
}

// Active returns a copy of the active requests in insertion order.
func (l *List) Active() []Request {
	return slices.Clone(l.requests)
}
