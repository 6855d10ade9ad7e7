// Package actuator drives one physical relay through a gpio.Line and holds
// the direct on/off override requests for it.
package actuator

import (
	"fmt"
	"sync"
	"time"

	"github.com/clambin/yplan-controller/internal/demand"
	"github.com/clambin/yplan-controller/internal/gpio"
)

// Request targets for actuators: the demand model carries a number, an
// actuator interprets it as a state.
const (
	Off float64 = 0
	On  float64 = 1
)

// An Actuator owns its request list exclusively; access is serialized by a
// mutex for the same reason as in the zone package.
type Actuator struct {
	name      string
	line      gpio.Line
	lock      sync.Mutex
	demands   demand.List
	lastKnown bool
	known     bool
}

// New returns an Actuator driving line.
func New(name string, line gpio.Line) *Actuator {
	return &Actuator{name: name, line: line}
}

// Name returns the actuator's name.
func (a *Actuator) Name() string {
	return a.name
}

// Get reads the physical state of the relay.
func (a *Actuator) Get() (bool, error) {
	on, err := a.line.Get()
	if err != nil {
		return false, fmt.Errorf("actuator %s: %w", a.name, err)
	}
	a.lock.Lock()
	a.lastKnown, a.known = on, true
	a.lock.Unlock()
	return on, nil
}

// Set writes the physical state of the relay.
func (a *Actuator) Set(on bool) error {
	if err := a.line.Set(on); err != nil {
		return fmt.Errorf("actuator %s: %w", a.name, err)
	}
	a.lock.Lock()
	a.lastKnown, a.known = on, true
	a.lock.Unlock()
	return nil
}

// LastKnown returns the last state read from or written to the relay, and
// whether any read or write has succeeded yet. It stays queryable when the
// hardware fails, so a requested-vs-actual discrepancy remains observable.
func (a *Actuator) LastKnown() (on bool, known bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.lastKnown, a.known
}

// Request adds a direct on/off override from source, replacing any previous
// request from the same source.
func (a *Actuator) Request(source string, on bool, until time.Time, boost bool) demand.Request {
	target := Off
	if on {
		target = On
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.demands.Add(source, target, until, boost, time.Now())
}

// Cancel removes all requests from source and returns how many were removed.
func (a *Actuator) Cancel(source string) int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.demands.Purge(demand.Match{Source: source})
}

// PurgeExpired drops timed requests past their deadline. Boost requests are
// judged by boostDone: the controller supplies it, since expiring an actuator
// boost takes the paired zone's temperature, which the actuator doesn't know.
func (a *Actuator) PurgeExpired(now time.Time, boostDone func(demand.Request) bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.demands.Expire(now, boostDone)
}

// Override resolves the actuator's request list: any active "off" request
// wins over every concurrent "on" request regardless of recency; otherwise
// the most recently added request decides. ok is false when no requests are
// active, leaving the decision to the rule.
func (a *Actuator) Override() (on bool, ok bool) {
	a.lock.Lock()
	defer a.lock.Unlock()

	requests := a.demands.Active()
	if len(requests) == 0 {
		return false, false
	}
	for _, r := range requests {
		if r.Target == Off {
			return false, true
		}
	}
	return true, true
}

// Requests returns the active requests in insertion order.
func (a *Actuator) Requests() []demand.Request {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.demands.Active()
}

// Close releases the underlying line.
func (a *Actuator) Close() error {
	return a.line.Close()
}
