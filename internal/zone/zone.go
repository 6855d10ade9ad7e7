// Package zone implements a heating circuit: a sensed temperature, a daily
// schedule and the active override requests, resolved into an effective
// target temperature.
package zone

import (
	"sync"
	"time"

	"github.com/clambin/yplan-controller/internal/demand"
	"github.com/clambin/yplan-controller/internal/schedule"
)

// A Zone owns its request list exclusively. Request sources run on their own
// goroutines (HTTP, MQTT, Slack), so all access is serialized by a mutex.
type Zone struct {
	name     string
	schedule schedule.Schedule
	lock     sync.Mutex
	demands  demand.List
	sensed   float64
	sensedAt time.Time
}

// New returns a Zone with the given schedule.
func New(name string, s schedule.Schedule) *Zone {
	return &Zone{name: name, schedule: s}
}

// Name returns the zone's name.
func (z *Zone) Name() string {
	return z.name
}

// Schedule returns the zone's schedule.
func (z *Zone) Schedule() schedule.Schedule {
	return z.schedule
}

// SetTemperature records a sensor reading.
func (z *Zone) SetTemperature(value float64, at time.Time) {
	z.lock.Lock()
	defer z.lock.Unlock()
	z.sensed = value
	z.sensedAt = at
}

// Temperature returns the last sensor reading and when it was taken.
func (z *Zone) Temperature() (float64, time.Time) {
	z.lock.Lock()
	defer z.lock.Unlock()
	return z.sensed, z.sensedAt
}

// Request adds a target override from source, replacing any previous request
// from the same source.
func (z *Zone) Request(source string, target float64, until time.Time, boost bool) demand.Request {
	z.lock.Lock()
	defer z.lock.Unlock()
	return z.demands.Add(source, target, until, boost, time.Now())
}

// Cancel removes all requests from source and returns how many were removed.
func (z *Zone) Cancel(source string) int {
	z.lock.Lock()
	defer z.lock.Unlock()
	return z.demands.Purge(demand.Match{Source: source})
}

// PurgeExpired drops timed requests past their deadline and boost requests
// whose target, capped at the schedule ceiling, has been reached.
func (z *Zone) PurgeExpired(now time.Time) {
	z.lock.Lock()
	defer z.lock.Unlock()
	z.expire(now)
}

func (z *Zone) expire(now time.Time) {
	sensed := z.sensed
	ceiling := z.schedule.Max()
	z.demands.Expire(now, func(r demand.Request) bool {
		return sensed >= min(r.Target, ceiling)
	})
}

// TargetTemperature resolves the effective target at now. Expired requests
// are purged first. The most recently added boost request wins; otherwise the
// most recently added request wins; with no requests the schedule applies.
func (z *Zone) TargetTemperature(now time.Time) float64 {
	z.lock.Lock()
	defer z.lock.Unlock()
	z.expire(now)
	if r, ok := z.demands.LatestBoost(); ok {
		return r.Target
	}
	if r, ok := z.demands.Latest(); ok {
		return r.Target
	}
	return z.schedule.ValueAt(now)
}

// Requests returns the active requests in insertion order, purging expired
// ones first.
func (z *Zone) Requests() []demand.Request {
	z.lock.Lock()
	defer z.lock.Unlock()
	z.expire(time.Now())
	return z.demands.Active()
}
