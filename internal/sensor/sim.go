package sensor

import (
	"context"
	"sync"
	"time"
)

// A Sim models a zone's temperature for running without hardware: it drifts
// toward Limit while the heat source is on and back toward Ambient while it
// is off.
type Sim struct {
	heating      func() bool
	ambient      float64
	limit        float64
	timeConstant time.Duration
	lock         sync.Mutex
	current      float64
	last         time.Time
}

var _ Sensor = &Sim{}

// NewSim returns a Sim starting at initial degrees. heating reports the state
// of the zone's heat source.
func NewSim(initial, ambient, limit float64, heating func() bool) *Sim {
	return &Sim{
		heating:      heating,
		ambient:      ambient,
		limit:        limit,
		timeConstant: 15 * time.Minute,
		current:      initial,
		last:         time.Now(),
	}
}

// Read advances the model and returns the current temperature.
func (s *Sim) Read(_ context.Context) (float64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	now := time.Now()
	elapsed := now.Sub(s.last)
	s.last = now

	target := s.ambient
	if s.heating != nil && s.heating() {
		target = s.limit
	}

	fraction := min(1, elapsed.Seconds()/s.timeConstant.Seconds())
	s.current += (target - s.current) * fraction
	return s.current, nil
}
