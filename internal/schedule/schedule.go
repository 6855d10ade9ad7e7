// Package schedule implements the daily target timeline for a zone: an
// ordered list of (time of day, value) points spanning 24 hours. The value at
// any moment is the linear interpolation between the two bracketing points,
// wrapping at midnight. A Schedule is immutable once built; reconfiguration
// replaces it wholesale.
package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNoPoints is returned when a schedule is built without any points.
var ErrNoPoints = errors.New("schedule has no points")

// TimeOfDay is a wall-clock time within the schedule's 24h period.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// UnmarshalYAML parses "HH:MM:SS" or "HH:MM".
func (t *TimeOfDay) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.Parse("15:04:05", value.Value)
	if err != nil {
		parsed, err = time.Parse("15:04", value.Value)
	}
	if err != nil {
		return fmt.Errorf("invalid time of day: %w", err)
	}
	*t = TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute(), Second: parsed.Second()}
	return nil
}

// MarshalYAML emits "HH:MM:SS".
func (t TimeOfDay) MarshalYAML() (any, error) {
	return t.String(), nil
}

// UnmarshalJSON parses "HH:MM:SS" or "HH:MM".
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse("15:04:05", s)
	if err != nil {
		parsed, err = time.Parse("15:04", s)
	}
	if err != nil {
		return fmt.Errorf("invalid time of day: %w", err)
	}
	*t = TimeOfDay{Hour: parsed.Hour(), Minute: parsed.Minute(), Second: parsed.Second()}
	return nil
}

// MarshalJSON emits "HH:MM:SS".
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Seconds returns the offset into the day, in seconds.
func (t TimeOfDay) Seconds() float64 {
	return float64(t.Hour*3600 + t.Minute*60 + t.Second)
}

// A Point is one control point of the schedule.
type Point struct {
	Time  TimeOfDay `yaml:"time" json:"time"`
	Value float64   `yaml:"value" json:"value"`
}

// A Schedule is a validated, ordered set of control points.
type Schedule struct {
	points []Point
}

const secondsPerDay = 24 * 60 * 60

// New validates the points and returns a Schedule. Points must be non-empty
// and strictly ascending in time of day.
func New(points []Point) (Schedule, error) {
	if len(points) == 0 {
		return Schedule{}, ErrNoPoints
	}
	for i := 1; i < len(points); i++ {
		if points[i].Time.Seconds() <= points[i-1].Time.Seconds() {
			return Schedule{}, fmt.Errorf("schedule points out of order: %s follows %s", points[i].Time, points[i-1].Time)
		}
	}
	return Schedule{points: slices.Clone(points)}, nil
}

// ValueAt returns the scheduled value at the time of day of t, linearly
// interpolated between the two bracketing points.
func (s Schedule) ValueAt(t time.Time) float64 {
	seconds := float64(t.Hour()*3600+t.Minute()*60+t.Second()) + float64(t.Nanosecond())/1e9
	return s.valueAt(seconds)
}

func (s Schedule) valueAt(seconds float64) float64 {
	if len(s.points) == 1 {
		return s.points[0].Value
	}
	first := s.points[0]
	last := s.points[len(s.points)-1]
	if seconds < first.Time.Seconds() || seconds >= last.Time.Seconds() {
		// between the last point and the first point of the next day
		span := secondsPerDay - last.Time.Seconds() + first.Time.Seconds()
		offset := seconds - last.Time.Seconds()
		if offset < 0 {
			offset += secondsPerDay
		}
		if span == 0 {
			return last.Value
		}
		return interpolate(last.Value, first.Value, offset/span)
	}
	for i := 1; i < len(s.points); i++ {
		if seconds < s.points[i].Time.Seconds() {
			p0, p1 := s.points[i-1], s.points[i]
			fraction := (seconds - p0.Time.Seconds()) / (p1.Time.Seconds() - p0.Time.Seconds())
			return interpolate(p0.Value, p1.Value, fraction)
		}
	}
	return last.Value
}

func interpolate(a, b, fraction float64) float64 {
	return a + (b-a)*fraction
}

// Max returns the highest value across all points. Boost requests use it as
// the safety ceiling.
func (s Schedule) Max() float64 {
	result := s.points[0].Value
	for _, p := range s.points[1:] {
		result = max(result, p.Value)
	}
	return result
}

// Min returns the lowest value across all points.
func (s Schedule) Min() float64 {
	result := s.points[0].Value
	for _, p := range s.points[1:] {
		result = min(result, p.Value)
	}
	return result
}

// Points returns a copy of the schedule's control points.
func (s Schedule) Points() []Point {
	return slices.Clone(s.points)
}
