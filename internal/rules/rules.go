// Package rules implements the closed set of rule variants that translate a
// zone's state into an actuator action. Variants are selected by
// configuration; there is no user-authored rule code.
package rules

import (
	"fmt"
	"log/slog"
)

// State is the input for Evaluate: one zone and its actuator, resolved by the
// controller at the start of a tick.
type State struct {
	Zone        string
	Temperature float64
	Target      float64
	Actuator    string
	ActuatorOn  bool
	// Override carries the actuator-level request resolution, nil when no
	// direct requests are active.
	Override *bool
}

// An Action is the desired actuator state, with the reason for it.
type Action struct {
	Actuator string
	State    bool
	Reason   string
}

var _ slog.LogValuer = Action{}

// LogValue implements slog.LogValuer.
func (a Action) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("actuator", a.Actuator),
		slog.Bool("state", a.State),
		slog.String("reason", a.Reason),
	)
}

// A Rule determines the next Action, given the current State.
type Rule interface {
	Evaluate(State) (Action, error)
}

// New returns the rule variant registered under name.
func New(name string, hysteresis, frostGuard float64) (Rule, error) {
	switch name {
	case "heating":
		return HeatingRule{Hysteresis: hysteresis, FrostGuard: frostGuard}, nil
	case "hotwater":
		return HotWaterRule{Hysteresis: hysteresis}, nil
	default:
		return nil, fmt.Errorf("invalid rule %q", name)
	}
}

// thermostat is the bang-bang comparison shared by both variants: on below
// the hysteresis band, off at or above target, unchanged inside the band.
func thermostat(s State, hysteresis float64) Action {
	switch {
	case s.Temperature < s.Target-hysteresis:
		return Action{
			Actuator: s.Actuator,
			State:    true,
			Reason:   fmt.Sprintf("temperature %.1fºC below target %.1fºC", s.Temperature, s.Target),
		}
	case s.Temperature >= s.Target:
		return Action{
			Actuator: s.Actuator,
			State:    false,
			Reason:   fmt.Sprintf("temperature %.1fºC at or above target %.1fºC", s.Temperature, s.Target),
		}
	default:
		return Action{
			Actuator: s.Actuator,
			State:    s.ActuatorOn,
			Reason:   fmt.Sprintf("temperature %.1fºC within %.1fºC of target %.1fºC", s.Temperature, hysteresis, s.Target),
		}
	}
}

func override(s State) Action {
	reason := "switched off by request"
	if *s.Override {
		reason = "switched on by request"
	}
	return Action{Actuator: s.Actuator, State: *s.Override, Reason: reason}
}
