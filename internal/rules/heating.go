package rules

import "fmt"

// A HeatingRule is a thermostat with hysteresis and a frost guard for the
// central heating circuit. The frost guard outranks everything, including
// "off" overrides.
type HeatingRule struct {
	Hysteresis float64
	FrostGuard float64
}

const defaultHeatingHysteresis = 0.5

var _ Rule = HeatingRule{}

// Evaluate implements the Rule interface.
func (r HeatingRule) Evaluate(s State) (Action, error) {
	if r.FrostGuard > 0 && s.Temperature < r.FrostGuard {
		return Action{
			Actuator: s.Actuator,
			State:    true,
			Reason:   fmt.Sprintf("temperature %.1fºC below frost guard %.1fºC", s.Temperature, r.FrostGuard),
		}, nil
	}
	if s.Override != nil {
		return override(s), nil
	}
	hysteresis := r.Hysteresis
	if hysteresis == 0 {
		hysteresis = defaultHeatingHysteresis
	}
	return thermostat(s, hysteresis), nil
}
