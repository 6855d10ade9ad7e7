package rules

// A HotWaterRule is a bang-bang thermostat on the cylinder temperature, with
// a wider default band than a room thermostat.
type HotWaterRule struct {
	Hysteresis float64
}

const defaultHotWaterHysteresis = 2.0

var _ Rule = HotWaterRule{}

// Evaluate implements the Rule interface.
func (r HotWaterRule) Evaluate(s State) (Action, error) {
	if s.Override != nil {
		return override(s), nil
	}
	hysteresis := r.Hysteresis
	if hysteresis == 0 {
		hysteresis = defaultHotWaterHysteresis
	}
	return thermostat(s, hysteresis), nil
}
