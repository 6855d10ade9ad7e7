// Package sensor provides the zone temperature sources: a DS18B20 1-wire
// reader for real installations, a drift model for simulation and a scripted
// fake for tests.
package sensor

import "context"

// A Sensor reads the current temperature of a zone, in degrees Celsius.
type Sensor interface {
	Read(ctx context.Context) (float64, error)
}
