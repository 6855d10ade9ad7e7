//go:build !linux

package gpio

import "errors"

// NewPhysicalLine is only available on Linux. Other platforms use the sim
// backend.
func NewPhysicalLine(_ string, _ int) (Line, error) {
	return nil, errors.New("gpio hardware access requires linux")
}
