//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// A PhysicalLine drives a relay through the Linux GPIO character device.
type PhysicalLine struct {
	line *gpiocdev.Line
}

var _ Line = &PhysicalLine{}

// NewPhysicalLine requests offset on chip (e.g. "gpiochip0") as an output,
// initially off.
func NewPhysicalLine(chip string, offset int) (*PhysicalLine, error) {
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0))
	if err != nil {
		return nil, fmt.Errorf("request gpio line %d on %s: %w", offset, chip, err)
	}
	return &PhysicalLine{line: line}, nil
}

// Get returns the current state of the line.
func (l *PhysicalLine) Get() (bool, error) {
	value, err := l.line.Value()
	if err != nil {
		return false, fmt.Errorf("read gpio line: %w", err)
	}
	return value != 0, nil
}

// Set drives the line on or off.
func (l *PhysicalLine) Set(on bool) error {
	var value int
	if on {
		value = 1
	}
	if err := l.line.SetValue(value); err != nil {
		return fmt.Errorf("write gpio line: %w", err)
	}
	return nil
}

// Close drives the line off and releases it, so a controller restart never
// leaves a relay energized.
func (l *PhysicalLine) Close() error {
	_ = l.line.SetValue(0)
	return l.line.Close()
}
