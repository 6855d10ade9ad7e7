package gpio

import "sync"

// A SimLine is an in-memory line for running the controller without hardware.
type SimLine struct {
	lock sync.Mutex
	on   bool
}

var _ Line = &SimLine{}

// NewSimLine returns a SimLine, initially off.
func NewSimLine() *SimLine {
	return &SimLine{}
}

// Get returns the current state of the line.
func (l *SimLine) Get() (bool, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.on, nil
}

// Set drives the line on or off.
func (l *SimLine) Set(on bool) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.on = on
	return nil
}

// Close releases the line.
func (l *SimLine) Close() error {
	return nil
}

// On returns the current state without the error return, for wiring into the
// simulated sensor.
func (l *SimLine) On() bool {
	on, _ := l.Get()
	return on
}
