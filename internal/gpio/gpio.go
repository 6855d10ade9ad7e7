// Package gpio abstracts the relay outputs behind a Line interface. The real
// implementation drives the Linux GPIO character device; the sim
// implementation keeps state in memory for running without hardware; the fake
// implementation records writes with timestamps for tests.
package gpio

// A Line is a single GPIO output driving a heating relay.
type Line interface {
	// Get returns the current state of the line.
	Get() (bool, error)

	// Set drives the line on or off.
	Set(bool) error

	// Close releases the line.
	Close() error
}
