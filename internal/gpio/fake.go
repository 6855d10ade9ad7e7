package gpio

import (
	"sync"
	"time"
)

// A FakeLine records every write with a timestamp. The valve tests use it to
// verify the interlock write sequence and its timing.
type FakeLine struct {
	lock   sync.Mutex
	on     bool
	writes []Write
	getErr error
	setErr error
	closed bool
}

// A Write is one recorded Set call.
type Write struct {
	At    time.Time
	State bool
}

var _ Line = &FakeLine{}

// NewFakeLine returns a FakeLine in the given initial state.
func NewFakeLine(on bool) *FakeLine {
	return &FakeLine{on: on}
}

// Get returns the current state, or the error set by FailGet.
func (l *FakeLine) Get() (bool, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.getErr != nil {
		return false, l.getErr
	}
	return l.on, nil
}

// Set records the write and updates the state, or returns the error set by
// FailSet.
func (l *FakeLine) Set(on bool) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.setErr != nil {
		return l.setErr
	}
	l.on = on
	l.writes = append(l.writes, Write{At: time.Now(), State: on})
	return nil
}

// Close marks the line as closed.
func (l *FakeLine) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.closed = true
	return nil
}

// Closed reports whether Close was called.
func (l *FakeLine) Closed() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.closed
}

// Writes returns all recorded writes, in order.
func (l *FakeLine) Writes() []Write {
	l.lock.Lock()
	defer l.lock.Unlock()
	writes := make([]Write, len(l.writes))
	copy(writes, l.writes)
	return writes
}

// FailGet makes subsequent Get calls return err.
func (l *FakeLine) FailGet(err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.getErr = err
}

// FailSet makes subsequent Set calls return err.
func (l *FakeLine) FailSet(err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.setErr = err
}
