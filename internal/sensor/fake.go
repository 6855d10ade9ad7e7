package sensor

import (
	"context"
	"errors"
	"sync"
)

// A Fake returns scripted temperatures for tests. Once the script is
// exhausted, the last value repeats.
type Fake struct {
	lock         sync.Mutex
	temperatures []float64
	index        int
	err          error
}

var _ Sensor = &Fake{}

// NewFake returns a Fake that serves the given temperatures in order.
func NewFake(temperatures ...float64) *Fake {
	return &Fake{temperatures: temperatures}
}

// Read returns the next scripted temperature.
func (f *Fake) Read(_ context.Context) (float64, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if len(f.temperatures) == 0 {
		return 0, errors.New("no temperatures configured")
	}
	value := f.temperatures[f.index]
	if f.index < len(f.temperatures)-1 {
		f.index++
	}
	return value, nil
}

// Fail makes subsequent Read calls return err. Pass nil to recover.
func (f *Fake) Fail(err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.err = err
}
