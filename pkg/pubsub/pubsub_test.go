package pubsub

import (
	"github.com/stretchr/testify/assert"
	"log/slog"
	"sync"
	"testing"
)

func TestPublisher(t *testing.T) {
	p := New[int](slog.New(slog.DiscardHandler))

	const clients = 3
	var ready, done sync.WaitGroup
	received := make([]int, clients)

	for i := range clients {
		ready.Add(1)
		done.Add(1)
		go func() {
			ch := p.Subscribe()
			defer p.Unsubscribe(ch)
			ready.Done()
			received[i] = <-ch
			done.Done()
		}()
	}

	ready.Wait()
	// wait for all subscriptions to be registered
	assert.Eventually(t, func() bool { return p.Subscribers() == clients }, time.Second, 10*time.Millisecond)

	p.Publish(42)
	done.Wait()

	for i := range clients {
		assert.Equal(t, 42, received[i])
	}
}

func TestPublisher_Unsubscribe(t *testing.T) {
	p := New[string](slog.New(slog.DiscardHandler))

	ch := p.Subscribe()
	assert.Equal(t, 1, p.Subscribers())

	p.Unsubscribe(ch)
	assert.Equal(t, 0, p.Subscribers())

	// publishing with no subscribers does not block
	p.Publish("hello")
}
