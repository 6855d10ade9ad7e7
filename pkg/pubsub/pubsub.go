// Package pubsub implements the event fan-out between the poller and its
// consumers (health, collector, historian, mqtt bridge, live websocket).
package pubsub

import (
	"log/slog"
	"sync"
)

// Publisher fans out values to all subscribed clients. Publish blocks until
// every subscriber has received the value, so a subscriber that stops reading
// must unsubscribe first.
type Publisher[T any] struct {
	logger      *slog.Logger
	subscribers map[chan T]struct{}
	lock        sync.RWMutex
}

// New returns a Publisher for values of type T.
func New[T any](logger *slog.Logger) *Publisher[T] {
	return &Publisher[T]{
		logger:      logger,
		subscribers: make(map[chan T]struct{}),
	}
}

// Subscribe registers a new client and returns the channel it will receive
// published values on. The caller must Unsubscribe when done.
func (p *Publisher[T]) Subscribe() chan T {
	p.lock.Lock()
	defer p.lock.Unlock()
	ch := make(chan T)
	p.subscribers[ch] = struct{}{}
	p.logger.Debug("client subscribed", slog.Int("subscribers", len(p.subscribers)))
	return ch
}

// Unsubscribe removes a client. The channel is not closed: a concurrent
// Publish may still be sending on it.
func (p *Publisher[T]) Unsubscribe(ch chan T) {
	p.lock.Lock()
	defer p.lock.Unlock()
	delete(p.subscribers, ch)
	p.logger.Debug("client unsubscribed", slog.Int("subscribers", len(p.subscribers)))
}

// Publish sends value to all current subscribers.
func (p *Publisher[T]) Publish(value T) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	for ch := range p.subscribers {
		ch <- value
	}
}

// Subscribers returns the number of registered clients.
func (p *Publisher[T]) Subscribers() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return len(p.subscribers)
}
