// Package valve implements the Y-plan interlock. Central heating and hot
// water share a single 3-way valve driven by a spring-return motor. Switching
// CH off while HW is off leaves the grey wire energized with the motor
// mid-travel, which can stall it indefinitely and draw continuous current.
// The interlock sequences the relay writes so the spring fully discharges
// before either channel's final state is latched.
package valve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clambin/yplan-controller/internal/actuator"
	"github.com/clambin/yplan-controller/pkg/scheduler"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrDeferred is returned when a transition is already in flight: the call
// has been queued and will be retried after the valve return delay.
var ErrDeferred = errors.New("valve transition in progress")

// ErrUnknownChannel is returned when SetState is called for a channel the
// controller does not manage.
var ErrUnknownChannel = errors.New("unknown channel")

var (
	transitionsMetric = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: prometheus.BuildFQName("yplan", "valve", "transitions_total"),
			Help: "Number of physical relay transitions",
		},
		[]string{"channel"},
	)
	interlockMetric = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: prometheus.BuildFQName("yplan", "valve", "interlock_total"),
			Help: "Number of times the spring-return interlock sequence ran",
		},
	)
	deferredMetric = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: prometheus.BuildFQName("yplan", "valve", "deferred_total"),
			Help: "Number of SetState calls deferred because a transition was in flight",
		},
	)
)

// RegisterMetrics registers the valve metrics with r.
func RegisterMetrics(r prometheus.Registerer) {
	r.MustRegister(transitionsMetric, interlockMetric, deferredMetric)
}

// A Controller coordinates the two actuators sharing the valve. At most one
// transition is in flight system-wide; calls arriving mid-transition are
// deferred, never interleaved.
type Controller struct {
	ch          *actuator.Actuator
	hw          *actuator.Actuator
	returnDelay time.Duration
	logger      *slog.Logger
	lock        sync.Mutex
	pending     bool
	wg          sync.WaitGroup
}

// New returns a Controller for the CH and HW actuators. returnDelay is the
// time the valve spring needs to fully return.
func New(ch, hw *actuator.Actuator, returnDelay time.Duration, logger *slog.Logger) *Controller {
	return &Controller{
		ch:          ch,
		hw:          hw,
		returnDelay: returnDelay,
		logger:      logger,
	}
}

// SetState drives channel to the desired state, applying the interlock
// protocol. If a transition is already in flight, the call returns
// ErrDeferred and is retried after the valve return delay. An I/O failure is
// returned to the caller and never retried internally: the next rule
// evaluation re-attempts it.
func (c *Controller) SetState(ctx context.Context, channel string, on bool) error {
	target, other, err := c.channels(channel)
	if err != nil {
		return err
	}

	c.lock.Lock()
	if c.pending {
		c.lock.Unlock()
		c.retryLater(ctx, channel, on)
		return ErrDeferred
	}
	c.lock.Unlock()

	current, err := target.Get()
	if err != nil {
		return err
	}
	if current == on {
		return nil
	}

	if target == c.ch && !on {
		hwOn, err := other.Get()
		if err != nil {
			return err
		}
		if !hwOn {
			return c.springReturn(ctx)
		}
	}

	if err = target.Set(on); err != nil {
		return err
	}
	transitionsMetric.WithLabelValues(channel).Inc()
	c.logger.Info("channel switched", slog.String("channel", channel), slog.Bool("state", on))
	return nil
}

// Pending reports whether a transition is in flight.
func (c *Controller) Pending() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.pending
}

// Close waits for an in-flight interlock sequence to complete. The sequence
// is never aborted: stopping mid-sequence would leave the valve in the
// dangerous unresolved state.
func (c *Controller) Close() {
	c.wg.Wait()
}

// springReturn runs the dangerous-path sequence: CH off, HW on, hold for the
// valve return delay, confirm CH off. HW deliberately stays on; the next rule
// evaluation re-issues its real desired state.
func (c *Controller) springReturn(ctx context.Context) error {
	if err := c.ch.Set(false); err != nil {
		return err
	}
	if err := c.hw.Set(true); err != nil {
		return err
	}
	transitionsMetric.WithLabelValues(c.ch.Name()).Inc()
	transitionsMetric.WithLabelValues(c.hw.Name()).Inc()
	interlockMetric.Inc()
	c.logger.Info("valve interlock engaged", slog.Duration("delay", c.returnDelay))

	c.lock.Lock()
	c.pending = true
	c.lock.Unlock()

	// the confirm write must happen even if the caller's context is canceled
	c.wg.Add(1)
	scheduler.Schedule(context.WithoutCancel(ctx), scheduler.RunFunc(func(_ context.Context) error {
		defer c.wg.Done()
		defer c.clearPending()
		if err := c.ch.Set(false); err != nil {
			c.logger.Error("failed to confirm CH off after valve return", slog.Any("err", err))
			return err
		}
		c.logger.Debug("valve interlock released")
		return nil
	}), c.returnDelay)
	return nil
}

func (c *Controller) retryLater(ctx context.Context, channel string, on bool) {
	deferredMetric.Inc()
	c.logger.Debug("transition in progress. deferring call",
		slog.String("channel", channel), slog.Bool("state", on))
	scheduler.Schedule(ctx, scheduler.RunFunc(func(ctx context.Context) error {
		err := c.SetState(ctx, channel, on)
		if err != nil && !errors.Is(err, ErrDeferred) {
			c.logger.Error("deferred transition failed",
				slog.String("channel", channel), slog.Bool("state", on), slog.Any("err", err))
		}
		return err
	}), c.returnDelay)
}

func (c *Controller) clearPending() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.pending = false
}

func (c *Controller) channels(name string) (target, other *actuator.Actuator, err error) {
	switch name {
	case c.ch.Name():
		return c.ch, c.hw, nil
	case c.hw.Name():
		return c.hw, c.ch, nil
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}
}
