// Package controller runs the rule poll loop: on every tick it purges
// expired requests, resolves each zone's state and evaluates its rule, and
// dispatches the resulting action to the valve controller.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/clambin/yplan-controller/internal/actuator"
	"github.com/clambin/yplan-controller/internal/demand"
	"github.com/clambin/yplan-controller/internal/rules"
	"github.com/clambin/yplan-controller/internal/valve"
	"github.com/clambin/yplan-controller/internal/zone"
	"github.com/prometheus/client_golang/prometheus"
)

var ruleFailuresMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: prometheus.BuildFQName("yplan", "controller", "rule_failures_total"),
		Help: "Number of failed rule evaluations",
	},
	[]string{"zone"},
)

// RegisterMetrics registers the controller metrics with r.
func RegisterMetrics(r prometheus.Registerer) {
	r.MustRegister(ruleFailuresMetric)
}

// A Circuit ties a zone to its actuator and the rule variant that drives it.
type Circuit struct {
	Zone     *zone.Zone
	Actuator *actuator.Actuator
	Rule     rules.Rule
}

// A StateSetter sequences physical writes. Implemented by valve.Controller.
type StateSetter interface {
	SetState(ctx context.Context, channel string, on bool) error
}

// A Controller evaluates all circuits on a fixed interval. A failure in one
// circuit never stops the others, nor the next tick.
type Controller struct {
	circuits []Circuit
	valve    StateSetter
	interval time.Duration
	kick     chan struct{}
	logger   *slog.Logger
}

// New returns a Controller evaluating circuits every interval.
func New(circuits []Circuit, v StateSetter, interval time.Duration, logger *slog.Logger) *Controller {
	return &Controller{
		circuits: circuits,
		valve:    v,
		interval: interval,
		kick:     make(chan struct{}, 1),
		logger:   logger,
	}
}

// Kick forces an immediate evaluation, e.g. after a request was injected.
func (c *Controller) Kick() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Run evaluates the circuits until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Debug("started", slog.Duration("interval", c.interval))
	defer c.logger.Debug("stopped")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-c.kick:
		}
		c.tick(ctx, time.Now())
	}
}

func (c *Controller) tick(ctx context.Context, now time.Time) {
	for i := range c.circuits {
		c.evaluate(ctx, &c.circuits[i], now)
	}
}

func (c *Controller) evaluate(ctx context.Context, circuit *Circuit, now time.Time) {
	circuit.Zone.PurgeExpired(now)

	sensed, _ := circuit.Zone.Temperature()
	ceiling := circuit.Zone.Schedule().Max()
	circuit.Actuator.PurgeExpired(now, func(demand.Request) bool {
		// an actuator boost holds until the paired zone hits its ceiling
		return sensed >= ceiling
	})

	state := rules.State{
		Zone:        circuit.Zone.Name(),
		Temperature: sensed,
		Target:      circuit.Zone.TargetTemperature(now),
		Actuator:    circuit.Actuator.Name(),
	}
	if on, known := circuit.Actuator.LastKnown(); known {
		state.ActuatorOn = on
	}
	if on, ok := circuit.Actuator.Override(); ok {
		state.Override = &on
	}

	action, err := circuit.Rule.Evaluate(state)
	if err != nil {
		ruleFailuresMetric.WithLabelValues(state.Zone).Inc()
		c.logger.Error("rule evaluation failed", slog.String("zone", state.Zone), slog.Any("err", err))
		return
	}

	// only dispatch on change; the first tick always dispatches to latch a
	// known state
	if on, known := circuit.Actuator.LastKnown(); known && on == action.State {
		return
	}

	if err = c.valve.SetState(ctx, action.Actuator, action.State); err != nil {
		if errors.Is(err, valve.ErrDeferred) {
			c.logger.Debug("action deferred", slog.Any("action", action))
			return
		}
		c.logger.Error("failed to set actuator state", slog.Any("action", action), slog.Any("err", err))
		return
	}
	c.logger.Debug("action taken", slog.Any("action", action))
}
