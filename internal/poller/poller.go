// Package poller periodically reads the zone sensors and publishes a snapshot
// of zones and actuators to all subscribers.
package poller

import (
	"context"
	"log/slog"
	"time"

	"github.com/clambin/yplan-controller/internal/actuator"
	"github.com/clambin/yplan-controller/internal/sensor"
	"github.com/clambin/yplan-controller/internal/zone"
	"github.com/clambin/yplan-controller/pkg/pubsub"
)

// Poller is the consumer-side view of a StatusPoller.
type Poller interface {
	Subscribe() chan Update
	Unsubscribe(ch chan Update)
	Refresh()
}

// A Source pairs a zone with the sensor that measures it.
type Source struct {
	Zone   *zone.Zone
	Sensor sensor.Sensor
}

var _ Poller = &StatusPoller{}

// A StatusPoller reads all sensors on a fixed interval, stores the readings on
// their zones and publishes the resulting Update.
type StatusPoller struct {
	*pubsub.Publisher[Update]
	sources   []Source
	actuators []*actuator.Actuator
	interval  time.Duration
	refresh   chan struct{}
	logger    *slog.Logger
}

// New returns a StatusPoller for the given sources and actuators.
func New(sources []Source, actuators []*actuator.Actuator, interval time.Duration, logger *slog.Logger) *StatusPoller {
	return &StatusPoller{
		Publisher: pubsub.New[Update](logger.With(slog.String("component", "registry"))),
		sources:   sources,
		actuators: actuators,
		interval:  interval,
		refresh:   make(chan struct{}),
		logger:    logger,
	}
}

// Run polls until ctx is canceled.
func (p *StatusPoller) Run(ctx context.Context) error {
	p.logger.Debug("started", slog.Duration("interval", p.interval))
	defer p.logger.Debug("stopped")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-p.refresh:
		}
		p.poll(ctx)
	}
}

// Refresh triggers an immediate poll. It blocks until the poller picks it up.
func (p *StatusPoller) Refresh() {
	p.refresh <- struct{}{}
}

func (p *StatusPoller) poll(ctx context.Context) {
	start := time.Now()
	p.Publish(p.update(ctx, start))
	p.logger.Debug("poll completed", slog.Duration("duration", time.Since(start)))
}

// update reads all sensors and snapshots the installation. A failing sensor
// doesn't fail the snapshot: the zone keeps its last reading.
func (p *StatusPoller) update(ctx context.Context, now time.Time) Update {
	update := Update{
		Time:      now,
		Zones:     make(map[string]ZoneStatus, len(p.sources)),
		Actuators: make(map[string]ActuatorStatus, len(p.actuators)),
	}
	for _, source := range p.sources {
		value, err := source.Sensor.Read(ctx)
		if err != nil {
			p.logger.Error("sensor read failed", slog.String("zone", source.Zone.Name()), slog.Any("err", err))
		} else {
			source.Zone.SetTemperature(value, now)
		}
		temperature, _ := source.Zone.Temperature()
		update.Zones[source.Zone.Name()] = ZoneStatus{
			Temperature: temperature,
			Target:      source.Zone.TargetTemperature(now),
			Requests:    source.Zone.Requests(),
		}
	}
	for _, a := range p.actuators {
		on, known := a.LastKnown()
		update.Actuators[a.Name()] = ActuatorStatus{
			On:       on,
			Known:    known,
			Requests: a.Requests(),
		}
	}
	return update
}
