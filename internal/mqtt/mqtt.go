// Package mqtt bridges the controller to an MQTT broker: it publishes every
// poller update as a retained status message and accepts override requests on
// the zone and actuator command topics.
package mqtt

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/clambin/yplan-controller/internal/actuator"
	"github.com/clambin/yplan-controller/internal/demand"
	"github.com/clambin/yplan-controller/internal/poller"
	"github.com/clambin/yplan-controller/internal/zone"
)

const (
	// TopicStatus carries the retained status snapshot.
	TopicStatus = "yplan/status"
	// TopicZoneCommands matches the zone command topics (yplan/zone/<name>/set).
	TopicZoneCommands = "yplan/zone/+/set"
	// TopicActuatorCommands matches the actuator command topics (yplan/actuator/<name>/set).
	TopicActuatorCommands = "yplan/actuator/+/set"
)

// A Client is the broker connection. Implemented by PahoClient.
type Client interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
	Disconnect()
}

// A Kicker triggers an immediate rule evaluation after a request changed.
type Kicker interface {
	Kick()
}

// A Bridge connects the controller to a broker through a Client.
type Bridge struct {
	client    Client
	zones     map[string]*zone.Zone
	actuators map[string]*actuator.Actuator
	poller    poller.Poller
	kicker    Kicker
	logger    *slog.Logger
}

// New returns a Bridge for the given zones and actuators.
func New(client Client, zones []*zone.Zone, actuators []*actuator.Actuator, p poller.Poller, kicker Kicker, logger *slog.Logger) *Bridge {
	b := Bridge{
		client:    client,
		zones:     make(map[string]*zone.Zone, len(zones)),
		actuators: make(map[string]*actuator.Actuator, len(actuators)),
		poller:    p,
		kicker:    kicker,
		logger:    logger,
	}
	for _, z := range zones {
		b.zones[z.Name()] = z
	}
	for _, a := range actuators {
		b.actuators[a.Name()] = a
	}
	return &b
}

// Run subscribes to the command topics and publishes status updates until ctx
// is canceled.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Debug("started")
	defer b.logger.Debug("stopped")

	if err := b.client.Subscribe(TopicZoneCommands, b.handleZoneCommand); err != nil {
		return err
	}
	if err := b.client.Subscribe(TopicActuatorCommands, b.handleActuatorCommand); err != nil {
		return err
	}

	ch := b.poller.Subscribe()
	defer b.poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			payload, err := json.Marshal(update)
			if err != nil {
				b.logger.Error("failed to marshal status", slog.Any("err", err))
				continue
			}
			if err = b.client.Publish(TopicStatus, payload, true); err != nil {
				b.logger.Error("failed to publish status", slog.Any("err", err))
			}
		}
	}
}

type zoneCommand struct {
	Source string  `json:"source"`
	Target float64 `json:"target"`
	Until  string  `json:"until"`
}

func (b *Bridge) handleZoneCommand(topic string, payload []byte) {
	name := subject(topic)
	z, ok := b.zones[name]
	if !ok {
		b.logger.Warn("command for unknown zone", slog.String("topic", topic))
		return
	}
	var cmd zoneCommand
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.Source == "" {
		b.logger.Warn("invalid zone command", slog.String("topic", topic), slog.Any("err", err))
		return
	}
	until, boost, purge, err := demand.ParseUntil(cmd.Until, time.Now())
	if err != nil {
		b.logger.Warn("invalid zone command", slog.String("topic", topic), slog.Any("err", err))
		return
	}
	if purge {
		z.Cancel(cmd.Source)
	} else {
		z.Request(cmd.Source, cmd.Target, until, boost)
	}
	b.kicker.Kick()
	b.logger.Info("zone command processed", slog.String("zone", name), slog.String("source", cmd.Source))
}

type actuatorCommand struct {
	Source string `json:"source"`
	State  *bool  `json:"state"`
	Until  string `json:"until"`
}

func (b *Bridge) handleActuatorCommand(topic string, payload []byte) {
	name := subject(topic)
	a, ok := b.actuators[name]
	if !ok {
		b.logger.Warn("command for unknown actuator", slog.String("topic", topic))
		return
	}
	var cmd actuatorCommand
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.Source == "" {
		b.logger.Warn("invalid actuator command", slog.String("topic", topic), slog.Any("err", err))
		return
	}
	until, boost, purge, err := demand.ParseUntil(cmd.Until, time.Now())
	if err != nil {
		b.logger.Warn("invalid actuator command", slog.String("topic", topic), slog.Any("err", err))
		return
	}
	switch {
	case purge:
		a.Cancel(cmd.Source)
	case cmd.State == nil:
		b.logger.Warn("actuator command without state", slog.String("topic", topic))
		return
	default:
		a.Request(cmd.Source, *cmd.State, until, boost)
	}
	b.kicker.Kick()
	b.logger.Info("actuator command processed", slog.String("actuator", name), slog.String("source", cmd.Source))
}

// subject extracts the zone/actuator name from a command topic
// (yplan/<kind>/<name>/set).
func subject(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 {
		return ""
	}
	return parts[2]
}
