// Package historian records poller updates in SQLite: every temperature
// sample, and actuator transitions whenever the relay state changes between
// two updates.
package historian

import (
	"context"
	"log/slog"

	"github.com/clambin/yplan-controller/internal/poller"
)

// A Recorder persists samples and transitions. Implemented by Store.
type Recorder interface {
	AddTemperature(ctx context.Context, sample Temperature) error
	AddTransition(ctx context.Context, transition Transition) error
}

// A Historian subscribes to the poller and writes history through a Recorder.
type Historian struct {
	poller    poller.Poller
	store     Recorder
	logger    *slog.Logger
	lastState map[string]bool
}

// New returns a Historian recording updates from p to store.
func New(p poller.Poller, store Recorder, logger *slog.Logger) *Historian {
	return &Historian{
		poller:    p,
		store:     store,
		logger:    logger,
		lastState: make(map[string]bool),
	}
}

// Run records updates until ctx is canceled.
func (h *Historian) Run(ctx context.Context) error {
	h.logger.Debug("started")
	defer h.logger.Debug("stopped")

	ch := h.poller.Subscribe()
	defer h.poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			h.process(ctx, update)
		}
	}
}

func (h *Historian) process(ctx context.Context, update poller.Update) {
	for name, status := range update.Zones {
		sample := Temperature{
			Time:        update.Time,
			Zone:        name,
			Temperature: status.Temperature,
			Target:      status.Target,
		}
		if err := h.store.AddTemperature(ctx, sample); err != nil {
			h.logger.Error("failed to record temperature", slog.String("zone", name), slog.Any("err", err))
		}
	}
	for name, status := range update.Actuators {
		if !status.Known {
			continue
		}
		if last, seen := h.lastState[name]; seen && last == status.On {
			continue
		}
		h.lastState[name] = status.On
		transition := Transition{
			Time:     update.Time,
			Actuator: name,
			State:    status.On,
		}
		if err := h.store.AddTransition(ctx, transition); err != nil {
			h.logger.Error("failed to record transition", slog.String("actuator", name), slog.Any("err", err))
		}
	}
}
