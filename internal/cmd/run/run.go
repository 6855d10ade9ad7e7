// Package run implements the yplan run command: it assembles the zones,
// actuators, valve controller and all collaborators from the configuration
// and runs them until interrupted.
package run

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/clambin/go-common/slackbot"
	"github.com/clambin/yplan-controller/internal/actuator"
	"github.com/clambin/yplan-controller/internal/api"
	"github.com/clambin/yplan-controller/internal/bot"
	"github.com/clambin/yplan-controller/internal/collector"
	"github.com/clambin/yplan-controller/internal/configuration"
	"github.com/clambin/yplan-controller/internal/controller"
	"github.com/clambin/yplan-controller/internal/gpio"
	"github.com/clambin/yplan-controller/internal/health"
	"github.com/clambin/yplan-controller/internal/historian"
	"github.com/clambin/yplan-controller/internal/mqtt"
	"github.com/clambin/yplan-controller/internal/poller"
	"github.com/clambin/yplan-controller/internal/rules"
	"github.com/clambin/yplan-controller/internal/schedule"
	"github.com/clambin/yplan-controller/internal/sensor"
	"github.com/clambin/yplan-controller/internal/valve"
	"github.com/clambin/yplan-controller/internal/zone"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	_ "modernc.org/sqlite"
)

var Cmd = cobra.Command{
	Use:   "run",
	Short: "run the controller",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return Main(cmd.Context(), viper.GetViper(), cmd.Root().Version, slog.Default())
	},
}

// circuitSet holds everything built from one zone's configuration.
type circuitSet struct {
	zones     []*zone.Zone
	actuators []*actuator.Actuator
	circuits  []controller.Circuit
	sources   []poller.Source
}

// Main assembles and runs the controller until ctx is canceled.
func Main(ctx context.Context, v *viper.Viper, version string, logger *slog.Logger) error {
	logger.Info("starting", slog.String("version", version))
	defer logger.Info("stopped")

	cfg, err := configuration.LoadFromFile(v.GetString("zones"))
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	set, err := buildCircuits(cfg, v.GetString("gpio.chip"))
	if err != nil {
		return err
	}
	defer func() {
		for _, a := range set.actuators {
			_ = a.Close()
		}
	}()

	valveController, err := buildValve(cfg, set.actuators, v.GetDuration("valve.return"), logger)
	if err != nil {
		return err
	}
	defer valveController.Close()

	ctrl := controller.New(set.circuits, valveController, v.GetDuration("rules.interval"), logger.With("component", "controller"))
	p := poller.New(set.sources, set.actuators, v.GetDuration("poller.interval"), logger.With("component", "poller"))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	valve.RegisterMetrics(registry)
	controller.RegisterMetrics(registry)
	coll := collector.Collector{Poller: p, Logger: logger.With("component", "collector")}
	registry.MustRegister(&coll)

	h := health.New(p, logger.With("component", "health"))
	healthMux := http.NewServeMux()
	healthMux.Handle("/health", h)

	var history api.Historer
	var hist *historian.Historian
	if path := v.GetString("db.path"); path != "" {
		db, dbErr := sql.Open("sqlite", path)
		if dbErr != nil {
			return fmt.Errorf("database: %w", dbErr)
		}
		defer func() { _ = db.Close() }()
		store, storeErr := historian.NewStore(db)
		if storeErr != nil {
			return fmt.Errorf("database: %w", storeErr)
		}
		history = store
		hist = historian.New(p, store, logger.With("component", "historian"))
	}

	apiServer := api.New(set.zones, set.actuators, history, p, ctrl, logger.With("component", "api"))

	var bridge *mqtt.Bridge
	if broker := v.GetString("mqtt.broker"); broker != "" {
		client, mqttErr := mqtt.NewPahoClient(broker)
		if mqttErr != nil {
			return fmt.Errorf("mqtt: %w", mqttErr)
		}
		defer client.Disconnect()
		bridge = mqtt.New(client, set.zones, set.actuators, p, ctrl, logger.With("component", "mqtt"))
	}

	var slackBot *bot.Bot
	if token := v.GetString("slack.token"); token != "" {
		app := slackbot.New(
			token,
			slackbot.WithName("yplan "+version),
			slackbot.WithLogger(logger.With(slog.String("component", "slackbot"))),
		)
		slackBot = bot.New(app, set.zones, set.actuators, p, ctrl, logger.With("component", "bot"))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(ctx) })
	g.Go(func() error { return ctrl.Run(ctx) })
	g.Go(func() error { return coll.Run(ctx) })
	g.Go(func() error { return h.Run(ctx) })
	g.Go(func() error { return apiServer.Run(ctx) })
	g.Go(func() error {
		return serve(ctx, v.GetString("exporter.addr"), promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	})
	g.Go(func() error { return serve(ctx, v.GetString("health.addr"), healthMux) })
	g.Go(func() error { return serve(ctx, v.GetString("api.addr"), apiServer) })
	if hist != nil {
		g.Go(func() error { return hist.Run(ctx) })
	}
	if bridge != nil {
		g.Go(func() error { return bridge.Run(ctx) })
	}
	if slackBot != nil {
		g.Go(func() error { return slackBot.Run(ctx) })
	}
	return g.Wait()
}

func buildCircuits(cfg configuration.Configuration, chip string) (circuitSet, error) {
	var set circuitSet
	for _, zoneCfg := range cfg.Zones {
		s, err := schedule.New(zoneCfg.Schedule)
		if err != nil {
			return circuitSet{}, fmt.Errorf("zone %s: %w", zoneCfg.Name, err)
		}
		z := zone.New(zoneCfg.Name, s)

		var line gpio.Line
		var zoneSensor sensor.Sensor
		if chip == "sim" {
			simLine := gpio.NewSimLine()
			line = simLine
			zoneSensor = sensor.NewSim(s.ValueAt(time.Now()), s.Min()-2, s.Max()+10, simLine.On)
		} else {
			if line, err = gpio.NewPhysicalLine(chip, zoneCfg.GPIO.Line); err != nil {
				return circuitSet{}, fmt.Errorf("zone %s: %w", zoneCfg.Name, err)
			}
			zoneSensor = sensor.NewDS18B20(zoneCfg.Sensor.DeviceID)
		}
		a := actuator.New(zoneCfg.Name, line)

		rule, err := rules.New(zoneCfg.Rule, zoneCfg.Hysteresis, zoneCfg.FrostGuard)
		if err != nil {
			return circuitSet{}, fmt.Errorf("zone %s: %w", zoneCfg.Name, err)
		}

		set.zones = append(set.zones, z)
		set.actuators = append(set.actuators, a)
		set.circuits = append(set.circuits, controller.Circuit{Zone: z, Actuator: a, Rule: rule})
		set.sources = append(set.sources, poller.Source{Zone: z, Sensor: zoneSensor})
	}
	return set, nil
}

func buildValve(cfg configuration.Configuration, actuators []*actuator.Actuator, returnDelay time.Duration, logger *slog.Logger) (*valve.Controller, error) {
	var ch, hw *actuator.Actuator
	for _, a := range actuators {
		switch a.Name() {
		case cfg.Valve.CentralHeating:
			ch = a
		case cfg.Valve.HotWater:
			hw = a
		}
	}
	if ch == nil || hw == nil {
		return nil, errors.New("valve channels not found")
	}
	return valve.New(ch, hw, returnDelay, logger.With("component", "valve")), nil
}

// serve runs an HTTP server on addr until ctx is canceled, then shuts it down
// gracefully.
func serve(ctx context.Context, addr string, handler http.Handler) error {
	server := http.Server{Addr: addr, Handler: handler}
	errCh := make(chan error)
	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
