// Package collector exposes the latest poller snapshot as Prometheus metrics.
package collector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/clambin/yplan-controller/internal/poller"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	zoneTemperature = prometheus.NewDesc(
		prometheus.BuildFQName("yplan", "zone", "temperature_celsius"),
		"Current temperature of this zone in degrees celsius",
		[]string{"zone"},
		nil,
	)
	zoneTargetTemperature = prometheus.NewDesc(
		prometheus.BuildFQName("yplan", "zone", "target_celsius"),
		"Target temperature of this zone in degrees celsius",
		[]string{"zone"},
		nil,
	)
	zoneRequests = prometheus.NewDesc(
		prometheus.BuildFQName("yplan", "zone", "requests"),
		"Number of active override requests for this zone",
		[]string{"zone"},
		nil,
	)
	actuatorState = prometheus.NewDesc(
		prometheus.BuildFQName("yplan", "actuator", "state"),
		"State of this actuator (1: on, 0: off). Absent until a read or write has succeeded",
		[]string{"actuator"},
		nil,
	)
	actuatorRequests = prometheus.NewDesc(
		prometheus.BuildFQName("yplan", "actuator", "requests"),
		"Number of active override requests for this actuator",
		[]string{"actuator"},
		nil,
	)
)

// A Collector caches poller updates and implements prometheus.Collector.
type Collector struct {
	Poller     poller.Poller
	Logger     *slog.Logger
	lock       sync.RWMutex
	lastUpdate *poller.Update
}

var _ prometheus.Collector = &Collector{}

// Run caches poller updates until ctx is canceled.
func (c *Collector) Run(ctx context.Context) error {
	c.Logger.Debug("started")
	defer c.Logger.Debug("stopped")

	ch := c.Poller.Subscribe()
	defer c.Poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			c.lock.Lock()
			c.lastUpdate = &update
			c.lock.Unlock()
		}
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- zoneTemperature
	ch <- zoneTargetTemperature
	ch <- zoneRequests
	ch <- actuatorState
	ch <- actuatorRequests
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.lastUpdate == nil {
		return
	}
	for name, status := range c.lastUpdate.Zones {
		ch <- prometheus.MustNewConstMetric(zoneTemperature, prometheus.GaugeValue, status.Temperature, name)
		ch <- prometheus.MustNewConstMetric(zoneTargetTemperature, prometheus.GaugeValue, status.Target, name)
		ch <- prometheus.MustNewConstMetric(zoneRequests, prometheus.GaugeValue, float64(len(status.Requests)), name)
	}
	for name, status := range c.lastUpdate.Actuators {
		if status.Known {
			var value float64
			if status.On {
				value = 1
			}
			ch <- prometheus.MustNewConstMetric(actuatorState, prometheus.GaugeValue, value, name)
		}
		ch <- prometheus.MustNewConstMetric(actuatorRequests, prometheus.GaugeValue, float64(len(status.Requests)), name)
	}
}
