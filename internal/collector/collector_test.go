package collector

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/clambin/yplan-controller/internal/demand"
	"github.com/clambin/yplan-controller/internal/poller"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := Collector{Logger: slog.New(slog.DiscardHandler)}
	c.lastUpdate = &poller.Update{
		Time: time.Now(),
		Zones: map[string]poller.ZoneStatus{
			"CH": {Temperature: 18.5, Target: 19.5, Requests: []demand.Request{{Source: "browser"}}},
			"HW": {Temperature: 52, Target: 55},
		},
		Actuators: map[string]poller.ActuatorStatus{
			"CH": {On: true, Known: true},
			"HW": {Known: false, Requests: []demand.Request{{Source: "slack"}}},
		},
	}

	require.NoError(t, testutil.CollectAndCompare(&c, strings.NewReader(`
# HELP yplan_actuator_requests Number of active override requests for this actuator
# TYPE yplan_actuator_requests gauge
yplan_actuator_requests{actuator="CH"} 0
yplan_actuator_requests{actuator="HW"} 1

# HELP yplan_actuator_state State of this actuator (1: on, 0: off). Absent until a read or write has succeeded
# TYPE yplan_actuator_state gauge
yplan_actuator_state{actuator="CH"} 1

# HELP yplan_zone_requests Number of active override requests for this zone
# TYPE yplan_zone_requests gauge
yplan_zone_requests{zone="CH"} 1
yplan_zone_requests{zone="HW"} 0

# HELP yplan_zone_target_celsius Target temperature of this zone in degrees celsius
# TYPE yplan_zone_target_celsius gauge
yplan_zone_target_celsius{zone="CH"} 19.5
yplan_zone_target_celsius{zone="HW"} 55

# HELP yplan_zone_temperature_celsius Current temperature of this zone in degrees celsius
# TYPE yplan_zone_temperature_celsius gauge
yplan_zone_temperature_celsius{zone="CH"} 18.5
yplan_zone_temperature_celsius{zone="HW"} 52
`)))
}

func TestCollector_NoUpdate(t *testing.T) {
	c := Collector{Logger: slog.New(slog.DiscardHandler)}
	assert.Zero(t, testutil.CollectAndCount(&c))
}
