package poller

import (
	"time"

	"github.com/clambin/yplan-controller/internal/demand"
)

// An Update is a snapshot of the whole installation at one point in time.
type Update struct {
	Time      time.Time                 `json:"time"`
	Zones     map[string]ZoneStatus     `json:"zones"`
	Actuators map[string]ActuatorStatus `json:"actuators"`
}

// ZoneStatus is the state of one zone: the sensed temperature, the resolved
// target and the active override requests.
type ZoneStatus struct {
	Temperature float64          `json:"temperature"`
	Target      float64          `json:"target"`
	Requests    []demand.Request `json:"requests,omitempty"`
}

// ActuatorStatus is the state of one relay. Known is false until a read or
// write has succeeded, so On is only meaningful when Known is true.
type ActuatorStatus struct {
	On       bool             `json:"on"`
	Known    bool             `json:"known"`
	Requests []demand.Request `json:"requests,omitempty"`
}
