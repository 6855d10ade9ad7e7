// Package configuration defines the installation layout: the zones with
// their sensors, schedules and relay lines, and the valve channel assignment.
package configuration

import (
	"fmt"
	"io"
	"os"

	"github.com/clambin/go-common/set"
	"github.com/clambin/yplan-controller/internal/schedule"
	"gopkg.in/yaml.v3"
)

// Configuration is the installation layout, loaded from the config file.
type Configuration struct {
	Zones []ZoneConfiguration `yaml:"zones"`
	Valve ValveConfiguration  `yaml:"valve"`
}

// A ZoneConfiguration describes one heating circuit.
type ZoneConfiguration struct {
	Name       string              `yaml:"name"`
	Rule       string              `yaml:"rule"`
	Hysteresis float64             `yaml:"hysteresis"`
	FrostGuard float64             `yaml:"frostGuard"`
	Sensor     SensorConfiguration `yaml:"sensor"`
	GPIO       GPIOConfiguration   `yaml:"gpio"`
	Schedule   []schedule.Point    `yaml:"schedule"`
}

// A SensorConfiguration points at the zone's 1-wire temperature sensor.
type SensorConfiguration struct {
	DeviceID string `yaml:"deviceID"`
}

// A GPIOConfiguration points at the relay line driving the zone's channel.
type GPIOConfiguration struct {
	Line int `yaml:"line"`
}

// A ValveConfiguration names the zones connected to the mid-position valve's
// two channels.
type ValveConfiguration struct {
	CentralHeating string `yaml:"centralHeating"`
	HotWater       string `yaml:"hotWater"`
}

// Load reads and validates a Configuration.
func Load(r io.Reader) (Configuration, error) {
	configuration := Configuration{
		Valve: ValveConfiguration{
			CentralHeating: "CH",
			HotWater:       "HW",
		},
	}
	if err := yaml.NewDecoder(r).Decode(&configuration); err != nil {
		return Configuration{}, fmt.Errorf("decode: %w", err)
	}
	if err := configuration.validate(); err != nil {
		return Configuration{}, err
	}
	return configuration, nil
}

// LoadFromFile reads and validates a Configuration from path.
func LoadFromFile(path string) (Configuration, error) {
	f, err := os.Open(path)
	if err != nil {
		return Configuration{}, err
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

func (c Configuration) validate() error {
	if len(c.Zones) == 0 {
		return fmt.Errorf("no zones configured")
	}

	names := set.New[string]()
	lines := set.New[int]()
	for _, z := range c.Zones {
		if z.Name == "" {
			return fmt.Errorf("zone without a name")
		}
		if names.Contains(z.Name) {
			return fmt.Errorf("duplicate zone name %q", z.Name)
		}
		names.Add(z.Name)
		if lines.Contains(z.GPIO.Line) {
			return fmt.Errorf("zone %q: gpio line %d already in use", z.Name, z.GPIO.Line)
		}
		lines.Add(z.GPIO.Line)
		switch z.Rule {
		case "heating", "hotwater":
		default:
			return fmt.Errorf("zone %q: invalid rule %q", z.Name, z.Rule)
		}
		if len(z.Schedule) == 0 {
			return fmt.Errorf("zone %q: no schedule", z.Name)
		}
		if _, err := schedule.New(z.Schedule); err != nil {
			return fmt.Errorf("zone %q: invalid schedule: %w", z.Name, err)
		}
	}

	for _, channel := range []string{c.Valve.CentralHeating, c.Valve.HotWater} {
		if !names.Contains(channel) {
			return fmt.Errorf("valve channel %q is not a configured zone", channel)
		}
	}
	if c.Valve.CentralHeating == c.Valve.HotWater {
		return fmt.Errorf("valve channels must be different zones")
	}
	return nil
}
