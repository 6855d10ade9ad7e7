package sensor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// A DS18B20 reads a 1-wire temperature sensor through sysfs.
type DS18B20 struct {
	Path string
}

var _ Sensor = &DS18B20{}

// NewDS18B20 returns a reader for the 1-wire device with the given id (e.g.
// "28-000005e2fdc3").
func NewDS18B20(deviceID string) *DS18B20 {
	return &DS18B20{Path: filepath.Join("/sys/bus/w1/devices", deviceID, "w1_slave")}
}

// Read returns the sensor's temperature.
func (s *DS18B20) Read(_ context.Context) (float64, error) {
	content, err := os.ReadFile(s.Path)
	if err != nil {
		return 0, fmt.Errorf("read sensor: %w", err)
	}
	return parseW1Slave(string(content))
}

// parseW1Slave extracts the temperature from the kernel's w1_slave format:
//
//	73 01 4b 46 7f ff 0d 10 41 : crc=41 YES
//	73 01 4b 46 7f ff 0d 10 41 t=23187
func parseW1Slave(content string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) < 2 {
		return 0, errors.New("unexpected sensor output")
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, errors.New("sensor crc check failed")
	}
	_, raw, found := strings.Cut(lines[1], "t=")
	if !found {
		return 0, errors.New("no temperature in sensor output")
	}
	milli, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid temperature %q: %w", raw, err)
	}
	return float64(milli) / 1000, nil
}
