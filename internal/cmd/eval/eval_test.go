package eval

import (
	"bytes"
	"testing"
	"time"

	"github.com/clambin/yplan-controller/internal/configuration"
	"github.com/clambin/yplan-controller/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalZones(t *testing.T) {
	cfg := configuration.Configuration{
		Zones: []configuration.ZoneConfiguration{
			{
				Name: "CH",
				Rule: "heating",
				Schedule: []schedule.Point{
					{Time: schedule.TimeOfDay{Hour: 6}, Value: 19.5},
					{Time: schedule.TimeOfDay{Hour: 18}, Value: 16},
				},
			},
		},
	}

	var out bytes.Buffer
	require.NoError(t, evalZones(&out, cfg, 6*time.Hour))

	assert.Equal(t, `CH (heating):
  00:00   17.8ºC
  06:00   19.5ºC
  12:00   17.8ºC
  18:00   16.0ºC
`, out.String())
}
