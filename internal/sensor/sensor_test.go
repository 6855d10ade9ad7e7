package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseW1Slave(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    float64
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name:    "valid",
			content: "73 01 4b 46 7f ff 0d 10 41 : crc=41 YES\n73 01 4b 46 7f ff 0d 10 41 t=23187",
			want:    23.187,
			wantErr: assert.NoError,
		},
		{
			name:    "negative",
			content: "73 01 4b 46 7f ff 0d 10 41 : crc=41 YES\n73 01 4b 46 7f ff 0d 10 41 t=-1250",
			want:    -1.25,
			wantErr: assert.NoError,
		},
		{
			name:    "crc failure",
			content: "73 01 4b 46 7f ff 0d 10 41 : crc=41 NO\n73 01 4b 46 7f ff 0d 10 41 t=23187",
			wantErr: assert.Error,
		},
		{
			name:    "no temperature",
			content: "73 01 4b 46 7f ff 0d 10 41 : crc=41 YES\n73 01 4b 46 7f ff 0d 10 41",
			wantErr: assert.Error,
		},
		{
			name:    "truncated",
			content: "73 01 4b 46 7f ff 0d 10 41 : crc=41 YES",
			wantErr: assert.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := parseW1Slave(tt.content)
			tt.wantErr(t, err)
			if err == nil {
				assert.Equal(t, tt.want, value)
			}
		})
	}
}

func TestSim(t *testing.T) {
	heating := false
	s := NewSim(18, 16, 25, func() bool { return heating })

	first, err := s.Read(t.Context())
	require.NoError(t, err)

	// drifts down toward ambient while off
	s.last = s.last.Add(-time.Minute)
	cooler, err := s.Read(t.Context())
	require.NoError(t, err)
	assert.Less(t, cooler, first)

	// drifts up toward the limit while heating
	heating = true
	s.last = s.last.Add(-time.Minute)
	warmer, err := s.Read(t.Context())
	require.NoError(t, err)
	assert.Greater(t, warmer, cooler)
}

func TestFake(t *testing.T) {
	f := NewFake(18.5, 19.0)

	for _, want := range []float64{18.5, 19.0, 19.0} {
		value, err := f.Read(t.Context())
		require.NoError(t, err)
		assert.Equal(t, want, value)
	}

	f.Fail(assert.AnError)
	_, err := f.Read(t.Context())
	assert.Error(t, err)
}
