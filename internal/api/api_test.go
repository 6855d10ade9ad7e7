package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clambin/yplan-controller/internal/actuator"
	"github.com/clambin/yplan-controller/internal/gpio"
	"github.com/clambin/yplan-controller/internal/historian"
	"github.com/clambin/yplan-controller/internal/poller"
	"github.com/clambin/yplan-controller/internal/schedule"
	"github.com/clambin/yplan-controller/internal/zone"
	"github.com/clambin/yplan-controller/pkg/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoller struct {
	*pubsub.Publisher[poller.Update]
}

func newFakePoller() *fakePoller {
	return &fakePoller{Publisher: pubsub.New[poller.Update](slog.New(slog.DiscardHandler))}
}

func (f *fakePoller) Refresh() {}

type fakeKicker struct {
	kicks atomic.Int32
}

func (f *fakeKicker) Kick() { f.kicks.Add(1) }

type fakeHistorer struct {
	samples     []historian.Temperature
	transitions []historian.Transition
	err         error
}

func (f *fakeHistorer) Temperatures(context.Context, string, time.Time, time.Time) ([]historian.Temperature, error) {
	return f.samples, f.err
}

func (f *fakeHistorer) Transitions(context.Context, string, time.Time, time.Time) ([]historian.Transition, error) {
	return f.transitions, f.err
}

func makeServer(t *testing.T, history Historer) (*Server, *fakePoller, *fakeKicker) {
	t.Helper()
	s, err := schedule.New([]schedule.Point{{Time: schedule.TimeOfDay{}, Value: 19.5}})
	require.NoError(t, err)
	zones := []*zone.Zone{zone.New("CH", s), zone.New("HW", s)}
	actuators := []*actuator.Actuator{
		actuator.New("CH", gpio.NewFakeLine(false)),
		actuator.New("HW", gpio.NewFakeLine(false)),
	}
	p := newFakePoller()
	k := &fakeKicker{}
	return New(zones, actuators, history, p, k, slog.New(slog.DiscardHandler)), p, k
}

func TestServer_GetState(t *testing.T) {
	server, p, _ := makeServer(t, nil)
	go func() { _ = server.Run(t.Context()) }()

	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)

	assert.Eventually(t, func() bool { return p.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	p.Publish(poller.Update{Time: time.Now(), Zones: map[string]poller.ZoneStatus{"CH": {Temperature: 18.5}}})

	assert.Eventually(t, func() bool {
		resp = httptest.NewRecorder()
		server.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/state", nil))
		return resp.Code == http.StatusOK
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, resp.Body.String(), `"CH"`)
}

func TestServer_GetSchedule(t *testing.T) {
	server, _, _ := makeServer(t, nil)

	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/zones/CH/schedule", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[{"time":"00:00:00","value":19.5}]`, resp.Body.String())

	resp = httptest.NewRecorder()
	server.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/zones/garage/schedule", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestServer_ZoneRequests(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
	}{
		{
			name:     "add",
			method:   http.MethodPost,
			path:     "/api/zones/CH/requests",
			body:     `{"source":"browser","target":21,"until":"1h"}`,
			wantCode: http.StatusCreated,
		},
		{
			name:     "boost",
			method:   http.MethodPost,
			path:     "/api/zones/CH/requests",
			body:     `{"source":"browser","target":21,"until":"boost"}`,
			wantCode: http.StatusCreated,
		},
		{
			name:     "purge",
			method:   http.MethodPost,
			path:     "/api/zones/CH/requests",
			body:     `{"source":"browser","until":"now"}`,
			wantCode: http.StatusOK,
		},
		{
			name:     "broadcast",
			method:   http.MethodPost,
			path:     "/api/zones/ALL/requests",
			body:     `{"source":"browser","target":21,"until":"1h"}`,
			wantCode: http.StatusCreated,
		},
		{
			name:     "unknown zone",
			method:   http.MethodPost,
			path:     "/api/zones/garage/requests",
			body:     `{"source":"browser","target":21}`,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "missing source",
			method:   http.MethodPost,
			path:     "/api/zones/CH/requests",
			body:     `{"target":21}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "bad until",
			method:   http.MethodPost,
			path:     "/api/zones/CH/requests",
			body:     `{"source":"browser","target":21,"until":"not-a-time"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "cancel",
			method:   http.MethodDelete,
			path:     "/api/zones/CH/requests?source=browser",
			wantCode: http.StatusOK,
		},
		{
			name:     "cancel without source",
			method:   http.MethodDelete,
			path:     "/api/zones/CH/requests",
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _, _ := makeServer(t, nil)
			resp := httptest.NewRecorder()
			server.ServeHTTP(resp, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.wantCode, resp.Code, resp.Body.String())
		})
	}
}

func TestServer_ZoneRequest_AffectsTarget(t *testing.T) {
	server, _, kicker := makeServer(t, nil)

	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/zones/CH/requests", strings.NewReader(`{"source":"browser","target":21,"until":"1h"}`))
	server.ServeHTTP(resp, req)
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.Equal(t, int32(1), kicker.kicks.Load())

	assert.Equal(t, 21.0, server.zones["CH"].TargetTemperature(time.Now()))
	assert.Equal(t, 19.5, server.zones["HW"].TargetTemperature(time.Now()))
}

func TestServer_ActuatorRequests(t *testing.T) {
	server, _, _ := makeServer(t, nil)

	resp := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/actuators/HW/requests", strings.NewReader(`{"source":"browser","state":true,"until":"30m"}`))
	server.ServeHTTP(resp, req)
	require.Equal(t, http.StatusCreated, resp.Code)

	on, ok := server.actuators["HW"].Override()
	require.True(t, ok)
	assert.True(t, on)

	// state is required unless purging
	resp = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/actuators/HW/requests", strings.NewReader(`{"source":"browser"}`))
	server.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/actuators/HW/requests?source=browser", nil)
	server.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	_, ok = server.actuators["HW"].Override()
	assert.False(t, ok)
}

func TestServer_History(t *testing.T) {
	history := &fakeHistorer{
		samples:     []historian.Temperature{{Zone: "CH", Temperature: 18.5, Target: 19.5}},
		transitions: []historian.Transition{{Actuator: "CH", State: true}},
	}
	server, _, _ := makeServer(t, history)

	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/history/temperatures?zone=CH", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"temperature":18.5`)

	resp = httptest.NewRecorder()
	server.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/history/transitions", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"state":true`)

	resp = httptest.NewRecorder()
	server.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/history/temperatures?from=not-a-time", nil))
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	// without a database, history returns 404
	server, _, _ = makeServer(t, nil)
	resp = httptest.NewRecorder()
	server.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/history/temperatures", nil))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
