package mqtt

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/clambin/yplan-controller/internal/actuator"
	"github.com/clambin/yplan-controller/internal/gpio"
	"github.com/clambin/yplan-controller/internal/poller"
	"github.com/clambin/yplan-controller/internal/schedule"
	"github.com/clambin/yplan-controller/internal/zone"
	"github.com/clambin/yplan-controller/pkg/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	lock      sync.Mutex
	published map[string][]byte
	handlers  map[string]func(string, []byte)
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		published: make(map[string][]byte),
		handlers:  make(map[string]func(string, []byte)),
	}
}

func (f *fakeClient) Publish(topic string, payload []byte, _ bool) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.published[topic] = payload
	return nil
}

func (f *fakeClient) Subscribe(topic string, handler func(string, []byte)) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeClient) Disconnect() {}

func (f *fakeClient) receive(pattern, topic string, payload []byte) {
	f.lock.Lock()
	handler := f.handlers[pattern]
	f.lock.Unlock()
	handler(topic, payload)
}

func (f *fakeClient) lastPublished(topic string) []byte {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.published[topic]
}

type fakePoller struct {
	*pubsub.Publisher[poller.Update]
}

func (f *fakePoller) Refresh() {}

type fakeKicker struct {
	kicks atomic.Int32
}

func (f *fakeKicker) Kick() { f.kicks.Add(1) }

func makeBridge(t *testing.T) (*Bridge, *fakeClient, *fakePoller, *fakeKicker) {
	t.Helper()
	s, err := schedule.New([]schedule.Point{{Time: schedule.TimeOfDay{}, Value: 19.5}})
	require.NoError(t, err)
	client := newFakeClient()
	p := &fakePoller{Publisher: pubsub.New[poller.Update](slog.New(slog.DiscardHandler))}
	k := &fakeKicker{}
	b := New(
		client,
		[]*zone.Zone{zone.New("CH", s)},
		[]*actuator.Actuator{actuator.New("HW", gpio.NewFakeLine(false))},
		p, k, slog.New(slog.DiscardHandler),
	)
	return b, client, p, k
}

func TestBridge_PublishesStatus(t *testing.T) {
	b, client, p, _ := makeBridge(t)
	go func() { _ = b.Run(t.Context()) }()

	require.Eventually(t, func() bool { return p.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	p.Publish(poller.Update{
		Time:  time.Now(),
		Zones: map[string]poller.ZoneStatus{"CH": {Temperature: 18.5, Target: 19.5}},
	})

	assert.Eventually(t, func() bool {
		return client.lastPublished(TopicStatus) != nil
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, string(client.lastPublished(TopicStatus)), `"CH"`)
}

func TestBridge_ZoneCommand(t *testing.T) {
	b, client, p, k := makeBridge(t)
	go func() { _ = b.Run(t.Context()) }()
	require.Eventually(t, func() bool { return p.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	client.receive(TopicZoneCommands, "yplan/zone/CH/set", []byte(`{"source":"mqtt","target":21,"until":"1h"}`))
	assert.Equal(t, int32(1), k.kicks.Load())
	assert.Equal(t, 21.0, b.zones["CH"].TargetTemperature(time.Now()))

	client.receive(TopicZoneCommands, "yplan/zone/CH/set", []byte(`{"source":"mqtt","until":"now"}`))
	assert.Equal(t, int32(2), k.kicks.Load())
	assert.Equal(t, 19.5, b.zones["CH"].TargetTemperature(time.Now()))

	// malformed and unknown-zone commands are dropped
	client.receive(TopicZoneCommands, "yplan/zone/CH/set", []byte(`not json`))
	client.receive(TopicZoneCommands, "yplan/zone/garage/set", []byte(`{"source":"mqtt","target":21}`))
	assert.Equal(t, int32(2), k.kicks.Load())
}

func TestBridge_ActuatorCommand(t *testing.T) {
	b, client, p, k := makeBridge(t)
	go func() { _ = b.Run(t.Context()) }()
	require.Eventually(t, func() bool { return p.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	client.receive(TopicActuatorCommands, "yplan/actuator/HW/set", []byte(`{"source":"mqtt","state":true,"until":"30m"}`))
	assert.Equal(t, int32(1), k.kicks.Load())
	on, ok := b.actuators["HW"].Override()
	require.True(t, ok)
	assert.True(t, on)

	// a command without state is dropped
	client.receive(TopicActuatorCommands, "yplan/actuator/HW/set", []byte(`{"source":"other"}`))
	assert.Equal(t, int32(1), k.kicks.Load())

	client.receive(TopicActuatorCommands, "yplan/actuator/HW/set", []byte(`{"source":"mqtt","until":"now"}`))
	_, ok = b.actuators["HW"].Override()
	assert.False(t, ok)
}
