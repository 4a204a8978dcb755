package contextengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vamsirusheel01/sentinel-ai/internal/model"
	"github.com/Vamsirusheel01/sentinel-ai/packages/sentinelcore/clock"
)

type recordingRaw struct {
	events []model.RawEvent
}

func (r *recordingRaw) Write(e model.RawEvent) {
	r.events = append(r.events, e)
}

func testDevice() model.DeviceIdentity {
	return model.DeviceIdentity{DeviceID: "dev-1", Hostname: "host-1"}
}

func TestCreateContextStampsAnchorAndIncludesItInEvents(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	raw := &recordingRaw{}
	mgr := New(testDevice(), 30*time.Second, clk, raw)

	id := mgr.CreateContext(model.RawEvent{EventType: model.EventProcessStart, PID: 42})
	require.NotEmpty(t, id)
	assert.True(t, mgr.Active(id))
	assert.Len(t, raw.events, 1)
	assert.Equal(t, id, raw.events[0].ContextID)
}

func TestAddEventAccumulatesOnGraph(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	mgr := New(testDevice(), 30*time.Second, clk, nil)

	id := mgr.CreateContext(model.RawEvent{EventType: model.EventProcessStart, PID: 42})
	clk.Advance(1 * time.Second)
	mgr.AddEvent(id, model.RawEvent{EventType: model.EventNetworkConnect, PID: 42})
	clk.Advance(1 * time.Second)
	mgr.AddEvent(id, model.RawEvent{EventType: model.EventNetworkConnect, PID: 42})

	expired := mgr.drainExpired(clk.Now().Add(31 * time.Second))
	require.Len(t, expired, 1)
	assert.Equal(t, id, expired[0].ContextID)
	// anchor + two network_connect events
	assert.Len(t, expired[0].Events, 3)
}

func TestDrainExpiredOnlyReturnsTimedOutContexts(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	mgr := New(testDevice(), 30*time.Second, clk, nil)

	mgr.CreateContext(model.RawEvent{EventType: model.EventProcessStart, PID: 1})
	clk.Advance(31 * time.Second)
	idLate := mgr.CreateContext(model.RawEvent{EventType: model.EventProcessStart, PID: 2})

	expired := mgr.drainExpired(clk.Now())
	require.Len(t, expired, 1)
	assert.True(t, mgr.Active(idLate))
}

func TestWatchDrainsOnCancel(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	mgr := New(testDevice(), time.Hour, clk, nil)
	mgr.CreateContext(model.RawEvent{EventType: model.EventProcessStart, PID: 7})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan []model.Context, 1)
	var got []model.Context

	go func() {
		mgr.Watch(ctx, time.Millisecond, func(c model.Context) {
			got = append(got, c)
		})
		done <- got
	}()

	cancel()
	select {
	case result := <-done:
		require.Len(t, result, 1)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
