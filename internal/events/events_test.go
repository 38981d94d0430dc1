package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/craftflow/internal/transport"
)

func record(trace *[]string, name string, flow Flow) CallbackFunc {
	return func(context.Context, *Event) Flow {
		*trace = append(*trace, name)
		return flow
	}
}

func TestReactorRegistrationOrder(t *testing.T) {
	r := NewReactor()
	var trace []string
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Register(EventHandshake, Callback{ID: id, Fn: record(&trace, id, Continue)}))
	}
	assert.Equal(t, Continue, r.Dispatch(context.Background(), &Event{Type: EventHandshake}))
	assert.Equal(t, []string{"a", "b", "c"}, trace)
}

func TestReactorBeforeAfter(t *testing.T) {
	r := NewReactor()
	var trace []string
	require.NoError(t, r.Register(EventLogin, Callback{ID: "late", Fn: record(&trace, "late", Continue)}))
	require.NoError(t, r.Register(EventLogin, Callback{ID: "early", Before: []string{"late"}, Fn: record(&trace, "early", Continue)}))
	require.NoError(t, r.Register(EventLogin, Callback{ID: "middle", After: []string{"early"}, Before: []string{"late"}, Fn: record(&trace, "middle", Continue)}))
	require.NoError(t, r.Register(EventLogin, Callback{ID: "ghost", After: []string{"missing"}, Fn: record(&trace, "ghost", Continue)}))

	assert.Equal(t, []string{"early", "middle", "late", "ghost"}, r.Order(EventLogin))
	r.Dispatch(context.Background(), &Event{Type: EventLogin})
	assert.Equal(t, []string{"early", "middle", "late", "ghost"}, trace)
}

func TestReactorCycleRejected(t *testing.T) {
	r := NewReactor()
	noop := func(context.Context, *Event) Flow { return Continue }
	require.NoError(t, r.Register(EventLogin, Callback{ID: "a", Before: []string{"b"}, Fn: noop}))
	err := r.Register(EventLogin, Callback{ID: "b", Before: []string{"a"}, Fn: noop})
	assert.ErrorIs(t, err, ErrCallbackCycle)
	assert.Equal(t, []string{"a"}, r.Order(EventLogin), "failed registration leaves the chain untouched")

	assert.ErrorIs(t, r.Register(EventLogin, Callback{ID: "a", Fn: noop}), ErrDuplicateCallback)
}

func TestReactorBreakStopsChain(t *testing.T) {
	r := NewReactor()
	var trace []string
	require.NoError(t, r.Register(EventConcreteInbound, Callback{ID: "drop", Fn: record(&trace, "drop", Break)}))
	require.NoError(t, r.Register(EventConcreteInbound, Callback{ID: "never", Fn: record(&trace, "never", Continue)}))

	assert.Equal(t, Break, r.Dispatch(context.Background(), &Event{Type: EventConcreteInbound}))
	assert.Equal(t, []string{"drop"}, trace)
}

func TestReactorPanicIsContained(t *testing.T) {
	r := NewReactor()
	var trace []string
	require.NoError(t, r.Register(EventLogin, Callback{Fn: func(context.Context, *Event) Flow { panic("boom") }}))
	require.NoError(t, r.Register(EventLogin, Callback{Fn: record(&trace, "after", Continue)}))

	assert.Equal(t, Continue, r.Dispatch(context.Background(), &Event{Type: EventLogin}))
	assert.Equal(t, []string{"after"}, trace)
}

func TestOnFiltersPayloadType(t *testing.T) {
	r := NewReactor()
	err := On(r, EventLegacyPing, "answer", func(_ context.Context, p *LegacyPingPayload) Flow {
		p.Response = &transport.LegacyResponse{Version: "1.21", MaxPlayers: 20}
		return Break
	})
	require.NoError(t, err)

	payload := &LegacyPingPayload{Format: transport.LegacyPre1_6}
	assert.Equal(t, Break, r.Dispatch(context.Background(), &Event{Type: EventLegacyPing, Payload: payload}))
	require.NotNil(t, payload.Response)
	assert.Equal(t, int32(20), payload.Response.MaxPlayers)

	// wrong payload type: callback is skipped
	assert.Equal(t, Continue, r.Dispatch(context.Background(), &Event{Type: EventLegacyPing, Payload: "nope"}))
}

func TestOnOptions(t *testing.T) {
	r := NewReactor()
	noop := func(context.Context, *HandshakePayload) Flow { return Continue }
	require.NoError(t, On(r, EventHandshake, "b", noop))
	require.NoError(t, On(r, EventHandshake, "a", noop, RunBefore("b")))
	require.NoError(t, On(r, EventHandshake, "c", noop, RunAfter("b"), RunBefore()))
	assert.Equal(t, []string{"a", "b", "c"}, r.Order(EventHandshake))
	assert.Equal(t, 3, r.Count(EventHandshake))
}

func TestEventBusEmit(t *testing.T) {
	bus := NewEventBus()
	var hits atomic.Int32
	done := make(chan struct{}, 2)
	for _, name := range []string{"one", "two"} {
		bus.Subscribe(EventDisconnect, name, func(context.Context, Event) error {
			hits.Add(1)
			done <- struct{}{}
			return nil
		})
	}
	bus.Emit(context.Background(), Event{Type: EventDisconnect, Source: "test"})
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler not called")
		}
	}
	assert.Equal(t, int32(2), hits.Load())

	bus.Unsubscribe(EventDisconnect, "one")
	assert.Equal(t, 1, bus.HandlerCount(EventDisconnect))
}

func TestEventBusEmitSyncAndStop(t *testing.T) {
	bus := NewEventBus()
	boom := errors.New("boom")
	bus.Subscribe(EventLogin, "fails", func(context.Context, Event) error { return boom })
	bus.Subscribe(EventLogin, "panics", func(context.Context, Event) error { panic("x") })

	assert.ErrorIs(t, bus.EmitSync(context.Background(), Event{Type: EventLogin}), boom)

	bus.Stop()
	bus.Stop()
	select {
	case <-bus.StopCh():
	default:
		t.Fatal("stop channel not closed")
	}
	assert.NoError(t, bus.EmitSync(context.Background(), Event{Type: EventLogin}))
}
