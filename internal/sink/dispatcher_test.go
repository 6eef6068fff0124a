package sink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanlog/chanlog/internal/event"
)

func TestDispatcherFansOutToEverySink(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	d := NewDispatcher("irc.example.net", a, b)

	d.OnMessage("bob", "#dev", "hello")

	require.Len(t, a.delivered(), 1)
	require.Len(t, b.delivered(), 1)
	got := a.delivered()[0]
	assert.Equal(t, event.KindMessage, got.Kind)
	assert.Equal(t, "bob", got.Actor)
	assert.Equal(t, "#dev", got.Channel)
	assert.Equal(t, "hello", got.Payload)
	assert.Equal(t, "irc.example.net", got.Origin)
	// Both sinks see the same immutable event instance.
	assert.Same(t, got, b.delivered()[0])
}

func TestDispatcherPartialFailureDoesNotStopDelivery(t *testing.T) {
	failing := &recordingSink{}
	failing.setErr(errSinkDown)
	healthy := &recordingSink{}
	d := NewDispatcher("irc", failing, healthy)

	d.OnMessage("bob", "#dev", "still delivered")
	require.Len(t, healthy.delivered(), 1)
}

func TestDispatcherTimeIsMonotone(t *testing.T) {
	rec := &recordingSink{}
	d := NewDispatcher("irc", rec)

	// A clock that jumps backwards must not produce out-of-order events.
	times := []time.Time{
		time.Date(2025, 6, 1, 10, 0, 2, 0, time.UTC),
		time.Date(2025, 6, 1, 10, 0, 1, 0, time.UTC),
		time.Date(2025, 6, 1, 10, 0, 3, 0, time.UTC),
	}
	i := 0
	d.SetClock(func() time.Time {
		t := times[i]
		i++
		return t
	})

	d.OnMessage("bob", "#dev", "a")
	d.OnMessage("bob", "#dev", "b")
	d.OnMessage("bob", "#dev", "c")

	evs := rec.delivered()
	require.Len(t, evs, 3)
	assert.False(t, evs[1].Time.Before(evs[0].Time))
	assert.False(t, evs[2].Time.Before(evs[1].Time))
}

func TestIgnoreSuppressesMessagesAndActions(t *testing.T) {
	rec := &recordingSink{}
	d := NewDispatcher("irc", rec)

	assert.True(t, d.Ignore("troll"))
	assert.False(t, d.Ignore("troll"))

	d.OnMessage("troll", "#dev", "spam")
	d.OnAction("troll", "#dev", "spams harder")
	d.OnMessage("bob", "#dev", "real talk")

	evs := rec.delivered()
	// IGNORE event plus bob's message; nothing from the ignored actor.
	require.Len(t, evs, 2)
	assert.Equal(t, event.KindIgnore, evs[0].Kind)
	assert.Equal(t, "bob", evs[1].Actor)

	assert.True(t, d.Unignore("troll"))
	assert.False(t, d.Unignore("troll"))
	d.OnMessage("troll", "#dev", "reformed")

	evs = rec.delivered()
	require.Len(t, evs, 4)
	assert.Equal(t, event.KindUnignore, evs[2].Kind)
	assert.Equal(t, "reformed", evs[3].Payload)
}

func TestLifecycleCallbacks(t *testing.T) {
	rec := &recordingSink{}
	d := NewDispatcher("irc", rec)

	d.OnConnect()
	d.OnJoin("#dev")
	d.OnUserJoined("alice", "#dev")
	d.OnNickChange("alice", "alice_away")
	d.OnUserLeft("alice_away", "#dev")
	d.OnLeave("#dev")
	d.OnDisconnect("ping timeout")

	evs := rec.delivered()
	require.Len(t, evs, 7)

	kinds := make([]event.Kind, len(evs))
	for i, ev := range evs {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []event.Kind{
		event.KindConnect,
		event.KindJoin,
		event.KindJoin,
		event.KindNickChange,
		event.KindLeave,
		event.KindLeave,
		event.KindDisconnect,
	}, kinds)

	// System events carry the system actor and no channel.
	assert.Equal(t, event.SystemActor, evs[0].Actor)
	assert.Empty(t, evs[0].Channel)
	assert.Contains(t, evs[3].Payload, "CHANGED NICK TO")

	// User-level events keep the actor and channel.
	assert.Equal(t, "alice", evs[2].Actor)
	assert.Equal(t, "#dev", evs[2].Channel)
}
