package sink

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/chanlog/chanlog/internal/event"
	"github.com/chanlog/chanlog/internal/metrics"
)

// Dispatcher owns event capture: it stamps each occurrence with a
// monotonically non-decreasing time and fans the resulting event out to
// every configured sink, oldest sink first. A failure in one sink is logged
// and counted but never stops delivery to the others.
type Dispatcher struct {
	origin string
	sinks  []Sink
	now    func() time.Time

	mu      sync.Mutex
	last    time.Time
	ignored map[string]struct{}
}

// NewDispatcher builds a dispatcher stamping events with origin and
// delivering them to sinks in the given order.
func NewDispatcher(origin string, sinks ...Sink) *Dispatcher {
	return &Dispatcher{
		origin:  origin,
		sinks:   sinks,
		now:     time.Now,
		ignored: make(map[string]struct{}),
	}
}

// SetClock overrides the capture clock. Intended for tests.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// capture stamps a new event. Times never go backwards within one process,
// even if the wall clock does.
func (d *Dispatcher) capture(kind event.Kind, actor, channel, payload string) *event.Event {
	d.mu.Lock()
	t := d.now()
	if t.Before(d.last) {
		t = d.last
	}
	d.last = t
	d.mu.Unlock()
	return &event.Event{
		Time:    t,
		Actor:   actor,
		Channel: channel,
		Kind:    kind,
		Payload: payload,
		Origin:  d.origin,
	}
}

// Dispatch fans one event out to every sink.
func (d *Dispatcher) Dispatch(ev *event.Event) {
	metrics.EventsDispatched.WithLabelValues(string(ev.Kind)).Inc()
	for _, s := range d.sinks {
		if err := s.Log(ev); err != nil {
			metrics.SinkFailures.WithLabelValues(s.Name()).Inc()
			log.WithField("sink", s.Name()).Errorf("sink failed to record event: %v", err)
		}
	}
}

func (d *Dispatcher) record(kind event.Kind, actor, channel, payload string) {
	d.Dispatch(d.capture(kind, actor, channel, payload))
}

// isIgnored reports whether actor's messages are currently suppressed.
func (d *Dispatcher) isIgnored(actor string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.ignored[actor]
	return ok
}

// Ignore suppresses MESSAGE and ACTION recording for actor and records an
// IGNORE system event. Ignoring an already-ignored actor reports false.
func (d *Dispatcher) Ignore(actor string) bool {
	d.mu.Lock()
	if _, ok := d.ignored[actor]; ok {
		d.mu.Unlock()
		return false
	}
	d.ignored[actor] = struct{}{}
	d.mu.Unlock()
	d.record(event.KindIgnore, event.SystemActor, "", fmt.Sprintf("IGNORING %s", actor))
	return true
}

// Unignore lifts an Ignore and records an UNIGNORE system event.
// Unignoring an actor that was not ignored reports false.
func (d *Dispatcher) Unignore(actor string) bool {
	d.mu.Lock()
	if _, ok := d.ignored[actor]; !ok {
		d.mu.Unlock()
		return false
	}
	delete(d.ignored, actor)
	d.mu.Unlock()
	d.record(event.KindUnignore, event.SystemActor, "", fmt.Sprintf("UNIGNORING %s", actor))
	return true
}

// OnConnect records that the connection to the chat network came up.
func (d *Dispatcher) OnConnect() {
	d.record(event.KindConnect, event.SystemActor, "", "CONNECTION ESTABLISHED")
}

// OnDisconnect records that the connection to the chat network was lost.
func (d *Dispatcher) OnDisconnect(reason string) {
	d.record(event.KindDisconnect, event.SystemActor, "", "CONNECTION LOST: "+reason)
}

// OnJoin records that this process joined a channel.
func (d *Dispatcher) OnJoin(channel string) {
	d.record(event.KindJoin, event.SystemActor, "", fmt.Sprintf("JOINED CHANNEL (%s)", channel))
}

// OnLeave records that this process left a channel.
func (d *Dispatcher) OnLeave(channel string) {
	d.record(event.KindLeave, event.SystemActor, "", fmt.Sprintf("LEFT CHANNEL (%s)", channel))
}

// OnMessage records a channel message. Messages from ignored actors are
// dropped.
func (d *Dispatcher) OnMessage(actor, channel, text string) {
	if d.isIgnored(actor) {
		return
	}
	d.record(event.KindMessage, actor, channel, text)
}

// OnAction records a channel action (/me). Actions from ignored actors are
// dropped.
func (d *Dispatcher) OnAction(actor, channel, text string) {
	if d.isIgnored(actor) {
		return
	}
	d.record(event.KindAction, actor, channel, text)
}

// OnNickChange records a nick change seen on the wire.
func (d *Dispatcher) OnNickChange(oldNick, newNick string) {
	d.record(event.KindNickChange, event.SystemActor, "", fmt.Sprintf("%s CHANGED NICK TO %s", oldNick, newNick))
}

// OnUserJoined records another user joining a channel.
func (d *Dispatcher) OnUserJoined(actor, channel string) {
	d.record(event.KindJoin, actor, channel, "joined "+channel)
}

// OnUserLeft records another user leaving a channel.
func (d *Dispatcher) OnUserLeft(actor, channel string) {
	d.record(event.KindLeave, actor, channel, "left "+channel)
}
