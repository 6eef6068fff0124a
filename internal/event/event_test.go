package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRoundTrip(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 30, 0, 123456000, time.UTC)
	ev := &Event{
		Time:    ts,
		Actor:   "bob",
		Channel: "#dev",
		Kind:    KindMessage,
		Payload: "hello world",
		Origin:  "irc.example.net",
	}

	doc := ev.Document()
	assert.Equal(t, "bob", doc["actor"])
	assert.Equal(t, "#dev", doc["channel"])
	assert.Equal(t, "MESSAGE", doc["kind"])

	got := FromDocument(doc)
	require.NotNil(t, got)
	assert.True(t, got.Time.Equal(ts))
	assert.Equal(t, ev.Actor, got.Actor)
	assert.Equal(t, ev.Channel, got.Channel)
	assert.Equal(t, ev.Kind, got.Kind)
	assert.Equal(t, ev.Payload, got.Payload)
	assert.Equal(t, ev.Origin, got.Origin)
}

func TestFromDocumentToleratesMissingAndUnknownKeys(t *testing.T) {
	got := FromDocument(map[string]any{
		"actor":      "alice",
		"unexpected": 42,
		"time":       "not a timestamp",
	})
	assert.Equal(t, "alice", got.Actor)
	assert.True(t, got.Time.IsZero())
	assert.Empty(t, got.Channel)
}

func TestLineFormat(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	ev := &Event{Time: ts, Actor: "bob", Channel: "#dev", Kind: KindMessage, Payload: "hi"}
	line := ev.Line()
	assert.Contains(t, line, "[#dev]")
	assert.Contains(t, line, "<bob>")
	assert.Contains(t, line, "hi")
}
