package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanlog/chanlog/internal/event"
)

func TestHubBroadcastsToSubscribers(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Log(&event.Event{
		Time:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Actor:   "bob",
		Channel: "#dev",
		Kind:    event.KindMessage,
		Payload: "live!",
		Origin:  "irc",
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var got liveEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "bob", got.Actor)
	assert.Equal(t, "#dev", got.Channel)
	assert.Equal(t, "MESSAGE", got.Kind)
	assert.Equal(t, "live!", got.Payload)
}

func TestHubDetachesClosedClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubLogNeverFails(t *testing.T) {
	hub := NewHub()
	assert.NoError(t, hub.Log(&event.Event{Kind: event.KindConnect, Actor: event.SystemActor}))
}
