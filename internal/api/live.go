package api

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/chanlog/chanlog/internal/event"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The tail is read-only and unauthenticated; origin checks are left to
	// the deployment's proxy.
	CheckOrigin: func(*http.Request) bool { return true },
}

// liveEvent is the JSON shape pushed to live tail subscribers.
type liveEvent struct {
	Time    string `json:"time"`
	Actor   string `json:"actor"`
	Channel string `json:"channel,omitempty"`
	Kind    string `json:"kind"`
	Payload string `json:"payload,omitempty"`
	Origin  string `json:"origin"`
}

// Hub fans events out to connected WebSocket clients. It implements
// sink.Sink, so the dispatcher treats the live tail like any other
// destination. A slow client's send buffer filling up drops that client
// rather than blocking the pipeline.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan liveEvent
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan liveEvent)}
}

// Name implements sink.Sink.
func (h *Hub) Name() string { return "live" }

// Log implements sink.Sink. It never fails; undeliverable clients are
// detached instead.
func (h *Hub) Log(ev *event.Event) error {
	msg := liveEvent{
		Time:    ev.Time.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Actor:   ev.Actor,
		Channel: ev.Channel,
		Kind:    string(ev.Kind),
		Payload: ev.Payload,
		Origin:  ev.Origin,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			log.Debug("live tail client too slow, detaching")
			delete(h.clients, conn)
			close(ch)
		}
	}
	return nil
}

// ServeWS upgrades the request and streams events until the client goes
// away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("live tail upgrade failed: %v", err)
		return
	}

	ch := make(chan liveEvent, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	go func() {
		defer func() { _ = conn.Close() }()
		for msg := range ch {
			if err := conn.WriteJSON(msg); err != nil {
				h.detach(conn)
				return
			}
		}
	}()

	// Drain reads so close frames and pings are processed; the tail never
	// expects client data.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.detach(conn)
				return
			}
		}
	}()
}

func (h *Hub) detach(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(ch)
	}
}

// Clients reports how many live tail subscribers are attached.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
