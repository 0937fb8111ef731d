package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hydrowatch/hydrowatch/internal/api"
	"github.com/hydrowatch/hydrowatch/internal/store"
)

// Frame event names.
const (
	// EventSnapshot carries the full station snapshot. Sent once on connect
	// and again on every broadcast tick.
	EventSnapshot = "snapshot"

	// EventStation carries a single station's fresh status, pushed as soon
	// as its pipeline cycle completes, ahead of the next snapshot tick.
	EventStation = "station"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing frame buffer. A client that
	// falls this far behind is disconnected rather than allowed to stall
	// the fan-out.
	sendBufSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin checks belong to the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the envelope for every frame the hub sends. Exactly one of
// Snapshot and Station is set, matching Event.
type Message struct {
	Event    string                `json:"event"`
	Snapshot *api.SnapshotResponse `json:"snapshot,omitempty"`
	Station  *api.StationResponse  `json:"station,omitempty"`
}

// Hub fans pipeline results out to connected dashboard clients: a full
// snapshot on a fixed interval, plus immediate per-station updates published
// by the poll loop. A client may scope itself to a subset of stations by
// connecting with ?stations=oak-creek,verde-river; unscoped clients receive
// everything.
type Hub struct {
	store    *store.Store
	interval time.Duration

	mu       sync.RWMutex
	sessions map[*session]struct{}
}

// session is one connected client together with its station filter.
// Frames are queued under the hub's read lock and the send channel is closed
// under the write lock, so a frame is never sent on a closed channel.
type session struct {
	conn  *websocket.Conn
	send  chan []byte
	watch map[string]struct{} // nil watches all stations
}

func (s *session) wants(stationID string) bool {
	if s.watch == nil {
		return true
	}
	_, ok := s.watch[stationID]
	return ok
}

// New creates a Hub reading from st, broadcasting snapshots every interval.
func New(st *store.Store, interval time.Duration) *Hub {
	return &Hub{
		store:    st,
		interval: interval,
		sessions: make(map[*session]struct{}),
	}
}

// Run drives the snapshot ticker. Blocks until ctx is cancelled, then
// disconnects all clients.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			h.broadcastSnapshot()
		}
	}
}

// Publish pushes one station's current status to every client watching it.
// The daemon calls this after each completed pipeline cycle. A station absent
// from the store (evicted, never polled) is a no-op.
func (h *Hub) Publish(stationID string) {
	e, ok := h.store.Get(stationID)
	if !ok {
		return
	}

	st := api.StationFromEntry(e, false)
	data, err := json.Marshal(Message{Event: EventStation, Station: &st})
	if err != nil {
		return
	}

	h.fanOut(func(s *session) []byte {
		if !s.wants(stationID) {
			return nil
		}
		return data
	})
}

// ServeHTTP upgrades the connection, applies the optional ?stations= scope,
// queues an initial snapshot and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an error.
		return
	}

	s := &session{
		conn:  conn,
		send:  make(chan []byte, sendBufSize),
		watch: parseScope(r.URL.Query().Get("stations")),
	}

	// Queue the initial snapshot before the session is visible to fan-out,
	// so the dashboard has data right away.
	if data, err := h.snapshotFrame(s.watch); err == nil {
		s.send <- data
	}

	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
	defer h.unregister(s)

	go s.writeLoop()
	s.readLoop() // blocks until the connection closes
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// parseScope turns a comma-separated station list into a filter set.
// Empty input means no filter.
func parseScope(raw string) map[string]struct{} {
	if raw == "" {
		return nil
	}
	watch := make(map[string]struct{})
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			watch[id] = struct{}{}
		}
	}
	if len(watch) == 0 {
		return nil
	}
	return watch
}

// snapshotFrame marshals the current snapshot, restricted to watch when a
// filter is set.
func (h *Hub) snapshotFrame(watch map[string]struct{}) ([]byte, error) {
	snap := api.BuildSnapshot(h.store)
	if watch != nil {
		kept := make([]api.StationResponse, 0, len(watch))
		for _, st := range snap.Stations {
			if _, ok := watch[st.StationID]; ok {
				kept = append(kept, st)
			}
		}
		snap.Stations = kept
	}
	return json.Marshal(Message{Event: EventSnapshot, Snapshot: &snap})
}

func (h *Hub) broadcastSnapshot() {
	full, err := h.snapshotFrame(nil)
	if err != nil {
		return
	}

	h.fanOut(func(s *session) []byte {
		if s.watch == nil {
			return full
		}
		scoped, err := h.snapshotFrame(s.watch)
		if err != nil {
			return nil
		}
		return scoped
	})
}

// fanOut queues one frame per session, chosen by frame (nil skips the
// session). Sessions whose buffer is already full are disconnected after the
// pass.
func (h *Hub) fanOut(frame func(*session) []byte) {
	var slow []*session

	h.mu.RLock()
	for s := range h.sessions {
		data := frame(s)
		if data == nil {
			continue
		}
		select {
		case s.send <- data:
		default:
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		h.unregister(s)
	}
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	if _, ok := h.sessions[s]; ok {
		delete(h.sessions, s)
		close(s.send)
	}
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for s := range h.sessions {
		close(s.send)
		delete(h.sessions, s)
	}
	h.mu.Unlock()
}

// writeLoop forwards queued frames to the connection and keeps it alive with
// pings. Exits when the send channel closes or a write fails.
func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop consumes inbound frames for pong and close handling; dashboard
// clients never send data frames. Blocks until the connection closes.
func (s *session) readLoop() {
	defer s.conn.Close()
	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
