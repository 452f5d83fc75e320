package eventstream

import (
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/multy/internal/filter"
	"github.com/muurk/multy/internal/logging"
	"github.com/muurk/multy/internal/state"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// Message types sent to subscribers.
const (
	MessageHello = "hello"
	MessageEvent = "event"
	MessageError = "error"
)

// Message is one JSON frame on the event stream.
type Message struct {
	Type       string       `json:"type"`
	Subscriber string       `json:"subscriber,omitempty"`
	Filter     string       `json:"filter,omitempty"`
	Event      *state.Event `json:"event,omitempty"`
	Replay     bool         `json:"replay,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// handleEvents upgrades to a WebSocket and streams matching events.
//
// Query parameters:
//
//	filter   expression selecting events (see package filter)
//	history  when "true", replays retained events before live ones
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	f, err := filter.Compile(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Subscribe before upgrading so no event slips between replay and live
	events, cancel := s.cache.Subscribe(s.config.SubscriberBuffer)
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	id := uuid.NewString()
	s.wg.Add(1)
	s.track(id, conn)
	defer func() {
		_ = conn.Close()
		s.untrack(id)
		s.wg.Done()
		logging.LogConnection(r.RemoteAddr, "subscriber_closed")
	}()
	logging.LogConnection(r.RemoteAddr, "subscriber_connected")

	// The reader only services control frames and notices the peer leaving
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := s.send(conn, Message{Type: MessageHello, Subscriber: id, Filter: f.String()}); err != nil {
		return
	}

	replayed := map[string]bool{}
	if r.URL.Query().Get("history") == "true" {
		for _, ev := range s.replay() {
			replayed[ev.ID] = true
			if !s.deliver(conn, f, ev, true) {
				return
			}
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if replayed[ev.ID] {
				continue
			}
			if !s.deliver(conn, f, ev, false) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// replay returns every retained event across resources, oldest first.
func (s *Server) replay() []state.Event {
	var all []state.Event
	for _, resource := range s.cache.Resources() {
		all = append(all, s.cache.History(resource)...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].At.Before(all[j].At) })
	return all
}

// deliver sends ev if it matches f. It returns false once the connection
// is unusable.
func (s *Server) deliver(conn *websocket.Conn, f *filter.Filter, ev state.Event, replay bool) bool {
	ok, err := f.Match(ev)
	if err != nil {
		return s.send(conn, Message{Type: MessageError, Error: err.Error()}) == nil
	}
	if !ok {
		return true
	}
	return s.send(conn, Message{Type: MessageEvent, Event: &ev, Replay: replay}) == nil
}

func (s *Server) send(conn *websocket.Conn, msg Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		logging.Debug("Subscriber write failed", zap.Error(err))
		return err
	}
	return nil
}
