package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/telemetry"
	"github.com/aussiebroadwan/storefront/pkg/slogx"
	"github.com/gorilla/websocket"
)

// Auth event types pushed to a user's open clients.
const (
	EventSignedIn  = "signed_in"
	EventSignedOut = "signed_out"
	EventRefreshed = "refreshed"
)

// AuthEvent tells a client that the session of its user changed somewhere
// else. It carries no credentials; the client re-checks.
type AuthEvent struct {
	Type   string    `json:"type"`
	UserID string    `json:"userId"`
	At     time.Time `json:"at"`
}

const (
	eventWriteTimeout = 5 * time.Second

	// eventQueueSize bounds the events waiting for one subscriber.
	eventQueueSize = 16
)

// EventHub fans auth events out to websocket subscribers grouped by user.
// Publish never waits on a socket: each subscriber has its own queue and
// writer goroutine.
type EventHub struct {
	metrics *telemetry.Metrics

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

// eventConn is the part of *websocket.Conn a subscriber writes through.
type eventConn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type subscriber struct {
	conn eventConn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// writeLoop drains the queue until the subscriber is closed or a write
// fails.
func (h *EventHub) writeLoop(userID string, s *subscriber) {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.remove(userID, s)
				return
			}
		}
	}
}

func NewEventHub(metrics *telemetry.Metrics) *EventHub {
	return &EventHub{
		metrics: metrics,
		subs:    make(map[string]map[*subscriber]struct{}),
	}
}

// Publish queues an event for every subscriber of userID and returns
// without waiting for delivery. A subscriber whose queue is full is
// disconnected; its client re-checks when it reconnects.
func (h *EventHub) Publish(userID, eventType string) {
	if h == nil || userID == "" {
		return
	}
	data, err := json.Marshal(AuthEvent{Type: eventType, UserID: userID, At: time.Now().UTC()})
	if err != nil {
		return
	}

	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.subs[userID]))
	for s := range h.subs[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.send <- data:
		default:
			h.remove(userID, s)
		}
	}
}

// Subscribers returns the number of open subscriptions for userID.
func (h *EventHub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

func (h *EventHub) add(userID string, conn eventConn) *subscriber {
	s := &subscriber{
		conn: conn,
		send: make(chan []byte, eventQueueSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][s] = struct{}{}
	h.mu.Unlock()

	h.metrics.SubscriberOpened()
	go h.writeLoop(userID, s)
	return s
}

func (h *EventHub) remove(userID string, s *subscriber) {
	h.mu.Lock()
	set, ok := h.subs[userID]
	if ok {
		if _, ok = set[s]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(h.subs, userID)
			}
		}
	}
	h.mu.Unlock()

	if ok {
		h.metrics.SubscriberClosed()
	}
	s.close()
}

// EventsHandler serves GET /api/auth/events.
type EventsHandler struct {
	Hub      *EventHub
	Sessions SessionResolver
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeHTTP godoc
//
//	@Summary		Auth event feed
//	@Description	Websocket that pushes signed_in, signed_out and refreshed events for the session's user.
//	@Tags			Auth
//	@Success		101
//	@Success		204	"Partial auth"
//	@Failure		401	{object}	errorResponse
//	@Router			/api/auth/events [get].
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Resolve(w, r)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	// The upgrade writes its own response, so cookies rotated while
	// resolving have to be carried over by hand.
	var hdr http.Header
	if cookies := w.Header().Values("Set-Cookie"); len(cookies) > 0 {
		hdr = http.Header{"Set-Cookie": cookies}
	}

	conn, err := upgrader.Upgrade(w, r, hdr)
	if err != nil {
		slogx.FromContext(r.Context()).Debug("auth events upgrade failed", "error", err)
		return
	}

	userID := sess.User.ID
	sub := h.Hub.add(userID, conn)
	defer h.Hub.remove(userID, sub)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
