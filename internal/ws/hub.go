// Package ws fans notifications out to kitchen and bar display screens.
// Screens subscribe for one bar on connect; on reconnect the stored
// notification list is replayed so nothing is missed while offline.
package ws

import (
	"context"
	"net/http"
	"sync"

	"bartab-service/internal/ordering"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the wire envelope for every push: event names follow the
// client's socket contract (new_order_bar, new_order_kitchen, order_paid).
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// SnapshotFunc loads the notifications a freshly connected display
// should replay.
type SnapshotFunc func(ctx context.Context, barID string) ([]ordering.Notification, error)

type Hub struct {
	Logger *zap.Logger

	mu   sync.RWMutex
	subs map[string]map[*client]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{Logger: logger, subs: make(map[string]map[*client]struct{})}
}

func subKey(role, barID string) string { return role + ":" + barID }

func (h *Hub) subscribe(role, barID string, c *client) (unsubscribe func()) {
	key := subKey(role, barID)
	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[*client]struct{})
	}
	h.subs[key][c] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		clients := h.subs[key]
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.subs, key)
		}
		h.mu.Unlock()
	}
}

// Broadcast pushes an event to every display of the given role at the
// given bar. Writes that fail are dropped; the read loop will reap the
// dead connection.
func (h *Hub) Broadcast(role, barID, event string, data any) {
	key := subKey(role, barID)

	h.mu.RLock()
	clients := make([]*client, 0, len(h.subs[key]))
	for c := range h.subs[key] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	msg := Message{Event: event, Data: data}
	for _, c := range clients {
		if err := c.writeJSON(msg); err != nil {
			h.Logger.Debug("ws write failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// Handler upgrades a display connection for one role. The bar_id query
// parameter scopes the subscription; the snapshot is replayed before
// live events flow.
func (h *Hub) Handler(role string, snapshot SnapshotFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		barID := r.URL.Query().Get("bar_id")
		if barID == "" {
			http.Error(w, "missing bar_id", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.Logger.Warn("ws upgrade", zap.Error(err))
			return
		}
		c := &client{conn: conn}
		unsubscribe := h.subscribe(role, barID, c)
		defer func() {
			unsubscribe()
			_ = conn.Close()
		}()

		if snapshot != nil {
			list, err := snapshot(r.Context(), barID)
			if err != nil {
				h.Logger.Warn("ws snapshot", zap.String("bar_id", barID), zap.Error(err))
			}
			for _, n := range list {
				var event string
				switch n.Action {
				case role:
					event = "new_order_" + role
				case ordering.ActionDelete:
					event = "order_paid"
				case ordering.ActionSubstitute:
					event = "order_substituted"
				default:
					continue
				}
				if err := c.writeJSON(Message{Event: event, Data: n}); err != nil {
					return
				}
			}
		}

		// reads are discarded; the loop exists to detect the close
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
