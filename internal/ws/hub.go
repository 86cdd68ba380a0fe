package ws

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Event is one live-update frame pushed to connected viewers of an
// organization.
type Event struct {
	OrgID   uint           `json:"-"`
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

// Hub manages active viewer WebSocket connections per organization and
// broadcasts live events to them. Delivery is best-effort: a full
// broadcast buffer drops the frame rather than blocking writers.
type Hub struct {
	orgClients map[uint]map[*websocket.Conn]bool
	broadcast  chan Event
	mu         sync.Mutex
}

// NewHub creates a Hub and starts its broadcasting goroutine.
func NewHub() *Hub {
	hub := &Hub{
		orgClients: make(map[uint]map[*websocket.Conn]bool),
		broadcast:  make(chan Event, 100),
	}
	go hub.run()
	return hub
}

// run drains the broadcast channel and writes each event to the relevant
// organization's viewers.
func (h *Hub) run() {
	for evt := range h.broadcast {
		h.mu.Lock()
		clients := h.orgClients[evt.OrgID]
		for conn := range clients {
			go func(c *websocket.Conn, e Event) {
				if err := c.WriteJSON(e); err != nil {
					if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
						logrus.WithFields(logrus.Fields{
							"org_id":   e.OrgID,
							"conn_ptr": fmt.Sprintf("%p", c),
						}).Info("Viewer connection closed during broadcast, unregistering.")
						h.Unregister(e.OrgID, c)
					} else {
						logrus.WithError(err).WithField("org_id", e.OrgID).
							Warn("Failed to push live event to viewer.")
					}
				}
			}(conn, evt)
		}
		h.mu.Unlock()
	}
}

// Register adds a viewer connection for an organization.
func (h *Hub) Register(orgID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.orgClients[orgID]; !ok {
		h.orgClients[orgID] = make(map[*websocket.Conn]bool)
	}
	h.orgClients[orgID][conn] = true
	logrus.WithFields(logrus.Fields{
		"org_id":   orgID,
		"conn_ptr": fmt.Sprintf("%p", conn),
	}).Info("Viewer registered with live hub.")
}

// Unregister removes a viewer connection.
func (h *Hub) Unregister(orgID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.orgClients[orgID]; ok {
		delete(clients, conn)
		if len(clients) == 0 {
			delete(h.orgClients, orgID)
		}
	}
	logrus.WithFields(logrus.Fields{
		"org_id":   orgID,
		"conn_ptr": fmt.Sprintf("%p", conn),
	}).Info("Viewer unregistered from live hub.")
}

// Publish queues a live event for an organization's viewers. Implements
// engine.LivePublisher; never blocks.
func (h *Hub) Publish(orgID uint, event string, payload map[string]any) {
	select {
	case h.broadcast <- Event{OrgID: orgID, Event: event, Payload: payload}:
	default:
		logrus.WithField("event", event).
			Warn("Live broadcast channel full, dropping event.")
	}
}
