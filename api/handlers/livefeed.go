package handlers

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/formgate/formgate-api/api"
	"github.com/formgate/formgate-api/config"
	"github.com/formgate/formgate-api/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser dashboards connect cross-origin from the frontend host.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans new submissions out to the connected dashboards of one owner.
// Writes happen under the lock; a dead connection is dropped on write error.
type Hub struct {
	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]bool // ownerID -> connections
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*websocket.Conn]bool)}
}

func (h *Hub) add(ownerID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[ownerID] == nil {
		h.conns[ownerID] = make(map[*websocket.Conn]bool)
	}
	h.conns[ownerID][conn] = true
}

func (h *Hub) remove(ownerID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[ownerID], conn)
	if len(h.conns[ownerID]) == 0 {
		delete(h.conns, ownerID)
	}
	conn.Close()
}

// Broadcast pushes a new application to every dashboard the owner has open.
// Safe to call with no listeners.
func (h *Hub) Broadcast(ownerID string, application models.Application) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns[ownerID] {
		if err := conn.WriteJSON(application); err != nil {
			zap.S().Debugw("dropping dead feed connection", "ownerId", ownerID, "error", err)
			delete(h.conns[ownerID], conn)
			conn.Close()
		}
	}
}

// Livefeed upgrades owner dashboard connections onto the hub
type Livefeed struct {
	Hub *Hub
}

// ServeWS upgrades the authed request to a websocket and keeps it registered
// until the client goes away
func (l Livefeed) ServeWS(w http.ResponseWriter, r *http.Request) {
	ownerID := api.AuthOwnerID(r)
	if ownerID == "" {
		config.ErrorStatus("failed to resolve owner", http.StatusUnauthorized, w, nil)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("failed to upgrade feed connection", "ownerId", ownerID, "error", err)
		return
	}
	l.Hub.add(ownerID, conn)
	zap.S().Debugw("feed connection opened", "ownerId", ownerID)

	// Reads are discarded; the read loop only detects the close.
	go func() {
		defer l.Hub.remove(ownerID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
