// Package dashboard fans emitted SecurityEvents out to connected
// WebSocket dashboard clients (grounded on the teacher's
// DXClusterWebSocketHandler: per-connection write mutex map, ping
// keepalive, broadcast-under-RLock shape).
package dashboard

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cwsl/rfthreat/internal/threat"
)

const (
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
	pingInterval  = 30 * time.Second
)

// Handler accepts WebSocket connections and broadcasts SecurityEvents to
// every connected client.
type Handler struct {
	clients   map[*websocket.Conn]*sync.Mutex
	clientsMu sync.RWMutex
	upgrader  websocket.Upgrader
}

// New creates a dashboard Handler.
func New() *Handler {
	return &Handler{
		clients: make(map[*websocket.Conn]*sync.Mutex),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and registers it for broadcast.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WARN: dashboard: upgrade failed: %v", err)
		return
	}

	h.clientsMu.Lock()
	h.clients[conn] = &sync.Mutex{}
	count := len(h.clients)
	h.clientsMu.Unlock()

	log.Printf("dashboard: client connected (total: %d)", count)

	go h.handleClient(conn)
}

func (h *Handler) handleClient(conn *websocket.Conn) {
	defer func() {
		h.clientsMu.Lock()
		delete(h.clients, conn)
		count := len(h.clients)
		h.clientsMu.Unlock()
		conn.Close()
		log.Printf("dashboard: client disconnected (remaining: %d)", count)
	}()

	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	go func() {
		for range ticker.C {
			h.clientsMu.RLock()
			writeMu, exists := h.clients[conn]
			h.clientsMu.RUnlock()
			if !exists {
				return
			}
			writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline))
			writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: dashboard: read error: %v", err)
			}
			break
		}
	}
}

// Broadcast sends event to every connected dashboard client, dropping
// (and logging) delivery to any client whose write fails; the read loop
// detects and cleans up the dead connection.
func (h *Handler) Broadcast(event threat.SecurityEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("ERROR: dashboard: marshal event %s: %v", event.EventID, err)
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	for conn, writeMu := range h.clients {
		writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		err := conn.WriteMessage(websocket.TextMessage, payload)
		writeMu.Unlock()
		if err != nil {
			log.Printf("WARN: dashboard: send to client failed: %v", err)
		}
	}
}

// ClientCount returns the number of currently connected dashboard
// clients.
func (h *Handler) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}
