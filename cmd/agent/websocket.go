// Package main provides the WebSocket push channel for queue state events.
package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jbetancur12/parking-app-sub001/internal/logging"
	"github.com/jbetancur12/parking-app-sub001/internal/state"
	"github.com/jbetancur12/parking-app-sub001/internal/syncer"
	"github.com/jbetancur12/parking-app-sub001/internal/uuid"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The agent only serves the local UI
		return strings.HasPrefix(r.Host, "localhost") || strings.HasPrefix(r.Host, "127.0.0.1")
	},
}

// WSClient represents a connected UI client.
type WSClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *WSHub
}

// WSHub maintains active client connections and broadcasts events.
type WSHub struct {
	clients    map[string]*WSClient
	broadcast  chan []byte
	register   chan *WSClient
	unregister chan *WSClient
}

// WSEnvelope wraps all WebSocket messages.
type WSEnvelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

const (
	// Queue events
	EventQueueChanged = "queue.changed"

	// Sync run events
	EventSyncStarted   = "sync.started"
	EventSyncCompleted = "sync.completed"
)

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	hub := &WSHub{
		clients:    make(map[string]*WSClient),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
	go hub.run()
	return hub
}

// run manages client connections and broadcasts.
func (h *WSHub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client.id] = client
			logging.Debug("UI client connected",
				map[string]interface{}{"client_id": client.id, "total": len(h.clients)})

		case client := <-h.unregister:
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			logging.Debug("UI client disconnected",
				map[string]interface{}{"client_id": client.id, "total": len(h.clients)})

		case message := <-h.broadcast:
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client send buffer is full, drop the connection
					close(client.send)
					delete(h.clients, client.id)
				}
			}
		}
	}
}

// Broadcast sends an event envelope to all connected clients.
func (h *WSHub) Broadcast(messageType string, data map[string]interface{}) {
	envelope := WSEnvelope{
		Type:      messageType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		logging.Error("Failed to marshal WebSocket message", err)
		return
	}

	h.broadcast <- bytes
}

// BroadcastQueueChanged pushes a fresh queue snapshot to the UI. Wired as a
// state.Listener so the badge/counter stays live.
func (h *WSHub) BroadcastQueueChanged(snap state.Snapshot) {
	h.Broadcast(EventQueueChanged, map[string]interface{}{
		"is_online":  snap.IsOnline,
		"is_syncing": snap.IsSyncing,
		"pending":    snap.Pending,
		"failed":     snap.Failed,
	})
}

// BroadcastSyncStarted announces a beginning run so the UI can show
// progress against the pending count.
func (h *WSHub) BroadcastSyncStarted(pending int) {
	h.Broadcast(EventSyncStarted, map[string]interface{}{
		"pending": pending,
	})
}

// BroadcastSyncCompleted pushes the end-of-run summary for the UI toast.
func (h *WSHub) BroadcastSyncCompleted(sum syncer.Summary) {
	h.Broadcast(EventSyncCompleted, map[string]interface{}{
		"synced":   sum.Synced,
		"failed":   sum.Failed,
		"duration": sum.Duration.Milliseconds(),
	})
}

// ServeWS upgrades an HTTP request to a WebSocket connection.
func (h *WSHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed", err)
		return
	}

	client := &WSClient{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, 64),
		hub:  h,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// writePump forwards hub messages to the connection.
func (c *WSClient) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// readPump discards inbound messages and detects disconnects.
func (c *WSClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
