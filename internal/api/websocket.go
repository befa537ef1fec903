// Package api - WebSocket fanout of live outcome events
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/alexbotov/roundengine/internal/domain"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// WSMessage represents a WebSocket message.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSClient represents one connected player socket.
type WSClient struct {
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

// Hub fans settled outcome events out to connected players. It
// implements the engine's event sink, so every settled round or spin
// reaches the player's open sockets as it happens.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*WSClient]bool // keyed by user ID
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*WSClient]bool)}
}

// Publish delivers an outcome event to the owning player's sockets.
// Delivery is best effort; a slow socket drops the message rather than
// stalling settlement.
func (hub *Hub) Publish(event domain.OutcomeEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	msg, _ := json.Marshal(WSMessage{Type: "outcome", Payload: payload})

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for client := range hub.clients[event.UserID] {
		select {
		case client.send <- msg:
		default:
		}
	}
}

func (hub *Hub) register(c *WSClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if hub.clients[c.userID] == nil {
		hub.clients[c.userID] = make(map[*WSClient]bool)
	}
	hub.clients[c.userID][c] = true
}

func (hub *Hub) unregister(c *WSClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if peers, ok := hub.clients[c.userID]; ok {
		delete(peers, c)
		if len(peers) == 0 {
			delete(hub.clients, c.userID)
		}
	}
}

// HandleWebSocket handles GET /api/v1/ws
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &WSClient{
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
	}
	h.hub.register(client)

	go client.writePump()
	go h.readPump(client)
}

// writePump pumps messages from the send channel to the socket.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			w.Close()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client messages until the socket closes.
func (h *Handler) readPump(c *WSClient) {
	defer func() {
		h.hub.unregister(c)
		close(c.send)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	h.sendMessage(c, "connected", map[string]interface{}{
		"message": "Connected to outcome stream",
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.sendError(c, "INVALID_MESSAGE", "Invalid message format")
			continue
		}

		h.handleWSMessage(c, &msg)
	}
}

// handleWSMessage processes incoming WebSocket messages. Play actions
// go through the REST endpoints; the socket is read-mostly.
func (h *Handler) handleWSMessage(c *WSClient, msg *WSMessage) {
	switch msg.Type {
	case "jackpot":
		h.sendMessage(c, "jackpot", map[string]interface{}{
			"amount": h.game.JackpotAmount(),
		})

	case "ping":
		h.sendMessage(c, "pong", map[string]interface{}{
			"timestamp": time.Now().Unix(),
		})

	default:
		h.sendError(c, "UNKNOWN_MESSAGE", "Unknown message type: "+msg.Type)
	}
}

// sendMessage sends a message to the client.
func (h *Handler) sendMessage(c *WSClient, msgType string, payload interface{}) {
	payloadBytes, _ := json.Marshal(payload)
	msgBytes, _ := json.Marshal(WSMessage{
		Type:    msgType,
		Payload: payloadBytes,
	})

	select {
	case c.send <- msgBytes:
	default:
		// Channel full, drop message
	}
}

// sendError sends an error message to the client.
func (h *Handler) sendError(c *WSClient, code, message string) {
	h.sendMessage(c, "error", map[string]string{
		"code":    code,
		"message": message,
	})
}
