package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event is the envelope for every websocket message, in both directions.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func newEvent(eventType string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Event{Type: eventType, Data: raw})
}

// Client is one connected websocket peer.
type Client struct {
	ID     string
	UserID string

	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	gameID string
}

// JoinGame subscribes the client to a game room.
func (c *Client) JoinGame(gameID string) {
	c.mu.Lock()
	c.gameID = gameID
	c.mu.Unlock()
}

// GameID returns the game room the client is subscribed to, if any.
func (c *Client) GameID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameID
}

// Hub tracks connected clients and routes events to individual connections
// or whole game rooms.
type Hub struct {
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	clients map[string]*Client

	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]*Client),
		logger:     logger,
	}
}

// Run processes client registration until the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.String("connection_id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", zap.String("connection_id", client.ID))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// SendTo delivers an event to one connection. Unknown connections are
// ignored; the player may have disconnected.
func (h *Hub) SendTo(connectionID, eventType string, data any) {
	payload, err := newEvent(eventType, data)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("type", eventType), zap.Error(err))
		return
	}

	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	select {
	case client.send <- payload:
	default:
		h.logger.Warn("dropping event for slow client",
			zap.String("connection_id", connectionID),
			zap.String("type", eventType),
		)
	}
}

// ToGame broadcasts an event to every client subscribed to a game room.
func (h *Hub) ToGame(gameID, eventType string, data any) {
	payload, err := newEvent(eventType, data)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("type", eventType), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.GameID() != gameID {
			continue
		}
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("dropping event for slow client",
				zap.String("connection_id", client.ID),
				zap.String("type", eventType),
			)
		}
	}
}
