package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type joinQueuePayload struct {
	UserID string `json:"userId"`
}

type joinGameRoomPayload struct {
	GameID string `json:"gameId"`
	UserID string `json:"userId"`
}

// handleWebSocket upgrades the connection and runs the read/write pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 16),
	}
	s.hub.register <- client

	go s.writePump(client)
	go s.readPump(client)
}

func (s *Server) readPump(client *Client) {
	defer func() {
		s.handleDisconnect(client)
		s.hub.unregister <- client
		client.conn.Close()
	}()

	client.conn.SetReadLimit(4096)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			s.logger.Debug("ignoring malformed websocket message",
				zap.String("connection_id", client.ID),
			)
			continue
		}

		s.dispatch(client, event)
	}
}

func (s *Server) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) dispatch(client *Client, event Event) {
	switch event.Type {
	case "joinQueue":
		var payload joinQueuePayload
		if err := json.Unmarshal(event.Data, &payload); err != nil || payload.UserID == "" {
			return
		}
		s.handleJoinQueue(client, payload.UserID)

	case "leaveQueue":
		if client.UserID != "" {
			s.queue.RemovePlayer(client.UserID)
		}

	case "joinGameRoom":
		var payload joinGameRoomPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return
		}
		s.handleJoinGameRoom(client, payload.GameID, payload.UserID)

	default:
		s.logger.Debug("unknown websocket event",
			zap.String("type", event.Type),
			zap.String("connection_id", client.ID),
		)
	}
}

// handleDisconnect drops the player from the matchmaking queue when their
// connection goes away.
func (s *Server) handleDisconnect(client *Client) {
	if client.UserID != "" {
		s.queue.RemovePlayer(client.UserID)
	}
}
