package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"poolorder/internal/domain/chat"
	chatservice "poolorder/internal/service/chat"
)

// wsClient is one connected push subscriber for a request's chat.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	sub  *nats.Subscription
}

// WebSocketConfig contains timing configuration for push connections.
type WebSocketConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns the default WebSocket configuration.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 4096,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS policy is enforced at the router; the upgrade accepts any
		// origin that got this far.
		return true
	},
}

// ChatWebSocketHandler is the push delivery path: it streams appended
// messages for one request over a WebSocket. Access is gated exactly like
// the poll path, and an initial latest-window history frame is sent so the
// consumer can reconcile the two paths by message id. Sends still go through
// POST /messages; the socket is read-only.
func ChatWebSocketHandler(natsConn *nats.Conn, chats *chatservice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := chi.URLParam(r, "id")
		if requestID == "" {
			respondWithError(w, http.StatusBadRequest, "Missing request ID", nil)
			return
		}

		user := UserFromContext(r.Context())

		// Same gate as GET /messages; rejects before the upgrade so the
		// client can fall back to polling with a meaningful status.
		page, err := chats.List(r.Context(), requestID, user, chat.Cursor{}, 0)
		if err != nil {
			respondWithDomainError(w, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("failed to upgrade to WebSocket: %v", err)
			return
		}

		client := &wsClient{
			conn: conn,
			send: make(chan []byte, 256),
		}

		sub, err := natsConn.Subscribe(chat.Subject(requestID), func(msg *nats.Msg) {
			select {
			case client.send <- msg.Data:
			default:
				// Slow consumer; it will re-sync via the poll path.
			}
		})
		if err != nil {
			log.Printf("failed to subscribe to chat subject: %v", err)
			conn.Close()
			return
		}
		client.sub = sub

		go client.writePump()
		go client.readPump()

		history, err := json.Marshal(map[string]interface{}{
			"type":    "history",
			"items":   page.Items,
			"hasMore": page.HasMore,
		})
		if err == nil {
			client.send <- history
		}

		log.Printf("new chat subscription for request %s from user %s", requestID, user.UID)
	}
}

// readPump discards inbound frames and watches for close/pong. All message
// sends go through the HTTP endpoint.
func (c *wsClient) readPump() {
	config := DefaultWebSocketConfig()

	defer c.close()

	c.conn.SetReadLimit(config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

// writePump forwards published messages to the peer and keeps the
// connection alive with pings.
func (c *wsClient) writePump() {
	config := DefaultWebSocketConfig()
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) close() {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
	c.conn.Close()
}
