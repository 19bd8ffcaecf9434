package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type tableRequest struct {
	Table string `json:"table"`
}

// Client is one WebSocket connection. Privileged clients also receive
// changes to hidden rows and the private columns of public ones.
type Client struct {
	ID         string
	Privileged bool
	hub        *Hub
	conn       *websocket.Conn
	send       chan WSMessage
	done       chan struct{}
	logger     *zap.Logger
}

// ServeWs upgrades the request and runs the client loop. privileged decides
// from the request whether the client may see drafts and pending comments.
func ServeWs(hub *Hub, logger *zap.Logger, privileged func(c *gin.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:     uuid.New().String(),
			hub:    hub,
			conn:   conn,
			send:   make(chan WSMessage, 256),
			done:   make(chan struct{}),
			logger: logger,
		}
		if privileged != nil {
			client.Privileged = privileged(c)
		}
		go client.writePump()
		client.readPump()
	}
}

// hiddenFlags are the row flags that keep a row from the public while false.
var hiddenFlags = []string{"is_published", "is_approved", "is_active"}

// canSee hides changes to unpublished, unapproved or inactive rows from
// public clients.
func (c *Client) canSee(change Change) bool {
	if c.Privileged {
		return true
	}
	row := change.Row()
	for _, flag := range hiddenFlags {
		if v, ok := row[flag].(bool); ok && !v {
			return false
		}
	}
	return true
}

func (c *Client) reply(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		close(c.done)
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))

		var req tableRequest
		_ = json.Unmarshal(msg.Data, &req)
		switch msg.Event {
		case "subscribe":
			if !c.hub.Join(c, req.Table) {
				c.reply("error", map[string]string{"message": "unknown table", "table": req.Table})
				continue
			}
			c.reply("subscribed", req)
		case "unsubscribe":
			c.hub.Leave(c, req.Table)
			c.reply("unsubscribed", req)
		default:
			// ignore
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
