package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"lifelink/internal/config"
	"lifelink/internal/domain"
	"lifelink/pkg/logger"
)

// Client is a websocket connection registered with the hub.
type Client struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
	identity *domain.Identity
	config   config.WebSocketConfig
	log      logger.Logger
}

// NewClient wraps conn. identity is nil for anonymous connections.
func NewClient(conn *websocket.Conn, identity *domain.Identity, cfg config.WebSocketConfig, log logger.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:       id,
		conn:     conn,
		send:     make(chan []byte, cfg.SendBuffer),
		done:     make(chan struct{}),
		identity: identity,
		config:   cfg,
		log:      log.With("client_id", id),
	}
}

func (c *Client) ID() string { return c.id }

// Identity returns the authenticated participant behind the connection, if any.
func (c *Client) Identity() (domain.Identity, bool) {
	if c.identity == nil {
		return domain.Identity{}, false
	}
	return *c.identity, true
}

// Deliver queues payload for the write pump. A full buffer closes the client.
func (c *Client) Deliver(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	default:
		c.log.Warn("send buffer full, closing client")
		c.Close()
		return false
	}
}

// SendJSON encodes v and queues it for this client only.
func (c *Client) SendJSON(v interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Error("Failed to encode outgoing event", "error", err)
		return false
	}
	return c.Deliver(data)
}

// Close stops the write pump. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// ReadPump reads frames until the connection fails, handing each one to handle. On
// exit the client leaves every room.
func (c *Client) ReadPump(h *Hub, handle func(*Client, []byte)) {
	defer func() {
		h.Remove(c)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error", "error", err)
			}
			return
		}
		handle(c, message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("websocket write failed", "error", err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
