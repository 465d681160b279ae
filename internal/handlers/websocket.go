package handlers

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mossy-p/call-signaling/internal/models"
	"github.com/mossy-p/call-signaling/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// Client represents a WebSocket client connection
type Client struct {
	ID   models.Handle
	Conn *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	logger    zerolog.Logger
}

func newClient(conn *websocket.Conn, sendBuffer int, logger zerolog.Logger) *Client {
	id := models.Handle(uuid.New().String())
	return &Client{
		ID:     id,
		Conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: logger.With().Str("handle", string(id)).Logger(),
	}
}

// Send queues a frame for the write pump. It never blocks and reports
// false when the buffer is full or the client is gone.
func (c *Client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// SignalingHandler upgrades connections and feeds their frames to the hub.
type SignalingHandler struct {
	hub        *signaling.Hub
	sendBuffer int
	logger     zerolog.Logger
}

func NewSignalingHandler(hub *signaling.Hub, sendBuffer int, logger zerolog.Logger) *SignalingHandler {
	return &SignalingHandler{
		hub:        hub,
		sendBuffer: sendBuffer,
		logger:     logger.With().Str("component", "websocket").Logger(),
	}
}

// HandleSignaling handles WebSocket connections for call signaling. The
// connection gets a fresh handle and stays anonymous until it sends
// identity-announce.
func (h *SignalingHandler) HandleSignaling(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := newClient(conn, h.sendBuffer, h.logger)
	h.hub.Connect(client.ID, client)
	client.logger.Debug().Str("remote", c.ClientIP()).Msg("connection opened")

	go client.writePump()
	go client.readPump(h.hub)
}

func (c *Client) readPump(hub *signaling.Hub) {
	defer func() {
		hub.Disconnect(c.ID)
		c.close()
		c.Conn.Close()
		c.logger.Debug().Msg("connection closed")
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("websocket error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		if err := hub.Dispatch(c.ID, message); err != nil {
			c.logDispatchError(err)
		}
	}
}

func (c *Client) logDispatchError(err error) {
	switch {
	case errors.Is(err, signaling.ErrUnknownEvent), errors.Is(err, signaling.ErrNotAnnounced):
		c.logger.Debug().Err(err).Msg("event ignored")
	default:
		c.logger.Warn().Err(err).Msg("event dropped")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn().Err(err).Msg("failed to write message")
				c.close()
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
