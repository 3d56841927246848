package chathub

import (
	"encoding/json"
	"sync"
	"time"

	"roomies/backend/internal/errorx"
	"roomies/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	defaultMaxMessageSize = 4096
	defaultSendBuffer     = 256
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	ID       string
	Identity string
	Conn     *websocket.Conn
	Hub      *ManagerService
	Send     chan models.ServerFrame

	maxMessageSize int64
	closeOnce      sync.Once
}

// NewWebSocketClient wraps an upgraded connection for identity.
func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, identity string) *WebSocketClient {
	buf, limit := hub.cfg.SendBufferSize, hub.cfg.MaxMessageSize
	if buf <= 0 {
		buf = defaultSendBuffer
	}
	if limit <= 0 {
		limit = defaultMaxMessageSize
	}
	return &WebSocketClient{
		ID:             uuid.NewString(),
		Identity:       identity,
		Conn:           conn,
		Hub:            hub,
		Send:           make(chan models.ServerFrame, buf),
		maxMessageSize: limit,
	}
}

func (c *WebSocketClient) GetID() string                             { return c.ID }
func (c *WebSocketClient) GetIdentity() string                       { return c.Identity }
func (c *WebSocketClient) GetSendChannel() chan<- models.ServerFrame { return c.Send }

func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops the write pump, which closes the socket.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// readPump decodes client frames and hands them to the hub in arrival order.
func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.L().Warn("websocket read failed", zap.String("conn_id", c.ID), zap.Error(err))
			}
			return
		}

		var frame models.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.Hub.replyError(c, models.ClientFrame{}, errorx.Wrap(err, errorx.KindValidation, "invalid_frame", "malformed frame"))
			continue
		}
		c.Hub.Dispatch(c, frame)
	}
}

// writePump writes frames from Send to the socket and keeps it alive with pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(frame); err != nil {
				zap.L().Debug("websocket write failed", zap.String("conn_id", c.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
