package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/campanio/backend/internal/apperr"
	"github.com/campanio/backend/internal/middleware"
	"github.com/campanio/backend/internal/model/chat"
	aiService "github.com/campanio/backend/internal/service/ai"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type chatRequest struct {
	Messages []chat.UIMessage `json:"messages"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// wsConn serialises writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(msgType string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(outgoingMessage{Type: msgType, Data: data, Timestamp: time.Now().Unix()})
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || h.allowedOrigin == "*" {
				return true
			}
			return strings.TrimRight(h.allowedOrigin, "/") == origin
		},
	}
}

// handleWebSocket 处理WebSocket对话连接，每条 chat 消息对应一次流式回复
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	principal, _ := middleware.PrincipalFrom(r.Context())

	upgrader := h.upgrader()
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer raw.Close()

	conn := &wsConn{conn: raw}
	h.log.Debug("websocket connected", "userID", principal.UserID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = raw.SetReadDeadline(time.Now().Add(readTimeout))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, conn)

	if err := conn.send("connected", map[string]string{"userId": principal.UserID}); err != nil {
		return
	}

	for {
		var msg inboundMessage
		if err := raw.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("websocket read error", "error", err)
			}
			return
		}
		_ = raw.SetReadDeadline(time.Now().Add(readTimeout))

		switch msg.Type {
		case "chat":
			h.handleChatMessage(ctx, conn, msg.Data)
		case "ping":
			_ = conn.send("pong", nil)
		default:
			_ = conn.send("error", map[string]string{"message": "unknown message type"})
		}
	}
}

func (h *Handler) handleChatMessage(ctx context.Context, conn *wsConn, data json.RawMessage) {
	var req chatRequest
	if err := json.Unmarshal(data, &req); err != nil {
		_ = conn.send("error", map[string]string{"message": "invalid chat payload"})
		return
	}

	stream, err := h.openStream(ctx, req.Messages)
	if err != nil {
		_ = conn.send("error", map[string]string{"message": apperr.Message(err)})
		return
	}

	response, err := aiService.Collect(stream, func(delta string) {
		_ = conn.send("delta", map[string]string{"content": delta})
	})
	if err != nil {
		h.log.Warn("websocket stream failed", "error", err)
		_ = conn.send("error", map[string]string{"message": apperr.Message(err)})
		return
	}

	_ = conn.send("message", map[string]string{"content": response.Content})
	_ = conn.send("end", nil)
}

// pingLoop 定期发送ping消息
func (h *Handler) pingLoop(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
