package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sangkips/gstbill-desk/internal/application/service"
	"github.com/sangkips/gstbill-desk/internal/bridge"
	"github.com/sangkips/gstbill-desk/internal/domain/entity"
	"github.com/sangkips/gstbill-desk/internal/presentation/http/dto/response"
	"github.com/sangkips/gstbill-desk/pkg/apperror"
	"go.uber.org/zap"
)

const (
	// maxInvokePayload bounds a single bridge argument. Drafts are capped
	// well below this.
	maxInvokePayload = 8 << 20

	sseHeartbeat = 25 * time.Second

	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// QueueSnapshotter returns the current print queue state, sent to every new
// subscriber before any pushed event.
type QueueSnapshotter interface {
	GetPrintQueue(ctx context.Context) (*entity.PrintQueueStatus, error)
}

// BridgeHandler exposes the bridge over HTTP, Server-Sent Events and WebSocket.
type BridgeHandler struct {
	bridge   *bridge.Bridge
	hub      *bridge.Hub
	queue    QueueSnapshotter
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewBridgeHandler creates a new bridge handler. checkOrigin may be nil to
// use the WebSocket same-origin default.
func NewBridgeHandler(b *bridge.Bridge, hub *bridge.Hub, queue QueueSnapshotter, checkOrigin func(r *http.Request) bool, logger *zap.Logger) *BridgeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BridgeHandler{
		bridge: b,
		hub:    hub,
		queue:  queue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		logger: logger.With(zap.String("component", "bridge_http")),
	}
}

// Channels lists the allowed channels.
func (h *BridgeHandler) Channels(c *gin.Context) {
	response.OK(c, "Bridge channels retrieved", gin.H{
		"invoke": h.bridge.Channels(),
		"events": []string{service.EventPrintQueueChange, service.EventPrintJobUpdate},
	})
}

// Invoke runs one bridge channel with the request body as its argument.
func (h *BridgeHandler) Invoke(c *gin.Context) {
	channel := c.Param("channel")
	if !h.bridge.Allowed(channel) {
		response.Error(c, apperror.ErrChannelNotAllowed)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInvokePayload+1))
	if err != nil {
		response.BadRequest(c, "Failed to read request body")
		return
	}
	if len(payload) > maxInvokePayload {
		response.ErrorWithCode(c, http.StatusRequestEntityTooLarge, "Payload too large")
		return
	}

	result, err := h.bridge.Invoke(c.Request.Context(), channel, payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, channel, result)
}

// snapshotEvent builds the initial onPrintQueueChange event for a new
// subscriber. Its seq is the last published seq, so the subscriber knows
// which later events it has already seen reflected.
func (h *BridgeHandler) snapshotEvent(ctx context.Context) (bridge.Event, bool) {
	status, err := h.queue.GetPrintQueue(ctx)
	if err != nil {
		h.logger.Warn("no queue snapshot for subscriber", zap.Error(err))
		return bridge.Event{}, false
	}
	return bridge.Event{Seq: h.hub.Seq(), Name: service.EventPrintQueueChange, Payload: status}, true
}

// Events streams push events as Server-Sent Events.
func (h *BridgeHandler) Events(c *gin.Context) {
	sub := h.hub.Subscribe()
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	if ev, ok := h.snapshotEvent(ctx); ok {
		c.SSEvent(ev.Name, ev)
		c.Writer.Flush()
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"seq": h.hub.Seq()})
			return true
		}
	})
}

// wsRequest is a command sent by the tab over the WebSocket.
type wsRequest struct {
	ID      string          `json:"id"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsMessage is anything the host sends over the WebSocket.
type wsMessage struct {
	Type    string             `json:"type"`
	ID      string             `json:"id,omitempty"`
	Result  any                `json:"result,omitempty"`
	Error   *apperror.AppError `json:"error,omitempty"`
	Seq     uint64             `json:"seq,omitempty"`
	Event   string             `json:"event,omitempty"`
	Payload any                `json:"payload,omitempty"`
}

// wsConn serializes writes to a WebSocket connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) write(msg wsMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.conn.WriteJSON(msg)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// WebSocket carries both directions on one connection: commands in,
// responses and push events out.
func (h *BridgeHandler) WebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// The request context carries the caller's tenant and user.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	ws := &wsConn{conn: conn}
	sub := h.hub.Subscribe()
	defer sub.Close()

	if ev, ok := h.snapshotEvent(ctx); ok {
		if err := ws.write(eventMessage(ev)); err != nil {
			return
		}
	}

	go h.pushEvents(ctx, cancel, ws, sub)

	conn.SetReadLimit(maxInvokePayload)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket closed", zap.Error(err))
			}
			return
		}

		msg := wsMessage{Type: "response", ID: req.ID}
		result, err := h.bridge.Invoke(ctx, req.Channel, req.Payload)
		if err != nil {
			msg.Error = apperror.GetAppError(err)
		} else {
			msg.Result = result
		}
		if err := ws.write(msg); err != nil {
			return
		}
	}
}

// pushEvents forwards hub events and keeps the connection alive until ctx
// is done or a write fails.
func (h *BridgeHandler) pushEvents(ctx context.Context, cancel context.CancelFunc, ws *wsConn, sub *bridge.Subscription) {
	defer cancel()
	// Unblocks the read loop.
	defer ws.conn.Close()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				_ = ws.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "host shutting down"),
					time.Now().Add(wsWriteWait))
				return
			}
			if err := ws.write(eventMessage(ev)); err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.ping(); err != nil {
				return
			}
		}
	}
}

func eventMessage(ev bridge.Event) wsMessage {
	return wsMessage{Type: "event", Seq: ev.Seq, Event: ev.Name, Payload: ev.Payload}
}
