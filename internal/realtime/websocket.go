package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"studiodesk/internal/domain"
	"studiodesk/internal/logging"
	"studiodesk/internal/pkg/response"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4 * 1024
)

// TokenParser turns the bearer token into a tenant context. Browsers cannot
// set headers on a websocket handshake, so the token comes in the query.
type TokenParser interface {
	TenantContext(token string) (domain.TenantContext, error)
}

type Handler struct {
	hub      *Hub
	tokens   TokenParser
	upgrader websocket.Upgrader
}

// NewHandler accepts connections from the given origins. An empty list
// accepts any origin, which is what local development needs.
func NewHandler(hub *Hub, tokens TokenParser, allowedOrigins []string) *Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Handler{
		hub:    hub,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// Subscribe handles GET /ws/subscribe?token=...&collection=bookings&date=YYYY-MM-DD.
func (h *Handler) Subscribe(c *gin.Context) {
	tc, err := h.tokens.TenantContext(c.Query("token"))
	if err != nil {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or missing token")
		return
	}

	q := Query{
		TenantID:   tc.TenantID,
		Collection: c.Query("collection"),
		Date:       c.Query("date"),
	}
	if q.Collection == "" {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "collection is required")
		return
	}

	sub, err := h.hub.Subscribe(q)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Unsubscribe()
		logging.LogError(logging.GetLogger(), "realtime", "Subscribe", "websocket upgrade failed", q, err)
		return
	}

	// subscribe before the snapshot so nothing committed in between is lost
	docs, err := h.hub.Snapshot(c.Request.Context(), q)
	if err != nil {
		sub.Unsubscribe()
		logging.LogError(logging.GetLogger(), "realtime", "Subscribe", "snapshot failed", q, err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "snapshot failed"))
		_ = conn.Close()
		return
	}

	logging.GetLogger().WithFields(logrus.Fields{
		"tenant_id":  q.TenantID,
		"collection": q.Collection,
		"date":       q.Date,
	}).Debug("realtime subscriber connected")

	ctx, cancel := context.WithCancel(context.Background())
	go h.writePump(ctx, conn, sub, Event{Type: EventSnapshot, Query: q, Docs: docs})
	h.readPump(conn)
	cancel()
	sub.Unsubscribe()
}

// readPump only keeps the connection alive; clients never send data.
func (h *Handler) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, sub *Subscription, first Event) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	if err := writeJSON(conn, first); err != nil {
		return
	}

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := writeJSON(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
