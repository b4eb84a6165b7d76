package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"

	"github.com/loomwork/loom/internal/websocket"
)

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Every Origin is accepted: the router installs no CORS middleware,
	// so cross-origin browser access is not restricted here. The engine
	// has no opinion on transport-level auth, per §1.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler upgrades an authenticated request to a live event
// stream connection and subscribes it to the rooms named by its query
// parameters, following the teacher's handler shape
// (internal/api/handlers/websocket.go) adapted from the teacher's
// execution-progress rooms to this engine's execution/workflow/tenant
// room set (internal/websocket/events.go).
type WebSocketHandler struct {
	hub    *websocket.Hub
	logger *slog.Logger
}

// NewWebSocketHandler returns a handler publishing onto hub.
func NewWebSocketHandler(hub *websocket.Hub, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

// HandleConnection upgrades the request, registers a client, subscribes
// it per query params (executionId, workflowId, subscribeTenant), and
// starts its read/write pumps.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket: failed to upgrade connection", "error", err)
		return
	}

	client := &websocket.Client{
		ID:            uuid.NewString(),
		TenantID:      tenantID(c),
		Conn:          conn,
		Hub:           h.hub,
		Send:          make(chan []byte, 256),
		Subscriptions: make(map[string]bool),
	}
	h.hub.Register <- client

	if executionID := c.Query("executionId"); executionID != "" {
		h.hub.SubscribeClient(client, "execution:"+executionID)
	}
	if workflowID := c.Query("workflowId"); workflowID != "" {
		h.hub.SubscribeClient(client, "workflow:"+workflowID)
	}
	if c.Query("subscribeTenant") == "true" {
		h.hub.SubscribeClient(client, "tenant:"+client.TenantID)
	}

	go client.WritePump()
	go client.ReadPump()
}
