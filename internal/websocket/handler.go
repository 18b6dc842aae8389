package websocket

import (
	"context"
	"net/http"
	"strings"

	"socialhub/internal/events"
	"socialhub/internal/metrics"
	"socialhub/internal/presence"
	"socialhub/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TokenVerifier binds a bearer credential to a user id.
type TokenVerifier interface {
	Verify(credential string) (int64, error)
}

// Handler authenticates and upgrades socket connections, then runs the
// session until it disconnects.
type Handler struct {
	auth       TokenVerifier
	hub        *Hub
	registry   *presence.Registry
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	clientCfg  ClientConfig
	logger     WebSocketLogger
}

func NewHandler(auth TokenVerifier, hub *Hub, registry *presence.Registry, dispatcher *Dispatcher, clientCfg ClientConfig, allowedOrigins []string, logger WebSocketLogger) *Handler {
	return &Handler{
		auth:       auth,
		hub:        hub,
		registry:   registry,
		dispatcher: dispatcher,
		clientCfg:  clientCfg,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

// checkOrigin allows every origin when the list is empty or contains "*".
func checkOrigin(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		if len(set) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

// Connect handles GET /ws. Credentials are checked before the upgrade, so a
// rejected attempt never reaches the registry or the hub.
func (h *Handler) Connect(c *gin.Context) {
	userID, err := h.auth.Verify(extractToken(c))
	if err != nil {
		metrics.WSHandshakesTotal.WithLabelValues("rejected").Inc()
		h.logger.Debug("handshake rejected", 0, "", zap.String("remote", c.ClientIP()), zap.Error(err))
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		metrics.WSHandshakesTotal.WithLabelValues("upgrade_failed").Inc()
		h.logger.Error("websocket upgrade failed", userID, "", err)
		return
	}
	metrics.WSHandshakesTotal.WithLabelValues("accepted").Inc()

	// the session outlives the HTTP request context
	client := NewClient(context.Background(), conn, userID, h.clientCfg, h.logger)
	h.serve(client)
}

func (h *Handler) serve(client *Client) {
	h.hub.Add(client)
	h.hub.Join(client, events.UserRoom(client.UserID()))
	h.registry.Register(client.UserID(), client)
	metrics.WSConnectionsActive.Inc()
	h.logger.Info("connected", client.UserID(), client.ID())

	go client.writePump()
	client.readPump(h.dispatcher)

	h.hub.Remove(client)
	h.registry.Unregister(client.UserID(), client)
	metrics.WSConnectionsActive.Dec()
	h.logger.Info("disconnected", client.UserID(), client.ID())
}

func extractToken(c *gin.Context) string {
	// Check query parameter
	if token := c.Query("token"); token != "" {
		return token
	}

	// Check Authorization header
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}
