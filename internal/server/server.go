package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"socialhub/config"
	"socialhub/internal/handler"
	"socialhub/internal/metrics"
	"socialhub/internal/middleware"
	"socialhub/internal/transport/httpdto"
	"socialhub/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

// HealthFunc reports whether a backing store is reachable.
type HealthFunc func(ctx context.Context) error

// Handlers are the route targets mounted by SetupRoutes. Notifications may
// be nil.
type Handlers struct {
	Conversations *handler.ConversationHandler
	Notifications *handler.NotificationHandler
	Socket        gin.HandlerFunc
	Health        HealthFunc
}

// Middlewares wraps the protected routes. HandshakeLimiter may be nil.
type Middlewares struct {
	Auth             middleware.TokenVerifier
	HandshakeLimiter middleware.HandshakeLimiter
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: logger.OrNop(l),
	}
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, mw Middlewares) {
	metrics.MustRegister(prometheus.DefaultRegisterer)

	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if handlers.Health != nil {
			if err := handlers.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ws := []gin.HandlerFunc{}
	if mw.HandshakeLimiter != nil {
		ws = append(ws, middleware.WebSocketRateLimitMiddleware(mw.HandshakeLimiter))
	}
	s.engine.GET("/ws", append(ws, handlers.Socket)...)

	v1 := s.engine.Group("/v1", middleware.AuthMiddleware(mw.Auth))
	handlers.Conversations.Register(v1)
	if handlers.Notifications != nil {
		handlers.Notifications.Register(v1)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.logger.Errorf("Error in starting the server: %s", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}
