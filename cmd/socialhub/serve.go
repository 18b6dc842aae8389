package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"socialhub/config"
	"socialhub/internal/handler"
	"socialhub/internal/presence"
	"socialhub/internal/proxy"
	"socialhub/internal/redis"
	"socialhub/internal/repository"
	"socialhub/internal/server"
	"socialhub/internal/services"
	"socialhub/internal/websocket"
	"socialhub/pkg/database"
	"socialhub/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// app holds the long-lived services. Notifications is the entry point for
// collaborators that announce social activity.
type app struct {
	hub           *websocket.Hub
	registry      *presence.Registry
	dispatcher    *websocket.Dispatcher
	conversations *services.ConversationService
	notifications *services.NotificationService
	socket        *websocket.Handler
	bridge        *websocket.RedisBridge
	limiter       *redis.RateLimiter
}

func runServe(ctx context.Context, cfg *config.Config, withMigrate bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if withMigrate {
		if err := repository.InitSchema(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	a, cleanup, err := wire(ctx, cfg, db, l)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(cfg, l)
	mw := server.Middlewares{Auth: services.NewAuthenticator(cfg.JWTSecret, cfg.JWTLeeway)}
	if a.limiter != nil {
		mw.HandshakeLimiter = a.limiter
	}
	srv.SetupRoutes(&server.Handlers{
		Conversations: handler.NewConversationHandler(a.conversations),
		Notifications: handler.NewNotificationHandler(a.notifications),
		Socket:        a.socket.Connect,
		Health: func(ctx context.Context) error {
			return database.HealthCheck(ctx, db)
		},
	}, mw)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if a.bridge != nil {
		g.Go(func() error {
			err := a.bridge.Run(gctx)
			if err != nil && gctx.Err() == nil {
				return fmt.Errorf("redis relay: %w", err)
			}
			return nil
		})
	}
	err = g.Wait()
	a.dispatcher.Wait()
	return err
}

// wire builds the object graph. Redis backed parts are only created when
// Redis is enabled.
func wire(ctx context.Context, cfg *config.Config, db *gorm.DB, l *logger.Logger) (*app, func(), error) {
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	rcptRepo := repository.NewReceiptRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	access := proxy.NewAccessControl(convRepo)

	a := &app{hub: websocket.NewHub(l)}
	cleanup := func() {}

	var mirror websocket.PresenceMirror
	if cfg.RedisEnabled {
		client, err := redis.Connect(ctx, redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, 5*time.Second)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() {
			if err := client.Close(); err != nil {
				l.Logger.Warn("redis close failed", zap.Error(err))
			}
		}

		a.hub.WithRelay(redis.NewPublisher(client))
		a.bridge = websocket.NewRedisBridge(redis.NewSubscriber(client), a.hub, l)
		a.limiter = redis.NewRateLimiter(client, redis.RateLimitConfig{
			MessageLimit:    cfg.WS.MessageRateLimit,
			MessageWindow:   time.Minute,
			HandshakeLimit:  cfg.WS.HandshakeLimit,
			HandshakeWindow: time.Minute,
		})
		mirror = redis.NewPresenceMirror(client, cfg.LastSeenTTL)
		l.Infof("redis relay enabled at %s:%s", cfg.RedisHost, cfg.RedisPort)
	}

	a.registry = presence.NewRegistry(websocket.PresenceBroadcaster(a.hub, mirror, l))

	messages := services.NewMessageService(convRepo, msgRepo, rcptRepo, access, a.hub, a.registry, l)
	if a.limiter != nil {
		messages.WithLimiter(a.limiter)
	}
	receipts := services.NewReceiptService(msgRepo, rcptRepo, access, a.hub, l)
	a.conversations = services.NewConversationService(convRepo, msgRepo, access, l)
	a.notifications = services.NewNotificationService(notifRepo, services.NewNotificationFanout(a.hub, a.registry, l), l)

	wsLog := websocket.NewWebSocketLogger(l)
	a.dispatcher = websocket.NewDispatcher(wsLog)
	websocket.NewChatHandlers(a.hub, websocket.NewRoomAuthorizer(access), messages, receipts).Register(a.dispatcher)

	a.socket = websocket.NewHandler(
		services.NewAuthenticator(cfg.JWTSecret, cfg.JWTLeeway),
		a.hub,
		a.registry,
		a.dispatcher,
		websocket.ClientConfig{
			SendBufferSize:  cfg.WS.SendBufferSize,
			MaxInflight:     cfg.WS.MaxInflight,
			MaxMessageBytes: cfg.WS.MaxMessageBytes,
			PongWait:        cfg.WS.PongWait,
			WriteWait:       cfg.WS.WriteWait,
			RateLimits:      websocket.DefaultRateLimits(cfg.WS.MessageRateLimit),
		},
		cfg.WS.AllowedOrigins,
		wsLog,
	)
	return a, cleanup, nil
}
