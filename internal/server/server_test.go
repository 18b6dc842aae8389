package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"socialhub/config"
	"socialhub/internal/handler"
	"socialhub/internal/presence"
	"socialhub/internal/repository"
	"socialhub/internal/services"
	"socialhub/internal/testutil"

	"github.com/gin-gonic/gin"
)

type nopEmitter struct{}

func (nopEmitter) Emit(string, string, any) {}

type denyAll struct{}

func (denyAll) Verify(string) (int64, error) { return 0, errors.New("denied") }

func newServer(t *testing.T, health HealthFunc) *Server {
	t.Helper()
	db := testutil.NewDB(t)
	svc := services.NewConversationService(repository.NewConversationRepository(db), repository.NewMessageRepository(db), nil, nil)
	notify := services.NewNotificationService(
		repository.NewNotificationRepository(db),
		services.NewNotificationFanout(nopEmitter{}, presence.NewRegistry(nil), nil),
		nil,
	)

	s := New(&config.Config{AppPort: "0", AppMode: TestMode}, nil)
	s.SetupRoutes(&Handlers{
		Conversations: handler.NewConversationHandler(svc),
		Notifications: handler.NewNotificationHandler(notify),
		Socket:        func(c *gin.Context) { c.Status(http.StatusTeapot) },
		Health:        health,
	}, Middlewares{Auth: denyAll{}})
	return s
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestOperationalRoutes(t *testing.T) {
	s := newServer(t, nil)

	if w := get(s, "/ping"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "pong") {
		t.Fatalf("/ping = %d %s", w.Code, w.Body)
	}
	if w := get(s, "/health"); w.Code != http.StatusOK {
		t.Fatalf("/health = %d", w.Code)
	}
	if w := get(s, "/metrics"); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "socialhub_") {
		t.Fatalf("/metrics = %d", w.Code)
	}
	if w := get(s, "/ws"); w.Code != http.StatusTeapot {
		t.Fatalf("/ws = %d", w.Code)
	}
	if w := get(s, "/v1/conversations"); w.Code != http.StatusUnauthorized {
		t.Fatalf("/v1/conversations = %d", w.Code)
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/notifications", strings.NewReader(`{}`)))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("POST /v1/notifications = %d", w.Code)
	}
}

func TestHealthReportsUnavailableStore(t *testing.T) {
	s := newServer(t, func(context.Context) error { return errors.New("db down") })

	if w := get(s, "/health"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("/health = %d", w.Code)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := newServer(t, nil)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
}
