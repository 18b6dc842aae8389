package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"socialhub/internal/domain/conversation"
	"socialhub/internal/domain/message"
	"socialhub/internal/events"
	"socialhub/internal/handler"
	"socialhub/internal/middleware"
	"socialhub/internal/presence"
	"socialhub/internal/proxy"
	"socialhub/internal/repository"
	"socialhub/internal/services"
	"socialhub/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

const testSecret = "ws-test-secret"

type testServer struct {
	url    string
	api    string
	hub    *Hub
	helper *testutil.TestHelper
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	rcptRepo := repository.NewReceiptRepository(db)
	access := proxy.NewAccessControl(convRepo)

	wsLog := NewWebSocketLogger(nil)
	hub := NewHub(nil)
	registry := presence.NewRegistry(PresenceBroadcaster(hub, nil, nil))

	messages := services.NewMessageService(convRepo, msgRepo, rcptRepo, access, hub, registry, nil)
	receipts := services.NewReceiptService(msgRepo, rcptRepo, access, hub, nil)

	dispatcher := NewDispatcher(wsLog)
	NewChatHandlers(hub, NewRoomAuthorizer(access), messages, receipts).Register(dispatcher)

	notify := services.NewNotificationService(
		repository.NewNotificationRepository(db),
		services.NewNotificationFanout(hub, registry, nil),
		nil,
	)

	auth := services.NewAuthenticator(testSecret, 0)
	ws := NewHandler(auth, hub, registry, dispatcher, ClientConfig{}, nil, wsLog)
	r := gin.New()
	r.Use(middleware.ErrorHandler(nil))
	r.GET("/ws", ws.Connect)
	handler.NewNotificationHandler(notify).Register(r.Group("/v1", middleware.AuthMiddleware(auth)))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{
		url:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		api:    srv.URL + "/v1",
		hub:    hub,
		helper: testutil.NewTestHelper(t, db),
	}
}

func tokenFor(t *testing.T, userID int64, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  userID,
		"exp": time.Now().Add(ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func (s *testServer) dial(t *testing.T, userID int64) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.url+"?token="+tokenFor(t, userID, time.Hour), nil)
	if err != nil {
		t.Fatalf("dial user %d: %v", userID, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	waitFor(t, func() bool { return s.hub.RoomSize(events.UserRoom(userID)) > 0 })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	frame, err := events.Encode(event, data)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// readUntil returns the first frame carrying event, collecting the events
// skipped on the way.
func readUntil(t *testing.T, conn *websocket.Conn, event string) (events.Envelope, []string) {
	t.Helper()
	var skipped []string
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s (skipped %v): %v", event, skipped, err)
		}
		env, err := events.Decode(frame)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Event == event {
			return env, skipped
		}
		skipped = append(skipped, env.Event)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConnectRejectsInvalidCredentials(t *testing.T) {
	s := newTestServer(t)

	for name, query := range map[string]string{
		"missing": "",
		"expired": "?token=" + tokenFor(t, 1, -time.Hour),
		"garbage": "?token=abc.def.ghi",
	} {
		t.Run(name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(s.url+query, nil)
			if err == nil {
				t.Fatal("dial should fail")
			}
			if resp == nil || resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("response = %+v", resp)
			}
		})
	}
	if s.hub.ClientCount() != 0 {
		t.Fatalf("rejected sessions reached the hub: %d", s.hub.ClientCount())
	}
}

func TestConnectAcceptsBearerHeader(t *testing.T) {
	s := newTestServer(t)
	header := http.Header{"Authorization": []string{"Bearer " + tokenFor(t, 5, time.Hour)}}

	conn, _, err := websocket.DefaultDialer.Dial(s.url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return s.hub.RoomSize(events.UserRoom(5)) == 1 })
}

func TestSendMessageReachesRoomAndRecipient(t *testing.T) {
	s := newTestServer(t)
	conv := s.helper.CreateConversation(conversation.KindPrivate, 1, 2)
	room := events.ConversationRoom(conv.ID)

	alice := s.dial(t, 1)
	bob := s.dial(t, 2)
	send(t, alice, events.EventJoinConversation, conv.ID)
	send(t, bob, events.EventJoinConversation, map[string]int64{"conversationId": conv.ID})
	waitFor(t, func() bool { return s.hub.RoomSize(room) == 2 })

	send(t, alice, events.EventSendMessage, events.SendMessagePayload{ConversationID: conv.ID, Content: "hello"})

	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		env, _ := readUntil(t, conn, events.EventReceiveMessage)
		var msg message.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			t.Fatalf("%s decode: %v", name, err)
		}
		if msg.Content != "hello" || msg.SenderID != 1 || msg.ID == 0 || msg.Type != message.TypeText {
			t.Fatalf("%s got %+v", name, msg)
		}
	}

	env, _ := readUntil(t, bob, events.EventMessageNotification)
	var note events.MessageNotificationEvent
	if err := json.Unmarshal(env.Data, &note); err != nil {
		t.Fatal(err)
	}
	if note.ConversationID != conv.ID || note.Message.Content != "hello" {
		t.Fatalf("notification = %+v", note)
	}
}

func TestTypingExcludesSender(t *testing.T) {
	s := newTestServer(t)
	conv := s.helper.CreateConversation(conversation.KindGroup, 1, 2)
	room := events.ConversationRoom(conv.ID)

	alice := s.dial(t, 1)
	bob := s.dial(t, 2)
	send(t, alice, events.EventJoinConversation, conv.ID)
	send(t, bob, events.EventJoinConversation, conv.ID)
	waitFor(t, func() bool { return s.hub.RoomSize(room) == 2 })

	send(t, alice, events.EventTyping, events.TypingPayload{ConversationID: conv.ID, IsTyping: true})

	env, _ := readUntil(t, bob, events.EventTyping)
	var typing events.TypingEvent
	if err := json.Unmarshal(env.Data, &typing); err != nil {
		t.Fatal(err)
	}
	if typing.UserID != 1 || typing.ConversationID != conv.ID || !typing.IsTyping {
		t.Fatalf("typing = %+v", typing)
	}

	// an unknown event produces a frame for alice; typing must not precede it
	send(t, alice, "ping", nil)
	_, skipped := readUntil(t, alice, events.EventErrorMessage)
	for _, ev := range skipped {
		if ev == events.EventTyping {
			t.Fatal("sender received its own typing event")
		}
	}
}

func TestJoinRejectsNonMember(t *testing.T) {
	s := newTestServer(t)
	conv := s.helper.CreateConversation(conversation.KindPrivate, 1, 2)

	mallory := s.dial(t, 3)
	send(t, mallory, events.EventJoinConversation, conv.ID)

	env, _ := readUntil(t, mallory, events.EventErrorMessage)
	var e events.ErrorEvent
	if err := json.Unmarshal(env.Data, &e); err != nil {
		t.Fatal(err)
	}
	if e.Event != events.EventJoinConversation || e.Message != "not a member of this conversation" {
		t.Fatalf("error = %+v", e)
	}
	if s.hub.RoomSize(events.ConversationRoom(conv.ID)) != 0 {
		t.Fatal("non-member joined the room")
	}
}

func TestSendRejectedForNonMember(t *testing.T) {
	s := newTestServer(t)
	conv := s.helper.CreateConversation(conversation.KindPrivate, 1, 2)

	mallory := s.dial(t, 3)
	send(t, mallory, events.EventSendMessage, events.SendMessagePayload{ConversationID: conv.ID, Content: "hi"})

	env, skipped := readUntil(t, mallory, events.EventErrorMessage)
	for _, ev := range skipped {
		if ev == events.EventReceiveMessage {
			t.Fatal("rejected message was broadcast")
		}
	}
	var e events.ErrorEvent
	_ = json.Unmarshal(env.Data, &e)
	if e.Event != events.EventSendMessage {
		t.Fatalf("error = %+v", e)
	}
}

func TestPresenceTransitionsAreBroadcast(t *testing.T) {
	s := newTestServer(t)
	alice := s.dial(t, 1)

	bob := s.dial(t, 2)
	env, _ := readUntil(t, alice, events.EventUserStatus)
	var status events.UserStatusEvent
	_ = json.Unmarshal(env.Data, &status)
	// alice may first see her own transition
	if status.UserID == 1 {
		env, _ = readUntil(t, alice, events.EventUserStatus)
		_ = json.Unmarshal(env.Data, &status)
	}
	if status != (events.UserStatusEvent{UserID: 2, Status: presence.StatusOnline}) {
		t.Fatalf("status = %+v", status)
	}

	_ = bob.Close()
	env, _ = readUntil(t, alice, events.EventUserStatus)
	_ = json.Unmarshal(env.Data, &status)
	if status != (events.UserStatusEvent{UserID: 2, Status: presence.StatusOffline}) {
		t.Fatalf("status = %+v", status)
	}
	waitFor(t, func() bool { return s.hub.ClientCount() == 1 })
}

func TestCheckOrigin(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := checkOrigin(nil)
	if !open(req("https://anything.example")) {
		t.Fatal("empty list allows every origin")
	}

	strict := checkOrigin([]string{"https://app.example/"})
	if !strict(req("https://app.example")) {
		t.Fatal("listed origin rejected")
	}
	if strict(req("https://evil.example")) {
		t.Fatal("unlisted origin accepted")
	}
	if !strict(req("")) {
		t.Fatal("requests without an Origin header are not browser requests")
	}

	if !checkOrigin([]string{"*"})(req("https://x.example")) {
		t.Fatal("wildcard allows every origin")
	}
}

func TestNotificationPostReachesLiveSession(t *testing.T) {
	s := newTestServer(t)
	receiver := s.dial(t, 2)

	body := `{"receiverId":2,"type":"comment","content":"nice","senderName":"alice","metadata":{"postId":4}}`
	req, err := http.NewRequest(http.MethodPost, s.api+"/notifications", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, 1, time.Hour))
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", res.StatusCode)
	}

	env, _ := readUntil(t, receiver, events.EventNewNotification)
	var got events.NewNotificationEvent
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID == 0 || got.Type != "comment" || got.Sender.ID != 1 || got.Sender.Username != "alice" || string(got.Metadata) != `{"postId":4}` {
		t.Fatalf("unexpected notification %+v", got)
	}
}
