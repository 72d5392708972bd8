package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"morvo/internal/companion"
	"morvo/internal/config"
	"morvo/internal/eventbus"
	"morvo/internal/llm"
	"morvo/internal/security"
	"morvo/internal/store"
)

type responderFunc func(ctx context.Context, req companion.Request) (companion.Response, error)

func (f responderFunc) Handle(ctx context.Context, req companion.Request) (companion.Response, error) {
	return f(ctx, req)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newCompanion(t *testing.T) (*companion.Pipeline, *store.Store) {
	st, err := store.Open(store.DriverModernc, filepath.Join(t.TempDir(), "morvo.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	p := companion.New(companion.Deps{
		Store:    st,
		Provider: llm.NewIntentProvider(),
		Config:   config.Defaults().Companion,
	})
	t.Cleanup(p.Close)
	return p, st
}

func newTestServer(t *testing.T, opts Options) *Server {
	defaults := config.Defaults()
	if opts.Name == "" {
		opts.Name = defaults.Companion.Name
	}
	if opts.ErrorReply == "" {
		opts.ErrorReply = defaults.Companion.ErrorReply
	}
	return New(opts)
}

func do(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestChatValidation(t *testing.T) {
	p, st := newCompanion(t)
	s := newTestServer(t, Options{Companion: p})

	for _, body := range []string{
		`{"message":"مرحبا"}`,
		`{"user_id":"u1"}`,
		`{}`,
		`not json`,
	} {
		rec := do(s, http.MethodPost, "/functions/v1/morvo", body, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
		var got errorResponse
		json.Unmarshal(rec.Body.Bytes(), &got)
		if got.Error != validationMessage {
			t.Fatalf("%s: unexpected error %q", body, got.Error)
		}
	}

	if n, _ := st.CountConversations(context.Background(), "u1"); n != 0 {
		t.Fatal("validation failures must not write")
	}
}

func TestChatEndToEnd(t *testing.T) {
	p, st := newCompanion(t)
	ctx := context.Background()
	st.SaveProfile(ctx, store.Profile{ID: "u1", FullName: "خالد"})
	st.SaveCampaign(ctx, store.Campaign{UserID: "u1", Name: "أ"})
	st.SaveCampaign(ctx, store.Campaign{UserID: "u1", Name: "ب"})

	s := newTestServer(t, Options{Companion: p})
	for _, path := range []string{"/functions/v1/morvo", "/api/v2/chat/message"} {
		rec := do(s, http.MethodPost, path, `{"user_id":"u1","message":"أعطني تقرير الأداء"}`, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, rec.Code, rec.Body.String())
		}

		var got chatResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if got.Companion != "مورفو" {
			t.Fatalf("unexpected companion %q", got.Companion)
		}
		if !got.ConversationSaved || got.ConversationID == "" {
			t.Fatalf("expected saved conversation, got %+v", got)
		}
		if !strings.Contains(got.Response, "الحملات النشطة: 2") {
			t.Fatalf("response does not reference campaigns: %q", got.Response)
		}
		if got.Intent != "report" {
			t.Fatalf("expected report intent, got %q", got.Intent)
		}
	}
}

func TestCORS(t *testing.T) {
	p, _ := newCompanion(t)
	s := newTestServer(t, Options{Companion: p})

	pre := do(s, http.MethodOptions, "/functions/v1/morvo", "", map[string]string{
		"Origin":                         "https://app.example.com",
		"Access-Control-Request-Method":  "POST",
		"Access-Control-Request-Headers": "authorization, content-type",
	})
	if pre.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", pre.Code)
	}
	if pre.Body.Len() != 0 {
		t.Fatal("preflight body should be empty")
	}
	if got := pre.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	allowHeaders := pre.Header().Get("Access-Control-Allow-Headers")
	for _, h := range corsAllowHeaders {
		if !strings.Contains(allowHeaders, h) {
			t.Fatalf("allow headers %q missing %s", allowHeaders, h)
		}
	}
	if methods := pre.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(methods, "POST") {
		t.Fatalf("allow methods %q missing POST", methods)
	}

	rec := do(s, http.MethodPost, "/functions/v1/morvo", `{"user_id":"u1","message":"hi"}`, map[string]string{
		"Origin": "https://app.example.com",
	})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow origin on POST %q", got)
	}
}

func TestAllowOriginWithoutOriginHeader(t *testing.T) {
	p, _ := newCompanion(t)
	s := newTestServer(t, Options{Companion: p})

	for _, body := range []string{`{"user_id":"u1","message":"hi"}`, `{}`} {
		rec := do(s, http.MethodPost, "/functions/v1/morvo", body, nil)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Fatalf("%s (status %d): unexpected allow origin %q", body, rec.Code, got)
		}
	}

	failing := newTestServer(t, Options{Companion: responderFunc(func(context.Context, companion.Request) (companion.Response, error) {
		panic("nil map")
	})})
	rec := do(failing, http.MethodPost, "/api/v2/chat/message", `{"user_id":"u1","message":"hi"}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow origin on 500 %q", got)
	}
}

func TestUnexpectedFailureReturns500(t *testing.T) {
	s := newTestServer(t, Options{Companion: responderFunc(func(context.Context, companion.Request) (companion.Response, error) {
		panic("nil map")
	})})

	rec := do(s, http.MethodPost, "/api/v2/chat/message", `{"user_id":"u1","message":"hi"}`, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var got chatResponse
	json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Response != config.Defaults().Companion.ErrorReply {
		t.Fatalf("expected generic apology, got %q", got.Response)
	}
	if got.ConversationSaved || got.Error == "" || got.Companion == "" {
		t.Fatalf("unexpected 500 body %+v", got)
	}
}

func TestUnknownRouteKeepsEchoErrors(t *testing.T) {
	s := newTestServer(t, Options{Companion: responderFunc(nil)})
	if rec := do(s, http.MethodGet, "/nope", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAuthorizer(t *testing.T) {
	called := false
	s := newTestServer(t, Options{
		Companion: responderFunc(func(context.Context, companion.Request) (companion.Response, error) {
			called = true
			return companion.Response{Reply: "ok"}, nil
		}),
		Authorizer: security.NewAuthorizer([]string{"u1"}),
	})

	if rec := do(s, http.MethodPost, "/functions/v1/morvo", `{"user_id":"u2","message":"hi"}`, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if called {
		t.Fatal("unauthorized request reached the companion")
	}
	if rec := do(s, http.MethodPost, "/functions/v1/morvo", `{"user_id":"u1","message":"hi"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	storeErr := error(nil)
	s := newTestServer(t, Options{
		Companion: responderFunc(nil),
		Provider:  "intent",
		Store:     pingerFunc(func(context.Context) error { return storeErr }),
		Channels:  func() map[string]bool { return map[string]bool{"telegram": true} },
	})

	rec := do(s, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var h healthResponse
	json.Unmarshal(rec.Body.Bytes(), &h)
	if h.Status != "ok" || h.Provider != "intent" || !h.Channels["telegram"] {
		t.Fatalf("unexpected health %+v", h)
	}

	storeErr = errors.New("database is locked")
	rec = do(s, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestLogs(t *testing.T) {
	bus := eventbus.New()
	ring := eventbus.NewRing(10)
	ring.Attach(bus, eventbus.TopicError)
	bus.Publish(eventbus.TopicError, "store unavailable")

	s := newTestServer(t, Options{Companion: responderFunc(nil), Logs: ring})
	rec := do(s, http.MethodGet, "/api/v2/logs", "", nil)

	var entries []eventbus.LogEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Message != "store unavailable" {
		t.Fatalf("unexpected log entries %+v", entries)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f wsFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestWebSocketChat(t *testing.T) {
	p, st := newCompanion(t)
	s := newTestServer(t, Options{Companion: p})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/u1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if f := readFrame(t, conn); f.Type != "connection_established" || f.UserID != "u1" {
		t.Fatalf("unexpected greeting %+v", f)
	}

	conn.WriteJSON(map[string]string{"type": "ping"})
	if f := readFrame(t, conn); f.Type != "pong" {
		t.Fatalf("expected pong, got %+v", f)
	}

	var convID string
	for i, msg := range []string{"أريد حملة جديدة", "وماذا عن المحتوى؟"} {
		conn.WriteJSON(map[string]string{"message": msg})

		want := []string{"ack", "typing", "typing", "message"}
		var last wsFrame
		for _, typ := range want {
			last = readFrame(t, conn)
			if last.Type != typ {
				t.Fatalf("turn %d: expected %s frame, got %+v", i, typ, last)
			}
		}
		if last.Message == "" || last.ConversationSaved == nil || !*last.ConversationSaved {
			t.Fatalf("turn %d: unexpected reply %+v", i, last)
		}
		if i == 0 {
			convID = last.ConversationID
		} else if last.ConversationID != convID {
			t.Fatal("connection did not keep its conversation")
		}
	}

	history, _ := st.RecentMessages(context.Background(), convID, 0)
	if len(history) != 4 {
		t.Fatalf("expected 4 stored messages, got %d", len(history))
	}

	conn.WriteJSON(map[string]string{"message": "  "})
	if f := readFrame(t, conn); f.Type != "error" {
		t.Fatalf("expected error frame, got %+v", f)
	}
}
