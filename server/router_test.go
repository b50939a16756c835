package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Manager) {
	t.Helper()
	// 连接协程可能在测试结束后才退出，这里不用 zaptest
	m := NewManager(context.Background(), testConfig(t), zap.NewNop().Sugar())
	t.Cleanup(m.Shutdown)
	if _, err := m.Create("main"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return NewRouter(m, gin.TestMode), m
}

func do(t *testing.T, r http.Handler, method, target, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: bad json %q", method, target, w.Body.String())
		}
	}
	return w.Code, out
}

func TestRouterHealthz(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", w.Code, w.Body.String())
	}
}

func TestRouterConfig(t *testing.T) {
	r, _ := newTestRouter(t)

	code, body := do(t, r, http.MethodGet, "/admin/config", "")
	if code != http.StatusOK || body["session"] != "main" || body["round"] != "selecting" {
		t.Fatalf("GET config = %d %v", code, body)
	}

	code, body = do(t, r, http.MethodPost, "/admin/config", `{"playerCount":3}`)
	if code != http.StatusOK {
		t.Fatalf("POST config = %d %v", code, body)
	}
	rules := body["rules"].(map[string]any)
	if rules["playerCount"] != 3.0 || rules["startLives"] != 3.0 {
		t.Fatalf("rules = %v", rules)
	}

	code, _ = do(t, r, http.MethodPost, "/admin/config", `{"playerCount":9}`)
	if code != http.StatusBadRequest {
		t.Fatalf("too many players = %d", code)
	}
	code, _ = do(t, r, http.MethodPost, "/admin/config", `{"startLives":0}`)
	if code != http.StatusBadRequest {
		t.Fatalf("zero lives = %d", code)
	}
	code, _ = do(t, r, http.MethodPost, "/admin/config", `{"playerCount":`)
	if code != http.StatusBadRequest {
		t.Fatalf("bad json = %d", code)
	}
	code, _ = do(t, r, http.MethodGet, "/admin/config?session=nope", "")
	if code != http.StatusNotFound {
		t.Fatalf("unknown session = %d", code)
	}
}

func TestRouterRoundAndPlayers(t *testing.T) {
	r, _ := newTestRouter(t)

	code, _ := do(t, r, http.MethodPost, "/admin/round", `{"state":"paused"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("unknown state = %d", code)
	}
	code, _ = do(t, r, http.MethodPost, "/admin/round", `{"state":"idle"}`)
	if code != http.StatusBadRequest {
		t.Fatalf("idle = %d", code)
	}
	code, body := do(t, r, http.MethodPost, "/admin/round", `{"state":"playing"}`)
	if code != http.StatusOK || body["round"] != "playing" {
		t.Fatalf("playing = %d %v", code, body)
	}

	code, body = do(t, r, http.MethodGet, "/admin/players", "")
	if code != http.StatusOK {
		t.Fatalf("players = %d", code)
	}
	if recs, _ := body["records"].([]any); len(recs) != 2 {
		t.Fatalf("records = %v", body["records"])
	}

	code, body = do(t, r, http.MethodGet, "/metrics", "")
	if code != http.StatusOK {
		t.Fatalf("metrics = %d", code)
	}
	metrics := body["metrics"].(map[string]any)
	if metrics["rounds_started"] != 1.0 {
		t.Fatalf("metrics = %v", metrics)
	}
}

func TestRouterSessions(t *testing.T) {
	r, m := newTestRouter(t)

	code, body := do(t, r, http.MethodPost, "/admin/sessions", `{"id":"second"}`)
	if code != http.StatusCreated || body["session"] != "second" {
		t.Fatalf("create = %d %v", code, body)
	}
	code, _ = do(t, r, http.MethodPost, "/admin/sessions", `{"id":"second"}`)
	if code != http.StatusConflict {
		t.Fatalf("duplicate = %d", code)
	}
	code, body = do(t, r, http.MethodPost, "/admin/sessions", "")
	if code != http.StatusCreated || body["session"] == "" {
		t.Fatalf("create generated = %d %v", code, body)
	}

	code, body = do(t, r, http.MethodGet, "/admin/sessions", "")
	if ids, _ := body["sessions"].([]any); code != http.StatusOK || len(ids) != 3 {
		t.Fatalf("list = %d %v", code, body)
	}

	code, _ = do(t, r, http.MethodDelete, "/admin/sessions/second", "")
	if code != http.StatusOK {
		t.Fatalf("delete = %d", code)
	}
	if _, ok := m.Get("second"); ok {
		t.Fatalf("session still registered")
	}
	code, _ = do(t, r, http.MethodDelete, "/admin/sessions/second", "")
	if code != http.StatusNotFound {
		t.Fatalf("delete again = %d", code)
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/admin/config", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestRouterWebSocketRejectsUnknownEvents(t *testing.T) {
	r, _ := newTestRouter(t)
	code, body := do(t, r, http.MethodGet, "/ws?events=player_exploded", "")
	if code != http.StatusBadRequest {
		t.Fatalf("ws unknown kind = %d %v", code, body)
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	r, _ := newTestRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=main&events=round_started"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first struct {
		Type  string `json:"type"`
		Round string `json:"round"`
	}
	if err := ws.ReadJSON(&first); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if first.Type != "state" || first.Round != "selecting" {
		t.Fatalf("initial state = %+v", first)
	}

	if err := ws.WriteJSON(InputMessage{Type: "Round", State: "playing"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	for {
		var msg struct {
			Type string `json:"type"`
			Kind string `json:"kind"`
		}
		if err := ws.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for round_started: %v", err)
		}
		if msg.Type == "event" {
			if msg.Kind != "round_started" {
				t.Fatalf("unexpected event %q passed the filter", msg.Kind)
			}
			return
		}
	}
}
