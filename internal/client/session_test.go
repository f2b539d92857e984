package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestSession_ConnectRequiresToken(t *testing.T) {
	s := NewSession(SessionConfig{WSURL: "ws://localhost:0/ws", DocumentID: 1})
	if err := s.Connect(); err != ErrNotAuthenticated {
		t.Fatalf("Connect() = %v, want ErrNotAuthenticated", err)
	}
}

func TestSession_SubscribeOnConnectAndDispatch(t *testing.T) {
	gotSubscribe := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") == "" {
			t.Errorf("missing token query param")
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var msg struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type == "subscribe" {
			gotSubscribe <- struct{}{}
		}
		_ = conn.WriteJSON(map[string]any{
			"type": "subscribed",
			"data": map[string]any{"document_id": 1, "current_version": 7},
		})
		// 挂住连接直到客户端关闭
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	dispatched := make(chan json.RawMessage, 1)
	s := NewSession(SessionConfig{WSURL: wsURL(srv), Token: "tok", DocumentID: 1})
	s.On("subscribed", func(data json.RawMessage) { dispatched <- data })

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer s.Close()

	select {
	case <-gotSubscribe:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received subscribe")
	}

	select {
	case data := <-dispatched:
		var payload struct {
			CurrentVersion uint64 `json:"current_version"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatalf("payload decode: %v", err)
		}
		if payload.CurrentVersion != 7 {
			t.Fatalf("current_version = %d, want 7", payload.CurrentVersion)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscribed handler never fired")
	}

	if !s.Connected() {
		t.Fatal("Connected() = false after successful connect")
	}
}

func TestSession_OnReplacesPreviousHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil { // subscribe
			return
		}
		_ = conn.WriteJSON(map[string]any{"type": "pong"})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	first := make(chan struct{}, 1)
	second := make(chan struct{}, 1)
	s := NewSession(SessionConfig{WSURL: wsURL(srv), Token: "tok", DocumentID: 1})
	s.On("pong", func(json.RawMessage) { first <- struct{}{} })
	s.On("pong", func(json.RawMessage) { second <- struct{}{} })

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer s.Close()

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("replacement handler never fired")
	}
	select {
	case <-first:
		t.Fatal("replaced handler fired")
	default:
	}
}

func TestSession_MalformedPayloadKeepsConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil { // subscribe
			return
		}
		// 畸形消息、无处理器的消息都不应断开连接，后续消息照常分发
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{not json`))
		_ = conn.WriteJSON(map[string]any{"type": "mystery"})
		_ = conn.WriteJSON(map[string]any{"type": "pong"})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	pong := make(chan struct{}, 1)
	s := NewSession(SessionConfig{WSURL: wsURL(srv), Token: "tok", DocumentID: 1})
	s.On("pong", func(json.RawMessage) { pong <- struct{}{} })

	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer s.Close()

	select {
	case <-pong:
	case <-time.After(2 * time.Second):
		t.Fatal("pong never dispatched after malformed payload")
	}
	if !s.Connected() {
		t.Fatal("Connected() = false, malformed payload dropped the connection")
	}
}

func TestSession_ManualCloseSuppressesReconnect(t *testing.T) {
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := NewSession(SessionConfig{WSURL: wsURL(srv), Token: "tok", DocumentID: 1, BaseDelay: 5 * time.Millisecond})
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if got := dials.Load(); got != 1 {
		t.Fatalf("dial count = %d after manual close, want 1", got)
	}
	if s.Connected() {
		t.Fatal("Connected() = true after Close")
	}
}

func TestSession_LinearBackoffGivesUpAfterMaxAttempts(t *testing.T) {
	var dials atomic.Int32
	var refuse atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		if refuse.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// 收到订阅后断开，触发客户端重连
		_, _, _ = conn.ReadMessage()
		conn.Close()
	}))
	defer srv.Close()

	s := NewSession(SessionConfig{
		WSURL:       wsURL(srv),
		Token:       "tok",
		DocumentID:  1,
		BaseDelay:   5 * time.Millisecond,
		MaxAttempts: 3,
	})
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	refuse.Store(true)

	// 初始连接 1 次 + 重试 3 次（5ms+10ms+15ms），留足裕量
	time.Sleep(500 * time.Millisecond)
	if got := dials.Load(); got != 4 {
		t.Fatalf("dial count = %d, want 4 (1 initial + 3 retries)", got)
	}
	time.Sleep(100 * time.Millisecond)
	if got := dials.Load(); got != 4 {
		t.Fatalf("dial count grew to %d after giving up", got)
	}
}

func TestSession_AttemptsResetAfterSuccessfulReconnect(t *testing.T) {
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := dials.Add(1)
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if n <= 1 {
			// 第一条连接在收到订阅后断开，之后的保持
			_, _, _ = conn.ReadMessage()
			conn.Close()
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := NewSession(SessionConfig{WSURL: wsURL(srv), Token: "tok", DocumentID: 1, BaseDelay: 5 * time.Millisecond, MaxAttempts: 2})
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer s.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !s.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("session never reconnected")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.mu.Lock()
	attempts := s.attempts
	s.mu.Unlock()
	if attempts != 0 {
		t.Fatalf("attempts = %d after successful reconnect, want 0", attempts)
	}
}

func TestSession_SendWhenDisconnectedDrops(t *testing.T) {
	s := NewSession(SessionConfig{WSURL: "ws://localhost:0/ws", Token: "tok", DocumentID: 1})
	// 未连接时发送只丢弃，不 panic 不报错
	s.Send("cursor", map[string]int{"position": 3})
}
