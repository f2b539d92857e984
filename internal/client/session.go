package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultBaseDelay   = time.Second
	defaultMaxAttempts = 5
)

var (
	ErrNotAuthenticated = errors.New("not authenticated: token required before connect")
	ErrSessionClosed    = errors.New("session closed")
)

// Handler 处理一类服务端消息。每种类型只允许一个处理器，
// 重复注册会替换旧的。
type Handler func(data json.RawMessage)

// SessionConfig 同步会话参数
type SessionConfig struct {
	// WSURL 服务端 websocket 地址，例如 ws://localhost:8080/ws
	WSURL      string
	Token      string
	DocumentID uint64

	// BaseDelay 重连退避基数，第 n 次重试等待 BaseDelay*n
	BaseDelay   time.Duration
	MaxAttempts int

	// OnStateChange 连接状态变化回调（可选）
	OnStateChange func(connected bool)
}

// Session 面向单个文档的同步会话。
// 连接断开后按线性退避自动重连；Close 之后不再重连。
type Session struct {
	cfg SessionConfig

	mu          sync.Mutex
	conn        *websocket.Conn
	handlers    map[string]Handler
	connected   bool
	manualClose bool
	attempts    int
	retryTimer  *time.Timer
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &Session{cfg: cfg, handlers: make(map[string]Handler)}
}

// On 注册某类消息的处理器；同类型只保留最后一次注册的。
func (s *Session) On(msgType string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[msgType] = h
}

func (s *Session) Off(msgType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, msgType)
}

func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Connect 建立连接并发送订阅。必须先有 token。
// 任何待执行的重连定时器在这里作废：显式 Connect 接管重连职责。
func (s *Session) Connect() error {
	s.mu.Lock()
	if s.cfg.Token == "" {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	s.manualClose = false
	if s.connected {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	u, err := url.Parse(s.cfg.WSURL)
	if err != nil {
		return fmt.Errorf("invalid ws url: %w", err)
	}
	q := u.Query()
	q.Set("token", s.cfg.Token)
	q.Set("document_id", fmt.Sprintf("%d", s.cfg.DocumentID))
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.attempts = 0 // 连上就清零，重连计数只统计连续失败
	s.mu.Unlock()

	s.notifyState(true)

	if err := conn.WriteJSON(map[string]any{"type": "subscribe"}); err != nil {
		s.teardown()
		return err
	}

	go s.readLoop(conn)
	return nil
}

// readLoop 顺序分发入站消息；同一会话的处理器不会并发执行。
// 只有传输层读错误会退出循环；解析失败的消息记日志丢弃，连接保持。
func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			s.onDisconnect(err)
			return
		}
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("session malformed payload dropped (doc=%d): %v", s.cfg.DocumentID, err)
			continue
		}
		s.mu.Lock()
		h := s.handlers[msg.Type]
		s.mu.Unlock()
		if h == nil {
			log.Printf("session unhandled message type %q (doc=%d)", msg.Type, s.cfg.DocumentID)
			continue
		}
		h(msg.Data)
	}
}

func (s *Session) onDisconnect(cause error) {
	s.mu.Lock()
	wasConnected := s.connected
	s.connected = false
	s.conn = nil
	manual := s.manualClose
	s.mu.Unlock()

	if wasConnected {
		s.notifyState(false)
	}
	if manual {
		return
	}
	log.Printf("session disconnected (doc=%d): %v", s.cfg.DocumentID, cause)
	s.scheduleReconnect()
}

// scheduleReconnect 线性退避：第 n 次重试前等待 BaseDelay*n，
// 连续失败 MaxAttempts 次后放弃。
func (s *Session) scheduleReconnect() {
	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	if attempt > s.cfg.MaxAttempts {
		s.mu.Unlock()
		log.Printf("session reconnect abandoned after %d attempts (doc=%d)", s.cfg.MaxAttempts, s.cfg.DocumentID)
		return
	}
	delay := s.cfg.BaseDelay * time.Duration(attempt)
	if s.retryTimer != nil {
		s.retryTimer.Stop()
	}
	s.retryTimer = time.AfterFunc(delay, func() {
		if err := s.Connect(); err != nil {
			if errors.Is(err, ErrNotAuthenticated) {
				return
			}
			// 拨号失败继续退避，计数保留
			s.scheduleReconnect()
		}
	})
	s.mu.Unlock()
	log.Printf("session reconnect attempt %d/%d in %v (doc=%d)", attempt, s.cfg.MaxAttempts, delay, s.cfg.DocumentID)
}

// Send 发送一条出站消息；未连接时丢弃并记日志，不排队不报错。
func (s *Session) Send(msgType string, data any) {
	s.mu.Lock()
	conn := s.conn
	open := s.connected
	s.mu.Unlock()
	if !open || conn == nil {
		log.Printf("session not connected, dropping %q message (doc=%d)", msgType, s.cfg.DocumentID)
		return
	}
	if err := conn.WriteJSON(map[string]any{"type": msgType, "data": data}); err != nil {
		log.Printf("session write error (doc=%d): %v", s.cfg.DocumentID, err)
	}
}

// Close 主动关闭会话：取消待执行的重连，之后的断开不再触发重连。
func (s *Session) Close() error {
	s.mu.Lock()
	s.manualClose = true
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return conn.Close()
	}
	return nil
}

func (s *Session) teardown() {
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	was := s.connected
	s.connected = false
	s.mu.Unlock()
	if was {
		s.notifyState(false)
	}
}

func (s *Session) notifyState(connected bool) {
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(connected)
	}
}
