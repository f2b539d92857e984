package ws

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/apshuang/ShareDocs/internal/collab"
	"github.com/apshuang/ShareDocs/internal/store"
)

// 允许本地开发环境来源；有些环境不发 Origin 或为 "null"
var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		return true
	}
	allowedPrefixes := []string{
		"http://localhost",
		"http://127.0.0.1",
		"https://localhost",
		"https://127.0.0.1",
	}
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(origin, p) {
			return true
		}
	}
	return false
}}

type Manager struct {
	hub       *Hub
	svc       collab.Service
	documents *store.DocumentStore
	shares    *store.ShareStore
}

func NewManager(hub *Hub, svc collab.Service, documents *store.DocumentStore, shares *store.ShareStore) *Manager {
	return &Manager{hub: hub, svc: svc, documents: documents, shares: shares}
}

// WebSocketConnect 处理 GET /ws?token=...&document_id=...
// 鉴权中间件已经把 userId/username 写入上下文。
func (m *Manager) WebSocketConnect(c *gin.Context) {
	userID := c.GetUint64("userId")
	username := c.GetString("username")

	docID, err := strconv.ParseUint(c.Query("document_id"), 10, 64)
	if err != nil {
		c.String(http.StatusBadRequest, "missing or invalid document_id")
		return
	}

	ctx := c.Request.Context()
	doc, err := m.documents.GetDocument(ctx, docID)
	if err != nil {
		c.String(http.StatusNotFound, "document not found")
		return
	}
	if !m.shares.HasDocumentAccess(ctx, doc, userID, store.PermissionRead) {
		c.String(http.StatusForbidden, "no access to document")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		return
	}
	defer conn.Close()

	rev, err := m.svc.CurrentRevision(ctx, docID)
	if err != nil {
		log.Printf("current revision error (doc=%d): %v", docID, err)
		return
	}

	wsConn := NewConn(conn, m.hub, docID, userID, username, m.svc)
	m.hub.Join(docID, wsConn)
	if err := m.hub.presence.AddMember(ctx, docID, userID, username, presenceTTL); err != nil {
		log.Printf("presence add error: %v", err)
	}
	defer func() {
		m.hub.Leave(docID, wsConn)
		if err := m.hub.presence.RemoveMember(ctx, docID, userID); err != nil {
			log.Printf("presence remove error: %v", err)
		}
	}()

	// 先起写循环，保证后续入队的消息能被发出
	go wsConn.writeLoop()
	wsConn.Enqueue(Message{Type: "connected", Data: ConnectedPayload{UserID: userID, DocumentID: docID, CurrentVersion: rev}})

	// 读循环阻塞到连接关闭
	wsConn.readLoop(ctx)
}
