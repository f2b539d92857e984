package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/apshuang/ShareDocs/internal/collab"
)

const presenceTTL = 600 * time.Second

type Conn struct {
	ws       *websocket.Conn
	hub      *Hub
	docID    uint64
	userID   uint64
	username string
	send     chan Message
	svc      collab.Service
}

func NewConn(ws *websocket.Conn, hub *Hub, docID, userID uint64, username string, svc collab.Service) *Conn {
	return &Conn{ws: ws, hub: hub, docID: docID, userID: userID, username: username, send: make(chan Message, 32), svc: svc}
}

// Enqueue 把出站消息放进发送队列，队列满则丢弃（慢连接不拖垮广播）
func (c *Conn) Enqueue(msg Message) {
	select {
	case c.send <- msg:
	default:
	}
}

// readLoop 逐条读取入站消息并按类型处理；连接关闭时返回。
// 处理是同步的：同一连接的消息严格按到达顺序消费，不并行分发。
func (c *Conn) readLoop(ctx context.Context) {
	defer close(c.send)
	for {
		var msg InboundMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("ws read error (user=%d, doc=%d): %v", c.userID, c.docID, err)
			}
			return
		}

		switch msg.Type {
		case "ping":
			// 心跳同时刷新 presence TTL
			if err := c.hub.presence.AddMember(ctx, c.docID, c.userID, c.username, presenceTTL); err != nil {
				log.Printf("presence refresh error: %v", err)
			}
			c.Enqueue(Message{Type: "pong"})

		case "subscribe":
			rev, err := c.svc.CurrentRevision(ctx, c.docID)
			if err != nil {
				log.Printf("current revision error (doc=%d): %v", c.docID, err)
				c.Enqueue(Message{Type: "error", Data: ErrorPayload{Message: "文档不存在"}})
				continue
			}
			c.Enqueue(Message{Type: "subscribed", Data: SubscribedPayload{DocumentID: c.docID, CurrentVersion: rev}})

			// 顺带同步一次在线成员
			members, err := c.hub.presence.GetAliveMembersWithNames(ctx, c.docID)
			if err != nil {
				log.Printf("get members error: %v", err)
				continue
			}
			out := make([]PresenceMember, len(members))
			for i, m := range members {
				out[i] = PresenceMember{UserID: m.UserID, Username: m.Username}
			}
			c.hub.Broadcast(c.docID, Message{Type: "presence", Data: PresencePayload{DocumentID: c.docID, Members: out}})

		case "cursor":
			var cur CursorPayload
			if err := json.Unmarshal(msg.Data, &cur); err != nil {
				log.Printf("cursor payload decode error (user=%d): %v", c.userID, err)
				continue
			}
			cur.UserID = c.userID
			cur.Username = c.username
			if b, err := json.Marshal(cur); err == nil {
				if err := c.hub.presence.SetCursor(ctx, c.docID, c.userID, b, presenceTTL); err != nil {
					log.Printf("set cursor error: %v", err)
				}
			}
			c.hub.Broadcast(c.docID, Message{Type: "cursor", Data: cur})

		default:
			c.Enqueue(Message{Type: "error", Data: ErrorPayload{Message: fmt.Sprintf("未知的消息类型: %s", msg.Type)}})
		}
	}
}

func (c *Conn) writeLoop() {
	for msg := range c.send {
		if err := c.ws.WriteJSON(msg); err != nil {
			return
		}
	}
}
