package ws

import (
	"sync"

	"github.com/apshuang/ShareDocs/internal/cache"
)

// Hub 维护 docID -> 连接集合 的房间表。
// 房间里存连接而不是 userID：同一用户可以开多个标签页/设备，广播要逐连接发。
type Hub struct {
	presence cache.PresenceCache
	mu       sync.RWMutex
	rooms    map[uint64]map[*Conn]struct{}
}

func NewHub(p cache.PresenceCache) *Hub {
	return &Hub{presence: p, rooms: make(map[uint64]map[*Conn]struct{})}
}

// Join 将连接加入指定文档房间
func (h *Hub) Join(docID uint64, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[docID] == nil {
		h.rooms[docID] = make(map[*Conn]struct{})
	}
	h.rooms[docID][c] = struct{}{}
}

// Leave 将连接从指定文档房间移除
func (h *Hub) Leave(docID uint64, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[docID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, docID)
		}
	}
}

// Broadcast 把消息发给文档房间内的所有连接（含发起者：
// 发起者也走广播路径推进本地状态，收敛只有一条代码路径）。
func (h *Hub) Broadcast(docID uint64, msg Message) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.rooms[docID]))
	for c := range h.rooms[docID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.Enqueue(msg)
	}
}

// BroadcastOperation 广播一条已应用的操作
func (h *Hub) BroadcastOperation(docID uint64, payload OperationAppliedPayload) {
	h.Broadcast(docID, Message{Type: "operation_applied", Data: payload})
}
