package ws

import (
	"encoding/json"

	"github.com/apshuang/ShareDocs/internal/op"
)

// 统一消息信封 { "type": string, "data": any }

// InboundMessage 入站消息，data 延迟到按类型分发时再解
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type ConnectedPayload struct {
	UserID         uint64 `json:"user_id"`
	DocumentID     uint64 `json:"document_id"`
	CurrentVersion uint64 `json:"current_version"`
}

type SubscribedPayload struct {
	DocumentID     uint64 `json:"document_id"`
	CurrentVersion uint64 `json:"current_version"`
}

type OperationAppliedPayload struct {
	DocumentID uint64       `json:"document_id"`
	UserID     uint64       `json:"user_id"`
	Operation  op.Operation `json:"operation"`
	Version    uint64       `json:"version"`
}

type CursorPayload struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username,omitempty"`
	Position int    `json:"position"`
}

type PresenceMember struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username,omitempty"`
}

type PresencePayload struct {
	DocumentID uint64           `json:"document_id"`
	Members    []PresenceMember `json:"members"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
