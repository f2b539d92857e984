package collab

import (
	"time"

	"github.com/apshuang/ShareDocs/internal/op"
)

// DocOpEvent 发往 Kafka 的"操作已应用"事件，供下游（索引/审计）消费
type DocOpEvent struct {
	EventType   string       `json:"eventType"` // 固定 "OP_APPLIED"
	DocID       uint64       `json:"docId"`
	OperationID string       `json:"operationId"`
	Revision    uint64       `json:"revision"`
	AuthorID    uint64       `json:"authorId"`
	BaseVersion uint64       `json:"baseVersion"`
	Operation   op.Operation `json:"operation"`
	AppliedAt   time.Time    `json:"appliedAt"`
}
