package op

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInsert  Kind = "insert"
	KindDelete  Kind = "delete"
	KindReplace Kind = "replace"
	KindFormat  Kind = "format"
)

var (
	ErrInvalidRange    = errors.New("INVALID_RANGE")
	ErrMissingContent  = errors.New("MISSING_CONTENT")
	ErrUnsupportedType = errors.New("UNSUPPORTED_OPERATION_TYPE")
)

// Operation 描述一次编辑：插入/删除/替换/格式化。
// 位置均为 rune 偏移，与文档长度使用同一单位。
type Operation struct {
	Type    Kind   `json:"type"`
	FromPos int    `json:"from_pos"`
	ToPos   int    `json:"to_pos"`
	Content string `json:"content,omitempty"`
	// 格式化标记（粗体/斜体等），只对 format 操作有意义
	Marks map[string]any `json:"marks,omitempty"`
	// 操作基于的文档版本号，服务端据此做准入校验
	BaseVersion uint64 `json:"base_version"`
}

// Validate 按操作类型校验位置区间与负载，docLen 为文档当前 rune 长度。
// 返回的错误标识被违反的那条约束；不修改任何状态。
func (o Operation) Validate(docLen int) error {
	switch o.Type {
	case KindInsert:
		if o.FromPos != o.ToPos {
			return fmt.Errorf("%w: insert requires from_pos == to_pos (got %d..%d)", ErrInvalidRange, o.FromPos, o.ToPos)
		}
		if o.FromPos < 0 || o.FromPos > docLen {
			return fmt.Errorf("%w: insert position %d out of document length %d", ErrInvalidRange, o.FromPos, docLen)
		}
		if o.Content == "" {
			return fmt.Errorf("%w: insert requires content", ErrMissingContent)
		}
	case KindDelete:
		if o.FromPos < 0 || o.FromPos >= o.ToPos || o.ToPos > docLen {
			return fmt.Errorf("%w: delete range %d..%d invalid for document length %d", ErrInvalidRange, o.FromPos, o.ToPos, docLen)
		}
	case KindReplace:
		if o.FromPos < 0 || o.FromPos >= o.ToPos || o.ToPos > docLen {
			return fmt.Errorf("%w: replace range %d..%d invalid for document length %d", ErrInvalidRange, o.FromPos, o.ToPos, docLen)
		}
		if o.Content == "" {
			return fmt.Errorf("%w: replace requires content", ErrMissingContent)
		}
	case KindFormat:
		if o.FromPos < 0 || o.FromPos > o.ToPos || o.ToPos > docLen {
			return fmt.Errorf("%w: format range %d..%d invalid for document length %d", ErrInvalidRange, o.FromPos, o.ToPos, docLen)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedType, o.Type)
	}
	return nil
}

// ContentLen 返回操作文本负载的 rune 长度。
func (o Operation) ContentLen() int {
	return len([]rune(o.Content))
}
