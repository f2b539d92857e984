package collab

import "github.com/apshuang/ShareDocs/internal/op"

// Buffer 抽象文档内容缓冲区
type Buffer interface {
	Len() int
	Apply(o op.Operation) error
	String() string
}
