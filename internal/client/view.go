package client

import (
	"sync"

	"github.com/apshuang/ShareDocs/internal/op"
)

// DocumentView 客户端侧的文档镜像：正文、版本号和各协作者光标。
// 远端操作按到达顺序应用，应用后所有光标按同一规则重映射。
type DocumentView struct {
	mu       sync.Mutex
	content  string
	revision uint64
	cursors  map[uint64]int
}

func NewDocumentView(content string, revision uint64) *DocumentView {
	return &DocumentView{content: content, revision: revision, cursors: make(map[uint64]int)}
}

func (v *DocumentView) Content() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.content
}

func (v *DocumentView) Revision() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.revision
}

// SetCursor 记录一个协作者的光标位置
func (v *DocumentView) SetCursor(userID uint64, pos int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cursors[userID] = pos
}

func (v *DocumentView) Cursor(userID uint64) (int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	pos, ok := v.cursors[userID]
	return pos, ok
}

func (v *DocumentView) RemoveCursor(userID uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.cursors, userID)
}

// ApplyRemote 应用一条已被服务端接受的操作并更新版本号，
// 然后重映射所有已知光标。
func (v *DocumentView) ApplyRemote(o op.Operation, version uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	next, err := op.Apply(v.content, o)
	if err != nil {
		return err
	}
	v.content = next
	v.revision = version
	for userID, pos := range v.cursors {
		v.cursors[userID] = op.Remap(pos, o)
	}
	return nil
}

// Reset 用服务端的权威内容整体替换本地镜像。
// 提交被 409 拒绝后走这里重新同步，光标全部失效。
func (v *DocumentView) Reset(content string, revision uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.content = content
	v.revision = revision
	v.cursors = make(map[uint64]int)
}
