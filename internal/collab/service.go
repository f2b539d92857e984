package collab

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apshuang/ShareDocs/internal/op"
)

// Service 协作引擎接口：版本门控的提交入口与文档状态读取
type Service interface {
	// Submit 提交一个操作；只有 base_version 与当前版本一致才会被接受。
	// 接受后应用到缓冲区、版本+1、落库并投递事件。
	Submit(ctx context.Context, docID uint64, authorID uint64, o op.Operation) (AppliedOp, error)

	CurrentRevision(ctx context.Context, docID uint64) (uint64, error)

	LoadDocument(ctx context.Context, docID uint64) (content string, revision uint64, err error)
}

// ContentStore 文档正文存储（按文档一个文件）
type ContentStore interface {
	ReadContent(docID uint64) (string, error)
	WriteContent(docID uint64, content string) error
}

// DocumentMetaStore 文档元信息（版本号等）
type DocumentMetaStore interface {
	GetVersion(ctx context.Context, docID uint64) (uint64, error)
	SetVersion(ctx context.Context, docID uint64, version uint64) error
}

// OperationLog 已应用操作的持久化记录
type OperationLog interface {
	RecordOperation(ctx context.Context, rec OperationRecord) error
}

type OperationRecord struct {
	DocID         uint64
	UserID        uint64
	OperationType string
	OperationData op.Operation
	VersionBefore uint64
	VersionAfter  uint64
}

type AppliedOp struct {
	OperationID string // 本次操作的唯一ID（幂等/追踪）
	DocID       uint64
	Revision    uint64 // 应用后的版本号
	AuthorID    uint64
	Operation   op.Operation
	AppliedAt   time.Time
}

var (
	ErrVersionConflict  = errors.New("VERSION_CONFLICT")
	ErrDocumentNotFound = errors.New("DOCUMENT_NOT_FOUND")
)

type docState struct {
	mu       sync.Mutex
	revision uint64
	buf      Buffer
}

// DocService 持有所有在编文档的内存状态，冷文档按需从存储加载
type DocService struct {
	mu   sync.RWMutex
	docs map[uint64]*docState

	contents   ContentStore
	meta       DocumentMetaStore
	oplog      OperationLog
	dispatcher *KafkaDispatcher
}

func NewDocService(contents ContentStore, meta DocumentMetaStore, oplog OperationLog, dispatcher *KafkaDispatcher) *DocService {
	return &DocService{
		docs:       make(map[uint64]*docState),
		contents:   contents,
		meta:       meta,
		oplog:      oplog,
		dispatcher: dispatcher,
	}
}

func (s *DocService) getOrLoadDoc(ctx context.Context, docID uint64) (*docState, error) {
	s.mu.RLock()
	ds := s.docs[docID]
	s.mu.RUnlock()
	if ds != nil {
		return ds, nil
	}

	version, err := s.meta.GetVersion(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("%w: doc %d: %v", ErrDocumentNotFound, docID, err)
	}
	content, err := s.contents.ReadContent(docID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ds = s.docs[docID]; ds == nil {
		ds = &docState{revision: version, buf: NewPieceTable(content)}
		s.docs[docID] = ds
	}
	return ds, nil
}

func (s *DocService) Submit(ctx context.Context, docID uint64, authorID uint64, o op.Operation) (AppliedOp, error) {
	ds, err := s.getOrLoadDoc(ctx, docID)
	if err != nil {
		return AppliedOp{}, err
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	// 版本门控：不一致直接拒绝，不做并发变换
	if o.BaseVersion != ds.revision {
		return AppliedOp{}, fmt.Errorf("%w: operation base %d, current %d", ErrVersionConflict, o.BaseVersion, ds.revision)
	}

	if err := ds.buf.Apply(o); err != nil {
		return AppliedOp{}, err
	}

	versionBefore := ds.revision
	ds.revision++

	applied := AppliedOp{
		OperationID: uuid.NewString(),
		DocID:       docID,
		Revision:    ds.revision,
		AuthorID:    authorID,
		Operation:   o,
		AppliedAt:   time.Now(),
	}

	if s.contents != nil {
		if err := s.contents.WriteContent(docID, ds.buf.String()); err != nil {
			return AppliedOp{}, err
		}
	}
	if s.meta != nil {
		if err := s.meta.SetVersion(ctx, docID, ds.revision); err != nil {
			return AppliedOp{}, err
		}
	}
	if s.oplog != nil {
		if err := s.oplog.RecordOperation(ctx, OperationRecord{
			DocID:         docID,
			UserID:        authorID,
			OperationType: string(o.Type),
			OperationData: o,
			VersionBefore: versionBefore,
			VersionAfter:  ds.revision,
		}); err != nil {
			return AppliedOp{}, err
		}
	}

	// Kafka 事件尽力而为，不阻塞提交链路
	if s.dispatcher != nil {
		evt := DocOpEvent{
			EventType:   "OP_APPLIED",
			DocID:       docID,
			OperationID: applied.OperationID,
			Revision:    applied.Revision,
			AuthorID:    authorID,
			BaseVersion: o.BaseVersion,
			Operation:   o,
			AppliedAt:   applied.AppliedAt,
		}
		_ = s.dispatcher.Enqueue(ctx, evt)
	}

	return applied, nil
}

func (s *DocService) CurrentRevision(ctx context.Context, docID uint64) (uint64, error) {
	ds, err := s.getOrLoadDoc(ctx, docID)
	if err != nil {
		return 0, err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.revision, nil
}

func (s *DocService) LoadDocument(ctx context.Context, docID uint64) (string, uint64, error) {
	ds, err := s.getOrLoadDoc(ctx, docID)
	if err != nil {
		return "", 0, err
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.buf.String(), ds.revision, nil
}

// Forget 从内存丢弃一个文档的状态（删除文档时调用）
func (s *DocService) Forget(docID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, docID)
}
