package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/apshuang/ShareDocs/internal/collab"
)

// DocumentOperation 操作流水表结构，gorm 标签只用于建表；
// (document_id, sequence_number) 唯一键保证重复落盘幂等
type DocumentOperation struct {
	ID             uint64    `gorm:"primaryKey"`
	DocumentID     uint64    `gorm:"not null;uniqueIndex:uniq_doc_seq"`
	UserID         uint64    `gorm:"not null;index"`
	OperationType  string    `gorm:"size:16;not null"`
	OperationData  []byte    `gorm:"type:json"`
	SequenceNumber uint64    `gorm:"not null;uniqueIndex:uniq_doc_seq"`
	VersionBefore  uint64    `gorm:"not null"`
	VersionAfter   uint64    `gorm:"not null"`
	Timestamp      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// OperationStore 用原生 SQL 落操作流水，sequence_number 上有唯一键保证幂等
type OperationStore struct{ db *sql.DB }

func NewOperationStore(db *sql.DB) *OperationStore {
	return &OperationStore{db: db}
}

func (s *OperationStore) RecordOperation(ctx context.Context, rec collab.OperationRecord) error {
	data, err := json.Marshal(rec.OperationData)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO document_operations
		(document_id, user_id, operation_type, operation_data, sequence_number, version_before, version_after)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.DocID,
		rec.UserID,
		rec.OperationType,
		data,
		rec.VersionAfter,
		rec.VersionBefore,
		rec.VersionAfter,
	)
	if err != nil {
		// 1062 = duplicate key：同一 (doc, sequence) 重复落盘视为已记录
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return nil
		}
		return err
	}
	return nil
}

type DocumentEditor struct {
	UserID       uint64
	Username     string
	Color        string
	LastEditTime time.Time
}

// ListEditors 返回编辑过该文档的用户及最近编辑时间，按时间倒序
func (s *OperationStore) ListEditors(ctx context.Context, docID uint64) ([]DocumentEditor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT o.user_id, u.username, COALESCE(u.color, ''), MAX(o.timestamp) AS last_edit
		FROM document_operations o
		JOIN users u ON u.id = o.user_id
		WHERE o.document_id = ?
		GROUP BY o.user_id, u.username, u.color
		ORDER BY last_edit DESC`,
		docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var editors []DocumentEditor
	for rows.Next() {
		var e DocumentEditor
		if err := rows.Scan(&e.UserID, &e.Username, &e.Color, &e.LastEditTime); err != nil {
			return nil, err
		}
		if e.Color == "" {
			e.Color = "#FFA07A"
		}
		editors = append(editors, e)
	}
	return editors, rows.Err()
}
