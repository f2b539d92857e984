package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrDocumentNotFound = errors.New("document not found")

type DocumentStore struct{ db *gorm.DB }

func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) CreateDocument(ctx context.Context, ownerID uint64, title string) (*Document, error) {
	doc := &Document{Title: title, OwnerID: ownerID, CurrentVersion: 0}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentStore) GetDocument(ctx context.Context, docID uint64) (*Document, error) {
	var doc Document
	err := s.db.WithContext(ctx).First(&doc, docID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments 返回用户拥有或被分享的文档，按更新时间倒序分页；search 匹配标题。
func (s *DocumentStore) ListDocuments(ctx context.Context, userID uint64, page, pageSize int, search string) ([]Document, int64, error) {
	shared := s.db.Model(&DocumentShare{}).Select("document_id").Where("user_id = ?", userID)
	q := s.db.WithContext(ctx).Model(&Document{}).
		Where("owner_id = ? OR id IN (?)", userID, shared)
	if search != "" {
		q = q.Where("title LIKE ?", "%"+search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var docs []Document
	err := q.Order("updated_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

func (s *DocumentStore) UpdateTitle(ctx context.Context, docID uint64, title string) error {
	res := s.db.WithContext(ctx).Model(&Document{}).Where("id = ?", docID).Update("title", title)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (s *DocumentStore) DeleteDocument(ctx context.Context, docID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", docID).Delete(&DocumentShare{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Document{}, docID).Error
	})
}

// GetVersion / SetVersion 实现 collab.DocumentMetaStore

func (s *DocumentStore) GetVersion(ctx context.Context, docID uint64) (uint64, error) {
	doc, err := s.GetDocument(ctx, docID)
	if err != nil {
		return 0, err
	}
	return doc.CurrentVersion, nil
}

func (s *DocumentStore) SetVersion(ctx context.Context, docID uint64, version uint64) error {
	return s.db.WithContext(ctx).Model(&Document{}).Where("id = ?", docID).
		Update("current_version", version).Error
}
