package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type PermissionType string

const (
	PermissionRead  PermissionType = "read"
	PermissionEdit  PermissionType = "edit"
	PermissionAdmin PermissionType = "admin"
)

var permissionLevels = map[PermissionType]int{
	PermissionRead:  1,
	PermissionEdit:  2,
	PermissionAdmin: 3,
}

var ErrShareNotFound = errors.New("share not found")

type ShareStore struct{ db *gorm.DB }

func NewShareStore(db *gorm.DB) *ShareStore {
	return &ShareStore{db: db}
}

// UpsertShare 新建或更新分享；同一 (document, user) 只保留一条记录。
func (s *ShareStore) UpsertShare(ctx context.Context, docID, userID uint64, permission PermissionType, sharedBy uint64) (*DocumentShare, bool, error) {
	var share DocumentShare
	err := s.db.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", docID, userID).
		First(&share).Error
	if err == nil {
		share.Permission = string(permission)
		share.SharedBy = sharedBy
		if err := s.db.WithContext(ctx).Save(&share).Error; err != nil {
			return nil, false, err
		}
		return &share, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	share = DocumentShare{DocumentID: docID, UserID: userID, Permission: string(permission), SharedBy: sharedBy}
	if err := s.db.WithContext(ctx).Create(&share).Error; err != nil {
		return nil, false, err
	}
	return &share, true, nil
}

func (s *ShareStore) ListShares(ctx context.Context, docID uint64) ([]DocumentShare, error) {
	var shares []DocumentShare
	err := s.db.WithContext(ctx).Where("document_id = ?", docID).Find(&shares).Error
	return shares, err
}

func (s *ShareStore) DeleteShare(ctx context.Context, docID, shareID uint64) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND document_id = ?", shareID, docID).
		Delete(&DocumentShare{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrShareNotFound
	}
	return nil
}

// GetUserPermission 返回用户对文档的权限：所有者是 admin，
// 被分享者取分享记录，其余只读（对不可见文档由访问检查兜底）。
func (s *ShareStore) GetUserPermission(ctx context.Context, doc *Document, userID uint64) PermissionType {
	if doc.OwnerID == userID {
		return PermissionAdmin
	}
	var share DocumentShare
	err := s.db.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", doc.ID, userID).
		First(&share).Error
	if err != nil {
		return PermissionRead
	}
	return PermissionType(share.Permission)
}

// HasDocumentAccess 判断用户对文档是否具备所需权限级别。
func (s *ShareStore) HasDocumentAccess(ctx context.Context, doc *Document, userID uint64, required PermissionType) bool {
	if doc.OwnerID == userID {
		return true
	}
	var share DocumentShare
	err := s.db.WithContext(ctx).
		Where("document_id = ? AND user_id = ?", doc.ID, userID).
		First(&share).Error
	if err != nil {
		return false
	}
	return permissionLevels[PermissionType(share.Permission)] >= permissionLevels[required]
}
