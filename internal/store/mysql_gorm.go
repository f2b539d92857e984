package store

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func InitMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	// users 和 document_operations 的读写走原生 SQL，建表也在这里统一做
	if err := db.AutoMigrate(&Document{}, &DocumentShare{}, &User{}, &DocumentOperation{}); err != nil {
		return nil, err
	}
	return db, nil
}

type Document struct {
	ID             uint64    `gorm:"primaryKey"`
	Title          string    `gorm:"size:255;not null"`
	OwnerID        uint64    `gorm:"index;not null"`
	ContentPath    string    `gorm:"size:500"`
	CurrentVersion uint64    `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

type DocumentShare struct {
	ID         uint64 `gorm:"primaryKey"`
	DocumentID uint64 `gorm:"not null;uniqueIndex:uniq_doc_user"`
	UserID     uint64 `gorm:"not null;uniqueIndex:uniq_doc_user;index"`
	Permission string `gorm:"size:16;not null"`
	SharedBy   uint64 `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
