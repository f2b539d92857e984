package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileContentStore 把文档正文按 <id>.md 存在本地目录，版本号等元信息在数据库
type FileContentStore struct {
	dir string
}

func NewFileContentStore(dir string) (*FileContentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileContentStore{dir: dir}, nil
}

func (s *FileContentStore) path(docID uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.md", docID))
}

func (s *FileContentStore) ReadContent(docID uint64) (string, error) {
	b, err := os.ReadFile(s.path(docID))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *FileContentStore) WriteContent(docID uint64, content string) error {
	return os.WriteFile(s.path(docID), []byte(content), 0o644)
}

func (s *FileContentStore) RemoveContent(docID uint64) error {
	err := os.Remove(s.path(docID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
