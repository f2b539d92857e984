package client

import (
	"encoding/json"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"
)

var authBucket = []byte("auth")

var ErrNoCredentials = errors.New("no stored credentials")

// LocalState 客户端本地状态，bbolt 单文件存储登录凭证
type LocalState struct {
	db *bolt.DB
}

func OpenLocalState(path string) (*LocalState, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(authBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &LocalState{db: db}, nil
}

func (s *LocalState) Close() error { return s.db.Close() }

func (s *LocalState) SaveCredentials(accessToken, refreshToken string, user json.RawMessage) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(authBucket)
		if err := b.Put([]byte("access_token"), []byte(accessToken)); err != nil {
			return err
		}
		if err := b.Put([]byte("refresh_token"), []byte(refreshToken)); err != nil {
			return err
		}
		if len(user) > 0 {
			return b.Put([]byte("user"), user)
		}
		return nil
	})
}

func (s *LocalState) AccessToken() (string, error) {
	var token string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(authBucket).Get([]byte("access_token"))
		if len(v) == 0 {
			return ErrNoCredentials
		}
		token = string(v)
		return nil
	})
	return token, err
}

func (s *LocalState) RefreshToken() (string, error) {
	var token string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(authBucket).Get([]byte("refresh_token"))
		if len(v) == 0 {
			return ErrNoCredentials
		}
		token = string(v)
		return nil
	})
	return token, err
}

func (s *LocalState) User(out any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(authBucket).Get([]byte("user"))
		if len(v) == 0 {
			return ErrNoCredentials
		}
		return json.Unmarshal(v, out)
	})
}

func (s *LocalState) ClearCredentials() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(authBucket)
		for _, key := range [][]byte{[]byte("access_token"), []byte("refresh_token"), []byte("user")} {
			if err := b.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
