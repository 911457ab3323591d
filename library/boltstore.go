package library

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	bolt "go.etcd.io/bbolt"
)

// BoltStore is a Backend keeping one bucket per collection, keyed by big-endian position.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) the bbolt file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create bolt dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

func (s *BoltStore) Load(collection string) ([]jsoniter.RawMessage, error) {
	var records []jsoniter.RawMessage
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return ErrCollectionMissing
		}
		return b.ForEach(func(k, v []byte) error {
			if !jsoniter.Valid(v) {
				return fmt.Errorf("%w: %s key %x", ErrCorrupt, collection, k)
			}
			// v is only valid for the life of the transaction.
			rec := make(jsoniter.RawMessage, len(v))
			copy(rec, v)
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Save drops and rebuilds the collection bucket in one transaction.
func (s *BoltStore) Save(collection string, records []jsoniter.RawMessage) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		name := []byte(collection)
		if tx.Bucket(name) != nil {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(name)
		if err != nil {
			return err
		}
		for i, rec := range records {
			if err := b.Put(positionKey(i), rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func positionKey(i int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(i))
	return key
}
