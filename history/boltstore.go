package history

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var bucketBoosts = []byte("boosts")

// BoltStore persists boost records in a bbolt database, keyed by child txid.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("history: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("history: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBoosts)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Put stores rec under its child txid.
func (s *BoltStore) Put(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("%w: record", ErrNilParam)
	}
	key := []byte(rec.ChildTxID)

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBoosts)
		if b.Get(key) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateRecord, rec.ChildTxID)
		}
		data, err := encodeGob(rec)
		if err != nil {
			return fmt.Errorf("history: encode record: %w", err)
		}
		if err := b.Put(key, data); err != nil {
			return fmt.Errorf("history: put record: %w", err)
		}
		return nil
	})
}

// Get retrieves a record by child txid.
func (s *BoltStore) Get(childTxID string) (*Record, error) {
	var rec Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketBoosts).Get([]byte(childTxID))
		if data == nil {
			return ErrRecordNotFound
		}
		if err := decodeGob(data, &rec); err != nil {
			return fmt.Errorf("history: decode record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns every record ordered by creation time.
func (s *BoltStore) List() ([]*Record, error) {
	var result []*Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBoosts).ForEach(func(k, v []byte) error {
			var rec Record
			if err := decodeGob(v, &rec); err != nil {
				return fmt.Errorf("history: decode record %s: %w", k, err)
			}
			result = append(result, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortRecords(result)
	return result, nil
}

// Reset drops and recreates the records bucket. A missing bucket is
// simply created.
func (s *BoltStore) Reset() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketBoosts); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("history: delete bucket: %w", err)
		}
		_, err := tx.CreateBucket(bucketBoosts)
		return err
	})
}
