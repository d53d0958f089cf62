package cache

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const boltHeaderLen = 8

var defaultBucket = []byte("results")

// BoltStore is a Store persisted in a bbolt file, so warm entries survive
// a restart. Each value is stored as an 8-byte big-endian expiry (unix
// nanoseconds) followed by the payload.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time
}

// BoltOptions configures OpenBolt.
type BoltOptions struct {
	// Bucket names the bbolt bucket. Default: "results".
	Bucket string

	// OpenTimeout bounds waiting for the file lock. Default: 1 second.
	OpenTimeout time.Duration
}

// OpenBolt opens or creates the store at path.
func OpenBolt(path string, opts BoltOptions) (*BoltStore, error) {
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = time.Second
	}
	bucket := defaultBucket
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: opts.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: create bucket: %w", err)
	}
	return &BoltStore{db: db, bucket: bucket, now: time.Now}, nil
}

func (s *BoltStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	var (
		out            []byte
		found, expired bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		if s.expired(v) {
			expired = true
			return nil
		}
		out = append([]byte{}, v[boltHeaderLen:]...)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, s.wrap(err)
	}
	if expired {
		_ = s.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(s.bucket)
			if v := b.Get([]byte(key)); v != nil && s.expired(v) {
				return b.Delete([]byte(key))
			}
			return nil
		})
		return nil, false, nil
	}
	return out, found, nil
}

func (s *BoltStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	buf := make([]byte, boltHeaderLen+len(value))
	binary.BigEndian.PutUint64(buf[:boltHeaderLen], uint64(s.now().Add(ttl).UnixNano()))
	copy(buf[boltHeaderLen:], value)

	return s.wrap(s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), buf)
	}))
}

func (s *BoltStore) Delete(_ context.Context, key string) error {
	return s.wrap(s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	}))
}

// DeletePrefix removes every key with the given prefix. Keys are sorted in
// bbolt, so the scan seeks to prefix and stops at the first non-match.
func (s *BoltStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	n := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		p := []byte(prefix)

		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(keys)
		return nil
	})
	if err != nil {
		return 0, s.wrap(err)
	}
	return n, nil
}

// Sweep removes expired entries and reports how many were removed.
func (s *BoltStore) Sweep() (int, error) {
	n := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var keys [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			if s.expired(v) {
				keys = append(keys, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = len(keys)
		return nil
	})
	return n, s.wrap(err)
}

// Close closes the underlying database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) expired(v []byte) bool {
	if len(v) < boltHeaderLen {
		return true
	}
	expiresAt := int64(binary.BigEndian.Uint64(v[:boltHeaderLen]))
	return s.now().UnixNano() >= expiresAt
}

func (s *BoltStore) wrap(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrStoreClosed
	}
	return err
}

var _ Store = (*BoltStore)(nil)
