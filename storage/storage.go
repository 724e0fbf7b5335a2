// Package storage provides the persistent key-value collaborator used by
// consensuslog (entries, checkpoints): a thin, bucket-oriented wrapper
// around bbolt. The reputation store does not use it.
package storage

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// DB wraps a bbolt database, exposing just the bucket/get/put/iterate
// operations the rest of the node needs; callers never see *bolt.Tx
// directly.
type DB struct {
	bolt *bolt.DB
}

// Open opens (creating if necessary) a bbolt database at path.
func Open(path string) (*DB, error) {
	b, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	return &DB{bolt: b}, nil
}

// Close releases the underlying file handle.
func (d *DB) Close() error {
	return d.bolt.Close()
}

// Put writes key=value into bucket, creating the bucket if necessary.
func (d *DB) Put(bucket string, key, value []byte) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return fmt.Errorf("storage: create bucket %s: %w", bucket, err)
		}
		return b.Put(key, value)
	})
}

// Get reads key from bucket. Returns (nil, nil) if the key or bucket does
// not exist.
func (d *DB) Get(bucket string, key []byte) ([]byte, error) {
	var out []byte
	err := d.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		v := b.Get(key)
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: get %s/%x: %w", bucket, key, err)
	}
	return out, nil
}

// ForEach iterates every key/value pair in bucket in key order, stopping
// early if fn returns an error.
func (d *DB) ForEach(bucket string, fn func(key, value []byte) error) error {
	return d.bolt.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.ForEach(fn)
	})
}

// Delete removes key from bucket.
func (d *DB) Delete(bucket string, key []byte) error {
	return d.bolt.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.Delete(key)
	})
}
