// Package bolt implements the repository interfaces on bbolt, an embedded
// key-value store.
//
// BUCKETS:
//
//	users            id → user record (JSON)
//	users_by_name    lower(username) → id
//	users_by_email   lower(email) → id
//	users_by_github  decimal github id → id
//	cycles           user id → nested bucket: big-endian cycle number → cycle record
//	cycle_owners     cycle id → {user id, number}
//
// A cycle and its 30 slots are one value, so every write to it is a single
// Put inside a single read-write transaction. bbolt allows one writer at a
// time, which gives the same "highest number wins once" guarantee the sqlite
// UNIQUE constraint gives.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/sakif/foodtrack/internal/repository"
)

var (
	bucketUsers       = []byte("users")
	bucketUsersByName = []byte("users_by_name")
	bucketUsersByMail = []byte("users_by_email")
	bucketUsersByGH   = []byte("users_by_github")
	bucketCycles      = []byte("cycles")
	bucketCycleOwners = []byte("cycle_owners")
)

var allBuckets = [][]byte{
	bucketUsers,
	bucketUsersByName,
	bucketUsersByMail,
	bucketUsersByGH,
	bucketCycles,
	bucketCycleOwners,
}

var _ repository.Store = (*DB)(nil)

// DB wraps an open bbolt file.
type DB struct {
	db     *bbolt.DB
	logger *slog.Logger
}

// New opens (or creates) the bolt file at path and makes sure every
// top-level bucket exists.
func New(path string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("bolt: creating directory %s: %w", dir, err)
		}
	}

	// Timeout stops a second process from blocking forever on the file lock.
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: opening %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: %w", err)
	}

	logger.Info("bolt store opened", "path", path)
	return &DB{db: db, logger: logger}, nil
}

// Close releases the file lock.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping reports whether the file is still open. bbolt has no connection to
// check, so a short read transaction stands in for one.
func (d *DB) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.db.View(func(tx *bbolt.Tx) error { return nil })
}

func (d *DB) Users() repository.UserRepository {
	return &UserDB{db: d.db}
}

func (d *DB) Cycles() repository.CycleRepository {
	return &CycleDB{db: d.db}
}

// update runs fn in a read-write transaction unless ctx is already done.
// bbolt itself does not take a context.
func update(ctx context.Context, db *bbolt.DB, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.Update(fn)
}

func view(ctx context.Context, db *bbolt.DB, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.View(fn)
}

// numberKey encodes a cycle number so byte order equals numeric order.
func numberKey(n int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(n))
	return key
}

func putJSON(b *bbolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return b.Put(key, data)
}
