package storage

import (
	"bytes"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// Engine owns the bbolt database handle. It implements the small KV
// surfaces token.KV and idalloc.KV need directly (single-shot put/get
// outside of an explicit graph Transaction are used only by those two
// subsystems), and it is the factory for graph-level Transactions.
type Engine struct {
	db *bolt.DB
}

// Options configures Open (spec's ambient "Configuration" stack: a typed
// options struct instead of an external config file, matching the
// teacher's engine-open functions).
type Options struct {
	// Path to the .db directory's single bbolt file (spec §6 "a single
	// .db directory").
	Path string
	// ReadOnly opens the database without allowing writers.
	ReadOnly bool
	// NoSync disables the fsync bbolt normally performs on commit; tests
	// that don't care about durability can set this for speed.
	NoSync bool
}

func OpenEngine(opts Options) (*Engine, error) {
	db, err := bolt.Open(opts.Path, 0600, &bolt.Options{ReadOnly: opts.ReadOnly})
	if err != nil {
		return nil, errors.Wrap(err, "storage: open bbolt")
	}
	db.NoSync = opts.NoSync

	if !opts.ReadOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			for _, b := range allBuckets {
				if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			db.Close()
			return nil, errors.Wrap(err, "storage: create buckets")
		}
	}
	return &Engine{db: db}, nil
}

func (e *Engine) Close() error { return e.db.Close() }

// --- token.KV ---

func (e *Engine) Get(bucket string, key []byte) ([]byte, error) {
	var out []byte
	err := e.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucket)).Get(key)
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

func (e *Engine) Put(bucket string, key, value []byte) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put(key, value)
	})
}

// PutSync forces a synchronous flush of this single write (idalloc.KV):
// bbolt already fsyncs every Update transaction unless NoSync is set, so
// this simply reuses Put — the durable commit is the point, matching
// spec §4.3's "persist watermark + BATCH with durable write".
func (e *Engine) PutSync(bucket string, key, value []byte) error {
	return e.Put(bucket, key, value)
}

func (e *Engine) ForEachPrefix(bucket string, prefix []byte, fn func(k, v []byte) error) error {
	return e.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucket)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- Transaction factory ---

// Begin starts a snapshot-isolated transaction (spec §4.4). Write
// transactions take bbolt's single global writer lock, matching spec
// §5's "write transactions are serializable at commit time via the KV's
// own conflict detection" (bbolt serializes writers, so "conflict" here
// degrades to simple mutual exclusion rather than optimistic
// write-write detection — acceptable because the opaque-KV contract in
// spec §3 only requires *some* conflict signal at commit, not a specific
// algorithm).
func (e *Engine) Begin(writable bool) (*Transaction, error) {
	tx, err := e.db.Begin(writable)
	if err != nil {
		return nil, errors.Wrap(err, "storage: begin transaction")
	}
	return &Transaction{engine: e, tx: tx, writable: writable}, nil
}
