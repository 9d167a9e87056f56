package storage

import (
	"bytes"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/boltgraph/boltgraph/types"
)

// Transaction wraps a bbolt transaction with the read/write surface spec
// §4.4 describes. Reads observe the consistent snapshot bbolt took at
// Begin; writes are visible to this transaction immediately but to no
// other reader until Commit.
type Transaction struct {
	engine   *Engine
	tx       *bolt.Tx
	writable bool
	done     bool
}

func (t *Transaction) bucket(cf string) *bolt.Bucket { return t.tx.Bucket([]byte(cf)) }

func (t *Transaction) Get(cf string, key []byte) ([]byte, error) {
	v := t.bucket(cf).Get(key)
	if v == nil {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (t *Transaction) Put(cf string, key, value []byte) error {
	if !t.writable {
		return types.NewError(types.KindStorage, "put", "write on a read-only transaction")
	}
	return t.bucket(cf).Put(key, value)
}

func (t *Transaction) Delete(cf string, key []byte) error {
	if !t.writable {
		return types.NewError(types.KindStorage, "delete", "write on a read-only transaction")
	}
	return t.bucket(cf).Delete(key)
}

// PrefixIter calls fn for every key in cf starting with prefix, in key
// order, until fn returns false or the iteration is exhausted.
func (t *Transaction) PrefixIter(cf string, prefix []byte, fn func(k, v []byte) (more bool, err error)) error {
	c := t.bucket(cf).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		more, err := fn(k, v)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

// Commit atomically publishes every buffered write (spec §4.4). Commit
// returning an error means no writes became visible (spec §8 "commits are
// atomic: all writes visible or none").
func (t *Transaction) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return types.WrapError(types.KindStorage, "commit", "transaction conflict or I/O failure", err)
	}
	return nil
}

// Rollback discards the pending batch. Safe to call after a failed
// Commit or on an early-return error path; a no-op once the transaction
// is already done.
func (t *Transaction) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return errors.Wrap(t.tx.Rollback(), "storage: rollback")
}
