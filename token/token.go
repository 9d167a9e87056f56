// Package token implements the interned label / relationship-type /
// property-key dictionary (spec §3/§4.2): a persistent bijection
// (kind, name) <-> TokenId, loaded fully into memory on open.
package token

import (
	"encoding/binary"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/boltgraph/boltgraph/types"
)

// KV is the minimal persistence surface the token store needs; storage.Engine
// satisfies it. Keeping it this small lets the store be unit tested against
// an in-memory fake without pulling in bbolt.
type KV interface {
	Get(bucket string, key []byte) ([]byte, error)
	Put(bucket string, key, value []byte) error
	ForEachPrefix(bucket string, prefix []byte, fn func(k, v []byte) error) error
}

const MetaBucket = "meta"

// cacheSize bounds the LRU front-cache; the full bijection always lives in
// the plain maps below, the LRU only avoids repeated map probes on the hot
// path for very wide schemas (spec §4.2 "thread-safe ... caches").
const cacheSize = 4096

type forwardKey struct {
	kind types.TokenKind
	name string
}

// Store is the in-process token dictionary. One Store is owned for the
// lifetime of the database (spec §4.2).
type Store struct {
	kv  KV
	log *zap.SugaredLogger

	mu      sync.RWMutex
	forward map[forwardKey]types.TokenId
	reverse map[types.TokenKind]map[types.TokenId]string
	next    [3]types.TokenId // per-kind next id to allocate

	cache *lru.Cache[forwardKey, types.TokenId]
}

// Open loads the full dictionary from kv into memory.
func Open(kv KV, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Store{
		kv:      kv,
		log:     log,
		forward: make(map[forwardKey]types.TokenId),
		reverse: map[types.TokenKind]map[types.TokenId]string{
			types.TokenLabel:       {},
			types.TokenRelType:     {},
			types.TokenPropertyKey: {},
		},
	}
	c, err := lru.New[forwardKey, types.TokenId](cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "token: allocate LRU cache")
	}
	s.cache = c

	for kind := types.TokenKind(0); kind < 3; kind++ {
		prefix := []byte{byte(kind)}
		err := kv.ForEachPrefix(MetaBucket, prefix, func(k, v []byte) error {
			name := string(k[1:])
			id := types.TokenId(binary.LittleEndian.Uint16(v))
			s.forward[forwardKey{kind, name}] = id
			s.reverse[kind][id] = name
			if id+1 > s.next[kind] {
				s.next[kind] = id + 1
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "token: load kind %s", kind)
		}
	}
	log.Debugw("token store loaded", "labels", len(s.reverse[types.TokenLabel]),
		"relTypes", len(s.reverse[types.TokenRelType]), "propKeys", len(s.reverse[types.TokenPropertyKey]))
	return s, nil
}

// GetID looks up an existing id without creating one.
func (s *Store) GetID(kind types.TokenKind, name string) (types.TokenId, bool) {
	fk := forwardKey{kind, name}
	if id, ok := s.cache.Get(fk); ok {
		return id, true
	}
	s.mu.RLock()
	id, ok := s.forward[fk]
	s.mu.RUnlock()
	if ok {
		s.cache.Add(fk, id)
	}
	return id, ok
}

// GetOrCreate returns the existing id for (kind, name), or allocates and
// durably persists a new one. The new mapping is written to disk before
// the call returns, so readers never observe an id that isn't on disk yet
// (spec §4.2).
func (s *Store) GetOrCreate(kind types.TokenKind, name string) (types.TokenId, error) {
	if id, ok := s.GetID(kind, name); ok {
		return id, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fk := forwardKey{kind, name}
	if id, ok := s.forward[fk]; ok {
		return id, nil
	}

	id := s.next[kind]
	key := make([]byte, 1+len(name))
	key[0] = byte(kind)
	copy(key[1:], name)
	val := make([]byte, 2)
	binary.LittleEndian.PutUint16(val, uint16(id))

	if err := s.kv.Put(MetaBucket, key, val); err != nil {
		return 0, errors.Wrapf(types.WrapError(types.KindToken, "get_or_create", fmt.Sprintf("persist %s/%s", kind, name), err), "token")
	}

	s.forward[fk] = id
	s.reverse[kind][id] = name
	s.next[kind] = id + 1
	s.cache.Add(fk, id)
	return id, nil
}

// GetName resolves id back to its name. Returns an error for an unknown id
// (spec §7 "Token: reverse lookup on unknown id").
func (s *Store) GetName(kind types.TokenKind, id types.TokenId) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.reverse[kind][id]
	if !ok {
		return "", types.NewError(types.KindToken, "get_name", fmt.Sprintf("unknown %s id %d", kind, id))
	}
	return name, nil
}
