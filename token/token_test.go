package token

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boltgraph/boltgraph/types"
)

type fakeKV struct {
	data map[string][]byte
}

func newFakeKV() *fakeKV { return &fakeKV{data: map[string][]byte{}} }

func (f *fakeKV) Get(bucket string, key []byte) ([]byte, error) {
	v, ok := f.data[bucket+"/"+string(key)]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (f *fakeKV) Put(bucket string, key, value []byte) error {
	f.data[bucket+"/"+string(key)] = append([]byte(nil), value...)
	return nil
}

func (f *fakeKV) ForEachPrefix(bucket string, prefix []byte, fn func(k, v []byte) error) error {
	for k, v := range f.data {
		bk := bucket + "/"
		if len(k) < len(bk) || k[:len(bk)] != bk {
			continue
		}
		rawKey := k[len(bk):]
		if len(rawKey) < len(prefix) || string(rawKey[:len(prefix)]) != string(prefix) {
			continue
		}
		if err := fn([]byte(rawKey), v); err != nil {
			return err
		}
	}
	return nil
}

func TestGetOrCreateIdempotent(t *testing.T) {
	kv := newFakeKV()
	s, err := Open(kv, nil)
	require.NoError(t, err)

	id1, err := s.GetOrCreate(types.TokenLabel, "Person")
	require.NoError(t, err)
	id2, err := s.GetOrCreate(types.TokenLabel, "Person")
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	name, err := s.GetName(types.TokenLabel, id1)
	require.NoError(t, err)
	require.Equal(t, "Person", name)
}

func TestReloadPersistsAcrossOpen(t *testing.T) {
	kv := newFakeKV()
	s, err := Open(kv, nil)
	require.NoError(t, err)
	id, err := s.GetOrCreate(types.TokenPropertyKey, "age")
	require.NoError(t, err)

	s2, err := Open(kv, nil)
	require.NoError(t, err)
	got, ok := s2.GetID(types.TokenPropertyKey, "age")
	require.True(t, ok)
	require.Equal(t, id, got)
}

func TestUnknownIDErrors(t *testing.T) {
	kv := newFakeKV()
	s, err := Open(kv, nil)
	require.NoError(t, err)
	_, err = s.GetName(types.TokenLabel, 999)
	require.Error(t, err)
}

func TestNamespacesAreDisjoint(t *testing.T) {
	kv := newFakeKV()
	s, err := Open(kv, nil)
	require.NoError(t, err)
	labelID, err := s.GetOrCreate(types.TokenLabel, "x")
	require.NoError(t, err)
	relID, err := s.GetOrCreate(types.TokenRelType, "x")
	require.NoError(t, err)
	_ = labelID
	_ = relID
	name, err := s.GetName(types.TokenRelType, relID)
	require.NoError(t, err)
	require.Equal(t, "x", name)
}
