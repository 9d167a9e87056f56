package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/types"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(DatabaseOptions{Storage: Options{Path: path}})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func structArrayOf(fields map[string]string) *colarray.Array {
	names := make([]string, 0, len(fields))
	children := make([]*colarray.Array, 0, len(fields))
	for k, v := range fields {
		sb := colarray.NewStringBuilder()
		val := v
		sb.Push(&val)
		names = append(names, k)
		children = append(children, sb.Finish())
	}
	return colarray.NewStructArray(names, children, colarray.NewMaskAllValid(1))
}

func TestNodeCreateAndScan(t *testing.T) {
	db := openTestDB(t)
	tx, err := db.Begin(true)
	require.NoError(t, err)

	props := structArrayOf(map[string]string{"name": "Alice"})
	arr, err := tx.NodeCreate([]string{"Person"}, props)
	require.NoError(t, err)
	require.Equal(t, 1, arr.Len())
	require.NoError(t, tx.Commit())

	tx2, err := db.Begin(false)
	require.NoError(t, err)
	var ids []types.NodeId
	require.NoError(t, tx2.NodeScan(10, func(batch []types.NodeId) error {
		ids = append(ids, batch...)
		return nil
	}))
	require.Len(t, ids, 1)
	require.NoError(t, tx2.Rollback())
}

func TestNodeKeyRoundTrip(t *testing.T) {
	id := types.NodeId(12345)
	k := NodeKey(id)
	require.Equal(t, id, DecodeNodeKey(k))
}

func TestRelTopologyKeyRoundTrip(t *testing.T) {
	k := RelTopologyKey(1, DirByteOut, 2, 3, 4)
	dk := DecodeRelTopologyKey(k)
	require.Equal(t, types.NodeId(1), dk.Src)
	require.Equal(t, DirByteOut, dk.Dir)
	require.Equal(t, types.RelTypeId(2), dk.RelType)
	require.Equal(t, types.NodeId(3), dk.Dst)
	require.Equal(t, types.RelationshipId(4), dk.RelID)
}

func TestUniqueConstraintDuplicateRejected(t *testing.T) {
	db := openTestDB(t)

	tx, err := db.Begin(true)
	require.NoError(t, err)
	_, err = tx.NodeCreate([]string{"User"}, structArrayOf(map[string]string{"email": "a@x"}))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx2, err := db.Begin(true)
	require.NoError(t, err)
	err = tx2.CreateConstraint(db.Locks, ConstraintSpec{
		Name: "u1", EntityType: EntityNode, Label: "User", Kind: ConstraintUnique, PropertyKeys: []string{"email"},
	})
	require.NoError(t, err)
	require.NoError(t, tx2.Commit())

	tx3, err := db.Begin(true)
	require.NoError(t, err)
	_, err = tx3.NodeCreate([]string{"User"}, structArrayOf(map[string]string{"email": "a@x"}))
	require.Error(t, err)
	var kerr *types.KindError
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, types.KindConstraint, kerr.Kind)
	require.NoError(t, tx3.Rollback())

	// The index stays live after the rejected create: a fresh duplicate
	// attempt still collides.
	tx4, err := db.Begin(true)
	require.NoError(t, err)
	propID, ok := db.Tokens.GetID(types.TokenPropertyKey, "email")
	require.True(t, ok)
	labelID, ok := db.Tokens.GetID(types.TokenLabel, "User")
	require.True(t, ok)
	_, exists, err := tx4.UniqueIndexExists(labelID, []types.PropertyKeyId{propID}, []types.Value{types.NewString("a@x")})
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, tx4.Rollback())
}

func TestUniqueConstraintAcceptsDistinctValueAndUpdatesIndex(t *testing.T) {
	db := openTestDB(t)

	tx, err := db.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx.CreateConstraint(db.Locks, ConstraintSpec{
		Name: "u1", EntityType: EntityNode, Label: "User", Kind: ConstraintUnique, PropertyKeys: []string{"email"},
	}))
	require.NoError(t, tx.Commit())

	tx2, err := db.Begin(true)
	require.NoError(t, err)
	_, err = tx2.NodeCreate([]string{"User"}, structArrayOf(map[string]string{"email": "a@x"}))
	require.NoError(t, err)
	require.NoError(t, tx2.Commit())

	tx3, err := db.Begin(true)
	require.NoError(t, err)
	propID, ok := db.Tokens.GetID(types.TokenPropertyKey, "email")
	require.True(t, ok)
	labelID, ok := db.Tokens.GetID(types.TokenLabel, "User")
	require.True(t, ok)
	_, exists, err := tx3.UniqueIndexExists(labelID, []types.PropertyKeyId{propID}, []types.Value{types.NewString("a@x")})
	require.NoError(t, err)
	require.True(t, exists)

	_, err = tx3.NodeCreate([]string{"User"}, structArrayOf(map[string]string{"email": "b@x"}))
	require.NoError(t, err)
	_, exists, err = tx3.UniqueIndexExists(labelID, []types.PropertyKeyId{propID}, []types.Value{types.NewString("b@x")})
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, tx3.Rollback())
}

func TestDropConstraintPurgesIndex(t *testing.T) {
	db := openTestDB(t)
	tx, err := db.Begin(true)
	require.NoError(t, err)
	_, err = tx.NodeCreate([]string{"User"}, structArrayOf(map[string]string{"email": "a@x"}))
	require.NoError(t, err)
	require.NoError(t, tx.CreateConstraint(db.Locks, ConstraintSpec{
		Name: "u1", EntityType: EntityNode, Label: "User", Kind: ConstraintUnique, PropertyKeys: []string{"email"},
	}))
	require.NoError(t, tx.Commit())

	tx2, err := db.Begin(true)
	require.NoError(t, err)
	require.NoError(t, tx2.DropConstraint("u1"))
	require.NoError(t, tx2.Commit())

	tx3, err := db.Begin(false)
	require.NoError(t, err)
	labelID, _ := db.Tokens.GetID(types.TokenLabel, "User")
	var count int
	require.NoError(t, tx3.PrefixIter(CFConstraint, UniqueIndexLabelPrefix(labelID), func(k, v []byte) (bool, error) {
		count++
		return true, nil
	}))
	require.Equal(t, 0, count)
	require.NoError(t, tx3.Rollback())
}
