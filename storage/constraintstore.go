package storage

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/boltgraph/boltgraph/propmap"
	"github.com/boltgraph/boltgraph/token"
	"github.com/boltgraph/boltgraph/types"
)

// LabelLocks is the coarse-grained "mutex per label_id in a shared map"
// from spec §4.5/§5, serializing constraint creation against data writes
// on the same label.
type LabelLocks struct {
	mu    sync.Mutex
	locks map[types.LabelId]*sync.Mutex
}

func NewLabelLocks() *LabelLocks {
	return &LabelLocks{locks: make(map[types.LabelId]*sync.Mutex)}
}

func (l *LabelLocks) Lock(label types.LabelId) func() {
	l.mu.Lock()
	m, ok := l.locks[label]
	if !ok {
		m = &sync.Mutex{}
		l.locks[label] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// ConstraintSpec is the caller-facing request to CreateConstraint.
type ConstraintSpec struct {
	Name         string
	EntityType   EntityType
	Label        string
	Kind         ConstraintKind
	PropertyKeys []string
	IfNotExists  bool
}

// CreateConstraint implements spec §4.5 create_constraint. The whole
// operation (index build + metadata persist) happens inside txn and is
// committed by the caller; txn must be a fresh write Transaction wrapped
// as a GraphTxn.
func (g *GraphTxn) CreateConstraint(locks *LabelLocks, spec ConstraintSpec) error {
	nameKey := ConstraintNameKey(spec.Name)
	if existing, err := g.Get(CFConstraint, nameKey); err != nil {
		return errors.Wrap(err, "create_constraint: lookup by name")
	} else if existing != nil {
		if spec.IfNotExists {
			return nil
		}
		return types.NewError(types.KindConstraint, "create_constraint", "constraint "+spec.Name+" already exists")
	}

	labelID, err := g.tokens.GetOrCreate(types.TokenLabel, spec.Label)
	if err != nil {
		return errors.Wrap(err, "create_constraint: intern label")
	}
	propIDs := make([]types.PropertyKeyId, len(spec.PropertyKeys))
	for i, p := range spec.PropertyKeys {
		id, err := g.tokens.GetOrCreate(types.TokenPropertyKey, p)
		if err != nil {
			return errors.Wrap(err, "create_constraint: intern property key")
		}
		propIDs[i] = id
	}

	unlock := locks.Lock(labelID)
	defer unlock()

	if spec.Kind == ConstraintUnique || spec.Kind == ConstraintNodeKey {
		if err := g.buildUniqueIndex(labelID, propIDs, spec.Kind == ConstraintNodeKey); err != nil {
			return err
		}
	}

	desc := Descriptor{Name: spec.Name, EntityType: spec.EntityType, LabelID: labelID, Kind: spec.Kind, PropKeyIDs: propIDs}
	encoded := EncodeDescriptor(desc)
	if err := g.Put(CFConstraint, nameKey, encoded); err != nil {
		return errors.Wrap(err, "create_constraint: persist by_name")
	}
	if err := g.Put(CFConstraint, ConstraintLabelKey(labelID, spec.Name), encoded); err != nil {
		return errors.Wrap(err, "create_constraint: persist by_label")
	}
	return nil
}

// buildUniqueIndex scans every node, filters by label, encodes the
// constraint-key bytes from the chosen properties, detects duplicates
// in-memory, and writes unique-index entries (spec §4.5 step 4). For
// NODE KEY, a missing or null property is a violation.
func (g *GraphTxn) buildUniqueIndex(label types.LabelId, propIDs []types.PropertyKeyId, nodeKey bool) error {
	seen := make(map[string]types.NodeId)

	return g.PrefixIter(CFProperty, []byte{NodePrefix}, func(k, v []byte) (bool, error) {
		nodeID := DecodeNodeKey(k)
		nv := DecodeNodeValue(v)
		if !hasLabel(nv.Labels, label) {
			return true, nil
		}
		m := propmap.Open(nv.PropBlob)
		values := make([]types.Value, len(propIDs))
		for i, pid := range propIDs {
			val, ok := m.Get(pid)
			if !ok || val.IsNull() {
				if nodeKey {
					return false, types.NewError(types.KindConstraint, "create_constraint",
						"NODE KEY: node is missing a required property")
				}
				return true, nil // UNIQUE constraints simply skip nodes missing the property
			}
			values[i] = val
		}
		keyBytes, err := propmap.EncodeComposite(propIDs, values)
		if err != nil {
			return false, err
		}
		if existing, ok := seen[string(keyBytes)]; ok && existing != nodeID {
			return false, types.NewError(types.KindConstraint, "create_constraint",
				"duplicate value violates uniqueness")
		}
		seen[string(keyBytes)] = nodeID
		if err := g.Put(CFConstraint, UniqueIndexKey(label, keyBytes), encodeNodeID(nodeID)); err != nil {
			return false, err
		}
		return true, nil
	})
}

func hasLabel(labels []types.LabelId, want types.LabelId) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}

func encodeNodeID(id types.NodeId) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(id >> (8 * i))
	}
	return b
}

func decodeNodeID(b []byte) types.NodeId {
	var id uint64
	for i := 0; i < 8; i++ {
		id |= uint64(b[i]) << (8 * i)
	}
	return types.NodeId(id)
}

// DropConstraint deletes the constraint's by_name/by_label metadata and
// purges its unique-index entries via a prefix scan (spec §9, resolving
// the "DROP CONSTRAINT doesn't purge indexes" open question as required).
func (g *GraphTxn) DropConstraint(name string) error {
	nameKey := ConstraintNameKey(name)
	raw, err := g.Get(CFConstraint, nameKey)
	if err != nil {
		return err
	}
	if raw == nil {
		return types.NewError(types.KindConstraint, "drop_constraint", "constraint "+name+" not found")
	}
	desc := DecodeDescriptor(raw)

	if desc.Kind == ConstraintUnique || desc.Kind == ConstraintNodeKey {
		var toDelete [][]byte
		err := g.PrefixIter(CFConstraint, UniqueIndexLabelPrefix(desc.LabelID), func(k, v []byte) (bool, error) {
			toDelete = append(toDelete, append([]byte(nil), k...))
			return true, nil
		})
		if err != nil {
			return err
		}
		for _, k := range toDelete {
			if err := g.Delete(CFConstraint, k); err != nil {
				return err
			}
		}
	}

	if err := g.Delete(CFConstraint, nameKey); err != nil {
		return err
	}
	return g.Delete(CFConstraint, ConstraintLabelKey(desc.LabelID, name))
}

// UniqueIndexExists resolves whether a node with (label, prop=value...)
// currently exists (spec §4.4 unique_index_exists / spec §8 invariant).
func (g *GraphTxn) UniqueIndexExists(label types.LabelId, propIDs []types.PropertyKeyId, values []types.Value) (types.NodeId, bool, error) {
	keyBytes, err := propmap.EncodeComposite(propIDs, values)
	if err != nil {
		return 0, false, err
	}
	v, err := g.Get(CFConstraint, UniqueIndexKey(label, keyBytes))
	if err != nil {
		return 0, false, err
	}
	if v == nil {
		return 0, false, nil
	}
	return decodeNodeID(v), true, nil
}

func (g *GraphTxn) PutUniqueIndex(label types.LabelId, propIDs []types.PropertyKeyId, values []types.Value, node types.NodeId) error {
	keyBytes, err := propmap.EncodeComposite(propIDs, values)
	if err != nil {
		return err
	}
	return g.Put(CFConstraint, UniqueIndexKey(label, keyBytes), encodeNodeID(node))
}

func (g *GraphTxn) DeleteUniqueIndex(label types.LabelId, propIDs []types.PropertyKeyId, values []types.Value) error {
	keyBytes, err := propmap.EncodeComposite(propIDs, values)
	if err != nil {
		return err
	}
	return g.Delete(CFConstraint, UniqueIndexKey(label, keyBytes))
}

// ListConstraintsForLabel is the by_label single-prefix scan (spec §3
// "both get-by-name and list-constraints-for-label are single-prefix
// scans").
func (g *GraphTxn) ListConstraintsForLabel(label types.LabelId) ([]Descriptor, error) {
	var out []Descriptor
	err := g.PrefixIter(CFConstraint, ConstraintLabelPrefix(label), func(k, v []byte) (bool, error) {
		out = append(out, DecodeDescriptor(v))
		return true, nil
	})
	return out, err
}

func (g *GraphTxn) GetConstraintByName(name string) (Descriptor, bool, error) {
	v, err := g.Get(CFConstraint, ConstraintNameKey(name))
	if err != nil || v == nil {
		return Descriptor{}, false, err
	}
	return DecodeDescriptor(v), true, nil
}

// Tokens exposes the token store for callers (binder/planner) that need
// label/prop-key resolution alongside constraint metadata.
func (g *GraphTxn) Tokens() *token.Store { return g.tokens }
