package storage

import (
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/idalloc"
	"github.com/boltgraph/boltgraph/propmap"
	"github.com/boltgraph/boltgraph/token"
	"github.com/boltgraph/boltgraph/types"
)

// encodeBlobsConcurrently builds one property blob per row, fanning the
// pure-CPU entry-collection/encode step out across goroutines since rows
// don't share any mutable state; the id allocation and KV writes that
// follow stay on the caller's goroutine because a single bbolt
// transaction isn't safe for concurrent writes.
func encodeBlobsConcurrently(n int, fieldKeyIDs []types.PropertyKeyId, props *colarray.Array) ([][]byte, error) {
	blobs := make([][]byte, n)
	if props == nil {
		for i := range blobs {
			blobs[i] = propmap.Build(nil)
		}
		return blobs, nil
	}
	var g errgroup.Group
	for row := 0; row < n; row++ {
		row := row
		g.Go(func() error {
			var entries []propmap.Entry
			for fi, child := range props.FieldChildren {
				if !child.IsValid(row) {
					continue
				}
				entries = append(entries, propmap.Entry{KeyID: fieldKeyIDs[fi], Value: scalarValueFromChild(child, row)})
			}
			blobs[row] = propmap.Build(entries)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blobs, nil
}

// uniqueConstraintsFor collects the UNIQUE/NODE KEY descriptors that apply
// to any of tokenIDs (node label ids or a relationship type id share the
// same TokenId space), deduplicated by constraint name.
func (g *GraphTxn) uniqueConstraintsFor(entity EntityType, tokenIDs []types.TokenId) ([]Descriptor, error) {
	var out []Descriptor
	seenToken := make(map[types.TokenId]bool, len(tokenIDs))
	seenName := make(map[string]bool)
	for _, id := range tokenIDs {
		if seenToken[id] {
			continue
		}
		seenToken[id] = true
		descs, err := g.ListConstraintsForLabel(id)
		if err != nil {
			return nil, err
		}
		for _, d := range descs {
			if d.EntityType != entity || seenName[d.Name] {
				continue
			}
			if d.Kind != ConstraintUnique && d.Kind != ConstraintNodeKey {
				continue
			}
			seenName[d.Name] = true
			out = append(out, d)
		}
	}
	return out, nil
}

// constraintKeyValues pulls the constraint's property values out of a
// built blob. ok is false when a value is missing or null, in which case
// spec §4.5 says UNIQUE constraints simply don't apply to that row.
func constraintKeyValues(blob []byte, propIDs []types.PropertyKeyId) (values []types.Value, ok bool) {
	m := propmap.Open(blob)
	values = make([]types.Value, len(propIDs))
	for i, pid := range propIDs {
		v, present := m.Get(pid)
		if !present || v.IsNull() {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}

// checkUniqueConstraints verifies every row's blob against descs before any
// row is written: a duplicate either against already-committed data or
// against an earlier row in the same batch fails the whole create (spec
// §4.10 "fail the stream with an error", spec §8 unique_index_exists
// invariant).
func (g *GraphTxn) checkUniqueConstraints(descs []Descriptor, blobs [][]byte) error {
	if len(descs) == 0 {
		return nil
	}
	seenInBatch := make(map[string]bool)
	for _, blob := range blobs {
		for _, d := range descs {
			values, ok := constraintKeyValues(blob, d.PropKeyIDs)
			if !ok {
				continue
			}
			keyBytes, err := propmap.EncodeComposite(d.PropKeyIDs, values)
			if err != nil {
				return err
			}
			batchKey := d.Name + string(keyBytes)
			if seenInBatch[batchKey] {
				return types.NewError(types.KindConstraint, "create",
					"duplicate value violates uniqueness constraint "+d.Name)
			}
			seenInBatch[batchKey] = true
			if _, exists, err := g.UniqueIndexExists(d.LabelID, d.PropKeyIDs, values); err != nil {
				return err
			} else if exists {
				return types.NewError(types.KindConstraint, "create",
					"duplicate value violates uniqueness constraint "+d.Name)
			}
		}
	}
	return nil
}

// recordUniqueIndexEntries registers a newly written row's unique-index
// entries so later creates observe it (spec §8 invariant must hold
// immediately after the row commits, not just after CREATE CONSTRAINT).
func (g *GraphTxn) recordUniqueIndexEntries(descs []Descriptor, blob []byte, node types.NodeId) error {
	for _, d := range descs {
		values, ok := constraintKeyValues(blob, d.PropKeyIDs)
		if !ok {
			continue
		}
		if err := g.PutUniqueIndex(d.LabelID, d.PropKeyIDs, values, node); err != nil {
			return err
		}
	}
	return nil
}

// GraphTxn is a Transaction plus the id allocator and token store needed
// to implement the higher-level transactional operations executors call
// (spec §4.4 "Higher-level transactional operations exposed to
// executors").
type GraphTxn struct {
	*Transaction
	ids    *IDAllocators
	tokens *token.Store
}

// IDAllocators bundles the node/rel generators; each Database owns one
// pair (Database.IDs) for its lifetime (spec §4.3).
type IDAllocators struct {
	Node *idalloc.Generator
	Rel  *idalloc.Generator
}

func (g *GraphTxn) nextNodeID() (types.NodeId, error) {
	id, err := g.ids.Node.Next()
	return types.NodeId(id), err
}

func (g *GraphTxn) nextRelID() (types.RelationshipId, error) {
	id, err := g.ids.Rel.Next()
	return types.RelationshipId(id), err
}

// NodeCreate allocates a block of node ids, interns labels and property
// keys, encodes N node values and writes them (spec §4.4 node_create,
// batched). props is a struct array whose fields are the property-key
// names; each row becomes one node's packed property map.
func (g *GraphTxn) NodeCreate(labelNames []string, props *colarray.Array) (*colarray.Array, error) {
	n := 0
	if props != nil {
		n = props.Len()
	} else {
		n = 1
	}

	labelIDs := make([]types.LabelId, len(labelNames))
	for i, name := range labelNames {
		id, err := g.tokens.GetOrCreate(types.TokenLabel, name)
		if err != nil {
			return nil, errors.Wrap(err, "node_create: intern label")
		}
		labelIDs[i] = id
	}

	var fieldKeyIDs []types.PropertyKeyId
	if props != nil {
		fieldKeyIDs = make([]types.PropertyKeyId, len(props.FieldNames))
		for i, name := range props.FieldNames {
			id, err := g.tokens.GetOrCreate(types.TokenPropertyKey, name)
			if err != nil {
				return nil, errors.Wrap(err, "node_create: intern property key")
			}
			fieldKeyIDs[i] = id
		}
	}

	blobs, err := encodeBlobsConcurrently(n, fieldKeyIDs, props)
	if err != nil {
		return nil, errors.Wrap(err, "node_create: encode properties")
	}

	descs, err := g.uniqueConstraintsFor(EntityNode, labelIDs)
	if err != nil {
		return nil, errors.Wrap(err, "node_create: list constraints")
	}
	if err := g.checkUniqueConstraints(descs, blobs); err != nil {
		return nil, err
	}

	nb := colarray.NodeBuilder{}
	for row := 0; row < n; row++ {
		id, err := g.nextNodeID()
		if err != nil {
			return nil, err
		}
		blob := blobs[row]
		if err := g.Put(CFProperty, NodeKey(id), EncodeNodeValue(labelIDs, blob)); err != nil {
			return nil, errors.Wrap(err, "node_create: write")
		}
		if err := g.recordUniqueIndexEntries(descs, blob, id); err != nil {
			return nil, errors.Wrap(err, "node_create: update unique index")
		}
		nb.Push(id, labelIDs, blob)
	}
	return nb.Finish(), nil
}

// scalarValueFromChild reads a primitive types.Value out of a struct
// field child array at row (structs built by the binder's CreateStruct
// only ever nest primitive/list columns for property maps).
func scalarValueFromChild(child *colarray.Array, row int) types.Value {
	switch child.Phys {
	case colarray.PBool:
		return types.NewBool(child.Bools[row])
	case colarray.PInt:
		return types.NewInt(child.Ints[row])
	case colarray.PFloat:
		return types.NewFloat(child.Floats[row])
	case colarray.PString:
		return types.NewString(child.StringAt(row))
	default:
		return types.Null()
	}
}

// RelCreate allocates rel ids and writes both directional topology
// entries per edge (spec §4.4 rel_create, batched).
func (g *GraphTxn) RelCreate(relTypeName string, starts, ends []types.NodeId, props *colarray.Array) (*colarray.Array, error) {
	relTypeID, err := g.tokens.GetOrCreate(types.TokenRelType, relTypeName)
	if err != nil {
		return nil, errors.Wrap(err, "rel_create: intern rel type")
	}
	var fieldKeyIDs []types.PropertyKeyId
	if props != nil {
		fieldKeyIDs = make([]types.PropertyKeyId, len(props.FieldNames))
		for i, name := range props.FieldNames {
			id, err := g.tokens.GetOrCreate(types.TokenPropertyKey, name)
			if err != nil {
				return nil, err
			}
			fieldKeyIDs[i] = id
		}
	}

	blobs, err := encodeBlobsConcurrently(len(starts), fieldKeyIDs, props)
	if err != nil {
		return nil, errors.Wrap(err, "rel_create: encode properties")
	}

	descs, err := g.uniqueConstraintsFor(EntityRel, []types.TokenId{relTypeID})
	if err != nil {
		return nil, errors.Wrap(err, "rel_create: list constraints")
	}
	if err := g.checkUniqueConstraints(descs, blobs); err != nil {
		return nil, err
	}

	rb := colarray.RelBuilder{}
	for row := range starts {
		id, err := g.nextRelID()
		if err != nil {
			return nil, err
		}
		blob := blobs[row]
		src, dst := starts[row], ends[row]
		if err := g.Put(CFTopology, RelTopologyKey(src, DirByteOut, relTypeID, dst, id), blob); err != nil {
			return nil, errors.Wrap(err, "rel_create: write forward")
		}
		if err := g.Put(CFTopology, RelTopologyKey(dst, DirByteIn, relTypeID, src, id), blob); err != nil {
			return nil, errors.Wrap(err, "rel_create: write reverse")
		}
		if err := g.Put(CFTopology, RelByIDKey(id), EncodeRelValue(relTypeID, src, dst, blob)); err != nil {
			return nil, errors.Wrap(err, "rel_create: write by-id")
		}
		// Relationships share the node unique-index keyspace; PutUniqueIndex
		// only stores an opaque id, so the rel id is carried through as one.
		if err := g.recordUniqueIndexEntries(descs, blob, types.NodeId(id)); err != nil {
			return nil, errors.Wrap(err, "rel_create: update unique index")
		}
		rb.Push(id, relTypeID, src, dst, blob)
	}
	return rb.Finish(), nil
}

// DefaultScanBatch is the virtual-node chunk size AllNodeScan produces
// (spec §4.10 "batch_size=1024").
const DefaultScanBatch = 1024

// NodeScan prefix-iterates the property CF, calling emit with a batch of
// up to batchSize node ids at a time (spec §4.4 node_scan).
func (g *GraphTxn) NodeScan(batchSize int, emit func([]types.NodeId) error) error {
	if batchSize <= 0 {
		batchSize = DefaultScanBatch
	}
	var batch []types.NodeId
	err := g.PrefixIter(CFProperty, []byte{NodePrefix}, func(k, v []byte) (bool, error) {
		batch = append(batch, DecodeNodeKey(k))
		if len(batch) >= batchSize {
			if err := emit(batch); err != nil {
				return false, err
			}
			batch = nil
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if len(batch) > 0 {
		return emit(batch)
	}
	return nil
}

// IncidentEdge is one decoded row produced by RelIterForNode.
type IncidentEdge struct {
	Src, Dst types.NodeId
	Dir      types.Direction
	RelType  types.RelTypeId
	RelID    types.RelationshipId
	PropBlob []byte
}

// RelIterForNode prefix-iterates the topology CF for one node, optionally
// restricted to a set of directions and/or relationship types (spec §4.4
// rel_iter_for_node).
func (g *GraphTxn) RelIterForNode(node types.NodeId, dirs []types.Direction, relTypes map[types.RelTypeId]bool, emit func(IncidentEdge) (bool, error)) error {
	if len(dirs) == 0 {
		dirs = []types.Direction{types.DirOutgoing, types.DirIncoming}
	}
	for _, d := range dirs {
		prefix := RelScanPrefix(node, dirByte(d), nil)
		err := g.PrefixIter(CFTopology, prefix, func(k, v []byte) (bool, error) {
			dk := DecodeRelTopologyKey(k)
			if relTypes != nil && !relTypes[dk.RelType] {
				return true, nil
			}
			edge := IncidentEdge{Src: node, Dst: dk.Dst, Dir: d, RelType: dk.RelType, RelID: dk.RelID, PropBlob: v}
			return emit(edge)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// MaterializeNode multi-gets full node values for a set of ids, returning
// a PNode array; a missing id becomes an invalid row, logged as a data
// bug rather than failing the whole batch (spec §4.4 materialize_node).
func (g *GraphTxn) MaterializeNode(ids []types.NodeId, log func(missing types.NodeId)) (*colarray.Array, error) {
	nb := colarray.NodeBuilder{}
	for _, id := range ids {
		v, err := g.Get(CFProperty, NodeKey(id))
		if err != nil {
			return nil, errors.Wrap(err, "materialize_node")
		}
		if v == nil {
			if log != nil {
				log(id)
			}
			nb.PushNull()
			continue
		}
		nv := DecodeNodeValue(v)
		nb.Push(id, nv.Labels, nv.PropBlob)
	}
	return nb.Finish(), nil
}

// MaterializeRel multi-gets full relationship values for a set of ids,
// returning a PRel array; a missing id becomes an invalid row, matching
// MaterializeNode's handling of a stale reference (spec §4.4
// materialize_rel).
func (g *GraphTxn) MaterializeRel(ids []types.RelationshipId, log func(missing types.RelationshipId)) (*colarray.Array, error) {
	rb := colarray.RelBuilder{}
	for _, id := range ids {
		v, err := g.Get(CFTopology, RelByIDKey(id))
		if err != nil {
			return nil, errors.Wrap(err, "materialize_rel")
		}
		if v == nil {
			if log != nil {
				log(id)
			}
			rb.PushNull()
			continue
		}
		rv := DecodeRelValue(v)
		rb.Push(id, rv.Type, rv.Src, rv.Dst, rv.PropBlob)
	}
	return rb.Finish(), nil
}
