package exec

import (
	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/storage"
	"github.com/boltgraph/boltgraph/types"
)

// materializer implements expr.Materializer over one GraphTxn, turning a
// virtual-node/virtual-rel column into its fully materialized form the
// way ProduceResult and field-access expressions need (spec §4.4
// materialize_node / materialize_rel).
type materializer struct {
	txn *storage.GraphTxn
}

func (m *materializer) MaterializeNodes(ids *colarray.Array) (*colarray.Array, error) {
	wanted := make([]types.NodeId, 0, ids.Len())
	for i := 0; i < ids.Len(); i++ {
		if ids.IsValid(i) {
			wanted = append(wanted, ids.NodeIDs[i])
		}
	}
	resolved, err := m.txn.MaterializeNode(wanted, nil)
	if err != nil {
		return nil, err
	}
	return reexpandNodes(ids, resolved), nil
}

func (m *materializer) MaterializeRels(ids *colarray.Array) (*colarray.Array, error) {
	wanted := make([]types.RelationshipId, 0, ids.Len())
	for i := 0; i < ids.Len(); i++ {
		if ids.IsValid(i) {
			wanted = append(wanted, ids.RelIDs[i])
		}
	}
	resolved, err := m.txn.MaterializeRel(wanted, nil)
	if err != nil {
		return nil, err
	}
	return reexpandRels(ids, resolved), nil
}

// reexpandNodes re-inserts the invalid rows MaterializeNode's input
// skipped, so the output array lines up 1:1 with the virtual-node input.
func reexpandNodes(ids, resolved *colarray.Array) *colarray.Array {
	nb := colarray.NodeBuilder{}
	r := 0
	for i := 0; i < ids.Len(); i++ {
		if !ids.IsValid(i) {
			nb.PushNull()
			continue
		}
		if resolved.IsValid(r) {
			nb.Push(resolved.NodeIDs[r], resolved.NodeLabels[r], resolved.NodeProps[r])
		} else {
			nb.PushNull()
		}
		r++
	}
	return nb.Finish()
}

func reexpandRels(ids, resolved *colarray.Array) *colarray.Array {
	rb := colarray.RelBuilder{}
	r := 0
	for i := 0; i < ids.Len(); i++ {
		if !ids.IsValid(i) {
			rb.PushNull()
			continue
		}
		if resolved.IsValid(r) {
			rb.Push(resolved.RelIDs[r], resolved.RelTypes[r], resolved.RelStarts[r], resolved.RelEnds[r], resolved.RelProps[r])
		} else {
			rb.PushNull()
		}
		r++
	}
	return rb.Finish()
}
