package exec

import (
	"context"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/expr"
	"github.com/boltgraph/boltgraph/plan"
	"github.com/boltgraph/boltgraph/types"
)

// allNodeScan pulls scanBatch-sized virtual-node chunks off a bounded
// channel fed by one blocking goroutine running the KV prefix iteration
// (spec §4.10 AllNodeScan: "a blocking scan task is spawned").
type allNodeScan struct {
	schema *types.Schema
	rows   chan scanResult
	cancel context.CancelFunc
}

type scanResult struct {
	ids []types.NodeId
	err error
}

func newAllNodeScan(ex *Exec, n *plan.AllNodeScan) *allNodeScan {
	rows := make(chan scanResult, chanBuffer)
	ctx, cancel := context.WithCancel(context.Background())
	s := &allNodeScan{schema: n.Schema(), rows: rows, cancel: cancel}
	go func() {
		defer close(rows)
		err := ex.Txn.NodeScan(scanBatch, func(batch []types.NodeId) error {
			cp := append([]types.NodeId(nil), batch...)
			select {
			case rows <- scanResult{ids: cp}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && ctx.Err() == nil {
			select {
			case rows <- scanResult{err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return s
}

func (s *allNodeScan) Schema() *types.Schema { return s.schema }

func (s *allNodeScan) Next(ctx context.Context) (*colarray.DataChunk, error) {
	if err := cancelled(ctx); err != nil {
		s.cancel()
		return nil, err
	}
	select {
	case r, ok := <-s.rows:
		if !ok {
			return nil, nil
		}
		if r.err != nil {
			return nil, r.err
		}
		return virtualNodeChunk(s.schema, r.ids), nil
	case <-ctx.Done():
		s.cancel()
		return nil, types.WrapError(types.KindCancellation, "all_node_scan", "context cancelled", ctx.Err())
	}
}

func virtualNodeChunk(schema *types.Schema, ids []types.NodeId) *colarray.DataChunk {
	vb := colarray.VirtualNodeBuilder{}
	for _, id := range ids {
		vb.Push(id)
	}
	return colarray.NewDataChunk(schema, []*colarray.Array{vb.Finish()})
}

// nodeIndexSeek evaluates each property expression once (against a
// single-row chunk of bound parameters/literals) and resolves the node
// through the unique index directly, skipping a full scan (spec §4.9
// step 4).
type nodeIndexSeek struct {
	schema *types.Schema
	done   bool
	ex     *Exec
	n      *plan.NodeIndexSeek
}

func newNodeIndexSeek(ex *Exec, n *plan.NodeIndexSeek) *nodeIndexSeek {
	return &nodeIndexSeek{schema: n.Schema(), ex: ex, n: n}
}

func (s *nodeIndexSeek) Schema() *types.Schema { return s.schema }

func (s *nodeIndexSeek) Next(ctx context.Context) (*colarray.DataChunk, error) {
	if s.done {
		return nil, nil
	}
	s.done = true
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	single := oneRowChunk()
	keyIDs := make([]types.PropertyKeyId, len(s.n.PropKeys))
	copy(keyIDs, s.n.PropKeys)
	values := make([]types.Value, len(s.n.Values))
	for i, v := range s.n.Values {
		val, err := evalScalar(v, single, s.ex.Ctx)
		if err != nil {
			return nil, err
		}
		values[i] = val
	}

	id, ok, err := s.ex.Txn.UniqueIndexExists(s.n.Label, keyIDs, values)
	if err != nil {
		return nil, err
	}
	if !ok {
		return virtualNodeChunk(s.schema, nil), nil
	}
	return virtualNodeChunk(s.schema, []types.NodeId{id}), nil
}

// oneRowChunk is a dummy length-1, zero-column chunk for evaluating
// parameter/literal-only expressions (an index seek's key values never
// reference a bound variable, since the seek leaf has no input rows).
func oneRowChunk() *colarray.DataChunk {
	b := colarray.BoolBuilder{}
	b.Push(nil)
	return colarray.NewDataChunk(types.NewSchema(), []*colarray.Array{b.Finish()})
}

// evalScalar runs e over a one-row chunk and returns the row-0 scalar
// value.
func evalScalar(e expr.Expr, chunk *colarray.DataChunk, ctx *expr.Context) (types.Value, error) {
	arr, err := e.EvalBatch(chunk, ctx)
	if err != nil {
		return types.Value{}, err
	}
	return scalarAt(arr, 0), nil
}

// scalarAt reads row i of arr as a types.Value; index-seek key columns
// are always a primitive physical lane (spec §3 property value domain
// excludes node/rel/path).
func scalarAt(arr *colarray.Array, i int) types.Value {
	if !arr.IsValid(i) {
		return types.Null()
	}
	switch arr.Phys {
	case colarray.PBool:
		return types.NewBool(arr.Bools[i])
	case colarray.PInt:
		return types.NewInt(arr.Ints[i])
	case colarray.PFloat:
		return types.NewFloat(arr.Floats[i])
	case colarray.PString:
		return types.NewString(arr.StringAt(i))
	default:
		return types.Null()
	}
}
