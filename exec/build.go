package exec

import (
	"context"
	"fmt"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/plan"
	"github.com/boltgraph/boltgraph/storage"
	"github.com/boltgraph/boltgraph/types"
)

// Build turns a plan.Node tree into a Stream (spec §4.10 "the planner's
// tree compiles 1:1 into a tree of operators"). txn is the transaction
// every leaf reads and writes through; params are the query's bound
// parameters.
func Build(root plan.Node, txn *storage.GraphTxn, params map[string]types.Value) (Stream, error) {
	ex := newContext(txn, params)
	return build(ex, root, nil)
}

// build recurses over the plan tree. box is non-nil only while building
// the right-hand side of an Apply: every Argument reachable there reads
// that Apply's mailbox, which is why Argument is never legal outside an
// Apply's Right subtree (spec §4.9 step 3).
func build(ex *Exec, node plan.Node, box *mailbox) (Stream, error) {
	switch n := node.(type) {
	case *plan.AllNodeScan:
		return newAllNodeScan(ex, n), nil

	case *plan.NodeIndexSeek:
		return newNodeIndexSeek(ex, n), nil

	case *plan.Unit:
		return newUnit(n), nil

	case *plan.Argument:
		if box == nil {
			return nil, types.NewError(types.KindBuild, "build", "argument outside apply")
		}
		return newArgument(box), nil

	case *plan.Apply:
		left, err := build(ex, n.Left, box)
		if err != nil {
			return nil, err
		}
		innerBox := &mailbox{schema: n.Left.Schema()}
		buildRight := func() Stream {
			right, err := build(ex, n.Right, innerBox)
			if err != nil {
				return errStream{schema: n.Right.Schema(), err: err}
			}
			return right
		}
		return newApply(ex, n, left, innerBox, buildRight), nil

	case *plan.Expand:
		in, err := build(ex, n.Children()[0], box)
		if err != nil {
			return nil, err
		}
		return newExpand(ex, n, in), nil

	case *plan.VarExpand:
		in, err := build(ex, n.Children()[0], box)
		if err != nil {
			return nil, err
		}
		return newVarExpand(ex, n, in), nil

	case *plan.Filter:
		in, err := build(ex, n.Children()[0], box)
		if err != nil {
			return nil, err
		}
		return newFilter(ex, n, in), nil

	case *plan.Project:
		in, err := build(ex, n.Children()[0], box)
		if err != nil {
			return nil, err
		}
		return newProject(ex, n, in), nil

	case *plan.Aggregate:
		in, err := build(ex, n.Children()[0], box)
		if err != nil {
			return nil, err
		}
		return newAggregate(ex, n, in), nil

	case *plan.Sort:
		in, err := build(ex, n.Children()[0], box)
		if err != nil {
			return nil, err
		}
		return newSort(ex, n, in), nil

	case *plan.Pagination:
		in, err := build(ex, n.Children()[0], box)
		if err != nil {
			return nil, err
		}
		return newPagination(ex, n, in), nil

	case *plan.CreateNode:
		in, err := build(ex, n.Children()[0], box)
		if err != nil {
			return nil, err
		}
		return newCreateNode(ex, n, in)

	case *plan.CreateRel:
		in, err := build(ex, n.Children()[0], box)
		if err != nil {
			return nil, err
		}
		return newCreateRel(ex, n, in)

	case *plan.Unwind:
		in, err := build(ex, n.Children()[0], box)
		if err != nil {
			return nil, err
		}
		return newUnwind(ex, n, in), nil

	case *plan.Load:
		return newLoad(n), nil

	case *plan.ProduceResult:
		in, err := build(ex, n.Children()[0], box)
		if err != nil {
			return nil, err
		}
		return newProduceResult(ex, n, in), nil

	default:
		return nil, types.NewError(types.KindBuild, "build", fmt.Sprintf("unknown plan node %T", node))
	}
}

// errStream is a Stream that fails on its first Next, the shape
// buildRight's closure needs since it cannot itself return an error
// (spec §4.10 Apply drives buildRight lazily, once per left row).
type errStream struct {
	schema *types.Schema
	err    error
}

func (e errStream) Schema() *types.Schema                               { return e.schema }
func (e errStream) Next(_ context.Context) (*colarray.DataChunk, error) { return nil, e.err }
