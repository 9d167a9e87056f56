// Package exec builds a pull-based execution pipeline from a plan.Node
// tree (spec §4.10): every operator implements Stream, chunks flow
// downstream on calls to Next, and the only place a goroutine plus a
// channel crosses the boundary is a scan leaf's blocking KV iteration
// (spec §5 "leaves spawn blocking IO workers that feed back through
// bounded channels").
package exec

import (
	"context"

	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/expr"
	"github.com/boltgraph/boltgraph/storage"
	"github.com/boltgraph/boltgraph/types"
)

// Stream is the operator contract (spec §4.10 "open(ctx) -> Stream<Item
// = Result<DataChunk, ExecError>>"). Next returns io.EOF-equivalent by
// returning a nil chunk with a nil error; callers stop pulling once that
// happens. Schema is static per operator, known without pulling a chunk.
type Stream interface {
	Next(ctx context.Context) (*colarray.DataChunk, error)
	Schema() *types.Schema
}

// scanBatch is the virtual-node chunk size AllNodeScan/NodeIndexSeek
// leaves produce (spec §4.10 "batch_size=1024").
const scanBatch = 1024

// chanBuffer is the bounded channel capacity between a scan leaf's
// blocking goroutine and the pulling pipeline (spec §4.10 "buffer 128");
// back-pressure is simply the channel filling up.
const chanBuffer = 128

// chunkSize caps the row count Expand/VarExpand accumulate before
// flushing a chunk downstream (spec §4.10 "CHUNK_SIZE (4096)").
const chunkSize = 4096

// Exec carries everything a Stream needs beyond its own operator state:
// the transaction leaves read from, the expression context literals and
// CREATE clauses evaluate against, and the query's bound parameters.
type Exec struct {
	Txn *storage.GraphTxn
	Ctx *expr.Context
}

func newContext(txn *storage.GraphTxn, params map[string]types.Value) *Exec {
	return &Exec{
		Txn: txn,
		Ctx: &expr.Context{
			Params: params,
			Mat:    &materializer{txn: txn},
			Names:  txn.Tokens(),
		},
	}
}

// cancelled reports whether ctx has already been cancelled, the uniform
// check every operator's Next performs before doing any work (spec §7
// Cancellation: "task cancelled by handle drop").
func cancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return types.WrapError(types.KindCancellation, "next", "context cancelled", ctx.Err())
	default:
		return nil
	}
}
