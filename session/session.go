// Package session ties the binder, planner and executor into the one
// call a caller actually makes: Execute(stmt, params) (spec §4.8/§4.9/
// §4.10 end to end, spec §C13 Session). It owns transaction lifetime:
// Execute opens one GraphTxn per statement and ResultHandle.Close
// commits or rolls it back depending on how streaming ended.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/boltgraph/boltgraph/ast"
	"github.com/boltgraph/boltgraph/bind"
	"github.com/boltgraph/boltgraph/colarray"
	"github.com/boltgraph/boltgraph/exec"
	"github.com/boltgraph/boltgraph/expr"
	"github.com/boltgraph/boltgraph/plan"
	"github.com/boltgraph/boltgraph/storage"
	"github.com/boltgraph/boltgraph/types"
)

// Session is one client's handle onto a Database; it is safe for
// concurrent use, each Execute call opening its own transaction.
type Session struct {
	db    *storage.Database
	funcs *expr.Registry
	log   *zap.SugaredLogger
}

// Options configures a Session. Funcs defaults to expr.NewRegistry's
// builtin set; Logger defaults to a no-op logger.
type Options struct {
	Funcs  *expr.Registry
	Logger *zap.SugaredLogger
}

func New(db *storage.Database, opts Options) *Session {
	funcs := opts.Funcs
	if funcs == nil {
		funcs = expr.NewRegistry()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Session{db: db, funcs: funcs, log: log}
}

// Execute binds, plans and builds stmt, returning a ResultHandle the
// caller drives by calling Next until it returns a nil chunk, then
// Close. Close must always be called, even on a Next error, so the
// underlying transaction is resolved.
func (s *Session) Execute(ctx context.Context, stmt *ast.Statement, params map[string]types.Value) (*ResultHandle, error) {
	txn, err := s.db.Begin(writes(stmt))
	if err != nil {
		return nil, err
	}

	binder := bind.New(txn.Tokens(), s.funcs)
	query, err := binder.Bind(stmt)
	if err != nil {
		txn.Rollback()
		return nil, err
	}

	p, err := plan.PlanRoot(query, indexCatalog{txn})
	if err != nil {
		txn.Rollback()
		return nil, err
	}

	stream, err := exec.Build(p.Root, txn, params)
	if err != nil {
		txn.Rollback()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	return &ResultHandle{
		names:  p.Names,
		schema: p.Root.Schema(),
		stream: stream,
		txn:    txn,
		cancel: cancel,
		ctx:    runCtx,
		log:    s.log,
	}, nil
}

// writes reports whether stmt can mutate the graph, the only signal
// Execute needs to pick a read-only vs. read-write transaction (spec §4.4
// "write transactions serialize per label via LabelLocks").
func writes(stmt *ast.Statement) bool {
	if stmt == nil || stmt.Query == nil {
		return false
	}
	for _, sq := range stmt.Query.Branches {
		for _, c := range sq.Clauses {
			if _, ok := c.(*ast.Create); ok {
				return true
			}
		}
	}
	return false
}

// indexCatalog adapts storage.GraphTxn's constraint metadata to
// plan.IndexCatalog, matching a unique/node-key constraint's property
// key set against the requested keys regardless of order (spec §4.9 step
// 4 key set comes from filter-conjunction traversal order, not the
// constraint's declared order).
type indexCatalog struct {
	txn *storage.GraphTxn
}

func (c indexCatalog) UniqueIndex(label types.LabelId, keys []types.PropertyKeyId) bool {
	descs, err := c.txn.ListConstraintsForLabel(label)
	if err != nil {
		return false
	}
	want := keySet(keys)
	for _, d := range descs {
		if d.Kind != storage.ConstraintUnique && d.Kind != storage.ConstraintNodeKey {
			continue
		}
		if keySet(d.PropKeyIDs).equal(want) {
			return true
		}
	}
	return false
}

type propKeySet map[types.PropertyKeyId]bool

func keySet(keys []types.PropertyKeyId) propKeySet {
	s := make(propKeySet, len(keys))
	for _, k := range keys {
		s[k] = true
	}
	return s
}

func (s propKeySet) equal(o propKeySet) bool {
	if len(s) != len(o) {
		return false
	}
	for k := range s {
		if !o[k] {
			return false
		}
	}
	return true
}

// ResultHandle streams one statement's output rows and owns its
// transaction's lifetime. Dropping a handle without calling Close leaks
// the underlying transaction, so callers must always Close it.
type ResultHandle struct {
	names  []string
	schema *types.Schema
	stream exec.Stream
	txn    *storage.GraphTxn
	cancel context.CancelFunc
	ctx    context.Context
	log    *zap.SugaredLogger

	mu     sync.Mutex
	failed bool
	closed bool
}

// Names returns the RETURN columns in order.
func (h *ResultHandle) Names() []string { return h.names }

// Schema is the physical column layout each chunk carries.
func (h *ResultHandle) Schema() *types.Schema { return h.schema }

// Next pulls the next chunk, or (nil, nil) once the stream is exhausted.
func (h *ResultHandle) Next() (*colarray.DataChunk, error) {
	chunk, err := h.stream.Next(h.ctx)
	if err != nil {
		h.mu.Lock()
		h.failed = true
		h.mu.Unlock()
	}
	return chunk, err
}

// Close cancels any still-running work and resolves the transaction:
// commit unless Next ever returned an error. Closing before the stream
// is exhausted still commits whatever mutations earlier Next calls
// already applied (spec §7 Cancellation: "handle drop cascades to
// stream/channel closure").
func (h *ResultHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	failed := h.failed
	h.mu.Unlock()

	h.cancel()
	if failed {
		return h.txn.Rollback()
	}
	return h.txn.Commit()
}
