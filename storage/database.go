package storage

import (
	"go.uber.org/zap"

	"github.com/boltgraph/boltgraph/idalloc"
	"github.com/boltgraph/boltgraph/token"
)

// Database is the embedded storage engine entry point (spec §1/§6): one
// bbolt-backed Engine, the token dictionary loaded fully into memory on
// open, the node/rel id generators and the per-label constraint locks.
// session.Session is built on top of one Database.
type Database struct {
	Engine *Engine
	Tokens *token.Store
	IDs    *IDAllocators
	Locks  *LabelLocks
	Log    *zap.SugaredLogger

	idBatchSize uint64
}

// DatabaseOptions configures Open.
type DatabaseOptions struct {
	Storage     Options
	IDBatchSize uint64 // default idalloc.DefaultBatchSize
	Logger      *zap.SugaredLogger
}

func Open(opts DatabaseOptions) (*Database, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	eng, err := OpenEngine(opts.Storage)
	if err != nil {
		return nil, err
	}
	tokens, err := token.Open(eng, log)
	if err != nil {
		eng.Close()
		return nil, err
	}
	nodeGen, err := idalloc.Open(eng, CFMeta, idalloc.NodeWatermarkKey, opts.IDBatchSize, log)
	if err != nil {
		eng.Close()
		return nil, err
	}
	relGen, err := idalloc.Open(eng, CFMeta, idalloc.RelWatermarkKey, opts.IDBatchSize, log)
	if err != nil {
		eng.Close()
		return nil, err
	}

	return &Database{
		Engine: eng,
		Tokens: tokens,
		IDs:    &IDAllocators{Node: nodeGen, Rel: relGen},
		Locks:  NewLabelLocks(),
		Log:    log,
	}, nil
}

func (d *Database) Close() error { return d.Engine.Close() }

// Begin starts a new GraphTxn over this database (spec §4.4).
func (d *Database) Begin(writable bool) (*GraphTxn, error) {
	tx, err := d.Engine.Begin(writable)
	if err != nil {
		return nil, err
	}
	return &GraphTxn{Transaction: tx, ids: d.IDs, tokens: d.Tokens}, nil
}
