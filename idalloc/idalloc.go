// Package idalloc implements the monotonic node/relationship id generator
// with batched on-disk watermarks (spec §3/§4.3).
package idalloc

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/boltgraph/boltgraph/types"
)

// DefaultBatchSize is the tuning parameter from spec §4.3.
const DefaultBatchSize = 1000

// KV is the minimal durable-write surface the allocator needs.
type KV interface {
	Get(bucket string, key []byte) ([]byte, error)
	// PutSync writes durably (fsync'd) so that after a crash the watermark
	// read back is never behind what a caller may already have observed
	// (spec §4.3 step 2 "durable write (sync flag)").
	PutSync(bucket string, key, value []byte) error
}

// Generator hands out strictly increasing ids for one namespace (node or
// rel). The invariant (spec §8): after any crash, the next id returned is
// >= every id ever returned before the crash.
type Generator struct {
	kv        KV
	bucket    string
	watermark []byte
	batch     uint64
	log       *zap.SugaredLogger

	current atomic.Uint64
	ceiling atomic.Uint64

	refillMu sync.Mutex
}

// Open reads the persisted watermark (0 if absent) and constructs a
// Generator with an initially-exhausted batch, forcing the first Next()
// call to refill and establish (current, ceiling) from disk.
func Open(kv KV, bucket string, watermarkKey []byte, batchSize uint64, log *zap.SugaredLogger) (*Generator, error) {
	if batchSize == 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	g := &Generator{kv: kv, bucket: bucket, watermark: watermarkKey, batch: batchSize, log: log}

	wm, err := g.readWatermark()
	if err != nil {
		return nil, err
	}
	g.current.Store(wm)
	g.ceiling.Store(wm) // ceiling == current forces a refill on first Next()
	return g, nil
}

func (g *Generator) readWatermark() (uint64, error) {
	v, err := g.kv.Get(g.bucket, g.watermark)
	if err != nil {
		return 0, errors.Wrap(err, "idalloc: read watermark")
	}
	if len(v) == 0 {
		return 0, nil
	}
	return binary.LittleEndian.Uint64(v), nil
}

// Next returns the next id in the sequence (spec §4.3).
func (g *Generator) Next() (uint64, error) {
	for {
		cur := g.current.Load()
		if cur < g.ceiling.Load() {
			if g.current.CompareAndSwap(cur, cur+1) {
				return cur, nil
			}
			continue // lost the race, retry fast path
		}
		if err := g.refill(); err != nil {
			return 0, err
		}
	}
}

// refill is the slow path: acquire the refill mutex, re-read the
// watermark (another goroutine may have already refilled while we waited
// on the mutex), persist watermark+batch durably, then publish the new
// window.
func (g *Generator) refill() error {
	g.refillMu.Lock()
	defer g.refillMu.Unlock()

	if g.current.Load() < g.ceiling.Load() {
		return nil // someone else refilled first
	}

	wm, err := g.readWatermark()
	if err != nil {
		return err
	}
	newCeiling := wm + g.batch
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, newCeiling)
	if err := g.kv.PutSync(g.bucket, g.watermark, buf); err != nil {
		return errors.Wrap(err, "idalloc: persist watermark")
	}
	g.log.Debugw("idalloc refill", "bucket", g.bucket, "old", wm, "new_ceiling", newCeiling)

	g.current.Store(wm)
	g.ceiling.Store(newCeiling)
	return nil
}

// Pair owns the node and relationship generators together, matching
// storage.Engine's "two independent generators" (spec §4.3).
type Pair struct {
	Node *Generator
	Rel  *Generator
}

var (
	NodeWatermarkKey = []byte{0x01}
	RelWatermarkKey  = []byte{0x02}
)

// NodeID and RelID are thin typed wrappers over Next() for callers that
// want the strongly-typed ids directly.
func (p *Pair) NodeID() (types.NodeId, error) {
	id, err := p.Node.Next()
	return types.NodeId(id), err
}

func (p *Pair) RelID() (types.RelationshipId, error) {
	id, err := p.Rel.Next()
	return types.RelationshipId(id), err
}
