// Package storage implements the transactional key/value storage engine
// (spec §3/§4.4, §6): node/relationship/token/constraint codecs over an
// opaque embedded KV, snapshot-isolated transactions, batched id
// allocation and the constraint/unique-index store.
//
// The opaque KV is bbolt (go.etcd.io/bbolt): its named buckets play the
// role of spec §6's column families, and a bbolt *bolt.Tx already gives a
// consistent point-in-time read view / atomic batched write exactly as
// spec §4.4 requires, grounded on the layering pattern in
// _examples/other_examples' etcd mvcc/kvstore.go (an MVCC store built on
// top of a bolt-like backend the same way this package builds graph
// semantics on top of bbolt).
package storage

// Column family names (spec §6). Every bucket is created up front on
// Open so reads never have to special-case a missing bucket.
const (
	CFMeta       = "meta"       // token dictionary entries + id watermarks
	CFProperty   = "property"   // node records
	CFTopology   = "topology"   // relationship directional edges
	CFConstraint = "constraint" // constraint metadata + unique indexes
)

var allBuckets = []string{CFMeta, CFProperty, CFTopology, CFConstraint}

// Key prefixes within a bucket (spec §6). Single leading byte.
const (
	NodePrefix        byte = 0x01
	RelPrefix         byte = 0x02
	RelByIDPrefix     byte = 0x03
	ConstraintByName  byte = 0x10
	ConstraintByLabel byte = 0x11
	UniqueIndexPrefix byte = 0x12
)

// Direction bytes used in the topology key (spec §3 "Relationship record").
const (
	DirByteOut byte = 0x00
	DirByteIn  byte = 0x01
)
