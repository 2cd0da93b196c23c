// Package store implements the HyperAST node substrate: an append-only,
// content-addressed arena of immutable labeled tree nodes shared across
// diff runs. Identical subtrees are stored once and referenced by a stable
// NodeID everywhere they occur.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/veridian-labs/hyperdiff/pkg/alg/bloom"
)

// NodeID identifies a node in a Store. It is stable for the lifetime of the
// store and never reused.
type NodeID uint32

// InvalidNodeID is the sentinel returned when no node matches a lookup.
const InvalidNodeID NodeID = 0

// bloomExpectedElements sizes the dedup pre-filter. The filter is never
// re-sized: past this estimate its false-positive rate rises and more
// lookups fall through to the byHash map.
const (
	bloomExpectedElements = 4096
	bloomFalsePositive    = 0.01
)

// ErrInvalidNode is returned when a NodeID does not belong to the store.
var ErrInvalidNode = errors.New("hyperast/store: invalid node id")

// node is the immutable record backing a NodeID. Fields are never mutated
// after insertion; Store.insert* functions are the only writers.
type node struct {
	label    []byte
	typ      string
	children []NodeID
	hash     uint64
	size     uint32
	height   uint32
}

// Store is an append-only arena of deduplicated, immutable tree nodes. The
// zero value is not usable; construct with New. A Store is safe for
// concurrent reads; insertion serializes through an internal mutex so that
// multiple diff runs may share one Store per the read-mostly model described
// by the core's concurrency contract.
type Store struct {
	mu      sync.RWMutex
	nodes   []node
	byHash  map[uint64][]NodeID // collision chains, re-checked by deep equality
	filter  *bloom.Filter
	inserts uint
}

// New creates an empty Store.
func New() *Store {
	filter, err := bloom.NewWithEstimates(bloomExpectedElements, bloomFalsePositive)
	if err != nil {
		// bloomExpectedElements and bloomFalsePositive are fixed, valid constants;
		// NewWithEstimates can only fail on caller-supplied bad parameters.
		panic(fmt.Sprintf("hyperast/store: bloom filter init: %v", err))
	}

	return &Store{
		nodes:  make([]node, 1, 1024), // index 0 reserved for InvalidNodeID
		byHash: make(map[uint64][]NodeID, bloomExpectedElements),
		filter: filter,
	}
}

// InsertLeaf inserts a leaf node with the given type and label, returning an
// existing NodeID if a structurally identical leaf already exists.
func (s *Store) InsertLeaf(typ string, label []byte) NodeID {
	h := hashLeaf(typ, label)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.findLeaf(h, typ, label); ok {
		return id
	}

	return s.append(node{
		typ:    typ,
		label:  append([]byte(nil), label...),
		hash:   h,
		size:   1,
		height: 1,
	}, h)
}

// InsertInterior inserts an interior node with the given type and ordered
// children, returning an existing NodeID if a structurally identical
// subtree already exists. Every child must already be present in s.
func (s *Store) InsertInterior(typ string, children []NodeID) (NodeID, error) {
	s.mu.RLock()
	for _, c := range children {
		if !s.validLocked(c) {
			s.mu.RUnlock()

			return InvalidNodeID, fmt.Errorf("%w: child %d", ErrInvalidNode, c)
		}
	}

	childHashes := make([]uint64, len(children))
	size := uint32(1)
	height := uint32(0)

	for i, c := range children {
		cn := &s.nodes[c]
		childHashes[i] = cn.hash
		size += cn.size

		if cn.height > height {
			height = cn.height
		}
	}
	s.mu.RUnlock()

	height++
	h := hashInterior(typ, childHashes)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.findInterior(h, typ, children); ok {
		return id, nil
	}

	return s.append(node{
		typ:      typ,
		children: append([]NodeID(nil), children...),
		hash:     h,
		size:     size,
		height:   height,
	}, h), nil
}

// append records n under hash h and returns its freshly assigned id. Caller
// must hold s.mu for writing.
func (s *Store) append(n node, h uint64) NodeID {
	id := NodeID(len(s.nodes))
	s.nodes = append(s.nodes, n)
	s.byHash[h] = append(s.byHash[h], id)
	s.filter.Add(hashBytes(h))
	s.inserts++

	return id
}

// findLeaf returns an existing leaf's id if one with identical (typ, label)
// already exists under hash h. Caller must hold s.mu for writing (it only
// reads, but is always called just before a possible append under the write
// lock, so it avoids a lock upgrade race).
func (s *Store) findLeaf(h uint64, typ string, label []byte) (NodeID, bool) {
	if !s.filter.Test(hashBytes(h)) {
		return InvalidNodeID, false
	}

	for _, candidate := range s.byHash[h] {
		n := &s.nodes[candidate]
		if n.typ == typ && n.children == nil && bytesEqual(n.label, label) {
			return candidate, true
		}
	}

	return InvalidNodeID, false
}

// findInterior returns an existing interior node's id if one with identical
// (typ, children) already exists under hash h.
func (s *Store) findInterior(h uint64, typ string, children []NodeID) (NodeID, bool) {
	if !s.filter.Test(hashBytes(h)) {
		return InvalidNodeID, false
	}

	for _, candidate := range s.byHash[h] {
		n := &s.nodes[candidate]
		if n.typ == typ && slicesEqualNodeID(n.children, children) {
			return candidate, true
		}
	}

	return InvalidNodeID, false
}

// Type returns the node type symbol for id.
func (s *Store) Type(id NodeID) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.nodes[id].typ
}

// Label returns the surface label for id, or nil for interior nodes.
func (s *Store) Label(id NodeID) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.nodes[id].label
}

// Children returns the ordered child ids of id. Returns nil for leaves.
func (s *Store) Children(id NodeID) []NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.nodes[id].children
}

// Size returns the subtree node count (including id itself).
func (s *Store) Size(id NodeID) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.nodes[id].size
}

// Height returns the longest root-to-leaf depth within the subtree rooted
// at id; leaves have height 1.
func (s *Store) Height(id NodeID) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.nodes[id].height
}

// Hash returns the structural hash of id.
func (s *Store) Hash(id NodeID) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.nodes[id].hash
}

// Valid reports whether id belongs to s.
func (s *Store) Valid(id NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.validLocked(id)
}

func (s *Store) validLocked(id NodeID) bool {
	return id != InvalidNodeID && int(id) < len(s.nodes)
}

// Isomorphic reports whether a and b's subtrees are equal as labeled ordered
// trees, independent of hash equality. It is used to confirm phase-1 match
// candidates once their hashes agree (structural_hash collisions are
// possible, per spec).
func (s *Store) Isomorphic(a, b NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.isomorphicLocked(a, b)
}

func (s *Store) isomorphicLocked(a, b NodeID) bool {
	na, nb := &s.nodes[a], &s.nodes[b]

	if na.typ != nb.typ || len(na.children) != len(nb.children) {
		return false
	}

	if na.children == nil {
		return bytesEqual(na.label, nb.label)
	}

	for i := range na.children {
		if !s.isomorphicLocked(na.children[i], nb.children[i]) {
			return false
		}
	}

	return true
}

func hashLeaf(typ string, label []byte) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(typ)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(label)

	return d.Sum64()
}

func hashInterior(typ string, childHashes []uint64) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(typ)

	buf := make([]byte, 8)
	for _, h := range childHashes {
		binary.LittleEndian.PutUint64(buf, h)
		_, _ = d.Write(buf)
	}

	return d.Sum64()
}

// hashBytes renders h as a byte key for the Bloom filter, which operates on
// []byte regardless of the keyed value's native representation.
func hashBytes(h uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, h)

	return buf
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func slicesEqualNodeID(a, b []NodeID) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
