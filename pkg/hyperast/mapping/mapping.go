// Package mapping implements the bidirectional partial injective mapping
// between a source and destination decompressed view, as produced and
// consumed by the matcher pipeline and the edit-script generator.
package mapping

import (
	"errors"

	"github.com/veridian-labs/hyperdiff/pkg/hyperast/view"
)

// ErrAlreadyMapped is returned by Link when either side of the requested
// pair is already mapped. A caller seeing this during matching has found a
// matcher bug: matchers must never attempt to relink an already mapped node.
var ErrAlreadyMapped = errors.New("hyperast/mapping: node already mapped")

const unmapped = view.UID(-1)

// Pair is a single (source uid, destination uid) correspondence.
type Pair struct {
	Src view.UID
	Dst view.UID
}

// Mapping is a partial bijection between source and destination view uids:
// both projections are injective. Implemented as two uid-indexed arrays for
// O(1) amortized lookup in either direction.
type Mapping struct {
	srcToDst []view.UID
	dstToSrc []view.UID
	size     int
}

// New creates an empty Mapping sized for views with srcLen and dstLen nodes.
func New(srcLen, dstLen int) *Mapping {
	m := &Mapping{
		srcToDst: make([]view.UID, srcLen),
		dstToSrc: make([]view.UID, dstLen),
	}

	for i := range m.srcToDst {
		m.srcToDst[i] = unmapped
	}

	for i := range m.dstToSrc {
		m.dstToSrc[i] = unmapped
	}

	return m
}

// Link adds the pair (s, d), extending the mapping. It never removes an
// existing pair: calling it when either side is already mapped is a matcher
// bug and returns ErrAlreadyMapped without mutating the mapping.
func (m *Mapping) Link(s, d view.UID) error {
	if m.srcToDst[s] != unmapped || m.dstToSrc[d] != unmapped {
		return ErrAlreadyMapped
	}

	m.srcToDst[s] = d
	m.dstToSrc[d] = s
	m.size++

	return nil
}

// DstOf returns the destination partner of s, if mapped.
func (m *Mapping) DstOf(s view.UID) (view.UID, bool) {
	d := m.srcToDst[s]

	return d, d != unmapped
}

// SrcOf returns the source partner of d, if mapped.
func (m *Mapping) SrcOf(d view.UID) (view.UID, bool) {
	s := m.dstToSrc[d]

	return s, s != unmapped
}

// IsSrcMapped reports whether s has a destination partner.
func (m *Mapping) IsSrcMapped(s view.UID) bool { return m.srcToDst[s] != unmapped }

// IsDstMapped reports whether d has a source partner.
func (m *Mapping) IsDstMapped(d view.UID) bool { return m.dstToSrc[d] != unmapped }

// Len returns the number of mapped pairs.
func (m *Mapping) Len() int { return m.size }

// Pairs returns all mapped pairs, ordered deterministically by ascending
// source uid (the backing array is already indexed that way).
func (m *Mapping) Pairs() []Pair {
	pairs := make([]Pair, 0, m.size)

	for s, d := range m.srcToDst {
		if d != unmapped {
			pairs = append(pairs, Pair{Src: view.UID(s), Dst: d}) //nolint:gosec // s bounded by slice length.
		}
	}

	return pairs
}
