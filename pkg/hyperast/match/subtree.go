package match

import (
	"context"
	"sort"
	"time"

	"github.com/veridian-labs/hyperdiff/pkg/hyperast/mapping"
	"github.com/veridian-labs/hyperdiff/pkg/hyperast/view"
)

// SubtreeMatcher is the greedy, priority-queue driven exact-subtree matcher.
// It maps the largest isomorphic subtrees first, since large exact matches
// carry the strongest correspondence signal.
type SubtreeMatcher struct{}

// Name identifies this matcher for logging and stats.
func (SubtreeMatcher) Name() string { return "subtree" }

// Run extends m with every phase-1 match found between sv and dv.
func (SubtreeMatcher) Run(
	ctx context.Context, sv, dv *view.View, m *mapping.Mapping, opts Options,
) (Stats, error) {
	start := time.Now()
	before := m.Len()

	srcHeap := &maxHeap{}
	dstHeap := &maxHeap{}
	pushItem(srcHeap, sv, sv.Root())
	pushItem(dstHeap, dv, dv.Root())

	minHeight := int32(opts.MinHeight) //nolint:gosec // MinHeight is a small configured constant.

	for srcHeap.Len() > 0 && dstHeap.Len() > 0 {
		select {
		case <-ctx.Done():
			return Stats{Phase: "subtree", Mapped: m.Len() - before, Duration: time.Since(start)}, ctx.Err()
		default:
		}

		sh, dh := peekHeight(srcHeap), peekHeight(dstHeap)
		if sh < minHeight || dh < minHeight {
			break
		}

		switch {
		case sh > dh:
			advanceTallerSide(srcHeap, sv, m.IsSrcMapped)
		case dh > sh:
			advanceTallerSide(dstHeap, dv, m.IsDstMapped)
		default:
			matchEqualHeight(sv, dv, m, srcHeap, dstHeap)
		}
	}

	return Stats{Phase: "subtree", Mapped: m.Len() - before, Duration: time.Since(start)}, nil
}

// advanceTallerSide drains every node at the heap's top height and pushes
// its children, since the opposite heap has nothing at that height to match
// against yet.
func advanceTallerSide(h *maxHeap, v *view.View, isMapped func(view.UID) bool) {
	for _, u := range drainHeight(h) {
		if !isMapped(u) {
			pushChildren(h, v, u)
		}
	}
}

// matchEqualHeight drains both heaps of their (equal) top height, buckets
// by structural hash, and for every hash bucket present on both sides
// yields zero, one, or (via tiebreak) exactly one accepted pair.
func matchEqualHeight(sv, dv *view.View, m *mapping.Mapping, srcHeap, dstHeap *maxHeap) {
	sNodes := drainHeight(srcHeap)
	dNodes := drainHeight(dstHeap)

	sByHash := bucketByHash(sv, sNodes)
	dByHash := bucketByHash(dv, dNodes)

	accepted := make(map[view.UID]view.UID, len(sByHash))

	hashes := make([]uint64, 0, len(sByHash))
	for h := range sByHash {
		hashes = append(hashes, h)
	}

	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	for _, h := range hashes {
		dBucket, ok := dByHash[h]
		if !ok {
			continue
		}

		s, d, ok := pickBestPair(sv, dv, m, sByHash[h], dBucket)
		if !ok {
			continue
		}

		linkSubtree(sv, dv, m, s, d)
		accepted[s] = d
	}

	for _, s := range sNodes {
		if _, ok := accepted[s]; !ok && !m.IsSrcMapped(s) {
			pushChildren(srcHeap, sv, s)
		}
	}

	for _, d := range dNodes {
		if !isAcceptedDst(accepted, d) && !m.IsDstMapped(d) {
			pushChildren(dstHeap, dv, d)
		}
	}
}

func isAcceptedDst(accepted map[view.UID]view.UID, d view.UID) bool {
	for _, v := range accepted {
		if v == d {
			return true
		}
	}

	return false
}

func bucketByHash(v *view.View, nodes []view.UID) map[uint64][]view.UID {
	buckets := make(map[uint64][]view.UID, len(nodes))
	for _, u := range nodes {
		h := v.Hash(u)
		buckets[h] = append(buckets[h], u)
	}

	return buckets
}

type candidatePair struct {
	s, d view.UID
}

// pickBestPair confirms isomorphism (deep equality, resolving any hash
// collision) across the cross product of sBucket×dBucket and, among the
// isomorphic candidates, returns the single best pair to accept.
func pickBestPair(sv, dv *view.View, m *mapping.Mapping, sBucket, dBucket []view.UID) (view.UID, view.UID, bool) {
	st := sv.Store()

	var valid []candidatePair

	for _, s := range sBucket {
		for _, d := range dBucket {
			if st.Isomorphic(sv.NodeID(s), dv.NodeID(d)) {
				valid = append(valid, candidatePair{s: s, d: d})
			}
		}
	}

	if len(valid) == 0 {
		return 0, 0, false
	}

	best := valid[0]

	for _, c := range valid[1:] {
		if betterCandidate(sv, dv, m, c, best) {
			best = c
		}
	}

	return best.s, best.d, true
}

// betterCandidate orders candidates by higher parent dice, then smaller
// post-order position difference, then lexicographic id.
func betterCandidate(sv, dv *view.View, m *mapping.Mapping, a, b candidatePair) bool {
	da, db := parentDice(sv, dv, m, a), parentDice(sv, dv, m, b)
	if da != db {
		return da > db
	}

	diffA, diffB := absUID(a.s, a.d), absUID(b.s, b.d)
	if diffA != diffB {
		return diffA < diffB
	}

	if a.s != b.s {
		return a.s < b.s
	}

	return a.d < b.d
}

func parentDice(sv, dv *view.View, m *mapping.Mapping, c candidatePair) float64 {
	ps, pd := sv.Parent(c.s), dv.Parent(c.d)
	if ps == view.NoParent || pd == view.NoParent {
		return 0
	}

	return dice(sv, dv, m, ps, pd)
}

func absUID(a, b view.UID) int {
	d := int(a) - int(b)
	if d < 0 {
		return -d
	}

	return d
}

// linkSubtree links (s, d) and, since hash equality has been confirmed
// isomorphic, forces the link of every corresponding descendant pair via an
// explicit stack (no recursion, per the core's traversal design note).
func linkSubtree(sv, dv *view.View, m *mapping.Mapping, s, d view.UID) {
	stack := []candidatePair{{s: s, d: d}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := m.Link(top.s, top.d); err != nil {
			// Already linked by a deeper recursive call in a prior
			// acceptance this round; isomorphism guarantees idempotence.
			continue
		}

		sc, dc := sv.Children(top.s), dv.Children(top.d)
		for i := range sc {
			stack = append(stack, candidatePair{s: sc[i], d: dc[i]})
		}
	}
}
