package match

import (
	"bytes"
	"context"
	"time"

	"github.com/veridian-labs/hyperdiff/pkg/alg/mapx"
	"github.com/veridian-labs/hyperdiff/pkg/hyperast/mapping"
	"github.com/veridian-labs/hyperdiff/pkg/hyperast/view"
)

// BottomUpMatcher matches containers and statements by dice coefficient of
// already-mapped descendants, with an optional recovery step that
// constrained-top-down-matches still-unmapped children.
type BottomUpMatcher struct{}

// Name identifies this matcher for logging and stats.
func (BottomUpMatcher) Name() string { return "bottomup" }

// Run extends m with every phase-2 match found between sv and dv. It
// traverses sv in left-to-right post-order (ascending uid, by construction
// of view.Decompress), so every source node's descendants have already had
// their chance to be mapped by phase 1 or an earlier iteration of this loop.
func (BottomUpMatcher) Run(
	ctx context.Context, sv, dv *view.View, m *mapping.Mapping, opts Options,
) (Stats, error) {
	start := time.Now()
	before := m.Len()

	for s := view.UID(0); s < view.UID(sv.Len()); s++ { //nolint:gosec // sv.Len() bounded by source tree size.
		if s%cancelCheckStride == 0 {
			select {
			case <-ctx.Done():
				return Stats{Phase: "bottomup", Mapped: m.Len() - before, Duration: time.Since(start)}, ctx.Err()
			default:
			}
		}

		if m.IsSrcMapped(s) || sv.IsLeaf(s) {
			continue
		}

		candidates := candidateSet(sv, dv, m, s)
		if len(candidates) == 0 {
			continue
		}

		d := bestContainer(sv, dv, m, s, candidates)
		if dice(sv, dv, m, s, d) < opts.SimThreshold {
			continue
		}

		if err := m.Link(s, d); err != nil {
			continue
		}

		recoverDescendants(sv, dv, m, s, d, opts)
	}

	return Stats{Phase: "bottomup", Mapped: m.Len() - before, Duration: time.Since(start)}, nil
}

// cancelCheckStride bounds how often the cooperative cancellation check
// runs; checking every uid would dominate runtime on large trees.
const cancelCheckStride = 256

// candidateSet builds C(s): every unmapped d of the same type as s that is
// an ancestor, in dv, of some mapped partner of a descendant of s. A
// candidate may be reachable from more than one descendant's ancestor
// chain, so the raw walk is deduplicated with mapx.Unique.
func candidateSet(sv, dv *view.View, m *mapping.Mapping, s view.UID) []view.UID {
	typ := sv.Type(s)

	var raw []view.UID

	sv.Descendants(s, func(x view.UID) bool {
		dst, ok := m.DstOf(x)
		if !ok {
			return true
		}

		for anc := dv.Parent(dst); anc != view.NoParent; anc = dv.Parent(anc) {
			if !m.IsDstMapped(anc) && dv.Type(anc) == typ {
				raw = append(raw, anc)
			}
		}

		return true
	})

	return mapx.Unique(raw)
}

// bestContainer picks argmax_d dice(s, d) over candidates, breaking ties by
// (i) smaller tree-size difference, (ii) closer post-order id difference,
// (iii) lexicographic id.
func bestContainer(sv, dv *view.View, m *mapping.Mapping, s view.UID, candidates []view.UID) view.UID {
	best := candidates[0]
	bestDice := dice(sv, dv, m, s, best)

	for _, cand := range candidates[1:] {
		candDice := dice(sv, dv, m, s, cand)
		if betterContainer(sv, dv, s, cand, best, candDice, bestDice) {
			best, bestDice = cand, candDice
		}
	}

	return best
}

func betterContainer(sv, dv *view.View, s, cand, best view.UID, candDice, bestDice float64) bool {
	if candDice != bestDice {
		return candDice > bestDice
	}

	candSizeDiff := absInt(int(sv.Size(s)) - int(dv.Size(cand)))
	bestSizeDiff := absInt(int(sv.Size(s)) - int(dv.Size(best)))

	if candSizeDiff != bestSizeDiff {
		return candSizeDiff < bestSizeDiff
	}

	candPos, bestPos := absUID(s, cand), absUID(s, best)
	if candPos != bestPos {
		return candPos < bestPos
	}

	return cand < best
}

// recoverDescendants links, among still-unmapped descendants of s and d
// with matching type, the best-scoring pair. Below opts.SizeThreshold it
// scores by local dice (the "optimal" path); above it, it falls back to
// exact-label leaf matching only, to keep the O(|desc(s)|·|desc(d)|) scan
// affordable on large containers.
func recoverDescendants(sv, dv *view.View, m *mapping.Mapping, s, d view.UID, opts Options) {
	full := int(s)-int(sv.FirstDescendant(s)) <= opts.SizeThreshold

	sv.Descendants(s, func(sp view.UID) bool {
		if m.IsSrcMapped(sp) {
			return true
		}

		best, bestScore, found := bestRecoveryCandidate(sv, dv, m, sp, d, full)
		if !found {
			return true
		}

		exactLeaf := sv.IsLeaf(sp) && dv.IsLeaf(best) && bytes.Equal(sv.Label(sp), dv.Label(best))
		if exactLeaf || bestScore >= opts.SimThreshold {
			_ = m.Link(sp, best)
		}

		return true
	})
}

func bestRecoveryCandidate(
	sv, dv *view.View, m *mapping.Mapping, sp, d view.UID, full bool,
) (best view.UID, bestScore float64, found bool) {
	typ := sv.Type(sp)
	bestScore = -1

	dv.Descendants(d, func(dp view.UID) bool {
		if m.IsDstMapped(dp) || dv.Type(dp) != typ {
			return true
		}

		exactLeaf := sv.IsLeaf(sp) && dv.IsLeaf(dp) && bytes.Equal(sv.Label(sp), dv.Label(dp))

		var score float64

		switch {
		case exactLeaf:
			score = 1
		case full:
			score = dice(sv, dv, m, sp, dp)
		default:
			return true
		}

		if score > bestScore {
			bestScore, best, found = score, dp, true
		}

		return true
	})

	return best, bestScore, found
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}

	return v
}
