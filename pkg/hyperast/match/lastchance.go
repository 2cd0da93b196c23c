package match

import (
	"bytes"
	"context"
	"sort"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/veridian-labs/hyperdiff/pkg/alg/levenshtein"
	"github.com/veridian-labs/hyperdiff/pkg/hyperast/mapping"
	"github.com/veridian-labs/hyperdiff/pkg/hyperast/view"
)

// LastChanceMatcher recovers still-unmapped leaves whose parents are
// already mapped, scored by a composite of label similarity and
// sibling-position similarity. It only considers direct unmapped leaf
// children of an already-mapped parent pair, never unmapped regions
// further down the tree.
type LastChanceMatcher struct{}

// Name identifies this matcher for logging and stats.
func (LastChanceMatcher) Name() string { return "lastchance" }

// Run extends m with every phase-3 match found between sv and dv.
func (LastChanceMatcher) Run(
	ctx context.Context, sv, dv *view.View, m *mapping.Mapping, opts Options,
) (Stats, error) {
	start := time.Now()
	before := m.Len()

	if !opts.EnablePhase3 {
		return Stats{Phase: "lastchance", Mapped: 0, Duration: time.Since(start)}, nil
	}

	lev := &levenshtein.Context{}

	// Snapshot mapped pairs from phases 1/2 before this phase starts; newly
	// linked leaf pairs do not themselves seed further parent-pair scans.
	for i, pair := range m.Pairs() {
		if i%cancelCheckStride == 0 {
			select {
			case <-ctx.Done():
				return Stats{Phase: "lastchance", Mapped: m.Len() - before, Duration: time.Since(start)}, ctx.Err()
			default:
			}
		}

		matchLeavesUnderParents(sv, dv, m, lev, pair.Src, pair.Dst, opts)
	}

	return Stats{Phase: "lastchance", Mapped: m.Len() - before, Duration: time.Since(start)}, nil
}

func matchLeavesUnderParents(
	sv, dv *view.View, m *mapping.Mapping, lev *levenshtein.Context, ps, pd view.UID, opts Options,
) {
	sLeaves := unmappedLeafChildren(sv, m.IsSrcMapped, ps)
	dLeaves := unmappedLeafChildren(dv, m.IsDstMapped, pd)

	if len(sLeaves) == 0 || len(dLeaves) == 0 {
		return
	}

	sByType := groupByType(sv, sLeaves)
	dByType := groupByType(dv, dLeaves)

	for typ, sGroup := range sByType {
		dGroup, ok := dByType[typ]
		if !ok {
			continue
		}

		greedyBipartite(sv, dv, m, lev, sGroup, dGroup, opts)
	}
}

type scoredPair struct {
	s, d  view.UID
	score float64
}

// greedyBipartite computes a maximum-weight matching over a parent pair's
// same-type unmapped leaves. Greedy-by-score is an acceptable substitute
// for the Hungarian method on these small sets; ties are broken by position
// then id.
func greedyBipartite(
	sv, dv *view.View, m *mapping.Mapping, lev *levenshtein.Context, sGroup, dGroup []view.UID, opts Options,
) {
	scored := make([]scoredPair, 0, len(sGroup)*len(dGroup))

	for _, s := range sGroup {
		for _, d := range dGroup {
			ls := labelSim(lev, sv.Label(s), dv.Label(d))
			if ls < opts.LabelSimThreshold {
				continue
			}

			ps := positionSim(sGroup, dGroup, s, d)
			score := opts.LabelWeight*ls + opts.PositionWeight*ps
			scored = append(scored, scoredPair{s: s, d: d, score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool { return scoredLess(scored[i], scored[j]) })

	usedS := make(map[view.UID]bool, len(sGroup))
	usedD := make(map[view.UID]bool, len(dGroup))

	for _, sp := range scored {
		if usedS[sp.s] || usedD[sp.d] {
			continue
		}

		if err := m.Link(sp.s, sp.d); err == nil {
			usedS[sp.s] = true
			usedD[sp.d] = true
		}
	}
}

// scoredLess orders the highest score first, then the closest post-order
// position, then lexicographically by (s, d).
func scoredLess(a, b scoredPair) bool {
	if a.score != b.score {
		return a.score > b.score
	}

	pa, pb := absUID(a.s, a.d), absUID(b.s, b.d)
	if pa != pb {
		return pa < pb
	}

	if a.s != b.s {
		return a.s < b.s
	}

	return a.d < b.d
}

func unmappedLeafChildren(v *view.View, isMapped func(view.UID) bool, parent view.UID) []view.UID {
	var out []view.UID

	for _, c := range v.Children(parent) {
		if v.IsLeaf(c) && !isMapped(c) {
			out = append(out, c)
		}
	}

	return out
}

func groupByType(v *view.View, nodes []view.UID) map[string][]view.UID {
	out := make(map[string][]view.UID, len(nodes))
	for _, u := range nodes {
		typ := v.Type(u)
		out[typ] = append(out[typ], u)
	}

	return out
}

// labelSim scores label similarity: 1 if byte-equal, else one minus
// normalized Levenshtein distance when both labels are nonempty and at
// least one looks word-like, else 0.
func labelSim(lev *levenshtein.Context, a, b []byte) float64 {
	if bytes.Equal(a, b) {
		return 1
	}

	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	if !isWordLike(a) && !isWordLike(b) {
		return 0
	}

	sa, sb := string(a), string(b)

	maxLen := max(utf8.RuneCountInString(sa), utf8.RuneCountInString(sb))
	if maxLen == 0 {
		return 1
	}

	dist := lev.Distance(sa, sb)

	return 1 - float64(dist)/float64(maxLen)
}

func isWordLike(label []byte) bool {
	for _, r := range string(label) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

// positionSim scores one minus the normalized difference in rank among
// unmapped same-type siblings under the node's parent. sGroup/dGroup are
// already scoped to exactly those siblings, in document order, so rank is
// simply the index within the group.
func positionSim(sGroup, dGroup []view.UID, s, d view.UID) float64 {
	rs, rd := rankIn(sGroup, s), rankIn(dGroup, d)

	denom := len(sGroup)
	if len(dGroup) > denom {
		denom = len(dGroup)
	}

	if denom == 0 {
		return 1
	}

	return 1 - float64(absInt(rs-rd))/float64(denom)
}

func rankIn(group []view.UID, u view.UID) int {
	for i, x := range group {
		if x == u {
			return i
		}
	}

	return 0
}
