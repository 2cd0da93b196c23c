package editscript

import "github.com/veridian-labs/hyperdiff/pkg/hyperast/view"

type alignedChild struct {
	sChild view.UID
	dChild view.UID
	dPos   int
}

// alignChildren reorders the mapped children of a (ps, pd) pair to match
// pd's child order: every mapped child pair is a candidate, and the subset
// already in relative order (the longest run consistent with pd's
// positions) is left alone, while the rest move to their required
// position. This is equivalent to a longest-common-subsequence alignment
// of the two children's mapped partners, since one side's order is held
// fixed.
func alignChildren(sv, dv *view.View, m mappingReader, ps, pd view.UID, emit func(Operation)) {
	sKids := sv.Children(ps)
	dKids := dv.Children(pd)

	dPos := make(map[view.UID]int, len(dKids))
	for i, d := range dKids {
		dPos[d] = i
	}

	var seq []alignedChild

	for _, sc := range sKids {
		dc, ok := m.DstOf(sc)
		if !ok {
			continue
		}

		pos, ok := dPos[dc]
		if !ok {
			continue
		}

		seq = append(seq, alignedChild{sChild: sc, dChild: dc, dPos: pos})
	}

	if len(seq) < 2 {
		return
	}

	keep := longestIncreasingRun(seq)

	for i, c := range seq {
		if keep[i] {
			continue
		}

		emit(Operation{
			Kind:     Move,
			Node:     sv.NodeID(c.sChild),
			Parent:   dv.NodeID(pd),
			Position: c.dPos,
		})
	}
}

// longestIncreasingRun finds the subsequence of seq, ordered by seq index
// (src document order), whose dPos values strictly increase. Members of
// that subsequence are already correctly ordered relative to one another
// and need no Move; all others do.
func longestIncreasingRun(seq []alignedChild) []bool {
	n := len(seq)
	length := make([]int, n)
	prev := make([]int, n)

	bestIdx, bestLen := -1, 0

	for i := range seq {
		length[i] = 1
		prev[i] = -1

		for j := range i {
			if seq[j].dPos < seq[i].dPos && length[j]+1 > length[i] {
				length[i] = length[j] + 1
				prev[i] = j
			}
		}

		if length[i] > bestLen {
			bestLen = length[i]
			bestIdx = i
		}
	}

	keep := make([]bool, n)
	for i := bestIdx; i != -1; i = prev[i] {
		keep[i] = true
	}

	return keep
}
