package match

import "github.com/veridian-labs/hyperdiff/pkg/hyperast/view"

// dice computes the dice coefficient of already-mapped descendants between
// candidate src node s (in sv) and candidate dst node d (in dv):
//
//	dice(s, d) = 2·|{x ∈ desc(s) : dst_of(x) ∈ desc(d)}| / (|desc(s)| + |desc(d)|)
//
// desc(·) excludes the node itself. Returns 0 if both subtrees are leaves
// (empty denominator).
func dice(sv, dv *view.View, m mappingReader, s, d view.UID) float64 {
	descS := int(s) - int(sv.FirstDescendant(s))
	descD := int(d) - int(dv.FirstDescendant(d))

	if descS+descD == 0 {
		return 0
	}

	dLo, dHi := dv.FirstDescendant(d), d // desc(d) is the half-open range [dLo, dHi)

	common := 0

	sv.Descendants(s, func(x view.UID) bool {
		if dst, ok := m.DstOf(x); ok && dst >= dLo && dst < dHi {
			common++
		}

		return true
	})

	return 2 * float64(common) / float64(descS+descD)
}

// mappingReader is the subset of *mapping.Mapping the matchers need for
// read-only candidate scoring, kept minimal to avoid an import cycle between
// match and its callers' test doubles.
type mappingReader interface {
	DstOf(s view.UID) (view.UID, bool)
	SrcOf(d view.UID) (view.UID, bool)
	IsSrcMapped(s view.UID) bool
	IsDstMapped(d view.UID) bool
}
