package match

// Options holds the tuning parameters recognized by the matcher pipeline.
// Zero values from an unconfigured Options must never be used directly —
// callers should start from DefaultOptions().
type Options struct {
	// MinHeight is phase 1's height floor: subtrees strictly below this are
	// never proposed as exact matches.
	MinHeight int
	// SimThreshold is phase 2's dice-coefficient floor for accepting a
	// container match.
	SimThreshold float64
	// SizeThreshold bounds |desc| for which phase-2 recovery scores
	// candidates by local dice; above it, recovery only links exact-label
	// leaf pairs.
	SizeThreshold int
	// LabelSimThreshold is phase 3's floor on label similarity.
	LabelSimThreshold float64
	// EnablePhase3 toggles the hybrid last-chance matcher.
	EnablePhase3 bool
	// LabelWeight (α) and PositionWeight (β) weight phase 3's composite
	// score: score = α·label_sim + β·position_sim.
	LabelWeight    float64
	PositionWeight float64
}

const (
	defaultMinHeight         = 2
	defaultSimThreshold      = 0.5
	defaultSizeThreshold     = 100
	defaultLabelSimThreshold = 0.5
	defaultLabelWeight       = 0.7
	defaultPositionWeight    = 0.3
	defaultEnablePhase3      = true
)

// DefaultOptions returns the recognized options at their documented
// defaults.
func DefaultOptions() Options {
	return Options{
		MinHeight:         defaultMinHeight,
		SimThreshold:      defaultSimThreshold,
		SizeThreshold:     defaultSizeThreshold,
		LabelSimThreshold: defaultLabelSimThreshold,
		EnablePhase3:      defaultEnablePhase3,
		LabelWeight:       defaultLabelWeight,
		PositionWeight:    defaultPositionWeight,
	}
}
