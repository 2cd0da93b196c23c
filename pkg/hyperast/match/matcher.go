package match

import (
	"context"
	"time"

	"github.com/veridian-labs/hyperdiff/pkg/hyperast/mapping"
	"github.com/veridian-labs/hyperdiff/pkg/hyperast/view"
)

// Stats reports one matcher phase's contribution: how many pairs it added
// and how long it took. These feed the engine's always-populated stats
// output.
type Stats struct {
	Phase    string
	Mapped   int
	Duration time.Duration
}

// Matcher is the common "extend-mapping" capability every phase implements:
// a tagged/interface composition rather than deep inheritance.
// Implementations must only add pairs to m, never remove any.
type Matcher interface {
	Name() string
	Run(ctx context.Context, sv, dv *view.View, m *mapping.Mapping, opts Options) (Stats, error)
}

// Pipeline is the fixed subtree/bottom-up/last-chance matcher composition.
// The phase composition is a fixed list — no dynamic registration is
// required.
func Pipeline() []Matcher {
	return []Matcher{
		SubtreeMatcher{},
		BottomUpMatcher{},
		LastChanceMatcher{},
	}
}
