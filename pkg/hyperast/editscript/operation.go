package editscript

import "github.com/veridian-labs/hyperdiff/pkg/hyperast/store"

// Kind tags an Operation's variant.
type Kind int

const (
	Insert Kind = iota
	Delete
	Update
	Move
)

// String names a Kind for logging.
func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	case Update:
		return "update"
	case Move:
		return "move"
	default:
		return "unknown"
	}
}

// Operation is one step of an edit script. Both trees share a single Node
// Store, so an inserted node is referenced by its existing destination
// NodeID rather than requiring a freshly allocated one.
//
// When a node both changes label and parent, its Update is emitted before
// its Move: a consumer applying the script in order always sees the
// relabel happen at the node's old position.
type Operation struct {
	Kind Kind

	// Node is the subject: the destination node for Insert, the source
	// node for Delete/Update/Move.
	Node store.NodeID

	// Parent and Position apply to Insert and Move: the destination
	// parent to attach under, and the position among its children.
	Parent   store.NodeID
	Position int

	// NewLabel applies to Update: the label to adopt, taken from the
	// destination node.
	NewLabel []byte
}
