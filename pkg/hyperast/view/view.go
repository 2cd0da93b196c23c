// Package view implements per-diff-run decompressed tree views: mutable
// traversal metadata (post-order uid, parent, depth, height, first
// descendant) layered over an immutable HyperAST subtree without cloning
// its content. Each occurrence of a shared subtree gets its own uid, even
// when multiple occurrences share the same underlying store.NodeID.
package view

import (
	"fmt"

	"github.com/veridian-labs/hyperdiff/pkg/hyperast/store"
)

// UID is a dense index in [0, n) assigned in left-to-right post-order. A
// node's uid is always greater than any of its descendants' uids.
type UID int32

// NoParent is the sentinel parent of a view's root.
const NoParent UID = -1

// View is a read-only-after-construction decompression of a single subtree
// of a Store. Arrays are indexed by UID.
type View struct {
	store *store.Store

	origID   []store.NodeID // occurrence uid -> underlying content-addressed node
	parent   []UID
	children [][]UID
	firstOf  []UID // first (smallest) uid among this node's descendants; itself if a leaf
	depth    []int32
	height   []int32
	root     UID
}

// Decompress materializes a View over the subtree rooted at root, in a
// single left-to-right post-order traversal.
func Decompress(s *store.Store, root store.NodeID) (*View, error) {
	if !s.Valid(root) {
		return nil, fmt.Errorf("%w: %d", store.ErrInvalidNode, root)
	}

	order, parentPush, childPush := pushOrderTraverse(s, root)
	n := len(order)

	reverseInPlace(order, parentPush, childPush)

	v := &View{
		store:    s,
		origID:   order,
		parent:   make([]UID, n),
		children: make([][]UID, n),
		firstOf:  make([]UID, n),
		depth:    make([]int32, n),
		height:   make([]int32, n),
		root:     UID(n - 1),
	}

	for uid := range n {
		if parentPush[uid] == -1 {
			v.parent[uid] = NoParent
		} else {
			v.parent[uid] = UID(n - 1 - parentPush[uid])
		}

		kids := childPush[uid]
		if len(kids) > 0 {
			childUIDs := make([]UID, len(kids))
			for i, cp := range kids {
				childUIDs[len(kids)-1-i] = UID(n - 1 - cp)
			}

			v.children[uid] = childUIDs
		}

		v.height[uid] = int32(s.Height(order[uid])) //nolint:gosec // heights are small, bounded by tree depth.
	}

	for uid := range n {
		if len(v.children[uid]) == 0 {
			v.firstOf[uid] = UID(uid)
		} else {
			v.firstOf[uid] = v.firstOf[v.children[uid][0]]
		}
	}

	for uid := n - 1; uid >= 0; uid-- {
		if v.parent[uid] == NoParent {
			v.depth[uid] = 0
		} else {
			v.depth[uid] = v.depth[v.parent[uid]] + 1
		}
	}

	return v, nil
}

type pushFrame struct {
	id     store.NodeID
	parent int
}

// pushOrderTraverse performs a modified preorder (children pushed left to
// right, so the stack pops right-to-left) whose output, reversed, is the
// left-to-right postorder. Returns, for each push-order index: the node id,
// its parent's push-order index (-1 for the root), and its children's
// push-order indices in pop order, i.e. right to left.
func pushOrderTraverse(s *store.Store, root store.NodeID) (order []store.NodeID, parentPush []int, childPush [][]int) {
	stack := []pushFrame{{id: root, parent: -1}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		pushIdx := len(order)
		order = append(order, f.id)
		parentPush = append(parentPush, f.parent)
		childPush = append(childPush, nil)

		if f.parent != -1 {
			childPush[f.parent] = append(childPush[f.parent], pushIdx)
		}

		for _, c := range s.Children(f.id) {
			stack = append(stack, pushFrame{id: c, parent: pushIdx})
		}
	}

	return order, parentPush, childPush
}

func reverseInPlace(order []store.NodeID, parentPush []int, childPush [][]int) {
	n := len(order)
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
		parentPush[i], parentPush[j] = parentPush[j], parentPush[i]
		childPush[i], childPush[j] = childPush[j], childPush[i]
	}
}

// Root returns the uid of the decompressed subtree's root.
func (v *View) Root() UID { return v.root }

// Len returns the number of nodes (occurrences) in the view.
func (v *View) Len() int { return len(v.origID) }

// NodeID returns the underlying content-addressed node for uid.
func (v *View) NodeID(uid UID) store.NodeID { return v.origID[uid] }

// Parent returns uid's parent, or NoParent if uid is the view's root.
func (v *View) Parent(uid UID) UID { return v.parent[uid] }

// Children returns uid's children in document order. Empty for leaves.
func (v *View) Children(uid UID) []UID { return v.children[uid] }

// IsLeaf reports whether uid has no children.
func (v *View) IsLeaf(uid UID) bool { return len(v.children[uid]) == 0 }

// Depth returns uid's depth, the root being depth 0.
func (v *View) Depth(uid UID) int32 { return v.depth[uid] }

// Height returns uid's height; leaves have height 1.
func (v *View) Height(uid UID) int32 { return v.height[uid] }

// FirstDescendant returns the smallest uid in uid's subtree (itself, for a
// leaf). Together with uid itself (always its subtree's largest uid, by the
// post-order invariant) this bounds the contiguous uid range of the subtree.
func (v *View) FirstDescendant(uid UID) UID { return v.firstOf[uid] }

// Type returns the node type symbol of uid's underlying content.
func (v *View) Type(uid UID) string { return v.store.Type(v.origID[uid]) }

// Label returns the surface label of uid's underlying content, or nil.
func (v *View) Label(uid UID) []byte { return v.store.Label(v.origID[uid]) }

// Size returns the subtree node count of uid's underlying content.
func (v *View) Size(uid UID) uint32 { return v.store.Size(v.origID[uid]) }

// Hash returns the structural hash of uid's underlying content.
func (v *View) Hash(uid UID) uint64 { return v.store.Hash(v.origID[uid]) }

// Store returns the Store this view was decompressed from.
func (v *View) Store() *store.Store { return v.store }

// Descendants iterates uid's strict descendants in ascending uid order
// (children before grandparents), i.e. the half-open range
// [FirstDescendant(uid), uid).
func (v *View) Descendants(uid UID, yield func(UID) bool) {
	for d := v.firstOf[uid]; d < uid; d++ {
		if !yield(d) {
			return
		}
	}
}

// PreOrderPosition returns uid's rank among its parent's children (0-based),
// or 0 if uid has no parent.
func (v *View) PreOrderPosition(uid UID) int {
	parent := v.parent[uid]
	if parent == NoParent {
		return 0
	}

	for i, c := range v.children[parent] {
		if c == uid {
			return i
		}
	}

	return 0
}
