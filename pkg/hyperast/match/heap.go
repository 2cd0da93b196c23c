package match

import (
	"container/heap"

	"github.com/veridian-labs/hyperdiff/pkg/hyperast/view"
)

// heapItem is a candidate subtree root waiting to be matched by height, used
// by the subtree matcher's two max-heaps. container/heap is the idiomatic
// stdlib priority queue; none of the pack's data-structure packages cover
// it (see DESIGN.md).
type heapItem struct {
	uid    view.UID
	height int32
}

// maxHeap is a max-heap of heapItem ordered by height, breaking ties by
// ascending uid for determinism.
type maxHeap []heapItem

func (h maxHeap) Len() int { return len(h) }
func (h maxHeap) Less(i, j int) bool {
	if h[i].height != h[j].height {
		return h[i].height > h[j].height
	}

	return h[i].uid < h[j].uid
}
func (h maxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *maxHeap) Push(x any) { *h = append(*h, x.(heapItem)) } //nolint:forcetypeassert // container/heap contract.

func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]

	return item
}

// peekHeight returns the height of the top item, or -1 if empty.
func peekHeight(h *maxHeap) int32 {
	if h.Len() == 0 {
		return -1
	}

	return (*h)[0].height
}

// drainHeight pops every item at the heap's current top height and returns
// their uids.
func drainHeight(h *maxHeap) []view.UID {
	if h.Len() == 0 {
		return nil
	}

	top := (*h)[0].height

	var drained []view.UID

	for h.Len() > 0 && (*h)[0].height == top {
		item := heap.Pop(h).(heapItem) //nolint:forcetypeassert // container/heap contract.
		drained = append(drained, item.uid)
	}

	return drained
}

func pushItem(h *maxHeap, v *view.View, uid view.UID) {
	heap.Push(h, heapItem{uid: uid, height: v.Height(uid)})
}

func pushChildren(h *maxHeap, v *view.View, uid view.UID) {
	for _, c := range v.Children(uid) {
		pushItem(h, v, c)
	}
}
