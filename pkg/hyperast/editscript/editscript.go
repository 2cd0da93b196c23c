// Package editscript converts a final mapping between two decompressed
// views into a Chawathe-style ordered sequence of insert, delete, update,
// and move operations.
package editscript

import (
	"bytes"
	"context"

	"github.com/veridian-labs/hyperdiff/pkg/hyperast/view"
)

// mappingReader is the read-only subset of *mapping.Mapping this package
// needs, kept minimal so tests can supply a fake without an import cycle.
type mappingReader interface {
	DstOf(s view.UID) (view.UID, bool)
	SrcOf(d view.UID) (view.UID, bool)
	IsSrcMapped(s view.UID) bool
	IsDstMapped(d view.UID) bool
}

// cancelCheckStride bounds how often Generate checks ctx between op
// emissions.
const cancelCheckStride = 256

// Generate produces the edit script transforming the tree behind sv into
// the tree behind dv, given the final mapping m. It never mutates sv, dv,
// or m.
func Generate(ctx context.Context, sv, dv *view.View, m mappingReader) ([]Operation, error) {
	var ops []Operation

	order := bfsOrder(dv)

	if err := alignAndUpdate(ctx, sv, dv, m, order, &ops); err != nil {
		return nil, err
	}

	if err := insertUnmapped(ctx, dv, m, &ops); err != nil {
		return nil, err
	}

	if err := deleteUnmapped(ctx, sv, m, &ops); err != nil {
		return nil, err
	}

	return ops, nil
}

// bfsOrder returns v's nodes in breadth-first order from its root, via an
// explicit queue rather than recursion.
func bfsOrder(v *view.View) []view.UID {
	if v.Len() == 0 {
		return nil
	}

	order := make([]view.UID, 0, v.Len())
	queue := []view.UID{v.Root()}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]

		order = append(order, u)
		queue = append(queue, v.Children(u)...)
	}

	return order
}

// alignAndUpdate implements phase 1: for every mapped (s, d) pair visited
// in breadth-first order of D, emit Update on label mismatch and Move when
// s's actual parent disagrees with the parent required by d's mapped
// parent, then align each distinct parent pair's children order once.
func alignAndUpdate(ctx context.Context, sv, dv *view.View, m mappingReader, order []view.UID, ops *[]Operation) error {
	alignedParents := make(map[view.UID]bool)

	for i, d := range order {
		if i%cancelCheckStride == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		s, ok := m.SrcOf(d)
		if !ok {
			continue
		}

		if !bytes.Equal(sv.Label(s), dv.Label(d)) {
			*ops = append(*ops, Operation{Kind: Update, Node: sv.NodeID(s), NewLabel: dv.Label(d)})
		}

		pd := dv.Parent(d)
		if pd == view.NoParent {
			continue
		}

		ps := sv.Parent(s)

		if reqParent, ok := m.SrcOf(pd); ok && ps != reqParent {
			*ops = append(*ops, Operation{
				Kind:     Move,
				Node:     sv.NodeID(s),
				Parent:   dv.NodeID(pd),
				Position: dv.PreOrderPosition(d),
			})

			continue
		}

		if !alignedParents[pd] {
			alignedParents[pd] = true
			alignChildren(sv, dv, m, ps, pd, func(op Operation) { *ops = append(*ops, op) })
		}
	}

	return nil
}

// insertUnmapped implements phase 2: every node of D without a source
// partner is inserted, visited in post-order (ascending uid) of D.
func insertUnmapped(ctx context.Context, dv *view.View, m mappingReader, ops *[]Operation) error {
	for d := view.UID(0); d < view.UID(dv.Len()); d++ { //nolint:gosec // dv.Len() bounded by destination tree size.
		if int(d)%cancelCheckStride == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		if m.IsDstMapped(d) {
			continue
		}

		pd := dv.Parent(d)

		op := Operation{Kind: Insert, Node: dv.NodeID(d), Position: dv.PreOrderPosition(d)}
		if pd != view.NoParent {
			op.Parent = dv.NodeID(pd)
		}

		*ops = append(*ops, op)
	}

	return nil
}

// deleteUnmapped implements phase 3: every node of S without a destination
// partner is deleted, visited in post-order (ascending uid) of S so
// children are deleted before their parents.
func deleteUnmapped(ctx context.Context, sv *view.View, m mappingReader, ops *[]Operation) error {
	for s := view.UID(0); s < view.UID(sv.Len()); s++ { //nolint:gosec // sv.Len() bounded by source tree size.
		if int(s)%cancelCheckStride == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		if m.IsSrcMapped(s) {
			continue
		}

		*ops = append(*ops, Operation{Kind: Delete, Node: sv.NodeID(s)})
	}

	return nil
}
