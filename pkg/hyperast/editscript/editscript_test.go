package editscript_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-labs/hyperdiff/pkg/hyperast/editscript"
	"github.com/veridian-labs/hyperdiff/pkg/hyperast/mapping"
	"github.com/veridian-labs/hyperdiff/pkg/hyperast/store"
	"github.com/veridian-labs/hyperdiff/pkg/hyperast/view"
)

func opsOfKind(ops []editscript.Operation, k editscript.Kind) []editscript.Operation {
	var out []editscript.Operation

	for _, op := range ops {
		if op.Kind == k {
			out = append(out, op)
		}
	}

	return out
}

func TestGenerate_IdenticalTrees_EmptyScript(t *testing.T) {
	t.Parallel()

	s := store.New()
	x := s.InsertLeaf("identifier", []byte("x"))
	y := s.InsertLeaf("identifier", []byte("y"))
	args, err := s.InsertInterior("args", []store.NodeID{x, y})
	require.NoError(t, err)
	root, err := s.InsertInterior("call", []store.NodeID{args})
	require.NoError(t, err)

	sv, err := view.Decompress(s, root)
	require.NoError(t, err)

	dv, err := view.Decompress(s, root)
	require.NoError(t, err)

	m := mapping.New(sv.Len(), dv.Len())
	for uid := view.UID(0); uid < view.UID(sv.Len()); uid++ {
		require.NoError(t, m.Link(uid, uid))
	}

	ops, err := editscript.Generate(context.Background(), sv, dv, m)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestGenerate_RelabeledLeaf_EmitsUpdateOp(t *testing.T) {
	t.Parallel()

	s := store.New()

	xSrc := s.InsertLeaf("identifier", []byte("x"))
	rootSrc, err := s.InsertInterior("call", []store.NodeID{xSrc})
	require.NoError(t, err)

	ySrc := s.InsertLeaf("identifier", []byte("y"))
	rootDst, err := s.InsertInterior("call", []store.NodeID{ySrc})
	require.NoError(t, err)

	sv, err := view.Decompress(s, rootSrc)
	require.NoError(t, err)

	dv, err := view.Decompress(s, rootDst)
	require.NoError(t, err)

	m := mapping.New(sv.Len(), dv.Len())
	require.NoError(t, m.Link(sv.Root(), dv.Root()))

	leafS := sv.Children(sv.Root())[0]
	leafD := dv.Children(dv.Root())[0]
	require.NoError(t, m.Link(leafS, leafD))

	ops, err := editscript.Generate(context.Background(), sv, dv, m)
	require.NoError(t, err)

	updates := opsOfKind(ops, editscript.Update)
	require.Len(t, updates, 1)
	assert.Equal(t, sv.NodeID(leafS), updates[0].Node)
	assert.Equal(t, []byte("y"), updates[0].NewLabel)
}

func TestGenerate_UnmappedSourceNode_EmitsDeleteOp(t *testing.T) {
	t.Parallel()

	s := store.New()

	x := s.InsertLeaf("identifier", []byte("x"))
	y := s.InsertLeaf("identifier", []byte("y"))
	rootSrc, err := s.InsertInterior("call", []store.NodeID{x, y})
	require.NoError(t, err)

	rootDst, err := s.InsertInterior("call", []store.NodeID{x})
	require.NoError(t, err)

	sv, err := view.Decompress(s, rootSrc)
	require.NoError(t, err)

	dv, err := view.Decompress(s, rootDst)
	require.NoError(t, err)

	m := mapping.New(sv.Len(), dv.Len())
	require.NoError(t, m.Link(sv.Root(), dv.Root()))

	// Map only the surviving "x" leaf; "y" is left unmapped.
	for _, sc := range sv.Children(sv.Root()) {
		if string(s.Label(sv.NodeID(sc))) == "x" {
			require.NoError(t, m.Link(sc, dv.Children(dv.Root())[0]))
		}
	}

	ops, err := editscript.Generate(context.Background(), sv, dv, m)
	require.NoError(t, err)

	deletes := opsOfKind(ops, editscript.Delete)
	require.Len(t, deletes, 1)

	yUID := sv.Children(sv.Root())[1]
	assert.Equal(t, sv.NodeID(yUID), deletes[0].Node)
}

func TestGenerate_UnmappedDestNode_EmitsInsertOp(t *testing.T) {
	t.Parallel()

	s := store.New()

	x := s.InsertLeaf("identifier", []byte("x"))
	rootSrc, err := s.InsertInterior("call", []store.NodeID{x})
	require.NoError(t, err)

	y := s.InsertLeaf("identifier", []byte("y"))
	rootDst, err := s.InsertInterior("call", []store.NodeID{x, y})
	require.NoError(t, err)

	sv, err := view.Decompress(s, rootSrc)
	require.NoError(t, err)

	dv, err := view.Decompress(s, rootDst)
	require.NoError(t, err)

	m := mapping.New(sv.Len(), dv.Len())
	require.NoError(t, m.Link(sv.Root(), dv.Root()))
	require.NoError(t, m.Link(sv.Children(sv.Root())[0], dv.Children(dv.Root())[0]))

	ops, err := editscript.Generate(context.Background(), sv, dv, m)
	require.NoError(t, err)

	inserts := opsOfKind(ops, editscript.Insert)
	require.Len(t, inserts, 1)

	yUID := dv.Children(dv.Root())[1]
	assert.Equal(t, dv.NodeID(yUID), inserts[0].Node)
	assert.Equal(t, dv.NodeID(dv.Root()), inserts[0].Parent)
}

func TestGenerate_ChildMovedToDifferentMappedParent_EmitsMoveOp(t *testing.T) {
	t.Parallel()

	s := store.New()

	leafX := s.InsertLeaf("identifier", []byte("x"))
	leafA := s.InsertLeaf("identifier", []byte("a"))
	leafY := s.InsertLeaf("identifier", []byte("y"))

	p1Src, err := s.InsertInterior("p", []store.NodeID{leafX, leafA})
	require.NoError(t, err)
	p2Src, err := s.InsertInterior("p", []store.NodeID{leafY})
	require.NoError(t, err)
	rootSrc, err := s.InsertInterior("root", []store.NodeID{p1Src, p2Src})
	require.NoError(t, err)

	p1Dst, err := s.InsertInterior("p", []store.NodeID{leafA})
	require.NoError(t, err)
	p2Dst, err := s.InsertInterior("p", []store.NodeID{leafY, leafX})
	require.NoError(t, err)
	rootDst, err := s.InsertInterior("root", []store.NodeID{p1Dst, p2Dst})
	require.NoError(t, err)

	sv, err := view.Decompress(s, rootSrc)
	require.NoError(t, err)

	dv, err := view.Decompress(s, rootDst)
	require.NoError(t, err)

	m := mapping.New(sv.Len(), dv.Len())
	require.NoError(t, m.Link(sv.Root(), dv.Root()))

	findByLabel := func(v *view.View, parent view.UID, label string) view.UID {
		for _, c := range v.Children(parent) {
			if string(v.Label(c)) == label {
				return c
			}
		}

		t.Fatalf("label %q not found under parent %d", label, parent)

		return view.NoParent
	}

	// p1/p2 are interior and unlabeled, so locate them by which leaf they contain.
	var p1SrcUID, p2SrcUID, p1DstUID, p2DstUID view.UID
	for _, c := range sv.Children(sv.Root()) {
		if len(sv.Children(c)) == 2 {
			p1SrcUID = c
		} else {
			p2SrcUID = c
		}
	}

	for _, c := range dv.Children(dv.Root()) {
		if len(dv.Children(c)) == 1 {
			p1DstUID = c
		} else {
			p2DstUID = c
		}
	}

	require.NoError(t, m.Link(p1SrcUID, p1DstUID))
	require.NoError(t, m.Link(p2SrcUID, p2DstUID))

	xSrcUID := findByLabel(sv, p1SrcUID, "x")
	aSrcUID := findByLabel(sv, p1SrcUID, "a")
	ySrcUID := findByLabel(sv, p2SrcUID, "y")

	xDstUID := findByLabel(dv, p2DstUID, "x")
	aDstUID := findByLabel(dv, p1DstUID, "a")
	yDstUID := findByLabel(dv, p2DstUID, "y")

	require.NoError(t, m.Link(xSrcUID, xDstUID))
	require.NoError(t, m.Link(aSrcUID, aDstUID))
	require.NoError(t, m.Link(ySrcUID, yDstUID))

	ops, err := editscript.Generate(context.Background(), sv, dv, m)
	require.NoError(t, err)

	moves := opsOfKind(ops, editscript.Move)
	require.Len(t, moves, 1)
	assert.Equal(t, sv.NodeID(xSrcUID), moves[0].Node)
	assert.Equal(t, dv.NodeID(p2DstUID), moves[0].Parent)
}

func TestGenerate_ReorderedSiblings_EmitsMoveForOutOfOrderChild(t *testing.T) {
	t.Parallel()

	s := store.New()

	a := s.InsertLeaf("identifier", []byte("a"))
	b := s.InsertLeaf("identifier", []byte("b"))

	rootSrc, err := s.InsertInterior("call", []store.NodeID{a, b})
	require.NoError(t, err)

	rootDst, err := s.InsertInterior("call", []store.NodeID{b, a})
	require.NoError(t, err)

	sv, err := view.Decompress(s, rootSrc)
	require.NoError(t, err)

	dv, err := view.Decompress(s, rootDst)
	require.NoError(t, err)

	m := mapping.New(sv.Len(), dv.Len())
	require.NoError(t, m.Link(sv.Root(), dv.Root()))

	for _, sc := range sv.Children(sv.Root()) {
		label := sv.Label(sc)

		for _, dc := range dv.Children(dv.Root()) {
			if string(dv.Label(dc)) == string(label) {
				require.NoError(t, m.Link(sc, dc))

				break
			}
		}
	}

	ops, err := editscript.Generate(context.Background(), sv, dv, m)
	require.NoError(t, err)

	moves := opsOfKind(ops, editscript.Move)
	require.Len(t, moves, 1)
}

func TestGenerate_CancelledContext_ReturnsError(t *testing.T) {
	t.Parallel()

	s := store.New()
	leaf := s.InsertLeaf("identifier", []byte("x"))
	root, err := s.InsertInterior("call", []store.NodeID{leaf})
	require.NoError(t, err)

	sv, err := view.Decompress(s, root)
	require.NoError(t, err)

	dv, err := view.Decompress(s, root)
	require.NoError(t, err)

	m := mapping.New(sv.Len(), dv.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ops, err := editscript.Generate(ctx, sv, dv, m)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, ops)
}
