package game_object

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGameObjectDefaults(t *testing.T) {
	obj := NewGameObject()
	assert.True(t, obj.Enabled())
	assert.Nil(t, obj.Parent())
	assert.True(t, obj.MatrixWorldNeedsUpdate())

	sx, sy, sz := obj.Scale()
	assert.Equal(t, [3]float32{1, 1, 1}, [3]float32{sx, sy, sz})

	obj.UpdateWorldMatrix(false)
	assert.False(t, obj.MatrixWorldNeedsUpdate())
	assert.Equal(t, mgl32.Ident4(), obj.WorldMatrix())
}

func TestWorldMatrixComposesParentChain(t *testing.T) {
	root := NewGameObject(WithPosition(1, 0, 0))
	child := NewGameObject(WithParent(root), WithPosition(0, 2, 0), WithScale(2, 2, 2))
	require.Same(t, root, child.Parent())

	root.UpdateWorldMatrix(false)

	want := mgl32.Translate3D(1, 0, 0).Mul4(mgl32.Translate3D(0, 2, 0)).Mul4(mgl32.Scale3D(2, 2, 2))
	assert.True(t, child.WorldMatrix().ApproxEqual(want))
}

func TestParentMoveMarksChildPending(t *testing.T) {
	root := NewGameObject()
	child := NewGameObject(WithParent(root))
	sibling := NewGameObject(WithParent(root))
	root.UpdateWorldMatrix(false)
	require.False(t, child.MatrixWorldNeedsUpdate())

	root.SetPosition(0, 0, 5)
	assert.True(t, child.MatrixWorldNeedsUpdate())

	// refreshing one child brings its ancestors up to date without touching the sibling
	child.UpdateWorldMatrix(false)
	assert.False(t, child.MatrixWorldNeedsUpdate())
	assert.False(t, root.MatrixWorldNeedsUpdate())
	assert.True(t, sibling.MatrixWorldNeedsUpdate())
	assert.Equal(t, mgl32.Vec3{0, 0, 5}, child.WorldMatrix().Col(3).Vec3())
}

func TestWorldTransformListener(t *testing.T) {
	root := NewGameObject()
	child := NewGameObject(WithParent(root))

	var calls int
	remove := child.AddWorldTransformListener(func(obj GameObject) {
		assert.Same(t, child, obj)
		calls++
	})

	root.UpdateWorldMatrix(false)
	assert.Equal(t, 1, calls)

	root.UpdateWorldMatrix(false)
	assert.Equal(t, 1, calls, "nothing changed")

	root.UpdateWorldMatrix(true)
	assert.Equal(t, 2, calls)

	remove()
	root.SetPosition(1, 1, 1)
	root.UpdateWorldMatrix(false)
	assert.Equal(t, 2, calls)
}

func TestReparenting(t *testing.T) {
	a := NewGameObject(WithPosition(10, 0, 0))
	b := NewGameObject(WithPosition(-10, 0, 0))
	child := NewGameObject(WithParent(a))
	a.UpdateWorldMatrix(false)
	b.UpdateWorldMatrix(false)

	b.AddChild(child)
	assert.Empty(t, a.Children())
	require.Len(t, b.Children(), 1)
	assert.True(t, child.MatrixWorldNeedsUpdate())

	child.UpdateWorldMatrix(false)
	assert.Equal(t, mgl32.Vec3{-10, 0, 0}, child.WorldMatrix().Col(3).Vec3())

	b.RemoveChild(child)
	assert.Nil(t, child.Parent())
	child.UpdateWorldMatrix(false)
	assert.Equal(t, mgl32.Vec3{}, child.WorldMatrix().Col(3).Vec3())
}

func TestAddChildRejectsCycle(t *testing.T) {
	root := NewGameObject()
	child := NewGameObject(WithParent(root))
	assert.Panics(t, func() { child.AddChild(root) })
	assert.Panics(t, func() { root.AddChild(root) })
}

func TestAdvanceIntegratesRotationSpeed(t *testing.T) {
	obj := NewGameObject(WithRotationSpeed(0, 2, 0))
	obj.UpdateWorldMatrix(false)

	obj.Advance(0.5)
	_, ry, _ := obj.Rotation()
	assert.InDelta(t, 1, ry, 1e-6)
	assert.True(t, obj.MatrixWorldNeedsUpdate())

	still := NewGameObject()
	still.UpdateWorldMatrix(false)
	still.Advance(1)
	assert.False(t, still.MatrixWorldNeedsUpdate())
}
