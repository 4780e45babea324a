package game_object

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-instancing/common"
	"github.com/Carmen-Shannon/oxy-instancing/engine/model"
	"github.com/go-gl/mathgl/mgl32"
)

// WorldTransformListener is invoked every time a GameObject recomputes its world matrix.
type WorldTransformListener func(obj GameObject)

type worldListener struct {
	id uint64
	fn WorldTransformListener
}

type gameObject struct {
	id      uint64
	enabled atomic.Bool
	mdl     model.Model

	position      [3]float32
	scale         [3]float32
	rotation      [3]float32
	rotationSpeed [3]float32

	parent   *gameObject
	children []*gameObject

	local      mgl32.Mat4
	world      mgl32.Mat4
	localDirty bool

	// worldVersion increments on every world recompute; children compare it against
	// parentVersion to detect that their parent moved.
	worldVersion  uint64
	parentVersion uint64

	listeners      []worldListener
	nextListenerID uint64
}

// GameObject defines the interface for a scene-graph node. A node owns a local
// position/rotation/scale transform and resolves its world matrix against its parent chain.
// A node may carry a Model to be drawn with the node's world matrix.
type GameObject interface {
	// ID returns the object's unique identifier.
	//
	// Returns:
	//   - uint64: the object ID
	ID() uint64

	// Enabled returns whether this object is enabled for rendering and hit testing.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// Model returns the Model associated with this object, or nil if not set.
	//
	// Returns:
	//   - model.Model: the associated model or nil
	Model() model.Model

	// Position returns the node's local position.
	//
	// Returns:
	//   - x, y, z: position components
	Position() (x, y, z float32)

	// Rotation returns the node's local Euler rotation in radians.
	//
	// Returns:
	//   - rx, ry, rz: rotation angles
	Rotation() (rx, ry, rz float32)

	// RotationSpeed returns the node's rotation speed in radians per second.
	//
	// Returns:
	//   - rx, ry, rz: rotation speed values
	RotationSpeed() (rx, ry, rz float32)

	// Scale returns the node's local scale.
	//
	// Returns:
	//   - sx, sy, sz: scale components
	Scale() (sx, sy, sz float32)

	// TransformData returns all local transform components in one call.
	//
	// Returns:
	//   - pos: position as [3]float32 (x, y, z)
	//   - scale: scale as [3]float32 (x, y, z)
	//   - rot: rotation as [3]float32 (rx, ry, rz)
	//   - rotSpeed: rotation speed as [3]float32 (rx, ry, rz)
	TransformData() (pos, scale, rot, rotSpeed [3]float32)

	// SetID sets the object's unique identifier.
	//
	// Parameters:
	//   - id: the ID to assign
	SetID(id uint64)

	// SetEnabled sets whether the object is enabled.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// SetModel assigns a Model to this object.
	//
	// Parameters:
	//   - m: the Model to associate
	SetModel(m model.Model)

	// SetPosition sets the local position and marks the world matrix for recomputation.
	//
	// Parameters:
	//   - x, y, z: new position components
	SetPosition(x, y, z float32)

	// SetRotation sets the local rotation and marks the world matrix for recomputation.
	//
	// Parameters:
	//   - rx, ry, rz: new rotation angles
	SetRotation(rx, ry, rz float32)

	// SetRotationSpeed sets the rotation speed consumed by Advance.
	//
	// Parameters:
	//   - rx, ry, rz: new rotation speed values
	SetRotationSpeed(rx, ry, rz float32)

	// SetScale sets the local scale and marks the world matrix for recomputation.
	//
	// Parameters:
	//   - sx, sy, sz: new scale factors
	SetScale(sx, sy, sz float32)

	// Advance integrates the rotation speed over dt seconds.
	// Nodes with zero rotation speed are left untouched.
	//
	// Parameters:
	//   - dt: elapsed time in seconds
	Advance(dt float32)

	// Parent returns the parent node, or nil for a root.
	//
	// Returns:
	//   - GameObject: the parent or nil
	Parent() GameObject

	// Children returns a copy of the child list.
	//
	// Returns:
	//   - []GameObject: the children in insertion order
	Children() []GameObject

	// AddChild attaches child to this node, detaching it from any previous parent.
	// Panics if child is not created by NewGameObject or if the attachment would form a cycle.
	//
	// Parameters:
	//   - child: the node to attach
	AddChild(child GameObject)

	// RemoveChild detaches child from this node. Unknown children are ignored.
	//
	// Parameters:
	//   - child: the node to detach
	RemoveChild(child GameObject)

	// LocalMatrix returns the node's local transform, rebuilding it if a component changed.
	//
	// Returns:
	//   - mgl32.Mat4: the local transform
	LocalMatrix() mgl32.Mat4

	// WorldMatrix returns the last computed world matrix. Call UpdateWorldMatrix
	// first when MatrixWorldNeedsUpdate reports pending changes.
	//
	// Returns:
	//   - mgl32.Mat4: the world transform
	WorldMatrix() mgl32.Mat4

	// MatrixWorldNeedsUpdate reports whether the node's world matrix is out of date,
	// either because its own transform changed or because an ancestor's did.
	//
	// Returns:
	//   - bool: true if UpdateWorldMatrix would recompute the world matrix
	MatrixWorldNeedsUpdate() bool

	// UpdateWorldMatrix recomputes the world matrix of this node and its subtree where needed.
	// Out-of-date ancestors are refreshed first. Listeners of every recomputed node are notified.
	//
	// Parameters:
	//   - force: recompute every node in the subtree even if nothing changed
	UpdateWorldMatrix(force bool)

	// AddWorldTransformListener registers fn to be called after every world matrix recompute.
	//
	// Parameters:
	//   - fn: the listener
	//
	// Returns:
	//   - func(): removes the listener when called
	AddWorldTransformListener(fn WorldTransformListener) func()
}

var _ GameObject = &gameObject{}

// NewGameObject creates a new enabled GameObject at the origin with unit scale.
//
// Parameters:
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the newly created object
func NewGameObject(options ...GameObjectBuilderOption) GameObject {
	obj := &gameObject{
		scale:      [3]float32{1, 1, 1},
		local:      mgl32.Ident4(),
		world:      mgl32.Ident4(),
		localDirty: true,
	}
	obj.enabled.Store(true)
	for _, option := range options {
		option(obj)
	}
	return obj
}

func (g *gameObject) ID() uint64 {
	return g.id
}

func (g *gameObject) Enabled() bool {
	return g.enabled.Load()
}

func (g *gameObject) Model() model.Model {
	return g.mdl
}

func (g *gameObject) Position() (x, y, z float32) {
	return g.position[0], g.position[1], g.position[2]
}

func (g *gameObject) Rotation() (rx, ry, rz float32) {
	return g.rotation[0], g.rotation[1], g.rotation[2]
}

func (g *gameObject) RotationSpeed() (rx, ry, rz float32) {
	return g.rotationSpeed[0], g.rotationSpeed[1], g.rotationSpeed[2]
}

func (g *gameObject) Scale() (sx, sy, sz float32) {
	return g.scale[0], g.scale[1], g.scale[2]
}

func (g *gameObject) TransformData() (pos, scale, rot, rotSpeed [3]float32) {
	return g.position, g.scale, g.rotation, g.rotationSpeed
}

func (g *gameObject) SetID(id uint64) {
	g.id = id
}

func (g *gameObject) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *gameObject) SetModel(m model.Model) {
	g.mdl = m
}

func (g *gameObject) SetPosition(x, y, z float32) {
	g.position = [3]float32{x, y, z}
	g.localDirty = true
}

func (g *gameObject) SetRotation(rx, ry, rz float32) {
	g.rotation = [3]float32{rx, ry, rz}
	g.localDirty = true
}

func (g *gameObject) SetRotationSpeed(rx, ry, rz float32) {
	g.rotationSpeed = [3]float32{rx, ry, rz}
}

func (g *gameObject) SetScale(sx, sy, sz float32) {
	g.scale = [3]float32{sx, sy, sz}
	g.localDirty = true
}

func (g *gameObject) Advance(dt float32) {
	if g.rotationSpeed == [3]float32{} {
		return
	}
	for i := range g.rotation {
		g.rotation[i] += g.rotationSpeed[i] * dt
	}
	g.localDirty = true
}

func (g *gameObject) Parent() GameObject {
	if g.parent == nil {
		return nil
	}
	return g.parent
}

func (g *gameObject) Children() []GameObject {
	out := make([]GameObject, len(g.children))
	for i, c := range g.children {
		out[i] = c
	}
	return out
}

func (g *gameObject) AddChild(child GameObject) {
	c, ok := child.(*gameObject)
	if !ok {
		panic("game_object: AddChild requires a GameObject created by NewGameObject")
	}
	for p := g; p != nil; p = p.parent {
		if p == c {
			panic("game_object: AddChild would create a cycle")
		}
	}
	if c.parent != nil {
		c.parent.RemoveChild(c)
	}
	c.parent = g
	// force the child to resolve against its new parent
	c.parentVersion = g.worldVersion - 1
	g.children = append(g.children, c)
}

func (g *gameObject) RemoveChild(child GameObject) {
	c, ok := child.(*gameObject)
	if !ok {
		return
	}
	for i, existing := range g.children {
		if existing == c {
			g.children = append(g.children[:i], g.children[i+1:]...)
			c.parent = nil
			c.localDirty = true
			return
		}
	}
}

func (g *gameObject) LocalMatrix() mgl32.Mat4 {
	if g.localDirty {
		g.local = common.BuildModelMatrix(mgl32.Vec3(g.position), mgl32.Vec3(g.rotation), mgl32.Vec3(g.scale))
	}
	return g.local
}

func (g *gameObject) WorldMatrix() mgl32.Mat4 {
	return g.world
}

func (g *gameObject) MatrixWorldNeedsUpdate() bool {
	if g.localDirty {
		return true
	}
	if g.parent == nil {
		return false
	}
	return g.parent.worldVersion != g.parentVersion || g.parent.MatrixWorldNeedsUpdate()
}

func (g *gameObject) UpdateWorldMatrix(force bool) {
	g.updateSelf(force)
	for _, c := range g.children {
		c.UpdateWorldMatrix(force)
	}
}

func (g *gameObject) AddWorldTransformListener(fn WorldTransformListener) func() {
	id := g.nextListenerID
	g.nextListenerID++
	g.listeners = append(g.listeners, worldListener{id: id, fn: fn})
	return func() {
		for i, l := range g.listeners {
			if l.id == id {
				g.listeners = append(g.listeners[:i], g.listeners[i+1:]...)
				return
			}
		}
	}
}

// updateSelf recomputes this node's world matrix, refreshing stale ancestors first.
// Siblings are not touched; they detect the ancestor change through parentVersion.
func (g *gameObject) updateSelf(force bool) {
	if g.parent != nil && g.parent.MatrixWorldNeedsUpdate() {
		g.parent.updateSelf(false)
	}
	if !force && !g.MatrixWorldNeedsUpdate() {
		return
	}

	local := g.LocalMatrix()
	g.localDirty = false
	if g.parent != nil {
		g.world = g.parent.world.Mul4(local)
		g.parentVersion = g.parent.worldVersion
	} else {
		g.world = local
	}
	g.worldVersion++

	for _, l := range g.listeners {
		l.fn(g)
	}
}
