package instancing

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-instancing/common"
	"github.com/Carmen-Shannon/oxy-instancing/engine/game_object"
	"github.com/Carmen-Shannon/oxy-instancing/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-logr/logr"
)

type cacheMode uint8

const (
	cacheValid cacheMode = iota
	cacheStale
)

type instancedMesh struct {
	label    string
	logger   logr.Logger
	base     model.Model
	geometry model.Model
	store    TransformStore
	node     game_object.GameObject

	storeOptions []TransformStoreBuilderOption

	// worldCache[slot] holds node world × local for the instance at slot.
	worldCache []mgl32.Mat4
	mode       cacheMode
}

// InstancedMesh presents one shared base shape and a TransformStore as a single drawable.
// The mesh is placed in the scene through its Node; every instance is drawn at
// Node world × instance local transform.
//
// The resolved world transform of every instance is cached for hit testing. A world matrix
// recompute on the Node marks the whole cache stale; it is rebuilt on the next HitTest.
type InstancedMesh interface {
	// Label returns the mesh's label.
	//
	// Returns:
	//   - string: the label
	Label() string

	// CreateInstance allocates a new instance with an identity local transform.
	//
	// Returns:
	//   - InstanceID: the new instance's ID
	CreateInstance() InstanceID

	// DestroyInstance removes an instance. Instances in later slots move down by one.
	//
	// Parameters:
	//   - id: the instance to remove
	//
	// Returns:
	//   - error: ErrUnknownInstance if id is not live
	DestroyInstance(id InstanceID) error

	// SetMatrix sets an instance's local transform and refreshes its cached world transform.
	//
	// Parameters:
	//   - id: the instance to update
	//   - m: the local transform relative to the Node
	//
	// Returns:
	//   - error: ErrUnknownInstance if id is not live
	SetMatrix(id InstanceID, m mgl32.Mat4) error

	// Matrix returns an instance's local transform.
	//
	// Parameters:
	//   - id: the instance to read
	//
	// Returns:
	//   - mgl32.Mat4: the local transform
	//   - error: ErrUnknownInstance if id is not live
	Matrix(id InstanceID) (mgl32.Mat4, error)

	// MatrixBySlot returns the local transform stored at a slot.
	//
	// Parameters:
	//   - slot: the slot to read
	//
	// Returns:
	//   - mgl32.Mat4: the local transform
	//   - error: ErrSlotOutOfRange if slot is outside [0, InstanceCount())
	MatrixBySlot(slot int) (mgl32.Mat4, error)

	// WorldMatrix returns the cached world transform of an instance, rebuilding the cache first
	// if it is stale.
	//
	// Parameters:
	//   - id: the instance to read
	//
	// Returns:
	//   - mgl32.Mat4: Node world × local
	//   - error: ErrUnknownInstance if id is not live
	WorldMatrix(id InstanceID) (mgl32.Mat4, error)

	// InstanceCount returns the number of live instances.
	//
	// Returns:
	//   - int: the live instance count
	InstanceCount() int

	// OnWorldTransformChanged marks every cached world transform stale. It is registered as a
	// world transform listener on the Node and does not recompute anything itself.
	OnWorldTransformChanged()

	// HitTest intersects ray with every instance in slot order.
	// Hits are tagged with the instance ID and slot and are returned in slot order, not by distance.
	//
	// Parameters:
	//   - ray: the world-space ray
	//
	// Returns:
	//   - []common.Intersection: all hits, grouped by slot
	//   - error: non-nil if the cache and the store disagree
	HitTest(ray common.Ray) ([]common.Intersection, error)

	// Node returns the scene-graph node that places the mesh.
	//
	// Returns:
	//   - game_object.GameObject: the node
	Node() game_object.GameObject

	// Geometry returns the mesh's own geometry copy, which carries the row attributes.
	//
	// Returns:
	//   - model.Model: the instanced geometry
	Geometry() model.Model

	// Store returns the underlying TransformStore.
	// Mutating the store directly bypasses the world cache; use the mesh methods instead.
	//
	// Returns:
	//   - TransformStore: the store
	Store() TransformStore
}

var _ InstancedMesh = &instancedMesh{}

// NewInstancedMesh creates an InstancedMesh for base. The base geometry is copied so that the
// vertex and index data are shared while the row attributes are registered on the copy only.
// Frustum culling is disabled on the copy because one bounding volume cannot cover every instance;
// pass WithMeshFrustumCulled(true) to override.
//
// Parameters:
//   - base: the shape drawn for every instance
//   - options: functional options to configure the mesh
//
// Returns:
//   - InstancedMesh: the new mesh
func NewInstancedMesh(base model.Model, options ...InstancedMeshBuilderOption) InstancedMesh {
	if base == nil {
		panic("instancing: NewInstancedMesh requires a base model")
	}
	m := &instancedMesh{
		label:    base.Name(),
		logger:   logr.Discard(),
		base:     base,
		geometry: base.CloneGeometry(),
		mode:     cacheValid,
	}
	m.geometry.SetFrustumCulled(false)

	for _, option := range options {
		option(m)
	}
	m.label = common.Coalesce(m.label, base.Name())
	if m.node == nil {
		m.node = game_object.NewGameObject()
	}
	if m.node.Model() == nil {
		m.node.SetModel(m.geometry)
	}

	m.store = NewTransformStore(m.geometry, append([]TransformStoreBuilderOption{WithStoreLogger(m.logger)}, m.storeOptions...)...)
	m.node.AddWorldTransformListener(func(game_object.GameObject) {
		m.OnWorldTransformChanged()
	})

	m.logger.V(1).Info("instanced mesh created", "label", m.label, "vertices", len(base.Vertices()), "indices", base.IndexCount())
	return m
}

func (m *instancedMesh) Label() string {
	return m.label
}

func (m *instancedMesh) CreateInstance() InstanceID {
	id := m.store.CreateInstance()
	// placeholder until the next SetMatrix or rebuild; local is identity so world × local = world
	m.worldCache = append(m.worldCache, m.node.WorldMatrix())
	return id
}

func (m *instancedMesh) DestroyInstance(id InstanceID) error {
	slot, err := m.store.Slot(id)
	if err != nil {
		return err
	}
	if err := m.store.DestroyInstance(id); err != nil {
		return err
	}
	m.worldCache = append(m.worldCache[:slot], m.worldCache[slot+1:]...)
	return nil
}

func (m *instancedMesh) SetMatrix(id InstanceID, local mgl32.Mat4) error {
	m.refreshNode()

	slot, err := m.store.Slot(id)
	if err != nil {
		return err
	}
	if err := m.store.SetMatrix(id, local); err != nil {
		return err
	}

	// cache what the store holds so a projective row 3 in local is dropped in both places
	stored, err := m.store.MatrixBySlot(slot)
	if err != nil {
		return err
	}
	m.worldCache[slot] = m.node.WorldMatrix().Mul4(stored)
	return nil
}

func (m *instancedMesh) Matrix(id InstanceID) (mgl32.Mat4, error) {
	return m.store.Matrix(id)
}

func (m *instancedMesh) MatrixBySlot(slot int) (mgl32.Mat4, error) {
	return m.store.MatrixBySlot(slot)
}

func (m *instancedMesh) WorldMatrix(id InstanceID) (mgl32.Mat4, error) {
	slot, err := m.store.Slot(id)
	if err != nil {
		return mgl32.Mat4{}, err
	}
	m.refreshNode()
	if err := m.refreshCache(); err != nil {
		return mgl32.Mat4{}, err
	}
	return m.worldCache[slot], nil
}

func (m *instancedMesh) InstanceCount() int {
	return m.store.InstanceCount()
}

func (m *instancedMesh) OnWorldTransformChanged() {
	m.mode = cacheStale
}

func (m *instancedMesh) HitTest(ray common.Ray) ([]common.Intersection, error) {
	m.refreshNode()
	if err := m.refreshCache(); err != nil {
		return nil, err
	}

	var hits []common.Intersection
	for slot, world := range m.worldCache {
		id, err := m.store.IDAt(slot)
		if err != nil {
			return nil, err
		}
		for _, hit := range m.base.Raycast(world, ray) {
			hit.InstanceID = uint64(id)
			hit.Slot = slot
			hit.Object = m
			hits = append(hits, hit)
		}
	}
	return hits, nil
}

func (m *instancedMesh) Node() game_object.GameObject {
	return m.node
}

func (m *instancedMesh) Geometry() model.Model {
	return m.geometry
}

func (m *instancedMesh) Store() TransformStore {
	return m.store
}

// refreshNode recomputes the node's world matrix if it is out of date. The recompute notifies
// OnWorldTransformChanged, which marks the cache stale.
func (m *instancedMesh) refreshNode() {
	if m.node.MatrixWorldNeedsUpdate() {
		m.node.UpdateWorldMatrix(false)
	}
}

// refreshCache rebuilds every cached world transform when the cache is stale.
func (m *instancedMesh) refreshCache() error {
	if m.mode == cacheValid {
		return nil
	}
	count := m.store.InstanceCount()
	if len(m.worldCache) != count {
		return fmt.Errorf("instancing: %s world cache holds %d entries for %d instances", m.label, len(m.worldCache), count)
	}
	world := m.node.WorldMatrix()
	for slot := range count {
		local, err := m.store.MatrixBySlot(slot)
		if err != nil {
			return err
		}
		m.worldCache[slot] = world.Mul4(local)
	}
	m.mode = cacheValid
	m.logger.V(2).Info("world cache rebuilt", "label", m.label, "instances", count)
	return nil
}
