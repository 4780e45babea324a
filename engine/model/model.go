package model

import (
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-instancing/common"
	"github.com/Carmen-Shannon/oxy-instancing/engine/renderer/bind_group_provider"
	"github.com/go-gl/mathgl/mgl32"
)

// meshData holds the immutable geometry shared between a Model and every geometry clone made from it.
type meshData struct {
	once       sync.Once
	vertices   []GPUVertex
	indices    []uint32
	vertexData []byte
	indexData  []byte
}

// bytes lazily serializes the shared vertex and index data for GPU upload.
func (d *meshData) bytes() ([]byte, []byte) {
	d.once.Do(func() {
		d.vertexData = MarshalVertices(d.vertices)
		d.indexData = MarshalIndices(d.indices)
	})
	return d.vertexData, d.indexData
}

// model is the implementation of the Model interface.
type model struct {
	name              string
	mesh              *meshData
	boundingRadius    float32
	meshProvider      bind_group_provider.BindGroupProvider
	attributes        map[string]*InstancedAttribute
	maxInstancedCount int
	frustumCulled     bool
	doubleSided       bool
}

// Model defines the interface for a drawable piece of geometry.
// A Model owns vertex and index data, a bounding sphere used for culling and hit testing,
// and a table of named per-instance attributes that the upload stage mirrors to the GPU.
// Geometry clones share vertex and index data but keep their own attribute table, so several
// instanced drawables can be built from one source mesh.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Vertices returns the shared vertex slice. Callers must not modify it.
	//
	// Returns:
	//   - []GPUVertex: the vertices
	Vertices() []GPUVertex

	// Indices returns the shared triangle index slice. Callers must not modify it.
	// An empty slice means the vertices form a non-indexed triangle list.
	//
	// Returns:
	//   - []uint32: the indices
	Indices() []uint32

	// VertexData returns the raw vertex data for this model's mesh.
	//
	// Returns:
	//   - []byte: the vertex data
	VertexData() []byte

	// IndexData returns the raw index data for this model's mesh.
	//
	// Returns:
	//   - []byte: the index data
	IndexData() []byte

	// IndexCount returns the number of indices in the model's mesh.
	//
	// Returns:
	//   - int: the index count
	IndexCount() int

	// BoundingRadius returns the bounding sphere radius for this model, measured as
	// the maximum vertex distance from the origin. Used by frustum culling and hit testing.
	//
	// Returns:
	//   - float32: the bounding radius
	BoundingRadius() float32

	// MeshProvider retrieves the BindGroupProvider holding GPU mesh resources.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the mesh provider
	MeshProvider() bind_group_provider.BindGroupProvider

	// SetMeshProvider replaces the BindGroupProvider holding GPU mesh resources.
	//
	// Parameters:
	//   - provider: the new provider
	SetMeshProvider(provider bind_group_provider.BindGroupProvider)

	// Attribute returns the instanced attribute registered under name, or nil.
	//
	// Parameters:
	//   - name: the registration name
	//
	// Returns:
	//   - *InstancedAttribute: the attribute or nil
	Attribute(name string) *InstancedAttribute

	// AttributeNames returns the names of all registered attributes in sorted order.
	//
	// Returns:
	//   - []string: the attribute names
	AttributeNames() []string

	// SetAttribute registers attr under attr.Name, replacing any attribute with the same name.
	//
	// Parameters:
	//   - attr: the attribute to register
	SetAttribute(attr *InstancedAttribute)

	// RemoveAttribute unregisters the attribute with the given name.
	//
	// Parameters:
	//   - name: the registration name
	RemoveAttribute(name string)

	// MaxInstancedCount returns how many instances the renderer should draw.
	//
	// Returns:
	//   - int: the instance count for draw calls
	MaxInstancedCount() int

	// SetMaxInstancedCount sets how many instances the renderer should draw.
	//
	// Parameters:
	//   - count: the instance count for draw calls
	SetMaxInstancedCount(count int)

	// FrustumCulled reports whether the model's bounding sphere should be tested against the view frustum.
	//
	// Returns:
	//   - bool: true if culling applies
	FrustumCulled() bool

	// SetFrustumCulled enables or disables frustum culling for this model.
	//
	// Parameters:
	//   - culled: true to enable culling
	SetFrustumCulled(culled bool)

	// DoubleSided reports whether Raycast accepts hits on back faces.
	//
	// Returns:
	//   - bool: true if both faces are hit-testable
	DoubleSided() bool

	// CloneGeometry returns a new Model sharing this model's vertex and index data, name,
	// bounding radius, culling and sidedness flags, with an empty attribute table and a fresh mesh provider.
	//
	// Returns:
	//   - Model: the clone
	CloneGeometry() Model

	// Raycast intersects a ray with the model placed in the world by world.
	// The world transform is a parameter, so the same geometry can be tested at many placements.
	// Hits are returned in triangle order with world-space distances and points; Slot is -1.
	//
	// Parameters:
	//   - world: the model-to-world transform to test with
	//   - ray: the world-space ray
	//
	// Returns:
	//   - []common.Intersection: the hits, or nil
	Raycast(world mgl32.Mat4, ray common.Ray) []common.Intersection
}

var _ Model = &model{}

// NewModel creates a new Model instance with the specified options applied.
// If no bounding radius option is given, the radius is computed from the vertices.
//
// Parameters:
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: a new instance of Model configured with the provided options
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{
		mesh:           &meshData{},
		attributes:     make(map[string]*InstancedAttribute),
		frustumCulled:  true,
		boundingRadius: -1,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.boundingRadius < 0 {
		m.boundingRadius = ComputeBoundingRadius(m.mesh.vertices)
	}
	if m.meshProvider == nil {
		m.meshProvider = bind_group_provider.NewBindGroupProvider(m.name + "_mesh")
	}
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Vertices() []GPUVertex {
	return m.mesh.vertices
}

func (m *model) Indices() []uint32 {
	return m.mesh.indices
}

func (m *model) VertexData() []byte {
	v, _ := m.mesh.bytes()
	return v
}

func (m *model) IndexData() []byte {
	_, i := m.mesh.bytes()
	return i
}

func (m *model) IndexCount() int {
	return len(m.mesh.indices)
}

func (m *model) BoundingRadius() float32 {
	return m.boundingRadius
}

func (m *model) MeshProvider() bind_group_provider.BindGroupProvider {
	return m.meshProvider
}

func (m *model) SetMeshProvider(provider bind_group_provider.BindGroupProvider) {
	m.meshProvider = provider
}

func (m *model) Attribute(name string) *InstancedAttribute {
	return m.attributes[name]
}

func (m *model) AttributeNames() []string {
	names := make([]string, 0, len(m.attributes))
	for name := range m.attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *model) SetAttribute(attr *InstancedAttribute) {
	m.attributes[attr.Name] = attr
}

func (m *model) RemoveAttribute(name string) {
	delete(m.attributes, name)
}

func (m *model) MaxInstancedCount() int {
	return m.maxInstancedCount
}

func (m *model) SetMaxInstancedCount(count int) {
	m.maxInstancedCount = count
}

func (m *model) FrustumCulled() bool {
	return m.frustumCulled
}

func (m *model) SetFrustumCulled(culled bool) {
	m.frustumCulled = culled
}

func (m *model) DoubleSided() bool {
	return m.doubleSided
}

func (m *model) CloneGeometry() Model {
	return &model{
		name:           m.name,
		mesh:           m.mesh,
		boundingRadius: m.boundingRadius,
		meshProvider:   bind_group_provider.NewBindGroupProvider(m.name + "_mesh"),
		attributes:     make(map[string]*InstancedAttribute),
		frustumCulled:  m.frustumCulled,
		doubleSided:    m.doubleSided,
	}
}
