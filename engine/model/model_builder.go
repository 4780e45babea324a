package model

import (
	"github.com/Carmen-Shannon/oxy-instancing/engine/renderer/bind_group_provider"
)

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the Model.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithVertices is an option builder that sets the vertex data of the Model.
// The slice is retained, not copied.
//
// Parameters:
//   - vertices: the mesh vertices
//
// Returns:
//   - ModelBuilderOption: a function that applies the vertices option to a model
func WithVertices(vertices []GPUVertex) ModelBuilderOption {
	return func(m *model) {
		m.mesh.vertices = vertices
	}
}

// WithIndices is an option builder that sets the triangle index data of the Model.
// The slice is retained, not copied.
//
// Parameters:
//   - indices: the triangle indices, three per face
//
// Returns:
//   - ModelBuilderOption: a function that applies the indices option to a model
func WithIndices(indices []uint32) ModelBuilderOption {
	return func(m *model) {
		m.mesh.indices = indices
	}
}

// WithMeshProvider is an option builder that sets the BindGroupProvider for mesh GPU resources.
//
// Parameters:
//   - provider: the BindGroupProvider holding vertex/index buffers and instanced attribute buffers
//
// Returns:
//   - ModelBuilderOption: a function that applies the mesh provider option to a model
func WithMeshProvider(provider bind_group_provider.BindGroupProvider) ModelBuilderOption {
	return func(m *model) {
		m.meshProvider = provider
	}
}

// WithBoundingRadius is an option builder that manually sets the bounding sphere radius.
// Use this to override the auto-computed value from ComputeBoundingRadius when a manually
// tuned conservative bound is preferred.
//
// Parameters:
//   - radius: the bounding radius to set
//
// Returns:
//   - ModelBuilderOption: a function that applies the bounding radius option to a model
func WithBoundingRadius(radius float32) ModelBuilderOption {
	return func(m *model) {
		m.boundingRadius = radius
	}
}

// WithFrustumCulled is an option builder that sets whether the Model is frustum culled. Defaults to true.
//
// Parameters:
//   - culled: true to enable culling
//
// Returns:
//   - ModelBuilderOption: a function that applies the culling option to a model
func WithFrustumCulled(culled bool) ModelBuilderOption {
	return func(m *model) {
		m.frustumCulled = culled
	}
}

// WithDoubleSided is an option builder that makes Raycast report back-face hits as well. Defaults to false.
//
// Parameters:
//   - doubleSided: true to hit-test both faces
//
// Returns:
//   - ModelBuilderOption: a function that applies the sidedness option to a model
func WithDoubleSided(doubleSided bool) ModelBuilderOption {
	return func(m *model) {
		m.doubleSided = doubleSided
	}
}
