package instancing

import (
	"github.com/Carmen-Shannon/oxy-instancing/engine/game_object"
	"github.com/go-logr/logr"
)

// InstancedMeshBuilderOption is a functional option for configuring an InstancedMesh via NewInstancedMesh.
type InstancedMeshBuilderOption func(*instancedMesh)

// WithLabel sets the label of the InstancedMesh. Defaults to the base model's name.
//
// Parameters:
//   - label: the label used in logs and GPU resource names
//
// Returns:
//   - InstancedMeshBuilderOption: a function that applies the label option to a mesh
func WithLabel(label string) InstancedMeshBuilderOption {
	return func(m *instancedMesh) {
		m.label = label
	}
}

// WithLogger sets the logger for the mesh and its TransformStore. Defaults to logr.Discard().
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - InstancedMeshBuilderOption: a function that applies the logger option to a mesh
func WithLogger(logger logr.Logger) InstancedMeshBuilderOption {
	return func(m *instancedMesh) {
		m.logger = logger.WithName("instanced_mesh")
	}
}

// WithNode places the mesh under an existing scene-graph node instead of a fresh root node.
// If the node has no Model yet, the mesh's geometry is assigned to it.
//
// Parameters:
//   - node: the node whose world matrix positions every instance
//
// Returns:
//   - InstancedMeshBuilderOption: a function that applies the node option to a mesh
func WithNode(node game_object.GameObject) InstancedMeshBuilderOption {
	return func(m *instancedMesh) {
		m.node = node
	}
}

// WithMeshFrustumCulled overrides the frustum culling flag of the mesh's geometry. Defaults to false.
//
// Parameters:
//   - culled: true to cull all instances together against the base bounding sphere
//
// Returns:
//   - InstancedMeshBuilderOption: a function that applies the culling option to a mesh
func WithMeshFrustumCulled(culled bool) InstancedMeshBuilderOption {
	return func(m *instancedMesh) {
		m.geometry.SetFrustumCulled(culled)
	}
}

// WithStoreOptions forwards options to the mesh's TransformStore.
//
// Parameters:
//   - options: the store options
//
// Returns:
//   - InstancedMeshBuilderOption: a function that applies the store options to a mesh
func WithStoreOptions(options ...TransformStoreBuilderOption) InstancedMeshBuilderOption {
	return func(m *instancedMesh) {
		m.storeOptions = append(m.storeOptions, options...)
	}
}
