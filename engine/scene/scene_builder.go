package scene

import (
	"github.com/Carmen-Shannon/oxy-instancing/engine/camera"
	"github.com/Carmen-Shannon/oxy-instancing/engine/game_object"
	"github.com/Carmen-Shannon/oxy-instancing/engine/instancing"
	"github.com/Carmen-Shannon/oxy-instancing/engine/profiler"
	"github.com/Carmen-Shannon/oxy-instancing/engine/renderer"
	"github.com/go-logr/logr"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the scene is active.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithLogger sets the logger for the scene and the animators it creates.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithLogger(logger logr.Logger) SceneBuilderOption {
	return func(s *scene) {
		s.logger = logger.WithName("scene")
	}
}

// WithObjects adds initial objects to the scene.
// Objects without IDs will be assigned new IDs.
//
// Parameters:
//   - objects: the objects to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithObjects(objects ...game_object.GameObject) SceneBuilderOption {
	return func(s *scene) {
		for _, obj := range objects {
			s.add(obj)
		}
	}
}

// WithInstancedMeshes adds initial instanced meshes to the scene. Apply after WithLogger
// for the meshes' animators to inherit the logger.
//
// Parameters:
//   - meshes: the meshes to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithInstancedMeshes(meshes ...instancing.InstancedMesh) SceneBuilderOption {
	return func(s *scene) {
		for _, mesh := range meshes {
			s.AddInstancedMesh(mesh)
		}
	}
}

// WithCamera attaches a camera to the scene.
//
// Parameters:
//   - cam: the camera
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCamera(cam camera.Camera) SceneBuilderOption {
	return func(s *scene) {
		s.cam = cam
	}
}

// WithRenderer attaches the renderer that stages instance uploads on every Update.
// Without one the scene runs headless.
//
// Parameters:
//   - r: the renderer
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) SceneBuilderOption {
	return func(s *scene) {
		s.r = r
	}
}

// WithProfiler attaches a profiler ticked at the end of every Update.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithProfiler(p *profiler.Profiler) SceneBuilderOption {
	return func(s *scene) {
		s.prof = p
	}
}

// WithWorkers sets the number of worker goroutines used for parallel hit tests and animator frames.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.workers = n
	}
}
