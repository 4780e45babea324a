package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-logr/logr"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithBackend uses the given backend instead of requesting a device.
//
// Parameters:
//   - backend: the backend to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the backend option to a renderer
func WithBackend(backend RendererBackend) RendererBuilderOption {
	return func(r *renderer) {
		r.backend = backend
	}
}

// WithDevice uploads through an existing WebGPU device and queue. The renderer never releases them.
//
// Parameters:
//   - device: the device used to allocate buffers
//   - queue: the queue used to submit writes
//
// Returns:
//   - RendererBuilderOption: a function that applies the device option to a renderer
func WithDevice(device *wgpu.Device, queue *wgpu.Queue) RendererBuilderOption {
	return func(r *renderer) {
		r.backend = newWGPURendererBackendFromDevice(device, queue)
	}
}

// WithAttributeBinding pins a named instanced attribute to a binding index, which is also its
// vertex buffer slot. Binding 0 is reserved for the mesh vertices.
//
// Parameters:
//   - name: the attribute name
//   - binding: the binding index
//
// Returns:
//   - RendererBuilderOption: a function that applies the binding option to a renderer
func WithAttributeBinding(name string, binding int) RendererBuilderOption {
	return func(r *renderer) {
		r.bindings[name] = binding
	}
}

// WithLogger sets the logger used for buffer growth and failures. Defaults to logr.Discard().
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger option to a renderer
func WithLogger(logger logr.Logger) RendererBuilderOption {
	return func(r *renderer) {
		r.logger = logger.WithName("renderer")
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe). Ignored when WithBackend or WithDevice is used.
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}
