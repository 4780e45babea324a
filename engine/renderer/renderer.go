package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-instancing/common"
	"github.com/Carmen-Shannon/oxy-instancing/engine/model"
	"github.com/Carmen-Shannon/oxy-instancing/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-logr/logr"
)

// minInstanceBufferSize is the smallest per-instance buffer allocated, in bytes.
const minInstanceBufferSize = 256

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu     *sync.Mutex
	logger logr.Logger

	backendType          RendererBackendType
	backend              RendererBackend
	forceFallbackAdapter bool

	// bindings overrides the binding index of named instanced attributes.
	bindings map[string]int

	meshesReady map[bind_group_provider.BindGroupProvider]bool
	pending     []bind_group_provider.BufferWrite
}

// Renderer is the upload stage for instanced geometry.
//
// Once per frame, after all instance mutations, Stage is called for every drawable geometry.
// It copies each instanced attribute whose update flag is raised into a pending BufferWrite,
// lowers the flag, and grows the attribute's GPU buffer when the data outgrew it.
// Flush then submits the pending writes through the backend. Writes are always whole-attribute
// because removing an instance shifts every later instance down by one slot.
type Renderer interface {
	// Backend returns the GPU backend.
	//
	// Returns:
	//   - RendererBackend: the backend
	Backend() RendererBackend

	// Binding resolves the binding index used for a named instanced attribute of geometry.
	// Explicit bindings from WithAttributeBinding take precedence; otherwise attributes are
	// numbered from 1 in name order, leaving slot 0 for the mesh vertices.
	//
	// Parameters:
	//   - geometry: the geometry the attribute belongs to
	//   - name: the attribute name
	//
	// Returns:
	//   - int: the binding index, or -1 if the attribute is not registered
	Binding(geometry model.Model, name string) int

	// Stage queues uploads for geometry. Mesh buffers are created on first use; every instanced
	// attribute that needs an update is copied into a pending write and its flag is lowered.
	//
	// Parameters:
	//   - geometry: the geometry to stage
	//
	// Returns:
	//   - int: the number of attribute writes queued
	//   - error: an error if a GPU buffer could not be allocated
	Stage(geometry model.Model) (int, error)

	// PendingWrites returns the writes queued since the last Flush.
	//
	// Returns:
	//   - []bind_group_provider.BufferWrite: the pending writes in staging order
	PendingWrites() []bind_group_provider.BufferWrite

	// Flush submits all pending writes to the backend and clears the queue.
	//
	// Returns:
	//   - int: the number of writes submitted
	Flush() int

	// WriteBuffers writes the given buffer writes to the GPU queue immediately.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the data to write
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// EncodeDraw encodes one instanced draw of geometry on pass.
	//
	// Parameters:
	//   - pass: the render pass with a compatible pipeline set
	//   - geometry: the staged geometry
	EncodeDraw(pass *wgpu.RenderPassEncoder, geometry model.Model)

	// Release releases the GPU resources of geometry's mesh provider and forgets it.
	//
	// Parameters:
	//   - geometry: the geometry whose buffers are released
	Release(geometry model.Model)
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer. Unless a backend or device is supplied through options,
// a headless WebGPU device is requested.
//
// Parameters:
//   - backendType: the type of GPU backend to use
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new Renderer
//   - error: an error if no GPU device could be acquired
func NewRenderer(backendType RendererBackendType, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:          &sync.Mutex{},
		logger:      logr.Discard(),
		backendType: backendType,
		bindings:    make(map[string]int),
		meshesReady: make(map[bind_group_provider.BindGroupProvider]bool),
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	if r.backend == nil {
		switch backendType {
		case BackendTypeWGPU:
			fallthrough
		default:
			b, err := newWGPURendererBackend(r.forceFallbackAdapter)
			if err != nil {
				return nil, err
			}
			r.backend = b
		}
	}

	r.logger.V(1).Info("renderer created", "backend", backendType)
	return r, nil
}

func (r *renderer) Backend() RendererBackend {
	return r.backend
}

func (r *renderer) Binding(geometry model.Model, name string) int {
	if geometry.Attribute(name) == nil {
		return -1
	}
	if binding, ok := r.bindings[name]; ok {
		return binding
	}
	for i, n := range geometry.AttributeNames() {
		if n == name {
			return i + 1
		}
	}
	return -1
}

func (r *renderer) Stage(geometry model.Model) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	provider := geometry.MeshProvider()
	if provider == nil {
		return 0, fmt.Errorf("renderer: geometry %q has no mesh provider", geometry.Name())
	}

	if !r.meshesReady[provider] {
		if err := r.backend.InitMeshBuffers(provider, geometry.VertexData(), geometry.IndexData(), geometry.IndexCount()); err != nil {
			return 0, fmt.Errorf("init mesh buffers for %q: %w", geometry.Name(), err)
		}
		r.meshesReady[provider] = true
	}
	provider.SetInstanceCount(geometry.MaxInstancedCount())

	staged := 0
	for _, name := range geometry.AttributeNames() {
		attr := geometry.Attribute(name)
		if !attr.NeedsUpdate() {
			continue
		}
		binding := r.Binding(geometry, name)

		data := make([]byte, 4*len(attr.Data))
		// snapshot; the store keeps mutating attr.Data before Flush
		copy(data, common.SliceToBytes(attr.Data))
		if err := r.ensureCapacity(provider, binding, name, uint64(len(data))); err != nil {
			return staged, err
		}

		r.pending = append(r.pending, bind_group_provider.BufferWrite{
			Provider: provider,
			Binding:  binding,
			Offset:   0,
			Data:     data,
		})
		attr.ClearNeedsUpdate()
		staged++
	}
	return staged, nil
}

func (r *renderer) PendingWrites() []bind_group_provider.BufferWrite {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bind_group_provider.BufferWrite, len(r.pending))
	copy(out, r.pending)
	return out
}

func (r *renderer) Flush() int {
	r.mu.Lock()
	writes := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(writes) == 0 {
		return 0
	}
	r.backend.WriteBuffers(writes)
	return len(writes)
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.WriteBuffers(writes)
}

func (r *renderer) EncodeDraw(pass *wgpu.RenderPassEncoder, geometry model.Model) {
	r.backend.EncodeInstancedDraw(pass, geometry.MeshProvider())
}

func (r *renderer) Release(geometry model.Model) {
	r.mu.Lock()
	defer r.mu.Unlock()

	provider := geometry.MeshProvider()
	if provider == nil {
		return
	}
	provider.Release()
	delete(r.meshesReady, provider)

	kept := r.pending[:0]
	for _, w := range r.pending {
		if w.Provider != provider {
			kept = append(kept, w)
		}
	}
	r.pending = kept
}

// ensureCapacity grows the buffer at binding so it can hold size bytes. Capacity at least doubles
// on every growth so a steadily growing instance count reallocates a logarithmic number of times.
func (r *renderer) ensureCapacity(provider bind_group_provider.BindGroupProvider, binding int, name string, size uint64) error {
	current := provider.BufferSize(binding)
	if size <= current {
		return nil
	}

	capacity := max(current*2, uint64(minInstanceBufferSize))
	for capacity < size {
		capacity *= 2
	}

	label := fmt.Sprintf("%s %s", provider.Label(), name)
	buf, err := r.backend.CreateInstanceBuffer(label, capacity)
	if err != nil {
		r.logger.Error(err, "instance buffer growth failed", "label", label, "bytes", capacity)
		return err
	}
	if old := provider.Buffer(binding); old != nil {
		old.Release()
	}
	provider.SetBuffer(binding, buf, capacity)

	r.logger.V(1).Info("instance buffer grown", "label", label, "binding", binding, "from", current, "to", capacity)
	return nil
}
