package bind_group_provider

import (
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label, used as the prefix of GPU resource labels.
	label string

	// The following fields are GPU allocated resources and must be released when no longer needed.
	// They are populated by the upload stage, not by user-creation.

	// bindGroup is the GPU bind group created for this provider, or nil if not initialized.
	bindGroup *wgpu.BindGroup
	// bindGroupLayout is the GPU bind group layout created for this provider, or nil if not initialized.
	bindGroupLayout *wgpu.BindGroupLayout
	// buffers holds the GPU buffers created for this provider, keyed by binding index.
	// For instanced geometry these are the per-instance vertex buffers.
	buffers map[int]*wgpu.Buffer
	// bufferSizes holds the allocated byte size of each buffer in buffers.
	bufferSizes map[int]uint64

	// vertexBuffer is the GPU vertex buffer holding the shared mesh vertices, or nil if not uploaded.
	vertexBuffer *wgpu.Buffer
	// indexBuffer is the GPU index buffer holding the shared mesh indices, or nil if not uploaded.
	indexBuffer *wgpu.Buffer
	// indexCount is the number of indices for indexed draw calls.
	indexCount int
	// instanceCount is the number of instances the next draw should issue.
	instanceCount int
}

// BindGroupProvider defines the interface for drawables that own GPU resources.
// A model holds a BindGroupProvider describing its mesh buffers and per-instance attribute buffers;
// the upload stage allocates the buffers and writes staged data into them, and the draw stage
// reads them back to bind vertex buffers and issue instanced draws.
//
// Usage pattern:
//  1. Model creates a BindGroupProvider labelled after itself
//  2. The upload stage allocates buffers with SetBuffer as attribute data grows
//  3. The upload stage writes staged BufferWrite values into Buffer(binding)
//  4. The draw stage binds VertexBuffer, IndexBuffer and Buffers, then draws InstanceCount instances
type BindGroupProvider interface {
	// Release releases any GPU resources held by this provider.
	// It will clean up all buffers and bind groups and forget their sizes.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the created bind group for shader binding.
	// Returns nil if GPU resources have not been initialized.
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group or nil
	BindGroup() *wgpu.BindGroup

	// BindGroupLayout returns the layout the bind group was created from.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the layout or nil
	BindGroupLayout() *wgpu.BindGroupLayout

	// Buffer returns the GPU buffer for a specific binding index.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil if not found
	Buffer(binding int) *wgpu.Buffer

	// BufferSize returns the allocated byte size of the buffer at a binding index.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - uint64: the size in bytes, or 0 if no buffer is allocated
	BufferSize(binding int) uint64

	// Buffers returns all GPU buffers keyed by binding index.
	//
	// Returns:
	//   - map[int]*wgpu.Buffer: the binding to buffer map
	Buffers() map[int]*wgpu.Buffer

	// Bindings returns the binding indices that have a buffer allocated, in ascending order.
	//
	// Returns:
	//   - []int: the sorted binding indices
	Bindings() []int

	// VertexBuffer returns the vertex buffer.
	//
	// Returns:
	//   - *wgpu.Buffer: the vertex buffer or nil
	VertexBuffer() *wgpu.Buffer

	// IndexBuffer returns the index buffer.
	//
	// Returns:
	//   - *wgpu.Buffer: the index buffer or nil
	IndexBuffer() *wgpu.Buffer

	// IndexCount returns the number of indices for indexed draw calls.
	//
	// Returns:
	//   - int: the index count
	IndexCount() int

	// InstanceCount returns the number of instances the next draw should issue.
	//
	// Returns:
	//   - int: the instance count
	InstanceCount() int

	// SetBindGroup sets the bind group.
	//
	// Parameters:
	//   - bg: the bind group
	SetBindGroup(bg *wgpu.BindGroup)

	// SetBindGroupLayout sets the bind group layout.
	//
	// Parameters:
	//   - bgl: the bind group layout
	SetBindGroupLayout(bgl *wgpu.BindGroupLayout)

	// SetBuffer sets the buffer for a binding index and records its size.
	// A previous buffer at the same binding is not released; the caller owns that decision.
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the buffer
	//   - size: the buffer size in bytes
	SetBuffer(binding int, buf *wgpu.Buffer, size uint64)

	// SetVertexBuffer sets the vertex buffer.
	//
	// Parameters:
	//   - buf: the vertex buffer
	SetVertexBuffer(buf *wgpu.Buffer)

	// SetIndexBuffer sets the index buffer.
	//
	// Parameters:
	//   - buf: the index buffer
	SetIndexBuffer(buf *wgpu.Buffer)

	// SetIndexCount sets the number of indices for draw calls.
	//
	// Parameters:
	//   - count: the index count
	SetIndexCount(count int)

	// SetInstanceCount sets the number of instances for draw calls.
	//
	// Parameters:
	//   - count: the instance count
	SetInstanceCount(count int)
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: the debug label
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:       label,
		buffers:     make(map[int]*wgpu.Buffer),
		bufferSizes: make(map[int]uint64),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) BindGroupLayout() *wgpu.BindGroupLayout {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) BufferSize(binding int) uint64 {
	return p.bufferSizes[binding]
}

func (p *bindGroupProvider) Buffers() map[int]*wgpu.Buffer {
	return p.buffers
}

func (p *bindGroupProvider) Bindings() []int {
	out := make([]int, 0, len(p.bufferSizes))
	for binding := range p.bufferSizes {
		out = append(out, binding)
	}
	sort.Ints(out)
	return out
}

func (p *bindGroupProvider) VertexBuffer() *wgpu.Buffer {
	return p.vertexBuffer
}

func (p *bindGroupProvider) IndexBuffer() *wgpu.Buffer {
	return p.indexBuffer
}

func (p *bindGroupProvider) IndexCount() int {
	return p.indexCount
}

func (p *bindGroupProvider) InstanceCount() int {
	return p.instanceCount
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup) {
	p.bindGroup = bg
}

func (p *bindGroupProvider) SetBindGroupLayout(bgl *wgpu.BindGroupLayout) {
	p.bindGroupLayout = bgl
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer, size uint64) {
	if p.buffers == nil {
		p.buffers = make(map[int]*wgpu.Buffer)
	}
	if p.bufferSizes == nil {
		p.bufferSizes = make(map[int]uint64)
	}
	p.buffers[binding] = buf
	p.bufferSizes[binding] = size
}

func (p *bindGroupProvider) SetVertexBuffer(buf *wgpu.Buffer) {
	p.vertexBuffer = buf
}

func (p *bindGroupProvider) SetIndexBuffer(buf *wgpu.Buffer) {
	p.indexBuffer = buf
}

func (p *bindGroupProvider) SetIndexCount(count int) {
	p.indexCount = count
}

func (p *bindGroupProvider) SetInstanceCount(count int) {
	p.instanceCount = count
}

func (p *bindGroupProvider) Release() {
	for i, buf := range p.buffers {
		if buf != nil {
			buf.Release()
		}
		delete(p.buffers, i)
		delete(p.bufferSizes, i)
	}

	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	if p.bindGroupLayout != nil {
		p.bindGroupLayout.Release()
		p.bindGroupLayout = nil
	}
	if p.vertexBuffer != nil {
		p.vertexBuffer.Release()
		p.vertexBuffer = nil
	}
	if p.indexBuffer != nil {
		p.indexBuffer.Release()
		p.indexBuffer = nil
	}
}
