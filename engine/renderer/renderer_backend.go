package renderer

import (
	"github.com/Carmen-Shannon/oxy-instancing/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based backend.
	BackendTypeWGPU RendererBackendType = iota
)

// RendererBackend is the GPU-facing half of the Renderer. The Renderer decides what to upload
// and when; the backend allocates buffers and submits writes and draws to a specific GPU API.
type RendererBackend interface {
	// InitMeshBuffers creates vertex and index buffers from raw byte data, uploads the data,
	// and stores the buffers on the provider.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to store the created buffers on
	//   - vertexData: the raw vertex data bytes
	//   - indexData: the raw index data bytes
	//   - indexCount: the number of indices, used for draw calls
	//
	// Returns:
	//   - error: an error if buffer creation fails
	InitMeshBuffers(provider bind_group_provider.BindGroupProvider, vertexData, indexData []byte, indexCount int) error

	// CreateInstanceBuffer allocates a per-instance vertex buffer that can be written through the queue.
	//
	// Parameters:
	//   - label: the GPU debug label
	//   - size: the buffer size in bytes
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer
	//   - error: an error if buffer creation fails
	CreateInstanceBuffer(label string, size uint64) (*wgpu.Buffer, error)

	// WriteBuffers writes all staged buffer writes to the GPU queue.
	// Writes whose target buffer does not exist are skipped.
	//
	// Parameters:
	//   - writes: the writes to submit, in order
	WriteBuffers(writes []bind_group_provider.BufferWrite)

	// EncodeInstancedDraw binds the provider's mesh buffers and per-instance buffers on pass and
	// encodes one indexed draw of InstanceCount instances. The mesh occupies vertex slot 0 and
	// every per-instance binding occupies the slot equal to its binding index.
	//
	// Parameters:
	//   - pass: the render pass with a compatible pipeline already set
	//   - provider: the BindGroupProvider holding the buffers
	EncodeInstancedDraw(pass *wgpu.RenderPassEncoder, provider bind_group_provider.BindGroupProvider)

	// Release releases the device and queue owned by the backend.
	Release()
}
