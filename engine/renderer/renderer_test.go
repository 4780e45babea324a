package renderer

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-instancing/engine/instancing"
	"github.com/Carmen-Shannon/oxy-instancing/engine/model"
	"github.com/Carmen-Shannon/oxy-instancing/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingBackend allocates nothing and records every call.
type recordingBackend struct {
	meshInits int
	created   []uint64
	labels    []string
	written   []bind_group_provider.BufferWrite
}

func (b *recordingBackend) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, _, _ []byte, indexCount int) error {
	b.meshInits++
	provider.SetIndexCount(indexCount)
	return nil
}

func (b *recordingBackend) CreateInstanceBuffer(label string, size uint64) (*wgpu.Buffer, error) {
	b.labels = append(b.labels, label)
	b.created = append(b.created, size)
	return nil, nil
}

func (b *recordingBackend) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	b.written = append(b.written, writes...)
}

func (b *recordingBackend) EncodeInstancedDraw(*wgpu.RenderPassEncoder, bind_group_provider.BindGroupProvider) {}

func (b *recordingBackend) Release() {}

func newTestRenderer(t *testing.T, options ...RendererBuilderOption) (Renderer, *recordingBackend) {
	t.Helper()
	backend := &recordingBackend{}
	opts := append([]RendererBuilderOption{
		WithBackend(backend),
		WithLogger(testr.NewWithOptions(t, testr.Options{Verbosity: 1})),
	}, options...)
	r, err := NewRenderer(BackendTypeWGPU, opts...)
	require.NoError(t, err)
	return r, backend
}

func floatAt(data []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
}

func TestStageUploadsDirtyRows(t *testing.T) {
	r, backend := newTestRenderer(t)
	geometry := model.NewCube("cube", 1)
	store := instancing.NewTransformStore(geometry)
	store.CreateInstance()
	id := store.CreateInstance()
	require.NoError(t, store.SetMatrix(id, mgl32.Translate3D(7, 8, 9)))

	staged, err := r.Stage(geometry)
	require.NoError(t, err)
	assert.Equal(t, 3, staged)
	assert.Equal(t, 1, backend.meshInits)
	assert.Equal(t, 2, geometry.MeshProvider().InstanceCount())
	assert.Equal(t, 36, geometry.MeshProvider().IndexCount())

	for _, row := range store.Attributes() {
		assert.False(t, row.NeedsUpdate(), "%s flag lowered", row.Name)
	}

	writes := r.PendingWrites()
	require.Len(t, writes, 3)
	for i, w := range writes {
		assert.Equal(t, i+1, w.Binding)
		assert.Equal(t, uint64(0), w.Offset)
		assert.Len(t, w.Data, 2*16)
		assert.Same(t, geometry.MeshProvider(), w.Provider)
	}
	// row 0 of instance 1 ends with its x translation
	assert.Equal(t, float32(1), floatAt(writes[0].Data, 0))
	assert.Equal(t, float32(7), floatAt(writes[0].Data, 7))
	assert.Equal(t, float32(8), floatAt(writes[1].Data, 7))
	assert.Equal(t, float32(9), floatAt(writes[2].Data, 7))

	assert.Equal(t, []uint64{256, 256, 256}, backend.created)
	assert.Equal(t, "cube_mesh instanceRow0", backend.labels[0])

	again, err := r.Stage(geometry)
	require.NoError(t, err)
	assert.Zero(t, again, "nothing changed since the last stage")
	assert.Equal(t, 1, backend.meshInits)

	assert.Equal(t, 3, r.Flush())
	assert.Len(t, backend.written, 3)
	assert.Empty(t, r.PendingWrites())
	assert.Zero(t, r.Flush())
}

func TestStageSnapshotsData(t *testing.T) {
	r, _ := newTestRenderer(t)
	geometry := model.NewCube("cube", 1)
	store := instancing.NewTransformStore(geometry)
	id := store.CreateInstance()

	_, err := r.Stage(geometry)
	require.NoError(t, err)
	require.NoError(t, store.SetMatrix(id, mgl32.Translate3D(3, 0, 0)))

	writes := r.PendingWrites()
	assert.Equal(t, float32(0), floatAt(writes[0].Data, 3), "staged bytes do not follow later edits")
}

func TestStageGrowsBuffersByDoubling(t *testing.T) {
	r, backend := newTestRenderer(t)
	geometry := model.NewCube("cube", 1)
	store := instancing.NewTransformStore(geometry)

	for range 16 {
		store.CreateInstance()
	}
	_, err := r.Stage(geometry)
	require.NoError(t, err)
	assert.Equal(t, uint64(256), geometry.MeshProvider().BufferSize(1))

	store.CreateInstance()
	_, err = r.Stage(geometry)
	require.NoError(t, err)
	assert.Equal(t, uint64(512), geometry.MeshProvider().BufferSize(1))
	assert.Equal(t, []uint64{256, 256, 256, 512, 512, 512}, backend.created)

	for range 100 {
		store.CreateInstance()
	}
	_, err = r.Stage(geometry)
	require.NoError(t, err)
	assert.Equal(t, uint64(2048), geometry.MeshProvider().BufferSize(1))
}

func TestStageAfterDestroyUploadsCompactedRows(t *testing.T) {
	r, _ := newTestRenderer(t)
	geometry := model.NewCube("cube", 1)
	store := instancing.NewTransformStore(geometry)
	a := store.CreateInstance()
	b := store.CreateInstance()
	require.NoError(t, store.SetMatrix(b, mgl32.Translate3D(4, 0, 0)))
	_, err := r.Stage(geometry)
	require.NoError(t, err)
	r.Flush()

	require.NoError(t, store.DestroyInstance(a))
	staged, err := r.Stage(geometry)
	require.NoError(t, err)
	assert.Equal(t, 3, staged)
	assert.Equal(t, 1, geometry.MeshProvider().InstanceCount())

	writes := r.PendingWrites()
	require.Len(t, writes[0].Data, 16)
	assert.Equal(t, float32(4), floatAt(writes[0].Data, 3))
}

func TestAttributeBindings(t *testing.T) {
	r, _ := newTestRenderer(t, WithAttributeBinding(instancing.AttributeRow2, 7))
	geometry := model.NewCube("cube", 1)
	instancing.NewTransformStore(geometry)

	assert.Equal(t, 1, r.Binding(geometry, instancing.AttributeRow0))
	assert.Equal(t, 2, r.Binding(geometry, instancing.AttributeRow1))
	assert.Equal(t, 7, r.Binding(geometry, instancing.AttributeRow2))
	assert.Equal(t, -1, r.Binding(geometry, "missing"))
}

func TestReleaseDropsPendingWrites(t *testing.T) {
	r, backend := newTestRenderer(t)
	kept := model.NewCube("kept", 1)
	dropped := model.NewCube("dropped", 1)
	instancing.NewTransformStore(kept).CreateInstance()
	instancing.NewTransformStore(dropped).CreateInstance()

	_, err := r.Stage(kept)
	require.NoError(t, err)
	_, err = r.Stage(dropped)
	require.NoError(t, err)

	r.Release(dropped)
	assert.Empty(t, dropped.MeshProvider().Bindings())
	assert.Equal(t, 3, r.Flush())
	for _, w := range backend.written {
		assert.Same(t, kept.MeshProvider(), w.Provider)
	}

	_, err = r.Stage(dropped)
	require.NoError(t, err)
	assert.Equal(t, 3, backend.meshInits, "released meshes are initialised again")
}
