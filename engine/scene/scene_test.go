package scene

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-instancing/common"
	"github.com/Carmen-Shannon/oxy-instancing/engine/camera"
	"github.com/Carmen-Shannon/oxy-instancing/engine/game_object"
	"github.com/Carmen-Shannon/oxy-instancing/engine/instancing"
	"github.com/Carmen-Shannon/oxy-instancing/engine/model"
	"github.com/Carmen-Shannon/oxy-instancing/engine/profiler"
	"github.com/Carmen-Shannon/oxy-instancing/engine/renderer"
	"github.com/Carmen-Shannon/oxy-instancing/engine/renderer/bind_group_provider"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingBackend allocates nothing and counts submitted writes.
type countingBackend struct {
	writes int
}

func (b *countingBackend) InitMeshBuffers(provider bind_group_provider.BindGroupProvider, _, _ []byte, indexCount int) error {
	provider.SetIndexCount(indexCount)
	return nil
}

func (b *countingBackend) CreateInstanceBuffer(string, uint64) (*wgpu.Buffer, error) {
	return nil, nil
}

func (b *countingBackend) WriteBuffers(writes []bind_group_provider.BufferWrite) {
	b.writes += len(writes)
}

func (b *countingBackend) EncodeInstancedDraw(*wgpu.RenderPassEncoder, bind_group_provider.BindGroupProvider) {}

func (b *countingBackend) Release() {}

// the ray runs down -z, off the cube face diagonals
func testRay() common.Ray {
	return common.NewRay(mgl32.Vec3{0.3, -0.2, 10}, mgl32.Vec3{0, 0, -1})
}

func newTestScene(t *testing.T, options ...SceneBuilderOption) Scene {
	t.Helper()
	logger := testr.NewWithOptions(t, testr.Options{Verbosity: 2})
	return NewScene("test", append([]SceneBuilderOption{WithLogger(logger), WithWorkers(2)}, options...)...)
}

func TestAddGetRemove(t *testing.T) {
	s := newTestScene(t)
	a := game_object.NewGameObject()
	b := game_object.NewGameObject(game_object.WithID(40))

	assert.Equal(t, uint64(1), s.Add(a))
	assert.Equal(t, uint64(40), s.Add(b))
	assert.Equal(t, 2, s.Count())
	assert.Same(t, a, s.Get(1))

	s.Remove(1)
	assert.Nil(t, s.Get(1))
	assert.Equal(t, 1, s.Count())

	s.Clear()
	assert.Zero(t, s.Count())
}

func TestAddInstancedMeshCreatesAnimator(t *testing.T) {
	mesh := instancing.NewInstancedMesh(model.NewCube("cube", 2))
	mesh.CreateInstance()
	s := newTestScene(t, WithInstancedMeshes(mesh))

	require.Len(t, s.InstancedMeshes(), 1)
	assert.Same(t, mesh.Node(), s.Get(mesh.Node().ID()))
	anim := s.Animator(mesh)
	require.NotNil(t, anim)
	assert.Equal(t, 1, anim.InstanceCount())
	assert.Equal(t, 1, s.CountInstances())

	assert.Equal(t, mesh.Node().ID(), s.AddInstancedMesh(mesh), "adding twice is a no-op")
	assert.Len(t, s.InstancedMeshes(), 1)

	s.Remove(mesh.Node().ID())
	assert.Empty(t, s.InstancedMeshes())
	assert.Nil(t, s.Animator(mesh))
	assert.Zero(t, s.CountInstances())
}

func TestUpdateRunsAnimatorsAndStages(t *testing.T) {
	backend := &countingBackend{}
	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, renderer.WithBackend(backend))
	require.NoError(t, err)

	clock := time.Unix(0, 0)
	prof := profiler.NewProfiler(profiler.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	cam := camera.NewCamera()
	s := newTestScene(t, WithRenderer(r), WithProfiler(prof), WithCamera(cam))

	mesh := instancing.NewInstancedMesh(model.NewCube("cube", 1))
	s.AddInstancedMesh(mesh)
	anim := s.Animator(mesh)
	id := anim.AddInstance()
	require.NoError(t, anim.SetInstanceRotation(id, [3]float32{0, 2, 0}, [3]float32{}))

	spinner := game_object.NewGameObject(game_object.WithRotationSpeed(0, 0, 1))
	s.Add(spinner)

	require.NoError(t, s.Update(0.5))

	got, err := mesh.Matrix(id)
	require.NoError(t, err)
	assert.True(t, got.ApproxEqualThreshold(mgl32.HomogRotate3DY(1), 1e-5))
	_, _, rz := spinner.Rotation()
	assert.InDelta(t, 0.5, rz, 1e-6)

	assert.Equal(t, 3, backend.writes, "one write per row attribute")

	cam.BindGroupProvider().SetBuffer(0, nil, 80)
	require.NoError(t, s.Update(0))
	assert.Equal(t, 7, backend.writes, "rows rewritten for the spinning instance plus the camera uniform")
	assert.Equal(t, 1, mesh.Geometry().MeshProvider().InstanceCount())
	for _, row := range mesh.Store().Attributes() {
		assert.False(t, row.NeedsUpdate())
	}
	assert.Equal(t, 1, prof.Last().Instances)

	s.RemoveInstancedMesh(mesh)
	assert.Empty(t, mesh.Geometry().MeshProvider().Bindings(), "removing a mesh releases its buffers")
}

func TestRaycastSortsAcrossDrawables(t *testing.T) {
	s := newTestScene(t)

	near := instancing.NewInstancedMesh(model.NewCube("near", 2))
	a := near.CreateInstance()
	b := near.CreateInstance()
	require.NoError(t, near.SetMatrix(b, mgl32.Translate3D(0, 0, -5)))

	far := instancing.NewInstancedMesh(model.NewCube("far", 2),
		instancing.WithNode(game_object.NewGameObject(game_object.WithPosition(0, 0, -2))))
	c := far.CreateInstance()
	require.NoError(t, far.SetMatrix(c, mgl32.Translate3D(0, 0, -8)))

	plainModel := model.NewCube("plain", 2)
	plain := game_object.NewGameObject(game_object.WithModel(plainModel), game_object.WithPosition(0, 0, -20))

	s.AddInstancedMesh(far)
	s.AddInstancedMesh(near)
	s.Add(plain)

	hits, err := s.Raycast(testRay())
	require.NoError(t, err)
	require.Len(t, hits, 4)

	distances := make([]float32, len(hits))
	for i, h := range hits {
		distances[i] = h.Distance
	}
	assert.InDeltaSlice(t, []float32{9, 14, 19, 29}, distances, 1e-4)

	assert.Equal(t, uint64(a), hits[0].InstanceID)
	assert.Same(t, near, hits[0].Object)
	assert.Equal(t, uint64(b), hits[1].InstanceID)
	assert.Same(t, far, hits[2].Object)
	assert.Equal(t, uint64(c), hits[2].InstanceID)
	assert.Same(t, plainModel, hits[3].Object)
	assert.Equal(t, -1, hits[3].Slot)
}

func TestRaycastSeesParentMoves(t *testing.T) {
	s := newTestScene(t)
	parent := game_object.NewGameObject()
	mesh := instancing.NewInstancedMesh(model.NewCube("cube", 2),
		instancing.WithNode(game_object.NewGameObject(game_object.WithParent(parent))))
	mesh.CreateInstance()
	s.Add(parent)
	s.AddInstancedMesh(mesh)

	hits, err := s.Raycast(testRay())
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 9, hits[0].Distance, 1e-4)

	parent.SetPosition(0, 0, -4)
	hits, err = s.Raycast(testRay())
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 13, hits[0].Distance, 1e-4)

	mesh.Node().SetEnabled(false)
	hits, err = s.Raycast(testRay())
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVisible(t *testing.T) {
	s := newTestScene(t)
	cam := camera.NewCamera()

	inView := game_object.NewGameObject(game_object.WithModel(model.NewCube("in", 1)))
	outside := game_object.NewGameObject(game_object.WithModel(model.NewCube("out", 1)), game_object.WithPosition(500, 0, 0))
	behind := game_object.NewGameObject(game_object.WithModel(model.NewCube("behind", 1)), game_object.WithPosition(0, 0, 50))
	disabled := game_object.NewGameObject(game_object.WithModel(model.NewCube("off", 1)), game_object.WithEnabled(false))
	empty := game_object.NewGameObject()
	for _, obj := range []game_object.GameObject{inView, outside, behind, disabled, empty} {
		s.Add(obj)
	}

	mesh := instancing.NewInstancedMesh(model.NewCube("instanced", 1),
		instancing.WithNode(game_object.NewGameObject(game_object.WithPosition(500, 0, 0))))
	s.AddInstancedMesh(mesh)

	visible := s.Visible(cam)
	assert.ElementsMatch(t, []game_object.GameObject{inView, mesh.Node()}, visible)
}
