package instancing

import (
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/oxy-instancing/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (TransformStore, model.Model) {
	t.Helper()
	geometry := model.NewCube("cube", 2)
	logger := testr.NewWithOptions(t, testr.Options{Verbosity: 2})
	return NewTransformStore(geometry, WithStoreLogger(logger)), geometry
}

func TestNewTransformStoreRegistersRows(t *testing.T) {
	s, geometry := newTestStore(t)

	assert.Equal(t, []string{AttributeRow0, AttributeRow1, AttributeRow2}, geometry.AttributeNames())
	rows := s.Attributes()
	for i, name := range []string{AttributeRow0, AttributeRow1, AttributeRow2} {
		assert.Same(t, rows[i], geometry.Attribute(name))
		assert.Equal(t, 4, rows[i].ItemSize)
	}
	assert.Zero(t, s.InstanceCount())
	assert.Zero(t, geometry.MaxInstancedCount())
}

func TestCreateInstance(t *testing.T) {
	s, geometry := newTestStore(t)

	for want := range 3 {
		id := s.CreateInstance()
		assert.Equal(t, InstanceID(want), id)
		slot, err := s.Slot(id)
		require.NoError(t, err)
		assert.Equal(t, want, slot)

		m, err := s.Matrix(id)
		require.NoError(t, err)
		assert.Equal(t, mgl32.Ident4(), m)
	}
	assert.Equal(t, 3, s.InstanceCount())
	assert.Equal(t, 3, geometry.MaxInstancedCount())
	for _, row := range s.Attributes() {
		assert.True(t, row.NeedsUpdate())
		assert.Len(t, row.Data, 12)
	}
}

func TestStoreScenario(t *testing.T) {
	s, _ := newTestStore(t)
	a, b, c := s.CreateInstance(), s.CreateInstance(), s.CreateInstance()
	require.Equal(t, []InstanceID{0, 1, 2}, []InstanceID{a, b, c})

	require.NoError(t, s.SetMatrix(b, mgl32.Translate3D(5, 0, 0)))
	got, err := s.Matrix(b)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Translate3D(5, 0, 0), got)
	for _, id := range []InstanceID{a, c} {
		got, err := s.Matrix(id)
		require.NoError(t, err)
		assert.Equal(t, mgl32.Ident4(), got)
	}

	require.NoError(t, s.DestroyInstance(a))
	assert.Equal(t, 2, s.InstanceCount())
	slot, err := s.Slot(b)
	require.NoError(t, err)
	assert.Equal(t, 0, slot)
	got, err = s.Matrix(b)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Translate3D(5, 0, 0), got, "value survives compaction")
}

func TestDestroyPreservesOrder(t *testing.T) {
	s, _ := newTestStore(t)
	a, b, c := s.CreateInstance(), s.CreateInstance(), s.CreateInstance()
	require.NoError(t, s.SetMatrix(c, mgl32.Translate3D(0, 0, 3)))

	slotC, err := s.Slot(c)
	require.NoError(t, err)
	require.NoError(t, s.DestroyInstance(b))

	slotA, err := s.Slot(a)
	require.NoError(t, err)
	newSlotC, err := s.Slot(c)
	require.NoError(t, err)
	assert.Less(t, slotA, newSlotC)
	assert.Equal(t, slotC-1, newSlotC)
	assert.Equal(t, []InstanceID{a, c}, s.IDs())

	got, err := s.MatrixBySlot(newSlotC)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Translate3D(0, 0, 3), got)
}

func TestDestroyTwiceFails(t *testing.T) {
	s, _ := newTestStore(t)
	id := s.CreateInstance()

	require.NoError(t, s.DestroyInstance(id))
	err := s.DestroyInstance(id)
	require.ErrorIs(t, err, ErrUnknownInstance)
	assert.False(t, s.Contains(id))
}

func TestUnknownInstanceAndSlotErrors(t *testing.T) {
	s, _ := newTestStore(t)
	s.CreateInstance()

	_, err := s.Matrix(42)
	assert.ErrorIs(t, err, ErrUnknownInstance)
	assert.ErrorIs(t, s.SetMatrix(42, mgl32.Ident4()), ErrUnknownInstance)
	_, err = s.Slot(42)
	assert.ErrorIs(t, err, ErrUnknownInstance)

	for _, slot := range []int{-1, 1, 10} {
		_, err = s.MatrixBySlot(slot)
		assert.ErrorIs(t, err, ErrSlotOutOfRange, "slot %d", slot)
		_, err = s.IDAt(slot)
		assert.ErrorIs(t, err, ErrSlotOutOfRange, "slot %d", slot)
	}
}

func TestIDsAreNeverReused(t *testing.T) {
	s, _ := newTestStore(t)
	first := s.CreateInstance()
	require.NoError(t, s.DestroyInstance(first))
	assert.Equal(t, InstanceID(1), s.CreateInstance())
}

func TestSetMatrixRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	id := s.CreateInstance()

	tests := []struct {
		name string
		m    mgl32.Mat4
	}{
		{"translation", mgl32.Translate3D(1, -2, 3)},
		{"rotation", mgl32.HomogRotate3DY(0.7)},
		{"scale", mgl32.Scale3D(2, 3, 4)},
		{"composed", mgl32.Translate3D(4, 5, 6).Mul4(mgl32.HomogRotate3DX(1.1)).Mul4(mgl32.Scale3D(0.5, 0.5, 2))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, s.SetMatrix(id, tt.m))
			got, err := s.Matrix(id)
			require.NoError(t, err)
			assert.Equal(t, tt.m, got)
			assert.Equal(t, mgl32.Vec4{0, 0, 0, 1}, got.Row(3))

			again, err := s.Matrix(id)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestSetMatrixDropsProjectiveRow(t *testing.T) {
	s, _ := newTestStore(t)
	id := s.CreateInstance()

	m := mgl32.Translate3D(1, 2, 3)
	m.Set(3, 0, 9)
	m.Set(3, 3, 5)
	require.NoError(t, s.SetMatrix(id, m))

	got, err := s.Matrix(id)
	require.NoError(t, err)
	assert.Equal(t, mgl32.Translate3D(1, 2, 3), got)
}

func TestSetMatrixMarksRowsDirty(t *testing.T) {
	s, _ := newTestStore(t)
	id := s.CreateInstance()
	for _, row := range s.Attributes() {
		row.ClearNeedsUpdate()
	}

	require.NoError(t, s.SetMatrix(id, mgl32.Translate3D(1, 0, 0)))
	rows := s.Attributes()
	for _, row := range rows {
		assert.True(t, row.NeedsUpdate())
	}
	assert.Equal(t, []float32{1, 0, 0, 1}, rows[0].Data)
	assert.Equal(t, []float32{0, 1, 0, 0}, rows[1].Data)
	assert.Equal(t, []float32{0, 0, 1, 0}, rows[2].Data)
}

func TestRandomCreateDestroyKeepsInvariants(t *testing.T) {
	s, geometry := newTestStore(t)
	rng := rand.New(rand.NewSource(7))

	live := map[InstanceID]mgl32.Mat4{}
	created, destroyed := 0, 0
	for step := range 500 {
		if len(live) == 0 || rng.Intn(3) > 0 {
			id := s.CreateInstance()
			m := mgl32.Translate3D(float32(step), float32(id), 0)
			require.NoError(t, s.SetMatrix(id, m))
			live[id] = m
			created++
		} else {
			ids := s.IDs()
			id := ids[rng.Intn(len(ids))]
			require.NoError(t, s.DestroyInstance(id))
			delete(live, id)
			destroyed++
		}

		count := s.InstanceCount()
		require.Equal(t, created-destroyed, count)
		require.Equal(t, count, geometry.MaxInstancedCount())
		for _, row := range s.Attributes() {
			require.Len(t, row.Data, 4*count)
		}

		seen := make([]bool, count)
		for id, want := range live {
			slot, err := s.Slot(id)
			require.NoError(t, err)
			require.True(t, slot >= 0 && slot < count)
			require.False(t, seen[slot], "slot %d assigned twice", slot)
			seen[slot] = true

			back, err := s.IDAt(slot)
			require.NoError(t, err)
			require.Equal(t, id, back)

			got, err := s.Matrix(id)
			require.NoError(t, err)
			require.Equal(t, want, got)
		}
	}
}

func TestWithInitialCapacity(t *testing.T) {
	geometry := model.NewCube("cube", 1)
	s := NewTransformStore(geometry, WithInitialCapacity(64), WithInvariantChecks(false))

	for _, row := range s.Attributes() {
		assert.GreaterOrEqual(t, cap(row.Data), 256)
	}
	s.CreateInstance()
	assert.Equal(t, 1, s.InstanceCount())
}

func TestAffineConversion(t *testing.T) {
	m := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.HomogRotate3DZ(0.3))
	a := AffineFromMat4(m)
	assert.Equal(t, mgl32.Vec4{m.At(0, 0), m.At(0, 1), m.At(0, 2), 1}, a[0])
	assert.Equal(t, m, a.Mat4())
	assert.Equal(t, mgl32.Ident4(), IdentityAffine().Mat4())
}
