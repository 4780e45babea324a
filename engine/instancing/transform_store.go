package instancing

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-instancing/common"
	"github.com/Carmen-Shannon/oxy-instancing/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-logr/logr"
)

// Names under which the three packed transform rows are registered on the geometry.
const (
	AttributeRow0 = "instanceRow0"
	AttributeRow1 = "instanceRow1"
	AttributeRow2 = "instanceRow2"
)

// rowStride is the number of float32 values one instance occupies in each row attribute.
const rowStride = 4

// InstanceID is a stable instance handle. IDs increase monotonically from 0 and are never reused.
type InstanceID uint64

type transformStore struct {
	logger   logr.Logger
	geometry model.Model
	rows     [3]*model.InstancedAttribute

	nextID   InstanceID
	idToSlot map[InstanceID]int
	slotToID []InstanceID

	checkInvariants bool
}

// TransformStore owns the identity table and packed transform rows for every instance of one
// geometry. Instances live in dense slots [0, InstanceCount()); removing an instance shifts the
// instances after it down by one slot, keeping their relative order.
//
// Every mutation raises the NeedsUpdate flag of all three row attributes and updates the
// geometry's MaxInstancedCount. Not safe for concurrent use.
type TransformStore interface {
	// CreateInstance allocates a new instance with an identity transform in the last slot.
	//
	// Returns:
	//   - InstanceID: the new instance's ID
	CreateInstance() InstanceID

	// DestroyInstance removes an instance and compacts the slots behind it.
	//
	// Parameters:
	//   - id: the instance to remove
	//
	// Returns:
	//   - error: ErrUnknownInstance if id is not live
	DestroyInstance(id InstanceID) error

	// SetMatrix stores the affine part of m as the instance's transform.
	//
	// Parameters:
	//   - id: the instance to update
	//   - m: the new local transform; row 3 is ignored
	//
	// Returns:
	//   - error: ErrUnknownInstance if id is not live
	SetMatrix(id InstanceID, m mgl32.Mat4) error

	// Matrix returns the instance's transform with row 3 reconstructed as [0, 0, 0, 1].
	//
	// Parameters:
	//   - id: the instance to read
	//
	// Returns:
	//   - mgl32.Mat4: the transform
	//   - error: ErrUnknownInstance if id is not live
	Matrix(id InstanceID) (mgl32.Mat4, error)

	// MatrixBySlot returns the transform stored at a slot.
	//
	// Parameters:
	//   - slot: the dense slot to read
	//
	// Returns:
	//   - mgl32.Mat4: the transform
	//   - error: ErrSlotOutOfRange if slot is outside [0, InstanceCount())
	MatrixBySlot(slot int) (mgl32.Mat4, error)

	// Affine returns the stored rows of an instance's transform.
	//
	// Parameters:
	//   - id: the instance to read
	//
	// Returns:
	//   - Affine3x4: the stored rows
	//   - error: ErrUnknownInstance if id is not live
	Affine(id InstanceID) (Affine3x4, error)

	// InstanceCount returns the number of live instances.
	//
	// Returns:
	//   - int: the live instance count
	InstanceCount() int

	// Slot resolves an instance's current slot.
	//
	// Parameters:
	//   - id: the instance to resolve
	//
	// Returns:
	//   - int: the slot
	//   - error: ErrUnknownInstance if id is not live
	Slot(id InstanceID) (int, error)

	// IDAt resolves the instance currently stored at a slot.
	//
	// Parameters:
	//   - slot: the slot to resolve
	//
	// Returns:
	//   - InstanceID: the instance at slot
	//   - error: ErrSlotOutOfRange if slot is outside [0, InstanceCount())
	IDAt(slot int) (InstanceID, error)

	// Contains reports whether id is live.
	//
	// Parameters:
	//   - id: the instance to check
	//
	// Returns:
	//   - bool: true if live
	Contains(id InstanceID) bool

	// IDs returns the live IDs in slot order.
	//
	// Returns:
	//   - []InstanceID: a copy of the slot table
	IDs() []InstanceID

	// Geometry returns the geometry the row attributes are registered on.
	//
	// Returns:
	//   - model.Model: the geometry
	Geometry() model.Model

	// Attributes returns the three row attributes in row order.
	//
	// Returns:
	//   - [3]*model.InstancedAttribute: rows 0, 1 and 2
	Attributes() [3]*model.InstancedAttribute
}

var _ TransformStore = &transformStore{}

// NewTransformStore creates an empty TransformStore and registers its three row attributes
// on geometry, replacing any attributes already registered under the same names.
//
// Parameters:
//   - geometry: the geometry that will be drawn once per instance
//   - options: functional options to configure the store
//
// Returns:
//   - TransformStore: the new store
func NewTransformStore(geometry model.Model, options ...TransformStoreBuilderOption) TransformStore {
	if geometry == nil {
		panic("instancing: NewTransformStore requires a geometry")
	}
	s := &transformStore{
		logger:   logr.Discard(),
		geometry: geometry,
		idToSlot: make(map[InstanceID]int),

		checkInvariants: true,
	}
	s.rows = [3]*model.InstancedAttribute{
		model.NewInstancedAttribute(AttributeRow0, rowStride),
		model.NewInstancedAttribute(AttributeRow1, rowStride),
		model.NewInstancedAttribute(AttributeRow2, rowStride),
	}
	for _, option := range options {
		option(s)
	}
	for _, row := range s.rows {
		geometry.SetAttribute(row)
	}
	geometry.SetMaxInstancedCount(0)
	return s
}

func (s *transformStore) CreateInstance() InstanceID {
	id := s.nextID
	s.nextID++

	slot := len(s.slotToID)
	s.slotToID = append(s.slotToID, id)
	s.idToSlot[id] = slot

	identity := IdentityAffine()
	for r, row := range s.rows {
		row.Data = append(row.Data, identity[r][:]...)
	}
	s.changed()

	s.logger.V(2).Info("instance created", "id", id, "slot", slot)
	return id
}

func (s *transformStore) DestroyInstance(id InstanceID) error {
	slot, ok := s.idToSlot[id]
	if !ok {
		return fmt.Errorf("destroy instance %d: %w", id, ErrUnknownInstance)
	}

	start := slot * rowStride
	for _, row := range s.rows {
		row.Data = append(row.Data[:start], row.Data[start+rowStride:]...)
	}
	s.slotToID = append(s.slotToID[:slot], s.slotToID[slot+1:]...)
	delete(s.idToSlot, id)
	for i := slot; i < len(s.slotToID); i++ {
		s.idToSlot[s.slotToID[i]] = i
	}
	s.changed()

	s.logger.V(2).Info("instance destroyed", "id", id, "slot", slot, "shifted", len(s.slotToID)-slot)
	return nil
}

func (s *transformStore) SetMatrix(id InstanceID, m mgl32.Mat4) error {
	slot, ok := s.idToSlot[id]
	if !ok {
		return fmt.Errorf("set matrix of instance %d: %w", id, ErrUnknownInstance)
	}
	if !common.IsAffine(m) {
		s.logger.V(2).Info("projective row dropped", "id", id, "row", m.Row(3))
	}
	a := AffineFromMat4(m)
	start := slot * rowStride
	for r, row := range s.rows {
		copy(row.Data[start:start+rowStride], a[r][:])
		row.MarkNeedsUpdate()
	}
	return nil
}

func (s *transformStore) Matrix(id InstanceID) (mgl32.Mat4, error) {
	a, err := s.Affine(id)
	if err != nil {
		return mgl32.Mat4{}, err
	}
	return a.Mat4(), nil
}

func (s *transformStore) MatrixBySlot(slot int) (mgl32.Mat4, error) {
	if slot < 0 || slot >= len(s.slotToID) {
		return mgl32.Mat4{}, fmt.Errorf("matrix at slot %d of %d: %w", slot, len(s.slotToID), ErrSlotOutOfRange)
	}
	return s.affineAt(slot).Mat4(), nil
}

func (s *transformStore) Affine(id InstanceID) (Affine3x4, error) {
	slot, ok := s.idToSlot[id]
	if !ok {
		return Affine3x4{}, fmt.Errorf("matrix of instance %d: %w", id, ErrUnknownInstance)
	}
	return s.affineAt(slot), nil
}

func (s *transformStore) InstanceCount() int {
	return len(s.slotToID)
}

func (s *transformStore) Slot(id InstanceID) (int, error) {
	slot, ok := s.idToSlot[id]
	if !ok {
		return -1, fmt.Errorf("slot of instance %d: %w", id, ErrUnknownInstance)
	}
	return slot, nil
}

func (s *transformStore) IDAt(slot int) (InstanceID, error) {
	if slot < 0 || slot >= len(s.slotToID) {
		return 0, fmt.Errorf("instance at slot %d of %d: %w", slot, len(s.slotToID), ErrSlotOutOfRange)
	}
	return s.slotToID[slot], nil
}

func (s *transformStore) Contains(id InstanceID) bool {
	_, ok := s.idToSlot[id]
	return ok
}

func (s *transformStore) IDs() []InstanceID {
	out := make([]InstanceID, len(s.slotToID))
	copy(out, s.slotToID)
	return out
}

func (s *transformStore) Geometry() model.Model {
	return s.geometry
}

func (s *transformStore) Attributes() [3]*model.InstancedAttribute {
	return s.rows
}

func (s *transformStore) affineAt(slot int) Affine3x4 {
	var a Affine3x4
	start := slot * rowStride
	for r, row := range s.rows {
		copy(a[r][:], row.Data[start:start+rowStride])
	}
	return a
}

// changed publishes a structural change (create or destroy) to the geometry and the upload stage.
func (s *transformStore) changed() {
	for _, row := range s.rows {
		row.MarkNeedsUpdate()
	}
	s.geometry.SetMaxInstancedCount(len(s.slotToID))
	if s.checkInvariants {
		s.assertInvariants()
	}
}

// assertInvariants panics if the identity tables and row buffers disagree.
// A violation means the store was corrupted; it is never a recoverable condition.
func (s *transformStore) assertInvariants() {
	count := len(s.slotToID)
	if len(s.idToSlot) != count {
		panic(fmt.Sprintf("instancing: id table holds %d entries for %d slots", len(s.idToSlot), count))
	}
	for r, row := range s.rows {
		if len(row.Data) != rowStride*count {
			panic(fmt.Sprintf("instancing: row %d holds %d floats for %d instances", r, len(row.Data), count))
		}
	}
	for slot, id := range s.slotToID {
		if got, ok := s.idToSlot[id]; !ok || got != slot {
			panic(fmt.Sprintf("instancing: instance %d at slot %d maps to slot %d", id, slot, got))
		}
	}
}
