package model

// InstancedAttribute is a flat float32 array advanced once per instance rather than once per vertex.
// It is registered on a Model under a fixed name so the upload stage can find it.
//
// The owner of the data only ever raises the update flag; the upload stage lowers it once the
// contents have been copied to the GPU.
type InstancedAttribute struct {
	// Name is the key the attribute is registered under.
	Name string

	// ItemSize is the number of float32 components per instance (4 for a vec4 row).
	ItemSize int

	// Data holds ItemSize values per instance, packed densely.
	Data []float32

	needsUpdate bool
	version     uint64
}

// NewInstancedAttribute creates an empty attribute with the given name and component count.
//
// Parameters:
//   - name: the registration name
//   - itemSize: float32 components per instance
//
// Returns:
//   - *InstancedAttribute: the new attribute
func NewInstancedAttribute(name string, itemSize int) *InstancedAttribute {
	return &InstancedAttribute{
		Name:     name,
		ItemSize: itemSize,
		Data:     make([]float32, 0),
	}
}

// Count returns the number of items currently stored.
func (a *InstancedAttribute) Count() int {
	if a.ItemSize == 0 {
		return 0
	}
	return len(a.Data) / a.ItemSize
}

// MarkNeedsUpdate flags the contents as changed and bumps the version.
func (a *InstancedAttribute) MarkNeedsUpdate() {
	a.needsUpdate = true
	a.version++
}

// NeedsUpdate reports whether the contents changed since the last upload.
func (a *InstancedAttribute) NeedsUpdate() bool {
	return a.needsUpdate
}

// ClearNeedsUpdate lowers the update flag. Only the upload stage should call this.
func (a *InstancedAttribute) ClearNeedsUpdate() {
	a.needsUpdate = false
}

// Version is incremented on every MarkNeedsUpdate.
func (a *InstancedAttribute) Version() uint64 {
	return a.version
}
