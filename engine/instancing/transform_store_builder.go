package instancing

import (
	"github.com/go-logr/logr"
)

// TransformStoreBuilderOption is a functional option for configuring a TransformStore via NewTransformStore.
type TransformStoreBuilderOption func(*transformStore)

// WithStoreLogger sets the logger used for per-instance events. Defaults to logr.Discard().
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - TransformStoreBuilderOption: a function that applies the logger option to a store
func WithStoreLogger(logger logr.Logger) TransformStoreBuilderOption {
	return func(s *transformStore) {
		s.logger = logger.WithName("transform_store")
	}
}

// WithInitialCapacity preallocates room for capacity instances in the identity table and row buffers.
//
// Parameters:
//   - capacity: the number of instances to reserve space for
//
// Returns:
//   - TransformStoreBuilderOption: a function that applies the capacity option to a store
func WithInitialCapacity(capacity int) TransformStoreBuilderOption {
	return func(s *transformStore) {
		if capacity <= 0 {
			return
		}
		s.slotToID = make([]InstanceID, 0, capacity)
		s.idToSlot = make(map[InstanceID]int, capacity)
		for _, row := range s.rows {
			row.Data = make([]float32, 0, capacity*rowStride)
		}
	}
}

// WithInvariantChecks toggles the consistency check run after every create and destroy.
// Enabled by default; the check is linear in the instance count.
//
// Parameters:
//   - enabled: false to skip the check
//
// Returns:
//   - TransformStoreBuilderOption: a function that applies the option to a store
func WithInvariantChecks(enabled bool) TransformStoreBuilderOption {
	return func(s *transformStore) {
		s.checkInvariants = enabled
	}
}
