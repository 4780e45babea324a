package instancing

import "errors"

var (
	// ErrUnknownInstance is returned when an InstanceID was never created or has already been destroyed.
	// Callers must treat it as "this instance no longer exists" and not retry the same ID.
	ErrUnknownInstance = errors.New("instancing: unknown instance")

	// ErrSlotOutOfRange is returned for direct slot access outside [0, InstanceCount()).
	ErrSlotOutOfRange = errors.New("instancing: slot out of range")
)
