package animator

import (
	"github.com/Carmen-Shannon/oxy-instancing/engine/instancing"
	"github.com/go-logr/logr"
)

// AnimatorBuilderOption is a functional option for configuring an Animator during construction.
type AnimatorBuilderOption func(*animator)

// WithLogger sets the logger for the Animator. Defaults to logr.Discard().
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - AnimatorBuilderOption: a function that applies the logger option to an animator
func WithLogger(logger logr.Logger) AnimatorBuilderOption {
	return func(a *animator) {
		a.logger = logger.WithName("animator")
	}
}

// WithExistingInstances is an option builder that tracks every instance the mesh already holds.
//
// Returns:
//   - AnimatorBuilderOption: a function that applies the option to an animator
func WithExistingInstances() AnimatorBuilderOption {
	return func(a *animator) {
		for _, id := range a.mesh.Store().IDs() {
			if _, ok := a.instances[id]; !ok {
				a.track(id)
			}
		}
	}
}

// WithInstances is an option builder that tracks the given instances of the mesh.
// IDs the mesh does not hold are ignored.
//
// Parameters:
//   - ids: the instances to track
//
// Returns:
//   - AnimatorBuilderOption: a function that applies the option to an animator
func WithInstances(ids ...instancing.InstanceID) AnimatorBuilderOption {
	return func(a *animator) {
		for _, id := range ids {
			if _, ok := a.instances[id]; ok || !a.mesh.Store().Contains(id) {
				continue
			}
			a.track(id)
		}
	}
}
