package animator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-instancing/common"
	"github.com/Carmen-Shannon/oxy-instancing/engine/instancing"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-logr/logr"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// instanceState is the CPU-side transform state of one animated instance.
type instanceState struct {
	position, rotation, scale, rotationSpeed mgl32.Vec3

	// tween moves position towards a target, one gween.Tween per axis.
	tween *[3]*gween.Tween

	// dirty is set when the local matrix must be rewritten on the next PrepareFrame.
	dirty bool
}

// animator is the implementation of the Animator interface.
type animator struct {
	mu     *sync.Mutex
	logger logr.Logger
	mesh   instancing.InstancedMesh

	instances map[instancing.InstanceID]*instanceState
	// order keeps PrepareFrame deterministic; ids are appended in tracking order.
	order []instancing.InstanceID
}

// Animator drives the local transforms of the instances of one InstancedMesh.
// Each tracked instance carries a position, Euler rotation, scale and rotation speed. Once per frame,
// PrepareFrame integrates rotation speed, advances position tweens and writes the rebuilt matrix
// of every changed instance through InstancedMesh.SetMatrix.
type Animator interface {
	// Mesh returns the mesh whose instances are animated.
	//
	// Returns:
	//   - instancing.InstancedMesh: the mesh
	Mesh() instancing.InstancedMesh

	// AddInstance creates a new instance on the mesh and starts tracking it at the origin with unit scale.
	//
	// Returns:
	//   - instancing.InstanceID: the new instance's ID
	AddInstance() instancing.InstanceID

	// Track starts animating an existing instance of the mesh. Its position and scale are read back
	// from the instance's current matrix; its rotation starts at zero.
	//
	// Parameters:
	//   - id: the instance to track
	//
	// Returns:
	//   - error: ErrUnknownInstance if the mesh has no such instance
	Track(id instancing.InstanceID) error

	// RemoveInstance stops tracking an instance and destroys it on the mesh.
	//
	// Parameters:
	//   - id: the instance to remove
	//
	// Returns:
	//   - error: ErrUnknownInstance if the instance is not tracked
	RemoveInstance(id instancing.InstanceID) error

	// InstanceCount returns the number of tracked instances.
	//
	// Returns:
	//   - int: the tracked instance count
	InstanceCount() int

	// SetInstanceTransform sets the position and scale for a specific instance.
	//
	// Parameters:
	//   - id: the instance to update
	//   - posXYZ: the new position of the instance as [3]float32 (x, y, z)
	//   - scaleXYZ: the new scale of the instance as [3]float32 (x, y, z)
	//
	// Returns:
	//   - error: ErrUnknownInstance if the instance is not tracked
	SetInstanceTransform(id instancing.InstanceID, posXYZ, scaleXYZ [3]float32) error

	// SetInstanceRotation sets the rotation speed and current rotation for a specific instance.
	//
	// Parameters:
	//   - id: the instance to update
	//   - rotSpeedXYZ: the rotation speed in radians per second around x, y, z
	//   - rotXYZ: the current rotation angles in radians around x, y, z
	//
	// Returns:
	//   - error: ErrUnknownInstance if the instance is not tracked
	SetInstanceRotation(id instancing.InstanceID, rotSpeedXYZ, rotXYZ [3]float32) error

	// SetInstanceData sets all transform state for a specific instance at once.
	//
	// Parameters:
	//   - id: the instance to update
	//   - posXYZ: the position
	//   - scaleXYZ: the scale
	//   - rotSpeedXYZ: the rotation speed in radians per second
	//   - rotXYZ: the current rotation in radians
	//
	// Returns:
	//   - error: ErrUnknownInstance if the instance is not tracked
	SetInstanceData(id instancing.InstanceID, posXYZ, scaleXYZ, rotSpeedXYZ, rotXYZ [3]float32) error

	// InstanceTransform returns the position and scale for a specific instance.
	//
	// Parameters:
	//   - id: the instance to query
	//
	// Returns:
	//   - pos: the position
	//   - scale: the scale
	//   - err: ErrUnknownInstance if the instance is not tracked
	InstanceTransform(id instancing.InstanceID) (pos, scale [3]float32, err error)

	// InstanceRotation returns the rotation speed and current rotation for a specific instance.
	//
	// Parameters:
	//   - id: the instance to query
	//
	// Returns:
	//   - rotSpeed: the rotation speed in radians per second
	//   - rot: the current rotation in radians
	//   - err: ErrUnknownInstance if the instance is not tracked
	InstanceRotation(id instancing.InstanceID) (rotSpeed, rot [3]float32, err error)

	// TweenPosition eases an instance from its current position to a target over duration seconds.
	// Starting a tween replaces any tween already running on the instance.
	//
	// Parameters:
	//   - id: the instance to move
	//   - to: the target position
	//   - duration: the tween duration in seconds
	//   - fn: the easing function, e.g. ease.Linear or ease.OutCubic
	//
	// Returns:
	//   - error: ErrUnknownInstance if the instance is not tracked
	TweenPosition(id instancing.InstanceID, to [3]float32, duration float32, fn ease.TweenFunc) error

	// IsTweening reports whether a position tween is running on the instance.
	//
	// Parameters:
	//   - id: the instance to query
	//
	// Returns:
	//   - bool: true while a tween is running
	IsTweening(id instancing.InstanceID) bool

	// CancelTween stops the position tween on the instance, leaving it where it is.
	//
	// Parameters:
	//   - id: the instance
	CancelTween(id instancing.InstanceID)

	// PrepareFrame advances all tracked instances by deltaTime seconds and writes the local matrix
	// of every changed instance to the mesh. Instances destroyed on the mesh behind the animator's
	// back are dropped.
	//
	// Parameters:
	//   - deltaTime: the time elapsed since the previous frame, in seconds
	//
	// Returns:
	//   - int: the number of matrices written
	PrepareFrame(deltaTime float32) int
}

var _ Animator = &animator{}

// NewAnimator creates a new Animator for the instances of mesh.
//
// Parameters:
//   - mesh: the mesh to animate
//   - options: variadic list of AnimatorBuilderOption functions to configure the Animator
//
// Returns:
//   - Animator: a new Animator
func NewAnimator(mesh instancing.InstancedMesh, options ...AnimatorBuilderOption) Animator {
	if mesh == nil {
		panic("animator: NewAnimator requires a mesh")
	}
	a := &animator{
		mu:        &sync.Mutex{},
		logger:    logr.Discard(),
		mesh:      mesh,
		instances: make(map[instancing.InstanceID]*instanceState),
	}
	for _, opt := range options {
		opt(a)
	}
	a.logger.V(1).Info("animator created", "mesh", mesh.Label())
	return a
}

func (a *animator) Mesh() instancing.InstancedMesh {
	return a.mesh
}

func (a *animator) AddInstance() instancing.InstanceID {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.mesh.CreateInstance()
	a.track(id)
	return id
}

func (a *animator) Track(id instancing.InstanceID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.mesh.Store().Contains(id) {
		return fmt.Errorf("track instance %d: %w", id, instancing.ErrUnknownInstance)
	}
	if _, ok := a.instances[id]; !ok {
		a.track(id)
	}
	return nil
}

func (a *animator) RemoveInstance(id instancing.InstanceID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.instances[id]; !ok {
		return fmt.Errorf("remove instance %d: %w", id, instancing.ErrUnknownInstance)
	}
	a.untrack(id)
	return a.mesh.DestroyInstance(id)
}

func (a *animator) InstanceCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.instances)
}

func (a *animator) SetInstanceTransform(id instancing.InstanceID, posXYZ, scaleXYZ [3]float32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.state(id)
	if err != nil {
		return err
	}
	s.position = posXYZ
	s.scale = scaleXYZ
	s.tween = nil
	s.dirty = true
	return nil
}

func (a *animator) SetInstanceRotation(id instancing.InstanceID, rotSpeedXYZ, rotXYZ [3]float32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.state(id)
	if err != nil {
		return err
	}
	s.rotationSpeed = rotSpeedXYZ
	s.rotation = rotXYZ
	s.dirty = true
	return nil
}

func (a *animator) SetInstanceData(id instancing.InstanceID, posXYZ, scaleXYZ, rotSpeedXYZ, rotXYZ [3]float32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.state(id)
	if err != nil {
		return err
	}
	s.position = posXYZ
	s.scale = scaleXYZ
	s.rotationSpeed = rotSpeedXYZ
	s.rotation = rotXYZ
	s.tween = nil
	s.dirty = true
	return nil
}

func (a *animator) InstanceTransform(id instancing.InstanceID) (pos, scale [3]float32, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.state(id)
	if err != nil {
		return pos, scale, err
	}
	return s.position, s.scale, nil
}

func (a *animator) InstanceRotation(id instancing.InstanceID) (rotSpeed, rot [3]float32, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.state(id)
	if err != nil {
		return rotSpeed, rot, err
	}
	return s.rotationSpeed, s.rotation, nil
}

func (a *animator) TweenPosition(id instancing.InstanceID, to [3]float32, duration float32, fn ease.TweenFunc) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, err := a.state(id)
	if err != nil {
		return err
	}
	if fn == nil {
		fn = ease.Linear
	}
	s.tween = &[3]*gween.Tween{
		gween.New(s.position[0], to[0], duration, fn),
		gween.New(s.position[1], to[1], duration, fn),
		gween.New(s.position[2], to[2], duration, fn),
	}
	a.logger.V(2).Info("position tween started", "id", id, "to", to, "duration", duration)
	return nil
}

func (a *animator) IsTweening(id instancing.InstanceID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.instances[id]
	return ok && s.tween != nil
}

func (a *animator) CancelTween(id instancing.InstanceID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s, ok := a.instances[id]; ok {
		s.tween = nil
	}
}

func (a *animator) PrepareFrame(deltaTime float32) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	written := 0
	for _, id := range append([]instancing.InstanceID(nil), a.order...) {
		s := a.instances[id]
		if !a.mesh.Store().Contains(id) {
			a.logger.V(1).Info("dropping destroyed instance", "mesh", a.mesh.Label(), "id", id)
			a.untrack(id)
			continue
		}

		if s.rotationSpeed != (mgl32.Vec3{}) {
			s.rotation = s.rotation.Add(s.rotationSpeed.Mul(deltaTime))
			s.dirty = true
		}
		if s.tween != nil {
			finished := true
			for axis, tw := range s.tween {
				v, done := tw.Update(deltaTime)
				s.position[axis] = v
				finished = finished && done
			}
			if finished {
				s.tween = nil
			}
			s.dirty = true
		}
		if !s.dirty {
			continue
		}

		if err := a.mesh.SetMatrix(id, common.BuildModelMatrix(s.position, s.rotation, s.scale)); err != nil {
			if errors.Is(err, instancing.ErrUnknownInstance) {
				a.untrack(id)
				continue
			}
			a.logger.Error(err, "instance matrix write failed", "mesh", a.mesh.Label(), "id", id)
			continue
		}
		s.dirty = false
		written++
	}
	return written
}

// track starts tracking id from the translation and axis scales of its current matrix.
// Rotation is not recovered, and the matrix is not rewritten until the state changes.
func (a *animator) track(id instancing.InstanceID) {
	s := &instanceState{scale: mgl32.Vec3{1, 1, 1}}
	if m, err := a.mesh.Matrix(id); err == nil {
		s.position = common.Translation(m)
		s.scale = mgl32.Vec3{m.Col(0).Vec3().Len(), m.Col(1).Vec3().Len(), m.Col(2).Vec3().Len()}
	}
	a.instances[id] = s
	a.order = append(a.order, id)
	a.logger.V(2).Info("instance tracked", "mesh", a.mesh.Label(), "id", id)
}

func (a *animator) untrack(id instancing.InstanceID) {
	delete(a.instances, id)
	for i, tracked := range a.order {
		if tracked == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

func (a *animator) state(id instancing.InstanceID) (*instanceState, error) {
	s, ok := a.instances[id]
	if !ok {
		return nil, fmt.Errorf("animator instance %d: %w", id, instancing.ErrUnknownInstance)
	}
	return s, nil
}
