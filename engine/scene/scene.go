package scene

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-instancing/common"
	"github.com/Carmen-Shannon/oxy-instancing/engine/animator"
	"github.com/Carmen-Shannon/oxy-instancing/engine/camera"
	"github.com/Carmen-Shannon/oxy-instancing/engine/game_object"
	"github.com/Carmen-Shannon/oxy-instancing/engine/instancing"
	"github.com/Carmen-Shannon/oxy-instancing/engine/profiler"
	"github.com/Carmen-Shannon/oxy-instancing/engine/renderer"
	"github.com/Carmen-Shannon/oxy-instancing/engine/renderer/bind_group_provider"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-logr/logr"
)

// Scene represents a collection of game objects and instanced meshes that are updated,
// staged for upload and hit tested together.
type Scene interface {
	// Name returns the name of the scene.
	//
	// Returns:
	//   - string: the scene name
	Name() string

	// SetName sets the name of the scene.
	//
	// Parameters:
	//   - name: the new scene name
	SetName(name string)

	// Active returns whether the scene is currently active.
	//
	// Returns:
	//   - bool: true if the scene is active
	Active() bool

	// SetActive sets whether the scene is currently active.
	//
	// Parameters:
	//   - active: whether the scene should be active
	SetActive(active bool)

	// Camera returns the camera attached to this scene.
	//
	// Returns:
	//   - camera.Camera: the scene camera, or nil if none is set
	Camera() camera.Camera

	// SetCamera attaches a camera to this scene.
	//
	// Parameters:
	//   - cam: the camera to attach
	SetCamera(cam camera.Camera)

	// Renderer returns the renderer used to stage uploads.
	//
	// Returns:
	//   - renderer.Renderer: the renderer, or nil when the scene runs headless
	Renderer() renderer.Renderer

	// SetRenderer sets the renderer used to stage uploads.
	//
	// Parameters:
	//   - r: the renderer
	SetRenderer(r renderer.Renderer)

	// Add registers a game object. Objects without an ID are assigned one.
	// The object's descendants take part in world updates through it but are not registered themselves.
	//
	// Parameters:
	//   - obj: the object to add
	//
	// Returns:
	//   - uint64: the object's ID
	Add(obj game_object.GameObject) uint64

	// Get returns a registered object by ID.
	//
	// Parameters:
	//   - id: the object ID
	//
	// Returns:
	//   - game_object.GameObject: the object, or nil if not registered
	Get(id uint64) game_object.GameObject

	// Remove unregisters an object. If the object is the node of an instanced mesh, the mesh is removed too.
	//
	// Parameters:
	//   - id: the object ID
	Remove(id uint64)

	// AddInstancedMesh registers an instanced mesh, registers its node and creates an Animator for it.
	//
	// Parameters:
	//   - mesh: the mesh to add
	//
	// Returns:
	//   - uint64: the ID of the mesh's node
	AddInstancedMesh(mesh instancing.InstancedMesh) uint64

	// RemoveInstancedMesh unregisters a mesh and its node and releases its GPU buffers.
	//
	// Parameters:
	//   - mesh: the mesh to remove
	RemoveInstancedMesh(mesh instancing.InstancedMesh)

	// InstancedMeshes returns the registered meshes in registration order.
	//
	// Returns:
	//   - []instancing.InstancedMesh: the meshes
	InstancedMeshes() []instancing.InstancedMesh

	// Animator returns the Animator created for a registered mesh.
	//
	// Parameters:
	//   - mesh: the mesh
	//
	// Returns:
	//   - animator.Animator: the animator, or nil if the mesh is not registered
	Animator(mesh instancing.InstancedMesh) animator.Animator

	// Count returns the number of registered objects.
	//
	// Returns:
	//   - int: the object count
	Count() int

	// CountInstances returns the number of live instances across all registered meshes.
	//
	// Returns:
	//   - int: the instance count
	CountInstances() int

	// Clear unregisters every object and mesh.
	Clear()

	// Update advances the scene by deltaTime seconds. Registered objects integrate their rotation speed,
	// every root recomputes its world matrices (notifying instanced meshes), animators write their
	// instances and, when a renderer is attached, every mesh is staged and flushed. The camera uniform
	// is written too once the camera's bind group provider holds a buffer at binding 0.
	//
	// Parameters:
	//   - deltaTime: the time elapsed since the previous update, in seconds
	//
	// Returns:
	//   - error: the first staging error, if any
	Update(deltaTime float32) error

	// Raycast hit tests every registered drawable against ray and returns all hits, nearest first.
	// World matrices are brought up to date first; instanced meshes are then tested in parallel,
	// one mesh per worker.
	//
	// Parameters:
	//   - ray: the world-space ray
	//
	// Returns:
	//   - []common.Intersection: the hits sorted by distance
	//   - error: the first hit test error, if any
	Raycast(ray common.Ray) ([]common.Intersection, error)

	// Visible returns the enabled registered objects with a model that survive frustum culling against cam.
	// Objects whose model has FrustumCulled() == false are always visible.
	//
	// Parameters:
	//   - cam: the camera to cull against
	//
	// Returns:
	//   - []game_object.GameObject: the visible objects
	Visible(cam camera.Camera) []game_object.GameObject
}

type scene struct {
	mu     *sync.RWMutex
	logger logr.Logger

	name   string
	active bool

	registry map[uint64]game_object.GameObject
	nextID   uint64

	meshes    []instancing.InstancedMesh
	meshNodes map[game_object.GameObject]instancing.InstancedMesh
	animators map[instancing.InstancedMesh]animator.Animator

	cam  camera.Camera
	r    renderer.Renderer
	prof *profiler.Profiler

	// hitPool runs mesh hit tests and animator frames. Workers persist across calls.
	hitPool worker.DynamicWorkerPool
	workers int
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates a new Scene.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:        &sync.RWMutex{},
		logger:    logr.Discard(),
		name:      name,
		registry:  make(map[uint64]game_object.GameObject),
		nextID:    1,
		meshNodes: make(map[game_object.GameObject]instancing.InstancedMesh),
		animators: make(map[instancing.InstancedMesh]animator.Animator),
		workers:   max(runtime.NumCPU()-1, 1),
	}

	for _, option := range options {
		option(s)
	}

	// Initialize the pool after options so WithWorkers can override the default.
	s.hitPool = worker.NewDynamicWorkerPool(s.workers, 256, 1*time.Second)

	s.logger.V(1).Info("scene created", "name", name, "workers", s.workers)
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Camera() camera.Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cam
}

func (s *scene) SetCamera(cam camera.Camera) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cam = cam
}

func (s *scene) Renderer() renderer.Renderer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r
}

func (s *scene) SetRenderer(r renderer.Renderer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r = r
}

func (s *scene) Add(obj game_object.GameObject) uint64 {
	if obj == nil {
		panic("scene: cannot Add a nil GameObject")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(obj)
}

func (s *scene) Get(id uint64) game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry[id]
}

func (s *scene) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, exists := s.registry[id]
	if !exists {
		return
	}
	delete(s.registry, id)
	if mesh, ok := s.meshNodes[obj]; ok {
		s.removeMesh(mesh)
	}
}

func (s *scene) AddInstancedMesh(mesh instancing.InstancedMesh) uint64 {
	if mesh == nil {
		panic("scene: cannot add a nil InstancedMesh")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.add(mesh.Node())
	if _, exists := s.animators[mesh]; exists {
		return id
	}
	s.meshes = append(s.meshes, mesh)
	s.meshNodes[mesh.Node()] = mesh
	s.animators[mesh] = animator.NewAnimator(mesh, animator.WithLogger(s.logger), animator.WithExistingInstances())
	s.logger.V(1).Info("instanced mesh added", "label", mesh.Label(), "node", id, "instances", mesh.InstanceCount())
	return id
}

func (s *scene) RemoveInstancedMesh(mesh instancing.InstancedMesh) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.animators[mesh]; !exists {
		return
	}
	delete(s.registry, mesh.Node().ID())
	s.removeMesh(mesh)
}

func (s *scene) InstancedMeshes() []instancing.InstancedMesh {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]instancing.InstancedMesh, len(s.meshes))
	copy(out, s.meshes)
	return out
}

func (s *scene) Animator(mesh instancing.InstancedMesh) animator.Animator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.animators[mesh]
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registry)
}

func (s *scene) CountInstances() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countInstances()
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.meshes) > 0 {
		s.removeMesh(s.meshes[0])
	}
	s.registry = make(map[uint64]game_object.GameObject)
}

func (s *scene) Update(deltaTime float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, obj := range s.registry {
		if obj.Enabled() {
			obj.Advance(deltaTime)
		}
	}
	s.updateWorld()

	// Animators run in parallel: each task owns one mesh and every node is already up to date.
	// A WaitGroup provides the per-frame barrier since pool.Wait() blocks until workers idle-exit.
	var wg sync.WaitGroup
	var written atomic.Int64
	for i, mesh := range s.meshes {
		a := s.animators[mesh]
		if a.InstanceCount() == 0 {
			continue
		}
		wg.Add(1)
		s.hitPool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				written.Add(int64(a.PrepareFrame(deltaTime)))
				return nil, nil
			},
		})
	}
	wg.Wait()

	var err error
	if s.r != nil {
		for _, mesh := range s.meshes {
			if _, stageErr := s.r.Stage(mesh.Geometry()); stageErr != nil {
				s.logger.Error(stageErr, "stage failed", "label", mesh.Label())
				err = errors.Join(err, fmt.Errorf("stage %s: %w", mesh.Label(), stageErr))
			}
		}
		s.r.Flush()

		// the camera uniform goes out once the caller has given the camera a buffer
		if s.cam != nil {
			if camBGP := s.cam.BindGroupProvider(); camBGP != nil && camBGP.BufferSize(0) > 0 {
				u := s.cam.Uniform()
				s.r.WriteBuffers([]bind_group_provider.BufferWrite{
					{
						Provider: camBGP,
						Binding:  0,
						Offset:   0,
						Data:     u.Marshal(),
					},
				})
			}
		}
	}

	if s.prof != nil {
		s.prof.Tick(s.countInstances())
	}
	s.logger.V(2).Info("scene updated", "name", s.name, "matricesWritten", written.Load())
	return err
}

func (s *scene) Raycast(ray common.Ray) ([]common.Intersection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateWorld()

	results := make([][]common.Intersection, len(s.meshes))
	errs := make([]error, len(s.meshes))
	var wg sync.WaitGroup
	for i, mesh := range s.meshes {
		if !mesh.Node().Enabled() || mesh.InstanceCount() == 0 {
			continue
		}
		wg.Add(1)
		s.hitPool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				results[i], errs[i] = mesh.HitTest(ray)
				return nil, errs[i]
			},
		})
	}

	// plain drawables are tested on the calling goroutine while the meshes run
	var hits []common.Intersection
	for _, obj := range s.registry {
		if _, isMesh := s.meshNodes[obj]; isMesh || !obj.Enabled() || obj.Model() == nil {
			continue
		}
		hits = append(hits, obj.Model().Raycast(obj.WorldMatrix(), ray)...)
	}
	wg.Wait()

	for i, meshHits := range results {
		if errs[i] != nil {
			return nil, fmt.Errorf("hit test %s: %w", s.meshes[i].Label(), errs[i])
		}
		hits = append(hits, meshHits...)
	}
	common.SortByDistance(hits)
	return hits, nil
}

func (s *scene) Visible(cam camera.Camera) []game_object.GameObject {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateWorld()
	frustum := cam.Frustum()

	var visible []game_object.GameObject
	for _, obj := range s.registry {
		mdl := obj.Model()
		if !obj.Enabled() || mdl == nil {
			continue
		}
		if mdl.FrustumCulled() {
			world := obj.WorldMatrix()
			if !frustum.ContainsSphere(common.Translation(world), mdl.BoundingRadius()*maxAxisScale(world)) {
				continue
			}
		}
		visible = append(visible, obj)
	}
	return visible
}

// add registers obj, assigning an ID if it has none. Caller must hold s.mu write lock.
func (s *scene) add(obj game_object.GameObject) uint64 {
	if obj.ID() == 0 {
		obj.SetID(s.nextID)
		s.nextID++
	}
	s.registry[obj.ID()] = obj
	return obj.ID()
}

// removeMesh forgets a mesh, its node mapping and its animator. Caller must hold s.mu write lock.
func (s *scene) removeMesh(mesh instancing.InstancedMesh) {
	for i, m := range s.meshes {
		if m == mesh {
			s.meshes = append(s.meshes[:i], s.meshes[i+1:]...)
			break
		}
	}
	delete(s.meshNodes, mesh.Node())
	delete(s.animators, mesh)
	if s.r != nil {
		s.r.Release(mesh.Geometry())
	}
	s.logger.V(1).Info("instanced mesh removed", "label", mesh.Label())
}

// updateWorld recomputes the world matrices of every registered object's root.
// Caller must hold s.mu write lock.
func (s *scene) updateWorld() {
	roots := make(map[game_object.GameObject]struct{})
	for _, obj := range s.registry {
		root := obj
		for root.Parent() != nil {
			root = root.Parent()
		}
		roots[root] = struct{}{}
	}
	for root := range roots {
		root.UpdateWorldMatrix(false)
	}
}

func (s *scene) countInstances() int {
	count := 0
	for _, mesh := range s.meshes {
		count += mesh.InstanceCount()
	}
	return count
}

// maxAxisScale returns the largest scale factor among the basis columns of world.
func maxAxisScale(world mgl32.Mat4) float32 {
	return max(
		world.Col(0).Vec3().Len(),
		world.Col(1).Vec3().Len(),
		world.Col(2).Vec3().Len(),
	)
}
