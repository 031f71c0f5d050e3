package scene

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gekko3d/vplgi/vplrt/rt/core"
	"github.com/gekko3d/vplgi/vplrt/rt/gfx"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var ErrNoProgram = errors.New("scene: model has no active program")

type Model struct {
	ID        uuid.UUID
	Name      string
	Mesh      gfx.Mesh
	Vertices  []gfx.Vertex
	Transform core.Transform
	Albedo    mgl32.Vec4
	Roughness float32
	// Program is the active shading program used by RenderAll.
	Program gfx.Program

	localAABB core.AABB
}

// WorldAABB returns the conservative world space bounds.
func (m *Model) WorldAABB() core.AABB {
	return m.localAABB.Transform(m.Transform.ObjectToWorld())
}

func (m *Model) drawParams() []byte {
	return core.DrawParams{
		Model:        m.Transform.ObjectToWorld(),
		NormalMatrix: m.Transform.NormalMatrix(),
		Albedo:       m.Albedo,
		Roughness:    m.Roughness,
	}.Marshal()
}

// ModelDesc describes a model to upload.
type ModelDesc struct {
	Name      string
	Vertices  []gfx.Vertex
	Transform core.Transform
	Albedo    mgl32.Vec4
	Roughness float32
	Program   gfx.Program
}

// VisibilitySet restricts RenderAll to the listed models. Nil means all.
type VisibilitySet map[uuid.UUID]bool

// Manager owns the models of one scene.
type Manager struct {
	mu     sync.RWMutex
	models []*Model
}

func NewManager() *Manager {
	return &Manager{}
}

// Add uploads the mesh and registers the model.
func (s *Manager) Add(dev gfx.Device, desc ModelDesc) (*Model, error) {
	id := uuid.New()
	mesh, err := dev.CreateMesh(fmt.Sprintf("%s-%s", desc.Name, id), desc.Vertices)
	if err != nil {
		return nil, fmt.Errorf("scene: upload %s: %w", desc.Name, err)
	}

	local := core.EmptyAABB()
	for _, v := range desc.Vertices {
		local = local.Extend(v.Position)
	}

	m := &Model{
		ID:        id,
		Name:      desc.Name,
		Mesh:      mesh,
		Vertices:  desc.Vertices,
		Transform: desc.Transform,
		Albedo:    desc.Albedo,
		Roughness: desc.Roughness,
		Program:   desc.Program,
		localAABB: local,
	}

	s.mu.Lock()
	s.models = append(s.models, m)
	s.mu.Unlock()
	return m, nil
}

func (s *Manager) Remove(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.models {
		if m.ID == id {
			m.Mesh.Release()
			s.models = append(s.models[:i], s.models[i+1:]...)
			return true
		}
	}
	return false
}

// Models returns a snapshot of the model list.
func (s *Manager) Models() []*Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Model, len(s.models))
	copy(out, s.models)
	return out
}

func (s *Manager) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.models)
}

// Bounds is the union of every model's world bounds.
func (s *Manager) Bounds() core.AABB {
	b := core.EmptyAABB()
	for _, m := range s.Models() {
		b = b.Union(m.WorldAABB())
	}
	return b
}

// SwapPrograms assigns prog to every model and returns a func that restores
// the previous assignment.
func (s *Manager) SwapPrograms(prog gfx.Program) (restore func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := make(map[*Model]gfx.Program, len(s.models))
	for _, m := range s.models {
		prev[m] = m.Program
		m.Program = prog
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for m, p := range prev {
			m.Program = p
		}
	}
}

// Cull returns the models whose bounds intersect the view-projection frustum.
func (s *Manager) Cull(viewProj mgl32.Mat4) VisibilitySet {
	planes := core.ExtractFrustum(viewProj)
	vis := VisibilitySet{}
	for _, m := range s.Models() {
		if core.AABBInFrustum(m.WorldAABB(), planes) {
			vis[m.ID] = true
		}
	}
	return vis
}

// RenderAll draws every model, or only those in visible when it is non-nil,
// with each model's active program.
func (s *Manager) RenderAll(dev gfx.Device, pass *gfx.RenderPass, visible VisibilitySet) error {
	models := s.Models()
	draws := make([]gfx.DrawCall, 0, len(models))
	for _, m := range models {
		if visible != nil && !visible[m.ID] {
			continue
		}
		if m.Program == nil {
			return fmt.Errorf("%w: %s", ErrNoProgram, m.Name)
		}
		draws = append(draws, gfx.DrawCall{
			Program: m.Program,
			Mesh:    m.Mesh,
			Params:  m.drawParams(),
		})
	}
	return dev.Draw(pass, draws)
}

// Release frees every mesh.
func (s *Manager) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.models {
		m.Mesh.Release()
	}
	s.models = nil
}
