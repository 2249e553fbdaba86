package silhouette

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Stage identifies one of the four evaluation stages.
//
// Dependencies:
//
//	Transform -> Facing -> Silhouette
//	Transform -> Projection
//
// Facing and Projection are independent of each other.
type Stage int

const (
	// StageTransform computes Transformed[i] for every vertex.
	StageTransform Stage = iota

	// StageFacing computes Facing[t] for every triangle.
	StageFacing

	// StageProjection computes Projection[i] for every vertex.
	StageProjection

	// StageSilhouette computes Silhouette[e] for every unique edge.
	StageSilhouette

	// StageCount is the number of stages.
	StageCount
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageTransform:
		return "transform"
	case StageFacing:
		return "facing"
	case StageProjection:
		return "projection"
	case StageSilhouette:
		return "silhouette"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Items returns the number of work items the stage has for topology t.
func (s Stage) Items(t *Topology) int {
	switch s {
	case StageTransform, StageProjection:
		return t.VertexCount()
	case StageFacing:
		return t.TriangleCount()
	case StageSilhouette:
		return t.EdgeCount()
	default:
		return 0
	}
}

// DependsOn reports whether s reads a buffer written by dep.
func (s Stage) DependsOn(dep Stage) bool {
	switch s {
	case StageFacing, StageProjection:
		return dep == StageTransform
	case StageSilhouette:
		return dep == StageFacing
	default:
		return false
	}
}

// TransformPoint applies the affine transform m to point p, including
// translation.
func TransformPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	return m.Mul4x1(p.Vec4(1)).Vec3()
}

// TriangleFacing returns 1 when the triangle (a, b, c) faces the light and 0
// otherwise. The triangle faces the light when its normalized normal and the
// direction from the light to a point in opposite directions.
func TriangleFacing(a, b, c, light mgl32.Vec3) uint32 {
	normal := b.Sub(a).Cross(c.Sub(a)).Normalize()
	lightDir := a.Sub(light)
	if normal.Dot(lightDir) < 0 {
		return 1
	}
	return 0
}

// ProjectToPlane projects p away from the light onto the plane with the
// given normal and distance.
//
// When the ray from the light through p is parallel to the plane the result
// is not finite. Callers treat such projections as unavailable.
func ProjectToPlane(p, light, normal mgl32.Vec3, distance float32) mgl32.Vec3 {
	d := p.Sub(light)
	t := (distance - p.Dot(normal)) / d.Dot(normal)
	return p.Add(d.Mul(t))
}

// EdgeSilhouette returns 1 when the edge is a boundary edge or its two
// triangles differ in facing, and 0 otherwise.
func EdgeSilhouette(e EdgeTriangleIndices, facing []uint32) uint32 {
	if e.IsBoundary() {
		return 1
	}
	if facing[e.A] != facing[e.B] {
		return 1
	}
	return 0
}

// Frame holds every per-iteration buffer of the pipeline for one topology.
// Each stage writes one buffer; no buffer accumulates across iterations.
type Frame struct {
	Transformed []mgl32.Vec3
	Facing      []uint32
	Projection  []mgl32.Vec3
	Silhouette  []uint32
}

// NewFrame allocates a frame sized for t.
func NewFrame(t *Topology) *Frame {
	return &Frame{
		Transformed: make([]mgl32.Vec3, t.VertexCount()),
		Facing:      make([]uint32, t.TriangleCount()),
		Projection:  make([]mgl32.Vec3, t.VertexCount()),
		Silhouette:  make([]uint32, t.EdgeCount()),
	}
}

// Kernel returns the work item function of stage s. Calling it with index i
// writes exactly one slot, the i-th element of the stage's output buffer, and
// reads only buffers of the stages s depends on.
//
// Every CPU scheduler executes the pipeline through Kernel, so the math is
// defined once.
func (f *Frame) Kernel(s Stage, t *Topology, u *Uniforms) func(i int) {
	switch s {
	case StageTransform:
		m := u.Transform
		return func(i int) {
			f.Transformed[i] = TransformPoint(m, t.Vertices[i])
		}

	case StageFacing:
		light := u.Light
		return func(i int) {
			a, b, c := t.Triangle(i)
			f.Facing[i] = TriangleFacing(f.Transformed[a], f.Transformed[b], f.Transformed[c], light)
		}

	case StageProjection:
		light, normal, distance := u.Light, u.PlaneNormal, u.PlaneDistance
		return func(i int) {
			f.Projection[i] = ProjectToPlane(f.Transformed[i], light, normal, distance)
		}

	case StageSilhouette:
		return func(i int) {
			f.Silhouette[i] = EdgeSilhouette(t.EdgeTriangles[i], f.Facing)
		}

	default:
		panic(fmt.Sprintf("silhouette: no kernel for %v", s))
	}
}

// copyTo copies the host-visible outputs of f into r.
func (f *Frame) copyTo(r *Result) {
	copy(r.Facing, f.Facing)
	copy(r.Projection, f.Projection)
	copy(r.Silhouette, f.Silhouette)
}

// Phases groups the stages into dependency levels. Stages within a level
// are independent of each other; every stage depends only on stages of
// earlier levels. The result is [[transform] [facing projection] [silhouette]].
func Phases() [][]Stage {
	level := make([]int, StageCount)
	depth := 0
	for s := StageTransform; s < StageCount; s++ {
		for dep := StageTransform; dep < s; dep++ {
			if s.DependsOn(dep) {
				level[s] = max(level[s], level[dep]+1)
			}
		}
		depth = max(depth, level[s]+1)
	}

	phases := make([][]Stage, depth)
	for s := StageTransform; s < StageCount; s++ {
		phases[level[s]] = append(phases[level[s]], s)
	}
	return phases
}
