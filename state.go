package silhouette

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Plane is the projection target, given by a point on it and its normal.
type Plane struct {
	Point  mgl32.Vec3
	Normal mgl32.Vec3
}

// Distance returns the plane offset along its normal, dot(Point, Normal).
func (p Plane) Distance() float32 {
	return p.Point.Dot(p.Normal)
}

// State is the live input of one evaluation: the object transform, the
// point light position and the projection plane.
type State struct {
	// Transform maps mesh space to world space. It must be affine.
	Transform mgl32.Mat4

	// Light is the point light position in world space.
	Light mgl32.Vec3

	// Plane receives the projected vertices.
	Plane Plane
}

// Uniforms are the per-iteration scalar and vector parameters derived from a
// State. Every backend consumes the same values.
type Uniforms struct {
	Transform     mgl32.Mat4
	Light         mgl32.Vec3
	PlaneNormal   mgl32.Vec3
	PlaneDistance float32
}

// Uniforms derives the per-iteration parameters of s.
func (s *State) Uniforms() Uniforms {
	return Uniforms{
		Transform:     s.Transform,
		Light:         s.Light,
		PlaneNormal:   s.Plane.Normal,
		PlaneDistance: s.Plane.Distance(),
	}
}
