package harness

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/silhouette"
)

// StateSource supplies the light, transform and plane of each iteration.
// State must be deterministic: validation replays iterations by index.
type StateSource interface {
	State(iteration int) silhouette.State
}

// StateFunc adapts a function to StateSource.
type StateFunc func(iteration int) silhouette.State

// State calls f(iteration).
func (f StateFunc) State(iteration int) silhouette.State { return f(iteration) }

// Orbit circles the light above the plane while the object spins about the
// y axis.
type Orbit struct {
	// LightRadius and LightHeight place the light on a horizontal circle
	// around the origin.
	LightRadius float32
	LightHeight float32

	// LightStep and SpinStep are the per-iteration angles, in radians, of
	// the light and of the object.
	LightStep float32
	SpinStep  float32

	// Plane receives the projection.
	Plane silhouette.Plane
}

// DefaultOrbit returns the orbit used by the CLI: a light circling at radius
// 4 and height 6 over a ground plane at y = -2.
func DefaultOrbit() Orbit {
	return Orbit{
		LightRadius: 4,
		LightHeight: 6,
		LightStep:   0.02,
		SpinStep:    0.01,
		Plane: silhouette.Plane{
			Point:  mgl32.Vec3{0, -2, 0},
			Normal: mgl32.Vec3{0, 1, 0},
		},
	}
}

// State implements StateSource.
func (o Orbit) State(iteration int) silhouette.State {
	a := float64(o.LightStep) * float64(iteration)
	spin := o.SpinStep * float32(iteration)
	return silhouette.State{
		Transform: mgl32.HomogRotate3DY(spin),
		Light: mgl32.Vec3{
			o.LightRadius * float32(math.Cos(a)),
			o.LightHeight,
			o.LightRadius * float32(math.Sin(a)),
		},
		Plane: o.Plane,
	}
}
