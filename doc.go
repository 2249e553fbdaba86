// Package silhouette computes shadow silhouettes of triangle meshes lit by a
// point light, and projects them onto a plane.
//
// # Overview
//
// Each evaluation runs four data-parallel stages over a mesh whose topology
// is fixed and whose transform, light and plane change every iteration:
//
//	transform   one item per vertex    Transformed[i] = M * v[i]
//	facing      one item per triangle  Facing[t] = triangle t faces the light
//	projection  one item per vertex    Projection[i] = v[i] projected onto the plane
//	silhouette  one item per edge      Silhouette[e] = boundary or facing differs
//
// Facing and projection depend only on transform; silhouette depends on
// facing. Backends are free to overlap facing with projection.
//
// # Quick Start
//
//	topo, err := silhouette.BuildTopology(vertices, indices)
//	if err != nil {
//		return err
//	}
//
//	e, err := silhouette.NewEvaluator("cpu", topo)
//	if err != nil {
//		return err
//	}
//	defer e.Close()
//
//	res := silhouette.NewResult(topo)
//	state := silhouette.State{
//		Transform: mgl32.Ident4(),
//		Light:     mgl32.Vec3{0, 10, 0},
//		Plane:     silhouette.Plane{Normal: mgl32.Vec3{0, 1, 0}},
//	}
//	if err := e.Evaluate(&state, res); err != nil {
//		return err
//	}
//	segs := silhouette.Segments(topo, res, nil)
//
// # Backends
//
// "sequential" runs the stages on the calling goroutine and is the
// reference. "cpu" dispatches grouped work items on a worker pool. "gpu"
// runs the stages as WebGPU compute shaders; it is registered by importing
// github.com/gogpu/silhouette/gpu.
//
// # Topology
//
// Unique edges are found by exact vertex position, not by index, so meshes
// with split vertices (duplicated for normals or UVs) still have correct
// adjacency. An edge with a single triangle is a boundary edge and always
// belongs to the silhouette.
package silhouette
