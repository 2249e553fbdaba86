// Package meshgen builds test and benchmark meshes: small hand-made shapes
// with known topology, and marching-cubes meshes of signed distance
// functions for realistic sizes.
//
// All meshes use counter-clockwise winding seen from outside, so triangle
// normals point outward.
package meshgen

import (
	"fmt"
	"slices"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultCells is the marching cubes resolution along the longest axis.
const DefaultCells = 64

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Vertices []mgl32.Vec3
	Indices  []uint32
}

// TriangleCount returns the number of triangles.
func (m Mesh) TriangleCount() int { return len(m.Indices) / 3 }

// Cube returns an axis-aligned cube of the given edge length centred on the
// origin, with 8 shared vertices and 12 triangles.
func Cube(size float32) Mesh {
	h := size / 2
	v := make([]mgl32.Vec3, 8)
	for i := range v {
		// Bit 0 selects +x, bit 1 +y, bit 2 +z.
		v[i] = mgl32.Vec3{-h, -h, -h}
		if i&1 != 0 {
			v[i][0] = h
		}
		if i&2 != 0 {
			v[i][1] = h
		}
		if i&4 != 0 {
			v[i][2] = h
		}
	}

	faces := [6][4]uint32{
		{1, 3, 7, 5}, // +x
		{0, 4, 6, 2}, // -x
		{2, 6, 7, 3}, // +y
		{0, 1, 5, 4}, // -y
		{4, 5, 7, 6}, // +z
		{0, 2, 3, 1}, // -z
	}
	idx := make([]uint32, 0, 36)
	for _, f := range faces {
		idx = append(idx, f[0], f[1], f[2], f[0], f[2], f[3])
	}
	return Mesh{Vertices: v, Indices: idx}
}

// Triangle returns a single triangle in the y=0 plane facing +y.
func Triangle() Mesh {
	return Mesh{
		Vertices: []mgl32.Vec3{{0, 0, 0}, {0, 0, 1}, {1, 0, 0}},
		Indices:  []uint32{0, 1, 2},
	}
}

// Grid returns a flat n x n quad grid of the given size in the y=0 plane,
// centred on the origin and facing +y. It has a boundary.
func Grid(n int, size float32) Mesh {
	if n < 1 {
		n = 1
	}
	step := size / float32(n)
	origin := -size / 2

	row := uint32(n + 1)
	v := make([]mgl32.Vec3, 0, (n+1)*(n+1))
	for i := 0; i <= n; i++ {
		for j := 0; j <= n; j++ {
			v = append(v, mgl32.Vec3{origin + float32(i)*step, 0, origin + float32(j)*step})
		}
	}

	idx := make([]uint32, 0, n*n*6)
	for i := range uint32(n) {
		for j := range uint32(n) {
			a := i*row + j
			b := a + 1   // +z
			c := a + row // +x
			d := c + 1
			idx = append(idx, a, b, c, c, b, d)
		}
	}
	return Mesh{Vertices: v, Indices: idx}
}

// Sphere tessellates a sphere of the given radius.
func Sphere(radius float64, cells int) (Mesh, error) {
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return Mesh{}, fmt.Errorf("meshgen: sphere: %w", err)
	}
	return FromSDF(s, cells), nil
}

// Box tessellates a box centred on the origin with rounded edges.
func Box(x, y, z, round float64, cells int) (Mesh, error) {
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, round)
	if err != nil {
		return Mesh{}, fmt.Errorf("meshgen: box: %w", err)
	}
	return FromSDF(s, cells), nil
}

// Cylinder tessellates a cylinder along the z axis.
func Cylinder(height, radius, round float64, cells int) (Mesh, error) {
	s, err := sdf.Cylinder3D(height, radius, round)
	if err != nil {
		return Mesh{}, fmt.Errorf("meshgen: cylinder: %w", err)
	}
	return FromSDF(s, cells), nil
}

// FromSDF tessellates s with uniform marching cubes. Every triangle gets its
// own three vertices, as marching cubes emits them; use Weld to share them.
func FromSDF(s sdf.SDF3, cells int) Mesh {
	if cells <= 0 {
		cells = DefaultCells
	}
	tris := render.ToTriangles(s, render.NewMarchingCubesUniform(cells))

	m := Mesh{
		Vertices: make([]mgl32.Vec3, 0, len(tris)*3),
		Indices:  make([]uint32, 0, len(tris)*3),
	}
	for _, tri := range tris {
		for j := range 3 {
			p := tri[j]
			m.Indices = append(m.Indices, uint32(len(m.Vertices)))
			m.Vertices = append(m.Vertices, mgl32.Vec3{float32(p.X), float32(p.Y), float32(p.Z)})
		}
	}
	return m
}

// Weld merges vertices with identical positions, keeping the first
// occurrence of each position.
func Weld(m Mesh) Mesh {
	slot := make(map[mgl32.Vec3]uint32, len(m.Vertices)/2)
	out := Mesh{
		Vertices: make([]mgl32.Vec3, 0, len(m.Vertices)/2),
		Indices:  make([]uint32, len(m.Indices)),
	}
	for i, idx := range m.Indices {
		p := m.Vertices[idx]
		s, ok := slot[p]
		if !ok {
			s = uint32(len(out.Vertices))
			slot[p] = s
			out.Vertices = append(out.Vertices, p)
		}
		out.Indices[i] = s
	}
	return out
}

var named = map[string]func(cells int) (Mesh, error){
	"cube":     func(int) (Mesh, error) { return Cube(1), nil },
	"triangle": func(int) (Mesh, error) { return Triangle(), nil },
	"grid":     func(cells int) (Mesh, error) { return Grid(cells, 2), nil },
	"sphere": func(cells int) (Mesh, error) {
		m, err := Sphere(1, cells)
		return Weld(m), err
	},
	"box": func(cells int) (Mesh, error) {
		m, err := Box(2, 1, 1, 0.1, cells)
		return Weld(m), err
	},
	"cylinder": func(cells int) (Mesh, error) {
		m, err := Cylinder(2, 0.5, 0.05, cells)
		return Weld(m), err
	},
}

// Names returns the sorted names accepted by ByName.
func Names() []string {
	names := make([]string, 0, len(named))
	for n := range named {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// ByName builds the named mesh. cells is the resolution for tessellated
// shapes and the quad count per side for "grid"; values below 1 use
// DefaultCells.
func ByName(name string, cells int) (Mesh, error) {
	if cells < 1 {
		cells = DefaultCells
	}
	f, ok := named[name]
	if !ok {
		return Mesh{}, fmt.Errorf("meshgen: unknown mesh %q (known: %v)", name, Names())
	}
	return f(cells)
}
