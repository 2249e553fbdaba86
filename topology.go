package silhouette

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// BoundaryTriangle marks the missing second triangle of a boundary edge.
const BoundaryTriangle int32 = -1

// EdgeVertexIndices is the vertex index pair of a unique edge, in the order
// it was first observed.
type EdgeVertexIndices struct {
	A, B uint32
}

// EdgeTriangleIndices holds the triangles adjoining a unique edge.
// B is BoundaryTriangle when only one triangle touches the edge.
type EdgeTriangleIndices struct {
	A, B int32
}

// IsBoundary reports whether the edge has a single adjoining triangle.
func (e EdgeTriangleIndices) IsBoundary() bool {
	return e.B == BoundaryTriangle
}

// Topology is the static part of the pipeline input: the mesh itself plus
// its unique undirected edges and their adjacency.
//
// EdgeVertices and EdgeTriangles are index-aligned and have one entry per
// unique edge, in first-insertion order. A Topology is built once and must
// not be modified afterwards; evaluators share it read-only.
type Topology struct {
	// Vertices are the untransformed vertex positions.
	Vertices []mgl32.Vec3

	// Indices is the flat triangle index list, three entries per triangle.
	Indices []uint32

	// EdgeVertices holds the vertex index pair of every unique edge.
	EdgeVertices []EdgeVertexIndices

	// EdgeTriangles holds the adjoining triangles of every unique edge.
	EdgeTriangles []EdgeTriangleIndices

	// NonManifoldEdges counts sightings of an edge beyond its second
	// triangle. Each such sighting replaced EdgeTriangles[e].B.
	NonManifoldEdges int
}

// VertexCount returns the number of vertices.
func (t *Topology) VertexCount() int { return len(t.Vertices) }

// TriangleCount returns the number of triangles.
func (t *Topology) TriangleCount() int { return len(t.Indices) / 3 }

// EdgeCount returns the number of unique undirected edges.
func (t *Topology) EdgeCount() int { return len(t.EdgeTriangles) }

// Triangle returns the vertex indices of triangle i.
func (t *Topology) Triangle(i int) (a, b, c uint32) {
	j := i * 3
	return t.Indices[j], t.Indices[j+1], t.Indices[j+2]
}

// BoundaryEdges returns the number of edges with a single adjoining triangle.
func (t *Topology) BoundaryEdges() int {
	n := 0
	for _, e := range t.EdgeTriangles {
		if e.IsBoundary() {
			n++
		}
	}
	return n
}

// edgeKey identifies an undirected edge by its endpoint positions, ordered
// so that both traversal directions produce the same key.
type edgeKey [2]mgl32.Vec3

func makeEdgeKey(a, b mgl32.Vec3) edgeKey {
	if lessPosition(b, a) {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// lessPosition orders positions by x, then y, then z. Comparison is exact.
func lessPosition(a, b mgl32.Vec3) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}
	if a[1] != b[1] {
		return a[1] < b[1]
	}
	return a[2] < b[2]
}

// validateMesh checks the index array against the vertex count.
func validateMesh(vertexCount int, indices []uint32) error {
	if len(indices)%3 != 0 {
		return &MalformedMeshError{
			Reason:   "index count is not a multiple of 3",
			Position: -1,
			Vertices: vertexCount,
		}
	}
	if len(indices)/3 > math.MaxInt32 {
		return &MalformedMeshError{
			Reason:   "too many triangles for 32-bit adjacency",
			Position: -1,
			Vertices: vertexCount,
		}
	}
	for i, idx := range indices {
		if uint64(idx) >= uint64(vertexCount) {
			return &MalformedMeshError{
				Reason:   "vertex index out of range",
				Position: i,
				Index:    idx,
				Vertices: vertexCount,
			}
		}
	}
	return nil
}

// BuildTopology extracts the unique undirected edges of a triangle mesh and
// the triangles adjoining each of them.
//
// Edges are identified by the exact positions of their endpoints, so two
// vertices at the same position are treated as one even when their indices
// differ. There is no tolerance: positions that differ in the last bit form
// distinct edges.
//
// The vertex pair stored for an edge is the one first observed. The first
// triangle to touch an edge fills EdgeTriangles[e].A and the second fills B.
// A third or later triangle overwrites B and is counted in
// NonManifoldEdges.
//
// BuildTopology returns a *MalformedMeshError if len(indices) is not a
// multiple of 3 or any index is outside vertices.
//
// The returned Topology retains vertices and indices without copying them.
func BuildTopology(vertices []mgl32.Vec3, indices []uint32) (*Topology, error) {
	if err := validateMesh(len(vertices), indices); err != nil {
		return nil, err
	}

	triangles := len(indices) / 3

	// A closed mesh has 3/2 edges per triangle; open meshes need more and
	// grow the map on demand.
	hint := triangles * 3 / 2
	slots := make(map[edgeKey]int, hint)

	t := &Topology{
		Vertices:      vertices,
		Indices:       indices,
		EdgeVertices:  make([]EdgeVertexIndices, 0, hint),
		EdgeTriangles: make([]EdgeTriangleIndices, 0, hint),
	}

	addEdge := func(a, b uint32, tri int32) {
		key := makeEdgeKey(vertices[a], vertices[b])
		slot, seen := slots[key]
		if !seen {
			slots[key] = len(t.EdgeTriangles)
			t.EdgeVertices = append(t.EdgeVertices, EdgeVertexIndices{A: a, B: b})
			t.EdgeTriangles = append(t.EdgeTriangles, EdgeTriangleIndices{A: tri, B: BoundaryTriangle})
			return
		}
		if t.EdgeTriangles[slot].B != BoundaryTriangle {
			t.NonManifoldEdges++
		}
		t.EdgeTriangles[slot].B = tri
	}

	for tri := range triangles {
		j := tri * 3
		i0, i1, i2 := indices[j], indices[j+1], indices[j+2]
		addEdge(i0, i1, int32(tri))
		addEdge(i1, i2, int32(tri))
		addEdge(i2, i0, int32(tri))
	}

	log := Logger()
	log.Debug("silhouette: topology built",
		"vertices", len(vertices),
		"triangles", triangles,
		"edges", len(t.EdgeTriangles),
		"boundary_edges", t.BoundaryEdges())
	if t.NonManifoldEdges > 0 {
		log.Warn("silhouette: non-manifold edges found, adjacency keeps the last triangle",
			"sightings", t.NonManifoldEdges)
	}

	return t, nil
}
