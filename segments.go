package silhouette

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Segment is one projected silhouette edge.
type Segment struct {
	// Edge is the index of the unique edge.
	Edge int

	// A and B are the projections of the edge's two vertices.
	A, B mgl32.Vec3
}

// SegmentSink receives the silhouette segments of an evaluation, for example
// to draw them. Sinks are supplied by the caller; the pipeline itself never
// draws.
type SegmentSink interface {
	DrawSegments(iteration int, segs []Segment) error
}

// SegmentSinkFunc adapts a function to SegmentSink.
type SegmentSinkFunc func(iteration int, segs []Segment) error

// DrawSegments calls f(iteration, segs).
func (f SegmentSinkFunc) DrawSegments(iteration int, segs []Segment) error {
	return f(iteration, segs)
}

// Segments appends to dst one segment per silhouette edge of r, in edge
// order, and returns the extended slice. Edges with a non-finite projected
// endpoint are skipped.
func Segments(t *Topology, r *Result, dst []Segment) []Segment {
	for e, s := range r.Silhouette {
		if s == 0 {
			continue
		}
		v := t.EdgeVertices[e]
		a, b := r.Projection[v.A], r.Projection[v.B]
		if !Finite(a) || !Finite(b) {
			continue
		}
		dst = append(dst, Segment{Edge: e, A: a, B: b})
	}
	return dst
}
