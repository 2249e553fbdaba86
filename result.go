package silhouette

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Result is the host-visible output of one evaluation.
type Result struct {
	// Facing holds one entry per triangle: 1 facing the light, 0 not.
	Facing []uint32

	// Projection holds one projected position per vertex.
	Projection []mgl32.Vec3

	// Silhouette holds one entry per unique edge: 1 silhouette, 0 not.
	Silhouette []uint32
}

// NewResult allocates a Result sized for t.
func NewResult(t *Topology) *Result {
	return &Result{
		Facing:     make([]uint32, t.TriangleCount()),
		Projection: make([]mgl32.Vec3, t.VertexCount()),
		Silhouette: make([]uint32, t.EdgeCount()),
	}
}

// fits reports whether r has the sizes of t.
func (r *Result) fits(t *Topology) bool {
	return len(r.Facing) == t.TriangleCount() &&
		len(r.Projection) == t.VertexCount() &&
		len(r.Silhouette) == t.EdgeCount()
}

// CheckResult returns an error wrapping ErrResultSize if r is not sized
// for t.
func CheckResult(r *Result, t *Topology) error {
	if r.fits(t) {
		return nil
	}
	return fmt.Errorf("%w: facing %d/%d, projection %d/%d, silhouette %d/%d",
		ErrResultSize,
		len(r.Facing), t.TriangleCount(),
		len(r.Projection), t.VertexCount(),
		len(r.Silhouette), t.EdgeCount())
}

// SilhouetteCount returns the number of edges marked as silhouette.
func (r *Result) SilhouetteCount() int {
	n := 0
	for _, s := range r.Silhouette {
		n += int(s)
	}
	return n
}

// FacingCount returns the number of triangles facing the light.
func (r *Result) FacingCount() int {
	n := 0
	for _, f := range r.Facing {
		n += int(f)
	}
	return n
}

// Mismatch summarizes the differences between two results.
type Mismatch struct {
	// Facing and Silhouette count differing entries.
	Facing     int
	Silhouette int

	// Projection counts vertices whose projections differ by more than the
	// tolerance in any component. Two non-finite components are equal when
	// both are NaN or both are the same infinity.
	Projection int

	// MaxProjectionError is the largest finite component difference seen.
	MaxProjectionError float32

	// Length is true when the result sizes differ. Counts are then taken
	// over the common prefix.
	Length bool
}

// Empty reports whether no difference was found.
func (m Mismatch) Empty() bool {
	return m.Facing == 0 && m.Silhouette == 0 && m.Projection == 0 && !m.Length
}

func (m Mismatch) String() string {
	if m.Empty() {
		return "no mismatch"
	}
	return fmt.Sprintf("facing %d, projection %d (max error %g), silhouette %d, length %t",
		m.Facing, m.Projection, m.MaxProjectionError, m.Silhouette, m.Length)
}

// Compare compares got against the reference result ref. Projections are
// compared per component with the absolute tolerance tol.
func Compare(ref, got *Result, tol float32) Mismatch {
	var m Mismatch

	m.Facing, m.Length = compareFlags(ref.Facing, got.Facing, m.Length)
	m.Silhouette, m.Length = compareFlags(ref.Silhouette, got.Silhouette, m.Length)

	n := min(len(ref.Projection), len(got.Projection))
	if len(ref.Projection) != len(got.Projection) {
		m.Length = true
	}
	for i := range n {
		bad := false
		for c := range 3 {
			a, b := ref.Projection[i][c], got.Projection[i][c]
			if !finite(a) || !finite(b) {
				if !sameNonFinite(a, b) {
					bad = true
				}
				continue
			}
			d := float32(math.Abs(float64(a - b)))
			if d > m.MaxProjectionError {
				m.MaxProjectionError = d
			}
			if d > tol {
				bad = true
			}
		}
		if bad {
			m.Projection++
		}
	}

	return m
}

func compareFlags(ref, got []uint32, length bool) (int, bool) {
	if len(ref) != len(got) {
		length = true
	}
	diff := 0
	for i := range min(len(ref), len(got)) {
		if ref[i] != got[i] {
			diff++
		}
	}
	return diff, length
}

func finite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}

func sameNonFinite(a, b float32) bool {
	if math.IsNaN(float64(a)) {
		return math.IsNaN(float64(b))
	}
	return a == b
}

// Finite reports whether every component of v is finite.
func Finite(v mgl32.Vec3) bool {
	return finite(v[0]) && finite(v[1]) && finite(v[2])
}
