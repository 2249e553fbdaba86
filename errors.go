package silhouette

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedMesh is the sentinel matched by every *MalformedMeshError.
	ErrMalformedMesh = errors.New("silhouette: malformed mesh")

	// ErrUnknownBackend is returned by NewEvaluator for an unregistered name.
	ErrUnknownBackend = errors.New("silhouette: unknown evaluator backend")

	// ErrNoGPU is returned by GPU backends when no usable adapter exists.
	ErrNoGPU = errors.New("silhouette: no compatible GPU found")

	// ErrNilTopology is returned when an evaluator is created without topology.
	ErrNilTopology = errors.New("silhouette: topology is nil")

	// ErrResultSize is returned when a readback Result does not match the
	// topology it is filled from.
	ErrResultSize = errors.New("silhouette: result size does not match topology")
)

// MalformedMeshError reports triangle index data that cannot form a mesh.
// It is returned by BuildTopology before anything is allocated.
type MalformedMeshError struct {
	// Reason describes the defect.
	Reason string

	// Position is the offending position in the index array, or -1 when the
	// defect concerns the array as a whole.
	Position int

	// Index is the offending vertex index when Position >= 0.
	Index uint32

	// Vertices is the number of vertices the indices refer into.
	Vertices int
}

func (e *MalformedMeshError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("silhouette: malformed mesh: %s", e.Reason)
	}
	return fmt.Sprintf("silhouette: malformed mesh: %s: indices[%d] = %d, vertex count %d",
		e.Reason, e.Position, e.Index, e.Vertices)
}

// Unwrap returns ErrMalformedMesh so callers can use errors.Is.
func (e *MalformedMeshError) Unwrap() error {
	return ErrMalformedMesh
}
