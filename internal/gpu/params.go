//go:build !nogpu

package gpu

import (
	"structs"

	"honnef.co/go/safeish"

	"github.com/gogpu/silhouette"
	"github.com/gogpu/silhouette/internal/parallel"
)

const (
	// WorkgroupSize matches @workgroup_size in every stage shader.
	WorkgroupSize = 256

	// MaxWorkgroupsPerDimension is the WebGPU default limit on workgroups
	// along one dispatch axis.
	MaxWorkgroupsPerDimension = 65535
)

// WorkgroupCount is a dispatch grid in workgroups.
type WorkgroupCount [3]uint32

// Total returns the number of workgroups in the grid.
func (w WorkgroupCount) Total() uint64 {
	return uint64(w[0]) * uint64(w[1]) * uint64(w[2])
}

// Grid returns the dispatch grid covering items work items. The groups are
// laid out along x first; y and z are used only when x would exceed
// MaxWorkgroupsPerDimension. The grid may cover more items than requested;
// shaders skip invocations whose linear index is out of range.
func Grid(items uint32) WorkgroupCount {
	groups := parallel.CeilDiv(items, WorkgroupSize)
	if groups == 0 {
		return WorkgroupCount{}
	}
	const m = MaxWorkgroupsPerDimension
	x := min(groups, m)
	y := min(parallel.CeilDiv(groups, m), m)
	z := parallel.CeilDiv(groups, m*m)
	return WorkgroupCount{x, y, z}
}

// Params is the uniform block shared by all stage shaders.
//
// This data structure must be kept in sync with the Params struct in
// shaders/*.wgsl.
type Params struct {
	_ structs.HostLayout

	// Transform is the column-major affine object transform.
	Transform [16]float32
	// Light is the light position; w is unused.
	Light [4]float32
	// Plane holds the plane normal in xyz and its distance in w.
	Plane [4]float32
	// Counts holds the vertex, triangle and edge counts.
	Counts [4]uint32
	// GridX and GridY hold the x and y workgroup counts of each stage,
	// indexed by silhouette.Stage.
	GridX [4]uint32
	GridY [4]uint32
}

// paramsSize is the byte size of Params.
const paramsSize = 16*4 + 4*4*5

// stageItems returns the work item count of each stage for t.
func stageItems(t *silhouette.Topology) [silhouette.StageCount]uint32 {
	var items [silhouette.StageCount]uint32
	for s := silhouette.StageTransform; s < silhouette.StageCount; s++ {
		items[s] = uint32(s.Items(t)) //nolint:gosec // counts are bounded by validateMesh
	}
	return items
}

// newParams returns the static part of the uniform block for t.
func newParams(t *silhouette.Topology) Params {
	var p Params
	items := stageItems(t)
	p.Counts = [4]uint32{
		uint32(t.VertexCount()),   //nolint:gosec // bounded by topology
		uint32(t.TriangleCount()), //nolint:gosec // bounded by topology
		uint32(t.EdgeCount()),     //nolint:gosec // bounded by topology
		0,
	}
	for s, n := range items {
		g := Grid(n)
		p.GridX[s] = g[0]
		p.GridY[s] = g[1]
	}
	return p
}

// setUniforms stores the per-iteration values of u.
func (p *Params) setUniforms(u *silhouette.Uniforms) {
	p.Transform = u.Transform
	p.Light = [4]float32{u.Light[0], u.Light[1], u.Light[2], 0}
	p.Plane = [4]float32{u.PlaneNormal[0], u.PlaneNormal[1], u.PlaneNormal[2], u.PlaneDistance}
}

// bytes returns the uniform block as upload bytes without copying.
func (p *Params) bytes() []byte {
	return safeish.AsBytes(p)
}
