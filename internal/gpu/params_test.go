//go:build !nogpu

package gpu

import (
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/silhouette"
	"github.com/gogpu/silhouette/internal/meshgen"
)

func TestGrid(t *testing.T) {
	const m = MaxWorkgroupsPerDimension
	tests := []struct {
		items uint32
		want  WorkgroupCount
	}{
		{0, WorkgroupCount{0, 0, 0}},
		{1, WorkgroupCount{1, 1, 1}},
		{256, WorkgroupCount{1, 1, 1}},
		{257, WorkgroupCount{2, 1, 1}},
		{m * WorkgroupSize, WorkgroupCount{m, 1, 1}},
		{m*WorkgroupSize + 1, WorkgroupCount{m, 2, 1}},
	}
	for _, tt := range tests {
		if got := Grid(tt.items); got != tt.want {
			t.Errorf("Grid(%d) = %v, want %v", tt.items, got, tt.want)
		}
	}
}

func TestGrid_Covers(t *testing.T) {
	for _, items := range []uint32{1, 255, 1000, 1 << 20, 1<<24 + 7, 1<<32 - 1} {
		g := Grid(items)
		for i, n := range g {
			if n == 0 || n > MaxWorkgroupsPerDimension {
				t.Errorf("Grid(%d)[%d] = %d out of range", items, i, n)
			}
		}
		if covered := g.Total() * WorkgroupSize; covered < uint64(items) {
			t.Errorf("Grid(%d) = %v covers %d items", items, g, covered)
		}
	}
}

func TestGrid_MaxItems(t *testing.T) {
	// 2^24 workgroups spill into y; z stays 1 for any uint32 item count.
	want := WorkgroupCount{MaxWorkgroupsPerDimension, 257, 1}
	if g := Grid(1<<32 - 1); g != want {
		t.Errorf("Grid(MaxUint32) = %v, want %v", g, want)
	}
}

func TestParamsLayout(t *testing.T) {
	var p Params
	if got := unsafe.Sizeof(p); got != paramsSize {
		t.Errorf("sizeof(Params) = %d, want %d", got, paramsSize)
	}
	if paramsSize%16 != 0 {
		t.Errorf("paramsSize = %d, not a multiple of 16", paramsSize)
	}
	offsets := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"Transform", unsafe.Offsetof(p.Transform), 0},
		{"Light", unsafe.Offsetof(p.Light), 64},
		{"Plane", unsafe.Offsetof(p.Plane), 80},
		{"Counts", unsafe.Offsetof(p.Counts), 96},
		{"GridX", unsafe.Offsetof(p.GridX), 112},
		{"GridY", unsafe.Offsetof(p.GridY), 128},
	}
	for _, o := range offsets {
		if o.got != o.want {
			t.Errorf("offset of %s = %d, want %d", o.name, o.got, o.want)
		}
	}
	if got := len(p.bytes()); got != paramsSize {
		t.Errorf("len(bytes) = %d, want %d", got, paramsSize)
	}
}

func TestNewParams(t *testing.T) {
	m := meshgen.Cube(1)
	topo, err := silhouette.BuildTopology(m.Vertices, m.Indices)
	if err != nil {
		t.Fatalf("BuildTopology: %v", err)
	}
	p := newParams(topo)
	if want := [4]uint32{8, 12, 18, 0}; p.Counts != want {
		t.Errorf("Counts = %v, want %v", p.Counts, want)
	}
	for s := silhouette.StageTransform; s < silhouette.StageCount; s++ {
		if p.GridX[s] != 1 || p.GridY[s] != 1 {
			t.Errorf("%s grid = %d x %d, want 1 x 1", s, p.GridX[s], p.GridY[s])
		}
	}
}

func TestSetUniforms(t *testing.T) {
	s := silhouette.State{
		Transform: mgl32.Translate3D(1, 2, 3),
		Light:     mgl32.Vec3{4, 5, 6},
		Plane:     silhouette.Plane{Point: mgl32.Vec3{0, -2, 0}, Normal: mgl32.Vec3{0, 1, 0}},
	}
	u := s.Uniforms()
	var p Params
	p.setUniforms(&u)

	if p.Transform != [16]float32(s.Transform) {
		t.Errorf("Transform = %v, want %v", p.Transform, s.Transform)
	}
	if want := [4]float32{4, 5, 6, 0}; p.Light != want {
		t.Errorf("Light = %v, want %v", p.Light, want)
	}
	if want := [4]float32{0, 1, 0, -2}; p.Plane != want {
		t.Errorf("Plane = %v, want %v", p.Plane, want)
	}
}

func TestStageBindGroupLayoutEntries(t *testing.T) {
	want := map[silhouette.Stage]int{
		silhouette.StageTransform:  3,
		silhouette.StageFacing:     4,
		silhouette.StageProjection: 3,
		silhouette.StageSilhouette: 4,
	}
	for s, n := range want {
		entries := stageBindGroupLayoutEntries(s)
		if len(entries) != n {
			t.Errorf("%s: %d entries, want %d", s, len(entries), n)
			continue
		}
		for i, e := range entries {
			if e.Binding != uint32(i) {
				t.Errorf("%s: entry %d has binding %d", s, i, e.Binding)
			}
		}
	}
	if entries := stageBindGroupLayoutEntries(silhouette.StageCount); entries != nil {
		t.Errorf("unknown stage: %d entries, want none", len(entries))
	}
}

func TestComputeBufferSizes(t *testing.T) {
	m := meshgen.Cube(1)
	topo, err := silhouette.BuildTopology(m.Vertices, m.Indices)
	if err != nil {
		t.Fatalf("BuildTopology: %v", err)
	}
	sz := computeBufferSizes(topo)
	if sz.vertices != 8*12 || sz.triangles != 36*4 || sz.edges != 18*8 {
		t.Errorf("static sizes = %d/%d/%d", sz.vertices, sz.triangles, sz.edges)
	}
	if want := uint64(12*4 + 8*12 + 18*4); sz.staging() != want {
		t.Errorf("staging = %d, want %d", sz.staging(), want)
	}
}
