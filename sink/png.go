// Package sink provides silhouette.SegmentSink implementations: PNG frames
// rasterized with gogpu/gg, structured log lines, and in-memory collection.
package sink

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gg"

	"github.com/gogpu/silhouette"
)

// PNG rasterizes the segments of an iteration onto the projection plane and
// writes the frame as a PNG file.
//
// Points are expressed in a 2D basis of the plane centered on the plane's
// point; Extent world units from the center reach the shorter image edge.
type PNG struct {
	path   string
	plane  silhouette.Plane
	u, v   mgl32.Vec3
	width  int
	height int
	extent float32
	every  int
	line   float64

	dc      *gg.Context
	written int
}

// PNGOption configures a PNG sink.
type PNGOption func(*PNG)

// WithSize sets the image size in pixels. Default 512x512.
func WithSize(width, height int) PNGOption {
	return func(p *PNG) {
		if width > 0 && height > 0 {
			p.width, p.height = width, height
		}
	}
}

// WithExtent sets the half-size, in world units, of the plane region shown.
// Default 4.
func WithExtent(extent float32) PNGOption {
	return func(p *PNG) {
		if extent > 0 {
			p.extent = extent
		}
	}
}

// WithEvery writes only iterations that are a multiple of n. Default 1.
func WithEvery(n int) PNGOption {
	return func(p *PNG) {
		if n > 0 {
			p.every = n
		}
	}
}

// WithLineWidth sets the stroke width in pixels. Default 1.5.
func WithLineWidth(w float64) PNGOption {
	return func(p *PNG) {
		if w > 0 {
			p.line = w
		}
	}
}

// NewPNG returns a sink writing frames to path. If path contains a
// formatting verb such as "%05d", it is formatted with the iteration and
// every frame gets its own file; otherwise each frame overwrites the last.
func NewPNG(path string, plane silhouette.Plane, opts ...PNGOption) *PNG {
	p := &PNG{
		path:   path,
		plane:  plane,
		width:  512,
		height: 512,
		extent: 4,
		every:  1,
		line:   1.5,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.u, p.v = planeBasis(plane.Normal)
	p.dc = gg.NewContext(p.width, p.height)
	return p
}

// planeBasis returns two unit vectors spanning the plane with normal n.
func planeBasis(n mgl32.Vec3) (u, v mgl32.Vec3) {
	n = n.Normalize()
	helper := mgl32.Vec3{0, 1, 0}
	if math.Abs(float64(n.Y())) > 0.9 {
		helper = mgl32.Vec3{1, 0, 0}
	}
	u = helper.Cross(n).Normalize()
	v = n.Cross(u)
	return u, v
}

// pixel maps a point on the plane to image coordinates.
func (p *PNG) pixel(q mgl32.Vec3) (x, y float64) {
	d := q.Sub(p.plane.Point)
	scale := float64(min(p.width, p.height)) / (2 * float64(p.extent))
	x = float64(p.width)/2 + float64(d.Dot(p.u))*scale
	y = float64(p.height)/2 - float64(d.Dot(p.v))*scale
	return x, y
}

// framePath returns the output file of an iteration.
func (p *PNG) framePath(iteration int) string {
	if strings.Contains(p.path, "%") {
		return fmt.Sprintf(p.path, iteration)
	}
	return p.path
}

// DrawSegments implements silhouette.SegmentSink.
func (p *PNG) DrawSegments(iteration int, segs []silhouette.Segment) error {
	if iteration%p.every != 0 {
		return nil
	}
	p.dc.ClearWithColor(gg.White)
	if len(segs) > 0 {
		p.dc.SetRGB(0.1, 0.1, 0.1)
		p.dc.SetLineWidth(p.line)
		for _, s := range segs {
			x1, y1 := p.pixel(s.A)
			x2, y2 := p.pixel(s.B)
			p.dc.DrawLine(x1, y1, x2, y2)
		}
		if err := p.dc.Stroke(); err != nil {
			return fmt.Errorf("sink: stroke iteration %d: %w", iteration, err)
		}
	}
	if err := p.dc.SavePNG(p.framePath(iteration)); err != nil {
		return fmt.Errorf("sink: save iteration %d: %w", iteration, err)
	}
	p.written++
	return nil
}

// Written returns the number of frames saved.
func (p *PNG) Written() int { return p.written }

// Close releases the drawing context.
func (p *PNG) Close() error {
	return p.dc.Close()
}
