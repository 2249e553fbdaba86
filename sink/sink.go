package sink

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/gogpu/silhouette"
)

// Log writes one structured record per iteration.
type Log struct {
	Logger *slog.Logger
	Level  slog.Level
}

// NewLog returns a sink logging at Debug level to l, or to
// silhouette.Logger() when l is nil.
func NewLog(l *slog.Logger) *Log {
	if l == nil {
		l = silhouette.Logger()
	}
	return &Log{Logger: l, Level: slog.LevelDebug}
}

// DrawSegments implements silhouette.SegmentSink.
func (s *Log) DrawSegments(iteration int, segs []silhouette.Segment) error {
	if !s.Logger.Enabled(context.Background(), s.Level) {
		return nil
	}
	attrs := []slog.Attr{
		slog.Int("iteration", iteration),
		slog.Int("segments", len(segs)),
	}
	if len(segs) > 0 {
		first := segs[0]
		attrs = append(attrs,
			slog.Int("first_edge", first.Edge),
			slog.Any("first_a", [3]float32(first.A)),
			slog.Any("first_b", [3]float32(first.B)))
	}
	s.Logger.LogAttrs(context.Background(), s.Level, "silhouette segments", attrs...)
	return nil
}

// Frame is the segments of one iteration.
type Frame struct {
	Iteration int
	Segments  []silhouette.Segment
}

// Collect keeps a copy of every frame in memory. It is safe for concurrent
// use.
type Collect struct {
	mu     sync.Mutex
	frames []Frame
}

// DrawSegments implements silhouette.SegmentSink.
func (c *Collect) DrawSegments(iteration int, segs []silhouette.Segment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, Frame{Iteration: iteration, Segments: slices.Clone(segs)})
	return nil
}

// Frames returns the collected frames in arrival order.
func (c *Collect) Frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.frames)
}

// Reset drops the collected frames.
func (c *Collect) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// Multi fans segments out to several sinks. Every sink sees every frame;
// the errors are joined.
type Multi []silhouette.SegmentSink

// DrawSegments implements silhouette.SegmentSink.
func (m Multi) DrawSegments(iteration int, segs []silhouette.Segment) error {
	var errs []error
	for _, s := range m {
		if err := s.DrawSegments(iteration, segs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
