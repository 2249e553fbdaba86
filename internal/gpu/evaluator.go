//go:build !nogpu

package gpu

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/silhouette"
)

// Evaluator runs the silhouette pipeline on the GPU. It implements
// silhouette.Evaluator.
//
// Evaluate without readback leaves the submission in flight and returns;
// the next Evaluate or Close waits for it first, so at most one submission
// is outstanding.
type Evaluator struct {
	topo   *silhouette.Topology
	dev    *device
	disp   *Dispatcher
	bufs   *Buffers
	params Params

	inflight *Submission
	closed   bool
}

var _ silhouette.Evaluator = (*Evaluator)(nil)

// New creates a GPU evaluator for t. It opens or borrows a device, compiles
// the pipelines and uploads the static inputs. It returns an error wrapping
// silhouette.ErrNoGPU when no device can be opened.
func New(t *silhouette.Topology, opts silhouette.Options) (silhouette.Evaluator, error) {
	dev, err := acquireDevice(opts)
	if err != nil {
		return nil, err
	}

	disp := NewDispatcher(dev.device, dev.queue)
	if err := disp.Init(); err != nil {
		dev.destroy()
		return nil, err
	}

	bufs, err := disp.AllocateBuffers(t)
	if err != nil {
		disp.Close()
		dev.destroy()
		return nil, err
	}

	e := &Evaluator{
		topo:   t,
		dev:    dev,
		disp:   disp,
		bufs:   bufs,
		params: newParams(t),
	}
	slogger().Info("gpu: evaluator ready",
		"adapter", dev.name,
		"vertices", t.VertexCount(),
		"triangles", t.TriangleCount(),
		"edges", t.EdgeCount())
	return e, nil
}

// Name returns silhouette.BackendGPU.
func (e *Evaluator) Name() string { return silhouette.BackendGPU }

// SetLogger sets the logger of the gpu package.
func (e *Evaluator) SetLogger(l *slog.Logger) { setLogger(l) }

// Adapter returns the name of the GPU adapter in use.
func (e *Evaluator) Adapter() string { return e.dev.name }

// Evaluate implements silhouette.Evaluator.
func (e *Evaluator) Evaluate(s *silhouette.State, readback *silhouette.Result) error {
	if e.closed {
		panic("silhouette: gpu evaluator used after Close")
	}
	if readback != nil {
		if err := silhouette.CheckResult(readback, e.topo); err != nil {
			return err
		}
	}

	// The uniform buffer is rewritten below; the previous submission must
	// no longer read it.
	if err := e.drain(); err != nil {
		return err
	}

	u := s.Uniforms()
	e.params.setUniforms(&u)

	sub, err := e.disp.Dispatch(e.bufs, &e.params, readback != nil)
	if err != nil {
		return err
	}
	if readback == nil {
		e.inflight = sub
		return nil
	}

	defer sub.release()
	if err := sub.Wait(); err != nil {
		return err
	}
	return e.disp.ReadResult(e.bufs, readback)
}

// drain waits for the in-flight submission, if any.
func (e *Evaluator) drain() error {
	if e.inflight == nil {
		return nil
	}
	sub := e.inflight
	e.inflight = nil
	defer sub.release()
	if err := sub.Wait(); err != nil {
		return fmt.Errorf("gpu: previous submission: %w", err)
	}
	return nil
}

// Close waits for outstanding work, then releases the buffers, pipelines and
// the device if the evaluator opened it.
func (e *Evaluator) Close() error {
	if e.closed {
		panic("silhouette: gpu evaluator closed twice")
	}
	e.closed = true

	err := e.drain()
	e.disp.DestroyBuffers(e.bufs)
	e.bufs = nil
	e.disp.Close()
	e.dev.destroy()
	slogger().Debug("gpu: evaluator closed")
	return err
}
