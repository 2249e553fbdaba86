package silhouette

import (
	"log/slog"
)

// SequentialEvaluator runs every stage on the calling goroutine, in
// dependency order. It is the reference the other backends are checked
// against.
type SequentialEvaluator struct {
	topo   *Topology
	frame  *Frame
	log    *slog.Logger
	closed released
}

// NewSequentialEvaluator creates a sequential evaluator for t.
func NewSequentialEvaluator(t *Topology) *SequentialEvaluator {
	return &SequentialEvaluator{
		topo:  t,
		frame: NewFrame(t),
		log:   Logger(),
	}
}

func newSequentialBackend(t *Topology, _ Options) (Evaluator, error) {
	return NewSequentialEvaluator(t), nil
}

// Name returns BackendSequential.
func (e *SequentialEvaluator) Name() string { return BackendSequential }

// SetLogger sets the evaluator's logger.
func (e *SequentialEvaluator) SetLogger(l *slog.Logger) { e.log = l }

// Frame returns the evaluator's working buffers. They hold the outputs of
// the latest Evaluate call.
func (e *SequentialEvaluator) Frame() *Frame { return e.frame }

// Evaluate implements Evaluator.
func (e *SequentialEvaluator) Evaluate(s *State, readback *Result) error {
	e.closed.check(BackendSequential)
	if readback != nil {
		if err := CheckResult(readback, e.topo); err != nil {
			return err
		}
	}

	u := s.Uniforms()
	for stage := StageTransform; stage < StageCount; stage++ {
		kernel := e.frame.Kernel(stage, e.topo, &u)
		for i := range stage.Items(e.topo) {
			kernel(i)
		}
	}

	if readback != nil {
		e.frame.copyTo(readback)
	}
	return nil
}

// Close releases the working buffers.
func (e *SequentialEvaluator) Close() error {
	e.closed.release(BackendSequential)
	e.frame = nil
	e.log.Debug("silhouette: sequential evaluator closed")
	return nil
}
