package silhouette

import (
	"log/slog"

	"github.com/gogpu/silhouette/internal/parallel"
)

// ParallelEvaluator runs every stage as a grouped dispatch on a worker pool.
//
// The work items of a stage are split into groups of GroupSize; the final
// group is padded and its surplus items are skipped. Stages of one
// dependency level (see Phases) are dispatched together, and the evaluator
// waits for a level to complete before starting the next one.
type ParallelEvaluator struct {
	topo      *Topology
	frame     *Frame
	pool      *parallel.WorkerPool
	groupSize int
	phases    [][]Stage
	log       *slog.Logger
	closed    released
}

// NewParallelEvaluator creates a CPU parallel evaluator for t.
func NewParallelEvaluator(t *Topology, opts Options) *ParallelEvaluator {
	if opts.GroupSize <= 0 {
		opts.GroupSize = DefaultGroupSize
	}
	e := &ParallelEvaluator{
		topo:      t,
		frame:     NewFrame(t),
		pool:      parallel.NewWorkerPool(opts.Workers),
		groupSize: opts.GroupSize,
		phases:    Phases(),
		log:       Logger(),
	}
	return e
}

func newParallelBackend(t *Topology, opts Options) (Evaluator, error) {
	return NewParallelEvaluator(t, opts), nil
}

// Name returns BackendCPU.
func (e *ParallelEvaluator) Name() string { return BackendCPU }

// SetLogger sets the evaluator's logger.
func (e *ParallelEvaluator) SetLogger(l *slog.Logger) {
	e.log = l
	e.log.Debug("silhouette: cpu evaluator configured",
		"workers", e.pool.Workers(),
		"group_size", e.groupSize)
}

// Workers returns the worker pool size.
func (e *ParallelEvaluator) Workers() int { return e.pool.Workers() }

// GroupSize returns the number of work items per dispatch group.
func (e *ParallelEvaluator) GroupSize() int { return e.groupSize }

// Evaluate implements Evaluator.
func (e *ParallelEvaluator) Evaluate(s *State, readback *Result) error {
	e.closed.check(BackendCPU)
	if readback != nil {
		if err := CheckResult(readback, e.topo); err != nil {
			return err
		}
	}

	u := s.Uniforms()
	batches := make([]parallel.Batch, 0, StageCount)
	for _, phase := range e.phases {
		batches = batches[:0]
		for _, stage := range phase {
			batches = append(batches, parallel.Batch{
				Items:     stage.Items(e.topo),
				GroupSize: e.groupSize,
				Item:      e.frame.Kernel(stage, e.topo, &u),
			})
		}
		e.pool.Dispatch(batches...)
	}

	if readback != nil {
		e.frame.copyTo(readback)
	}
	return nil
}

// Close stops the worker pool and releases the working buffers.
func (e *ParallelEvaluator) Close() error {
	e.closed.release(BackendCPU)
	e.pool.Close()
	e.frame = nil
	e.log.Debug("silhouette: cpu evaluator closed")
	return nil
}
