// Package harness benchmarks silhouette evaluators.
//
// A Harness runs a fixed number of measured evaluations through one
// backend, hands the silhouette of each iteration to an optional sink and
// can cross-check sampled iterations against the sequential evaluator.
//
//	h, err := harness.New(topo, harness.Config{
//		Mode:       harness.ModeReadback,
//		Backend:    silhouette.BackendCPU,
//		Iterations: 1000,
//		Validate:   true,
//	})
//	if err != nil {
//		return err
//	}
//	defer h.Close()
//	report, err := h.Run(ctx)
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/silhouette"
)

// Report is the outcome of a run.
type Report struct {
	Mode    Mode
	Backend string

	// Iterations is the number of measured evaluations.
	Iterations int

	// Total is the wall-clock time from just before the first measured
	// evaluation to just after the last. Average is Total / Iterations.
	Total   time.Duration
	Average time.Duration

	// Unmeasured counts the evaluations run after the limit.
	Unmeasured int

	// Validated is the number of iterations cross-checked; Mismatches is
	// how many of them disagreed with the sequential evaluator.
	Validated  int
	Mismatches int
}

func (r Report) String() string {
	return fmt.Sprintf("%s/%s: %d iterations in %v (avg %v), %d/%d validated iterations mismatched",
		r.Mode, r.Backend, r.Iterations, r.Total, r.Average, r.Mismatches, r.Validated)
}

// Option configures a Harness.
type Option func(*Harness)

// WithSink sets the sink that receives the silhouette segments when
// Config.Draw is set.
func WithSink(s silhouette.SegmentSink) Option {
	return func(h *Harness) { h.sink = s }
}

// WithStates sets the per-iteration state source. The default is
// DefaultOrbit().
func WithStates(s StateSource) Option {
	return func(h *Harness) { h.states = s }
}

// WithEvaluatorOptions passes options to the benchmarked evaluator.
func WithEvaluatorOptions(opts ...silhouette.Option) Option {
	return func(h *Harness) { h.evalOpts = append(h.evalOpts, opts...) }
}

// Harness drives one evaluator. It is not safe for concurrent use.
type Harness struct {
	topo   *silhouette.Topology
	cfg    Config
	states StateSource
	sink   silhouette.SegmentSink
	log    *slog.Logger

	evalOpts []silhouette.Option
	eval     silhouette.Evaluator
	draw     bool

	// result receives readback outputs; nil in ModeParallel.
	result *silhouette.Result
	segs   []silhouette.Segment

	closed bool
}

// New validates cfg and creates the evaluator it names. The topology must
// already be built; its cost is not part of any measurement.
func New(topo *silhouette.Topology, cfg Config, opts ...Option) (*Harness, error) {
	if topo == nil {
		return nil, silhouette.ErrNilTopology
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	h := &Harness{
		topo:   topo,
		cfg:    cfg.withDefaults(),
		states: DefaultOrbit(),
		log:    silhouette.Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.draw = h.cfg.Draw
	if h.draw && h.sink == nil {
		return nil, fmt.Errorf("%w: draw requires a sink", ErrInvalidConfig)
	}
	if h.draw && !h.cfg.Mode.readsBack() {
		h.log.Warn("harness: draw disabled, parallel mode does not read outputs back")
		h.draw = false
	}

	eval, err := silhouette.NewEvaluator(h.cfg.backend(), topo, h.evalOpts...)
	if err != nil {
		return nil, err
	}
	h.eval = eval
	if h.cfg.Mode.readsBack() {
		h.result = silhouette.NewResult(topo)
	}

	h.log.Info("harness: ready",
		"mode", h.cfg.Mode.String(),
		"backend", eval.Name(),
		"iterations", h.cfg.Iterations,
		"draw", h.draw,
		"after_limit", h.cfg.AfterLimit.String())
	return h, nil
}

// Evaluator returns the benchmarked evaluator.
func (h *Harness) Evaluator() silhouette.Evaluator { return h.eval }

// Result returns the outputs of the latest iteration, or
// ErrReadbackUnavailable in ModeParallel.
func (h *Harness) Result() (*silhouette.Result, error) {
	if h.result == nil {
		return nil, ErrReadbackUnavailable
	}
	return h.result, nil
}

// Run executes the measured iterations, then validation if configured, then
// unmeasured iterations until ctx is done if AfterLimit is
// ContinueAfterLimit. Cancelling ctx during the measured window returns the
// context error; cancelling it while continuing ends Run normally.
func (h *Harness) Run(ctx context.Context) (Report, error) {
	if h.closed {
		return Report{}, fmt.Errorf("harness: run after Close")
	}
	n := h.cfg.Iterations
	rep := Report{Mode: h.cfg.Mode, Backend: h.eval.Name(), Iterations: n}

	start := time.Now()
	for i := range n {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := h.step(i); err != nil {
			return rep, err
		}
	}
	rep.Total = time.Since(start)
	rep.Average = rep.Total / time.Duration(n)

	h.log.Info("harness: benchmark finished",
		"mode", rep.Mode.String(),
		"backend", rep.Backend,
		"iterations", n,
		"total", rep.Total,
		"average", rep.Average)

	if h.cfg.Validate {
		if err := h.validate(&rep); err != nil {
			return rep, err
		}
	}

	if h.cfg.AfterLimit == ContinueAfterLimit {
		for i := n; ctx.Err() == nil; i++ {
			if err := h.step(i); err != nil {
				return rep, err
			}
			rep.Unmeasured++
		}
		h.log.Info("harness: stopped", "unmeasured", rep.Unmeasured)
	}
	return rep, nil
}

// step evaluates iteration i and draws it when enabled.
func (h *Harness) step(i int) error {
	s := h.states.State(i)
	if err := h.eval.Evaluate(&s, h.result); err != nil {
		return fmt.Errorf("harness: iteration %d: %w", i, err)
	}
	if !h.draw {
		return nil
	}
	h.segs = silhouette.Segments(h.topo, h.result, h.segs[:0])
	if err := h.sink.DrawSegments(i, h.segs); err != nil {
		return fmt.Errorf("harness: draw iteration %d: %w", i, err)
	}
	return nil
}

// sampleIterations returns up to k iteration indices spread evenly over
// [0, n), always including the first and the last.
func sampleIterations(n, k int) []int {
	k = min(k, n)
	if k <= 0 {
		return nil
	}
	if k == 1 {
		return []int{n - 1}
	}
	out := make([]int, k)
	for j := range k {
		out[j] = j * (n - 1) / (k - 1)
	}
	return out
}

// validate replays sampled iterations through a fresh sequential evaluator
// and the benchmarked one, with readback.
func (h *Harness) validate(rep *Report) error {
	ref, err := silhouette.NewEvaluator(silhouette.BackendSequential, h.topo)
	if err != nil {
		return err
	}
	defer ref.Close()

	want := silhouette.NewResult(h.topo)
	got := silhouette.NewResult(h.topo)
	for _, i := range sampleIterations(h.cfg.Iterations, h.cfg.ValidateSamples) {
		s := h.states.State(i)
		if err := ref.Evaluate(&s, want); err != nil {
			return fmt.Errorf("harness: validate iteration %d: %w", i, err)
		}
		if err := h.eval.Evaluate(&s, got); err != nil {
			return fmt.Errorf("harness: validate iteration %d: %w", i, err)
		}
		rep.Validated++
		if mm := silhouette.Compare(want, got, h.cfg.Tolerance); !mm.Empty() {
			rep.Mismatches++
			h.log.Warn("harness: validation mismatch", "iteration", i, "mismatch", mm.String())
		}
	}
	h.log.Info("harness: validation finished",
		"validated", rep.Validated,
		"mismatches", rep.Mismatches)
	return nil
}

// Close releases the evaluator. Further calls do nothing.
func (h *Harness) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.eval.Close()
}
