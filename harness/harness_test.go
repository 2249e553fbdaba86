package harness

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/silhouette"
	"github.com/gogpu/silhouette/internal/meshgen"
)

// recorder is a backend that runs the sequential evaluator and records what
// it was asked to do.
type recorder struct {
	*silhouette.SequentialEvaluator
	readbacks []bool
	corrupt   bool
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) Evaluate(s *silhouette.State, readback *silhouette.Result) error {
	r.readbacks = append(r.readbacks, readback != nil)
	if readback == nil {
		return nil
	}
	if err := r.SequentialEvaluator.Evaluate(s, readback); err != nil {
		return err
	}
	if r.corrupt && len(readback.Facing) > 0 {
		readback.Facing[0] ^= 1
	}
	return nil
}

// useRecorder registers a recorder backend for the duration of the test and
// returns a pointer to the recorder created by the harness.
func useRecorder(t *testing.T, corrupt bool) **recorder {
	t.Helper()
	var rec *recorder
	silhouette.RegisterBackend("recorder", func(topo *silhouette.Topology, _ silhouette.Options) (silhouette.Evaluator, error) {
		rec = &recorder{SequentialEvaluator: silhouette.NewSequentialEvaluator(topo), corrupt: corrupt}
		return rec, nil
	})
	t.Cleanup(func() { silhouette.UnregisterBackend("recorder") })
	return &rec
}

func cubeTopology(t *testing.T) *silhouette.Topology {
	t.Helper()
	m := meshgen.Cube(2)
	topo, err := silhouette.BuildTopology(m.Vertices, m.Indices)
	if err != nil {
		t.Fatalf("BuildTopology: %v", err)
	}
	return topo
}

func newHarness(t *testing.T, topo *silhouette.Topology, cfg Config, opts ...Option) *Harness {
	t.Helper()
	h, err := New(topo, cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"sequential", ModeSequential, false},
		{"PARALLEL", ModeParallel, false},
		{"readback", ModeReadback, false},
		{"gpu", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("ParseMode(%q) err = %v, want ErrInvalidConfig", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
		if got.String() != modeNames[tt.want] {
			t.Errorf("String() = %q", got.String())
		}
	}
}

func TestParseAfterLimit(t *testing.T) {
	if a, err := ParseAfterLimit("Continue"); err != nil || a != ContinueAfterLimit {
		t.Errorf("ParseAfterLimit(Continue) = %v, %v", a, err)
	}
	if a, err := ParseAfterLimit("stop"); err != nil || a != StopAfterLimit {
		t.Errorf("ParseAfterLimit(stop) = %v, %v", a, err)
	}
	if _, err := ParseAfterLimit("forever"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("ParseAfterLimit(forever) err = %v, want ErrInvalidConfig", err)
	}
	if s := AfterLimit(7).String(); s != "AfterLimit(7)" {
		t.Errorf("String() = %q", s)
	}
}

func TestConfigCheck(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"minimal", Config{Iterations: 1}, true},
		{"zero iterations", Config{}, false},
		{"negative iterations", Config{Iterations: -3}, false},
		{"bad mode", Config{Mode: Mode(9), Iterations: 1}, false},
		{"bad after limit", Config{AfterLimit: AfterLimit(-1), Iterations: 1}, false},
		{"negative samples", Config{Iterations: 1, ValidateSamples: -1}, false},
		{"negative tolerance", Config{Iterations: 1, Tolerance: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Check()
			if tt.ok && err != nil {
				t.Errorf("Check() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Check() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestNew_Errors(t *testing.T) {
	topo := cubeTopology(t)
	if _, err := New(nil, Config{Iterations: 1}); !errors.Is(err, silhouette.ErrNilTopology) {
		t.Errorf("nil topology: err = %v", err)
	}
	if _, err := New(topo, Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("zero iterations: err = %v", err)
	}
	if _, err := New(topo, Config{Iterations: 1, Draw: true}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("draw without sink: err = %v", err)
	}
	_, err := New(topo, Config{Mode: ModeParallel, Backend: "no-such-backend", Iterations: 1})
	if !errors.Is(err, silhouette.ErrUnknownBackend) {
		t.Errorf("unknown backend: err = %v", err)
	}
}

func TestRun_Sequential(t *testing.T) {
	topo := cubeTopology(t)
	var drawn []int
	sink := silhouette.SegmentSinkFunc(func(i int, segs []silhouette.Segment) error {
		drawn = append(drawn, i)
		if len(segs) == 0 {
			t.Errorf("iteration %d: no segments", i)
		}
		return nil
	})
	h := newHarness(t, topo, Config{Iterations: 10, Draw: true}, WithSink(sink))

	rep, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Iterations != 10 || rep.Backend != silhouette.BackendSequential {
		t.Errorf("report = %+v", rep)
	}
	if rep.Average != rep.Total/10 {
		t.Errorf("Average = %v, want Total/10 = %v", rep.Average, rep.Total/10)
	}
	if !slices.Equal(drawn, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}) {
		t.Errorf("drawn iterations = %v", drawn)
	}
	if _, err := h.Result(); err != nil {
		t.Errorf("Result: %v", err)
	}
}

func TestRun_ParallelSkipsReadbackAndDraw(t *testing.T) {
	topo := cubeTopology(t)
	rec := useRecorder(t, false)
	sink := silhouette.SegmentSinkFunc(func(int, []silhouette.Segment) error {
		t.Error("sink called in parallel mode")
		return nil
	})
	h := newHarness(t, topo, Config{Mode: ModeParallel, Backend: "recorder", Iterations: 5, Draw: true}, WithSink(sink))

	if _, err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := (*rec).readbacks; !slices.Equal(got, []bool{false, false, false, false, false}) {
		t.Errorf("readbacks = %v, want 5 without readback", got)
	}
	if _, err := h.Result(); !errors.Is(err, ErrReadbackUnavailable) {
		t.Errorf("Result err = %v, want ErrReadbackUnavailable", err)
	}
}

func TestRun_Readback(t *testing.T) {
	topo := cubeTopology(t)
	rec := useRecorder(t, false)
	h := newHarness(t, topo, Config{Mode: ModeReadback, Backend: "recorder", Iterations: 3})

	if _, err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := (*rec).readbacks; !slices.Equal(got, []bool{true, true, true}) {
		t.Errorf("readbacks = %v", got)
	}
}

func TestRun_ValidateCPU(t *testing.T) {
	topo := cubeTopology(t)
	h := newHarness(t, topo, Config{
		Mode:            ModeParallel,
		Backend:         silhouette.BackendCPU,
		Iterations:      20,
		Validate:        true,
		ValidateSamples: 4,
	}, WithEvaluatorOptions(silhouette.WithWorkers(2), silhouette.WithGroupSize(3)))

	rep, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Validated != 4 || rep.Mismatches != 0 {
		t.Errorf("validated %d, mismatches %d; want 4, 0", rep.Validated, rep.Mismatches)
	}
}

func TestRun_ValidateRunsAfterMeasuredWindow(t *testing.T) {
	topo := cubeTopology(t)
	rec := useRecorder(t, false)
	h := newHarness(t, topo, Config{
		Mode:            ModeParallel,
		Backend:         "recorder",
		Iterations:      7,
		Validate:        true,
		ValidateSamples: 3,
	})

	rep, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []bool{false, false, false, false, false, false, false, true, true, true}
	if got := (*rec).readbacks; !slices.Equal(got, want) {
		t.Errorf("readbacks = %v, want 7 measured then 3 validation", got)
	}
	if rep.Iterations != 7 || rep.Validated != 3 || rep.Mismatches != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestRun_ValidateDetectsMismatch(t *testing.T) {
	topo := cubeTopology(t)
	useRecorder(t, true)
	h := newHarness(t, topo, Config{Mode: ModeReadback, Backend: "recorder", Iterations: 6, Validate: true})

	rep, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Validated != 6 || rep.Mismatches != 6 {
		t.Errorf("validated %d, mismatches %d; want 6, 6", rep.Validated, rep.Mismatches)
	}
}

func TestRun_ContinueUntilCancelled(t *testing.T) {
	topo := cubeTopology(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const n = 4
	sink := silhouette.SegmentSinkFunc(func(i int, _ []silhouette.Segment) error {
		if i == n+9 {
			cancel()
		}
		return nil
	})
	h := newHarness(t, topo, Config{Iterations: n, Draw: true, AfterLimit: ContinueAfterLimit}, WithSink(sink))

	rep, err := h.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Iterations != n || rep.Unmeasured != 10 {
		t.Errorf("iterations %d, unmeasured %d; want %d, 10", rep.Iterations, rep.Unmeasured, n)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	topo := cubeTopology(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newHarness(t, topo, Config{Iterations: 3})
	if _, err := h.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run err = %v, want context.Canceled", err)
	}
}

func TestRun_SinkError(t *testing.T) {
	topo := cubeTopology(t)
	want := errors.New("disk full")
	sink := silhouette.SegmentSinkFunc(func(int, []silhouette.Segment) error { return want })
	h := newHarness(t, topo, Config{Iterations: 3, Draw: true}, WithSink(sink))

	if _, err := h.Run(context.Background()); !errors.Is(err, want) {
		t.Errorf("Run err = %v, want %v", err, want)
	}
}

func TestRun_StateSource(t *testing.T) {
	topo := cubeTopology(t)
	var seen []int
	states := StateFunc(func(i int) silhouette.State {
		seen = append(seen, i)
		return DefaultOrbit().State(i)
	})
	h := newHarness(t, topo, Config{Iterations: 3}, WithStates(states))
	if _, err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Equal(seen, []int{0, 1, 2}) {
		t.Errorf("states requested = %v", seen)
	}
}

func TestClose(t *testing.T) {
	h, err := New(cubeTopology(t), Config{Iterations: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := h.Run(context.Background()); err == nil {
		t.Error("Run after Close succeeded")
	}
}

func TestSampleIterations(t *testing.T) {
	tests := []struct {
		n, k int
		want []int
	}{
		{10, 0, nil},
		{10, 1, []int{9}},
		{10, 2, []int{0, 9}},
		{10, 4, []int{0, 3, 6, 9}},
		{3, 8, []int{0, 1, 2}},
	}
	for _, tt := range tests {
		if got := sampleIterations(tt.n, tt.k); !slices.Equal(got, tt.want) {
			t.Errorf("sampleIterations(%d, %d) = %v, want %v", tt.n, tt.k, got, tt.want)
		}
	}
}

func TestOrbit(t *testing.T) {
	o := DefaultOrbit()
	s0 := o.State(0)
	if s0.Light.Y() != o.LightHeight {
		t.Errorf("light height = %v, want %v", s0.Light.Y(), o.LightHeight)
	}
	if s0.Plane != o.Plane {
		t.Errorf("plane = %+v, want %+v", s0.Plane, o.Plane)
	}
	if o.State(5) != o.State(5) {
		t.Error("State is not deterministic")
	}
	if o.State(1).Light == s0.Light {
		t.Error("light did not move")
	}
}
