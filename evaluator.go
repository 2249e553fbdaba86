package silhouette

import (
	"fmt"
	"slices"
	"sync"
)

// Evaluator runs the four-stage pipeline for one topology.
//
// An Evaluator owns every per-iteration buffer it needs; nothing is shared
// between evaluators except the read-only Topology. Close releases the
// buffers exactly once. Calling Evaluate or Close after Close panics.
//
// Evaluators are not safe for concurrent use.
type Evaluator interface {
	// Name returns the backend name the evaluator was created with.
	Name() string

	// Evaluate runs all four stages for state s, honoring the stage
	// dependencies. When readback is non-nil the outputs are copied into it
	// before Evaluate returns; readback must be sized for the topology
	// (see NewResult). When readback is nil nothing is copied to the host
	// and backends may return before the device work completes.
	Evaluate(s *State, readback *Result) error

	// Close waits for outstanding work and releases the evaluator's buffers.
	Close() error
}

// BackendFactory creates an evaluator for topology t.
type BackendFactory func(t *Topology, opts Options) (Evaluator, error)

// Built-in backend names.
const (
	// BackendSequential runs every stage on the calling goroutine.
	BackendSequential = "sequential"

	// BackendCPU runs every stage as grouped parallel dispatches on a
	// worker pool.
	BackendCPU = "cpu"

	// BackendGPU runs every stage as compute dispatches. It is registered
	// by importing github.com/gogpu/silhouette/gpu.
	BackendGPU = "gpu"
)

var (
	registryMu sync.RWMutex
	backends   = map[string]BackendFactory{
		BackendSequential: newSequentialBackend,
		BackendCPU:        newParallelBackend,
	}
)

// RegisterBackend registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func RegisterBackend(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// UnregisterBackend removes a backend from the registry.
// This is useful for testing.
func UnregisterBackend(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Backends returns the sorted names of all registered backends.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewEvaluator creates an evaluator of the named backend for topology t.
// It returns an error wrapping ErrUnknownBackend if name is not registered.
func NewEvaluator(name string, t *Topology, opts ...Option) (Evaluator, error) {
	if t == nil {
		return nil, ErrNilTopology
	}

	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownBackend, name, Backends())
	}

	e, err := factory(t, NewOptions(opts...))
	if err != nil {
		return nil, fmt.Errorf("silhouette: create %s evaluator: %w", name, err)
	}

	log := Logger()
	propagateLogger(e, log)
	log.Info("silhouette: evaluator created",
		"backend", name,
		"vertices", t.VertexCount(),
		"triangles", t.TriangleCount(),
		"edges", t.EdgeCount())

	return e, nil
}

// released guards the release-once rule shared by all evaluators.
type released bool

// check panics if the evaluator has been closed.
func (r released) check(name string) {
	if r {
		panic(fmt.Sprintf("silhouette: %s evaluator used after Close", name))
	}
}

// release marks the evaluator closed, panicking on a second call.
func (r *released) release(name string) {
	if *r {
		panic(fmt.Sprintf("silhouette: %s evaluator closed twice", name))
	}
	*r = true
}
