package silhouette

import (
	"runtime"

	"github.com/gogpu/gpucontext"
)

// DefaultGroupSize is the number of work items per dispatch group.
const DefaultGroupSize = 1024

// Option configures an evaluator during creation.
// Use functional options to customize backend behavior.
//
// Example:
//
//	// CPU evaluator with 4 workers and 256-item groups
//	e, err := silhouette.NewEvaluator("cpu", topo,
//		silhouette.WithWorkers(4),
//		silhouette.WithGroupSize(256))
type Option func(*Options)

// Options holds the resolved evaluator configuration. Backends receive it
// from NewEvaluator.
type Options struct {
	// Workers is the CPU worker count. Zero means GOMAXPROCS.
	Workers int

	// GroupSize is the number of work items per group.
	GroupSize int

	// DeviceProvider shares an existing GPU device with GPU backends.
	// Nil means the backend opens its own device.
	DeviceProvider gpucontext.DeviceProvider
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	o := Options{
		Workers:   runtime.GOMAXPROCS(0),
		GroupSize: DefaultGroupSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.GroupSize <= 0 {
		o.GroupSize = DefaultGroupSize
	}
	return o
}

// WithWorkers sets the CPU worker count.
func WithWorkers(n int) Option {
	return func(o *Options) {
		o.Workers = n
	}
}

// WithGroupSize sets the number of work items per dispatch group.
// Values below 1 keep the default.
func WithGroupSize(n int) Option {
	return func(o *Options) {
		o.GroupSize = n
	}
}

// WithDeviceProvider shares the GPU device of a host application (for
// example a gogpu window) with GPU backends. The provider should also
// implement HalDevice() any and HalQueue() any returning the HAL objects;
// providers that do not are ignored and the backend opens its own device.
func WithDeviceProvider(p gpucontext.DeviceProvider) Option {
	return func(o *Options) {
		o.DeviceProvider = p
	}
}
