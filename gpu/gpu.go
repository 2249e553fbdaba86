//go:build !nogpu

// Package gpu registers the "gpu" silhouette backend.
//
// Import this package for its side effect to make silhouette.NewEvaluator
// accept silhouette.BackendGPU. Each GPU evaluator compiles the four stage
// shaders and keeps the mesh on the device for its whole lifetime.
//
// If no Vulkan device is available, creating a GPU evaluator fails with an
// error wrapping silhouette.ErrNoGPU; the CPU backends are unaffected.
//
// Usage:
//
//	import _ "github.com/gogpu/silhouette/gpu" // enable the GPU backend
package gpu

import (
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/silhouette"
	gpuimpl "github.com/gogpu/silhouette/internal/gpu"
)

func init() {
	silhouette.RegisterBackend(silhouette.BackendGPU, gpuimpl.New)
}

// SetDeviceProvider makes GPU evaluators created without
// silhouette.WithDeviceProvider borrow the device of provider instead of
// opening their own. Borrowed devices are never destroyed by an evaluator.
//
// The provider must also expose HalDevice() and HalQueue() returning the
// wgpu HAL device and queue. Pass nil to restore the default.
func SetDeviceProvider(provider gpucontext.DeviceProvider) error {
	if provider == nil {
		return gpuimpl.SetDefaultProvider(nil)
	}
	return gpuimpl.SetDefaultProvider(provider)
}
