//go:build nogpu

// Package gpu registers the "gpu" silhouette backend. This build was made
// with the nogpu tag, so no backend is registered.
package gpu

import (
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/silhouette"
)

// SetDeviceProvider always fails in nogpu builds.
func SetDeviceProvider(gpucontext.DeviceProvider) error {
	return silhouette.ErrNoGPU
}
