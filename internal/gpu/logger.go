//go:build !nogpu

package gpu

import (
	"log/slog"
	"sync/atomic"
)

// discard is the logger in effect until an evaluator hands one over.
var discard = slog.New(slog.DiscardHandler)

// gpuLogger is shared by the device, the dispatcher and every evaluator of
// this package. The last SetLogger call wins.
var gpuLogger atomic.Pointer[slog.Logger]

func init() { gpuLogger.Store(discard) }

// slogger returns the logger for adapter selection, pipeline builds and
// stage dispatches.
func slogger() *slog.Logger { return gpuLogger.Load() }

// setLogger replaces the package logger; nil silences it.
func setLogger(l *slog.Logger) {
	if l == nil {
		l = discard
	}
	gpuLogger.Store(l)
}
