package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/silhouette"
)

var (
	// ErrInvalidConfig is returned for a Config that cannot be run.
	ErrInvalidConfig = errors.New("harness: invalid configuration")

	// ErrReadbackUnavailable is returned by Harness.Result when the mode
	// leaves the outputs on the device.
	ErrReadbackUnavailable = errors.New("harness: outputs are not read back in this mode")
)

// Mode selects how iterations are evaluated.
type Mode int

const (
	// ModeSequential runs the sequential evaluator; outputs are always on
	// the host.
	ModeSequential Mode = iota

	// ModeParallel runs the configured backend without readback.
	ModeParallel

	// ModeReadback runs the configured backend and copies the outputs to
	// the host after every iteration.
	ModeReadback

	modeCount
)

var modeNames = [...]string{"sequential", "parallel", "readback"}

// String returns the mode name accepted by ParseMode.
func (m Mode) String() string {
	if m >= 0 && m < modeCount {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// readsBack reports whether the mode produces host outputs every iteration.
func (m Mode) readsBack() bool { return m != ModeParallel }

// ParseMode parses a mode name, ignoring case.
func ParseMode(s string) (Mode, error) {
	for i, name := range modeNames {
		if strings.EqualFold(s, name) {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown mode %q (want one of %s)",
		ErrInvalidConfig, s, strings.Join(modeNames[:], ", "))
}

// AfterLimit selects what happens once the measured iterations are done.
type AfterLimit int

const (
	// StopAfterLimit returns from Run after the last measured iteration.
	StopAfterLimit AfterLimit = iota

	// ContinueAfterLimit keeps evaluating, unmeasured, until the context
	// passed to Run is cancelled.
	ContinueAfterLimit

	afterLimitCount
)

var afterLimitNames = [...]string{"stop", "continue"}

func (a AfterLimit) String() string {
	if a >= 0 && a < afterLimitCount {
		return afterLimitNames[a]
	}
	return fmt.Sprintf("AfterLimit(%d)", int(a))
}

// ParseAfterLimit parses "stop" or "continue", ignoring case.
func ParseAfterLimit(s string) (AfterLimit, error) {
	for i, name := range afterLimitNames {
		if strings.EqualFold(s, name) {
			return AfterLimit(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown after-limit behavior %q (want stop or continue)", ErrInvalidConfig, s)
}

// Default values applied by New for zero Config fields.
const (
	DefaultValidateSamples = 8
	DefaultTolerance       = 1e-4
)

// Config is a benchmark run configuration.
type Config struct {
	// Mode selects sequential, parallel or parallel-with-readback runs.
	Mode Mode

	// Backend names the evaluator for ModeParallel and ModeReadback.
	// Empty means silhouette.BackendCPU. It is ignored by ModeSequential.
	Backend string

	// Draw hands the silhouette segments of every iteration to the sink.
	// It has no effect in ModeParallel.
	Draw bool

	// Iterations is the number of measured evaluations.
	Iterations int

	// AfterLimit selects stop or unmeasured continuation after Iterations.
	AfterLimit AfterLimit

	// Validate cross-checks sampled iterations against the sequential
	// evaluator after the measured window.
	Validate bool

	// ValidateSamples is the number of iterations replayed by Validate.
	ValidateSamples int

	// Tolerance bounds the projection difference accepted by Validate.
	Tolerance float32
}

// Check reports the first problem with c, wrapped in ErrInvalidConfig.
func (c Config) Check() error {
	switch {
	case c.Mode < 0 || c.Mode >= modeCount:
		return fmt.Errorf("%w: mode %s", ErrInvalidConfig, c.Mode)
	case c.AfterLimit < 0 || c.AfterLimit >= afterLimitCount:
		return fmt.Errorf("%w: after-limit %s", ErrInvalidConfig, c.AfterLimit)
	case c.Iterations <= 0:
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidConfig, c.Iterations)
	case c.ValidateSamples < 0:
		return fmt.Errorf("%w: validate samples must not be negative, got %d", ErrInvalidConfig, c.ValidateSamples)
	case c.Tolerance < 0:
		return fmt.Errorf("%w: tolerance must not be negative, got %g", ErrInvalidConfig, c.Tolerance)
	}
	return nil
}

// backend returns the evaluator backend the mode runs.
func (c Config) backend() string {
	if c.Mode == ModeSequential {
		return silhouette.BackendSequential
	}
	if c.Backend == "" {
		return silhouette.BackendCPU
	}
	return c.Backend
}

func (c Config) withDefaults() Config {
	if c.ValidateSamples == 0 {
		c.ValidateSamples = DefaultValidateSamples
	}
	if c.Tolerance == 0 {
		c.Tolerance = DefaultTolerance
	}
	return c
}
