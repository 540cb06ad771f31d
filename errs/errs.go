// Package errs defines the tagged error kinds raised by the engine.
//
// Every kind here is fatal in the reference driver: callers wrap one of
// these sentinels with fmt.Errorf("...: %w", ...) at the raise site so
// that errors.Is keeps working once the message gains context.
package errs

import "errors"

var (
	// ErrCheckpointInvalid marks a missing checkpoint file, a bad magic
	// number, or an unsupported version.
	ErrCheckpointInvalid = errors.New("checkpoint invalid")

	// ErrShapeOverflow marks a forward call whose (B, T) exceeds the
	// capacity fixed by the first forward call's activation allocation.
	ErrShapeOverflow = errors.New("batch shape exceeds first-forward allocation")

	// ErrStateViolation marks backward called without a prior
	// targets-bearing forward, or update called before any backward.
	ErrStateViolation = errors.New("invalid engine state transition")

	// ErrTokenFileTooSmall marks a token file that cannot serve even one
	// requested batch.
	ErrTokenFileTooSmall = errors.New("token file too small for requested batch")
)
