package flow

import "github.com/pkg/errors"

// Error taxonomy (spec.md §7). Search returns ErrEvaluatorFailure when
// the NN evaluator fails; arena exhaustion and cancellation end the
// search normally, reported through StopArenaExhausted/StopCancelled
// rather than an error. ErrIllegalMove, ErrInvalidPosition,
// ErrCancelled and ErrInternalInvariantViolation are declared here, but
// no code in this module returns or logs them, and no code detects
// invariant violations or clears linkage in response to one.
var (
	ErrEvaluatorFailure           = errors.New("flow: NN evaluator failure")
	ErrIllegalMove                = errors.New("flow: illegal move")
	ErrInvalidPosition            = errors.New("flow: invalid position")
	ErrCancelled                  = errors.New("flow: search cancelled")
	ErrInternalInvariantViolation = errors.New("flow: internal invariant violation")
)
