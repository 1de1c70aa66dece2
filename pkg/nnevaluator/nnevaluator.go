// Package nnevaluator declares the external neural-network evaluator
// collaborator (spec.md §6): a batched position -> {value, WDL,
// moves-left, policy} function whose weights, device placement, and
// tensor plumbing are entirely out of scope for this module.
package nnevaluator

import "context"

// PositionEncoding is an opaque, evaluator-defined input tensor for one
// position. How a position is encoded (board planes, history stacking,
// side-to-move framing) is a concern of the chess/NN layer, not this
// package.
type PositionEncoding interface{}

// PolicyEntry pairs a move encoding with the probability mass the
// network assigned it, mirroring arena.PolicyMove but decoupled from the
// arena package so this interface has no dependency on tree internals.
type PolicyEntry struct {
	Move   uint32
	PriorP float32
}

// Output is one position's network evaluation.
type Output struct {
	Value     float32
	WinP      float32
	LossP     float32
	MovesLeft float32
	Policy    []PolicyEntry
}

// Evaluator is the NN evaluator boundary consumed by pkg/flow. A batch
// must respect MaxBatchSize; Breakpoints exposes the device's
// throughput-optimal batch sizes for the Batch Sizer's snapping logic
// (spec.md §4.F).
type Evaluator interface {
	Evaluate(ctx context.Context, batch []PositionEncoding) ([]Output, error)
	MaxBatchSize() int
	Breakpoints() []int
}
