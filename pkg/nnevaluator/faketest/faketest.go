// Package faketest provides a deterministic stand-in for a neural
// network evaluator, for use in unit tests where no real weights are
// available. It never calls out to any device. (The demo CLI uses
// chessadapter.UniformEvaluator instead.)
package faketest

import (
	"context"

	"github.com/arborchess/nnsearch/pkg/nnevaluator"
)

// PolicyFunc produces the (move, prior) pairs for a position; tests
// typically supply a uniform distribution over a fixed move list.
type PolicyFunc func(pos nnevaluator.PositionEncoding) []nnevaluator.PolicyEntry

// Fixed is a deterministic evaluator that returns the same value/WDL/M
// for every position it sees, plus whatever Policy computes. Useful for
// scenario S2 (uniform priors, all values 0) and similar determinism
// tests (spec.md §8).
type Fixed struct {
	Value       float32
	WinP        float32
	LossP       float32
	MovesLeft   float32
	Policy      PolicyFunc
	MaxBatch    int
	Breaks      []int
	EvalsCalled int
}

// NewUniform builds a Fixed evaluator with value 0 and a uniform policy
// over moves, matching the "deterministic NN (all priors uniform, all
// values 0)" fixture scenario S2 requires.
func NewUniform(moves []uint32, maxBatch int, breaks []int) *Fixed {
	p := float32(1)
	if len(moves) > 0 {
		p = 1 / float32(len(moves))
	}
	return &Fixed{
		Policy: func(nnevaluator.PositionEncoding) []nnevaluator.PolicyEntry {
			out := make([]nnevaluator.PolicyEntry, len(moves))
			for i, m := range moves {
				out[i] = nnevaluator.PolicyEntry{Move: m, PriorP: p}
			}
			return out
		},
		MaxBatch: maxBatch,
		Breaks:   breaks,
	}
}

func (f *Fixed) Evaluate(_ context.Context, batch []nnevaluator.PositionEncoding) ([]nnevaluator.Output, error) {
	f.EvalsCalled++
	out := make([]nnevaluator.Output, len(batch))
	for i, pos := range batch {
		var policy []nnevaluator.PolicyEntry
		if f.Policy != nil {
			policy = f.Policy(pos)
		}
		out[i] = nnevaluator.Output{
			Value:     f.Value,
			WinP:      f.WinP,
			LossP:     f.LossP,
			MovesLeft: f.MovesLeft,
			Policy:    policy,
		}
	}
	return out, nil
}

func (f *Fixed) MaxBatchSize() int {
	if f.MaxBatch <= 0 {
		return 1024
	}
	return f.MaxBatch
}

func (f *Fixed) Breakpoints() []int { return f.Breaks }
