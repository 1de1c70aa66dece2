package evalpipe

import (
	"testing"

	"github.com/arborchess/nnsearch/pkg/arena"
)

type stubEvaluator struct {
	result Result
}

func (s stubEvaluator) Evaluate(*arena.NodeRecord, uint32) Result { return s.result }

func TestPipelineStopsAtFirstResolved(t *testing.T) {
	calledThird := false
	third := stubEvaluator{} // would be Unresolved, but we never reach it since second resolves
	_ = third
	p := NewPipeline(
		stubEvaluator{result: Unresolved},
		stubEvaluator{result: Result{Resolved: true, Value: 0.7}},
		countingStub(&calledThird),
	)
	res := p.Evaluate(&arena.NodeRecord{}, 0)
	if !res.Resolved || res.Value != 0.7 {
		t.Fatalf("Evaluate = %+v, want the second stage's result", res)
	}
	if calledThird {
		t.Fatal("pipeline must not evaluate stages after the first resolution")
	}
}

func TestPipelineUnresolvedWhenNoStageResolves(t *testing.T) {
	p := NewPipeline(stubEvaluator{result: Unresolved}, stubEvaluator{result: Unresolved})
	if res := p.Evaluate(&arena.NodeRecord{}, 0); res.Resolved {
		t.Fatalf("expected Unresolved, got %+v", res)
	}
}

type countingStubEvaluator struct{ called *bool }

func (c countingStubEvaluator) Evaluate(*arena.NodeRecord, uint32) Result {
	*c.called = true
	return Unresolved
}

func countingStub(called *bool) Evaluator { return countingStubEvaluator{called: called} }
