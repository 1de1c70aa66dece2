package evalpipe

import "github.com/arborchess/nnsearch/pkg/arena"

// Pipeline runs a fixed, ordered chain of Evaluators over a leaf and
// stops at the first one that resolves it. A leaf that reaches the end
// unresolved must go to the network.
type Pipeline struct {
	stages []Evaluator
}

// NewPipeline builds a Pipeline from stages in evaluation order. A
// typical construction is Terminal, then Transposition, then Cache.
func NewPipeline(stages ...Evaluator) *Pipeline {
	return &Pipeline{stages: stages}
}

func (p *Pipeline) Evaluate(node *arena.NodeRecord, nodeIndex uint32) Result {
	for _, stage := range p.stages {
		if res := stage.Evaluate(node, nodeIndex); res.Resolved {
			return res
		}
	}
	return Unresolved
}
