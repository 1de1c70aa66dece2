package evalpipe

import (
	"testing"

	"github.com/arborchess/nnsearch/pkg/arena"
)

type fakeOracle struct {
	hash uint64
	term arena.Terminal
	ok   bool
}

func (f fakeOracle) Probe(hash uint64) (arena.Terminal, bool) {
	if hash == f.hash {
		return f.term, f.ok
	}
	return arena.NonTerminal, false
}

func TestTerminalEvaluatorUsesStampedTerminal(t *testing.T) {
	ev := NewTerminalEvaluator(nil)
	node := &arena.NodeRecord{Terminal: arena.CheckmateWin}
	res := ev.Evaluate(node, 0)
	if !res.Resolved || res.Value != 1 || res.WinP != 1 {
		t.Fatalf("Evaluate = %+v, want a won position", res)
	}
}

func TestTerminalEvaluatorFallsThroughWhenNonTerminal(t *testing.T) {
	ev := NewTerminalEvaluator(nil)
	node := &arena.NodeRecord{Terminal: arena.NonTerminal}
	if res := ev.Evaluate(node, 0); res.Resolved {
		t.Fatalf("expected Unresolved for a nonterminal node, got %+v", res)
	}
}

func TestTerminalEvaluatorConsultsOracle(t *testing.T) {
	ev := NewTerminalEvaluator(fakeOracle{hash: 42, term: arena.TablebaseDraw, ok: true})
	node := &arena.NodeRecord{ZobristHash: 42}
	res := ev.Evaluate(node, 0)
	if !res.Resolved || res.Value != 0 {
		t.Fatalf("Evaluate = %+v, want a drawn tablebase result", res)
	}
	if node.Terminal != arena.TablebaseDraw {
		t.Fatalf("expected node.Terminal stamped, got %v", node.Terminal)
	}
}

func TestTerminalEvaluatorOracleMiss(t *testing.T) {
	ev := NewTerminalEvaluator(fakeOracle{})
	node := &arena.NodeRecord{ZobristHash: 1}
	if res := ev.Evaluate(node, 0); res.Resolved {
		t.Fatalf("expected Unresolved on oracle miss, got %+v", res)
	}
}
