package evalpipe

import "github.com/arborchess/nnsearch/pkg/arena"

// TerminalEvaluator detects checkmate/stalemate/tablebase outcomes and
// yields a deterministic value/WDL/M -- it never calls the network. The
// chess rules that decide whether a position is terminal are external to
// this module: by the time a leaf reaches this evaluator, whatever
// expanded it has already stamped node.Terminal, or an optional
// TablebaseOracle is consulted by hash.
type TerminalEvaluator struct {
	Oracle TablebaseOracle // optional; nil disables tablebase probing
}

func NewTerminalEvaluator(oracle TablebaseOracle) *TerminalEvaluator {
	return &TerminalEvaluator{Oracle: oracle}
}

func (t *TerminalEvaluator) Evaluate(node *arena.NodeRecord, _ uint32) Result {
	term := node.Terminal
	if term == arena.NonTerminal && t.Oracle != nil {
		if probed, ok := t.Oracle.Probe(node.ZobristHash); ok {
			term = probed
			node.Terminal = probed
		}
	}
	if term == arena.NonTerminal {
		return Unresolved
	}
	return terminalResult(term)
}

// terminalResult maps a Terminal classification to a deterministic
// value/WDL/M from the perspective of the side to move at the node that
// carries the classification.
func terminalResult(term arena.Terminal) Result {
	switch term {
	case arena.CheckmateWin, arena.TablebaseWin:
		return Result{Resolved: true, Value: 1, WinP: 1, LossP: 0, MPos: 0, Terminal: term}
	case arena.CheckmateLoss, arena.TablebaseLoss:
		return Result{Resolved: true, Value: -1, WinP: 0, LossP: 1, MPos: 0, Terminal: term}
	case arena.Stalemate, arena.TablebaseDraw:
		return Result{Resolved: true, Value: 0, WinP: 0, LossP: 0, MPos: 0, Terminal: term}
	default:
		return Unresolved
	}
}
