// Package chessadapter binds a dragontoothmg board to selector.Position,
// the same way the teacher's chess-mcts example (examples/chess/chess-mcts/ucb.go)
// binds it to mcts.GameOperations: Make/Undo drive the board, and a small
// amount of local bookkeeping (a hash history, since this fork of
// dragontoothmg does not track repetition itself) answers the draw rules
// the Leaf Selector needs.
package chessadapter

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"

	dragon "github.com/IlikeChooros/dragontoothmg"

	"github.com/arborchess/nnsearch/pkg/arena"
	"github.com/arborchess/nnsearch/pkg/nnevaluator"
)

// Position wraps a dragontoothmg board for one search. It is not safe
// for concurrent use; a Search only ever touches its pos argument from
// the single coordinator goroutine (spec.md §5).
type Position struct {
	board   *dragon.Board
	history []uint64
}

// NewPosition builds a Position from a FEN string, or the standard
// starting position if fen is empty.
func NewPosition(fen string) (*Position, error) {
	if fen == "" {
		return &Position{board: dragon.NewBoard()}, nil
	}
	b, err := dragon.ParseFen(fen)
	if err != nil {
		return nil, err
	}
	return &Position{board: &b}, nil
}

// Clone returns an independent copy, for callers that need to search
// from the same position on more than one Search instance (pkg/selfplay
// runs two this way).
func (p *Position) Clone() *Position {
	history := make([]uint64, len(p.history))
	copy(history, p.history)
	return &Position{board: p.board.Clone(), history: history}
}

// Hash returns a stable hash of the current position, derived from its
// FEN the way the teacher's fork exposes no native Zobrist accessor.
func (p *Position) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(p.board.ToFen()))
	return h.Sum64()
}

// Make applies move, pushing the pre-move hash onto the repetition
// history so Repetition can later recognize a return to it.
func (p *Position) Make(move arena.MoveEncoding) {
	p.history = append(p.history, p.Hash())
	p.board.Make(dragon.Move(move))
}

// Unmake retracts the most recent Make.
func (p *Position) Unmake() {
	p.board.Undo()
	p.history = p.history[:len(p.history)-1]
}

// Repetition reports whether the current position has already occurred
// twice before in this search (a third occurrence is a draw).
func (p *Position) Repetition() bool {
	h := p.Hash()
	count := 0
	for _, old := range p.history {
		if old == h {
			count++
			if count >= 2 {
				return true
			}
		}
	}
	return false
}

// FiftyMoveRule reads the halfmove clock out of the board's own FEN
// rendering (its standard fifth field) rather than assuming this fork
// exposes the counter as a struct field.
func (p *Position) FiftyMoveRule() bool {
	fields := strings.Fields(p.board.ToFen())
	if len(fields) < 5 {
		return false
	}
	n, err := strconv.Atoi(fields[4])
	if err != nil {
		return false
	}
	return n >= 100
}

// Outcome reports checkmate/stalemate at the current position, from the
// perspective of the side now to move.
func (p *Position) Outcome() (arena.Terminal, bool) {
	legal := p.board.GenerateLegalMoves()
	if !p.board.IsTerminated(len(legal)) {
		return arena.NonTerminal, false
	}
	if p.board.Termination() == dragon.TerminationCheckmate {
		return arena.CheckmateLoss, true
	}
	return arena.Stalemate, true
}

// Encode returns the position's FEN as the NN-evaluator-facing encoding.
// A concrete NN feature-plane encoder is outside this module's scope
// (spec.md's NN evaluator is injected by the caller); FEN is a stable,
// legality-independent, human-checkable stand-in any Evaluator
// implementation can tokenize as it sees fit.
func (p *Position) Encode() any { return p.board.ToFen() }

// LegalMoves lists the legal moves at the current position, encoded the
// way PolicyMove.Move expects. Within this module only this package's
// tests call it; UniformEvaluator generates its moves from the FEN it
// is handed.
func (p *Position) LegalMoves() []arena.MoveEncoding {
	moves := p.board.GenerateLegalMoves()
	out := make([]arena.MoveEncoding, len(moves))
	for i, m := range moves {
		out[i] = arena.MoveEncoding(m)
	}
	return out
}

// MoveString renders enc the way dragontoothmg.Move.String() does, for
// UCI-style output.
func MoveString(enc arena.MoveEncoding) string {
	return dragon.Move(enc).String()
}

// Wtomove reports whether white is to move at the current position.
func (p *Position) Wtomove() bool { return p.board.Wtomove }

// UniformEvaluator is a no-weights stand-in nnevaluator.Evaluator for
// positions encoded as FEN (Position.Encode's format): value 0,
// uniform policy over the position's own legal moves. It lets
// cmd/searchdemo and pkg/selfplay exercise the whole search core without
// a trained network, the way the teacher's rollout-based Rollout()
// (examples/chess/chess-mcts/ucb.go) stands in for a value function.
type UniformEvaluator struct {
	maxBatch int
}

// NewUniformEvaluator builds a UniformEvaluator capped at maxBatch
// positions per call; maxBatch <= 0 defaults to 1024.
func NewUniformEvaluator(maxBatch int) *UniformEvaluator {
	if maxBatch <= 0 {
		maxBatch = 1024
	}
	return &UniformEvaluator{maxBatch: maxBatch}
}

func (e *UniformEvaluator) Evaluate(_ context.Context, batch []nnevaluator.PositionEncoding) ([]nnevaluator.Output, error) {
	out := make([]nnevaluator.Output, len(batch))
	for i, enc := range batch {
		fen, _ := enc.(string)
		b, err := dragon.ParseFen(fen)
		if err != nil {
			out[i] = nnevaluator.Output{}
			continue
		}
		moves := b.GenerateLegalMoves()
		var prior float32 = 1
		if len(moves) > 0 {
			prior = 1 / float32(len(moves))
		}
		policy := make([]nnevaluator.PolicyEntry, len(moves))
		for j, m := range moves {
			policy[j] = nnevaluator.PolicyEntry{Move: uint32(m), PriorP: prior}
		}
		out[i] = nnevaluator.Output{Policy: policy}
	}
	return out, nil
}

func (e *UniformEvaluator) MaxBatchSize() int { return e.maxBatch }

func (e *UniformEvaluator) Breakpoints() []int { return nil }
