package selector

import "github.com/arborchess/nnsearch/pkg/arena"

// Position is the external chess-rules collaborator a Selector threads
// through a descent. It is mutated in place: Make and Unmake must be
// called in strict LIFO order, mirroring how dragontoothmg's Board
// applies and retracts moves.
type Position interface {
	Hash() uint64
	Make(move arena.MoveEncoding)
	Unmake()
	// Repetition reports whether the current position has now occurred
	// for the third time in the game (including earlier moves played
	// before the search started).
	Repetition() bool
	// FiftyMoveRule reports whether the 50-move (no-progress) counter
	// has been reached at the current position.
	FiftyMoveRule() bool
	// Encode returns the position-encoding the NN evaluator expects for
	// the current position. Its concrete type is opaque to this
	// package; it is forwarded verbatim into the batch a Selector
	// produces.
	Encode() any
	// Outcome reports the game-theoretic result of the current
	// position, from the perspective of the side to move, if the
	// position has no legal moves (checkmate or stalemate). ok is false
	// for any position with at least one legal move.
	Outcome() (term arena.Terminal, ok bool)
}
