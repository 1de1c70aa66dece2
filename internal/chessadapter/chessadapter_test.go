package chessadapter

import (
	"context"
	"testing"

	"github.com/arborchess/nnsearch/pkg/arena"
	"github.com/arborchess/nnsearch/pkg/nnevaluator"
)

func TestNewPositionStartpos(t *testing.T) {
	pos, err := NewPosition("")
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	moves := pos.LegalMoves()
	if len(moves) != 20 {
		t.Fatalf("expected 20 legal moves at startpos, got %d", len(moves))
	}
	if !pos.Wtomove() {
		t.Fatal("white should be to move at startpos")
	}
	if term, ok := pos.Outcome(); ok {
		t.Fatalf("startpos should not be terminal, got %v", term)
	}
}

func TestMakeUnmakeRoundTrip(t *testing.T) {
	pos, err := NewPosition("")
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	before := pos.Hash()
	move := pos.LegalMoves()[0]

	pos.Make(move)
	if pos.Hash() == before {
		t.Fatal("hash should change after Make")
	}
	pos.Unmake()
	if pos.Hash() != before {
		t.Fatal("hash should be restored after Unmake")
	}
}

func TestRepetitionDetectsThreefold(t *testing.T) {
	pos, err := NewPosition("")
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}

	// Knight shuffle: Nf3 Nf6 Ng1 Ng8, twice, returns to startpos three
	// times total (including the initial occurrence).
	shuffle := func() {
		pos.Make(findMove(t, pos, "g1f3"))
		pos.Make(findMove(t, pos, "g8f6"))
		pos.Make(findMove(t, pos, "f3g1"))
		pos.Make(findMove(t, pos, "f6g8"))
	}
	shuffle()
	shuffle()
	if !pos.Repetition() {
		t.Fatal("expected threefold repetition after two knight shuffles")
	}
}

func TestUniformEvaluatorReturnsUniformPriorOverLegalMoves(t *testing.T) {
	pos, err := NewPosition("")
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	eval := NewUniformEvaluator(0)

	out, err := eval.Evaluate(context.Background(), []nnevaluator.PositionEncoding{pos.Encode()})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if len(out[0].Policy) != 20 {
		t.Fatalf("len(Policy) = %d, want 20 (startpos legal move count)", len(out[0].Policy))
	}
	wantPrior := float32(1) / 20
	for _, p := range out[0].Policy {
		if p.PriorP != wantPrior {
			t.Fatalf("PriorP = %v, want %v (uniform)", p.PriorP, wantPrior)
		}
	}
	if out[0].Value != 0 {
		t.Fatalf("Value = %v, want 0", out[0].Value)
	}
	if eval.MaxBatchSize() != 1024 {
		t.Fatalf("MaxBatchSize() = %d, want default 1024", eval.MaxBatchSize())
	}
}

func TestUniformEvaluatorHandlesMalformedEncoding(t *testing.T) {
	eval := NewUniformEvaluator(8)
	out, err := eval.Evaluate(context.Background(), []nnevaluator.PositionEncoding{"not a fen"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(out) != 1 || len(out[0].Policy) != 0 {
		t.Fatalf("malformed encoding should yield an empty-policy output, got %+v", out)
	}
}

func findMove(t *testing.T, pos *Position, uci string) arena.MoveEncoding {
	t.Helper()
	for _, m := range pos.LegalMoves() {
		if MoveString(m) == uci {
			return m
		}
	}
	t.Fatalf("move %s not found among legal moves", uci)
	return 0
}
