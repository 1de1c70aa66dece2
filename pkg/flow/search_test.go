package flow

import (
	"context"
	"testing"

	"github.com/arborchess/nnsearch/pkg/arena"
	"github.com/arborchess/nnsearch/pkg/nnevaluator/faketest"
)

// fakeFlowPosition is a minimal selector.Position double: it never
// reaches a terminal or drawn position, so a search is bounded purely
// by the hard node limit, the way scenario S1's "until budget exhausted,
// non-terminal tree" fixture is set up.
type fakeFlowPosition struct {
	history []uint32
}

func (p *fakeFlowPosition) Hash() uint64 {
	h := uint64(1469598103934665603)
	for _, m := range p.history {
		h ^= uint64(m)
		h *= 1099511628211
	}
	return h
}

func (p *fakeFlowPosition) Make(move arena.MoveEncoding) {
	p.history = append(p.history, uint32(move))
}
func (p *fakeFlowPosition) Unmake()                        { p.history = p.history[:len(p.history)-1] }
func (p *fakeFlowPosition) Repetition() bool               { return false }
func (p *fakeFlowPosition) FiftyMoveRule() bool            { return false }
func (p *fakeFlowPosition) Encode() any                    { return len(p.history) }
func (p *fakeFlowPosition) Outcome() (arena.Terminal, bool) { return arena.NonTerminal, false }

func TestProcessDirectOverlappedStopsAtNodeBudget(t *testing.T) {
	nn := faketest.NewUniform([]uint32{1, 2, 3}, 1024, nil)
	cfg := DefaultConfig()
	search, err := NewSearch(cfg, 4096, Deps{NN: nn})
	if err != nil {
		t.Fatalf("NewSearch: %v", err)
	}

	pos := &fakeFlowPosition{}
	stats, err := search.ProcessDirectOverlapped(context.Background(), pos, 50, 0)
	if err != nil {
		t.Fatalf("ProcessDirectOverlapped: %v", err)
	}

	if stats.RootN < 50 {
		t.Fatalf("RootN = %d, want >= 50 (hard node limit)", stats.RootN)
	}
	if stats.StopReason&StopNodeBudget == 0 {
		t.Fatalf("StopReason = %v, want StopNodeBudget set", stats.StopReason)
	}
	if len(pos.history) != 0 {
		t.Fatalf("position should be restored to root after the search, history=%v", pos.history)
	}

	move, ok := search.BestMove()
	if !ok {
		t.Fatal("BestMove should succeed once the root has been expanded")
	}
	if move != 1 && move != 2 && move != 3 {
		t.Fatalf("BestMove returned %v, want one of the three root moves", move)
	}
}

func TestProcessDirectOverlappedWithoutDualSelectors(t *testing.T) {
	nn := faketest.NewUniform([]uint32{1, 2}, 1024, nil)
	cfg := DefaultConfig().SetFlowDualSelectors(false).SetFlowDirectOverlapped(false)
	search, err := NewSearch(cfg, 4096, Deps{NN: nn})
	if err != nil {
		t.Fatalf("NewSearch: %v", err)
	}

	pos := &fakeFlowPosition{}
	stats, err := search.ProcessDirectOverlapped(context.Background(), pos, 30, 0)
	if err != nil {
		t.Fatalf("ProcessDirectOverlapped: %v", err)
	}
	if stats.RootN < 30 {
		t.Fatalf("RootN = %d, want >= 30", stats.RootN)
	}
}

func TestProcessDirectOverlappedZeroHardLimitClampsToOne(t *testing.T) {
	nn := faketest.NewUniform([]uint32{1}, 1024, nil)
	search, err := NewSearch(DefaultConfig(), 1024, Deps{NN: nn})
	if err != nil {
		t.Fatalf("NewSearch: %v", err)
	}

	pos := &fakeFlowPosition{}
	stats, err := search.ProcessDirectOverlapped(context.Background(), pos, 0, 0)
	if err != nil {
		t.Fatalf("ProcessDirectOverlapped: %v", err)
	}
	if stats.RootN != 1 {
		t.Fatalf("RootN = %d, want exactly 1 (zero hard limit clamps to 1)", stats.RootN)
	}
}

// TestProcessDirectOverlappedHardLimitOneEvaluatesRootOnlyOnce is
// scenario S1 (spec.md §8): with hard_limit=1 and no overlap, exactly
// one NN evaluation happens, on the root itself -- the target batch
// size must be clamped to the remaining node budget, or the sizer's
// unclamped ~51-node early-search default would apply far more than
// one visit.
func TestProcessDirectOverlappedHardLimitOneEvaluatesRootOnlyOnce(t *testing.T) {
	nn := faketest.NewUniform([]uint32{1, 2}, 1024, nil)
	cfg := DefaultConfig().SetFlowDualSelectors(false).SetFlowDirectOverlapped(false)
	search, err := NewSearch(cfg, 4096, Deps{NN: nn})
	if err != nil {
		t.Fatalf("NewSearch: %v", err)
	}

	pos := &fakeFlowPosition{}
	stats, err := search.ProcessDirectOverlapped(context.Background(), pos, 1, 0)
	if err != nil {
		t.Fatalf("ProcessDirectOverlapped: %v", err)
	}

	if stats.RootN != 1 {
		t.Fatalf("RootN = %d, want exactly 1", stats.RootN)
	}
	if nn.EvalsCalled != 1 {
		t.Fatalf("EvalsCalled = %d, want exactly 1 NN evaluation", nn.EvalsCalled)
	}
	root := search.Arena().Get(search.Root())
	for i := 0; i < int(root.NumChildrenExpanded); i++ {
		child := search.Arena().Get(root.FirstChildIndex + uint32(i))
		if child.N() != 0 {
			t.Fatalf("child %d N() = %d, want 0 (no child should have been visited)", i, child.N())
		}
	}
}

// TestProcessDirectOverlappedHardLimitOneHundredSerial is scenario S2
// (spec.md §8): hard_limit=100, no overlap, a deterministic NN
// (uniform priors, value 0), forced single-visit batches. Root n must
// land exactly on 100, with 99 of those visits passed down into a
// child (the 100th being the initial expansion visit that never leaves
// the root), and the tree must grow past depth 1.
func TestProcessDirectOverlappedHardLimitOneHundredSerial(t *testing.T) {
	nn := faketest.NewUniform([]uint32{1, 2, 3}, 1024, nil)
	cfg := DefaultConfig().SetFlowDualSelectors(false).SetFlowDirectOverlapped(false)
	search, err := NewSearch(cfg, 4096, Deps{NN: nn})
	if err != nil {
		t.Fatalf("NewSearch: %v", err)
	}

	pos := &fakeFlowPosition{}
	stats, err := search.ProcessDirectOverlapped(context.Background(), pos, 100, 1)
	if err != nil {
		t.Fatalf("ProcessDirectOverlapped: %v", err)
	}

	if stats.RootN != 100 {
		t.Fatalf("RootN = %d, want exactly 100", stats.RootN)
	}

	root := search.Arena().Get(search.Root())
	var childrenN int32
	for i := 0; i < int(root.NumChildrenExpanded); i++ {
		childrenN += search.Arena().Get(root.FirstChildIndex + uint32(i)).N()
	}
	if childrenN != 99 {
		t.Fatalf("sum of children N() = %d, want exactly 99", childrenN)
	}

	if depth := maxVisitedDepth(search.Arena(), search.Root()); depth < 2 {
		t.Fatalf("maxVisitedDepth = %d, want >= 2", depth)
	}
}

// maxVisitedDepth walks only nodes that actually received at least one
// visit, so it reports the depth the search reached, not the depth the
// arena merely allocated placeholder slots for.
func maxVisitedDepth(a *arena.Arena, idx uint32) int {
	node := a.Get(idx)
	if !node.Expanded() {
		return 0
	}
	best := 0
	for i := 0; i < int(node.NumChildrenExpanded); i++ {
		childIdx := node.FirstChildIndex + uint32(i)
		if a.Get(childIdx).N() == 0 {
			continue
		}
		if d := 1 + maxVisitedDepth(a, childIdx); d > best {
			best = d
		}
	}
	return best
}

func TestBestMoveFalseBeforeRootExpanded(t *testing.T) {
	nn := faketest.NewUniform([]uint32{1}, 1024, nil)
	search, err := NewSearch(DefaultConfig(), 1024, Deps{NN: nn})
	if err != nil {
		t.Fatalf("NewSearch: %v", err)
	}
	if _, ok := search.BestMove(); ok {
		t.Fatal("BestMove should fail before any search has run")
	}
}
