package backup

import (
	"testing"

	"github.com/arborchess/nnsearch/pkg/arena"
	"github.com/arborchess/nnsearch/pkg/evalpipe"
	"github.com/arborchess/nnsearch/pkg/nnevaluator"
)

func newTestArena(t *testing.T, capacity uint32) *arena.Arena {
	t.Helper()
	a, err := arena.New(capacity, false)
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}
	return a
}

func TestApplyNetworkResultExpandsAndBacksUpRoot(t *testing.T) {
	a := newTestArena(t, 16)
	b := New(a)

	root := a.Root()
	a.Get(root).AddInFlight(0, 1)

	policy := []nnevaluator.PolicyEntry{{Move: 1, PriorP: 0.6}, {Move: 2, PriorP: 0.4}}
	if err := b.ApplyNetworkResult(root, 1, 0, nnevaluator.Output{Value: 0.5, Policy: policy}, false); err != nil {
		t.Fatalf("ApplyNetworkResult: %v", err)
	}

	node := a.Get(root)
	if !node.Expanded() {
		t.Fatal("root should be expanded after ApplyNetworkResult")
	}
	if node.NumPolicyMoves != 2 {
		t.Fatalf("NumPolicyMoves = %d, want 2", node.NumPolicyMoves)
	}
	if node.N() != 1 {
		t.Fatalf("N() = %d, want 1", node.N())
	}
	if node.W() != 0.5 {
		t.Fatalf("W() = %v, want 0.5", node.W())
	}
	if node.NInFlight(0) != 0 {
		t.Fatalf("NInFlight(0) = %d, want 0", node.NInFlight(0))
	}
}

func TestApplyNetworkResultSignFlipsUpChain(t *testing.T) {
	a := newTestArena(t, 16)
	b := New(a)
	root := a.Root()

	first, err := a.AllocateChildren(root, 1)
	if err != nil {
		t.Fatalf("AllocateChildren: %v", err)
	}
	a.Get(root).FirstChildIndex = first
	a.Get(root).NumChildrenExpanded = 1
	a.Get(root).Policy = []arena.PolicyMove{{Move: 1, PriorP: 1}}
	a.Get(root).FinishExpanding()

	child := first
	a.Get(child).AddInFlight(0, 1)

	if err := b.ApplyNetworkResult(child, 1, 0, nnevaluator.Output{Value: 0.7}, false); err != nil {
		t.Fatalf("ApplyNetworkResult: %v", err)
	}

	if got := a.Get(child).W(); got != 0.7 {
		t.Fatalf("child W() = %v, want 0.7", got)
	}
	if got := a.Get(root).W(); got != -0.7 {
		t.Fatalf("root W() = %v, want -0.7 (sign flipped one ply up)", got)
	}
	if a.Get(root).N() != 1 {
		t.Fatalf("root N() = %d, want 1", a.Get(root).N())
	}
}

func TestApplyNetworkResultCacheOnlyUnwindsButDoesNotApply(t *testing.T) {
	a := newTestArena(t, 16)
	b := New(a)
	root := a.Root()

	a.Get(root).AddInFlight(1, 1)
	if err := b.ApplyNetworkResult(root, 1, 1, nnevaluator.Output{Value: 1, Policy: nil}, true); err != nil {
		t.Fatalf("ApplyNetworkResult: %v", err)
	}

	node := a.Get(root)
	if node.NInFlight(1) != 0 {
		t.Fatalf("cache-only leaf should still unwind in-flight, got %d", node.NInFlight(1))
	}
	if node.N() != 0 {
		t.Fatalf("cache-only leaf must not increment N, got %d", node.N())
	}
}

// TestApplyNetworkResultAccumulatesDrawProbabilityNotWinP guards against
// d_sum reporting a certain win as a certain draw: a checkmate-win
// result (WinP=1, LossP=0) has zero draw probability, not WinP's value.
func TestApplyNetworkResultAccumulatesDrawProbabilityNotWinP(t *testing.T) {
	a := newTestArena(t, 16)
	b := New(a)
	root := a.Root()

	a.Get(root).AddInFlight(0, 1)
	out := nnevaluator.Output{Value: 1, WinP: 1, LossP: 0}
	if err := b.ApplyNetworkResult(root, 1, 0, out, false); err != nil {
		t.Fatalf("ApplyNetworkResult: %v", err)
	}

	if got := a.Get(root).D(); got != 0 {
		t.Fatalf("D() = %v, want 0 (a certain win has zero draw probability)", got)
	}
}

func TestApplyImmediateTerminal(t *testing.T) {
	a := newTestArena(t, 16)
	b := New(a)
	root := a.Root()

	a.Get(root).AddInFlight(0, 1)
	b.ApplyImmediate(root, 1, 0, evalpipe.Result{Resolved: true, Value: -1, Terminal: arena.CheckmateLoss})

	node := a.Get(root)
	if node.N() != 1 || node.W() != -1 {
		t.Fatalf("N()=%d W()=%v, want N=1 W=-1", node.N(), node.W())
	}
}

// TestApplyImmediateExpandsFromBorrowedPolicy guards against the tree
// flattening a transposition/cache hit used to cause: a leaf resolved by
// evalpipe carries a Policy slice mutated in place by the pipeline, but
// ApplyImmediate previously only propagated stats and never allocated
// children, so the node stayed unexpanded and got re-resolved from
// scratch on every later visit instead of descending into real children.
func TestApplyImmediateExpandsFromBorrowedPolicy(t *testing.T) {
	a := newTestArena(t, 16)
	b := New(a)
	root := a.Root()

	node := a.Get(root)
	node.AddInFlight(0, 1)
	// Simulate evalpipe.TranspositionEvaluator.forceCopy / CacheEvaluator
	// having already mutated node.Policy in place, with a ChildIndex
	// inherited from some other node's own policy table.
	node.Policy = []arena.PolicyMove{
		{Move: 5, PriorP: 0.5, ChildIndex: 99},
		{Move: 7, PriorP: 0.5, ChildIndex: 100},
	}
	node.NumPolicyMoves = 2

	b.ApplyImmediate(root, 1, 0, evalpipe.Result{Resolved: true, Value: 0.25})

	if !node.Expanded() {
		t.Fatal("node should be expanded after ApplyImmediate with a populated Policy")
	}
	if node.NumChildrenExpanded != 2 {
		t.Fatalf("NumChildrenExpanded = %d, want 2", node.NumChildrenExpanded)
	}
	for i, pm := range node.Policy {
		if pm.ChildIndex != 0 {
			t.Fatalf("Policy[%d].ChildIndex = %d, want 0 (inherited index must be discarded)", i, pm.ChildIndex)
		}
	}
	if node.FirstChildIndex == 0 {
		t.Fatal("FirstChildIndex should be set to a real allocated child slot")
	}

	// A later visit into the now-expanded node must not re-expand it.
	child := a.Get(node.FirstChildIndex)
	child.AddInFlight(0, 1)
	b.ApplyImmediate(node.FirstChildIndex, 1, 0, evalpipe.Result{Resolved: true, Value: -0.25})
	if node.NumChildrenExpanded != 2 {
		t.Fatalf("re-applying immediate result should not re-expand root, NumChildrenExpanded = %d", node.NumChildrenExpanded)
	}
}
