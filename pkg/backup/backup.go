// Package backup implements leaf-to-root statistics propagation (spec.md
// §4.H): expanding a freshly-evaluated leaf's children, accumulating
// value/draw/moves-left sums with sign flipping per ply, and unwinding
// the virtual-loss counters a selector applied during descent.
package backup

import (
	"github.com/pkg/errors"

	"github.com/arborchess/nnsearch/pkg/arena"
	"github.com/arborchess/nnsearch/pkg/evalpipe"
	"github.com/arborchess/nnsearch/pkg/nnevaluator"
)

// Backup applies evaluated leaves to a shared Arena. It holds no batch
// state of its own -- every call operates on the single leaf (and its
// ancestors) it is given.
type Backup struct {
	Arena *arena.Arena
}

func New(a *arena.Arena) *Backup {
	return &Backup{Arena: a}
}

// ApplyImmediate backs up a leaf already resolved by the evalpipe
// pipeline (terminal, transposition, or cache). Terminal leaves never
// get children; a transposition- or cache-resolved leaf may already
// carry a borrowed policy table (evalpipe.TranspositionEvaluator.
// forceCopy, evalpipe.CacheEvaluator) and is expanded from it here, the
// same way a network-resolved leaf is expanded from its own policy, so
// later descents can walk into real children instead of re-resolving
// this node from scratch every visit.
func (b *Backup) ApplyImmediate(nodeIndex uint32, visitCount int32, selectorID int, result evalpipe.Result) {
	node := b.Arena.Get(nodeIndex)
	if !node.Expanded() && !node.IsTerminal() && !node.HasTranspositionLink() && len(node.Policy) > 0 {
		_ = b.expandWithPolicy(nodeIndex, node, node.Policy)
	}
	b.propagate(nodeIndex, visitCount, selectorID, result.Value, result.WinP, result.LossP, result.MPos, true)
}

// ApplyNetworkResult backs up a leaf evaluated by the network. If the
// leaf has not yet been expanded (and is not terminal or transposition-
// linked), its children are allocated from the network's policy output
// first. When cacheOnly is set (the leaf was surplus past MaxNodesNN),
// virtual loss is unwound but no statistics are accumulated, matching
// spec.md §4.F's "evaluated, cached, but not applied" contract.
func (b *Backup) ApplyNetworkResult(nodeIndex uint32, visitCount int32, selectorID int, out nnevaluator.Output, cacheOnly bool) error {
	node := b.Arena.Get(nodeIndex)
	if !node.Expanded() && !node.IsTerminal() && !node.HasTranspositionLink() {
		if err := b.expand(nodeIndex, node, out.Policy); err != nil {
			return err
		}
	}
	node.V, node.WinP, node.LossP, node.MPos = out.Value, out.WinP, out.LossP, out.MovesLeft

	b.propagate(nodeIndex, visitCount, selectorID, out.Value, out.WinP, out.LossP, out.MovesLeft, !cacheOnly)
	return nil
}

// expand allocates contiguous arena child slots for a network-resolved
// leaf's policy moves, converting from the nnevaluator's wire format.
func (b *Backup) expand(nodeIndex uint32, node *arena.NodeRecord, policy []nnevaluator.PolicyEntry) error {
	moves := make([]arena.PolicyMove, len(policy))
	for i, p := range policy {
		moves[i] = arena.PolicyMove{Move: arena.MoveEncoding(p.Move), PriorP: p.PriorP}
	}
	return b.expandWithPolicy(nodeIndex, node, moves)
}

// expandWithPolicy allocates contiguous arena child slots for node and
// installs moves as its policy table, following the teacher's
// CanExpand/Expanding/Expanded claim protocol (pkg/mcts/node.go) so a
// concurrently descending selector never observes a half-expanded node.
// Any ChildIndex already present in moves (e.g. borrowed from another
// node's own policy table by evalpipe's transposition/cache evaluators)
// is discarded: it names a child slot that belongs to a different node.
func (b *Backup) expandWithPolicy(nodeIndex uint32, node *arena.NodeRecord, moves []arena.PolicyMove) error {
	if !node.TryStartExpanding() {
		// Another goroutine already claimed expansion of this node; the
		// caller only ever holds one in-flight result per leaf, so this
		// should not happen, but is safe to no-op on.
		return nil
	}
	if len(moves) == 0 {
		node.FinishExpanding()
		return nil
	}

	first, err := b.Arena.AllocateChildren(nodeIndex, uint16(len(moves)))
	if err != nil {
		return errors.Wrapf(err, "backup: expanding node %d with %d policy moves", nodeIndex, len(moves))
	}

	clean := make([]arena.PolicyMove, len(moves))
	for i, m := range moves {
		clean[i] = arena.PolicyMove{Move: m.Move, PriorP: m.PriorP}
	}
	node.Policy = clean
	node.NumPolicyMoves = uint16(len(clean))
	node.FirstChildIndex = first
	node.NumChildrenExpanded = uint16(len(clean))
	node.FinishExpanding()
	return nil
}

// propagate walks from leaf to root, decrementing the selector's
// in-flight counter at every node on the path and, if applyStats, also
// incrementing completed visits and accumulating w/d/m sums. Value is
// negated at every ply (zero-sum); draw probability and moves-left are
// side-independent and are not. d_sum accumulates the draw probability
// itself (1 - winP - lossP), not winP -- winP and draw are distinct
// outcomes of the same WDL distribution.
func (b *Backup) propagate(leafIndex uint32, visitCount int32, selectorID int, value, winP, lossP, mPos float32, applyStats bool) {
	v := value
	drawP := 1 - winP - lossP
	for cur := leafIndex; ; {
		node := b.Arena.Get(cur)
		node.AddInFlight(selectorID, -visitCount)
		if applyStats {
			node.AddN(visitCount)
			node.AddW(v * float32(visitCount))
			node.AddD(drawP * float32(visitCount))
			node.AddM(mPos * float32(visitCount))
		}
		if node.ParentIndex == 0 {
			return
		}
		v = -v
		cur = node.ParentIndex
	}
}
