package evalpipe

import "github.com/arborchess/nnsearch/pkg/arena"

// transpositionIndex is the minimal read surface TranspositionEvaluator
// needs from a ttable.Index, so this package doesn't have to import
// ttable's writer-side staging types.
type transpositionIndex interface {
	TryGet(hash uint64) (uint32, bool)
}

// TranspositionEvaluator detects when a leaf's hash already names a
// usable equivalent-position subtree elsewhere in the tree and
// short-circuits evaluation by linking to (or copying from) it instead
// of calling the network.
type TranspositionEvaluator struct {
	Index       transpositionIndex
	Arena       *arena.Arena
	Mode        TranspositionMode
	MaxFixed    int
	MaxFraction float64
}

func NewTranspositionEvaluator(index transpositionIndex, tree *arena.Arena, mode TranspositionMode, maxFixed int, maxFraction float64) *TranspositionEvaluator {
	return &TranspositionEvaluator{Index: index, Arena: tree, Mode: mode, MaxFixed: maxFixed, MaxFraction: maxFraction}
}

func (te *TranspositionEvaluator) Evaluate(node *arena.NodeRecord, nodeIndex uint32) Result {
	if node.HasTranspositionLink() {
		return te.consumePending(node)
	}

	rootIdx, ok := te.Index.TryGet(node.ZobristHash)
	if !ok || rootIdx == nodeIndex {
		return Unresolved
	}
	root := te.Arena.Get(rootIdx)
	if root.IsTerminal() || root.N() < 1 {
		// Linkage only ever targets a nonterminal, already-visited node.
		return Unresolved
	}

	if te.Mode == SingleNodeCopy {
		return te.forceCopy(node, rootIdx, root)
	}

	cap := te.pendingCap(root)
	if cap <= 0 {
		return te.forceCopy(node, rootIdx, root)
	}

	node.TranspositionRootIndex = rootIdx
	node.NumVisitsPendingTranspositionRootExtraction = uint8(cap)
	return te.consumePending(node)
}

// pendingCap computes min(configured fixed cap, configured fraction of
// root visits, usable subnode count, the hard maximum).
func (te *TranspositionEvaluator) pendingCap(root *arena.NodeRecord) int {
	cap := te.MaxFixed
	if frac := int(float64(root.N()) * te.MaxFraction); frac < cap {
		cap = frac
	}
	if usable := te.usableSubnodeCount(root); usable < cap {
		cap = usable
	}
	if cap > arena.MaxTranspositionPendingVisits {
		cap = arena.MaxTranspositionPendingVisits
	}
	return cap
}

// usableSubnodeCount counts how many of {root, root's first expanded
// child, root's second expanded child, a grandchild under the first
// child} are themselves nonterminal, non-transposition-linked, and
// already carry a populated network value.
func (te *TranspositionEvaluator) usableSubnodeCount(root *arena.NodeRecord) int {
	count := 1 // root itself always counts
	child1, ok1 := te.expandedChild(root, 0)
	if ok1 && te.usable(child1) {
		count++
		if _, ok := te.expandedChild(child1, 0); ok {
			if gc, ok2 := te.expandedChild(child1, 0); ok2 && te.usable(gc) {
				count++
			}
		}
	}
	if child2, ok2 := te.expandedChild(root, 1); ok2 && te.usable(child2) {
		count++
	}
	return count
}

func (te *TranspositionEvaluator) expandedChild(node *arena.NodeRecord, which int) (*arena.NodeRecord, bool) {
	if node == nil || int(node.NumChildrenExpanded) <= which {
		return nil, false
	}
	idx := node.FirstChildIndex + uint32(which)
	if idx == 0 {
		return nil, false
	}
	return te.Arena.Get(idx), true
}

func (te *TranspositionEvaluator) usable(n *arena.NodeRecord) bool {
	return n != nil && !n.IsTerminal() && !n.HasTranspositionLink() && n.N() > 0
}

// consumePending draws the next sampled value from the transposition
// root's subtree for a node already linked to one, decrementing the
// pending counter. The first visit after the counter has reached zero
// forces a permanent copy and de-links the node instead of sampling.
func (te *TranspositionEvaluator) consumePending(node *arena.NodeRecord) Result {
	root := te.Arena.Get(node.TranspositionRootIndex)
	if node.NumVisitsPendingTranspositionRootExtraction == 0 {
		return te.forceCopy(node, node.TranspositionRootIndex, root)
	}
	value := te.sample(root, int(node.TranspositionVisitsConsumed))

	node.TranspositionVisitsConsumed++
	node.NumVisitsPendingTranspositionRootExtraction--
	return Result{Resolved: true, Value: value, WinP: root.WinP, LossP: root.LossP, MPos: root.MPos}
}

// sample implements the subtree sampling rule: root's own value for
// visit 0, the first expanded child's value (negated) for visit 1, and
// the second expanded child's value (negated) for visit 2.
func (te *TranspositionEvaluator) sample(root *arena.NodeRecord, visitIndex int) float32 {
	switch visitIndex {
	case 0:
		return root.V
	case 1:
		if c, ok := te.expandedChild(root, 0); ok {
			return -c.V
		}
		return root.V
	default:
		if c, ok := te.expandedChild(root, 1); ok {
			return -c.V
		}
		return root.V
	}
}

// forceCopy permanently copies the transposition root's policy table and
// network outputs into node and clears any linkage, so future visits to
// node behave exactly as if it had been evaluated by the network itself.
func (te *TranspositionEvaluator) forceCopy(node *arena.NodeRecord, _ uint32, root *arena.NodeRecord) Result {
	node.ClearTranspositionLink()
	node.V, node.WinP, node.LossP, node.MPos = root.V, root.WinP, root.LossP, root.MPos
	if len(root.Policy) > 0 {
		node.Policy = append([]arena.PolicyMove(nil), root.Policy...)
		node.NumPolicyMoves = uint16(len(node.Policy))
	}
	return Result{Resolved: true, Value: root.V, WinP: root.WinP, LossP: root.LossP, MPos: root.MPos}
}
