// Package selector implements parallel PUCT-style descent under virtual
// loss (producing a batch of newly-visited leaves) and the partitioning
// of that batch into NN-bound, immediate, cache-only, and ignored
// subsets.
package selector

import (
	"github.com/chewxy/math32"

	"github.com/arborchess/nnsearch/pkg/arena"
	"github.com/arborchess/nnsearch/pkg/ttable"
)

// Selected is one newly-descended leaf and how many of the requested
// batch visits landed on it.
type Selected struct {
	NodeIndex  uint32
	VisitCount int32
	// Encoding is the position encoding captured at the moment this leaf
	// was reached, for leaves that turn out to need NN evaluation. It is
	// nil for leaves that are already terminal when reached; leaves that
	// a leaf evaluator later resolves still carry one, which the caller
	// may simply ignore.
	Encoding any
}

// Selector performs PUCT descent for one of the two concurrent slots.
// SelectorID picks which of a node's two in-flight counters this
// selector mutates, so two Selectors may safely descend the same tree
// concurrently.
type Selector struct {
	Arena        *arena.Arena
	Staging      *ttable.Staging
	SelectorID   int
	CPuct        float32
	FPUReduction float32
}

func New(a *arena.Arena, staging *ttable.Staging, selectorID int, cPuct, fpuReduction float32) *Selector {
	return &Selector{Arena: a, Staging: staging, SelectorID: selectorID, CPuct: cPuct, FPUReduction: fpuReduction}
}

// Batch performs `target` single-visit descents from root, returning the
// distinct leaves reached with their accumulated visit counts in
// first-seen order. Virtual loss is applied along each descent's path
// and left in place for backup to unwind; pos is returned to the root
// position after every descent.
func (s *Selector) Batch(root uint32, pos Position, target int32) ([]Selected, error) {
	order := make([]uint32, 0, target)
	counts := make(map[uint32]int32, target)
	encodings := make(map[uint32]any, target)

	for i := int32(0); i < target; i++ {
		leaf, encoding, err := s.descendOne(root, pos)
		if err != nil {
			return nil, err
		}
		if _, seen := counts[leaf]; !seen {
			order = append(order, leaf)
			encodings[leaf] = encoding
		}
		counts[leaf]++
	}

	out := make([]Selected, len(order))
	for i, idx := range order {
		out[i] = Selected{NodeIndex: idx, VisitCount: counts[idx], Encoding: encodings[idx]}
	}
	return out, nil
}

// descendOne walks from root to a single leaf, applying virtual loss
// along the way, and restores pos to the root position before returning.
// The returned encoding is captured at the leaf the instant it is
// reached, before pos is unwound back to the root position.
func (s *Selector) descendOne(root uint32, pos Position) (uint32, any, error) {
	path := make([]uint32, 0, 64)
	cur := root
	var encoding any

	for {
		node := s.Arena.Get(cur)
		node.AddInFlight(s.SelectorID, 1)
		path = append(path, cur)

		if node.IsTerminal() {
			break
		}
		if !node.Expanded() {
			if node.N() == 0 && node.ZobristHash == 0 {
				node.ZobristHash = pos.Hash()
				if s.Staging != nil {
					s.Staging.Add(node.ZobristHash, cur)
				}
			}
			encoding = pos.Encode()
			break
		}

		childI := s.chooseChild(node)
		move := node.Policy[childI].Move
		pos.Make(move)

		childIdx := node.FirstChildIndex + uint32(childI)
		child := s.Arena.Get(childIdx)
		if child.N() == 0 && child.ZobristHash == 0 {
			child.ZobristHash = pos.Hash()
		}
		if child.Terminal == arena.NonTerminal {
			if term, ok := pos.Outcome(); ok {
				child.Terminal = term
			} else if pos.Repetition() || pos.FiftyMoveRule() {
				child.Terminal = arena.Stalemate
			}
		}
		cur = childIdx
	}

	for movesMade := len(path) - 1; movesMade > 0; movesMade-- {
		pos.Unmake()
	}
	return cur, encoding, nil
}

// chooseChild implements the PUCT formula: Q(child) + c_puct * P(child)
// * sqrt(parent total visits + 1) / (1 + N(child)), with visit counts
// taken inclusive of in-flight (virtual-loss) visits from both selector
// slots, NaN-Q unvisited children replaced by an FPU-reduced estimate of
// the parent's own value, and ties broken by higher prior then lower
// child index.
func (s *Selector) chooseChild(parent *arena.NodeRecord) int {
	sqrtParent := math32.Sqrt(float32(parent.TotalN()) + 1)
	parentQ := parent.Q()
	if math32.IsNaN(parentQ) {
		parentQ = 0
	}
	fpu := parentQ - s.FPUReduction

	best := -1
	var bestScore, bestPrior float32
	for i, pm := range parent.Policy {
		childIdx := parent.FirstChildIndex + uint32(i)
		child := s.Arena.Get(childIdx)

		var q float32
		if child.N() == 0 {
			q = fpu
		} else {
			q = -child.Q()
		}
		n := float32(child.TotalN())
		score := q + s.CPuct*pm.PriorP*sqrtParent/(1+n)

		if best == -1 || score > bestScore || (score == bestScore && pm.PriorP > bestPrior) {
			best, bestScore, bestPrior = i, score, pm.PriorP
		}
	}
	return best
}
