package flow

import "github.com/arborchess/nnsearch/pkg/arena"

// BestMove returns the root's most-visited child move, the teacher's
// BestChildMostVisits policy (pkg/mcts/vars.go), the only one of its
// root-selection policies this module needs: robust-child selection by
// visit count, not by raw Q, is what makes MCTS root choices stable
// under noisy leaf evaluations.
func (s *Search) BestMove() (arena.MoveEncoding, bool) {
	root := s.arena.Get(s.arena.Root())
	if !root.Expanded() || len(root.Policy) == 0 {
		return 0, false
	}

	best := -1
	var bestN int32
	for i := range root.Policy {
		child := s.arena.Get(root.FirstChildIndex + uint32(i))
		n := child.TotalN()
		if best == -1 || n > bestN {
			best, bestN = i, n
		}
	}
	if best == -1 {
		return 0, false
	}
	return root.Policy[best].Move, true
}
