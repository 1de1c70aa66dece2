// Package selfplay adapts the teacher's VersusArena (pkg/bench) to this
// module's concrete search core: instead of two generic mcts.MCTS game
// trees, it runs two flow.Config variants against each other over many
// chess games, picking each side's move by flow.Search.BestMove and
// tallying wins/draws the same way pkg/bench's VersusArenaStats does.
package selfplay

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arborchess/nnsearch/internal/chessadapter"
	"github.com/arborchess/nnsearch/pkg/arena"
	"github.com/arborchess/nnsearch/pkg/flow"
	"github.com/arborchess/nnsearch/pkg/nnevaluator"
)

// Player is one side's fixed configuration for a match: the flow.Config
// it searches with, the node budget per move, and the NN evaluator (or
// faketest/chessadapter.UniformEvaluator stand-in) it searches against.
type Player struct {
	Name          string
	Config        *flow.Config
	NN            nnevaluator.Evaluator
	NodesPerMove  uint32
	ArenaCapacity uint32
}

// MatchResult mirrors the teacher's VersusMatchResult (pkg/bench/types.go).
type MatchResult int

const (
	Player1Win MatchResult = 1
	Player2Win MatchResult = -1
	Draw       MatchResult = 0
)

// Stats accumulates outcomes across a match, the concrete counterpart of
// the teacher's generic VersusArenaStats.
type Stats struct {
	p1Wins uint32
	p2Wins uint32
	draws  uint32
}

func (s *Stats) Player1Wins() int { return int(atomic.LoadUint32(&s.p1Wins)) }
func (s *Stats) Player2Wins() int { return int(atomic.LoadUint32(&s.p2Wins)) }
func (s *Stats) Draws() int       { return int(atomic.LoadUint32(&s.draws)) }
func (s *Stats) Total() int       { return s.Player1Wins() + s.Player2Wins() + s.Draws() }

func (s *Stats) record(r MatchResult) {
	switch r {
	case Player1Win:
		atomic.AddUint32(&s.p1Wins, 1)
	case Player2Win:
		atomic.AddUint32(&s.p2Wins, 1)
	default:
		atomic.AddUint32(&s.draws, 1)
	}
}

// Match runs NGames games between Player1 and Player2, split across
// NWorkers goroutines, alternating who moves first the way pkg/bench's
// worker loop does.
type Match struct {
	Player1, Player2 Player
	StartFEN         string
	NGames           int
	NWorkers         int
	MaxPlies         int
}

// Run plays the whole match and returns the aggregated Stats. A
// cancelled ctx stops in-flight games as soon as their current move
// finishes.
func (m *Match) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	workers := m.NWorkers
	if workers <= 0 {
		workers = 1
	}
	games := m.NGames
	if games <= 0 {
		games = 1
	}

	var wg sync.WaitGroup
	perWorker := games / workers
	rest := games % workers
	var firstErr error
	var errMu sync.Mutex

	for w := 0; w < workers; w++ {
		n := perWorker
		if rest > 0 {
			n++
			rest--
		}
		if n == 0 {
			continue
		}
		wg.Add(1)
		go func(workerID, nGames int) {
			defer wg.Done()
			for g := 0; g < nGames; g++ {
				select {
				case <-ctx.Done():
					return
				default:
				}
				p1First := g%2 == 0
				result, err := m.playOne(ctx, p1First)
				if err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
					return
				}
				stats.record(result)
			}
		}(w, n)
	}
	wg.Wait()
	return stats, firstErr
}

// playOne plays a single game and returns the result from Player1's
// perspective.
func (m *Match) playOne(ctx context.Context, p1First bool) (MatchResult, error) {
	pos, err := chessadapter.NewPosition(m.StartFEN)
	if err != nil {
		return Draw, err
	}

	white, black := m.Player1, m.Player2
	if !p1First {
		white, black = m.Player2, m.Player1
	}

	maxPlies := m.MaxPlies
	if maxPlies <= 0 {
		maxPlies = 300
	}

	plies := 0
	for plies < maxPlies {
		if _, terminal := pos.Outcome(); terminal {
			break
		}
		select {
		case <-ctx.Done():
			return Draw, nil
		default:
		}

		mover := white
		if !pos.Wtomove() {
			mover = black
		}

		move, ok, err := searchBestMove(ctx, mover, pos)
		if err != nil {
			return Draw, err
		}
		if !ok {
			break
		}
		pos.Make(move)
		plies++
	}

	term, ok := pos.Outcome()
	if !ok || term != arena.CheckmateLoss {
		return Draw, nil
	}

	// term == CheckmateLoss is from the perspective of the side now to
	// move at the final position -- the side that just got mated.
	whiteWon := !pos.Wtomove()
	if whiteWon == p1First {
		return Player1Win, nil
	}
	return Player2Win, nil
}

func searchBestMove(ctx context.Context, p Player, pos *chessadapter.Position) (arena.MoveEncoding, bool, error) {
	search, err := flow.NewSearch(p.Config, p.ArenaCapacity, flow.Deps{NN: p.NN})
	if err != nil {
		return 0, false, err
	}
	if _, err := search.ProcessDirectOverlapped(ctx, pos, p.NodesPerMove, 0); err != nil {
		return 0, false, err
	}
	move, ok := search.BestMove()
	return move, ok, nil
}
