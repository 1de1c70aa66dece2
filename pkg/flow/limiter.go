package flow

import (
	"context"
	"sync/atomic"
	"time"
)

// StopReason records why a search terminated, mirroring the teacher's
// bitmask StopReason (pkg/mcts/limiter.go) generalized to this
// orchestrator's four stop conditions (spec.md §4.G): node budget, time
// budget, forced move, and user cancel.
type StopReason int

const (
	StopNone StopReason = 0
	// StopNodeBudget fires once the hard node limit is reached.
	StopNodeBudget StopReason = 1 << (iota - 1)
	StopTimeBudget
	StopForcedMove
	StopCancelled
	StopArenaExhausted
)

func (r StopReason) String() string {
	names := []struct {
		flag StopReason
		name string
	}{
		{StopNodeBudget, "NodeBudget"},
		{StopTimeBudget, "TimeBudget"},
		{StopForcedMove, "ForcedMove"},
		{StopCancelled, "Cancelled"},
		{StopArenaExhausted, "ArenaExhausted"},
	}
	if r == StopNone {
		return "None"
	}
	out := ""
	for _, n := range names {
		if r&n.flag == n.flag {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	return out
}

// Limiter evaluates the four stop conditions the coordinator polls once
// per iteration (spec.md §5). It holds no tree state and is safe to
// construct fresh per search.
type Limiter struct {
	hardNodeLimit uint32
	movetimeMs    int64
	start         time.Time
	forced        atomic.Bool
	cancelled     atomic.Bool
	ctx           context.Context
}

// NewLimiter builds a Limiter for one search. hardNodeLimit == 0 is
// clamped to 1 (spec.md §8 Boundary behaviors); movetimeMs <= 0 disables
// the time budget.
func NewLimiter(ctx context.Context, hardNodeLimit uint32, movetimeMs int64) *Limiter {
	if hardNodeLimit == 0 {
		hardNodeLimit = 1
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Limiter{hardNodeLimit: hardNodeLimit, movetimeMs: movetimeMs, ctx: ctx, start: time.Now()}
}

// ForceMove asks the search to stop at the next poll point, as if a
// time-management layer above this module decided the move is forced.
func (l *Limiter) ForceMove() { l.forced.Store(true) }

// Cancel asks the search to stop cooperatively at the next poll point.
func (l *Limiter) Cancel() { l.cancelled.Store(true) }

// HardNodeLimit returns the (already-clamped) node budget.
func (l *Limiter) HardNodeLimit() uint32 { return l.hardNodeLimit }

// Check evaluates all stop conditions given the current root visit
// count, returning the first one that applies (ordered: cancellation and
// context first, then node/time budget, then forced move).
func (l *Limiter) Check(rootN uint32) StopReason {
	select {
	case <-l.ctx.Done():
		return StopCancelled
	default:
	}
	if l.cancelled.Load() {
		return StopCancelled
	}
	if rootN >= l.hardNodeLimit {
		return StopNodeBudget
	}
	if l.movetimeMs > 0 && time.Since(l.start).Milliseconds() >= l.movetimeMs {
		return StopTimeBudget
	}
	if l.forced.Load() {
		return StopForcedMove
	}
	return StopNone
}

// Elapsed returns milliseconds since the Limiter was constructed.
func (l *Limiter) Elapsed() int64 { return time.Since(l.start).Milliseconds() }
