package arena

import (
	"math"
	"sync/atomic"
)

// Terminal classifies a node's game-theoretic outcome, independent of any
// neural-network evaluation. The chess rules that produce this value live
// outside this module -- a leaf evaluator sets it.
type Terminal uint8

const (
	NonTerminal Terminal = iota
	CheckmateWin
	CheckmateLoss
	Stalemate
	TablebaseDraw
	TablebaseWin
	TablebaseLoss
)

func (t Terminal) Known() bool { return t != NonTerminal }

// MoveEncoding is an opaque, move-generator-defined identifier for a move.
// The encoding scheme itself is external to this module.
type MoveEncoding uint32

// PolicyMove pairs a move with the prior probability the network (or a
// leaf evaluator standing in for it) assigned to it, and the index of the
// already-expanded child for that move, if any (0 == not yet expanded).
type PolicyMove struct {
	Move       MoveEncoding
	PriorP     float32
	ChildIndex uint32
}

// Node expansion/occupancy flags, mirroring the teacher's CanExpand/
// Expanding/Expanded bit protocol (pkg/mcts/node.go) so concurrent
// descents agree on who is responsible for allocating a node's children.
const (
	flagCanExpand  uint32 = 0
	flagExpanding  uint32 = 1
	flagExpanded   uint32 = 2
	flagTerminated uint32 = 4
)

// MaxTranspositionPendingVisits is the hard ceiling on
// NumVisitsPendingTranspositionRootExtraction, independent of any
// configured cap.
const MaxTranspositionPendingVisits = 3

// NodeRecord is the fixed-layout record stored in the Arena. All fields
// touched during concurrent descent (NInFlight, flags) are accessed only
// through atomic helpers; fields touched only during the Apply barrier
// (N, WSum, DSum, MSum, transposition linkage) may be read without
// synchronization elsewhere provided the reader tolerates a one-batch
// delay.
type NodeRecord struct {
	ParentIndex         uint32
	FirstChildIndex     uint32
	NumPolicyMoves      uint16
	NumChildrenExpanded uint16

	n          int32 // completed visits, written only under the Apply barrier
	nInFlight0 atomic.Int32
	nInFlight1 atomic.Int32

	wSumBits atomic.Uint32 // float32 bits, see AddW/W
	dSumBits atomic.Uint32
	mSumBits atomic.Uint32

	V       float32 // network value for this leaf
	WinP    float32
	LossP   float32
	MPos    float32 // network moves-left estimate for this position

	Terminal    Terminal
	ZobristHash uint64

	TranspositionRootIndex                      uint32
	NumVisitsPendingTranspositionRootExtraction uint8
	TranspositionVisitsConsumed                 uint8

	Policy []PolicyMove

	flags atomic.Uint32
}

// Reset clears a record for reuse as a freshly allocated node.
func (n *NodeRecord) Reset(parent uint32) {
	n.ParentIndex = parent
	n.FirstChildIndex = 0
	n.NumPolicyMoves = 0
	n.NumChildrenExpanded = 0
	n.n = 0
	n.nInFlight0.Store(0)
	n.nInFlight1.Store(0)
	n.wSumBits.Store(0)
	n.dSumBits.Store(0)
	n.mSumBits.Store(0)
	n.V, n.WinP, n.LossP, n.MPos = 0, 0, 0, 0
	n.Terminal = NonTerminal
	n.ZobristHash = 0
	n.TranspositionRootIndex = 0
	n.NumVisitsPendingTranspositionRootExtraction = 0
	n.TranspositionVisitsConsumed = 0
	n.Policy = nil
	n.flags.Store(flagCanExpand)
}

// N returns the number of completed visits.
func (n *NodeRecord) N() int32 { return n.n }

// SetN sets the completed-visit count; called only under the Apply barrier.
func (n *NodeRecord) SetN(v int32) { n.n = v }

// AddN increments the completed-visit count; called only under the Apply barrier.
func (n *NodeRecord) AddN(delta int32) { n.n += delta }

func float32Bits(v float32) uint32 { return math.Float32bits(v) }
func bitsFloat32(b uint32) float32 { return math.Float32frombits(b) }

// W returns the accumulated (signed) value sum.
func (n *NodeRecord) W() float32 { return bitsFloat32(n.wSumBits.Load()) }

// AddW accumulates delta into the value sum; called only under the Apply barrier.
func (n *NodeRecord) AddW(delta float32) {
	n.wSumBits.Store(float32Bits(n.W() + delta))
}

// D returns the accumulated draw-probability sum.
func (n *NodeRecord) D() float32 { return bitsFloat32(n.dSumBits.Load()) }

func (n *NodeRecord) AddD(delta float32) {
	n.dSumBits.Store(float32Bits(n.D() + delta))
}

// M returns the accumulated moves-left sum.
func (n *NodeRecord) M() float32 { return bitsFloat32(n.mSumBits.Load()) }

func (n *NodeRecord) AddM(delta float32) {
	n.mSumBits.Store(float32Bits(n.M() + delta))
}

// Q returns the average backed-up value for this node from its own
// perspective, or NaN if unvisited.
func (n *NodeRecord) Q() float32 {
	if n.n == 0 {
		return float32(math.NaN())
	}
	return n.W() / float32(n.n)
}

// NInFlight returns the in-flight (virtual loss) count for the given
// selector slot (0 or 1).
func (n *NodeRecord) NInFlight(slot int) int32 {
	if slot == 0 {
		return n.nInFlight0.Load()
	}
	return n.nInFlight1.Load()
}

// AddInFlight adds delta (may be negative) to the given selector slot's
// in-flight counter. Safe for concurrent use by descending selectors.
func (n *NodeRecord) AddInFlight(slot int, delta int32) int32 {
	if slot == 0 {
		return n.nInFlight0.Add(delta)
	}
	return n.nInFlight1.Add(delta)
}

// TotalN returns completed visits plus both selectors' in-flight visits;
// this quantity is monotonically non-decreasing during a batch cycle.
func (n *NodeRecord) TotalN() int32 {
	return n.n + n.nInFlight0.Load() + n.nInFlight1.Load()
}

func (n *NodeRecord) IsTerminal() bool {
	return n.Terminal.Known() || n.flags.Load()&flagTerminated == flagTerminated
}

func (n *NodeRecord) markTerminatedFlag() {
	for {
		old := n.flags.Load()
		if old&flagTerminated == flagTerminated {
			return
		}
		if n.flags.CompareAndSwap(old, old|flagTerminated) {
			return
		}
	}
}

// Expanded reports whether this node's children have already been
// allocated (NumPolicyMoves/FirstChildIndex are populated).
func (n *NodeRecord) Expanded() bool {
	return n.flags.Load()&flagExpanded == flagExpanded
}

func (n *NodeRecord) Expanding() bool {
	return n.flags.Load()&flagExpanding == flagExpanding
}

// TryStartExpanding attempts to claim responsibility for expanding this
// node, returning true exactly once across all concurrent callers.
func (n *NodeRecord) TryStartExpanding() bool {
	return n.flags.CompareAndSwap(flagCanExpand, flagExpanding)
}

// FinishExpanding marks this node's children as usable by concurrent
// descents. Must be called exactly once, after TryStartExpanding returned
// true and the children have been populated.
func (n *NodeRecord) FinishExpanding() {
	for {
		old := n.flags.Load()
		next := flagExpanded
		if old&flagTerminated == flagTerminated {
			next |= flagTerminated
		}
		if n.flags.CompareAndSwap(old, next) {
			return
		}
	}
}

// HasTranspositionLink reports whether this node currently draws its
// value from a transposition root instead of its own NN evaluation.
func (n *NodeRecord) HasTranspositionLink() bool {
	return n.TranspositionRootIndex != 0
}

// ClearTranspositionLink de-links a node from its transposition root,
// called once NumVisitsPendingTranspositionRootExtraction is exhausted.
func (n *NodeRecord) ClearTranspositionLink() {
	n.TranspositionRootIndex = 0
	n.NumVisitsPendingTranspositionRootExtraction = 0
	n.TranspositionVisitsConsumed = 0
}
