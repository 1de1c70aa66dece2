// Package evalpipe implements the ordered pre-NN leaf evaluator pipeline:
// terminal detection, transposition linkage, and an optional
// position-evaluation cache, any of which can short-circuit a leaf
// without ever reaching the neural network.
package evalpipe

import "github.com/arborchess/nnsearch/pkg/arena"

// Result is what an Evaluator produces for one leaf.
type Result struct {
	Resolved bool
	Value    float32
	WinP     float32
	LossP    float32
	MPos     float32
	Terminal arena.Terminal
}

// Unresolved is the zero Result with Resolved == false, returned by an
// evaluator that has nothing to say about a leaf.
var Unresolved = Result{}

// Evaluator inspects a freshly-selected leaf and either resolves it
// without the network, or defers to the next stage in the pipeline. The
// first Resolved result wins.
type Evaluator interface {
	Evaluate(node *arena.NodeRecord, nodeIndex uint32) Result
}

// TranspositionMode selects how the Transposition evaluator links a leaf
// to an existing equivalent-position subtree.
type TranspositionMode int

const (
	// SingleNodeCopy copies the transposition root's policy move table
	// and value directly into the leaf; no ongoing linkage.
	SingleNodeCopy TranspositionMode = iota
	// SingleNodeDeferredCopy links the leaf to the root and serves up to
	// a capped number of backups from sampled root-subtree values before
	// forcing a permanent copy.
	SingleNodeDeferredCopy
	// SharedSubtree is SingleNodeDeferredCopy's best-effort superset:
	// same sampling for now, intended to eventually share the subtree
	// outright rather than converging to a one-time copy.
	SharedSubtree
)

// CachedEval is a previously-computed NN output, keyed by position hash.
type CachedEval struct {
	Value  float32
	WinP   float32
	LossP  float32
	MPos   float32
	Policy []arena.PolicyMove
}

// Cache is the optional content-addressed NN-output cache. Implementations
// must be safe for concurrent Get and Put.
type Cache interface {
	Get(hash uint64) (CachedEval, bool)
	Put(hash uint64, eval CachedEval)
}

// TablebaseOracle is the opaque endgame tablebase collaborator -- this
// module never implements tablebase logic itself, only calls out to one.
type TablebaseOracle interface {
	Probe(hash uint64) (arena.Terminal, bool)
}
