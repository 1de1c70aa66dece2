package selector

import (
	"github.com/arborchess/nnsearch/pkg/arena"
	"github.com/arborchess/nnsearch/pkg/evalpipe"
)

// Entry is one classified leaf within a SelectedSet.
type Entry struct {
	NodeIndex  uint32
	VisitCount int32
	Encoding   any
}

// Classifier resolves a leaf before it would otherwise go to the
// network -- an *evalpipe.Pipeline plays this role.
type Classifier interface {
	Evaluate(node *arena.NodeRecord, nodeIndex uint32) evalpipe.Result
}

// Applier backs up a single resolved leaf, immediately, to the tree.
type Applier interface {
	Apply(nodeIndex uint32, visitCount int32, result evalpipe.Result)
}

// PendingIndex reports whether a node index is already pending in
// another selector's in-flight set, for cross-selector deduplication.
type PendingIndex interface {
	Contains(nodeIndex uint32) bool
}

// SelectedSet partitions one selector's freshly-descended batch into the
// NN-bound, immediately-resolved, cache-only, and ignored subsets.
type SelectedSet struct {
	Arena      *arena.Arena
	Classifier Classifier
	Applier    Applier

	MaxNodesNN int

	NodesNN        []Entry
	NodesImmediate []Entry

	NumCacheOnly                  int
	NumIgnored                    int
	NumNewLeafsAddedNonDuplicates int

	cacheOnly map[uint32]bool
}

// Reset clears the set for a new batch.
func (ss *SelectedSet) Reset() {
	ss.NodesNN = ss.NodesNN[:0]
	ss.NodesImmediate = ss.NodesImmediate[:0]
	ss.NumCacheOnly = 0
	ss.NumIgnored = 0
	ss.NumNewLeafsAddedNonDuplicates = 0
	ss.cacheOnly = nil
}

// Contains reports whether nodeIndex is part of this (now-completed)
// set's pending NN-bound or immediate entries, for the peer selector's
// deduplication snapshot.
func (ss *SelectedSet) Contains(nodeIndex uint32) bool {
	for _, e := range ss.NodesNN {
		if e.NodeIndex == nodeIndex {
			return true
		}
	}
	for _, e := range ss.NodesImmediate {
		if e.NodeIndex == nodeIndex {
			return true
		}
	}
	return false
}

// AddSelected classifies selections from one selector's descent: a node
// already pending in other's set is ignored; terminal/transposition/
// cache-resolved leaves go to Immediate (and, if applyImmediateNow, are
// backed up on the spot); the rest go to NN. Nodes beyond MaxNodesNN are
// still sent for NN evaluation but marked CacheOnly so their results are
// cached, never applied.
func (ss *SelectedSet) AddSelected(selections []Selected, other PendingIndex, applyImmediateNow bool) {
	for _, sel := range selections {
		if other != nil && other.Contains(sel.NodeIndex) {
			ss.NumIgnored++
			continue
		}
		ss.NumNewLeafsAddedNonDuplicates++

		node := ss.Arena.Get(sel.NodeIndex)
		if ss.Classifier != nil {
			if res := ss.Classifier.Evaluate(node, sel.NodeIndex); res.Resolved {
				ss.NodesImmediate = append(ss.NodesImmediate, Entry{NodeIndex: sel.NodeIndex, VisitCount: sel.VisitCount, Encoding: sel.Encoding})
				if applyImmediateNow && ss.Applier != nil {
					ss.Applier.Apply(sel.NodeIndex, sel.VisitCount, res)
				}
				continue
			}
		}

		ss.NodesNN = append(ss.NodesNN, Entry{NodeIndex: sel.NodeIndex, VisitCount: sel.VisitCount, Encoding: sel.Encoding})
		if ss.MaxNodesNN > 0 && len(ss.NodesNN) > ss.MaxNodesNN {
			if ss.cacheOnly == nil {
				ss.cacheOnly = make(map[uint32]bool)
			}
			ss.cacheOnly[sel.NodeIndex] = true
			ss.NumCacheOnly++
		}
	}
}

// IsCacheOnly reports whether nodeIndex, though sent to the network, is
// surplus past MaxNodesNN and must not be applied.
func (ss *SelectedSet) IsCacheOnly(nodeIndex uint32) bool {
	return ss.cacheOnly != nil && ss.cacheOnly[nodeIndex]
}
