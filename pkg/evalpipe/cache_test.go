package evalpipe

import (
	"testing"

	"github.com/arborchess/nnsearch/pkg/arena"
)

type mapCache map[uint64]CachedEval

func (m mapCache) Get(hash uint64) (CachedEval, bool) { v, ok := m[hash]; return v, ok }
func (m mapCache) Put(hash uint64, eval CachedEval)   { m[hash] = eval }

func TestCacheHitResolves(t *testing.T) {
	c := mapCache{55: {Value: 0.25, Policy: []arena.PolicyMove{{Move: 2, PriorP: 1}}}}
	ev := NewCacheEvaluator(c)
	node := &arena.NodeRecord{ZobristHash: 55}

	res := ev.Evaluate(node, 0)
	if !res.Resolved || res.Value != 0.25 {
		t.Fatalf("Evaluate = %+v, want cached hit", res)
	}
	if len(node.Policy) != 1 {
		t.Fatal("expected policy copied from cache")
	}
}

func TestCacheMissIsUnresolved(t *testing.T) {
	ev := NewCacheEvaluator(mapCache{})
	node := &arena.NodeRecord{ZobristHash: 1}
	if res := ev.Evaluate(node, 0); res.Resolved {
		t.Fatalf("expected miss, got %+v", res)
	}
}

func TestNilCacheIsUnresolved(t *testing.T) {
	ev := NewCacheEvaluator(nil)
	node := &arena.NodeRecord{}
	if res := ev.Evaluate(node, 0); res.Resolved {
		t.Fatal("nil cache must never resolve")
	}
}
