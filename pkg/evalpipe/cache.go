package evalpipe

import "github.com/arborchess/nnsearch/pkg/arena"

// CacheEvaluator resolves a leaf straight from a content-addressed cache
// of prior network outputs, keyed by position hash, skipping the network
// entirely on a hit.
type CacheEvaluator struct {
	Cache Cache
}

func NewCacheEvaluator(cache Cache) *CacheEvaluator {
	return &CacheEvaluator{Cache: cache}
}

func (c *CacheEvaluator) Evaluate(node *arena.NodeRecord, _ uint32) Result {
	if c.Cache == nil {
		return Unresolved
	}
	hit, ok := c.Cache.Get(node.ZobristHash)
	if !ok {
		return Unresolved
	}
	if len(hit.Policy) > 0 {
		node.Policy = append([]arena.PolicyMove(nil), hit.Policy...)
		node.NumPolicyMoves = uint16(len(node.Policy))
	}
	return Result{Resolved: true, Value: hit.Value, WinP: hit.WinP, LossP: hit.LossP, MPos: hit.MPos}
}
