// Package batchsize implements the dynamic batch-size policy of
// spec.md §4.F: target-size estimation from remaining search budget,
// split-collection pass sizing, padding, and device-breakpoint
// snapping. It holds no tree state -- every call is pure given its
// inputs.
package batchsize

import (
	"math"
	"sort"
)

// Config mirrors the subset of spec.md §6's configuration enumeration
// this package consumes, in the teacher's SetX-chaining Limits style.
type Config struct {
	MaxBatchSize               int
	BatchSizeMultiplier        float64
	SmartSizeBatches           bool
	PaddedBatchSizing          bool
	PaddedExtraNodesBase       int
	PaddedExtraNodesMultiplier float64
	Breakpoints                []int // device-optimal NN batch sizes, ascending
}

// DefaultConfig matches the teacher's DefaultLimits() convention: a
// conservative, always-valid configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxBatchSize:               1024,
		BatchSizeMultiplier:        1.0,
		SmartSizeBatches:           true,
		PaddedBatchSizing:          false,
		PaddedExtraNodesBase:       0,
		PaddedExtraNodesMultiplier: 0,
	}
}

func (c *Config) SetMaxBatchSize(n int) *Config            { c.MaxBatchSize = n; return c }
func (c *Config) SetBatchSizeMultiplier(m float64) *Config { c.BatchSizeMultiplier = m; return c }
func (c *Config) SetSmartSizeBatches(b bool) *Config       { c.SmartSizeBatches = b; return c }
func (c *Config) SetPaddedBatchSizing(b bool) *Config      { c.PaddedBatchSizing = b; return c }
func (c *Config) SetBreakpoints(bp []int) *Config          { c.Breakpoints = bp; return c }

// earlySearchRootN is the root-visit threshold below which the sizer
// prefers small batches and disables overlap (spec.md §4.F "Early in
// search").
const earlySearchRootN = 3000

// Target computes the target batch size for the next collection cycle.
// estimatedTotalNodes is the caller's estimate of the search's total
// size in root visits (e.g. a node budget or a time-derived projection);
// rootN is the root's current completed-visit count, and the remaining
// budget is estimatedTotalNodes - rootN.
func Target(cfg *Config, estimatedTotalNodes, rootN int64, overlapEnabled, dualSelectors bool) int64 {
	if !cfg.SmartSizeBatches {
		return clampInt64(int64(cfg.MaxBatchSize), 1, int64(cfg.MaxBatchSize))
	}

	if rootN < earlySearchRootN {
		small := int64(float64(cfg.MaxBatchSize) * 0.05)
		return clampInt64(maxI64(small, 2), 1, int64(cfg.MaxBatchSize))
	}

	// Scale sub-linearly (square root) with remaining budget: a search
	// with 10x more nodes left gets roughly sqrt(10) more batch size,
	// not 10x.
	remaining := estimatedTotalNodes - rootN
	if remaining < 0 {
		remaining = 0
	}
	target := math.Sqrt(float64(remaining)) * cfg.BatchSizeMultiplier
	if dualSelectors {
		target /= 2
	}
	if !overlapEnabled {
		target *= 0.75
	}
	return clampInt64(int64(target), 1, int64(cfg.MaxBatchSize))
}

// SplitSizes returns the (firstPass, secondPass) sizes for split
// collection, per spec.md §4.F: 60% of target in the first pass, 40% in
// the second -- the caller decides whether to actually run the second
// pass based on ShouldRunSecondPass.
func SplitSizes(target int64) (first, second int64) {
	first = maxI64(int64(float64(target)*0.6), 1)
	second = target - first
	return first, second
}

// ShouldRunSecondPass reports whether the first pass's yield (fraction
// of attempted descents that produced a new non-duplicate leaf) clears
// the 2/3 threshold spec.md §4.F requires before collecting a second
// pass.
func ShouldRunSecondPass(firstPassAttempted, firstPassNonDuplicates int64) bool {
	if firstPassAttempted <= 0 {
		return false
	}
	yield := float64(firstPassNonDuplicates) / float64(firstPassAttempted)
	return yield >= 2.0/3.0
}

// Pad computes the extra node count to add on top of target when
// padded batch sizing is enabled: a configured base plus a
// multiplier-of-target term. Nodes collected beyond target because of
// padding become CacheOnly in the SelectedSet (spec.md §4.F, Open
// Questions).
func Pad(cfg *Config, target int64) int64 {
	if !cfg.PaddedBatchSizing {
		return 0
	}
	extra := float64(cfg.PaddedExtraNodesBase) + float64(target)*cfg.PaddedExtraNodesMultiplier
	return int64(extra)
}

// SnapToBreakpoint rounds projectedNN to the nearest device-optimal
// breakpoint if one lies within +/-20%; otherwise it returns
// projectedNN unchanged.
func SnapToBreakpoint(breakpoints []int, projectedNN int64) int64 {
	if len(breakpoints) == 0 || projectedNN <= 0 {
		return projectedNN
	}
	sorted := append([]int(nil), breakpoints...)
	sort.Ints(sorted)

	best := -1
	bestDist := int64(-1)
	for _, bp := range sorted {
		lo := float64(projectedNN) * 0.8
		hi := float64(projectedNN) * 1.2
		if float64(bp) < lo || float64(bp) > hi {
			continue
		}
		dist := projectedNN - int64(bp)
		if dist < 0 {
			dist = -dist
		}
		if best == -1 || dist < bestDist {
			best, bestDist = bp, dist
		}
	}
	if best == -1 {
		return projectedNN
	}
	return int64(best)
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
