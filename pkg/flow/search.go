// Package flow implements the search flow orchestrator (spec.md §4.G):
// the double-buffered loop that alternates two leaf selectors, overlaps
// NN evaluation with the next batch's selection, and drives backup until
// a stop condition fires.
package flow

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/arborchess/nnsearch/pkg/arena"
	"github.com/arborchess/nnsearch/pkg/backup"
	"github.com/arborchess/nnsearch/pkg/batchsize"
	"github.com/arborchess/nnsearch/pkg/evalpipe"
	"github.com/arborchess/nnsearch/pkg/metrics"
	"github.com/arborchess/nnsearch/pkg/nnevaluator"
	"github.com/arborchess/nnsearch/pkg/selector"
	"github.com/arborchess/nnsearch/pkg/ttable"
)

// selectorApplier adapts backup.Backup's selector-aware ApplyImmediate
// to the single-selector-bound selector.Applier interface, so each
// SelectedSet always backs up immediates with its own SelectorID.
type selectorApplier struct {
	backup     *backup.Backup
	selectorID int
}

func (a *selectorApplier) Apply(nodeIndex uint32, visitCount int32, result evalpipe.Result) {
	a.backup.ApplyImmediate(nodeIndex, visitCount, a.selectorID, result)
}

// Search owns the whole concurrent search core for one position: the
// arena, transposition index, both selector slots, the evaluator
// pipeline, and the NN evaluator collaborator.
type Search struct {
	cfg *Config

	arena  *arena.Arena
	ttable *ttable.Index
	backup *backup.Backup
	nn     nnevaluator.Evaluator
	cache  evalpipe.Cache

	stagings  [2]*ttable.Staging
	selectors [2]*selector.Selector
	sets      [2]*selector.SelectedSet

	metrics  *metrics.Metrics
	listener *Listener
	rng      *rand.Rand

	cycles         int
	collisions     int
	rootNoiseDone  bool
	totalApplied   int64
	totalAttempted int64
}

// Deps bundles Search's external collaborators -- the NN evaluator and
// the optional cache/tablebase oracle plugged into the leaf-evaluator
// pipeline (spec.md §4.C, §6).
type Deps struct {
	NN       nnevaluator.Evaluator
	Oracle   evalpipe.TablebaseOracle
	Cache    evalpipe.Cache
	Metrics  *metrics.Metrics
	Listener *Listener
}

// NewSearch builds a fresh Search with its own arena of the given node
// capacity.
func NewSearch(cfg *Config, capacity uint32, deps Deps) (*Search, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	a, err := arena.New(capacity, cfg.UseLargePages)
	if err != nil {
		return nil, errors.Wrap(err, "flow: allocating arena")
	}

	tt := ttable.New(cfg.TranspositionTableCapacity)
	bk := backup.New(a)
	pipeline := evalpipe.NewPipeline(
		evalpipe.NewTerminalEvaluator(deps.Oracle),
		evalpipe.NewTranspositionEvaluator(tt, a, cfg.TranspositionMode,
			cfg.MaxTranspositionRootApplicationsFixed, cfg.MaxTranspositionRootApplicationsFraction),
		evalpipe.NewCacheEvaluator(deps.Cache),
	)

	s := &Search{
		cfg:    cfg,
		arena:  a,
		ttable: tt,
		backup: bk,
		nn:     deps.NN,
		cache:  deps.Cache,

		metrics:  deps.Metrics,
		listener: deps.Listener,
		rng:      rand.New(rand.NewSource(1)),
	}

	for id := 0; id < 2; id++ {
		s.stagings[id] = ttable.NewStaging(cfg.StagingCapacity)
		s.selectors[id] = selector.New(a, s.stagings[id], id, cfg.CPuct, cfg.FPUReduction)
		s.sets[id] = &selector.SelectedSet{
			Arena:      a,
			Classifier: pipeline,
			Applier:    &selectorApplier{backup: bk, selectorID: id},
		}
	}
	return s, nil
}

// Arena exposes the underlying node store for read-only inspection
// (principal variation extraction, per-move visit counts) by callers.
func (s *Search) Arena() *arena.Arena { return s.arena }

// Root returns the search root's node index.
func (s *Search) Root() uint32 { return s.arena.Root() }

// ProcessDirectOverlapped is the search entry point (spec.md §6): it
// grows the tree from pos until a stop condition fires, alternating two
// selectors and overlapping NN evaluation with the next batch's
// selection whenever configured and safe to do so. hardNodeLimit == 0 is
// clamped to 1. A caller-supplied forcedBatchSize (<= 0 to disable)
// overrides the Batch Sizer but is still clipped to the remaining node
// budget.
func (s *Search) ProcessDirectOverlapped(ctx context.Context, pos selector.Position, hardNodeLimit uint32, forcedBatchSize int) (Stats, error) {
	limiter := NewLimiter(ctx, hardNodeLimit, 0)
	return s.run(ctx, pos, limiter, forcedBatchSize)
}

// ProcessWithTimeBudget is like ProcessDirectOverlapped but additionally
// stops once movetimeMs elapses, for callers layering time management on
// top of this core (still out of this module's scope -- this is just
// the Limiter's second stop condition).
func (s *Search) ProcessWithTimeBudget(ctx context.Context, pos selector.Position, hardNodeLimit uint32, movetimeMs int64, forcedBatchSize int) (Stats, error) {
	limiter := NewLimiter(ctx, hardNodeLimit, movetimeMs)
	return s.run(ctx, pos, limiter, forcedBatchSize)
}

type pendingEval struct {
	group      *errgroup.Group
	outputs    []nnevaluator.Output
	set        *selector.SelectedSet
	selectorID int
}

func (s *Search) run(ctx context.Context, pos selector.Position, limiter *Limiter, forcedBatchSize int) (Stats, error) {
	selectorID := 0
	var prior *pendingEval

	for {
		root := s.arena.Get(s.arena.Root())
		stats := s.statsSnapshot(limiter)
		s.listener.invokeBatch(stats)

		if reason := limiter.Check(uint32(root.N())); reason != StopNone {
			return s.finish(ctx, prior, limiter, reason)
		}

		// First iteration with root N == 0 must never overlap (spec.md
		// §8 Boundary behaviors), regardless of configuration.
		overlapThisIter := s.cfg.FlowDirectOverlapped && s.cfg.FlowDualSelectors && root.N() > 0

		target := s.computeTarget(forcedBatchSize, hardRemaining(limiter, root.N()), int64(root.N()))
		if target <= 0 {
			return s.finish(ctx, prior, limiter, StopNodeBudget)
		}

		set := s.sets[selectorID]
		var other selector.PendingIndex
		if prior != nil && prior.selectorID != selectorID {
			other = prior.set
		}
		set.Reset()
		set.MaxNodesNN = s.effectiveMaxNodesNN(target)
		collectTarget := target + batchsize.Pad(s.cfg.BatchSize, target)

		attempted, err := s.collect(set, selectorID, pos, collectTarget, other)
		if err != nil {
			if errors.Is(err, arena.ErrArenaExhausted) {
				return s.finish(ctx, prior, limiter, StopArenaExhausted)
			}
			return Stats{}, err
		}
		s.totalAttempted += attempted
		s.totalApplied += int64(set.NumNewLeafsAddedNonDuplicates)
		s.collisions += set.NumIgnored
		s.metrics.ObserveCollisions(set.NumIgnored)

		s.ttable.Flush(s.stagings[selectorID])

		if root.Expanded() && !s.rootNoiseDone {
			s.rootNoiseDone = true
			priors := priorsOf(root)
			InjectRootNoise(priors, 0.3, 0.25, s.rng)
			for i := range root.Policy {
				root.Policy[i].PriorP = priors[i]
			}
		}

		if overlapThisIter {
			g, gctx := errgroup.WithContext(ctx)
			task := &pendingEval{group: g, set: set, selectorID: selectorID}
			encodings := encodingsOf(set)
			g.Go(func() error {
				if len(encodings) == 0 {
					return nil
				}
				outs, err := s.nn.Evaluate(gctx, encodings)
				if err != nil {
					return errors.Wrap(ErrEvaluatorFailure, err.Error())
				}
				task.outputs = outs
				return nil
			})

			if prior != nil {
				if err := s.applyPending(prior); err != nil {
					return Stats{}, err
				}
			}
			prior = task
		} else {
			if err := s.evaluateSynchronously(ctx, set, selectorID); err != nil {
				return Stats{}, err
			}
			prior = nil
		}

		s.cycles++
		s.metrics.ObserveCycle()
		if s.cycles%3 == 0 {
			klog.V(3).Infof("flow: cycle=%d rootN=%d cps=%d", s.cycles, root.N(), stats.Cps)
		}
		s.metrics.SetRootVisits(root.N())
		s.metrics.SetArenaUtilization(s.arena.Utilization())

		if overlapThisIter {
			selectorID = 1 - selectorID
		}
	}
}

// finish awaits any outstanding NN task, applies its result, and returns
// the final stats. This is the second (and last) suspension point spec.md
// §5 allows.
func (s *Search) finish(ctx context.Context, prior *pendingEval, limiter *Limiter, reason StopReason) (Stats, error) {
	if prior != nil {
		if err := s.applyPending(prior); err != nil {
			return Stats{}, err
		}
	}
	stats := s.statsSnapshot(limiter)
	stats.StopReason = reason
	s.listener.invokeStop(stats)
	return stats, nil
}

func (s *Search) applyPending(p *pendingEval) error {
	if err := p.group.Wait(); err != nil {
		return err
	}
	if len(p.set.NodesNN) == 0 {
		return nil
	}
	if len(p.outputs) != len(p.set.NodesNN) {
		return errors.Wrapf(ErrEvaluatorFailure, "NN evaluator returned %d outputs for %d inputs", len(p.outputs), len(p.set.NodesNN))
	}
	s.metrics.ObserveBatch(len(p.set.NodesNN))
	s.metrics.ObserveNNEvaluations(len(p.set.NodesNN))
	for i, entry := range p.set.NodesNN {
		cacheOnly := p.set.IsCacheOnly(entry.NodeIndex)
		if err := s.backup.ApplyNetworkResult(entry.NodeIndex, entry.VisitCount, p.selectorID, p.outputs[i], cacheOnly); err != nil {
			return err
		}
		if s.cache != nil {
			node := s.arena.Get(entry.NodeIndex)
			s.cache.Put(node.ZobristHash, evalpipe.CachedEval{
				Value: p.outputs[i].Value, WinP: p.outputs[i].WinP, LossP: p.outputs[i].LossP,
				MPos: p.outputs[i].MovesLeft, Policy: node.Policy,
			})
		}
	}
	return nil
}

func (s *Search) evaluateSynchronously(ctx context.Context, set *selector.SelectedSet, selectorID int) error {
	task := &pendingEval{set: set, selectorID: selectorID}
	if len(set.NodesNN) > 0 {
		encodings := encodingsOf(set)
		outs, err := s.nn.Evaluate(ctx, encodings)
		if err != nil {
			return errors.Wrap(ErrEvaluatorFailure, err.Error())
		}
		task.outputs = outs
	}
	task.group = &errgroup.Group{}
	return s.applyPending(task)
}

// collect performs one or two descent passes into set, per spec.md
// §4.F's split-collection rule: a second pass only runs if the first
// pass's yield cleared the 2/3 threshold.
func (s *Search) collect(set *selector.SelectedSet, selectorID int, pos selector.Position, target int64, other selector.PendingIndex) (attempted int64, err error) {
	sel := s.selectors[selectorID]

	if !s.cfg.FlowSplitSelects {
		selected, err := sel.Batch(s.arena.Root(), pos, int32(target))
		if err != nil {
			return 0, err
		}
		set.AddSelected(selected, other, true)
		return target, nil
	}

	first, second := batchsize.SplitSizes(target)
	firstSelected, err := sel.Batch(s.arena.Root(), pos, int32(first))
	if err != nil {
		return 0, err
	}
	set.AddSelected(firstSelected, other, true)
	attempted = first

	firstNonDup := int64(set.NumNewLeafsAddedNonDuplicates)
	if second > 0 && batchsize.ShouldRunSecondPass(first, firstNonDup) {
		secondSelected, err := sel.Batch(s.arena.Root(), pos, int32(second))
		if err != nil {
			return attempted, err
		}
		set.AddSelected(secondSelected, other, true)
		attempted += second
	}
	return attempted, nil
}

func (s *Search) computeTarget(forcedBatchSize int, estimatedTotalNodes, rootN int64) int64 {
	remaining := estimatedTotalNodes - rootN

	if forcedBatchSize > 0 {
		t := int64(forcedBatchSize)
		if t > remaining {
			t = remaining
		}
		if t < 1 {
			t = 1
		}
		return t
	}

	t := batchsize.Target(s.cfg.BatchSize, estimatedTotalNodes, rootN, s.cfg.FlowDirectOverlapped, s.cfg.FlowDualSelectors)
	if t > remaining {
		t = remaining
	}
	return t
}

// effectiveMaxNodesNN is the SelectedSet's MaxNodesNN cap: target,
// snapped to the nearest device breakpoint (spec.md §4.F). Padding adds
// extra collected nodes beyond target, but does not raise the NN-applied
// cap itself -- padded surplus is exactly what CacheOnly exists for.
func (s *Search) effectiveMaxNodesNN(target int64) int {
	return int(batchsize.SnapToBreakpoint(s.cfg.BatchSize.Breakpoints, target))
}

func hardRemaining(limiter *Limiter, _ int32) int64 {
	return int64(limiter.HardNodeLimit())
}

func (s *Search) statsSnapshot(limiter *Limiter) Stats {
	root := s.arena.Get(s.arena.Root())
	var yield float64
	if s.totalAttempted > 0 {
		yield = float64(s.totalApplied) / float64(s.totalAttempted)
	}
	return Stats{
		RootN:          root.N(),
		Cycles:         s.cycles,
		TimeMs:         limiter.Elapsed(),
		LastBatchYield: yield,
		Collisions:     s.collisions,
	}
}

func encodingsOf(set *selector.SelectedSet) []nnevaluator.PositionEncoding {
	out := make([]nnevaluator.PositionEncoding, len(set.NodesNN))
	for i, e := range set.NodesNN {
		out[i] = e.Encoding
	}
	return out
}

func priorsOf(node *arena.NodeRecord) []float32 {
	out := make([]float32, len(node.Policy))
	for i := range node.Policy {
		out[i] = node.Policy[i].PriorP
	}
	return out
}
