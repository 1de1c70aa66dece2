package flow

// Stats is a snapshot of search progress, fed to a Listener's callbacks.
// It mirrors the teacher's ListenerTreeStats (pkg/mcts/stats_listener.go)
// generalized from a generic move type to the node-index/visit-count
// observables this module exposes (principal variation and per-move
// visit counts belong to the chess layer built on top of this core).
type Stats struct {
	RootN          int32
	Cycles         int
	TimeMs         int64
	Cps            uint32
	LastBatchYield float64
	Collisions     int
	StopReason     StopReason
}

// Listener receives progress callbacks from a Search. All callbacks are
// invoked from the single coordinator goroutine, so implementations need
// no internal synchronization.
type Listener struct {
	onBatch func(Stats)
	onDepth func(Stats)
	onStop  func(Stats)
}

// OnBatch attaches a callback invoked at the top of every iteration of
// the search loop, before the stop check (the teacher's "notify
// progress" call): once before the first batch and once after each
// completed batch.
func (l *Listener) OnBatch(f func(Stats)) *Listener { l.onBatch = f; return l }

// OnDepth attaches a depth callback. Search does not track tree depth
// and never invokes this callback.
func (l *Listener) OnDepth(f func(Stats)) *Listener { l.onDepth = f; return l }

// OnStop attaches a callback invoked once when the search stops on a
// stop condition (arena exhaustion included). A search that returns an
// error does not invoke it.
func (l *Listener) OnStop(f func(Stats)) *Listener { l.onStop = f; return l }

func (l *Listener) invokeBatch(s Stats) {
	if l != nil && l.onBatch != nil {
		l.onBatch(s)
	}
}

func (l *Listener) invokeDepth(s Stats) {
	if l != nil && l.onDepth != nil {
		l.onDepth(s)
	}
}

func (l *Listener) invokeStop(s Stats) {
	if l != nil && l.onStop != nil {
		l.onStop(s)
	}
}
