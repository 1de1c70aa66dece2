// Command searchdemo runs the search core against a chess position with
// no trained network attached (chessadapter.UniformEvaluator stands in),
// printing live stats the way the teacher's real-time-stats example
// (examples/ultimate-tic-tac-toe/real-time-stats/main.go) streams
// OnDepth/OnStop callbacks, colorized with termenv instead of bare
// fmt.Printf.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/muesli/termenv"

	"github.com/arborchess/nnsearch/internal/chessadapter"
	"github.com/arborchess/nnsearch/pkg/flow"
	"github.com/arborchess/nnsearch/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	fen := flag.String("fen", "", "starting FEN (default: standard startpos)")
	nodes := flag.Uint("nodes", 20000, "hard node budget for the search")
	capacity := flag.Uint("capacity", 1<<20, "arena node capacity")
	flag.Parse()

	profile := termenv.ColorProfile()
	title := termenv.String("nnsearch demo").Bold().Foreground(profile.Color("6"))
	fmt.Println(title)

	pos, err := chessadapter.NewPosition(*fen)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid FEN:", err)
		os.Exit(1)
	}

	listener := (&flow.Listener{}).
		OnBatch(func(s flow.Stats) {
			line := fmt.Sprintf("cycle %d  rootN %d  yield %.2f  collisions %d",
				s.Cycles, s.RootN, s.LastBatchYield, s.Collisions)
			fmt.Println(termenv.String(line).Foreground(profile.Color("3")))
		}).
		OnStop(func(s flow.Stats) {
			line := fmt.Sprintf("stopped: %s  rootN %d  cycles %d  timeMs %d",
				s.StopReason.String(), s.RootN, s.Cycles, s.TimeMs)
			fmt.Println(termenv.String(line).Bold().Foreground(profile.Color("2")))
		})

	m := metrics.New(prometheus.NewRegistry(), "searchdemo")
	cfg := flow.DefaultConfig()
	search, err := flow.NewSearch(cfg, uint32(*capacity), flow.Deps{
		NN:       chessadapter.NewUniformEvaluator(cfg.BatchSize.MaxBatchSize),
		Metrics:  m,
		Listener: listener,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "building search:", err)
		os.Exit(1)
	}

	stats, err := search.ProcessDirectOverlapped(context.Background(), pos, uint32(*nodes), 0)
	if err != nil {
		fmt.Fprintln(os.Stderr, "search failed:", err)
		os.Exit(1)
	}

	if move, ok := search.BestMove(); ok {
		fmt.Println(termenv.String("bestmove " + chessadapter.MoveString(move)).Bold())
	} else {
		fmt.Println(termenv.String("bestmove none (root never expanded)").Bold())
	}
	fmt.Printf("final rootN=%d cycles=%d arenaUtilization=%.4f\n",
		stats.RootN, stats.Cycles, search.Arena().Utilization())
}
