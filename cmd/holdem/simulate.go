package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/headsup/internal/game"
	"github.com/lox/headsup/internal/randutil"
	"github.com/lox/headsup/internal/statistics"
	"github.com/lox/headsup/poker"
)

// SimulateCmd plays two bots against each other and reports the hero's results
type SimulateCmd struct {
	Hands   int    `short:"n" help:"Number of hands to simulate" default:"1000"`
	Hero    string `help:"Hero strategy, seat A" enum:"equity,call,fold,random" default:"equity"`
	Villain string `help:"Villain strategy, seat B" enum:"equity,call,fold,random" default:"call"`
	Workers int    `short:"w" help:"Parallel games (defaults to the config's equity workers)"`
}

func (cmd *SimulateCmd) Run(a *app) error {
	if cmd.Hands <= 0 {
		return fmt.Errorf("hands must be positive, got %d", cmd.Hands)
	}
	workers := cmd.Workers
	if workers <= 0 {
		workers = a.cfg.Equity.Workers
	}

	fmt.Fprintf(a.stdout, "Simulating %d hands: %s vs %s (seed %d)\n",
		cmd.Hands, handStyle.Render(cmd.Hero), handStyle.Render(cmd.Villain), a.seed)

	start := time.Now()
	stats, err := simulate(context.Background(), a, cmd.Hero, cmd.Villain, cmd.Hands, workers)
	if err != nil {
		return err
	}
	duration := time.Since(start)

	displaySimulation(a.stdout, stats)
	fmt.Fprintf(a.stdout, "\n%s\n", dimStyle.Render(fmt.Sprintf("%d hands in %v (%.0f hands/sec)",
		stats.Hands, duration.Truncate(time.Millisecond), float64(stats.Hands)/max(duration.Seconds(), 1e-9))))
	return nil
}

// simulate splits hands across workers, each running its own game from a
// generator derived from the seed, and merges their statistics in worker order.
// A busted game is replaced by a fresh one with full stacks.
func simulate(ctx context.Context, a *app, hero, villain string, hands, workers int) (*statistics.Statistics, error) {
	workers = min(max(workers, 1), hands)
	root := randutil.New(a.seed)
	rngs := make([]*rand.Rand, workers)
	for w := range rngs {
		rngs[w] = randutil.Derive(root)
	}

	results := make([]statistics.Statistics, workers)
	g, ctx := errgroup.WithContext(ctx)
	for w := range workers {
		n := hands / workers
		if w < hands%workers {
			n++
		}
		g.Go(func() error {
			return simulateWorker(ctx, a, hero, villain, n, rngs[w], &results[w])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := &statistics.Statistics{}
	for i := range results {
		total.Merge(&results[i])
	}
	return total, nil
}

func simulateWorker(ctx context.Context, a *app, hero, villain string, hands int, rng *rand.Rand, stats *statistics.Statistics) error {
	ev := a.evaluator()
	table := a.cfg.Table
	heroBot := newOpponent(hero, a, ev, randutil.Derive(rng))
	villainBot := newOpponent(villain, a, ev, randutil.Derive(rng))

	var g *game.Game
	for range hands {
		if g == nil || !g.CanContinue() {
			var err error
			g, err = game.New(heroBot, villainBot, [2]int{table.Stack, table.Stack}, game.Config{
				SmallBlind: table.SmallBlind,
				BigBlind:   table.BigBlind,
				Evaluator:  ev,
				Rand:       rng,
				Logger:     a.logger,
			})
			if err != nil {
				return err
			}
		}
		res, err := g.PlayHand(ctx)
		if err != nil {
			return err
		}
		stats.Add(statistics.FromGame(res, poker.SeatA, table.BigBlind))
	}
	return nil
}

func displaySimulation(w io.Writer, s *statistics.Statistics) {
	lo, hi := s.ConfidenceInterval95()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row := func(label, value string) {
		fmt.Fprintf(tw, "%s\t%s\n", categoryStyle.Render(label), value)
	}
	row("hands", fmt.Sprint(s.Hands))
	row("bb/100", fmt.Sprintf("%+.2f", s.BBPer100()))
	row("bb/hand", fmt.Sprintf("%+.4f ± %.4f", s.Mean(), s.StdError()))
	row("95% CI", fmt.Sprintf("[%+.4f, %+.4f]", lo, hi))
	row("std dev", fmt.Sprintf("%.3f", s.StdDev()))
	row("median", fmt.Sprintf("%+.2f", s.Median()))
	row("p5 / p95", fmt.Sprintf("%+.2f / %+.2f", s.Percentile(0.05), s.Percentile(0.95)))
	row("button", fmt.Sprintf("%+.3f bb/hand over %d", s.PositionMean(statistics.Button), s.Positions[statistics.Button].Hands))
	row("big blind", fmt.Sprintf("%+.3f bb/hand over %d", s.PositionMean(statistics.BigBlind), s.Positions[statistics.BigBlind].Hands))
	row("showdowns", fmt.Sprintf("%s, won %d", percent(s.ShowdownRate()), s.ShowdownWins))
	row("showdown bb", fmt.Sprintf("%+.1f", s.ShowdownBB))
	row("non-showdown bb", fmt.Sprintf("%+.1f (won %d)", s.NonShowdownBB, s.NonShowdownWins))
	row("biggest pot", fmt.Sprintf("%.1f bb", s.MaxPotBB))
	row("big pots", fmt.Sprintf("%d, %+.1f bb", s.BigPots, s.BigPotsBB))
	_ = tw.Flush()

	if err := s.Validate(); err != nil {
		fmt.Fprintf(w, "%s\n", loseStyle.Render("inconsistent statistics: "+err.Error()))
	}
}
