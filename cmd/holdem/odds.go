package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/lox/headsup/internal/equity"
	"github.com/lox/headsup/internal/randutil"
	"github.com/lox/headsup/poker"
)

// OddsCmd estimates how often a hand beats a random opponent
type OddsCmd struct {
	Hole          string `arg:"" help:"Hole cards, e.g. 'AsKs' or 'As Ks'"`
	Board         string `short:"b" help:"Community cards dealt so far (0, 3, 4 or 5), e.g. 'Td7s8h'"`
	Trials        int    `short:"t" help:"Number of Monte Carlo trials (defaults to the config)"`
	Workers       int    `short:"w" help:"Parallel workers (defaults to the config)"`
	Possibilities bool   `short:"p" help:"Show how often each hand category is made"`
}

func (cmd *OddsCmd) Run(a *app) error {
	hole, err := poker.ParseHoleCards(cmd.Hole)
	if err != nil {
		return fmt.Errorf("hole cards: %w", err)
	}
	board, err := poker.ParseBoard(cmd.Board)
	if err != nil {
		return fmt.Errorf("board: %w", err)
	}

	trials := cmd.Trials
	if trials <= 0 {
		trials = a.cfg.Equity.Trials
	}
	workers := cmd.Workers
	if workers <= 0 {
		workers = a.cfg.Equity.Workers
	}

	est := equity.New(
		equity.WithWorkers(workers),
		equity.WithEvaluator(a.evaluator()),
		equity.WithLogger(a.logger))

	start := time.Now()
	res, err := est.Estimate(context.Background(), hole, board, trials, randutil.New(a.seed))
	if err != nil {
		return err
	}
	duration := time.Since(start)

	displayOdds(a, hole, board, res, cmd.Possibilities)
	fmt.Fprintf(a.stdout, "\n%s\n", dimStyle.Render(fmt.Sprintf("%d trials in %v", res.Trials, duration.Truncate(time.Millisecond))))
	return nil
}

func displayOdds(a *app, hole poker.HoleCards, board poker.Board, res equity.Result, possibilities bool) {
	if board.Len() > 0 {
		fmt.Fprintf(a.stdout, "%s\n%s\n\n", headerStyle.Render("board"), formatCards(board.Cards()))
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
		headerStyle.Render("hand"),
		headerStyle.Render("win"),
		headerStyle.Render("lose"),
		headerStyle.Render("chop"))
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
		handStyle.Render(formatCards(hole.Cards())),
		winStyle.Render(percent(res.WinRate())),
		loseStyle.Render(percent(res.LoseRate())),
		tieStyle.Render(percent(res.DrawRate())))
	_ = w.Flush()

	if !possibilities || res.Trials == 0 {
		return
	}

	fmt.Fprintln(a.stdout)
	w = tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\n", categoryStyle.Render("made hand"), handStyle.Render(formatCards(hole.Cards())))
	for i := len(res.Categories) - 1; i >= 0; i-- {
		c, count := poker.HandCategory(i), res.Categories[i]
		if count == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n",
			categoryStyle.Render(c.String()),
			percent(float64(count)/float64(res.Trials)))
	}
	_ = w.Flush()
}
