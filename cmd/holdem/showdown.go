package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/lox/headsup/poker"
)

// ShowdownCmd compares two hands on a complete board
type ShowdownCmd struct {
	Board    string `arg:"" help:"Five community cards, e.g. 'TsJsQs2h3d'"`
	A        string `arg:"" name:"a" help:"Seat A hole cards"`
	B        string `arg:"" name:"b" help:"Seat B hole cards"`
	AceOrder string `help:"Rank aces low or high when comparing (defaults to the config)"`
}

func (cmd *ShowdownCmd) Run(a *app) error {
	board, err := poker.ParseBoard(cmd.Board)
	if err != nil {
		return fmt.Errorf("board: %w", err)
	}
	holeA, err := poker.ParseHoleCards(cmd.A)
	if err != nil {
		return fmt.Errorf("seat A: %w", err)
	}
	holeB, err := poker.ParseHoleCards(cmd.B)
	if err != nil {
		return fmt.Errorf("seat B: %w", err)
	}

	ev := a.evaluator()
	if cmd.AceOrder != "" {
		order, err := poker.ParseAceOrder(cmd.AceOrder)
		if err != nil {
			return err
		}
		ev = poker.NewEvaluator(poker.WithAceOrder(order))
	}

	verdict, err := ev.Showdown(board, holeA, holeB)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "%s\n%s\n\n", headerStyle.Render("board"), formatCards(board.Cards()))

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\n", headerStyle.Render("seat"), headerStyle.Render("hand"), headerStyle.Render("made"))
	for _, seat := range []poker.Seat{poker.SeatA, poker.SeatB} {
		hole := holeA
		if seat == poker.SeatB {
			hole = holeB
		}
		pool, err := poker.NewPool(hole, board)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			seat,
			handStyle.Render(formatCards(hole.Cards())),
			categoryStyle.Render(ev.Classify(pool).String()))
	}
	_ = w.Flush()

	style := winStyle
	if verdict.Chop() {
		style = tieStyle
	}
	fmt.Fprintf(a.stdout, "\n%s (%s aces)\n", style.Render(verdict.String()), ev.AceOrder())
	return nil
}
