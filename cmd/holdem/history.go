package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lox/headsup/internal/history"
	"github.com/lox/headsup/internal/store"
)

// HistoryCmd prints hands from a TOML hand history file or a hand store
type HistoryCmd struct {
	File     string `arg:"" optional:"" help:"Hand history file written by play or serve" type:"path"`
	Database string `help:"Read hands from this SQLite file or postgres:// DSN instead of a file"`
	Player   string `help:"Only hands involving this player (database only)"`
	Session  string `help:"Only hands from this session id (database only)"`
	Limit    int    `help:"Maximum number of hands to print (0 = all)"`
}

func (cmd *HistoryCmd) Run(a *app) error {
	var (
		hands  []*history.Hand
		source string
		err    error
	)
	switch {
	case cmd.Database != "":
		hands, err = cmd.fromStore(a)
		source = "the database"
	case cmd.File != "":
		hands, err = readHistoryFile(cmd.File)
		source = cmd.File
	default:
		return errors.New("a history file or --database is required")
	}
	if err != nil {
		return err
	}
	if len(hands) == 0 {
		return errors.New("no hands found in " + source)
	}

	limit := cmd.Limit
	if limit <= 0 || limit > len(hands) {
		limit = len(hands)
	}

	for i, h := range hands[:limit] {
		if i > 0 {
			fmt.Fprintln(a.stdout)
		}
		renderHand(a, i+1, h)
	}

	fmt.Fprintf(a.stdout, "\n%s\n", dimStyle.Render(fmt.Sprintf("%d of %d hands", limit, len(hands))))
	return nil
}

func readHistoryFile(path string) ([]*history.Hand, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return history.Decode(f)
}

func (cmd *HistoryCmd) fromStore(a *app) ([]*history.Hand, error) {
	ctx := context.Background()
	db, err := store.Open(ctx, cmd.Database, a.logger)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	hands, err := db.Hands(ctx, store.Query{Player: cmd.Player, Session: cmd.Session})
	if err != nil {
		return nil, err
	}
	if cmd.Player != "" {
		totals, err := db.Totals(ctx, cmd.Player)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(a.stdout, "%s %s over %d hands\n\n",
			handStyle.Render(cmd.Player), fmt.Sprintf("%+d", totals.Net), totals.Hands)
	}
	return hands, nil
}

func renderHand(a *app, n int, h *history.Hand) {
	fmt.Fprintf(a.stdout, "%s %s\n",
		headerStyle.Render(fmt.Sprintf("Hand #%d", n)),
		dimStyle.Render(h.HandID))
	fmt.Fprintf(a.stdout, "players: %s  blinds: %s  stacks: %s\n",
		handStyle.Render(strings.Join(h.Players, " vs ")),
		joinInts(h.BlindsOrStraddles, "/"),
		joinInts(h.StartingStacks, "/"))

	for _, action := range h.Actions {
		fmt.Fprintf(a.stdout, "  %s\n", describeAction(action, h.Players))
	}

	if h.Showdown != "" {
		fmt.Fprintf(a.stdout, "showdown: %s\n", categoryStyle.Render(h.Showdown))
	}
	for i, won := range h.Winnings {
		if i >= len(h.Players) {
			break
		}
		style := tieStyle
		switch {
		case won > 0:
			style = winStyle
		case won < 0:
			style = loseStyle
		}
		fmt.Fprintf(a.stdout, "%s %s\n", h.Players[i], style.Render(fmt.Sprintf("%+d", won)))
	}
}

// describeAction expands a PHH action such as "p1 cbr 20" for display
func describeAction(action string, players []string) string {
	fields := strings.Fields(action)
	if len(fields) < 2 {
		return action
	}

	name := func(p string) string {
		var idx int
		if _, err := fmt.Sscanf(p, "p%d", &idx); err == nil && idx >= 1 && idx <= len(players) {
			return players[idx-1]
		}
		return p
	}

	if fields[0] == "d" {
		switch {
		case fields[1] == "dh" && len(fields) == 4:
			return fmt.Sprintf("%s dealt %s", name(fields[2]), fields[3])
		case fields[1] == "db" && len(fields) == 3:
			return "board " + fields[2]
		}
		return action
	}

	who := name(fields[0])
	switch fields[1] {
	case "f":
		return who + " folds"
	case "cc":
		return who + " checks/calls"
	case "cbr":
		if len(fields) == 3 {
			return fmt.Sprintf("%s raises to %s", who, fields[2])
		}
	case "sm":
		if len(fields) == 3 {
			if fields[2] == "-" {
				return who + " mucks"
			}
			return fmt.Sprintf("%s shows %s", who, fields[2])
		}
	}
	return action
}

func joinInts(values []int, sep string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, sep)
}
