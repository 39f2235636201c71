package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/lox/headsup/internal/bot"
	"github.com/lox/headsup/internal/equity"
	"github.com/lox/headsup/internal/fileutil"
	"github.com/lox/headsup/internal/game"
	"github.com/lox/headsup/internal/history"
	"github.com/lox/headsup/internal/randutil"
	"github.com/lox/headsup/internal/statistics"
	"github.com/lox/headsup/internal/store"
	"github.com/lox/headsup/poker"
)

var errQuit = errors.New("player quit")

// PlayCmd plays heads-up hands against a bot on the terminal
type PlayCmd struct {
	Name     string `help:"Your player name" default:"you"`
	Opponent string `help:"Opponent strategy" enum:"equity,call,fold,random" default:"equity"`
	Hands    int    `short:"n" help:"Number of hands to play (defaults to the config)"`
	History  string `help:"Write the session's hand history to this TOML file" type:"path"`
	Database string `help:"Also store hands in this SQLite file or postgres:// DSN"`
}

func (cmd *PlayCmd) Run(a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rng := randutil.New(a.seed)
	ev := a.evaluator()
	opponent := newOpponent(cmd.Opponent, a, ev, randutil.Derive(rng))
	human, err := newTerminalPlayer(cmd.Name, a.stdin, a.stdout)
	if err != nil {
		return err
	}
	defer func() { _ = human.Close() }()

	table := a.cfg.Table
	g, err := game.New(human, opponent, [2]int{table.Stack, table.Stack}, game.Config{
		SmallBlind: table.SmallBlind,
		BigBlind:   table.BigBlind,
		Evaluator:  ev,
		Rand:       rng,
		Logger:     a.logger,
	})
	if err != nil {
		return err
	}

	hands := cmd.Hands
	if hands <= 0 {
		hands = table.Hands
	}

	fmt.Fprintf(a.stdout, "%s vs %s, blinds %d/%d, %d chips each. Type fold, check, call, raise N or quit.\n",
		handStyle.Render(cmd.Name), handStyle.Render(opponent.Name()), table.SmallBlind, table.BigBlind, table.Stack)

	var (
		records []*history.Hand
		stats   statistics.Statistics
	)
	for g.HandsPlayed() < hands && g.CanContinue() {
		fmt.Fprintf(a.stdout, "\n%s\n", headerStyle.Render(fmt.Sprintf("Hand %d", g.HandsPlayed()+1)))
		res, err := g.PlayHand(ctx)
		if errors.Is(err, errQuit) || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			break
		}
		if err != nil {
			return err
		}
		records = append(records, res.History)
		stats.Add(statistics.FromGame(res, poker.SeatA, table.BigBlind))
		displayHandResult(a.stdout, res, [2]string{cmd.Name, opponent.Name()})
	}

	stacks := g.Stacks()
	fmt.Fprintf(a.stdout, "\n%s after %d hands: %s %d, %s %d\n",
		headerStyle.Render("Session over"), g.HandsPlayed(),
		cmd.Name, stacks[poker.SeatA], opponent.Name(), stacks[poker.SeatB])
	if stats.Hands > 0 {
		displayStats(a.stdout, &stats)
	}

	if cmd.Database != "" && len(records) > 0 {
		if err := storeHands(cmd.Database, a, records); err != nil {
			return err
		}
	}
	if cmd.History != "" && len(records) > 0 {
		if err := writeHistory(cmd.History, records); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s\n", dimStyle.Render(fmt.Sprintf("wrote %d hands to %s", len(records), cmd.History)))
	}
	return nil
}

func newOpponent(strategy string, a *app, ev *poker.Evaluator, rng *rand.Rand) game.Player {
	switch strategy {
	case "call":
		return bot.NewCallBot("callbot")
	case "fold":
		return bot.NewFoldBot("foldbot")
	case "random":
		return bot.NewRandBot("randbot", rng)
	default:
		return bot.New("bot",
			bot.WithTrials(a.cfg.Table.BotTrials),
			bot.WithRand(rng),
			bot.WithEstimator(equity.New(
				equity.WithEvaluator(ev),
				equity.WithWorkers(a.cfg.Equity.Workers),
				equity.WithLogger(a.logger))),
			bot.WithLogger(a.logger))
	}
}

// writeHistory replaces path with the encoded hands in one atomic write
func writeHistory(path string, records []*history.Hand) error {
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		enc := history.NewEncoder(w)
		for _, h := range records {
			if err := enc.Encode(h); err != nil {
				return err
			}
		}
		return nil
	})
}

// storeHands saves the session's hands under a fresh session id
func storeHands(dsn string, a *app, records []*history.Hand) error {
	ctx := context.Background()
	db, err := store.Open(ctx, dsn, a.logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	session := uuid.NewString()
	for _, h := range records {
		if err := db.SaveHand(ctx, session, h); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.stdout, "%s\n", dimStyle.Render(fmt.Sprintf("stored %d hands as session %s", len(records), session)))
	return nil
}

func displayHandResult(w io.Writer, res *game.HandResult, names [2]string) {
	if res.Showdown {
		fmt.Fprintf(w, "board %s, %s shows %s, %s shows %s\n",
			formatCards(res.Board.Cards()),
			names[poker.SeatA], formatCards(res.Hole[poker.SeatA].Cards()),
			names[poker.SeatB], formatCards(res.Hole[poker.SeatB].Cards()))
	}
	switch {
	case res.Chop:
		fmt.Fprintf(w, "%s\n", tieStyle.Render(fmt.Sprintf("Chop, %d chip pot split (%s)", res.Pot, res.Category)))
	case res.Showdown:
		fmt.Fprintf(w, "%s\n", winStyle.Render(fmt.Sprintf("%s wins %d with %s", names[res.Winner], res.Pot, res.Category)))
	default:
		fmt.Fprintf(w, "%s\n", winStyle.Render(fmt.Sprintf("%s wins %d", names[res.Winner], res.Pot)))
	}
	fmt.Fprintf(w, "stacks: %s %d, %s %d\n", names[0], res.Stacks[0], names[1], res.Stacks[1])
}

func displayStats(w io.Writer, s *statistics.Statistics) {
	lo, hi := s.ConfidenceInterval95()
	fmt.Fprintf(w, "%s\n", dimStyle.Render(fmt.Sprintf(
		"%+.1f bb/100 (95%% CI %+.2f to %+.2f bb/hand), button %+.2f, big blind %+.2f, showdowns %s",
		s.BBPer100(), lo, hi, s.PositionMean(statistics.Button), s.PositionMean(statistics.BigBlind),
		percent(s.ShowdownRate()))))
}

// terminalPlayer reads decisions with a line editor: history and tab
// completion on a terminal, plain lines from a pipe
type terminalPlayer struct {
	name string
	rl   *readline.Instance
	out  io.Writer
}

func newTerminalPlayer(name string, in io.Reader, out io.Writer) (*terminalPlayer, error) {
	interactive := isTerminal(in) && isTerminal(out)
	noop := func() error { return nil }

	completer := readline.NewPrefixCompleter(
		readline.PcItem("fold"),
		readline.PcItem("check"),
		readline.PcItem("call"),
		readline.PcItem("raise"),
		readline.PcItem("quit"),
	)
	cfg := &readline.Config{
		Prompt:          "> ",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdin:           io.NopCloser(in),
		Stdout:          out,
		Stderr:          out,
		FuncIsTerminal:  func() bool { return interactive },
	}
	if !interactive {
		cfg.FuncMakeRaw = noop
		cfg.FuncExitRaw = noop
	}
	rl, err := readline.NewEx(cfg)
	if err != nil {
		return nil, fmt.Errorf("starting line editor: %w", err)
	}
	return &terminalPlayer{name: name, rl: rl, out: out}, nil
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func (p *terminalPlayer) Name() string { return p.name }

func (p *terminalPlayer) Close() error { return p.rl.Close() }

func (p *terminalPlayer) Decide(ctx context.Context, view game.View) (game.Action, error) {
	s := view.Status
	if s.Phase == game.Showdown {
		// nothing to hide once the betting is over
		return game.Action{Type: game.Show}, nil
	}

	board := "-"
	if view.Board.Len() > 0 {
		board = formatCards(view.Board.Cards())
	}
	fmt.Fprintf(p.out, "%s  board %s  you %s  pot %d  to call %d  stacks %d/%d\n",
		categoryStyle.Render(s.Phase.String()),
		board,
		handStyle.Render(formatCards(view.Hole.Cards())),
		s.Pot(), s.ToCall(), s.Stacks[view.Seat], s.Stacks[view.Seat.Other()])

	valid := make([]string, len(view.Valid))
	for i, v := range view.Valid {
		valid[i] = v.String()
	}

	for {
		if err := ctx.Err(); err != nil {
			return game.Action{}, err
		}
		p.rl.SetPrompt(fmt.Sprintf("[%s] > ", strings.Join(valid, " ")))
		line, err := p.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			return game.Action{}, errQuit
		}
		if err != nil {
			return game.Action{}, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "q" {
			return game.Action{}, errQuit
		}
		action, err := game.ParseAction(line)
		if err != nil {
			fmt.Fprintf(p.out, "%s\n", loseStyle.Render(err.Error()))
			continue
		}
		if !s.CanTake(action.Type) {
			fmt.Fprintf(p.out, "%s\n", loseStyle.Render(action.Type.String()+" is not allowed now"))
			continue
		}
		return action, nil
	}
}
