package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/lox/headsup/internal/config"
	"github.com/lox/headsup/internal/logging"
	"github.com/lox/headsup/internal/randutil"
	"github.com/lox/headsup/poker"
)

// version is set by ldflags during build
var version = "dev"

// Globals are the flags shared by every command
type Globals struct {
	Config   string `help:"HCL configuration file" default:"holdem.hcl" type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)"`
	Seed     *int64 `help:"Random seed for reproducible results"`
	NoColor  bool   `help:"Disable colored output"`
}

type CLI struct {
	Globals

	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Odds     OddsCmd          `cmd:"" help:"Estimate equity of a hand against a random opponent"`
	Showdown ShowdownCmd      `cmd:"" help:"Decide a showdown between two hands"`
	Play     PlayCmd          `cmd:"" help:"Play heads-up against a bot in the terminal"`
	Simulate SimulateCmd      `cmd:"" help:"Play two bots against each other and report statistics"`
	Serve    ServeCmd         `cmd:"" help:"Run the websocket table server"`
	History  HistoryCmd       `cmd:"" help:"Print a hand history file"`
}

// app is what commands run against once the globals are resolved
type app struct {
	cfg    *config.Config
	logger *log.Logger
	seed   int64
	stdin  io.Reader
	stdout io.Writer
}

// evaluator returns the evaluator for the configured ace order
func (a *app) evaluator() *poker.Evaluator {
	order, _ := a.cfg.AceOrder()
	return poker.NewEvaluator(poker.WithAceOrder(order))
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "holdem: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("holdem"),
		kong.Description("Heads-up Texas hold'em: odds, showdowns and a bot to play against"),
		kong.UsageOnError(),
		kong.Writers(stdout, os.Stderr),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	if err != nil {
		return err
	}
	ctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	a, closer, err := setup(cli.Globals, stdin, stdout)
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}
	return ctx.Run(a)
}

// setup loads the configuration and builds the logger
func setup(g Globals, stdin io.Reader, stdout io.Writer) (*app, io.Closer, error) {
	if g.NoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, nil, err
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config %s: %w", g.Config, err)
	}

	opts := logging.Options{Level: cfg.Log.Level, Prefix: "holdem"}
	var (
		logger *log.Logger
		closer io.Closer
	)
	if cfg.Log.File != "" {
		logger, closer, err = logging.OpenFile(cfg.Log.File, opts)
	} else {
		logger, err = logging.New(opts)
	}
	if err != nil {
		return nil, nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		seed:   randutil.SeedOrNow(g.Seed),
		stdin:  stdin,
		stdout: stdout,
	}, closer, nil
}
