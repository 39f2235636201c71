package equity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/headsup/internal/randutil"
	"github.com/lox/headsup/poker"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidTrials is returned when fewer than one trial is requested
	ErrInvalidTrials = errors.New("equity: trials must be positive")
	// ErrInvalidHand is returned when the hole cards are missing or collide with the board
	ErrInvalidHand = errors.New("equity: invalid hand")
)

// Result tallies the outcomes of an estimate from the hero's point of view.
// Categories counts the hero's final hand category over all trials.
type Result struct {
	Wins       int
	Losses     int
	Chops      int
	Trials     int
	Categories [poker.StraightFlush + 1]int
}

// WinRate is the fraction of trials won outright
func (r Result) WinRate() float64 {
	if r.Trials == 0 {
		return 0
	}
	return float64(r.Wins) / float64(r.Trials)
}

// LoseRate is the fraction of trials lost outright
func (r Result) LoseRate() float64 {
	if r.Trials == 0 {
		return 0
	}
	return float64(r.Losses) / float64(r.Trials)
}

// DrawRate is whatever remains after wins and losses
func (r Result) DrawRate() float64 {
	return 1 - r.WinRate() - r.LoseRate()
}

func (r *Result) merge(o Result) {
	r.Wins += o.Wins
	r.Losses += o.Losses
	r.Chops += o.Chops
	r.Trials += o.Trials
	for i, n := range o.Categories {
		r.Categories[i] += n
	}
}

// Estimator runs Monte-Carlo trials against one uniformly random opponent
type Estimator struct {
	evaluator *poker.Evaluator
	workers   int
	logger    *log.Logger
}

// Option configures an Estimator
type Option func(*Estimator)

// WithWorkers splits trials across n goroutines. Each worker draws from its own
// generator derived from the caller's, so a seed and worker count reproduce a run.
func WithWorkers(n int) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithEvaluator sets the showdown evaluator
func WithEvaluator(ev *poker.Evaluator) Option {
	return func(e *Estimator) {
		if ev != nil {
			e.evaluator = ev
		}
	}
}

// WithLogger sets the logger used for debug timing
func WithLogger(logger *log.Logger) Option {
	return func(e *Estimator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an estimator. By default it runs on one worker with the AceLow evaluator.
func New(opts ...Option) *Estimator {
	e := &Estimator{
		evaluator: poker.NewEvaluator(),
		workers:   1,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate samples trials random deals: an opponent holding and the rest of the
// board. Rates are relative to trials.
//
// On the river nothing is left to sample but the opponent, so every possible
// holding is enumerated instead. trials must still be positive but is
// otherwise ignored: Trials reports the 990 holdings checked, rates are
// relative to that, and the result is the same for any trials or rng.
func (e *Estimator) Estimate(ctx context.Context, hole poker.HoleCards, board poker.Board, trials int, rng *rand.Rand) (Result, error) {
	if trials <= 0 {
		return Result{}, fmt.Errorf("%w, got %d", ErrInvalidTrials, trials)
	}
	if err := validate(hole, board); err != nil {
		return Result{}, err
	}

	start := time.Now()
	var (
		result Result
		err    error
	)
	if board.Complete() {
		result, err = e.enumerate(ctx, hole, board)
	} else {
		result, err = e.sample(ctx, hole, board, trials, rng)
	}
	if err != nil {
		return Result{}, err
	}

	e.logger.Debug("Equity estimated",
		"hole", hole,
		"board", board.String(),
		"trials", result.Trials,
		"win", result.WinRate(),
		"duration", time.Since(start))
	return result, nil
}

func validate(hole poker.HoleCards, board poker.Board) error {
	if hole.IsZero() {
		return fmt.Errorf("%w: no hole cards", ErrInvalidHand)
	}
	for _, card := range hole.Cards() {
		if board.Contains(card) {
			return fmt.Errorf("%w: %s is on the board", ErrInvalidHand, card)
		}
	}
	return nil
}

func (e *Estimator) sample(ctx context.Context, hole poker.HoleCards, board poker.Board, trials int, rng *rand.Rand) (Result, error) {
	if rng == nil {
		rng = randutil.New(time.Now().UnixNano())
	}

	workers := e.workers
	if workers > trials {
		workers = trials
	}
	if workers == 1 {
		return e.runTrials(ctx, hole, board, trials, rng)
	}

	// Generators are derived up front so the split is reproducible
	rngs := make([]*rand.Rand, workers)
	for w := range rngs {
		rngs[w] = randutil.Derive(rng)
	}

	results := make([]Result, workers)
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		n := trials / workers
		if w < trials%workers {
			n++
		}
		g.Go(func() error {
			r, err := e.runTrials(gctx, hole, board, n, rngs[w])
			results[w] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var total Result
	for _, r := range results {
		total.merge(r)
	}
	return total, nil
}

func (e *Estimator) runTrials(ctx context.Context, hole poker.HoleCards, board poker.Board, n int, rng *rand.Rand) (Result, error) {
	excluded := append(hole.Cards(), board.Cards()...)
	var result Result
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		deck := poker.NewDeck(rng, excluded...)
		cards, err := deck.DealN(2)
		if err != nil {
			return Result{}, fmt.Errorf("dealing opponent: %w", err)
		}
		opponent, err := poker.NewHoleCards(cards...)
		if err != nil {
			return Result{}, fmt.Errorf("dealing opponent: %w", err)
		}

		final := board
		if err := complete(&final, deck); err != nil {
			return Result{}, fmt.Errorf("completing board: %w", err)
		}
		if err := e.tally(&result, hole, opponent, final); err != nil {
			return Result{}, err
		}
	}
	return result, nil
}

// complete deals the missing streets in order
func complete(b *poker.Board, deck *poker.Deck) error {
	if b.Street() == poker.StreetPreFlop {
		flop, err := deck.DealN(3)
		if err != nil {
			return err
		}
		if err := b.Flop(flop[0], flop[1], flop[2]); err != nil {
			return err
		}
	}
	if b.Street() == poker.StreetFlop {
		turn, err := deck.Deal()
		if err != nil {
			return err
		}
		if err := b.Turn(turn); err != nil {
			return err
		}
	}
	if b.Street() == poker.StreetTurn {
		river, err := deck.Deal()
		if err != nil {
			return err
		}
		if err := b.River(river); err != nil {
			return err
		}
	}
	return nil
}

func (e *Estimator) tally(result *Result, hole, opponent poker.HoleCards, board poker.Board) error {
	hero, err := poker.NewPool(hole, board)
	if err != nil {
		return err
	}
	villain, err := poker.NewPool(opponent, board)
	if err != nil {
		return err
	}

	v := e.evaluator.Compare(hero, villain)
	switch {
	case v.Chop():
		result.Chops++
	case v.Winner == poker.SeatA:
		result.Wins++
	default:
		result.Losses++
	}
	result.Categories[e.evaluator.Classify(hero).Category]++
	result.Trials++
	return nil
}

// enumerate compares against every opponent holding left in the deck
func (e *Estimator) enumerate(ctx context.Context, hole poker.HoleCards, board poker.Board) (Result, error) {
	used := poker.NewCardSet(append(hole.Cards(), board.Cards()...)...)
	var remaining []poker.Card
	for _, card := range poker.AllCards() {
		if !used.Contains(card) {
			remaining = append(remaining, card)
		}
	}

	var result Result
	for i := 0; i < len(remaining); i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		for j := i + 1; j < len(remaining); j++ {
			opponent, err := poker.NewHoleCards(remaining[i], remaining[j])
			if err != nil {
				return Result{}, err
			}
			if err := e.tally(&result, hole, opponent, board); err != nil {
				return Result{}, err
			}
		}
	}
	return result, nil
}

var defaultEstimator = New()

// Estimate runs the default single-worker estimator. A complete board is
// enumerated exactly, as with Estimator.Estimate.
func Estimate(ctx context.Context, hole poker.HoleCards, board poker.Board, trials int, rng *rand.Rand) (Result, error) {
	return defaultEstimator.Estimate(ctx, hole, board, trials, rng)
}

// EstimateEquity returns the win and lose fractions for hole against one random opponent
func EstimateEquity(hole poker.HoleCards, board poker.Board, trials int, rng *rand.Rand) (float64, float64, error) {
	r, err := Estimate(context.Background(), hole, board, trials, rng)
	if err != nil {
		return 0, 0, err
	}
	return r.WinRate(), r.LoseRate(), nil
}
