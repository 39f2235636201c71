package bot

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/headsup/internal/equity"
	"github.com/lox/headsup/internal/game"
	"github.com/lox/headsup/internal/randutil"
	"github.com/lox/headsup/poker"
)

// Equity thresholds for the rule-based strategy
const (
	StrongEquity   = 0.7
	ModerateEquity = 0.4
)

// DefaultTrials is the number of Monte-Carlo deals per decision
const DefaultTrials = 500

// Decider plays by estimated equity: raise when strong, call when moderate,
// otherwise check or fold. It always shows at showdown.
type Decider struct {
	name      string
	estimator *equity.Estimator
	trials    int
	rng       *rand.Rand
	logger    *log.Logger
}

// Option configures a Decider
type Option func(*Decider)

// WithTrials sets how many deals each equity estimate samples
func WithTrials(n int) Option {
	return func(d *Decider) {
		if n > 0 {
			d.trials = n
		}
	}
}

// WithEstimator sets the equity estimator
func WithEstimator(e *equity.Estimator) Option {
	return func(d *Decider) {
		if e != nil {
			d.estimator = e
		}
	}
}

// WithRand sets the random source used for sampling
func WithRand(rng *rand.Rand) Option {
	return func(d *Decider) {
		if rng != nil {
			d.rng = rng
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(d *Decider) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Decider with the given name
func New(name string, opts ...Option) *Decider {
	d := &Decider{
		name:      name,
		estimator: equity.New(),
		trials:    DefaultTrials,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.rng == nil {
		d.rng = randutil.New(time.Now().UnixNano())
	}
	d.logger = d.logger.WithPrefix(name)
	return d
}

// Name returns the player name
func (d *Decider) Name() string {
	return d.name
}

// Decide estimates equity for the view and applies the betting rules
func (d *Decider) Decide(ctx context.Context, view game.View) (game.Action, error) {
	if view.Status.Phase == game.Showdown {
		return game.Action{Type: game.Show}, nil
	}

	res, err := d.estimator.Estimate(ctx, view.Hole, view.Board, d.trials, d.rng)
	if err != nil {
		return game.Action{}, fmt.Errorf("bot %s: %w", d.name, err)
	}
	eq := res.WinRate()
	premium := view.Board.Len() == 0 && poker.CategorizeHoleCards(view.Hole) == poker.CategoryPremium

	action := Choose(eq, premium, view.Status)
	d.logger.Debug("Decision",
		"phase", view.Status.Phase,
		"hole", view.Hole,
		"board", view.Board.String(),
		"equity", fmt.Sprintf("%.3f", eq),
		"premium", premium,
		"action", action)
	return action, nil
}

// Choose applies the equity rules to a betting status. premium treats the
// hand as strong whatever its equity.
func Choose(eq float64, premium bool, s game.Status) game.Action {
	switch {
	case eq > StrongEquity || premium:
		if s.CanTake(game.Raise) {
			return game.Action{Type: game.Raise, Amount: RaiseSize(s)}
		}
		if s.CanTake(game.Call) {
			return game.Action{Type: game.Call}
		}
		if s.CanTake(game.Check) {
			return game.Action{Type: game.Check}
		}
	case eq > ModerateEquity:
		if s.CanTake(game.Call) {
			return game.Action{Type: game.Call}
		}
		if s.CanTake(game.Check) {
			return game.Action{Type: game.Check}
		}
	default:
		if s.CanTake(game.Check) {
			return game.Action{Type: game.Check}
		}
	}
	return game.Action{Type: game.Fold}
}

// RaiseSize is twice the minimum bet or half the pot, whichever is larger.
// The minimum bet is the big blind or the amount to call.
func RaiseSize(s game.Status) int {
	minBet := max(s.BigBlind, s.ToCall())
	return max(2*minBet, s.Pot()/2)
}
