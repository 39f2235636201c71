package bot

import (
	"context"
	"math/rand/v2"

	"github.com/lox/headsup/internal/game"
)

// CallBot checks or calls every street and shows at showdown
type CallBot struct {
	name string
}

// NewCallBot creates a new CallBot instance
func NewCallBot(name string) *CallBot {
	return &CallBot{name: name}
}

func (c *CallBot) Name() string { return c.name }

func (c *CallBot) Decide(_ context.Context, view game.View) (game.Action, error) {
	return firstOf(view.Status, game.Show, game.Check, game.Call, game.Fold), nil
}

// FoldBot checks when it can and folds otherwise
type FoldBot struct {
	name string
}

// NewFoldBot creates a new FoldBot instance
func NewFoldBot(name string) *FoldBot {
	return &FoldBot{name: name}
}

func (f *FoldBot) Name() string { return f.name }

func (f *FoldBot) Decide(_ context.Context, view game.View) (game.Action, error) {
	return firstOf(view.Status, game.Muck, game.Check, game.Fold), nil
}

// RandBot makes uniform random legal actions. Raises add between one big
// blind and the pot.
type RandBot struct {
	name string
	rng  *rand.Rand
}

// NewRandBot creates a new RandBot instance
func NewRandBot(name string, rng *rand.Rand) *RandBot {
	return &RandBot{name: name, rng: rng}
}

func (r *RandBot) Name() string { return r.name }

func (r *RandBot) Decide(_ context.Context, view game.View) (game.Action, error) {
	valid := view.Status.ValidActions()
	if len(valid) == 0 {
		return game.Action{Type: game.Fold}, nil
	}
	choice := valid[r.rng.IntN(len(valid))]
	if choice != game.Raise {
		return game.Action{Type: choice}, nil
	}
	lo := max(view.Status.BigBlind, 1)
	hi := max(view.Status.Pot(), lo)
	return game.Action{Type: game.Raise, Amount: lo + r.rng.IntN(hi-lo+1)}, nil
}

// firstOf returns the first preferred action that is legal
func firstOf(s game.Status, prefs ...game.ActionType) game.Action {
	for _, t := range prefs {
		if s.CanTake(t) {
			return game.Action{Type: t}
		}
	}
	return game.Action{Type: game.Fold}
}
