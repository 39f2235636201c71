package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAction is returned when an action is not legal in the current state
var ErrInvalidAction = errors.New("game: invalid action")

// ActionType represents the type of action a player can take
type ActionType int

const (
	// Fold discards the hand and concedes the pot
	Fold ActionType = iota
	// Check passes with no bet to call
	Check
	// Call matches the opponent's bet
	Call
	// Raise puts in the call plus Amount more
	Raise
	// Muck concedes at showdown without showing
	Muck
	// Show reveals the hole cards at showdown
	Show
)

// String returns the string representation of an action
func (a ActionType) String() string {
	switch a {
	case Fold:
		return "fold"
	case Check:
		return "check"
	case Call:
		return "call"
	case Raise:
		return "raise"
	case Muck:
		return "muck"
	case Show:
		return "show"
	default:
		return "unknown"
	}
}

// ActionTypeFromString converts a string to an ActionType
func ActionTypeFromString(s string) (ActionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fold", "f":
		return Fold, nil
	case "check", "k":
		return Check, nil
	case "call", "c":
		return Call, nil
	case "raise", "bet", "r":
		return Raise, nil
	case "muck", "m":
		return Muck, nil
	case "show", "s":
		return Show, nil
	default:
		return Fold, fmt.Errorf("%w: unknown action %q", ErrInvalidAction, s)
	}
}

// Action is a decision made by a player. Amount is only used by Raise and is
// the number of chips added on top of a call.
type Action struct {
	Type   ActionType
	Amount int
}

func (a Action) String() string {
	if a.Type == Raise {
		return fmt.Sprintf("raise %d", a.Amount)
	}
	return a.Type.String()
}

// ParseAction parses text such as "call" or "raise 20"
func ParseAction(s string) (Action, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Action{}, fmt.Errorf("%w: empty action", ErrInvalidAction)
	}
	t, err := ActionTypeFromString(fields[0])
	if err != nil {
		return Action{}, err
	}
	if t != Raise {
		if len(fields) > 1 {
			return Action{}, fmt.Errorf("%w: %s takes no amount", ErrInvalidAction, t)
		}
		return Action{Type: t}, nil
	}
	if len(fields) != 2 {
		return Action{}, fmt.Errorf("%w: raise needs an amount", ErrInvalidAction)
	}
	amount, err := strconv.Atoi(fields[1])
	if err != nil || amount <= 0 {
		return Action{}, fmt.Errorf("%w: bad raise amount %q", ErrInvalidAction, fields[1])
	}
	return Action{Type: Raise, Amount: amount}, nil
}
