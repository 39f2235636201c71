package game

import (
	"errors"

	"github.com/lox/headsup/poker"
)

// ErrGameFinished is returned when advancing past the end of a hand
var ErrGameFinished = errors.New("game: hand is already finished")

// Phase is the stage of a hand
type Phase int

const (
	PreFlop Phase = iota
	Flop
	Turn
	River
	Showdown
	Finished
)

func (p Phase) String() string {
	switch p {
	case PreFlop:
		return "preflop"
	case Flop:
		return "flop"
	case Turn:
		return "turn"
	case River:
		return "river"
	case Showdown:
		return "showdown"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Next returns the phase that follows p
func (p Phase) Next() (Phase, error) {
	if p >= Finished {
		return Finished, ErrGameFinished
	}
	return p + 1, nil
}

// Status is the public betting state of a hand. Bets are the chips each seat
// has committed this hand; Stacks are the chips still behind.
type Status struct {
	Stacks        [2]int
	Bets          [2]int
	Phase         Phase
	Current       poker.Seat
	LastAggressor poker.Seat
	BigBlind      int
}

// Pot returns the chips committed by both seats
func (s Status) Pot() int {
	return s.Bets[0] + s.Bets[1]
}

// ToCall returns what the current seat must add to match the opponent
func (s Status) ToCall() int {
	me, other := s.Current, s.Current.Other()
	return max(s.Bets[other]-s.Bets[me], 0)
}

// ValidActions lists what the current seat may do
func (s Status) ValidActions() []ActionType {
	if s.Phase == Showdown {
		return []ActionType{Muck, Show}
	}
	if s.Phase == Finished {
		return nil
	}
	me, other := s.Current, s.Current.Other()
	valid := []ActionType{Fold}
	if s.Bets[me] >= s.Bets[other] {
		valid = append(valid, Check)
	} else {
		valid = append(valid, Call)
	}
	// Raising needs chips beyond the call and an opponent with chips left to answer
	if s.Stacks[me] > s.ToCall() && s.Stacks[other] > 0 {
		valid = append(valid, Raise)
	}
	return valid
}

// CanTake reports whether t is among the valid actions
func (s Status) CanTake(t ActionType) bool {
	for _, v := range s.ValidActions() {
		if v == t {
			return true
		}
	}
	return false
}
