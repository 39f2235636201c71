// Package statistics summarises one player's results over a heads-up session,
// measured in big blinds.
package statistics

import (
	"fmt"
	"math"
	"slices"

	"github.com/lox/headsup/internal/game"
	"github.com/lox/headsup/poker"
)

// Position is where the player sat for a hand
type Position int

const (
	Button Position = iota // posts the small blind
	BigBlind
)

func (p Position) String() string {
	if p == Button {
		return "button"
	}
	return "big blind"
}

// bigPotBB is the pot size, in big blinds, counted as a big pot
const bigPotBB = 50

// HandResult is one hand from the player's point of view
type HandResult struct {
	NetBB    float64 // big blinds won or lost
	Position Position
	Showdown bool
	PotBB    float64
	Street   poker.Street // furthest street dealt
}

// FromGame converts a played hand into seat's result
func FromGame(res *game.HandResult, seat poker.Seat, bigBlind int) HandResult {
	bb := float64(max(bigBlind, 1))
	var net int
	if res.History != nil && int(seat) < len(res.History.Winnings) {
		net = res.History.Winnings[seat]
	}
	pos := BigBlind
	if res.Button == seat {
		pos = Button
	}
	return HandResult{
		NetBB:    float64(net) / bb,
		Position: pos,
		Showdown: res.Showdown,
		PotBB:    float64(res.Pot) / bb,
		Street:   res.Board.Street(),
	}
}

// PositionStats accumulates results for one position
type PositionStats struct {
	Hands  int
	SumBB  float64
	SumBB2 float64
}

// Statistics accumulates hand results
type Statistics struct {
	Hands  int
	SumBB  float64
	SumBB2 float64
	Values []float64

	Showdowns       int
	ShowdownWins    int
	NonShowdownWins int
	ShowdownBB      float64 // wins and losses
	NonShowdownBB   float64
	AllBB           float64

	Positions [2]PositionStats

	// hands that saw each street, by board size
	Streets [poker.StreetRiver + 1]int

	MaxPotBB  float64
	BigPots   int
	BigPotsBB float64
}

// Add incorporates a hand
func (s *Statistics) Add(r HandResult) {
	s.Hands++
	s.SumBB += r.NetBB
	s.SumBB2 += r.NetBB * r.NetBB
	s.Values = append(s.Values, r.NetBB)

	if r.NetBB > 0 {
		if r.Showdown {
			s.ShowdownWins++
		} else {
			s.NonShowdownWins++
		}
	}
	if r.Showdown {
		s.Showdowns++
		s.ShowdownBB += r.NetBB
	} else {
		s.NonShowdownBB += r.NetBB
	}
	s.AllBB += r.NetBB

	if r.Position == Button || r.Position == BigBlind {
		ps := &s.Positions[r.Position]
		ps.Hands++
		ps.SumBB += r.NetBB
		ps.SumBB2 += r.NetBB * r.NetBB
	}

	if r.Street >= poker.StreetPreFlop && r.Street <= poker.StreetRiver {
		s.Streets[r.Street]++
	}

	s.MaxPotBB = max(s.MaxPotBB, r.PotBB)
	if r.PotBB >= bigPotBB {
		s.BigPots++
		s.BigPotsBB += r.NetBB
	}
}

// Mean returns big blinds won per hand
func (s *Statistics) Mean() float64 {
	if s.Hands == 0 {
		return 0
	}
	return s.SumBB / float64(s.Hands)
}

// BBPer100 returns big blinds won per hundred hands
func (s *Statistics) BBPer100() float64 {
	return s.Mean() * 100
}

// Variance returns the sample variance of the per-hand results
func (s *Statistics) Variance() float64 {
	if s.Hands < 2 {
		return 0
	}
	mean := s.Mean()
	return max(0, (s.SumBB2-float64(s.Hands)*mean*mean)/float64(s.Hands-1))
}

func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of the mean
func (s *Statistics) StdError() float64 {
	if s.Hands == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Hands))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// Median returns the median per-hand result
func (s *Statistics) Median() float64 {
	return s.Percentile(0.5)
}

// Percentile interpolates the value at p, between 0 and 1
func (s *Statistics) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := slices.Clone(s.Values)
	slices.Sort(sorted)

	p = min(max(p, 0), 1)
	index := p * float64(len(sorted)-1)
	lower := int(index)
	if lower+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[lower+1]*weight
}

// PositionMean returns the mean result for hands played from pos
func (s *Statistics) PositionMean(pos Position) float64 {
	if pos != Button && pos != BigBlind {
		return 0
	}
	ps := s.Positions[pos]
	if ps.Hands == 0 {
		return 0
	}
	return ps.SumBB / float64(ps.Hands)
}

// ShowdownRate returns the share of hands that reached a showdown
func (s *Statistics) ShowdownRate() float64 {
	if s.Hands == 0 {
		return 0
	}
	return float64(s.Showdowns) / float64(s.Hands)
}

// IsLedgerBalanced checks the showdown split adds up to the total
func (s *Statistics) IsLedgerBalanced() bool {
	return math.Abs(s.AllBB-s.ShowdownBB-s.NonShowdownBB) <= 1e-6
}

// Validate checks the accumulated counters are consistent
func (s *Statistics) Validate() error {
	if !s.IsLedgerBalanced() {
		return fmt.Errorf("ledger mismatch: all=%.6f showdown=%.6f non-showdown=%.6f",
			s.AllBB, s.ShowdownBB, s.NonShowdownBB)
	}
	if s.Hands <= 0 {
		return fmt.Errorf("invalid hands count: %d", s.Hands)
	}
	if len(s.Values) != s.Hands {
		return fmt.Errorf("recorded %d values for %d hands", len(s.Values), s.Hands)
	}
	if s.ShowdownWins > s.Showdowns {
		return fmt.Errorf("%d showdown wins exceeds %d showdowns", s.ShowdownWins, s.Showdowns)
	}
	if wins := s.ShowdownWins + s.NonShowdownWins; wins > s.Hands {
		return fmt.Errorf("%d wins exceeds %d hands", wins, s.Hands)
	}
	if n := s.Positions[Button].Hands + s.Positions[BigBlind].Hands; n != s.Hands {
		return fmt.Errorf("position hands total %d does not match %d hands", n, s.Hands)
	}
	return nil
}

// Merge folds o into s, as if o's hands had been added after s's
func (s *Statistics) Merge(o *Statistics) {
	s.Hands += o.Hands
	s.SumBB += o.SumBB
	s.SumBB2 += o.SumBB2
	s.Values = append(s.Values, o.Values...)

	s.Showdowns += o.Showdowns
	s.ShowdownWins += o.ShowdownWins
	s.NonShowdownWins += o.NonShowdownWins
	s.ShowdownBB += o.ShowdownBB
	s.NonShowdownBB += o.NonShowdownBB
	s.AllBB += o.AllBB

	for i := range s.Positions {
		s.Positions[i].Hands += o.Positions[i].Hands
		s.Positions[i].SumBB += o.Positions[i].SumBB
		s.Positions[i].SumBB2 += o.Positions[i].SumBB2
	}
	for i := range s.Streets {
		s.Streets[i] += o.Streets[i]
	}

	s.MaxPotBB = max(s.MaxPotBB, o.MaxPotBB)
	s.BigPots += o.BigPots
	s.BigPotsBB += o.BigPotsBB
}
