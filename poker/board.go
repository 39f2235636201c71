package poker

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFlopDealt       = errors.New("poker: the flop has already been dealt")
	ErrTurnBeforeFlop  = errors.New("poker: the flop must be dealt before the turn")
	ErrTurnDealt       = errors.New("poker: the turn has already been dealt")
	ErrRiverBeforeTurn = errors.New("poker: the turn must be dealt before the river")
	ErrRiverDealt      = errors.New("poker: the river has already been dealt")
	ErrBoardSize       = errors.New("poker: a board holds 0, 3, 4 or 5 cards")
)

// Street identifies how far the board has been dealt. Its value is the number
// of community cards showing.
type Street int

const (
	StreetPreFlop Street = 0
	StreetFlop    Street = 3
	StreetTurn    Street = 4
	StreetRiver   Street = 5
)

func (s Street) String() string {
	switch s {
	case StreetPreFlop:
		return "preflop"
	case StreetFlop:
		return "flop"
	case StreetTurn:
		return "turn"
	case StreetRiver:
		return "river"
	default:
		return "unknown"
	}
}

// BoardSize is the number of community cards on a complete board
const BoardSize = 5

// Board holds the community cards. It has five slots filled in three strictly
// ordered steps: flop (3), turn (1), river (1).
type Board struct {
	cards [BoardSize]Card
	n     int
}

// NewBoard builds a board from 0, 3, 4 or 5 cards, dealing them street by street
func NewBoard(cards ...Card) (Board, error) {
	var b Board
	switch len(cards) {
	case 0, 3, 4, 5:
	default:
		return Board{}, fmt.Errorf("%w, got %d", ErrBoardSize, len(cards))
	}
	if len(cards) >= 3 {
		if err := b.Flop(cards[0], cards[1], cards[2]); err != nil {
			return Board{}, err
		}
	}
	if len(cards) >= 4 {
		if err := b.Turn(cards[3]); err != nil {
			return Board{}, err
		}
	}
	if len(cards) == 5 {
		if err := b.River(cards[4]); err != nil {
			return Board{}, err
		}
	}
	return b, nil
}

// ParseBoard parses community cards such as "Td7s8h"
func ParseBoard(s string) (Board, error) {
	cards, err := ParseCards(s)
	if err != nil {
		return Board{}, err
	}
	return NewBoard(cards...)
}

// MustParseBoard parses a board and panics on error (for tests)
func MustParseBoard(s string) Board {
	b, err := ParseBoard(s)
	if err != nil {
		panic(fmt.Sprintf("failed to parse board '%s': %v", s, err))
	}
	return b
}

// Flop deals the first three community cards
func (b *Board) Flop(c1, c2, c3 Card) error {
	if b.n > 0 {
		return ErrFlopDealt
	}
	if err := b.place(c1, c2, c3); err != nil {
		return err
	}
	return nil
}

// Turn deals the fourth community card
func (b *Board) Turn(c Card) error {
	switch {
	case b.n < int(StreetFlop):
		return ErrTurnBeforeFlop
	case b.n > int(StreetFlop):
		return ErrTurnDealt
	}
	return b.place(c)
}

// River deals the fifth community card
func (b *Board) River(c Card) error {
	switch {
	case b.n < int(StreetTurn):
		return ErrRiverBeforeTurn
	case b.n > int(StreetTurn):
		return ErrRiverDealt
	}
	return b.place(c)
}

// place appends cards after checking them against each other and the board
func (b *Board) place(cards ...Card) error {
	seen := NewCardSet(b.Cards()...)
	for _, card := range cards {
		if !card.Valid() {
			return fmt.Errorf("%w: %v", ErrInvalidCard, card)
		}
		if seen.Contains(card) {
			return fmt.Errorf("%w: %s", ErrDuplicateCard, card)
		}
		seen.Add(card)
	}
	for _, card := range cards {
		b.cards[b.n] = card
		b.n++
	}
	return nil
}

// Clear removes every card so a new hand can start
func (b *Board) Clear() {
	*b = Board{}
}

// Street reports how far the board has been dealt
func (b *Board) Street() Street {
	return Street(b.n)
}

// Len returns the number of community cards showing
func (b *Board) Len() int {
	return b.n
}

// Complete reports whether all five cards are showing
func (b *Board) Complete() bool {
	return b.n == BoardSize
}

// Cards returns a copy of the community cards showing
func (b *Board) Cards() []Card {
	cards := make([]Card, b.n)
	copy(cards, b.cards[:b.n])
	return cards
}

// Contains reports whether card is showing on the board
func (b *Board) Contains(card Card) bool {
	for _, c := range b.cards[:b.n] {
		if c == card {
			return true
		}
	}
	return false
}

func (b *Board) String() string {
	parts := make([]string, BoardSize)
	for i := range parts {
		if i < b.n {
			parts[i] = b.cards[i].String()
		} else {
			parts[i] = "--"
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// SuitCounts returns how many community cards of each suit are showing
func (b *Board) SuitCounts() [NumSuits]int {
	var counts [NumSuits]int
	for _, card := range b.cards[:b.n] {
		counts[card.Suit]++
	}
	return counts
}

// RankCounts holds the number of cards per rank, indexed by Rank (index 0 is unused)
type RankCounts [NumRanks + 1]int

// CountOption narrows or widens the cards considered by board queries
type CountOption func(*countFilter)

type countFilter struct {
	hole   HoleCards
	merge  bool
	suit   Suit
	suited bool
}

// WithHole adds a player's hole cards to the board for the query
func WithHole(h HoleCards) CountOption {
	return func(f *countFilter) {
		f.hole = h
		f.merge = true
	}
}

// OfSuit restricts the query to cards of one suit
func OfSuit(s Suit) CountOption {
	return func(f *countFilter) {
		f.suit = s
		f.suited = true
	}
}

func (b *Board) selected(opts []CountOption) []Card {
	var f countFilter
	for _, opt := range opts {
		opt(&f)
	}
	cards := b.Cards()
	if f.merge {
		cards = append(cards, f.hole.Cards()...)
	}
	if !f.suited {
		return cards
	}
	kept := cards[:0]
	for _, card := range cards {
		if card.Suit == f.suit {
			kept = append(kept, card)
		}
	}
	return kept
}

// RankCounts counts the cards of each rank on the board, optionally merged
// with hole cards and restricted to one suit
func (b *Board) RankCounts(opts ...CountOption) RankCounts {
	var counts RankCounts
	for _, card := range b.selected(opts) {
		counts[card.Rank]++
	}
	return counts
}

// StraightHigh returns the top of the best five-card run among the selected
// cards. Aces play both low and high, so a wheel reports 5 and a broadway
// straight reports 14.
func (b *Board) StraightHigh(opts ...CountOption) (int, bool) {
	return straightHigh(rankMask(b.selected(opts)))
}

// rankMask sets bit r for every rank r present
func rankMask(cards []Card) uint16 {
	var mask uint16
	for _, card := range cards {
		mask |= 1 << card.Rank
	}
	return mask
}

// straightHigh finds the highest run of five consecutive ranks in mask.
// Bit 1 (Ace) also counts as bit 14.
func straightHigh(mask uint16) (int, bool) {
	if mask&(1<<Ace) != 0 {
		mask |= 1 << highAce
	}
	for high := highAce; high >= int(Five); high-- {
		run := uint16(0x1F) << (high - 4)
		if mask&run == run {
			return high, true
		}
	}
	return 0, false
}
