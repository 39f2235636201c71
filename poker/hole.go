package poker

import (
	"errors"
	"fmt"
)

var (
	// ErrHoleCardCount is returned when hole cards are built from anything but two cards
	ErrHoleCardCount = errors.New("poker: hole cards must amount to 2 cards")
	// ErrDuplicateCard is returned when the same card appears twice
	ErrDuplicateCard = errors.New("poker: duplicate card")
	// ErrInvalidCard is returned for a card outside the 52-card domain
	ErrInvalidCard = errors.New("poker: invalid card")
)

// HoleCards are a player's two private cards. They form an unordered set:
// {As, Kd} equals {Kd, As}.
type HoleCards struct {
	cards [2]Card
}

// NewHoleCards builds hole cards from exactly two distinct cards
func NewHoleCards(cards ...Card) (HoleCards, error) {
	if len(cards) != 2 {
		return HoleCards{}, fmt.Errorf("%w, not %d", ErrHoleCardCount, len(cards))
	}
	for _, card := range cards {
		if !card.Valid() {
			return HoleCards{}, fmt.Errorf("%w: %v", ErrInvalidCard, card)
		}
	}
	if cards[0] == cards[1] {
		return HoleCards{}, fmt.Errorf("%w: %s", ErrDuplicateCard, cards[0])
	}
	return HoleCards{cards: [2]Card{cards[0], cards[1]}}, nil
}

// ParseHoleCards parses hole cards from notation such as "AsKd"
func ParseHoleCards(s string) (HoleCards, error) {
	cards, err := ParseCards(s)
	if err != nil {
		return HoleCards{}, err
	}
	return NewHoleCards(cards...)
}

// MustParseHoleCards parses hole cards and panics on error (for tests)
func MustParseHoleCards(s string) HoleCards {
	h, err := ParseHoleCards(s)
	if err != nil {
		panic(fmt.Sprintf("failed to parse hole cards '%s': %v", s, err))
	}
	return h
}

// Cards returns a copy of the two cards
func (h HoleCards) Cards() []Card {
	return []Card{h.cards[0], h.cards[1]}
}

// Contains reports whether card is one of the hole cards
func (h HoleCards) Contains(card Card) bool {
	return h.cards[0] == card || h.cards[1] == card
}

// SuitCount returns how many of the hole cards have the given suit
func (h HoleCards) SuitCount(suit Suit) int {
	n := 0
	for _, card := range h.cards {
		if card.Suit == suit {
			n++
		}
	}
	return n
}

// IsZero reports whether h was never dealt
func (h HoleCards) IsZero() bool {
	return h == HoleCards{}
}

// Equal compares two sets of hole cards regardless of order
func (h HoleCards) Equal(other HoleCards) bool {
	return h == other || (h.cards[0] == other.cards[1] && h.cards[1] == other.cards[0])
}

func (h HoleCards) String() string {
	return h.cards[0].String() + h.cards[1].String()
}
