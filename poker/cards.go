package poker

import (
	"fmt"
	"math/bits"
	"strings"
)

// Suit represents a card suit. Suits carry no ordering.
type Suit uint8

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

// NumSuits is the number of suits in the deck
const NumSuits = 4

// Suits lists every suit in canonical order
var Suits = [NumSuits]Suit{Spades, Hearts, Diamonds, Clubs}

// String returns the single letter used in card notation
func (s Suit) String() string {
	switch s {
	case Spades:
		return "s"
	case Hearts:
		return "h"
	case Diamonds:
		return "d"
	case Clubs:
		return "c"
	default:
		return "?"
	}
}

// Symbol returns the unicode suit symbol (e.g. "♠")
func (s Suit) Symbol() string {
	switch s {
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	default:
		return "?"
	}
}

// Valid reports whether s is one of the four suits
func (s Suit) Valid() bool {
	return s < NumSuits
}

// Rank represents a card rank from 1 (Ace) to 13 (King).
type Rank uint8

const (
	Ace Rank = iota + 1
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

// NumRanks is the number of distinct ranks
const NumRanks = 13

// highAce is the value an Ace takes on top of a straight
const highAce = 14

// String returns the rank character used in card notation
func (r Rank) String() string {
	switch r {
	case Ace:
		return "A"
	case Ten:
		return "T"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	}
	if r >= Two && r <= Nine {
		return string(rune('0' + r))
	}
	return "?"
}

// Valid reports whether r is within 1..13
func (r Rank) Valid() bool {
	return r >= Ace && r <= King
}

// Card is an immutable playing card. Cards compare by value and can be used
// as map keys.
type Card struct {
	Rank Rank
	Suit Suit
}

// NewCard creates a card from a rank and suit
func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// Valid reports whether the card belongs to the 52-card domain
func (c Card) Valid() bool {
	return c.Rank.Valid() && c.Suit.Valid()
}

// String returns the two character notation (e.g. "As", "Td")
func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// Pretty returns the card with a unicode suit symbol (e.g. "A♠")
func (c Card) Pretty() string {
	return c.Rank.String() + c.Suit.Symbol()
}

// index maps a valid card to 0..51
func (c Card) index() int {
	return int(c.Suit)*NumRanks + int(c.Rank-1)
}

// AllCards returns the full 52-card domain in canonical order
func AllCards() []Card {
	cards := make([]Card, 0, NumSuits*NumRanks)
	for _, suit := range Suits {
		for rank := Ace; rank <= King; rank++ {
			cards = append(cards, NewCard(rank, suit))
		}
	}
	return cards
}

// ParseCard parses a single card such as "As", "Td" or "10h"
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || len(s) > 3 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}

	rank, err := parseRank(s[:len(s)-1])
	if err != nil {
		return Card{}, fmt.Errorf("invalid card %q: %w", s, err)
	}
	suit, err := parseSuit(s[len(s)-1])
	if err != nil {
		return Card{}, fmt.Errorf("invalid card %q: %w", s, err)
	}
	return NewCard(rank, suit), nil
}

// ParseCards parses a run of card notation such as "AsKd Qh".
// Whitespace is ignored; tens may be written as "T" or "10".
func ParseCards(s string) ([]Card, error) {
	s = strings.Join(strings.Fields(s), "")
	cards := []Card{}
	for i := 0; i < len(s); {
		width := 2
		if strings.HasPrefix(s[i:], "10") {
			width = 3
		}
		if i+width > len(s) {
			return nil, fmt.Errorf("incomplete card at position %d", i)
		}
		card, err := ParseCard(s[i : i+width])
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		cards = append(cards, card)
		i += width
	}
	return cards, nil
}

// MustParseCards parses cards and panics on error (for tests)
func MustParseCards(s string) []Card {
	cards, err := ParseCards(s)
	if err != nil {
		panic(fmt.Sprintf("failed to parse cards '%s': %v", s, err))
	}
	return cards
}

func parseRank(s string) (Rank, error) {
	switch strings.ToUpper(s) {
	case "A":
		return Ace, nil
	case "K":
		return King, nil
	case "Q":
		return Queen, nil
	case "J":
		return Jack, nil
	case "T", "10":
		return Ten, nil
	}
	if len(s) == 1 && s[0] >= '2' && s[0] <= '9' {
		return Rank(s[0] - '0'), nil
	}
	return 0, fmt.Errorf("unknown rank %q", s)
}

func parseSuit(c byte) (Suit, error) {
	switch c {
	case 's', 'S':
		return Spades, nil
	case 'h', 'H':
		return Hearts, nil
	case 'd', 'D':
		return Diamonds, nil
	case 'c', 'C':
		return Clubs, nil
	default:
		return 0, fmt.Errorf("unknown suit %q", c)
	}
}

// FormatCards joins cards with spaces
func FormatCards(cards []Card) string {
	parts := make([]string, len(cards))
	for i, card := range cards {
		parts[i] = card.String()
	}
	return strings.Join(parts, " ")
}

// CardSet represents a set of cards using a bitset.
// Each card maps to a bit: index = suit*13 + (rank-1)
type CardSet uint64

// NewCardSet creates a CardSet from a slice of cards
func NewCardSet(cards ...Card) CardSet {
	var cs CardSet
	for _, card := range cards {
		cs.Add(card)
	}
	return cs
}

// Add adds a card to the set. Invalid cards are ignored.
func (cs *CardSet) Add(card Card) {
	if !card.Valid() {
		return
	}
	*cs |= 1 << card.index()
}

// Contains checks if a card is in the set
func (cs CardSet) Contains(card Card) bool {
	return card.Valid() && cs&(1<<card.index()) != 0
}

// Len returns the number of cards in the set
func (cs CardSet) Len() int {
	return bits.OnesCount64(uint64(cs))
}

// Cards returns the members of the set in canonical order
func (cs CardSet) Cards() []Card {
	cards := make([]Card, 0, cs.Len())
	for _, card := range AllCards() {
		if cs.Contains(card) {
			cards = append(cards, card)
		}
	}
	return cards
}
