package poker

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrEmptyDeck is returned when dealing from a deck with no cards left
var ErrEmptyDeck = errors.New("poker: cannot deal from an empty deck")

// Deck is the 52-card domain minus an exclusion set, in random order.
// Cards are dealt from the top without replacement.
type Deck struct {
	cards [NumSuits * NumRanks]Card // Fixed size array
	size  int
	next  int
	rng   *rand.Rand
}

// NewDeck creates a shuffled deck with explicit RNG. Cards in exclude (already
// dealt elsewhere) are left out of the deck.
func NewDeck(rng *rand.Rand, exclude ...Card) *Deck {
	d := &Deck{rng: rng}

	excluded := NewCardSet(exclude...)
	for _, card := range AllCards() {
		if excluded.Contains(card) {
			continue
		}
		d.cards[d.size] = card
		d.size++
	}

	d.Shuffle()
	return d
}

// Shuffle returns every card to the deck and shuffles using Fisher-Yates
func (d *Deck) Shuffle() {
	d.next = 0
	for i := d.size - 1; i > 0; i-- {
		var j int
		if d.rng != nil {
			j = d.rng.IntN(i + 1)
		} else {
			j = rand.IntN(i + 1)
		}
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal removes and returns the top card
func (d *Deck) Deal() (Card, error) {
	if d.next >= d.size {
		return Card{}, ErrEmptyDeck
	}
	card := d.cards[d.next]
	d.next++
	return card, nil
}

// DealN deals n cards from the deck. Nothing is dealt if fewer than n remain.
func (d *Deck) DealN(n int) ([]Card, error) {
	if n < 0 {
		return nil, fmt.Errorf("poker: cannot deal %d cards", n)
	}
	if d.next+n > d.size {
		return nil, fmt.Errorf("dealing %d cards with %d left: %w", n, d.Remaining(), ErrEmptyDeck)
	}
	cards := make([]Card, n)
	copy(cards, d.cards[d.next:d.next+n])
	d.next += n
	return cards, nil
}

// Remaining returns the number of cards left in the deck
func (d *Deck) Remaining() int {
	return d.size - d.next
}
