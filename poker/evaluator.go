package poker

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompleteBoard is returned when a showdown is attempted before the river
	ErrIncompleteBoard = errors.New("poker: showdown needs all five community cards")
	// ErrInvalidShowdown is returned when the hole cards collide with each other or the board
	ErrInvalidShowdown = errors.New("poker: invalid showdown")
)

// Seat identifies one of the two players
type Seat uint8

const (
	SeatA Seat = iota
	SeatB
)

// Other returns the opposing seat
func (s Seat) Other() Seat {
	return 1 - s
}

func (s Seat) String() string {
	if s == SeatA {
		return "A"
	}
	return "B"
}

// Verdict is the outcome of comparing two pools. A verdict that is not
// decisive is a chop and Winner carries no meaning.
type Verdict struct {
	Decisive bool
	Winner   Seat
	Category HandCategory
}

// Chop reports whether the pot is split
func (v Verdict) Chop() bool {
	return !v.Decisive
}

func (v Verdict) String() string {
	if !v.Decisive {
		return fmt.Sprintf("chop (%s)", v.Category)
	}
	return fmt.Sprintf("%s wins (%s)", v.Winner, v.Category)
}

// AceOrder decides the value of an Ace outside straights
type AceOrder uint8

const (
	// AceLow values an Ace as 1 for every comparison except straights
	AceLow AceOrder = iota
	// AceHigh values an Ace as 14, as in standard poker
	AceHigh
)

func (o AceOrder) String() string {
	if o == AceHigh {
		return "high"
	}
	return "low"
}

// ParseAceOrder accepts "low" or "high"
func ParseAceOrder(s string) (AceOrder, error) {
	switch s {
	case "low", "":
		return AceLow, nil
	case "high":
		return AceHigh, nil
	default:
		return AceLow, fmt.Errorf("poker: unknown ace order %q", s)
	}
}

// Pool is one player's seven cards at showdown: two hole cards and a full board
type Pool struct {
	hole  HoleCards
	board [BoardSize]Card
}

// NewPool combines hole cards with a complete board. All seven cards must be distinct.
func NewPool(hole HoleCards, board Board) (Pool, error) {
	if !board.Complete() {
		return Pool{}, fmt.Errorf("%w: %d cards showing", ErrIncompleteBoard, board.Len())
	}
	if hole.IsZero() {
		return Pool{}, fmt.Errorf("%w, not 0", ErrHoleCardCount)
	}
	for _, card := range hole.Cards() {
		if board.Contains(card) {
			return Pool{}, fmt.Errorf("%w: %s", ErrDuplicateCard, card)
		}
	}
	return Pool{hole: hole, board: board.cards}, nil
}

// Hole returns the player's hole cards
func (p Pool) Hole() HoleCards {
	return p.hole
}

// Cards returns all seven cards, hole cards first
func (p Pool) Cards() []Card {
	cards := make([]Card, 0, 7)
	cards = append(cards, p.hole.cards[:]...)
	return append(cards, p.board[:]...)
}

// Evaluator ranks showdowns by walking the hand categories from strongest to weakest
type Evaluator struct {
	aceOrder AceOrder
}

// Option configures an Evaluator
type Option func(*Evaluator)

// WithAceOrder sets how Aces are valued outside straights
func WithAceOrder(order AceOrder) Option {
	return func(e *Evaluator) {
		e.aceOrder = order
	}
}

// NewEvaluator returns an evaluator, AceLow unless configured otherwise
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{aceOrder: AceLow}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AceOrder reports the configured ace ordering
func (e *Evaluator) AceOrder() AceOrder {
	return e.aceOrder
}

// Compare decides the showdown between two pools sharing a board.
// Evaluation stops at the strongest category either side makes: if only one
// side makes it that side wins, otherwise the tie-break keys decide and equal
// keys split the pot.
func (e *Evaluator) Compare(a, b Pool) Verdict {
	sa, sb := e.stats(a), e.stats(b)
	for _, c := range categories {
		ka, okA := c.eval(&sa)
		kb, okB := c.eval(&sb)
		switch {
		case okA && okB:
			switch cmp := compareKeys(ka, kb); {
			case cmp > 0:
				return Verdict{Decisive: true, Winner: SeatA, Category: c.category}
			case cmp < 0:
				return Verdict{Decisive: true, Winner: SeatB, Category: c.category}
			default:
				return Verdict{Category: c.category}
			}
		case okA:
			return Verdict{Decisive: true, Winner: SeatA, Category: c.category}
		case okB:
			return Verdict{Decisive: true, Winner: SeatB, Category: c.category}
		}
	}
	// high card always qualifies
	return Verdict{Category: HighCard}
}

// Showdown validates the hands and compares them
func (e *Evaluator) Showdown(board Board, a, b HoleCards) (Verdict, error) {
	if !board.Complete() {
		return Verdict{}, fmt.Errorf("%w: %w", ErrInvalidShowdown, ErrIncompleteBoard)
	}
	seen := NewCardSet(board.Cards()...)
	for _, card := range append(a.Cards(), b.Cards()...) {
		if !card.Valid() {
			return Verdict{}, fmt.Errorf("%w: %w: %v", ErrInvalidShowdown, ErrInvalidCard, card)
		}
		if seen.Contains(card) {
			return Verdict{}, fmt.Errorf("%w: %w: %s", ErrInvalidShowdown, ErrDuplicateCard, card)
		}
		seen.Add(card)
	}
	pa, err := NewPool(a, board)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %w", ErrInvalidShowdown, err)
	}
	pb, err := NewPool(b, board)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %w", ErrInvalidShowdown, err)
	}
	return e.Compare(pa, pb), nil
}

// Classify returns the strongest category a pool makes together with its key
func (e *Evaluator) Classify(p Pool) HandValue {
	s := e.stats(p)
	for _, c := range categories {
		if key, ok := c.eval(&s); ok {
			return HandValue{Category: c.category, Key: key}
		}
	}
	return HandValue{Category: HighCard}
}

func (e *Evaluator) stats(p Pool) handStats {
	s := handStats{order: e.aceOrder}
	for _, card := range p.Cards() {
		s.counts[card.Rank]++
		s.suited[card.Suit] |= 1 << card.Rank
		s.mask |= 1 << card.Rank
	}
	return s
}

func compareKeys(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] > b[i] {
				return 1
			}
			return -1
		}
	}
	return len(a) - len(b)
}

var defaultEvaluator = NewEvaluator()

// Compare decides a showdown with the default AceLow evaluator
func Compare(a, b Pool) Verdict {
	return defaultEvaluator.Compare(a, b)
}

// Showdown validates and decides a showdown with the default AceLow evaluator
func Showdown(board Board, a, b HoleCards) (Verdict, error) {
	return defaultEvaluator.Showdown(board, a, b)
}

// Classify classifies a pool with the default AceLow evaluator
func Classify(p Pool) HandValue {
	return defaultEvaluator.Classify(p)
}
