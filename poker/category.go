package poker

import (
	"fmt"
	"math/bits"
)

// HandCategory enumerates the categories of poker hands ordered from weakest to strongest.
type HandCategory uint8

const (
	HighCard HandCategory = iota
	Pair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
)

// String returns a human-readable category name.
func (c HandCategory) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case Pair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	default:
		return "Unknown"
	}
}

// HandValue is a category together with its tie-break key, most significant first
type HandValue struct {
	Category HandCategory
	Key      []int
}

func (v HandValue) String() string {
	if v.Category == StraightFlush && len(v.Key) > 0 && v.Key[0] == highAce {
		return "Royal Flush"
	}
	if len(v.Key) == 0 {
		return v.Category.String()
	}
	return fmt.Sprintf("%s (%s)", v.Category, valueName(v.Key[0]))
}

func valueName(v int) string {
	if v == highAce {
		return Ace.String()
	}
	return Rank(v).String()
}

// ranksDesc lists the ranks from strongest to weakest for each ace order
var ranksDesc = [...][NumRanks]Rank{
	AceLow:  {King, Queen, Jack, Ten, Nine, Eight, Seven, Six, Five, Four, Three, Two, Ace},
	AceHigh: {Ace, King, Queen, Jack, Ten, Nine, Eight, Seven, Six, Five, Four, Three, Two},
}

// handStats summarises the seven cards of a pool
type handStats struct {
	counts [NumRanks + 1]int
	suited [NumSuits]uint16
	mask   uint16
	order  AceOrder
}

func (s *handStats) value(r Rank) int {
	if r == Ace && s.order == AceHigh {
		return highAce
	}
	return int(r)
}

// best returns the strongest rank held at least atLeast times, skipping exclude
func (s *handStats) best(atLeast int, exclude ...Rank) (Rank, bool) {
	for _, r := range ranksDesc[s.order] {
		if s.counts[r] >= atLeast && !excluded(r, exclude) {
			return r, true
		}
	}
	return 0, false
}

// kickers returns the values of the n strongest distinct ranks outside exclude
func (s *handStats) kickers(n int, exclude ...Rank) []int {
	return s.topOf(s.mask, n, exclude...)
}

func (s *handStats) topOf(mask uint16, n int, exclude ...Rank) []int {
	values := make([]int, 0, n)
	for _, r := range ranksDesc[s.order] {
		if len(values) == n {
			break
		}
		if mask&(1<<r) != 0 && !excluded(r, exclude) {
			values = append(values, s.value(r))
		}
	}
	return values
}

func (s *handStats) flushSuit() (Suit, bool) {
	for _, suit := range Suits {
		if bits.OnesCount16(s.suited[suit]) >= 5 {
			return suit, true
		}
	}
	return 0, false
}

func excluded(r Rank, exclude []Rank) bool {
	for _, x := range exclude {
		if x == r {
			return true
		}
	}
	return false
}

// categories are checked strongest first. Each reports whether a pool makes
// the category and, if so, its tie-break key.
var categories = []struct {
	category HandCategory
	eval     func(*handStats) ([]int, bool)
}{
	{StraightFlush, straightFlushKey},
	{FourOfAKind, fourOfAKindKey},
	{FullHouse, fullHouseKey},
	{Flush, flushKey},
	{Straight, straightKey},
	{ThreeOfAKind, threeOfAKindKey},
	{TwoPair, twoPairKey},
	{Pair, pairKey},
	{HighCard, highCardKey},
}

func straightFlushKey(s *handStats) ([]int, bool) {
	best, found := 0, false
	for _, suit := range Suits {
		if high, ok := straightHigh(s.suited[suit]); ok && high > best {
			best, found = high, true
		}
	}
	if !found {
		return nil, false
	}
	return []int{best}, true
}

func fourOfAKindKey(s *handStats) ([]int, bool) {
	quad, ok := s.best(4)
	if !ok {
		return nil, false
	}
	return append([]int{s.value(quad)}, s.kickers(1, quad)...), true
}

func fullHouseKey(s *handStats) ([]int, bool) {
	trip, ok := s.best(3)
	if !ok {
		return nil, false
	}
	pair, ok := s.best(2, trip)
	if !ok {
		return nil, false
	}
	return []int{s.value(trip), s.value(pair)}, true
}

func flushKey(s *handStats) ([]int, bool) {
	suit, ok := s.flushSuit()
	if !ok {
		return nil, false
	}
	return s.topOf(s.suited[suit], 5), true
}

func straightKey(s *handStats) ([]int, bool) {
	high, ok := straightHigh(s.mask)
	if !ok {
		return nil, false
	}
	return []int{high}, true
}

func threeOfAKindKey(s *handStats) ([]int, bool) {
	trip, ok := s.best(3)
	if !ok {
		return nil, false
	}
	return append([]int{s.value(trip)}, s.kickers(2, trip)...), true
}

func twoPairKey(s *handStats) ([]int, bool) {
	high, ok := s.best(2)
	if !ok {
		return nil, false
	}
	low, ok := s.best(2, high)
	if !ok {
		return nil, false
	}
	key := []int{s.value(high), s.value(low)}
	return append(key, s.kickers(1, high, low)...), true
}

func pairKey(s *handStats) ([]int, bool) {
	pair, ok := s.best(2)
	if !ok {
		return nil, false
	}
	return append([]int{s.value(pair)}, s.kickers(3, pair)...), true
}

func highCardKey(s *handStats) ([]int, bool) {
	return s.kickers(5), true
}
