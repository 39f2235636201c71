package poker

// HoleCardCategory represents the strength category of hole cards
type HoleCardCategory string

const (
	CategoryPremium HoleCardCategory = "Premium"
	CategoryStrong  HoleCardCategory = "Strong"
	CategoryMedium  HoleCardCategory = "Medium"
	CategoryWeak    HoleCardCategory = "Weak"
	CategoryTrash   HoleCardCategory = "Trash"
	CategoryUnknown HoleCardCategory = "Unknown"
)

// CategorizeHoleCards provides a simple preflop hand categorization.
// Categories: Premium (JJ+, AK), Strong (TT, AQ/AJ), Medium (77+, suited broadway),
// Weak (small pairs, suited connectors), Trash (everything else).
func CategorizeHoleCards(h HoleCards) HoleCardCategory {
	if h.IsZero() {
		return CategoryUnknown
	}
	c1, c2 := h.cards[0], h.cards[1]

	small, big := preflopValue(c1.Rank), preflopValue(c2.Rank)
	if small > big {
		small, big = big, small
	}
	suited := c1.Suit == c2.Suit
	isPair := small == big

	switch {
	case isPair && small >= 11, small == 13 && big == 14: // JJ+, AK
		return CategoryPremium
	case isPair && small == 10, big == 14 && (small == 12 || small == 11): // TT, AQ, AJ
		return CategoryStrong
	case isPair && small >= 7, suited && small >= 10: // 77-99, suited broadway
		return CategoryMedium
	case isPair, suited && big-small <= 2: // 22-66, suited connectors
		return CategoryWeak
	}
	return CategoryTrash
}

// CategorizeHoleCardsFromString categorizes hole cards written as "AsKd"
func CategorizeHoleCardsFromString(s string) HoleCardCategory {
	h, err := ParseHoleCards(s)
	if err != nil {
		return CategoryUnknown
	}
	return CategorizeHoleCards(h)
}

// preflopValue puts the Ace on top (2..14) since preflop strength always treats it high
func preflopValue(r Rank) int {
	if r == Ace {
		return highAce
	}
	return int(r)
}
