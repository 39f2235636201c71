package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/lox/headsup/poker"
)

// Variant is the PHH code for no-limit Texas hold'em
const Variant = "NT"

// Hand is one heads-up hand in PHH-style notation. Index 0 of every per-seat
// slice is seat A ("p1"), index 1 is seat B ("p2").
type Hand struct {
	Variant           string   `toml:"variant"`
	HandID            string   `toml:"hand"`
	Players           []string `toml:"players"`
	BlindsOrStraddles []int    `toml:"blinds_or_straddles"`
	MinBet            int      `toml:"min_bet"`
	StartingStacks    []int    `toml:"starting_stacks"`
	FinishingStacks   []int    `toml:"finishing_stacks,omitempty"`
	Winnings          []int    `toml:"winnings,omitempty"`
	Actions           []string `toml:"actions"`
	Showdown          string   `toml:"showdown,omitempty"`
	Time              string   `toml:"time,omitempty"`

	Timestamp time.Time `toml:"-"`
}

// NewHand starts a record for a hand between two players
func NewHand(id string, players [2]string, blinds [2]int, stacks [2]int, minBet int) *Hand {
	now := time.Now().UTC()
	return &Hand{
		Variant:           Variant,
		HandID:            id,
		Players:           players[:],
		BlindsOrStraddles: blinds[:],
		MinBet:            minBet,
		StartingStacks:    stacks[:],
		Actions:           []string{},
		Time:              now.Format(time.RFC3339),
		Timestamp:         now,
	}
}

func player(seat poker.Seat) string {
	return fmt.Sprintf("p%d", seat+1)
}

func joinCards(cards []poker.Card) string {
	var b strings.Builder
	for _, c := range cards {
		b.WriteString(c.String())
	}
	return b.String()
}

// DealHole records the hole cards dealt to a seat
func (h *Hand) DealHole(seat poker.Seat, hole poker.HoleCards) {
	h.Actions = append(h.Actions, fmt.Sprintf("d dh %s %s", player(seat), joinCards(hole.Cards())))
}

// DealBoard records community cards dealt on a street
func (h *Hand) DealBoard(cards []poker.Card) {
	h.Actions = append(h.Actions, "d db "+joinCards(cards))
}

// Act records a betting action. totalBet is the seat's total commitment after
// a raise and is ignored otherwise.
func (h *Hand) Act(seat poker.Seat, action string, totalBet int) {
	if line, ok := FormatAction(seat, action, totalBet); ok {
		h.Actions = append(h.Actions, line)
	}
}

// Show records a seat showing its cards at showdown
func (h *Hand) Show(seat poker.Seat, hole poker.HoleCards) {
	h.Actions = append(h.Actions, fmt.Sprintf("%s sm %s", player(seat), joinCards(hole.Cards())))
}

// Muck records a seat conceding at showdown without showing
func (h *Hand) Muck(seat poker.Seat) {
	h.Actions = append(h.Actions, player(seat)+" sm -")
}

// Finish stores the final stacks and the net result per seat
func (h *Hand) Finish(stacks [2]int, showdown string) {
	h.FinishingStacks = stacks[:]
	h.Winnings = make([]int, len(stacks))
	for i := range stacks {
		h.Winnings[i] = stacks[i] - h.StartingStacks[i]
	}
	h.Showdown = showdown
}

// FormatAction converts the engine's action vocabulary to PHH action strings.
// It returns the formatted action along with a boolean indicating whether
// the action should be emitted (false for blind posts that are captured elsewhere).
func FormatAction(seat poker.Seat, action string, totalBet int) (string, bool) {
	p := player(seat)
	switch action {
	case "fold", "timeout_fold":
		return p + " f", true
	case "check", "call", "timeout_check":
		return p + " cc", true
	case "raise":
		if totalBet <= 0 {
			return "", false
		}
		return fmt.Sprintf("%s cbr %d", p, totalBet), true
	case "post_small_blind", "post_big_blind":
		return "", false
	default:
		return fmt.Sprintf("# %s %s %d", p, action, totalBet), true
	}
}
