package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/lox/headsup/internal/history"
	"github.com/lox/headsup/internal/randutil"
	"github.com/lox/headsup/poker"
)

var (
	// ErrPlayerBusted is returned when a hand is started with an empty stack
	ErrPlayerBusted = errors.New("game: player is out of chips")
	// ErrDuplicateName is returned when both players share a name
	ErrDuplicateName = errors.New("game: players must have different names")
)

// View is what a player sees when asked to act. Hole holds only the
// player's own cards.
type View struct {
	HandID string
	Seat   poker.Seat
	Hole   poker.HoleCards
	Board  poker.Board
	Status Status
	Valid  []ActionType
}

// Player makes the decisions for one seat
type Player interface {
	Name() string
	Decide(ctx context.Context, view View) (Action, error)
}

// Config holds the table settings for a game
type Config struct {
	SmallBlind int
	BigBlind   int
	Evaluator  *poker.Evaluator
	Rand       *rand.Rand
	Logger     *log.Logger
}

// Game plays successive heads-up hands between two players. The button
// posts the small blind and moves after every hand.
type Game struct {
	players    [2]Player
	stacks     [2]int
	button     poker.Seat
	smallBlind int
	bigBlind   int
	evaluator  *poker.Evaluator
	rng        *rand.Rand
	logger     *log.Logger
	hands      int
}

// New seats two players with their starting stacks
func New(a, b Player, stacks [2]int, cfg Config) (*Game, error) {
	if a.Name() == b.Name() {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, a.Name())
	}
	if cfg.SmallBlind <= 0 || cfg.BigBlind <= cfg.SmallBlind {
		return nil, fmt.Errorf("game: invalid blinds %d/%d", cfg.SmallBlind, cfg.BigBlind)
	}
	g := &Game{
		players:    [2]Player{a, b},
		stacks:     [2]int{max(stacks[0], 0), max(stacks[1], 0)},
		smallBlind: cfg.SmallBlind,
		bigBlind:   cfg.BigBlind,
		evaluator:  cfg.Evaluator,
		rng:        cfg.Rand,
		logger:     cfg.Logger,
	}
	if g.evaluator == nil {
		g.evaluator = poker.NewEvaluator()
	}
	if g.rng == nil {
		g.rng = randutil.New(time.Now().UnixNano())
	}
	if g.logger == nil {
		g.logger = log.New(io.Discard)
	}
	return g, nil
}

// Stacks returns the chips each seat holds between hands
func (g *Game) Stacks() [2]int {
	return g.stacks
}

// Player returns the player in a seat
func (g *Game) Player(seat poker.Seat) Player {
	return g.players[seat]
}

// Button returns the seat that posts the small blind next hand
func (g *Game) Button() poker.Seat {
	return g.button
}

// HandsPlayed returns the number of completed hands
func (g *Game) HandsPlayed() int {
	return g.hands
}

// CanContinue reports whether both players still have chips
func (g *Game) CanContinue() bool {
	return g.stacks[0] > 0 && g.stacks[1] > 0
}

// HandResult contains the results of a completed hand
type HandResult struct {
	ID       string
	Board    poker.Board
	Hole     [2]poker.HoleCards
	Pot      int
	Winner   poker.Seat
	Button   poker.Seat
	Chop     bool
	Showdown bool
	Category poker.HandCategory
	Stacks   [2]int
	History  *history.Hand
}

// hand is the mutable state of the hand in progress
type hand struct {
	id     string
	status Status
	hole   [2]poker.HoleCards
	board  poker.Board
	deck   *poker.Deck
	record *history.Hand
	winner poker.Seat
}

// PlayHand runs a complete hand from blinds to payout. If a player returns an
// error the hand is abandoned and the stacks are left untouched.
func (g *Game) PlayHand(ctx context.Context) (*HandResult, error) {
	if !g.CanContinue() {
		return nil, ErrPlayerBusted
	}

	sb, bb := g.button, g.button.Other()
	h := &hand{
		id:   uuid.NewString(),
		deck: poker.NewDeck(g.rng),
		status: Status{
			Stacks:        g.stacks,
			Phase:         PreFlop,
			LastAggressor: bb,
			BigBlind:      g.bigBlind,
		},
	}
	var blinds [2]int
	blinds[sb], blinds[bb] = g.smallBlind, g.bigBlind
	h.record = history.NewHand(h.id,
		[2]string{g.players[0].Name(), g.players[1].Name()}, blinds, g.stacks, g.bigBlind)

	logger := g.logger.With("hand", h.id[:8])
	logger.Debug("Starting hand", "button", g.players[sb].Name(), "stacks", g.stacks)

	h.post(sb, g.smallBlind)
	h.post(bb, g.bigBlind)
	h.settleUncalled()

	for _, seat := range []poker.Seat{bb, sb} {
		cards, err := h.deck.DealN(2)
		if err != nil {
			return nil, fmt.Errorf("dealing hole cards: %w", err)
		}
		if h.hole[seat], err = poker.NewHoleCards(cards...); err != nil {
			return nil, fmt.Errorf("dealing hole cards: %w", err)
		}
	}
	h.record.DealHole(poker.SeatA, h.hole[poker.SeatA])
	h.record.DealHole(poker.SeatB, h.hole[poker.SeatB])

	if err := g.bettingRound(ctx, h, sb); err != nil {
		return nil, err
	}
	for _, phase := range []Phase{Flop, Turn, River} {
		if h.status.Phase == Finished {
			break
		}
		if err := h.deal(phase); err != nil {
			return nil, err
		}
		if h.allIn() {
			continue
		}
		if err := g.bettingRound(ctx, h, bb); err != nil {
			return nil, err
		}
	}

	result := &HandResult{ID: h.id, Button: sb, Hole: h.hole, Board: h.board, Pot: h.status.Pot()}
	if h.status.Phase != Finished {
		if err := g.showdown(ctx, h, result); err != nil {
			return nil, err
		}
	} else {
		result.Winner = h.winner
		h.status.Stacks[h.winner] += h.status.Pot()
	}

	result.Stacks = h.status.Stacks
	category := ""
	if result.Showdown {
		category = result.Category.String()
	}
	h.record.Finish(h.status.Stacks, category)
	result.History = h.record

	g.stacks = h.status.Stacks
	g.button = g.button.Other()
	g.hands++

	if result.Chop {
		logger.Info("Hand complete", "result", "chop", "pot", result.Pot, "category", category)
	} else {
		logger.Info("Hand complete",
			"winner", g.players[result.Winner].Name(),
			"pot", result.Pot,
			"showdown", result.Showdown)
	}
	return result, nil
}

func (h *hand) post(seat poker.Seat, blind int) {
	amount := min(blind, h.status.Stacks[seat])
	h.status.Stacks[seat] -= amount
	h.status.Bets[seat] += amount
}

// settleUncalled returns chips an all-in opponent can never match
func (h *hand) settleUncalled() {
	s := &h.status
	for _, seat := range []poker.Seat{poker.SeatA, poker.SeatB} {
		other := seat.Other()
		if s.Stacks[other] == 0 && s.Bets[seat] > s.Bets[other] {
			excess := s.Bets[seat] - s.Bets[other]
			s.Bets[seat] -= excess
			s.Stacks[seat] += excess
		}
	}
}

func (h *hand) allIn() bool {
	return h.status.Stacks[0] == 0 || h.status.Stacks[1] == 0
}

func (h *hand) deal(phase Phase) error {
	h.status.Phase = phase
	switch phase {
	case Flop:
		cards, err := h.deck.DealN(3)
		if err != nil {
			return fmt.Errorf("dealing flop: %w", err)
		}
		if err := h.board.Flop(cards[0], cards[1], cards[2]); err != nil {
			return err
		}
		h.record.DealBoard(cards)
	case Turn, River:
		card, err := h.deck.Deal()
		if err != nil {
			return fmt.Errorf("dealing %s: %w", phase, err)
		}
		if phase == Turn {
			err = h.board.Turn(card)
		} else {
			err = h.board.River(card)
		}
		if err != nil {
			return err
		}
		h.record.DealBoard([]poker.Card{card})
	}
	return nil
}

func (g *Game) view(h *hand, seat poker.Seat) View {
	return View{
		HandID: h.id,
		Seat:   seat,
		Hole:   h.hole[seat],
		Board:  h.board,
		Status: h.status,
		Valid:  h.status.ValidActions(),
	}
}

func (g *Game) decide(ctx context.Context, h *hand, seat poker.Seat) (Action, error) {
	if err := ctx.Err(); err != nil {
		return Action{}, err
	}
	action, err := g.players[seat].Decide(ctx, g.view(h, seat))
	if err != nil {
		return Action{}, fmt.Errorf("player %s: %w", g.players[seat].Name(), err)
	}
	return action, nil
}

// bettingRound runs one street until both seats have acted and the bets are level
func (g *Game) bettingRound(ctx context.Context, h *hand, first poker.Seat) error {
	s := &h.status
	s.Current = first
	var acted [2]bool
	for {
		if s.Phase == Finished {
			return nil
		}
		if acted[0] && acted[1] && s.Bets[0] == s.Bets[1] {
			return nil
		}
		if s.Stacks[0] == 0 && s.Stacks[1] == 0 {
			return nil
		}

		me, other := s.Current, s.Current.Other()
		if s.Stacks[me] == 0 || (s.Stacks[other] == 0 && s.Bets[me] >= s.Bets[other]) {
			// nothing left to decide for this seat
			acted[me] = true
			s.Current = other
			continue
		}

		action, err := g.decide(ctx, h, me)
		if err != nil {
			return err
		}
		if err := h.apply(action); err != nil {
			fallback := Action{Type: Fold}
			if s.CanTake(Check) {
				fallback = Action{Type: Check}
			}
			g.logger.Warn("Invalid action, using fallback",
				"player", g.players[me].Name(), "action", action, "fallback", fallback, "error", err)
			if err := h.apply(fallback); err != nil {
				return fmt.Errorf("applying fallback: %w", err)
			}
			action = fallback
		}

		acted[me] = true
		if action.Type == Raise {
			acted[other] = false
		}
		s.Current = other
	}
}

// apply mutates the hand for the current seat's action
func (h *hand) apply(a Action) error {
	s := &h.status
	me, other := s.Current, s.Current.Other()

	switch a.Type {
	case Fold:
		if s.Phase == Showdown {
			return fmt.Errorf("%w: fold at showdown, muck instead", ErrInvalidAction)
		}
		h.winner = other
		s.Phase = Finished
		h.record.Act(me, "fold", 0)
		return nil

	case Check:
		if s.Phase == Showdown || s.Bets[me] != s.Bets[other] {
			return fmt.Errorf("%w: cannot check facing %d", ErrInvalidAction, s.ToCall())
		}
		h.record.Act(me, "check", 0)
		return nil

	case Call:
		if s.Phase == Showdown {
			return fmt.Errorf("%w: call at showdown", ErrInvalidAction)
		}
		toCall := s.ToCall()
		if toCall == 0 {
			return h.apply(Action{Type: Check})
		}
		amount := min(toCall, s.Stacks[me])
		s.Stacks[me] -= amount
		s.Bets[me] += amount
		h.settleUncalled()
		h.record.Act(me, "call", s.Bets[me])
		return nil

	case Raise:
		if !s.CanTake(Raise) {
			return fmt.Errorf("%w: raise not allowed", ErrInvalidAction)
		}
		if a.Amount <= 0 {
			return fmt.Errorf("%w: raise amount must be positive", ErrInvalidAction)
		}
		toCall := s.ToCall()
		// Nobody can be raised beyond what they have left
		raiseBy := min(a.Amount, s.Stacks[other])
		amount := min(toCall+raiseBy, s.Stacks[me])
		if amount <= toCall {
			return h.apply(Action{Type: Call})
		}
		s.Stacks[me] -= amount
		s.Bets[me] += amount
		s.LastAggressor = me
		h.record.Act(me, "raise", s.Bets[me])
		return nil

	case Muck:
		if s.Phase != Showdown {
			return fmt.Errorf("%w: cannot muck before the showdown", ErrInvalidAction)
		}
		h.winner = other
		s.Phase = Finished
		h.record.Muck(me)
		return nil

	case Show:
		if s.Phase != Showdown {
			return fmt.Errorf("%w: cannot show before the showdown", ErrInvalidAction)
		}
		h.record.Show(me, h.hole[me])
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalidAction, a.Type)
}

// showdown asks the last aggressor to show first, then compares the hands
func (g *Game) showdown(ctx context.Context, h *hand, result *HandResult) error {
	s := &h.status
	s.Phase = Showdown
	first := s.LastAggressor

	for _, seat := range []poker.Seat{first, first.Other()} {
		s.Current = seat
		action, err := g.decide(ctx, h, seat)
		if err != nil {
			return err
		}
		if action.Type != Muck && action.Type != Show {
			g.logger.Warn("Invalid showdown action, showing", "player", g.players[seat].Name(), "action", action)
			action = Action{Type: Show}
		}
		if err := h.apply(action); err != nil {
			return err
		}
		if s.Phase == Finished {
			result.Winner = h.winner
			s.Stacks[h.winner] += s.Pot()
			return nil
		}
	}

	verdict, err := g.evaluator.Showdown(h.board, h.hole[poker.SeatA], h.hole[poker.SeatB])
	if err != nil {
		return fmt.Errorf("showdown: %w", err)
	}
	result.Showdown = true
	result.Category = verdict.Category
	pot := s.Pot()
	if verdict.Chop() {
		result.Chop = true
		half := pot / 2
		s.Stacks[poker.SeatA] += pot - half // odd chip to seat A
		s.Stacks[poker.SeatB] += half
	} else {
		result.Winner = verdict.Winner
		s.Stacks[verdict.Winner] += pot
	}
	s.Phase = Finished
	return nil
}
