package game

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/lox/headsup/internal/history"
	"github.com/lox/headsup/internal/randutil"
	"github.com/lox/headsup/poker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted plays queued actions, then checks or calls down and shows
type scripted struct {
	name    string
	actions []Action
	views   []View
	err     error
}

func (p *scripted) Name() string { return p.name }

func (p *scripted) Decide(_ context.Context, v View) (Action, error) {
	p.views = append(p.views, v)
	if p.err != nil {
		return Action{}, p.err
	}
	if len(p.actions) > 0 {
		a := p.actions[0]
		p.actions = p.actions[1:]
		return a, nil
	}
	switch {
	case v.Status.Phase == Showdown:
		return Action{Type: Show}, nil
	case v.Status.CanTake(Check):
		return Action{Type: Check}, nil
	default:
		return Action{Type: Call}, nil
	}
}

func newTestGame(t *testing.T, a, b Player, stacks [2]int) *Game {
	t.Helper()
	g, err := New(a, b, stacks, Config{
		SmallBlind: 1,
		BigBlind:   2,
		Rand:       randutil.New(42),
		Logger:     log.New(io.Discard),
	})
	require.NoError(t, err)
	return g
}

func total(stacks [2]int) int {
	return stacks[0] + stacks[1]
}

func TestNewValidation(t *testing.T) {
	_, err := New(&scripted{name: "x"}, &scripted{name: "x"}, [2]int{10, 10}, Config{SmallBlind: 1, BigBlind: 2})
	require.ErrorIs(t, err, ErrDuplicateName)

	_, err = New(&scripted{name: "a"}, &scripted{name: "b"}, [2]int{10, 10}, Config{SmallBlind: 2, BigBlind: 2})
	require.Error(t, err)

	g, err := New(&scripted{name: "a"}, &scripted{name: "b"}, [2]int{0, 10}, Config{SmallBlind: 1, BigBlind: 2})
	require.NoError(t, err)
	assert.False(t, g.CanContinue())
	_, err = g.PlayHand(context.Background())
	require.ErrorIs(t, err, ErrPlayerBusted)
}

func TestFoldPreflopAwardsBlinds(t *testing.T) {
	a := &scripted{name: "alice", actions: []Action{{Type: Fold}}}
	b := &scripted{name: "bob"}
	g := newTestGame(t, a, b, [2]int{100, 100})

	res, err := g.PlayHand(context.Background())
	require.NoError(t, err)

	assert.Equal(t, poker.SeatB, res.Winner)
	assert.False(t, res.Showdown)
	assert.False(t, res.Chop)
	assert.Equal(t, 3, res.Pot)
	assert.Equal(t, [2]int{99, 101}, res.Stacks)
	assert.Equal(t, [2]int{99, 101}, g.Stacks())
	assert.Equal(t, poker.SeatA, res.Button)
	assert.Equal(t, poker.SeatB, g.Button())
	assert.Equal(t, 1, g.HandsPlayed())
	assert.Empty(t, b.views, "big blind never acts after a fold")

	require.Len(t, a.views, 1)
	v := a.views[0]
	assert.Equal(t, PreFlop, v.Status.Phase)
	assert.Equal(t, [2]int{1, 2}, v.Status.Bets)
	assert.Equal(t, 1, v.Status.ToCall())
	assert.Equal(t, []ActionType{Fold, Call, Raise}, v.Valid)
	assert.Equal(t, poker.StreetPreFlop, v.Board.Street())

	assert.Equal(t, []int{-1, 1}, res.History.Winnings)
	assert.Contains(t, res.History.Actions, "p1 f")
}

func TestCheckDownReachesShowdown(t *testing.T) {
	a := &scripted{name: "alice"}
	b := &scripted{name: "bob"}
	g := newTestGame(t, a, b, [2]int{100, 100})

	res, err := g.PlayHand(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Showdown)
	assert.True(t, res.Board.Complete())
	assert.Equal(t, 4, res.Pot)
	assert.Equal(t, 200, total(res.Stacks))
	assert.Equal(t, res.Category.String(), res.History.Showdown)

	// Big blind acts first on every street after the flop
	var postflop []Phase
	for _, v := range b.views {
		if v.Status.Phase >= Flop && v.Status.Phase <= River {
			postflop = append(postflop, v.Status.Phase)
		}
	}
	assert.Equal(t, []Phase{Flop, Turn, River}, postflop)
	for _, v := range b.views {
		assert.Equal(t, res.Hole[poker.SeatB], v.Hole, "players only see their own cards")
	}
}

func TestButtonAlternates(t *testing.T) {
	a := &scripted{name: "alice", actions: []Action{{Type: Fold}}}
	b := &scripted{name: "bob", actions: []Action{{Type: Fold}}}
	g := newTestGame(t, a, b, [2]int{100, 100})

	_, err := g.PlayHand(context.Background())
	require.NoError(t, err)
	res, err := g.PlayHand(context.Background())
	require.NoError(t, err)

	// Second hand: bob is on the button and folds his small blind
	assert.Equal(t, poker.SeatA, res.Winner)
	assert.Equal(t, [2]int{100, 100}, g.Stacks())
	assert.Equal(t, []int{1, -1}, res.History.Winnings)
	assert.Equal(t, []int{2, 1}, res.History.BlindsOrStraddles)
}

func TestRaiseCappedByOpponentStack(t *testing.T) {
	a := &scripted{name: "alice", actions: []Action{{Type: Raise, Amount: 1000}}}
	b := &scripted{name: "bob"}
	g := newTestGame(t, a, b, [2]int{100, 20})

	res, err := g.PlayHand(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, b.views)
	facing := b.views[0].Status
	assert.Equal(t, [2]int{20, 2}, facing.Bets)
	assert.Equal(t, 18, facing.ToCall())
	assert.NotContains(t, b.views[0].Valid, Raise)

	assert.Equal(t, 40, res.Pot)
	assert.True(t, res.Board.Complete(), "all-in hands run out the board")
	assert.Equal(t, 120, total(res.Stacks))
	assert.Contains(t, res.History.Actions, "p1 cbr 20")
}

func TestRaiseCappedByOwnStack(t *testing.T) {
	a := &scripted{name: "alice", actions: []Action{{Type: Raise, Amount: 50}}}
	b := &scripted{name: "bob"}
	g := newTestGame(t, a, b, [2]int{10, 100})

	res, err := g.PlayHand(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 20, res.Pot)
	assert.Equal(t, 110, total(res.Stacks))
	assert.Contains(t, res.History.Actions, "p1 cbr 10")
}

func TestInvalidActionFallsBack(t *testing.T) {
	t.Run("check facing a bet folds", func(t *testing.T) {
		a := &scripted{name: "alice", actions: []Action{{Type: Check}}}
		b := &scripted{name: "bob"}
		g := newTestGame(t, a, b, [2]int{100, 100})

		res, err := g.PlayHand(context.Background())
		require.NoError(t, err)
		assert.Equal(t, poker.SeatB, res.Winner)
		assert.Equal(t, [2]int{99, 101}, res.Stacks)
	})

	t.Run("muck before showdown checks", func(t *testing.T) {
		a := &scripted{name: "alice"}
		b := &scripted{name: "bob", actions: []Action{{Type: Muck}}}
		g := newTestGame(t, a, b, [2]int{100, 100})

		res, err := g.PlayHand(context.Background())
		require.NoError(t, err)
		assert.True(t, res.Showdown)
		assert.Equal(t, 4, res.Pot)
	})

	t.Run("call with nothing to call is a check", func(t *testing.T) {
		a := &scripted{name: "alice"}
		b := &scripted{name: "bob", actions: []Action{{Type: Call}, {Type: Call}}}
		g := newTestGame(t, a, b, [2]int{100, 100})

		res, err := g.PlayHand(context.Background())
		require.NoError(t, err)
		assert.True(t, res.Showdown)
		assert.Equal(t, 4, res.Pot)
	})
}

func TestPlayerErrorAbandonsHand(t *testing.T) {
	boom := errors.New("boom")
	a := &scripted{name: "alice", err: boom}
	b := &scripted{name: "bob"}
	g := newTestGame(t, a, b, [2]int{100, 100})

	_, err := g.PlayHand(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, [2]int{100, 100}, g.Stacks())
	assert.Equal(t, 0, g.HandsPlayed())
}

func TestCancelledContext(t *testing.T) {
	g := newTestGame(t, &scripted{name: "alice"}, &scripted{name: "bob"}, [2]int{100, 100})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.PlayHand(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestShortBigBlindRefund(t *testing.T) {
	// Bob can only post 1 of his big blind, so alice's small blind is fully matched
	g := newTestGame(t, &scripted{name: "alice"}, &scripted{name: "bob"}, [2]int{100, 1})

	res, err := g.PlayHand(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pot)
	assert.True(t, res.Board.Complete())
	assert.Equal(t, 101, total(res.Stacks))
}

func TestChipsConservedOverSession(t *testing.T) {
	rng := randutil.New(7)
	policy := func(name string) *policyPlayer {
		return &policyPlayer{name: name, pick: func(v View) Action {
			valid := v.Valid
			choice := valid[rng.IntN(len(valid))]
			if choice == Raise {
				return Action{Type: Raise, Amount: 1 + rng.IntN(40)}
			}
			return Action{Type: choice}
		}}
	}
	g := newTestGame(t, policy("alice"), policy("bob"), [2]int{100, 100})

	for i := 0; i < 200 && g.CanContinue(); i++ {
		res, err := g.PlayHand(context.Background())
		require.NoError(t, err)
		require.Equal(t, 200, total(res.Stacks), "hand %d", i)
		require.GreaterOrEqual(t, res.Stacks[0], 0)
		require.GreaterOrEqual(t, res.Stacks[1], 0)
		require.Equal(t, res.Stacks[0]-res.History.StartingStacks[0], res.History.Winnings[0])
	}
}

type policyPlayer struct {
	name string
	pick func(View) Action
}

func (p *policyPlayer) Name() string { return p.name }

func (p *policyPlayer) Decide(_ context.Context, v View) (Action, error) {
	return p.pick(v), nil
}

func newShowdownHand(t *testing.T, board, a, b string, bets [2]int, aggressor poker.Seat) *hand {
	t.Helper()
	h := &hand{
		id:    "test",
		board: poker.MustParseBoard(board),
		hole:  [2]poker.HoleCards{poker.MustParseHoleCards(a), poker.MustParseHoleCards(b)},
		status: Status{
			Bets:          bets,
			LastAggressor: aggressor,
			BigBlind:      2,
		},
	}
	h.record = history.NewHand(h.id, [2]string{"alice", "bob"}, [2]int{1, 2}, [2]int{100, 100}, 2)
	return h
}

func TestShowdownChopOddChipToSeatA(t *testing.T) {
	a := &scripted{name: "alice"}
	b := &scripted{name: "bob"}
	g := newTestGame(t, a, b, [2]int{100, 100})

	h := newShowdownHand(t, "AsKsQsJsTs", "2c3d", "4h5h", [2]int{3, 2}, poker.SeatB)
	var res HandResult
	require.NoError(t, g.showdown(context.Background(), h, &res))

	assert.True(t, res.Chop)
	assert.True(t, res.Showdown)
	assert.Equal(t, poker.StraightFlush, res.Category)
	assert.Equal(t, [2]int{3, 2}, h.status.Stacks)
	assert.Equal(t, Finished, h.status.Phase)

	// The last aggressor shows first
	require.Len(t, h.record.Actions, 2)
	assert.Equal(t, "p2 sm 4h5h", h.record.Actions[0])
	assert.Equal(t, "p1 sm 2c3d", h.record.Actions[1])
}

func TestShowdownMuckConcedes(t *testing.T) {
	a := &scripted{name: "alice"}
	b := &scripted{name: "bob", actions: []Action{{Type: Muck}}}
	g := newTestGame(t, a, b, [2]int{100, 100})

	// Bob holds the winner but mucks anyway
	h := newShowdownHand(t, "2h7d9cJsKs", "3c4c", "AsAd", [2]int{10, 10}, poker.SeatA)
	var res HandResult
	require.NoError(t, g.showdown(context.Background(), h, &res))

	assert.False(t, res.Showdown)
	assert.Equal(t, poker.SeatA, res.Winner)
	assert.Equal(t, [2]int{20, 0}, h.status.Stacks)
	assert.Equal(t, []string{"p1 sm 3c4c", "p2 sm -"}, h.record.Actions)
}

func TestShowdownDecisive(t *testing.T) {
	g := newTestGame(t, &scripted{name: "alice"}, &scripted{name: "bob"}, [2]int{100, 100})

	h := newShowdownHand(t, "TsJsQs2h3d", "9sKs", "AsAd", [2]int{50, 50}, poker.SeatA)
	var res HandResult
	require.NoError(t, g.showdown(context.Background(), h, &res))

	assert.Equal(t, poker.SeatA, res.Winner)
	assert.Equal(t, poker.StraightFlush, res.Category)
	assert.Equal(t, [2]int{100, 0}, h.status.Stacks)
}

func TestPhaseNext(t *testing.T) {
	p := PreFlop
	var seen []string
	for {
		next, err := p.Next()
		if err != nil {
			require.ErrorIs(t, err, ErrGameFinished)
			assert.Equal(t, Finished, next)
			break
		}
		seen = append(seen, next.String())
		p = next
	}
	assert.Equal(t, []string{"flop", "turn", "river", "showdown", "finished"}, seen)
}

func TestValidActions(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   []ActionType
	}{
		{
			name:   "facing a bet",
			status: Status{Stacks: [2]int{99, 98}, Bets: [2]int{1, 2}, Current: poker.SeatA},
			want:   []ActionType{Fold, Call, Raise},
		},
		{
			name:   "bets level",
			status: Status{Stacks: [2]int{98, 98}, Bets: [2]int{2, 2}, Current: poker.SeatB, Phase: Flop},
			want:   []ActionType{Fold, Check, Raise},
		},
		{
			name:   "call would be all-in",
			status: Status{Stacks: [2]int{10, 50}, Bets: [2]int{2, 52}, Current: poker.SeatA},
			want:   []ActionType{Fold, Call},
		},
		{
			name:   "opponent all-in",
			status: Status{Stacks: [2]int{80, 0}, Bets: [2]int{20, 20}, Current: poker.SeatA, Phase: Turn},
			want:   []ActionType{Fold, Check},
		},
		{
			name:   "showdown",
			status: Status{Phase: Showdown},
			want:   []ActionType{Muck, Show},
		},
		{
			name:   "finished",
			status: Status{Phase: Finished},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.ValidActions())
		})
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		input   string
		want    Action
		wantErr bool
	}{
		{"fold", Action{Type: Fold}, false},
		{"  Check ", Action{Type: Check}, false},
		{"c", Action{Type: Call}, false},
		{"raise 20", Action{Type: Raise, Amount: 20}, false},
		{"bet 5", Action{Type: Raise, Amount: 5}, false},
		{"show", Action{Type: Show}, false},
		{"muck", Action{Type: Muck}, false},
		{"", Action{}, true},
		{"raise", Action{}, true},
		{"raise -3", Action{}, true},
		{"raise lots", Action{}, true},
		{"call 10", Action{}, true},
		{"allin", Action{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAction(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.String(), got.String())
		})
	}
}
