package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/headsup/internal/history"
	"github.com/lox/headsup/poker"
)

func sampleHand(id string, players [2]string, final [2]int) *history.Hand {
	h := history.NewHand(id, players, [2]int{1, 2}, [2]int{100, 100}, 2)
	h.DealHole(poker.SeatA, poker.MustParseHoleCards("AsKs"))
	h.DealHole(poker.SeatB, poker.MustParseHoleCards("7c2d"))
	h.Act(poker.SeatA, "call", 0)
	h.Act(poker.SeatB, "fold", 0)
	h.Finish(final, "")
	return h
}

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "db", "hands.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestDriverFor(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"hands.db", DriverSQLite},
		{":memory:", DriverSQLite},
		{"/var/lib/holdem/hands.db", DriverSQLite},
		{"postgres://user:pw@localhost/holdem?sslmode=disable", DriverPostgres},
		{"PostgreSQL://localhost/holdem", DriverPostgres},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DriverFor(tt.dsn), tt.dsn)
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT record FROM hands WHERE player_a = ? OR player_b = ?`
	assert.Equal(t, q, rebind(DriverSQLite, q))
	assert.Equal(t, `SELECT record FROM hands WHERE player_a = $1 OR player_b = $2`, rebind(DriverPostgres, q))
}

func TestOpenEmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "  ", nil)
	require.ErrorIs(t, err, ErrEmptyDSN)
}

func TestSaveAndLoad(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	assert.Equal(t, DriverSQLite, s.Driver())

	h := sampleHand("h1", [2]string{"alice", "bot"}, [2]int{102, 98})
	require.NoError(t, s.SaveHand(ctx, "s1", h))

	got, err := s.Hand(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, h.HandID, got.HandID)
	assert.Equal(t, h.Players, got.Players)
	assert.Equal(t, h.Actions, got.Actions)
	assert.Equal(t, []int{2, -2}, got.Winnings)

	_, err = s.Hand(ctx, "missing")
	require.ErrorIs(t, err, ErrHandNotFound)

	require.ErrorIs(t, s.SaveHand(ctx, "s1", nil), history.ErrNilHand)
}

func TestSaveHandIsIdempotent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	h := sampleHand("h1", [2]string{"alice", "bot"}, [2]int{102, 98})
	require.NoError(t, s.SaveHand(ctx, "s1", h))
	require.NoError(t, s.SaveHand(ctx, "s1", h))

	hands, err := s.Hands(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, hands, 1)
}

func TestHandsQuery(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.SaveHand(ctx, "s1", sampleHand("h1", [2]string{"alice", "bot"}, [2]int{102, 98})))
	require.NoError(t, s.SaveHand(ctx, "s1", sampleHand("h2", [2]string{"alice", "bot"}, [2]int{99, 101})))
	require.NoError(t, s.SaveHand(ctx, "s2", sampleHand("h3", [2]string{"bob", "bot"}, [2]int{90, 110})))

	ids := func(hands []*history.Hand) []string {
		var out []string
		for _, h := range hands {
			out = append(out, h.HandID)
		}
		return out
	}

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"all oldest first", Query{}, []string{"h1", "h2", "h3"}},
		{"player", Query{Player: "alice"}, []string{"h1", "h2"}},
		{"either seat", Query{Player: "bot"}, []string{"h1", "h2", "h3"}},
		{"session", Query{Session: "s2"}, []string{"h3"}},
		{"most recent", Query{Limit: 2}, []string{"h2", "h3"}},
		{"player and session", Query{Player: "alice", Session: "s2"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hands, err := s.Hands(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(hands))
		})
	}
}

func TestTotals(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	require.NoError(t, s.SaveHand(ctx, "s1", sampleHand("h1", [2]string{"alice", "bot"}, [2]int{102, 98})))
	require.NoError(t, s.SaveHand(ctx, "s1", sampleHand("h2", [2]string{"alice", "bot"}, [2]int{99, 101})))
	require.NoError(t, s.SaveHand(ctx, "s2", sampleHand("h3", [2]string{"bob", "bot"}, [2]int{90, 110})))

	alice, err := s.Totals(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, Totals{Hands: 2, Net: 1}, alice)

	bot, err := s.Totals(ctx, "bot")
	require.NoError(t, err)
	assert.Equal(t, Totals{Hands: 3, Net: 9}, bot)

	nobody, err := s.Totals(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, Totals{}, nobody)
}

func TestReopenContinuesSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hands.db")
	ctx := context.Background()

	s, err := Open(ctx, path, nil)
	require.NoError(t, err)
	require.NoError(t, s.SaveHand(ctx, "s1", sampleHand("h1", [2]string{"alice", "bot"}, [2]int{102, 98})))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, nil)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.SaveHand(ctx, "s1", sampleHand("h0", [2]string{"alice", "bot"}, [2]int{100, 100})))

	hands, err := s.Hands(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, hands, 2)
	assert.Equal(t, "h1", hands[0].HandID, "insertion order, not id order")
}

func TestSharedDatabaseKeepsOneSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hands.db")
	ctx := context.Background()

	first, err := Open(ctx, path, nil)
	require.NoError(t, err)
	defer first.Close()
	second, err := Open(ctx, path, nil)
	require.NoError(t, err)
	defer second.Close()

	players := [2]string{"alice", "bot"}
	require.NoError(t, first.SaveHand(ctx, "s1", sampleHand("h1", players, [2]int{100, 100})))
	require.NoError(t, second.SaveHand(ctx, "s2", sampleHand("h2", players, [2]int{100, 100})))
	require.NoError(t, first.SaveHand(ctx, "s1", sampleHand("h3", players, [2]int{100, 100})))

	var seqs []int64
	rows, err := first.db.QueryContext(ctx, `SELECT seq FROM hands ORDER BY hand_id`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var seq int64
		require.NoError(t, rows.Scan(&seq))
		seqs = append(seqs, seq)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int64{1, 2, 3}, seqs)

	hands, err := second.Hands(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, hands, 3)
	assert.Equal(t, []string{"h1", "h2", "h3"}, []string{hands[0].HandID, hands[1].HandID, hands[2].HandID})
}

func TestMemoryDatabase(t *testing.T) {
	s, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	defer s.Close()

	h := sampleHand("h1", [2]string{"alice", "bot"}, [2]int{100, 100})
	h.Timestamp = time.Time{}
	require.NoError(t, s.SaveHand(context.Background(), "", h))
	got, err := s.Hand(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, h.Time, got.Time)
}
