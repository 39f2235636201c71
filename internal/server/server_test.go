package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/lox/headsup/internal/bot"
	"github.com/lox/headsup/internal/game"
	"github.com/lox/headsup/internal/history"
	"github.com/lox/headsup/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

type testServer struct {
	srv   *Server
	http  *httptest.Server
	wsURL string
}

func startTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	seed := int64(1)
	cfg.Seed = &seed
	cfg.SmallBlind, cfg.BigBlind, cfg.Stack = 1, 2, 200
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	}
	if cfg.NewOpponent == nil {
		cfg.NewOpponent = func(*rand.Rand) game.Player { return bot.NewCallBot("bot") }
	}

	srv := New(cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})
	return &testServer{srv: srv, http: ts, wsURL: "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"}
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (ts *testServer) dial(t *testing.T) *testClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(typ MessageType, data any) {
	c.t.Helper()
	msg, err := NewMessage(typ, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

func (c *testClient) read() (*Message, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(testTimeout))
	var msg Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// expect reads the next message, requires its type and decodes its data
func (c *testClient) expect(typ MessageType, into any) {
	c.t.Helper()
	msg, err := c.read()
	require.NoError(c.t, err)
	require.Equal(c.t, typ, msg.Type, "unexpected message: %s", string(msg.Data))
	if into != nil {
		require.NoError(c.t, json.Unmarshal(msg.Data, into))
	}
}

func (c *testClient) expectError(code string) {
	c.t.Helper()
	var data ErrorData
	c.expect(MessageTypeError, &data)
	assert.Equal(c.t, code, data.Code, data.Message)
}

func (c *testClient) join(name string, hands int) JoinedData {
	c.t.Helper()
	c.send(MessageTypeJoin, JoinData{Name: name, Hands: hands})
	var joined JoinedData
	c.expect(MessageTypeJoined, &joined)
	return joined
}

func TestHealth(t *testing.T) {
	ts := startTestServer(t, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	require.NoError(t, WaitHealthy(ctx, quartz.NewReal(), ts.http.URL, 10*time.Millisecond))
}

func TestWaitHealthyGivesUp(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := WaitHealthy(ctx, quartz.NewReal(), down.URL, 10*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "503")
}

// The request still in flight at the deadline must not hide the real failure
func TestWaitHealthyKeepsFailureAtDeadline(t *testing.T) {
	var calls atomic.Int32
	stuck := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		<-r.Context().Done()
	}))
	defer stuck.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := WaitHealthy(ctx, quartz.NewReal(), stuck.URL, 10*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "503")
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestServeUntilShutdown(t *testing.T) {
	srv := New(Config{Logger: log.New(io.Discard)})
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	require.NoError(t, WaitHealthy(ctx, quartz.NewReal(), "http://"+l.Addr().String(), 10*time.Millisecond))

	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-errCh)

	// a stopped server refuses to serve again
	l2, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, srv.Serve(l2))
}

func TestFoldPreflop(t *testing.T) {
	ts := startTestServer(t, Config{})
	c := ts.dial(t)

	joined := c.join("alice", 1)
	assert.Equal(t, "A", joined.Seat)
	assert.Equal(t, "bot", joined.Opponent)
	assert.Equal(t, [2]int{200, 200}, joined.Stacks)
	assert.NotEmpty(t, joined.SessionID)

	var req ActionRequiredData
	c.expect(MessageTypeActionRequired, &req)
	assert.Equal(t, []string{"fold", "call", "raise"}, req.ValidActions)
	assert.Equal(t, "preflop", req.Status.Phase)
	assert.Equal(t, 1, req.Status.ToCall)
	assert.Equal(t, 3, req.Status.Pot)
	assert.Len(t, req.Hole, 4)
	assert.Empty(t, req.Board)
	assert.Equal(t, 30, req.TimeoutSeconds)

	c.send(MessageTypeAction, ActionData{Action: "fold"})

	var res HandResultData
	c.expect(MessageTypeHandResult, &res)
	assert.Equal(t, "bot", res.Winner)
	assert.False(t, res.Showdown)
	assert.Empty(t, res.OpponentHole)
	assert.Equal(t, req.Hole, res.Hole)
	assert.Equal(t, [2]int{199, 201}, res.Stacks)

	var end SessionEndData
	c.expect(MessageTypeSessionEnd, &end)
	assert.Equal(t, ReasonComplete, end.Reason)
	assert.Equal(t, 1, end.Hands)
	assert.Equal(t, -0.5, end.NetBB)
	assert.Equal(t, -50.0, end.BBPer100)
	assert.Zero(t, end.Showdowns)
}

func TestCallDownToShowdown(t *testing.T) {
	ts := startTestServer(t, Config{})
	c := ts.dial(t)
	c.join("alice", 1)

	for {
		msg, err := c.read()
		require.NoError(t, err)
		if msg.Type == MessageTypeHandResult {
			var res HandResultData
			require.NoError(t, json.Unmarshal(msg.Data, &res))
			assert.True(t, res.Showdown)
			assert.Len(t, res.Board, 5)
			assert.NotEmpty(t, res.OpponentHole)
			assert.NotEmpty(t, res.Category)
			assert.Equal(t, 4, res.Pot)
			assert.Equal(t, 400, res.Stacks[0]+res.Stacks[1])
			break
		}
		require.Equal(t, MessageTypeActionRequired, msg.Type)
		var req ActionRequiredData
		require.NoError(t, json.Unmarshal(msg.Data, &req))
		switch {
		case slices.Contains(req.ValidActions, "show"):
			c.send(MessageTypeAction, ActionData{Action: "show"})
		case slices.Contains(req.ValidActions, "check"):
			c.send(MessageTypeAction, ActionData{Action: "check"})
		default:
			c.send(MessageTypeAction, ActionData{Action: "call"})
		}
	}
	c.expect(MessageTypeSessionEnd, nil)
}

func TestDecisionTimeoutFolds(t *testing.T) {
	clock := quartz.NewMock(t)
	ts := startTestServer(t, Config{Clock: clock, DecisionTimeout: 3 * time.Second})
	c := ts.dial(t)
	c.join("alice", 1)

	var req ActionRequiredData
	c.expect(MessageTypeActionRequired, &req)
	assert.Equal(t, 3, req.TimeoutSeconds)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	clock.Advance(3 * time.Second).MustWait(ctx)

	var res HandResultData
	c.expect(MessageTypeHandResult, &res)
	assert.Equal(t, "bot", res.Winner)
	assert.Equal(t, [2]int{199, 201}, res.Stacks)
}

func TestTimeoutAction(t *testing.T) {
	tests := []struct {
		name   string
		status game.Status
		want   game.ActionType
	}{
		{"facing a bet", game.Status{Stacks: [2]int{99, 98}, Bets: [2]int{1, 2}}, game.Fold},
		{"bets level", game.Status{Stacks: [2]int{98, 98}, Bets: [2]int{2, 2}, Phase: game.Flop}, game.Check},
		{"showdown", game.Status{Phase: game.Showdown}, game.Show},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timeoutAction(tt.status).Type)
		})
	}
}

func TestProtocolErrors(t *testing.T) {
	ts := startTestServer(t, Config{})
	c := ts.dial(t)

	c.send(MessageTypeAction, ActionData{Action: "call"})
	c.expectError("not_joined")

	c.send(MessageTypeLeave, nil)
	c.expectError("not_joined")

	c.send(MessageType("dance"), nil)
	c.expectError("unknown_message_type")

	c.send(MessageTypeJoin, JoinData{})
	c.expectError("invalid_name")

	c.send(MessageTypeJoin, JoinData{Name: "bot"})
	c.expectError("join_failed")

	c.join("alice", 1)
	c.expect(MessageTypeActionRequired, nil)

	c.send(MessageTypeJoin, JoinData{Name: "alice"})
	c.expectError("already_joined")

	c.send(MessageTypeAction, ActionData{Action: "check"})
	c.expectError("invalid_action")

	c.send(MessageTypeAction, ActionData{Action: "raise"})
	c.expectError("invalid_action")

	c.send(MessageTypeAction, ActionData{Action: "shove"})
	c.expectError("invalid_action")

	c.send(MessageTypeAction, ActionData{Action: "raise", Amount: 10})
	// Bot calls and checks down, so the next request is on the flop
	var req ActionRequiredData
	c.expect(MessageTypeActionRequired, &req)
	assert.Equal(t, "flop", req.Status.Phase)
	assert.Equal(t, 24, req.Status.Pot)
	assert.Len(t, req.Board, 3)
}

func TestLeaveAndRejoin(t *testing.T) {
	ts := startTestServer(t, Config{})
	c := ts.dial(t)

	first := c.join("alice", 0)
	c.expect(MessageTypeActionRequired, nil)
	c.send(MessageTypeLeave, nil)

	var end SessionEndData
	c.expect(MessageTypeSessionEnd, &end)
	assert.Equal(t, ReasonLeft, end.Reason)
	assert.Equal(t, 0, end.Hands)
	assert.Equal(t, [2]int{200, 200}, end.Stacks, "abandoned hands leave stacks untouched")

	second := c.join("alice", 1)
	assert.NotEqual(t, first.SessionID, second.SessionID)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHandHistoryRecorded(t *testing.T) {
	var out syncBuffer
	ts := startTestServer(t, Config{History: history.NewEncoder(&out)})
	c := ts.dial(t)
	c.join("alice", 1)

	c.expect(MessageTypeActionRequired, nil)
	c.send(MessageTypeAction, ActionData{Action: "fold"})
	var res HandResultData
	c.expect(MessageTypeHandResult, &res)

	hands, err := history.Decode(strings.NewReader(out.String()))
	require.NoError(t, err)
	require.Len(t, hands, 1)
	assert.Equal(t, res.HandID, hands[0].HandID)
	assert.Equal(t, []string{"alice", "bot"}, hands[0].Players)
	assert.Equal(t, []int{-1, 1}, hands[0].Winnings)
	assert.Contains(t, hands[0].Actions, "p1 f")
}

func TestShutdownClosesClients(t *testing.T) {
	ts := startTestServer(t, Config{})
	c := ts.dial(t)
	c.join("alice", 0)
	c.expect(MessageTypeActionRequired, nil)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	require.NoError(t, ts.srv.Shutdown(ctx))

	for {
		if _, err := c.read(); err != nil {
			break
		}
	}
	assert.Eventually(t, func() bool { return ts.srv.Connections() == 0 }, testTimeout, 10*time.Millisecond)

	_, _, err := websocket.DefaultDialer.Dial(ts.wsURL, nil)
	require.Error(t, err)
}

func TestHandsStored(t *testing.T) {
	db, err := store.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	defer db.Close()

	ts := startTestServer(t, Config{Store: db})
	c := ts.dial(t)
	joined := c.join("alice", 2)

	for range 2 {
		c.expect(MessageTypeActionRequired, nil)
		c.send(MessageTypeAction, ActionData{Action: "fold"})
		c.expect(MessageTypeHandResult, nil)
	}
	c.expect(MessageTypeSessionEnd, nil)

	hands, err := db.Hands(context.Background(), store.Query{Session: joined.SessionID})
	require.NoError(t, err)
	require.Len(t, hands, 2)
	assert.Equal(t, []string{"alice", "bot"}, hands[0].Players)

	totals, err := db.Totals(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, store.Totals{Hands: 2, Net: -3}, totals)
}
