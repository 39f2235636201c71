package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lox/headsup/internal/bot"
	"github.com/lox/headsup/internal/equity"
	"github.com/lox/headsup/internal/game"
	"github.com/lox/headsup/internal/history"
	"github.com/lox/headsup/internal/randutil"
	"github.com/lox/headsup/poker"
)

// Config holds the table settings every session is played with
type Config struct {
	SmallBlind      int
	BigBlind        int
	Stack           int
	Hands           int
	BotTrials       int
	DecisionTimeout time.Duration
	Seed            *int64

	// Evaluator decides showdowns; nil uses the ace-low default
	Evaluator *poker.Evaluator
	// NewOpponent creates the server-side player for a session; nil uses
	// the equity bot
	NewOpponent func(rng *rand.Rand) game.Player
	// History receives every completed hand when set
	History *history.Encoder
	// Store persists every completed hand when set
	Store  HandStore
	Clock  quartz.Clock
	Logger *log.Logger
}

// HandStore persists finished hands
type HandStore interface {
	SaveHand(ctx context.Context, sessionID string, h *history.Hand) error
}

// Server accepts websocket clients and plays each of them heads-up
type Server struct {
	cfg         Config
	upgrader    websocket.Upgrader
	logger      *log.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	mu          sync.Mutex
	rng         *rand.Rand
	connections map[*Connection]struct{}
	sessions    sync.WaitGroup
	httpServer  *http.Server
}

// New creates a server, filling unset config with defaults
func New(cfg Config) *Server {
	if cfg.SmallBlind <= 0 {
		cfg.SmallBlind = 1
	}
	if cfg.BigBlind <= cfg.SmallBlind {
		cfg.BigBlind = 2 * cfg.SmallBlind
	}
	if cfg.Stack <= 0 {
		cfg.Stack = 100 * cfg.BigBlind
	}
	if cfg.BotTrials <= 0 {
		cfg.BotTrials = bot.DefaultTrials
	}
	if cfg.DecisionTimeout <= 0 {
		cfg.DecisionTimeout = 30 * time.Second
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = poker.NewEvaluator()
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:      cfg.Logger.WithPrefix("server"),
		ctx:         ctx,
		cancel:      cancel,
		rng:         randutil.New(randutil.SeedOrNow(cfg.Seed)),
		connections: make(map[*Connection]struct{}),
	}
	if s.cfg.NewOpponent == nil {
		s.cfg.NewOpponent = s.equityBot
	}
	return s
}

func (s *Server) equityBot(rng *rand.Rand) game.Player {
	return bot.New("bot",
		bot.WithTrials(s.cfg.BotTrials),
		bot.WithRand(rng),
		bot.WithEstimator(equity.New(equity.WithEvaluator(s.cfg.Evaluator), equity.WithLogger(s.cfg.Logger))),
		bot.WithLogger(s.cfg.Logger))
}

// Handler returns the HTTP handler serving /ws and /health
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Serve accepts connections on l until Shutdown is called
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		_ = l.Close()
		return nil
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("Starting WebSocket server", "addr", l.Addr().String())
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting clients, closes every connection and waits for
// running sessions to finish
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	srv := s.httpServer
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.logger.Info("Server stopped")
	return err
}

// Connections returns the number of connected clients
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.ctx.Err() != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(s.ctx, conn, s, s.logger)
	s.mu.Lock()
	s.connections[client] = struct{}{}
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("Client connected", "total", total)

	client.Start()

	go func() {
		<-client.Done()
		s.mu.Lock()
		delete(s.connections, client)
		total := len(s.connections)
		s.mu.Unlock()
		s.logger.Info("Client disconnected", "total", total)
	}()
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

// startSession seats the client against a fresh opponent and starts playing
func (s *Server) startSession(conn *Connection, data JoinData) (*Session, error) {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return nil, errors.New("server shutting down")
	}
	// Add under the lock so it cannot race the Wait in Shutdown
	s.sessions.Add(1)
	gameRng := randutil.Derive(s.rng)
	botRng := randutil.Derive(s.rng)
	s.mu.Unlock()

	started := false
	defer func() {
		if !started {
			s.sessions.Done()
		}
	}()

	id := uuid.NewString()
	logger := s.logger.With("session", id[:8], "player", data.Name)
	remote := NewRemotePlayer(data.Name, conn, s.cfg.DecisionTimeout, s.cfg.Clock, logger)
	opponent := s.cfg.NewOpponent(botRng)

	g, err := game.New(remote, opponent, [2]int{s.cfg.Stack, s.cfg.Stack}, game.Config{
		SmallBlind: s.cfg.SmallBlind,
		BigBlind:   s.cfg.BigBlind,
		Evaluator:  s.cfg.Evaluator,
		Rand:       gameRng,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	hands := s.cfg.Hands
	if data.Hands > 0 {
		hands = data.Hands
	}

	ctx, cancel := context.WithCancel(conn.ctx)
	session := &Session{
		ID:       id,
		conn:     conn,
		player:   remote,
		game:     g,
		hands:    hands,
		names:    [2]string{remote.Name(), opponent.Name()},
		bigBlind: s.cfg.BigBlind,
		record:   s.cfg.History,
		store:    s.cfg.Store,
		logger:   logger,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	joined, err := NewMessage(MessageTypeJoined, JoinedData{
		SessionID:  id,
		Seat:       poker.SeatA.String(),
		Opponent:   opponent.Name(),
		Stacks:     g.Stacks(),
		SmallBlind: s.cfg.SmallBlind,
		BigBlind:   s.cfg.BigBlind,
		Hands:      hands,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	if err := conn.SendMessage(joined); err != nil {
		cancel()
		return nil, err
	}

	logger.Info("Session started", "opponent", opponent.Name(), "hands", hands)
	started = true
	go func() {
		defer s.sessions.Done()
		session.run(ctx)
	}()
	return session, nil
}
