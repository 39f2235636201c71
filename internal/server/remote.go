package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/headsup/internal/game"
)

var (
	// ErrNoPendingAction is returned when a decision arrives that nobody asked for
	ErrNoPendingAction = errors.New("no action is pending")
	// ErrActionNotAllowed is returned when a decision is not among the valid actions
	ErrActionNotAllowed = errors.New("action is not valid in the current state")
)

// RemotePlayer proxies decisions to a websocket client. A decision that does
// not arrive before the timeout becomes a check when legal, otherwise a fold.
type RemotePlayer struct {
	name    string
	conn    *Connection
	timeout time.Duration
	clock   quartz.Clock
	logger  *log.Logger

	mu        sync.Mutex
	pending   *game.View
	decisions chan game.Action
}

// NewRemotePlayer creates a player whose decisions come from conn
func NewRemotePlayer(name string, conn *Connection, timeout time.Duration, clock quartz.Clock, logger *log.Logger) *RemotePlayer {
	return &RemotePlayer{
		name:      name,
		conn:      conn,
		timeout:   timeout,
		clock:     clock,
		logger:    logger.WithPrefix("remote").With("player", name),
		decisions: make(chan game.Action, 1),
	}
}

// Name returns the player name
func (p *RemotePlayer) Name() string {
	return p.name
}

// Decide sends action_required and waits for the client's answer
func (p *RemotePlayer) Decide(ctx context.Context, view game.View) (game.Action, error) {
	p.mu.Lock()
	p.pending = &view
	// drop any answer left over from a previous request
	select {
	case <-p.decisions:
	default:
	}
	p.mu.Unlock()
	defer p.clear()

	// The timer is armed before the request goes out so a client can never
	// answer a request that has no deadline yet
	timeoutFired := make(chan struct{})
	timer := p.clock.AfterFunc(p.timeout, func() {
		close(timeoutFired)
	})
	defer timer.Stop()

	msg, err := NewMessage(MessageTypeActionRequired, ActionRequiredData{
		HandID:         view.HandID,
		Hole:           view.Hole.String(),
		Board:          cardStrings(view.Board.Cards()),
		ValidActions:   actionStrings(view.Valid),
		Status:         StatusInfoFromGame(view.Status),
		TimeoutSeconds: int(p.timeout / time.Second),
	})
	if err != nil {
		return game.Action{}, fmt.Errorf("building action request: %w", err)
	}
	if err := p.conn.SendMessage(msg); err != nil {
		return game.Action{}, fmt.Errorf("sending action request: %w", err)
	}

	select {
	case action := <-p.decisions:
		p.logger.Debug("Received decision", "action", action)
		return action, nil
	case <-timeoutFired:
		action := timeoutAction(view.Status)
		p.logger.Warn("Decision timeout", "phase", view.Status.Phase, "action", action)
		return action, nil
	case <-ctx.Done():
		return game.Action{}, ctx.Err()
	}
}

// timeoutAction checks when legal and folds otherwise. At showdown the
// hand is shown so a slow player still gets paid.
func timeoutAction(s game.Status) game.Action {
	switch {
	case s.Phase == game.Showdown:
		return game.Action{Type: game.Show}
	case s.CanTake(game.Check):
		return game.Action{Type: game.Check}
	default:
		return game.Action{Type: game.Fold}
	}
}

func (p *RemotePlayer) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = nil
}

// Submit delivers a client decision to the waiting Decide call
func (p *RemotePlayer) Submit(data ActionData) error {
	t, err := game.ActionTypeFromString(data.Action)
	if err != nil {
		return err
	}
	action := game.Action{Type: t}
	if t == game.Raise {
		if data.Amount <= 0 {
			return fmt.Errorf("%w: raise amount must be positive", game.ErrInvalidAction)
		}
		action.Amount = data.Amount
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == nil {
		return ErrNoPendingAction
	}
	if !p.pending.Status.CanTake(action.Type) {
		return fmt.Errorf("%w: %s", ErrActionNotAllowed, action.Type)
	}

	select {
	case p.decisions <- action:
		p.pending = nil
		return nil
	default:
		return ErrNoPendingAction
	}
}
