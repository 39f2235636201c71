package server

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/headsup/internal/game"
	"github.com/lox/headsup/internal/history"
	"github.com/lox/headsup/internal/statistics"
	"github.com/lox/headsup/poker"
)

// Session end reasons
const (
	ReasonComplete = "complete"
	ReasonBusted   = "busted"
	ReasonLeft     = "left"
	ReasonError    = "error"
)

// Session is one remote player's heads-up match against the server's opponent.
// The remote player always sits in seat A.
type Session struct {
	ID       string
	conn     *Connection
	player   *RemotePlayer
	game     *game.Game
	hands    int
	names    [2]string
	bigBlind int
	stats    statistics.Statistics
	record   *history.Encoder
	store    HandStore
	logger   *log.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// Stop ends the session and waits for the hand in progress to unwind
func (s *Session) Stop() {
	s.cancel()
	<-s.done
}

// Finished reports whether the session has ended
func (s *Session) Finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// run plays hands until the hand limit, a bust, or cancellation
func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.cancel()

	reason := ReasonComplete
	for s.hands <= 0 || s.game.HandsPlayed() < s.hands {
		if !s.game.CanContinue() {
			reason = ReasonBusted
			break
		}
		res, err := s.game.PlayHand(ctx)
		if err != nil {
			if ctx.Err() != nil {
				reason = ReasonLeft
			} else {
				reason = ReasonError
				s.logger.Error("Hand failed", "error", err)
			}
			break
		}

		if s.record != nil {
			if err := s.record.Encode(res.History); err != nil {
				s.logger.Error("Failed to write hand history", "error", err)
			}
		}
		if s.store != nil {
			s.save(res.History)
		}
		s.stats.Add(statistics.FromGame(res, poker.SeatA, s.bigBlind))
		s.send(MessageTypeHandResult, HandResultFromGame(res, poker.SeatA, s.names))
	}

	s.logger.Info("Session ended", "reason", reason, "hands", s.game.HandsPlayed(),
		"stacks", s.game.Stacks(), "bb_per_100", s.stats.BBPer100())
	s.send(MessageTypeSessionEnd, SessionEndData{
		Reason:    reason,
		Hands:     s.game.HandsPlayed(),
		Stacks:    s.game.Stacks(),
		NetBB:     s.stats.SumBB,
		BBPer100:  s.stats.BBPer100(),
		Showdowns: s.stats.Showdowns,
	})
}

// save stores a hand even when the session is being cancelled
func (s *Session) save(h *history.Hand) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.SaveHand(ctx, s.ID, h); err != nil {
		s.logger.Error("Failed to store hand", "hand", h.HandID, "error", err)
	}
}

func (s *Session) send(t MessageType, data any) {
	msg, err := NewMessage(t, data)
	if err != nil {
		s.logger.Error("Failed to create message", "type", t, "error", err)
		return
	}
	if err := s.conn.SendMessage(msg); err != nil {
		s.logger.Debug("Dropped message for closed connection", "type", t)
	}
}
