package history

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/BurntSushi/toml"
)

// ErrNilHand is returned when encoding a nil hand
var ErrNilHand = errors.New("history: hand is nil")

// document is the on-disk layout: one [[hand]] table per hand
type document struct {
	Hands []*Hand `toml:"hand"`
}

// Encoder appends hands to a TOML stream. It is safe for concurrent use.
type Encoder struct {
	mu    sync.Mutex
	w     io.Writer
	count int
}

// NewEncoder returns an encoder writing to w
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one hand as a [[hand]] table
func (e *Encoder) Encode(hand *Hand) error {
	if hand == nil {
		return ErrNilHand
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.count > 0 {
		if _, err := io.WriteString(e.w, "\n"); err != nil {
			return fmt.Errorf("history: %w", err)
		}
	}
	enc := toml.NewEncoder(e.w)
	// Use tabs for arrays to match human expectations
	enc.Indent = "\t"
	if err := enc.Encode(document{Hands: []*Hand{hand}}); err != nil {
		return fmt.Errorf("history: encoding hand %s: %w", hand.HandID, err)
	}
	e.count++
	return nil
}

// Count returns how many hands have been written
func (e *Encoder) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

// Decode reads every hand from a TOML stream written by Encoder
func Decode(r io.Reader) ([]*Hand, error) {
	var doc document
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return doc.Hands, nil
}
