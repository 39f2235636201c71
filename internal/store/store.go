// Package store persists completed hands in SQL. A DSN starting with
// postgres:// or postgresql:// selects PostgreSQL; anything else is a SQLite
// file path, or ":memory:".
package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/lox/headsup/internal/history"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrEmptyDSN     = errors.New("store: empty database DSN")
	ErrHandNotFound = errors.New("store: hand not found")
)

const schema = `
CREATE TABLE IF NOT EXISTS hands (
    hand_id     TEXT PRIMARY KEY,
    seq         BIGINT NOT NULL,
    session_id  TEXT NOT NULL DEFAULT '',
    played_at   BIGINT NOT NULL,
    player_a    TEXT NOT NULL,
    player_b    TEXT NOT NULL,
    winnings_a  INTEGER NOT NULL,
    winnings_b  INTEGER NOT NULL,
    showdown    TEXT NOT NULL DEFAULT '',
    record      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS hands_seq ON hands (seq);
CREATE INDEX IF NOT EXISTS hands_session ON hands (session_id);
`

// Store reads and writes hand records
type Store struct {
	db     *sql.DB
	driver string
	logger *log.Logger

	mu sync.Mutex
}

// DriverFor returns the database driver a DSN selects
func DriverFor(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// Open connects to dsn and creates the schema if it is missing
func Open(ctx context.Context, dsn string, logger *log.Logger) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrEmptyDSN
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	driver := DriverFor(dsn)
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverPostgres:
		db, err = openPostgres(dsn)
	default:
		db, err = openSQLite(ctx, dsn)
	}
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, driver: driver, logger: logger.WithPrefix("store")}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Debug("Opened hand store", "driver", driver)
	return s, nil
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if parent := filepath.Dir(path); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, fmt.Errorf("store: %w", err)
			}
		}
	}

	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	// one connection, so ":memory:" is a single database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	return db, nil
}

func openPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func (s *Store) init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: connecting to %s: %w", s.driver, err)
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: creating schema: %w", err)
		}
	}
	return nil
}

// Driver returns the name of the SQL driver in use
func (s *Store) Driver() string {
	return s.driver
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveHand stores a finished hand under sessionID. Saving a hand id twice
// keeps the first record. The sequence number is taken from the table at
// insert time so several writers sharing a database keep one ordering.
func (s *Store) SaveHand(ctx context.Context, sessionID string, h *history.Hand) error {
	if h == nil {
		return history.ErrNilHand
	}
	if len(h.Players) != 2 {
		return fmt.Errorf("store: hand %s has %d players", h.HandID, len(h.Players))
	}

	var record bytes.Buffer
	if err := history.NewEncoder(&record).Encode(h); err != nil {
		return err
	}
	var winnings [2]int
	copy(winnings[:], h.Winnings)

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, s.bind(`
INSERT INTO hands (
    hand_id, seq, session_id, played_at, player_a, player_b, winnings_a, winnings_b, showdown, record
)
VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM hands), ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (hand_id) DO NOTHING`),
		h.HandID, sessionID, playedAt(h).UnixMilli(),
		h.Players[0], h.Players[1], winnings[0], winnings[1], h.Showdown, record.String())
	if err != nil {
		return fmt.Errorf("store: saving hand %s: %w", h.HandID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.Debug("Hand already stored", "hand", h.HandID)
	}
	return nil
}

// playedAt prefers the in-memory timestamp and falls back to the recorded time
func playedAt(h *history.Hand) time.Time {
	if !h.Timestamp.IsZero() {
		return h.Timestamp
	}
	if t, err := time.Parse(time.RFC3339, h.Time); err == nil {
		return t
	}
	return time.Now()
}

// Hand loads one hand by id
func (s *Store) Hand(ctx context.Context, id string) (*history.Hand, error) {
	var record string
	err := s.db.QueryRowContext(ctx, s.bind(`SELECT record FROM hands WHERE hand_id = ?`), id).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrHandNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: loading hand %s: %w", id, err)
	}
	return decodeRecord(record)
}

// Query filters Hands. Zero values match everything.
type Query struct {
	Player  string
	Session string
	// Limit keeps the most recent hands
	Limit int
}

// Hands returns stored hands oldest first
func (s *Store) Hands(ctx context.Context, q Query) ([]*history.Hand, error) {
	var (
		where []string
		args  []any
	)
	if q.Player != "" {
		where = append(where, "(player_a = ? OR player_b = ?)")
		args = append(args, q.Player, q.Player)
	}
	if q.Session != "" {
		where = append(where, "session_id = ?")
		args = append(args, q.Session)
	}

	query := `SELECT record FROM hands`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC, played_at DESC, hand_id DESC"
	if q.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("store: listing hands: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hands []*history.Hand
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("store: listing hands: %w", err)
		}
		h, err := decodeRecord(record)
		if err != nil {
			return nil, err
		}
		hands = append(hands, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: listing hands: %w", err)
	}

	// newest first from the query, oldest first to the caller
	for i, j := 0, len(hands)-1; i < j; i, j = i+1, j-1 {
		hands[i], hands[j] = hands[j], hands[i]
	}
	return hands, nil
}

// Totals is a player's record across every stored hand
type Totals struct {
	Hands int
	Net   int
}

// Totals sums player's hands and net winnings
func (s *Store) Totals(ctx context.Context, player string) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, s.bind(`
SELECT COUNT(*), COALESCE(SUM(CASE WHEN player_a = ? THEN winnings_a ELSE winnings_b END), 0)
FROM hands
WHERE player_a = ? OR player_b = ?`), player, player, player).Scan(&t.Hands, &t.Net)
	if err != nil {
		return Totals{}, fmt.Errorf("store: totals for %s: %w", player, err)
	}
	return t, nil
}

func decodeRecord(record string) (*history.Hand, error) {
	hands, err := history.Decode(strings.NewReader(record))
	if err != nil {
		return nil, err
	}
	if len(hands) != 1 {
		return nil, fmt.Errorf("store: record holds %d hands", len(hands))
	}
	return hands[0], nil
}

// bind rewrites ? placeholders as $1, $2... for PostgreSQL
func (s *Store) bind(query string) string {
	return rebind(s.driver, query)
}

func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
