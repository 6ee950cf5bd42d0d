package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"apex/internal/decision"
	"apex/internal/logger"
)

// SignalRecord is one persisted engine emission.
type SignalRecord struct {
	ID       int64   `json:"id"`
	Symbol   string  `json:"symbol"`
	Interval string  `json:"interval"`
	BarTime  int64   `json:"bar_time"`
	Close    float64 `json:"close"`
	Score    float64 `json:"score"`
	Level    int     `json:"level"`
	Flags    string  `json:"flags"`
}

// SignalStore is a sqlite-backed log of emitted signal results, the durable
// output surface for scan and serve consumers.
type SignalStore struct {
	mu sync.Mutex
	db *sql.DB
}

const signalSchema = `
CREATE TABLE IF NOT EXISTS signals (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol    TEXT NOT NULL,
    interval  TEXT NOT NULL,
    bar_time  INTEGER NOT NULL,
    close     REAL NOT NULL,
    score     REAL NOT NULL,
    level     INTEGER NOT NULL,
    flags     TEXT NOT NULL DEFAULT '',
    UNIQUE(symbol, interval, bar_time)
);
CREATE INDEX IF NOT EXISTS idx_signals_stream ON signals(symbol, interval, bar_time);
`

// OpenSignalStore opens (creating if needed) the signal log at path.
func OpenSignalStore(path string) (*SignalStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open signal store: %w", err)
	}
	if _, err := db.Exec(signalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("signal store schema: %w", err)
	}
	logger.Debugf("signal store ready at %s", path)
	return &SignalStore{db: db}, nil
}

// Insert writes one result; a re-emission for the same stream and bar time
// overwrites the previous row.
func (s *SignalStore) Insert(ctx context.Context, symbol, interval string, res decision.Result, flags string) error {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return fmt.Errorf("signal store closed")
	}
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" || strings.TrimSpace(interval) == "" {
		return fmt.Errorf("symbol/interval required")
	}
	_, err := db.ExecContext(ctx, `
        INSERT INTO signals (symbol, interval, bar_time, close, score, level, flags)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(symbol, interval, bar_time)
        DO UPDATE SET close=excluded.close, score=excluded.score, level=excluded.level, flags=excluded.flags`,
		sym, interval, res.Time, res.Close, res.Score, res.Level.Scalar(), flags)
	return err
}

// Latest returns the newest record for a stream, sql.ErrNoRows when empty.
func (s *SignalStore) Latest(ctx context.Context, symbol, interval string) (SignalRecord, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return SignalRecord{}, fmt.Errorf("signal store closed")
	}
	row := db.QueryRowContext(ctx, `
        SELECT id, symbol, interval, bar_time, close, score, level, flags
        FROM signals WHERE symbol=? AND interval=?
        ORDER BY bar_time DESC LIMIT 1`,
		strings.ToUpper(strings.TrimSpace(symbol)), interval)
	var rec SignalRecord
	err := row.Scan(&rec.ID, &rec.Symbol, &rec.Interval, &rec.BarTime, &rec.Close, &rec.Score, &rec.Level, &rec.Flags)
	return rec, err
}

// List returns up to limit recent records for a stream, newest first.
func (s *SignalStore) List(ctx context.Context, symbol, interval string, limit int) ([]SignalRecord, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("signal store closed")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
        SELECT id, symbol, interval, bar_time, close, score, level, flags
        FROM signals WHERE symbol=? AND interval=?
        ORDER BY bar_time DESC LIMIT ?`,
		strings.ToUpper(strings.TrimSpace(symbol)), interval, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SignalRecord
	for rows.Next() {
		var rec SignalRecord
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Interval, &rec.BarTime, &rec.Close, &rec.Score, &rec.Level, &rec.Flags); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Extremes returns the streams whose latest record reached at least the
// given absolute level, for scanner-style queries.
func (s *SignalStore) Extremes(ctx context.Context, minAbsLevel int, limit int) ([]SignalRecord, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("signal store closed")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
        SELECT id, symbol, interval, bar_time, close, score, level, flags FROM signals
        WHERE id IN (SELECT MAX(id) FROM signals GROUP BY symbol, interval)
          AND ABS(level) >= ?
        ORDER BY ABS(score) DESC LIMIT ?`,
		minAbsLevel, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SignalRecord
	for rows.Next() {
		var rec SignalRecord
		if err := rows.Scan(&rec.ID, &rec.Symbol, &rec.Interval, &rec.BarTime, &rec.Close, &rec.Score, &rec.Level, &rec.Flags); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SignalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
