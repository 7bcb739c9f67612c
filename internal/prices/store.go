package prices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/apperr"
)

// Sample is one price observation for a token, stamped with the round
// interval boundary it belongs to.
type Sample struct {
	TokenID   string
	Timestamp time.Time
	Price     float64
	Volume24h *float64
	Change24h *float64
}

// Store appends samples to a SQLite table.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open price db: %w", err)
	}
	// :memory: databases exist per connection
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS token_prices (
            id         INTEGER PRIMARY KEY AUTOINCREMENT,
            token_id   TEXT    NOT NULL,
            timestamp  INTEGER NOT NULL,
            datetime   TEXT    NOT NULL,
            price      REAL    NOT NULL,
            volume_24h REAL,
            change_24h REAL
        );`,
		`CREATE INDEX IF NOT EXISTS token_prices_token_ts ON token_prices(token_id, timestamp);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init price schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Insert writes samples in one transaction.
func (s *Store) Insert(ctx context.Context, samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin price insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO token_prices
        (token_id, timestamp, datetime, price, volume_24h, change_24h)
        VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare price insert: %w", err)
	}
	defer stmt.Close()

	for _, sm := range samples {
		ts := sm.Timestamp.UTC()
		if _, err := stmt.ExecContext(ctx, sm.TokenID, ts.Unix(), ts.Format("2006-01-02 15:04:05"),
			sm.Price, nullFloat(sm.Volume24h), nullFloat(sm.Change24h)); err != nil {
			return fmt.Errorf("insert price for %s: %w", sm.TokenID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit prices: %w", err)
	}
	return nil
}

// Latest returns the newest sample for tokenID.
func (s *Store) Latest(ctx context.Context, tokenID string) (*Sample, error) {
	row := s.db.QueryRowContext(ctx, `SELECT token_id, timestamp, price, volume_24h, change_24h
        FROM token_prices WHERE token_id = ? ORDER BY timestamp DESC, id DESC LIMIT 1`, tokenID)

	var (
		sm     Sample
		unix   int64
		vol    sql.NullFloat64
		change sql.NullFloat64
	)
	err := row.Scan(&sm.TokenID, &unix, &sm.Price, &vol, &change)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no price for %s", apperr.ErrNotFound, tokenID)
	}
	if err != nil {
		return nil, fmt.Errorf("read latest price: %w", err)
	}
	sm.Timestamp = time.Unix(unix, 0).UTC()
	if vol.Valid {
		sm.Volume24h = &vol.Float64
	}
	if change.Valid {
		sm.Change24h = &change.Float64
	}
	return &sm, nil
}

// Count returns the number of stored samples for tokenID.
func (s *Store) Count(ctx context.Context, tokenID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM token_prices WHERE token_id = ?`, tokenID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count prices: %w", err)
	}
	return n, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
