package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/aman-zulfiqar/cardano-swap-assistant/internal/models"
	"github.com/sirupsen/logrus"
)

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Logger   *logrus.Logger
}

// ClickHouseStore persists every submitted swap for history queries.
type ClickHouseStore struct {
	conn   driver.Conn
	logger *logrus.Logger
}

const swapsTableDDL = `
CREATE TABLE IF NOT EXISTS swaps (
	execution_id   String,
	tx_hash        String,
	timestamp      DateTime64(3, 'UTC'),
	pair           LowCardinality(String),
	from_asset     String,
	to_asset       String,
	amount_in      String,
	amount_out_min String,
	fee            UInt64,
	pool           String,
	wallet         String,
	dex            LowCardinality(String)
) ENGINE = MergeTree
ORDER BY (pair, timestamp)`

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("clickhouse address is required")
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"addr":     cfg.Addr,
		"database": cfg.Database,
	}).Info("connected to ClickHouse")

	return &ClickHouseStore{conn: conn, logger: cfg.Logger}, nil
}

// EnsureSchema creates the swaps table when it is missing.
func (c *ClickHouseStore) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, swapsTableDDL); err != nil {
		return fmt.Errorf("create swaps table: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) RecordSwap(ctx context.Context, swap *models.SwapEvent) error {
	query := `
		INSERT INTO swaps (
			execution_id, tx_hash, timestamp, pair, from_asset, to_asset,
			amount_in, amount_out_min, fee, pool, wallet, dex
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := c.conn.Exec(ctx, query,
		swap.ExecutionID,
		swap.TxHash,
		swap.Timestamp,
		swap.Pair,
		swap.FromAsset,
		swap.ToAsset,
		swap.AmountIn,
		swap.AmountOutMin,
		swap.Fee,
		swap.Pool,
		swap.Wallet,
		swap.Dex,
	)
	if err != nil {
		return fmt.Errorf("failed to insert swap: %w", err)
	}
	return nil
}

// WalletHistory returns the latest swaps submitted from wallet.
func (c *ClickHouseStore) WalletHistory(ctx context.Context, wallet string, limit int) ([]*models.SwapEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := c.conn.Query(ctx, `
		SELECT execution_id, tx_hash, timestamp, pair, from_asset, to_asset,
		       amount_in, amount_out_min, fee, pool, wallet, dex
		FROM swaps
		WHERE wallet = ?
		ORDER BY timestamp DESC
		LIMIT ?`, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("query wallet history: %w", err)
	}
	defer rows.Close()

	var out []*models.SwapEvent
	for rows.Next() {
		var s models.SwapEvent
		if err := rows.Scan(
			&s.ExecutionID, &s.TxHash, &s.Timestamp, &s.Pair, &s.FromAsset, &s.ToAsset,
			&s.AmountIn, &s.AmountOutMin, &s.Fee, &s.Pool, &s.Wallet, &s.Dex,
		); err != nil {
			return nil, fmt.Errorf("scan swap row: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap rows: %w", err)
	}
	return out, nil
}

func (c *ClickHouseStore) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
