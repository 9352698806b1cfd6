package pgstore

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS subscribers (
  chat_id BIGINT PRIMARY KEY,
  pincode TEXT NOT NULL,
  products JSONB NOT NULL DEFAULT '[]',
  active BOOLEAN NOT NULL DEFAULT TRUE,
  notify_mode TEXT NOT NULL,
  last_notified JSONB NOT NULL DEFAULT '{}',
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_subscribers_active ON subscribers(active, pincode)`,
		`
CREATE TABLE IF NOT EXISTS stock_status (
  substore_id TEXT NOT NULL,
  product TEXT NOT NULL,
  status TEXT NOT NULL,
  quantity INT NOT NULL DEFAULT 0,
  checked_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (substore_id, product)
)`,
		`
CREATE TABLE IF NOT EXISTS stock_status_history (
  id BIGSERIAL PRIMARY KEY,
  substore_id TEXT NOT NULL,
  product TEXT NOT NULL,
  status TEXT NOT NULL,
  quantity INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_status_history_key ON stock_status_history(substore_id, product, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_status_history_created_at ON stock_status_history(created_at)`,
		`
CREATE TABLE IF NOT EXISTS substores (
  alias TEXT PRIMARY KEY,
  substore_id TEXT NOT NULL,
  name TEXT NOT NULL,
  pincodes JSONB NOT NULL DEFAULT '[]',
  updated_at TIMESTAMPTZ NOT NULL
)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
