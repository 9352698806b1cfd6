package pgstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/MilkyWatch/StockBox/internal/models"
)

// UpsertSubstore сохраняет substore, сливая списки пинкодов: пинкоды только
// добавляются, существующие никогда не выкидываются. Ключ слияния — alias.
func (s *Storage) UpsertSubstore(ctx context.Context, sub models.Substore) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var existing []byte
	row := tx.QueryRow(ctx, `
SELECT pincodes FROM substores WHERE alias = $1 FOR UPDATE
`, sub.Alias)

	pincodes := sub.Pincodes
	switch err := row.Scan(&existing); err {
	case nil:
		var prev []string
		if err := json.Unmarshal(existing, &prev); err != nil {
			return errors.Wrap(err, "unmarshal pincodes")
		}
		pincodes = mergePincodes(prev, sub.Pincodes)
	case pgx.ErrNoRows:
	default:
		return errors.Wrap(err, "select substore")
	}

	merged, err := json.Marshal(pincodes)
	if err != nil {
		return errors.Wrap(err, "marshal pincodes")
	}

	_, err = tx.Exec(ctx, `
INSERT INTO substores (alias, substore_id, name, pincodes, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (alias)
DO UPDATE SET
  substore_id = EXCLUDED.substore_id,
  name = EXCLUDED.name,
  pincodes = EXCLUDED.pincodes,
  updated_at = EXCLUDED.updated_at
`, sub.Alias, sub.ID, sub.Name, merged, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "upsert substore")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Storage) ListSubstores(ctx context.Context) ([]models.Substore, error) {
	rows, err := s.db.Query(ctx, `
SELECT alias, substore_id, name, pincodes FROM substores ORDER BY alias
`)
	if err != nil {
		return nil, errors.Wrap(err, "select substores")
	}
	defer rows.Close()

	var out []models.Substore
	for rows.Next() {
		var sub models.Substore
		var pincodes []byte
		if err := rows.Scan(&sub.Alias, &sub.ID, &sub.Name, &pincodes); err != nil {
			return nil, errors.Wrap(err, "scan substore")
		}
		if err := json.Unmarshal(pincodes, &sub.Pincodes); err != nil {
			return nil, errors.Wrap(err, "unmarshal pincodes")
		}
		out = append(out, sub)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// SeedSubstores загружает стартовый справочник. Уже известные substore
// дополняются, ничего не перетирается подчистую.
func (s *Storage) SeedSubstores(ctx context.Context, subs []models.Substore) error {
	for _, sub := range subs {
		if err := s.UpsertSubstore(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

func mergePincodes(prev, add []string) []string {
	seen := make(map[string]struct{}, len(prev)+len(add))
	out := make([]string, 0, len(prev)+len(add))
	for _, p := range prev {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, p := range add {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
