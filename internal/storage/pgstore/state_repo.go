package pgstore

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/MilkyWatch/StockBox/internal/models"
)

// RecordStateChange фиксирует результат проверки (substore, product) в одной
// транзакции: текущая строка апсертится всегда, строка истории добавляется
// только при реальной смене статуса. Возвращает предыдущее состояние
// (nil, если ключ наблюдается впервые).
func (s *Storage) RecordStateChange(ctx context.Context, rec models.StatusRecord) (*models.StatusRecord, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var prev *models.StatusRecord
	row := tx.QueryRow(ctx, `
SELECT status, quantity, checked_at
FROM stock_status
WHERE substore_id = $1 AND product = $2
FOR UPDATE
`, rec.SubstoreID, rec.Product)

	var p models.StatusRecord
	p.SubstoreID = rec.SubstoreID
	p.Product = rec.Product
	switch err := row.Scan(&p.Status, &p.Quantity, &p.CheckedAt); err {
	case nil:
		prev = &p
	case pgx.ErrNoRows:
	default:
		return nil, errors.Wrap(err, "select current status")
	}

	_, err = tx.Exec(ctx, `
INSERT INTO stock_status (substore_id, product, status, quantity, checked_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (substore_id, product)
DO UPDATE SET
  status = EXCLUDED.status,
  quantity = EXCLUDED.quantity,
  checked_at = EXCLUDED.checked_at
`, rec.SubstoreID, rec.Product, rec.Status, rec.Quantity, rec.CheckedAt.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "upsert status")
	}

	if prev == nil || prev.Status != rec.Status {
		_, err = tx.Exec(ctx, `
INSERT INTO stock_status_history (substore_id, product, status, quantity, created_at)
VALUES ($1,$2,$3,$4,$5)
`, rec.SubstoreID, rec.Product, rec.Status, rec.Quantity, rec.CheckedAt.UTC())
		if err != nil {
			return nil, errors.Wrap(err, "insert history")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return prev, nil
}

func (s *Storage) GetLastStateChange(ctx context.Context, substoreID, product string) (*models.StatusTransition, error) {
	row := s.db.QueryRow(ctx, `
SELECT id, substore_id, product, status, quantity, created_at
FROM stock_status_history
WHERE substore_id = $1 AND product = $2
ORDER BY created_at DESC, id DESC
LIMIT 1
`, substoreID, product)

	var t models.StatusTransition
	switch err := row.Scan(&t.ID, &t.SubstoreID, &t.Product, &t.Status, &t.Quantity, &t.CreatedAt); err {
	case nil:
		return &t, nil
	case pgx.ErrNoRows:
		return nil, nil
	default:
		return nil, errors.Wrap(err, "select last change")
	}
}

func (s *Storage) ListHistory(ctx context.Context, substoreID, product string, limit, offset int) ([]*models.StatusTransition, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT id, substore_id, product, status, quantity, created_at
FROM stock_status_history
WHERE substore_id = $1 AND product = $2
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4
`, substoreID, product, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select history")
	}
	defer rows.Close()

	var out []*models.StatusTransition
	for rows.Next() {
		var t models.StatusTransition
		if err := rows.Scan(&t.ID, &t.SubstoreID, &t.Product, &t.Status, &t.Quantity, &t.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan history")
		}
		out = append(out, &t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// CleanupHistory удаляет строки истории старше cutoff. Текущие состояния
// не трогаются.
func (s *Storage) CleanupHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
DELETE FROM stock_status_history WHERE created_at < $1
`, cutoff.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "cleanup history")
	}
	return tag.RowsAffected(), nil
}
