package pgstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/MilkyWatch/StockBox/internal/models"
)

func (s *Storage) UpsertSubscriber(ctx context.Context, sub *models.Subscriber) error {
	now := time.Now().UTC()

	products, err := json.Marshal(sub.Products)
	if err != nil {
		return errors.Wrap(err, "marshal products")
	}
	lastNotified := sub.LastNotified
	if lastNotified == nil {
		lastNotified = map[string]time.Time{}
	}
	ln, err := json.Marshal(lastNotified)
	if err != nil {
		return errors.Wrap(err, "marshal last_notified")
	}

	_, err = s.db.Exec(ctx, `
INSERT INTO subscribers (
  chat_id, pincode, products, active, notify_mode, last_notified, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
ON CONFLICT (chat_id)
DO UPDATE SET
  pincode = EXCLUDED.pincode,
  products = EXCLUDED.products,
  active = EXCLUDED.active,
  notify_mode = EXCLUDED.notify_mode,
  updated_at = EXCLUDED.updated_at
`, sub.ChatID, sub.Pincode, products, sub.Active, sub.NotifyMode, ln, now)
	return errors.Wrap(err, "upsert subscriber")
}

func (s *Storage) GetActiveSubscribers(ctx context.Context) ([]*models.Subscriber, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  chat_id, pincode, products, active, notify_mode, last_notified,
  created_at, updated_at
FROM subscribers
WHERE active = TRUE
ORDER BY chat_id
`)
	if err != nil {
		return nil, errors.Wrap(err, "select subscribers")
	}
	defer rows.Close()

	out := []*models.Subscriber{}
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) GetSubscriber(ctx context.Context, chatID int64) (*models.Subscriber, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  chat_id, pincode, products, active, notify_mode, last_notified,
  created_at, updated_at
FROM subscribers
WHERE chat_id = $1
`, chatID)
	if err != nil {
		return nil, errors.Wrap(err, "select subscriber")
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return nil, errors.Wrap(rows.Err(), "rows")
		}
		return nil, nil
	}
	return scanSubscriber(rows)
}

// UpdateSubscriber применяет частичный патч. last_notified мерджится
// по ключам на стороне БД, чтобы конкурентные диспатчи не затирали
// отметки друг друга.
func (s *Storage) UpdateSubscriber(ctx context.Context, chatID int64, patch models.SubscriberPatch) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if patch.Active != nil {
		_, err := tx.Exec(ctx, `
UPDATE subscribers SET active = $2, updated_at = now() WHERE chat_id = $1
`, chatID, *patch.Active)
		if err != nil {
			return errors.Wrap(err, "update subscriber active")
		}
	}

	if len(patch.SetLastNotified) > 0 {
		merged, err := json.Marshal(patch.SetLastNotified)
		if err != nil {
			return errors.Wrap(err, "marshal last_notified patch")
		}
		_, err = tx.Exec(ctx, `
UPDATE subscribers
SET last_notified = last_notified || $2::jsonb, updated_at = now()
WHERE chat_id = $1
`, chatID, merged)
		if err != nil {
			return errors.Wrap(err, "update subscriber last_notified")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func scanSubscriber(rows pgx.Rows) (*models.Subscriber, error) {
	var sub models.Subscriber
	var products []byte
	var lastNotified []byte
	if err := rows.Scan(
		&sub.ChatID, &sub.Pincode, &products, &sub.Active, &sub.NotifyMode, &lastNotified,
		&sub.CreatedAt, &sub.UpdatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "scan subscriber")
	}
	if err := json.Unmarshal(products, &sub.Products); err != nil {
		return nil, errors.Wrap(err, "unmarshal products")
	}
	if err := json.Unmarshal(lastNotified, &sub.LastNotified); err != nil {
		return nil, errors.Wrap(err, "unmarshal last_notified")
	}
	return &sub, nil
}
