package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MilkyWatch/StockBox/internal/catalog"
	"github.com/MilkyWatch/StockBox/internal/keyedmutex"
	"github.com/MilkyWatch/StockBox/internal/models"
	"github.com/MilkyWatch/StockBox/internal/retry"
	"github.com/MilkyWatch/StockBox/internal/transport"
)

// Исход доставки уведомления одному подписчику.
type Outcome string

const (
	OutcomeSuccess          Outcome = "SUCCESS"
	OutcomeTemporaryFailure Outcome = "TEMPORARY_FAILURE"
	OutcomePermanentFailure Outcome = "PERMANENT_FAILURE"
)

type SubscriberRepo interface {
	UpdateSubscriber(ctx context.Context, chatID int64, patch models.SubscriberPatch) error
}

// Dispatcher шлёт агрегированные уведомления. Общий семафор ограничивает
// число одновременных отправок, мьютекс по chat id сериализует все попытки
// для одного подписчика: бухгалтерия last_notified не гоняется сама с собой.
type Dispatcher struct {
	messenger transport.Messenger
	repo      SubscriberRepo
	locks     *keyedmutex.Registry[int64]
	sem       chan struct{}

	attempts       int
	attemptTimeout time.Duration
	retryPause     time.Duration
}

func NewDispatcher(messenger transport.Messenger, repo SubscriberRepo) *Dispatcher {
	return &Dispatcher{
		messenger: messenger,
		repo:      repo,
		locks:     keyedmutex.New[int64](),
		sem:       make(chan struct{}, 30),

		attempts:       3,
		attemptTimeout: 10 * time.Second,
		retryPause:     time.Second,
	}
}

func (d *Dispatcher) WithSettings(concurrency, attempts int, attemptTimeout, retryPause time.Duration) *Dispatcher {
	if concurrency > 0 {
		d.sem = make(chan struct{}, concurrency)
	}
	if attempts > 0 {
		d.attempts = attempts
	}
	if attemptTimeout > 0 {
		d.attemptTimeout = attemptTimeout
	}
	if retryPause > 0 {
		d.retryPause = retryPause
	}
	return d
}

// Notify доставляет подписчику одно сообщение со всеми прошедшими политику
// товарами. Бухгалтерия (last_notified, деактивация once_and_stop) пишется
// только после подтверждённой доставки и внутри критической секции чата.
func (d *Dispatcher) Notify(ctx context.Context, sub *models.Subscriber, partitionLabel string, notifyList []models.ProductStatus) (Outcome, error) {
	if len(notifyList) == 0 {
		return OutcomeSuccess, nil
	}

	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return OutcomeTemporaryFailure, ctx.Err()
	}
	defer func() { <-d.sem }()

	d.locks.Lock(sub.ChatID)
	defer d.locks.Unlock(sub.ChatID)

	text := buildMessage(partitionLabel, notifyList)

	err := retry.Do(ctx, d.attempts, retry.Constant(d.retryPause), retryableSend, func(ctx context.Context) error {
		sctx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
		defer cancel()
		return d.messenger.SendMessage(sctx, sub.ChatID, text)
	})
	if err != nil {
		if transport.IsPermanent(err) {
			off := false
			if uerr := d.repo.UpdateSubscriber(ctx, sub.ChatID, models.SubscriberPatch{Active: &off}); uerr != nil {
				slog.Error("deactivate subscriber", "chat_id", sub.ChatID, "error", uerr.Error())
			}
			sub.Active = false
			slog.Warn("subscriber unreachable, deactivated", "chat_id", sub.ChatID, "error", err.Error())
			return OutcomePermanentFailure, err
		}
		return OutcomeTemporaryFailure, err
	}

	now := time.Now().UTC()
	set := make(map[string]time.Time, len(notifyList))
	for _, st := range notifyList {
		set[st.Name] = now
	}
	patch := models.SubscriberPatch{SetLastNotified: set}

	if sub.LastNotified == nil {
		sub.LastNotified = map[string]time.Time{}
	}
	for k, v := range set {
		sub.LastNotified[k] = v
	}

	if sub.NotifyMode == models.NotifyModeOnceAndStop && d.allNotified(sub) {
		off := false
		patch.Active = &off
		sub.Active = false
	}

	if uerr := d.repo.UpdateSubscriber(ctx, sub.ChatID, patch); uerr != nil {
		// Сообщение ушло, бухгалтерия не записалась: лог, следующий цикл
		// может прислать дубль, терять доставку из-за этого нельзя.
		slog.Error("update subscriber bookkeeping", "chat_id", sub.ChatID, "error", uerr.Error())
	}
	return OutcomeSuccess, nil
}

// allNotified: once_and_stop выключается, когда уведомлены все выбранные
// товары; для подписки "на всё" достаточно одного.
func (d *Dispatcher) allNotified(sub *models.Subscriber) bool {
	if sub.TracksAny() {
		return len(sub.LastNotified) > 0
	}
	for _, p := range sub.Products {
		if _, ok := sub.LastNotified[p]; !ok {
			return false
		}
	}
	return true
}

func retryableSend(err error) bool {
	return !transport.IsPermanent(err)
}

func buildMessage(partitionLabel string, items []models.ProductStatus) string {
	var b strings.Builder
	b.WriteString("Back in stock")
	if partitionLabel != "" {
		fmt.Fprintf(&b, " in %s", partitionLabel)
	}
	b.WriteString(":\n")
	for _, it := range items {
		fmt.Fprintf(&b, "\n- %s (Quantity Left: %d)", catalog.DisplayName(it.Name), it.Quantity)
	}
	return b.String()
}
