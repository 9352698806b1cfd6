package fetcher

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/MilkyWatch/StockBox/internal/models"
	"github.com/MilkyWatch/StockBox/internal/retry"
	"github.com/MilkyWatch/StockBox/internal/storefront"
)

type RateLimiter interface {
	AllowPerSecond(ctx context.Context, name string, perSec int64) (bool, int64, error)
}

// SessionRefresher — выход на резолвер для полного пере-резолва при
// протухшей сессии.
type SessionRefresher interface {
	Refresh(ctx context.Context, pincode string) (storefront.Session, error)
}

// Fetcher опрашивает товарное API по всему каталогу для одной substore.
// Конкурентность ограничена семафором, каждый запрос проходит через общий
// посекундный лимитер и случайный джиттер.
type Fetcher struct {
	client   storefront.Client
	resolver SessionRefresher
	rl       RateLimiter
	products []models.Product

	concurrency int
	ratePerSec  int64
	attempts    int
	backoffBase time.Duration
	jitterMin   time.Duration
	jitterMax   time.Duration
}

func New(client storefront.Client, resolver SessionRefresher, rl RateLimiter, products []models.Product) *Fetcher {
	return &Fetcher{
		client:   client,
		resolver: resolver,
		rl:       rl,
		products: products,

		concurrency: 3,
		ratePerSec:  5,
		attempts:    3,
		backoffBase: time.Second,
		jitterMin:   time.Second,
		jitterMax:   2 * time.Second,
	}
}

func (f *Fetcher) WithSettings(concurrency int, ratePerSec int64, attempts int, backoffBase, jitterMin, jitterMax time.Duration) *Fetcher {
	if concurrency > 0 {
		f.concurrency = concurrency
	}
	f.ratePerSec = ratePerSec
	if attempts > 0 {
		f.attempts = attempts
	}
	if backoffBase > 0 {
		f.backoffBase = backoffBase
	}
	f.jitterMin = jitterMin
	f.jitterMax = jitterMax
	return f
}

// FetchAll возвращает статус каждого товара каталога для substore сессии.
// Протухшая сессия лечится одним полным пере-резолвом через резолвер,
// после чего дотягиваются оставшиеся товары. Исчерпание ретраев по товару
// даёт SOLD_OUT, а не ошибку партиции.
func (f *Fetcher) FetchAll(ctx context.Context, pincode string, sess storefront.Session) ([]models.ProductStatus, error) {
	remaining := append([]models.Product{}, f.products...)
	results := make([]models.ProductStatus, 0, len(remaining))
	refreshed := false

	for {
		var mu sync.Mutex
		var expired []models.Product

		sem := make(chan struct{}, f.concurrency)
		var wg sync.WaitGroup
		for _, pr := range remaining {
			pr := pr
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer func() {
					<-sem
					wg.Done()
				}()
				st, err := f.fetchOne(ctx, sess, pr)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					results = append(results, st)
				case errors.Is(err, storefront.ErrSessionExpired):
					expired = append(expired, pr)
				default:
					slog.Warn("product fetch exhausted", "product", pr.Alias, "error", err.Error())
					results = append(results, models.ProductStatus{Name: pr.Name, Status: models.StockStatusSoldOut})
				}
			}()
		}
		wg.Wait()

		if len(expired) == 0 {
			return results, nil
		}
		if refreshed {
			// Сессия протухла повторно сразу после пере-резолва: не зацикливаемся.
			for _, pr := range expired {
				slog.Warn("session expired twice", "product", pr.Alias)
				results = append(results, models.ProductStatus{Name: pr.Name, Status: models.StockStatusSoldOut})
			}
			return results, nil
		}

		newSess, err := f.resolver.Refresh(ctx, pincode)
		if err != nil {
			return results, errors.Wrap(err, "refresh session")
		}
		sess = newSess
		refreshed = true
		remaining = expired
	}
}

func (f *Fetcher) fetchOne(ctx context.Context, sess storefront.Session, pr models.Product) (models.ProductStatus, error) {
	var out models.ProductStatus
	err := retry.Do(ctx, f.attempts, retry.Exponential(f.backoffBase), retryableFetch, func(ctx context.Context) error {
		if err := f.pace(ctx); err != nil {
			return err
		}
		recs, err := f.client.FetchProduct(ctx, sess, pr.Alias)
		if err != nil {
			return err
		}
		out = f.statusOf(sess.SubstoreID, pr, recs)
		return nil
	})
	return out, err
}

// retryableFetch: 406 и 5xx — временные причуды витрины, сетевые ошибки
// тоже ретраим. Протухшая сессия ретраем не лечится.
func retryableFetch(err error) bool {
	if errors.Is(err, storefront.ErrSessionExpired) {
		return false
	}
	var se *storefront.HTTPStatusError
	if errors.As(err, &se) {
		return se.Code == 406 || se.Code >= 500
	}
	return true
}

func (f *Fetcher) statusOf(substoreID string, pr models.Product, recs []storefront.ProductData) models.ProductStatus {
	if len(recs) == 0 {
		return models.ProductStatus{Name: pr.Name, Status: models.StockStatusSoldOut}
	}
	pd := recs[0]

	qty := pd.Quantity
	if qty < 0 {
		slog.Warn("negative quantity coerced", "product", pr.Alias, "quantity", pd.Quantity)
		qty = 0
	}

	status := models.StockStatusSoldOut
	if inStock(substoreID, pd) {
		status = models.StockStatusInStock
	}
	return models.ProductStatus{Name: pr.Name, Status: status, Quantity: qty}
}

// inStock: available == 1 и substore встречается среди seller_substore_ids.
// Обе стороны могут быть склеены запятыми, поэтому сравнение — пересечение
// множеств, а не равенство строк.
func inStock(substoreID string, pd storefront.ProductData) bool {
	if pd.Available != 1 {
		return false
	}
	mine := splitIDs(substoreID)
	for _, raw := range pd.SellerSubstoreIDs {
		for id := range splitIDs(raw) {
			if _, ok := mine[id]; ok {
				return true
			}
		}
	}
	return false
}

func splitIDs(raw string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out[part] = struct{}{}
		}
	}
	return out
}

// pace — джиттер плюс общий посекундный лимитер перед каждым запросом.
// Отказ redis не блокирует фетч, только логируется.
func (f *Fetcher) pace(ctx context.Context) error {
	if d := f.jitter(); d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}

	if f.rl == nil || f.ratePerSec <= 0 {
		return nil
	}
	for {
		allowed, _, err := f.rl.AllowPerSecond(ctx, "product-api", f.ratePerSec)
		if err != nil {
			slog.Warn("product api rate limiter", "error", err.Error())
			return nil
		}
		if allowed {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (f *Fetcher) jitter() time.Duration {
	if f.jitterMax <= f.jitterMin {
		return f.jitterMin
	}
	return f.jitterMin + time.Duration(rand.Int63n(int64(f.jitterMax-f.jitterMin)))
}
