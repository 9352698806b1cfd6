package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MilkyWatch/StockBox/internal/models"
)

func subWith(mode string, products []string, lastNotified map[string]time.Time) *models.Subscriber {
	return &models.Subscriber{
		ChatID:       1,
		Pincode:      "110001",
		Products:     products,
		Active:       true,
		NotifyMode:   mode,
		LastNotified: lastNotified,
	}
}

func TestShouldNotify_SoldOutNeverNotifies(t *testing.T) {
	sub := subWith(models.NotifyModeUntilStop, []string{models.ProductAny}, nil)
	require.False(t, ShouldNotify(sub, "Amul High Protein Milk", models.StockStatusSoldOut, true, time.Now()))
}

func TestShouldNotify_ProductFilter(t *testing.T) {
	now := time.Now()
	sub := subWith(models.NotifyModeUntilStop, []string{"Amul High Protein Milk"}, nil)

	require.True(t, ShouldNotify(sub, "Amul High Protein Milk", models.StockStatusInStock, false, now))
	require.False(t, ShouldNotify(sub, "Amul Protein Buttermilk", models.StockStatusInStock, true, now))

	any := subWith(models.NotifyModeUntilStop, []string{models.ProductAny}, nil)
	require.True(t, ShouldNotify(any, "Amul Protein Buttermilk", models.StockStatusInStock, false, now))
}

func TestShouldNotify_UntilStop(t *testing.T) {
	now := time.Now()
	sub := subWith(models.NotifyModeUntilStop, []string{models.ProductAny}, map[string]time.Time{
		"Amul High Protein Milk": now.Add(-time.Second),
	})
	// Каждый цикл, пока товар в наличии.
	require.True(t, ShouldNotify(sub, "Amul High Protein Milk", models.StockStatusInStock, false, now))
}

func TestShouldNotify_OnceAndStop(t *testing.T) {
	now := time.Now()
	fresh := subWith(models.NotifyModeOnceAndStop, []string{models.ProductAny}, nil)
	require.True(t, ShouldNotify(fresh, "Amul High Protein Milk", models.StockStatusInStock, false, now))

	seen := subWith(models.NotifyModeOnceAndStop, []string{models.ProductAny}, map[string]time.Time{
		"Amul High Protein Milk": now.Add(-time.Hour),
	})
	require.False(t, ShouldNotify(seen, "Amul High Protein Milk", models.StockStatusInStock, true, now))
}

func TestShouldNotify_OncePerRestock(t *testing.T) {
	now := time.Now()
	product := "Amul High Protein Milk"

	// Первое наблюдение всегда шлётся.
	fresh := subWith(models.NotifyModeOncePerRestock, []string{models.ProductAny}, nil)
	require.True(t, ShouldNotify(fresh, product, models.StockStatusInStock, false, now))

	// Уже уведомлён, рестока нет: молчим.
	seen := subWith(models.NotifyModeOncePerRestock, []string{models.ProductAny}, map[string]time.Time{
		product: now.Add(-time.Hour),
	})
	require.False(t, ShouldNotify(seen, product, models.StockStatusInStock, false, now))

	// Ресток после кулдауна: шлём.
	require.True(t, ShouldNotify(seen, product, models.StockStatusInStock, true, now))

	// Ресток внутри кулдауна: дубль гасится.
	recent := subWith(models.NotifyModeOncePerRestock, []string{models.ProductAny}, map[string]time.Time{
		product: now.Add(-10 * time.Second),
	})
	require.False(t, ShouldNotify(recent, product, models.StockStatusInStock, true, now))
}
