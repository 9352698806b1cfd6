package storefront

import (
	"context"
	"fmt"

	"github.com/MilkyWatch/StockBox/internal/models"
	"github.com/pkg/errors"
)

// Ошибки разрешения сессии и запросов к витрине.
var (
	// ErrSessionRejected — витрина не дала установить браузерную сессию.
	ErrSessionRejected = errors.New("storefront rejected session")
	// ErrNoSubstore — pincode не найден в справочнике витрины.
	ErrNoSubstore = errors.New("no substore for pincode")
	// ErrPreferenceRejected — setPreferences отверг сессию (406). Не ретраим
	// внутри резолва, решает вызывающий уровень.
	ErrPreferenceRejected = errors.New("storefront rejected preferences")
	// ErrSessionExpired — пустой/невалидный ответ товарного API: сессия
	// протухла, нужен полный пере-резолв.
	ErrSessionExpired = errors.New("storefront session expired")
)

// HTTPStatusError — не-2xx ответ товарного API.
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("storefront http status %d", e.Code)
}

// IsRetryableStatus: 406 и 5xx ретраим с backoff, остальное — нет.
func IsRetryableStatus(err error) bool {
	var se *HTTPStatusError
	if errors.As(err, &se) {
		return se.Code == 406 || se.Code >= 500
	}
	return false
}

// Session — результат привязки браузерной сессии к substore.
type Session struct {
	Tid        string
	SubstoreID string
	Substore   models.Substore
}

// ProductData — запись товарного API. Поля уже приведены к типам; кривые
// значения (нечисловой available/quantity) коэрцируются клиентом в 0.
type ProductData struct {
	Name              string
	Alias             string
	Available         int
	SellerSubstoreIDs []string
	Quantity          int
}

type Client interface {
	// ResolveSession устанавливает сессию и привязывает её к substore
	// по pincode.
	ResolveSession(ctx context.Context, pincode string) (Session, error)
	// FetchProduct возвращает записи товарного API по alias (обычно 0 или 1).
	FetchProduct(ctx context.Context, sess Session, alias string) ([]ProductData, error)
}
