package notify

import (
	"time"

	"github.com/MilkyWatch/StockBox/internal/models"
)

// RestockCooldown гасит дубли once_per_restock, когда один и тот же
// возврат в наличие наблюдается двумя циклами подряд.
const RestockCooldown = 60 * time.Second

// ShouldNotify — чистое решение "слать ли уведомление" для пары
// (подписчик, товар). Никакого I/O, вся нужная информация в аргументах.
func ShouldNotify(sub *models.Subscriber, product, status string, isRestock bool, now time.Time) bool {
	if status != models.StockStatusInStock {
		return false
	}
	if !tracks(sub, product) {
		return false
	}

	switch sub.NotifyMode {
	case models.NotifyModeUntilStop:
		return true
	case models.NotifyModeOnceAndStop:
		_, seen := sub.LastNotified[product]
		return !seen
	case models.NotifyModeOncePerRestock:
		last, seen := sub.LastNotified[product]
		if !seen {
			return true
		}
		if !isRestock {
			return false
		}
		return now.Sub(last) >= RestockCooldown
	default:
		return false
	}
}

func tracks(sub *models.Subscriber, product string) bool {
	if sub.TracksAny() {
		return true
	}
	for _, p := range sub.Products {
		if p == product {
			return true
		}
	}
	return false
}
