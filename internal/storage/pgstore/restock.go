package pgstore

import "github.com/MilkyWatch/StockBox/internal/models"

// IsRestockEvent решает, считается ли текущая проверка "возвратом в наличие".
// Да, если товар сейчас в наличии и либо мы его раньше не видели, либо он
// был распродан, либо числился в наличии с нулевым остатком.
func IsRestockEvent(current models.StatusRecord, prev *models.StatusRecord) bool {
	if current.Status != models.StockStatusInStock {
		return false
	}
	if prev == nil || prev.Status != models.StockStatusInStock {
		return true
	}
	return prev.Quantity == 0
}
