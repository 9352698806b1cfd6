package messages

import "time"

// StockUpdated публикуется на каждый наблюдённый переход статуса
// (substore, product). Доставка at-least-once, потребители внешние.
type StockUpdated struct {
	CycleID    string    `json:"cycle_id"`
	SubstoreID string    `json:"substore_id"`
	Product    string    `json:"product"`
	Status     string    `json:"status"`
	Quantity   int       `json:"quantity"`
	Restock    bool      `json:"restock"`
	CheckedAt  time.Time `json:"checked_at"`

	PrevStatus   *string `json:"prev_status,omitempty"`
	PrevQuantity *int    `json:"prev_quantity,omitempty"`
}
