package models

import "time"

// Нормализованные статусы наличия товара.
const (
	StockStatusInStock = "IN_STOCK"
	StockStatusSoldOut = "SOLD_OUT"
)

// Режимы уведомлений подписчика.
const (
	NotifyModeUntilStop      = "until_stop"
	NotifyModeOnceAndStop    = "once_and_stop"
	NotifyModeOncePerRestock = "once_per_restock"
)

// ProductAny — sentinel: подписчик следит за всеми товарами каталога.
const ProductAny = "Any"

type Subscriber struct {
	ChatID       int64
	Pincode      string
	Products     []string
	Active       bool
	NotifyMode   string
	LastNotified map[string]time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TracksAny reports whether the subscriber follows the whole catalog.
func (s *Subscriber) TracksAny() bool {
	return len(s.Products) == 1 && s.Products[0] == ProductAny
}

// SubscriberPatch — частичное обновление записи подписчика.
// nil-поля не трогаются; SetLastNotified мерджится по ключам.
type SubscriberPatch struct {
	Active          *bool
	SetLastNotified map[string]time.Time
}

type Product struct {
	Name     string
	Alias    string
	Category string
}

type Substore struct {
	ID       string
	Name     string
	Alias    string
	Pincodes []string
}

// StatusRecord — текущее состояние (substore, product). Одна строка на ключ.
type StatusRecord struct {
	SubstoreID string
	Product    string
	Status     string
	Quantity   int
	CheckedAt  time.Time
}

// StatusTransition — строка append-only истории смен статуса.
type StatusTransition struct {
	ID         uint64
	SubstoreID string
	Product    string
	Status     string
	Quantity   int
	CreatedAt  time.Time
}

// ProductStatus — результат одной проверки товара для substore.
type ProductStatus struct {
	Name     string
	Status   string
	Quantity int
}

func (p ProductStatus) InStock() bool {
	return p.Status == StockStatusInStock
}
