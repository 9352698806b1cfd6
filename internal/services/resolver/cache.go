package resolver

import (
	"sync"

	"github.com/MilkyWatch/StockBox/internal/models"
)

// Cache — in-memory кэши резолвера. Читается и пишется конкурентно из
// задач по партициям; устаревание допустимо, частичные записи — нет.
type Cache struct {
	mu            sync.RWMutex
	pinToSubstore map[string]string
	statuses      map[string][]models.ProductStatus
}

func NewCache() *Cache {
	return &Cache{
		pinToSubstore: map[string]string{},
		statuses:      map[string][]models.ProductStatus{},
	}
}

func (c *Cache) SubstoreID(pincode string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.pinToSubstore[pincode]
	return id, ok
}

func (c *Cache) PutSubstoreID(pincode, substoreID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinToSubstore[pincode] = substoreID
}

func (c *Cache) Statuses(substoreID string) ([]models.ProductStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.statuses[substoreID]
	return st, ok
}

func (c *Cache) PutStatuses(substoreID string, st []models.ProductStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[substoreID] = st
}

// InvalidateStatuses сбрасывает продуктовый кэш. Вызывается в начале
// каждого цикла проверки: статусы живут не дольше одного цикла.
func (c *Cache) InvalidateStatuses() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = map[string][]models.ProductStatus{}
}
