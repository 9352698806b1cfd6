package checker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MilkyWatch/StockBox/internal/broker/messages"
	"github.com/MilkyWatch/StockBox/internal/cache"
	"github.com/MilkyWatch/StockBox/internal/models"
	"github.com/MilkyWatch/StockBox/internal/retry"
	"github.com/MilkyWatch/StockBox/internal/services/notify"
	"github.com/MilkyWatch/StockBox/internal/services/resolver"
	"github.com/MilkyWatch/StockBox/internal/storage/pgstore"
	"github.com/MilkyWatch/StockBox/internal/storefront"
)

type SubscriberRepo interface {
	GetActiveSubscribers(ctx context.Context) ([]*models.Subscriber, error)
}

type StateStore interface {
	RecordStateChange(ctx context.Context, rec models.StatusRecord) (*models.StatusRecord, error)
	CleanupHistory(ctx context.Context, cutoff time.Time) (int64, error)
}

type SessionResolver interface {
	Resolve(ctx context.Context, pincode string) (storefront.Session, error)
}

type Fetcher interface {
	FetchAll(ctx context.Context, pincode string, sess storefront.Session) ([]models.ProductStatus, error)
}

type Dispatcher interface {
	Notify(ctx context.Context, sub *models.Subscriber, partitionLabel string, notifyList []models.ProductStatus) (notify.Outcome, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

const cleanupGateKey = "stockbox:cleanup:done"

// Checker — оркестратор цикла проверки: подписчики → substore-группы →
// фетч по партициям → запись состояния → события → уведомления.
type Checker struct {
	subs     SubscriberRepo
	store    StateStore
	resolver SessionResolver
	cache    *resolver.Cache
	fetcher  Fetcher
	disp     Dispatcher
	producer Producer
	gate     cache.BytesCache

	topic string

	checkInterval        time.Duration
	partitionConcurrency int
	retention            time.Duration

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalCycles         atomic.Int64
	totalPartitions     atomic.Int64
	totalNotified       atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(subs SubscriberRepo, store StateStore, res SessionResolver, c *resolver.Cache, f Fetcher, d Dispatcher, producer Producer, gate cache.BytesCache, topic string) *Checker {
	return &Checker{
		subs: subs, store: store, resolver: res, cache: c, fetcher: f, disp: d,
		producer: producer, gate: gate, topic: topic,

		checkInterval:        5 * time.Minute,
		partitionConcurrency: 10,
		retention:            48 * time.Hour,

		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (c *Checker) WithSettings(checkInterval time.Duration, partitionConcurrency int, retention time.Duration) *Checker {
	if checkInterval > 0 {
		c.checkInterval = checkInterval
	}
	if partitionConcurrency > 0 {
		c.partitionConcurrency = partitionConcurrency
	}
	if retention > 0 {
		c.retention = retention
	}
	return c
}

// Trigger запускает внеочередной цикл (best-effort, неблокирующий).
func (c *Checker) Trigger() {
	c.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case c.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt       time.Time  `json:"startedAt"`
	LastCycleAt     *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt   *time.Time `json:"lastTriggerAt,omitempty"`
	TotalCycles     int64      `json:"totalCycles"`
	TotalPartitions int64      `json:"totalPartitions"`
	TotalNotified   int64      `json:"totalNotified"`
	TotalErrors     int64      `json:"totalErrors"`
	InFlight        int64      `json:"inFlight"`
	LastError       string     `json:"lastError,omitempty"`
}

func (c *Checker) Stats() Stats {
	st := Stats{
		StartedAt:       time.Unix(0, c.startedAtUnixNano).UTC(),
		TotalCycles:     c.totalCycles.Load(),
		TotalPartitions: c.totalPartitions.Load(),
		TotalNotified:   c.totalNotified.Load(),
		TotalErrors:     c.totalErrors.Load(),
		InFlight:        c.inFlight.Load(),
	}
	if n := c.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := c.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	c.lastErrorMu.Lock()
	st.LastError = c.lastError
	c.lastErrorMu.Unlock()
	return st
}

func (c *Checker) Run(ctx context.Context) error {
	t := time.NewTicker(c.checkInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			c.runOnce(ctx)
		case <-c.triggerCh:
			c.runOnce(ctx)
		}
	}
}

type partitionGroup struct {
	sess    storefront.Session
	pincode string
	label   string
	subs    []*models.Subscriber
}

func (c *Checker) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	c.lastCycleUnixNano.Store(now.UnixNano())
	c.totalCycles.Add(1)
	cycleID := uuid.NewString()

	// Продуктовый кэш живёт не дольше одного цикла.
	c.cache.InvalidateStatuses()

	subs, err := c.subs.GetActiveSubscribers(ctx)
	if err != nil {
		c.noteError(err)
		slog.Error("load subscribers", "cycle_id", cycleID, "error", err.Error())
		return
	}
	if len(subs) == 0 {
		c.maybeCleanup(ctx)
		return
	}

	groups := map[string]*partitionGroup{}
	for _, sub := range subs {
		sess, err := c.resolver.Resolve(ctx, sub.Pincode)
		if err != nil {
			// Нерезолвящийся pincode пропускает цикл, подписка живёт дальше.
			slog.Warn("resolve pincode", "cycle_id", cycleID, "pincode", resolver.Mask(sub.Pincode), "error", err.Error())
			continue
		}
		g, ok := groups[sess.SubstoreID]
		if !ok {
			label := sess.Substore.Name
			if label == "" {
				label = sess.SubstoreID
			}
			g = &partitionGroup{sess: sess, pincode: sub.Pincode, label: label}
			groups[sess.SubstoreID] = g
		}
		g.subs = append(g.subs, sub)
	}

	sem := make(chan struct{}, c.partitionConcurrency)
	var wg sync.WaitGroup
	for _, g := range groups {
		sem <- struct{}{}
		wg.Add(1)
		gCopy := g
		c.inFlight.Add(1)
		go func() {
			defer func() {
				c.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			c.processPartition(ctx, cycleID, gCopy)
		}()
	}
	wg.Wait()
	c.totalPartitions.Add(int64(len(groups)))

	c.maybeCleanup(ctx)
	slog.Info("check cycle done", "cycle_id", cycleID, "subscribers", len(subs), "partitions", len(groups))
}

func (c *Checker) processPartition(ctx context.Context, cycleID string, g *partitionGroup) {
	id := g.sess.SubstoreID

	statuses, ok := c.cache.Statuses(id)
	if !ok {
		var err error
		statuses, err = c.fetcher.FetchAll(ctx, g.pincode, g.sess)
		if err != nil {
			c.noteError(err)
			slog.Error("fetch partition", "cycle_id", cycleID, "substore", id, "error", err.Error())
			return
		}
		c.cache.PutStatuses(id, statuses)
	}

	now := time.Now().UTC()
	restock := map[string]bool{}
	notifiable := map[string]bool{}
	for _, st := range statuses {
		rec := models.StatusRecord{
			SubstoreID: id,
			Product:    st.Name,
			Status:     st.Status,
			Quantity:   st.Quantity,
			CheckedAt:  now,
		}
		prev, err := c.store.RecordStateChange(ctx, rec)
		if err != nil {
			// Незаписанное состояние не уведомляем: бухгалтерия без
			// записанного факта хуже пропущенного цикла.
			c.noteError(err)
			slog.Error("record state", "cycle_id", cycleID, "substore", id, "product", st.Name, "error", err.Error())
			continue
		}
		notifiable[st.Name] = true
		isRestock := pgstore.IsRestockEvent(rec, prev)
		restock[st.Name] = isRestock

		if prev == nil || prev.Status != rec.Status {
			c.publishTransition(ctx, cycleID, rec, prev, isRestock)
		}
	}

	var wg sync.WaitGroup
	for _, sub := range g.subs {
		var list []models.ProductStatus
		for _, st := range statuses {
			if !notifiable[st.Name] {
				continue
			}
			if notify.ShouldNotify(sub, st.Name, st.Status, restock[st.Name], now) {
				list = append(list, st)
			}
		}
		if len(list) == 0 {
			continue
		}

		subCopy := sub
		listCopy := list
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := c.disp.Notify(ctx, subCopy, g.label, listCopy)
			if err != nil {
				c.noteError(err)
				slog.Warn("notify subscriber", "cycle_id", cycleID, "chat_id", subCopy.ChatID, "outcome", string(out), "error", err.Error())
				return
			}
			c.totalNotified.Add(1)
		}()
	}
	wg.Wait()
}

func (c *Checker) publishTransition(ctx context.Context, cycleID string, rec models.StatusRecord, prev *models.StatusRecord, isRestock bool) {
	if c.producer == nil {
		return
	}

	msg := messages.StockUpdated{
		CycleID:    cycleID,
		SubstoreID: rec.SubstoreID,
		Product:    rec.Product,
		Status:     rec.Status,
		Quantity:   rec.Quantity,
		Restock:    isRestock,
		CheckedAt:  rec.CheckedAt,
	}
	if prev != nil {
		msg.PrevStatus = &prev.Status
		msg.PrevQuantity = &prev.Quantity
	}

	b, err := json.Marshal(msg)
	if err != nil {
		c.noteError(err)
		return
	}

	key := []byte(rec.SubstoreID + ":" + rec.Product)
	// Kafka может быть не готова сразу после старта окружения.
	err = retry.Do(ctx, 5, retry.Constant(200*time.Millisecond), nil, func(ctx context.Context) error {
		return c.producer.Publish(ctx, c.topic, key, b)
	})
	if err != nil {
		c.noteError(err)
		slog.Error("publish transition", "cycle_id", cycleID, "substore", rec.SubstoreID, "product", rec.Product, "error", err.Error())
	}
}

// maybeCleanup запускает чистку истории не чаще раза за окно ретеншена.
// Отметка о прогоне живёт в redis и переживает рестарты воркера.
func (c *Checker) maybeCleanup(ctx context.Context) {
	if c.gate == nil {
		return
	}
	_, done, err := c.gate.Get(ctx, cleanupGateKey)
	if err != nil {
		slog.Warn("cleanup gate", "error", err.Error())
		return
	}
	if done {
		return
	}

	deleted, err := c.store.CleanupHistory(ctx, time.Now().UTC().Add(-c.retention))
	if err != nil {
		c.noteError(err)
		slog.Error("cleanup history", "error", err.Error())
		return
	}
	if err := c.gate.Set(ctx, cleanupGateKey, []byte("1"), c.retention); err != nil {
		slog.Warn("cleanup gate set", "error", err.Error())
	}
	slog.Info("history cleanup", "deleted", deleted)
}

func (c *Checker) noteError(err error) {
	c.totalErrors.Add(1)
	c.lastErrorMu.Lock()
	c.lastError = err.Error()
	c.lastErrorMu.Unlock()
}
