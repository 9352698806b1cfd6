package resolver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"github.com/MilkyWatch/StockBox/internal/models"
	"github.com/MilkyWatch/StockBox/internal/storefront"
)

type SubstoreRepo interface {
	ListSubstores(ctx context.Context) ([]models.Substore, error)
	UpsertSubstore(ctx context.Context, sub models.Substore) error
}

// Resolver превращает pincode в привязанную сессию витрины. Держит кэш
// pincode→substore и живые сессии по substore, лечит справочник substore
// по мере появления новых pincode.
type Resolver struct {
	client storefront.Client
	repo   SubstoreRepo
	cache  *Cache

	mu       sync.RWMutex
	sessions map[string]storefront.Session // substoreID -> сессия
}

func New(client storefront.Client, repo SubstoreRepo, cache *Cache) *Resolver {
	return &Resolver{
		client:   client,
		repo:     repo,
		cache:    cache,
		sessions: map[string]storefront.Session{},
	}
}

// Warm наполняет кэш pincode→substore из персистентного справочника,
// чтобы рестарт не начинался с пустого кэша.
func (r *Resolver) Warm(ctx context.Context) error {
	subs, err := r.repo.ListSubstores(ctx)
	if err != nil {
		return errors.Wrap(err, "list substores")
	}
	for _, sub := range subs {
		for _, pin := range sub.Pincodes {
			r.cache.PutSubstoreID(pin, sub.ID)
		}
	}
	return nil
}

// Resolve возвращает сессию для pincode. Сначала кэш: известный pincode с
// живой сессией не ходит в сеть вообще.
func (r *Resolver) Resolve(ctx context.Context, pincode string) (storefront.Session, error) {
	if id, ok := r.cache.SubstoreID(pincode); ok {
		r.mu.RLock()
		sess, ok := r.sessions[id]
		r.mu.RUnlock()
		if ok {
			return sess, nil
		}
	}
	return r.resolveFresh(ctx, pincode)
}

// Refresh принудительно пере-резолвит pincode, сбрасывая кэшированную
// сессию. Вызывается фетчером при протухании сессии.
func (r *Resolver) Refresh(ctx context.Context, pincode string) (storefront.Session, error) {
	if id, ok := r.cache.SubstoreID(pincode); ok {
		r.mu.Lock()
		delete(r.sessions, id)
		r.mu.Unlock()
	}
	return r.resolveFresh(ctx, pincode)
}

func (r *Resolver) resolveFresh(ctx context.Context, pincode string) (storefront.Session, error) {
	sess, err := r.client.ResolveSession(ctx, pincode)
	if err != nil {
		return storefront.Session{}, err
	}

	r.cache.PutSubstoreID(pincode, sess.SubstoreID)
	r.mu.Lock()
	r.sessions[sess.SubstoreID] = sess
	r.mu.Unlock()

	if err := r.heal(ctx, pincode, sess); err != nil {
		// Недоливка справочника не должна ронять резолв.
		slog.Warn("substore mapping heal", "pincode", Mask(pincode), "error", err.Error())
	}
	return sess, nil
}

// heal дописывает pincode в справочник substore: сперва матчим по id,
// потом по alias (alias — канонический ключ слияния дублей), иначе
// заводим новую запись. Существующие pincode никогда не выкидываются.
func (r *Resolver) heal(ctx context.Context, pincode string, sess storefront.Session) error {
	subs, err := r.repo.ListSubstores(ctx)
	if err != nil {
		return errors.Wrap(err, "list substores")
	}

	var match *models.Substore
	for i := range subs {
		if subs[i].ID == sess.SubstoreID {
			match = &subs[i]
			break
		}
	}
	if match == nil && sess.Substore.Alias != "" {
		for i := range subs {
			if subs[i].Alias == sess.Substore.Alias {
				match = &subs[i]
				break
			}
		}
	}

	if match != nil {
		for _, p := range match.Pincodes {
			if p == pincode {
				return nil
			}
		}
		match.ID = sess.SubstoreID
		match.Pincodes = append(match.Pincodes, pincode)
		return r.repo.UpsertSubstore(ctx, *match)
	}

	entry := sess.Substore
	entry.ID = sess.SubstoreID
	if entry.Name == "" {
		entry.Name = "Unknown-" + sess.SubstoreID
	}
	if entry.Alias == "" {
		entry.Alias = "substore-" + shortID(sess.SubstoreID)
	}
	entry.Pincodes = appendUnique(entry.Pincodes, pincode)
	return r.repo.UpsertSubstore(ctx, entry)
}

func shortID(id string) string {
	if len(id) > 6 {
		return id[:6]
	}
	return id
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// Mask прячет середину чувствительного значения в логах.
func Mask(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}
