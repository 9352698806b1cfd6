package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/MilkyWatch/StockBox/internal/models"
	"github.com/MilkyWatch/StockBox/internal/transport"
)

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []string
	errs     []error // очередь ошибок, по одной на попытку
	inFlight map[int64]*atomic.Int32
	maxSeen  atomic.Int32
}

func newFakeMessenger(errs ...error) *fakeMessenger {
	return &fakeMessenger{errs: errs, inFlight: map[int64]*atomic.Int32{}}
}

func (m *fakeMessenger) SendMessage(ctx context.Context, chatID int64, text string) error {
	m.mu.Lock()
	cnt, ok := m.inFlight[chatID]
	if !ok {
		cnt = &atomic.Int32{}
		m.inFlight[chatID] = cnt
	}
	var err error
	if len(m.errs) > 0 {
		err = m.errs[0]
		m.errs = m.errs[1:]
	}
	m.mu.Unlock()

	if n := cnt.Add(1); n > m.maxSeen.Load() {
		m.maxSeen.Store(n)
	}
	time.Sleep(5 * time.Millisecond)
	cnt.Add(-1)

	if err != nil {
		return err
	}
	m.mu.Lock()
	m.sent = append(m.sent, text)
	m.mu.Unlock()
	return nil
}

func (m *fakeMessenger) RecipientStatus(ctx context.Context, chatID int64) (transport.Status, error) {
	return transport.StatusOK, nil
}

type patchRepo struct {
	mu      sync.Mutex
	patches []models.SubscriberPatch
	err     error
}

func (r *patchRepo) UpdateSubscriber(ctx context.Context, chatID int64, patch models.SubscriberPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patches = append(r.patches, patch)
	return r.err
}

func fastDispatcher(m transport.Messenger, repo SubscriberRepo) *Dispatcher {
	return NewDispatcher(m, repo).WithSettings(30, 3, time.Second, time.Millisecond)
}

func milkList() []models.ProductStatus {
	return []models.ProductStatus{
		{Name: "Amul High Protein Milk", Status: models.StockStatusInStock, Quantity: 7},
	}
}

func TestDispatcher_SuccessWritesBookkeeping(t *testing.T) {
	m := newFakeMessenger()
	repo := &patchRepo{}
	d := fastDispatcher(m, repo)

	sub := subWith(models.NotifyModeUntilStop, []string{models.ProductAny}, nil)
	out, err := d.Notify(context.Background(), sub, "Delhi", milkList())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, out)

	require.Len(t, m.sent, 1)
	require.Contains(t, m.sent[0], "Delhi")
	require.Contains(t, m.sent[0], "Quantity Left: 7")

	require.Len(t, repo.patches, 1)
	require.Nil(t, repo.patches[0].Active)
	require.Contains(t, repo.patches[0].SetLastNotified, "Amul High Protein Milk")
}

func TestDispatcher_EmptyListIsNoop(t *testing.T) {
	m := newFakeMessenger()
	repo := &patchRepo{}
	d := fastDispatcher(m, repo)

	sub := subWith(models.NotifyModeUntilStop, []string{models.ProductAny}, nil)
	out, err := d.Notify(context.Background(), sub, "Delhi", nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, out)
	require.Empty(t, m.sent)
	require.Empty(t, repo.patches)
}

func TestDispatcher_TemporaryFailure_RetriesThenGivesUp(t *testing.T) {
	tempErr := &transport.APIError{Code: 429, Description: "Too Many Requests"}
	m := newFakeMessenger(tempErr, tempErr, tempErr)
	repo := &patchRepo{}
	d := fastDispatcher(m, repo)

	sub := subWith(models.NotifyModeUntilStop, []string{models.ProductAny}, nil)
	out, err := d.Notify(context.Background(), sub, "Delhi", milkList())
	require.Error(t, err)
	require.Equal(t, OutcomeTemporaryFailure, out)

	// Доставка не подтверждена: бухгалтерию не трогаем.
	require.Empty(t, repo.patches)
	require.True(t, sub.Active)
}

func TestDispatcher_TemporaryFailure_RecoversWithinAttempts(t *testing.T) {
	tempErr := &transport.APIError{Code: 500, Description: "boom"}
	m := newFakeMessenger(tempErr)
	repo := &patchRepo{}
	d := fastDispatcher(m, repo)

	sub := subWith(models.NotifyModeUntilStop, []string{models.ProductAny}, nil)
	out, err := d.Notify(context.Background(), sub, "Delhi", milkList())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, out)
	require.Len(t, m.sent, 1)
}

func TestDispatcher_PermanentFailure_DeactivatesWithoutRetry(t *testing.T) {
	m := newFakeMessenger(errors.Wrap(transport.ErrRecipientBlocked, "Forbidden"))
	repo := &patchRepo{}
	d := fastDispatcher(m, repo)

	sub := subWith(models.NotifyModeUntilStop, []string{models.ProductAny}, nil)
	out, err := d.Notify(context.Background(), sub, "Delhi", milkList())
	require.Error(t, err)
	require.Equal(t, OutcomePermanentFailure, out)
	require.False(t, sub.Active)

	// Одна попытка, один патч: только деактивация, без last_notified.
	require.Empty(t, m.sent)
	require.Len(t, repo.patches, 1)
	require.NotNil(t, repo.patches[0].Active)
	require.False(t, *repo.patches[0].Active)
	require.Empty(t, repo.patches[0].SetLastNotified)
}

func TestDispatcher_OnceAndStop_DeactivatesAfterAllProducts(t *testing.T) {
	m := newFakeMessenger()
	repo := &patchRepo{}
	d := fastDispatcher(m, repo)

	sub := subWith(models.NotifyModeOnceAndStop, []string{"Amul High Protein Milk", "Amul Protein Buttermilk"}, nil)

	out, err := d.Notify(context.Background(), sub, "Delhi", milkList())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, out)
	require.True(t, sub.Active)
	require.Nil(t, repo.patches[0].Active)

	out, err = d.Notify(context.Background(), sub, "Delhi", []models.ProductStatus{
		{Name: "Amul Protein Buttermilk", Status: models.StockStatusInStock, Quantity: 2},
	})
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, out)
	require.False(t, sub.Active)
	require.NotNil(t, repo.patches[1].Active)
	require.False(t, *repo.patches[1].Active)
}

func TestDispatcher_OnceAndStop_AnyDeactivatesAfterFirst(t *testing.T) {
	m := newFakeMessenger()
	repo := &patchRepo{}
	d := fastDispatcher(m, repo)

	sub := subWith(models.NotifyModeOnceAndStop, []string{models.ProductAny}, nil)
	out, err := d.Notify(context.Background(), sub, "Delhi", milkList())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, out)
	require.False(t, sub.Active)
}

func TestDispatcher_PerChatSerialization(t *testing.T) {
	m := newFakeMessenger()
	repo := &patchRepo{}
	d := fastDispatcher(m, repo)

	sub := subWith(models.NotifyModeUntilStop, []string{models.ProductAny}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Notify(context.Background(), sub, "Delhi", milkList())
		}()
	}
	wg.Wait()

	// Отправки одного чата никогда не перекрываются.
	require.Equal(t, int32(1), m.maxSeen.Load())
	require.Len(t, m.sent, 8)
}
