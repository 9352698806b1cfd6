package pgstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MilkyWatch/StockBox/internal/models"
)

func TestPGStore_RepoFlow(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "stockbox_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/stockbox_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	// Подписчики: апсерт, выборка активных, частичный патч.
	require.NoError(t, st.UpsertSubscriber(ctx, &models.Subscriber{
		ChatID:     101,
		Pincode:    "110001",
		Products:   []string{models.ProductAny},
		Active:     true,
		NotifyMode: models.NotifyModeUntilStop,
	}))
	require.NoError(t, st.UpsertSubscriber(ctx, &models.Subscriber{
		ChatID:     102,
		Pincode:    "560001",
		Products:   []string{"amul-high-protein-milk"},
		Active:     false,
		NotifyMode: models.NotifyModeOnceAndStop,
	}))

	active, err := st.GetActiveSubscribers(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, int64(101), active[0].ChatID)
	require.True(t, active[0].TracksAny())

	notifiedAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.UpdateSubscriber(ctx, 101, models.SubscriberPatch{
		SetLastNotified: map[string]time.Time{"amul-high-protein-milk": notifiedAt},
	}))
	later := notifiedAt.Add(time.Minute)
	require.NoError(t, st.UpdateSubscriber(ctx, 101, models.SubscriberPatch{
		SetLastNotified: map[string]time.Time{"amul-protein-buttermilk": later},
	}))

	got, err := st.GetSubscriber(ctx, 101)
	require.NoError(t, err)
	require.NotNil(t, got)
	// Мердж не теряет ранее записанные ключи.
	require.Equal(t, notifiedAt, got.LastNotified["amul-high-protein-milk"].UTC())
	require.Equal(t, later, got.LastNotified["amul-protein-buttermilk"].UTC())

	off := false
	require.NoError(t, st.UpdateSubscriber(ctx, 101, models.SubscriberPatch{Active: &off}))
	active, err = st.GetActiveSubscribers(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	// Состояние стока: первая запись, идемпотентный повтор, смена статуса.
	now := time.Now().UTC()
	first := models.StatusRecord{
		SubstoreID: "66505ff0998183e1b1935c75",
		Product:    "amul-high-protein-milk",
		Status:     models.StockStatusSoldOut,
		Quantity:   0,
		CheckedAt:  now,
	}
	prev, err := st.RecordStateChange(ctx, first)
	require.NoError(t, err)
	require.Nil(t, prev)

	repeat := first
	repeat.CheckedAt = now.Add(time.Minute)
	prev, err = st.RecordStateChange(ctx, repeat)
	require.NoError(t, err)
	require.NotNil(t, prev)
	require.Equal(t, models.StockStatusSoldOut, prev.Status)

	// Повтор того же статуса не плодит историю.
	hist, err := st.ListHistory(ctx, first.SubstoreID, first.Product, 10, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)

	flip := first
	flip.Status = models.StockStatusInStock
	flip.Quantity = 8
	flip.CheckedAt = now.Add(2 * time.Minute)
	prev, err = st.RecordStateChange(ctx, flip)
	require.NoError(t, err)
	require.NotNil(t, prev)
	require.True(t, IsRestockEvent(flip, prev))

	hist, err = st.ListHistory(ctx, first.SubstoreID, first.Product, 10, 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, models.StockStatusInStock, hist[0].Status)

	last, err := st.GetLastStateChange(ctx, first.SubstoreID, first.Product)
	require.NoError(t, err)
	require.NotNil(t, last)
	require.Equal(t, models.StockStatusInStock, last.Status)
	require.Equal(t, 8, last.Quantity)

	// Чистка истории: старые строки уходят, свежие остаются.
	_, err = st.db.Exec(ctx, `
UPDATE stock_status_history SET created_at = now() - interval '3 days' WHERE status = $1
`, models.StockStatusSoldOut)
	require.NoError(t, err)

	deleted, err := st.CleanupHistory(ctx, time.Now().UTC().Add(-48*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	hist, err = st.ListHistory(ctx, first.SubstoreID, first.Product, 10, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)

	// Справочник substore: пинкоды только накапливаются.
	require.NoError(t, st.UpsertSubstore(ctx, models.Substore{
		ID:       "66505ff0998183e1b1935c75",
		Name:     "Delhi",
		Alias:    "delhi",
		Pincodes: []string{"110001", "110002"},
	}))
	require.NoError(t, st.UpsertSubstore(ctx, models.Substore{
		ID:       "66505ff0998183e1b1935c75",
		Name:     "Delhi",
		Alias:    "delhi",
		Pincodes: []string{"110002", "201014"},
	}))

	subs, err := st.ListSubstores(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.ElementsMatch(t, []string{"110001", "110002", "201014"}, subs[0].Pincodes)
}
