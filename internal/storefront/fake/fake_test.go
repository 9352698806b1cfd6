package fake

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/MilkyWatch/StockBox/internal/storefront"
)

func TestResolveSession_DerivesSubstoreFromPincode(t *testing.T) {
	c := New()

	sess, err := c.ResolveSession(context.Background(), "110001")
	require.NoError(t, err)
	require.Equal(t, "fake-substore-1", sess.SubstoreID)
	require.Equal(t, "fake-region-1", sess.Substore.Alias)
	require.NotEmpty(t, sess.Tid)

	// Один регион на все пинкоды с общей первой цифрой.
	other, err := c.ResolveSession(context.Background(), "110099")
	require.NoError(t, err)
	require.Equal(t, sess.SubstoreID, other.SubstoreID)
}

func TestResolveSession_RejectsBadPincode(t *testing.T) {
	c := New()
	for _, pin := range []string{"", "123", "1234567"} {
		_, err := c.ResolveSession(context.Background(), pin)
		require.True(t, errors.Is(err, storefront.ErrNoSubstore), "pincode %q", pin)
	}
}

func TestFetchProduct_Deterministic(t *testing.T) {
	c := New()
	sess := storefront.Session{SubstoreID: "fake-substore-1"}

	a, err := c.FetchProduct(context.Background(), sess, "amul-high-protein-milk-250-ml-or-pack-of-8")
	require.NoError(t, err)
	require.Len(t, a, 1)

	b, err := c.FetchProduct(context.Background(), sess, "amul-high-protein-milk-250-ml-or-pack-of-8")
	require.NoError(t, err)
	require.Equal(t, a, b)

	rec := a[0]
	require.Equal(t, []string{sess.SubstoreID}, rec.SellerSubstoreIDs)
	if rec.Available == 1 {
		require.Greater(t, rec.Quantity, 0)
	} else {
		require.Zero(t, rec.Quantity)
	}
}
