package fake

import (
	"context"
	"hash/fnv"

	"github.com/MilkyWatch/StockBox/internal/models"
	"github.com/MilkyWatch/StockBox/internal/storefront"
)

// FakeClient — детерминированная заглушка витрины для локальной разработки.
// Substore выводится из первой цифры pincode, наличие — из хэша alias:
// часть товаров окажется In Stock.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) ResolveSession(ctx context.Context, pincode string) (storefront.Session, error) {
	if len(pincode) != 6 {
		return storefront.Session{}, storefront.ErrNoSubstore
	}
	id := "fake-substore-" + pincode[:1]
	return storefront.Session{
		Tid:        "fake-tid-" + pincode,
		SubstoreID: id,
		Substore: models.Substore{
			ID:    id,
			Name:  "Fake Region " + pincode[:1],
			Alias: "fake-region-" + pincode[:1],
		},
	}, nil
}

func (f *FakeClient) FetchProduct(ctx context.Context, sess storefront.Session, alias string) ([]storefront.ProductData, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sess.SubstoreID))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(alias))
	v := h.Sum32()

	// примерно треть товаров доступна
	available := 0
	qty := 0
	if v%3 == 0 {
		available = 1
		qty = int(v%50) + 1
	}

	return []storefront.ProductData{{
		Name:              alias,
		Alias:             alias,
		Available:         available,
		SellerSubstoreIDs: []string{sess.SubstoreID},
		Quantity:          qty,
	}}, nil
}
