package firestore

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	domain "github.com/kalaghar/api/internal/domain"
	pfirestore "github.com/kalaghar/api/internal/platform/firestore"
	"github.com/kalaghar/api/internal/repositories"
)

const productsCollection = "products"

// productDocument mirrors the catalog's schema. Prices are decimal rupees and arrive as a
// number or, from form submissions, a numeric string. The owner is stored as artisan;
// artisanId is read for older documents.
type productDocument struct {
	Name      string                   `firestore:"name"`
	Images    []string                 `firestore:"images"`
	Price     any                      `firestore:"price"`
	Artisan   string                   `firestore:"artisan"`
	ArtisanID string                   `firestore:"artisanId"`
	Status    string                   `firestore:"status"`
	Inventory productInventoryDocument `firestore:"inventory"`
	UpdatedAt time.Time               `firestore:"updatedAt"`
}

type productInventoryDocument struct {
	Quantity         int  `firestore:"quantity"`
	IsUnlimited      bool `firestore:"isUnlimited"`
	ReservedQuantity int  `firestore:"reservedQuantity"`
}

func (d productDocument) toDomain(id string) domain.Product {
	status := domain.ProductStatus(strings.ToLower(strings.TrimSpace(d.Status)))
	if status == "" {
		status = domain.ProductStatusActive
	}
	artisan := strings.TrimSpace(d.Artisan)
	if artisan == "" {
		artisan = strings.TrimSpace(d.ArtisanID)
	}
	return domain.Product{
		ID:        id,
		Name:      strings.TrimSpace(d.Name),
		Images:    append([]string(nil), d.Images...),
		Price:     priceInPaise(d.Price),
		ArtisanID: artisan,
		Status:    status,
		Inventory: domain.ProductInventory{
			Quantity:         d.Inventory.Quantity,
			IsUnlimited:      d.Inventory.IsUnlimited,
			ReservedQuantity: d.Inventory.ReservedQuantity,
		},
		UpdatedAt: d.UpdatedAt,
	}
}

// priceInPaise converts a stored rupee price. Values that do not parse yield 0, which the
// order pipeline refuses to sell.
func priceInPaise(raw any) int64 {
	switch v := raw.(type) {
	case float64:
		return domain.MinorUnits(v)
	case int64:
		return v * 100
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return domain.MinorUnits(parsed)
	default:
		return 0
	}
}

// ProductRepository reads catalog entries. It never writes product documents.
type ProductRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a Firestore-backed product reader.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{base: pfirestore.NewBaseRepository[productDocument](provider, productsCollection)}, nil
}

// FindByID loads one product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByIDs loads products in one round trip. Missing ids are absent from the map.
func (r *ProductRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("product repository not initialised")
	}
	docs, err := r.base.GetAll(ctx, uniqueIDs(productIDs))
	if err != nil {
		return nil, err
	}
	products := make(map[string]domain.Product, len(docs))
	for _, doc := range docs {
		products[doc.ID] = doc.Data.toDomain(doc.ID)
	}
	return products, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
