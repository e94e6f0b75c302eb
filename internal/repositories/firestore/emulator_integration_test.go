package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	domain "github.com/kalaghar/api/internal/domain"
	pconfig "github.com/kalaghar/api/internal/platform/config"
	pfirestore "github.com/kalaghar/api/internal/platform/firestore"
	"github.com/kalaghar/api/internal/repositories"
)

// newEmulatorProvider skips unless FIRESTORE_EMULATOR_HOST points at a running emulator.
func newEmulatorProvider(t *testing.T, project string) *pfirestore.Provider {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    fmt.Sprintf("%s-%d", project, time.Now().UnixNano()),
		EmulatorHost: host,
	})
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})
	return provider
}

func seedProduct(t *testing.T, ctx context.Context, provider *pfirestore.Provider, id string, quantity int, unlimited bool) {
	t.Helper()
	client, err := provider.Client(ctx)
	if err != nil {
		t.Fatalf("provider client: %v", err)
	}
	_, err = client.Collection(productsCollection).Doc(id).Set(ctx, map[string]any{
		"name":      "Blue pottery vase " + id,
		"price":     500.0,
		"artisan":   "artisan_1",
		"status":    "active",
		"inventory": map[string]any{
			"quantity":         quantity,
			"isUnlimited":      unlimited,
			"reservedQuantity": 0,
		},
	})
	if err != nil {
		t.Fatalf("seed product %s: %v", id, err)
	}
}

func TestInventoryRepositoryEmulator(t *testing.T) {
	provider := newEmulatorProvider(t, "inventory-test")
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	seedProduct(t, ctx, provider, "prod_vase", 5, false)
	seedProduct(t, ctx, provider, "prod_print", 0, true)

	inventory, err := NewInventoryRepository(provider)
	if err != nil {
		t.Fatalf("new inventory repository: %v", err)
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		t.Fatalf("new product repository: %v", err)
	}
	now := time.Now().UTC()

	_, err = inventory.Reserve(ctx, repositories.InventoryReserveRequest{
		Reservation: domain.InventoryReservation{
			ID:      "sr_too_many",
			OrderID: "ord_1",
			Lines: []domain.InventoryReservationLine{
				{ProductID: "prod_vase", Quantity: 3},
				{ProductID: "prod_vase", Quantity: 3},
			},
		},
		Now: now,
	})
	invErr, ok := repositories.AsInventoryError(err)
	if !ok || invErr.Code != repositories.InventoryErrorInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	reservation, err := inventory.Reserve(ctx, repositories.InventoryReserveRequest{
		Reservation: domain.InventoryReservation{
			ID:      "sr_ok",
			OrderID: "ord_2",
			Lines: []domain.InventoryReservationLine{
				{ProductID: "prod_vase", Quantity: 2},
				{ProductID: "prod_print", Quantity: 40},
			},
		},
		Now: now,
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !reservation.Lines[1].Unlimited {
		t.Fatalf("expected unlimited line to be flagged")
	}

	vase, err := products.FindByID(ctx, "prod_vase")
	if err != nil {
		t.Fatalf("find product: %v", err)
	}
	if vase.Inventory.ReservedQuantity != 2 || vase.Price != 50000 {
		t.Fatalf("unexpected product after reserve: %+v", vase)
	}

	if _, err := inventory.Commit(ctx, repositories.InventoryCommitRequest{ReservationID: "sr_ok", Now: now}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := inventory.Commit(ctx, repositories.InventoryCommitRequest{ReservationID: "sr_ok", Now: now}); err != nil {
		t.Fatalf("second commit should be a no-op: %v", err)
	}
	_, err = inventory.Release(ctx, repositories.InventoryReleaseRequest{ReservationID: "sr_ok", Now: now})
	if invErr, ok := repositories.AsInventoryError(err); !ok || invErr.Code != repositories.InventoryErrorInvalidReservationState {
		t.Fatalf("expected release after commit to fail, got %v", err)
	}

	vase, err = products.FindByID(ctx, "prod_vase")
	if err != nil {
		t.Fatalf("find product: %v", err)
	}
	if vase.Inventory.Quantity != 3 || vase.Inventory.ReservedQuantity != 0 {
		t.Fatalf("unexpected stock after commit: %+v", vase.Inventory)
	}
}

func TestCounterRepositoryEmulator(t *testing.T) {
	provider := newEmulatorProvider(t, "counter-test")
	repo, err := NewCounterRepository(provider)
	if err != nil {
		t.Fatalf("new counter repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const workers = 8
	results := make([]int64, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(idx int) {
			defer wg.Done()
			value, err := repo.Next(ctx, "orders-2026", 1)
			if err != nil {
				t.Errorf("next(%d): %v", idx, err)
				return
			}
			results[idx] = value
		}(i)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, val := range results {
		if val != int64(i+1) {
			t.Fatalf("expected sequence %d at position %d, got %d", i+1, i, val)
		}
	}
}

func TestOrderRepositoryEmulator(t *testing.T) {
	provider := newEmulatorProvider(t, "order-test")
	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("new order repository: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		order := domain.Order{
			ID:         fmt.Sprintf("ord_%d", i),
			BuyerID:    "buyer_1",
			ArtisanIDs: []string{"artisan_1"},
			Items:      []domain.OrderLineItem{{ProductID: "prod_vase", ArtisanID: "artisan_1", Quantity: 1, PriceAtTime: 50000}},
			Status:     domain.OrderStatusPending,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
			UpdatedAt:  base.Add(time.Duration(i) * time.Hour),
		}
		if err := repo.Insert(ctx, order); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := repo.Insert(ctx, domain.Order{ID: "ord_0"}); err == nil {
		t.Fatalf("expected duplicate insert to fail")
	} else {
		var repoErr repositories.RepositoryError
		if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
			t.Fatalf("expected conflict error, got %v", err)
		}
	}

	page, err := repo.List(ctx, repositories.OrderListFilter{ArtisanID: "artisan_1", Page: domain.PageRequest{Page: 1, Limit: 2}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.Items[0].ID != "ord_2" {
		t.Fatalf("unexpected page: total=%d items=%d", page.Total, len(page.Items))
	}

	counts, err := repo.CountByStatus(ctx, "artisan_1")
	if err != nil {
		t.Fatalf("count by status: %v", err)
	}
	if counts[domain.OrderStatusPending] != 3 {
		t.Fatalf("expected 3 pending, got %v", counts)
	}
}

func TestCatalogDocumentsEmulator(t *testing.T) {
	provider := newEmulatorProvider(t, "catalog-test")
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client, err := provider.Client(ctx)
	if err != nil {
		t.Fatalf("provider client: %v", err)
	}
	// Shapes written by the registration and product upload flows.
	if _, err := client.Collection(usersCollection).Doc("buyer_1").Set(ctx, map[string]any{
		"name":        "Asha",
		"email":       "asha@example.com",
		"role":        "buyer",
		"firebaseUid": "buyer_1",
		"profile": map[string]any{
			"location": map[string]any{
				"city":      "Delhi",
				"state":     "Delhi",
				"latitude":  28.6139,
				"longitude": 77.2090,
			},
		},
		"settings": map[string]any{"language": "en"},
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := client.Collection(productsCollection).Doc("prod_shawl").Set(ctx, map[string]any{
		"name":    "Pashmina shawl",
		"price":   "1499.50",
		"artisan": "artisan_1",
		"status":  "active",
		"inventory": map[string]any{
			"quantity":         4,
			"reservedQuantity": 0,
		},
	}); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	users, err := NewUserRepository(provider)
	if err != nil {
		t.Fatalf("new user repository: %v", err)
	}
	buyer, err := users.FindByID(ctx, "buyer_1")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	coords, ok := buyer.Location.Coordinates()
	if !ok || coords.Latitude != 28.6139 || buyer.Location.City != "Delhi" {
		t.Fatalf("expected nested profile location, got %+v", buyer.Location)
	}

	products, err := NewProductRepository(provider)
	if err != nil {
		t.Fatalf("new product repository: %v", err)
	}
	shawl, err := products.FindByID(ctx, "prod_shawl")
	if err != nil {
		t.Fatalf("find product: %v", err)
	}
	if shawl.ArtisanID != "artisan_1" || shawl.Price != 149950 || shawl.Inventory.Quantity != 4 {
		t.Fatalf("unexpected product %+v", shawl)
	}
}
