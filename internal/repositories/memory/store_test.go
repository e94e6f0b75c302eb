package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/kalaghar/api/internal/domain"
	"github.com/kalaghar/api/internal/repositories"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seededStore() *Store {
	s := NewStore()
	s.PutProduct(domain.Product{ID: "vase", ArtisanID: "a1", Price: 50000, Status: domain.ProductStatusActive, Inventory: domain.ProductInventory{Quantity: 5}})
	s.PutProduct(domain.Product{ID: "shawl", ArtisanID: "a1", Price: 15000, Status: domain.ProductStatusActive, Inventory: domain.ProductInventory{Quantity: 1}})
	s.PutProduct(domain.Product{ID: "print", ArtisanID: "a2", Price: 2000, Status: domain.ProductStatusActive, Inventory: domain.ProductInventory{IsUnlimited: true}})
	s.PutProduct(domain.Product{ID: "retired", ArtisanID: "a2", Status: domain.ProductStatusArchived, Inventory: domain.ProductInventory{Quantity: 10}})
	return s
}

func reserve(t *testing.T, s *Store, id string, lines ...domain.InventoryReservationLine) (domain.InventoryReservation, error) {
	t.Helper()
	return s.Inventory().Reserve(context.Background(), repositories.InventoryReserveRequest{
		Reservation: domain.InventoryReservation{ID: id, OrderID: "ord_" + id, Lines: lines},
		Now:         testNow,
	})
}

func assertStock(t *testing.T, s *Store, id string, quantity, reserved int) {
	t.Helper()
	p, ok := s.Product(id)
	require.True(t, ok)
	assert.Equal(t, quantity, p.Inventory.Quantity, "quantity of %s", id)
	assert.Equal(t, reserved, p.Inventory.ReservedQuantity, "reserved of %s", id)
	assert.LessOrEqual(t, p.Inventory.ReservedQuantity, p.Inventory.Quantity)
}

func TestReserveIsAllOrNothing(t *testing.T) {
	s := seededStore()
	_, err := reserve(t, s, "sr_1",
		domain.InventoryReservationLine{ProductID: "vase", Quantity: 2},
		domain.InventoryReservationLine{ProductID: "shawl", Quantity: 2},
	)
	invErr, ok := repositories.AsInventoryError(err)
	require.True(t, ok, "expected inventory error, got %v", err)
	assert.Equal(t, repositories.InventoryErrorInsufficientStock, invErr.Code)
	assert.Equal(t, "shawl", invErr.ProductID)

	assertStock(t, s, "vase", 5, 0)
	assertStock(t, s, "shawl", 1, 0)
	_, err = s.Inventory().GetReservation(context.Background(), "sr_1")
	require.Error(t, err)
}

func TestReserveSumsDuplicateLines(t *testing.T) {
	s := seededStore()
	_, err := reserve(t, s, "sr_dup",
		domain.InventoryReservationLine{ProductID: "vase", Quantity: 3},
		domain.InventoryReservationLine{ProductID: "vase", Quantity: 3},
	)
	invErr, ok := repositories.AsInventoryError(err)
	require.True(t, ok)
	assert.Equal(t, repositories.InventoryErrorInsufficientStock, invErr.Code)
	assertStock(t, s, "vase", 5, 0)
}

func TestReserveRejectsMissingAndInactiveProducts(t *testing.T) {
	s := seededStore()

	_, err := reserve(t, s, "sr_missing", domain.InventoryReservationLine{ProductID: "ghost", Quantity: 1})
	invErr, ok := repositories.AsInventoryError(err)
	require.True(t, ok)
	assert.Equal(t, repositories.InventoryErrorProductNotFound, invErr.Code)

	_, err = reserve(t, s, "sr_inactive", domain.InventoryReservationLine{ProductID: "retired", Quantity: 1})
	invErr, ok = repositories.AsInventoryError(err)
	require.True(t, ok)
	assert.Equal(t, repositories.InventoryErrorProductInactive, invErr.Code)
}

func TestReserveCommitReleaseKeepCountersConsistent(t *testing.T) {
	s := seededStore()
	ctx := context.Background()

	res, err := reserve(t, s, "sr_a",
		domain.InventoryReservationLine{ProductID: "vase", Quantity: 2},
		domain.InventoryReservationLine{ProductID: "print", Quantity: 50},
	)
	require.NoError(t, err)
	assert.True(t, res.Lines[1].Unlimited)
	assertStock(t, s, "vase", 5, 2)
	assertStock(t, s, "print", 0, 0)

	_, err = reserve(t, s, "sr_b", domain.InventoryReservationLine{ProductID: "vase", Quantity: 3})
	require.NoError(t, err)
	assertStock(t, s, "vase", 5, 5)

	_, err = reserve(t, s, "sr_c", domain.InventoryReservationLine{ProductID: "vase", Quantity: 1})
	require.Error(t, err)

	committed, err := s.Inventory().Commit(ctx, repositories.InventoryCommitRequest{ReservationID: "sr_a", Now: testNow})
	require.NoError(t, err)
	assert.Equal(t, domain.InventoryReservationStatusCommitted, committed.Status)
	assertStock(t, s, "vase", 3, 3)

	_, err = s.Inventory().Commit(ctx, repositories.InventoryCommitRequest{ReservationID: "sr_a", Now: testNow})
	require.NoError(t, err, "commit is idempotent")
	assertStock(t, s, "vase", 3, 3)

	released, err := s.Inventory().Release(ctx, repositories.InventoryReleaseRequest{ReservationID: "sr_b", Reason: "buyer cancelled", Now: testNow})
	require.NoError(t, err)
	assert.Equal(t, "buyer cancelled", released.Reason)
	assertStock(t, s, "vase", 3, 0)

	_, err = s.Inventory().Commit(ctx, repositories.InventoryCommitRequest{ReservationID: "sr_b", Now: testNow})
	invErr, ok := repositories.AsInventoryError(err)
	require.True(t, ok)
	assert.Equal(t, repositories.InventoryErrorInvalidReservationState, invErr.Code)
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	s := seededStore()
	boom := errors.New("order insert failed")

	err := s.RunInTx(context.Background(), func(ctx context.Context) error {
		if _, err := s.Inventory().Reserve(ctx, repositories.InventoryReserveRequest{
			Reservation: domain.InventoryReservation{ID: "sr_tx", Lines: []domain.InventoryReservationLine{{ProductID: "vase", Quantity: 4}}},
			Now:         testNow,
		}); err != nil {
			return err
		}
		if err := s.Orders().Insert(ctx, domain.Order{ID: "ord_tx"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assertStock(t, s, "vase", 5, 0)
	_, err = s.Orders().FindByID(context.Background(), "ord_tx")
	var repoErr repositories.RepositoryError
	require.ErrorAs(t, err, &repoErr)
	assert.True(t, repoErr.IsNotFound())
}

func TestOrderListFiltersAndPaginates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	for i, buyer := range []string{"b1", "b1", "b2", "b1"} {
		order := domain.Order{
			ID:         string(rune('a'+i)) + "_order",
			BuyerID:    buyer,
			ArtisanIDs: []string{"a1"},
			Status:     domain.OrderStatusPending,
			CreatedAt:  testNow.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.Orders().Insert(ctx, order))
	}
	require.Error(t, s.Orders().Insert(ctx, domain.Order{ID: "a_order"}))

	page, err := s.Orders().List(ctx, repositories.OrderListFilter{BuyerID: "b1", Page: domain.PageRequest{Page: 1, Limit: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages())
	require.Len(t, page.Items, 2)
	assert.Equal(t, "d_order", page.Items[0].ID)

	page, err = s.Orders().List(ctx, repositories.OrderListFilter{BuyerID: "b1", Page: domain.PageRequest{Page: 5, Limit: 2}})
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	counts, err := s.Orders().CountByStatus(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 4, counts[domain.OrderStatusPending])
	assert.Equal(t, 0, counts[domain.OrderStatusShipped])
}

func TestHealthReflectsReadyError(t *testing.T) {
	s := NewStore()
	report, err := s.Health().Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusOK, report.Status)

	s.SetReadyError(errors.New("disk full"))
	report, err = s.Health().Collect(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, domain.HealthStatusOK, report.Status)
}
