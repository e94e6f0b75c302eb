package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/kalaghar/api/internal/domain"
	"github.com/kalaghar/api/internal/repositories"
)

type inventoryRepository struct{ s *Store }

func (r inventoryRepository) Reserve(ctx context.Context, req repositories.InventoryReserveRequest) (domain.InventoryReservation, error) {
	defer r.s.lock(ctx)()
	reservation := cloneReservation(req.Reservation)
	if strings.TrimSpace(reservation.ID) == "" || len(reservation.Lines) == 0 {
		return domain.InventoryReservation{}, fmt.Errorf("inventory reserve: reservation id and lines are required")
	}
	if _, ok := r.s.data.reservations[reservation.ID]; ok {
		return domain.InventoryReservation{}, inventoryErr("inventory.reserve", repositories.InventoryErrorInvalidReservationState, "", fmt.Sprintf("reservation %s already exists", reservation.ID))
	}

	totals := make(map[string]int, len(reservation.Lines))
	var order []string
	for i := range reservation.Lines {
		line := &reservation.Lines[i]
		product, ok := r.s.data.products[line.ProductID]
		if !ok {
			return domain.InventoryReservation{}, inventoryErr("inventory.reserve", repositories.InventoryErrorProductNotFound, line.ProductID, fmt.Sprintf("product %s not found", line.ProductID))
		}
		if line.Quantity <= 0 {
			return domain.InventoryReservation{}, inventoryErr("inventory.reserve", repositories.InventoryErrorUnknown, line.ProductID, "quantity must be > 0")
		}
		line.Unlimited = product.Inventory.IsUnlimited
		if _, seen := totals[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		totals[line.ProductID] += line.Quantity
	}
	for _, id := range order {
		product := r.s.data.products[id]
		if product.Status != domain.ProductStatusActive && product.Status != "" {
			return domain.InventoryReservation{}, inventoryErr("inventory.reserve", repositories.InventoryErrorProductInactive, id, fmt.Sprintf("product %s is not active", id))
		}
		if product.Inventory.Available() < totals[id] {
			return domain.InventoryReservation{}, inventoryErr("inventory.reserve", repositories.InventoryErrorInsufficientStock, id, fmt.Sprintf("insufficient stock for %s", id))
		}
	}

	now := req.Now.UTC()
	for _, id := range order {
		product := r.s.data.products[id]
		if product.Inventory.IsUnlimited {
			continue
		}
		product.Inventory.ReservedQuantity += totals[id]
		product.UpdatedAt = now
		r.s.data.products[id] = product
	}
	reservation.Status = domain.InventoryReservationStatusReserved
	reservation.CreatedAt = now
	reservation.UpdatedAt = now
	r.s.data.reservations[reservation.ID] = cloneReservation(reservation)
	return reservation, nil
}

func (r inventoryRepository) Commit(ctx context.Context, req repositories.InventoryCommitRequest) (domain.InventoryReservation, error) {
	return r.settle(ctx, "inventory.commit", req.ReservationID, domain.InventoryReservationStatusCommitted, "", req.Now)
}

func (r inventoryRepository) Release(ctx context.Context, req repositories.InventoryReleaseRequest) (domain.InventoryReservation, error) {
	return r.settle(ctx, "inventory.release", req.ReservationID, domain.InventoryReservationStatusReleased, req.Reason, req.Now)
}

func (r inventoryRepository) settle(ctx context.Context, op, reservationID string, target domain.InventoryReservationStatus, reason string, at time.Time) (domain.InventoryReservation, error) {
	defer r.s.lock(ctx)()
	reservation, ok := r.s.data.reservations[strings.TrimSpace(reservationID)]
	if !ok {
		return domain.InventoryReservation{}, inventoryErr(op, repositories.InventoryErrorReservationNotFound, "", fmt.Sprintf("reservation %s not found", reservationID))
	}
	if reservation.Status == target {
		return cloneReservation(reservation), nil
	}
	if reservation.Status != domain.InventoryReservationStatusReserved {
		return domain.InventoryReservation{}, inventoryErr(op, repositories.InventoryErrorInvalidReservationState, "", fmt.Sprintf("reservation %s is %s", reservationID, reservation.Status))
	}

	now := at.UTC()
	updated := make(map[string]domain.Product)
	for _, line := range reservation.Lines {
		if line.Unlimited {
			continue
		}
		product, ok := updated[line.ProductID]
		if !ok {
			if product, ok = r.s.data.products[line.ProductID]; !ok {
				return domain.InventoryReservation{}, inventoryErr(op, repositories.InventoryErrorProductNotFound, line.ProductID, fmt.Sprintf("product %s not found", line.ProductID))
			}
		}
		product.Inventory.ReservedQuantity -= line.Quantity
		if target == domain.InventoryReservationStatusCommitted {
			product.Inventory.Quantity -= line.Quantity
		}
		product.UpdatedAt = now
		updated[line.ProductID] = product
	}
	for id, product := range updated {
		inv := product.Inventory
		if inv.ReservedQuantity < 0 || inv.Quantity < 0 || inv.ReservedQuantity > inv.Quantity {
			return domain.InventoryReservation{}, inventoryErr(op, repositories.InventoryErrorInvariantViolation, id,
				fmt.Sprintf("stock for %s would become quantity=%d reserved=%d", id, inv.Quantity, inv.ReservedQuantity))
		}
	}
	for id, product := range updated {
		r.s.data.products[id] = product
	}

	reservation.Status = target
	reservation.UpdatedAt = now
	if reason = strings.TrimSpace(reason); reason != "" {
		reservation.Reason = reason
	}
	r.s.data.reservations[reservation.ID] = cloneReservation(reservation)
	return cloneReservation(reservation), nil
}

func (r inventoryRepository) GetReservation(ctx context.Context, reservationID string) (domain.InventoryReservation, error) {
	defer r.s.lock(ctx)()
	reservation, ok := r.s.data.reservations[strings.TrimSpace(reservationID)]
	if !ok {
		return domain.InventoryReservation{}, inventoryErr("inventory.get_reservation", repositories.InventoryErrorReservationNotFound, "", fmt.Sprintf("reservation %s not found", reservationID))
	}
	return cloneReservation(reservation), nil
}

func inventoryErr(op string, code repositories.InventoryErrorCode, productID, message string) error {
	err := repositories.NewInventoryError(code, productID, message, nil)
	err.Op = op
	return err
}
