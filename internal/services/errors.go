package services

import (
	"errors"
	"fmt"

	"github.com/kalaghar/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput indicates a malformed command.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderProductNotFound indicates a requested product does not exist.
	ErrOrderProductNotFound = errors.New("order: product not found")
	// ErrOrderProductInactive indicates a requested product is not for sale.
	ErrOrderProductInactive = errors.New("order: product inactive")
	// ErrOrderInsufficientInventory indicates stock is too low for a line.
	ErrOrderInsufficientInventory = errors.New("order: insufficient inventory")
	// ErrOrderLocationMissing indicates the buyer has no usable coordinates.
	ErrOrderLocationMissing = errors.New("order: buyer location missing")
	// ErrOrderAccessDenied indicates the actor may not read or mutate the order.
	ErrOrderAccessDenied = errors.New("order: access denied")
	// ErrOrderInvalidTransition indicates the target status is not a legal successor.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderNotFound indicates the order does not exist.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderConflict indicates a concurrent modification or stale expectation.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable indicates the backing store could not be reached.
	ErrOrderUnavailable = errors.New("order: repository unavailable")
)

// mapInventoryError converts ledger failures into order sentinels.
func mapInventoryError(err error) error {
	invErr, ok := repositories.AsInventoryError(err)
	if !ok {
		return mapRepositoryError(err)
	}
	switch invErr.Code {
	case repositories.InventoryErrorInsufficientStock:
		return fmt.Errorf("%w: product %s", ErrOrderInsufficientInventory, invErr.ProductID)
	case repositories.InventoryErrorProductNotFound:
		return fmt.Errorf("%w: %s", ErrOrderProductNotFound, invErr.ProductID)
	case repositories.InventoryErrorProductInactive:
		return fmt.Errorf("%w: %s", ErrOrderProductInactive, invErr.ProductID)
	case repositories.InventoryErrorInvalidReservationState:
		return fmt.Errorf("%w: %v", ErrOrderConflict, err)
	default:
		return err
	}
}

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	return err
}
