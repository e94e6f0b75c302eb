package repositories

import (
	"errors"
	"fmt"
)

// InventoryErrorCode classifies ledger failures.
type InventoryErrorCode string

const (
	InventoryErrorUnknown                 InventoryErrorCode = "inventory_unknown"
	InventoryErrorInsufficientStock       InventoryErrorCode = "inventory_insufficient_stock"
	InventoryErrorProductNotFound         InventoryErrorCode = "inventory_product_not_found"
	InventoryErrorProductInactive         InventoryErrorCode = "inventory_product_inactive"
	InventoryErrorReservationNotFound     InventoryErrorCode = "inventory_reservation_not_found"
	InventoryErrorInvalidReservationState InventoryErrorCode = "inventory_invalid_state"
	InventoryErrorInvariantViolation      InventoryErrorCode = "inventory_invariant_violation"
)

// InventoryError carries a machine readable code and, for stock failures, the product involved.
type InventoryError struct {
	Op        string
	Code      InventoryErrorCode
	ProductID string
	Message   string
	Err       error
}

func (e *InventoryError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *InventoryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewInventoryError constructs a typed inventory error.
func NewInventoryError(code InventoryErrorCode, productID, message string, err error) *InventoryError {
	if message == "" {
		message = string(code)
	}
	return &InventoryError{
		Code:      code,
		ProductID: productID,
		Message:   message,
		Err:       err,
	}
}

// AsInventoryError unwraps err into an InventoryError when possible.
func AsInventoryError(err error) (*InventoryError, bool) {
	var invErr *InventoryError
	if errors.As(err, &invErr) && invErr != nil {
		return invErr, true
	}
	return nil, false
}
