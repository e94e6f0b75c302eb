package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/kalaghar/api/internal/domain"
	"github.com/kalaghar/api/internal/repositories"
)

const reservationIDPrefix = "sr_"

var (
	// ErrInventoryInvalidInput indicates a malformed reservation command.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInventoryInsufficientStock indicates a line exceeds available stock.
	ErrInventoryInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInventoryProductNotFound indicates a line references an unknown product.
	ErrInventoryProductNotFound = errors.New("inventory: product not found")
	// ErrInventoryProductInactive indicates a line references a product not for sale.
	ErrInventoryProductInactive = errors.New("inventory: product inactive")
	// ErrInventoryReservationNotFound indicates the reservation does not exist.
	ErrInventoryReservationNotFound = errors.New("inventory: reservation not found")
	// ErrInventoryInvalidState indicates the reservation was already settled the other way.
	ErrInventoryInvalidState = errors.New("inventory: invalid reservation state")
)

// InventoryServiceDeps bundles collaborators for the inventory service.
type InventoryServiceDeps struct {
	Inventory   repositories.InventoryRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type inventoryService struct {
	repo   repositories.InventoryRepository
	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

var _ InventoryService = (*inventoryService)(nil)

// NewInventoryService constructs the ledger service. Calls made with a transactional
// context join that transaction.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory service: inventory repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &inventoryService{
		repo: deps.Inventory,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *inventoryService) Reserve(ctx context.Context, cmd InventoryReserveCommand) (domain.InventoryReservation, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return domain.InventoryReservation{}, fmt.Errorf("%w: order id is required", ErrInventoryInvalidInput)
	}
	if len(cmd.Lines) == 0 {
		return domain.InventoryReservation{}, fmt.Errorf("%w: at least one line is required", ErrInventoryInvalidInput)
	}
	lines := make([]domain.InventoryReservationLine, 0, len(cmd.Lines))
	for i, line := range cmd.Lines {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" {
			return domain.InventoryReservation{}, fmt.Errorf("%w: line %d product id is required", ErrInventoryInvalidInput, i)
		}
		if line.Quantity <= 0 {
			return domain.InventoryReservation{}, fmt.Errorf("%w: line %d quantity must be positive", ErrInventoryInvalidInput, i)
		}
		lines = append(lines, domain.InventoryReservationLine{ProductID: productID, Quantity: line.Quantity})
	}

	now := s.clock()
	reservation, err := s.repo.Reserve(ctx, repositories.InventoryReserveRequest{
		Reservation: domain.InventoryReservation{
			ID:      reservationIDPrefix + s.newID(),
			OrderID: orderID,
			BuyerID: strings.TrimSpace(cmd.BuyerID),
			Lines:   lines,
		},
		Now: now,
	})
	if err != nil {
		return domain.InventoryReservation{}, s.mapError(err)
	}
	s.logger(ctx, "inventory.reserved", map[string]any{
		"reservationId": reservation.ID,
		"orderId":       orderID,
		"lines":         len(lines),
	})
	return reservation, nil
}

func (s *inventoryService) Commit(ctx context.Context, reservationID, actorID string) (domain.InventoryReservation, error) {
	reservationID = strings.TrimSpace(reservationID)
	if reservationID == "" {
		return domain.InventoryReservation{}, fmt.Errorf("%w: reservation id is required", ErrInventoryInvalidInput)
	}
	reservation, err := s.repo.Commit(ctx, repositories.InventoryCommitRequest{
		ReservationID: reservationID,
		ActorID:       strings.TrimSpace(actorID),
		Now:           s.clock(),
	})
	if err != nil {
		return domain.InventoryReservation{}, s.mapError(err)
	}
	s.logger(ctx, "inventory.committed", map[string]any{"reservationId": reservationID})
	return reservation, nil
}

func (s *inventoryService) Release(ctx context.Context, reservationID, reason string) (domain.InventoryReservation, error) {
	reservationID = strings.TrimSpace(reservationID)
	if reservationID == "" {
		return domain.InventoryReservation{}, fmt.Errorf("%w: reservation id is required", ErrInventoryInvalidInput)
	}
	reservation, err := s.repo.Release(ctx, repositories.InventoryReleaseRequest{
		ReservationID: reservationID,
		Reason:        strings.TrimSpace(reason),
		Now:           s.clock(),
	})
	if err != nil {
		return domain.InventoryReservation{}, s.mapError(err)
	}
	s.logger(ctx, "inventory.released", map[string]any{"reservationId": reservationID, "reason": reason})
	return reservation, nil
}

func (s *inventoryService) mapError(err error) error {
	invErr, ok := repositories.AsInventoryError(err)
	if !ok {
		return err
	}
	switch invErr.Code {
	case repositories.InventoryErrorInsufficientStock:
		return fmt.Errorf("%w: %w", ErrInventoryInsufficientStock, invErr)
	case repositories.InventoryErrorProductNotFound:
		return fmt.Errorf("%w: %w", ErrInventoryProductNotFound, invErr)
	case repositories.InventoryErrorProductInactive:
		return fmt.Errorf("%w: %w", ErrInventoryProductInactive, invErr)
	case repositories.InventoryErrorReservationNotFound:
		return fmt.Errorf("%w: %w", ErrInventoryReservationNotFound, invErr)
	case repositories.InventoryErrorInvalidReservationState:
		return fmt.Errorf("%w: %w", ErrInventoryInvalidState, invErr)
	default:
		return err
	}
}
