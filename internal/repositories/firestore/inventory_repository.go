package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/kalaghar/api/internal/domain"
	pfirestore "github.com/kalaghar/api/internal/platform/firestore"
	"github.com/kalaghar/api/internal/repositories"
)

const inventoryReservationsCollection = "inventoryReservations"

// InventoryRepository keeps product stock counters and reservation records consistent.
// Every method reads all documents it needs before writing, so it can run inside a
// caller's transaction that performs further writes.
type InventoryRepository struct {
	provider     *pfirestore.Provider
	products     *pfirestore.BaseRepository[productDocument]
	reservations *pfirestore.BaseRepository[reservationDocument]
}

var _ repositories.InventoryRepository = (*InventoryRepository)(nil)

// NewInventoryRepository constructs the Firestore inventory ledger.
func NewInventoryRepository(provider *pfirestore.Provider) (*InventoryRepository, error) {
	if provider == nil {
		return nil, errors.New("inventory repository requires firestore provider")
	}
	return &InventoryRepository{
		provider:     provider,
		products:     pfirestore.NewBaseRepository[productDocument](provider, productsCollection),
		reservations: pfirestore.NewBaseRepository[reservationDocument](provider, inventoryReservationsCollection),
	}, nil
}

type stockSnapshot struct {
	ref *firestore.DocumentRef
	doc productDocument
}

// Reserve validates every line against current stock and only then increments
// reservedQuantity for each limited product and creates the reservation record.
func (r *InventoryRepository) Reserve(ctx context.Context, req repositories.InventoryReserveRequest) (domain.InventoryReservation, error) {
	if r == nil || r.provider == nil {
		return domain.InventoryReservation{}, errors.New("inventory repository not initialised")
	}
	reservation := req.Reservation
	if strings.TrimSpace(reservation.ID) == "" {
		return domain.InventoryReservation{}, errors.New("inventory reserve: reservation id is required")
	}
	if len(reservation.Lines) == 0 {
		return domain.InventoryReservation{}, errors.New("inventory reserve: at least one line is required")
	}

	now := req.Now.UTC()
	reservation.Status = domain.InventoryReservationStatusReserved
	reservation.CreatedAt = now
	reservation.UpdatedAt = now

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		resRef, err := r.reservations.DocumentRef(ctx, reservation.ID)
		if err != nil {
			return err
		}
		if _, err := tx.Get(resRef); err == nil {
			return repositories.NewInventoryError(repositories.InventoryErrorInvalidReservationState, "", fmt.Sprintf("reservation %s already exists", reservation.ID), nil)
		} else if status.Code(err) != codes.NotFound {
			return err
		}

		requested, order, err := sumLines(reservation.Lines)
		if err != nil {
			return err
		}
		snapshots, err := r.loadStocks(ctx, tx, order)
		if err != nil {
			return err
		}

		for i := range reservation.Lines {
			line := &reservation.Lines[i]
			line.Unlimited = snapshots[line.ProductID].doc.Inventory.IsUnlimited
		}
		for _, productID := range order {
			snap := snapshots[productID]
			if snap.doc.toDomain(productID).Status != domain.ProductStatusActive {
				return repositories.NewInventoryError(repositories.InventoryErrorProductInactive, productID, fmt.Sprintf("product %s is not active", productID), nil)
			}
			inv := snap.doc.Inventory
			if inv.IsUnlimited {
				continue
			}
			if inv.Quantity-inv.ReservedQuantity < requested[productID] {
				return repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, productID, fmt.Sprintf("insufficient stock for %s", productID), nil)
			}
		}

		for _, productID := range order {
			snap := snapshots[productID]
			if snap.doc.Inventory.IsUnlimited {
				continue
			}
			inv := snap.doc.Inventory
			inv.ReservedQuantity += requested[productID]
			if err := writeStock(tx, snap.ref, productID, inv, now); err != nil {
				return err
			}
		}
		return tx.Create(resRef, newReservationDocument(reservation))
	})
	if err != nil {
		return domain.InventoryReservation{}, wrapInventoryError("inventory.reserve", err)
	}
	return reservation, nil
}

// Commit turns reserved units into shipped stock. Committing twice is a no-op.
func (r *InventoryRepository) Commit(ctx context.Context, req repositories.InventoryCommitRequest) (domain.InventoryReservation, error) {
	return r.settle(ctx, "inventory.commit", req.ReservationID, domain.InventoryReservationStatusCommitted, "", req.Now)
}

// Release returns reserved units to available stock. Releasing twice is a no-op.
func (r *InventoryRepository) Release(ctx context.Context, req repositories.InventoryReleaseRequest) (domain.InventoryReservation, error) {
	return r.settle(ctx, "inventory.release", req.ReservationID, domain.InventoryReservationStatusReleased, req.Reason, req.Now)
}

func (r *InventoryRepository) settle(ctx context.Context, op, reservationID string, target domain.InventoryReservationStatus, reason string, at time.Time) (domain.InventoryReservation, error) {
	if r == nil || r.provider == nil {
		return domain.InventoryReservation{}, errors.New("inventory repository not initialised")
	}
	reservationID = strings.TrimSpace(reservationID)
	if reservationID == "" {
		return domain.InventoryReservation{}, fmt.Errorf("%s: reservation id is required", op)
	}
	now := at.UTC()

	var result domain.InventoryReservation
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		resRef, err := r.reservations.DocumentRef(ctx, reservationID)
		if err != nil {
			return err
		}
		resSnap, err := tx.Get(resRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewInventoryError(repositories.InventoryErrorReservationNotFound, "", fmt.Sprintf("reservation %s not found", reservationID), err)
			}
			return err
		}
		var resDoc reservationDocument
		if err := resSnap.DataTo(&resDoc); err != nil {
			return fmt.Errorf("decode reservation %s: %w", reservationID, err)
		}
		current := domain.InventoryReservationStatus(resDoc.Status)
		if current == target {
			result = resDoc.toDomain(reservationID)
			return nil
		}
		if current != domain.InventoryReservationStatusReserved {
			return repositories.NewInventoryError(repositories.InventoryErrorInvalidReservationState, "", fmt.Sprintf("reservation %s is %s", reservationID, current), nil)
		}

		reservation := resDoc.toDomain(reservationID)
		requested, order, err := sumLines(limitedLines(reservation.Lines))
		if err != nil {
			return err
		}
		snapshots, err := r.loadStocks(ctx, tx, order)
		if err != nil {
			return err
		}
		for _, productID := range order {
			snap := snapshots[productID]
			inv := snap.doc.Inventory
			inv.ReservedQuantity -= requested[productID]
			if target == domain.InventoryReservationStatusCommitted {
				inv.Quantity -= requested[productID]
			}
			if err := writeStock(tx, snap.ref, productID, inv, now); err != nil {
				return err
			}
		}

		reservation.Status = target
		reservation.UpdatedAt = now
		if reason = strings.TrimSpace(reason); reason != "" {
			reservation.Reason = reason
		}
		if err := tx.Set(resRef, newReservationDocument(reservation)); err != nil {
			return err
		}
		result = reservation
		return nil
	})
	if err != nil {
		return domain.InventoryReservation{}, wrapInventoryError(op, err)
	}
	return result, nil
}

// GetReservation loads the reservation audit record.
func (r *InventoryRepository) GetReservation(ctx context.Context, reservationID string) (domain.InventoryReservation, error) {
	if r == nil || r.reservations == nil {
		return domain.InventoryReservation{}, errors.New("inventory repository not initialised")
	}
	reservationID = strings.TrimSpace(reservationID)
	doc, err := r.reservations.Get(ctx, reservationID)
	if err != nil {
		var repoErr *pfirestore.Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.InventoryReservation{}, repositories.NewInventoryError(repositories.InventoryErrorReservationNotFound, "", fmt.Sprintf("reservation %s not found", reservationID), err)
		}
		return domain.InventoryReservation{}, wrapInventoryError("inventory.get_reservation", err)
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *InventoryRepository) loadStocks(ctx context.Context, tx *firestore.Transaction, productIDs []string) (map[string]stockSnapshot, error) {
	refs := make([]*firestore.DocumentRef, 0, len(productIDs))
	for _, id := range productIDs {
		ref, err := r.products.DocumentRef(ctx, id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	snaps, err := tx.GetAll(refs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]stockSnapshot, len(snaps))
	for i, snap := range snaps {
		id := productIDs[i]
		if snap == nil || !snap.Exists() {
			return nil, repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, id, fmt.Sprintf("product %s not found", id), nil)
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode product %s: %w", id, err)
		}
		out[id] = stockSnapshot{ref: refs[i], doc: doc}
	}
	return out, nil
}

func writeStock(tx *firestore.Transaction, ref *firestore.DocumentRef, productID string, inv productInventoryDocument, now time.Time) error {
	if inv.ReservedQuantity < 0 || inv.Quantity < 0 || inv.ReservedQuantity > inv.Quantity {
		return repositories.NewInventoryError(repositories.InventoryErrorInvariantViolation, productID,
			fmt.Sprintf("stock for %s would become quantity=%d reserved=%d", productID, inv.Quantity, inv.ReservedQuantity), nil)
	}
	return tx.Update(ref, []firestore.Update{
		{Path: "inventory.quantity", Value: inv.Quantity},
		{Path: "inventory.reservedQuantity", Value: inv.ReservedQuantity},
		{Path: "updatedAt", Value: now},
	})
}

// sumLines totals quantities per product and returns product ids in first-seen order.
func sumLines(lines []domain.InventoryReservationLine) (map[string]int, []string, error) {
	totals := make(map[string]int, len(lines))
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			return nil, nil, repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, "", "product id is required", nil)
		}
		if line.Quantity <= 0 {
			return nil, nil, repositories.NewInventoryError(repositories.InventoryErrorUnknown, id, fmt.Sprintf("quantity for %s must be > 0", id), nil)
		}
		if _, ok := totals[id]; !ok {
			order = append(order, id)
		}
		totals[id] += line.Quantity
	}
	return totals, order, nil
}

func limitedLines(lines []domain.InventoryReservationLine) []domain.InventoryReservationLine {
	out := make([]domain.InventoryReservationLine, 0, len(lines))
	for _, line := range lines {
		if !line.Unlimited {
			out = append(out, line)
		}
	}
	return out
}

type reservationDocument struct {
	OrderID   string                    `firestore:"orderId"`
	BuyerID   string                    `firestore:"buyerId"`
	Status    string                    `firestore:"status"`
	Lines     []reservationLineDocument `firestore:"lines"`
	Reason    string                    `firestore:"reason,omitempty"`
	CreatedAt time.Time                 `firestore:"createdAt"`
	UpdatedAt time.Time                 `firestore:"updatedAt"`
}

type reservationLineDocument struct {
	ProductID string `firestore:"productId"`
	Quantity  int    `firestore:"qty"`
	Unlimited bool   `firestore:"unlimited"`
}

func newReservationDocument(res domain.InventoryReservation) reservationDocument {
	lines := make([]reservationLineDocument, len(res.Lines))
	for i, line := range res.Lines {
		lines[i] = reservationLineDocument{
			ProductID: strings.TrimSpace(line.ProductID),
			Quantity:  line.Quantity,
			Unlimited: line.Unlimited,
		}
	}
	return reservationDocument{
		OrderID:   strings.TrimSpace(res.OrderID),
		BuyerID:   strings.TrimSpace(res.BuyerID),
		Status:    string(res.Status),
		Lines:     lines,
		Reason:    strings.TrimSpace(res.Reason),
		CreatedAt: res.CreatedAt.UTC(),
		UpdatedAt: res.UpdatedAt.UTC(),
	}
}

func (d reservationDocument) toDomain(id string) domain.InventoryReservation {
	lines := make([]domain.InventoryReservationLine, len(d.Lines))
	for i, line := range d.Lines {
		lines[i] = domain.InventoryReservationLine{
			ProductID: strings.TrimSpace(line.ProductID),
			Quantity:  line.Quantity,
			Unlimited: line.Unlimited,
		}
	}
	return domain.InventoryReservation{
		ID:        id,
		OrderID:   strings.TrimSpace(d.OrderID),
		BuyerID:   strings.TrimSpace(d.BuyerID),
		Status:    domain.InventoryReservationStatus(d.Status),
		Lines:     lines,
		Reason:    strings.TrimSpace(d.Reason),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func wrapInventoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}
	return pfirestore.WrapError(op, err)
}
