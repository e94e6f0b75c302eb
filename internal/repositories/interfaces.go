package repositories

import (
	"context"
	"time"

	domain "github.com/kalaghar/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Products() ProductRepository
	Users() UserRepository
	Inventory() InventoryRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository calls into one transaction. Repositories invoked with the
// context handed to fn join the transaction; reads must precede writes.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order aggregates.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Save(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.OffsetPage[domain.Order], error)
	CountByStatus(ctx context.Context, artisanID string) (map[domain.OrderStatus]int, error)
	UpdateRecommendations(ctx context.Context, orderID string, recommendations []domain.Recommendation, at time.Time) error
}

// ProductRepository reads catalog entries. Writes to inventory counters happen only
// through InventoryRepository.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
}

// UserRepository reads the external user directory.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.UserProfile, error)
	FindByIDs(ctx context.Context, userIDs []string) (map[string]domain.UserProfile, error)
}

// InventoryRepository mutates product stock counters through reservations.
type InventoryRepository interface {
	Reserve(ctx context.Context, req InventoryReserveRequest) (domain.InventoryReservation, error)
	Commit(ctx context.Context, req InventoryCommitRequest) (domain.InventoryReservation, error)
	Release(ctx context.Context, req InventoryReleaseRequest) (domain.InventoryReservation, error)
	GetReservation(ctx context.Context, reservationID string) (domain.InventoryReservation, error)
}

// InventoryReserveRequest carries a fully built reservation; the repository validates
// availability of every line before mutating any counter.
type InventoryReserveRequest struct {
	Reservation domain.InventoryReservation
	Now         time.Time
}

// InventoryCommitRequest converts reserved units into shipped stock.
type InventoryCommitRequest struct {
	ReservationID string
	ActorID       string
	Now           time.Time
}

// InventoryReleaseRequest returns reserved units to available stock.
type InventoryReleaseRequest struct {
	ReservationID string
	Reason        string
	Now           time.Time
}

// CounterRepository issues monotonically increasing sequence values.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// HealthRepository reports dependency health for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// OrderListFilter narrows order queries. Exactly one of BuyerID or ArtisanID is
// normally set; both empty lists every order (admin).
type OrderListFilter struct {
	BuyerID   string
	ArtisanID string
	Statuses  []domain.OrderStatus
	Page      domain.PageRequest
}
