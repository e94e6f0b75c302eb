package services

import (
	"context"
	"time"

	domain "github.com/kalaghar/api/internal/domain"
	"github.com/kalaghar/api/internal/platform/maps"
)

// Aliases keep handler signatures short.
type (
	Order              = domain.Order
	PopulatedOrder     = domain.PopulatedOrder
	OrderStatus        = domain.OrderStatus
	Pricing            = domain.Pricing
	Recommendation     = domain.Recommendation
	SystemHealthReport = domain.SystemHealthReport
)

// Actor identifies who performs an operation. Role is the most privileged order role the
// caller holds.
type Actor struct {
	ID   string
	Role domain.UserRole
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == domain.UserRoleAdmin }

// OrderService owns the order pipeline: creation, reads, the status state machine and
// shipment recommendations.
type OrderService interface {
	Create(ctx context.Context, cmd CreateOrderCommand) (PopulatedOrder, error)
	List(ctx context.Context, query OrderListQuery) (domain.OffsetPage[Order], error)
	Get(ctx context.Context, query OrderGetQuery) (PopulatedOrder, error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (PopulatedOrder, error)
	Ship(ctx context.Context, cmd ShipOrderCommand) (PopulatedOrder, error)
	Summary(ctx context.Context, artisanID string) (OrderStatusSummary, error)
	ListAwaitingShipment(ctx context.Context, artisanID string) ([]ShipmentCandidate, error)
	RefreshRecommendations(ctx context.Context, cmd RefreshRecommendationsCommand) (int, error)
}

// InventoryService exposes the inventory ledger with service-level error semantics.
type InventoryService interface {
	Reserve(ctx context.Context, cmd InventoryReserveCommand) (domain.InventoryReservation, error)
	Commit(ctx context.Context, reservationID, actorID string) (domain.InventoryReservation, error)
	Release(ctx context.Context, reservationID, reason string) (domain.InventoryReservation, error)
}

// SystemService aggregates health reporting for the health endpoints.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// DistanceProvider resolves road distance between two points.
type DistanceProvider interface {
	Name() string
	Route(ctx context.Context, origin, destination domain.Coordinates) (maps.Route, error)
}

// OrderEventPublisher delivers order domain events to downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// Order event types.
const (
	OrderEventCreated       = "order.created"
	OrderEventStatusChanged = "order.status_changed"
	OrderEventShipped       = "order.shipped"
	OrderEventCancelled     = "order.cancelled"
)

// OrderEvent is the payload published after an order is created or changes status.
type OrderEvent struct {
	ID             string             `json:"id"`
	Type           string             `json:"type"`
	OrderID        string             `json:"order_id"`
	OrderNumber    string             `json:"order_number,omitempty"`
	BuyerID        string             `json:"buyer_id"`
	ArtisanIDs     []string           `json:"artisan_ids"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previous_status,omitempty"`
	ActorID        string             `json:"actor_id,omitempty"`
	Total          int64              `json:"total"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// CreateOrderCommand is a buyer's checkout request.
type CreateOrderCommand struct {
	BuyerID         string
	Items           []OrderItemInput
	ShippingAddress domain.Address
	BillingAddress  *domain.Address
	PaymentMethod   domain.PaymentMethod
	Notes           string
}

// OrderItemInput is one requested product and quantity.
type OrderItemInput struct {
	ProductID     string
	Quantity      int
	Customization map[string]string
}

// OrderListQuery lists orders visible to the actor.
type OrderListQuery struct {
	Actor    Actor
	Statuses []domain.OrderStatus
	Page     domain.PageRequest
}

// OrderGetQuery fetches one order for the actor.
type OrderGetQuery struct {
	Actor   Actor
	OrderID string
}

// OrderStatusTransitionCommand drives the state machine.
type OrderStatusTransitionCommand struct {
	OrderID        string
	Actor          Actor
	TargetStatus   string
	Notes          string
	ExpectedStatus *domain.OrderStatus
}

// ShipOrderCommand marks an order shipped with the chosen carrier.
type ShipOrderCommand struct {
	OrderID        string
	ArtisanID      string
	PartnerName    string
	EstimatedPrice int64
}

// RefreshRecommendationsCommand persists advisor output. OrderID targets one order;
// otherwise every shippable order of ArtisanID is refreshed.
type RefreshRecommendationsCommand struct {
	ArtisanID string
	OrderID   string
}

// InventoryReserveCommand reserves stock for an order.
type InventoryReserveCommand struct {
	OrderID string
	BuyerID string
	Lines   []domain.InventoryReservationLine
}

// OrderStatusSummary counts an artisan's orders by current status.
type OrderStatusSummary struct {
	Counts map[domain.OrderStatus]int
	Total  int
}

// ShipmentCandidate is a shippable order with freshly computed recommendations.
type ShipmentCandidate struct {
	Order           Order
	Recommendations []Recommendation
}
