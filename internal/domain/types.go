package domain

import (
	"math"
	"strings"
	"time"
)

// OrderStatus enumerates lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending is the state every order is created in.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates an artisan accepted the order.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing indicates the order is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order was handed to a carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered is terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled is terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every known status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// ParseOrderStatus normalises raw input into a known status.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range OrderStatuses {
		if status == known {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// IsShippable reports whether carrier recommendations and shipment marking apply.
func (s OrderStatus) IsShippable() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing:
		return true
	default:
		return false
	}
}

// UserRole identifies the marketplace role stored on a user profile.
type UserRole string

const (
	UserRoleBuyer      UserRole = "buyer"
	UserRoleArtisan    UserRole = "artisan"
	UserRoleAdmin      UserRole = "admin"
	UserRoleInvestor   UserRole = "investor"
	UserRoleAmbassador UserRole = "ambassador"
)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Valid reports whether the pair is finite and within geographic bounds.
func (c *Coordinates) Valid() bool {
	if c == nil {
		return false
	}
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) || math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// GeoLocation is the optional location block on a user profile.
type GeoLocation struct {
	Latitude  *float64
	Longitude *float64
	City      string
	State     string
}

// Coordinates returns the pair when both components are present and valid.
func (l *GeoLocation) Coordinates() (*Coordinates, bool) {
	if l == nil || l.Latitude == nil || l.Longitude == nil {
		return nil, false
	}
	coords := &Coordinates{Latitude: *l.Latitude, Longitude: *l.Longitude}
	if !coords.Valid() {
		return nil, false
	}
	return coords, true
}

// UserProfile is the subset of the external user directory the order pipeline reads.
type UserProfile struct {
	ID           string
	Name         string
	Email        string
	Role         UserRole
	ProfileImage string
	Location     *GeoLocation
}

// ProductStatus enumerates catalog states.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
	ProductStatusArchived ProductStatus = "archived"
)

// ProductInventory tracks on-hand and reserved units for a product.
type ProductInventory struct {
	Quantity         int
	IsUnlimited      bool
	ReservedQuantity int
}

// Available returns units that can still be reserved.
func (i ProductInventory) Available() int {
	if i.IsUnlimited {
		return math.MaxInt32
	}
	available := i.Quantity - i.ReservedQuantity
	if available < 0 {
		return 0
	}
	return available
}

// Product is a catalog entry owned by the catalog service.
type Product struct {
	ID        string
	Name      string
	Images    []string
	Price     int64
	ArtisanID string
	Status    ProductStatus
	Inventory ProductInventory
	UpdatedAt time.Time
}

// OrderLineItem captures one product/quantity pair with its price snapshot.
type OrderLineItem struct {
	ProductID     string
	ArtisanID     string
	Quantity      int
	PriceAtTime   int64
	Customization map[string]string
}

// Address is a postal address snapshot stored on the order.
type Address struct {
	Name         string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	PostalCode   string
	Country      string
	Phone        string
}

// PaymentMethod enumerates accepted payment methods.
type PaymentMethod string

const (
	PaymentMethodCreditCard     PaymentMethod = "credit_card"
	PaymentMethodDebitCard      PaymentMethod = "debit_card"
	PaymentMethodPayPal         PaymentMethod = "paypal"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

// PaymentMethods lists accepted methods.
var PaymentMethods = []PaymentMethod{
	PaymentMethodCreditCard,
	PaymentMethodDebitCard,
	PaymentMethodPayPal,
	PaymentMethodBankTransfer,
	PaymentMethodCashOnDelivery,
}

// Payment records how the buyer intends to pay.
type Payment struct {
	Method PaymentMethod
}

// Pricing holds order totals in paise.
type Pricing struct {
	Subtotal int64
	Tax      int64
	Shipping int64
	Total    int64
}

// Recommendation is a ranked carrier suggestion for a shipment.
type Recommendation struct {
	Rank           int
	PartnerName    string
	ServiceLevel   string
	EstimatedPrice int64
	EstimatedDays  int
	Tags           []string
}

// Logistics is the shipment planning profile attached to an order.
type Logistics struct {
	OriginCity               string
	DestinationCity          string
	DistanceKm               int
	EstimatedDurationHours   int
	PackageWeightKg          float64
	Degraded                 bool
	Recommendations          []Recommendation
	RecommendationsUpdatedAt *time.Time
	SelectedPartner          *string
	ShippingCost             *int64
	ShippedAt                *time.Time
}

// TimelineEntry is one append-only record of a status transition.
type TimelineEntry struct {
	Status    OrderStatus
	Notes     string
	ActorID   string
	Timestamp time.Time
}

// Order ties buyer, line items, pricing, logistics and the status timeline together.
type Order struct {
	ID              string
	OrderNumber     string
	BuyerID         string
	Items           []OrderLineItem
	ArtisanIDs      []string
	Status          OrderStatus
	Timeline        []TimelineEntry
	Pricing         Pricing
	ShippingAddress Address
	BillingAddress  Address
	Payment         Payment
	Logistics       Logistics
	ReservationID   string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CurrentStatus returns the last timeline status, falling back to Status for orders
// that have not transitioned yet.
func (o Order) CurrentStatus() OrderStatus {
	if n := len(o.Timeline); n > 0 && o.Timeline[n-1].Status != "" {
		return o.Timeline[n-1].Status
	}
	return o.Status
}

// AppendTransition is the only way status changes: the entry is appended and the
// indexed Status field is derived from it.
func (o *Order) AppendTransition(entry TimelineEntry) {
	o.Timeline = append(o.Timeline, entry)
	o.Status = entry.Status
	if entry.Timestamp.After(o.UpdatedAt) {
		o.UpdatedAt = entry.Timestamp
	}
}

// HasArtisan reports whether the artisan sells at least one item on the order.
func (o Order) HasArtisan(artisanID string) bool {
	artisanID = strings.TrimSpace(artisanID)
	if artisanID == "" {
		return false
	}
	for _, id := range o.ArtisanIDs {
		if id == artisanID {
			return true
		}
	}
	return false
}

// TotalQuantity sums quantities across line items.
func (o Order) TotalQuantity() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// UniqueArtisanIDs returns artisan ids in first-seen order.
func UniqueArtisanIDs(items []OrderLineItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ArtisanID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// ProductSummary is the product view embedded in populated order responses.
type ProductSummary struct {
	ID     string
	Name   string
	Images []string
}

// ArtisanSummary is the artisan view embedded in populated order responses.
type ArtisanSummary struct {
	ID           string
	Name         string
	ProfileImage string
}

// PopulatedOrder decorates an order with presentation summaries keyed by id.
type PopulatedOrder struct {
	Order    Order
	Products map[string]ProductSummary
	Artisans map[string]ArtisanSummary
}

// PageRequest selects a 1-based page of results.
type PageRequest struct {
	Page  int
	Limit int
}

// Offset returns the number of records to skip.
func (p PageRequest) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// OffsetPage packages list results with totals for page-number navigation.
type OffsetPage[T any] struct {
	Items []T
	Total int
	Page  int
	Limit int
}

// TotalPages returns the number of pages for the current limit.
func (p OffsetPage[T]) TotalPages() int {
	if p.Limit <= 0 || p.Total <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// InventoryReservationStatus tracks the lifecycle of a stock reservation.
type InventoryReservationStatus string

const (
	InventoryReservationStatusReserved  InventoryReservationStatus = "reserved"
	InventoryReservationStatusCommitted InventoryReservationStatus = "committed"
	InventoryReservationStatusReleased  InventoryReservationStatus = "released"
)

// InventoryReservationLine is one product's share of a reservation.
type InventoryReservationLine struct {
	ProductID string
	Quantity  int
	Unlimited bool
}

// InventoryReservation is the audit record for stock held by an order.
type InventoryReservation struct {
	ID        string
	OrderID   string
	BuyerID   string
	Status    InventoryReservationStatus
	Lines     []InventoryReservationLine
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
