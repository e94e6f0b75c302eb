package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/kalaghar/api/internal/domain"
	pfirestore "github.com/kalaghar/api/internal/platform/firestore"
	"github.com/kalaghar/api/internal/repositories"
)

const ordersCollection = "orders"

type orderDocument struct {
	OrderNumber     string                  `firestore:"orderNumber"`
	BuyerID         string                  `firestore:"buyerId"`
	Items           []orderItemDocument     `firestore:"items"`
	ArtisanIDs      []string                `firestore:"artisanIds"`
	Status          string                  `firestore:"status"` // query index, derived from timeline
	Timeline        []timelineEntryDocument `firestore:"timeline"`
	Pricing         pricingDocument         `firestore:"pricing"`
	ShippingAddress addressDocument         `firestore:"shippingAddress"`
	BillingAddress  addressDocument         `firestore:"billingAddress"`
	Payment         paymentDocument         `firestore:"payment"`
	Logistics       logisticsDocument       `firestore:"logistics"`
	ReservationID   string                  `firestore:"reservationId"`
	Notes           string                  `firestore:"notes"`
	CreatedAt       time.Time               `firestore:"createdAt"`
	UpdatedAt       time.Time               `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductID     string            `firestore:"productId"`
	ArtisanID     string            `firestore:"artisanId"`
	Quantity      int               `firestore:"quantity"`
	PriceAtTime   int64             `firestore:"priceAtTime"`
	Customization map[string]string `firestore:"customization,omitempty"`
}

type timelineEntryDocument struct {
	Status    string    `firestore:"status"`
	Notes     string    `firestore:"notes"`
	ActorID   string    `firestore:"actorId"`
	Timestamp time.Time `firestore:"timestamp"`
}

type pricingDocument struct {
	Subtotal int64  `firestore:"subtotal"`
	Tax      int64  `firestore:"tax"`
	Shipping int64  `firestore:"shipping"`
	Total    int64  `firestore:"total"`
	Currency string `firestore:"currency"`
}

type addressDocument struct {
	Name         string `firestore:"name"`
	AddressLine1 string `firestore:"addressLine1"`
	AddressLine2 string `firestore:"addressLine2,omitempty"`
	City         string `firestore:"city"`
	State        string `firestore:"state,omitempty"`
	PostalCode   string `firestore:"postalCode,omitempty"`
	Country      string `firestore:"country,omitempty"`
	Phone        string `firestore:"phone,omitempty"`
}

type paymentDocument struct {
	Method string `firestore:"method"`
}

type recommendationDocument struct {
	Rank           int      `firestore:"rank"`
	PartnerName    string   `firestore:"partnerName"`
	ServiceLevel   string   `firestore:"serviceLevel"`
	EstimatedPrice int64    `firestore:"estimatedPrice"`
	EstimatedDays  int      `firestore:"estimatedDays"`
	Tags           []string `firestore:"tags,omitempty"`
}

type logisticsDocument struct {
	OriginCity               string                   `firestore:"originCity"`
	DestinationCity          string                   `firestore:"destinationCity"`
	DistanceKm               int                      `firestore:"distanceKm"`
	EstimatedDurationHours   int                      `firestore:"estimatedDurationHours"`
	PackageWeightKg          float64                  `firestore:"packageWeightKg"`
	Degraded                 bool                     `firestore:"degraded"`
	Recommendations          []recommendationDocument `firestore:"recommendations"`
	RecommendationsUpdatedAt *time.Time               `firestore:"recommendationsUpdatedAt,omitempty"`
	SelectedPartner          *string                  `firestore:"selectedPartner,omitempty"`
	ShippingCost             *int64                   `firestore:"shippingCost,omitempty"`
	ShippedAt                *time.Time               `firestore:"shippedAt,omitempty"`
}

func newOrderDocument(o domain.Order) orderDocument {
	items := make([]orderItemDocument, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemDocument{
			ProductID:     item.ProductID,
			ArtisanID:     item.ArtisanID,
			Quantity:      item.Quantity,
			PriceAtTime:   item.PriceAtTime,
			Customization: item.Customization,
		}
	}
	timeline := make([]timelineEntryDocument, len(o.Timeline))
	for i, entry := range o.Timeline {
		timeline[i] = timelineEntryDocument{
			Status:    string(entry.Status),
			Notes:     entry.Notes,
			ActorID:   entry.ActorID,
			Timestamp: entry.Timestamp.UTC(),
		}
	}
	return orderDocument{
		OrderNumber: o.OrderNumber,
		BuyerID:     o.BuyerID,
		Items:       items,
		ArtisanIDs:  append([]string{}, o.ArtisanIDs...),
		Status:      string(o.CurrentStatus()),
		Timeline:    timeline,
		Pricing: pricingDocument{
			Subtotal: o.Pricing.Subtotal,
			Tax:      o.Pricing.Tax,
			Shipping: o.Pricing.Shipping,
			Total:    o.Pricing.Total,
			Currency: domain.CurrencyINR,
		},
		ShippingAddress: newAddressDocument(o.ShippingAddress),
		BillingAddress:  newAddressDocument(o.BillingAddress),
		Payment:         paymentDocument{Method: string(o.Payment.Method)},
		Logistics:       newLogisticsDocument(o.Logistics),
		ReservationID:   o.ReservationID,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt.UTC(),
		UpdatedAt:       o.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderLineItem, len(d.Items))
	for i, item := range d.Items {
		items[i] = domain.OrderLineItem{
			ProductID:     item.ProductID,
			ArtisanID:     item.ArtisanID,
			Quantity:      item.Quantity,
			PriceAtTime:   item.PriceAtTime,
			Customization: item.Customization,
		}
	}
	timeline := make([]domain.TimelineEntry, len(d.Timeline))
	for i, entry := range d.Timeline {
		timeline[i] = domain.TimelineEntry{
			Status:    domain.OrderStatus(entry.Status),
			Notes:     entry.Notes,
			ActorID:   entry.ActorID,
			Timestamp: entry.Timestamp,
		}
	}
	order := domain.Order{
		ID:          id,
		OrderNumber: d.OrderNumber,
		BuyerID:     d.BuyerID,
		Items:       items,
		ArtisanIDs:  d.ArtisanIDs,
		Status:      domain.OrderStatus(d.Status),
		Timeline:    timeline,
		Pricing: domain.Pricing{
			Subtotal: d.Pricing.Subtotal,
			Tax:      d.Pricing.Tax,
			Shipping: d.Pricing.Shipping,
			Total:    d.Pricing.Total,
		},
		ShippingAddress: d.ShippingAddress.toDomain(),
		BillingAddress:  d.BillingAddress.toDomain(),
		Payment:         domain.Payment{Method: domain.PaymentMethod(d.Payment.Method)},
		Logistics:       d.Logistics.toDomain(),
		ReservationID:   d.ReservationID,
		Notes:           d.Notes,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	order.Status = order.CurrentStatus()
	return order
}

func newAddressDocument(a domain.Address) addressDocument {
	return addressDocument(a)
}

func (d addressDocument) toDomain() domain.Address {
	return domain.Address(d)
}

func newRecommendationDocuments(recs []domain.Recommendation) []recommendationDocument {
	out := make([]recommendationDocument, len(recs))
	for i, rec := range recs {
		out[i] = recommendationDocument{
			Rank:           rec.Rank,
			PartnerName:    rec.PartnerName,
			ServiceLevel:   rec.ServiceLevel,
			EstimatedPrice: rec.EstimatedPrice,
			EstimatedDays:  rec.EstimatedDays,
			Tags:           append([]string(nil), rec.Tags...),
		}
	}
	return out
}

func newLogisticsDocument(l domain.Logistics) logisticsDocument {
	return logisticsDocument{
		OriginCity:               l.OriginCity,
		DestinationCity:          l.DestinationCity,
		DistanceKm:               l.DistanceKm,
		EstimatedDurationHours:   l.EstimatedDurationHours,
		PackageWeightKg:          l.PackageWeightKg,
		Degraded:                 l.Degraded,
		Recommendations:          newRecommendationDocuments(l.Recommendations),
		RecommendationsUpdatedAt: l.RecommendationsUpdatedAt,
		SelectedPartner:          l.SelectedPartner,
		ShippingCost:             l.ShippingCost,
		ShippedAt:                l.ShippedAt,
	}
}

func (d logisticsDocument) toDomain() domain.Logistics {
	recs := make([]domain.Recommendation, len(d.Recommendations))
	for i, rec := range d.Recommendations {
		recs[i] = domain.Recommendation{
			Rank:           rec.Rank,
			PartnerName:    rec.PartnerName,
			ServiceLevel:   rec.ServiceLevel,
			EstimatedPrice: rec.EstimatedPrice,
			EstimatedDays:  rec.EstimatedDays,
			Tags:           rec.Tags,
		}
	}
	return domain.Logistics{
		OriginCity:               d.OriginCity,
		DestinationCity:          d.DestinationCity,
		DistanceKm:               d.DistanceKm,
		EstimatedDurationHours:   d.EstimatedDurationHours,
		PackageWeightKg:          d.PackageWeightKg,
		Degraded:                 d.Degraded,
		Recommendations:          recs,
		RecommendationsUpdatedAt: d.RecommendationsUpdatedAt,
		SelectedPartner:          d.SelectedPartner,
		ShippingCost:             d.ShippingCost,
		ShippedAt:                d.ShippedAt,
	}
}

// OrderRepository persists order aggregates in the orders collection.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{base: pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection)}, nil
}

// Insert creates the order document and fails if the id is taken.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	return r.base.Create(ctx, order.ID, newOrderDocument(order))
}

// Save overwrites the order document. Callers run it in the transaction that read the
// order so concurrent updates serialise.
func (r *OrderRepository) Save(ctx context.Context, order domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	return r.base.Set(ctx, order.ID, newOrderDocument(order))
}

// FindByID loads one order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns one page ordered by createdAt descending together with the total count.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.OffsetPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.OffsetPage[domain.Order]{}, errors.New("order repository not initialised")
	}
	filtered := func(q firestore.Query) firestore.Query {
		return applyOrderFilter(q, filter)
	}
	total, err := r.base.Count(ctx, filtered)
	if err != nil {
		return domain.OffsetPage[domain.Order]{}, err
	}

	page := domain.OffsetPage[domain.Order]{Total: total, Page: filter.Page.Page, Limit: filter.Page.Limit}
	offset := filter.Page.Offset()
	if offset >= total || filter.Page.Limit <= 0 {
		return page, nil
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return filtered(q).OrderBy("createdAt", firestore.Desc).Offset(offset).Limit(filter.Page.Limit)
	})
	if err != nil {
		return domain.OffsetPage[domain.Order]{}, err
	}
	page.Items = make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		page.Items = append(page.Items, doc.Data.toDomain(doc.ID))
	}
	return page, nil
}

// CountByStatus counts orders per status, restricted to artisanID when set.
func (r *OrderRepository) CountByStatus(ctx context.Context, artisanID string) (map[domain.OrderStatus]int, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order repository not initialised")
	}
	counts := make(map[domain.OrderStatus]int, len(domain.OrderStatuses))
	for _, status := range domain.OrderStatuses {
		filter := repositories.OrderListFilter{ArtisanID: artisanID, Statuses: []domain.OrderStatus{status}}
		n, err := r.base.Count(ctx, func(q firestore.Query) firestore.Query {
			return applyOrderFilter(q, filter)
		})
		if err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, nil
}

// UpdateRecommendations replaces the persisted carrier suggestions.
func (r *OrderRepository) UpdateRecommendations(ctx context.Context, orderID string, recommendations []domain.Recommendation, at time.Time) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	at = at.UTC()
	return r.base.Update(ctx, strings.TrimSpace(orderID), []firestore.Update{
		{Path: "logistics.recommendations", Value: newRecommendationDocuments(recommendations)},
		{Path: "logistics.recommendationsUpdatedAt", Value: at},
		{Path: "updatedAt", Value: at},
	})
}

func applyOrderFilter(q firestore.Query, filter repositories.OrderListFilter) firestore.Query {
	if id := strings.TrimSpace(filter.BuyerID); id != "" {
		q = q.Where("buyerId", "==", id)
	}
	if id := strings.TrimSpace(filter.ArtisanID); id != "" {
		q = q.Where("artisanIds", "array-contains", id)
	}
	switch len(filter.Statuses) {
	case 0:
	case 1:
		q = q.Where("status", "==", string(filter.Statuses[0]))
	default:
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status", "in", statuses)
	}
	return q
}
