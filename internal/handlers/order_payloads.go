package handlers

import (
	domain "github.com/kalaghar/api/internal/domain"
	"github.com/kalaghar/api/internal/services"
)

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Items      []orderPayload    `json:"items"`
	Pagination paginationPayload `json:"pagination"`
}

type paginationPayload struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
	TotalOrders int `json:"total_orders"`
	Limit       int `json:"limit"`
}

type orderSummaryResponse struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

type orderPayload struct {
	ID              string                 `json:"id"`
	OrderNumber     string                 `json:"order_number"`
	BuyerID         string                 `json:"buyer_id"`
	Status          string                 `json:"status"`
	Items           []orderItemPayload     `json:"items"`
	ArtisanIDs      []string               `json:"artisan_ids"`
	ItemCount       int                    `json:"item_count"`
	IsBulk          bool                   `json:"is_bulk"`
	Pricing         pricingPayload         `json:"pricing"`
	ShippingAddress addressPayload         `json:"shipping_address"`
	BillingAddress  addressPayload         `json:"billing_address"`
	PaymentMethod   string                 `json:"payment_method"`
	Logistics       logisticsPayload       `json:"logistics"`
	Timeline        []timelineEntryPayload `json:"timeline"`
	Notes           string                 `json:"notes,omitempty"`
	CreatedAt       string                 `json:"created_at"`
	UpdatedAt       string                 `json:"updated_at,omitempty"`
}

type orderItemPayload struct {
	ProductID     string                 `json:"product_id"`
	ArtisanID     string                 `json:"artisan_id"`
	Quantity      int                    `json:"quantity"`
	PriceAtTime   int64                  `json:"price_at_time"`
	Customization map[string]string      `json:"customization,omitempty"`
	Product       *productSummaryPayload `json:"product,omitempty"`
	Artisan       *artisanSummaryPayload `json:"artisan,omitempty"`
}

type productSummaryPayload struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Images []string `json:"images"`
}

type artisanSummaryPayload struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ProfileImage string `json:"profile_image,omitempty"`
}

type pricingPayload struct {
	Subtotal int64 `json:"subtotal"`
	Tax      int64 `json:"tax"`
	Shipping int64 `json:"shipping"`
	Total    int64 `json:"total"`
}

type addressPayload struct {
	Name         string `json:"name"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	Country      string `json:"country,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

type logisticsPayload struct {
	OriginCity               string                  `json:"origin_city,omitempty"`
	DestinationCity          string                  `json:"destination_city,omitempty"`
	DistanceKm               int                     `json:"distance_km"`
	EstimatedDurationHours   int                     `json:"estimated_duration_hours"`
	PackageWeightKg          float64                 `json:"package_weight_kg"`
	Degraded                 bool                    `json:"degraded"`
	Recommendations          []recommendationPayload `json:"recommendations"`
	RecommendationsUpdatedAt *string                 `json:"recommendations_updated_at,omitempty"`
	SelectedPartner          *string                 `json:"selected_partner,omitempty"`
	ShippingCost             *int64                  `json:"shipping_cost,omitempty"`
	ShippedAt                *string                 `json:"shipped_at,omitempty"`
}

type recommendationPayload struct {
	Rank           int      `json:"rank"`
	PartnerName    string   `json:"partner_name"`
	ServiceLevel   string   `json:"service_level"`
	EstimatedPrice int64    `json:"estimated_price"`
	EstimatedDays  int      `json:"estimated_days"`
	Tags           []string `json:"tags"`
}

type timelineEntryPayload struct {
	Status    string `json:"status"`
	Notes     string `json:"notes,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

func buildPopulatedOrderPayload(populated services.PopulatedOrder) orderPayload {
	payload := buildOrderPayload(populated.Order)
	for i := range payload.Items {
		item := &payload.Items[i]
		if product, ok := populated.Products[item.ProductID]; ok {
			images := product.Images
			if images == nil {
				images = []string{}
			}
			item.Product = &productSummaryPayload{ID: product.ID, Name: product.Name, Images: images}
		}
		if artisan, ok := populated.Artisans[item.ArtisanID]; ok {
			item.Artisan = &artisanSummaryPayload{ID: artisan.ID, Name: artisan.Name, ProfileImage: artisan.ProfileImage}
		}
	}
	return payload
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductID:     item.ProductID,
			ArtisanID:     item.ArtisanID,
			Quantity:      item.Quantity,
			PriceAtTime:   item.PriceAtTime,
			Customization: item.Customization,
		})
	}
	timeline := make([]timelineEntryPayload, 0, len(order.Timeline))
	for _, entry := range order.Timeline {
		timeline = append(timeline, timelineEntryPayload{
			Status:    string(entry.Status),
			Notes:     entry.Notes,
			ActorID:   entry.ActorID,
			Timestamp: formatTime(entry.Timestamp),
		})
	}
	artisanIDs := order.ArtisanIDs
	if artisanIDs == nil {
		artisanIDs = []string{}
	}
	quantity := order.TotalQuantity()
	return orderPayload{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		BuyerID:         order.BuyerID,
		Status:          string(order.CurrentStatus()),
		Items:           items,
		ArtisanIDs:      artisanIDs,
		ItemCount:       quantity,
		IsBulk:          quantity > bulkOrderQuantity,
		Pricing:         pricingPayload(order.Pricing),
		ShippingAddress: buildAddressPayload(order.ShippingAddress),
		BillingAddress:  buildAddressPayload(order.BillingAddress),
		PaymentMethod:   string(order.Payment.Method),
		Logistics:       buildLogisticsPayload(order.Logistics),
		Timeline:        timeline,
		Notes:           order.Notes,
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
	}
}

func buildAddressPayload(addr domain.Address) addressPayload {
	return addressPayload(addr)
}

func buildLogisticsPayload(l domain.Logistics) logisticsPayload {
	return logisticsPayload{
		OriginCity:               l.OriginCity,
		DestinationCity:          l.DestinationCity,
		DistanceKm:               l.DistanceKm,
		EstimatedDurationHours:   l.EstimatedDurationHours,
		PackageWeightKg:          l.PackageWeightKg,
		Degraded:                 l.Degraded,
		Recommendations:          buildRecommendationPayloads(l.Recommendations),
		RecommendationsUpdatedAt: formatTimePtr(l.RecommendationsUpdatedAt),
		SelectedPartner:          l.SelectedPartner,
		ShippingCost:             l.ShippingCost,
		ShippedAt:                formatTimePtr(l.ShippedAt),
	}
}

func buildRecommendationPayloads(recs []domain.Recommendation) []recommendationPayload {
	out := make([]recommendationPayload, 0, len(recs))
	for _, rec := range recs {
		tags := rec.Tags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, recommendationPayload{
			Rank:           rec.Rank,
			PartnerName:    rec.PartnerName,
			ServiceLevel:   rec.ServiceLevel,
			EstimatedPrice: rec.EstimatedPrice,
			EstimatedDays:  rec.EstimatedDays,
			Tags:           tags,
		})
	}
	return out
}
