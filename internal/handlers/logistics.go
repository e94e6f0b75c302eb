package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalaghar/api/internal/platform/auth"
	"github.com/kalaghar/api/internal/platform/httpx"
	"github.com/kalaghar/api/internal/services"
)

// LogisticsHandlers lists an artisan's orders awaiting shipment with carrier suggestions.
type LogisticsHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewLogisticsHandlers constructs LogisticsHandlers.
func NewLogisticsHandlers(authn *auth.Authenticator, orders services.OrderService) *LogisticsHandlers {
	return &LogisticsHandlers{authn: authn, orders: orders}
}

// Routes registers the /logistics endpoints.
func (h *LogisticsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleArtisan))
	}
	r.Get("/", h.awaitingShipment)
}

type awaitingShipmentResponse struct {
	Orders []shipmentCandidatePayload `json:"orders_awaiting_shipment"`
}

type shipmentCandidatePayload struct {
	Order           orderPayload            `json:"order"`
	Recommendations []recommendationPayload `json:"recommendations"`
}

func (h *LogisticsHandlers) awaitingShipment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if !identity.HasRole(auth.RoleArtisan) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "logistics is available to artisans only", http.StatusForbidden))
		return
	}

	candidates, err := h.orders.ListAwaitingShipment(ctx, strings.TrimSpace(identity.UID))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	payload := awaitingShipmentResponse{Orders: make([]shipmentCandidatePayload, 0, len(candidates))}
	for _, candidate := range candidates {
		payload.Orders = append(payload.Orders, shipmentCandidatePayload{
			Order:           buildOrderPayload(candidate.Order),
			Recommendations: buildRecommendationPayloads(candidate.Recommendations),
		})
	}
	writeJSONResponse(w, http.StatusOK, payload)
}
