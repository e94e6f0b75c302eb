package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kalaghar/api/internal/platform/auth"
	"github.com/kalaghar/api/internal/platform/httpx"
	"github.com/kalaghar/api/internal/platform/observability"
	"github.com/kalaghar/api/internal/services"
)

// InternalHandlers serves service-to-service endpoints. Authentication is applied by the
// router through the OIDC middleware on the /internal group.
type InternalHandlers struct {
	orders services.OrderService
}

// NewInternalHandlers constructs InternalHandlers.
func NewInternalHandlers(orders services.OrderService) *InternalHandlers {
	return &InternalHandlers{orders: orders}
}

// Routes registers the /internal endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/logistics/recommendations:refresh", h.refreshRecommendations)
}

type refreshRecommendationsRequest struct {
	ArtisanID string `json:"artisan_id" validate:"required_without=OrderID"`
	OrderID   string `json:"order_id"`
}

type refreshRecommendationsResponse struct {
	Updated int `json:"updated"`
}

func (h *InternalHandlers) refreshRecommendations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req refreshRecommendationsRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	updated, err := h.orders.RefreshRecommendations(ctx, services.RefreshRecommendationsCommand{
		ArtisanID: strings.TrimSpace(req.ArtisanID),
		OrderID:   strings.TrimSpace(req.OrderID),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	fields := []zap.Field{zap.Int("updated", updated)}
	if svc, ok := auth.ServiceIdentityFromContext(ctx); ok && svc != nil {
		fields = append(fields, zap.String("caller", svc.Subject))
	}
	observability.FromContext(ctx).Info("recommendations refreshed", fields...)
	writeJSONResponse(w, http.StatusOK, refreshRecommendationsResponse{Updated: updated})
}
