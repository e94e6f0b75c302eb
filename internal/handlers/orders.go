package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domain "github.com/kalaghar/api/internal/domain"
	"github.com/kalaghar/api/internal/platform/auth"
	"github.com/kalaghar/api/internal/platform/httpx"
	"github.com/kalaghar/api/internal/platform/observability"
	"github.com/kalaghar/api/internal/platform/pagination"
	"github.com/kalaghar/api/internal/platform/textutil"
	"github.com/kalaghar/api/internal/services"
)

const (
	defaultOrderPageSize = 10
	maxOrderPageSize     = 100
	bulkOrderQuantity    = 10
)

type createOrderRequest struct {
	Items           []createOrderItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
	ShippingAddress addressRequest           `json:"shipping_address"`
	BillingAddress  *addressRequest          `json:"billing_address" validate:"omitempty"`
	PaymentMethod   string                   `json:"payment_method" validate:"required,oneof=credit_card debit_card paypal bank_transfer cash_on_delivery"`
	Notes           string                   `json:"notes" validate:"max=1000"`
}

type createOrderItemRequest struct {
	ProductID     string            `json:"product_id" validate:"required"`
	Quantity      int               `json:"quantity" validate:"gt=0,max=1000"`
	Customization map[string]string `json:"customization" validate:"max=20"`
}

type addressRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	AddressLine1 string `json:"address_line1" validate:"required,max=300"`
	AddressLine2 string `json:"address_line2" validate:"max=300"`
	City         string `json:"city" validate:"required,max=120"`
	State        string `json:"state" validate:"max=120"`
	PostalCode   string `json:"postal_code" validate:"max=20"`
	Country      string `json:"country" validate:"max=80"`
	Phone        string `json:"phone" validate:"max=30"`
}

type transitionStatusRequest struct {
	Status         string `json:"status" validate:"required"`
	Notes          string `json:"notes"`
	ExpectedStatus string `json:"expected_status"`
}

type shipOrderRequest struct {
	PartnerName    string `json:"partner_name" validate:"required,max=120"`
	EstimatedPrice *int64 `json:"estimated_price" validate:"required,gte=0"`
}

// OrderHandlers exposes the order pipeline to buyers, artisans and admins.
type OrderHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	idempotency func(http.Handler) http.Handler
	limiter     orderRateLimiter
}

// OrderHandlerOption customises OrderHandlers.
type OrderHandlerOption func(*OrderHandlers)

// WithOrderIdempotency wraps POST and PUT routes with the idempotency middleware. It runs
// after authentication so keys are scoped per caller.
func WithOrderIdempotency(mw func(http.Handler) http.Handler) OrderHandlerOption {
	return func(h *OrderHandlers) {
		h.idempotency = mw
	}
}

// WithOrderCreateRateLimit caps order creation per buyer within window.
func WithOrderCreateRateLimit(limit int, window time.Duration, clock func() time.Time) OrderHandlerOption {
	return func(h *OrderHandlers) {
		h.limiter = newWindowRateLimiter(limit, window, clock)
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderHandlerOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.listOrders)
	r.Get("/summary", h.summary)
	r.Get("/{orderID}", h.getOrder)

	r.Group(func(mut chi.Router) {
		if h.idempotency != nil {
			mut.Use(h.idempotency)
		}
		mut.Post("/", h.createOrder)
		mut.Put("/{orderID}/status", h.transitionStatus)
		mut.Put("/{orderID}/ship", h.shipOrder)
	})
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if !identity.HasRole(auth.RoleBuyer) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "only buyers can place orders", http.StatusForbidden))
		return
	}
	if h.limiter != nil {
		if allowed, retryAfter := h.limiter.Allow(identity.UID); !allowed {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(retryAfter.Seconds()))))
			httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many orders, retry later", http.StatusTooManyRequests))
			return
		}
	}

	var req createOrderRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	items := make([]services.OrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.OrderItemInput{
			ProductID:     strings.TrimSpace(item.ProductID),
			Quantity:      item.Quantity,
			Customization: textutil.NormalizeStringMap(item.Customization),
		})
	}
	cmd := services.CreateOrderCommand{
		BuyerID:         strings.TrimSpace(identity.UID),
		Items:           items,
		ShippingAddress: req.ShippingAddress.toDomain(),
		PaymentMethod:   domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		Notes:           textutil.CleanText(req.Notes),
	}
	if req.BillingAddress != nil {
		billing := req.BillingAddress.toDomain()
		cmd.BillingAddress = &billing
	}

	order, err := h.orders.Create(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildPopulatedOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{DefaultLimit: defaultOrderPageSize, MaxLimit: maxOrderPageSize})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var statuses []domain.OrderStatus
	for _, raw := range parseFilterValues(r.URL.Query()["status"]) {
		status, ok := domain.ParseOrderStatus(raw)
		if !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_status", fmt.Sprintf("unknown order status %q", raw), http.StatusBadRequest))
			return
		}
		statuses = append(statuses, status)
	}

	actor := actorFromIdentity(identity)
	if raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("role"))); raw != "" {
		switch raw {
		case auth.RoleBuyer, auth.RoleArtisan, auth.RoleAdmin:
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_role", fmt.Sprintf("unknown role %q", raw), http.StatusBadRequest))
			return
		}
		if !identity.HasRole(raw) {
			httpx.WriteError(ctx, w, httpx.NewError("forbidden", fmt.Sprintf("caller does not hold role %q", raw), http.StatusForbidden))
			return
		}
		actor.Role = domain.UserRole(raw)
	}

	page, err := h.orders.List(ctx, services.OrderListQuery{
		Actor:    actor,
		Statuses: statuses,
		Page:     params.PageRequest(),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items: items,
		Pagination: paginationPayload{
			CurrentPage: page.Page,
			TotalPages:  page.TotalPages(),
			TotalOrders: page.Total,
			Limit:       page.Limit,
		},
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	orderID, ok := requireOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Get(ctx, services.OrderGetQuery{Actor: actorFromIdentity(identity), OrderID: orderID})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildPopulatedOrderPayload(order)})
}

func (h *OrderHandlers) transitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	orderID, ok := requireOrderID(w, r)
	if !ok {
		return
	}

	var req transitionStatusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.OrderStatusTransitionCommand{
		OrderID:      orderID,
		Actor:        actorFromIdentity(identity),
		TargetStatus: req.Status,
		Notes:        textutil.CleanText(req.Notes),
	}
	if raw := strings.TrimSpace(req.ExpectedStatus); raw != "" {
		expected, ok := domain.ParseOrderStatus(raw)
		if !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_status", fmt.Sprintf("unknown expected_status %q", raw), http.StatusBadRequest))
			return
		}
		cmd.ExpectedStatus = &expected
	}

	order, err := h.orders.TransitionStatus(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildPopulatedOrderPayload(order)})
}

func (h *OrderHandlers) shipOrder(w http.ResponseWriter, r *http.Request) {
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
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "only artisans can ship orders", http.StatusForbidden))
		return
	}
	orderID, ok := requireOrderID(w, r)
	if !ok {
		return
	}

	var req shipOrderRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	order, err := h.orders.Ship(ctx, services.ShipOrderCommand{
		OrderID:        orderID,
		ArtisanID:      strings.TrimSpace(identity.UID),
		PartnerName:    textutil.CleanText(req.PartnerName),
		EstimatedPrice: *req.EstimatedPrice,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildPopulatedOrderPayload(order)})
}

func (h *OrderHandlers) summary(w http.ResponseWriter, r *http.Request) {
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
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "order summary is available to artisans only", http.StatusForbidden))
		return
	}

	summary, err := h.orders.Summary(ctx, strings.TrimSpace(identity.UID))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	counts := make(map[string]int, len(summary.Counts))
	for status, count := range summary.Counts {
		counts[string(status)] = count
	}
	writeJSONResponse(w, http.StatusOK, orderSummaryResponse{Counts: counts, Total: summary.Total})
}

func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func requireOrderID(w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return "", false
	}
	return orderID, true
}

func actorFromIdentity(identity *auth.Identity) services.Actor {
	return services.Actor{
		ID:   strings.TrimSpace(identity.UID),
		Role: domain.UserRole(identity.PrimaryRole()),
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", err.Error(), http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderLocationMissing):
		httpx.WriteError(ctx, w, httpx.NewError("location_missing", "buyer location is required before placing an order", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInsufficientInventory):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_inventory", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderProductInactive):
		httpx.WriteError(ctx, w, httpx.NewError("product_inactive", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderAccessDenied):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not authorized to access this order", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order storage temporarily unavailable", http.StatusServiceUnavailable))
	default:
		observability.FromContext(ctx).Error("order request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func (a addressRequest) toDomain() domain.Address {
	return domain.Address{
		Name:         textutil.CleanText(a.Name),
		AddressLine1: textutil.CleanText(a.AddressLine1),
		AddressLine2: textutil.CleanText(a.AddressLine2),
		City:         textutil.CleanText(a.City),
		State:        textutil.CleanText(a.State),
		PostalCode:   textutil.CleanText(a.PostalCode),
		Country:      textutil.CleanText(a.Country),
		Phone:        textutil.CleanText(a.Phone),
	}
}
