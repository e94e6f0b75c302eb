package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	domain "github.com/kalaghar/api/internal/domain"
	"github.com/kalaghar/api/internal/platform/observability"
	"github.com/kalaghar/api/internal/repositories"
)

const (
	orderIDPrefix     = "ord_"
	eventIDPrefix     = "evt_"
	orderNumberFormat = "KG-%04d-%06d"

	// MaxStatusNotesLength bounds free-text notes on a status transition.
	MaxStatusNotesLength = 500

	defaultPageLimit = 10
	maxPageLimit     = 100
	scanPageLimit    = 100
)

var orderTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed:  {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered, domain.OrderStatusCancelled},
}

// CanTransition reports whether target is an allowed successor of current.
func CanTransition(current, target domain.OrderStatus) bool {
	for _, next := range orderTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// OrderServiceDeps bundles collaborators required to construct an order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Products    repositories.ProductRepository
	Users       repositories.UserRepository
	Counters    repositories.CounterRepository
	Inventory   InventoryService
	UnitOfWork  repositories.UnitOfWork
	Pricing     *PricingCalculator
	Logistics   *LogisticsEstimator
	Advisor     *ShipmentAdvisor
	Events      OrderEventPublisher
	Metrics     *observability.OrderMetrics
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	products   repositories.ProductRepository
	users      repositories.UserRepository
	counters   repositories.CounterRepository
	inventory  InventoryService
	unitOfWork repositories.UnitOfWork
	pricing    PricingCalculator
	logistics  *LogisticsEstimator
	advisor    *ShipmentAdvisor
	events     OrderEventPublisher
	metrics    *observability.OrderMetrics
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

var _ OrderService = (*orderService)(nil)

// NewOrderService wires the order pipeline.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("order service: user repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory service is required")
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
	uow := deps.UnitOfWork
	if uow == nil {
		uow = noopUnitOfWork{}
	}
	pricing := NewPricingCalculator(DefaultPricingPolicy())
	if deps.Pricing != nil {
		pricing = *deps.Pricing
	}
	estimator := deps.Logistics
	if estimator == nil {
		estimator = NewLogisticsEstimator(LogisticsEstimatorDeps{Logger: logger, Metrics: deps.Metrics})
	}
	advisor := deps.Advisor
	if advisor == nil {
		var err error
		if advisor, err = NewShipmentAdvisor(nil, 0); err != nil {
			return nil, err
		}
	}

	return &orderService{
		orders:     deps.Orders,
		products:   deps.Products,
		users:      deps.Users,
		counters:   deps.Counters,
		inventory:  deps.Inventory,
		unitOfWork: uow,
		pricing:    pricing,
		logistics:  estimator,
		advisor:    advisor,
		events:     deps.Events,
		metrics:    deps.Metrics,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) Create(ctx context.Context, cmd CreateOrderCommand) (PopulatedOrder, error) {
	if err := validateCreateCommand(cmd); err != nil {
		return PopulatedOrder{}, err
	}
	buyerID := strings.TrimSpace(cmd.BuyerID)

	buyer, err := s.users.FindByID(ctx, buyerID)
	if err != nil {
		if isRepoNotFound(err) {
			return PopulatedOrder{}, fmt.Errorf("%w: buyer %s has no profile", ErrOrderLocationMissing, buyerID)
		}
		return PopulatedOrder{}, mapRepositoryError(err)
	}
	destination, ok := buyer.Location.Coordinates()
	if !ok {
		return PopulatedOrder{}, fmt.Errorf("%w: update your profile location before ordering", ErrOrderLocationMissing)
	}

	items, err := s.buildLineItems(ctx, cmd.Items)
	if err != nil {
		return PopulatedOrder{}, err
	}
	artisanIDs := domain.UniqueArtisanIDs(items)
	if len(artisanIDs) == 0 {
		return PopulatedOrder{}, fmt.Errorf("%w: products have no artisan", ErrOrderInvalidInput)
	}
	pricing := s.pricing.Compute(items)

	logistics := domain.Logistics{
		DestinationCity: buyer.Location.City,
		PackageWeightKg: PackageWeight(items),
		Recommendations: []domain.Recommendation{},
	}
	var origin *domain.Coordinates
	artisan, err := s.users.FindByID(ctx, artisanIDs[0])
	if err != nil {
		s.logger(ctx, "order.logistics.artisan_lookup_failed", map[string]any{
			"artisanId": artisanIDs[0],
			"error":     err.Error(),
		})
	} else {
		if artisan.Location != nil {
			logistics.OriginCity = artisan.Location.City
		}
		origin, _ = artisan.Location.Coordinates()
	}
	estimate := s.logistics.Estimate(ctx, origin, destination)
	logistics.DistanceKm = estimate.DistanceKm
	logistics.EstimatedDurationHours = estimate.DurationHours
	logistics.Degraded = estimate.Degraded

	now := s.now()
	orderNumber, err := s.nextOrderNumber(ctx, now)
	if err != nil {
		return PopulatedOrder{}, err
	}

	billing := cmd.ShippingAddress
	if cmd.BillingAddress != nil {
		billing = *cmd.BillingAddress
	}

	base := domain.Order{
		ID:              orderIDPrefix + s.newID(),
		OrderNumber:     orderNumber,
		BuyerID:         buyerID,
		Items:           items,
		ArtisanIDs:      artisanIDs,
		Status:          domain.OrderStatusPending,
		Timeline:        []domain.TimelineEntry{},
		Pricing:         pricing,
		ShippingAddress: cmd.ShippingAddress,
		BillingAddress:  billing,
		Payment:         domain.Payment{Method: cmd.PaymentMethod},
		Logistics:       logistics,
		Notes:           strings.TrimSpace(cmd.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	lines := make([]domain.InventoryReservationLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.InventoryReservationLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	var order domain.Order
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		order = base
		reservation, err := s.inventory.Reserve(txCtx, InventoryReserveCommand{
			OrderID: order.ID,
			BuyerID: buyerID,
			Lines:   lines,
		})
		if err != nil {
			return mapInventoryError(err)
		}
		order.ReservationID = reservation.ID
		if err := s.orders.Insert(txCtx, order); err != nil {
			return mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return PopulatedOrder{}, s.txError(err)
	}

	s.logger(ctx, "order.created", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"buyerId":     buyerID,
		"items":       len(order.Items),
		"total":       order.Pricing.Total,
		"degraded":    order.Logistics.Degraded,
	})
	s.metrics.OrderCreated(ctx, order.TotalQuantity())
	s.publishEvent(ctx, s.newEvent(OrderEventCreated, order, "", buyerID, now))

	return s.populate(ctx, order), nil
}

func (s *orderService) List(ctx context.Context, query OrderListQuery) (domain.OffsetPage[Order], error) {
	filter := repositories.OrderListFilter{
		Statuses: query.Statuses,
		Page:     normalisePage(query.Page),
	}
	actorID := strings.TrimSpace(query.Actor.ID)
	switch query.Actor.Role {
	case domain.UserRoleAdmin:
	case domain.UserRoleArtisan:
		filter.ArtisanID = actorID
	case domain.UserRoleBuyer:
		filter.BuyerID = actorID
	default:
		return domain.OffsetPage[Order]{}, fmt.Errorf("%w: role %q cannot list orders", ErrOrderAccessDenied, query.Actor.Role)
	}
	if query.Actor.Role != domain.UserRoleAdmin && actorID == "" {
		return domain.OffsetPage[Order]{}, fmt.Errorf("%w: actor id is required", ErrOrderInvalidInput)
	}
	for _, status := range query.Statuses {
		if _, ok := domain.ParseOrderStatus(string(status)); !ok {
			return domain.OffsetPage[Order]{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, status)
		}
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.OffsetPage[Order]{}, mapRepositoryError(err)
	}
	if page.Items == nil {
		page.Items = []Order{}
	}
	return page, nil
}

func (s *orderService) Get(ctx context.Context, query OrderGetQuery) (PopulatedOrder, error) {
	orderID := strings.TrimSpace(query.OrderID)
	if orderID == "" {
		return PopulatedOrder{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return PopulatedOrder{}, mapRepositoryError(err)
	}
	if !canView(order, query.Actor) {
		return PopulatedOrder{}, ErrOrderAccessDenied
	}
	return s.populate(ctx, order), nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (PopulatedOrder, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return PopulatedOrder{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target, ok := domain.ParseOrderStatus(cmd.TargetStatus)
	if !ok {
		return PopulatedOrder{}, fmt.Errorf("%w: invalid status %q", ErrOrderInvalidInput, cmd.TargetStatus)
	}
	notes := strings.TrimSpace(cmd.Notes)
	if utf8.RuneCountInString(notes) > MaxStatusNotesLength {
		return PopulatedOrder{}, fmt.Errorf("%w: notes must be under %d characters", ErrOrderInvalidInput, MaxStatusNotesLength)
	}
	actor := cmd.Actor
	actor.ID = strings.TrimSpace(actor.ID)
	if !actor.IsAdmin() && actor.Role != domain.UserRoleArtisan {
		return PopulatedOrder{}, fmt.Errorf("%w: only artisans on the order or admins may change status", ErrOrderAccessDenied)
	}

	now := s.now()
	var (
		order    domain.Order
		previous domain.OrderStatus
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return mapRepositoryError(err)
		}
		if !canManage(current, actor) {
			return ErrOrderAccessDenied
		}
		previous = current.CurrentStatus()
		if cmd.ExpectedStatus != nil && previous != *cmd.ExpectedStatus {
			return fmt.Errorf("%w: expected status %q but was %q", ErrOrderConflict, *cmd.ExpectedStatus, previous)
		}
		if !CanTransition(previous, target) {
			return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, previous, target)
		}
		if err := s.settleReservation(txCtx, current, previous, target, actor.ID, notes); err != nil {
			return err
		}
		if target == domain.OrderStatusShipped && current.Logistics.ShippedAt == nil {
			current.Logistics.ShippedAt = &now
		}
		current.AppendTransition(domain.TimelineEntry{
			Status:    target,
			Notes:     notes,
			ActorID:   actor.ID,
			Timestamp: now,
		})
		if err := s.orders.Save(txCtx, current); err != nil {
			return mapRepositoryError(err)
		}
		order = current
		return nil
	})
	if err != nil {
		return PopulatedOrder{}, s.txError(err)
	}

	s.afterTransition(ctx, order, previous, actor.ID, now)
	return s.populate(ctx, order), nil
}

func (s *orderService) Ship(ctx context.Context, cmd ShipOrderCommand) (PopulatedOrder, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	artisanID := strings.TrimSpace(cmd.ArtisanID)
	partner := strings.TrimSpace(cmd.PartnerName)
	switch {
	case orderID == "":
		return PopulatedOrder{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	case artisanID == "":
		return PopulatedOrder{}, fmt.Errorf("%w: artisan id is required", ErrOrderInvalidInput)
	case partner == "":
		return PopulatedOrder{}, fmt.Errorf("%w: partner name is required", ErrOrderInvalidInput)
	case cmd.EstimatedPrice < 0:
		return PopulatedOrder{}, fmt.Errorf("%w: estimated price must not be negative", ErrOrderInvalidInput)
	}

	now := s.now()
	var (
		order    domain.Order
		previous domain.OrderStatus
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return mapRepositoryError(err)
		}
		if !current.HasArtisan(artisanID) {
			return ErrOrderAccessDenied
		}
		previous = current.CurrentStatus()
		skipped, ok := shipmentPath(previous)
		if !ok {
			return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidTransition, previous, domain.OrderStatusShipped)
		}
		if err := s.settleReservation(txCtx, current, previous, domain.OrderStatusShipped, artisanID, ""); err != nil {
			return err
		}
		price := cmd.EstimatedPrice
		current.Logistics.SelectedPartner = &partner
		current.Logistics.ShippingCost = &price
		current.Logistics.ShippedAt = &now
		for _, status := range skipped {
			current.AppendTransition(domain.TimelineEntry{
				Status:    status,
				Notes:     fmt.Sprintf("Advanced to %s on shipment.", status),
				ActorID:   artisanID,
				Timestamp: now,
			})
		}
		current.AppendTransition(domain.TimelineEntry{
			Status:    domain.OrderStatusShipped,
			Notes:     fmt.Sprintf("Shipped via %s.", partner),
			ActorID:   artisanID,
			Timestamp: now,
		})
		if err := s.orders.Save(txCtx, current); err != nil {
			return mapRepositoryError(err)
		}
		order = current
		return nil
	})
	if err != nil {
		return PopulatedOrder{}, s.txError(err)
	}

	s.afterTransition(ctx, order, previous, artisanID, now)
	return s.populate(ctx, order), nil
}

func (s *orderService) Summary(ctx context.Context, artisanID string) (OrderStatusSummary, error) {
	artisanID = strings.TrimSpace(artisanID)
	if artisanID == "" {
		return OrderStatusSummary{}, fmt.Errorf("%w: artisan id is required", ErrOrderInvalidInput)
	}
	counts, err := s.orders.CountByStatus(ctx, artisanID)
	if err != nil {
		return OrderStatusSummary{}, mapRepositoryError(err)
	}
	summary := OrderStatusSummary{Counts: make(map[domain.OrderStatus]int, len(domain.OrderStatuses))}
	for _, status := range domain.OrderStatuses {
		summary.Counts[status] = counts[status]
		summary.Total += counts[status]
	}
	return summary, nil
}

func (s *orderService) ListAwaitingShipment(ctx context.Context, artisanID string) ([]ShipmentCandidate, error) {
	artisanID = strings.TrimSpace(artisanID)
	if artisanID == "" {
		return nil, fmt.Errorf("%w: artisan id is required", ErrOrderInvalidInput)
	}
	orders, err := s.shippableOrders(ctx, artisanID)
	if err != nil {
		return nil, err
	}
	candidates := make([]ShipmentCandidate, 0, len(orders))
	for _, order := range orders {
		candidates = append(candidates, ShipmentCandidate{
			Order:           order,
			Recommendations: s.advisor.Recommend(order.Logistics),
		})
	}
	return candidates, nil
}

func (s *orderService) RefreshRecommendations(ctx context.Context, cmd RefreshRecommendationsCommand) (int, error) {
	artisanID := strings.TrimSpace(cmd.ArtisanID)
	orderID := strings.TrimSpace(cmd.OrderID)
	if artisanID == "" && orderID == "" {
		return 0, fmt.Errorf("%w: artisan id or order id is required", ErrOrderInvalidInput)
	}

	var targets []domain.Order
	if orderID != "" {
		order, err := s.orders.FindByID(ctx, orderID)
		if err != nil {
			return 0, mapRepositoryError(err)
		}
		if artisanID != "" && !order.HasArtisan(artisanID) {
			return 0, fmt.Errorf("%w: order %s does not belong to artisan %s", ErrOrderInvalidInput, orderID, artisanID)
		}
		if order.CurrentStatus().IsShippable() {
			targets = append(targets, order)
		}
	} else {
		orders, err := s.shippableOrders(ctx, artisanID)
		if err != nil {
			return 0, err
		}
		targets = orders
	}

	now := s.now()
	updated := 0
	for _, order := range targets {
		recs := s.advisor.Recommend(order.Logistics)
		if err := s.orders.UpdateRecommendations(ctx, order.ID, recs, now); err != nil {
			return updated, mapRepositoryError(err)
		}
		updated++
	}
	s.logger(ctx, "order.recommendations.refreshed", map[string]any{
		"artisanId": artisanID,
		"orderId":   orderID,
		"updated":   updated,
	})
	return updated, nil
}

// shipmentPath returns the statuses an order passes through before shipped. Orders still
// pending or confirmed walk the remaining steps so the timeline never skips a state.
func shipmentPath(from domain.OrderStatus) ([]domain.OrderStatus, bool) {
	switch from {
	case domain.OrderStatusPending:
		return []domain.OrderStatus{domain.OrderStatusConfirmed, domain.OrderStatusProcessing}, true
	case domain.OrderStatusConfirmed:
		return []domain.OrderStatus{domain.OrderStatusProcessing}, true
	case domain.OrderStatusProcessing:
		return nil, true
	default:
		return nil, false
	}
}

// shippableOrders pages through an artisan's orders in a shippable status.
func (s *orderService) shippableOrders(ctx context.Context, artisanID string) ([]domain.Order, error) {
	statuses := []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusConfirmed, domain.OrderStatusProcessing}
	var out []domain.Order
	for page := 1; ; page++ {
		result, err := s.orders.List(ctx, repositories.OrderListFilter{
			ArtisanID: artisanID,
			Statuses:  statuses,
			Page:      domain.PageRequest{Page: page, Limit: scanPageLimit},
		})
		if err != nil {
			return nil, mapRepositoryError(err)
		}
		for _, order := range result.Items {
			if order.CurrentStatus().IsShippable() {
				out = append(out, order)
			}
		}
		if len(result.Items) < scanPageLimit || page*scanPageLimit >= result.Total {
			return out, nil
		}
	}
}

// buildLineItems validates every requested line against a read snapshot before any
// inventory is touched.
func (s *orderService) buildLineItems(ctx context.Context, inputs []OrderItemInput) ([]domain.OrderLineItem, error) {
	ids := make([]string, 0, len(inputs))
	for _, input := range inputs {
		ids = append(ids, strings.TrimSpace(input.ProductID))
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, mapRepositoryError(err)
	}

	requested := make(map[string]int, len(inputs))
	items := make([]domain.OrderLineItem, 0, len(inputs))
	for _, input := range inputs {
		productID := strings.TrimSpace(input.ProductID)
		product, ok := products[productID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s not found", ErrOrderProductNotFound, productID)
		}
		if product.Status != domain.ProductStatusActive {
			return nil, fmt.Errorf("%w: product %s is not available", ErrOrderProductInactive, product.Name)
		}
		if product.Price <= 0 {
			return nil, fmt.Errorf("%w: product %s has no valid price", ErrOrderProductInactive, product.Name)
		}
		requested[productID] += input.Quantity
		if !product.Inventory.IsUnlimited && product.Inventory.Available() < requested[productID] {
			return nil, fmt.Errorf("%w: insufficient inventory for %s, available %d", ErrOrderInsufficientInventory, product.Name, product.Inventory.Available())
		}
		items = append(items, domain.OrderLineItem{
			ProductID:     productID,
			ArtisanID:     strings.TrimSpace(product.ArtisanID),
			Quantity:      input.Quantity,
			PriceAtTime:   product.Price,
			Customization: cleanCustomization(input.Customization),
		})
	}
	return items, nil
}

// settleReservation releases stock on cancellation and commits it on shipment. Orders
// cancelled after shipping keep their committed stock.
func (s *orderService) settleReservation(ctx context.Context, order domain.Order, from, to domain.OrderStatus, actorID, reason string) error {
	if order.ReservationID == "" {
		return nil
	}
	var err error
	switch {
	case to == domain.OrderStatusShipped:
		_, err = s.inventory.Commit(ctx, order.ReservationID, actorID)
	case to == domain.OrderStatusCancelled && from != domain.OrderStatusShipped:
		if reason == "" {
			reason = "order cancelled"
		}
		_, err = s.inventory.Release(ctx, order.ReservationID, reason)
	}
	if err != nil {
		return mapInventoryError(err)
	}
	return nil
}

func (s *orderService) afterTransition(ctx context.Context, order domain.Order, previous domain.OrderStatus, actorID string, now time.Time) {
	status := order.CurrentStatus()
	s.logger(ctx, "order.status_changed", map[string]any{
		"orderId":  order.ID,
		"from":     string(previous),
		"to":       string(status),
		"actorId":  actorID,
		"timeline": len(order.Timeline),
	})
	s.metrics.StatusChanged(ctx, string(status))

	event := s.newEvent(OrderEventStatusChanged, order, previous, actorID, now)
	s.publishEvent(ctx, event)
	switch status {
	case domain.OrderStatusShipped:
		s.publishEvent(ctx, s.newEvent(OrderEventShipped, order, previous, actorID, now))
	case domain.OrderStatusCancelled:
		s.publishEvent(ctx, s.newEvent(OrderEventCancelled, order, previous, actorID, now))
	}
}

// populate attaches product and artisan summaries. Lookup failures leave summaries
// empty; population never fails the request.
func (s *orderService) populate(ctx context.Context, order domain.Order) PopulatedOrder {
	out := PopulatedOrder{
		Order:    order,
		Products: map[string]domain.ProductSummary{},
		Artisans: map[string]domain.ArtisanSummary{},
	}
	productIDs := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	if products, err := s.products.FindByIDs(ctx, productIDs); err != nil {
		s.logger(ctx, "order.populate.products_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
	} else {
		for id, product := range products {
			out.Products[id] = domain.ProductSummary{ID: product.ID, Name: product.Name, Images: append([]string(nil), product.Images...)}
		}
	}
	if users, err := s.users.FindByIDs(ctx, order.ArtisanIDs); err != nil {
		s.logger(ctx, "order.populate.artisans_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
	} else {
		for id, user := range users {
			out.Artisans[id] = domain.ArtisanSummary{ID: user.ID, Name: user.Name, ProfileImage: user.ProfileImage}
		}
	}
	return out
}

func (s *orderService) nextOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, fmt.Sprintf("orders-%04d", now.Year()), 1)
	if err != nil {
		return "", fmt.Errorf("allocate order number: %w", mapRepositoryError(err))
	}
	return fmt.Sprintf(orderNumberFormat, now.Year(), seq), nil
}

func (s *orderService) newEvent(eventType string, order domain.Order, previous domain.OrderStatus, actorID string, now time.Time) OrderEvent {
	return OrderEvent{
		ID:             eventIDPrefix + s.newID(),
		Type:           eventType,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		BuyerID:        order.BuyerID,
		ArtisanIDs:     append([]string(nil), order.ArtisanIDs...),
		Status:         order.CurrentStatus(),
		PreviousStatus: previous,
		ActorID:        actorID,
		Total:          order.Pricing.Total,
		OccurredAt:     now,
	}
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": string(event.Status),
		})
	}
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	return s.unitOfWork.RunInTx(ctx, fn)
}

// txError keeps service sentinels produced inside the transaction and classifies
// anything else the store returned.
func (s *orderService) txError(err error) error {
	for _, sentinel := range []error{
		ErrOrderInvalidInput,
		ErrOrderProductNotFound,
		ErrOrderProductInactive,
		ErrOrderInsufficientInventory,
		ErrOrderAccessDenied,
		ErrOrderInvalidTransition,
		ErrOrderNotFound,
		ErrOrderConflict,
		ErrOrderUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return mapRepositoryError(err)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func validateCreateCommand(cmd CreateOrderCommand) error {
	if strings.TrimSpace(cmd.BuyerID) == "" {
		return fmt.Errorf("%w: buyer id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}
	for i, item := range cmd.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("%w: items[%d]: product id is required", ErrOrderInvalidInput, i)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: items[%d]: quantity must be at least 1", ErrOrderInvalidInput, i)
		}
	}
	addr := cmd.ShippingAddress
	switch {
	case strings.TrimSpace(addr.Name) == "":
		return fmt.Errorf("%w: shipping name is required", ErrOrderInvalidInput)
	case strings.TrimSpace(addr.AddressLine1) == "":
		return fmt.Errorf("%w: shipping address is required", ErrOrderInvalidInput)
	case strings.TrimSpace(addr.City) == "":
		return fmt.Errorf("%w: shipping city is required", ErrOrderInvalidInput)
	}
	if !validPaymentMethod(cmd.PaymentMethod) {
		return fmt.Errorf("%w: invalid payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}
	return nil
}

func validPaymentMethod(method domain.PaymentMethod) bool {
	for _, known := range domain.PaymentMethods {
		if method == known {
			return true
		}
	}
	return false
}

func canView(order domain.Order, actor Actor) bool {
	id := strings.TrimSpace(actor.ID)
	if actor.IsAdmin() {
		return true
	}
	return id != "" && (order.BuyerID == id || order.HasArtisan(id))
}

func canManage(order domain.Order, actor Actor) bool {
	switch actor.Role {
	case domain.UserRoleAdmin:
		return true
	case domain.UserRoleArtisan:
		return order.HasArtisan(actor.ID)
	default:
		return false
	}
}

func normalisePage(page domain.PageRequest) domain.PageRequest {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.Limit <= 0 {
		page.Limit = defaultPageLimit
	}
	if page.Limit > maxPageLimit {
		page.Limit = maxPageLimit
	}
	return page
}

func cleanCustomization(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for key, value := range src {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
