package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/kalaghar/api/internal/domain"
	"github.com/kalaghar/api/internal/repositories"
)

var _ repositories.Registry = (*Store)(nil)

func (s *Store) Orders() repositories.OrderRepository { return orderRepository{s} }

func (s *Store) Products() repositories.ProductRepository { return productRepository{s} }

func (s *Store) Users() repositories.UserRepository { return userRepository{s} }

func (s *Store) Inventory() repositories.InventoryRepository { return inventoryRepository{s} }

func (s *Store) Counters() repositories.CounterRepository { return counterRepository{s} }

// Health reports the store as a single "memory" dependency.
func (s *Store) Health() repositories.HealthRepository {
	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{{Name: "memory", Check: s.Ping}})
	if err != nil {
		panic(err)
	}
	return health
}

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

type orderRepository struct{ s *Store }

func (r orderRepository) Insert(ctx context.Context, order domain.Order) error {
	defer r.s.lock(ctx)()
	if strings.TrimSpace(order.ID) == "" {
		return fmt.Errorf("orders.insert: id is required")
	}
	if _, ok := r.s.data.orders[order.ID]; ok {
		return conflict("orders.insert", order.ID)
	}
	r.s.data.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r orderRepository) Save(ctx context.Context, order domain.Order) error {
	defer r.s.lock(ctx)()
	if strings.TrimSpace(order.ID) == "" {
		return fmt.Errorf("orders.save: id is required")
	}
	order.Status = order.CurrentStatus()
	r.s.data.orders[order.ID] = cloneOrder(order)
	return nil
}

func (r orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	defer r.s.lock(ctx)()
	order, ok := r.s.data.orders[strings.TrimSpace(orderID)]
	if !ok {
		return domain.Order{}, notFound("orders.get", orderID)
	}
	return cloneOrder(order), nil
}

func (r orderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.OffsetPage[domain.Order], error) {
	defer r.s.lock(ctx)()
	matched := make([]domain.Order, 0)
	for _, order := range r.s.data.orders {
		if matchesFilter(order, filter) {
			matched = append(matched, order)
		}
	}
	slices.SortFunc(matched, func(a, b domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	page := domain.OffsetPage[domain.Order]{Total: len(matched), Page: filter.Page.Page, Limit: filter.Page.Limit}
	offset := filter.Page.Offset()
	if offset >= len(matched) || filter.Page.Limit <= 0 {
		return page, nil
	}
	end := min(offset+filter.Page.Limit, len(matched))
	for _, order := range matched[offset:end] {
		page.Items = append(page.Items, cloneOrder(order))
	}
	return page, nil
}

func (r orderRepository) CountByStatus(ctx context.Context, artisanID string) (map[domain.OrderStatus]int, error) {
	defer r.s.lock(ctx)()
	counts := make(map[domain.OrderStatus]int, len(domain.OrderStatuses))
	for _, status := range domain.OrderStatuses {
		counts[status] = 0
	}
	for _, order := range r.s.data.orders {
		if matchesFilter(order, repositories.OrderListFilter{ArtisanID: artisanID}) {
			counts[order.Status]++
		}
	}
	return counts, nil
}

func (r orderRepository) UpdateRecommendations(ctx context.Context, orderID string, recommendations []domain.Recommendation, at time.Time) error {
	defer r.s.lock(ctx)()
	order, ok := r.s.data.orders[strings.TrimSpace(orderID)]
	if !ok {
		return notFound("orders.update", orderID)
	}
	at = at.UTC()
	order.Logistics.Recommendations = recommendations
	order.Logistics.RecommendationsUpdatedAt = &at
	order.UpdatedAt = at
	r.s.data.orders[order.ID] = cloneOrder(order)
	return nil
}

func matchesFilter(order domain.Order, filter repositories.OrderListFilter) bool {
	if id := strings.TrimSpace(filter.BuyerID); id != "" && order.BuyerID != id {
		return false
	}
	if id := strings.TrimSpace(filter.ArtisanID); id != "" && !slices.Contains(order.ArtisanIDs, id) {
		return false
	}
	if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, order.Status) {
		return false
	}
	return true
}

type productRepository struct{ s *Store }

func (r productRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.data.products[strings.TrimSpace(productID)]
	if !ok {
		return domain.Product{}, notFound("products.get", productID)
	}
	return cloneProduct(p), nil
}

func (r productRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	defer r.s.lock(ctx)()
	out := make(map[string]domain.Product, len(productIDs))
	for _, id := range productIDs {
		if p, ok := r.s.data.products[strings.TrimSpace(id)]; ok {
			out[p.ID] = cloneProduct(p)
		}
	}
	return out, nil
}

type userRepository struct{ s *Store }

func (r userRepository) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	defer r.s.lock(ctx)()
	u, ok := r.s.data.users[strings.TrimSpace(userID)]
	if !ok {
		return domain.UserProfile{}, notFound("users.get", userID)
	}
	return u, nil
}

func (r userRepository) FindByIDs(ctx context.Context, userIDs []string) (map[string]domain.UserProfile, error) {
	defer r.s.lock(ctx)()
	out := make(map[string]domain.UserProfile, len(userIDs))
	for _, id := range userIDs {
		if u, ok := r.s.data.users[strings.TrimSpace(id)]; ok {
			out[u.ID] = u
		}
	}
	return out, nil
}

type counterRepository struct{ s *Store }

func (r counterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	defer r.s.lock(ctx)()
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, fmt.Errorf("counter id is required")
	}
	if step <= 0 {
		step = 1
	}
	r.s.data.counters[id] += step
	return r.s.data.counters[id], nil
}
