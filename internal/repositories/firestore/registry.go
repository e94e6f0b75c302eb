package firestore

import (
	"context"
	"errors"
	"time"

	pfirestore "github.com/kalaghar/api/internal/platform/firestore"
	"github.com/kalaghar/api/internal/repositories"
)

// Registry wires the Firestore repositories around one shared provider.
type Registry struct {
	*UnitOfWork

	provider  *pfirestore.Provider
	orders    *OrderRepository
	products  *ProductRepository
	users     *UserRepository
	inventory *InventoryRepository
	counters  *CounterRepository
	health    repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// RegistryOption customises NewRegistry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	healthOpts  []repositories.DependencyHealthOption
	extraChecks []repositories.DependencyCheck
	txOpts      []pfirestore.TxOption
}

// WithHealthOptions forwards options to the readiness repository.
func WithHealthOptions(opts ...repositories.DependencyHealthOption) RegistryOption {
	return func(o *registryOptions) {
		o.healthOpts = append(o.healthOpts, opts...)
	}
}

// WithDependencyChecks adds readiness checks beyond Firestore.
func WithDependencyChecks(checks ...repositories.DependencyCheck) RegistryOption {
	return func(o *registryOptions) {
		o.extraChecks = append(o.extraChecks, checks...)
	}
}

// WithTransactionOptions tunes the transactions opened by the registry's UnitOfWork.
func WithTransactionOptions(opts ...pfirestore.TxOption) RegistryOption {
	return func(o *registryOptions) {
		o.txOpts = append(o.txOpts, opts...)
	}
}

// NewRegistry constructs every Firestore repository.
func NewRegistry(provider *pfirestore.Provider, opts ...RegistryOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	var cfg registryOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	uow, err := NewUnitOfWork(provider, cfg.txOpts...)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	users, err := NewUserRepository(provider)
	if err != nil {
		return nil, err
	}
	inventory, err := NewInventoryRepository(provider)
	if err != nil {
		return nil, err
	}
	counters, err := NewCounterRepository(provider)
	if err != nil {
		return nil, err
	}
	checks := append([]repositories.DependencyCheck{{
		Name:    "firestore",
		Timeout: 2 * time.Second,
		Check:   provider.Ping,
	}}, cfg.extraChecks...)
	health, err := repositories.NewDependencyHealthRepository(checks, cfg.healthOpts...)
	if err != nil {
		return nil, err
	}

	return &Registry{
		UnitOfWork: uow,
		provider:   provider,
		orders:     orders,
		products:   products,
		users:      users,
		inventory:  inventory,
		counters:   counters,
		health:     health,
	}, nil
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }
func (r *Registry) Products() repositories.ProductRepository { return r.products }
func (r *Registry) Users() repositories.UserRepository { return r.users }
func (r *Registry) Inventory() repositories.InventoryRepository { return r.inventory }
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// Close releases the Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.provider.Close(ctx)
}
