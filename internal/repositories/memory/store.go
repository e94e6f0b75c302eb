// Package memory implements the repositories with process-local maps. It backs tests
// and STORAGE_DRIVER=memory local runs and mirrors the Firestore semantics, including
// all-or-nothing transactions.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	domain "github.com/kalaghar/api/internal/domain"
	"github.com/kalaghar/api/internal/repositories"
)

// Error classifies memory store failures like the Firestore error type does.
type Error struct {
	Op       string
	notFound bool
	conflict bool
	msg      string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Op, e.msg) }

// IsNotFound reports a missing record.
func (e *Error) IsNotFound() bool { return e != nil && e.notFound }

// IsConflict reports a duplicate id.
func (e *Error) IsConflict() bool { return e != nil && e.conflict }

// IsUnavailable is always false; the memory store has no transient failures.
func (e *Error) IsUnavailable() bool { return false }

var _ repositories.RepositoryError = (*Error)(nil)

func notFound(op, id string) error {
	return &Error{Op: op, notFound: true, msg: fmt.Sprintf("%s not found", id)}
}

func conflict(op, id string) error {
	return &Error{Op: op, conflict: true, msg: fmt.Sprintf("%s already exists", id)}
}

type state struct {
	products     map[string]domain.Product
	users        map[string]domain.UserProfile
	orders       map[string]domain.Order
	reservations map[string]domain.InventoryReservation
	counters     map[string]int64
}

func (s state) clone() state {
	out := state{
		products:     make(map[string]domain.Product, len(s.products)),
		users:        maps.Clone(s.users),
		orders:       make(map[string]domain.Order, len(s.orders)),
		reservations: make(map[string]domain.InventoryReservation, len(s.reservations)),
		counters:     maps.Clone(s.counters),
	}
	for id, p := range s.products {
		out.products[id] = cloneProduct(p)
	}
	for id, o := range s.orders {
		out.orders[id] = cloneOrder(o)
	}
	for id, r := range s.reservations {
		out.reservations[id] = cloneReservation(r)
	}
	return out
}

type txKey struct{}

// Store holds every collection behind one mutex. Transactions hold the mutex for their
// whole duration and restore a snapshot when fn fails.
type Store struct {
	mu       sync.Mutex
	data     state
	readyErr error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		data: state{
			products:     map[string]domain.Product{},
			users:        map[string]domain.UserProfile{},
			orders:       map[string]domain.Order{},
			reservations: map[string]domain.InventoryReservation{},
			counters:     map[string]int64{},
		},
	}
}

// lock acquires the mutex unless ctx already belongs to a transaction on this store.
func (s *Store) lock(ctx context.Context) func() {
	if owner, ok := ctx.Value(txKey{}).(*Store); ok && owner == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// RunInTx implements repositories.UnitOfWork.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if owner, ok := ctx.Value(txKey{}).(*Store); ok && owner == s {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// PutProduct seeds or replaces a catalog entry.
func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.products[p.ID] = cloneProduct(p)
}

// PutUser seeds or replaces a user profile.
func (s *Store) PutUser(u domain.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[u.ID] = u
}

// Product returns the stored product, for assertions.
func (s *Store) Product(id string) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.products[id]
	return cloneProduct(p), ok
}

// SetReadyError makes the readiness check fail with err; nil restores it.
func (s *Store) SetReadyError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readyErr = err
}

// Ping is the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readyErr
}

func cloneProduct(p domain.Product) domain.Product {
	p.Images = append([]string(nil), p.Images...)
	return p
}

func cloneReservation(r domain.InventoryReservation) domain.InventoryReservation {
	r.Lines = append([]domain.InventoryReservationLine(nil), r.Lines...)
	return r
}

func cloneOrder(o domain.Order) domain.Order {
	items := make([]domain.OrderLineItem, len(o.Items))
	for i, item := range o.Items {
		item.Customization = maps.Clone(item.Customization)
		items[i] = item
	}
	o.Items = items
	o.ArtisanIDs = append([]string(nil), o.ArtisanIDs...)
	o.Timeline = append([]domain.TimelineEntry(nil), o.Timeline...)
	recs := make([]domain.Recommendation, len(o.Logistics.Recommendations))
	for i, rec := range o.Logistics.Recommendations {
		rec.Tags = append([]string(nil), rec.Tags...)
		recs[i] = rec
	}
	o.Logistics.Recommendations = recs
	return o
}
