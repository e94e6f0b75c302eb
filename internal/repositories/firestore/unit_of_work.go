package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/kalaghar/api/internal/platform/firestore"
	"github.com/kalaghar/api/internal/repositories"
)

// UnitOfWork runs repository calls in one Firestore transaction. Repositories reached
// through the context passed to fn join it.
type UnitOfWork struct {
	provider *pfirestore.Provider
	txOpts   []pfirestore.TxOption
}

var _ repositories.UnitOfWork = (*UnitOfWork)(nil)

// NewUnitOfWork binds a UnitOfWork to provider. opts apply to every transaction it opens.
func NewUnitOfWork(provider *pfirestore.Provider, opts ...pfirestore.TxOption) (*UnitOfWork, error) {
	if provider == nil {
		return nil, errors.New("unit of work requires firestore provider")
	}
	return &UnitOfWork{provider: provider, txOpts: opts}, nil
}

// RunInTx implements repositories.UnitOfWork. Firestore may retry fn on contention.
func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if u == nil || u.provider == nil {
		return errors.New("unit of work not initialised")
	}
	return u.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	}, u.txOpts...)
}
