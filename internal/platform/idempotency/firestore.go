package idempotency

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/kalaghar/api/internal/platform/firestore"
)

const collection = "idempotencyKeys"

// FirestoreStore keeps keys in the idempotencyKeys collection. Expiry is enforced on read;
// a Firestore TTL policy on expiresAt reclaims storage.
type FirestoreStore struct {
	provider *pfirestore.Provider
}

// NewFirestoreStore constructs a FirestoreStore.
func NewFirestoreStore(provider *pfirestore.Provider) *FirestoreStore {
	return &FirestoreStore{provider: provider}
}

type keyDocument struct {
	Fingerprint     string              `firestore:"fingerprint"`
	Completed       bool                `firestore:"completed"`
	ResponseStatus  int                 `firestore:"responseStatus"`
	ResponseHeaders map[string][]string `firestore:"responseHeaders"`
	ResponseBody    []byte              `firestore:"responseBody"`
	ExpiresAt       time.Time           `firestore:"expiresAt"`
}

// Reserve implements Store.
func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	ref, err := s.ref(ctx, key)
	if err != nil {
		return Reservation{}, err
	}
	var result Reservation
	err = s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		var doc keyDocument
		if err == nil {
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
		}
		if err != nil || !now.Before(doc.ExpiresAt) {
			result = Reservation{State: StateNew}
			return tx.Set(ref, keyDocument{Fingerprint: fingerprint, ExpiresAt: now.Add(ttl)})
		}
		if doc.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}
		if !doc.Completed {
			result = Reservation{State: StateInFlight}
			return nil
		}
		result = Reservation{State: StateCompleted, Response: Response{
			Status:  doc.ResponseStatus,
			Headers: doc.ResponseHeaders,
			Body:    doc.ResponseBody,
		}}
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}
	return result, nil
}

// Complete implements Store.
func (s *FirestoreStore) Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	ref, err := s.ref(ctx, key)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, keyDocument{
		Fingerprint:     fingerprint,
		Completed:       true,
		ResponseStatus:  resp.Status,
		ResponseHeaders: resp.Headers,
		ResponseBody:    resp.Body,
		ExpiresAt:       now.Add(ttl),
	})
	return err
}

// Release implements Store.
func (s *FirestoreStore) Release(ctx context.Context, key string) error {
	ref, err := s.ref(ctx, key)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

func (s *FirestoreStore) ref(ctx context.Context, key string) (*firestore.DocumentRef, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(collection).Doc(documentID(key)), nil
}
