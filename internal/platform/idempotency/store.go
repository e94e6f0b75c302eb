// Package idempotency replays the stored response of a mutating request when a client
// retries it with the same Idempotency-Key.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"
)

// DefaultTTL is how long a key is remembered.
const DefaultTTL = 24 * time.Hour

// State is the outcome of reserving a key.
type State int

const (
	// StateNew means the caller owns the key and must run the request.
	StateNew State = iota
	// StateCompleted means a response is stored and must be replayed.
	StateCompleted
	// StateInFlight means another request holds the key.
	StateInFlight
)

// Response is a captured HTTP response.
type Response struct {
	Status  int
	Headers map[string][]string
	Body    []byte
}

// Reservation is the result of Reserve. Response is set when State is StateCompleted.
type Reservation struct {
	State    State
	Response Response
}

// ErrFingerprintMismatch means the key was used before for a different request.
var ErrFingerprintMismatch = errors.New("idempotency: key reused for a different request")

// Store persists key reservations and responses.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	Complete(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// documentID hashes the scoped key so arbitrary client input is a safe document id.
func documentID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func storableHeaders(header http.Header) map[string][]string {
	out := make(map[string][]string, len(header))
	for name, values := range header {
		switch http.CanonicalHeaderKey(name) {
		case "Content-Length", "Date", "Connection", "Transfer-Encoding":
			continue
		}
		out[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	return out
}
