package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/kalaghar/api/internal/domain"
	"github.com/kalaghar/api/internal/services"
)

func newLogisticsRouter(service services.OrderService) chi.Router {
	router := chi.NewRouter()
	router.Route("/logistics", NewLogisticsHandlers(nil, service).Routes)
	return router
}

func TestLogisticsHandlersAwaitingShipment(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	var capturedArtisan string
	service := &stubOrderService{
		awaitingFn: func(_ context.Context, artisanID string) ([]services.ShipmentCandidate, error) {
			capturedArtisan = artisanID
			return []services.ShipmentCandidate{
				{
					Order: sampleOrder(now),
					Recommendations: []domain.Recommendation{
						{Rank: 1, PartnerName: "India Post", ServiceLevel: "speed_post", EstimatedPrice: 7940, EstimatedDays: 3, Tags: []string{"cheapest"}},
						{Rank: 2, PartnerName: "DTDC", ServiceLevel: "standard", EstimatedPrice: 9675, EstimatedDays: 2, Tags: []string{"fastest", "recommended"}},
					},
				},
			}, nil
		},
	}

	rr := doOrderRequest(newLogisticsRouter(service), http.MethodGet, "/logistics", "", artisanIdentity)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if capturedArtisan != "artisan-1" {
		t.Fatalf("expected artisan-1, got %q", capturedArtisan)
	}

	var body struct {
		Orders []struct {
			Order struct {
				ID string `json:"id"`
			} `json:"order"`
			Recommendations []struct {
				Rank           int      `json:"rank"`
				PartnerName    string   `json:"partner_name"`
				EstimatedPrice int64    `json:"estimated_price"`
				Tags           []string `json:"tags"`
			} `json:"recommendations"`
		} `json:"orders_awaiting_shipment"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(body.Orders) != 1 || body.Orders[0].Order.ID != "ord_123" {
		t.Fatalf("unexpected orders %+v", body.Orders)
	}
	recs := body.Orders[0].Recommendations
	if len(recs) != 2 || recs[0].PartnerName != "India Post" || recs[0].EstimatedPrice != 7940 {
		t.Fatalf("unexpected recommendations %+v", recs)
	}
	if len(recs[1].Tags) != 2 || recs[1].Tags[1] != "recommended" {
		t.Fatalf("unexpected tags %v", recs[1].Tags)
	}
}

func TestLogisticsHandlersEmptyListIsArray(t *testing.T) {
	rr := doOrderRequest(newLogisticsRouter(&stubOrderService{}), http.MethodGet, "/logistics", "", artisanIdentity)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if string(body["orders_awaiting_shipment"]) != "[]" {
		t.Fatalf("expected empty array, got %s", body["orders_awaiting_shipment"])
	}
}

func TestLogisticsHandlersRejectsNonArtisans(t *testing.T) {
	router := newLogisticsRouter(&stubOrderService{})
	if rr := doOrderRequest(router, http.MethodGet, "/logistics", "", buyerIdentity); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for buyer, got %d", rr.Code)
	}
	if rr := doOrderRequest(router, http.MethodGet, "/logistics", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rr.Code)
	}
}

func TestLogisticsHandlersServiceError(t *testing.T) {
	service := &stubOrderService{
		awaitingFn: func(context.Context, string) ([]services.ShipmentCandidate, error) {
			return nil, errors.New("firestore down")
		},
	}
	rr := doOrderRequest(newLogisticsRouter(service), http.MethodGet, "/logistics", "", artisanIdentity)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}
