package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalaghar/api/internal/platform/requestctx"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-42")
	ctx = requestctx.WithTrace(ctx, requestctx.TraceInfo{TraceID: "4bf92f3577b34da6a3ce929d0e0e4736"})

	rr := httptest.NewRecorder()
	WriteError(ctx, rr, NewError("order_not_found", "order not found", http.StatusNotFound).
		WithDetails(map[string]any{"order_id": "ord_1"}))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]any{
		"error":      "order_not_found",
		"message":    "order not found",
		"status":     float64(http.StatusNotFound),
		"request_id": "req-42",
		"trace_id":   "4bf92f3577b34da6a3ce929d0e0e4736",
		"order_id":   "ord_1",
	}
	for key, value := range want {
		if body[key] != value {
			t.Fatalf("expected %s=%v, got %v", key, value, body[key])
		}
	}
}

func TestWriteErrorOmitsMissingIDs(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(context.Background(), rr, NewError("internal", "boom\nsecond line", 0))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected zero status to become 500, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["request_id"]; ok {
		t.Fatalf("expected request_id to be omitted")
	}
	if body["message"] != "boom second line" {
		t.Fatalf("expected newlines flattened, got %q", body["message"])
	}
}
