package services

import (
	"context"
	"errors"
	"math"
	"time"

	domain "github.com/kalaghar/api/internal/domain"
	"github.com/kalaghar/api/internal/platform/maps"
	"github.com/kalaghar/api/internal/platform/observability"
)

const (
	defaultDistanceTimeout = 5 * time.Second
	unitWeightKg           = 0.5
)

// Degradation reasons carried on LogisticsEstimate.
const (
	DegradedMissingCoordinates = "missing_coordinates"
	DegradedProviderError      = "provider_error"
	DegradedProviderTimeout    = "provider_timeout"
	DegradedNoRoute            = "no_route"
	DegradedNoProvider         = "no_provider"
)

// LogisticsEstimate is the best-effort distance profile between two points. A degraded
// estimate is zero distance and zero duration.
type LogisticsEstimate struct {
	DistanceKm    int
	DurationHours int
	Degraded      bool
	Reason        string
}

// LogisticsEstimatorDeps bundles collaborators for the estimator.
type LogisticsEstimatorDeps struct {
	Provider DistanceProvider
	Timeout  time.Duration
	Metrics  *observability.OrderMetrics
	Logger   func(context.Context, string, map[string]any)
}

// LogisticsEstimator wraps a DistanceProvider with a deadline and a zero-distance
// fallback. Estimate never returns an error.
type LogisticsEstimator struct {
	provider DistanceProvider
	timeout  time.Duration
	metrics  *observability.OrderMetrics
	logger   func(context.Context, string, map[string]any)
}

// NewLogisticsEstimator builds an estimator. A nil provider yields permanently degraded
// estimates.
func NewLogisticsEstimator(deps LogisticsEstimatorDeps) *LogisticsEstimator {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultDistanceTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &LogisticsEstimator{
		provider: deps.Provider,
		timeout:  timeout,
		metrics:  deps.Metrics,
		logger:   logger,
	}
}

// Estimate resolves distance and duration between origin and destination.
func (e *LogisticsEstimator) Estimate(ctx context.Context, origin, destination *domain.Coordinates) LogisticsEstimate {
	if !origin.Valid() || !destination.Valid() {
		return e.degrade(ctx, DegradedMissingCoordinates, nil, 0)
	}
	if e.provider == nil {
		return e.degrade(ctx, DegradedNoProvider, nil, 0)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	route, err := e.provider.Route(lookupCtx, *origin, *destination)
	elapsed := time.Since(start)
	if err != nil {
		reason := DegradedProviderError
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(lookupCtx.Err(), context.DeadlineExceeded):
			reason = DegradedProviderTimeout
		case errors.Is(err, maps.ErrNoRoute):
			reason = DegradedNoRoute
		}
		return e.degrade(ctx, reason, err, elapsed)
	}

	e.metrics.DistanceLookup(ctx, elapsed, false, "")
	return LogisticsEstimate{
		DistanceKm:    int(math.Round(float64(route.Meters) / 1000)),
		DurationHours: int(math.Round(route.Duration.Hours())),
	}
}

func (e *LogisticsEstimator) degrade(ctx context.Context, reason string, cause error, elapsed time.Duration) LogisticsEstimate {
	fields := map[string]any{"reason": reason}
	if e.provider != nil {
		fields["provider"] = e.provider.Name()
	}
	if cause != nil {
		fields["error"] = cause.Error()
	}
	e.logger(ctx, "logistics.degraded", fields)
	e.metrics.DistanceLookup(ctx, elapsed, true, reason)
	return LogisticsEstimate{Degraded: true, Reason: reason}
}

// PackageWeight applies the fixed per-unit weight heuristic.
func PackageWeight(items []domain.OrderLineItem) float64 {
	units := 0
	for _, item := range items {
		if item.Quantity > 0 {
			units += item.Quantity
		}
	}
	return float64(units) * unitWeightKg
}
