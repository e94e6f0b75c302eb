// Package maps resolves road distance and travel time between two coordinates.
package maps

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	gmaps "googlemaps.github.io/maps"

	domain "github.com/kalaghar/api/internal/domain"
)

// ErrNoRoute is returned when the provider answered but found no route.
var ErrNoRoute = errors.New("maps: no route between origin and destination")

// Route is the provider answer for one origin/destination pair.
type Route struct {
	Meters   int
	Duration time.Duration
}

type distanceMatrixClient interface {
	DistanceMatrix(ctx context.Context, r *gmaps.DistanceMatrixRequest) (*gmaps.DistanceMatrixResponse, error)
}

// GoogleDistanceProvider queries the Distance Matrix API for driving routes.
type GoogleDistanceProvider struct {
	client distanceMatrixClient
}

// NewGoogleDistanceProvider builds a provider authenticated with apiKey.
func NewGoogleDistanceProvider(apiKey string, opts ...gmaps.ClientOption) (*GoogleDistanceProvider, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("maps: api key is required")
	}
	client, err := gmaps.NewClient(append([]gmaps.ClientOption{gmaps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("maps: create client: %w", err)
	}
	return &GoogleDistanceProvider{client: client}, nil
}

// Name identifies the provider in logs.
func (p *GoogleDistanceProvider) Name() string { return "google_distance_matrix" }

// Route returns the first element of a 1x1 distance matrix. Any element status other
// than OK is reported as ErrNoRoute.
func (p *GoogleDistanceProvider) Route(ctx context.Context, origin, destination domain.Coordinates) (Route, error) {
	if p == nil || p.client == nil {
		return Route{}, errors.New("maps: provider not initialised")
	}
	resp, err := p.client.DistanceMatrix(ctx, &gmaps.DistanceMatrixRequest{
		Origins:      []string{latLng(origin)},
		Destinations: []string{latLng(destination)},
		Mode:         gmaps.TravelModeDriving,
		Units:        gmaps.UnitsMetric,
	})
	if err != nil {
		return Route{}, fmt.Errorf("maps: distance matrix: %w", err)
	}
	if resp == nil || len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return Route{}, ErrNoRoute
	}
	element := resp.Rows[0].Elements[0]
	if element == nil || element.Status != "OK" {
		status := "missing"
		if element != nil {
			status = element.Status
		}
		return Route{}, fmt.Errorf("%w (status %s)", ErrNoRoute, status)
	}
	return Route{Meters: element.Distance.Meters, Duration: element.Duration}, nil
}

func latLng(c domain.Coordinates) string {
	return strconv.FormatFloat(c.Latitude, 'f', 6, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', 6, 64)
}

const (
	earthRadiusKm        = 6371.0088
	defaultAverageSpeedK = 50.0
)

// StaticDistanceProvider estimates routes from great-circle distance at a fixed
// average speed. It needs no network access and is used when no API key is configured.
type StaticDistanceProvider struct {
	SpeedKmPerHour float64
}

// NewStaticDistanceProvider uses a 50 km/h average speed.
func NewStaticDistanceProvider() *StaticDistanceProvider {
	return &StaticDistanceProvider{SpeedKmPerHour: defaultAverageSpeedK}
}

// Name identifies the provider in logs.
func (p *StaticDistanceProvider) Name() string { return "static_haversine" }

// Route implements the distance lookup without I/O.
func (p *StaticDistanceProvider) Route(ctx context.Context, origin, destination domain.Coordinates) (Route, error) {
	if err := ctx.Err(); err != nil {
		return Route{}, err
	}
	speed := defaultAverageSpeedK
	if p != nil && p.SpeedKmPerHour > 0 {
		speed = p.SpeedKmPerHour
	}
	km := Haversine(origin, destination)
	hours := km / speed
	return Route{
		Meters:   int(math.Round(km * 1000)),
		Duration: time.Duration(hours * float64(time.Hour)),
	}, nil
}

// Haversine returns the great-circle distance in kilometres.
func Haversine(a, b domain.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
