package maps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmaps "googlemaps.github.io/maps"

	domain "github.com/kalaghar/api/internal/domain"
)

var (
	jaipur = domain.Coordinates{Latitude: 26.9124, Longitude: 75.7873}
	delhi  = domain.Coordinates{Latitude: 28.6139, Longitude: 77.2090}
)

type fakeMatrixClient struct {
	req  *gmaps.DistanceMatrixRequest
	resp *gmaps.DistanceMatrixResponse
	err  error
}

func (f *fakeMatrixClient) DistanceMatrix(_ context.Context, r *gmaps.DistanceMatrixRequest) (*gmaps.DistanceMatrixResponse, error) {
	f.req = r
	return f.resp, f.err
}

func matrix(status string, meters int, duration time.Duration) *gmaps.DistanceMatrixResponse {
	return &gmaps.DistanceMatrixResponse{
		Rows: []gmaps.DistanceMatrixElementsRow{{
			Elements: []*gmaps.DistanceMatrixElement{{
				Status:   status,
				Distance: gmaps.Distance{Meters: meters},
				Duration: duration,
			}},
		}},
	}
}

func TestGoogleDistanceProviderReturnsFirstElement(t *testing.T) {
	client := &fakeMatrixClient{resp: matrix("OK", 281400, 5*time.Hour+10*time.Minute)}
	provider := &GoogleDistanceProvider{client: client}

	route, err := provider.Route(context.Background(), jaipur, delhi)
	require.NoError(t, err)
	assert.Equal(t, 281400, route.Meters)
	assert.Equal(t, 5*time.Hour+10*time.Minute, route.Duration)
	assert.Equal(t, []string{"26.912400,75.787300"}, client.req.Origins)
	assert.Equal(t, []string{"28.613900,77.209000"}, client.req.Destinations)
	assert.Equal(t, gmaps.TravelModeDriving, client.req.Mode)
}

func TestGoogleDistanceProviderNonOKStatus(t *testing.T) {
	provider := &GoogleDistanceProvider{client: &fakeMatrixClient{resp: matrix("ZERO_RESULTS", 0, 0)}}
	_, err := provider.Route(context.Background(), jaipur, delhi)
	require.ErrorIs(t, err, ErrNoRoute)
}

func TestGoogleDistanceProviderEmptyMatrix(t *testing.T) {
	provider := &GoogleDistanceProvider{client: &fakeMatrixClient{resp: &gmaps.DistanceMatrixResponse{}}}
	_, err := provider.Route(context.Background(), jaipur, delhi)
	require.ErrorIs(t, err, ErrNoRoute)
}

func TestGoogleDistanceProviderTransportError(t *testing.T) {
	boom := errors.New("dial tcp: timeout")
	provider := &GoogleDistanceProvider{client: &fakeMatrixClient{err: boom}}
	_, err := provider.Route(context.Background(), jaipur, delhi)
	require.ErrorIs(t, err, boom)
}

func TestNewGoogleDistanceProviderRequiresKey(t *testing.T) {
	_, err := NewGoogleDistanceProvider("  ")
	require.Error(t, err)
}

func TestStaticDistanceProvider(t *testing.T) {
	route, err := NewStaticDistanceProvider().Route(context.Background(), jaipur, delhi)
	require.NoError(t, err)
	assert.InDelta(t, 235290, route.Meters, 500)
	assert.InDelta(t, (235.29/50)*float64(time.Hour), float64(route.Duration), float64(time.Minute))
}

func TestStaticDistanceProviderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStaticDistanceProvider().Route(ctx, jaipur, delhi)
	require.ErrorIs(t, err, context.Canceled)
}

func TestHaversineSamePoint(t *testing.T) {
	assert.Zero(t, Haversine(delhi, delhi))
}
