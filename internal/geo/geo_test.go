package geo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abdoElHodaky/smartfixapi/internal/geo"
)

func TestDistanceKm_SamePoint(t *testing.T) {
	p := geo.Point{Longitude: 37.6173, Latitude: 55.7558}
	assert.Equal(t, 0.0, geo.DistanceKm(p, p))
}

func TestDistanceKm_Symmetry(t *testing.T) {
	a := geo.Point{Longitude: 37.6173, Latitude: 55.7558}
	b := geo.Point{Longitude: 30.3351, Latitude: 59.9343}

	assert.Equal(t, geo.DistanceKm(a, b), geo.DistanceKm(b, a))
}

func TestDistanceKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name     string
		a, b     geo.Point
		expected float64
	}{
		{
			// Один градус широты ≈ 111.19 км.
			name:     "one degree latitude",
			a:        geo.Point{Longitude: 0, Latitude: 0},
			b:        geo.Point{Longitude: 0, Latitude: 1},
			expected: 111.19,
		},
		{
			name:     "moscow to saint petersburg",
			a:        geo.Point{Longitude: 37.6173, Latitude: 55.7558},
			b:        geo.Point{Longitude: 30.3351, Latitude: 59.9343},
			expected: 633.0,
		},
		{
			// Антиподы: половина длины большого круга.
			name:     "antipodal points",
			a:        geo.Point{Longitude: 0, Latitude: 0},
			b:        geo.Point{Longitude: 180, Latitude: 0},
			expected: 6371 * math.Pi,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := geo.DistanceKm(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, tt.expected*0.01)
		})
	}
}
