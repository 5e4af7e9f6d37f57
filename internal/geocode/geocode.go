// Package geocode resolves free-text addresses to coordinates for the
// safety verifier. The production client speaks a Nominatim-compatible
// search API; a caching decorator keeps repeat lookups off the network.
package geocode

import (
	"context"
	"errors"

	"github.com/avenlake/hazardwatch/internal/models"
)

// ErrNotFound is returned when the provider has no match for the query.
var ErrNotFound = errors.New("geocode: no match")

// Geocoder resolves between free-text addresses and coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Coordinates, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}
