// Package source holds one adapter per upstream hazard feed. Each
// adapter fetches raw provider records and maps them into the
// normalized alert model, namespacing ids by source so merged lists
// never collide.
package source

import (
	"context"

	"github.com/avenlake/hazardwatch/internal/models"
)

// Adapter translates one upstream provider into normalized alerts.
// When loc is non-nil the fetch is scoped to that point; adapters that
// have no notion of location ignore it. Errors surface to the caller so
// the aggregator can degrade to partial results.
type Adapter interface {
	Source() models.Source
	Fetch(ctx context.Context, loc *models.Coordinates) ([]models.Alert, error)
}
