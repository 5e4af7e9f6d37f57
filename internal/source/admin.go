package source

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/avenlake/hazardwatch/internal/models"
	"github.com/avenlake/hazardwatch/internal/repository"
)

// AdminAdapter maps human-entered alerts from the store 1:1 into the
// normalized model. Severity is taken verbatim from the record; there
// is nothing to derive. Location scoping does not apply.
type AdminAdapter struct {
	store repository.AdminAlertStore
	clock clockwork.Clock
}

func NewAdminAdapter(store repository.AdminAlertStore, clock clockwork.Clock) *AdminAdapter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AdminAdapter{
		store: store,
		clock: clock,
	}
}

func (a *AdminAdapter) Source() models.Source {
	return models.SourceAdministrative
}

func (a *AdminAdapter) Fetch(ctx context.Context, _ *models.Coordinates) ([]models.Alert, error) {
	records, err := a.store.ListActive(ctx, a.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("error listing admin alerts: %w", err)
	}

	alerts := make([]models.Alert, 0, len(records))
	for _, rec := range records {
		alerts = append(alerts, models.Alert{
			ID:            "admin_" + rec.ID,
			Source:        models.SourceAdministrative,
			Severity:      rec.Severity,
			Title:         rec.Title,
			Description:   rec.Description,
			Timestamp:     rec.CreatedAt,
			ExpiresAt:     rec.ExpiresAt,
			AffectedAreas: rec.Zones,
			CreatedBy:     rec.CreatedBy,
			Priority:      rec.Priority,
			Zones:         rec.Zones,
		})
	}

	return alerts, nil
}
