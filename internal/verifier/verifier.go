// Package verifier periodically re-evaluates the safety status of
// tracked persons against the aggregated alert feed.
package verifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/avenlake/hazardwatch/internal/config"
	"github.com/avenlake/hazardwatch/internal/geocode"
	"github.com/avenlake/hazardwatch/internal/models"
	"github.com/avenlake/hazardwatch/internal/observability"
	"github.com/avenlake/hazardwatch/internal/repository"
	"github.com/avenlake/hazardwatch/internal/worker"
)

// AlertFetcher is the slice of the aggregator the verifier needs.
type AlertFetcher interface {
	FetchAll(ctx context.Context, loc *models.Coordinates, sources []models.Source) ([]models.Alert, error)
}

// Verifier evaluates tracked persons against alerts local to their
// last-known location and emits status transitions. Writes are
// diff-gated: nothing is persisted while an entity's computed state
// matches what is already stored, so write volume tracks actual risk
// changes rather than polling frequency.
type Verifier struct {
	fetcher  AlertFetcher
	geocoder geocode.Geocoder
	entities repository.EntityStore
	pool     *worker.Pool
	risk     config.RiskConfig
	clock    clockwork.Clock
	metrics  *observability.Metrics
}

func New(fetcher AlertFetcher, geocoder geocode.Geocoder, entities repository.EntityStore, pool *worker.Pool, risk config.RiskConfig, clock clockwork.Clock, metrics *observability.Metrics) *Verifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Verifier{
		fetcher:  fetcher,
		geocoder: geocoder,
		entities: entities,
		pool:     pool,
		risk:     risk,
		clock:    clock,
		metrics:  metrics,
	}
}

// VerifyAll checks every entity with a known location and returns the
// updates for those whose status or reason changed. Entities without a
// location are skipped. Per-entity failures are logged and do not abort
// the remaining entities. Entities fan out across the worker pool; each
// entity's own geocode-fetch-evaluate sequence runs in order.
func (v *Verifier) VerifyAll(ctx context.Context, entities []models.TrackedEntity) []models.StatusUpdate {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		updates []models.StatusUpdate
	)

	for i := range entities {
		entity := entities[i]
		if entity.Location == "" {
			continue
		}

		wg.Add(1)
		v.pool.Submit(func(_ context.Context) {
			defer wg.Done()

			update, changed := v.verifyOne(ctx, &entity)
			if !changed {
				return
			}

			mu.Lock()
			updates = append(updates, update)
			mu.Unlock()
		})
	}
	wg.Wait()

	if v.metrics != nil {
		v.metrics.VerifyCycles.Inc()
	}

	return updates
}

func (v *Verifier) verifyOne(ctx context.Context, entity *models.TrackedEntity) (models.StatusUpdate, bool) {
	coords, err := v.geocoder.Geocode(ctx, entity.Location)
	if err != nil {
		slog.Warn("geocode failed, skipping entity this cycle",
			"entity", entity.ID, "location", entity.Location, "error", err)
		if v.metrics != nil {
			v.metrics.GeocodeFailures.Inc()
		}
		return models.StatusUpdate{}, false
	}

	alerts, err := v.fetcher.FetchAll(ctx, &coords, nil)
	if err != nil {
		slog.Warn("alert fetch failed, skipping entity this cycle",
			"entity", entity.ID, "error", err)
		return models.StatusUpdate{}, false
	}

	newStatus, newReason := v.evaluate(alerts)

	// Diff gate: only a real transition produces a write.
	if newStatus == entity.Status && newReason == entity.StatusReason {
		return models.StatusUpdate{}, false
	}

	if err := v.entities.SaveStatus(ctx, entity.ID, newStatus, newReason, v.clock.Now()); err != nil {
		slog.Error("failed to persist status", "entity", entity.ID, "error", err)
	}
	if v.metrics != nil {
		v.metrics.StatusChanges.Inc()
	}

	slog.Info("status transition",
		"entity", entity.ID, "from", entity.Status, "to", newStatus, "reason", newReason)

	return models.StatusUpdate{
		EntityID:  entity.ID,
		OldStatus: entity.Status,
		NewStatus: newStatus,
		Reason:    newReason,
	}, true
}

// evaluate applies the risk predicates to alerts local to the entity.
func (v *Verifier) evaluate(alerts []models.Alert) (models.Status, string) {
	earthquakeRisk := false
	weatherRisk := false

	for i := range alerts {
		alert := &alerts[i]
		switch alert.Source {
		case models.SourceSeismic:
			if alert.Magnitude > v.risk.QuakeMagnitude {
				earthquakeRisk = true
			}
		case models.SourceWeather:
			for _, sev := range v.risk.WeatherSeverities {
				if alert.Severity == sev {
					weatherRisk = true
					break
				}
			}
		}
	}

	switch {
	case earthquakeRisk && weatherRisk:
		return models.StatusAtRisk, "EARTHQUAKE & WEATHER ALERT"
	case earthquakeRisk:
		return models.StatusAtRisk, "EARTHQUAKE ALERT"
	case weatherRisk:
		return models.StatusAtRisk, "WEATHER ALERT"
	default:
		return models.StatusSafe, ""
	}
}

// RunCycle loads entities from the store and verifies them. This is the
// entrypoint the periodic driver calls.
func (v *Verifier) RunCycle(ctx context.Context) ([]models.StatusUpdate, error) {
	entities, err := v.entities.ListEntities(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	updates := v.VerifyAll(ctx, entities)
	slog.Debug("verification cycle complete",
		"entities", len(entities), "updates", len(updates), "elapsed", time.Since(start))
	return updates, nil
}
