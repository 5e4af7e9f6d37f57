package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avenlake/hazardwatch/internal/geo"
	"github.com/avenlake/hazardwatch/internal/models"
)

// SeismicAdapter pulls earthquake events from a USGS-style summary
// feed. The feed only publishes fixed minimum-magnitude buckets, so a
// caller threshold between buckets rounds down to the bucket below and
// the true threshold is applied client-side.
type SeismicAdapter struct {
	baseURL      string
	minMagnitude float64
	radiusKm     float64
	httpClient   *http.Client
}

func NewSeismicAdapter(baseURL string, minMagnitude, radiusKm float64, timeout time.Duration) *SeismicAdapter {
	return &SeismicAdapter{
		baseURL:      baseURL,
		minMagnitude: minMagnitude,
		radiusKm:     radiusKm,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (a *SeismicAdapter) Source() models.Source {
	return models.SourceSeismic
}

// Fetch returns recent events, scoped to loc when provided.
func (a *SeismicAdapter) Fetch(ctx context.Context, loc *models.Coordinates) ([]models.Alert, error) {
	if loc != nil {
		return a.FetchByLocation(ctx, loc.Latitude, loc.Longitude, a.radiusKm)
	}
	return a.FetchRecent(ctx, "day", a.minMagnitude)
}

// FetchRecent returns events in the given timeframe ("hour", "day",
// "week" or "month") at or above minMagnitude.
func (a *SeismicAdapter) FetchRecent(ctx context.Context, timeframe string, minMagnitude float64) ([]models.Alert, error) {
	alerts, err := a.query(ctx, timeframe, minMagnitude)
	if err != nil {
		return nil, err
	}

	filtered := alerts[:0]
	for _, alert := range alerts {
		if alert.Magnitude >= minMagnitude {
			filtered = append(filtered, alert)
		}
	}
	return filtered, nil
}

// FetchByLocation returns events within radiusKm of the given point.
// The query always spans a full week: slow-propagating events stay
// relevant near a tracked location longer than the default window, at
// the cost of returning older entries.
func (a *SeismicAdapter) FetchByLocation(ctx context.Context, lat, lon, radiusKm float64) ([]models.Alert, error) {
	alerts, err := a.query(ctx, "week", a.minMagnitude)
	if err != nil {
		return nil, err
	}

	nearby := alerts[:0]
	for _, alert := range alerts {
		if alert.Coordinates == nil {
			continue
		}
		d := geo.DistanceKm(lat, lon, alert.Coordinates.Latitude, alert.Coordinates.Longitude)
		if d <= radiusKm && alert.Magnitude >= a.minMagnitude {
			nearby = append(nearby, alert)
		}
	}
	return nearby, nil
}

type seismicResponse struct {
	Features []seismicFeature `json:"features"`
}

type seismicFeature struct {
	ID         string            `json:"id"`
	Properties seismicProperties `json:"properties"`
	Geometry   seismicGeometry   `json:"geometry"`
}

type seismicProperties struct {
	Mag     float64 `json:"mag"`
	Place   string  `json:"place"`
	Time    int64   `json:"time"` // unix millis
	Title   string  `json:"title"`
	Tsunami int     `json:"tsunami"` // 0 or 1
	Felt    *int    `json:"felt"`
	Sig     *int    `json:"sig"`
}

type seismicGeometry struct {
	Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
}

func (a *SeismicAdapter) query(ctx context.Context, timeframe string, minMagnitude float64) ([]models.Alert, error) {
	url := fmt.Sprintf("%s/%s_%s.geojson", a.baseURL, magnitudeBucket(minMagnitude), timeframe)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data seismicResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	alerts := make([]models.Alert, 0, len(data.Features))
	for _, f := range data.Features {
		alert := models.Alert{
			ID:            "seismic_" + f.ID,
			Source:        models.SourceSeismic,
			Severity:      severityFromMagnitude(f.Properties.Mag),
			Title:         f.Properties.Title,
			Timestamp:     time.UnixMilli(f.Properties.Time),
			AffectedAreas: []string{f.Properties.Place},
			Magnitude:     f.Properties.Mag,
			TsunamiFlag:   f.Properties.Tsunami == 1,
			FeltReports:   f.Properties.Felt,
			Significance:  f.Properties.Sig,
		}
		if len(f.Geometry.Coordinates) >= 3 {
			alert.Coordinates = &models.Coordinates{
				Latitude:  f.Geometry.Coordinates[1],
				Longitude: f.Geometry.Coordinates[0],
			}
			alert.DepthKm = f.Geometry.Coordinates[2]
		}
		alert.Description = seismicDescription(&alert)
		alerts = append(alerts, alert)
	}

	return alerts, nil
}

// magnitudeBucket rounds a threshold down to the nearest feed bucket.
func magnitudeBucket(minMagnitude float64) string {
	switch {
	case minMagnitude >= 4.5:
		return "4.5"
	case minMagnitude >= 2.5:
		return "2.5"
	case minMagnitude >= 1.0:
		return "1.0"
	default:
		return "all"
	}
}

func severityFromMagnitude(mag float64) models.Severity {
	switch {
	case mag >= 8.0:
		return models.SeverityExtreme
	case mag >= 7.0:
		return models.SeveritySevere
	case mag >= 6.0:
		return models.SeverityHigh
	case mag >= 5.0:
		return models.SeverityModerate
	case mag >= 4.0:
		return models.SeverityLow
	default:
		return models.SeverityInfo
	}
}

// seismicDescription builds the human-readable summary shown in the
// feed. Deterministic for a given event.
func seismicDescription(a *models.Alert) string {
	desc := fmt.Sprintf("Magnitude %.1f earthquake at %.1f km depth", a.Magnitude, a.DepthKm)
	if a.FeltReports != nil && *a.FeltReports > 0 {
		desc += fmt.Sprintf(", felt by %d people", *a.FeltReports)
	}
	desc += "."
	if a.TsunamiFlag {
		desc += " Tsunami warning in effect."
	}
	return desc
}
