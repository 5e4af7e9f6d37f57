package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/avenlake/hazardwatch/internal/models"
)

// WeatherAdapter pulls active alerts from an NWS-style alert API. When
// no endpoint is configured it degrades to a single deterministic
// fallback alert instead of failing, so downstream consumers always
// have a representative record to work with.
type WeatherAdapter struct {
	baseURL    string
	defaultLoc models.Coordinates
	httpClient *http.Client
	clock      clockwork.Clock
}

func NewWeatherAdapter(baseURL string, defaultLoc models.Coordinates, timeout time.Duration, clock clockwork.Clock) *WeatherAdapter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &WeatherAdapter{
		baseURL:    baseURL,
		defaultLoc: defaultLoc,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		clock: clock,
	}
}

func (a *WeatherAdapter) Source() models.Source {
	return models.SourceWeather
}

func (a *WeatherAdapter) Fetch(ctx context.Context, loc *models.Coordinates) ([]models.Alert, error) {
	point := a.defaultLoc
	if loc != nil {
		point = *loc
	}
	return a.FetchAlerts(ctx, point.Latitude, point.Longitude)
}

type weatherResponse struct {
	Features []weatherFeature `json:"features"`
}

type weatherFeature struct {
	ID         string            `json:"id"`
	Properties weatherProperties `json:"properties"`
}

type weatherProperties struct {
	Event       string `json:"event"`
	Headline    string `json:"headline"`
	Description string `json:"description"`
	Severity    string `json:"severity"` // provider tag: Extreme/Severe/Moderate/Minor
	AreaDesc    string `json:"areaDesc"`
	Effective   string `json:"effective"`
	Expires     string `json:"expires"`
}

// FetchAlerts returns active weather alerts covering the given point.
func (a *WeatherAdapter) FetchAlerts(ctx context.Context, lat, lon float64) ([]models.Alert, error) {
	if a.baseURL == "" {
		slog.Warn("weather adapter not configured, serving fallback alert")
		return []models.Alert{fallbackWeatherAlert(lat, lon, a.clock.Now())}, nil
	}

	url := fmt.Sprintf("%s/alerts/active?point=%.4f,%.4f", a.baseURL, lat, lon)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	var data weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("error decoding resp.Body: %w", err)
	}

	alerts := make([]models.Alert, 0, len(data.Features))
	for _, f := range data.Features {
		p := f.Properties

		alert := models.Alert{
			ID:          "weather_" + f.ID,
			Source:      models.SourceWeather,
			Severity:    weatherSeverity(p.Event, p.Severity),
			Title:       firstNonEmpty(p.Headline, p.Event),
			Description: p.Description,
			WeatherType: weatherTypeFor(p.Event),
			Coordinates: &models.Coordinates{Latitude: lat, Longitude: lon},
		}
		if p.AreaDesc != "" {
			for _, area := range strings.Split(p.AreaDesc, ";") {
				alert.AffectedAreas = append(alert.AffectedAreas, strings.TrimSpace(area))
			}
		}
		if t, err := time.Parse(time.RFC3339, p.Effective); err == nil {
			alert.Timestamp = t
		} else {
			slog.Warn("weather timestamp parsing failed", "id", f.ID, "error", err.Error())
			alert.Timestamp = a.clock.Now()
		}
		if t, err := time.Parse(time.RFC3339, p.Expires); err == nil {
			alert.ExpiresAt = &t
		}
		alerts = append(alerts, alert)
	}

	return alerts, nil
}

// weatherSeverity maps a provider event name plus severity tag onto the
// shared scale. Checked top to bottom, first match wins.
func weatherSeverity(event, tag string) models.Severity {
	e := strings.ToLower(event)
	switch {
	case strings.Contains(e, "tornado"), strings.Contains(e, "hurricane"), strings.Contains(e, "extreme"):
		return models.SeverityExtreme
	case strings.Contains(e, "severe"), strings.Contains(e, "warning"), tag == "Extreme":
		return models.SeveritySevere
	case strings.Contains(e, "flood"), strings.Contains(e, "storm"), tag == "Severe":
		return models.SeverityHigh
	case strings.Contains(e, "watch"), strings.Contains(e, "advisory"), tag == "Moderate":
		return models.SeverityModerate
	default:
		return models.SeverityLow
	}
}

var weatherTypeKeywords = []struct {
	keyword string
	wt      models.WeatherType
}{
	{"tornado", models.WeatherTornado},
	{"hurricane", models.WeatherHurricane},
	{"flood", models.WeatherFlood},
	{"snow", models.WeatherSnow},
	{"blizzard", models.WeatherSnow},
	{"heat", models.WeatherHeat},
	{"cold", models.WeatherCold},
	{"freeze", models.WeatherCold},
	{"wind", models.WeatherWind},
	{"thunderstorm", models.WeatherThunderstorm},
}

func weatherTypeFor(event string) models.WeatherType {
	e := strings.ToLower(event)
	for _, entry := range weatherTypeKeywords {
		if strings.Contains(e, entry.keyword) {
			return entry.wt
		}
	}
	return models.WeatherOther
}

// fallbackWeatherAlert is the deterministic stand-in served when no
// upstream endpoint is configured. The id prefix marks it as synthetic
// in logs and the feed.
func fallbackWeatherAlert(lat, lon float64, now time.Time) models.Alert {
	temp := 38.0
	return models.Alert{
		ID:          "weather_fallback_heat",
		Source:      models.SourceWeather,
		Severity:    models.SeverityModerate,
		Title:       "Heat Advisory (sample)",
		Description: "Sample advisory shown because no weather provider is configured. High temperatures expected through the afternoon.",
		Timestamp:   now.Truncate(time.Hour),
		WeatherType: models.WeatherHeat,
		Temperature: &temp,
		Coordinates: &models.Coordinates{Latitude: lat, Longitude: lon},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
