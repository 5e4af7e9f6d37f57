package models

import (
	"strings"
	"time"
)

// Source identifies which upstream feed an alert was normalized from.
type Source string

const (
	SourceSeismic        Source = "SEISMIC"
	SourceWeather        Source = "WEATHER"
	SourceAdministrative Source = "ADMINISTRATIVE"
)

// Severity is the normalized impact scale shared by every source.
// Adapters map their native vocabulary onto it; comparison goes
// through Rank so the ordering is total.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityLow      Severity = "LOW"
	SeverityModerate Severity = "MODERATE"
	SeverityHigh     Severity = "HIGH"
	SeveritySevere   Severity = "SEVERE"
	SeverityExtreme  Severity = "EXTREME"
)

var severityRanks = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityModerate: 2,
	SeverityHigh:     3,
	SeveritySevere:   4,
	SeverityExtreme:  5,
}

// Rank returns the position of s on the ordered scale, INFO lowest.
// Unknown severities rank below INFO.
func (s Severity) Rank() int {
	if r, ok := severityRanks[s]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether s is at least as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// ParseSeverity maps a stored/query string onto the severity scale.
// Unrecognized input falls back to INFO.
func ParseSeverity(s string) Severity {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := severityRanks[sev]; ok {
		return sev
	}
	return SeverityInfo
}

// WeatherType classifies weather alerts by hazard kind.
type WeatherType string

const (
	WeatherTornado      WeatherType = "tornado"
	WeatherHurricane    WeatherType = "hurricane"
	WeatherFlood        WeatherType = "flood"
	WeatherSnow         WeatherType = "snow"
	WeatherHeat         WeatherType = "heat"
	WeatherCold         WeatherType = "cold"
	WeatherWind         WeatherType = "wind"
	WeatherThunderstorm WeatherType = "thunderstorm"
	WeatherOther        WeatherType = "other"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Alert is the normalized hazard record. Common fields are always set;
// the per-source sections are populated only for the matching Source.
// IDs are namespaced by the producing adapter ("seismic_", "weather_",
// "admin_") so a merge never collides across sources.
type Alert struct {
	ID            string     `json:"id"`
	Source        Source     `json:"source"`
	Severity      Severity   `json:"severity"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Timestamp     time.Time  `json:"timestamp"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	AffectedAreas []string   `json:"affectedAreas"`
	IsRead        bool       `json:"isRead"`

	// Seismic fields.
	Magnitude    float64      `json:"magnitude,omitempty"`
	DepthKm      float64      `json:"depthKm,omitempty"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
	TsunamiFlag  bool         `json:"tsunamiFlag,omitempty"`
	FeltReports  *int         `json:"feltReports,omitempty"`
	Significance *int         `json:"significance,omitempty"`

	// Weather fields.
	WeatherType   WeatherType `json:"weatherType,omitempty"`
	Temperature   *float64    `json:"temperature,omitempty"`
	WindSpeed     *float64    `json:"windSpeed,omitempty"`
	Humidity      *float64    `json:"humidity,omitempty"`
	Precipitation *float64    `json:"precipitation,omitempty"`

	// Administrative fields.
	CreatedBy string   `json:"createdBy,omitempty"`
	Priority  string   `json:"priority,omitempty"`
	Zones     []string `json:"zones,omitempty"`
}

// Active reports whether the alert has not expired as of now.
func (a *Alert) Active(now time.Time) bool {
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}
