package api

import (
	"github.com/avenlake/hazardwatch/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// toGeoJSON renders the alerts that carry coordinates as a point
// collection for map display. Administrative alerts without a location
// are omitted.
func toGeoJSON(alerts []models.Alert) FeatureCollection {
	features := make([]Feature, 0, len(alerts))

	for i := range alerts {
		a := &alerts[i]
		if a.Coordinates == nil {
			continue
		}
		f := Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{a.Coordinates.Longitude, a.Coordinates.Latitude},
			},
			Properties: map[string]any{
				"id":          a.ID,
				"source":      a.Source,
				"severity":    a.Severity,
				"title":       a.Title,
				"description": a.Description,
				"timestamp":   a.Timestamp,
				"isRead":      a.IsRead,
			},
		}
		if a.Source == models.SourceSeismic {
			f.Properties["magnitude"] = a.Magnitude
		}
		features = append(features, f)
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
