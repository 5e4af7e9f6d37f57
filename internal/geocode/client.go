package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avenlake/hazardwatch/internal/models"
)

// Client implements Geocoder against a Nominatim-compatible endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type searchResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

type reverseResult struct {
	DisplayName string `json:"display_name"`
}

// Geocode resolves a free-text address to coordinates. Returns
// ErrNotFound when the provider has no match.
func (c *Client) Geocode(ctx context.Context, address string) (models.Coordinates, error) {
	params := url.Values{
		"q":      {address},
		"format": {"json"},
		"limit":  {"1"},
	}

	var results []searchResult
	if err := c.get(ctx, c.baseURL+"/search?"+params.Encode(), &results); err != nil {
		return models.Coordinates{}, err
	}
	if len(results) == 0 {
		return models.Coordinates{}, fmt.Errorf("%w: %q", ErrNotFound, address)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("error parsing latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("error parsing longitude %q: %w", results[0].Lon, err)
	}

	return models.Coordinates{Latitude: lat, Longitude: lon}, nil
}

// ReverseGeocode resolves coordinates back to a display address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	params := url.Values{
		"lat":    {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":    {strconv.FormatFloat(lon, 'f', 6, 64)},
		"format": {"json"},
	}

	var result reverseResult
	if err := c.get(ctx, c.baseURL+"/reverse?"+params.Encode(), &result); err != nil {
		return "", err
	}
	if result.DisplayName == "" {
		return "", fmt.Errorf("%w: %.6f,%.6f", ErrNotFound, lat, lon)
	}

	return result.DisplayName, nil
}

func (c *Client) get(ctx context.Context, fullURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", "hazardwatch/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding resp.Body: %w", err)
	}

	return nil
}
