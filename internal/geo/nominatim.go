package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultNominatimURL is the public OpenStreetMap Nominatim endpoint.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// Nominatim resolves coordinates to display addresses. Identical concurrent
// lookups share one upstream request.
type Nominatim struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client

	group singleflight.Group
}

// NewNominatim creates a client for the given base URL.
func NewNominatim(baseURL, userAgent string) *Nominatim {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	return &Nominatim{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// ReverseGeocode returns the address closest to lat/lon in the given language.
// The shared upstream request outlives any single caller; each caller stops
// waiting when its own ctx is done.
func (n *Nominatim) ReverseGeocode(ctx context.Context, lat, lon float64, language string) (string, error) {
	key := fmt.Sprintf("%.5f,%.5f,%s", lat, lon, language)
	shared := context.WithoutCancel(ctx)
	ch := n.group.DoChan(key, func() (any, error) {
		return n.reverse(shared, lat, lon, language)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("geocode request: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (n *Nominatim) reverse(ctx context.Context, lat, lon float64, language string) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	if language != "" {
		q.Set("accept-language", language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.BaseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("building geocode request: %w", err)
	}
	if n.UserAgent != "" {
		req.Header.Set("User-Agent", n.UserAgent)
	}

	resp, err := n.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("geocode status %d", resp.StatusCode)
	}

	var parsed reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding geocode response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("geocode: %s", parsed.Error)
	}
	return parsed.DisplayName, nil
}
