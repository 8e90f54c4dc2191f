package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/monngon/feed-service/internal/pkg/log"
)

const DefaultEndpoint = "https://nominatim.openstreetmap.org/reverse"

// GeoService resolves coordinates to a short place name through a
// Nominatim-compatible reverse geocoder. Lookup failure is expected and
// degrades to a formatted coordinate string; callers always get a usable
// location label.
type GeoService struct {
	endpoint string
	client   *http.Client
}

func CreateGeoService(endpoint string, timeout time.Duration) *GeoService {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &GeoService{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Road          string `json:"road"`
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
	} `json:"address"`
}

// ResolveLocation returns a short human name for the coordinates, or the
// coordinate fallback when the lookup fails in any way.
func (s *GeoService) ResolveLocation(ctx context.Context, latitude float64, longitude float64) string {
	name, err := s.reverse(ctx, latitude, longitude)
	if err != nil {
		log.Error("reverse geocoding failed, falling back to coordinates", err.Error())
		return FormatCoordinates(latitude, longitude)
	}
	return name
}

func (s *GeoService) reverse(ctx context.Context, latitude float64, longitude float64) (string, error) {
	query := url.Values{}
	query.Set("lat", fmt.Sprintf("%v", latitude))
	query.Set("lon", fmt.Sprintf("%v", longitude))
	query.Set("format", "json")
	query.Set("accept-language", "vi")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("unable to build reverse geocoding request: %v", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("unable to call reverse geocoder: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocoder returned status %v", resp.StatusCode)
	}
	var geo reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&geo); err != nil {
		return "", fmt.Errorf("unable to decode reverse geocoding response: %v", err)
	}
	if geo.DisplayName == "" {
		return "", fmt.Errorf("reverse geocoder returned no result")
	}

	parts := make([]string, 0, 3)
	if geo.Address.Road != "" {
		parts = append(parts, geo.Address.Road)
	}
	if geo.Address.Suburb != "" {
		parts = append(parts, geo.Address.Suburb)
	} else if geo.Address.Neighbourhood != "" {
		parts = append(parts, geo.Address.Neighbourhood)
	}
	if geo.Address.City != "" {
		parts = append(parts, geo.Address.City)
	} else if geo.Address.Town != "" {
		parts = append(parts, geo.Address.Town)
	} else if geo.Address.Village != "" {
		parts = append(parts, geo.Address.Village)
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", "), nil
	}
	segments := strings.SplitN(geo.DisplayName, ",", 4)
	if len(segments) > 3 {
		segments = segments[:3]
	}
	return strings.TrimSpace(strings.Join(segments, ",")), nil
}

// FormatCoordinates is the load-bearing fallback label.
func FormatCoordinates(latitude float64, longitude float64) string {
	return fmt.Sprintf("%.4f, %.4f", latitude, longitude)
}
