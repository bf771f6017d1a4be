package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bus-tracker/model"
)

// GraphHopper queries the /route endpoint of the GraphHopper API.
type GraphHopper struct {
	baseURL string
	apiKey  string
	vehicle string
	locale  string
	client  *http.Client
}

type graphHopperResponse struct {
	Message string `json:"message"`
	Paths   []struct {
		Distance float64 `json:"distance"`
		Points   struct {
			Coordinates [][]float64 `json:"coordinates"` // [lng, lat]
		} `json:"points"`
	} `json:"paths"`
}

func NewGraphHopper(baseURL, apiKey string, timeout time.Duration) *GraphHopper {
	return &GraphHopper{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		vehicle: "car",
		locale:  "es",
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *GraphHopper) Name() string { return "graphhopper" }

func (g *GraphHopper) Route(ctx context.Context, waypoints []model.Point) ([]model.Point, error) {
	if len(waypoints) < 2 {
		return nil, ErrNoRoute
	}

	q := url.Values{}
	for _, p := range waypoints {
		q.Add("point", fmt.Sprintf("%f,%f", p.Lat, p.Lng))
	}
	q.Set("vehicle", g.vehicle)
	q.Set("locale", g.locale)
	q.Set("instructions", "false")
	q.Set("calc_points", "true")
	q.Set("points_encoded", "false")
	if g.apiKey != "" {
		q.Set("key", g.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/route?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphhopper request: %w", err)
	}
	defer resp.Body.Close()

	var data graphHopperResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("graphhopper decode (%s): %w", resp.Status, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graphhopper request failed: %s %s", resp.Status, data.Message)
	}
	if len(data.Paths) == 0 {
		return nil, ErrNoRoute
	}

	out := make([]model.Point, 0, len(data.Paths[0].Points.Coordinates))
	for _, c := range data.Paths[0].Points.Coordinates {
		if len(c) < 2 {
			return nil, fmt.Errorf("graphhopper: malformed coordinate %v", c)
		}
		out = append(out, model.Point{Lat: c[1], Lng: c[0]})
	}
	return out, nil
}
