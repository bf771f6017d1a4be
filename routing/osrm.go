package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/twpayne/go-polyline"

	"bus-tracker/model"
)

// OSRM queries the /route/v1 service of an OSRM server.
type OSRM struct {
	baseURL string
	profile string
	client  *http.Client
}

// osrmResponse is the subset of the OSRM route reply we read.
type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry string  `json:"geometry"`
		Distance float64 `json:"distance"`
	} `json:"routes"`
}

func NewOSRM(baseURL string, timeout time.Duration) *OSRM {
	return &OSRM{
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: "driving",
		client:  &http.Client{Timeout: timeout},
	}
}

func (o *OSRM) Name() string { return "osrm" }

func (o *OSRM) Route(ctx context.Context, waypoints []model.Point) ([]model.Point, error) {
	if len(waypoints) < 2 {
		return nil, ErrNoRoute
	}

	coords := make([]string, len(waypoints))
	for i, p := range waypoints {
		coords[i] = fmt.Sprintf("%f,%f", p.Lng, p.Lat)
	}
	url := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=polyline",
		o.baseURL, o.profile, strings.Join(coords, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("osrm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("osrm request failed: %s", resp.Status)
	}

	var data osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("osrm decode: %w", err)
	}
	if data.Code != "Ok" || len(data.Routes) == 0 {
		return nil, fmt.Errorf("%w: osrm code %q %s", ErrNoRoute, data.Code, data.Message)
	}

	decoded, _, err := polyline.DecodeCoords([]byte(data.Routes[0].Geometry))
	if err != nil {
		return nil, fmt.Errorf("osrm geometry: %w", err)
	}
	out := make([]model.Point, 0, len(decoded))
	for _, c := range decoded {
		out = append(out, model.Point{Lat: c[0], Lng: c[1]})
	}
	return out, nil
}
