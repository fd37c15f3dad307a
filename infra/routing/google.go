// Package routing provides route.Provider implementations.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kilianp07/darkstore/core/geo"
	"github.com/kilianp07/darkstore/core/route"
)

// DefaultGoogleURL is the Directions API endpoint.
const DefaultGoogleURL = "https://maps.googleapis.com/maps/api/directions/json"

// GoogleConfig configures the Directions API client.
type GoogleConfig struct {
	APIKey      string        `json:"api_key"`
	BaseURL     string        `json:"base_url"`
	MaxAttempts int           `json:"max_attempts"`
	Backoff     time.Duration `json:"backoff"`
}

// GoogleProvider queries the Google Directions API.
type GoogleProvider struct {
	cfg    GoogleConfig
	client *http.Client
}

// NewGoogleProvider creates a provider. client may be nil.
func NewGoogleProvider(cfg GoogleConfig, client *http.Client) (*GoogleProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("google routing: api_key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGoogleURL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &GoogleProvider{cfg: cfg, client: client}, nil
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Duration          *valueField `json:"duration"`
			DurationInTraffic *valueField `json:"duration_in_traffic"`
		} `json:"legs"`
	} `json:"routes"`
}

type valueField struct {
	Value int64 `json:"value"`
}

// Directions requests an optimised route whose destination is the last
// waypoint. Traffic estimates are requested with departure_time=now.
func (g *GoogleProvider) Directions(ctx context.Context, origin geo.Point, waypoints []geo.Point, traffic bool) (route.Directions, error) {
	if len(waypoints) == 0 {
		return route.Directions{}, errors.New("no waypoints")
	}
	q := url.Values{}
	q.Set("origin", latLng(origin))
	q.Set("destination", latLng(waypoints[len(waypoints)-1]))
	stops := make([]string, len(waypoints))
	for i, w := range waypoints {
		stops[i] = latLng(w)
	}
	q.Set("waypoints", "optimize:true|"+strings.Join(stops, "|"))
	q.Set("departure_time", "now")
	if traffic {
		q.Set("traffic_model", "best_guess")
	}
	q.Set("key", g.cfg.APIKey)
	endpoint := g.cfg.BaseURL + "?" + q.Encode()

	resp, err := g.doWithRetry(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return route.Directions{}, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return route.Directions{}, fmt.Errorf("decode directions response: %w", err)
	}
	if len(dr.Routes) == 0 {
		msg := dr.ErrorMessage
		if msg == "" {
			msg = "no routes"
		}
		return route.Directions{}, fmt.Errorf("directions %s: %s", dr.Status, msg)
	}
	r := dr.Routes[0]
	out := route.Directions{Polyline: r.OverviewPolyline.Points}
	for _, l := range r.Legs {
		var leg route.Leg
		if l.Duration != nil {
			leg.Duration = time.Duration(l.Duration.Value) * time.Second
		}
		if l.DurationInTraffic != nil {
			leg.DurationInTraffic = time.Duration(l.DurationInTraffic.Value) * time.Second
		}
		out.Legs = append(out.Legs, leg)
	}
	return out, nil
}

func latLng(p geo.Point) string {
	return fmt.Sprintf("%g,%g", p.Lat, p.Lng)
}

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

func (g *GoogleProvider) do(req *http.Request) (*http.Response, error) {
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

// doWithRetry retries network errors, 429 and 5xx responses with exponential
// backoff, giving up early when ctx ends.
func (g *GoogleProvider) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	backoff := g.cfg.Backoff
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}
		resp, err := g.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) || attempt == g.cfg.MaxAttempts {
			return nil, lastErr
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, lastErr
}

func retryable(err error) bool {
	var he *httpStatusError
	if errors.As(err, &he) {
		return he.Code == http.StatusTooManyRequests || he.Code >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
