package directions

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

    "logiswift/internal/model"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/directions/json"

// GoogleClient calls the Google Directions API with waypoint optimization.
type GoogleClient struct {
    HTTP    *http.Client
    BaseURL string
    key     string
}

// NewGoogleClient builds a live client. The timeout caps each provider call;
// callers see ErrTimeout when it fires.
func NewGoogleClient(apiKey string, timeout time.Duration) (*GoogleClient, error) {
    if strings.TrimSpace(apiKey) == "" {
        return nil, errors.New("directions: api key is empty")
    }
    if timeout <= 0 { timeout = 15 * time.Second }
    return &GoogleClient{
        HTTP:    &http.Client{Timeout: timeout},
        BaseURL: defaultBaseURL,
        key:     apiKey,
    }, nil
}

func (g *GoogleClient) Route(ctx context.Context, origin, destination string, waypoints []string, optimize bool) (Summary, error) {
    q := url.Values{}
    q.Set("origin", origin)
    q.Set("destination", destination)
    q.Set("key", g.key)
    q.Set("mode", "driving")
    q.Set("units", "metric")
    if len(waypoints) > 0 {
        wp := strings.Join(waypoints, "|")
        if optimize { wp = "optimize:true|" + wp }
        q.Set("waypoints", wp)
    }
    reqURL := g.BaseURL + "?" + q.Encode()

    resp, err := g.doWithRetry(ctx, reqURL)
    if err != nil {
        if isTimeout(err) { return Summary{}, fmt.Errorf("%w: %v", ErrTimeout, err) }
        return Summary{}, err
    }
    defer func() { _ = resp.Body.Close() }()

    var body googleResponse
    if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
        return Summary{}, fmt.Errorf("directions: decode response: %w", err)
    }
    if body.Status != "OK" {
        return Summary{}, &ProviderError{Status: body.Status, Message: body.ErrorMessage}
    }
    if len(body.Routes) == 0 {
        return Summary{}, &ProviderError{Status: "ZERO_RESULTS", Message: "response contained no routes"}
    }

    rt := body.Routes[0]
    sum := Summary{WaypointOrder: rt.WaypointOrder}
    for _, leg := range rt.Legs {
        sum.DistanceM += leg.Distance.Value
        sum.DurationSec += leg.Duration.Value
    }
    sum.Order = buildOrder(origin, destination, waypoints, optimize, rt.WaypointOrder)
    sum.Locations = legLocations(rt.Legs, len(sum.Order))
    return sum, nil
}

// buildOrder maps the provider's waypoint permutation back onto the submitted
// address strings. A permutation of the wrong size falls back to the
// submitted order.
func buildOrder(origin, destination string, waypoints []string, optimize bool, perm []int) []string {
    order := make([]string, 0, len(waypoints)+2)
    order = append(order, origin)
    if optimize && len(perm) > 0 {
        for _, idx := range perm {
            if idx >= 0 && idx < len(waypoints) { order = append(order, waypoints[idx]) }
        }
    } else {
        order = append(order, waypoints...)
    }
    order = append(order, destination)
    if len(order) != len(waypoints)+2 {
        order = append([]string{origin}, waypoints...)
        order = append(order, destination)
    }
    return order
}

// legLocations lifts leg endpoints into per-stop coordinates: leg i starts at
// stop i, the last leg ends at the final stop.
func legLocations(legs []googleLeg, stops int) []model.GeoPoint {
    if len(legs) == 0 || len(legs)+1 != stops { return nil }
    out := make([]model.GeoPoint, 0, stops)
    for _, l := range legs {
        out = append(out, model.GeoPoint{Lat: l.StartLocation.Lat, Lng: l.StartLocation.Lng})
    }
    last := legs[len(legs)-1]
    out = append(out, model.GeoPoint{Lat: last.EndLocation.Lat, Lng: last.EndLocation.Lng})
    return out
}

// doWithRetry retries transient failures (429/5xx responses, network errors)
// with exponential backoff while respecting context cancellation.
func (g *GoogleClient) doWithRetry(ctx context.Context, reqURL string) (*http.Response, error) {
    const maxAttempts = 4
    backoff := 200 * time.Millisecond

    var lastErr error
    for attempt := 1; attempt <= maxAttempts; attempt++ {
        if err := ctx.Err(); err != nil { return nil, err }

        req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
        if err != nil { return nil, fmt.Errorf("directions: create request: %w", err) }
        req.Header.Set("Accept", "application/json")

        resp, err := g.HTTP.Do(req)
        if err == nil && resp.StatusCode < 400 {
            return resp, nil
        }
        if err == nil {
            b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
            _ = resp.Body.Close()
            lastErr = &ProviderError{HTTPStatus: resp.StatusCode, Message: strings.TrimSpace(string(b))}
            if !retryableStatus(resp.StatusCode) || attempt == maxAttempts {
                return nil, lastErr
            }
        } else {
            lastErr = err
            if isTimeout(err) || attempt == maxAttempts {
                return nil, lastErr
            }
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

func retryableStatus(code int) bool {
    switch code {
    case 429, 500, 502, 503, 504:
        return true
    }
    return false
}

func isTimeout(err error) bool {
    if errors.Is(err, context.DeadlineExceeded) { return true }
    var ne net.Error
    return errors.As(err, &ne) && ne.Timeout()
}

type googleResponse struct {
    Status       string        `json:"status"`
    ErrorMessage string        `json:"error_message"`
    Routes       []googleRoute `json:"routes"`
}

type googleRoute struct {
    WaypointOrder []int       `json:"waypoint_order"`
    Legs          []googleLeg `json:"legs"`
}

type googleLeg struct {
    Distance      googleValue `json:"distance"`
    Duration      googleValue `json:"duration"`
    StartLocation struct {
        Lat float64 `json:"lat"`
        Lng float64 `json:"lng"`
    } `json:"start_location"`
    EndLocation struct {
        Lat float64 `json:"lat"`
        Lng float64 `json:"lng"`
    } `json:"end_location"`
}

type googleValue struct {
    Value int `json:"value"`
}
