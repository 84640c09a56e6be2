// Package directions talks to the external route-optimization provider and
// supplies a deterministic mock for keyless demo runs.
package directions

import (
    "context"
    "errors"
    "fmt"

    "logiswift/internal/model"
)

// Summary is the provider's answer for one traversal of a stop sequence.
// Order always contains the full sequence: origin, waypoints, destination.
type Summary struct {
    Order         []string
    Locations     []model.GeoPoint
    DistanceM     int
    DurationSec   int
    WaypointOrder []int
}

// Provider computes a route over origin, waypoints, destination. With
// optimize set, the provider is free to reorder the waypoints; origin and
// destination are fixed either way.
type Provider interface {
    Route(ctx context.Context, origin, destination string, waypoints []string, optimize bool) (Summary, error)
}

// ProviderError is a failure reported by the provider itself: an HTTP error
// status, or a 200 body whose status field is not OK (bad key, quota, no
// route found). Transport-level errors are returned as-is.
type ProviderError struct {
    HTTPStatus int    // HTTP status code, 0 when the body status failed
    Status     string // provider body status, e.g. REQUEST_DENIED
    Message    string
}

func (e *ProviderError) Error() string {
    if e.Status != "" {
        if e.Message != "" { return fmt.Sprintf("directions: %s: %s", e.Status, e.Message) }
        return fmt.Sprintf("directions: %s", e.Status)
    }
    return fmt.Sprintf("directions: HTTP %d: %s", e.HTTPStatus, e.Message)
}

// ErrTimeout marks a provider call that exceeded its deadline.
var ErrTimeout = errors.New("directions: request timed out")
