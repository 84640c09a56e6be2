package model

// Core domain types for route optimization.

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
    Lat float64 `json:"lat"`
    Lng float64 `json:"lng"`
}

// OptimizeRequest is the body of POST /v1/optimize. Addresses may be given
// either as a newline-separated blob or as a JSON array; the blob wins when
// both are present.
type OptimizeRequest struct {
    TenantID      string   `json:"tenantId,omitempty"`
    AddressesText string   `json:"addressesText,omitempty"`
    Addresses     []string `json:"addresses,omitempty"`
    Roundtrip     bool     `json:"roundtrip,omitempty"`
    Mock          bool     `json:"mock,omitempty"`
}

// RouteSummary describes one traversal of the stop sequence: the full order
// (origin first, destination last), aggregate distance and duration, and the
// provider's waypoint permutation when the traversal was optimized.
type RouteSummary struct {
    Order         []string   `json:"order"`
    Locations     []GeoPoint `json:"locations,omitempty"`
    DistanceM     int        `json:"distanceM"`
    DurationSec   int        `json:"durationSec"`
    WaypointOrder []int      `json:"waypointOrder,omitempty"`
}

// Savings compares the optimized traversal against the submitted order.
// Distance and duration deltas are clamped to zero.
type Savings struct {
    DistanceM     int     `json:"distanceM"`
    DistancePct   float64 `json:"distancePct"`
    DurationSec   int     `json:"durationSec"`
    DistanceHuman string  `json:"distanceHuman,omitempty"`
    DurationHuman string  `json:"durationHuman,omitempty"`
}

// Optimization is a persisted optimization attempt.
type Optimization struct {
    ID         string       `json:"id"`
    TenantID   string       `json:"tenantId"`
    Mode       string       `json:"mode"` // live or mock
    Roundtrip  bool         `json:"roundtrip,omitempty"`
    Original   RouteSummary `json:"original"`
    Optimized  RouteSummary `json:"optimized"`
    Savings    Savings      `json:"savings"`
    DriverLink string       `json:"driverLink"`
    CreatedAt  string       `json:"createdAt"`
}

type SubscriptionRequest struct {
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret"`
}

type Subscription struct {
    ID       string   `json:"id"`
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret,omitempty"`
}
