package api

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "math"
    "net/http"
    "strings"
    "time"

    "github.com/google/uuid"

    "logiswift/internal/directions"
    "logiswift/internal/metrics"
    "logiswift/internal/model"
    "logiswift/internal/store"
)

// OptimizeHandler handles POST /v1/optimize: normalize the submitted stops,
// route them twice (as given, then optimized), compute savings, and persist
// the result.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    var req model.OptimizeRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    addrs, err := parseAddresses(&req)
    if err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid addresses", err.Error(), r.URL.Path)
        return
    }
    if req.TenantID == "" { req.TenantID = s.withTenant(r) }

    origin := addrs[0]
    var destination string
    var waypoints []string
    if req.Roundtrip {
        destination = origin
        waypoints = addrs[1:]
    } else {
        destination = addrs[len(addrs)-1]
        waypoints = addrs[1 : len(addrs)-1]
    }

    prov := s.Live
    mode := "live"
    if req.Mock || s.Live == nil {
        prov = s.Mock
        mode = "mock"
        log.Printf("optimize: mock mode (forced=%v, keyless=%v)", req.Mock, s.Live == nil)
    }

    start := time.Now()
    baseline, err := prov.Route(r.Context(), origin, destination, waypoints, false)
    if err != nil {
        metrics.ProviderCalls.WithLabelValues(mode, "error").Inc()
        s.writeProviderError(w, r, err)
        return
    }
    optimized, err := prov.Route(r.Context(), origin, destination, waypoints, true)
    if err != nil {
        metrics.ProviderCalls.WithLabelValues(mode, "error").Inc()
        s.writeProviderError(w, r, err)
        return
    }
    metrics.ProviderCalls.WithLabelValues(mode, "ok").Inc()
    metrics.ProviderLatency.WithLabelValues(mode).Observe(float64(time.Since(start).Milliseconds()))

    // The optimized order must be a permutation of the submitted stops;
    // anything else from the provider degrades to the submitted order.
    if !isPermutation(baseline.Order, optimized.Order) {
        optimized.Order = append([]string(nil), baseline.Order...)
        optimized.Locations = nil
        optimized.WaypointOrder = nil
    }

    savings := computeSavings(baseline, optimized)
    metrics.DistanceSavingsPct.Observe(savings.DistancePct)

    link := directions.DriverLink(origin, destination, optimized.Order[1:len(optimized.Order)-1])
    rec := model.Optimization{
        ID:         uuid.New().String(),
        TenantID:   req.TenantID,
        Mode:       mode,
        Roundtrip:  req.Roundtrip,
        Original:   toRouteSummary(baseline),
        Optimized:  toRouteSummary(optimized),
        Savings:    savings,
        DriverLink: link,
        CreatedAt:  time.Now().UTC().Format(time.RFC3339),
    }
    if err := s.Store.SaveOptimization(r.Context(), rec); err != nil {
        writeProblem(w, http.StatusInternalServerError, "Save optimization failed", err.Error(), r.URL.Path)
        return
    }

    evt := map[string]any{
        "optimizationId": rec.ID,
        "mode":           rec.Mode,
        "stops":          len(addrs),
        "distanceSavedM": savings.DistanceM,
        "durationSavedS": savings.DurationSec,
        "ts":             rec.CreatedAt,
    }
    s.Broker.Publish(req.TenantID, SSEEvent{Type: "optimization.completed", Data: evt})
    s.Pub.Emit(r.Context(), req.TenantID, "route.optimized", evt)

    writeJSON(w, http.StatusOK, rec)
}

func toRouteSummary(sum directions.Summary) model.RouteSummary {
    return model.RouteSummary{
        Order:         sum.Order,
        Locations:     sum.Locations,
        DistanceM:     sum.DistanceM,
        DurationSec:   sum.DurationSec,
        WaypointOrder: sum.WaypointOrder,
    }
}

// computeSavings clamps both deltas at zero: a provider "optimization" that
// came back worse reports zero savings, not negative ones.
func computeSavings(baseline, optimized directions.Summary) model.Savings {
    distSaved := baseline.DistanceM - optimized.DistanceM
    if distSaved < 0 { distSaved = 0 }
    durSaved := baseline.DurationSec - optimized.DurationSec
    if durSaved < 0 { durSaved = 0 }
    denom := baseline.DistanceM
    if denom < 1 { denom = 1 }
    pct := math.Round(100*float64(distSaved)/float64(denom)*100) / 100
    return model.Savings{
        DistanceM:     distSaved,
        DistancePct:   pct,
        DurationSec:   durSaved,
        DistanceHuman: kmString(distSaved),
        DurationHuman: humanDuration(durSaved),
    }
}

func isPermutation(a, b []string) bool {
    if len(a) != len(b) { return false }
    counts := map[string]int{}
    for _, s := range a { counts[s]++ }
    for _, s := range b {
        counts[s]--
        if counts[s] < 0 { return false }
    }
    return true
}

func (s *Server) writeProviderError(w http.ResponseWriter, r *http.Request, err error) {
    if errors.Is(err, directions.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
        writeProblem(w, http.StatusGatewayTimeout, "Directions request timed out", "request to the directions provider timed out; try again", r.URL.Path)
        return
    }
    var pe *directions.ProviderError
    if errors.As(err, &pe) {
        writeProblem(w, http.StatusBadGateway, "Directions provider error", pe.Error(), r.URL.Path)
        return
    }
    writeProblem(w, http.StatusBadGateway, "Directions call failed", err.Error(), r.URL.Path)
}

// OptimizationsHandler handles GET /v1/optimizations
func (s *Server) OptimizationsHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/optimizations" { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    tenant := s.withTenant(r)
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListOptimizations(r.Context(), tenant, cursor, limit)
    if err != nil { writeProblem(w, 500, "List optimizations failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// OptimizationByIDHandler handles GET /v1/optimizations/{id}
func (s *Server) OptimizationByIDHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/optimizations/")
    if id == "" || strings.Contains(id, "/") {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
        return
    }
    tenant := s.withTenant(r)
    o, err := s.Store.GetOptimization(r.Context(), tenant, id)
    if err != nil {
        if errors.Is(err, store.ErrNotFound) {
            writeProblem(w, http.StatusNotFound, "Optimization not found", id, r.URL.Path)
            return
        }
        writeProblem(w, http.StatusInternalServerError, "Get optimization failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, o)
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions (admin only)
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    switch r.Method {
    case http.MethodPost:
        var req model.SubscriptionRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if req.URL == "" || len(req.Events) == 0 {
            writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events are required", r.URL.Path)
            return
        }
        if req.TenantID == "" { req.TenantID = p.Tenant }
        sub, err := s.Store.CreateSubscription(r.Context(), req)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
        if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id} (admin only)
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodDelete { w.WriteHeader(405); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil { writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path); return }
    w.WriteHeader(204)
}

// WebhookDeliveriesHandler lists webhook deliveries (admin only)
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/admin/webhook-deliveries" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    status := r.URL.Query().Get("status")
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, status, cursor, limit)
    if err != nil { writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// WebhookDeliveryRetryHandler requeues one delivery (admin only)
func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/") || !strings.HasSuffix(r.URL.Path, "/retry") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodPost { w.WriteHeader(405); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
    if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, id); err != nil { writeProblem(w, 500, "Retry delivery failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 202, map[string]int{"accepted": 1})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]any{"status": "ok", "service": "logiswift-route-optimizer", "mockMode": s.MockMode()})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB connectivity when using Postgres store
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}
