package main

import (
    "bufio"
    "errors"
    "log"
    "net"
    "net/http"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "logiswift/internal/api"
    "logiswift/internal/metrics"
)

func main() {
    _ = godotenv.Load()
    metrics.RegisterDefault()

    srvDeps, err := api.NewServer()
    if err != nil {
        log.Fatalf("failed to init server: %v", err)
    }

    mux := http.NewServeMux()

    // Optimization
    mux.HandleFunc("/v1/optimize", srvDeps.WithRateLimit(srvDeps.OptimizeHandler))
    mux.HandleFunc("/v1/optimizations", srvDeps.OptimizationsHandler)
    mux.HandleFunc("/v1/optimizations/", srvDeps.OptimizationByIDHandler)

    // Events
    mux.HandleFunc("/v1/events/stream", srvDeps.EventsStreamHandler)
    mux.HandleFunc("/v1/events/ws", srvDeps.EventsWSHandler)

    // Subscriptions and webhook admin
    mux.HandleFunc("/v1/subscriptions", srvDeps.SubscriptionsHandler)
    mux.HandleFunc("/v1/subscriptions/", srvDeps.SubscriptionByIDHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries", srvDeps.WebhookDeliveriesHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries/", srvDeps.WebhookDeliveryRetryHandler)

    // Health
    mux.HandleFunc("/healthz", srvDeps.HealthHandler)
    mux.HandleFunc("/readyz", srvDeps.ReadyHandler)

    // Docs and ops
    mux.HandleFunc("/openapi.yaml", srvDeps.OpenAPIHandler)
    mux.HandleFunc("/docs", srvDeps.DocsHandler)
    mux.HandleFunc("/console", srvDeps.SwaggerHandler)
    mux.HandleFunc("/debug/info", srvDeps.DebugJSON)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    addr := ":8080"
    if v := os.Getenv("PORT"); v != "" {
        addr = ":" + v
    }

    srv := &http.Server{
        Addr:              addr,
        Handler:           logMiddleware(mux),
        ReadHeaderTimeout: 5 * time.Second,
    }

    if srvDeps.MockMode() {
        log.Printf("no GOOGLE_MAPS_API_KEY set; optimizations run in mock mode")
    }
    log.Printf("API listening on %s", addr)
    // Start webhook worker
    if srvDeps.Pub != nil {
        worker := srvDeps.NewWebhookWorker()
        worker.Start()
    }
    if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
        log.Fatalf("server error: %v", err)
    }
}

type statusWriter struct {
    http.ResponseWriter
    status int
}

func (sw *statusWriter) WriteHeader(code int) {
    sw.status = code
    sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Flush() {
    if f, ok := sw.ResponseWriter.(http.Flusher); ok { f.Flush() }
}

// Hijack lets WebSocket upgrades work through the middleware.
func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    hj, ok := sw.ResponseWriter.(http.Hijacker)
    if !ok {
        return nil, nil, errors.New("response writer does not support hijacking")
    }
    return hj.Hijack()
}

// metricPath collapses ID-bearing paths to a template so metric label
// cardinality stays bounded.
func metricPath(p string) string {
    switch {
    case strings.HasPrefix(p, "/v1/optimizations/"):
        return "/v1/optimizations/{id}"
    case strings.HasPrefix(p, "/v1/subscriptions/"):
        return "/v1/subscriptions/{id}"
    case strings.HasPrefix(p, "/v1/admin/webhook-deliveries/"):
        return "/v1/admin/webhook-deliveries/{id}/retry"
    }
    return p
}

func logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(sw, r)
        dur := time.Since(start)
        status := strconv.Itoa(sw.status)
        path := metricPath(r.URL.Path)
        metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())
        log.Printf("%s %s %s %d %v", r.RemoteAddr, r.Method, r.URL.Path, sw.status, dur)
    })
}
