package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // ProviderCalls counts directions provider calls by mode and outcome
    ProviderCalls = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "directions_provider_calls_total", Help: "Directions provider calls by mode and outcome."},
        []string{"mode", "outcome"},
    )
    // ProviderLatency tracks provider call latencies in milliseconds
    ProviderLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "directions_provider_latency_ms", Help: "Directions provider latency in ms.", Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 15000}},
        []string{"mode"},
    )
    // DistanceSavingsPct observes the percentage of distance saved per optimization
    DistanceSavingsPct = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "optimization_distance_savings_pct", Help: "Distance saved per optimization, percent.", Buckets: []float64{0, 1, 2, 5, 10, 15, 20, 30, 50}},
    )

    // WebhookDeliveries counts webhook delivery outcomes by event type and status
    WebhookDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
        []string{"event_type", "status"},
    )
    // WebhookLatency tracks webhook delivery latencies in milliseconds
    WebhookLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
        []string{"event_type", "status"},
    )
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
    regOnce.Do(func() {
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(ProviderCalls)
        Registry.MustRegister(ProviderLatency)
        Registry.MustRegister(DistanceSavingsPct)
        Registry.MustRegister(WebhookDeliveries)
        Registry.MustRegister(WebhookLatency)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
