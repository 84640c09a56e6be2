package api

import (
    "net/http"
    "os"
    "strconv"
    "strings"
    "time"

    redis "github.com/redis/go-redis/v9"
    "golang.org/x/time/rate"

    "logiswift/internal/auth"
    "logiswift/internal/directions"
    "logiswift/internal/store"
    "logiswift/internal/webhooks"
)

type Server struct {
    Store  store.Store
    Live   directions.Provider // nil when no provider key is configured
    Mock   directions.Provider
    Pub    *webhooks.Publisher
    Auth   *auth.Verifier
    Broker EventBroker
    Limiter *rate.Limiter
}

// NewServer wires the server from environment configuration. Without
// DATABASE_URL it uses the in-memory store; without GOOGLE_MAPS_API_KEY every
// optimization runs in mock mode.
func NewServer() (*Server, error) {
    dsn := os.Getenv("DATABASE_URL")
    var s store.Store
    if strings.TrimSpace(dsn) == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(dsn)
        if err != nil {
            return nil, err
        }
        // Run migrations (dev helper)
        if os.Getenv("DB_MIGRATE") != "false" {
            _ = sp.MigrateDir("db/migrations")
        }
        s = sp
    }

    var rdb *redis.Client
    if url := os.Getenv("REDIS_URL"); url != "" {
        if opt, err := redis.ParseURL(url); err == nil { rdb = redis.NewClient(opt) }
    }

    var live directions.Provider
    if key := strings.TrimSpace(os.Getenv("GOOGLE_MAPS_API_KEY")); key != "" {
        timeout := 15 * time.Second
        if v := os.Getenv("DIRECTIONS_TIMEOUT_SEC"); v != "" {
            if n, err := strconv.Atoi(v); err == nil && n > 0 { timeout = time.Duration(n) * time.Second }
        }
        g, err := directions.NewGoogleClient(key, timeout)
        if err != nil {
            return nil, err
        }
        live = g
        if rdb != nil { live = directions.NewCachedProvider(g, rdb, 15*time.Minute) }
    }

    var broker EventBroker
    if rdb != nil {
        broker = NewRedisBroker(rdb)
    } else {
        broker = NewBroker()
    }

    return &Server{
        Store:   s,
        Live:    live,
        Mock:    directions.NewMock(),
        Pub:     webhooks.NewPublisher(s),
        Auth:    auth.NewVerifierFromEnv(),
        Broker:  broker,
        Limiter: limiterFromEnv(),
    }, nil
}

func limiterFromEnv() *rate.Limiter {
    rps := 5.0
    burst := 10
    if v := os.Getenv("RATE_RPS"); v != "" {
        if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 { rps = f }
    }
    if v := os.Getenv("RATE_BURST"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n > 0 { burst = n }
    }
    return rate.NewLimiter(rate.Limit(rps), burst)
}

// MockMode reports whether the service has no live provider configured.
func (s *Server) MockMode() bool { return s.Live == nil }

func (s *Server) withTenant(r *http.Request) string {
    return s.getPrincipal(r).Tenant
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store)
}
