package api

import (
    "bytes"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "golang.org/x/time/rate"

    "logiswift/internal/directions"
    "logiswift/internal/model"
    "logiswift/internal/store"
    "logiswift/internal/webhooks"
)

func newTestServer(t *testing.T) *Server {
    t.Helper()
    st := store.NewMemory()
    return &Server{
        Store:   st,
        Mock:    directions.NewMock(),
        Pub:     webhooks.NewPublisher(st),
        Broker:  NewBroker(),
        Limiter: rate.NewLimiter(rate.Inf, 1),
    }
}

var testAddresses = []string{
    "100 Market St, Springfield",
    "200 Oak Ave, Springfield",
    "300 Pine Rd, Springfield",
    "400 Elm St, Springfield",
    "500 Maple Dr, Springfield",
}

func postOptimize(t *testing.T, s *Server, body map[string]any) *httptest.ResponseRecorder {
    t.Helper()
    b, _ := json.Marshal(body)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/optimize", bytes.NewReader(b))
    req.Header.Set("Content-Type", "application/json")
    s.OptimizeHandler(rr, req)
    return rr
}

func TestHealthReady(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    var h map[string]any
    _ = json.Unmarshal(rr.Body.Bytes(), &h)
    if h["mockMode"] != true { t.Fatalf("expected mockMode true without a provider: %+v", h) }
    rr = httptest.NewRecorder()
    s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
}

func TestOptimizeMock(t *testing.T) {
    s := newTestServer(t)
    rr := postOptimize(t, s, map[string]any{"addresses": testAddresses})
    if rr.Code != 200 { t.Fatalf("optimize: %d body=%s", rr.Code, rr.Body.String()) }
    var got model.Optimization
    if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil { t.Fatalf("decode: %v", err) }

    if got.Mode != "mock" { t.Fatalf("mode: %s", got.Mode) }
    if len(got.Optimized.Order) != len(testAddresses) { t.Fatalf("order length: %d", len(got.Optimized.Order)) }
    if !isPermutation(got.Original.Order, got.Optimized.Order) {
        t.Fatalf("optimized order is not a permutation: %v vs %v", got.Original.Order, got.Optimized.Order)
    }
    if got.Optimized.Order[0] != testAddresses[0] || got.Optimized.Order[4] != testAddresses[4] {
        t.Fatalf("origin/destination moved: %v", got.Optimized.Order)
    }
    if got.Savings.DistanceM < 0 || got.Savings.DurationSec < 0 {
        t.Fatalf("negative savings: %+v", got.Savings)
    }
    // mock shaves exactly 15% distance: 4 legs * 3000m = 12000, saved 1800
    if got.Savings.DistanceM != 1800 || got.Savings.DistancePct != 15 {
        t.Fatalf("mock savings: %+v", got.Savings)
    }
    if !strings.HasPrefix(got.DriverLink, "https://www.google.com/maps/dir/?api=1") {
        t.Fatalf("driver link: %s", got.DriverLink)
    }
    if got.Savings.DistanceHuman != "1.80 km" { t.Fatalf("distance human: %s", got.Savings.DistanceHuman) }
}

func TestOptimizeDeterministicInMockMode(t *testing.T) {
    s := newTestServer(t)
    rr1 := postOptimize(t, s, map[string]any{"addresses": testAddresses})
    rr2 := postOptimize(t, s, map[string]any{"addresses": testAddresses})
    var a, b model.Optimization
    _ = json.Unmarshal(rr1.Body.Bytes(), &a)
    _ = json.Unmarshal(rr2.Body.Bytes(), &b)
    if a.Optimized.DistanceM != b.Optimized.DistanceM {
        t.Fatalf("mock results differ: %d vs %d", a.Optimized.DistanceM, b.Optimized.DistanceM)
    }
    for i := range a.Optimized.Order {
        if a.Optimized.Order[i] != b.Optimized.Order[i] {
            t.Fatalf("mock order differs at %d", i)
        }
    }
}

func TestOptimizeRoundtrip(t *testing.T) {
    s := newTestServer(t)
    rr := postOptimize(t, s, map[string]any{"addresses": testAddresses, "roundtrip": true})
    if rr.Code != 200 { t.Fatalf("optimize: %d", rr.Code) }
    var got model.Optimization
    _ = json.Unmarshal(rr.Body.Bytes(), &got)
    last := got.Optimized.Order[len(got.Optimized.Order)-1]
    if last != testAddresses[0] {
        t.Fatalf("roundtrip should end at the origin, got %s", last)
    }
    if len(got.Optimized.Order) != len(testAddresses)+1 {
        t.Fatalf("roundtrip order length: %d", len(got.Optimized.Order))
    }
}

func TestOptimizeValidation(t *testing.T) {
    s := newTestServer(t)
    cases := []struct {
        name string
        body map[string]any
    }{
        {"too few", map[string]any{"addresses": testAddresses[:4]}},
        {"too many", map[string]any{"addresses": append(append([]string{}, testAddresses...),
            "600 A St", "700 B St", "800 C St", "900 D St", "1000 E St", "1100 F St")}},
        {"dupes collapse below min", map[string]any{"addresses": []string{
            "100 Market St", "100 market st", " 100 Market St ", "200 Oak Ave", "300 Pine Rd", "400 Elm St"}}},
        {"empty", map[string]any{"addresses": []string{}}},
    }
    for _, tc := range cases {
        rr := postOptimize(t, s, tc.body)
        if rr.Code != http.StatusBadRequest {
            t.Fatalf("%s: got %d, want 400", tc.name, rr.Code)
        }
    }
}

func TestOptimizeAddressesText(t *testing.T) {
    s := newTestServer(t)
    rr := postOptimize(t, s, map[string]any{"addressesText": strings.Join(testAddresses, "\n") + "\n\n"})
    if rr.Code != 200 { t.Fatalf("optimize text: %d body=%s", rr.Code, rr.Body.String()) }
}

func TestOptimizationsListAndGet(t *testing.T) {
    s := newTestServer(t)
    rr := postOptimize(t, s, map[string]any{"addresses": testAddresses})
    if rr.Code != 200 { t.Fatalf("seed optimize: %d", rr.Code) }
    var created model.Optimization
    _ = json.Unmarshal(rr.Body.Bytes(), &created)

    rr = httptest.NewRecorder()
    s.OptimizationsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/optimizations?limit=5", nil))
    if rr.Code != 200 { t.Fatalf("list: %d", rr.Code) }
    var page struct {
        Items []model.Optimization `json:"items"`
    }
    _ = json.Unmarshal(rr.Body.Bytes(), &page)
    if len(page.Items) != 1 || page.Items[0].ID != created.ID {
        t.Fatalf("list items: %+v", page.Items)
    }

    rr = httptest.NewRecorder()
    s.OptimizationByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/optimizations/"+created.ID, nil))
    if rr.Code != 200 { t.Fatalf("get: %d", rr.Code) }

    rr = httptest.NewRecorder()
    s.OptimizationByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/optimizations/nope", nil))
    if rr.Code != 404 { t.Fatalf("get missing: %d", rr.Code) }
}

func TestSubscriptionsRBAC(t *testing.T) {
    s := newTestServer(t)
    body := []byte(`{"url":"https://example.com/hook","events":["route.optimized"]}`)

    req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(body))
    req.Header.Set("X-Role", "user")
    rr := httptest.NewRecorder()
    s.SubscriptionsHandler(rr, req)
    if rr.Code != 403 { t.Fatalf("non-admin create: %d", rr.Code) }

    req = httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(body))
    rr = httptest.NewRecorder()
    s.SubscriptionsHandler(rr, req)
    if rr.Code != 201 { t.Fatalf("admin create: %d body=%s", rr.Code, rr.Body.String()) }
    var sub model.Subscription
    _ = json.Unmarshal(rr.Body.Bytes(), &sub)

    rr = httptest.NewRecorder()
    s.SubscriptionsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil))
    if rr.Code != 200 { t.Fatalf("list: %d", rr.Code) }

    rr = httptest.NewRecorder()
    s.SubscriptionByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil))
    if rr.Code != 204 { t.Fatalf("delete: %d", rr.Code) }
}

func TestOptimizeEnqueuesWebhook(t *testing.T) {
    s := newTestServer(t)
    subBody := []byte(`{"url":"https://example.com/hook","events":["route.optimized"],"secret":"s3"}`)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(subBody))
    s.SubscriptionsHandler(rr, req)
    if rr.Code != 201 { t.Fatalf("subscription: %d", rr.Code) }

    rr = postOptimize(t, s, map[string]any{"addresses": testAddresses})
    if rr.Code != 200 { t.Fatalf("optimize: %d", rr.Code) }

    items, _, err := s.Store.ListWebhookDeliveries(context.Background(), "t_demo", "", "", 10)
    if err != nil { t.Fatalf("list deliveries: %v", err) }
    if len(items) != 1 { t.Fatalf("expected one pending delivery, got %d", len(items)) }
}

type sseRecorder struct {
    *httptest.ResponseRecorder
}

func (sseRecorder) Flush() {}

func TestEventsStreamDeliversEvents(t *testing.T) {
    s := newTestServer(t)
    ctx, cancel := context.WithCancel(context.Background())
    req := httptest.NewRequest(http.MethodGet, "/v1/events/stream", nil).WithContext(ctx)
    rec := sseRecorder{httptest.NewRecorder()}

    done := make(chan struct{})
    go func() {
        s.EventsStreamHandler(rec, req)
        close(done)
    }()

    time.Sleep(50 * time.Millisecond)
    s.Broker.Publish("t_demo", SSEEvent{Type: "optimization.completed", Data: map[string]any{"optimizationId": "o1"}})
    time.Sleep(50 * time.Millisecond)
    cancel()
    <-done

    body := rec.Body.String()
    if !strings.Contains(body, "event: heartbeat") {
        t.Fatalf("missing heartbeat: %q", body)
    }
    if !strings.Contains(body, "event: optimization.completed") {
        t.Fatalf("missing published event: %q", body)
    }
    if !strings.Contains(body, "o1") {
        t.Fatalf("missing event payload: %q", body)
    }
}

func TestRateLimitRejects(t *testing.T) {
    s := newTestServer(t)
    s.Limiter = rate.NewLimiter(rate.Limit(0.0001), 1)
    h := s.WithRateLimit(s.OptimizeHandler)

    b, _ := json.Marshal(map[string]any{"addresses": testAddresses})
    rr := httptest.NewRecorder()
    h(rr, httptest.NewRequest(http.MethodPost, "/v1/optimize", bytes.NewReader(b)))
    if rr.Code != 200 { t.Fatalf("first call: %d", rr.Code) }

    rr = httptest.NewRecorder()
    h(rr, httptest.NewRequest(http.MethodPost, "/v1/optimize", bytes.NewReader(b)))
    if rr.Code != http.StatusTooManyRequests { t.Fatalf("second call: %d", rr.Code) }
}
