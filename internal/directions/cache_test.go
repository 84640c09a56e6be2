package directions

import (
    "context"
    "sync/atomic"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    redis "github.com/redis/go-redis/v9"
)

type countingProvider struct {
    calls int32
    next  Provider
}

func (c *countingProvider) Route(ctx context.Context, origin, destination string, waypoints []string, optimize bool) (Summary, error) {
    atomic.AddInt32(&c.calls, 1)
    return c.next.Route(ctx, origin, destination, waypoints, optimize)
}

func TestCachedProviderServesRepeatsFromCache(t *testing.T) {
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

    cp := &countingProvider{next: NewMock()}
    cached := NewCachedProvider(cp, rdb, time.Minute)

    waypoints := []string{"B", "C", "D"}
    first, err := cached.Route(context.Background(), "A", "E", waypoints, true)
    if err != nil { t.Fatalf("first: %v", err) }
    second, err := cached.Route(context.Background(), "A", "E", waypoints, true)
    if err != nil { t.Fatalf("second: %v", err) }

    if atomic.LoadInt32(&cp.calls) != 1 {
        t.Fatalf("expected one upstream call, got %d", cp.calls)
    }
    if first.DistanceM != second.DistanceM || len(first.Order) != len(second.Order) {
        t.Fatalf("cached result differs: %+v vs %+v", first, second)
    }
}

func TestCacheKeyIsCaseInsensitive(t *testing.T) {
    a := cacheKey("A St", "B St", []string{"C St"}, true)
    b := cacheKey("a st", "b st", []string{"c st"}, true)
    if a != b { t.Fatalf("keys differ: %s vs %s", a, b) }
    c := cacheKey("A St", "B St", []string{"C St"}, false)
    if a == c { t.Fatal("optimize flag should change the key") }
}

func TestCachedProviderSurvivesRedisDown(t *testing.T) {
    rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
    cp := &countingProvider{next: NewMock()}
    cached := NewCachedProvider(cp, rdb, time.Minute)
    if _, err := cached.Route(context.Background(), "A", "E", []string{"B"}, true); err != nil {
        t.Fatalf("cache failure should fall through to the provider: %v", err)
    }
}
