package directions

import (
    "context"
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "log"
    "strings"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// CachedProvider memoizes provider summaries in Redis. Cache failures are
// treated as misses; the provider remains the source of truth.
type CachedProvider struct {
    Next Provider
    rdb  *redis.Client
    TTL  time.Duration
}

func NewCachedProvider(next Provider, rdb *redis.Client, ttl time.Duration) *CachedProvider {
    if ttl <= 0 { ttl = 15 * time.Minute }
    return &CachedProvider{Next: next, rdb: rdb, TTL: ttl}
}

func (c *CachedProvider) Route(ctx context.Context, origin, destination string, waypoints []string, optimize bool) (Summary, error) {
    key := cacheKey(origin, destination, waypoints, optimize)
    if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
        var sum Summary
        if err := json.Unmarshal(data, &sum); err == nil {
            return sum, nil
        }
    }
    sum, err := c.Next.Route(ctx, origin, destination, waypoints, optimize)
    if err != nil {
        return Summary{}, err
    }
    if data, err := json.Marshal(sum); err == nil {
        if err := c.rdb.Set(ctx, key, data, c.TTL).Err(); err != nil {
            log.Printf("directions cache set failed: %v", err)
        }
    }
    return sum, nil
}

func cacheKey(origin, destination string, waypoints []string, optimize bool) string {
    h := sha256.New()
    h.Write([]byte(strings.ToLower(origin)))
    h.Write([]byte{0})
    h.Write([]byte(strings.ToLower(destination)))
    for _, w := range waypoints {
        h.Write([]byte{0})
        h.Write([]byte(strings.ToLower(w)))
    }
    if optimize { h.Write([]byte{1}) }
    return "directions:" + hex.EncodeToString(h.Sum(nil))
}
