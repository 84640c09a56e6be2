package store

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "logiswift/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// MigrateDir applies all *.sql files in dir in lexical order. Intended as a
// dev helper; production deploys run migrations out of band.
func (p *Postgres) MigrateDir(dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil { return err }
    names := []string{}
    for _, e := range entries {
        if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") { names = append(names, e.Name()) }
    }
    sort.Strings(names)
    for _, n := range names {
        b, err := os.ReadFile(filepath.Join(dir, n))
        if err != nil { return err }
        if _, err := p.db.Exec(string(b)); err != nil {
            return fmt.Errorf("migrate %s: %w", n, err)
        }
    }
    return nil
}

func (p *Postgres) SaveOptimization(ctx context.Context, opt model.Optimization) error {
    orig, err := json.Marshal(opt.Original)
    if err != nil { return err }
    optz, err := json.Marshal(opt.Optimized)
    if err != nil { return err }
    sav, err := json.Marshal(opt.Savings)
    if err != nil { return err }
    _, err = p.db.ExecContext(ctx,
        `INSERT INTO optimizations (id, tenant_id, mode, roundtrip, original, optimized, savings, driver_link, created_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
        opt.ID, opt.TenantID, opt.Mode, opt.Roundtrip, orig, optz, sav, opt.DriverLink, opt.CreatedAt)
    return err
}

func (p *Postgres) GetOptimization(ctx context.Context, tenantID, id string) (model.Optimization, error) {
    row := p.db.QueryRowContext(ctx,
        `SELECT id::text, tenant_id, mode, roundtrip, original, optimized, savings, driver_link, created_at::text
         FROM optimizations WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    o, err := scanOptimization(row)
    if errors.Is(err, sql.ErrNoRows) { return model.Optimization{}, ErrNotFound }
    return o, err
}

func (p *Postgres) ListOptimizations(ctx context.Context, tenantID, cursor string, limit int) ([]model.Optimization, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx,
            `SELECT id::text, tenant_id, mode, roundtrip, original, optimized, savings, driver_link, created_at::text
             FROM optimizations WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx,
            `SELECT id::text, tenant_id, mode, roundtrip, original, optimized, savings, driver_link, created_at::text
             FROM optimizations WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Optimization{}
    var last string
    for rows.Next() {
        o, err := scanOptimization(rows)
        if err != nil { return nil, "", err }
        out = append(out, o)
        last = o.ID
    }
    var next string
    if len(out) == limit { next = last }
    return out, next, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanOptimization(row rowScanner) (model.Optimization, error) {
    var o model.Optimization
    var orig, optz, sav []byte
    if err := row.Scan(&o.ID, &o.TenantID, &o.Mode, &o.Roundtrip, &orig, &optz, &sav, &o.DriverLink, &o.CreatedAt); err != nil {
        return model.Optimization{}, err
    }
    if err := json.Unmarshal(orig, &o.Original); err != nil { return model.Optimization{}, err }
    if err := json.Unmarshal(optz, &o.Optimized); err != nil { return model.Optimization{}, err }
    if err := json.Unmarshal(sav, &o.Savings); err != nil { return model.Optimization{}, err }
    return o, nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    id := uuid.New()
    events, err := json.Marshal(req.Events)
    if err != nil { return model.Subscription{}, err }
    _, err = p.db.ExecContext(ctx,
        `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`,
        id, req.TenantID, req.URL, events, req.Secret)
    if err != nil { return model.Subscription{}, err }
    return model.Subscription{ID: id.String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    rows, err := p.db.QueryContext(ctx,
        `SELECT id::text, tenant_id, url, events, secret FROM subscriptions WHERE tenant_id=$1 AND events ? $2`,
        tenantID, eventType)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Subscription{}
    for rows.Next() {
        s, err := scanSubscription(rows)
        if err != nil { return nil, err }
        out = append(out, s)
    }
    return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx,
            `SELECT id::text, tenant_id, url, events, secret FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`,
            tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx,
            `SELECT id::text, tenant_id, url, events, secret FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`,
            tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Subscription{}
    var last string
    for rows.Next() {
        s, err := scanSubscription(rows)
        if err != nil { return nil, "", err }
        s.Secret = ""
        out = append(out, s)
        last = s.ID
    }
    var next string
    if len(out) == limit { next = last }
    return out, next, rows.Err()
}

func scanSubscription(rows *sql.Rows) (model.Subscription, error) {
    var s model.Subscription
    var events []byte
    if err := rows.Scan(&s.ID, &s.TenantID, &s.URL, &events, &s.Secret); err != nil {
        return model.Subscription{}, err
    }
    if err := json.Unmarshal(events, &s.Events); err != nil { return model.Subscription{}, err }
    return s, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New()
    _, err := p.db.ExecContext(ctx,
        `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now())`,
        id, tenantID, nullIfEmpty(subscriptionID), eventType, url, secret, payload)
    if err != nil { return "", err }
    return id.String(), nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    if limit <= 0 { limit = 50 }
    rows, err := p.db.QueryContext(ctx,
        `SELECT id::text, tenant_id, COALESCE(subscription_id::text,''), event_type, url, secret, payload, status, attempts
         FROM webhook_deliveries
         WHERE status IN ('pending','retry') AND next_attempt_at <= now()
         ORDER BY next_attempt_at LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
            return nil, err
        }
        out = append(out, d)
    }
    return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if success {
        _, err := p.db.ExecContext(ctx,
            `UPDATE webhook_deliveries SET status='delivered', attempts=attempts+1, response_code=$2, latency_ms=$3, delivered_at=now() WHERE id=$1`,
            id, responseCode, latencyMs)
        return err
    }
    next := time.Now().Add(1 * time.Minute)
    if nextAttemptAt != nil { next = *nextAttemptAt }
    _, err := p.db.ExecContext(ctx,
        `UPDATE webhook_deliveries SET status='retry', attempts=attempts+1, next_attempt_at=$2, last_error=$3, response_code=$4, latency_ms=$5 WHERE id=$1`,
        id, next, nullIfEmpty(lastError), responseCode, latencyMs)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx,
        `UPDATE webhook_deliveries SET status='failed', last_error=$2, response_code=$3, latency_ms=$4 WHERE id=$1`,
        id, nullIfEmpty(lastError), responseCode, latencyMs)
    return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT id::text, event_type, status, attempts, url, next_attempt_at, COALESCE(last_error,'')
          FROM webhook_deliveries WHERE tenant_id=$1`
    args := []any{tenantID}
    if status != "" {
        args = append(args, status)
        q += fmt.Sprintf(" AND status=$%d", len(args))
    }
    if cursor != "" {
        args = append(args, cursor)
        q += fmt.Sprintf(" AND id::text > $%d", len(args))
    }
    args = append(args, limit)
    q += fmt.Sprintf(" ORDER BY id LIMIT $%d", len(args))
    rows, err := p.db.QueryContext(ctx, q, args...)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, eventType, st, url, lastErr string
        var attempts int
        var nextAt time.Time
        if err := rows.Scan(&id, &eventType, &st, &attempts, &url, &nextAt, &lastErr); err != nil {
            return nil, "", err
        }
        item := map[string]any{"id": id, "eventType": eventType, "status": st, "attempts": attempts, "url": url, "nextAttemptAt": nextAt}
        if lastErr != "" { item["lastError"] = lastErr }
        out = append(out, item)
        last = id
    }
    var next string
    if len(out) == limit { next = last }
    return out, next, rows.Err()
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx,
        `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE tenant_id=$1 AND id=$2`,
        tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }
