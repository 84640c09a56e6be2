package store

import (
    "context"
    "testing"
    "time"

    "logiswift/internal/model"
)

func seedOptimizations(t *testing.T, m *Memory, tenant string, n int) []string {
    t.Helper()
    ids := make([]string, 0, n)
    for i := 0; i < n; i++ {
        o := model.Optimization{ID: string(rune('a' + i)), TenantID: tenant, Mode: "mock"}
        if err := m.SaveOptimization(context.Background(), o); err != nil { t.Fatalf("save: %v", err) }
        ids = append(ids, o.ID)
    }
    return ids
}

func TestMemoryOptimizationsPagination(t *testing.T) {
    m := NewMemory()
    ids := seedOptimizations(t, m, "t1", 5)

    page, next, err := m.ListOptimizations(context.Background(), "t1", "", 2)
    if err != nil { t.Fatalf("list: %v", err) }
    if len(page) != 2 || page[0].ID != ids[0] || next != ids[1] {
        t.Fatalf("first page: %+v next=%s", page, next)
    }

    page, next, err = m.ListOptimizations(context.Background(), "t1", next, 10)
    if err != nil { t.Fatalf("list: %v", err) }
    if len(page) != 3 || next != "" {
        t.Fatalf("second page: %d items next=%q", len(page), next)
    }
}

func TestMemoryTenantScoping(t *testing.T) {
    m := NewMemory()
    seedOptimizations(t, m, "t1", 1)

    if _, err := m.GetOptimization(context.Background(), "t2", "a"); err != ErrNotFound {
        t.Fatalf("cross-tenant get should be ErrNotFound, got %v", err)
    }
    page, _, _ := m.ListOptimizations(context.Background(), "t2", "", 10)
    if len(page) != 0 { t.Fatalf("cross-tenant list: %+v", page) }
}

func TestMemorySubscriptionsEventMatch(t *testing.T) {
    m := NewMemory()
    ctx := context.Background()
    _, _ = m.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "https://a", Events: []string{"route.optimized"}})
    _, _ = m.CreateSubscription(ctx, model.SubscriptionRequest{TenantID: "t1", URL: "https://b", Events: []string{"other.event"}})

    subs, err := m.GetSubscriptionsForEvent(ctx, "t1", "route.optimized")
    if err != nil { t.Fatalf("get: %v", err) }
    if len(subs) != 1 || subs[0].URL != "https://a" {
        t.Fatalf("subs: %+v", subs)
    }
}

func TestMemoryWebhookLifecycle(t *testing.T) {
    m := NewMemory()
    ctx := context.Background()
    id, err := m.EnqueueWebhook(ctx, "t1", "sub1", "route.optimized", "https://hook", "sec", []byte(`{}`))
    if err != nil { t.Fatalf("enqueue: %v", err) }

    due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
    if len(due) != 1 || due[0].ID != id { t.Fatalf("due: %+v", due) }

    next := time.Now().Add(time.Minute)
    _ = m.MarkWebhookDelivery(ctx, id, false, &next, "boom", 500, 12)
    if due, _ = m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 0 {
        t.Fatalf("retry scheduled in the future should not be due: %+v", due)
    }

    _ = m.RetryWebhookDelivery(ctx, "t1", id)
    if due, _ = m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 1 {
        t.Fatalf("requeued delivery should be due")
    }

    _ = m.MarkWebhookDelivery(ctx, id, true, nil, "", 200, 8)
    items, _, _ := m.ListWebhookDeliveries(ctx, "t1", "delivered", "", 10)
    if len(items) != 1 { t.Fatalf("delivered list: %+v", items) }
}
