package api

import (
    "testing"
    "time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
    b := NewBroker()
    tenant := "t_test"
    ch := b.Subscribe(tenant)

    evt := SSEEvent{Type: "optimization.completed", Data: map[string]any{"optimizationId": "o1"}}
    b.Publish(tenant, evt)

    select {
    case got := <-ch:
        if got.Type != evt.Type { t.Fatalf("got type %s, want %s", got.Type, evt.Type) }
        if got.Data["optimizationId"] != "o1" { t.Fatalf("bad payload: %+v", got.Data) }
    case <-time.After(200 * time.Millisecond):
        t.Fatal("timeout waiting for event")
    }

    b.Unsubscribe(tenant, ch)
    if _, ok := <-ch; ok {
        t.Fatal("channel should be closed after unsubscribe")
    }
}

func TestBrokerTenantIsolation(t *testing.T) {
    b := NewBroker()
    chA := b.Subscribe("t_a")
    chB := b.Subscribe("t_b")
    defer b.Unsubscribe("t_a", chA)
    defer b.Unsubscribe("t_b", chB)

    b.Publish("t_a", SSEEvent{Type: "optimization.completed", Data: map[string]any{"optimizationId": "o1"}})

    select {
    case <-chA:
    case <-time.After(200 * time.Millisecond):
        t.Fatal("tenant A should receive its event")
    }
    select {
    case evt := <-chB:
        t.Fatalf("tenant B should not receive tenant A events: %+v", evt)
    case <-time.After(50 * time.Millisecond):
    }
}

func TestBrokerDropsWhenSubscriberSlow(t *testing.T) {
    b := NewBroker()
    ch := b.Subscribe("t_slow")
    defer b.Unsubscribe("t_slow", ch)
    // channel buffer is 8; extra publishes must not block
    for i := 0; i < 20; i++ {
        b.Publish("t_slow", SSEEvent{Type: "optimization.completed", Data: map[string]any{"n": i}})
    }
}
