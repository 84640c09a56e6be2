package api

import (
    "sync"
)

type SSEEvent struct {
    Type string         `json:"type"`
    Data map[string]any `json:"data"`
}

type Broker struct {
    mu   sync.Mutex
    subs map[string]map[chan SSEEvent]struct{} // tenant -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(tenant string) chan SSEEvent {
    ch := make(chan SSEEvent, 8)
    b.mu.Lock()
    if b.subs[tenant] == nil { b.subs[tenant] = map[chan SSEEvent]struct{}{} }
    b.subs[tenant][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

func (b *Broker) Unsubscribe(tenant string, ch chan SSEEvent) {
    b.mu.Lock()
    if m := b.subs[tenant]; m != nil {
        delete(m, ch)
        if len(m) == 0 { delete(b.subs, tenant) }
    }
    b.mu.Unlock()
    close(ch)
}

func (b *Broker) Publish(tenant string, evt SSEEvent) {
    b.mu.Lock()
    m := b.subs[tenant]
    for ch := range m {
        select { case ch <- evt: default: }
    }
    b.mu.Unlock()
}
