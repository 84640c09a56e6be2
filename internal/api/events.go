package api

import (
    "encoding/json"
    "fmt"
    "net/http"
    "time"

    "github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// EventsStreamHandler handles GET /v1/events/stream as Server-Sent Events,
// scoped to the caller's tenant.
func (s *Server) EventsStreamHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    flusher, ok := w.(http.Flusher)
    if !ok {
        writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "response writer does not support flushing", r.URL.Path)
        return
    }
    tenant := s.withTenant(r)
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")

    ch := s.Broker.Subscribe(tenant)
    defer s.Broker.Unsubscribe(tenant, ch)

    // initial heartbeat
    fmt.Fprintf(w, "event: heartbeat\n")
    fmt.Fprintf(w, "data: {\"tenantId\":\"%s\",\"ts\":\"%s\"}\n\n", tenant, time.Now().Format(time.RFC3339))
    flusher.Flush()

    notify := r.Context().Done()
    for {
        select {
        case <-notify:
            return
        case evt, ok := <-ch:
            if !ok { return }
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
        case <-time.After(15 * time.Second):
            fmt.Fprintf(w, "event: heartbeat\n")
            fmt.Fprintf(w, "data: {\"tenantId\":\"%s\",\"ts\":\"%s\"}\n\n", tenant, time.Now().Format(time.RFC3339))
            flusher.Flush()
        }
    }
}

// EventsWSHandler handles GET /v1/events/ws: the same tenant event stream
// over a WebSocket for clients that cannot hold an SSE connection.
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
    tenant := s.withTenant(r)
    conn, err := upgrader.Upgrade(w, r, nil)
    if err != nil {
        return
    }
    defer func() { _ = conn.Close() }()

    conn.SetReadLimit(1 << 20)
    _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
    conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

    ch := s.Broker.Subscribe(tenant)
    defer s.Broker.Unsubscribe(tenant, ch)

    done := make(chan struct{})
    // Drain client frames so pongs are processed and closes are noticed.
    go func() {
        defer close(done)
        for {
            if _, _, err := conn.ReadMessage(); err != nil {
                return
            }
        }
    }()

    ticker := time.NewTicker(20 * time.Second)
    defer ticker.Stop()
    for {
        select {
        case <-done:
            return
        case <-r.Context().Done():
            return
        case evt, ok := <-ch:
            if !ok { return }
            if err := conn.WriteJSON(evt); err != nil {
                return
            }
        case <-ticker.C:
            if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
                return
            }
        }
    }
}
