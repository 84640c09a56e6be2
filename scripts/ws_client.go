// Package main runs a demo WebSocket client for optimization events.
package main

import (
    "bytes"
    "encoding/json"
    "fmt"
    "log"
    "net/http"
    "net/url"
    "os"
    "time"

    "github.com/gorilla/websocket"
)

func main() {
    port := os.Getenv("PORT")
    if port == "" {
        port = "8080"
    }
    base := fmt.Sprintf("http://localhost:%s", port)

    // Connect WS first so we catch the event from the optimize below
    u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/events/ws"}
    hdr := http.Header{}
    hdr.Set("X-Tenant-Id", "t_demo")
    hdr.Set("X-Role", "admin")
    c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
    if err != nil {
        log.Fatal("dial:", err)
    }
    defer func() { _ = c.Close() }()

    done := make(chan struct{})
    go func() {
        defer close(done)
        for {
            var m map[string]any
            if err := c.ReadJSON(&m); err != nil {
                log.Printf("read: %v", err)
                return
            }
            b, _ := json.Marshal(m)
            log.Printf("WS <- %s", string(b))
        }
    }()

    // Run a mock optimization to trigger an optimization.completed event
    body := []byte(`{"tenantId":"t_demo","mock":true,"addresses":[
        "100 Market St, Springfield",
        "200 Oak Ave, Springfield",
        "300 Pine Rd, Springfield",
        "400 Elm St, Springfield",
        "500 Maple Dr, Springfield"
    ]}`)
    req, _ := http.NewRequest(http.MethodPost, base+"/v1/optimize", bytes.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_demo")
    req.Header.Set("X-Role", "admin")
    resp, err := http.DefaultClient.Do(req)
    if err != nil {
        log.Fatal(err)
    }
    defer func() { _ = resp.Body.Close() }()
    var opt struct {
        ID         string `json:"id"`
        DriverLink string `json:"driverLink"`
    }
    if err := json.NewDecoder(resp.Body).Decode(&opt); err != nil {
        log.Fatal(err)
    }
    log.Printf("Optimization ID: %s", opt.ID)
    log.Printf("Driver link: %s", opt.DriverLink)

    // Wait briefly to receive a few messages
    select {
    case <-time.After(2 * time.Second):
    case <-done:
    }
}
