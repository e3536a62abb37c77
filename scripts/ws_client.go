// Package main runs a demo WebSocket client: it subscribes to the tenant's
// event stream, posts one schedule request and prints what arrives.
package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

const demoRequest = `{
  "tasks": [
    {"name": "inspect-A", "station": "A", "start": 0, "end": 10, "score": 10},
    {"name": "repair-B", "station": "B", "start": 10, "end": 20, "score": 10},
    {"name": "audit-C", "station": "C", "start": 5, "end": 15, "score": 12}
  ],
  "subwayConnections": [
    {"connection": ["S", "A"], "fee": 5},
    {"connection": ["A", "B"], "fee": 3},
    {"connection": ["S", "C"], "fee": 9}
  ],
  "startingLocation": "S"
}`

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/events/ws"}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	hdr.Set("X-Role", "viewer")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m struct {
				Type string         `json:"type"`
				Data map[string]any `json:"data"`
			}
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %v", m.Type, m.Data)
		}
	}()

	req, _ := http.NewRequest(http.MethodPost, base+"/v1/schedule", bytes.NewReader([]byte(demoRequest)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	req.Header.Set("X-Role", "planner")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	log.Printf("schedule %s (run %s): %s", resp.Status, resp.Header.Get("X-Run-Id"), bytes.TrimSpace(body))

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
