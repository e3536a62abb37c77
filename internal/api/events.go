package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const heartbeatEvery = 15 * time.Second

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// tokenFromQuery lets browser clients, which cannot set headers on
// EventSource or WebSocket, pass the bearer token as ?access_token=.
func tokenFromQuery(r *http.Request) {
	if r.Header.Get("Authorization") != "" {
		return
	}
	if tok := r.URL.Query().Get("access_token"); tok != "" {
		r.Header.Set("Authorization", "Bearer "+tok)
	}
}

// EventsStreamHandler streams the tenant's events as Server-Sent Events.
func (s *Server) EventsStreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	tokenFromQuery(r)
	p, ok := s.require(w, r, Principal.CanRead, "viewer")
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(p.Tenant)
	defer s.Broker.Unsubscribe(p.Tenant, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"tenantId\":%q,\"ts\":%q}\n\n", p.Tenant, time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()
	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", evt.Data)
			flusher.Flush()
		case <-ticker.C:
			heartbeat()
		}
	}
}

// EventsWSHandler streams the same events over a WebSocket. Each message is
// a JSON Event; the server pings every heartbeat interval and drops clients
// that stop answering.
func (s *Server) EventsWSHandler(w http.ResponseWriter, r *http.Request) {
	tokenFromQuery(r)
	p, ok := s.require(w, r, Principal.CanRead, "viewer")
	if !ok {
		return
	}
	// subscribe before the handshake completes so the client sees every
	// event published after Dial returns
	ch := s.Broker.Subscribe(p.Tenant)
	defer s.Broker.Unsubscribe(p.Tenant, ch)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	var wmu sync.Mutex
	write := func(fn func() error) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return fn()
	}

	// the read loop only services control frames and detects close
	closed := make(chan struct{})
	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(4 * heartbeatEvery))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(4 * heartbeatEvery))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case evt, open := <-ch:
			if !open {
				_ = write(func() error {
					return conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				})
				return
			}
			if err := write(func() error { return conn.WriteJSON(evt) }); err != nil {
				s.Log.Debugf("events ws: write to %s: %v", p.Tenant, err)
				return
			}
		case <-ticker.C:
			if err := write(func() error { return conn.WriteMessage(websocket.PingMessage, nil) }); err != nil {
				return
			}
		}
	}
}
