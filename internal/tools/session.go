package tools

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Session is a persistent SSE-backed connection to a remote tool server, for
// a tool family whose backend wants a long-lived connection rather than one
// request per call; the builder and lookaside clients do not use it, they
// make one plain HTTP request per call. It is an explicitly scoped
// resource: callers must call Close when done with it, typically via
// defer right after OpenSession succeeds.
type Session struct {
	baseURL string
	client  *http.Client
	resp    *http.Response
	events  chan SessionEvent
	done    chan struct{}
}

// SessionEvent is one decoded server-sent event.
type SessionEvent struct {
	Event string
	Data  string
}

// OpenSession connects to the remote tool server's SSE endpoint and starts
// streaming events in the background. The returned Session must be closed.
func OpenSession(ctx context.Context, baseURL string, client *http.Client) (*Session, error) {
	if client == nil {
		client = &http.Client{Timeout: 0} // streaming: no fixed overall timeout
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("build session request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("open session: unexpected status %d", resp.StatusCode)
	}

	s := &Session{
		baseURL: baseURL,
		client:  client,
		resp:    resp,
		events:  make(chan SessionEvent, 16),
		done:    make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

func (s *Session) pump() {
	defer close(s.events)
	scanner := bufio.NewScanner(s.resp.Body)
	var cur SessionEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if cur.Data != "" || cur.Event != "" {
				select {
				case s.events <- cur:
				case <-s.done:
					return
				}
				cur = SessionEvent{}
			}
		case strings.HasPrefix(line, "event:"):
			cur.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			cur.Data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
}

// Events returns the channel of decoded events; it closes when the
// underlying connection ends or the Session is closed.
func (s *Session) Events() <-chan SessionEvent { return s.events }

// Invoke posts a single request to the session's companion RPC endpoint,
// reusing the session's HTTP client (and, transitively, its connection
// pool) but not the SSE stream itself.
func (s *Session) Invoke(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.baseURL, "/")+path, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.client.Do(req)
}

// Close tears down the SSE stream and releases the underlying connection.
func (s *Session) Close() error {
	close(s.done)
	return s.resp.Body.Close()
}

// withTimeout is a small helper for bounding a single remote call without
// affecting the session's own lifetime.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
