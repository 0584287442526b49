package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Page is one inspectable target as reported by the browser's /json
// introspection endpoint.
type Page struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Client talks to the remote-debugging introspection endpoint of kiosk
// browsers on local loopback ports.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a remote debug client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 3 * time.Second},
	}
}

// ListPages fetches the inspectable targets exposed on the given port.
// Returns ErrUnreachable when the port refuses the connection or returns
// malformed JSON.
func (c *Client) ListPages(ctx context.Context, port int) ([]Page, error) {
	url := fmt.Sprintf("http://127.0.0.1:%d/json", port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build introspection request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: port %d: %v", ErrUnreachable, port, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: port %d: %v", ErrUnreachable, port, err)
	}

	var pages []Page
	if err := json.Unmarshal(body, &pages); err != nil {
		return nil, fmt.Errorf("%w: port %d returned malformed JSON: %v", ErrUnreachable, port, err)
	}
	return pages, nil
}

// FirstPage returns the first target of type "page" on the given port.
// Returns ErrNoPage when the port answers but has no page target.
func (c *Client) FirstPage(ctx context.Context, port int) (Page, error) {
	pages, err := c.ListPages(ctx, port)
	if err != nil {
		return Page{}, err
	}
	for _, p := range pages {
		if p.Type == "page" && p.WebSocketDebuggerURL != "" {
			return p, nil
		}
	}
	return Page{}, fmt.Errorf("%w: port %d", ErrNoPage, port)
}
