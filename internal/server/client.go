package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmurray2011/hoard/internal/reqcache"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client talks to the cache endpoints of a running server.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient returns a client for addr, which may be host:port or a URL.
// token is sent as a bearer token when non-empty.
func NewClient(addr, token string) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Base returns the server URL the client talks to.
func (c *Client) Base() string {
	return c.base
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// Stats returns the server's cache counters.
func (c *Client) Stats(ctx context.Context) (reqcache.Stats, error) {
	var s reqcache.Stats
	err := c.do(ctx, http.MethodGet, "/v1/cache", nil, &s)
	return s, err
}

// Keys returns the cached keys, least recently used first.
func (c *Client) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := c.do(ctx, http.MethodGet, "/v1/cache/keys", nil, &keys)
	return keys, err
}

// Purge drops every cached response and returns how many there were.
func (c *Client) Purge(ctx context.Context) (int, error) {
	var resp struct {
		Purged int `json:"purged"`
	}
	err := c.do(ctx, http.MethodDelete, "/v1/cache", nil, &resp)
	return resp.Purged, err
}

// Resize sets the cache capacity and returns the number of responses evicted.
func (c *Client) Resize(ctx context.Context, capacity int) (int, error) {
	var resp struct {
		Evicted int `json:"evicted"`
	}
	err := c.do(ctx, http.MethodPut, "/v1/cache/capacity", CapacityRequest{Capacity: &capacity}, &resp)
	return resp.Evicted, err
}

// SetTTL changes the cache TTL.
func (c *Client) SetTTL(ctx context.Context, ttl time.Duration) error {
	return c.do(ctx, http.MethodPut, "/v1/cache/ttl", TTLRequest{TTL: ttl.String()}, nil)
}

// Evict removes one cached response.
func (c *Client) Evict(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/v1/cache/keys/"+url.PathEscape(key), nil, nil)
}
