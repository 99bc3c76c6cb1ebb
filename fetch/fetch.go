// Package fetch provides the shared HTTP plumbing of the quote and
// dividend providers: a disk cache with daily expiry, an in-memory
// layer for repeated lookups within a run, and JSON helpers.
package fetch

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httputil"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rmaral/carteira/date"
)

// userAgent is sent on every request; some providers reject the
// default Go client string.
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) carteira/1.0"

// diskCache is an http.RoundTripper that stores successful responses
// on disk under a key that includes today's date, so entries expire
// daily.
type diskCache struct {
	base http.RoundTripper
	dir  string
}

func (c *diskCache) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	key := fmt.Sprintf("%s %s %s", date.Today(), req.Method, req.URL.String())
	key = fmt.Sprintf("%x", sha1.Sum([]byte(key)))

	if resp, err := c.get(key, req); err == nil {
		return resp, nil
	}

	resp, err := c.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	log.Printf("%v %v%v %v", req.Method, req.URL.Host, req.URL.Path, resp.Status)
	if resp.StatusCode >= 300 {
		return resp, nil
	}
	if err := c.put(key, resp); err != nil {
		log.Printf("cache write err (ignored): %v", err)
	}
	return resp, nil
}

func (c *diskCache) get(key string, req *http.Request) (*http.Response, error) {
	content, err := os.ReadFile(filepath.Join(c.dir, key))
	if err != nil {
		return nil, err
	}
	return http.ReadResponse(bufio.NewReader(bytes.NewBuffer(content)), req)
}

func (c *diskCache) put(key string, resp *http.Response) error {
	content, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(c.dir, key))
	if err != nil {
		return err
	}
	_, err = f.Write(content)
	f.Close()
	return err
}

// Client wraps an http.Client with a per-run in-memory decode cache on
// top of the daily disk cache.
type Client struct {
	http *http.Client
	mem  *gocache.Cache
}

// New returns a client whose responses are cached on disk in cacheDir
// with daily expiry. An empty cacheDir falls back to the system temp
// directory.
func New(cacheDir string) *Client {
	if cacheDir == "" {
		cacheDir = os.TempDir()
	}
	return &Client{
		http: &http.Client{Transport: &diskCache{base: http.DefaultTransport, dir: cacheDir}},
		mem:  gocache.New(15*time.Minute, 30*time.Minute),
	}
}

// NewWith returns a client over an existing http.Client, used by
// providers that manage their own cookie session.
func NewWith(client *http.Client) *Client {
	return &Client{http: client, mem: gocache.New(15*time.Minute, 30*time.Minute)}
}

// HTTP exposes the underlying client for providers that need raw
// request control.
func (c *Client) HTTP() *http.Client { return c.http }

// GetJSON performs a GET and unmarshals the JSON response into data.
// Repeated calls for the same URL within a run decode from memory.
func (c *Client) GetJSON(ctx context.Context, addr string, data any) error {
	if raw, ok := c.mem.Get(addr); ok {
		return json.Unmarshal(raw.([]byte), data)
	}
	raw, err := c.GetBody(ctx, addr)
	if err != nil {
		return err
	}
	c.mem.Set(addr, raw, gocache.DefaultExpiration)
	return json.Unmarshal(raw, data)
}

// GetBody performs a GET and returns the response body.
func (c *Client) GetBody(ctx context.Context, addr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, URL: addr}
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StatusError reports a non-200 response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d for %s", e.Code, e.URL)
}

// IsAuthStatus reports whether the status code means rejected
// credentials.
func (e *StatusError) IsAuthStatus() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden ||
		e.Code == http.StatusPaymentRequired
}
