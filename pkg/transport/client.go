/*
Package transport is the HTTP side of dotsearch: a Client that sends query
payloads to a search endpoint, and the codecs shared with the server.

One Search call is one POST:

	POST /api/search
	Content-Type: application/json
	X-Request-ID: 6f1c...

	{"words":["cat"],"prefixes":[],"postfixes":["hub"],"minWordCount":1,"maxWordCount":2}

and the service answers with two name lists, either of which may be missing:

	{"free":["cathub"],"reserved":["cat"]}

Retries are left to the caller; the coordinator decides when to call again.
*/
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bastiangx/dotsearch/internal/logger"
	"github.com/bastiangx/dotsearch/pkg/query"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// ErrEmptyEndpoint is returned by NewClient when no endpoint is given.
var ErrEmptyEndpoint = errors.New("search endpoint required")

// RequestIDHeader carries the per-call id.
const RequestIDHeader = "X-Request-ID"

const maxResponseBytes = 32 << 20

// StatusError reports a non-2xx reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("search service returned %d", e.StatusCode)
	}
	return fmt.Sprintf("search service returned %d: %s", e.StatusCode, e.Body)
}

// searchResponse mirrors the wire reply. Lists may be absent or null.
type searchResponse struct {
	Free     []string `json:"free" msgpack:"free"`
	Reserved []string `json:"reserved" msgpack:"reserved"`
}

// BatchLookupRequest is the body of a batch lookup call.
type BatchLookupRequest struct {
	Words []string `json:"words" msgpack:"words"`
}

// BatchLookupResponse maps each word to whether it is free.
type BatchLookupResponse struct {
	IsFree map[string]bool `json:"is_free" msgpack:"is_free"`
}

// Client calls a remote search service. It is safe for concurrent use.
type Client struct {
	endpoint       string
	lookupEndpoint string
	codec          Codec
	http           *http.Client
	log            *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCodec sets the body encoding.
func WithCodec(c Codec) Option {
	return func(cl *Client) {
		cl.codec = c
	}
}

// WithTimeout bounds each call. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(cl *Client) {
		if h != nil {
			cl.http = h
		}
	}
}

// WithLookupEndpoint overrides the batch lookup URL.
func WithLookupEndpoint(endpoint string) Option {
	return func(cl *Client) {
		cl.lookupEndpoint = endpoint
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.log = l
		}
	}
}

// NewClient creates a client for the search endpoint. The batch lookup
// endpoint defaults to "batch-lookup" next to it.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	c := &Client{
		endpoint:       endpoint,
		lookupEndpoint: u.ResolveReference(&url.URL{Path: "batch-lookup"}).String(),
		codec:          CodecJSON,
		http:           &http.Client{},
		log:            logger.New("transport"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the search URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Search sends payload and returns the service's answer as-is; missing lists
// come back nil and ordering is whatever the service chose.
func (c *Client) Search(ctx context.Context, payload query.Payload) (query.Result, error) {
	var resp searchResponse
	if err := c.post(ctx, c.endpoint, payload, &resp); err != nil {
		return query.Result{}, err
	}
	return query.Result{Free: resp.Free, Reserved: resp.Reserved}, nil
}

// BatchLookup asks the service which of words are free.
func (c *Client) BatchLookup(ctx context.Context, words []string) (map[string]bool, error) {
	var resp BatchLookupResponse
	if err := c.post(ctx, c.lookupEndpoint, BatchLookupRequest{Words: words}, &resp); err != nil {
		return nil, err
	}
	if resp.IsFree == nil {
		resp.IsFree = map[string]bool{}
	}
	return resp.IsFree, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	data, err := c.codec.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	id := uuid.NewString()
	req.Header.Set("Content-Type", c.codec.ContentType())
	req.Header.Set("Accept", c.codec.ContentType())
	req.Header.Set(RequestIDHeader, id)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", "id", id, "url", endpoint, "err", err)
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	c.log.Debug("response", "id", id, "status", resp.StatusCode, "bytes", len(raw), "took", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	codec := CodecForContentType(resp.Header.Get("Content-Type"))
	if len(raw) == 0 {
		return fmt.Errorf("decoding response: empty body")
	}
	if err := codec.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
