package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Common errors.
var (
	ErrNotFound     = errors.New("source: resource not found")
	ErrForbidden    = errors.New("source: access forbidden")
	ErrUnauthorized = errors.New("source: unauthorized")
	ErrServerError  = errors.New("source: server error")
	ErrBadStatus    = errors.New("source: unexpected status code")
	ErrInvalidJSON  = errors.New("source: response is not valid JSON")
)

// json keeps numbers as json.Number so ids and counts survive the
// decode/encode round trip unchanged.
var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Options configures the source client.
type Options struct {
	// Timeout for the whole request, body included.
	// Default: 30s
	Timeout time.Duration

	// UserAgent sent with the request.
	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:   30 * time.Second,
		UserAgent: "sports-etl/1.0",
	}
}

// Document is the decoded, untyped dataset.
type Document = interface{}

// Client performs the single GET against the source API.
type Client struct {
	client *http.Client
	url    string
	opts   Options
}

// NewClient creates a client for url.
func NewClient(url string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	return &Client{
		client: &http.Client{Timeout: opts.Timeout},
		url:    url,
		opts:   opts,
	}
}

// Fetch issues one GET and decodes the body. There is no retry: a transport
// failure or a non-2xx status is returned as is.
func (c *Client) Fetch(ctx context.Context) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if err := checkStatusCode(resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %w", c.url, err)
	}

	return Decode(body)
}

// Decode parses raw JSON bytes into a Document.
func Decode(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return doc, nil
}

// Encode serialises doc indented by four spaces, the layout of the staged artifact.
func Encode(doc Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "    ")
}

// LeagueCount returns the number of entries under "leagues", or -1 when the
// document has no such array.
func LeagueCount(doc Document) int {
	m, ok := doc.(map[string]interface{})
	if !ok {
		return -1
	}
	leagues, ok := m["leagues"].([]interface{})
	if !ok {
		return -1
	}
	return len(leagues)
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code >= 500:
		return fmt.Errorf("%w: %d", ErrServerError, code)
	default:
		return fmt.Errorf("%w: %d", ErrBadStatus, code)
	}
}
