// Package objectstore uploads generated winner creatives to a
// public-readable bucket, returning a stable public URL per
// §6 "Object store". Shaped after pkg/google's functional-options client,
// built on the shared internal/httpx transport instead of a bare
// *http.Client so uploads get the fleet's retry/rate-limit/error-kind
// behavior for free.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sellsadvisors/fleet/internal/httpx"
	"github.com/sellsadvisors/fleet/internal/resilience"
)

// Client uploads bytes to the object store and returns their public URL.
type Client interface {
	Upload(ctx context.Context, req UploadRequest) (string, error)
}

// UploadRequest describes one object to store.
type UploadRequest struct {
	Bucket      string
	Path        string
	Bytes       []byte
	ContentType string
}

// UploadResponse is the object store's JSON response to a successful
// upload.
type UploadResponse struct {
	URL string `json:"url"`
}

// Option configures the client.
type Option func(*client)

// WithHTTPXClient overrides the shared transport (tests, custom retry
// policy).
func WithHTTPXClient(h *httpx.Client) Option {
	return func(c *client) { c.http = h }
}

// WithCircuitBreaker overrides the default per-host circuit breaker policy
// that guards every object store upload.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *client) { c.circuit = &cfg }
}

type client struct {
	baseURL string
	apiKey  string
	circuit *resilience.CircuitBreakerConfig
	http    *httpx.Client
}

// NewClient builds an object store client against baseURL, authenticating
// with apiKey.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &client{baseURL: baseURL, apiKey: apiKey}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		httpOpts := []httpx.Option{httpx.WithUserAgent("fleet-objectstore/1.0")}
		if c.circuit != nil {
			httpOpts = append(httpOpts, httpx.WithCircuitBreakerConfig(*c.circuit))
		}
		c.http = httpx.New(httpOpts...)
	}
	return c
}

// Upload implements Client. It multipart-encodes the payload and posts it
// to /objects/{bucket}/{path}, returning the resulting public URL.
func (c *client) Upload(ctx context.Context, req UploadRequest) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", req.Path)
	if err != nil {
		return "", eris.Wrap(err, "objectstore: create form file")
	}
	if _, err := io.Copy(part, bytes.NewReader(req.Bytes)); err != nil {
		return "", eris.Wrap(err, "objectstore: write form file")
	}
	if err := w.WriteField("content_type", req.ContentType); err != nil {
		return "", eris.Wrap(err, "objectstore: write content type field")
	}
	if err := w.Close(); err != nil {
		return "", eris.Wrap(err, "objectstore: close multipart writer")
	}

	url := fmt.Sprintf("%s/objects/%s/%s", c.baseURL, req.Bucket, req.Path)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.apiKey)

	respBytes, err := c.http.DoRaw(ctx, http.MethodPost, url, headers, w.FormDataContentType(), buf.Bytes())
	if err != nil {
		return "", eris.Wrap(err, "objectstore: upload")
	}

	var out UploadResponse
	if err := json.Unmarshal(respBytes, &out); err != nil {
		return "", eris.Wrap(err, "objectstore: decode upload response")
	}
	return out.URL, nil
}
