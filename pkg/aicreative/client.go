// Package aicreative wraps the AI image-edit and video-generation APIs used
// by the winner scaler (§4.F) to produce new pin creatives. Shaped after
// pkg/notion's Client-interface-plus-functional-options wrapper, built on
// the shared internal/httpx transport rather than a bespoke SDK client,
// since both AI endpoints are plain bearer-token JSON APIs.
package aicreative

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/sellsadvisors/fleet/internal/httpx"
	"github.com/sellsadvisors/fleet/internal/ratelimit"
	"github.com/sellsadvisors/fleet/internal/resilience"
)

// Client defines the AI creative-generation operations the winner scaler
// needs.
type Client interface {
	// EditImage calls the image-editing endpoint, using referenceImage as
	// conditioning when non-empty, else the pure text-to-image variant.
	EditImage(ctx context.Context, req ImageEditRequest) (*ImageResult, error)
	// GenerateVideo starts an async video-generation operation.
	GenerateVideo(ctx context.Context, req VideoGenerateRequest) (*VideoOperation, error)
	// PollVideo fetches the current status of a previously started
	// video-generation operation.
	PollVideo(ctx context.Context, operationID string) (*VideoOperation, error)
	// DownloadArtifact fetches bytes from a plain downloadable URL (a video
	// artifact, or an image-edit result returned as a URL rather than base64).
	DownloadArtifact(ctx context.Context, artifactURL string) ([]byte, error)
}

// ImageEditRequest is the image-edit request shape from §6.
type ImageEditRequest struct {
	ReferenceImageBytes []byte
	Prompt              string
	Size                string // "1024x1536"
	Quality             string // "high"
}

// ImageResult holds the image-edit response; exactly one of Base64/URL is
// populated depending on what the upstream API returned.
type ImageResult struct {
	Base64 string
	URL    string
}

// Bytes decodes the result to raw image bytes, fetching URL via the given
// downloader if Base64 isn't set.
func (r *ImageResult) Bytes(ctx context.Context, c Client) ([]byte, error) {
	if r.Base64 != "" {
		b, err := base64.StdEncoding.DecodeString(r.Base64)
		if err != nil {
			return nil, eris.Wrap(err, "aicreative: decode base64 image")
		}
		return b, nil
	}
	if r.URL == "" {
		return nil, eris.New("aicreative: image result has neither base64 nor url")
	}
	return c.DownloadArtifact(ctx, r.URL)
}

// VideoGenerateRequest is the video-generation request shape from §6.
type VideoGenerateRequest struct {
	Prompt              string
	ReferenceImageBytes []byte
	Aspect              string // "9:16"
}

// VideoOperationStatus enumerates the async operation lifecycle.
type VideoOperationStatus string

const (
	VideoStatusProcessing VideoOperationStatus = "processing"
	VideoStatusSucceeded  VideoOperationStatus = "succeeded"
	VideoStatusFailed     VideoOperationStatus = "failed"
)

// VideoOperation is the async video-generation operation's current state.
type VideoOperation struct {
	ID       string
	Status   VideoOperationStatus
	VideoURL string
	Error    string
}

// Option configures a Client.
type Option func(*client)

// WithRateLimit overrides the default per-host requests/sec.
func WithRateLimit(rps float64) Option {
	return func(c *client) { c.rps = rps }
}

// WithHTTPXClient overrides the underlying transport (tests, custom retry
// config).
func WithHTTPXClient(h *httpx.Client) Option {
	return func(c *client) { c.http = h }
}

// WithCircuitBreaker overrides the default per-host circuit breaker policy
// that guards every AI creative-generation call.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *client) { c.circuit = &cfg }
}

type client struct {
	baseURL string
	apiKey  string
	rps     float64
	circuit *resilience.CircuitBreakerConfig
	http    *httpx.Client
}

// NewClient creates an AI creative client against baseURL, authenticating
// with apiKey as a bearer token.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &client{baseURL: baseURL, apiKey: apiKey, rps: 1}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		httpOpts := []httpx.Option{httpx.WithRateLimiters(ratelimit.NewRegistry(c.rps, max(int(c.rps), 1)))}
		if c.circuit != nil {
			httpOpts = append(httpOpts, httpx.WithCircuitBreakerConfig(*c.circuit))
		}
		c.http = httpx.New(httpOpts...)
	}
	return c
}

func (c *client) url(path string) string {
	return fmt.Sprintf("%s%s", c.baseURL, path)
}

func (c *client) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.apiKey)
	return h
}

func (c *client) EditImage(ctx context.Context, req ImageEditRequest) (*ImageResult, error) {
	size := req.Size
	if size == "" {
		size = "1024x1536"
	}
	quality := req.Quality
	if quality == "" {
		quality = "high"
	}

	payload := map[string]any{
		"prompt":  req.Prompt,
		"size":    size,
		"quality": quality,
	}
	if len(req.ReferenceImageBytes) > 0 {
		payload["reference_image_base64"] = base64.StdEncoding.EncodeToString(req.ReferenceImageBytes)
	}

	var out struct {
		ImageBase64 string `json:"image_base64"`
		ImageURL    string `json:"image_url"`
	}
	if err := c.http.DoJSON(ctx, http.MethodPost, c.url("/v1/images/edit"), c.headers(), payload, &out); err != nil {
		return nil, eris.Wrap(err, "aicreative: edit image")
	}
	return &ImageResult{Base64: out.ImageBase64, URL: out.ImageURL}, nil
}

func (c *client) GenerateVideo(ctx context.Context, req VideoGenerateRequest) (*VideoOperation, error) {
	aspect := req.Aspect
	if aspect == "" {
		aspect = "9:16"
	}

	payload := map[string]any{
		"prompt": req.Prompt,
		"aspect": aspect,
	}
	if len(req.ReferenceImageBytes) > 0 {
		payload["reference_image_base64"] = base64.StdEncoding.EncodeToString(req.ReferenceImageBytes)
	}

	var out videoOperationWire
	if err := c.http.DoJSON(ctx, http.MethodPost, c.url("/v1/videos/generate"), c.headers(), payload, &out); err != nil {
		return nil, eris.Wrap(err, "aicreative: generate video")
	}
	return out.toVideoOperation(), nil
}

func (c *client) PollVideo(ctx context.Context, operationID string) (*VideoOperation, error) {
	var out videoOperationWire
	if err := c.http.DoJSON(ctx, http.MethodGet, c.url("/v1/videos/operations/"+operationID), c.headers(), nil, &out); err != nil {
		return nil, eris.Wrap(err, "aicreative: poll video operation")
	}
	return out.toVideoOperation(), nil
}

func (c *client) DownloadArtifact(ctx context.Context, artifactURL string) ([]byte, error) {
	b, err := c.http.DoRaw(ctx, http.MethodGet, artifactURL, c.headers(), "", nil)
	if err != nil {
		return nil, eris.Wrap(err, "aicreative: download artifact")
	}
	return b, nil
}

type videoOperationWire struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url"`
	Error    string `json:"error"`
}

func (w videoOperationWire) toVideoOperation() *VideoOperation {
	return &VideoOperation{
		ID:       w.ID,
		Status:   VideoOperationStatus(w.Status),
		VideoURL: w.VideoURL,
		Error:    w.Error,
	}
}
