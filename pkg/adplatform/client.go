// Package adplatform wraps the ad platform's v5 REST API: OAuth2 token
// refresh, campaign and ad-group CRUD, pin creation, media upload+poll,
// batched ad creation, analytics, and board listing. Follows the usual
// Client-interface-plus-functional-options shape, built on the shared
// internal/httpx transport, since the ad platform is a plain bearer-token
// REST API rather than one needing a stateful session struct.
package adplatform

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sellsadvisors/fleet/internal/httpx"
	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/internal/ratelimit"
	"github.com/sellsadvisors/fleet/internal/resilience"
)

// Client defines the ad-platform operations the fleet requires (§6).
type Client interface {
	// RefreshToken exchanges a refresh token for a new access token bundle.
	RefreshToken(ctx context.Context, refreshToken string) (TokenBundle, error)

	GetCampaign(ctx context.Context, accessToken, adAccountID, campaignID string) (Campaign, error)
	ListCampaigns(ctx context.Context, accessToken, adAccountID string) ([]Campaign, error)
	CreateCampaign(ctx context.Context, accessToken, adAccountID string, req CampaignCreate) (Campaign, error)
	PatchCampaign(ctx context.Context, accessToken, adAccountID, campaignID string, patch CampaignPatch) error

	ListAdGroups(ctx context.Context, accessToken, adAccountID, campaignID string) ([]AdGroup, error)
	CreateAdGroup(ctx context.Context, accessToken, adAccountID string, req AdGroupCreate) (AdGroup, error)
	PatchAdGroup(ctx context.Context, accessToken, adAccountID, adGroupID string, patch AdGroupPatch) error

	CreatePin(ctx context.Context, accessToken string, req PinCreate) (Pin, error)
	RegisterMediaUpload(ctx context.Context, accessToken, adAccountID string) (MediaUpload, error)
	UploadMedia(ctx context.Context, uploadURL string, uploadParameters map[string]string, mediaBytes []byte, filename string) error
	PollMediaStatus(ctx context.Context, accessToken, adAccountID, mediaID string) (MediaStatus, error)

	CreateAds(ctx context.Context, accessToken, adAccountID string, reqs []AdCreate) ([]AdResult, error)

	Analytics(ctx context.Context, accessToken, adAccountID string, req AnalyticsRequest) (map[string]CampaignAnalytics, error)

	ListBoards(ctx context.Context, accessToken, adAccountID string) ([]Board, error)
}

// TokenBundle is the OAuth2 token pair returned by a refresh exchange.
type TokenBundle struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Campaign mirrors the ad platform's campaign resource.
type Campaign struct {
	ID                 string
	Name               string
	Status             model.CampaignStatus
	DailyBudgetMicro   int64
	ObjectiveType      string
	TrackingURLs       []string
}

// CampaignPatch is a partial update to a campaign.
type CampaignPatch struct {
	Status           *model.CampaignStatus
	DailyBudgetMicro *int64
}

// CampaignCreate is the request to create a new campaign, used by the
// winner scaler (§4.F) to clone an original campaign's objective and
// tracking settings onto a new one.
type CampaignCreate struct {
	Name             string
	Status           model.CampaignStatus
	ObjectiveType    string
	DailyBudgetMicro int64
	TrackingURLs     []string
}

// AdGroup mirrors the ad platform's ad-group resource, including the
// targeting/bidding fields Pipeline F needs to clone from an original
// campaign.
type AdGroup struct {
	ID                       string
	CampaignID               string
	Status                   model.CampaignStatus
	BillableEvent            string
	BidStrategyType          string
	TargetingSpec            map[string]any
	OptimizationGoalMetadata map[string]any
	AutoTargetingEnabled     bool
	PacingDeliveryType       string
}

// AdGroupCreate is the request body for creating an ad group.
type AdGroupCreate struct {
	CampaignID               string
	Name                     string
	BillableEvent            string
	BidStrategyType          string
	DailyBudgetMicro         int64
	TargetingSpec            map[string]any
	OptimizationGoalMetadata map[string]any
	AutoTargetingEnabled     bool
	PacingDeliveryType       string
}

// AdGroupPatch is a partial update to an ad group.
type AdGroupPatch struct {
	Status *model.CampaignStatus
}

// PinCreate is the request to create an organic pin, referencing media by
// exactly one of ImageURL, ImageBase64, or VideoMediaID.
type PinCreate struct {
	BoardID      string
	Title        string
	Description  string
	LinkURL      string
	ImageURL     string
	ImageBase64  string
	VideoMediaID string
}

// Pin is the created pin's id.
type Pin struct {
	ID string
}

// MediaUpload is the response to a media-register call: a signed upload
// target and its one-time form parameters.
type MediaUpload struct {
	MediaID          string
	UploadURL        string
	UploadParameters map[string]string
}

// MediaStatus is the polled state of a registered media upload.
type MediaStatus struct {
	Status string // "registered", "uploading", "succeeded", "failed"
}

// AdCreate is one entry of a batched ad-creation request.
type AdCreate struct {
	AdGroupID string
	PinID     string
	Name      string
}

// AdResult is one entry of a batched ad-creation response.
type AdResult struct {
	AdID    string
	Success bool
	Error   string
}

// AnalyticsRequest describes the metrics window Pipeline E pulls.
type AnalyticsRequest struct {
	CampaignIDs []string
	Start       time.Time
	End         time.Time
}

// CampaignAnalytics is the analytics row for a single campaign.
type CampaignAnalytics struct {
	SpendMicro               int64
	TotalConversions         int
	TotalConversionsValueMicro int64
}

// SpendUSD returns the spend in whole-currency units.
func (a CampaignAnalytics) SpendUSD() float64 {
	return float64(a.SpendMicro) / 1_000_000
}

// ConversionValueUSD returns the conversion value in whole-currency units.
func (a CampaignAnalytics) ConversionValueUSD() float64 {
	return float64(a.TotalConversionsValueMicro) / 1_000_000
}

// Board is an ad-platform board a pin can be created on.
type Board struct {
	ID   string
	Name string
}

// Option configures the client.
type Option func(*client)

// WithRateLimit overrides the default ad-platform rate limit (2 req/s).
func WithRateLimit(rps float64) Option {
	return func(c *client) { c.rps = rps }
}

// WithHTTPXClient overrides the shared transport (tests, custom retry
// policy).
func WithHTTPXClient(h *httpx.Client) Option {
	return func(c *client) { c.http = h }
}

// WithCircuitBreaker overrides the default per-host circuit breaker policy
// that guards every ad-platform call.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *client) { c.circuit = &cfg }
}

type client struct {
	baseURL      string
	clientID     string
	clientSecret string
	rps          float64
	circuit      *resilience.CircuitBreakerConfig
	http         *httpx.Client
}

// NewClient builds an ad-platform client against baseURL, using clientID
// and clientSecret for the OAuth2 refresh exchange.
func NewClient(baseURL, clientID, clientSecret string, opts ...Option) Client {
	c := &client{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		rps:          2,
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		httpOpts := []httpx.Option{
			httpx.WithUserAgent("fleet-adplatform/1.0"),
			httpx.WithRateLimiters(ratelimit.NewRegistry(c.rps, max(int(c.rps), 1))),
		}
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

func bearer(accessToken string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+accessToken)
	return h
}

func (c *client) RefreshToken(ctx context.Context, refreshToken string) (TokenBundle, error) {
	body := map[string]any{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	}
	var out struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := c.http.DoJSON(ctx, http.MethodPost, c.url("/v5/oauth/token"), nil, body, &out); err != nil {
		return TokenBundle{}, fmt.Errorf("adplatform: refresh token: %w", err)
	}
	return TokenBundle{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(out.ExpiresIn) * time.Second),
	}, nil
}

func (c *client) GetCampaign(ctx context.Context, accessToken, adAccountID, campaignID string) (Campaign, error) {
	path := fmt.Sprintf("/v5/ad_accounts/%s/campaigns/%s", adAccountID, campaignID)
	var out campaignWire
	if err := c.http.DoJSON(ctx, http.MethodGet, c.url(path), bearer(accessToken), nil, &out); err != nil {
		return Campaign{}, fmt.Errorf("adplatform: get campaign %s: %w", campaignID, err)
	}
	return out.toCampaign(), nil
}

func (c *client) ListCampaigns(ctx context.Context, accessToken, adAccountID string) ([]Campaign, error) {
	path := fmt.Sprintf("/v5/ad_accounts/%s/campaigns", adAccountID)
	var out struct {
		Items []campaignWire `json:"items"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, c.url(path), bearer(accessToken), nil, &out); err != nil {
		return nil, fmt.Errorf("adplatform: list campaigns: %w", err)
	}
	campaigns := make([]Campaign, 0, len(out.Items))
	for _, w := range out.Items {
		campaigns = append(campaigns, w.toCampaign())
	}
	return campaigns, nil
}

func (c *client) CreateCampaign(ctx context.Context, accessToken, adAccountID string, req CampaignCreate) (Campaign, error) {
	path := fmt.Sprintf("/v5/ad_accounts/%s/campaigns", adAccountID)
	status := req.Status
	if status == "" {
		status = model.CampaignStatusActive
	}
	body := map[string]any{
		"name":            req.Name,
		"status":          string(status),
		"objective_type":  req.ObjectiveType,
		"daily_spend_cap": req.DailyBudgetMicro,
		"tracking_urls":   req.TrackingURLs,
	}
	var out campaignWire
	if err := c.http.DoJSON(ctx, http.MethodPost, c.url(path), bearer(accessToken), body, &out); err != nil {
		return Campaign{}, fmt.Errorf("adplatform: create campaign: %w", err)
	}
	return out.toCampaign(), nil
}

func (c *client) PatchCampaign(ctx context.Context, accessToken, adAccountID, campaignID string, patch CampaignPatch) error {
	path := fmt.Sprintf("/v5/ad_accounts/%s/campaigns/%s", adAccountID, campaignID)
	body := map[string]any{}
	if patch.Status != nil {
		body["status"] = string(*patch.Status)
	}
	if patch.DailyBudgetMicro != nil {
		body["daily_spend_cap"] = *patch.DailyBudgetMicro
	}
	if err := c.http.DoJSON(ctx, http.MethodPatch, c.url(path), bearer(accessToken), body, nil); err != nil {
		return fmt.Errorf("adplatform: patch campaign %s: %w", campaignID, err)
	}
	return nil
}
