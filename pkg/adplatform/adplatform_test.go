package adplatform

import (
	"context"
	"testing"

	"github.com/sellsadvisors/fleet/internal/model"
)

func TestCampaignWireToCampaign(t *testing.T) {
	w := campaignWire{
		ID:            "c1",
		Name:          "Winter sale",
		Status:        "ACTIVE",
		DailySpendCap: 5_000_000,
		ObjectiveType: "CONVERSIONS",
		TrackingURLs:  []string{"https://example.com/track"},
	}
	got := w.toCampaign()
	if got.Status != model.CampaignStatusActive {
		t.Fatalf("status = %v, want ACTIVE", got.Status)
	}
	if got.DailyBudgetMicro != 5_000_000 {
		t.Fatalf("daily budget micro = %d, want 5000000", got.DailyBudgetMicro)
	}
}

func TestCampaignAnalyticsConversions(t *testing.T) {
	a := CampaignAnalytics{
		SpendMicro:                 2_500_000,
		TotalConversions:           10,
		TotalConversionsValueMicro: 7_500_000,
	}
	if got := a.SpendUSD(); got != 2.5 {
		t.Fatalf("SpendUSD = %v, want 2.5", got)
	}
	if got := a.ConversionValueUSD(); got != 7.5 {
		t.Fatalf("ConversionValueUSD = %v, want 7.5", got)
	}
}

// stubClient implements Client, returning a fixed TokenBundle from
// RefreshToken and failing every other method (unused by this test).
type stubClient struct {
	bundle TokenBundle
}

func (s stubClient) RefreshToken(ctx context.Context, refreshToken string) (TokenBundle, error) {
	return s.bundle, nil
}
func (s stubClient) GetCampaign(ctx context.Context, accessToken, adAccountID, campaignID string) (Campaign, error) {
	panic("not used")
}
func (s stubClient) ListCampaigns(ctx context.Context, accessToken, adAccountID string) ([]Campaign, error) {
	panic("not used")
}
func (s stubClient) CreateCampaign(ctx context.Context, accessToken, adAccountID string, req CampaignCreate) (Campaign, error) {
	panic("not used")
}
func (s stubClient) PatchCampaign(ctx context.Context, accessToken, adAccountID, campaignID string, patch CampaignPatch) error {
	panic("not used")
}
func (s stubClient) ListAdGroups(ctx context.Context, accessToken, adAccountID, campaignID string) ([]AdGroup, error) {
	panic("not used")
}
func (s stubClient) CreateAdGroup(ctx context.Context, accessToken, adAccountID string, req AdGroupCreate) (AdGroup, error) {
	panic("not used")
}
func (s stubClient) PatchAdGroup(ctx context.Context, accessToken, adAccountID, adGroupID string, patch AdGroupPatch) error {
	panic("not used")
}
func (s stubClient) CreatePin(ctx context.Context, accessToken string, req PinCreate) (Pin, error) {
	panic("not used")
}
func (s stubClient) RegisterMediaUpload(ctx context.Context, accessToken, adAccountID string) (MediaUpload, error) {
	panic("not used")
}
func (s stubClient) UploadMedia(ctx context.Context, uploadURL string, uploadParameters map[string]string, mediaBytes []byte, filename string) error {
	panic("not used")
}
func (s stubClient) PollMediaStatus(ctx context.Context, accessToken, adAccountID, mediaID string) (MediaStatus, error) {
	panic("not used")
}
func (s stubClient) CreateAds(ctx context.Context, accessToken, adAccountID string, reqs []AdCreate) ([]AdResult, error) {
	panic("not used")
}
func (s stubClient) Analytics(ctx context.Context, accessToken, adAccountID string, req AnalyticsRequest) (map[string]CampaignAnalytics, error) {
	panic("not used")
}
func (s stubClient) ListBoards(ctx context.Context, accessToken, adAccountID string) ([]Board, error) {
	panic("not used")
}

func TestRefresherTranslatesTokenBundle(t *testing.T) {
	stub := stubClient{bundle: TokenBundle{AccessToken: "new-token", RefreshToken: "new-refresh"}}
	r := NewRefresher(stub)

	auth, err := r.Refresh(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth.AccessToken != "new-token" || auth.RefreshToken != "new-refresh" {
		t.Fatalf("unexpected auth: %+v", auth)
	}
}
