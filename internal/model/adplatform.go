package model

import "time"

// PinterestAuth is the per-tenant OAuth token bundle for the ad platform.
type PinterestAuth struct {
	TenantID     string    `json:"tenant_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the token is expired as of the given instant.
func (a PinterestAuth) Expired(asOf time.Time) bool {
	return !a.ExpiresAt.IsZero() && !asOf.Before(a.ExpiresAt)
}

// AdAccountSelection records the single ad account a tenant has selected.
// Exactly one row is marked Selected per tenant.
type AdAccountSelection struct {
	TenantID    string `json:"tenant_id"`
	AdAccountID string `json:"ad_account_id"`
	Selected    bool   `json:"selected"`
	BoardID     string `json:"board_id"` // the tenant's configured pin board (§4.D step 3)
}

// CampaignStatus mirrors the ad platform's campaign lifecycle states.
type CampaignStatus string

const (
	CampaignStatusActive CampaignStatus = "ACTIVE"
	CampaignStatusPaused CampaignStatus = "PAUSED"
)

// AdPlatformCampaign mirrors ad-platform campaign metadata locally so the
// optimizer and sync pipelines can reason about budgets without an API call
// per decision.
type AdPlatformCampaign struct {
	TenantID            string         `json:"tenant_id"`
	PinterestCampaignID string         `json:"pinterest_campaign_id"`
	Name                string         `json:"name"`
	Status              CampaignStatus `json:"status"`
	DailyBudgetMicro    int64          `json:"daily_budget_micro"`
	CreatedAt           time.Time      `json:"created_at"`
}

// DailyBudget returns the campaign's daily budget in whole currency units.
func (c AdPlatformCampaign) DailyBudget() float64 {
	return float64(c.DailyBudgetMicro) / 1_000_000
}

// MicroFromCurrency converts a whole-currency amount to the platform's
// micro-currency integer encoding (§Glossary "Micro-currency").
func MicroFromCurrency(amount float64) int64 {
	return int64(amount*1_000_000 + 0.5)
}

// PinterestSyncLog is an immutable record per product-pin creation attempt.
// Invariant: at most one row with Paused=false per (tenant, campaign, product).
type PinterestSyncLog struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	CampaignID string    `json:"campaign_id"`
	ProductID  string    `json:"product_id"`
	BoardID    string    `json:"board_id"`
	PinID      string    `json:"pin_id,omitempty"`
	AdID       string    `json:"ad_id,omitempty"`
	AdGroupID  string    `json:"ad_group_id,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	SyncedAt   time.Time `json:"synced_at"`
	Paused     bool      `json:"paused"`
}
