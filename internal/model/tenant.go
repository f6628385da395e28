// Package model defines the tagged records for every entity the fleet
// operates on: tenants, sales aggregates, ad-platform mirrors, optimization
// rules, winners, and the job-run ledger.
package model

import "time"

// Tenant is a merchant account the fleet operates on behalf of. Tenants are
// created by the web tier; the core treats them as read-only.
type Tenant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ShopHostname string `json:"shop_hostname"`
	AccessToken  string `json:"access_token"`
	Active       bool   `json:"active"`
}

// TenantRules holds the per-tenant lifecycle thresholds consumed by the
// replacement engine (Pipeline C) and the tenant's operating mode flags.
type TenantRules struct {
	TenantID string `json:"tenant_id"`

	StartPhaseDays int `json:"start_phase_days"`
	PostPhaseDays  int `json:"post_phase_days"`

	MinSalesDay7Delete  int `json:"min_sales_day7_delete"`
	MinSalesDay7Replace int `json:"min_sales_day7_replace"`

	Avg3OK  int `json:"avg3_ok"`
	Avg7OK  int `json:"avg7_ok"`
	Avg10OK int `json:"avg10_ok"`
	Avg14OK int `json:"avg14_ok"`

	MinOKBuckets int `json:"min_ok_buckets"`

	LoserThreshold int `json:"loser_threshold"`

	QueueTag string `json:"queue_tag"` // defaults to "QK"

	OptimizationEnabled bool `json:"optimization_enabled"`
	TestMode            bool `json:"test_mode"`
}

// QueueTagOrDefault returns the tenant's queue tag, falling back to the
// default "QK" when unset.
func (r TenantRules) QueueTagOrDefault() string {
	if r.QueueTag == "" {
		return "QK"
	}
	return r.QueueTag
}

// TrackedCollection is a commerce-platform collection the tenant has
// elected to track sales for.
type TrackedCollection struct {
	ID           string `json:"id"`
	TenantID     string `json:"tenant_id"`
	CollectionID string `json:"collection_id"`
}

// CampaignBatchAssignment binds a tenant's ad campaign to one or more
// collection batches. It is the central driver of Pipelines C and D.
type CampaignBatchAssignment struct {
	ID           string `json:"id"`
	TenantID     string `json:"tenant_id"`
	CampaignID   string `json:"campaign_id"`   // ad-platform campaign id
	CollectionID string `json:"collection_id"` // commerce-platform collection id
	BatchIndices []int  `json:"batch_indices"`
	BatchSize    int    `json:"batch_size"`
}

// WinnerScalingSettings configures Pipeline F's identification thresholds
// and per-modality campaign caps. The source carries two inconsistent field
// shapes for the caps (DESIGN.md "open question"); the per-modality form is
// canonical, with MaxCampaignsPerWinner used as a fallback split evenly
// across image/video when the per-modality fields are zero.
type WinnerScalingSettings struct {
	TenantID string `json:"tenant_id"`

	Threshold3Day  int `json:"t3"`
	Threshold7Day  int `json:"t7"`
	Threshold10Day int `json:"t10"`
	Threshold14Day int `json:"t14"`

	MinBucketsRequired int `json:"min_buckets_required"` // 1-4

	MaxCampaignsPerWinner      int `json:"max_campaigns_per_winner"`       // legacy fallback
	MaxCampaignsPerWinnerVideo int `json:"max_campaigns_per_winner_video"` // preferred
	MaxCampaignsPerWinnerImage int `json:"max_campaigns_per_winner_image"` // preferred

	VideoEnabled      bool `json:"video_enabled"`
	ImageEnabled      bool `json:"image_enabled"`
	LinkTypeProduct   bool `json:"link_type_product"`
	LinkTypeCollection bool `json:"link_type_collection"`
}

// MaxVideoCampaigns resolves the per-modality cap, falling back to an even
// split of the legacy single cap when the per-modality field is unset.
func (s WinnerScalingSettings) MaxVideoCampaigns() int {
	if s.MaxCampaignsPerWinnerVideo > 0 {
		return s.MaxCampaignsPerWinnerVideo
	}
	return s.MaxCampaignsPerWinner / 2
}

// MaxImageCampaigns resolves the per-modality cap, falling back to an even
// split of the legacy single cap when the per-modality field is unset.
func (s WinnerScalingSettings) MaxImageCampaigns() int {
	if s.MaxCampaignsPerWinnerImage > 0 {
		return s.MaxCampaignsPerWinnerImage
	}
	return s.MaxCampaignsPerWinner - s.MaxCampaignsPerWinner/2
}

// ShopTimezone caches a tenant's IANA timezone for the duration of a single
// pipeline run; Pipeline B reads it once per tenant per invocation.
type ShopTimezone struct {
	TenantID string
	IANAName string
	CachedAt time.Time
}
