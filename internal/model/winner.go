package model

import "time"

// WinnerProduct is a product that has cleared the winner-identification
// thresholds for at least MinBucketsRequired of its four sales buckets
// (§4.F). BucketsPassed is always in 0..4.
type WinnerProduct struct {
	TenantID     string `json:"tenant_id"`
	CollectionID string `json:"collection_id"`
	ProductID    string `json:"product_id"`
	ProductTitle string `json:"product_title"`
	ImageURL     string `json:"image_url"`

	BucketsPassed int `json:"buckets_passed"`

	IdentifiedAt time.Time `json:"identified_at"`
}

// WinnerCreativeKind identifies the modality of a generated winner creative.
type WinnerCreativeKind string

const (
	WinnerCreativeVideo WinnerCreativeKind = "video"
	WinnerCreativeImage WinnerCreativeKind = "image"
)

// WinnerCampaign is one ad-platform campaign spawned by the scaler for a
// winner product in a specific modality. Invariant: per (tenant, product,
// kind), CampaignsSpawned never exceeds the settings cap for that modality.
type WinnerCampaign struct {
	ID         string             `json:"id"`
	TenantID   string             `json:"tenant_id"`
	ProductID  string             `json:"product_id"`
	Kind       WinnerCreativeKind `json:"kind"`
	CampaignID string             `json:"pinterest_campaign_id"`
	Status     CampaignStatus     `json:"status"`

	CreativeAssetURL string `json:"creative_asset_url"`
	LinkedToProduct  bool   `json:"linked_to_product"`
	LinkedToCollection bool `json:"linked_to_collection"`

	CreatedAt time.Time `json:"created_at"`
}

// OriginalCampaignSpec is the subset of an existing ad-platform campaign
// and its primary ad group that Pipeline F clones into a new winner
// campaign (§4.F "Campaign creation").
type OriginalCampaignSpec struct {
	ObjectiveType            string
	TrackingURLs             []string
	BillableEvent            string
	BidStrategyType          string
	TargetingSpec            map[string]any
	OptimizationGoalMetadata map[string]any
	AutoTargetingEnabled     bool
	PacingDeliveryType       string
}

// CreativeGenerationRequest is the payload submitted to the AI creative
// service for one winner/modality pair.
type CreativeGenerationRequest struct {
	TenantID    string
	ProductID   string
	Kind        WinnerCreativeKind
	SourceImage string // object storage URL of the base product image
	Prompt      string
}

// CreativeGenerationResult is the terminal outcome of an async creative
// generation job, polled via the pattern in pkg/aicreative.
type CreativeGenerationResult struct {
	AssetURL string
	Failed   bool
	Error    string
}

// WinnerScalingLogEntry is the audit row written for every winner/modality
// decision the scaler makes, including skips (cap reached, modality
// disabled, creative generation failed).
type WinnerScalingLogEntry struct {
	ID         string             `json:"id"`
	TenantID   string             `json:"tenant_id"`
	ProductID  string             `json:"product_id"`
	Kind       WinnerCreativeKind `json:"kind"`
	Outcome    string             `json:"outcome"` // "campaign_created", "cap_reached", "modality_disabled", "creative_failed"
	CampaignID string             `json:"campaign_id,omitempty"`
	Error      string             `json:"error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}
