// Package store persists and retrieves every tagged record in
// internal/model across the sixteen tables named in §6: tenants,
// tenant_rules, tracked_collections, campaign_batch_assignments,
// product_sales, pinterest_auth, pinterest_ad_accounts, pinterest_campaigns,
// pinterest_sync_log, optimization_settings, optimization_rules,
// optimization_log, winner_products, winner_campaigns, winner_scaling_log,
// job_runs.
package store

import (
	"context"
	"time"

	"github.com/sellsadvisors/fleet/internal/model"
)

// Store is the persistence boundary every pipeline is built against. Both
// backends (postgres, sqlite) implement it identically so a tenant's
// lifecycle tests can run against sqlite without a network dependency.
type Store interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error

	// Tenants
	GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error)
	ListActiveTenants(ctx context.Context) ([]model.Tenant, error)
	GetTenantRules(ctx context.Context, tenantID string) (*model.TenantRules, error)
	ListTrackedCollections(ctx context.Context, tenantID string) ([]model.TrackedCollection, error)
	ListCampaignBatchAssignments(ctx context.Context, tenantID string) ([]model.CampaignBatchAssignment, error)

	// Sales
	UpsertProductSales(ctx context.Context, rows []model.ProductSales) error
	GetProductSales(ctx context.Context, tenantID, collectionID, productID string) (*model.ProductSales, error)
	ListProductSales(ctx context.Context, tenantID, collectionID string) ([]model.ProductSales, error)

	// Ad platform
	GetPinterestAuth(ctx context.Context, tenantID string) (*model.PinterestAuth, error)
	SavePinterestAuth(ctx context.Context, auth model.PinterestAuth) error
	GetAdAccountSelection(ctx context.Context, tenantID string) (*model.AdAccountSelection, error)
	UpsertAdPlatformCampaign(ctx context.Context, c model.AdPlatformCampaign) error
	GetAdPlatformCampaign(ctx context.Context, tenantID, campaignID string) (*model.AdPlatformCampaign, error)
	ListAdPlatformCampaigns(ctx context.Context, tenantID string) ([]model.AdPlatformCampaign, error)
	InsertPinterestSyncLog(ctx context.Context, log model.PinterestSyncLog) error
	GetActiveSyncLog(ctx context.Context, tenantID, campaignID, productID string) (*model.PinterestSyncLog, error)
	ListActiveSyncLogs(ctx context.Context, tenantID, campaignID string) ([]model.PinterestSyncLog, error)
	PauseSyncLog(ctx context.Context, id string) error
	// GetMostRecentSyncLog locates the original campaign a winner was last
	// synced under, regardless of paused state, to clone its settings (§4.F
	// "Campaign creation").
	GetMostRecentSyncLog(ctx context.Context, tenantID, productID string) (*model.PinterestSyncLog, error)

	// Campaign-pause cleanup (§4.D)
	DeleteProductSalesByCollection(ctx context.Context, tenantID, collectionID string) error
	DeleteCampaignBatchAssignment(ctx context.Context, id string) error

	// Optimization
	GetOptimizationSettings(ctx context.Context, tenantID string) (*model.OptimizationSettings, error)
	ListOptimizationRules(ctx context.Context, tenantID string) ([]model.OptimizationRule, error)
	InsertOptimizationLog(ctx context.Context, entry model.OptimizationLogEntry) error

	// Winners
	GetWinnerScalingSettings(ctx context.Context, tenantID string) (*model.WinnerScalingSettings, error)
	UpsertWinnerProduct(ctx context.Context, w model.WinnerProduct) error
	ListWinnerProducts(ctx context.Context, tenantID string) ([]model.WinnerProduct, error)
	// CountWinnerCampaigns counts campaigns with Status ACTIVE for the given
	// product and modality, after local-status reconciliation (§4.F
	// "Per-winner refill loop").
	CountWinnerCampaigns(ctx context.Context, tenantID, productID string, kind model.WinnerCreativeKind) (int, error)
	ListWinnerCampaigns(ctx context.Context, tenantID, productID string) ([]model.WinnerCampaign, error)
	UpdateWinnerCampaignStatus(ctx context.Context, id string, status model.CampaignStatus) error
	InsertWinnerCampaign(ctx context.Context, c model.WinnerCampaign) error
	InsertWinnerScalingLog(ctx context.Context, entry model.WinnerScalingLogEntry) error

	// Job run ledger (Pipeline A)
	OpenJobRun(ctx context.Context, pipeline model.PipelineName, tenantID string) (*model.JobRun, error)
	CloseJobRun(ctx context.Context, run *model.JobRun) error
	GetJobRun(ctx context.Context, id string) (*model.JobRun, error)
	ListRecentJobRuns(ctx context.Context, pipeline model.PipelineName, since time.Time) ([]model.JobRun, error)
	ListStaleRunningJobRuns(ctx context.Context, olderThan time.Time) ([]model.JobRun, error)
}
