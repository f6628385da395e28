// Package salestracker implements Pipeline B: it pulls order history for
// every tracked collection's products and rolls it into the per-product
// ProductSales aggregates Pipelines C, E, and F consume.
package salestracker

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sellsadvisors/fleet/internal/cache"
	"github.com/sellsadvisors/fleet/internal/jobrun"
	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/internal/store"
	"github.com/sellsadvisors/fleet/pkg/commerce"
)

// CommerceFactory builds a commerce-platform client scoped to one tenant's
// shop and access token.
type CommerceFactory func(tenant model.Tenant) commerce.Client

// Runner drives Pipeline B across every tenant with at least one
// CampaignBatchAssignment (§4.B inputs).
type Runner struct {
	Store       store.Store
	Ledger      *jobrun.Ledger
	Commerce    CommerceFactory
	// Cache holds the tenant's shop timezone across runs, sparing a shop
	// metadata call on every invocation. Optional; nil always refetches.
	Cache       *cache.Cache
	Clock       func() time.Time
	Concurrency int // bounded fan-out width, §5 recommends 2-10
}

// NewRunner builds a Runner with sensible defaults.
func NewRunner(st store.Store, commerceFactory CommerceFactory) *Runner {
	return &Runner{
		Store:       st,
		Ledger:      jobrun.NewLedger(st),
		Commerce:    commerceFactory,
		Clock:       time.Now,
		Concurrency: 8,
	}
}

// Summary aggregates counters across every tenant task in one invocation,
// recorded in each tenant's JobRun metadata and rolled up for the caller.
type Summary struct {
	TenantsProcessed int64
	TenantsFailed    int64
	ProductsScanned  int64
	ProductFailures  int64
}

// Run processes every eligible tenant concurrently, bounded by Concurrency,
// and returns once every tenant task has finished. Per-tenant failures are
// isolated: one tenant's outage never aborts the others (§4.B failure
// semantics).
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	tenants, err := r.Store.ListActiveTenants(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "salestracker: list active tenants")
	}

	summary := &Summary{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Concurrency, 1))

	for _, tenant := range tenants {
		assignments, err := r.Store.ListCampaignBatchAssignments(ctx, tenant.ID)
		if err != nil {
			zap.L().Error("salestracker: list assignments", zap.String("tenant_id", tenant.ID), zap.Error(err))
			continue
		}
		if len(assignments) == 0 {
			continue
		}
		collections := collectionIDs(assignments)

		g.Go(func() error {
			r.runTenant(gctx, tenant, collections, summary)
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("salestracker: run complete",
		zap.Int64("tenants_processed", summary.TenantsProcessed),
		zap.Int64("tenants_failed", summary.TenantsFailed),
		zap.Int64("products_scanned", summary.ProductsScanned),
	)
	return summary, nil
}

func collectionIDs(assignments []model.CampaignBatchAssignment) []string {
	seen := make(map[string]bool, len(assignments))
	var out []string
	for _, a := range assignments {
		if seen[a.CollectionID] {
			continue
		}
		seen[a.CollectionID] = true
		out = append(out, a.CollectionID)
	}
	return out
}

// shopTimezone returns the tenant's shop timezone, preferring a cache hit
// over the commerce-platform metadata call the hot per-tenant loop would
// otherwise repeat on every invocation.
func (r *Runner) shopTimezone(ctx context.Context, client commerce.Client, tenantID string) (string, error) {
	if r.Cache != nil {
		if tz, ok, err := r.Cache.GetShopTimezone(ctx, tenantID); err == nil && ok {
			return tz, nil
		}
	}
	shop, err := client.ShopMetadata(ctx)
	if err != nil {
		return "", err
	}
	if r.Cache != nil {
		if err := r.Cache.SetShopTimezone(ctx, tenantID, shop.Timezone); err != nil {
			zap.L().Warn("salestracker: cache shop timezone failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
	return shop.Timezone, nil
}

func (r *Runner) runTenant(ctx context.Context, tenant model.Tenant, collectionIDs []string, summary *Summary) {
	run, err := r.Ledger.Open(ctx, model.PipelineSalesTracker, tenant.ID)
	if err != nil {
		zap.L().Error("salestracker: open job run", zap.String("tenant_id", tenant.ID), zap.Error(err))
		return
	}
	atomic.AddInt64(&summary.TenantsProcessed, 1)

	client := r.Commerce(tenant)
	timezone, err := r.shopTimezone(ctx, client, tenant.ID)
	if err != nil {
		run.AppendError(eris.Wrap(err, "salestracker: fetch shop metadata").Error())
		atomic.AddInt64(&summary.TenantsFailed, 1)
		_ = r.Ledger.Close(ctx, run, true)
		return
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		zap.L().Warn("salestracker: unknown shop timezone, defaulting to UTC",
			zap.String("tenant_id", tenant.ID), zap.String("timezone", timezone))
		loc = time.UTC
	}

	productsScanned := 0
	for _, collectionID := range collectionIDs {
		products, err := client.ListCollectionProducts(ctx, collectionID)
		if err != nil {
			run.AppendError(eris.Wrapf(err, "salestracker: list products for collection %s", collectionID).Error())
			continue
		}

		var rows []model.ProductSales
		for _, product := range products {
			row, err := r.buildProductSalesRow(ctx, client, tenant.ID, collectionID, product, loc)
			if err != nil {
				run.AppendError(eris.Wrapf(err, "salestracker: product %s", product.ID).Error())
				atomic.AddInt64(&summary.ProductFailures, 1)
				continue
			}
			rows = append(rows, row)
			productsScanned++
		}

		if len(rows) > 0 {
			if err := r.Store.UpsertProductSales(ctx, rows); err != nil {
				run.AppendError(eris.Wrapf(err, "salestracker: persist collection %s", collectionID).Error())
				atomic.AddInt64(&summary.ProductFailures, int64(len(rows)))
			}
		}
	}
	atomic.AddInt64(&summary.ProductsScanned, int64(productsScanned))

	if len(run.ErrorLog) > 0 {
		atomic.AddInt64(&summary.TenantsFailed, 1)
	}
	run.Metadata = map[string]any{
		"products_scanned": productsScanned,
		"collections":      len(collectionIDs),
	}
	if err := r.Ledger.Close(ctx, run, false); err != nil {
		zap.L().Error("salestracker: close job run", zap.String("tenant_id", tenant.ID), zap.Error(err))
	}
}

// buildProductSalesRow resolves the anchor date, pulls and converges order
// lines from every available source, and buckets them into the refreshed
// aggregate for one product (§4.B steps 3-6). Callers batch the returned
// rows across a whole collection into a single UpsertProductSales call
// rather than persisting one product at a time.
func (r *Runner) buildProductSalesRow(ctx context.Context, client commerce.Client, tenantID, collectionID string, product commerce.Product, loc *time.Location) (model.ProductSales, error) {
	now := r.Clock().UTC()

	existing, err := r.Store.GetProductSales(ctx, tenantID, collectionID, product.ID)
	anchor := now
	if err == nil && existing != nil {
		anchor = existing.DateAddedToCollection
	}

	lines, err := fetchConvergedOrderLines(ctx, client, product.ID, anchor)
	if err != nil {
		return model.ProductSales{}, eris.Wrap(err, "fetch order lines")
	}

	buckets := bucketOrderLines(lines, anchor, now, loc)

	row := model.ProductSales{
		TenantID:              tenantID,
		CollectionID:          collectionID,
		ProductID:             product.ID,
		ProductTitle:          product.Title,
		DateAddedToCollection: anchor,
		LastUpdate:            now,
	}
	buckets.Apply(&row)
	return row, nil
}
