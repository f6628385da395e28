// Package adsync implements Pipeline D: forward-syncs tracked collection
// batches into ad-platform pins and ads, then reverse-syncs by pausing ads
// whose products have fallen out of the current batch (§4.D).
package adsync

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sellsadvisors/fleet/internal/adauth"
	"github.com/sellsadvisors/fleet/internal/httpx"
	"github.com/sellsadvisors/fleet/internal/imaging"
	"github.com/sellsadvisors/fleet/internal/jobrun"
	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/internal/store"
	"github.com/sellsadvisors/fleet/pkg/adplatform"
	"github.com/sellsadvisors/fleet/pkg/commerce"
)

// CommerceFactory builds a commerce-platform client scoped to one tenant.
type CommerceFactory func(tenant model.Tenant) commerce.Client

// Runner drives Pipeline D across every tenant with a connected ad-platform
// auth and a selected ad account.
type Runner struct {
	Store       store.Store
	Ledger      *jobrun.Ledger
	Commerce    CommerceFactory
	AdPlatform  adplatform.Client
	Tokens      *adauth.TokenSource
	HTTP        *httpx.Client // plain, unauthenticated downloads of product CDN images
	Clock       func() time.Time
	Sleep       func(time.Duration)
	Concurrency int // bounded tenant fan-out, §5 recommends 2-10

	ProductsPerPage int           // collection-page URL pagination (§4.D step 3)
	MinPinInterval  time.Duration // ≥0.5s throttle between pin creations (§4.D step 4)
}

// NewRunner builds a Runner with sensible defaults.
func NewRunner(st store.Store, commerceFactory CommerceFactory, ad adplatform.Client, tokens *adauth.TokenSource) *Runner {
	return &Runner{
		Store:           st,
		Ledger:          jobrun.NewLedger(st),
		Commerce:        commerceFactory,
		AdPlatform:      ad,
		Tokens:          tokens,
		HTTP:            httpx.New(httpx.WithUserAgent("fleet-adsync/1.0")),
		Clock:           time.Now,
		Sleep:           time.Sleep,
		Concurrency:     6,
		ProductsPerPage: 24,
		MinPinInterval:  500 * time.Millisecond,
	}
}

// Summary aggregates counters across every tenant task in one invocation.
type Summary struct {
	TenantsProcessed int64
	TenantsFailed    int64
	PinsCreated      int64
	AdsCreated       int64
	AdsPaused        int64
}

// Run processes every eligible tenant concurrently, bounded by Concurrency.
// Within one tenant, campaigns are processed serially (§5 concurrency
// model: "external API calls are serial [within a tenant] to keep
// per-token rate-limit accounting simple").
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	tenants, err := r.Store.ListActiveTenants(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "adsync: list active tenants")
	}

	summary := &Summary{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Concurrency, 1))

	for _, tenant := range tenants {
		tenant := tenant
		g.Go(func() error {
			r.runTenant(gctx, tenant, summary)
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("adsync: run complete",
		zap.Int64("tenants_processed", summary.TenantsProcessed),
		zap.Int64("pins_created", summary.PinsCreated),
		zap.Int64("ads_paused", summary.AdsPaused),
	)
	return summary, nil
}

func (r *Runner) runTenant(ctx context.Context, tenant model.Tenant, summary *Summary) {
	account, err := r.Store.GetAdAccountSelection(ctx, tenant.ID)
	if err != nil || account == nil || !account.Selected {
		return // no connected ad account: not an error, just not eligible (§4.D inputs)
	}

	assignments, err := r.Store.ListCampaignBatchAssignments(ctx, tenant.ID)
	if err != nil {
		zap.L().Error("adsync: list assignments", zap.String("tenant_id", tenant.ID), zap.Error(err))
		return
	}
	if len(assignments) == 0 {
		return
	}

	campaigns, err := r.Store.ListAdPlatformCampaigns(ctx, tenant.ID)
	if err != nil {
		zap.L().Error("adsync: list campaigns", zap.String("tenant_id", tenant.ID), zap.Error(err))
		return
	}
	activeCampaign := make(map[string]model.AdPlatformCampaign, len(campaigns))
	for _, c := range campaigns {
		if c.Status == model.CampaignStatusActive {
			activeCampaign[c.PinterestCampaignID] = c
		}
	}

	run, err := r.Ledger.Open(ctx, model.PipelineAdSync, tenant.ID)
	if err != nil {
		zap.L().Error("adsync: open job run", zap.String("tenant_id", tenant.ID), zap.Error(err))
		return
	}
	atomic.AddInt64(&summary.TenantsProcessed, 1)

	token, err := r.Tokens.AccessToken(ctx, tenant.ID)
	if err != nil {
		run.AppendError(eris.Wrap(err, "adsync: acquire access token").Error())
		atomic.AddInt64(&summary.TenantsFailed, 1)
		_ = r.Ledger.Close(ctx, run, true)
		return
	}

	commerceClient := r.Commerce(tenant)
	for _, assignment := range assignments {
		if _, ok := activeCampaign[assignment.CampaignID]; !ok {
			continue
		}
		if err := r.syncCampaign(ctx, tenant, token, account.AdAccountID, account.BoardID, commerceClient, assignment, summary); err != nil {
			run.AppendError(eris.Wrapf(err, "adsync: campaign %s", assignment.CampaignID).Error())
		}
	}

	if len(run.ErrorLog) > 0 {
		atomic.AddInt64(&summary.TenantsFailed, 1)
	}
	if err := r.Ledger.Close(ctx, run, false); err != nil {
		zap.L().Error("adsync: close job run", zap.String("tenant_id", tenant.ID), zap.Error(err))
	}
}

// syncCampaign runs Phase 1 (forward sync) followed by Phase 2 (reverse
// sync) for a single campaign assignment.
func (r *Runner) syncCampaign(ctx context.Context, tenant model.Tenant, token, adAccountID, boardID string, client commerce.Client, assignment model.CampaignBatchAssignment, summary *Summary) error {
	adGroupID, err := r.resolveOrCreateAdGroup(ctx, token, adAccountID, assignment.CampaignID)
	if err != nil {
		return eris.Wrap(err, "resolve ad group")
	}

	collection, err := client.GetCollection(ctx, assignment.CollectionID)
	if err != nil {
		return eris.Wrap(err, "fetch collection")
	}
	products, err := client.ListCollectionProducts(ctx, assignment.CollectionID)
	if err != nil {
		return eris.Wrap(err, "list collection products")
	}

	touched := make(map[string]bool)
	for _, batchIndex := range assignment.BatchIndices {
		batch, startIndex := batchSlice(products, batchIndex, assignment.BatchSize)
		for i, product := range batch {
			touched[product.ID] = true

			existing, err := r.Store.GetActiveSyncLog(ctx, tenant.ID, assignment.CampaignID, product.ID)
			if err == nil && existing != nil {
				continue // already synced and not paused
			}

			productIndex := startIndex + i
			if err := r.syncProduct(ctx, tenant, token, adAccountID, boardID, adGroupID, collection, product, productIndex, assignment.CampaignID, summary); err != nil {
				zap.L().Error("adsync: sync product failed",
					zap.String("tenant_id", tenant.ID), zap.String("product_id", product.ID), zap.Error(err))
			}
			r.Sleep(r.MinPinInterval)
		}
	}

	return r.reverseSync(ctx, tenant.ID, token, adAccountID, assignment.CampaignID, touched, summary)
}

// resolveOrCreateAdGroup prefers the first ACTIVE existing ad group,
// otherwise creates one with automatic bidding, click-through billing, and
// a default budget (§4.D Phase 1 step 1).
func (r *Runner) resolveOrCreateAdGroup(ctx context.Context, token, adAccountID, campaignID string) (string, error) {
	groups, err := r.AdPlatform.ListAdGroups(ctx, token, adAccountID, campaignID)
	if err != nil {
		return "", err
	}
	for _, g := range groups {
		if g.Status == model.CampaignStatusActive {
			return g.ID, nil
		}
	}

	created, err := r.AdPlatform.CreateAdGroup(ctx, token, adAccountID, adplatform.AdGroupCreate{
		CampaignID:       campaignID,
		Name:             "fleet auto ad group",
		BillableEvent:    "CLICKTHROUGH",
		BidStrategyType:  "AUTOMATIC_BID",
		DailyBudgetMicro: model.MicroFromCurrency(5),
		AutoTargetingEnabled: true,
	})
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// syncProduct processes a single new product: image prep, pin creation,
// ad promotion, and sync-log bookkeeping (§4.D Phase 1 steps 2-3).
func (r *Runner) syncProduct(ctx context.Context, tenant model.Tenant, token, adAccountID, boardID string, adGroupID string, collection commerce.Collection, product commerce.Product, productIndex int, campaignID string, summary *Summary) error {
	now := r.Clock().UTC()
	log := model.PinterestSyncLog{
		TenantID:   tenant.ID,
		CampaignID: campaignID,
		ProductID:  product.ID,
		BoardID:    boardID,
		SyncedAt:   now,
	}

	imageBytes, err := r.downloadProductImage(ctx, product.ImageURL)
	if err != nil {
		log.Error = err.Error()
		_ = r.Store.InsertPinterestSyncLog(ctx, log)
		return eris.Wrap(err, "download product image")
	}
	processed, err := imaging.CenterCropResizeEncode(imageBytes, imaging.PinAspectRatio, 1000, 1500, 85)
	if err != nil {
		log.Error = err.Error()
		_ = r.Store.InsertPinterestSyncLog(ctx, log)
		return eris.Wrap(err, "process product image")
	}

	pin, err := r.AdPlatform.CreatePin(ctx, token, adplatform.PinCreate{
		BoardID:     boardID,
		Title:       truncate(product.Title, 100),
		Description: truncate(stripHTML(product.Description), 500),
		LinkURL:     collectionPageURL(collection, productIndex, r.ProductsPerPage, product),
		ImageBase64: base64.StdEncoding.EncodeToString(processed),
	})
	if err != nil {
		log.Error = err.Error()
		_ = r.Store.InsertPinterestSyncLog(ctx, log)
		return eris.Wrap(err, "create pin")
	}
	log.PinID = pin.ID
	atomic.AddInt64(&summary.PinsCreated, 1)

	ads, err := r.AdPlatform.CreateAds(ctx, token, adAccountID, []adplatform.AdCreate{
		{AdGroupID: adGroupID, PinID: pin.ID, Name: fmt.Sprintf("fleet pin %s", pin.ID)},
	})
	if err != nil || len(ads) == 0 || !ads[0].Success {
		if err == nil {
			err = eris.New(ads[0].Error)
		}
		log.Error = err.Error()
		_ = r.Store.InsertPinterestSyncLog(ctx, log)
		return eris.Wrap(err, "promote pin")
	}
	log.AdID = ads[0].AdID
	log.AdGroupID = adGroupID
	log.Success = true
	atomic.AddInt64(&summary.AdsCreated, 1)

	return r.Store.InsertPinterestSyncLog(ctx, log)
}

// reverseSync pauses ads for products that were synced previously but are
// no longer present in the current batch set (§4.D Phase 2).
func (r *Runner) reverseSync(ctx context.Context, tenantID, token, adAccountID, campaignID string, touched map[string]bool, summary *Summary) error {
	active, err := r.Store.ListActiveSyncLogs(ctx, tenantID, campaignID)
	if err != nil {
		return eris.Wrap(err, "list active sync logs")
	}
	for _, logRow := range active {
		if touched[logRow.ProductID] {
			continue
		}
		if logRow.AdID != "" {
			status := model.CampaignStatusPaused
			if err := r.AdPlatform.PatchAdGroup(ctx, token, adAccountID, logRow.AdGroupID, adplatform.AdGroupPatch{Status: &status}); err != nil {
				zap.L().Error("adsync: pause stale ad failed",
					zap.String("tenant_id", tenantID), zap.String("product_id", logRow.ProductID), zap.Error(err))
				continue
			}
		}
		if err := r.Store.PauseSyncLog(ctx, logRow.ID); err != nil {
			zap.L().Error("adsync: mark sync log paused failed", zap.String("id", logRow.ID), zap.Error(err))
			continue
		}
		atomic.AddInt64(&summary.AdsPaused, 1)
	}
	return nil
}

// CleanupPausedCampaign performs the one-shot cleanup for a paused campaign
// (§4.D "Campaign-pause cleanup"). Its only caller is Pipeline E, right after
// that pipeline pauses a campaign itself; campaigns paused elsewhere on the
// ad platform are not detected.
func (r *Runner) CleanupPausedCampaign(ctx context.Context, tenantID string, assignment model.CampaignBatchAssignment) error {
	if err := r.Store.DeleteProductSalesByCollection(ctx, tenantID, assignment.CollectionID); err != nil {
		return eris.Wrap(err, "delete product sales")
	}
	if err := r.Store.DeleteCampaignBatchAssignment(ctx, assignment.ID); err != nil {
		return eris.Wrap(err, "delete campaign batch assignment")
	}
	return nil
}

func (r *Runner) downloadProductImage(ctx context.Context, imageURL string) ([]byte, error) {
	if imageURL == "" {
		return nil, eris.New("product has no primary image")
	}
	return r.HTTP.DoRaw(ctx, "GET", imageURL, nil, "", nil)
}

func batchSlice(products []commerce.Product, batchIndex, batchSize int) ([]commerce.Product, int) {
	if batchSize <= 0 {
		return nil, 0
	}
	start := batchIndex * batchSize
	if start >= len(products) {
		return nil, start
	}
	end := min(start+batchSize, len(products))
	return products[start:end], start
}

// collectionPageURL builds the collection-page URL targeting the page
// containing productIndex, falling back to the product URL if the
// collection handle cannot be resolved (§4.D Phase 1 step 3).
func collectionPageURL(collection commerce.Collection, productIndex, productsPerPage int, product commerce.Product) string {
	if collection.Handle == "" {
		return fmt.Sprintf("/products/%s", product.Handle)
	}
	if productsPerPage <= 0 {
		productsPerPage = 24
	}
	page := productIndex/productsPerPage + 1
	return fmt.Sprintf("/collections/%s?page=%d", collection.Handle, page)
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func stripHTML(s string) string {
	return html.UnescapeString(tagRe.ReplaceAllString(s, ""))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

