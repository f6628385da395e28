// Package winnerscaler implements Pipeline F: identifies winning products
// from their sales buckets, then keeps each winner topped up to its
// per-modality campaign cap by generating new video/image creatives and
// spawning cloned ad-platform campaigns for them (§4.F).
package winnerscaler

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sellsadvisors/fleet/internal/adauth"
	"github.com/sellsadvisors/fleet/internal/creativeprompt"
	"github.com/sellsadvisors/fleet/internal/imaging"
	"github.com/sellsadvisors/fleet/internal/jobrun"
	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/internal/resilience"
	"github.com/sellsadvisors/fleet/internal/rules"
	"github.com/sellsadvisors/fleet/internal/store"
	"github.com/sellsadvisors/fleet/pkg/adplatform"
	"github.com/sellsadvisors/fleet/pkg/aicreative"
	"github.com/sellsadvisors/fleet/pkg/commerce"
	"github.com/sellsadvisors/fleet/pkg/objectstore"
)

const maxTranscodeRetries = 5

// maxSpawnAttemptsPerCampaign bounds fillModality's retry loop: a winner
// whose spawnCampaign calls keep failing (e.g. a persistent targeting
// rejection) stops burning AI-generation quota after this many tries per
// campaign still needed, rather than looping until the context deadline.
const maxSpawnAttemptsPerCampaign = 3

// CommerceFactory builds a tenant-scoped commerce client.
type CommerceFactory func(tenant model.Tenant) commerce.Client

// Runner drives Pipeline F across every tenant with a selected ad account.
type Runner struct {
	Store       store.Store
	Ledger      *jobrun.Ledger
	Commerce    CommerceFactory
	AdPlatform  adplatform.Client
	AICreative  aicreative.Client
	ObjectStore objectstore.Client
	Bucket      string
	Tokens      *adauth.TokenSource
	// Prompts writes the creative generation prompt from the product title
	// when set; nil falls back to the fixed templates below.
	Prompts *creativeprompt.Writer

	Clock       func() time.Time
	Sleep       func(time.Duration)
	Concurrency int
}

// NewRunner builds a Runner with sensible defaults.
func NewRunner(st store.Store, commerceFactory CommerceFactory, ad adplatform.Client, ai aicreative.Client, obj objectstore.Client, bucket string, tokens *adauth.TokenSource) *Runner {
	return &Runner{
		Store: st, Ledger: jobrun.NewLedger(st), Commerce: commerceFactory,
		AdPlatform: ad, AICreative: ai, ObjectStore: obj, Bucket: bucket, Tokens: tokens,
		Clock: time.Now, Sleep: time.Sleep, Concurrency: 3,
	}
}

// Summary aggregates counters across every tenant task in one invocation.
type Summary struct {
	TenantsProcessed  int64
	TenantsFailed     int64
	WinnersIdentified int64
	CampaignsCreated  int64
	ApiLimitReached   int64
}

// Run processes every eligible tenant concurrently, bounded by Concurrency.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	tenants, err := r.Store.ListActiveTenants(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "winnerscaler: list active tenants")
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

	zap.L().Info("winnerscaler: run complete",
		zap.Int64("tenants_processed", summary.TenantsProcessed),
		zap.Int64("winners_identified", summary.WinnersIdentified),
		zap.Int64("campaigns_created", summary.CampaignsCreated),
	)
	return summary, nil
}

func (r *Runner) runTenant(ctx context.Context, tenant model.Tenant, summary *Summary) {
	settings, err := r.Store.GetWinnerScalingSettings(ctx, tenant.ID)
	if err != nil || settings == nil {
		return
	}
	account, err := r.Store.GetAdAccountSelection(ctx, tenant.ID)
	if err != nil || account == nil || !account.Selected {
		return
	}

	run, err := r.Ledger.Open(ctx, model.PipelineWinnerScaler, tenant.ID)
	if err != nil {
		zap.L().Error("winnerscaler: open job run", zap.String("tenant_id", tenant.ID), zap.Error(err))
		return
	}
	atomic.AddInt64(&summary.TenantsProcessed, 1)

	client := r.Commerce(tenant)
	if err := r.identifyWinners(ctx, client, tenant.ID, *settings, summary); err != nil {
		run.AppendError(eris.Wrap(err, "winnerscaler: identify winners").Error())
	}

	token, err := r.Tokens.AccessToken(ctx, tenant.ID)
	if err != nil {
		run.AppendError(eris.Wrap(err, "winnerscaler: acquire access token").Error())
		atomic.AddInt64(&summary.TenantsFailed, 1)
		_ = r.Ledger.Close(ctx, run, true)
		return
	}

	winners, err := r.Store.ListWinnerProducts(ctx, tenant.ID)
	if err != nil {
		run.AppendError(eris.Wrap(err, "winnerscaler: list winner products").Error())
		atomic.AddInt64(&summary.TenantsFailed, 1)
		_ = r.Ledger.Close(ctx, run, true)
		return
	}

	prompts := r.batchPromptsForWinners(ctx, winners, *settings)

	limits := &modalityLimits{}
	for _, w := range winners {
		if err := r.refillWinner(ctx, tenant.ID, token, account.AdAccountID, account.BoardID, w, *settings, limits, summary, prompts); err != nil {
			run.AppendError(eris.Wrapf(err, "winnerscaler: refill winner %s", w.ProductID).Error())
		}
	}
	atomic.AddInt64(&summary.ApiLimitReached, boolToInt64(limits.videoExhausted)+boolToInt64(limits.imageExhausted))

	if len(run.ErrorLog) > 0 {
		atomic.AddInt64(&summary.TenantsFailed, 1)
	}
	if err := r.Ledger.Close(ctx, run, false); err != nil {
		zap.L().Error("winnerscaler: close job run", zap.String("tenant_id", tenant.ID), zap.Error(err))
	}
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// modalityLimits tracks, for the current tenant task, whether a rate-limit
// response has already stopped a given modality this run (§4.F "Rate-limit
// ... stop further generation of that modality for the run").
type modalityLimits struct {
	videoExhausted bool
	imageExhausted bool
}

// identifyWinners evaluates every tracked collection's product sales
// against the tenant's bucket thresholds and upserts any product clearing
// the minimum (§4.F "Winner criteria").
func (r *Runner) identifyWinners(ctx context.Context, client commerce.Client, tenantID string, settings model.WinnerScalingSettings, summary *Summary) error {
	assignments, err := r.Store.ListCampaignBatchAssignments(ctx, tenantID)
	if err != nil {
		return err
	}
	thresholds := rules.BucketThresholds{
		Avg3: settings.Threshold3Day, Avg7: settings.Threshold7Day,
		Avg10: settings.Threshold10Day, Avg14: settings.Threshold14Day,
	}
	now := r.Clock().UTC()

	for _, collectionID := range collectionIDs(assignments) {
		sales, err := r.Store.ListProductSales(ctx, tenantID, collectionID)
		if err != nil {
			return err
		}
		imageByProduct := map[string]string{}
		if products, err := client.ListCollectionProducts(ctx, collectionID); err == nil {
			for _, p := range products {
				imageByProduct[p.ID] = p.ImageURL
			}
		}
		for _, p := range sales {
			if p.Last14Days == 0 {
				continue
			}
			passed := rules.BucketsPassed(p, thresholds)
			if !rules.MeetsMinimum(passed, settings.MinBucketsRequired) {
				continue
			}
			if err := r.Store.UpsertWinnerProduct(ctx, model.WinnerProduct{
				TenantID: tenantID, CollectionID: collectionID, ProductID: p.ProductID,
				ProductTitle: p.ProductTitle, ImageURL: imageByProduct[p.ProductID],
				BucketsPassed: passed, IdentifiedAt: now,
			}); err != nil {
				return eris.Wrapf(err, "upsert winner product %s", p.ProductID)
			}
			atomic.AddInt64(&summary.WinnersIdentified, 1)
		}
	}
	return nil
}

func collectionIDs(assignments []model.CampaignBatchAssignment) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range assignments {
		if !seen[a.CollectionID] {
			seen[a.CollectionID] = true
			out = append(out, a.CollectionID)
		}
	}
	return out
}

// batchPromptsForWinners asks r.Prompts for every enabled modality's
// creative prompt across all winners due for refill this tenant task, in
// one Anthropic batch request rather than a sequential call per winner per
// modality. Returns nil if prompt writing is disabled or there is nothing
// to generate; refillWinner falls back to live per-call generation (or the
// fixed templates) for anything missing from the result.
func (r *Runner) batchPromptsForWinners(ctx context.Context, winners []model.WinnerProduct, settings model.WinnerScalingSettings) map[string]string {
	if r.Prompts == nil || len(winners) == 0 {
		return nil
	}

	var jobs []creativeprompt.PromptJob
	for _, w := range winners {
		if settings.VideoEnabled {
			jobs = append(jobs, creativeprompt.PromptJob{
				CustomID: promptCacheKey(w.ProductID, model.WinnerCreativeVideo),
				Kind:     model.WinnerCreativeVideo, ProductTitle: w.ProductTitle,
			})
		}
		if settings.ImageEnabled {
			jobs = append(jobs, creativeprompt.PromptJob{
				CustomID: promptCacheKey(w.ProductID, model.WinnerCreativeImage),
				Kind:     model.WinnerCreativeImage, ProductTitle: w.ProductTitle,
			})
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	prompts, err := r.Prompts.WriteBatch(ctx, jobs)
	if err != nil {
		zap.L().Warn("winnerscaler: batch prompt generation failed, falling back to per-creative templates", zap.Error(err))
		return nil
	}
	return prompts
}

func promptCacheKey(productID string, kind model.WinnerCreativeKind) string {
	return productID + ":" + string(kind)
}

// refillWinner reconciles a winner's active campaign count per modality
// against its cap and spawns new campaigns to close the gap (§4.F
// "Per-winner refill loop").
func (r *Runner) refillWinner(ctx context.Context, tenantID, token, adAccountID, boardID string, winner model.WinnerProduct, settings model.WinnerScalingSettings, limits *modalityLimits, summary *Summary, prompts map[string]string) error {
	if err := r.reconcileStatuses(ctx, token, adAccountID, tenantID, winner.ProductID); err != nil {
		return eris.Wrap(err, "reconcile campaign statuses")
	}

	spec, err := r.loadOriginalSpec(ctx, token, adAccountID, tenantID, winner.ProductID)
	if err != nil {
		return r.logOutcome(ctx, tenantID, winner.ProductID, model.WinnerCreativeVideo, "creative_failed", "", err)
	}

	if settings.VideoEnabled && !limits.videoExhausted {
		activeVideo, err := r.Store.CountWinnerCampaigns(ctx, tenantID, winner.ProductID, model.WinnerCreativeVideo)
		if err != nil {
			return err
		}
		need := settings.MaxVideoCampaigns() - activeVideo
		if need <= 0 {
			_ = r.logOutcome(ctx, tenantID, winner.ProductID, model.WinnerCreativeVideo, "cap_reached", "", nil)
		} else {
			if err := r.fillModality(ctx, tenantID, token, adAccountID, boardID, winner, settings, spec, model.WinnerCreativeVideo, need, limits, summary, prompts); err != nil {
				return err
			}
		}
	} else if !settings.VideoEnabled {
		_ = r.logOutcome(ctx, tenantID, winner.ProductID, model.WinnerCreativeVideo, "modality_disabled", "", nil)
	}

	if settings.ImageEnabled && !limits.imageExhausted {
		activeImage, err := r.Store.CountWinnerCampaigns(ctx, tenantID, winner.ProductID, model.WinnerCreativeImage)
		if err != nil {
			return err
		}
		need := settings.MaxImageCampaigns() - activeImage
		if need <= 0 {
			_ = r.logOutcome(ctx, tenantID, winner.ProductID, model.WinnerCreativeImage, "cap_reached", "", nil)
		} else {
			if err := r.fillModality(ctx, tenantID, token, adAccountID, boardID, winner, settings, spec, model.WinnerCreativeImage, need, limits, summary, prompts); err != nil {
				return err
			}
		}
	} else if !settings.ImageEnabled {
		_ = r.logOutcome(ctx, tenantID, winner.ProductID, model.WinnerCreativeImage, "modality_disabled", "", nil)
	}

	return nil
}

// reconcileStatuses mirrors each locally-ACTIVE winner campaign's real
// ad-platform status, demoting manually-paused campaigns to PAUSED so the
// refill count doesn't keep re-spawning them (§4.F "Per-winner refill
// loop" reconciliation step).
func (r *Runner) reconcileStatuses(ctx context.Context, token, adAccountID, tenantID, productID string) error {
	campaigns, err := r.Store.ListWinnerCampaigns(ctx, tenantID, productID)
	if err != nil {
		return err
	}
	for _, c := range campaigns {
		if c.Status != model.CampaignStatusActive {
			continue
		}
		remote, err := r.AdPlatform.GetCampaign(ctx, token, adAccountID, c.CampaignID)
		if err != nil {
			continue
		}
		if remote.Status != model.CampaignStatusActive {
			if err := r.Store.UpdateWinnerCampaignStatus(ctx, c.ID, remote.Status); err != nil {
				return err
			}
		}
	}
	return nil
}

// loadOriginalSpec locates the product's most recent sync log to find an
// original campaign and clones its objective/targeting settings (§4.F
// "Campaign creation").
func (r *Runner) loadOriginalSpec(ctx context.Context, token, adAccountID, tenantID, productID string) (model.OriginalCampaignSpec, error) {
	syncLog, err := r.Store.GetMostRecentSyncLog(ctx, tenantID, productID)
	if err != nil {
		return model.OriginalCampaignSpec{}, eris.Wrap(err, "locate original campaign")
	}

	campaign, err := r.AdPlatform.GetCampaign(ctx, token, adAccountID, syncLog.CampaignID)
	if err != nil {
		return model.OriginalCampaignSpec{}, eris.Wrap(err, "fetch original campaign")
	}

	groups, err := r.AdPlatform.ListAdGroups(ctx, token, adAccountID, syncLog.CampaignID)
	if err != nil {
		return model.OriginalCampaignSpec{}, eris.Wrap(err, "fetch original ad groups")
	}
	var group adplatform.AdGroup
	for _, g := range groups {
		if g.ID == syncLog.AdGroupID {
			group = g
			break
		}
	}
	if group.ID == "" && len(groups) > 0 {
		group = groups[0]
	}

	return model.OriginalCampaignSpec{
		ObjectiveType:            campaign.ObjectiveType,
		TrackingURLs:             campaign.TrackingURLs,
		BillableEvent:            group.BillableEvent,
		BidStrategyType:          group.BidStrategyType,
		TargetingSpec:            group.TargetingSpec,
		OptimizationGoalMetadata: group.OptimizationGoalMetadata,
		AutoTargetingEnabled:     group.AutoTargetingEnabled,
		PacingDeliveryType:       group.PacingDeliveryType,
	}, nil
}

// fillModality generates creatives and spawns cloned campaigns until need
// successful campaigns exist or a quota/error stops the modality (§4.F
// "Creative generation", "Campaign creation").
func (r *Runner) fillModality(ctx context.Context, tenantID, token, adAccountID, boardID string, winner model.WinnerProduct, settings model.WinnerScalingSettings, spec model.OriginalCampaignSpec, kind model.WinnerCreativeKind, need int, limits *modalityLimits, summary *Summary, prompts map[string]string) error {
	created := 0
	maxAttempts := need * maxSpawnAttemptsPerCampaign
	for attempt := 0; created < need && attempt < maxAttempts; attempt++ {
		asset, err := r.generateCreative(ctx, winner, kind, prompts)
		if err != nil {
			if isQuotaExceeded(err) {
				setExhausted(limits, kind)
				_ = r.logOutcome(ctx, tenantID, winner.ProductID, kind, "creative_failed", "", err)
				return nil
			}
			return r.logOutcome(ctx, tenantID, winner.ProductID, kind, "creative_failed", "", err)
		}

		linkTypes := enabledLinkTypes(settings)
		for _, lt := range linkTypes {
			campaignID, err := r.spawnCampaign(ctx, tenantID, token, adAccountID, boardID, winner, spec, kind, asset, lt)
			if err != nil {
				_ = r.logOutcome(ctx, tenantID, winner.ProductID, kind, "creative_failed", "", err)
				continue
			}
			if err := r.Store.InsertWinnerCampaign(ctx, model.WinnerCampaign{
				TenantID: tenantID, ProductID: winner.ProductID, Kind: kind, CampaignID: campaignID,
				Status: model.CampaignStatusActive, CreativeAssetURL: asset,
				LinkedToProduct: lt == linkTypeProduct, LinkedToCollection: lt == linkTypeCollection,
				CreatedAt: r.Clock().UTC(),
			}); err != nil {
				return err
			}
			_ = r.logOutcome(ctx, tenantID, winner.ProductID, kind, "campaign_created", campaignID, nil)
			atomic.AddInt64(&summary.CampaignsCreated, 1)
			created++
			if created >= need {
				break
			}
		}
	}
	return nil
}

const (
	linkTypeProduct    = "product"
	linkTypeCollection = "collection"
)

func enabledLinkTypes(settings model.WinnerScalingSettings) []string {
	var out []string
	if settings.LinkTypeProduct {
		out = append(out, linkTypeProduct)
	}
	if settings.LinkTypeCollection {
		out = append(out, linkTypeCollection)
	}
	if len(out) == 0 {
		out = append(out, linkTypeProduct)
	}
	return out
}

// creativePrompt returns the prompt precomputed for productID/kind by
// batchPromptsForWinners when present, otherwise asks r.Prompts for one
// live, falling back to fallbackTemplate (a single %s verb) on a nil writer
// or any generation error so a flaky LLM call never blocks a winner refill.
func (r *Runner) creativePrompt(ctx context.Context, kind model.WinnerCreativeKind, productID, productTitle, fallbackTemplate string, prompts map[string]string) string {
	if prompt, ok := prompts[promptCacheKey(productID, kind)]; ok && prompt != "" {
		return prompt
	}
	if r.Prompts == nil {
		return fmt.Sprintf(fallbackTemplate, productTitle)
	}
	prompt, err := r.Prompts.Write(ctx, kind, productTitle)
	if err != nil {
		zap.L().Warn("winnerscaler: prompt generation failed, using fallback template", zap.Error(err))
		return fmt.Sprintf(fallbackTemplate, productTitle)
	}
	return prompt
}

// generateCreative produces one creative asset URL for the given modality,
// uploading the result to object storage.
func (r *Runner) generateCreative(ctx context.Context, winner model.WinnerProduct, kind model.WinnerCreativeKind, prompts map[string]string) (string, error) {
	var reference []byte
	if winner.ImageURL != "" {
		var err error
		if reference, err = r.AICreative.DownloadArtifact(ctx, winner.ImageURL); err != nil {
			reference = nil
		}
	}

	switch kind {
	case model.WinnerCreativeVideo:
		op, err := aicreative.GenerateVideoAndWait(ctx, r.AICreative, aicreative.VideoGenerateRequest{
			Prompt:               r.creativePrompt(ctx, kind, winner.ProductID, winner.ProductTitle, "%s, vertical product showcase", prompts),
			ReferenceImageBytes: reference,
			Aspect: "9:16",
		})
		if err != nil {
			return "", eris.Wrap(err, "generate video")
		}
		bytes, err := r.AICreative.DownloadArtifact(ctx, op.VideoURL)
		if err != nil {
			return "", eris.Wrap(err, "download video artifact")
		}
		return r.ObjectStore.Upload(ctx, objectstore.UploadRequest{
			Bucket: r.Bucket, Path: fmt.Sprintf("winners/%s/video-%d.mp4", winner.ProductID, r.Clock().UTC().Unix()),
			Bytes: bytes, ContentType: "video/mp4",
		})

	default:
		result, err := r.AICreative.EditImage(ctx, aicreative.ImageEditRequest{
			ReferenceImageBytes: reference,
			Prompt:              r.creativePrompt(ctx, kind, winner.ProductID, winner.ProductTitle, "%s, lifestyle product photo", prompts),
		})
		if err != nil {
			return "", eris.Wrap(err, "generate image")
		}
		raw, err := result.Bytes(ctx, r.AICreative)
		if err != nil {
			return "", eris.Wrap(err, "decode image result")
		}
		processed, err := imaging.CenterCropResizeEncodePNG(raw, imaging.PinAspectRatio, 1000, 1500)
		if err != nil {
			return "", eris.Wrap(err, "center crop winner creative")
		}
		return r.ObjectStore.Upload(ctx, objectstore.UploadRequest{
			Bucket: r.Bucket, Path: fmt.Sprintf("winners/%s/image-%d.png", winner.ProductID, r.Clock().UTC().Unix()),
			Bytes: processed, ContentType: "image/png",
		})
	}
}

// spawnCampaign clones spec onto a new campaign/ad-group and creates one
// promoted pin from asset, retrying the ad-promotion call while the
// platform reports the video is still transcoding (§4.F "Campaign
// creation").
func (r *Runner) spawnCampaign(ctx context.Context, tenantID, token, adAccountID, boardID string, winner model.WinnerProduct, spec model.OriginalCampaignSpec, kind model.WinnerCreativeKind, assetURL, linkType string) (string, error) {
	campaign, err := r.AdPlatform.CreateCampaign(ctx, token, adAccountID, adplatform.CampaignCreate{
		Name:             fmt.Sprintf("winner-%s-%s-%s", winner.ProductID, kind, linkType),
		Status:           model.CampaignStatusActive,
		ObjectiveType:    spec.ObjectiveType,
		DailyBudgetMicro: model.MicroFromCurrency(5),
		TrackingURLs:     spec.TrackingURLs,
	})
	if err != nil {
		return "", eris.Wrap(err, "create campaign")
	}

	group, err := r.AdPlatform.CreateAdGroup(ctx, token, adAccountID, adplatform.AdGroupCreate{
		CampaignID: campaign.ID, Name: campaign.Name,
		BillableEvent: spec.BillableEvent, BidStrategyType: spec.BidStrategyType,
		DailyBudgetMicro: campaign.DailyBudgetMicro, TargetingSpec: spec.TargetingSpec,
		OptimizationGoalMetadata: spec.OptimizationGoalMetadata,
		AutoTargetingEnabled:     spec.AutoTargetingEnabled, PacingDeliveryType: spec.PacingDeliveryType,
	})
	if err != nil {
		return "", eris.Wrap(err, "create ad group")
	}

	pinReq := adplatform.PinCreate{BoardID: boardID, Title: winner.ProductTitle}
	if kind == model.WinnerCreativeVideo {
		mediaID, err := r.uploadVideoMedia(ctx, token, adAccountID, assetURL)
		if err != nil {
			return "", eris.Wrap(err, "upload video media")
		}
		pinReq.VideoMediaID = mediaID
	} else {
		pinReq.ImageURL = assetURL
	}

	pin, err := r.AdPlatform.CreatePin(ctx, token, pinReq)
	if err != nil {
		return "", eris.Wrap(err, "create pin")
	}

	if err := r.createAdWithTranscodeRetry(ctx, token, adAccountID, group.ID, pin.ID); err != nil {
		return "", eris.Wrap(err, "create ad")
	}
	return campaign.ID, nil
}

func (r *Runner) uploadVideoMedia(ctx context.Context, token, adAccountID, videoURL string) (string, error) {
	upload, err := r.AdPlatform.RegisterMediaUpload(ctx, token, adAccountID)
	if err != nil {
		return "", err
	}
	bytes, err := r.AICreative.DownloadArtifact(ctx, videoURL)
	if err != nil {
		return "", err
	}
	if err := r.AdPlatform.UploadMedia(ctx, upload.UploadURL, upload.UploadParameters, bytes, "creative.mp4"); err != nil {
		return "", err
	}
	for {
		status, err := r.AdPlatform.PollMediaStatus(ctx, token, adAccountID, upload.MediaID)
		if err != nil {
			return "", err
		}
		switch status.Status {
		case "succeeded":
			return upload.MediaID, nil
		case "failed":
			return "", eris.Errorf("media upload %s failed", upload.MediaID)
		}
		r.Sleep(2 * time.Second)
	}
}

// createAdWithTranscodeRetry creates the batched ad for pinID, retrying
// with bounded backoff while the platform is still transcoding the video
// behind the pin (§4.F "after pin creation, the ad-promotion call may need
// to be retried with back-off until the platform has transcoded").
func (r *Runner) createAdWithTranscodeRetry(ctx context.Context, token, adAccountID, adGroupID, pinID string) error {
	backoff := 2 * time.Second
	for attempt := 0; attempt < maxTranscodeRetries; attempt++ {
		results, err := r.AdPlatform.CreateAds(ctx, token, adAccountID, []adplatform.AdCreate{
			{AdGroupID: adGroupID, PinID: pinID, Name: "winner-ad-" + pinID},
		})
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return eris.New("create ads returned no results")
		}
		result := results[0]
		if result.Success {
			return nil
		}
		if !isStillTranscoding(result.Error) {
			return eris.Errorf("create ad failed: %s", result.Error)
		}
		r.Sleep(backoff)
		backoff *= 2
	}
	return eris.Errorf("create ad for pin %s still transcoding after %d attempts", pinID, maxTranscodeRetries)
}

func isStillTranscoding(msg string) bool {
	lower := strings.ToLower(msg)
	return msg != "" && (strings.Contains(lower, "transcod") || strings.Contains(lower, "processing"))
}

func isQuotaExceeded(err error) bool {
	return resilience.Kind(err) == "quota_exceeded"
}

func setExhausted(limits *modalityLimits, kind model.WinnerCreativeKind) {
	if kind == model.WinnerCreativeVideo {
		limits.videoExhausted = true
	} else {
		limits.imageExhausted = true
	}
}

func (r *Runner) logOutcome(ctx context.Context, tenantID, productID string, kind model.WinnerCreativeKind, outcome, campaignID string, err error) error {
	entry := model.WinnerScalingLogEntry{
		TenantID: tenantID, ProductID: productID, Kind: kind, Outcome: outcome, CampaignID: campaignID,
		CreatedAt: r.Clock().UTC(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	return r.Store.InsertWinnerScalingLog(ctx, entry)
}
