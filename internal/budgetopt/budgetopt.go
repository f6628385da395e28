// Package budgetopt implements Pipeline E: evaluates each tenant's
// optimization rules against fresh ad-platform analytics and adjusts
// campaign budgets or status accordingly (§4.E).
package budgetopt

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sellsadvisors/fleet/internal/adauth"
	"github.com/sellsadvisors/fleet/internal/adsync"
	"github.com/sellsadvisors/fleet/internal/jobrun"
	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/internal/rules"
	"github.com/sellsadvisors/fleet/internal/store"
	"github.com/sellsadvisors/fleet/pkg/adplatform"
)

// Runner drives Pipeline E across every tenant with optimization enabled.
type Runner struct {
	Store      store.Store
	Ledger     *jobrun.Ledger
	AdPlatform adplatform.Client
	Tokens     *adauth.TokenSource
	// Cleanup performs the one-shot campaign-pause cleanup (§4.D) right after
	// this pipeline pauses a campaign through a matched rule. Campaigns paused
	// anywhere else are not detected and get no cleanup. Optional; nil skips
	// cleanup (e.g. in tests).
	Cleanup *adsync.Runner

	Clock       func() time.Time
	Concurrency int
}

// NewRunner builds a Runner with sensible defaults.
func NewRunner(st store.Store, ad adplatform.Client, tokens *adauth.TokenSource) *Runner {
	return &Runner{
		Store:       st,
		Ledger:      jobrun.NewLedger(st),
		AdPlatform:  ad,
		Tokens:      tokens,
		Clock:       time.Now,
		Concurrency: 6,
	}
}

// Summary aggregates counters across every tenant task in one invocation.
type Summary struct {
	TenantsProcessed  int64
	TenantsFailed     int64
	CampaignsEvaluated int64
	CampaignsScaled   int64
	CampaignsPaused   int64
}

// Run processes every eligible tenant concurrently, bounded by Concurrency.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	settingsByTenant, err := r.enabledTenants(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Concurrency, 1))

	for tenantID, settings := range settingsByTenant {
		tenantID, settings := tenantID, settings
		g.Go(func() error {
			r.runTenant(gctx, tenantID, settings, summary)
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("budgetopt: run complete",
		zap.Int64("tenants_processed", summary.TenantsProcessed),
		zap.Int64("campaigns_scaled", summary.CampaignsScaled),
		zap.Int64("campaigns_paused", summary.CampaignsPaused),
	)
	return summary, nil
}

func (r *Runner) enabledTenants(ctx context.Context) (map[string]model.OptimizationSettings, error) {
	tenants, err := r.Store.ListActiveTenants(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "budgetopt: list active tenants")
	}
	out := make(map[string]model.OptimizationSettings)
	for _, t := range tenants {
		settings, err := r.Store.GetOptimizationSettings(ctx, t.ID)
		if err != nil || settings == nil || !settings.Enabled {
			continue
		}
		out[t.ID] = *settings
	}
	return out, nil
}

func (r *Runner) runTenant(ctx context.Context, tenantID string, settings model.OptimizationSettings, summary *Summary) {
	run, err := r.Ledger.Open(ctx, model.PipelineBudgetOpt, tenantID)
	if err != nil {
		zap.L().Error("budgetopt: open job run", zap.String("tenant_id", tenantID), zap.Error(err))
		return
	}
	atomic.AddInt64(&summary.TenantsProcessed, 1)

	tenantRules, err := r.Store.ListOptimizationRules(ctx, tenantID)
	if err != nil {
		run.AppendError(eris.Wrap(err, "budgetopt: list rules").Error())
		atomic.AddInt64(&summary.TenantsFailed, 1)
		_ = r.Ledger.Close(ctx, run, true)
		return
	}
	enabled := enabledRulesByPriority(tenantRules)

	campaigns, err := r.eligibleCampaigns(ctx, tenantID, settings)
	if err != nil {
		run.AppendError(eris.Wrap(err, "budgetopt: list campaigns").Error())
		atomic.AddInt64(&summary.TenantsFailed, 1)
		_ = r.Ledger.Close(ctx, run, true)
		return
	}

	var token string
	if !settings.TestMode {
		token, err = r.Tokens.AccessToken(ctx, tenantID)
		if err != nil {
			run.AppendError(eris.Wrap(err, "budgetopt: acquire access token").Error())
			atomic.AddInt64(&summary.TenantsFailed, 1)
			_ = r.Ledger.Close(ctx, run, true)
			return
		}
	}

	for _, campaign := range campaigns {
		atomic.AddInt64(&summary.CampaignsEvaluated, 1)
		if err := r.evaluateCampaign(ctx, tenantID, token, campaign, enabled, settings, summary); err != nil {
			run.AppendError(eris.Wrapf(err, "budgetopt: campaign %s", campaign.PinterestCampaignID).Error())
		}
	}

	if len(run.ErrorLog) > 0 {
		atomic.AddInt64(&summary.TenantsFailed, 1)
	}
	if err := r.Ledger.Close(ctx, run, false); err != nil {
		zap.L().Error("budgetopt: close job run", zap.String("tenant_id", tenantID), zap.Error(err))
	}
}

func enabledRulesByPriority(all []model.OptimizationRule) []model.OptimizationRule {
	out := make([]model.OptimizationRule, 0, len(all))
	for _, r := range all {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// eligibleCampaigns returns the test campaign only when test-mode is set,
// otherwise every ACTIVE mirrored campaign (§4.E inputs).
func (r *Runner) eligibleCampaigns(ctx context.Context, tenantID string, settings model.OptimizationSettings) ([]model.AdPlatformCampaign, error) {
	all, err := r.Store.ListAdPlatformCampaigns(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if settings.TestMode {
		for _, c := range all {
			if c.PinterestCampaignID == settings.TestCampaign {
				return []model.AdPlatformCampaign{c}, nil
			}
		}
		return nil, nil
	}
	active := make([]model.AdPlatformCampaign, 0, len(all))
	for _, c := range all {
		if c.Status == model.CampaignStatusActive {
			active = append(active, c)
		}
	}
	return active, nil
}

// evaluateCampaign acquires metrics, evaluates rules, applies the matched
// action, and writes an audit row regardless of outcome (§4.E).
func (r *Runner) evaluateCampaign(ctx context.Context, tenantID, token string, campaign model.AdPlatformCampaign, enabled []model.OptimizationRule, settings model.OptimizationSettings, summary *Summary) error {
	metrics, err := r.acquireMetrics(ctx, token, campaign, enabled, settings)
	if err != nil {
		return eris.Wrap(err, "acquire metrics")
	}

	entry := model.OptimizationLogEntry{
		TenantID:        tenantID,
		CampaignID:      campaign.PinterestCampaignID,
		OldBudget:       campaign.DailyBudget(),
		NewBudget:       campaign.DailyBudget(),
		OldStatus:       campaign.Status,
		NewStatus:       campaign.Status,
		MetricsSnapshot: metrics,
		TestRun:         settings.TestMode,
	}

	rule := rules.FindMatchingRule(enabled, metrics)
	if rule == nil {
		entry.ActionTaken = "no_rule_matched"
		return r.Store.InsertOptimizationLog(ctx, entry)
	}
	entry.RuleID = rule.ID

	switch rule.Action.Kind {
	case model.ActionPause:
		entry.NewStatus = model.CampaignStatusPaused
		entry.ActionTaken = "paused"
		if !settings.TestMode {
			if err := r.applyStatus(ctx, tenantID, token, campaign, model.CampaignStatusPaused); err != nil {
				return err
			}
		}
		atomic.AddInt64(&summary.CampaignsPaused, 1)

	case model.ActionScaleDown, model.ActionScaleUp:
		newBudget := applyDelta(campaign.DailyBudget(), rule.Action)
		if newBudget == campaign.DailyBudget() {
			entry.ActionTaken = "no_change_at_minimum"
			return r.Store.InsertOptimizationLog(ctx, entry)
		}
		entry.NewBudget = newBudget
		if rule.Action.Kind == model.ActionScaleDown {
			entry.ActionTaken = "scaled_down"
		} else {
			entry.ActionTaken = "scaled_up"
		}
		if !settings.TestMode {
			if err := r.applyBudget(ctx, tenantID, token, campaign, newBudget); err != nil {
				return err
			}
		}
		atomic.AddInt64(&summary.CampaignsScaled, 1)

	default:
		entry.ActionTaken = "skipped"
	}

	zap.L().Info("budgetopt: rule evaluated",
		zap.String("tenant_id", tenantID),
		zap.String("campaign_id", campaign.PinterestCampaignID),
		zap.String("action_taken", entry.ActionTaken),
		zap.String("old_budget", formatUSD(entry.OldBudget)),
		zap.String("new_budget", formatUSD(entry.NewBudget)),
	)
	return r.Store.InsertOptimizationLog(ctx, entry)
}

// acquireMetrics fetches ad-platform analytics over the rule set's maximum
// lookback window, or returns the tenant's verbatim test metrics in
// test-mode (§4.E "Metric acquisition").
func (r *Runner) acquireMetrics(ctx context.Context, token string, campaign model.AdPlatformCampaign, enabled []model.OptimizationRule, settings model.OptimizationSettings) (model.CampaignMetrics, error) {
	if settings.TestMode {
		if settings.TestMetrics != nil {
			return *settings.TestMetrics, nil
		}
		return model.CampaignMetrics{}, nil
	}

	lookback := 0
	for _, rule := range enabled {
		if d := rule.MaxLookbackDays(); d > lookback {
			lookback = d
		}
	}
	if lookback == 0 {
		lookback = 7
	}

	now := r.Clock().UTC()
	analytics, err := r.AdPlatform.Analytics(ctx, token, "", adplatform.AnalyticsRequest{
		CampaignIDs: []string{campaign.PinterestCampaignID},
		Start:       now.AddDate(0, 0, -lookback),
		End:         now,
	})
	if err != nil {
		return model.CampaignMetrics{}, err
	}
	a := analytics[campaign.PinterestCampaignID]
	return model.CampaignMetrics{
		SpendUSD:  a.SpendUSD(),
		Checkouts: float64(a.TotalConversions),
		ROAS:      model.ROASFromSpendAndValue(a.SpendUSD(), a.ConversionValueUSD()),
	}, nil
}

// applyDelta computes the new budget per §4.E's action formula, clamped to
// the action's configured bound.
func applyDelta(current float64, action model.Action) float64 {
	delta := action.Value
	if action.Unit == model.UnitPercent {
		delta = current * action.Value / 100
	}
	switch action.Kind {
	case model.ActionScaleDown:
		newBudget := current - delta
		if newBudget < action.MinBudget {
			newBudget = action.MinBudget
		}
		return newBudget
	case model.ActionScaleUp:
		newBudget := current + delta
		if newBudget > action.MaxBudget {
			newBudget = action.MaxBudget
		}
		return newBudget
	default:
		return current
	}
}

func (r *Runner) applyBudget(ctx context.Context, tenantID, token string, campaign model.AdPlatformCampaign, newBudget float64) error {
	micro := model.MicroFromCurrency(newBudget)
	if err := r.AdPlatform.PatchCampaign(ctx, token, "", campaign.PinterestCampaignID, adplatform.CampaignPatch{DailyBudgetMicro: &micro}); err != nil {
		return eris.Wrap(err, "patch campaign budget")
	}
	campaign.DailyBudgetMicro = micro
	return eris.Wrap(r.Store.UpsertAdPlatformCampaign(ctx, campaign), "mirror budget locally")
}

func (r *Runner) applyStatus(ctx context.Context, tenantID, token string, campaign model.AdPlatformCampaign, status model.CampaignStatus) error {
	if err := r.AdPlatform.PatchCampaign(ctx, token, "", campaign.PinterestCampaignID, adplatform.CampaignPatch{Status: &status}); err != nil {
		return eris.Wrap(err, "patch campaign status")
	}
	campaign.Status = status
	if err := r.Store.UpsertAdPlatformCampaign(ctx, campaign); err != nil {
		return eris.Wrap(err, "mirror status locally")
	}
	if status == model.CampaignStatusPaused && r.Cleanup != nil {
		assignments, err := r.Store.ListCampaignBatchAssignments(ctx, tenantID)
		if err != nil {
			return eris.Wrap(err, "list assignments for cleanup")
		}
		for _, a := range assignments {
			if a.CampaignID != campaign.PinterestCampaignID {
				continue
			}
			if err := r.Cleanup.CleanupPausedCampaign(ctx, tenantID, a); err != nil {
				zap.L().Error("budgetopt: campaign-pause cleanup failed",
					zap.String("tenant_id", tenantID), zap.String("campaign_id", campaign.PinterestCampaignID), zap.Error(err))
			}
		}
	}
	return nil
}
