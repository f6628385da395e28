package adplatform

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sellsadvisors/fleet/internal/model"
)

type campaignWire struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Status           string   `json:"status"`
	DailySpendCap    int64    `json:"daily_spend_cap"`
	ObjectiveType    string   `json:"objective_type"`
	TrackingURLs     []string `json:"tracking_urls"`
}

func (w campaignWire) toCampaign() Campaign {
	return Campaign{
		ID:               w.ID,
		Name:             w.Name,
		Status:           model.CampaignStatus(w.Status),
		DailyBudgetMicro: w.DailySpendCap,
		ObjectiveType:    w.ObjectiveType,
		TrackingURLs:     w.TrackingURLs,
	}
}

type adGroupWire struct {
	ID                       string         `json:"id"`
	CampaignID               string         `json:"campaign_id"`
	Status                   string         `json:"status"`
	BillableEvent            string         `json:"billable_event"`
	BidStrategyType          string         `json:"bid_strategy_type"`
	TargetingSpec            map[string]any `json:"targeting_spec"`
	OptimizationGoalMetadata map[string]any `json:"optimization_goal_metadata"`
	AutoTargetingEnabled     bool           `json:"auto_targeting_enabled"`
	PacingDeliveryType       string         `json:"pacing_delivery_type"`
}

func (w adGroupWire) toAdGroup() AdGroup {
	return AdGroup{
		ID:                       w.ID,
		CampaignID:               w.CampaignID,
		Status:                   model.CampaignStatus(w.Status),
		BillableEvent:            w.BillableEvent,
		BidStrategyType:          w.BidStrategyType,
		TargetingSpec:            w.TargetingSpec,
		OptimizationGoalMetadata: w.OptimizationGoalMetadata,
		AutoTargetingEnabled:     w.AutoTargetingEnabled,
		PacingDeliveryType:       w.PacingDeliveryType,
	}
}

func (c *client) ListAdGroups(ctx context.Context, accessToken, adAccountID, campaignID string) ([]AdGroup, error) {
	path := fmt.Sprintf("/v5/ad_accounts/%s/ad_groups?campaign_ids=%s", adAccountID, campaignID)
	var out struct {
		Items []adGroupWire `json:"items"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, c.url(path), bearer(accessToken), nil, &out); err != nil {
		return nil, fmt.Errorf("adplatform: list ad groups for campaign %s: %w", campaignID, err)
	}
	groups := make([]AdGroup, 0, len(out.Items))
	for _, w := range out.Items {
		groups = append(groups, w.toAdGroup())
	}
	return groups, nil
}

func (c *client) CreateAdGroup(ctx context.Context, accessToken, adAccountID string, req AdGroupCreate) (AdGroup, error) {
	path := fmt.Sprintf("/v5/ad_accounts/%s/ad_groups", adAccountID)
	body := map[string]any{
		"campaign_id":                req.CampaignID,
		"name":                       req.Name,
		"billable_event":             req.BillableEvent,
		"bid_strategy_type":          req.BidStrategyType,
		"budget_in_micro_currency":   req.DailyBudgetMicro,
		"targeting_spec":             req.TargetingSpec,
		"optimization_goal_metadata": req.OptimizationGoalMetadata,
		"auto_targeting_enabled":     req.AutoTargetingEnabled,
		"pacing_delivery_type":       req.PacingDeliveryType,
		"status":                     string(model.CampaignStatusActive),
	}
	var out adGroupWire
	if err := c.http.DoJSON(ctx, http.MethodPost, c.url(path), bearer(accessToken), body, &out); err != nil {
		return AdGroup{}, fmt.Errorf("adplatform: create ad group for campaign %s: %w", req.CampaignID, err)
	}
	return out.toAdGroup(), nil
}

func (c *client) PatchAdGroup(ctx context.Context, accessToken, adAccountID, adGroupID string, patch AdGroupPatch) error {
	path := fmt.Sprintf("/v5/ad_accounts/%s/ad_groups/%s", adAccountID, adGroupID)
	body := map[string]any{}
	if patch.Status != nil {
		body["status"] = string(*patch.Status)
	}
	if err := c.http.DoJSON(ctx, http.MethodPatch, c.url(path), bearer(accessToken), body, nil); err != nil {
		return fmt.Errorf("adplatform: patch ad group %s: %w", adGroupID, err)
	}
	return nil
}
