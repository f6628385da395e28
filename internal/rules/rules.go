// Package rules holds the condition/threshold evaluation shared across the
// replacement engine (§4.C) and the budget optimizer (§4.E). Both reduce to
// the same shape: count how many of a fixed set of per-window thresholds a
// product or campaign clears, then act on the count.
package rules

import "github.com/sellsadvisors/fleet/internal/model"

// FindMatchingRule returns the first rule (in priority order) whose
// condition groups evaluate true against metrics, or nil if none match.
// Callers pass only enabled rules, already ordered by priority ascending
// (store.ListOptimizationRules guarantees this ordering).
func FindMatchingRule(rules []model.OptimizationRule, metrics model.CampaignMetrics) *model.OptimizationRule {
	for i := range rules {
		if rules[i].Evaluate(metrics) {
			return &rules[i]
		}
	}
	return nil
}

// BucketThresholds is the four-window sales-average comparison shared by
// the replacement engine's OK-bucket count and the winner scaler's
// threshold check: both ask "how many of {3,7,10,14}-day windows clear a
// per-tenant bar".
type BucketThresholds struct {
	Avg3, Avg7, Avg10, Avg14 int
}

// BucketsPassed counts how many of the four sales windows on p meet or
// exceed the corresponding threshold in t.
func BucketsPassed(p model.ProductSales, t BucketThresholds) int {
	passed := 0
	if p.Last3Days >= t.Avg3 {
		passed++
	}
	if p.Last7Days >= t.Avg7 {
		passed++
	}
	if p.Last10Days >= t.Avg10 {
		passed++
	}
	if p.Last14Days >= t.Avg14 {
		passed++
	}
	return passed
}

// MeetsMinimum reports whether passed buckets satisfy the tenant's required
// minimum.
func MeetsMinimum(passed, minRequired int) bool {
	return passed >= minRequired
}
