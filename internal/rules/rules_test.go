package rules

import (
	"testing"

	"github.com/sellsadvisors/fleet/internal/model"
)

func TestFindMatchingRulePicksFirstByPriority(t *testing.T) {
	metrics := model.CampaignMetrics{SpendUSD: 50, Checkouts: 2, ROAS: 1.2}

	lowPriorityAlwaysMatches := model.OptimizationRule{
		ID: "catch-all",
		ConditionGroups: []model.ConditionGroup{{
			Conditions: []model.Condition{{Metric: model.MetricSpend, Operator: model.OpGTE, Value: 0}},
		}},
	}
	highPriorityMatchesToo := model.OptimizationRule{
		ID: "specific",
		ConditionGroups: []model.ConditionGroup{{
			Conditions: []model.Condition{{Metric: model.MetricROAS, Operator: model.OpLT, Value: 1.5}},
		}},
	}

	got := FindMatchingRule([]model.OptimizationRule{highPriorityMatchesToo, lowPriorityAlwaysMatches}, metrics)
	if got == nil || got.ID != "specific" {
		t.Fatalf("got %v, want specific", got)
	}
}

func TestFindMatchingRuleNoneMatch(t *testing.T) {
	metrics := model.CampaignMetrics{SpendUSD: 5}
	rule := model.OptimizationRule{
		ConditionGroups: []model.ConditionGroup{{
			Conditions: []model.Condition{{Metric: model.MetricSpend, Operator: model.OpGT, Value: 1000}},
		}},
	}
	if got := FindMatchingRule([]model.OptimizationRule{rule}, metrics); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestBucketsPassed(t *testing.T) {
	p := model.ProductSales{Last3Days: 3, Last7Days: 6, Last10Days: 9, Last14Days: 1}
	t14 := BucketThresholds{Avg3: 2, Avg7: 5, Avg10: 8, Avg14: 10}

	passed := BucketsPassed(p, t14)
	if passed != 3 {
		t.Fatalf("passed = %d, want 3", passed)
	}
	if MeetsMinimum(passed, 4) {
		t.Fatal("should not meet minimum of 4 with only 3 passed")
	}
	if !MeetsMinimum(passed, 3) {
		t.Fatal("should meet minimum of 3")
	}
}
