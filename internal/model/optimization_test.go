package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOptimizationRuleEvaluateLinearisedGroups(t *testing.T) {
	rule := OptimizationRule{
		Conditions: []Condition{
			{Metric: MetricSpend, Operator: OpGTE, Value: 100, Logic: "AND"},
			{Metric: MetricCheckouts, Operator: OpLTE, Value: 3, Logic: "OR"},
			{Metric: MetricROAS, Operator: OpLT, Value: 2.0},
		},
	}

	groups := rule.ToGroups()
	if assert.Len(t, groups, 2) {
		assert.Len(t, groups[0].Conditions, 1)
		assert.Len(t, groups[1].Conditions, 2)
	}

	assert.True(t, rule.Evaluate(CampaignMetrics{SpendUSD: 150, Checkouts: 5, ROAS: 1.5}))
}

// A genuine AND across groups: the first group (spend >= 100) must hold on
// its own, independent of whatever the second group's OR condition decides.
// A buggy linearisation that folds every condition into one OR-group would
// wrongly return true here on the checkouts <= 3 condition alone.
func TestOptimizationRuleEvaluateRequiresEveryGroup(t *testing.T) {
	rule := OptimizationRule{
		Conditions: []Condition{
			{Metric: MetricSpend, Operator: OpGTE, Value: 100, Logic: "AND"},
			{Metric: MetricCheckouts, Operator: OpLTE, Value: 3, Logic: "OR"},
			{Metric: MetricROAS, Operator: OpLT, Value: 2.0},
		},
	}

	assert.False(t, rule.Evaluate(CampaignMetrics{SpendUSD: 50, Checkouts: 1, ROAS: 5}))
}

func TestOptimizationRulePrefersConditionGroups(t *testing.T) {
	rule := OptimizationRule{
		ConditionGroups: []ConditionGroup{
			{Conditions: []Condition{{Metric: MetricSpend, Operator: OpGT, Value: 0}}},
		},
		Conditions: []Condition{
			{Metric: MetricSpend, Operator: OpLT, Value: 0},
		},
	}
	groups := rule.ToGroups()
	if assert.Len(t, groups, 1) {
		assert.Equal(t, OpGT, groups[0].Conditions[0].Operator)
	}
}

func TestOptimizationRuleEmptyNeverMatches(t *testing.T) {
	var rule OptimizationRule
	assert.False(t, rule.Evaluate(CampaignMetrics{SpendUSD: 1000}))
}
