package budgetopt

import (
	"testing"

	"github.com/sellsadvisors/fleet/internal/model"
)

func TestApplyDeltaScaleDownAmountClampsToMin(t *testing.T) {
	got := applyDelta(10, model.Action{Kind: model.ActionScaleDown, Unit: model.UnitAmount, Value: 8, MinBudget: 5})
	if got != 5 {
		t.Fatalf("got %v, want 5 (clamped to min)", got)
	}
}

func TestApplyDeltaScaleDownAmountWithinBounds(t *testing.T) {
	got := applyDelta(10, model.Action{Kind: model.ActionScaleDown, Unit: model.UnitAmount, Value: 2, MinBudget: 1})
	if got != 8 {
		t.Fatalf("got %v, want 8", got)
	}
}

func TestApplyDeltaScaleUpPercentClampsToMax(t *testing.T) {
	got := applyDelta(10, model.Action{Kind: model.ActionScaleUp, Unit: model.UnitPercent, Value: 200, MaxBudget: 15})
	if got != 15 {
		t.Fatalf("got %v, want 15 (clamped to max)", got)
	}
}

func TestApplyDeltaScaleUpPercentWithinBounds(t *testing.T) {
	got := applyDelta(10, model.Action{Kind: model.ActionScaleUp, Unit: model.UnitPercent, Value: 20, MaxBudget: 100})
	if got != 12 {
		t.Fatalf("got %v, want 12", got)
	}
}

func TestApplyDeltaUnknownKindReturnsCurrent(t *testing.T) {
	got := applyDelta(10, model.Action{Kind: model.ActionPause})
	if got != 10 {
		t.Fatalf("got %v, want unchanged 10", got)
	}
}

func TestEnabledRulesByPriorityFiltersDisabled(t *testing.T) {
	rules := []model.OptimizationRule{
		{ID: "a", Enabled: true},
		{ID: "b", Enabled: false},
		{ID: "c", Enabled: true},
	}
	got := enabledRulesByPriority(rules)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("got %+v", got)
	}
}
