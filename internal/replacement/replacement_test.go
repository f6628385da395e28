package replacement

import (
	"context"
	"testing"
	"time"

	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/pkg/commerce"
)

// tagCapturingClient is a minimal fake that only implements the methods
// swapOne calls, recording the tags each product was set to.
type tagCapturingClient struct {
	commerce.Client
	setTags map[string][]string
}

func (c *tagCapturingClient) SetProductTags(_ context.Context, productID string, tags []string) error {
	if c.setTags == nil {
		c.setTags = map[string][]string{}
	}
	c.setTags[productID] = tags
	return nil
}

func baseRules() model.TenantRules {
	return model.TenantRules{
		StartPhaseDays:      7,
		PostPhaseDays:       30,
		MinSalesDay7Delete:  0,
		MinSalesDay7Replace: 2,
		Avg3OK:              1,
		Avg7OK:              2,
		Avg10OK:             3,
		Avg14OK:             4,
		MinOKBuckets:        2,
		QueueTag:            "QK",
	}
}

func TestDecideTooNewAlwaysKeeps(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	p := model.ProductSales{DateAddedToCollection: now.AddDate(0, 0, -3), First7Days: 0}
	if decide(p, baseRules(), now) {
		t.Fatal("too-new product should never be replaced")
	}
}

func TestDecideInitialReplacesBelowThreshold(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	tr := baseRules()
	p := model.ProductSales{DateAddedToCollection: now.AddDate(0, 0, -10), First7Days: 1}
	if !decide(p, tr, now) {
		t.Fatal("initial-phase product below min_sales_day7_replace should be replaced")
	}
}

func TestDecideInitialKeepsAboveThreshold(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	tr := baseRules()
	p := model.ProductSales{DateAddedToCollection: now.AddDate(0, 0, -10), First7Days: 5}
	if decide(p, tr, now) {
		t.Fatal("initial-phase product above thresholds should be kept")
	}
}

func TestDecidePostKeepsWhenEnoughBucketsOK(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	tr := baseRules()
	p := model.ProductSales{
		DateAddedToCollection: now.AddDate(0, 0, -60),
		Last3Days:             1, Last7Days: 2, Last10Days: 0, Last14Days: 0,
	}
	if decide(p, tr, now) {
		t.Fatal("post-phase product meeting min_ok_buckets should be kept")
	}
}

func TestDecidePostReplacesWhenTooFewBucketsOK(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	tr := baseRules()
	p := model.ProductSales{
		DateAddedToCollection: now.AddDate(0, 0, -60),
		Last3Days:             0, Last7Days: 0, Last10Days: 0, Last14Days: 0,
	}
	if !decide(p, tr, now) {
		t.Fatal("post-phase product failing min_ok_buckets should be replaced")
	}
}

func TestPairOutgoingWithCandidatesTruncatesToShorterSlice(t *testing.T) {
	outgoing := []model.ProductSales{{ProductID: "p1"}, {ProductID: "p2"}}
	pairs := pairOutgoingWithCandidates(outgoing, nil)
	if len(pairs) != 0 {
		t.Fatalf("expected 0 pairs with no candidates, got %d", len(pairs))
	}
}

func TestAppendTagDedupes(t *testing.T) {
	out := appendTag([]string{"a", "b"}, "a")
	if len(out) != 2 {
		t.Fatalf("expected no duplicate tag, got %v", out)
	}
}

func TestRemoveTag(t *testing.T) {
	out := removeTag([]string{"QK", "seasonal"}, "QK")
	if len(out) != 1 || out[0] != "seasonal" {
		t.Fatalf("unexpected result: %v", out)
	}
}

// TestSwapOnePreservesOutgoingProductsOtherTags guards against collapsing
// the outgoing product's tag set down to just the archive tag: only the
// collection tag should be removed (§4.C Phase 1 step 3).
func TestSwapOnePreservesOutgoingProductsOtherTags(t *testing.T) {
	r := &Runner{}
	client := &tagCapturingClient{}
	collection := commerce.Collection{RuleTag: "in-summer-collection"}
	pair := replacementPair{
		outgoing:  model.ProductSales{ProductID: "outgoing-1"},
		candidate: commerce.Product{ID: "candidate-1", Tags: []string{"QK", "seasonal"}},
	}
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	outgoingCurrentTags := []string{"in-summer-collection", "seasonal", "best-seller"}

	if err := r.swapOne(context.Background(), client, collection, pair, outgoingCurrentTags, baseRules(), now); err != nil {
		t.Fatalf("swapOne: %v", err)
	}

	outgoingSet := client.setTags["outgoing-1"]
	wantOutgoing := []string{"seasonal", "best-seller", "replaced_30-07-2026"}
	if len(outgoingSet) != len(wantOutgoing) {
		t.Fatalf("outgoing tags = %v, want %v", outgoingSet, wantOutgoing)
	}
	for _, want := range wantOutgoing {
		found := false
		for _, got := range outgoingSet {
			if got == want {
				found = true
			}
		}
		if !found {
			t.Errorf("outgoing tags %v missing %q", outgoingSet, want)
		}
	}
	for _, got := range outgoingSet {
		if got == collection.RuleTag {
			t.Errorf("outgoing tags %v still contains collection tag %q", outgoingSet, collection.RuleTag)
		}
	}

	candidateSet := client.setTags["candidate-1"]
	for _, got := range candidateSet {
		if got == "QK" {
			t.Errorf("candidate tags %v still contains queue tag", candidateSet)
		}
	}
}
