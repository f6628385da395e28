package winnerscaler

import (
	"errors"
	"testing"

	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/internal/resilience"
)

func TestCollectionIDsDedupes(t *testing.T) {
	got := collectionIDs([]model.CampaignBatchAssignment{
		{CollectionID: "c1"}, {CollectionID: "c2"}, {CollectionID: "c1"},
	})
	if len(got) != 2 || got[0] != "c1" || got[1] != "c2" {
		t.Fatalf("got %+v", got)
	}
}

func TestEnabledLinkTypesBoth(t *testing.T) {
	got := enabledLinkTypes(model.WinnerScalingSettings{LinkTypeProduct: true, LinkTypeCollection: true})
	if len(got) != 2 || got[0] != linkTypeProduct || got[1] != linkTypeCollection {
		t.Fatalf("got %+v", got)
	}
}

func TestEnabledLinkTypesNoneFallsBackToProduct(t *testing.T) {
	got := enabledLinkTypes(model.WinnerScalingSettings{})
	if len(got) != 1 || got[0] != linkTypeProduct {
		t.Fatalf("got %+v, want [product]", got)
	}
}

func TestIsStillTranscodingMatchesCaseInsensitive(t *testing.T) {
	if !isStillTranscoding("Video is still TRANSCODING") {
		t.Fatal("expected transcoding match")
	}
	if !isStillTranscoding("media processing incomplete") {
		t.Fatal("expected processing match")
	}
	if isStillTranscoding("invalid targeting spec") {
		t.Fatal("unexpected match")
	}
	if isStillTranscoding("") {
		t.Fatal("empty message should not match")
	}
}

func TestIsQuotaExceededClassifiesQuotaError(t *testing.T) {
	err := resilience.NewQuotaExceededError(errors.New("rate limited"), "60s")
	if !isQuotaExceeded(err) {
		t.Fatal("expected quota exceeded classification")
	}
	if isQuotaExceeded(errors.New("some other error")) {
		t.Fatal("unexpected quota classification")
	}
}

func TestSetExhaustedTracksModalityIndependently(t *testing.T) {
	limits := &modalityLimits{}
	setExhausted(limits, model.WinnerCreativeVideo)
	if !limits.videoExhausted || limits.imageExhausted {
		t.Fatalf("got %+v", limits)
	}
	setExhausted(limits, model.WinnerCreativeImage)
	if !limits.videoExhausted || !limits.imageExhausted {
		t.Fatalf("got %+v", limits)
	}
}

func TestBoolToInt64(t *testing.T) {
	if boolToInt64(true) != 1 || boolToInt64(false) != 0 {
		t.Fatal("unexpected conversion")
	}
}
