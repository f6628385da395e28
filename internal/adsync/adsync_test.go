package adsync

import (
	"testing"

	"github.com/sellsadvisors/fleet/pkg/commerce"
)

func TestBatchSliceMidBatch(t *testing.T) {
	products := make([]commerce.Product, 10)
	for i := range products {
		products[i] = commerce.Product{ID: string(rune('a' + i))}
	}
	batch, start := batchSlice(products, 1, 4)
	if start != 4 || len(batch) != 4 {
		t.Fatalf("got start=%d len=%d, want start=4 len=4", start, len(batch))
	}
}

func TestBatchSlicePastEnd(t *testing.T) {
	products := make([]commerce.Product, 3)
	batch, _ := batchSlice(products, 5, 4)
	if batch != nil {
		t.Fatalf("expected nil batch past end, got %v", batch)
	}
}

func TestBatchSlicePartialLastPage(t *testing.T) {
	products := make([]commerce.Product, 5)
	batch, start := batchSlice(products, 1, 4)
	if start != 4 || len(batch) != 1 {
		t.Fatalf("got start=%d len=%d, want start=4 len=1", start, len(batch))
	}
}

func TestCollectionPageURLFallsBackToProductURL(t *testing.T) {
	url := collectionPageURL(commerce.Collection{}, 0, 24, commerce.Product{Handle: "widget"})
	if url != "/products/widget" {
		t.Fatalf("got %q", url)
	}
}

func TestCollectionPageURLComputesPage(t *testing.T) {
	url := collectionPageURL(commerce.Collection{Handle: "best-sellers"}, 25, 24, commerce.Product{Handle: "widget"})
	if url != "/collections/best-sellers?page=2" {
		t.Fatalf("got %q", url)
	}
}

func TestStripHTML(t *testing.T) {
	got := stripHTML("<p>Soft &amp; cozy</p>")
	if got != "Soft & cozy" {
		t.Fatalf("got %q", got)
	}
}

func TestTruncateRespectsRuneBoundaries(t *testing.T) {
	got := truncate("hello world", 5)
	if got != "hello" {
		t.Fatalf("got %q", got)
	}
	if truncate("short", 10) != "short" {
		t.Fatal("should not pad or alter strings shorter than n")
	}
}
