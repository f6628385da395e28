package salestracker

import (
	"context"
	"testing"
	"time"

	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/pkg/commerce"
)

type stubCommerceClient struct {
	commerce.Client
	restOrders []commerce.Order
	gqlOrders  []commerce.Order
}

func (s *stubCommerceClient) ListOrdersSince(ctx context.Context, productID string, since time.Time) ([]commerce.Order, error) {
	return s.restOrders, nil
}

func (s *stubCommerceClient) QueryOrdersByTag(ctx context.Context, productID string, since time.Time) ([]commerce.Order, error) {
	return s.gqlOrders, nil
}

func TestFetchConvergedOrderLinesDedupsAcrossSources(t *testing.T) {
	now := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	shared := commerce.Order{
		ID: "order-1",
		Lines: []commerce.OrderLine{
			{LineItemID: "li-1", ProductID: "p1", Quantity: 2, Amount: 20, OccurredAt: now},
		},
	}
	onlyGraphQL := commerce.Order{
		ID: "order-2",
		Lines: []commerce.OrderLine{
			{LineItemID: "li-2", ProductID: "p1", Quantity: 1, Amount: 10, OccurredAt: now},
		},
	}

	client := &stubCommerceClient{
		restOrders: []commerce.Order{shared},
		gqlOrders:  []commerce.Order{shared, onlyGraphQL},
	}

	lines, err := fetchConvergedOrderLines(context.Background(), client, "p1", now.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 deduped lines, got %d", len(lines))
	}

	var total int
	for _, l := range lines {
		total += l.Quantity
	}
	if total != 3 {
		t.Fatalf("expected total quantity 3, got %d", total)
	}
}

func TestBucketOrderLinesWindowBoundaries(t *testing.T) {
	loc := time.UTC
	anchor := time.Date(2026, 7, 1, 0, 0, 0, 0, loc)
	now := time.Date(2026, 7, 20, 15, 0, 0, 0, loc)

	lines := []model.OrderLine{
		// inside first-7-days window [anchor, anchor+7d)
		{OrderID: "o1", LineItemID: "l1", Quantity: 1, Amount: 10, OccurredAt: time.Date(2026, 7, 3, 10, 0, 0, 0, loc)},
		// exactly on the first-7-days boundary -> excluded
		{OrderID: "o2", LineItemID: "l2", Quantity: 5, Amount: 50, OccurredAt: anchor.AddDate(0, 0, 7)},
		// today (excluded from all "last N days" counters)
		{OrderID: "o3", LineItemID: "l3", Quantity: 2, Amount: 20, OccurredAt: time.Date(2026, 7, 20, 9, 0, 0, 0, loc)},
		// 2 days before today -> within last_3_days
		{OrderID: "o4", LineItemID: "l4", Quantity: 3, Amount: 30, OccurredAt: time.Date(2026, 7, 18, 9, 0, 0, 0, loc)},
		// 9 days before today -> within last_10_days but not last_7_days
		{OrderID: "o5", LineItemID: "l5", Quantity: 4, Amount: 40, OccurredAt: time.Date(2026, 7, 11, 9, 0, 0, 0, loc)},
	}

	b := bucketOrderLines(lines, anchor, now, loc)

	if b.First7Days != 1 {
		t.Errorf("First7Days = %d, want 1", b.First7Days)
	}
	if b.Last3Days != 3 {
		t.Errorf("Last3Days = %d, want 3 (today excluded)", b.Last3Days)
	}
	if b.Last7Days != 3 {
		t.Errorf("Last7Days = %d, want 3", b.Last7Days)
	}
	if b.Last10Days != 7 {
		t.Errorf("Last10Days = %d, want 7", b.Last10Days)
	}
	if b.TotalQuantity != 15 {
		t.Errorf("TotalQuantity = %d, want 15", b.TotalQuantity)
	}
	if b.TotalSales != 150 {
		t.Errorf("TotalSales = %v, want 150", b.TotalSales)
	}
}
