package salestracker

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/pkg/commerce"
)

// fetchConvergedOrderLines pulls order lines for productID since anchor
// from every available commerce-platform source and merges them by set
// union on (order_id, line_item_id), per §4.B step 4: "use as many sources
// as needed to achieve convergence... the sources MUST converge to the
// same final quantities." ListOrdersSince already walks the REST endpoint
// to exhaustion, so it stands in for both the direct order search and the
// full paginated scan; QueryOrdersByTag is the independent GraphQL source.
func fetchConvergedOrderLines(ctx context.Context, client commerce.Client, productID string, anchor time.Time) ([]model.OrderLine, error) {
	seen := make(map[string]model.OrderLine)

	restOrders, err := client.ListOrdersSince(ctx, productID, anchor)
	if err != nil {
		return nil, eris.Wrap(err, "rest order search")
	}
	mergeOrders(seen, restOrders)

	gqlOrders, err := client.QueryOrdersByTag(ctx, productID, anchor)
	if err != nil {
		return nil, eris.Wrap(err, "graphql order query")
	}
	mergeOrders(seen, gqlOrders)

	lines := make([]model.OrderLine, 0, len(seen))
	for _, l := range seen {
		lines = append(lines, l)
	}
	return lines, nil
}

func mergeOrders(seen map[string]model.OrderLine, orders []commerce.Order) {
	for _, order := range orders {
		for _, line := range order.Lines {
			ol := model.OrderLine{
				OrderID:    order.ID,
				LineItemID: line.LineItemID,
				ProductID:  line.ProductID,
				Quantity:   line.Quantity,
				Amount:     line.Amount,
				OccurredAt: line.OccurredAt,
			}
			seen[ol.DedupKey()] = ol
		}
	}
}

// bucketOrderLines buckets order lines into the five sales counters using
// shop-local calendar days (§4.B step 5). first_7_days counts lines within
// [anchor, anchor+7d); last_N_days counts lines within the N local days
// immediately preceding the start of today, excluding today itself.
func bucketOrderLines(lines []model.OrderLine, anchor, now time.Time, loc *time.Location) model.SalesBuckets {
	var b model.SalesBuckets

	anchorLocal := anchor.In(loc)
	firstWindowEnd := anchorLocal.AddDate(0, 0, 7)
	todayStart := startOfLocalDay(now.In(loc))

	for _, line := range lines {
		occurred := line.OccurredAt.In(loc)

		b.TotalSales += line.Amount
		b.TotalQuantity += line.Quantity

		if !occurred.Before(anchorLocal) && occurred.Before(firstWindowEnd) {
			b.First7Days += line.Quantity
		}
		if withinPrecedingDays(occurred, todayStart, 3) {
			b.Last3Days += line.Quantity
		}
		if withinPrecedingDays(occurred, todayStart, 7) {
			b.Last7Days += line.Quantity
		}
		if withinPrecedingDays(occurred, todayStart, 10) {
			b.Last10Days += line.Quantity
		}
		if withinPrecedingDays(occurred, todayStart, 14) {
			b.Last14Days += line.Quantity
		}
	}
	return b
}

func startOfLocalDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// withinPrecedingDays reports whether occurred falls within the n local
// days immediately before todayStart, excluding today itself.
func withinPrecedingDays(occurred, todayStart time.Time, n int) bool {
	windowStart := todayStart.AddDate(0, 0, -n)
	return !occurred.Before(windowStart) && occurred.Before(todayStart)
}
