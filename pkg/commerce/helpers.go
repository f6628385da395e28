package commerce

import (
	"strconv"
	"strings"
	"time"
)

// restOrder mirrors the REST order-search endpoint's order shape, used by
// ListOrdersSince.
type restOrder struct {
	ID        int64           `json:"id"`
	LineItems []restLineItem  `json:"line_items"`
	CreatedAt time.Time       `json:"created_at"`
}

type restLineItem struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func joinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

func parseAmount(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// nextPageURL extracts the rel="next" URL from a Shopify-style Link
// header, e.g. `<https://...&page_info=abc>; rel="next"`. Returns "" once
// there is no next page.
func nextPageURL(link string) string {
	for _, part := range strings.Split(link, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		if !strings.Contains(segments[1], `rel="next"`) {
			continue
		}
		u := strings.TrimSpace(segments[0])
		u = strings.TrimPrefix(u, "<")
		u = strings.TrimSuffix(u, ">")
		return u
	}
	return ""
}

func toOrders(raw []restOrder, productID string) []Order {
	orders := make([]Order, 0, len(raw))
	for _, o := range raw {
		var lines []OrderLine
		for _, li := range o.LineItems {
			pid := strconv.FormatInt(li.ProductID, 10)
			if pid != productID {
				continue
			}
			lines = append(lines, OrderLine{
				LineItemID: strconv.FormatInt(li.ID, 10),
				ProductID:  pid,
				Quantity:   li.Quantity,
				Amount:     parseAmount(li.Price) * float64(li.Quantity),
				OccurredAt: o.CreatedAt,
			})
		}
		if len(lines) > 0 {
			orders = append(orders, Order{ID: strconv.FormatInt(o.ID, 10), Lines: lines})
		}
	}
	return orders
}
