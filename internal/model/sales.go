package model

import "time"

// ProductSales is the per-(tenant, collection, product) sales aggregate
// rolled up by Pipeline B and consumed by Pipelines C, E, and F.
//
// Invariants: exactly one row per (tenant, collection, product);
// DateAddedToCollection is set once on first observation and never
// overwritten; LastUpdate is monotonic; the "last N days" counters exclude
// the current local day in the shop's timezone.
type ProductSales struct {
	TenantID     string `json:"tenant_id"`
	CollectionID string `json:"collection_id"`
	ProductID    string `json:"product_id"`
	ProductTitle string `json:"product_title"`

	DateAddedToCollection time.Time `json:"date_added_to_collection"`
	LastUpdate            time.Time `json:"last_update"`

	First7Days int `json:"first_7_days"`
	Last3Days  int `json:"last_3_days"`
	Last7Days  int `json:"last_7_days"`
	Last10Days int `json:"last_10_days"`
	Last14Days int `json:"last_14_days"`

	TotalSales    float64 `json:"total_sales"`
	TotalQuantity int     `json:"total_quantity"`
}

// DaysInCollection returns the number of whole days that have elapsed since
// the product was added to the collection, as of the given instant.
func (p ProductSales) DaysInCollection(asOf time.Time) int {
	return int(asOf.Sub(p.DateAddedToCollection).Hours() / 24)
}

// OrderLine is a single order line item pulled from the commerce platform,
// used as the dedup unit for convergence across the REST, paginated-scan,
// and GraphQL sources (§4.B step 4).
type OrderLine struct {
	OrderID    string
	LineItemID string
	ProductID  string
	Quantity   int
	Amount     float64
	OccurredAt time.Time // in the shop's local timezone
}

// DedupKey returns the (order_id, line_item_id) key used to merge order
// lines observed through multiple sources by set union.
func (o OrderLine) DedupKey() string {
	return o.OrderID + ":" + o.LineItemID
}

// SalesBuckets is the mutable accumulator used while bucketing order lines
// into the five sales counters.
type SalesBuckets struct {
	First7Days    int
	Last3Days     int
	Last7Days     int
	Last10Days    int
	Last14Days    int
	TotalSales    float64
	TotalQuantity int
}

// Apply folds the bucket counts and totals into a ProductSales row.
func (b SalesBuckets) Apply(p *ProductSales) {
	p.First7Days = b.First7Days
	p.Last3Days = b.Last3Days
	p.Last7Days = b.Last7Days
	p.Last10Days = b.Last10Days
	p.Last14Days = b.Last14Days
	p.TotalSales = b.TotalSales
	p.TotalQuantity = b.TotalQuantity
}
