package commerce

import (
	"testing"
	"time"
)

func TestSplitTags(t *testing.T) {
	got := splitTags("winner, QK ,replaced_01-01-2026")
	want := []string{"winner", "QK", "replaced_01-01-2026"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitTagsEmpty(t *testing.T) {
	if got := splitTags(""); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestJoinTags(t *testing.T) {
	got := joinTags([]string{"a", "b"})
	if got != "a, b" {
		t.Fatalf("got %q, want %q", got, "a, b")
	}
}

func TestParseAmount(t *testing.T) {
	if got := parseAmount("12.50"); got != 12.5 {
		t.Fatalf("got %v, want 12.5", got)
	}
	if got := parseAmount("not-a-number"); got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
}

func TestToOrdersFiltersByProductAndDedupsEmpty(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	raw := []restOrder{
		{
			ID: 1,
			LineItems: []restLineItem{
				{ID: 10, ProductID: 100, Quantity: 2, Price: "9.99"},
				{ID: 11, ProductID: 200, Quantity: 1, Price: "5.00"},
			},
			CreatedAt: now,
		},
		{
			ID: 2,
			LineItems: []restLineItem{
				{ID: 20, ProductID: 200, Quantity: 3, Price: "1.00"},
			},
			CreatedAt: now,
		},
	}

	orders := toOrders(raw, "100")
	if len(orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(orders))
	}
	if len(orders[0].Lines) != 1 || orders[0].Lines[0].ProductID != "100" {
		t.Fatalf("unexpected lines: %+v", orders[0].Lines)
	}
	if orders[0].Lines[0].Amount != 19.98 {
		t.Fatalf("got amount %v, want 19.98", orders[0].Lines[0].Amount)
	}
}

func TestNextPageURL(t *testing.T) {
	cases := map[string]string{
		`<https://shop.example.com/a?page_info=xyz>; rel="next"`:                                     "https://shop.example.com/a?page_info=xyz",
		`<https://shop.example.com/a?page_info=prev>; rel="previous"`:                                 "",
		`<https://shop.example.com/a?page_info=prev>; rel="previous", <https://shop.example.com/a?page_info=next>; rel="next"`: "https://shop.example.com/a?page_info=next",
		"": "",
	}
	for link, want := range cases {
		if got := nextPageURL(link); got != want {
			t.Fatalf("nextPageURL(%q) = %q, want %q", link, got, want)
		}
	}
}
