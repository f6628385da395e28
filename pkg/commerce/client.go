// Package commerce wraps the commerce platform's REST and GraphQL surfaces
// for the operations Pipelines B, C, and D need: shop metadata, collection
// membership and reordering, order history, tag mutation, and inventory
// zeroing. Shaped after pkg/notion's typed Client interface and
// functional-options constructor, built on the shared internal/httpx
// transport so every call gets retry/rate-limit/error-kind handling for
// free instead of each pipeline hand-rolling it.
package commerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sellsadvisors/fleet/internal/httpx"
	"github.com/sellsadvisors/fleet/internal/ratelimit"
	"github.com/sellsadvisors/fleet/internal/resilience"
)

// Client defines the commerce-platform operations the fleet requires (§6).
type Client interface {
	// ShopMetadata returns the shop's display name and IANA timezone.
	ShopMetadata(ctx context.Context) (ShopMetadata, error)

	// ListCollectionProducts returns the collection's products in manual
	// sort order.
	ListCollectionProducts(ctx context.Context, collectionID string) ([]Product, error)

	// ListProductsByTag returns products carrying the given tag, used to
	// source replacement candidates from the tenant-wide queue tag (§4.C
	// Phase 1 step 2).
	ListProductsByTag(ctx context.Context, tag string) ([]Product, error)

	// GetCollection returns a collection's rule set and sort order.
	GetCollection(ctx context.Context, collectionID string) (Collection, error)

	// ListOrdersSince walks every page of the REST order-search endpoint
	// for orders referencing productID placed at or after since. This
	// covers both the direct REST order search and the full paginated
	// scan named in §4.B step 4: on this platform they're the same
	// endpoint, the only difference being whether the caller follows the
	// Link header to the end.
	ListOrdersSince(ctx context.Context, productID string, since time.Time) ([]Order, error)

	// QueryOrdersByTag runs the structured GraphQL order query, the second
	// convergence source for §4.B step 4.
	QueryOrdersByTag(ctx context.Context, productID string, since time.Time) ([]Order, error)

	// SetProductTags replaces a product's tag set.
	SetProductTags(ctx context.Context, productID string, tags []string) error

	// ZeroInventory sets a product's inventory to zero at every location
	// it is stocked, via the quantities-set mutation.
	ZeroInventory(ctx context.Context, productID string) error

	// ReorderCollection issues a single reorder mutation moving each
	// listed product to its target position, returning the async job id.
	ReorderCollection(ctx context.Context, collectionID string, moves []ProductMove) (string, error)
}

// ShopMetadata is the subset of shop settings the fleet needs.
type ShopMetadata struct {
	Name     string
	Timezone string // IANA zone, e.g. "America/Chicago"
}

// Product is a commerce-platform product as seen within a collection
// listing.
type Product struct {
	ID          string
	Title       string
	Handle      string
	ImageURL    string
	Tags        []string
	Description string // raw body HTML, stripped by callers that need plaintext
}

// Collection describes a commerce-platform collection's membership rule
// and sort order.
type Collection struct {
	ID        string
	Handle    string
	SortOrder string // e.g. "MANUAL", "BEST_SELLING"
	RuleTag   string // the tag driving smart-collection membership, if any
}

// Order is a single order with its line items, as returned by either the
// REST search or the GraphQL tag query.
type Order struct {
	ID    string
	Lines []OrderLine
}

// OrderLine is one line item of an Order.
type OrderLine struct {
	LineItemID string
	ProductID  string
	Quantity   int
	Amount     float64
	OccurredAt time.Time
}

// ProductMove is one entry of a collection reorder mutation.
type ProductMove struct {
	ProductID      string
	TargetPosition int
}

// Option configures the client.
type Option func(*client)

// WithRateLimit overrides the default commerce-platform rate limit
// (2 req/s, a conservative default for paginated REST scans).
func WithRateLimit(rps float64) Option {
	return func(c *client) { c.rps = rps }
}

// WithHTTPXClient overrides the shared transport (tests, custom retry
// policy).
func WithHTTPXClient(h *httpx.Client) Option {
	return func(c *client) { c.http = h }
}

// WithCircuitBreaker overrides the default per-host circuit breaker policy
// that guards every commerce-platform call.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *client) { c.circuit = &cfg }
}

type client struct {
	shopHostname string
	accessToken  string
	apiVersion   string
	rps          float64
	circuit      *resilience.CircuitBreakerConfig
	http         *httpx.Client
}

// NewClient builds a commerce-platform client for the given shop, using
// accessToken for every request's access-token header.
func NewClient(shopHostname, accessToken, apiVersion string, opts ...Option) Client {
	c := &client{
		shopHostname: shopHostname,
		accessToken:  accessToken,
		apiVersion:   apiVersion,
		rps:          2,
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		httpOpts := []httpx.Option{
			httpx.WithUserAgent("fleet-commerce/1.0"),
			httpx.WithRateLimiters(ratelimit.NewRegistry(c.rps, max(int(c.rps), 1))),
		}
		if c.circuit != nil {
			httpOpts = append(httpOpts, httpx.WithCircuitBreakerConfig(*c.circuit))
		}
		c.http = httpx.New(httpOpts...)
	}
	return c
}

func (c *client) restURL(path string) string {
	return fmt.Sprintf("https://%s/admin/api/%s/%s", c.shopHostname, c.apiVersion, path)
}

func (c *client) graphqlURL() string {
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", c.shopHostname, c.apiVersion)
}

func (c *client) headers() http.Header {
	h := http.Header{}
	h.Set("X-Shop-Access-Token", c.accessToken)
	return h
}

func (c *client) ShopMetadata(ctx context.Context) (ShopMetadata, error) {
	var out struct {
		Shop struct {
			Name     string `json:"name"`
			Timezone string `json:"iana_timezone"`
		} `json:"shop"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, c.restURL("shop.json"), c.headers(), nil, &out); err != nil {
		return ShopMetadata{}, fmt.Errorf("commerce: shop metadata: %w", err)
	}
	return ShopMetadata{Name: out.Shop.Name, Timezone: out.Shop.Timezone}, nil
}

func (c *client) ListCollectionProducts(ctx context.Context, collectionID string) ([]Product, error) {
	path := fmt.Sprintf("collections/%s/products.json?limit=250", url.PathEscape(collectionID))
	var out struct {
		Products []struct {
			ID       string `json:"id"`
			Title    string `json:"title"`
			Handle   string `json:"handle"`
			BodyHTML string `json:"body_html"`
			Image    struct {
				Src string `json:"src"`
			} `json:"image"`
			Tags string `json:"tags"`
		} `json:"products"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, c.restURL(path), c.headers(), nil, &out); err != nil {
		return nil, fmt.Errorf("commerce: list collection products: %w", err)
	}
	products := make([]Product, 0, len(out.Products))
	for _, p := range out.Products {
		products = append(products, Product{
			ID:          p.ID,
			Title:       p.Title,
			Handle:      p.Handle,
			ImageURL:    p.Image.Src,
			Tags:        splitTags(p.Tags),
			Description: p.BodyHTML,
		})
	}
	return products, nil
}

func (c *client) ListProductsByTag(ctx context.Context, tag string) ([]Product, error) {
	const query = `
query ProductsByTag($query: String!) {
  products(first: 250, query: $query) {
    edges {
      node {
        id
        title
        handle
        featuredImage { url }
        tags
      }
    }
  }
}`
	body := map[string]any{
		"query": query,
		"variables": map[string]any{
			"query": fmt.Sprintf("tag:'%s'", tag),
		},
	}
	var out struct {
		Data struct {
			Products struct {
				Edges []struct {
					Node struct {
						ID            string `json:"id"`
						Title         string `json:"title"`
						Handle        string `json:"handle"`
						FeaturedImage struct {
							URL string `json:"url"`
						} `json:"featuredImage"`
						Tags []string `json:"tags"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"products"`
		} `json:"data"`
	}
	if err := c.http.DoJSON(ctx, http.MethodPost, c.graphqlURL(), c.headers(), body, &out); err != nil {
		return nil, fmt.Errorf("commerce: list products by tag %s: %w", tag, err)
	}
	products := make([]Product, 0, len(out.Data.Products.Edges))
	for _, e := range out.Data.Products.Edges {
		n := e.Node
		products = append(products, Product{
			ID:       n.ID,
			Title:    n.Title,
			Handle:   n.Handle,
			ImageURL: n.FeaturedImage.URL,
			Tags:     n.Tags,
		})
	}
	return products, nil
}

func (c *client) GetCollection(ctx context.Context, collectionID string) (Collection, error) {
	path := fmt.Sprintf("smart_collections/%s.json", url.PathEscape(collectionID))
	var out struct {
		SmartCollection struct {
			ID        int64  `json:"id"`
			Handle    string `json:"handle"`
			SortOrder string `json:"sort_order"`
			Rules     []struct {
				Column    string `json:"column"`
				Condition string `json:"condition"`
			} `json:"rules"`
		} `json:"smart_collection"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, c.restURL(path), c.headers(), nil, &out); err != nil {
		return Collection{}, fmt.Errorf("commerce: get collection %s: %w", collectionID, err)
	}
	ruleTag := ""
	for _, r := range out.SmartCollection.Rules {
		if r.Column == "tag" {
			ruleTag = r.Condition
			break
		}
	}
	return Collection{
		ID:        fmt.Sprintf("%d", out.SmartCollection.ID),
		Handle:    out.SmartCollection.Handle,
		SortOrder: out.SmartCollection.SortOrder,
		RuleTag:   ruleTag,
	}, nil
}

// ListOrdersSince walks every page of the REST order-search endpoint via
// the Link header's page_info cursor (§4.B step 4's "full paginated scan"),
// following rel="next" until the platform stops returning one.
func (c *client) ListOrdersSince(ctx context.Context, productID string, since time.Time) ([]Order, error) {
	nextURL := fmt.Sprintf(
		"%s?status=any&created_at_min=%s&limit=250",
		c.restURL("orders.json"),
		url.QueryEscape(since.UTC().Format(time.RFC3339)),
	)

	var all []restOrder
	for nextURL != "" {
		var page struct {
			Orders []restOrder `json:"orders"`
		}
		headers, err := c.http.DoJSONPage(ctx, http.MethodGet, nextURL, c.headers(), nil, &page)
		if err != nil {
			return nil, fmt.Errorf("commerce: list orders since %s: %w", since, err)
		}
		all = append(all, page.Orders...)
		nextURL = nextPageURL(headers.Get("Link"))
	}
	return toOrders(all, productID), nil
}

func (c *client) QueryOrdersByTag(ctx context.Context, productID string, since time.Time) ([]Order, error) {
	const query = `
query OrdersForProduct($query: String!) {
  orders(first: 250, query: $query) {
    edges {
      node {
        id
        createdAt
        lineItems(first: 50) {
          edges {
            node {
              id
              quantity
              discountedTotalSet { shopMoney { amount } }
              product { id }
            }
          }
        }
      }
    }
  }
}`
	vars := map[string]any{
		"query": fmt.Sprintf("created_at:>='%s'", since.UTC().Format(time.RFC3339)),
	}
	body := map[string]any{"query": query, "variables": vars}

	var out struct {
		Data struct {
			Orders struct {
				Edges []struct {
					Node struct {
						ID        string    `json:"id"`
						CreatedAt time.Time `json:"createdAt"`
						LineItems struct {
							Edges []struct {
								Node struct {
									ID                    string `json:"id"`
									Quantity              int    `json:"quantity"`
									DiscountedTotalSet struct {
										ShopMoney struct {
											Amount string `json:"amount"`
										} `json:"shopMoney"`
									} `json:"discountedTotalSet"`
									Product struct {
										ID string `json:"id"`
									} `json:"product"`
								} `json:"node"`
							} `json:"edges"`
						} `json:"lineItems"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"orders"`
		} `json:"data"`
	}
	if err := c.http.DoJSON(ctx, http.MethodPost, c.graphqlURL(), c.headers(), body, &out); err != nil {
		return nil, fmt.Errorf("commerce: query orders by tag: %w", err)
	}

	orders := make([]Order, 0, len(out.Data.Orders.Edges))
	for _, e := range out.Data.Orders.Edges {
		n := e.Node
		var lines []OrderLine
		for _, le := range n.LineItems.Edges {
			ln := le.Node
			if ln.Product.ID != productID && ln.Product.ID != "" {
				continue
			}
			amount := parseAmount(ln.DiscountedTotalSet.ShopMoney.Amount)
			lines = append(lines, OrderLine{
				LineItemID: ln.ID,
				ProductID:  productID,
				Quantity:   ln.Quantity,
				Amount:     amount,
				OccurredAt: n.CreatedAt,
			})
		}
		if len(lines) > 0 {
			orders = append(orders, Order{ID: n.ID, Lines: lines})
		}
	}
	return orders, nil
}

func (c *client) SetProductTags(ctx context.Context, productID string, tags []string) error {
	path := fmt.Sprintf("products/%s.json", url.PathEscape(productID))
	body := map[string]any{
		"product": map[string]any{
			"id":   productID,
			"tags": joinTags(tags),
		},
	}
	if err := c.http.DoJSON(ctx, http.MethodPut, c.restURL(path), c.headers(), body, nil); err != nil {
		return fmt.Errorf("commerce: set tags for product %s: %w", productID, err)
	}
	return nil
}

func (c *client) ZeroInventory(ctx context.Context, productID string) error {
	const mutation = `
mutation SetQuantities($input: InventorySetQuantitiesInput!) {
  inventorySetQuantities(input: $input) {
    userErrors { field message }
  }
}`
	variants, err := c.productVariantInventoryItems(ctx, productID)
	if err != nil {
		return err
	}
	quantities := make([]map[string]any, 0, len(variants))
	for _, v := range variants {
		for _, loc := range v.locationIDs {
			quantities = append(quantities, map[string]any{
				"inventoryItemId": v.inventoryItemID,
				"locationId":      loc,
				"quantity":        0,
			})
		}
	}
	body := map[string]any{
		"query": mutation,
		"variables": map[string]any{
			"input": map[string]any{
				"name":                "available",
				"reason":              "correction",
				"ignoreCompareQuantity": true,
				"quantities":          quantities,
			},
		},
	}
	if err := c.http.DoJSON(ctx, http.MethodPost, c.graphqlURL(), c.headers(), body, nil); err != nil {
		return fmt.Errorf("commerce: zero inventory for product %s: %w", productID, err)
	}
	return nil
}

type variantInventory struct {
	inventoryItemID string
	locationIDs     []string
}

func (c *client) productVariantInventoryItems(ctx context.Context, productID string) ([]variantInventory, error) {
	path := fmt.Sprintf("products/%s.json", url.PathEscape(productID))
	var out struct {
		Product struct {
			Variants []struct {
				InventoryItemID int64 `json:"inventory_item_id"`
			} `json:"variants"`
		} `json:"product"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, c.restURL(path), c.headers(), nil, &out); err != nil {
		return nil, fmt.Errorf("commerce: fetch variants for product %s: %w", productID, err)
	}

	ids := make([]string, 0, len(out.Product.Variants))
	for _, v := range out.Product.Variants {
		ids = append(ids, fmt.Sprintf("%d", v.InventoryItemID))
	}
	if len(ids) == 0 {
		return nil, nil
	}

	levelsPath := fmt.Sprintf("inventory_levels.json?inventory_item_ids=%s&limit=250", url.QueryEscape(strings.Join(ids, ",")))
	var levelsOut struct {
		InventoryLevels []struct {
			InventoryItemID int64 `json:"inventory_item_id"`
			LocationID      int64 `json:"location_id"`
		} `json:"inventory_levels"`
	}
	if err := c.http.DoJSON(ctx, http.MethodGet, c.restURL(levelsPath), c.headers(), nil, &levelsOut); err != nil {
		return nil, fmt.Errorf("commerce: fetch inventory levels for product %s: %w", productID, err)
	}

	byItem := make(map[string][]string)
	for _, lvl := range levelsOut.InventoryLevels {
		itemID := fmt.Sprintf("gid://shopify/InventoryItem/%d", lvl.InventoryItemID)
		locID := fmt.Sprintf("gid://shopify/Location/%d", lvl.LocationID)
		byItem[itemID] = append(byItem[itemID], locID)
	}

	items := make([]variantInventory, 0, len(out.Product.Variants))
	for _, v := range out.Product.Variants {
		itemID := fmt.Sprintf("gid://shopify/InventoryItem/%d", v.InventoryItemID)
		items = append(items, variantInventory{inventoryItemID: itemID, locationIDs: byItem[itemID]})
	}
	return items, nil
}

func (c *client) ReorderCollection(ctx context.Context, collectionID string, moves []ProductMove) (string, error) {
	const mutation = `
mutation ReorderProducts($id: ID!, $moves: [MoveInput!]!) {
  collectionReorderProducts(id: $id, moves: $moves) {
    job { id }
    userErrors { field message }
  }
}`
	moveInputs := make([]map[string]any, 0, len(moves))
	for _, m := range moves {
		moveInputs = append(moveInputs, map[string]any{
			"id":       m.ProductID,
			"newPosition": fmt.Sprintf("%d", m.TargetPosition),
		})
	}
	body := map[string]any{
		"query": mutation,
		"variables": map[string]any{
			"id":    collectionID,
			"moves": moveInputs,
		},
	}
	var out struct {
		Data struct {
			CollectionReorderProducts struct {
				Job struct {
					ID string `json:"id"`
				} `json:"job"`
			} `json:"collectionReorderProducts"`
		} `json:"data"`
	}
	if err := c.http.DoJSON(ctx, http.MethodPost, c.graphqlURL(), c.headers(), body, &out); err != nil {
		return "", fmt.Errorf("commerce: reorder collection %s: %w", collectionID, err)
	}
	return out.Data.CollectionReorderProducts.Job.ID, nil
}
