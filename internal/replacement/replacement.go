// Package replacement implements Pipeline C: it evaluates every tracked
// product against its tenant's lifecycle thresholds and swaps
// under-performers out of their collection while preserving display order
// (§4.C).
package replacement

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sellsadvisors/fleet/internal/jobrun"
	"github.com/sellsadvisors/fleet/internal/model"
	"github.com/sellsadvisors/fleet/internal/rules"
	"github.com/sellsadvisors/fleet/internal/store"
	"github.com/sellsadvisors/fleet/pkg/commerce"
)

// lifecycleState is a product's position in the replace/keep state machine
// (§4.C lifecycle table).
type lifecycleState int

const (
	stateTooNew lifecycleState = iota
	stateInitial
	statePost
)

// settleDelay is the bounded wait between Phase 1 (tag swap) and Phase 2
// (position restoration) for the smart collection to re-evaluate membership
// (§4.C Phase 2, §5 ordering guarantees).
const settleDelay = 90 * time.Second

// CommerceFactory builds a commerce-platform client scoped to one tenant.
type CommerceFactory func(tenant model.Tenant) commerce.Client

// Runner drives Pipeline C across every tenant with at least one tracked
// collection.
type Runner struct {
	Store       store.Store
	Ledger      *jobrun.Ledger
	Commerce    CommerceFactory
	Clock       func() time.Time
	Sleep       func(time.Duration)
	Concurrency int
}

// NewRunner builds a Runner with sensible defaults.
func NewRunner(st store.Store, commerceFactory CommerceFactory) *Runner {
	return &Runner{
		Store:       st,
		Ledger:      jobrun.NewLedger(st),
		Commerce:    commerceFactory,
		Clock:       time.Now,
		Sleep:       time.Sleep,
		Concurrency: 4,
	}
}

// Summary aggregates counters across every tenant task in one invocation.
type Summary struct {
	TenantsProcessed int64
	TenantsFailed    int64
	ProductsEvaluated int64
	Replacements      int64
	LoserZeroedOut    int64
}

// Run processes every eligible tenant concurrently, bounded by Concurrency.
// A collection is handled by exactly one goroutine at a time (§5 ordering
// guarantees); across collections within a tenant, processing is serial to
// keep the per-tenant mutation order simple to reason about.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	tenants, err := r.Store.ListActiveTenants(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "replacement: list active tenants")
	}

	summary := &Summary{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Concurrency, 1))

	for _, tenant := range tenants {
		tenant := tenant
		g.Go(func() error {
			r.runTenant(gctx, tenant, summary)
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("replacement: run complete",
		zap.Int64("tenants_processed", summary.TenantsProcessed),
		zap.Int64("replacements", summary.Replacements),
	)
	return summary, nil
}

func (r *Runner) runTenant(ctx context.Context, tenant model.Tenant, summary *Summary) {
	assignments, err := r.Store.ListCampaignBatchAssignments(ctx, tenant.ID)
	if err != nil {
		zap.L().Error("replacement: list assignments", zap.String("tenant_id", tenant.ID), zap.Error(err))
		return
	}
	if len(assignments) == 0 {
		return
	}

	run, err := r.Ledger.Open(ctx, model.PipelineReplacement, tenant.ID)
	if err != nil {
		zap.L().Error("replacement: open job run", zap.String("tenant_id", tenant.ID), zap.Error(err))
		return
	}
	atomic.AddInt64(&summary.TenantsProcessed, 1)

	tenantRules, err := r.Store.GetTenantRules(ctx, tenant.ID)
	if err != nil {
		run.AppendError(eris.Wrap(err, "replacement: load tenant rules").Error())
		atomic.AddInt64(&summary.TenantsFailed, 1)
		_ = r.Ledger.Close(ctx, run, true)
		return
	}

	client := r.Commerce(tenant)

	for _, collectionID := range collectionIDs(assignments) {
		if err := r.processCollection(ctx, client, tenant.ID, collectionID, *tenantRules, summary); err != nil {
			run.AppendError(eris.Wrapf(err, "replacement: collection %s", collectionID).Error())
		}
	}

	if len(run.ErrorLog) > 0 {
		atomic.AddInt64(&summary.TenantsFailed, 1)
	}
	if err := r.Ledger.Close(ctx, run, false); err != nil {
		zap.L().Error("replacement: close job run", zap.String("tenant_id", tenant.ID), zap.Error(err))
	}
}

func collectionIDs(assignments []model.CampaignBatchAssignment) []string {
	seen := make(map[string]bool, len(assignments))
	var out []string
	for _, a := range assignments {
		if seen[a.CollectionID] {
			continue
		}
		seen[a.CollectionID] = true
		out = append(out, a.CollectionID)
	}
	return out
}

// processCollection evaluates every product in a collection against the
// lifecycle state machine, then runs the two-phase replacement protocol for
// whichever products need replacing.
func (r *Runner) processCollection(ctx context.Context, client commerce.Client, tenantID, collectionID string, tr model.TenantRules, summary *Summary) error {
	collection, err := client.GetCollection(ctx, collectionID)
	if err != nil {
		return eris.Wrap(err, "fetch collection")
	}

	sales, err := r.Store.ListProductSales(ctx, tenantID, collectionID)
	if err != nil {
		return eris.Wrap(err, "list product sales")
	}

	now := r.Clock().UTC()
	var toReplace []model.ProductSales
	for _, p := range sales {
		atomic.AddInt64(&summary.ProductsEvaluated, 1)
		if decide(p, tr, now) {
			toReplace = append(toReplace, p)
		}
	}
	if len(toReplace) == 0 {
		return nil
	}

	if tr.TestMode {
		zap.L().Info("replacement: test mode, skipping writes",
			zap.String("tenant_id", tenantID), zap.String("collection_id", collectionID),
			zap.Int("would_replace", len(toReplace)))
		return nil
	}

	return r.replace(ctx, client, tenantID, collectionID, collection, toReplace, tr, now, summary)
}

// decide applies the lifecycle state machine and action policy (§4.C) to a
// single product, returning true when it should be replaced.
func decide(p model.ProductSales, tr model.TenantRules, now time.Time) bool {
	days := p.DaysInCollection(now)

	switch classify(days, tr) {
	case stateTooNew:
		return false
	case stateInitial:
		return p.First7Days <= tr.MinSalesDay7Delete || p.First7Days <= tr.MinSalesDay7Replace
	default: // statePost
		passed := rules.BucketsPassed(p, rules.BucketThresholds{
			Avg3: tr.Avg3OK, Avg7: tr.Avg7OK, Avg10: tr.Avg10OK, Avg14: tr.Avg14OK,
		})
		return !rules.MeetsMinimum(passed, tr.MinOKBuckets)
	}
}

func classify(daysInCollection int, tr model.TenantRules) lifecycleState {
	switch {
	case daysInCollection < tr.StartPhaseDays:
		return stateTooNew
	case daysInCollection < tr.PostPhaseDays:
		return stateInitial
	default:
		return statePost
	}
}

// replace runs the two-phase replacement protocol for one collection:
// snapshot positions, swap tags against queued candidates, apply LOSER
// handling, then (for manual-sort collections) wait out the settle delay
// and restore positions.
func (r *Runner) replace(ctx context.Context, client commerce.Client, tenantID, collectionID string, collection commerce.Collection, outgoing []model.ProductSales, tr model.TenantRules, now time.Time, summary *Summary) error {
	products, err := client.ListCollectionProducts(ctx, collectionID)
	if err != nil {
		return eris.Wrap(err, "snapshot positions")
	}
	originalPosition := make(map[string]int, len(products))
	currentTags := make(map[string][]string, len(products))
	for i, p := range products {
		originalPosition[p.ID] = i
		currentTags[p.ID] = p.Tags
	}

	candidates, err := findCandidates(ctx, client, tr.QueueTagOrDefault(), len(outgoing))
	if err != nil {
		return eris.Wrap(err, "fetch replacement candidates")
	}

	pairs := pairOutgoingWithCandidates(outgoing, candidates)
	for _, pair := range pairs {
		if err := r.swapOne(ctx, client, collection, pair, currentTags[pair.outgoing.ProductID], tr, now); err != nil {
			zap.L().Error("replacement: swap failed",
				zap.String("tenant_id", tenantID), zap.String("collection_id", collectionID),
				zap.String("outgoing_product_id", pair.outgoing.ProductID), zap.Error(err))
			continue
		}
		atomic.AddInt64(&summary.Replacements, 1)
		if pair.outgoing.TotalSales <= float64(tr.LoserThreshold) {
			if err := client.ZeroInventory(ctx, pair.outgoing.ProductID); err != nil {
				zap.L().Error("replacement: zero inventory failed",
					zap.String("product_id", pair.outgoing.ProductID), zap.Error(err))
			} else {
				atomic.AddInt64(&summary.LoserZeroedOut, 1)
			}
		}
	}

	if collection.SortOrder != "MANUAL" || len(pairs) == 0 {
		return nil
	}
	r.Sleep(settleDelay)
	return r.restorePositions(ctx, client, collectionID, pairs, originalPosition)
}

type replacementPair struct {
	outgoing  model.ProductSales
	candidate commerce.Product
}

func pairOutgoingWithCandidates(outgoing []model.ProductSales, candidates []commerce.Product) []replacementPair {
	n := min(len(outgoing), len(candidates))
	pairs := make([]replacementPair, 0, n)
	for i := 0; i < n; i++ {
		pairs = append(pairs, replacementPair{outgoing: outgoing[i], candidate: candidates[i]})
	}
	return pairs
}

func findCandidates(ctx context.Context, client commerce.Client, queueTag string, need int) ([]commerce.Product, error) {
	products, err := client.ListProductsByTag(ctx, queueTag)
	if err != nil {
		return nil, err
	}
	if len(products) > need {
		products = products[:need]
	}
	return products, nil
}

// swapOne performs the tag mutation for a single outgoing/candidate pair
// (§4.C Phase 1 step 3).
func (r *Runner) swapOne(ctx context.Context, client commerce.Client, collection commerce.Collection, pair replacementPair, outgoingCurrentTags []string, tr model.TenantRules, now time.Time) error {
	candidateTags := appendTag(removeTag(pair.candidate.Tags, tr.QueueTagOrDefault()), collection.RuleTag)
	if err := client.SetProductTags(ctx, pair.candidate.ID, candidateTags); err != nil {
		return eris.Wrap(err, "tag candidate")
	}

	archiveTag := fmt.Sprintf("replaced_%s", now.Format("02-01-2006"))
	outgoingTags := appendTag(removeTag(outgoingCurrentTags, collection.RuleTag), archiveTag)
	if err := client.SetProductTags(ctx, pair.outgoing.ProductID, outgoingTags); err != nil {
		return eris.Wrap(err, "untag outgoing product")
	}
	return nil
}

func removeTag(tags []string, remove string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != remove {
			out = append(out, t)
		}
	}
	return out
}

func appendTag(tags []string, add string) []string {
	for _, t := range tags {
		if t == add {
			return tags
		}
	}
	return append(tags, add)
}

// restorePositions re-reads positions after the settle delay and issues a
// single reorder placing each incoming candidate at the position vacated by
// the product it replaced (§4.C Phase 2). A candidate already sitting at its
// target position is left out of the move list.
func (r *Runner) restorePositions(ctx context.Context, client commerce.Client, collectionID string, pairs []replacementPair, originalPosition map[string]int) error {
	current, err := client.ListCollectionProducts(ctx, collectionID)
	if err != nil {
		return eris.Wrap(err, "re-read positions")
	}
	currentPosition := make(map[string]int, len(current))
	for i, p := range current {
		currentPosition[p.ID] = i
	}
	moves := make([]commerce.ProductMove, 0, len(pairs))
	for _, pair := range pairs {
		target, ok := originalPosition[pair.outgoing.ProductID]
		if !ok {
			continue
		}
		if pos, ok := currentPosition[pair.candidate.ID]; ok && pos == target {
			continue
		}
		moves = append(moves, commerce.ProductMove{ProductID: pair.candidate.ID, TargetPosition: target})
	}
	if len(moves) == 0 {
		return nil
	}
	_, err = client.ReorderCollection(ctx, collectionID, moves)
	return eris.Wrap(err, "reorder collection")
}
