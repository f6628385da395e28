package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellsadvisors/fleet/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedTenant(t *testing.T, s *SQLiteStore, id string) {
	t.Helper()
	ctx := context.Background()
	_, err := s.db.ExecContext(ctx, `INSERT INTO tenants (id, name, shop_hostname, access_token, active) VALUES (?,?,?,?,1)`,
		id, "Acme", "acme.myshopify.com", "tok")
	require.NoError(t, err)
}

func TestProductSalesUpsertRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedTenant(t, s, "t1")
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	row := model.ProductSales{
		TenantID: "t1", CollectionID: "c1", ProductID: "p1", ProductTitle: "Mug",
		DateAddedToCollection: now.Add(-10 * 24 * time.Hour), LastUpdate: now,
		Last3Days: 2, Last7Days: 5, Last10Days: 7, Last14Days: 9, TotalSales: 123.45, TotalQuantity: 9,
	}
	require.NoError(t, s.UpsertProductSales(ctx, []model.ProductSales{row}))

	got, err := s.GetProductSales(ctx, "t1", "c1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Mug", got.ProductTitle)
	assert.Equal(t, 5, got.Last7Days)
	assert.Equal(t, 123.45, got.TotalSales)

	row.ProductTitle = "Mug v2"
	row.Last7Days = 6
	require.NoError(t, s.UpsertProductSales(ctx, []model.ProductSales{row}))

	got, err = s.GetProductSales(ctx, "t1", "c1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "Mug v2", got.ProductTitle)
	assert.Equal(t, 6, got.Last7Days)
	assert.Equal(t, now.Add(-10*24*time.Hour), got.DateAddedToCollection)
}

func TestPinterestSyncLogActiveUniqueness(t *testing.T) {
	s := newTestStore(t)
	seedTenant(t, s, "t1")
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.InsertPinterestSyncLog(ctx, model.PinterestSyncLog{
		TenantID: "t1", CampaignID: "camp1", ProductID: "p1", BoardID: "b1", Success: true, SyncedAt: now,
	}))

	active, err := s.GetActiveSyncLog(ctx, "t1", "camp1", "p1")
	require.NoError(t, err)
	assert.False(t, active.Paused)

	require.NoError(t, s.PauseSyncLog(ctx, active.ID))

	require.NoError(t, s.InsertPinterestSyncLog(ctx, model.PinterestSyncLog{
		TenantID: "t1", CampaignID: "camp1", ProductID: "p1", BoardID: "b2", Success: true, SyncedAt: now,
	}))

	active2, err := s.GetActiveSyncLog(ctx, "t1", "camp1", "p1")
	require.NoError(t, err)
	assert.Equal(t, "b2", active2.BoardID)
}

func TestJobRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	seedTenant(t, s, "t1")
	ctx := context.Background()

	run, err := s.OpenJobRun(ctx, model.PipelineSalesTracker, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	run.AppendError("failed to fetch page 3")
	run.Close(time.Now().UTC(), false)
	require.NoError(t, s.CloseJobRun(ctx, run))

	got, err := s.GetJobRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompletedWithErrors, got.Status)
	assert.Len(t, got.ErrorLog, 1)
	require.NotNil(t, got.FinishedAt)
}

func TestListOptimizationRulesOrdersByPriorityAndSkipsDisabled(t *testing.T) {
	s := newTestStore(t)
	seedTenant(t, s, "t1")
	ctx := context.Background()

	insertRule := func(id string, priority int, enabled bool) {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO optimization_rules (id, tenant_id, priority, enabled, condition_groups, conditions, action, campaign_type)
			VALUES (?,?,?,?,?,?,?,?)`,
			id, "t1", priority, enabled, `[]`, `[]`, `{"kind":"pause","unit":"amount","value":0}`, "")
		require.NoError(t, err)
	}
	insertRule("low", 2, true)
	insertRule("disabled", 0, false)
	insertRule("high", 1, true)

	rules, err := s.ListOptimizationRules(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "high", rules[0].ID)
	assert.Equal(t, "low", rules[1].ID)
}
