package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sellsadvisors/fleet/internal/model"
)

// SQLiteStore implements Store against a pure-Go SQLite database. It is the
// default backend for local development and for unit tests that want real
// SQL semantics without a network dependency.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens dsn (a file path, or ":memory:") with the pragmas
// the fleet needs for safe concurrent access from a bounded worker pool.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	full := fmt.Sprintf("%s?_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dsn)
	db, err := sql.Open("sqlite", full)
	if err != nil {
		return nil, eris.Wrap(err, "store: open sqlite")
	}
	db.SetMaxOpenConns(10)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "store: ping sqlite")
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tenants (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	shop_hostname TEXT NOT NULL,
	access_token TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS tenant_rules (
	tenant_id TEXT PRIMARY KEY,
	start_phase_days INTEGER NOT NULL,
	post_phase_days INTEGER NOT NULL,
	min_sales_day7_delete INTEGER NOT NULL,
	min_sales_day7_replace INTEGER NOT NULL,
	avg3_ok INTEGER NOT NULL,
	avg7_ok INTEGER NOT NULL,
	avg10_ok INTEGER NOT NULL,
	avg14_ok INTEGER NOT NULL,
	min_ok_buckets INTEGER NOT NULL,
	loser_threshold INTEGER NOT NULL,
	queue_tag TEXT NOT NULL DEFAULT 'QK',
	optimization_enabled INTEGER NOT NULL DEFAULT 0,
	test_mode INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tracked_collections (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	collection_id TEXT NOT NULL,
	UNIQUE (tenant_id, collection_id)
);

CREATE TABLE IF NOT EXISTS campaign_batch_assignments (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	campaign_id TEXT NOT NULL,
	collection_id TEXT NOT NULL,
	batch_indices TEXT NOT NULL DEFAULT '[]',
	batch_size INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS product_sales (
	tenant_id TEXT NOT NULL,
	collection_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	product_title TEXT NOT NULL DEFAULT '',
	date_added_to_collection TEXT NOT NULL,
	last_update TEXT NOT NULL,
	first_7_days INTEGER NOT NULL DEFAULT 0,
	last_3_days INTEGER NOT NULL DEFAULT 0,
	last_7_days INTEGER NOT NULL DEFAULT 0,
	last_10_days INTEGER NOT NULL DEFAULT 0,
	last_14_days INTEGER NOT NULL DEFAULT 0,
	total_sales REAL NOT NULL DEFAULT 0,
	total_quantity INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (tenant_id, collection_id, product_id)
);

CREATE TABLE IF NOT EXISTS pinterest_auth (
	tenant_id TEXT PRIMARY KEY,
	access_token TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	expires_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pinterest_ad_accounts (
	tenant_id TEXT NOT NULL,
	ad_account_id TEXT NOT NULL,
	selected INTEGER NOT NULL DEFAULT 0,
	board_id TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (tenant_id, ad_account_id)
);

CREATE TABLE IF NOT EXISTS pinterest_campaigns (
	tenant_id TEXT NOT NULL,
	pinterest_campaign_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	daily_budget_micro INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	PRIMARY KEY (tenant_id, pinterest_campaign_id)
);

CREATE TABLE IF NOT EXISTS pinterest_sync_log (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	campaign_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	board_id TEXT NOT NULL DEFAULT '',
	pin_id TEXT NOT NULL DEFAULT '',
	ad_id TEXT NOT NULL DEFAULT '',
	ad_group_id TEXT NOT NULL DEFAULT '',
	success INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	synced_at TEXT NOT NULL,
	paused INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS pinterest_sync_log_active_uidx
	ON pinterest_sync_log (tenant_id, campaign_id, product_id)
	WHERE paused = 0;

CREATE TABLE IF NOT EXISTS optimization_settings (
	tenant_id TEXT PRIMARY KEY,
	enabled INTEGER NOT NULL DEFAULT 0,
	test_mode INTEGER NOT NULL DEFAULT 0,
	test_campaign_id TEXT NOT NULL DEFAULT '',
	test_metrics TEXT
);

CREATE TABLE IF NOT EXISTS optimization_rules (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	priority INTEGER NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	condition_groups TEXT NOT NULL DEFAULT '[]',
	conditions TEXT NOT NULL DEFAULT '[]',
	action TEXT NOT NULL,
	min_campaign_age_days INTEGER,
	max_campaign_age_days INTEGER,
	campaign_type TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS optimization_log (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	campaign_id TEXT NOT NULL,
	rule_id TEXT NOT NULL DEFAULT '',
	action_taken TEXT NOT NULL,
	old_budget REAL NOT NULL DEFAULT 0,
	new_budget REAL NOT NULL DEFAULT 0,
	old_status TEXT NOT NULL DEFAULT '',
	new_status TEXT NOT NULL DEFAULT '',
	metrics_snapshot TEXT,
	test_run INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS winner_scaling_settings (
	tenant_id TEXT PRIMARY KEY,
	t3 INTEGER NOT NULL DEFAULT 0,
	t7 INTEGER NOT NULL DEFAULT 0,
	t10 INTEGER NOT NULL DEFAULT 0,
	t14 INTEGER NOT NULL DEFAULT 0,
	min_buckets_required INTEGER NOT NULL DEFAULT 1,
	max_campaigns_per_winner INTEGER NOT NULL DEFAULT 0,
	max_campaigns_per_winner_video INTEGER NOT NULL DEFAULT 0,
	max_campaigns_per_winner_image INTEGER NOT NULL DEFAULT 0,
	video_enabled INTEGER NOT NULL DEFAULT 0,
	image_enabled INTEGER NOT NULL DEFAULT 0,
	link_type_product INTEGER NOT NULL DEFAULT 1,
	link_type_collection INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS winner_products (
	tenant_id TEXT NOT NULL,
	collection_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	product_title TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	buckets_passed INTEGER NOT NULL,
	identified_at TEXT NOT NULL,
	PRIMARY KEY (tenant_id, product_id, collection_id)
);

CREATE TABLE IF NOT EXISTS winner_campaigns (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	pinterest_campaign_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'ACTIVE',
	creative_asset_url TEXT NOT NULL DEFAULT '',
	linked_to_product INTEGER NOT NULL DEFAULT 0,
	linked_to_collection INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS winner_scaling_log (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	outcome TEXT NOT NULL,
	campaign_id TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS job_runs (
	id TEXT PRIMARY KEY,
	pipeline TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	error_log TEXT NOT NULL DEFAULT '[]',
	metadata TEXT NOT NULL DEFAULT '{}'
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return eris.Wrap(err, "store: migrate sqlite schema")
}

const sqliteTimeLayout = time.RFC3339Nano

func (s *SQLiteStore) GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, shop_hostname, access_token, active FROM tenants WHERE id = ?`, tenantID)
	var t model.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.ShopHostname, &t.AccessToken, &t.Active); err != nil {
		return nil, eris.Wrapf(err, "store: get tenant %s", tenantID)
	}
	return &t, nil
}

func (s *SQLiteStore) ListActiveTenants(ctx context.Context) ([]model.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, shop_hostname, access_token, active FROM tenants WHERE active = 1`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list active tenants")
	}
	defer rows.Close()
	var out []model.Tenant
	for rows.Next() {
		var t model.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.ShopHostname, &t.AccessToken, &t.Active); err != nil {
			return nil, eris.Wrap(err, "store: scan tenant")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "store: list active tenants rows")
}

func (s *SQLiteStore) GetTenantRules(ctx context.Context, tenantID string) (*model.TenantRules, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, start_phase_days, post_phase_days, min_sales_day7_delete,
		       min_sales_day7_replace, avg3_ok, avg7_ok, avg10_ok, avg14_ok,
		       min_ok_buckets, loser_threshold, queue_tag, optimization_enabled, test_mode
		FROM tenant_rules WHERE tenant_id = ?`, tenantID)
	var r model.TenantRules
	err := row.Scan(&r.TenantID, &r.StartPhaseDays, &r.PostPhaseDays, &r.MinSalesDay7Delete,
		&r.MinSalesDay7Replace, &r.Avg3OK, &r.Avg7OK, &r.Avg10OK, &r.Avg14OK,
		&r.MinOKBuckets, &r.LoserThreshold, &r.QueueTag, &r.OptimizationEnabled, &r.TestMode)
	if err != nil {
		return nil, eris.Wrap(err, "store: get tenant rules")
	}
	return &r, nil
}

func (s *SQLiteStore) ListTrackedCollections(ctx context.Context, tenantID string) ([]model.TrackedCollection, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, tenant_id, collection_id FROM tracked_collections WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list tracked collections")
	}
	defer rows.Close()
	var out []model.TrackedCollection
	for rows.Next() {
		var c model.TrackedCollection
		if err := rows.Scan(&c.ID, &c.TenantID, &c.CollectionID); err != nil {
			return nil, eris.Wrap(err, "store: scan tracked collection")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "store: list tracked collections rows")
}

func (s *SQLiteStore) ListCampaignBatchAssignments(ctx context.Context, tenantID string) ([]model.CampaignBatchAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, campaign_id, collection_id, batch_indices, batch_size
		FROM campaign_batch_assignments WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list campaign batch assignments")
	}
	defer rows.Close()
	var out []model.CampaignBatchAssignment
	for rows.Next() {
		var a model.CampaignBatchAssignment
		var indices string
		if err := rows.Scan(&a.ID, &a.TenantID, &a.CampaignID, &a.CollectionID, &indices, &a.BatchSize); err != nil {
			return nil, eris.Wrap(err, "store: scan campaign batch assignment")
		}
		if err := json.Unmarshal([]byte(indices), &a.BatchIndices); err != nil {
			return nil, eris.Wrap(err, "store: decode batch indices")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "store: list campaign batch assignments rows")
}

func (s *SQLiteStore) UpsertProductSales(ctx context.Context, rowsIn []model.ProductSales) error {
	if len(rowsIn) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin upsert product sales")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO product_sales (tenant_id, collection_id, product_id, product_title,
			date_added_to_collection, last_update, first_7_days, last_3_days,
			last_7_days, last_10_days, last_14_days, total_sales, total_quantity)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (tenant_id, collection_id, product_id) DO UPDATE SET
			product_title = excluded.product_title,
			last_update = excluded.last_update,
			first_7_days = excluded.first_7_days,
			last_3_days = excluded.last_3_days,
			last_7_days = excluded.last_7_days,
			last_10_days = excluded.last_10_days,
			last_14_days = excluded.last_14_days,
			total_sales = excluded.total_sales,
			total_quantity = excluded.total_quantity`)
	if err != nil {
		return eris.Wrap(err, "store: prepare upsert product sales")
	}
	defer stmt.Close()

	for _, p := range rowsIn {
		_, err := stmt.ExecContext(ctx, p.TenantID, p.CollectionID, p.ProductID, p.ProductTitle,
			p.DateAddedToCollection.Format(sqliteTimeLayout), p.LastUpdate.Format(sqliteTimeLayout),
			p.First7Days, p.Last3Days, p.Last7Days, p.Last10Days, p.Last14Days, p.TotalSales, p.TotalQuantity)
		if err != nil {
			return eris.Wrap(err, "store: upsert product sales row")
		}
	}
	return eris.Wrap(tx.Commit(), "store: commit upsert product sales")
}

func (s *SQLiteStore) GetProductSales(ctx context.Context, tenantID, collectionID, productID string) (*model.ProductSales, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, collection_id, product_id, product_title, date_added_to_collection,
		       last_update, first_7_days, last_3_days, last_7_days, last_10_days, last_14_days,
		       total_sales, total_quantity
		FROM product_sales WHERE tenant_id = ? AND collection_id = ? AND product_id = ?`,
		tenantID, collectionID, productID)
	return scanProductSalesRow(row)
}

func (s *SQLiteStore) ListProductSales(ctx context.Context, tenantID, collectionID string) ([]model.ProductSales, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, collection_id, product_id, product_title, date_added_to_collection,
		       last_update, first_7_days, last_3_days, last_7_days, last_10_days, last_14_days,
		       total_sales, total_quantity
		FROM product_sales WHERE tenant_id = ? AND collection_id = ?`, tenantID, collectionID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list product sales")
	}
	defer rows.Close()
	var out []model.ProductSales
	for rows.Next() {
		p, err := scanProductSalesRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "store: list product sales rows")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProductSalesRow(row rowScanner) (*model.ProductSales, error) {
	var p model.ProductSales
	var added, updated string
	err := row.Scan(&p.TenantID, &p.CollectionID, &p.ProductID, &p.ProductTitle, &added,
		&updated, &p.First7Days, &p.Last3Days, &p.Last7Days, &p.Last10Days, &p.Last14Days,
		&p.TotalSales, &p.TotalQuantity)
	if err != nil {
		return nil, eris.Wrap(err, "store: scan product sales")
	}
	if p.DateAddedToCollection, err = time.Parse(sqliteTimeLayout, added); err != nil {
		return nil, eris.Wrap(err, "store: parse date_added_to_collection")
	}
	if p.LastUpdate, err = time.Parse(sqliteTimeLayout, updated); err != nil {
		return nil, eris.Wrap(err, "store: parse last_update")
	}
	return &p, nil
}

func (s *SQLiteStore) GetPinterestAuth(ctx context.Context, tenantID string) (*model.PinterestAuth, error) {
	row := s.db.QueryRowContext(ctx, `SELECT tenant_id, access_token, refresh_token, expires_at FROM pinterest_auth WHERE tenant_id = ?`, tenantID)
	var a model.PinterestAuth
	var expires string
	if err := row.Scan(&a.TenantID, &a.AccessToken, &a.RefreshToken, &expires); err != nil {
		return nil, eris.Wrap(err, "store: get pinterest auth")
	}
	var err error
	if a.ExpiresAt, err = time.Parse(sqliteTimeLayout, expires); err != nil {
		return nil, eris.Wrap(err, "store: parse expires_at")
	}
	return &a, nil
}

func (s *SQLiteStore) SavePinterestAuth(ctx context.Context, auth model.PinterestAuth) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pinterest_auth (tenant_id, access_token, refresh_token, expires_at)
		VALUES (?,?,?,?)
		ON CONFLICT (tenant_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at`,
		auth.TenantID, auth.AccessToken, auth.RefreshToken, auth.ExpiresAt.Format(sqliteTimeLayout))
	return eris.Wrap(err, "store: save pinterest auth")
}

func (s *SQLiteStore) GetAdAccountSelection(ctx context.Context, tenantID string) (*model.AdAccountSelection, error) {
	row := s.db.QueryRowContext(ctx, `SELECT tenant_id, ad_account_id, selected, board_id FROM pinterest_ad_accounts WHERE tenant_id = ? AND selected = 1 LIMIT 1`, tenantID)
	var a model.AdAccountSelection
	if err := row.Scan(&a.TenantID, &a.AdAccountID, &a.Selected, &a.BoardID); err != nil {
		return nil, eris.Wrap(err, "store: get ad account selection")
	}
	return &a, nil
}

func (s *SQLiteStore) UpsertAdPlatformCampaign(ctx context.Context, c model.AdPlatformCampaign) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pinterest_campaigns (tenant_id, pinterest_campaign_id, name, status, daily_budget_micro, created_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT (tenant_id, pinterest_campaign_id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			daily_budget_micro = excluded.daily_budget_micro`,
		c.TenantID, c.PinterestCampaignID, c.Name, c.Status, c.DailyBudgetMicro, c.CreatedAt.Format(sqliteTimeLayout))
	return eris.Wrap(err, "store: upsert ad platform campaign")
}

func (s *SQLiteStore) GetAdPlatformCampaign(ctx context.Context, tenantID, campaignID string) (*model.AdPlatformCampaign, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, pinterest_campaign_id, name, status, daily_budget_micro, created_at
		FROM pinterest_campaigns WHERE tenant_id = ? AND pinterest_campaign_id = ?`, tenantID, campaignID)
	return scanAdPlatformCampaignRow(row)
}

func (s *SQLiteStore) ListAdPlatformCampaigns(ctx context.Context, tenantID string) ([]model.AdPlatformCampaign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, pinterest_campaign_id, name, status, daily_budget_micro, created_at
		FROM pinterest_campaigns WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list ad platform campaigns")
	}
	defer rows.Close()
	var out []model.AdPlatformCampaign
	for rows.Next() {
		c, err := scanAdPlatformCampaignRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "store: list ad platform campaigns rows")
}

func scanAdPlatformCampaignRow(row rowScanner) (*model.AdPlatformCampaign, error) {
	var c model.AdPlatformCampaign
	var created string
	if err := row.Scan(&c.TenantID, &c.PinterestCampaignID, &c.Name, &c.Status, &c.DailyBudgetMicro, &created); err != nil {
		return nil, eris.Wrap(err, "store: scan ad platform campaign")
	}
	var err error
	if c.CreatedAt, err = time.Parse(sqliteTimeLayout, created); err != nil {
		return nil, eris.Wrap(err, "store: parse created_at")
	}
	return &c, nil
}

func (s *SQLiteStore) InsertPinterestSyncLog(ctx context.Context, log model.PinterestSyncLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pinterest_sync_log (id, tenant_id, campaign_id, product_id, board_id,
			pin_id, ad_id, ad_group_id, success, error, synced_at, paused)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		log.ID, log.TenantID, log.CampaignID, log.ProductID, log.BoardID,
		log.PinID, log.AdID, log.AdGroupID, log.Success, log.Error,
		log.SyncedAt.Format(sqliteTimeLayout), log.Paused)
	return eris.Wrap(err, "store: insert pinterest sync log")
}

func (s *SQLiteStore) GetActiveSyncLog(ctx context.Context, tenantID, campaignID, productID string) (*model.PinterestSyncLog, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, campaign_id, product_id, board_id, pin_id, ad_id, ad_group_id,
		       success, error, synced_at, paused
		FROM pinterest_sync_log
		WHERE tenant_id = ? AND campaign_id = ? AND product_id = ? AND paused = 0
		LIMIT 1`, tenantID, campaignID, productID)
	var l model.PinterestSyncLog
	var synced string
	err := row.Scan(&l.ID, &l.TenantID, &l.CampaignID, &l.ProductID, &l.BoardID, &l.PinID, &l.AdID,
		&l.AdGroupID, &l.Success, &l.Error, &synced, &l.Paused)
	if err != nil {
		return nil, eris.Wrap(err, "store: get active sync log")
	}
	if l.SyncedAt, err = time.Parse(sqliteTimeLayout, synced); err != nil {
		return nil, eris.Wrap(err, "store: parse synced_at")
	}
	return &l, nil
}

func (s *SQLiteStore) ListActiveSyncLogs(ctx context.Context, tenantID, campaignID string) ([]model.PinterestSyncLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, campaign_id, product_id, board_id, pin_id, ad_id, ad_group_id,
		       success, error, synced_at, paused
		FROM pinterest_sync_log
		WHERE tenant_id = ? AND campaign_id = ? AND paused = 0`, tenantID, campaignID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list active sync logs")
	}
	defer rows.Close()

	var out []model.PinterestSyncLog
	for rows.Next() {
		var l model.PinterestSyncLog
		var synced string
		if err := rows.Scan(&l.ID, &l.TenantID, &l.CampaignID, &l.ProductID, &l.BoardID, &l.PinID, &l.AdID,
			&l.AdGroupID, &l.Success, &l.Error, &synced, &l.Paused); err != nil {
			return nil, eris.Wrap(err, "store: scan active sync log")
		}
		if l.SyncedAt, err = time.Parse(sqliteTimeLayout, synced); err != nil {
			return nil, eris.Wrap(err, "store: parse synced_at")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "store: list active sync logs rows")
}

func (s *SQLiteStore) PauseSyncLog(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE pinterest_sync_log SET paused = 1 WHERE id = ?`, id)
	return eris.Wrap(err, "store: pause sync log")
}

func (s *SQLiteStore) GetMostRecentSyncLog(ctx context.Context, tenantID, productID string) (*model.PinterestSyncLog, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, campaign_id, product_id, board_id, pin_id, ad_id, ad_group_id,
		       success, error, synced_at, paused
		FROM pinterest_sync_log
		WHERE tenant_id = ? AND product_id = ?
		ORDER BY synced_at DESC LIMIT 1`, tenantID, productID)
	var l model.PinterestSyncLog
	var synced string
	err := row.Scan(&l.ID, &l.TenantID, &l.CampaignID, &l.ProductID, &l.BoardID, &l.PinID, &l.AdID,
		&l.AdGroupID, &l.Success, &l.Error, &synced, &l.Paused)
	if err != nil {
		return nil, eris.Wrap(err, "store: get most recent sync log")
	}
	if l.SyncedAt, err = time.Parse(sqliteTimeLayout, synced); err != nil {
		return nil, eris.Wrap(err, "store: parse synced_at")
	}
	return &l, nil
}

func (s *SQLiteStore) DeleteProductSalesByCollection(ctx context.Context, tenantID, collectionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM product_sales WHERE tenant_id = ? AND collection_id = ?`, tenantID, collectionID)
	return eris.Wrap(err, "store: delete product sales by collection")
}

func (s *SQLiteStore) DeleteCampaignBatchAssignment(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM campaign_batch_assignments WHERE id = ?`, id)
	return eris.Wrap(err, "store: delete campaign batch assignment")
}

func (s *SQLiteStore) GetOptimizationSettings(ctx context.Context, tenantID string) (*model.OptimizationSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, enabled, test_mode, test_campaign_id, test_metrics
		FROM optimization_settings WHERE tenant_id = ?`, tenantID)
	var settings model.OptimizationSettings
	var metrics sql.NullString
	if err := row.Scan(&settings.TenantID, &settings.Enabled, &settings.TestMode, &settings.TestCampaign, &metrics); err != nil {
		return nil, eris.Wrap(err, "store: get optimization settings")
	}
	if metrics.Valid && metrics.String != "" {
		var m model.CampaignMetrics
		if err := json.Unmarshal([]byte(metrics.String), &m); err != nil {
			return nil, eris.Wrap(err, "store: decode test metrics")
		}
		settings.TestMetrics = &m
	}
	return &settings, nil
}

func (s *SQLiteStore) ListOptimizationRules(ctx context.Context, tenantID string) ([]model.OptimizationRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, priority, enabled, condition_groups, conditions, action,
		       min_campaign_age_days, max_campaign_age_days, campaign_type
		FROM optimization_rules WHERE tenant_id = ? AND enabled = 1 ORDER BY priority ASC`, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list optimization rules")
	}
	defer rows.Close()

	var out []model.OptimizationRule
	for rows.Next() {
		var r model.OptimizationRule
		var groups, conds, action string
		var minAge, maxAge sql.NullInt64
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Priority, &r.Enabled, &groups, &conds, &action,
			&minAge, &maxAge, &r.CampaignType); err != nil {
			return nil, eris.Wrap(err, "store: scan optimization rule")
		}
		if err := json.Unmarshal([]byte(groups), &r.ConditionGroups); err != nil {
			return nil, eris.Wrap(err, "store: decode condition groups")
		}
		if err := json.Unmarshal([]byte(conds), &r.Conditions); err != nil {
			return nil, eris.Wrap(err, "store: decode conditions")
		}
		if err := json.Unmarshal([]byte(action), &r.Action); err != nil {
			return nil, eris.Wrap(err, "store: decode action")
		}
		if minAge.Valid {
			v := int(minAge.Int64)
			r.MinCampaignAgeDays = &v
		}
		if maxAge.Valid {
			v := int(maxAge.Int64)
			r.MaxCampaignAgeDays = &v
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "store: list optimization rules rows")
}

func (s *SQLiteStore) InsertOptimizationLog(ctx context.Context, entry model.OptimizationLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	snapshot, err := json.Marshal(entry.MetricsSnapshot)
	if err != nil {
		return eris.Wrap(err, "store: encode metrics snapshot")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO optimization_log (id, tenant_id, campaign_id, rule_id, action_taken,
			old_budget, new_budget, old_status, new_status, metrics_snapshot, test_run)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		entry.ID, entry.TenantID, entry.CampaignID, entry.RuleID, entry.ActionTaken,
		entry.OldBudget, entry.NewBudget, entry.OldStatus, entry.NewStatus, string(snapshot), entry.TestRun)
	return eris.Wrap(err, "store: insert optimization log")
}

func (s *SQLiteStore) GetWinnerScalingSettings(ctx context.Context, tenantID string) (*model.WinnerScalingSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, t3, t7, t10, t14, min_buckets_required,
		       max_campaigns_per_winner, max_campaigns_per_winner_video, max_campaigns_per_winner_image,
		       video_enabled, image_enabled, link_type_product, link_type_collection
		FROM winner_scaling_settings WHERE tenant_id = ?`, tenantID)
	var w model.WinnerScalingSettings
	err := row.Scan(&w.TenantID, &w.Threshold3Day, &w.Threshold7Day, &w.Threshold10Day, &w.Threshold14Day,
		&w.MinBucketsRequired, &w.MaxCampaignsPerWinner, &w.MaxCampaignsPerWinnerVideo, &w.MaxCampaignsPerWinnerImage,
		&w.VideoEnabled, &w.ImageEnabled, &w.LinkTypeProduct, &w.LinkTypeCollection)
	if err != nil {
		return nil, eris.Wrap(err, "store: get winner scaling settings")
	}
	return &w, nil
}

func (s *SQLiteStore) UpsertWinnerProduct(ctx context.Context, w model.WinnerProduct) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO winner_products (tenant_id, collection_id, product_id, product_title, image_url, buckets_passed, identified_at)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT (tenant_id, product_id, collection_id) DO UPDATE SET
			product_title = excluded.product_title,
			image_url = excluded.image_url,
			buckets_passed = excluded.buckets_passed,
			identified_at = excluded.identified_at`,
		w.TenantID, w.CollectionID, w.ProductID, w.ProductTitle, w.ImageURL, w.BucketsPassed, w.IdentifiedAt.Format(sqliteTimeLayout))
	return eris.Wrap(err, "store: upsert winner product")
}

func (s *SQLiteStore) ListWinnerProducts(ctx context.Context, tenantID string) ([]model.WinnerProduct, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, collection_id, product_id, product_title, image_url, buckets_passed, identified_at
		FROM winner_products WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list winner products")
	}
	defer rows.Close()
	var out []model.WinnerProduct
	for rows.Next() {
		var w model.WinnerProduct
		var identified string
		if err := rows.Scan(&w.TenantID, &w.CollectionID, &w.ProductID, &w.ProductTitle, &w.ImageURL, &w.BucketsPassed, &identified); err != nil {
			return nil, eris.Wrap(err, "store: scan winner product")
		}
		if w.IdentifiedAt, err = time.Parse(sqliteTimeLayout, identified); err != nil {
			return nil, eris.Wrap(err, "store: parse identified_at")
		}
		out = append(out, w)
	}
	return out, eris.Wrap(rows.Err(), "store: list winner products rows")
}

func (s *SQLiteStore) CountWinnerCampaigns(ctx context.Context, tenantID, productID string, kind model.WinnerCreativeKind) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM winner_campaigns
		WHERE tenant_id = ? AND product_id = ? AND kind = ? AND status = ?`,
		tenantID, productID, kind, model.CampaignStatusActive)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, eris.Wrap(err, "store: count winner campaigns")
	}
	return n, nil
}

func (s *SQLiteStore) ListWinnerCampaigns(ctx context.Context, tenantID, productID string) ([]model.WinnerCampaign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, product_id, kind, pinterest_campaign_id, status,
		       creative_asset_url, linked_to_product, linked_to_collection, created_at
		FROM winner_campaigns WHERE tenant_id = ? AND product_id = ?`, tenantID, productID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list winner campaigns")
	}
	defer rows.Close()
	var out []model.WinnerCampaign
	for rows.Next() {
		var c model.WinnerCampaign
		var created string
		if err := rows.Scan(&c.ID, &c.TenantID, &c.ProductID, &c.Kind, &c.CampaignID, &c.Status,
			&c.CreativeAssetURL, &c.LinkedToProduct, &c.LinkedToCollection, &created); err != nil {
			return nil, eris.Wrap(err, "store: scan winner campaign")
		}
		if c.CreatedAt, err = time.Parse(sqliteTimeLayout, created); err != nil {
			return nil, eris.Wrap(err, "store: parse created_at")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "store: list winner campaigns rows")
}

func (s *SQLiteStore) UpdateWinnerCampaignStatus(ctx context.Context, id string, status model.CampaignStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE winner_campaigns SET status = ? WHERE id = ?`, status, id)
	return eris.Wrap(err, "store: update winner campaign status")
}

func (s *SQLiteStore) InsertWinnerCampaign(ctx context.Context, c model.WinnerCampaign) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = model.CampaignStatusActive
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO winner_campaigns (id, tenant_id, product_id, kind, pinterest_campaign_id, status,
			creative_asset_url, linked_to_product, linked_to_collection, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.TenantID, c.ProductID, c.Kind, c.CampaignID, c.Status, c.CreativeAssetURL,
		c.LinkedToProduct, c.LinkedToCollection, c.CreatedAt.Format(sqliteTimeLayout))
	return eris.Wrap(err, "store: insert winner campaign")
}

func (s *SQLiteStore) InsertWinnerScalingLog(ctx context.Context, entry model.WinnerScalingLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO winner_scaling_log (id, tenant_id, product_id, kind, outcome, campaign_id, error)
		VALUES (?,?,?,?,?,?,?)`,
		entry.ID, entry.TenantID, entry.ProductID, entry.Kind, entry.Outcome, entry.CampaignID, entry.Error)
	return eris.Wrap(err, "store: insert winner scaling log")
}

func (s *SQLiteStore) OpenJobRun(ctx context.Context, pipeline model.PipelineName, tenantID string) (*model.JobRun, error) {
	run := &model.JobRun{
		ID:        uuid.NewString(),
		Pipeline:  pipeline,
		TenantID:  tenantID,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_runs (id, pipeline, tenant_id, status, started_at, error_log, metadata)
		VALUES (?,?,?,?,?,'[]','{}')`,
		run.ID, run.Pipeline, run.TenantID, run.Status, run.StartedAt.Format(sqliteTimeLayout))
	if err != nil {
		return nil, eris.Wrap(err, "store: open job run")
	}
	return run, nil
}

func (s *SQLiteStore) CloseJobRun(ctx context.Context, run *model.JobRun) error {
	errorLog, err := json.Marshal(run.ErrorLog)
	if err != nil {
		return eris.Wrap(err, "store: encode job run error log")
	}
	metadata, err := json.Marshal(run.Metadata)
	if err != nil {
		return eris.Wrap(err, "store: encode job run metadata")
	}
	var finished any
	if run.FinishedAt != nil {
		finished = run.FinishedAt.Format(sqliteTimeLayout)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE job_runs SET status = ?, finished_at = ?, error_log = ?, metadata = ? WHERE id = ?`,
		run.Status, finished, string(errorLog), string(metadata), run.ID)
	return eris.Wrap(err, "store: close job run")
}

func (s *SQLiteStore) GetJobRun(ctx context.Context, id string) (*model.JobRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, pipeline, tenant_id, status, started_at, finished_at, error_log, metadata
		FROM job_runs WHERE id = ?`, id)
	return scanJobRunSQLite(row)
}

func (s *SQLiteStore) ListRecentJobRuns(ctx context.Context, pipeline model.PipelineName, since time.Time) ([]model.JobRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pipeline, tenant_id, status, started_at, finished_at, error_log, metadata
		FROM job_runs WHERE pipeline = ? AND started_at >= ? ORDER BY started_at DESC`,
		pipeline, since.Format(sqliteTimeLayout))
	if err != nil {
		return nil, eris.Wrap(err, "store: list recent job runs")
	}
	defer rows.Close()
	return scanJobRunRowsSQLite(rows)
}

func (s *SQLiteStore) ListStaleRunningJobRuns(ctx context.Context, olderThan time.Time) ([]model.JobRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pipeline, tenant_id, status, started_at, finished_at, error_log, metadata
		FROM job_runs WHERE status = ? AND started_at < ?`,
		model.RunStatusRunning, olderThan.Format(sqliteTimeLayout))
	if err != nil {
		return nil, eris.Wrap(err, "store: list stale running job runs")
	}
	defer rows.Close()
	return scanJobRunRowsSQLite(rows)
}

func scanJobRunSQLite(row rowScanner) (*model.JobRun, error) {
	var j model.JobRun
	var started string
	var finished sql.NullString
	var errorLog, metadata string
	if err := row.Scan(&j.ID, &j.Pipeline, &j.TenantID, &j.Status, &started, &finished, &errorLog, &metadata); err != nil {
		return nil, eris.Wrap(err, "store: get job run")
	}
	var err error
	if j.StartedAt, err = time.Parse(sqliteTimeLayout, started); err != nil {
		return nil, eris.Wrap(err, "store: parse started_at")
	}
	if finished.Valid && finished.String != "" {
		t, err := time.Parse(sqliteTimeLayout, finished.String)
		if err != nil {
			return nil, eris.Wrap(err, "store: parse finished_at")
		}
		j.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(errorLog), &j.ErrorLog); err != nil {
		return nil, eris.Wrap(err, "store: decode job run error log")
	}
	if err := json.Unmarshal([]byte(metadata), &j.Metadata); err != nil {
		return nil, eris.Wrap(err, "store: decode job run metadata")
	}
	return &j, nil
}

func scanJobRunRowsSQLite(rows *sql.Rows) ([]model.JobRun, error) {
	var out []model.JobRun
	for rows.Next() {
		j, err := scanJobRunSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, eris.Wrap(rows.Err(), "store: list job runs rows")
}
