package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sellsadvisors/fleet/internal/db"
	"github.com/sellsadvisors/fleet/internal/model"
)

// PostgresStore implements Store against a Postgres database reachable via
// pgxpool. It is the production backend built by cmd/env.go; unit tests use
// the pure-Go sqlite backend instead.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool against databaseURL.
func NewPostgresStore(ctx context.Context, databaseURL string, maxConns, minConns int32) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "store: parse postgres config")
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "store: open postgres pool")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "store: ping")
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS tenants (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	shop_hostname TEXT NOT NULL,
	access_token TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS tenant_rules (
	tenant_id TEXT PRIMARY KEY REFERENCES tenants(id),
	start_phase_days INT NOT NULL,
	post_phase_days INT NOT NULL,
	min_sales_day7_delete INT NOT NULL,
	min_sales_day7_replace INT NOT NULL,
	avg3_ok INT NOT NULL,
	avg7_ok INT NOT NULL,
	avg10_ok INT NOT NULL,
	avg14_ok INT NOT NULL,
	min_ok_buckets INT NOT NULL,
	loser_threshold INT NOT NULL,
	queue_tag TEXT NOT NULL DEFAULT 'QK',
	optimization_enabled BOOLEAN NOT NULL DEFAULT false,
	test_mode BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS tracked_collections (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	collection_id TEXT NOT NULL,
	UNIQUE (tenant_id, collection_id)
);

CREATE TABLE IF NOT EXISTS campaign_batch_assignments (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	campaign_id TEXT NOT NULL,
	collection_id TEXT NOT NULL,
	batch_indices JSONB NOT NULL DEFAULT '[]',
	batch_size INT NOT NULL
);

CREATE TABLE IF NOT EXISTS product_sales (
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	collection_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	product_title TEXT NOT NULL DEFAULT '',
	date_added_to_collection TIMESTAMPTZ NOT NULL,
	last_update TIMESTAMPTZ NOT NULL,
	first_7_days INT NOT NULL DEFAULT 0,
	last_3_days INT NOT NULL DEFAULT 0,
	last_7_days INT NOT NULL DEFAULT 0,
	last_10_days INT NOT NULL DEFAULT 0,
	last_14_days INT NOT NULL DEFAULT 0,
	total_sales DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_quantity INT NOT NULL DEFAULT 0,
	PRIMARY KEY (tenant_id, collection_id, product_id)
);

CREATE TABLE IF NOT EXISTS pinterest_auth (
	tenant_id TEXT PRIMARY KEY REFERENCES tenants(id),
	access_token TEXT NOT NULL,
	refresh_token TEXT NOT NULL DEFAULT '',
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pinterest_ad_accounts (
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	ad_account_id TEXT NOT NULL,
	selected BOOLEAN NOT NULL DEFAULT false,
	board_id TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (tenant_id, ad_account_id)
);

CREATE TABLE IF NOT EXISTS pinterest_campaigns (
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	pinterest_campaign_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	daily_budget_micro BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, pinterest_campaign_id)
);

CREATE TABLE IF NOT EXISTS pinterest_sync_log (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	campaign_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	board_id TEXT NOT NULL DEFAULT '',
	pin_id TEXT NOT NULL DEFAULT '',
	ad_id TEXT NOT NULL DEFAULT '',
	ad_group_id TEXT NOT NULL DEFAULT '',
	success BOOLEAN NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	synced_at TIMESTAMPTZ NOT NULL,
	paused BOOLEAN NOT NULL DEFAULT false
);
CREATE UNIQUE INDEX IF NOT EXISTS pinterest_sync_log_active_uidx
	ON pinterest_sync_log (tenant_id, campaign_id, product_id)
	WHERE NOT paused;

CREATE TABLE IF NOT EXISTS optimization_settings (
	tenant_id TEXT PRIMARY KEY REFERENCES tenants(id),
	enabled BOOLEAN NOT NULL DEFAULT false,
	test_mode BOOLEAN NOT NULL DEFAULT false,
	test_campaign_id TEXT NOT NULL DEFAULT '',
	test_metrics JSONB
);

CREATE TABLE IF NOT EXISTS optimization_rules (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	priority INT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT true,
	condition_groups JSONB NOT NULL DEFAULT '[]',
	conditions JSONB NOT NULL DEFAULT '[]',
	action JSONB NOT NULL,
	min_campaign_age_days INT,
	max_campaign_age_days INT,
	campaign_type TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS optimization_log (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	campaign_id TEXT NOT NULL,
	rule_id TEXT NOT NULL DEFAULT '',
	action_taken TEXT NOT NULL,
	old_budget DOUBLE PRECISION NOT NULL DEFAULT 0,
	new_budget DOUBLE PRECISION NOT NULL DEFAULT 0,
	old_status TEXT NOT NULL DEFAULT '',
	new_status TEXT NOT NULL DEFAULT '',
	metrics_snapshot JSONB,
	test_run BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS winner_scaling_settings (
	tenant_id TEXT PRIMARY KEY REFERENCES tenants(id),
	t3 INT NOT NULL DEFAULT 0,
	t7 INT NOT NULL DEFAULT 0,
	t10 INT NOT NULL DEFAULT 0,
	t14 INT NOT NULL DEFAULT 0,
	min_buckets_required INT NOT NULL DEFAULT 1,
	max_campaigns_per_winner INT NOT NULL DEFAULT 0,
	max_campaigns_per_winner_video INT NOT NULL DEFAULT 0,
	max_campaigns_per_winner_image INT NOT NULL DEFAULT 0,
	video_enabled BOOLEAN NOT NULL DEFAULT false,
	image_enabled BOOLEAN NOT NULL DEFAULT false,
	link_type_product BOOLEAN NOT NULL DEFAULT true,
	link_type_collection BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS winner_products (
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	collection_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	product_title TEXT NOT NULL DEFAULT '',
	image_url TEXT NOT NULL DEFAULT '',
	buckets_passed INT NOT NULL,
	identified_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (tenant_id, product_id, collection_id)
);

CREATE TABLE IF NOT EXISTS winner_campaigns (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	product_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	pinterest_campaign_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'ACTIVE',
	creative_asset_url TEXT NOT NULL DEFAULT '',
	linked_to_product BOOLEAN NOT NULL DEFAULT false,
	linked_to_collection BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS winner_scaling_log (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenants(id),
	product_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	outcome TEXT NOT NULL,
	campaign_id TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS job_runs (
	id TEXT PRIMARY KEY,
	pipeline TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	error_log JSONB NOT NULL DEFAULT '[]',
	metadata JSONB NOT NULL DEFAULT '{}'
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return eris.Wrap(err, "store: migrate postgres schema")
}

func (s *PostgresStore) GetTenant(ctx context.Context, tenantID string) (*model.Tenant, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, name, shop_hostname, access_token, active FROM tenants WHERE id = $1`, tenantID)
	var t model.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.ShopHostname, &t.AccessToken, &t.Active); err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(err, "store: tenant %s not found", tenantID)
		}
		return nil, eris.Wrap(err, "store: get tenant")
	}
	return &t, nil
}

func (s *PostgresStore) ListActiveTenants(ctx context.Context) ([]model.Tenant, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, shop_hostname, access_token, active FROM tenants WHERE active`)
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

func (s *PostgresStore) GetTenantRules(ctx context.Context, tenantID string) (*model.TenantRules, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT tenant_id, start_phase_days, post_phase_days, min_sales_day7_delete,
		       min_sales_day7_replace, avg3_ok, avg7_ok, avg10_ok, avg14_ok,
		       min_ok_buckets, loser_threshold, queue_tag, optimization_enabled, test_mode
		FROM tenant_rules WHERE tenant_id = $1`, tenantID)
	var r model.TenantRules
	err := row.Scan(&r.TenantID, &r.StartPhaseDays, &r.PostPhaseDays, &r.MinSalesDay7Delete,
		&r.MinSalesDay7Replace, &r.Avg3OK, &r.Avg7OK, &r.Avg10OK, &r.Avg14OK,
		&r.MinOKBuckets, &r.LoserThreshold, &r.QueueTag, &r.OptimizationEnabled, &r.TestMode)
	if err != nil {
		return nil, eris.Wrap(err, "store: get tenant rules")
	}
	return &r, nil
}

func (s *PostgresStore) ListTrackedCollections(ctx context.Context, tenantID string) ([]model.TrackedCollection, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, tenant_id, collection_id FROM tracked_collections WHERE tenant_id = $1`, tenantID)
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

func (s *PostgresStore) ListCampaignBatchAssignments(ctx context.Context, tenantID string) ([]model.CampaignBatchAssignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, campaign_id, collection_id, batch_indices, batch_size
		FROM campaign_batch_assignments WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list campaign batch assignments")
	}
	defer rows.Close()

	var out []model.CampaignBatchAssignment
	for rows.Next() {
		var a model.CampaignBatchAssignment
		var indices []byte
		if err := rows.Scan(&a.ID, &a.TenantID, &a.CampaignID, &a.CollectionID, &indices, &a.BatchSize); err != nil {
			return nil, eris.Wrap(err, "store: scan campaign batch assignment")
		}
		if err := json.Unmarshal(indices, &a.BatchIndices); err != nil {
			return nil, eris.Wrap(err, "store: decode batch indices")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "store: list campaign batch assignments rows")
}

// productSalesUpsertColumns lists every column BulkUpsert copies into the
// temp table, in the same order runner rows are built in.
var productSalesUpsertColumns = []string{
	"tenant_id", "collection_id", "product_id", "product_title",
	"date_added_to_collection", "last_update", "first_7_days", "last_3_days",
	"last_7_days", "last_10_days", "last_14_days", "total_sales", "total_quantity",
}

// UpsertProductSales persists rowsIn, splitting them into two paths: rows
// for a (tenant, collection, product) triple with no existing product_sales
// row go straight through db.CopyFrom (no conflict is possible, so the
// temp-table upsert dance is pure overhead), while rows that already exist
// go through db.BulkUpsert. A collection's first sales-tracker pass is all
// new rows and hits only the COPY path; every pass after that is a mix.
func (s *PostgresStore) UpsertProductSales(ctx context.Context, rowsIn []model.ProductSales) error {
	if len(rowsIn) == 0 {
		return nil
	}

	existing, err := s.existingProductSalesKeys(ctx, rowsIn)
	if err != nil {
		return eris.Wrap(err, "store: upsert product sales: check existing")
	}

	var fresh, stale [][]any
	for _, p := range rowsIn {
		row := []any{
			p.TenantID, p.CollectionID, p.ProductID, p.ProductTitle,
			p.DateAddedToCollection, p.LastUpdate, p.First7Days, p.Last3Days,
			p.Last7Days, p.Last10Days, p.Last14Days, p.TotalSales, p.TotalQuantity,
		}
		if existing[productSalesKey{p.TenantID, p.CollectionID, p.ProductID}] {
			stale = append(stale, row)
		} else {
			fresh = append(fresh, row)
		}
	}

	if len(fresh) > 0 {
		if _, err := db.CopyFrom(ctx, s.pool, "product_sales", productSalesUpsertColumns, fresh); err != nil {
			return eris.Wrap(err, "store: copy new product sales")
		}
	}
	if len(stale) > 0 {
		if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
			Table:        "product_sales",
			Columns:      productSalesUpsertColumns,
			ConflictKeys: []string{"tenant_id", "collection_id", "product_id"},
		}, stale); err != nil {
			return eris.Wrap(err, "store: upsert existing product sales")
		}
	}
	return nil
}

type productSalesKey struct {
	tenantID, collectionID, productID string
}

// existingProductSalesKeys reports which of rowsIn's (tenant, collection,
// product) triples already have a product_sales row, scoped to the
// tenant/collection pairs actually present in rowsIn to keep the query cheap
// even though most callers pass a single collection's rows.
func (s *PostgresStore) existingProductSalesKeys(ctx context.Context, rowsIn []model.ProductSales) (map[productSalesKey]bool, error) {
	tenantID := rowsIn[0].TenantID
	collectionIDs := make([]string, 0, len(rowsIn))
	seen := make(map[string]bool)
	for _, p := range rowsIn {
		if !seen[p.CollectionID] {
			seen[p.CollectionID] = true
			collectionIDs = append(collectionIDs, p.CollectionID)
		}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT collection_id, product_id FROM product_sales WHERE tenant_id = $1 AND collection_id = ANY($2)`,
		tenantID, collectionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[productSalesKey]bool)
	for rows.Next() {
		var collectionID, productID string
		if err := rows.Scan(&collectionID, &productID); err != nil {
			return nil, err
		}
		existing[productSalesKey{tenantID, collectionID, productID}] = true
	}
	return existing, rows.Err()
}

func (s *PostgresStore) GetProductSales(ctx context.Context, tenantID, collectionID, productID string) (*model.ProductSales, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT tenant_id, collection_id, product_id, product_title, date_added_to_collection,
		       last_update, first_7_days, last_3_days, last_7_days, last_10_days, last_14_days,
		       total_sales, total_quantity
		FROM product_sales WHERE tenant_id = $1 AND collection_id = $2 AND product_id = $3`,
		tenantID, collectionID, productID)
	var p model.ProductSales
	err := row.Scan(&p.TenantID, &p.CollectionID, &p.ProductID, &p.ProductTitle, &p.DateAddedToCollection,
		&p.LastUpdate, &p.First7Days, &p.Last3Days, &p.Last7Days, &p.Last10Days, &p.Last14Days,
		&p.TotalSales, &p.TotalQuantity)
	if err != nil {
		return nil, eris.Wrap(err, "store: get product sales")
	}
	return &p, nil
}

func (s *PostgresStore) ListProductSales(ctx context.Context, tenantID, collectionID string) ([]model.ProductSales, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tenant_id, collection_id, product_id, product_title, date_added_to_collection,
		       last_update, first_7_days, last_3_days, last_7_days, last_10_days, last_14_days,
		       total_sales, total_quantity
		FROM product_sales WHERE tenant_id = $1 AND collection_id = $2`, tenantID, collectionID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list product sales")
	}
	defer rows.Close()

	var out []model.ProductSales
	for rows.Next() {
		var p model.ProductSales
		if err := rows.Scan(&p.TenantID, &p.CollectionID, &p.ProductID, &p.ProductTitle, &p.DateAddedToCollection,
			&p.LastUpdate, &p.First7Days, &p.Last3Days, &p.Last7Days, &p.Last10Days, &p.Last14Days,
			&p.TotalSales, &p.TotalQuantity); err != nil {
			return nil, eris.Wrap(err, "store: scan product sales")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "store: list product sales rows")
}

func (s *PostgresStore) GetPinterestAuth(ctx context.Context, tenantID string) (*model.PinterestAuth, error) {
	row := s.pool.QueryRow(ctx, `SELECT tenant_id, access_token, refresh_token, expires_at FROM pinterest_auth WHERE tenant_id = $1`, tenantID)
	var a model.PinterestAuth
	if err := row.Scan(&a.TenantID, &a.AccessToken, &a.RefreshToken, &a.ExpiresAt); err != nil {
		return nil, eris.Wrap(err, "store: get pinterest auth")
	}
	return &a, nil
}

func (s *PostgresStore) SavePinterestAuth(ctx context.Context, auth model.PinterestAuth) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pinterest_auth (tenant_id, access_token, refresh_token, expires_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (tenant_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at`,
		auth.TenantID, auth.AccessToken, auth.RefreshToken, auth.ExpiresAt)
	return eris.Wrap(err, "store: save pinterest auth")
}

func (s *PostgresStore) GetAdAccountSelection(ctx context.Context, tenantID string) (*model.AdAccountSelection, error) {
	row := s.pool.QueryRow(ctx, `SELECT tenant_id, ad_account_id, selected, board_id FROM pinterest_ad_accounts WHERE tenant_id = $1 AND selected LIMIT 1`, tenantID)
	var a model.AdAccountSelection
	if err := row.Scan(&a.TenantID, &a.AdAccountID, &a.Selected, &a.BoardID); err != nil {
		return nil, eris.Wrap(err, "store: get ad account selection")
	}
	return &a, nil
}

func (s *PostgresStore) UpsertAdPlatformCampaign(ctx context.Context, c model.AdPlatformCampaign) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pinterest_campaigns (tenant_id, pinterest_campaign_id, name, status, daily_budget_micro, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (tenant_id, pinterest_campaign_id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			daily_budget_micro = EXCLUDED.daily_budget_micro`,
		c.TenantID, c.PinterestCampaignID, c.Name, c.Status, c.DailyBudgetMicro, c.CreatedAt)
	return eris.Wrap(err, "store: upsert ad platform campaign")
}

func (s *PostgresStore) GetAdPlatformCampaign(ctx context.Context, tenantID, campaignID string) (*model.AdPlatformCampaign, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT tenant_id, pinterest_campaign_id, name, status, daily_budget_micro, created_at
		FROM pinterest_campaigns WHERE tenant_id = $1 AND pinterest_campaign_id = $2`, tenantID, campaignID)
	var c model.AdPlatformCampaign
	if err := row.Scan(&c.TenantID, &c.PinterestCampaignID, &c.Name, &c.Status, &c.DailyBudgetMicro, &c.CreatedAt); err != nil {
		return nil, eris.Wrap(err, "store: get ad platform campaign")
	}
	return &c, nil
}

func (s *PostgresStore) ListAdPlatformCampaigns(ctx context.Context, tenantID string) ([]model.AdPlatformCampaign, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tenant_id, pinterest_campaign_id, name, status, daily_budget_micro, created_at
		FROM pinterest_campaigns WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list ad platform campaigns")
	}
	defer rows.Close()
	var out []model.AdPlatformCampaign
	for rows.Next() {
		var c model.AdPlatformCampaign
		if err := rows.Scan(&c.TenantID, &c.PinterestCampaignID, &c.Name, &c.Status, &c.DailyBudgetMicro, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan ad platform campaign")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "store: list ad platform campaigns rows")
}

func (s *PostgresStore) InsertPinterestSyncLog(ctx context.Context, log model.PinterestSyncLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pinterest_sync_log (id, tenant_id, campaign_id, product_id, board_id,
			pin_id, ad_id, ad_group_id, success, error, synced_at, paused)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		log.ID, log.TenantID, log.CampaignID, log.ProductID, log.BoardID,
		log.PinID, log.AdID, log.AdGroupID, log.Success, log.Error, log.SyncedAt, log.Paused)
	return eris.Wrap(err, "store: insert pinterest sync log")
}

func (s *PostgresStore) GetActiveSyncLog(ctx context.Context, tenantID, campaignID, productID string) (*model.PinterestSyncLog, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, campaign_id, product_id, board_id, pin_id, ad_id, ad_group_id,
		       success, error, synced_at, paused
		FROM pinterest_sync_log
		WHERE tenant_id = $1 AND campaign_id = $2 AND product_id = $3 AND NOT paused
		LIMIT 1`, tenantID, campaignID, productID)
	var l model.PinterestSyncLog
	err := row.Scan(&l.ID, &l.TenantID, &l.CampaignID, &l.ProductID, &l.BoardID, &l.PinID, &l.AdID,
		&l.AdGroupID, &l.Success, &l.Error, &l.SyncedAt, &l.Paused)
	if err != nil {
		return nil, eris.Wrap(err, "store: get active sync log")
	}
	return &l, nil
}

func (s *PostgresStore) ListActiveSyncLogs(ctx context.Context, tenantID, campaignID string) ([]model.PinterestSyncLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, campaign_id, product_id, board_id, pin_id, ad_id, ad_group_id,
		       success, error, synced_at, paused
		FROM pinterest_sync_log
		WHERE tenant_id = $1 AND campaign_id = $2 AND NOT paused`, tenantID, campaignID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list active sync logs")
	}
	defer rows.Close()

	var out []model.PinterestSyncLog
	for rows.Next() {
		var l model.PinterestSyncLog
		if err := rows.Scan(&l.ID, &l.TenantID, &l.CampaignID, &l.ProductID, &l.BoardID, &l.PinID, &l.AdID,
			&l.AdGroupID, &l.Success, &l.Error, &l.SyncedAt, &l.Paused); err != nil {
			return nil, eris.Wrap(err, "store: scan active sync log")
		}
		out = append(out, l)
	}
	return out, eris.Wrap(rows.Err(), "store: list active sync logs rows")
}

func (s *PostgresStore) PauseSyncLog(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE pinterest_sync_log SET paused = true WHERE id = $1`, id)
	return eris.Wrap(err, "store: pause sync log")
}

func (s *PostgresStore) GetMostRecentSyncLog(ctx context.Context, tenantID, productID string) (*model.PinterestSyncLog, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, campaign_id, product_id, board_id, pin_id, ad_id, ad_group_id,
		       success, error, synced_at, paused
		FROM pinterest_sync_log
		WHERE tenant_id = $1 AND product_id = $2
		ORDER BY synced_at DESC LIMIT 1`, tenantID, productID)
	var l model.PinterestSyncLog
	err := row.Scan(&l.ID, &l.TenantID, &l.CampaignID, &l.ProductID, &l.BoardID, &l.PinID, &l.AdID,
		&l.AdGroupID, &l.Success, &l.Error, &l.SyncedAt, &l.Paused)
	if err != nil {
		return nil, eris.Wrap(err, "store: get most recent sync log")
	}
	return &l, nil
}

func (s *PostgresStore) DeleteProductSalesByCollection(ctx context.Context, tenantID, collectionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM product_sales WHERE tenant_id = $1 AND collection_id = $2`, tenantID, collectionID)
	return eris.Wrap(err, "store: delete product sales by collection")
}

func (s *PostgresStore) DeleteCampaignBatchAssignment(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM campaign_batch_assignments WHERE id = $1`, id)
	return eris.Wrap(err, "store: delete campaign batch assignment")
}

func (s *PostgresStore) GetOptimizationSettings(ctx context.Context, tenantID string) (*model.OptimizationSettings, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT tenant_id, enabled, test_mode, test_campaign_id, test_metrics
		FROM optimization_settings WHERE tenant_id = $1`, tenantID)
	var settings model.OptimizationSettings
	var metrics []byte
	if err := row.Scan(&settings.TenantID, &settings.Enabled, &settings.TestMode, &settings.TestCampaign, &metrics); err != nil {
		return nil, eris.Wrap(err, "store: get optimization settings")
	}
	if len(metrics) > 0 {
		var m model.CampaignMetrics
		if err := json.Unmarshal(metrics, &m); err != nil {
			return nil, eris.Wrap(err, "store: decode test metrics")
		}
		settings.TestMetrics = &m
	}
	return &settings, nil
}

func (s *PostgresStore) ListOptimizationRules(ctx context.Context, tenantID string) ([]model.OptimizationRule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, priority, enabled, condition_groups, conditions, action,
		       min_campaign_age_days, max_campaign_age_days, campaign_type
		FROM optimization_rules WHERE tenant_id = $1 AND enabled ORDER BY priority ASC`, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list optimization rules")
	}
	defer rows.Close()

	var out []model.OptimizationRule
	for rows.Next() {
		var r model.OptimizationRule
		var groups, conds, action []byte
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Priority, &r.Enabled, &groups, &conds, &action,
			&r.MinCampaignAgeDays, &r.MaxCampaignAgeDays, &r.CampaignType); err != nil {
			return nil, eris.Wrap(err, "store: scan optimization rule")
		}
		if err := json.Unmarshal(groups, &r.ConditionGroups); err != nil {
			return nil, eris.Wrap(err, "store: decode condition groups")
		}
		if err := json.Unmarshal(conds, &r.Conditions); err != nil {
			return nil, eris.Wrap(err, "store: decode conditions")
		}
		if err := json.Unmarshal(action, &r.Action); err != nil {
			return nil, eris.Wrap(err, "store: decode action")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "store: list optimization rules rows")
}

func (s *PostgresStore) InsertOptimizationLog(ctx context.Context, entry model.OptimizationLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	snapshot, err := json.Marshal(entry.MetricsSnapshot)
	if err != nil {
		return eris.Wrap(err, "store: encode metrics snapshot")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO optimization_log (id, tenant_id, campaign_id, rule_id, action_taken,
			old_budget, new_budget, old_status, new_status, metrics_snapshot, test_run)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		entry.ID, entry.TenantID, entry.CampaignID, entry.RuleID, entry.ActionTaken,
		entry.OldBudget, entry.NewBudget, entry.OldStatus, entry.NewStatus, snapshot, entry.TestRun)
	return eris.Wrap(err, "store: insert optimization log")
}

func (s *PostgresStore) GetWinnerScalingSettings(ctx context.Context, tenantID string) (*model.WinnerScalingSettings, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT tenant_id, t3, t7, t10, t14, min_buckets_required,
		       max_campaigns_per_winner, max_campaigns_per_winner_video, max_campaigns_per_winner_image,
		       video_enabled, image_enabled, link_type_product, link_type_collection
		FROM winner_scaling_settings WHERE tenant_id = $1`, tenantID)
	var w model.WinnerScalingSettings
	err := row.Scan(&w.TenantID, &w.Threshold3Day, &w.Threshold7Day, &w.Threshold10Day, &w.Threshold14Day,
		&w.MinBucketsRequired, &w.MaxCampaignsPerWinner, &w.MaxCampaignsPerWinnerVideo, &w.MaxCampaignsPerWinnerImage,
		&w.VideoEnabled, &w.ImageEnabled, &w.LinkTypeProduct, &w.LinkTypeCollection)
	if err != nil {
		return nil, eris.Wrap(err, "store: get winner scaling settings")
	}
	return &w, nil
}

func (s *PostgresStore) UpsertWinnerProduct(ctx context.Context, w model.WinnerProduct) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO winner_products (tenant_id, collection_id, product_id, product_title, image_url, buckets_passed, identified_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (tenant_id, product_id, collection_id) DO UPDATE SET
			product_title = EXCLUDED.product_title,
			image_url = EXCLUDED.image_url,
			buckets_passed = EXCLUDED.buckets_passed,
			identified_at = EXCLUDED.identified_at`,
		w.TenantID, w.CollectionID, w.ProductID, w.ProductTitle, w.ImageURL, w.BucketsPassed, w.IdentifiedAt)
	return eris.Wrap(err, "store: upsert winner product")
}

func (s *PostgresStore) ListWinnerProducts(ctx context.Context, tenantID string) ([]model.WinnerProduct, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tenant_id, collection_id, product_id, product_title, image_url, buckets_passed, identified_at
		FROM winner_products WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list winner products")
	}
	defer rows.Close()
	var out []model.WinnerProduct
	for rows.Next() {
		var w model.WinnerProduct
		if err := rows.Scan(&w.TenantID, &w.CollectionID, &w.ProductID, &w.ProductTitle, &w.ImageURL, &w.BucketsPassed, &w.IdentifiedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan winner product")
		}
		out = append(out, w)
	}
	return out, eris.Wrap(rows.Err(), "store: list winner products rows")
}

func (s *PostgresStore) CountWinnerCampaigns(ctx context.Context, tenantID, productID string, kind model.WinnerCreativeKind) (int, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM winner_campaigns
		WHERE tenant_id = $1 AND product_id = $2 AND kind = $3 AND status = $4`,
		tenantID, productID, kind, model.CampaignStatusActive)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, eris.Wrap(err, "store: count winner campaigns")
	}
	return n, nil
}

func (s *PostgresStore) ListWinnerCampaigns(ctx context.Context, tenantID, productID string) ([]model.WinnerCampaign, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, product_id, kind, pinterest_campaign_id, status,
		       creative_asset_url, linked_to_product, linked_to_collection, created_at
		FROM winner_campaigns WHERE tenant_id = $1 AND product_id = $2`, tenantID, productID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list winner campaigns")
	}
	defer rows.Close()
	var out []model.WinnerCampaign
	for rows.Next() {
		var c model.WinnerCampaign
		if err := rows.Scan(&c.ID, &c.TenantID, &c.ProductID, &c.Kind, &c.CampaignID, &c.Status,
			&c.CreativeAssetURL, &c.LinkedToProduct, &c.LinkedToCollection, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan winner campaign")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "store: list winner campaigns rows")
}

func (s *PostgresStore) UpdateWinnerCampaignStatus(ctx context.Context, id string, status model.CampaignStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE winner_campaigns SET status = $1 WHERE id = $2`, status, id)
	return eris.Wrap(err, "store: update winner campaign status")
}

func (s *PostgresStore) InsertWinnerCampaign(ctx context.Context, c model.WinnerCampaign) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = model.CampaignStatusActive
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO winner_campaigns (id, tenant_id, product_id, kind, pinterest_campaign_id, status,
			creative_asset_url, linked_to_product, linked_to_collection, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		c.ID, c.TenantID, c.ProductID, c.Kind, c.CampaignID, c.Status, c.CreativeAssetURL,
		c.LinkedToProduct, c.LinkedToCollection, c.CreatedAt)
	return eris.Wrap(err, "store: insert winner campaign")
}

func (s *PostgresStore) InsertWinnerScalingLog(ctx context.Context, entry model.WinnerScalingLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO winner_scaling_log (id, tenant_id, product_id, kind, outcome, campaign_id, error)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		entry.ID, entry.TenantID, entry.ProductID, entry.Kind, entry.Outcome, entry.CampaignID, entry.Error)
	return eris.Wrap(err, "store: insert winner scaling log")
}

func (s *PostgresStore) OpenJobRun(ctx context.Context, pipeline model.PipelineName, tenantID string) (*model.JobRun, error) {
	run := &model.JobRun{
		ID:        uuid.NewString(),
		Pipeline:  pipeline,
		TenantID:  tenantID,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	metadata, err := json.Marshal(run.Metadata)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode job run metadata")
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO job_runs (id, pipeline, tenant_id, status, started_at, error_log, metadata)
		VALUES ($1,$2,$3,$4,$5,'[]',$6)`,
		run.ID, run.Pipeline, run.TenantID, run.Status, run.StartedAt, metadata)
	if err != nil {
		return nil, eris.Wrap(err, "store: open job run")
	}
	return run, nil
}

func (s *PostgresStore) CloseJobRun(ctx context.Context, run *model.JobRun) error {
	errorLog, err := json.Marshal(run.ErrorLog)
	if err != nil {
		return eris.Wrap(err, "store: encode job run error log")
	}
	metadata, err := json.Marshal(run.Metadata)
	if err != nil {
		return eris.Wrap(err, "store: encode job run metadata")
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE job_runs SET status = $1, finished_at = $2, error_log = $3, metadata = $4 WHERE id = $5`,
		run.Status, run.FinishedAt, errorLog, metadata, run.ID)
	return eris.Wrap(err, "store: close job run")
}

func (s *PostgresStore) GetJobRun(ctx context.Context, id string) (*model.JobRun, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, pipeline, tenant_id, status, started_at, finished_at, error_log, metadata
		FROM job_runs WHERE id = $1`, id)
	return scanJobRunPG(row)
}

func (s *PostgresStore) ListRecentJobRuns(ctx context.Context, pipeline model.PipelineName, since time.Time) ([]model.JobRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, pipeline, tenant_id, status, started_at, finished_at, error_log, metadata
		FROM job_runs WHERE pipeline = $1 AND started_at >= $2 ORDER BY started_at DESC`, pipeline, since)
	if err != nil {
		return nil, eris.Wrap(err, "store: list recent job runs")
	}
	defer rows.Close()
	return scanJobRunRowsPG(rows)
}

func (s *PostgresStore) ListStaleRunningJobRuns(ctx context.Context, olderThan time.Time) ([]model.JobRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, pipeline, tenant_id, status, started_at, finished_at, error_log, metadata
		FROM job_runs WHERE status = $1 AND started_at < $2`, model.RunStatusRunning, olderThan)
	if err != nil {
		return nil, eris.Wrap(err, "store: list stale running job runs")
	}
	defer rows.Close()
	return scanJobRunRowsPG(rows)
}

func scanJobRunPG(row pgx.Row) (*model.JobRun, error) {
	var j model.JobRun
	var errorLog, metadata []byte
	if err := row.Scan(&j.ID, &j.Pipeline, &j.TenantID, &j.Status, &j.StartedAt, &j.FinishedAt, &errorLog, &metadata); err != nil {
		return nil, eris.Wrap(err, "store: get job run")
	}
	if err := json.Unmarshal(errorLog, &j.ErrorLog); err != nil {
		return nil, eris.Wrap(err, "store: decode job run error log")
	}
	if err := json.Unmarshal(metadata, &j.Metadata); err != nil {
		return nil, eris.Wrap(err, "store: decode job run metadata")
	}
	return &j, nil
}

func scanJobRunRowsPG(rows pgx.Rows) ([]model.JobRun, error) {
	var out []model.JobRun
	for rows.Next() {
		var j model.JobRun
		var errorLog, metadata []byte
		if err := rows.Scan(&j.ID, &j.Pipeline, &j.TenantID, &j.Status, &j.StartedAt, &j.FinishedAt, &errorLog, &metadata); err != nil {
			return nil, eris.Wrap(err, "store: scan job run")
		}
		if err := json.Unmarshal(errorLog, &j.ErrorLog); err != nil {
			return nil, eris.Wrap(err, "store: decode job run error log")
		}
		if err := json.Unmarshal(metadata, &j.Metadata); err != nil {
			return nil, eris.Wrap(err, "store: decode job run metadata")
		}
		out = append(out, j)
	}
	return out, eris.Wrap(rows.Err(), "store: list job runs rows")
}
