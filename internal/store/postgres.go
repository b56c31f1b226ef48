package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/leadboost/leadboost/internal/db"
	"github.com/leadboost/leadboost/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const leadColumns = `id, organization_id, owner_id, website, company_name, about_text, industry, employees, revenue_band, founded_year, contact_name, contact_title, email, phone, address, linkedin_url, twitter_url, facebook_url, scrape_confidence, email_confidence, enrichment_confidence, scrape_source, email_source, enrichment_source, score, qualification_label, outreach_message, outreach_sent, outreach_sent_at, is_active, is_verified, created_at, updated_at`

const jobColumns = `id, lead_id, organization_id, status, attempts, max_attempts, run_after, last_error, message_style, created_at, updated_at`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot paths: lead reads/writes, the quota count,
// job claiming, and API key lookup.
var preparedStatements = map[string]string{
	"get_lead":          `SELECT ` + leadColumns + ` FROM leads WHERE id = $1 AND is_active = true`,
	"count_leads_since": `SELECT COUNT(*) FROM leads WHERE organization_id = $1 AND created_at >= $2`,
	"get_user":          `SELECT id, email, hashed_password, first_name, last_name, organization_id, is_active, is_superuser, created_at, updated_at FROM users WHERE id = $1`,
	"get_user_by_email": `SELECT id, email, hashed_password, first_name, last_name, organization_id, is_active, is_superuser, created_at, updated_at FROM users WHERE email = $1`,
	"get_api_key":       `SELECT id, key_hash, key_prefix, name, organization_id, user_id, is_active, is_revoked, rate_limit, expires_at, last_used_at, created_at FROM api_keys WHERE key_prefix = $1`,
	"get_subscription":  `SELECT id, organization_id, plan_name, status, provider_subscription_id, cancel_at_period_end, current_period_start, current_period_end, created_at, updated_at FROM subscriptions WHERE organization_id = $1`,
	"complete_job":      `UPDATE jobs SET status = 'succeeded', last_error = '', updated_at = $1 WHERE id = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for use by subsystems that
// need direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	id                      TEXT PRIMARY KEY,
	name                    TEXT NOT NULL UNIQUE,
	plan_tier               TEXT NOT NULL DEFAULT 'free',
	max_leads               INTEGER NOT NULL DEFAULT 100,
	usage_count             INTEGER NOT NULL DEFAULT 0,
	billing_customer_id     TEXT NOT NULL DEFAULT '',
	billing_subscription_id TEXT NOT NULL DEFAULT '',
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS users (
	id              TEXT PRIMARY KEY,
	email           TEXT NOT NULL UNIQUE,
	hashed_password TEXT NOT NULL,
	first_name      TEXT NOT NULL DEFAULT '',
	last_name       TEXT NOT NULL DEFAULT '',
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	is_active       BOOLEAN NOT NULL DEFAULT true,
	is_superuser    BOOLEAN NOT NULL DEFAULT false,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS subscriptions (
	id                       TEXT PRIMARY KEY,
	organization_id          TEXT NOT NULL UNIQUE REFERENCES organizations(id),
	plan_name                TEXT NOT NULL,
	status                   TEXT NOT NULL DEFAULT 'active',
	provider_subscription_id TEXT NOT NULL DEFAULT '',
	cancel_at_period_end     BOOLEAN NOT NULL DEFAULT false,
	current_period_start     TIMESTAMPTZ NOT NULL,
	current_period_end       TIMESTAMPTZ NOT NULL,
	created_at               TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at               TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS plans (
	name              TEXT PRIMARY KEY,
	max_leads_per_day INTEGER NOT NULL,
	can_export        BOOLEAN NOT NULL DEFAULT false,
	can_use_ai        BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS leads (
	id                    TEXT PRIMARY KEY,
	organization_id       TEXT NOT NULL REFERENCES organizations(id),
	owner_id              TEXT NOT NULL REFERENCES users(id),
	website               TEXT NOT NULL,
	company_name          TEXT NOT NULL DEFAULT '',
	about_text            TEXT NOT NULL DEFAULT '',
	industry              TEXT NOT NULL DEFAULT '',
	employees             TEXT NOT NULL DEFAULT '',
	revenue_band          TEXT NOT NULL DEFAULT '',
	founded_year          INTEGER,
	contact_name          TEXT NOT NULL DEFAULT '',
	contact_title         TEXT NOT NULL DEFAULT '',
	email                 TEXT NOT NULL DEFAULT '',
	phone                 TEXT NOT NULL DEFAULT '',
	address               TEXT NOT NULL DEFAULT '',
	linkedin_url          TEXT NOT NULL DEFAULT '',
	twitter_url           TEXT NOT NULL DEFAULT '',
	facebook_url          TEXT NOT NULL DEFAULT '',
	scrape_confidence     DOUBLE PRECISION NOT NULL DEFAULT 0,
	email_confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
	enrichment_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	scrape_source         TEXT NOT NULL DEFAULT 'none',
	email_source          TEXT NOT NULL DEFAULT 'none',
	enrichment_source     TEXT NOT NULL DEFAULT 'none',
	score                 DOUBLE PRECISION NOT NULL DEFAULT 0,
	qualification_label   TEXT NOT NULL DEFAULT 'Low Priority',
	outreach_message      TEXT NOT NULL DEFAULT '',
	outreach_sent         BOOLEAN NOT NULL DEFAULT false,
	outreach_sent_at      TIMESTAMPTZ,
	is_active             BOOLEAN NOT NULL DEFAULT true,
	is_verified           BOOLEAN NOT NULL DEFAULT false,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_org_created ON leads(organization_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_org_active ON leads(organization_id, is_active);

CREATE TABLE IF NOT EXISTS scraping_logs (
	id                 TEXT PRIMARY KEY,
	lead_id            TEXT NOT NULL REFERENCES leads(id),
	scraping_method    TEXT NOT NULL,
	success            BOOLEAN NOT NULL,
	error_message      TEXT NOT NULL DEFAULT '',
	confidence_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	processing_time_ms BIGINT NOT NULL DEFAULT 0,
	scraped_data       JSONB,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_scraping_logs_lead_id ON scraping_logs(lead_id);

CREATE TABLE IF NOT EXISTS enrichment_logs (
	id                 TEXT PRIMARY KEY,
	lead_id            TEXT NOT NULL REFERENCES leads(id),
	enrichment_type    TEXT NOT NULL,
	enrichment_data    JSONB,
	confidence_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	processing_time_ms BIGINT NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_enrichment_logs_lead_id ON enrichment_logs(lead_id);

CREATE TABLE IF NOT EXISTS usage_records (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	action          TEXT NOT NULL,
	quantity        INTEGER NOT NULL DEFAULT 1,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_usage_records_org_created ON usage_records(organization_id, created_at DESC);

CREATE TABLE IF NOT EXISTS api_keys (
	id              TEXT PRIMARY KEY,
	key_hash        TEXT NOT NULL,
	key_prefix      TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL DEFAULT '',
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	user_id         TEXT NOT NULL REFERENCES users(id),
	is_active       BOOLEAN NOT NULL DEFAULT true,
	is_revoked      BOOLEAN NOT NULL DEFAULT false,
	rate_limit      INTEGER NOT NULL DEFAULT 0,
	expires_at      TIMESTAMPTZ,
	last_used_at    TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS jobs (
	id              TEXT PRIMARY KEY,
	lead_id         TEXT NOT NULL REFERENCES leads(id),
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	status          TEXT NOT NULL DEFAULT 'queued',
	attempts        INTEGER NOT NULL DEFAULT 0,
	max_attempts    INTEGER NOT NULL DEFAULT 3,
	run_after       TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_error      TEXT NOT NULL DEFAULT '',
	message_style   TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_run_after ON jobs(status, run_after);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Users

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, hashed_password, first_name, last_name, organization_id, is_active, is_superuser, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Email, u.HashedPassword, u.FirstName, u.LastName, u.OrganizationID, u.IsActive, u.IsSuperuser, u.CreatedAt, u.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert user")
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, hashed_password, first_name, last_name, organization_id, is_active, is_superuser, created_at, updated_at FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get user %s", id)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, hashed_password, first_name, last_name, organization_id, is_active, is_superuser, created_at, updated_at FROM users WHERE email = $1`,
		email,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get user by email")
	}
	return u, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, u *model.User) error {
	u.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET email = $1, hashed_password = $2, first_name = $3, last_name = $4, is_active = $5, is_superuser = $6, updated_at = $7 WHERE id = $8`,
		u.Email, u.HashedPassword, u.FirstName, u.LastName, u.IsActive, u.IsSuperuser, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update user %s", u.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("user not found: %s", u.ID)
	}
	return nil
}

// Organizations

func (s *PostgresStore) CreateOrganization(ctx context.Context, org *model.Organization) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO organizations (id, name, plan_tier, max_leads, usage_count, billing_customer_id, billing_subscription_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		org.ID, org.Name, string(org.PlanTier), org.MaxLeads, org.UsageCount, org.BillingCustomerID, org.BillingSubscriptionID, org.CreatedAt, org.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert organization")
}

func (s *PostgresStore) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	org, err := scanOrganization(s.pool.QueryRow(ctx,
		`SELECT id, name, plan_tier, max_leads, usage_count, billing_customer_id, billing_subscription_id, created_at, updated_at FROM organizations WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get organization %s", id)
	}
	return org, nil
}

func (s *PostgresStore) GetOrganizationByName(ctx context.Context, name string) (*model.Organization, error) {
	org, err := scanOrganization(s.pool.QueryRow(ctx,
		`SELECT id, name, plan_tier, max_leads, usage_count, billing_customer_id, billing_subscription_id, created_at, updated_at FROM organizations WHERE name = $1`,
		name,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get organization by name")
	}
	return org, nil
}

func (s *PostgresStore) UpdateOrganization(ctx context.Context, org *model.Organization) error {
	org.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE organizations SET name = $1, plan_tier = $2, max_leads = $3, usage_count = $4, billing_customer_id = $5, billing_subscription_id = $6, updated_at = $7 WHERE id = $8`,
		org.Name, string(org.PlanTier), org.MaxLeads, org.UsageCount, org.BillingCustomerID, org.BillingSubscriptionID, org.UpdatedAt, org.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update organization %s", org.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("organization not found: %s", org.ID)
	}
	return nil
}

// Subscriptions

func (s *PostgresStore) GetSubscription(ctx context.Context, orgID string) (*model.Subscription, error) {
	sub, err := scanSubscription(s.pool.QueryRow(ctx,
		`SELECT id, organization_id, plan_name, status, provider_subscription_id, cancel_at_period_end, current_period_start, current_period_end, created_at, updated_at FROM subscriptions WHERE organization_id = $1`,
		orgID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get subscription for org %s", orgID)
	}
	return sub, nil
}

func (s *PostgresStore) UpsertSubscription(ctx context.Context, sub *model.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO subscriptions (id, organization_id, plan_name, status, provider_subscription_id, cancel_at_period_end, current_period_start, current_period_end, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (organization_id) DO UPDATE SET
		   plan_name = $3, status = $4, provider_subscription_id = $5, cancel_at_period_end = $6,
		   current_period_start = $7, current_period_end = $8, updated_at = $10`,
		sub.ID, sub.OrganizationID, string(sub.PlanName), string(sub.Status), sub.ProviderSubscriptionID,
		sub.CancelAtPeriodEnd, sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CreatedAt, sub.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: upsert subscription")
}

func (s *PostgresStore) UpdateSubscription(ctx context.Context, sub *model.Subscription) error {
	sub.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE subscriptions SET plan_name = $1, status = $2, cancel_at_period_end = $3, current_period_start = $4, current_period_end = $5, updated_at = $6 WHERE organization_id = $7`,
		string(sub.PlanName), string(sub.Status), sub.CancelAtPeriodEnd, sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.UpdatedAt, sub.OrganizationID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update subscription for org %s", sub.OrganizationID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("subscription not found for org: %s", sub.OrganizationID)
	}
	return nil
}

// SeedPlans writes the plan catalog to the plans table so reporting
// queries can join against it. The catalog itself is config-driven.
func (s *PostgresStore) SeedPlans(ctx context.Context, plans []model.Plan) error {
	rows := make([][]any, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, []any{string(p.Name), p.MaxLeadsPerDay, p.CanExport, p.CanUseAI})
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "plans",
		Columns:      []string{"name", "max_leads_per_day", "can_export", "can_use_ai"},
		ConflictKeys: []string{"name"},
	}, rows)
	return eris.Wrap(err, "postgres: seed plans")
}

// Leads

func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	prepareLeadForInsert(lead)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO leads (`+leadColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33)`,
		leadValues(lead)...,
	)
	return eris.Wrap(err, "postgres: insert lead")
}

// CreateLeads bulk-inserts leads using COPY. Used by the bulk ingest path.
func (s *PostgresStore) CreateLeads(ctx context.Context, leads []*model.Lead) error {
	rows := make([][]any, 0, len(leads))
	for _, lead := range leads {
		prepareLeadForInsert(lead)
		rows = append(rows, leadValues(lead))
	}

	cols := []string{
		"id", "organization_id", "owner_id", "website", "company_name", "about_text", "industry",
		"employees", "revenue_band", "founded_year", "contact_name", "contact_title", "email", "phone",
		"address", "linkedin_url", "twitter_url", "facebook_url", "scrape_confidence", "email_confidence",
		"enrichment_confidence", "scrape_source", "email_source", "enrichment_source", "score",
		"qualification_label", "outreach_message", "outreach_sent", "outreach_sent_at", "is_active",
		"is_verified", "created_at", "updated_at",
	}
	_, err := db.CopyFrom(ctx, s.pool, "leads", cols, rows)
	return eris.Wrap(err, "postgres: bulk insert leads")
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	lead, err := scanLead(s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1 AND is_active = true`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE organization_id = $1 AND is_active = true
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		filter.OrganizationID, limit, filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) UpdateLead(ctx context.Context, lead *model.Lead) error {
	lead.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET
		   website = $1, company_name = $2, about_text = $3, industry = $4, employees = $5,
		   revenue_band = $6, founded_year = $7, contact_name = $8, contact_title = $9, email = $10,
		   phone = $11, address = $12, linkedin_url = $13, twitter_url = $14, facebook_url = $15,
		   scrape_confidence = $16, email_confidence = $17, enrichment_confidence = $18,
		   scrape_source = $19, email_source = $20, enrichment_source = $21, score = $22,
		   qualification_label = $23, outreach_message = $24, outreach_sent = $25, outreach_sent_at = $26,
		   is_verified = $27, updated_at = $28
		 WHERE id = $29 AND is_active = true`,
		lead.Website, lead.CompanyName, lead.AboutText, lead.Industry, string(lead.Employees),
		string(lead.RevenueBand), lead.FoundedYear, lead.ContactName, lead.ContactTitle, lead.Email,
		lead.Phone, lead.Address, lead.LinkedInURL, lead.TwitterURL, lead.FacebookURL,
		lead.ScrapeConfidence, lead.EmailConfidence, lead.EnrichmentConfidence,
		string(lead.ScrapeSource), string(lead.EmailSource), string(lead.EnrichmentSource), lead.Score,
		string(lead.QualificationLabel), lead.OutreachMessage, lead.OutreachSent, lead.OutreachSentAt,
		lead.IsVerified, lead.UpdatedAt, lead.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead %s", lead.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %s", lead.ID)
	}
	return nil
}

func (s *PostgresStore) SoftDeleteLead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET is_active = false, updated_at = $1 WHERE id = $2 AND is_active = true`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: soft delete lead %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) CountLeadsCreatedSince(ctx context.Context, orgID string, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM leads WHERE organization_id = $1 AND created_at >= $2`,
		orgID, since,
	).Scan(&count)
	return count, eris.Wrap(err, "postgres: count leads since")
}

// Stage logs

func (s *PostgresStore) AppendScrapingLog(ctx context.Context, l *model.ScrapingLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO scraping_logs (id, lead_id, scraping_method, success, error_message, confidence_score, processing_time_ms, scraped_data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		l.ID, l.LeadID, string(l.ScrapingMethod), l.Success, l.ErrorMessage, l.ConfidenceScore, l.ProcessingTimeMS, nullableJSON(l.ScrapedData), l.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append scraping log")
}

func (s *PostgresStore) AppendEnrichmentLog(ctx context.Context, l *model.EnrichmentLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO enrichment_logs (id, lead_id, enrichment_type, enrichment_data, confidence_score, processing_time_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, l.LeadID, string(l.EnrichmentType), nullableJSON(l.EnrichmentData), l.ConfidenceScore, l.ProcessingTimeMS, l.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append enrichment log")
}

func (s *PostgresStore) ListScrapingLogs(ctx context.Context, leadID string) ([]model.ScrapingLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, scraping_method, success, error_message, confidence_score, processing_time_ms, scraped_data, created_at
		 FROM scraping_logs WHERE lead_id = $1 ORDER BY created_at ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scraping logs")
	}
	defer rows.Close()

	var logs []model.ScrapingLog
	for rows.Next() {
		var l model.ScrapingLog
		var data *string
		if err := rows.Scan(&l.ID, &l.LeadID, &l.ScrapingMethod, &l.Success, &l.ErrorMessage, &l.ConfidenceScore, &l.ProcessingTimeMS, &data, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan scraping log")
		}
		if data != nil {
			l.ScrapedData = *data
		}
		logs = append(logs, l)
	}
	return logs, eris.Wrap(rows.Err(), "postgres: list scraping logs iterate")
}

func (s *PostgresStore) ListEnrichmentLogs(ctx context.Context, leadID string) ([]model.EnrichmentLog, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, enrichment_type, enrichment_data, confidence_score, processing_time_ms, created_at
		 FROM enrichment_logs WHERE lead_id = $1 ORDER BY created_at ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list enrichment logs")
	}
	defer rows.Close()

	var logs []model.EnrichmentLog
	for rows.Next() {
		var l model.EnrichmentLog
		var data *string
		if err := rows.Scan(&l.ID, &l.LeadID, &l.EnrichmentType, &data, &l.ConfidenceScore, &l.ProcessingTimeMS, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan enrichment log")
		}
		if data != nil {
			l.EnrichmentData = *data
		}
		logs = append(logs, l)
	}
	return logs, eris.Wrap(rows.Err(), "postgres: list enrichment logs iterate")
}

// Usage records

func (s *PostgresStore) AppendUsageRecord(ctx context.Context, r *model.UsageRecord) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Quantity == 0 {
		r.Quantity = 1
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_records (id, organization_id, action, quantity, created_at) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.OrganizationID, r.Action, r.Quantity, r.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append usage record")
}

// API keys

func (s *PostgresStore) CreateAPIKey(ctx context.Context, k *model.APIKey) error {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, key_hash, key_prefix, name, organization_id, user_id, is_active, is_revoked, rate_limit, expires_at, last_used_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		k.ID, k.KeyHash, k.KeyPrefix, k.Name, k.OrganizationID, k.UserID, k.IsActive, k.IsRevoked, k.RateLimit, k.ExpiresAt, k.LastUsedAt, k.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert api key")
}

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*model.APIKey, error) {
	var k model.APIKey
	err := s.pool.QueryRow(ctx,
		`SELECT id, key_hash, key_prefix, name, organization_id, user_id, is_active, is_revoked, rate_limit, expires_at, last_used_at, created_at FROM api_keys WHERE key_prefix = $1`,
		prefix,
	).Scan(&k.ID, &k.KeyHash, &k.KeyPrefix, &k.Name, &k.OrganizationID, &k.UserID, &k.IsActive, &k.IsRevoked, &k.RateLimit, &k.ExpiresAt, &k.LastUsedAt, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get api key by prefix")
	}
	return &k, nil
}

func (s *PostgresStore) TouchAPIKey(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "postgres: touch api key %s", id)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET is_revoked = true, is_active = false WHERE id = $1`,
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: revoke api key %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("api_key not found: %s", id)
	}
	return nil
}

// Jobs

func (s *PostgresStore) EnqueueJob(ctx context.Context, job *model.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	job.Status = model.JobQueued
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.RunAfter.IsZero() {
		job.RunAfter = now
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = 3
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		job.ID, job.LeadID, job.OrganizationID, string(job.Status), job.Attempts, job.MaxAttempts,
		job.RunAfter, job.LastError, job.MessageStyle, job.CreatedAt, job.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: enqueue job")
}

// ClaimJob atomically claims one due queued job. FOR UPDATE SKIP LOCKED
// keeps concurrent workers from fighting over the same row. Returns
// (nil, nil) when nothing is due.
func (s *PostgresStore) ClaimJob(ctx context.Context) (*model.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx,
		`UPDATE jobs SET status = 'running', attempts = attempts + 1, updated_at = now()
		 WHERE id = (
		   SELECT id FROM jobs
		   WHERE status = 'queued' AND run_after <= now()
		   ORDER BY created_at ASC
		   LIMIT 1
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+jobColumns,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: claim job")
	}
	return job, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	return job, nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'succeeded', last_error = '', updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", id)
	}
	return nil
}

// FailJob reschedules the job while attempts remain, otherwise marks it
// terminally failed. Attempts were already incremented at claim time.
func (s *PostgresStore) FailJob(ctx context.Context, id string, jobErr string, retryAfter time.Duration) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET
		   status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'queued' END,
		   run_after = CASE WHEN attempts >= max_attempts THEN run_after ELSE $1 END,
		   last_error = $2, updated_at = $3
		 WHERE id = $4`,
		now.Add(retryAfter), jobErr, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", id)
	}
	return nil
}

// FailJobTerminal marks the job failed with no reschedule, regardless of
// remaining attempts. Used for permanent errors.
func (s *PostgresStore) FailJobTerminal(ctx context.Context, id string, jobErr string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'failed', last_error = $1, updated_at = $2 WHERE id = $3`,
		jobErr, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail job %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", id)
	}
	return nil
}

// helpers

type pgScannable interface {
	Scan(dest ...any) error
}

func scanUser(row pgScannable) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.FirstName, &u.LastName, &u.OrganizationID, &u.IsActive, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func scanOrganization(row pgScannable) (*model.Organization, error) {
	var org model.Organization
	err := row.Scan(&org.ID, &org.Name, &org.PlanTier, &org.MaxLeads, &org.UsageCount, &org.BillingCustomerID, &org.BillingSubscriptionID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func scanSubscription(row pgScannable) (*model.Subscription, error) {
	var sub model.Subscription
	err := row.Scan(&sub.ID, &sub.OrganizationID, &sub.PlanName, &sub.Status, &sub.ProviderSubscriptionID, &sub.CancelAtPeriodEnd, &sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func scanLead(row pgScannable) (*model.Lead, error) {
	var l model.Lead
	err := row.Scan(
		&l.ID, &l.OrganizationID, &l.OwnerID, &l.Website, &l.CompanyName, &l.AboutText, &l.Industry,
		&l.Employees, &l.RevenueBand, &l.FoundedYear, &l.ContactName, &l.ContactTitle, &l.Email, &l.Phone,
		&l.Address, &l.LinkedInURL, &l.TwitterURL, &l.FacebookURL, &l.ScrapeConfidence, &l.EmailConfidence,
		&l.EnrichmentConfidence, &l.ScrapeSource, &l.EmailSource, &l.EnrichmentSource, &l.Score,
		&l.QualificationLabel, &l.OutreachMessage, &l.OutreachSent, &l.OutreachSentAt, &l.IsActive,
		&l.IsVerified, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func scanJob(row pgScannable) (*model.Job, error) {
	var j model.Job
	err := row.Scan(&j.ID, &j.LeadID, &j.OrganizationID, &j.Status, &j.Attempts, &j.MaxAttempts, &j.RunAfter, &j.LastError, &j.MessageStyle, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func prepareLeadForInsert(lead *model.Lead) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now
	if lead.ScrapeSource == "" {
		lead.ScrapeSource = model.SourceNone
	}
	if lead.EmailSource == "" {
		lead.EmailSource = model.SourceNone
	}
	if lead.EnrichmentSource == "" {
		lead.EnrichmentSource = model.SourceNone
	}
	if lead.QualificationLabel == "" {
		lead.QualificationLabel = model.LabelLowPriority
	}
}

func leadValues(l *model.Lead) []any {
	return []any{
		l.ID, l.OrganizationID, l.OwnerID, l.Website, l.CompanyName, l.AboutText, l.Industry,
		string(l.Employees), string(l.RevenueBand), l.FoundedYear, l.ContactName, l.ContactTitle,
		l.Email, l.Phone, l.Address, l.LinkedInURL, l.TwitterURL, l.FacebookURL,
		l.ScrapeConfidence, l.EmailConfidence, l.EnrichmentConfidence,
		string(l.ScrapeSource), string(l.EmailSource), string(l.EnrichmentSource), l.Score,
		string(l.QualificationLabel), l.OutreachMessage, l.OutreachSent, l.OutreachSentAt,
		l.IsActive, l.IsVerified, l.CreatedAt, l.UpdatedAt,
	}
}

// nullableJSON maps an empty payload to NULL for JSONB columns.
func nullableJSON(s string) any {
	if s == "" {
		return nil
	}
	return []byte(s)
}
