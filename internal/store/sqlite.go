package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/leadboost/leadboost/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// SQLite permits one writer at a time. A single connection avoids
	// SQLITE_BUSY churn under the worker pool.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS organizations (
	id                      TEXT PRIMARY KEY,
	name                    TEXT NOT NULL UNIQUE,
	plan_tier               TEXT NOT NULL DEFAULT 'free',
	max_leads               INTEGER NOT NULL DEFAULT 100,
	usage_count             INTEGER NOT NULL DEFAULT 0,
	billing_customer_id     TEXT NOT NULL DEFAULT '',
	billing_subscription_id TEXT NOT NULL DEFAULT '',
	created_at              DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at              DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS users (
	id              TEXT PRIMARY KEY,
	email           TEXT NOT NULL UNIQUE,
	hashed_password TEXT NOT NULL,
	first_name      TEXT NOT NULL DEFAULT '',
	last_name       TEXT NOT NULL DEFAULT '',
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	is_active       INTEGER NOT NULL DEFAULT 1,
	is_superuser    INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS subscriptions (
	id                       TEXT PRIMARY KEY,
	organization_id          TEXT NOT NULL UNIQUE REFERENCES organizations(id),
	plan_name                TEXT NOT NULL,
	status                   TEXT NOT NULL DEFAULT 'active',
	provider_subscription_id TEXT NOT NULL DEFAULT '',
	cancel_at_period_end     INTEGER NOT NULL DEFAULT 0,
	current_period_start     DATETIME NOT NULL,
	current_period_end       DATETIME NOT NULL,
	created_at               DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at               DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS plans (
	name              TEXT PRIMARY KEY,
	max_leads_per_day INTEGER NOT NULL,
	can_export        INTEGER NOT NULL DEFAULT 0,
	can_use_ai        INTEGER NOT NULL DEFAULT 0
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
	scrape_confidence     REAL NOT NULL DEFAULT 0,
	email_confidence      REAL NOT NULL DEFAULT 0,
	enrichment_confidence REAL NOT NULL DEFAULT 0,
	scrape_source         TEXT NOT NULL DEFAULT 'none',
	email_source          TEXT NOT NULL DEFAULT 'none',
	enrichment_source     TEXT NOT NULL DEFAULT 'none',
	score                 REAL NOT NULL DEFAULT 0,
	qualification_label   TEXT NOT NULL DEFAULT 'Low Priority',
	outreach_message      TEXT NOT NULL DEFAULT '',
	outreach_sent         INTEGER NOT NULL DEFAULT 0,
	outreach_sent_at      DATETIME,
	is_active             INTEGER NOT NULL DEFAULT 1,
	is_verified           INTEGER NOT NULL DEFAULT 0,
	created_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_org_created ON leads(organization_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_org_active ON leads(organization_id, is_active);

CREATE TABLE IF NOT EXISTS scraping_logs (
	id                 TEXT PRIMARY KEY,
	lead_id            TEXT NOT NULL REFERENCES leads(id),
	scraping_method    TEXT NOT NULL,
	success            INTEGER NOT NULL,
	error_message      TEXT NOT NULL DEFAULT '',
	confidence_score   REAL NOT NULL DEFAULT 0,
	processing_time_ms INTEGER NOT NULL DEFAULT 0,
	scraped_data       TEXT,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_scraping_logs_lead_id ON scraping_logs(lead_id);

CREATE TABLE IF NOT EXISTS enrichment_logs (
	id                 TEXT PRIMARY KEY,
	lead_id            TEXT NOT NULL REFERENCES leads(id),
	enrichment_type    TEXT NOT NULL,
	enrichment_data    TEXT,
	confidence_score   REAL NOT NULL DEFAULT 0,
	processing_time_ms INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_enrichment_logs_lead_id ON enrichment_logs(lead_id);

CREATE TABLE IF NOT EXISTS usage_records (
	id              TEXT PRIMARY KEY,
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	action          TEXT NOT NULL,
	quantity        INTEGER NOT NULL DEFAULT 1,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_usage_records_org_created ON usage_records(organization_id, created_at DESC);

CREATE TABLE IF NOT EXISTS api_keys (
	id              TEXT PRIMARY KEY,
	key_hash        TEXT NOT NULL,
	key_prefix      TEXT NOT NULL UNIQUE,
	name            TEXT NOT NULL DEFAULT '',
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	user_id         TEXT NOT NULL REFERENCES users(id),
	is_active       INTEGER NOT NULL DEFAULT 1,
	is_revoked      INTEGER NOT NULL DEFAULT 0,
	rate_limit      INTEGER NOT NULL DEFAULT 0,
	expires_at      DATETIME,
	last_used_at    DATETIME,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS jobs (
	id              TEXT PRIMARY KEY,
	lead_id         TEXT NOT NULL REFERENCES leads(id),
	organization_id TEXT NOT NULL REFERENCES organizations(id),
	status          TEXT NOT NULL DEFAULT 'queued',
	attempts        INTEGER NOT NULL DEFAULT 0,
	max_attempts    INTEGER NOT NULL DEFAULT 3,
	run_after       DATETIME NOT NULL,
	last_error      TEXT NOT NULL DEFAULT '',
	message_style   TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_run_after ON jobs(status, run_after);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Users

func (s *SQLiteStore) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, hashed_password, first_name, last_name, organization_id, is_active, is_superuser, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.HashedPassword, u.FirstName, u.LastName, u.OrganizationID, u.IsActive, u.IsSuperuser, u.CreatedAt, u.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert user")
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, hashed_password, first_name, last_name, organization_id, is_active, is_superuser, created_at, updated_at FROM users WHERE id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get user %s", id)
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, email, hashed_password, first_name, last_name, organization_id, is_active, is_superuser, created_at, updated_at FROM users WHERE email = ?`,
		email,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get user by email")
	}
	return u, nil
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, u *model.User) error {
	u.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = ?, hashed_password = ?, first_name = ?, last_name = ?, is_active = ?, is_superuser = ?, updated_at = ? WHERE id = ?`,
		u.Email, u.HashedPassword, u.FirstName, u.LastName, u.IsActive, u.IsSuperuser, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update user %s", u.ID)
	}
	return checkRowsAffected(res, "user", u.ID)
}

// Organizations

func (s *SQLiteStore) CreateOrganization(ctx context.Context, org *model.Organization) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, plan_tier, max_leads, usage_count, billing_customer_id, billing_subscription_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		org.ID, org.Name, string(org.PlanTier), org.MaxLeads, org.UsageCount, org.BillingCustomerID, org.BillingSubscriptionID, org.CreatedAt, org.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert organization")
}

func (s *SQLiteStore) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	org, err := scanOrganization(s.db.QueryRowContext(ctx,
		`SELECT id, name, plan_tier, max_leads, usage_count, billing_customer_id, billing_subscription_id, created_at, updated_at FROM organizations WHERE id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get organization %s", id)
	}
	return org, nil
}

func (s *SQLiteStore) GetOrganizationByName(ctx context.Context, name string) (*model.Organization, error) {
	org, err := scanOrganization(s.db.QueryRowContext(ctx,
		`SELECT id, name, plan_tier, max_leads, usage_count, billing_customer_id, billing_subscription_id, created_at, updated_at FROM organizations WHERE name = ?`,
		name,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get organization by name")
	}
	return org, nil
}

func (s *SQLiteStore) UpdateOrganization(ctx context.Context, org *model.Organization) error {
	org.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE organizations SET name = ?, plan_tier = ?, max_leads = ?, usage_count = ?, billing_customer_id = ?, billing_subscription_id = ?, updated_at = ? WHERE id = ?`,
		org.Name, string(org.PlanTier), org.MaxLeads, org.UsageCount, org.BillingCustomerID, org.BillingSubscriptionID, org.UpdatedAt, org.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update organization %s", org.ID)
	}
	return checkRowsAffected(res, "organization", org.ID)
}

// Subscriptions

func (s *SQLiteStore) GetSubscription(ctx context.Context, orgID string) (*model.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRowContext(ctx,
		`SELECT id, organization_id, plan_name, status, provider_subscription_id, cancel_at_period_end, current_period_start, current_period_end, created_at, updated_at FROM subscriptions WHERE organization_id = ?`,
		orgID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get subscription for org %s", orgID)
	}
	return sub, nil
}

func (s *SQLiteStore) UpsertSubscription(ctx context.Context, sub *model.Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, organization_id, plan_name, status, provider_subscription_id, cancel_at_period_end, current_period_start, current_period_end, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (organization_id) DO UPDATE SET
		   plan_name = excluded.plan_name, status = excluded.status,
		   provider_subscription_id = excluded.provider_subscription_id,
		   cancel_at_period_end = excluded.cancel_at_period_end,
		   current_period_start = excluded.current_period_start,
		   current_period_end = excluded.current_period_end,
		   updated_at = excluded.updated_at`,
		sub.ID, sub.OrganizationID, string(sub.PlanName), string(sub.Status), sub.ProviderSubscriptionID,
		sub.CancelAtPeriodEnd, sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CreatedAt, sub.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: upsert subscription")
}

func (s *SQLiteStore) UpdateSubscription(ctx context.Context, sub *model.Subscription) error {
	sub.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET plan_name = ?, status = ?, cancel_at_period_end = ?, current_period_start = ?, current_period_end = ?, updated_at = ? WHERE organization_id = ?`,
		string(sub.PlanName), string(sub.Status), sub.CancelAtPeriodEnd, sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.UpdatedAt, sub.OrganizationID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update subscription for org %s", sub.OrganizationID)
	}
	return checkRowsAffected(res, "subscription", sub.OrganizationID)
}

func (s *SQLiteStore) SeedPlans(ctx context.Context, plans []model.Plan) error {
	for _, p := range plans {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO plans (name, max_leads_per_day, can_export, can_use_ai) VALUES (?, ?, ?, ?)
			 ON CONFLICT (name) DO UPDATE SET
			   max_leads_per_day = excluded.max_leads_per_day,
			   can_export = excluded.can_export,
			   can_use_ai = excluded.can_use_ai`,
			string(p.Name), p.MaxLeadsPerDay, p.CanExport, p.CanUseAI,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: seed plan %s", p.Name)
		}
	}
	return nil
}

// Leads

const sqliteLeadPlaceholders = `?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?`

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	prepareLeadForInsert(lead)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (`+leadColumns+`) VALUES (`+sqliteLeadPlaceholders+`)`,
		leadValues(lead)...,
	)
	return eris.Wrap(err, "sqlite: insert lead")
}

func (s *SQLiteStore) CreateLeads(ctx context.Context, leads []*model.Lead) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin bulk insert")
	}
	defer tx.Rollback()

	for _, lead := range leads {
		prepareLeadForInsert(lead)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO leads (`+leadColumns+`) VALUES (`+sqliteLeadPlaceholders+`)`,
			leadValues(lead)...,
		); err != nil {
			return eris.Wrap(err, "sqlite: bulk insert lead")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit bulk insert")
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	lead, err := scanLead(s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ? AND is_active = 1`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE organization_id = ? AND is_active = 1
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		filter.OrganizationID, limit, filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) UpdateLead(ctx context.Context, lead *model.Lead) error {
	lead.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET
		   website = ?, company_name = ?, about_text = ?, industry = ?, employees = ?,
		   revenue_band = ?, founded_year = ?, contact_name = ?, contact_title = ?, email = ?,
		   phone = ?, address = ?, linkedin_url = ?, twitter_url = ?, facebook_url = ?,
		   scrape_confidence = ?, email_confidence = ?, enrichment_confidence = ?,
		   scrape_source = ?, email_source = ?, enrichment_source = ?, score = ?,
		   qualification_label = ?, outreach_message = ?, outreach_sent = ?, outreach_sent_at = ?,
		   is_verified = ?, updated_at = ?
		 WHERE id = ? AND is_active = 1`,
		lead.Website, lead.CompanyName, lead.AboutText, lead.Industry, string(lead.Employees),
		string(lead.RevenueBand), lead.FoundedYear, lead.ContactName, lead.ContactTitle, lead.Email,
		lead.Phone, lead.Address, lead.LinkedInURL, lead.TwitterURL, lead.FacebookURL,
		lead.ScrapeConfidence, lead.EmailConfidence, lead.EnrichmentConfidence,
		string(lead.ScrapeSource), string(lead.EmailSource), string(lead.EnrichmentSource), lead.Score,
		string(lead.QualificationLabel), lead.OutreachMessage, lead.OutreachSent, lead.OutreachSentAt,
		lead.IsVerified, lead.UpdatedAt, lead.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %s", lead.ID)
	}
	return checkRowsAffected(res, "lead", lead.ID)
}

func (s *SQLiteStore) SoftDeleteLead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: soft delete lead %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

func (s *SQLiteStore) CountLeadsCreatedSince(ctx context.Context, orgID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM leads WHERE organization_id = ? AND created_at >= ?`,
		orgID, since,
	).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count leads since")
}

// Stage logs

func (s *SQLiteStore) AppendScrapingLog(ctx context.Context, l *model.ScrapingLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scraping_logs (id, lead_id, scraping_method, success, error_message, confidence_score, processing_time_ms, scraped_data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.LeadID, string(l.ScrapingMethod), l.Success, l.ErrorMessage, l.ConfidenceScore, l.ProcessingTimeMS, nullableText(l.ScrapedData), l.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append scraping log")
}

func (s *SQLiteStore) AppendEnrichmentLog(ctx context.Context, l *model.EnrichmentLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrichment_logs (id, lead_id, enrichment_type, enrichment_data, confidence_score, processing_time_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.LeadID, string(l.EnrichmentType), nullableText(l.EnrichmentData), l.ConfidenceScore, l.ProcessingTimeMS, l.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append enrichment log")
}

func (s *SQLiteStore) ListScrapingLogs(ctx context.Context, leadID string) ([]model.ScrapingLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, scraping_method, success, error_message, confidence_score, processing_time_ms, scraped_data, created_at
		 FROM scraping_logs WHERE lead_id = ? ORDER BY created_at ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scraping logs")
	}
	defer rows.Close()

	var logs []model.ScrapingLog
	for rows.Next() {
		var l model.ScrapingLog
		var data sql.NullString
		if err := rows.Scan(&l.ID, &l.LeadID, &l.ScrapingMethod, &l.Success, &l.ErrorMessage, &l.ConfidenceScore, &l.ProcessingTimeMS, &data, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan scraping log")
		}
		l.ScrapedData = data.String
		logs = append(logs, l)
	}
	return logs, eris.Wrap(rows.Err(), "sqlite: list scraping logs iterate")
}

func (s *SQLiteStore) ListEnrichmentLogs(ctx context.Context, leadID string) ([]model.EnrichmentLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, enrichment_type, enrichment_data, confidence_score, processing_time_ms, created_at
		 FROM enrichment_logs WHERE lead_id = ? ORDER BY created_at ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list enrichment logs")
	}
	defer rows.Close()

	var logs []model.EnrichmentLog
	for rows.Next() {
		var l model.EnrichmentLog
		var data sql.NullString
		if err := rows.Scan(&l.ID, &l.LeadID, &l.EnrichmentType, &data, &l.ConfidenceScore, &l.ProcessingTimeMS, &l.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan enrichment log")
		}
		l.EnrichmentData = data.String
		logs = append(logs, l)
	}
	return logs, eris.Wrap(rows.Err(), "sqlite: list enrichment logs iterate")
}

// Usage records

func (s *SQLiteStore) AppendUsageRecord(ctx context.Context, r *model.UsageRecord) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Quantity == 0 {
		r.Quantity = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records (id, organization_id, action, quantity, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.OrganizationID, r.Action, r.Quantity, r.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append usage record")
}

// API keys

func (s *SQLiteStore) CreateAPIKey(ctx context.Context, k *model.APIKey) error {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, key_hash, key_prefix, name, organization_id, user_id, is_active, is_revoked, rate_limit, expires_at, last_used_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		k.ID, k.KeyHash, k.KeyPrefix, k.Name, k.OrganizationID, k.UserID, k.IsActive, k.IsRevoked, k.RateLimit, k.ExpiresAt, k.LastUsedAt, k.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert api key")
}

func (s *SQLiteStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*model.APIKey, error) {
	var k model.APIKey
	err := s.db.QueryRowContext(ctx,
		`SELECT id, key_hash, key_prefix, name, organization_id, user_id, is_active, is_revoked, rate_limit, expires_at, last_used_at, created_at FROM api_keys WHERE key_prefix = ?`,
		prefix,
	).Scan(&k.ID, &k.KeyHash, &k.KeyPrefix, &k.Name, &k.OrganizationID, &k.UserID, &k.IsActive, &k.IsRevoked, &k.RateLimit, &k.ExpiresAt, &k.LastUsedAt, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: get api key by prefix")
	}
	return &k, nil
}

func (s *SQLiteStore) TouchAPIKey(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "sqlite: touch api key %s", id)
}

func (s *SQLiteStore) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET is_revoked = 1, is_active = 0 WHERE id = ?`,
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: revoke api key %s", id)
	}
	return checkRowsAffected(res, "api_key", id)
}

// Jobs

func (s *SQLiteStore) EnqueueJob(ctx context.Context, job *model.Job) error {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.LeadID, job.OrganizationID, string(job.Status), job.Attempts, job.MaxAttempts,
		job.RunAfter, job.LastError, job.MessageStyle, job.CreatedAt, job.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: enqueue job")
}

// ClaimJob claims one due queued job. SQLite serializes writers, so a
// single UPDATE ... RETURNING is already atomic.
func (s *SQLiteStore) ClaimJob(ctx context.Context) (*model.Job, error) {
	now := time.Now().UTC()
	job, err := scanJob(s.db.QueryRowContext(ctx,
		`UPDATE jobs SET status = 'running', attempts = attempts + 1, updated_at = ?
		 WHERE id = (
		   SELECT id FROM jobs
		   WHERE status = 'queued' AND run_after <= ?
		   ORDER BY created_at ASC
		   LIMIT 1
		 )
		 RETURNING `+jobColumns,
		now, now,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: claim job")
	}
	return job, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get job %s", id)
	}
	return job, nil
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'succeeded', last_error = '', updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete job %s", id)
	}
	return checkRowsAffected(res, "job", id)
}

func (s *SQLiteStore) FailJob(ctx context.Context, id string, jobErr string, retryAfter time.Duration) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET
		   status = CASE WHEN attempts >= max_attempts THEN 'failed' ELSE 'queued' END,
		   run_after = CASE WHEN attempts >= max_attempts THEN run_after ELSE ? END,
		   last_error = ?, updated_at = ?
		 WHERE id = ?`,
		now.Add(retryAfter), jobErr, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail job %s", id)
	}
	return checkRowsAffected(res, "job", id)
}

// FailJobTerminal marks the job failed with no reschedule, regardless of
// remaining attempts. Used for permanent errors.
func (s *SQLiteStore) FailJobTerminal(ctx context.Context, id string, jobErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'failed', last_error = ?, updated_at = ? WHERE id = ?`,
		jobErr, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail job %s", id)
	}
	return checkRowsAffected(res, "job", id)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// nullableText maps an empty payload to NULL for TEXT columns holding JSON.
func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
