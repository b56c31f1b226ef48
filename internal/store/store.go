package store

import (
	"context"
	"time"

	"github.com/leadboost/leadboost/internal/model"
)

// LeadFilter specifies criteria for listing leads. Results are always
// scoped to one organization and exclude soft-deleted rows.
type LeadFilter struct {
	OrganizationID string `json:"organization_id"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for the lead pipeline and API.
// Get methods return (nil, nil) when the row does not exist.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error

	// Organizations
	CreateOrganization(ctx context.Context, org *model.Organization) error
	GetOrganization(ctx context.Context, id string) (*model.Organization, error)
	GetOrganizationByName(ctx context.Context, name string) (*model.Organization, error)
	UpdateOrganization(ctx context.Context, org *model.Organization) error

	// Subscriptions. At most one per organization.
	GetSubscription(ctx context.Context, orgID string) (*model.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *model.Subscription) error
	UpdateSubscription(ctx context.Context, sub *model.Subscription) error

	// Plan catalog
	SeedPlans(ctx context.Context, plans []model.Plan) error

	// Leads
	CreateLead(ctx context.Context, lead *model.Lead) error
	CreateLeads(ctx context.Context, leads []*model.Lead) error
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateLead(ctx context.Context, lead *model.Lead) error
	SoftDeleteLead(ctx context.Context, id string) error
	CountLeadsCreatedSince(ctx context.Context, orgID string, since time.Time) (int, error)

	// Stage logs. Append-only: rows are never updated or deleted.
	AppendScrapingLog(ctx context.Context, l *model.ScrapingLog) error
	AppendEnrichmentLog(ctx context.Context, l *model.EnrichmentLog) error
	ListScrapingLogs(ctx context.Context, leadID string) ([]model.ScrapingLog, error)
	ListEnrichmentLogs(ctx context.Context, leadID string) ([]model.EnrichmentLog, error)

	// Usage audit. Append-only.
	AppendUsageRecord(ctx context.Context, r *model.UsageRecord) error

	// API keys
	CreateAPIKey(ctx context.Context, k *model.APIKey) error
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*model.APIKey, error)
	TouchAPIKey(ctx context.Context, id string) error
	RevokeAPIKey(ctx context.Context, id string) error

	// Jobs
	EnqueueJob(ctx context.Context, job *model.Job) error
	ClaimJob(ctx context.Context) (*model.Job, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, jobErr string, retryAfter time.Duration) error
	FailJobTerminal(ctx context.Context, id string, jobErr string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
