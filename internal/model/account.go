package model

import "time"

// PlanName is one of the subscription tiers from the plan catalog.
type PlanName string

const (
	PlanFree       PlanName = "free"
	PlanPro        PlanName = "pro"
	PlanEnterprise PlanName = "enterprise"
)

// SubscriptionStatus represents the billing state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionUnpaid   SubscriptionStatus = "unpaid"
)

// User is an authenticated account belonging to one organization.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	OrganizationID string    `json:"organization_id"`
	IsActive       bool      `json:"is_active"`
	IsSuperuser    bool      `json:"is_superuser"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Organization is the tenant: the billing and isolation unit that owns
// users and leads.
type Organization struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	PlanTier              PlanName  `json:"plan_tier"`
	MaxLeads              int       `json:"max_leads"`
	UsageCount            int       `json:"usage_count"`
	BillingCustomerID     string    `json:"billing_customer_id,omitempty"`
	BillingSubscriptionID string    `json:"billing_subscription_id,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Subscription links an organization to a plan. At most one per organization.
type Subscription struct {
	ID                     string             `json:"id"`
	OrganizationID         string             `json:"organization_id"`
	PlanName               PlanName           `json:"plan_name"`
	Status                 SubscriptionStatus `json:"status"`
	ProviderSubscriptionID string             `json:"provider_subscription_id,omitempty"`
	CancelAtPeriodEnd      bool               `json:"cancel_at_period_end"`
	CurrentPeriodStart     time.Time          `json:"current_period_start"`
	CurrentPeriodEnd       time.Time          `json:"current_period_end"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// Plan is a catalog row: a named tier with its daily cap and feature flags.
type Plan struct {
	Name           PlanName `json:"name"`
	MaxLeadsPerDay int      `json:"max_leads_per_day"`
	CanExport      bool     `json:"can_export"`
	CanUseAI       bool     `json:"can_use_ai"`
}

// UsageRecord is an immutable audit row for billable actions.
type UsageRecord struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Action         string    `json:"action"`
	Quantity       int       `json:"quantity"`
	CreatedAt      time.Time `json:"created_at"`
}

// APIKey is a long-lived credential. The full token is shown once on
// creation; only the prefix and the hashed secret are stored.
type APIKey struct {
	ID             string     `json:"id"`
	KeyHash        string     `json:"-"`
	KeyPrefix      string     `json:"key_prefix"`
	Name           string     `json:"name"`
	OrganizationID string     `json:"organization_id"`
	UserID         string     `json:"user_id"`
	IsActive       bool       `json:"is_active"`
	IsRevoked      bool       `json:"is_revoked"`
	RateLimit      int        `json:"rate_limit"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
