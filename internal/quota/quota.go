// Package quota enforces per-plan daily lead limits and feature flags.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/leadboost/leadboost/internal/config"
	"github.com/leadboost/leadboost/internal/model"
)

// Store is the persistence surface the gate needs.
type Store interface {
	GetSubscription(ctx context.Context, orgID string) (*model.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *model.Subscription) error
	UpdateSubscription(ctx context.Context, sub *model.Subscription) error
	CountLeadsCreatedSince(ctx context.Context, orgID string, since time.Time) (int, error)
}

// PlanUsage reports an organization's current consumption against its plan.
type PlanUsage struct {
	PlanName            model.PlanName `json:"plan_name"`
	MaxLeadsPerDay      int            `json:"max_leads_per_day"`
	CanExport           bool           `json:"can_export"`
	CanUseAI            bool           `json:"can_use_ai"`
	CurrentUsage        int            `json:"current_usage"`
	RemainingDailyLeads int            `json:"remaining_daily_leads"`
	CanProcessMoreToday bool           `json:"can_process_more_today"`
}

// Catalog is the plan catalog, loaded once at startup from config.
type Catalog struct {
	defaultPlan model.PlanName
	plans       map[model.PlanName]model.Plan
}

// NewCatalog builds the catalog from configuration.
func NewCatalog(cfg config.PlansConfig) *Catalog {
	defaultPlan := model.PlanName(cfg.Default)
	if defaultPlan == "" {
		defaultPlan = model.PlanFree
	}
	return &Catalog{
		defaultPlan: defaultPlan,
		plans: map[model.PlanName]model.Plan{
			model.PlanFree: {
				Name:           model.PlanFree,
				MaxLeadsPerDay: cfg.Free.MaxLeadsPerDay,
				CanExport:      cfg.Free.CanExport,
				CanUseAI:       cfg.Free.CanUseAI,
			},
			model.PlanPro: {
				Name:           model.PlanPro,
				MaxLeadsPerDay: cfg.Pro.MaxLeadsPerDay,
				CanExport:      cfg.Pro.CanExport,
				CanUseAI:       cfg.Pro.CanUseAI,
			},
			model.PlanEnterprise: {
				Name:           model.PlanEnterprise,
				MaxLeadsPerDay: cfg.Enterprise.MaxLeadsPerDay,
				CanExport:      cfg.Enterprise.CanExport,
				CanUseAI:       cfg.Enterprise.CanUseAI,
			},
		},
	}
}

// Plan returns the named plan, or false for an unknown name.
func (c *Catalog) Plan(name model.PlanName) (model.Plan, bool) {
	p, ok := c.plans[name]
	return p, ok
}

// Default returns the fallback plan used when an organization has no
// subscription or an unknown plan name.
func (c *Catalog) Default() model.Plan {
	return c.plans[c.defaultPlan]
}

// Valid reports whether the name belongs to the catalog.
func (c *Catalog) Valid(name model.PlanName) bool {
	_, ok := c.plans[name]
	return ok
}

// All returns every plan in tier order.
func (c *Catalog) All() []model.Plan {
	return []model.Plan{
		c.plans[model.PlanFree],
		c.plans[model.PlanPro],
		c.plans[model.PlanEnterprise],
	}
}

// Gate answers quota questions for organizations.
type Gate struct {
	catalog *Catalog
	store   Store
	now     func() time.Time
}

// NewGate creates a quota gate over the given catalog and store.
func NewGate(catalog *Catalog, store Store) *Gate {
	return &Gate{catalog: catalog, store: store, now: time.Now}
}

// planFor resolves the organization's plan, falling back to the default.
func (g *Gate) planFor(ctx context.Context, orgID string) (model.Plan, error) {
	sub, err := g.store.GetSubscription(ctx, orgID)
	if err != nil {
		return model.Plan{}, eris.Wrap(err, "quota: get subscription")
	}
	if sub == nil {
		return g.catalog.Default(), nil
	}
	plan, ok := g.catalog.Plan(sub.PlanName)
	if !ok {
		return g.catalog.Default(), nil
	}
	return plan, nil
}

// Usage reports the organization's plan limits and today's consumption.
// The usage window is the current UTC day.
func (g *Gate) Usage(ctx context.Context, orgID string) (*PlanUsage, error) {
	plan, err := g.planFor(ctx, orgID)
	if err != nil {
		return nil, err
	}

	startOfDay := g.now().UTC().Truncate(24 * time.Hour)
	current, err := g.store.CountLeadsCreatedSince(ctx, orgID, startOfDay)
	if err != nil {
		return nil, eris.Wrap(err, "quota: count daily usage")
	}

	remaining := plan.MaxLeadsPerDay - current
	if remaining < 0 {
		remaining = 0
	}

	return &PlanUsage{
		PlanName:            plan.Name,
		MaxLeadsPerDay:      plan.MaxLeadsPerDay,
		CanExport:           plan.CanExport,
		CanUseAI:            plan.CanUseAI,
		CurrentUsage:        current,
		RemainingDailyLeads: remaining,
		CanProcessMoreToday: remaining > 0,
	}, nil
}

// CanCreateLead reports whether the organization has daily quota left.
func (g *Gate) CanCreateLead(ctx context.Context, orgID string) (bool, error) {
	usage, err := g.Usage(ctx, orgID)
	if err != nil {
		return false, err
	}
	return usage.CanProcessMoreToday, nil
}

// CanUseAI reports whether the organization's plan includes AI features.
func (g *Gate) CanUseAI(ctx context.Context, orgID string) (bool, error) {
	plan, err := g.planFor(ctx, orgID)
	if err != nil {
		return false, err
	}
	return plan.CanUseAI, nil
}

// CanExport reports whether the organization's plan includes data export.
func (g *Gate) CanExport(ctx context.Context, orgID string) (bool, error) {
	plan, err := g.planFor(ctx, orgID)
	if err != nil {
		return false, err
	}
	return plan.CanExport, nil
}

// AssignPlan assigns a plan to the organization, creating or updating its
// subscription. Returns false for an unknown plan name.
func (g *Gate) AssignPlan(ctx context.Context, orgID string, planName model.PlanName) (bool, error) {
	if !g.catalog.Valid(planName) {
		return false, nil
	}

	existing, err := g.store.GetSubscription(ctx, orgID)
	if err != nil {
		return false, eris.Wrap(err, "quota: get subscription")
	}

	now := g.now().UTC()
	if existing != nil {
		existing.PlanName = planName
		existing.Status = model.SubscriptionActive
		if err := g.store.UpdateSubscription(ctx, existing); err != nil {
			return false, eris.Wrap(err, "quota: update subscription")
		}
		return true, nil
	}

	sub := &model.Subscription{
		OrganizationID:         orgID,
		PlanName:               planName,
		Status:                 model.SubscriptionActive,
		ProviderSubscriptionID: fmt.Sprintf("sub_%s_%s_%d", orgID, planName, now.Unix()),
		CancelAtPeriodEnd:      false,
		CurrentPeriodStart:     now,
		CurrentPeriodEnd:       now.AddDate(0, 0, 30),
	}
	if err := g.store.UpsertSubscription(ctx, sub); err != nil {
		return false, eris.Wrap(err, "quota: create subscription")
	}
	return true, nil
}

// CancelSubscription cancels the organization's subscription. Immediate
// cancellation flips the status; otherwise the subscription stays active
// until the period ends. Returns false when there is no subscription.
func (g *Gate) CancelSubscription(ctx context.Context, orgID string, immediate bool) (bool, error) {
	sub, err := g.store.GetSubscription(ctx, orgID)
	if err != nil {
		return false, eris.Wrap(err, "quota: get subscription")
	}
	if sub == nil {
		return false, nil
	}

	if immediate {
		sub.Status = model.SubscriptionCanceled
		sub.CancelAtPeriodEnd = false
	} else {
		sub.CancelAtPeriodEnd = true
	}
	if err := g.store.UpdateSubscription(ctx, sub); err != nil {
		return false, eris.Wrap(err, "quota: cancel subscription")
	}
	return true, nil
}
