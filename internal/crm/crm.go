// Package crm pushes qualified leads into Salesforce after processing.
// Pushes are best-effort: transient API errors get a short in-process
// retry, then failures are reported to the caller for logging and never
// fail the job.
package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leadboost/leadboost/internal/model"
	"github.com/leadboost/leadboost/internal/resilience"
	"github.com/leadboost/leadboost/pkg/salesforce"
)

const leadSource = "LeadBoost"

// Pusher upserts processed leads as Salesforce Lead records, keyed by
// website.
type Pusher struct {
	client salesforce.Client
	retry  resilience.RetryConfig
}

// NewPusher creates a pusher over the given Salesforce client.
func NewPusher(client salesforce.Client) *Pusher {
	return &Pusher{client: client, retry: resilience.DefaultRetryConfig()}
}

// retryCfg returns the pusher's retry config with logging for the given
// Salesforce operation.
func (p *Pusher) retryCfg(operation string) resilience.RetryConfig {
	cfg := p.retry
	cfg.OnRetry = resilience.RetryLogger("salesforce", operation)
	return cfg
}

// PushLead creates or updates the Salesforce Lead matching the lead's
// website.
func (p *Pusher) PushLead(ctx context.Context, lead *model.Lead) error {
	fields := leadFields(lead)

	existing, err := resilience.DoVal(ctx, p.retryCfg("find_lead"),
		func(ctx context.Context) (*salesforce.Lead, error) {
			return salesforce.FindLeadByWebsite(ctx, p.client, lead.Website)
		})
	if err != nil {
		return eris.Wrap(err, "crm: find existing lead")
	}

	if existing != nil {
		err := resilience.Do(ctx, p.retryCfg("update_lead"), func(ctx context.Context) error {
			return salesforce.UpdateLead(ctx, p.client, existing.ID, fields)
		})
		if err != nil {
			return eris.Wrap(err, "crm: update lead")
		}
		zap.L().Info("crm: lead updated",
			zap.String("lead_id", lead.ID),
			zap.String("sf_id", existing.ID),
		)
		return nil
	}

	sfID, err := resilience.DoVal(ctx, p.retryCfg("create_lead"),
		func(ctx context.Context) (string, error) {
			return salesforce.CreateLead(ctx, p.client, fields)
		})
	if err != nil {
		return eris.Wrap(err, "crm: create lead")
	}
	zap.L().Info("crm: lead created",
		zap.String("lead_id", lead.ID),
		zap.String("sf_id", sfID),
	)
	return nil
}

// leadFields maps a processed lead onto Salesforce Lead fields. Company
// and LastName are required by the Lead object, so both get fallbacks.
func leadFields(lead *model.Lead) map[string]any {
	company := lead.CompanyName
	if company == "" {
		company = lead.Website
	}

	fields := map[string]any{
		"Company":     company,
		"LastName":    contactLastName(lead.ContactName),
		"Website":     lead.Website,
		"LeadSource":  leadSource,
		"Rating":      rating(lead.QualificationLabel),
		"Description": fmt.Sprintf("Lead score: %.1f (%s)", lead.Score, lead.QualificationLabel),
	}
	if lead.Email != "" {
		fields["Email"] = lead.Email
	}
	if lead.Phone != "" {
		fields["Phone"] = lead.Phone
	}
	if lead.Industry != "" {
		fields["Industry"] = lead.Industry
	}
	if lead.ContactTitle != "" {
		fields["Title"] = lead.ContactTitle
	}
	return fields
}

func contactLastName(contactName string) string {
	parts := strings.Fields(contactName)
	if len(parts) == 0 {
		return "Unknown"
	}
	return parts[len(parts)-1]
}

func rating(label model.QualificationLabel) string {
	switch label {
	case model.LabelHotLead:
		return "Hot"
	case model.LabelWarmLead:
		return "Warm"
	default:
		return "Cold"
	}
}
