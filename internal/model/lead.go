package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Source identifies which stage or strategy produced a field value.
type Source string

const (
	SourceNone           Source = "none"
	SourceHeuristic      Source = "heuristic"
	SourceLLM            Source = "llm"
	SourceExternalAPI    Source = "external_api"
	SourceJSONLD         Source = "json_ld"
	SourceStructuredData Source = "structured_data"
	SourcePlaywright     Source = "playwright"
	SourceRequests       Source = "requests"
)

// QualificationLabel is the discrete category assigned from score bands.
type QualificationLabel string

const (
	LabelHotLead      QualificationLabel = "Hot Lead"
	LabelWarmLead     QualificationLabel = "Warm Lead"
	LabelColdLead     QualificationLabel = "Cold Lead"
	LabelDisqualified QualificationLabel = "Disqualified"
	LabelLowPriority  QualificationLabel = "Low Priority" // default before scoring
)

// EmployeeBand is the categorical company headcount range.
type EmployeeBand string

const (
	Employees1To10    EmployeeBand = "1-10"
	Employees11To50   EmployeeBand = "11-50"
	Employees51To200  EmployeeBand = "51-200"
	Employees201To500 EmployeeBand = "201-500"
	Employees500Plus  EmployeeBand = "500+"
)

// RevenueBand is the categorical estimated annual revenue range.
type RevenueBand string

const (
	Revenue0To1M     RevenueBand = "$0-1M"
	Revenue1To10M    RevenueBand = "$1M-10M"
	Revenue10To50M   RevenueBand = "$10M-50M"
	Revenue50To100M  RevenueBand = "$50M-100M"
	Revenue100MPlus  RevenueBand = "$100M+"
)

// ValidEmployeeBands enumerates the accepted employee bands in ascending order.
var ValidEmployeeBands = []EmployeeBand{
	Employees1To10, Employees11To50, Employees51To200, Employees201To500, Employees500Plus,
}

// ValidRevenueBands enumerates the accepted revenue bands in ascending order.
var ValidRevenueBands = []RevenueBand{
	Revenue0To1M, Revenue1To10M, Revenue10To50M, Revenue50To100M, Revenue100MPlus,
}

// Lead is the unit of work: one prospective company keyed by URL.
type Lead struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	OwnerID        string `json:"owner_id"`
	Website        string `json:"website"`

	CompanyName string       `json:"company_name,omitempty"`
	AboutText   string       `json:"about_text,omitempty"`
	Industry    string       `json:"industry,omitempty"`
	Employees   EmployeeBand `json:"employees,omitempty"`
	RevenueBand RevenueBand  `json:"revenue_band,omitempty"`
	FoundedYear *int         `json:"founded_year,omitempty"`

	ContactName  string `json:"contact_name,omitempty"`
	ContactTitle string `json:"contact_title,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Address      string `json:"address,omitempty"`
	LinkedInURL  string `json:"linkedin_url,omitempty"`
	TwitterURL   string `json:"twitter_url,omitempty"`
	FacebookURL  string `json:"facebook_url,omitempty"`

	ScrapeConfidence     float64 `json:"scrape_confidence"`
	EmailConfidence      float64 `json:"email_confidence"`
	EnrichmentConfidence float64 `json:"enrichment_confidence"`
	ScrapeSource         Source  `json:"scrape_source"`
	EmailSource          Source  `json:"email_source"`
	EnrichmentSource     Source  `json:"enrichment_source"`

	Score              float64            `json:"score"`
	QualificationLabel QualificationLabel `json:"qualification_label"`

	OutreachMessage string     `json:"outreach_message,omitempty"`
	OutreachSent    bool       `json:"outreach_sent"`
	OutreachSentAt  *time.Time `json:"outreach_sent_at,omitempty"`

	IsActive   bool      `json:"is_active"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewLead returns a lead with the pre-pipeline defaults applied.
func NewLead(orgID, ownerID, website string) *Lead {
	return &Lead{
		OrganizationID:     orgID,
		OwnerID:            ownerID,
		Website:            website,
		ScrapeSource:       SourceNone,
		EmailSource:        SourceNone,
		EnrichmentSource:   SourceNone,
		QualificationLabel: LabelLowPriority,
		IsActive:           true,
	}
}

// Validate checks the lead invariants before persistence.
func (l *Lead) Validate() error {
	var errs []string
	if strings.TrimSpace(l.Website) == "" {
		errs = append(errs, "website is required")
	}
	for name, c := range map[string]float64{
		"scrape_confidence":     l.ScrapeConfidence,
		"email_confidence":      l.EmailConfidence,
		"enrichment_confidence": l.EnrichmentConfidence,
	} {
		if c < 0 || c > 1 {
			errs = append(errs, name+" must be in [0,1]")
		}
	}
	if l.Score < 0 || l.Score > 100 {
		errs = append(errs, "score must be in [0,100]")
	}
	if l.FoundedYear != nil && (*l.FoundedYear < 1900 || *l.FoundedYear > 2030) {
		errs = append(errs, "founded_year must be in [1900,2030]")
	}
	if l.Employees != "" && !validEmployeeBand(l.Employees) {
		errs = append(errs, "employees: unknown band "+string(l.Employees))
	}
	if l.RevenueBand != "" && !validRevenueBand(l.RevenueBand) {
		errs = append(errs, "revenue_band: unknown band "+string(l.RevenueBand))
	}
	if len(errs) > 0 {
		return eris.Errorf("model: invalid lead: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validEmployeeBand(b EmployeeBand) bool {
	for _, v := range ValidEmployeeBands {
		if v == b {
			return true
		}
	}
	return false
}

func validRevenueBand(b RevenueBand) bool {
	for _, v := range ValidRevenueBands {
		if v == b {
			return true
		}
	}
	return false
}
