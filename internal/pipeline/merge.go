package pipeline

import (
	"strings"

	"github.com/leadboost/leadboost/internal/enrich"
	"github.com/leadboost/leadboost/internal/model"
	"github.com/leadboost/leadboost/internal/scrape"
)

// mergeScraped copies scraped fields onto the lead. og_description wins
// over description when both are present.
func mergeScraped(lead *model.Lead, res *scrape.Result) {
	lead.ScrapeConfidence = res.Confidence
	lead.ScrapeSource = res.Method

	data := res.Data
	if v := stringField(data, "title"); v != "" {
		lead.CompanyName = v
	}
	if v := stringField(data, "description"); v != "" {
		lead.AboutText = v
	}
	if v := stringField(data, "og_description"); v != "" {
		lead.AboutText = v
	}
	if email := firstOf(data, "email", "emails"); email != "" {
		lead.Email = email
		lead.EmailConfidence = res.Confidence
		lead.EmailSource = res.Method
	}
	if phone := firstOf(data, "phone", "phones"); phone != "" {
		lead.Phone = phone
	}
	if links, ok := data["links"].([]string); ok {
		for _, link := range links {
			if strings.Contains(link, "linkedin.com") {
				lead.LinkedInURL = link
				break
			}
		}
	}
}

// mergeEnriched copies the accepted enrichment fields onto the lead.
func mergeEnriched(lead *model.Lead, res *enrich.Result) {
	lead.EnrichmentConfidence = res.Confidence
	lead.EnrichmentSource = res.Method

	data := res.Data
	if v := stringField(data, "industry"); v != "" {
		lead.Industry = v
	}
	if v := stringField(data, "employees"); v != "" {
		lead.Employees = model.EmployeeBand(v)
	}
	if v := stringField(data, "revenue_band"); v != "" {
		lead.RevenueBand = model.RevenueBand(v)
	}
	if year := intField(data, "founded_year"); year != 0 {
		lead.FoundedYear = &year
	}
	if v := stringField(data, "contact_name"); v != "" {
		lead.ContactName = v
	}
	if v := stringField(data, "contact_title"); v != "" {
		lead.ContactTitle = v
	}
}

// stringField reads a string-like value; enrichment data holds both plain
// strings and typed bands.
func stringField(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case model.EmployeeBand:
		return string(v)
	case model.RevenueBand:
		return string(v)
	}
	return ""
}

func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// firstOf returns the singular key's value, or the first entry of the
// plural list key.
func firstOf(data map[string]any, singular, plural string) string {
	if v, ok := data[singular].(string); ok && v != "" {
		return v
	}
	if vs, ok := data[plural].([]string); ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}
