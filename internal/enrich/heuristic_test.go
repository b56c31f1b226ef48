package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leadboost/leadboost/internal/model"
)

func TestInferIndustry_HighestCountWins(t *testing.T) {
	// One finance keyword, three software keywords.
	text := "a fintech saas platform in the cloud"
	assert.Equal(t, "Software", inferIndustry(text))

	assert.Equal(t, "", inferIndustry("nothing relevant here"))
}

func TestEstimateEmployees_KeywordBeforeRegex(t *testing.T) {
	assert.Equal(t, model.Employees1To10, estimateEmployees("an early stage startup with 300 employees"))
	assert.Equal(t, model.Employees11To50, estimateEmployees("we have 42 employees worldwide"))
	assert.Equal(t, model.Employees51To200, estimateEmployees("a team of 120 engineers"))
	assert.Equal(t, model.Employees201To500, estimateEmployees("a 350-person engineering org"))
	assert.Equal(t, model.EmployeeBand(""), estimateEmployees("no size information"))
}

func TestHeuristicEnrich_HyphenatedHeadcountSentence(t *testing.T) {
	lead := model.NewLead("org-1", "user-1", "https://acme.example")

	data, conf := heuristicEnrich(lead, map[string]any{
		"text_content": "We are a 120-person SaaS platform founded in 2014.",
	})

	assert.Equal(t, "Software", data["industry"])
	assert.Equal(t, model.Employees51To200, data["employees"])
	assert.Equal(t, model.Revenue10To50M, data["revenue_band"])
	assert.Equal(t, 2014, data["founded_year"])
	// industry 0.3 + employees 0.2 + revenue 0.1 + founded 0.15
	assert.InDelta(t, 0.75, conf, 1e-9)
}

func TestBandForCount_Boundaries(t *testing.T) {
	assert.Equal(t, model.Employees1To10, bandForCount(10))
	assert.Equal(t, model.Employees11To50, bandForCount(50))
	assert.Equal(t, model.Employees51To200, bandForCount(200))
	assert.Equal(t, model.Employees201To500, bandForCount(500))
	assert.Equal(t, model.Employees500Plus, bandForCount(501))
}

func TestExtractContactName_BothForms(t *testing.T) {
	assert.Equal(t, "John Smith", extractContactName("Our CEO John Smith leads the company"))
	assert.Equal(t, "Jane Doe", extractContactName("Jane Doe Founder of the studio"))
	assert.Equal(t, "", extractContactName("nobody is named here"))
}

func TestExtractContactTitle_TitleCased(t *testing.T) {
	assert.Equal(t, "Chief Technology Officer", extractContactTitle("reach our chief technology officer"))
	assert.Equal(t, "Ceo", extractContactTitle("the ceo will respond"))
	assert.Equal(t, "", extractContactTitle("no titles here"))
}

func TestExtractFoundedYear(t *testing.T) {
	assert.Equal(t, 2014, extractFoundedYear("Founded in 2014 in Berlin"))
	assert.Equal(t, 1998, extractFoundedYear("established 1998"))
	assert.Equal(t, 2009, extractFoundedYear("serving customers since 2009"))
	assert.Equal(t, 0, extractFoundedYear("founded in 1850"))
	assert.Equal(t, 0, extractFoundedYear("no year mentioned"))
}

func TestExtractFoundedYear_AbbreviatedBoundary(t *testing.T) {
	assert.Equal(t, 2005, extractFoundedYear("launched '05 in a garage"))
	assert.Equal(t, 2029, extractFoundedYear("launched '29"))
	assert.Equal(t, 1950, extractFoundedYear("launched '50"))
	assert.Equal(t, 1999, extractFoundedYear("launched '99"))
	// '49 maps to 2049, which is outside the accepted range.
	assert.Equal(t, 0, extractFoundedYear("launched '49"))
}

func TestAnalysisText_FirstNonEmptyScrapedField(t *testing.T) {
	lead := model.NewLead("org-1", "user-1", "https://acme.example")
	lead.CompanyName = "Acme"
	lead.AboutText = "We make rockets."

	text := analysisText(lead, map[string]any{
		"text_content": "",
		"description":  "Orbital logistics.",
		"title":        "Acme Home",
	})

	assert.Contains(t, text, "Company: Acme")
	assert.Contains(t, text, "We make rockets.")
	assert.Contains(t, text, "Orbital logistics.")
	assert.NotContains(t, text, "Acme Home")
}
