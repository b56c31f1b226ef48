package enrich

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leadboost/leadboost/internal/model"
)

// industryKeywords maps an industry to the keywords that suggest it. The
// industry with the most keyword hits wins; declaration order breaks ties.
var industryKeywords = []struct {
	name     string
	keywords []string
}{
	{"Software", []string{"software", "saas", "platform", "cloud", "api", "app", "application", "tech", "technology"}},
	{"Consulting", []string{"consulting", "advisory", "services", "strategy", "business", "management"}},
	{"E-commerce", []string{"ecommerce", "retail", "shop", "store", "marketplace", "buy", "sell"}},
	{"Finance", []string{"finance", "banking", "investment", "fintech", "payment", "financial", "money"}},
	{"Healthcare", []string{"health", "medical", "clinic", "hospital", "care", "pharma", "healthcare"}},
	{"Marketing", []string{"marketing", "advertising", "media", "social", "campaign", "brand"}},
	{"Education", []string{"education", "learning", "school", "university", "course", "training", "edu"}},
	{"Real Estate", []string{"real estate", "property", "realestate", "estate", "housing", "rent", "buy"}},
	{"Travel", []string{"travel", "tourism", "hotel", "booking", "vacation", "flight", "airline"}},
	{"Food & Beverage", []string{"restaurant", "food", "beverage", "cafe", "catering", "delivery"}},
}

// employeeKeywords maps a size band to vocabulary that implies it, checked
// in ascending band order.
var employeeKeywords = []struct {
	band     model.EmployeeBand
	keywords []string
}{
	{model.Employees1To10, []string{"startup", "early stage", "small team", "small business"}},
	{model.Employees11To50, []string{"growing", "medium sized", "expanding", "scale up"}},
	{model.Employees51To200, []string{"established", "mid sized", "corporate", "professional"}},
	{model.Employees201To500, []string{"large", "enterprise", "major", "substantial"}},
	{model.Employees500Plus, []string{"huge", "massive", "very large", "major corporation"}},
}

// revenueByEmployees maps a headcount band to the revenue band it implies.
var revenueByEmployees = map[model.EmployeeBand]model.RevenueBand{
	model.Employees1To10:    model.Revenue0To1M,
	model.Employees11To50:   model.Revenue1To10M,
	model.Employees51To200:  model.Revenue10To50M,
	model.Employees201To500: model.Revenue50To100M,
	model.Employees500Plus:  model.Revenue100MPlus,
}

var employeeCountRes = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s+employees?`),
	regexp.MustCompile(`team\s+of\s+(\d+)`),
	regexp.MustCompile(`(\d+)[-\s]person`),
	regexp.MustCompile(`(\d+)\s+staff`),
}

var contactNameRes = []*regexp.Regexp{
	regexp.MustCompile(`(?:CEO|Founder|President|CTO|CFO|COO|Director|Manager|Lead)\s+([A-Z][a-z]+\s[A-Z][a-z]+)`),
	regexp.MustCompile(`([A-Z][a-z]+\s[A-Z][a-z]+)\s+(?:CEO|Founder|President|CTO|CFO|COO|Director|Manager|Lead)`),
}

var contactTitleRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(Chief\s+\w+\s+Officer)`),
	regexp.MustCompile(`(?i)\b(CEO|Founder|President|CTO|CFO|COO|Director|Manager|Lead|VP|Owner)\b`),
}

var foundedYearRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:founded|established|started|launched|incorporated)\s+in\s+(19\d{2}|20\d{2}|'\d{2})`),
	regexp.MustCompile(`(?i)(?:founded|established|started|launched|incorporated)\s+(19\d{2}|20\d{2}|'\d{2})`),
	regexp.MustCompile(`(?i)(19\d{2}|20\d{2})\s+(?:founded|established|started|launched|incorporated)`),
	regexp.MustCompile(`(?i)(?:since|from)\s+(19\d{2}|20\d{2})`),
}

var titleCaser = cases.Title(language.English)

// heuristicEnrich extracts fields with keyword tables and regexes. Each
// extracted field adds to the confidence, capped at 0.9 since heuristics
// are never certain.
func heuristicEnrich(lead *model.Lead, scraped map[string]any) (map[string]any, float64) {
	text := analysisText(lead, scraped)
	if text == "" {
		return nil, 0
	}
	textLower := strings.ToLower(text)

	data := map[string]any{}
	conf := 0.0

	if industry := inferIndustry(textLower); industry != "" {
		data["industry"] = industry
		conf += 0.3
	}

	if band := estimateEmployees(textLower); band != "" {
		data["employees"] = band
		conf += 0.2
		if revenue, ok := revenueByEmployees[band]; ok {
			data["revenue_band"] = revenue
			conf += 0.1
		}
	}

	if name := extractContactName(text); name != "" {
		data["contact_name"] = name
		conf += 0.15
	}

	if title := extractContactTitle(text); title != "" {
		data["contact_title"] = title
		conf += 0.1
	}

	if year := extractFoundedYear(text); year != 0 {
		data["founded_year"] = year
		conf += 0.15
	}

	if len(data) == 0 {
		return nil, 0
	}
	if conf > 0.9 {
		conf = 0.9
	}
	return data, conf
}

func inferIndustry(textLower string) string {
	best := ""
	bestScore := 0
	for _, entry := range industryKeywords {
		score := 0
		for _, kw := range entry.keywords {
			if strings.Contains(textLower, kw) {
				score++
			}
		}
		if score > bestScore {
			best = entry.name
			bestScore = score
		}
	}
	return best
}

func estimateEmployees(textLower string) model.EmployeeBand {
	for _, entry := range employeeKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(textLower, kw) {
				return entry.band
			}
		}
	}

	for _, re := range employeeCountRes {
		m := re.FindStringSubmatch(textLower)
		if m == nil {
			continue
		}
		count, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return bandForCount(count)
	}
	return ""
}

func bandForCount(count int) model.EmployeeBand {
	switch {
	case count <= 10:
		return model.Employees1To10
	case count <= 50:
		return model.Employees11To50
	case count <= 200:
		return model.Employees51To200
	case count <= 500:
		return model.Employees201To500
	default:
		return model.Employees500Plus
	}
}

func extractContactName(text string) string {
	for _, re := range contactNameRes {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

func extractContactTitle(text string) string {
	for _, re := range contactTitleRes {
		if m := re.FindStringSubmatch(text); m != nil {
			return titleCaser.String(strings.ToLower(m[1]))
		}
	}
	return ""
}

// extractFoundedYear finds a plausible founding year. Abbreviated years
// ('05) resolve to 20NN below 50 and 19NN otherwise. Years outside
// [1900,2030] are discarded.
func extractFoundedYear(text string) int {
	for _, re := range foundedYearRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := m[1]
		if strings.HasPrefix(raw, "'") {
			nn, err := strconv.Atoi(raw[1:])
			if err != nil {
				continue
			}
			if nn < 50 {
				raw = strconv.Itoa(2000 + nn)
			} else {
				raw = strconv.Itoa(1900 + nn)
			}
		}
		year, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		if year >= 1900 && year <= 2030 {
			return year
		}
	}
	return 0
}

func stringify(v any) string {
	return fmt.Sprintf("%v", v)
}
