// Package scorer assigns a 0-100 qualification score to leads from a
// weighted set of criteria.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/leadboost/leadboost/internal/model"
)

// Criterion is one weighted scoring rule. Name must belong to the
// evaluator registry.
type Criterion struct {
	Name        string  `yaml:"name" json:"name"`
	Weight      float64 `yaml:"weight" json:"weight"`
	Threshold   float64 `yaml:"threshold" json:"threshold"`
	MaxScore    float64 `yaml:"max_score" json:"max_score"`
	Description string  `yaml:"description" json:"description"`
}

// CriterionScore is one criterion's contribution to the total.
type CriterionScore struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Score  float64 `json:"score"`
}

// Scorecard is the scoring outcome for a lead.
type Scorecard struct {
	TotalScore float64                  `json:"total_score"`
	Label      model.QualificationLabel `json:"qualification_label"`
	Breakdown  []CriterionScore         `json:"breakdown"`
}

// preferredIndustries earn full industry_match points.
var preferredIndustries = []string{
	"Software", "SaaS", "Technology", "Fintech",
	"Healthcare", "E-commerce", "AI", "Data",
}

// preferredSizes earn full company_size points.
var preferredSizes = []model.EmployeeBand{
	model.Employees11To50, model.Employees51To200, model.Employees201To500,
}

type evaluator func(lead *model.Lead, c Criterion) float64

// evaluators is the closed registry of criterion implementations. Criteria
// naming anything else are rejected at construction.
var evaluators = map[string]evaluator{
	"industry_match": func(l *model.Lead, c Criterion) float64 {
		for _, ind := range preferredIndustries {
			if l.Industry == ind {
				return c.MaxScore
			}
		}
		return 0
	},
	"company_size": func(l *model.Lead, c Criterion) float64 {
		for _, band := range preferredSizes {
			if l.Employees == band {
				return c.MaxScore
			}
		}
		return 0
	},
	"email_quality": func(l *model.Lead, c Criterion) float64 {
		return confidencePoints(l.EmailConfidence, c)
	},
	"scrape_quality": func(l *model.Lead, c Criterion) float64 {
		return confidencePoints(l.ScrapeConfidence, c)
	},
	"enrichment_quality": func(l *model.Lead, c Criterion) float64 {
		return confidencePoints(l.EnrichmentConfidence, c)
	},
	"linkedin_presence": func(l *model.Lead, c Criterion) float64 {
		if l.LinkedInURL != "" {
			return c.MaxScore
		}
		return 0
	},
}

// confidencePoints scales the max score by the confidence once the
// threshold is met.
func confidencePoints(conf float64, c Criterion) float64 {
	if conf >= c.Threshold {
		return c.MaxScore * conf
	}
	return 0
}

// DefaultCriteria returns the standard criterion set. Weights sum to 1.0.
func DefaultCriteria() []Criterion {
	return []Criterion{
		{Name: "industry_match", Weight: 0.25, Threshold: 0.5, MaxScore: 25, Description: "Matches preferred industry"},
		{Name: "company_size", Weight: 0.20, Threshold: 0.5, MaxScore: 20, Description: "Company size within preferred range"},
		{Name: "email_quality", Weight: 0.15, Threshold: 0.6, MaxScore: 15, Description: "Email confidence score"},
		{Name: "scrape_quality", Weight: 0.15, Threshold: 0.6, MaxScore: 15, Description: "Scraping confidence score"},
		{Name: "enrichment_quality", Weight: 0.15, Threshold: 0.6, MaxScore: 15, Description: "Enrichment confidence score"},
		{Name: "linkedin_presence", Weight: 0.10, Threshold: 0.5, MaxScore: 10, Description: "Has LinkedIn profile"},
	}
}

// ValidateCriteria checks that every criterion is known and the weights
// sum to 1.0 within tolerance.
func ValidateCriteria(criteria []Criterion) error {
	var errs []string

	if len(criteria) == 0 {
		errs = append(errs, "at least one criterion is required")
	}

	sum := 0.0
	for _, c := range criteria {
		if _, ok := evaluators[c.Name]; !ok {
			errs = append(errs, fmt.Sprintf("unknown criterion: %s", c.Name))
		}
		if c.Weight < 0 {
			errs = append(errs, fmt.Sprintf("%s: weight must be >= 0", c.Name))
		}
		if c.MaxScore < 0 {
			errs = append(errs, fmt.Sprintf("%s: max_score must be >= 0", c.Name))
		}
		sum += c.Weight
	}

	if len(criteria) > 0 && math.Abs(sum-1.0) > 0.01 {
		errs = append(errs, fmt.Sprintf("weights must sum to 1.0, got %.2f", sum))
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: criteria validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Scorer scores leads against a fixed criterion set.
type Scorer struct {
	criteria []Criterion
}

// NewScorer creates a scorer. Nil criteria means the default set; invalid
// criteria are a construction error.
func NewScorer(criteria []Criterion) (*Scorer, error) {
	if criteria == nil {
		criteria = DefaultCriteria()
	}
	if err := ValidateCriteria(criteria); err != nil {
		return nil, err
	}
	return &Scorer{criteria: criteria}, nil
}

// Score evaluates every criterion and labels the lead from its total.
func (s *Scorer) Score(lead *model.Lead) Scorecard {
	total := 0.0
	breakdown := make([]CriterionScore, 0, len(s.criteria))

	for _, c := range s.criteria {
		score := evaluators[c.Name](lead, c)
		total += score
		breakdown = append(breakdown, CriterionScore{
			Name:   c.Name,
			Weight: c.Weight,
			Score:  score,
		})
	}

	if total > 100 {
		total = 100
	}

	return Scorecard{
		TotalScore: total,
		Label:      labelFor(total),
		Breakdown:  breakdown,
	}
}

func labelFor(score float64) model.QualificationLabel {
	switch {
	case score >= 80:
		return model.LabelHotLead
	case score >= 60:
		return model.LabelWarmLead
	case score >= 40:
		return model.LabelColdLead
	default:
		return model.LabelDisqualified
	}
}
