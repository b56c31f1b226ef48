// Package enrich fills in missing company fields through a waterfall of
// strategies: deterministic heuristics, an external data provider, and an
// LLM as the last resort.
package enrich

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leadboost/leadboost/internal/model"
	"github.com/leadboost/leadboost/pkg/llm"
)

// Acceptance gates. A strategy's result is kept only when its confidence
// exceeds the gate; the LLM strategy is accepted whenever it returns data.
const (
	heuristicGate = 0.7
	providerGate  = 0.6
)

// Result is an accepted enrichment.
type Result struct {
	Data             map[string]any `json:"data"`
	Method           model.Source   `json:"method"`
	Confidence       float64        `json:"confidence"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
}

// Provider looks up company data from an external source, keyed by domain.
// Implementations return the standard enrichment fields (industry,
// employees, revenue_band, founded_year, contact_name, contact_title) and
// their own confidence.
type Provider interface {
	Lookup(ctx context.Context, domain string) (map[string]any, float64, error)
}

// Enricher runs the waterfall. Both the provider and the LLM client are
// optional; a nil value skips that strategy.
type Enricher struct {
	provider Provider
	llm      llm.Client
	model    string
}

// NewEnricher creates an enricher. Pass nil for strategies that are not
// configured.
func NewEnricher(provider Provider, client llm.Client, llmModel string) *Enricher {
	return &Enricher{provider: provider, llm: client, model: llmModel}
}

// Enrich tries each strategy in order and returns the first accepted
// result. A nil return means no strategy produced usable data.
func (e *Enricher) Enrich(ctx context.Context, lead *model.Lead, scraped map[string]any) *Result {
	start := time.Now()

	if data, conf := heuristicEnrich(lead, scraped); len(data) > 0 && conf > heuristicGate {
		return accepted(data, model.SourceHeuristic, conf, start)
	}

	if e.provider != nil {
		domain := domainOf(lead.Website)
		data, conf, err := e.provider.Lookup(ctx, domain)
		if err != nil {
			zap.L().Debug("enrich: provider lookup failed, trying next",
				zap.String("domain", domain),
				zap.Error(err),
			)
		} else if len(data) > 0 && conf > providerGate {
			return accepted(data, model.SourceExternalAPI, conf, start)
		}
	}

	if e.llm != nil {
		data, conf, err := e.llmEnrich(ctx, lead, scraped)
		if err != nil {
			zap.L().Debug("enrich: llm enrichment failed",
				zap.String("website", lead.Website),
				zap.Error(err),
			)
		} else if len(data) > 0 {
			return accepted(data, model.SourceLLM, conf, start)
		}
	}

	return nil
}

func accepted(data map[string]any, method model.Source, conf float64, start time.Time) *Result {
	return &Result{
		Data:             data,
		Method:           method,
		Confidence:       conf,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}
}

// domainOf extracts the bare domain from a website URL.
func domainOf(website string) string {
	u, err := url.Parse(website)
	if err != nil || u.Hostname() == "" {
		return strings.TrimPrefix(website, "www.")
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// analysisText aggregates everything worth reading about the lead: the
// company name, stored about text, the first non-empty scraped text field,
// and any structured data blocks.
func analysisText(lead *model.Lead, scraped map[string]any) string {
	var parts []string
	if lead.CompanyName != "" {
		parts = append(parts, "Company: "+lead.CompanyName)
	}
	if lead.AboutText != "" {
		parts = append(parts, lead.AboutText)
	}
	for _, key := range []string{"text_content", "description", "og_description", "title"} {
		if s, ok := scraped[key].(string); ok && s != "" {
			parts = append(parts, s)
			break
		}
	}
	if v, ok := scraped["jsonld"]; ok {
		parts = append(parts, stringify(v))
	}
	return strings.Join(parts, " ")
}
