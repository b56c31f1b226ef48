package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/leadboost/leadboost/internal/model"
	"github.com/leadboost/leadboost/pkg/llm"
)

const maxLLMInputChars = 2000

const enrichSystemPrompt = "You are a business intelligence assistant. " +
	"Extract structured company information from the provided text. " +
	"Respond ONLY with valid JSON."

const enrichPromptTemplate = `Company Name: %s
Website: %s
Text Content: %s

Extract the following information in JSON format:
{
  "industry": "string or null",
  "employees": "1-10 | 11-50 | 51-200 | 201-500 | 500+ | null",
  "revenue_band": "$0-1M | $1M-10M | $10M-50M | $50M-100M | $100M+ | null",
  "founded_year": "integer or null",
  "contact_name": "string or null",
  "contact_title": "string or null"
}

Be conservative and only include information you can confidently extract from the text.
If you cannot extract specific information, return null for that field.`

// enrichmentFields are the only keys the LLM is allowed to return.
var enrichmentFields = map[string]bool{
	"industry":      true,
	"employees":     true,
	"revenue_band":  true,
	"founded_year":  true,
	"contact_name":  true,
	"contact_title": true,
}

var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// llmEnrich asks the model for the six enrichment fields. The response
// must be a JSON object carrying only known keys; anything else fails the
// strategy. Confidence grows with the number of populated fields, capped
// at 0.8.
func (e *Enricher) llmEnrich(ctx context.Context, lead *model.Lead, scraped map[string]any) (map[string]any, float64, error) {
	text := analysisText(lead, scraped)
	if len(text) > maxLLMInputChars {
		text = text[:maxLLMInputChars]
	}

	name := lead.CompanyName
	if name == "" {
		name = "Unknown"
	}

	temp := 0.0
	resp, err := e.llm.CreateMessage(ctx, llm.MessageRequest{
		Model:       e.model,
		MaxTokens:   500,
		Temperature: &temp,
		System:      enrichSystemPrompt,
		Messages: []llm.Message{{
			Role:    "user",
			Content: fmt.Sprintf(enrichPromptTemplate, name, lead.Website, text),
		}},
	})
	if err != nil {
		return nil, 0, eris.Wrap(err, "enrich: llm request")
	}
	resp.Usage.LogCost(e.model, "enrichment")

	data, err := parseEnrichmentJSON(resp.Text())
	if err != nil {
		return nil, 0, err
	}
	if len(data) == 0 {
		return nil, 0, nil
	}

	conf := 0.5 + float64(len(data))*0.1
	if conf > 0.8 {
		conf = 0.8
	}
	return data, conf, nil
}

// parseEnrichmentJSON extracts the first JSON object from the model output
// and validates it against the enrichment field contract. Null and empty
// values are dropped; unknown keys reject the whole response.
func parseEnrichmentJSON(out string) (map[string]any, error) {
	block := jsonBlockRe.FindString(out)
	if block == "" {
		return nil, eris.New("enrich: no JSON object in llm response")
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		return nil, eris.Wrap(err, "enrich: parse llm response")
	}

	data := map[string]any{}
	for k, v := range parsed {
		if !enrichmentFields[k] {
			return nil, eris.Errorf("enrich: unexpected field in llm response: %s", k)
		}
		switch t := v.(type) {
		case nil:
			continue
		case string:
			if t == "" || t == "null" {
				continue
			}
			data[k] = t
		case float64:
			if k == "founded_year" {
				data[k] = int(t)
			} else {
				data[k] = t
			}
		default:
			data[k] = v
		}
	}
	return data, nil
}
