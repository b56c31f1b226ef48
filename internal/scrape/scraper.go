// Package scrape fetches company websites through a tiered strategy chain:
// JSON-LD, meta tags, a headless browser, and a plain-request fallback.
package scrape

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/leadboost/leadboost/internal/config"
	"github.com/leadboost/leadboost/internal/model"
)

// Confidence gates for the document tiers. A tier's result is accepted only
// when its confidence exceeds the gate; otherwise the next tier runs.
const (
	jsonLDGate = 0.7
	metaGate   = 0.5
)

// Result is the outcome of scraping one URL.
type Result struct {
	Success          bool           `json:"success"`
	Data             map[string]any `json:"data,omitempty"`
	Method           model.Source   `json:"method"`
	Confidence       float64        `json:"confidence"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
	Error            string         `json:"error,omitempty"`
}

// Scraper scrapes a single URL. A failed scrape is reported through
// Result.Success and Result.Error, never a panic.
type Scraper interface {
	Scrape(ctx context.Context, targetURL string) *Result
}

// TieredScraper walks the strategy tiers in order and stops at the first
// tier whose confidence gate is met. Construct one per worker; the browser
// tier launches a fresh browser per call.
type TieredScraper struct {
	cfg     config.ScrapeConfig
	fetcher *fetcher
}

// NewTieredScraper creates a scraper from configuration.
func NewTieredScraper(cfg config.ScrapeConfig) *TieredScraper {
	return &TieredScraper{
		cfg:     cfg,
		fetcher: newFetcher(cfg),
	}
}

// Scrape runs the tiers against a URL. The document fetched for the JSON-LD
// tier is reused by the meta tier, so the first two tiers cost one GET. The
// plain-request fallback runs only when the headless tier errors or is
// disabled.
func (s *TieredScraper) Scrape(ctx context.Context, targetURL string) *Result {
	start := time.Now()

	doc, err := s.fetcher.Document(ctx, targetURL)
	if err != nil {
		zap.L().Debug("scrape: document fetch failed, trying headless",
			zap.String("url", targetURL),
			zap.Error(err),
		)
	} else {
		if data, conf := extractJSONLD(doc); conf > jsonLDGate {
			return s.finish(data, model.SourceJSONLD, conf, start)
		}
		if data, conf := extractMeta(doc, targetURL); conf > metaGate {
			return s.finish(data, model.SourceStructuredData, conf, start)
		}
	}

	if s.cfg.HeadlessEnabled {
		data, conf, err := s.scrapeHeadless(ctx, targetURL)
		if err == nil {
			return s.finish(data, model.SourcePlaywright, conf, start)
		}
		zap.L().Debug("scrape: headless tier failed, trying plain request",
			zap.String("url", targetURL),
			zap.Error(err),
		)
	}

	if doc == nil {
		doc, err = s.fetcher.Document(ctx, targetURL)
		if err != nil {
			return s.fail(err, start)
		}
	}
	data, conf := extractFallback(doc, targetURL)
	return s.finish(data, model.SourceRequests, conf, start)
}

func (s *TieredScraper) finish(data map[string]any, method model.Source, conf float64, start time.Time) *Result {
	if conf > 1 {
		conf = 1
	}
	return &Result{
		Success:          true,
		Data:             data,
		Method:           method,
		Confidence:       conf,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}
}

func (s *TieredScraper) fail(err error, start time.Time) *Result {
	return &Result{
		Success:          false,
		Method:           model.SourceNone,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		Error:            err.Error(),
	}
}
