package model

import "time"

// ScrapingLog records one scraping attempt against a lead. Rows are
// append-only: once written they are never mutated.
type ScrapingLog struct {
	ID               string    `json:"id"`
	LeadID           string    `json:"lead_id"`
	ScrapingMethod   Source    `json:"scraping_method"`
	Success          bool      `json:"success"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	ConfidenceScore  float64   `json:"confidence_score"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	ScrapedData      string    `json:"scraped_data,omitempty"` // serialized JSON payload
	CreatedAt        time.Time `json:"created_at"`
}

// EnrichmentLog records one enrichment attempt against a lead. Append-only.
type EnrichmentLog struct {
	ID               string    `json:"id"`
	LeadID           string    `json:"lead_id"`
	EnrichmentType   Source    `json:"enrichment_type"`
	EnrichmentData   string    `json:"enrichment_data,omitempty"` // serialized JSON payload
	ConfidenceScore  float64   `json:"confidence_score"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}
