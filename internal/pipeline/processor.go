// Package pipeline runs a claimed job through the lead stages: load,
// scrape, enrich, score, message, persist. Stage failures after load are
// soft: they are logged and the remaining stages still run.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/leadboost/leadboost/internal/config"
	"github.com/leadboost/leadboost/internal/enrich"
	"github.com/leadboost/leadboost/internal/messenger"
	"github.com/leadboost/leadboost/internal/model"
	"github.com/leadboost/leadboost/internal/resilience"
	"github.com/leadboost/leadboost/internal/scorer"
	"github.com/leadboost/leadboost/internal/scrape"
)

// Message written to the lead when its plan has no AI access.
const noAIMessage = "No outreach message generated - AI features not available on your plan"

// Outcome statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Outcome summarizes one processed job.
type Outcome struct {
	Status            string `json:"status"`
	LeadID            string `json:"lead_id"`
	ScrapingSuccess   bool   `json:"scraping_success"`
	EnrichmentSuccess bool   `json:"enrichment_success"`
}

// Store is the persistence surface the processor needs.
type Store interface {
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	UpdateLead(ctx context.Context, lead *model.Lead) error
	AppendScrapingLog(ctx context.Context, l *model.ScrapingLog) error
	AppendEnrichmentLog(ctx context.Context, l *model.EnrichmentLog) error
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, jobErr string, retryAfter time.Duration) error
	FailJobTerminal(ctx context.Context, id string, jobErr string) error
}

// Gate answers whether the organization's plan includes AI features.
type Gate interface {
	CanUseAI(ctx context.Context, orgID string) (bool, error)
}

// Enricher runs the enrichment waterfall for one lead.
type Enricher interface {
	Enrich(ctx context.Context, lead *model.Lead, scraped map[string]any) *enrich.Result
}

// MessageGenerator produces an outreach message in the requested style.
type MessageGenerator interface {
	GenerateWithStyle(ctx context.Context, lead *model.Lead, style messenger.Style) (string, string)
}

// CRMPusher receives qualified leads after processing. Push errors are
// logged and never affect the job.
type CRMPusher interface {
	PushLead(ctx context.Context, lead *model.Lead) error
}

// Processor executes the full stage sequence for claimed jobs. A nil crm
// disables the CRM push.
type Processor struct {
	store     Store
	scraper   scrape.Scraper
	enricher  Enricher
	messenger MessageGenerator
	scorer    *scorer.Scorer
	gate      Gate
	crm       CRMPusher

	jobTimeout   time.Duration
	retryBackoff time.Duration
}

// NewProcessor creates a processor with all stage dependencies.
func NewProcessor(
	st Store,
	sc scrape.Scraper,
	en Enricher,
	mg MessageGenerator,
	sr *scorer.Scorer,
	gate Gate,
	crm CRMPusher,
	cfg config.WorkerConfig,
) *Processor {
	jobTimeout := time.Duration(cfg.JobTimeoutSecs) * time.Second
	if jobTimeout <= 0 {
		jobTimeout = 120 * time.Second
	}
	retryBackoff := time.Duration(cfg.RetryBackoffSecs) * time.Second
	if retryBackoff <= 0 {
		retryBackoff = 60 * time.Second
	}
	return &Processor{
		store:        st,
		scraper:      sc,
		enricher:     en,
		messenger:    mg,
		scorer:       sr,
		gate:         gate,
		crm:          crm,
		jobTimeout:   jobTimeout,
		retryBackoff: retryBackoff,
	}
}

// Process runs the job to completion and settles its queue state: complete
// on success, terminal fail on permanent errors, reschedule otherwise.
func (p *Processor) Process(ctx context.Context, job *model.Job) Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	log := zap.L().With(
		zap.String("job_id", job.ID),
		zap.String("lead_id", job.LeadID),
		zap.Int("attempt", job.Attempts),
	)
	log.Info("pipeline: starting job")

	outcome := Outcome{Status: StatusFailed, LeadID: job.LeadID}

	// Queue bookkeeping must still work after the job deadline fires.
	settleCtx := context.WithoutCancel(ctx)

	if err := p.run(ctx, job, &outcome, log); err != nil {
		if resilience.IsPermanent(err) {
			log.Error("pipeline: job failed permanently", zap.Error(err))
			if failErr := p.store.FailJobTerminal(settleCtx, job.ID, err.Error()); failErr != nil {
				log.Warn("pipeline: terminal fail update failed", zap.Error(failErr))
			}
		} else {
			log.Error("pipeline: job failed, rescheduling", zap.Error(err))
			if failErr := p.store.FailJob(settleCtx, job.ID, err.Error(), p.retryBackoff); failErr != nil {
				log.Warn("pipeline: fail update failed", zap.Error(failErr))
			}
		}
		return outcome
	}

	if err := p.store.CompleteJob(settleCtx, job.ID); err != nil {
		log.Warn("pipeline: complete update failed", zap.Error(err))
	}
	outcome.Status = StatusSuccess
	log.Info("pipeline: job complete",
		zap.Bool("scraping_success", outcome.ScrapingSuccess),
		zap.Bool("enrichment_success", outcome.EnrichmentSuccess),
	)
	return outcome
}

func (p *Processor) run(ctx context.Context, job *model.Job, outcome *Outcome, log *zap.Logger) error {
	// Stage tracking helper: times the stage and logs its result. The
	// caller decides whether a stage error is fatal for the job.
	trackStage := func(name string, fn func() error) error {
		start := time.Now()
		stageErr := fn()
		duration := time.Since(start).Milliseconds()

		if stageErr != nil {
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
				zap.Error(stageErr),
			)
		} else {
			log.Info("pipeline: stage complete",
				zap.String("stage", name),
				zap.Int64("duration_ms", duration),
			)
		}
		return stageErr
	}

	// Stage 1: load. A missing lead row can never succeed on retry.
	var lead *model.Lead
	if err := trackStage("load", func() error {
		l, err := p.store.GetLead(ctx, job.LeadID)
		if err != nil {
			return eris.Wrap(err, "pipeline: load lead")
		}
		if l == nil {
			return resilience.NewPermanentError(eris.Errorf("pipeline: lead not found: %s", job.LeadID))
		}
		lead = l
		return nil
	}); err != nil {
		return err
	}

	// Stage 2: scrape. Failure is recorded and the pipeline continues with
	// whatever data the lead already holds.
	var scrapeResult *scrape.Result
	_ = trackStage("scrape", func() error {
		scrapeResult = p.scraper.Scrape(ctx, lead.Website)

		row := &model.ScrapingLog{
			LeadID:           lead.ID,
			ScrapingMethod:   scrapeResult.Method,
			Success:          scrapeResult.Success,
			ErrorMessage:     scrapeResult.Error,
			ConfidenceScore:  scrapeResult.Confidence,
			ProcessingTimeMS: scrapeResult.ProcessingTimeMS,
			ScrapedData:      marshalData(scrapeResult.Data),
		}
		if err := p.store.AppendScrapingLog(ctx, row); err != nil {
			log.Warn("pipeline: append scraping log failed", zap.Error(err))
		}
		zap.L().Info("scraping_attempt",
			zap.String("url", lead.Website),
			zap.String("method", string(scrapeResult.Method)),
			zap.Bool("success", scrapeResult.Success),
			zap.Float64("confidence", scrapeResult.Confidence),
			zap.Int64("processing_time_ms", scrapeResult.ProcessingTimeMS),
			zap.String("error_message", scrapeResult.Error),
		)

		if !scrapeResult.Success {
			return eris.Errorf("pipeline: scrape failed: %s", scrapeResult.Error)
		}
		mergeScraped(lead, scrapeResult)
		return nil
	})
	outcome.ScrapingSuccess = scrapeResult.Success

	canUseAI, err := p.gate.CanUseAI(ctx, job.OrganizationID)
	if err != nil {
		return eris.Wrap(err, "pipeline: check plan features")
	}

	// Stage 3: enrich, AI plans only.
	if canUseAI {
		_ = trackStage("enrich", func() error {
			scraped := map[string]any{}
			if scrapeResult.Success {
				scraped = scrapeResult.Data
			}
			result := p.enricher.Enrich(ctx, lead, scraped)
			if result == nil {
				return eris.New("pipeline: no enrichment strategy produced data")
			}

			row := &model.EnrichmentLog{
				LeadID:           lead.ID,
				EnrichmentType:   result.Method,
				EnrichmentData:   marshalData(result.Data),
				ConfidenceScore:  result.Confidence,
				ProcessingTimeMS: result.ProcessingTimeMS,
			}
			if err := p.store.AppendEnrichmentLog(ctx, row); err != nil {
				log.Warn("pipeline: append enrichment log failed", zap.Error(err))
			}
			zap.L().Info("enrichment_attempt",
				zap.String("lead_id", lead.ID),
				zap.String("method", string(result.Method)),
				zap.Bool("success", true),
				zap.Float64("confidence", result.Confidence),
				zap.Int64("processing_time_ms", result.ProcessingTimeMS),
			)

			mergeEnriched(lead, result)
			outcome.EnrichmentSuccess = true
			return nil
		})
	} else {
		log.Info("pipeline: AI features not available, skipping enrichment",
			zap.String("organization_id", job.OrganizationID))
	}

	// Stage 4: score.
	_ = trackStage("score", func() error {
		card := p.scorer.Score(lead)
		lead.Score = card.TotalScore
		lead.QualificationLabel = card.Label
		return nil
	})

	// Stage 5: outreach message.
	_ = trackStage("message", func() error {
		if !canUseAI {
			lead.OutreachMessage = noAIMessage
			log.Info("pipeline: AI features not available, using basic message",
				zap.String("organization_id", job.OrganizationID))
			return nil
		}
		start := time.Now()
		msg, method := p.messenger.GenerateWithStyle(ctx, lead, messenger.Style(job.MessageStyle))
		lead.OutreachMessage = msg
		zap.L().Info("message_generation",
			zap.String("lead_id", lead.ID),
			zap.String("method", method),
			zap.Int64("processing_time_ms", time.Since(start).Milliseconds()),
		)
		return nil
	})

	// Stage 6: persist. A write failure here loses the whole run, so it
	// fails the job and retries.
	if err := trackStage("persist", func() error {
		return eris.Wrap(p.store.UpdateLead(ctx, lead), "pipeline: update lead")
	}); err != nil {
		return err
	}

	// CRM push for qualified leads. Never retried, never fails the job.
	if p.crm != nil && (lead.QualificationLabel == model.LabelHotLead || lead.QualificationLabel == model.LabelWarmLead) {
		_ = trackStage("crm_push", func() error {
			return p.crm.PushLead(ctx, lead)
		})
	}

	return nil
}

func marshalData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(b)
}
