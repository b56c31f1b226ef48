package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadboost/leadboost/internal/crm"
	"github.com/leadboost/leadboost/internal/enrich"
	"github.com/leadboost/leadboost/internal/messenger"
	"github.com/leadboost/leadboost/internal/pipeline"
	"github.com/leadboost/leadboost/internal/quota"
	"github.com/leadboost/leadboost/internal/resilience"
	"github.com/leadboost/leadboost/internal/scorer"
	"github.com/leadboost/leadboost/internal/scrape"
	"github.com/leadboost/leadboost/internal/worker"
	"github.com/leadboost/leadboost/pkg/llm"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the lead processing worker pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var llmClient llm.Client
		if cfg.LLM.Key != "" {
			llmClient = resilience.WrapLLMClient(
				llm.NewClient(cfg.LLM.Key),
				resilience.DefaultCircuitBreakerConfig(),
			)
		} else {
			zap.L().Warn("no LLM key configured, AI strategies disabled")
		}

		var criteria []scorer.Criterion
		if cfg.Scorer.CriteriaFile != "" {
			criteria, err = scorer.LoadCriteria(cfg.Scorer.CriteriaFile)
			if err != nil {
				return eris.Wrap(err, "load scoring criteria")
			}
		}
		sc, err := scorer.NewScorer(criteria)
		if err != nil {
			return eris.Wrap(err, "build scorer")
		}

		var crmPusher pipeline.CRMPusher
		sfClient, err := initSalesforce()
		if err != nil {
			return err
		}
		if sfClient != nil {
			crmPusher = crm.NewPusher(sfClient)
		}

		catalog := quota.NewCatalog(cfg.Plans)
		processor := pipeline.NewProcessor(
			st,
			scrape.NewTieredScraper(cfg.Scrape),
			enrich.NewEnricher(nil, llmClient, cfg.LLM.Model),
			messenger.NewMessenger(cfg.Messenger, llmClient, cfg.LLM.Model),
			sc,
			quota.NewGate(catalog, st),
			crmPusher,
			cfg.Worker,
		)

		return worker.NewPool(st, processor, cfg.Worker).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
