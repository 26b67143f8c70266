package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/enrichd/internal/agents"
	"github.com/fyrsmithlabs/enrichd/internal/config"
	"github.com/fyrsmithlabs/enrichd/internal/logging"
	"github.com/fyrsmithlabs/enrichd/internal/pipeline"
	"github.com/fyrsmithlabs/enrichd/internal/slot"
)

var (
	outputJSON    bool
	printFailures bool
)

var runCmd = &cobra.Command{
	Use:   "run <batch.json>",
	Short: "Run a batch of companies through the pipeline",
	Long: `Run a batch of companies through the pipeline.

The batch file is JSON:

  {
    "company_master": ["Acme Corp", "Globex"],
    "companies": [
      {
        "id": "acme",
        "name": "Acme Corp",
        "records": [
          {"id": "acme-ceo", "company_id": "acme", "company_name": "Acme Corp",
           "slot_type": "CEO", "person_name": "Jane Smith"}
        ]
      }
    ]
  }

Examples:
  # Dry run against the mock vendors
  ENRICHD_MOCK_MODE=true enrichd run batch.json

  # With a config file, emitting the batch result as JSON
  enrichd run --config enrichd.yaml --json batch.json`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Load and validate the configuration, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		fmt.Printf("config ok (mock_mode=%t, slot_cost_usd=%.2f)\n", cfg.MockMode, cfg.SlotCostUSD)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&outputJSON, "json", false, "emit the batch result as JSON on stdout")
	runCmd.Flags().BoolVar(&printFailures, "failures", false, "print the failure report after the run")
}

// batchInput is the on-disk shape of one run's work.
type batchInput struct {
	CompanyMaster []string       `json:"company_master"`
	Companies     []companyInput `json:"companies"`
}

type companyInput struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Records []*slot.Record `json:"records"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer logging.Sync(logger) //nolint:errcheck

	if !cfg.MockMode {
		return fmt.Errorf("no vendor operations are linked into this binary; set mock_mode: true (or ENRICHD_MOCK_MODE=true) for a dry run")
	}
	registry := agents.NewMockRegistry()

	batch, err := readBatch(args[0])
	if err != nil {
		return err
	}

	companies := make([]pipeline.Company, 0, len(batch.Companies))
	total := 0
	for _, c := range batch.Companies {
		for _, rec := range c.Records {
			if rec.CostLimit == 0 {
				rec.CostLimit = cfg.SlotCostUSD
			}
		}
		companies = append(companies, pipeline.Company{ID: c.ID, Name: c.Name, Records: c.Records})
		total += len(c.Records)
	}
	logger.Info("starting batch",
		zap.Int("companies", len(companies)),
		zap.Int("records", total),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := pipeline.New(cfg, registry, logger)
	result := orch.ProcessCompanies(ctx, companies, batch.CompanyMaster)

	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else {
		fmt.Printf("companies: %d  completed slots: %d  incomplete slots: %d  total cost: $%.4f\n",
			len(result.Companies), result.Completed, result.Incomplete, result.TotalCostUSD)
	}

	stats := orch.FailureStatistics()
	if printFailures || stats.Total > 0 {
		fmt.Fprint(os.Stderr, orch.FailureReport())
	}
	return ctx.Err()
}

func readBatch(path string) (*batchInput, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	var batch batchInput
	if err := json.Unmarshal(content, &batch); err != nil {
		return nil, fmt.Errorf("failed to parse batch file %s: %w", path, err)
	}
	if len(batch.Companies) == 0 {
		return nil, fmt.Errorf("batch file %s contains no companies", path)
	}
	return &batch, nil
}
