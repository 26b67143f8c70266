package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/enrichd/internal/agents"
	"github.com/fyrsmithlabs/enrichd/internal/budget"
	"github.com/fyrsmithlabs/enrichd/internal/config"
	"github.com/fyrsmithlabs/enrichd/internal/depgraph"
	"github.com/fyrsmithlabs/enrichd/internal/dispatch"
	"github.com/fyrsmithlabs/enrichd/internal/failure"
	"github.com/fyrsmithlabs/enrichd/internal/killswitch"
	"github.com/fyrsmithlabs/enrichd/internal/retry"
	"github.com/fyrsmithlabs/enrichd/internal/slot"
)

// Orchestrator owns the process-wide managers (kill switches, budget,
// failure router) and drives records through the stage sequence. Independent
// companies may be processed concurrently; the managers are the only shared
// state and are internally synchronized.
type Orchestrator struct {
	cfg      *config.Config
	registry *agents.Registry

	agentKills *killswitch.Registry
	stageKills *killswitch.Registry
	budget     *budget.Manager
	dispatcher *dispatch.Dispatcher
	validator  *depgraph.Validator
	router     *failure.Router
	retry      *retry.Executor
	retryCfg   retry.Config
	metrics    *Metrics

	limiters map[agents.Stage]*rate.Limiter
	now      func() time.Time
	logger   *zap.Logger
}

// New creates an orchestrator from configuration. The registry decides which
// operations run; pass agents.NewMockRegistry() for mock mode. If logger is
// nil, uses a no-op logger.
func New(cfg *config.Config, registry *agents.Registry, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("pipeline")

	agentKills := killswitch.NewRegistry(logger)
	stageKills := killswitch.NewRegistry(logger)
	for _, a := range cfg.KillSwitches.Agents {
		agentKills.Kill(a)
	}
	for _, s := range cfg.KillSwitches.Stages {
		stageKills.Kill(s)
	}

	bm := budget.NewManager(cfg.Budget, logger)

	limiters := make(map[agents.Stage]*rate.Limiter)
	for _, stage := range agents.StageOrder() {
		throttle := cfg.Throttle.For(string(stage))
		switch {
		case throttle.Delay > 0:
			limiters[stage] = rate.NewLimiter(rate.Every(throttle.Delay), 1)
		case throttle.RequestsPerMinute > 0:
			limiters[stage] = rate.NewLimiter(rate.Limit(float64(throttle.RequestsPerMinute)/60.0), 1)
		}
	}

	return &Orchestrator{
		cfg:        cfg,
		registry:   registry,
		agentKills: agentKills,
		stageKills: stageKills,
		budget:     bm,
		dispatcher: dispatch.NewDispatcher(registry, agentKills, bm, logger),
		validator:  depgraph.NewValidator(cfg.Dependencies.Enforce),
		router:     failure.NewRouter(nil, cfg.Failure.AttemptCeiling, logger),
		retry:      retry.NewExecutor(logger),
		retryCfg: retry.Config{
			Retries:            cfg.Retry.Retries,
			Delay:              cfg.Retry.Delay,
			MaxDelay:           cfg.Retry.MaxDelay,
			ExponentialBackoff: cfg.Retry.ExponentialBackoff,
			RespectRetryable:   cfg.Retry.RespectRetryable,
		},
		metrics:  NewMetrics(logger),
		limiters: limiters,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock overrides the time source for the orchestrator and the managers it
// owns. Intended for tests.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
	o.budget.SetClock(now)
	o.dispatcher.SetClock(now)
	o.router.SetClock(now)
}

// Dispatcher exposes the single-record dispatcher.
func (o *Orchestrator) Dispatcher() *dispatch.Dispatcher { return o.dispatcher }

// Budget exposes the vendor budget manager.
func (o *Orchestrator) Budget() *budget.Manager { return o.budget }

// AgentKills exposes the per-agent kill switch registry.
func (o *Orchestrator) AgentKills() *killswitch.Registry { return o.agentKills }

// Failures exposes the failure router and resume queue.
func (o *Orchestrator) Failures() *failure.Router { return o.router }

// KillAllAgents sets the kill switch for every known agent type, stopping all
// new dispatches while leaving in-flight calls alone.
func (o *Orchestrator) KillAllAgents() {
	for _, stage := range agents.StageOrder() {
		for _, a := range agents.AgentsForStage(stage) {
			o.agentKills.Kill(string(a))
		}
	}
}

// ReviveAllAgents clears every agent kill switch.
func (o *Orchestrator) ReviveAllAgents() {
	o.agentKills.ReviveAll()
}

// KillNode sets the kill switch for a pipeline stage. The stage is skipped
// on the next run; in-flight work is not interrupted.
func (o *Orchestrator) KillNode(stage agents.Stage) {
	o.stageKills.Kill(string(stage))
}

// EnableNode clears a stage's kill switch.
func (o *Orchestrator) EnableNode(stage agents.Stage) {
	o.stageKills.Revive(string(stage))
}

// FailureStatistics returns aggregate failure counts.
func (o *Orchestrator) FailureStatistics() failure.Stats {
	return o.router.Statistics()
}

// FailureReport renders the human-readable failure report.
func (o *Orchestrator) FailureReport() string {
	return o.router.Report()
}

// ProcessCompany runs one company's records through all four stages.
// companyMaster is the canonical company list used by identity resolution.
func (o *Orchestrator) ProcessCompany(ctx context.Context, companyID, companyName string, records []*slot.Record, companyMaster []string) (*CompanyResult, error) {
	return o.run(ctx, companyID, companyName, records, companyMaster, agents.StageCompanyResolution, "")
}

// ProcessCompanies runs a batch of companies, at most MaxConcurrent at a
// time. Per-company errors are routed to the failure router; the batch
// result is always returned.
func (o *Orchestrator) ProcessCompanies(ctx context.Context, companies []Company, companyMaster []string) *BatchResult {
	maxConcurrent := o.cfg.Throttle.Default.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	sem := make(chan struct{}, maxConcurrent)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make([]*CompanyResult, len(companies))
	)
	for i, company := range companies {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int, c Company) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := o.ProcessCompany(ctx, c.ID, c.Name, c.Records, companyMaster)
			if err != nil {
				o.logger.Error("company run aborted",
					zap.String("company_id", c.ID),
					zap.Error(err),
				)
				return
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
		}(i, company)
	}
	wg.Wait()

	batch := &BatchResult{}
	for _, res := range results {
		if res == nil {
			continue
		}
		batch.Companies = append(batch.Companies, res)
		batch.TotalCostUSD += res.TotalCostUSD
		for _, rec := range res.Records {
			if rec.Complete {
				batch.Completed++
			} else {
				batch.Incomplete++
			}
		}
	}
	return batch
}

// run executes the stage sequence starting at startStage. If startAgent is
// non-empty, agents before it within startStage are skipped; this is the
// resume entry path.
func (o *Orchestrator) run(ctx context.Context, companyID, companyName string, records []*slot.Record, companyMaster []string, startStage agents.Stage, startAgent agents.AgentType) (*CompanyResult, error) {
	startIdx := -1
	for i, stage := range agents.StageOrder() {
		if stage == startStage {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil, ErrUnknownStage
	}
	for _, rec := range records {
		if rec == nil {
			return nil, ErrNilRecord
		}
	}

	result := &CompanyResult{
		CompanyID:    companyID,
		CompanyName:  companyName,
		IntentScores: make(map[string]float64),
		Records:      records,
	}

	// Per-record completed-agent sets, seeded from record state plus every
	// agent belonging to a stage before the entry point.
	runs := make([]*recordRun, len(records))
	for i, rec := range records {
		runs[i] = &recordRun{
			rec:       rec,
			completed: seedCompleted(rec, startIdx),
		}
	}

	for _, stage := range agents.StageOrder()[startIdx:] {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		firstAgent := agents.AgentType("")
		if stage == startStage {
			firstAgent = startAgent
		}

		sr := o.runStage(ctx, stage, firstAgent, runs, companyMaster, result)
		result.Stages = append(result.Stages, sr)
		result.TotalCostUSD += sr.CostIncurredUSD

		// A company-resolution failure invalidates everything downstream;
		// later-stage failures still let the remaining stages attempt.
		if stage == agents.StageCompanyResolution && sr.State == NodeFailed {
			o.logger.Warn("aborting company after resolution failure",
				zap.String("company_id", companyID))
			break
		}
	}

	// Final completion pass through the dispatcher: records whose checklist
	// is now satisfied are marked complete here. Records still missing items
	// are left alone rather than routed again.
	for _, run := range runs {
		if !run.rec.Complete && !slot.EvaluateChecklist(run.rec).ReadyForCompletion {
			continue
		}
		res := o.dispatcher.Dispatch(run.rec, companyMaster)
		o.metrics.RecordDispatch(ctx, res.Status, res.Agent)
	}

	o.logger.Info("company run finished",
		zap.String("company_id", companyID),
		zap.String("company_name", companyName),
		zap.Int("records", len(records)),
		zap.Float64("total_cost_usd", result.TotalCostUSD),
	)
	return result, nil
}

// recordRun pairs a record with its per-run completed-agent set.
type recordRun struct {
	rec       *slot.Record
	completed map[agents.AgentType]bool
	// blocked is set when a budget or throttle gate stopped this record's
	// current stage; remaining agents of the stage are not attempted.
	blocked bool
}

// seedCompleted derives the completed-agent set from the fields already
// present on a record, plus all agents of stages before the entry stage.
func seedCompleted(rec *slot.Record, startIdx int) map[agents.AgentType]bool {
	completed := make(map[agents.AgentType]bool)
	for _, stage := range agents.StageOrder()[:startIdx] {
		for _, a := range agents.AgentsForStage(stage) {
			completed[a] = true
		}
	}
	if rec.CompanyValid.Known() {
		completed[agents.AgentCompanyIdentity] = true
	}
	if rec.EmailPattern != "" {
		completed[agents.AgentEmailPatternDiscovery] = true
	}
	if rec.LinkedInURL != "" {
		completed[agents.AgentLinkedInDiscovery] = true
	}
	if rec.PublicAccessible.Known() {
		completed[agents.AgentProfileAccessCheck] = true
	}
	if rec.PersonCompanyValid.Known() || (rec.CurrentTitle != "" && rec.CurrentCompany != "") {
		completed[agents.AgentEmploymentConfirmation] = true
	}
	if rec.Email != "" {
		completed[agents.AgentEmailGeneration] = true
	}
	if rec.EmailVerified {
		completed[agents.AgentEmailVerification] = true
	}
	if rec.MovementHash != "" {
		completed[agents.AgentMovementHash] = true
	}
	return completed
}
