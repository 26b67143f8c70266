package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/enrichd/internal/agents"
	"github.com/fyrsmithlabs/enrichd/internal/dispatch"
	"github.com/fyrsmithlabs/enrichd/internal/failure"
	"github.com/fyrsmithlabs/enrichd/internal/slot"
)

// runStage executes one stage node for a company. The node transitions
// idle -> running -> completed|failed|killed; killed stages skip every
// record without mutation or cost.
func (o *Orchestrator) runStage(ctx context.Context, stage agents.Stage, firstAgent agents.AgentType, runs []*recordRun, companyMaster []string, result *CompanyResult) *StageResult {
	sr := &StageResult{Stage: stage, State: NodeIdle, StartedAt: o.now()}
	start := time.Now()
	defer func() {
		sr.CompletedAt = o.now()
		o.metrics.RecordStage(ctx, sr, time.Since(start))
	}()

	if o.stageKills.IsKilled(string(stage)) {
		sr.State = NodeKilled
		sr.RecordsSkipped = len(runs)
		o.logger.Warn("stage killed", zap.String("stage", string(stage)))
		return sr
	}
	sr.State = NodeRunning

	order := agents.AgentsForStage(stage)
	if firstAgent != "" {
		for i, a := range order {
			if a == firstAgent {
				order = order[i:]
				break
			}
		}
	}

	var failed bool
	switch stage {
	case agents.StageCompanyResolution, agents.StageRegistrySync:
		failed = o.runCompanyScope(ctx, stage, order, runs, companyMaster, sr, result)
	case agents.StagePersonEnrichment:
		failed = o.runPersonEnrichment(ctx, order, runs, companyMaster, sr, result)
	case agents.StageIntentScoring:
		failed = o.runIntentScoring(ctx, order, runs, sr, result)
	}

	if failed {
		sr.State = NodeFailed
	} else {
		sr.State = NodeCompleted
	}
	return sr
}

// runCompanyScope runs agents that operate on the company rather than a
// single person. Each agent executes once; its output applies to every
// record of the company.
func (o *Orchestrator) runCompanyScope(ctx context.Context, stage agents.Stage, order []agents.AgentType, runs []*recordRun, companyMaster []string, sr *StageResult, result *CompanyResult) bool {
	if len(runs) == 0 {
		return false
	}
	rep := runs[0]

	var failed bool
	for _, agent := range order {
		if rep.rec.CompanyValid.False() {
			// An invalidated company gets no further vendor calls.
			break
		}
		if !o.companyAgentNeeded(agent, runs) {
			continue
		}
		if dec := o.validator.Validate(stage, agent, rep.completed); !dec.Allowed {
			o.routeDependencyUnmet(stage, agent, dec.Missing, rep.rec.ID)
			failed = true
			continue
		}

		auth := o.dispatcher.Authorize(rep.rec, agent, companyMaster)
		o.metrics.RecordDispatch(ctx, auth.Status, agent)
		switch auth.Status {
		case dispatch.StatusKilled:
			continue
		case dispatch.StatusThrottled, dispatch.StatusCostExceeded:
			o.logger.Warn("company stage gated",
				zap.String("stage", string(stage)),
				zap.String("agent", string(agent)),
				zap.String("reason", auth.Reason),
			)
			// No further agents this pass; the next run retries.
			if failed {
				sr.RecordsFailed = len(runs)
			}
			sr.RecordsProcessed = len(runs) - sr.RecordsFailed
			return failed
		case dispatch.StatusRouted:
			if err := o.executeAgent(ctx, stage, auth.Task, runs, sr, result); err != nil {
				failed = true
			}
		}
	}

	if failed {
		sr.RecordsFailed = len(runs)
	} else {
		sr.RecordsProcessed = len(runs)
	}
	return failed
}

// runPersonEnrichment runs the per-person agent order for each record. The
// company-validity gate skips invalidated companies' records entirely; the
// per-person gate blocks only email generation and verification.
func (o *Orchestrator) runPersonEnrichment(ctx context.Context, order []agents.AgentType, runs []*recordRun, companyMaster []string, sr *StageResult, result *CompanyResult) bool {
	var stageFailed bool
	for _, run := range runs {
		rec := run.rec
		if rec.Complete {
			sr.RecordsProcessed++
			continue
		}

		// Golden rule, company half: an invalid company means no person
		// enrichment at all. Not attempted, not charged, counted as a skip.
		if rec.CompanyValid.False() {
			rec.SkipReason = SkipReasonCompanyInvalid
			rec.Touch(o.now())
			sr.RecordsSkipped++
			continue
		}

		run.blocked = false
		recFailed := false
		for _, agent := range order {
			if run.blocked || ctx.Err() != nil {
				break
			}
			if !personAgentNeeded(rec, agent) {
				continue
			}
			// Golden rule, person half: email work requires both identities
			// confirmed. Diagnostic lookups still run.
			if contactAgent(agent) && !(rec.CompanyValid.True() && rec.PersonCompanyValid.True()) {
				continue
			}
			if dec := o.validator.Validate(agents.StagePersonEnrichment, agent, run.completed); !dec.Allowed {
				o.routeDependencyUnmet(agents.StagePersonEnrichment, agent, dec.Missing, rec.ID)
				recFailed = true
				continue
			}

			auth := o.dispatcher.Authorize(rec, agent, companyMaster)
			o.metrics.RecordDispatch(ctx, auth.Status, agent)
			switch auth.Status {
			case dispatch.StatusKilled:
				continue
			case dispatch.StatusThrottled, dispatch.StatusCostExceeded:
				run.blocked = true
			case dispatch.StatusRouted:
				if err := o.executeAgent(ctx, agents.StagePersonEnrichment, auth.Task, []*recordRun{run}, sr, result); err != nil {
					recFailed = true
				}
			}
		}

		if recFailed {
			sr.RecordsFailed++
			stageFailed = true
		} else {
			sr.RecordsProcessed++
		}
	}
	return stageFailed
}

// runIntentScoring scores each record. Scoring reads registry-sync output;
// when that stage did not run (killed or resumed past) the record is skipped
// rather than failed.
func (o *Orchestrator) runIntentScoring(ctx context.Context, order []agents.AgentType, runs []*recordRun, sr *StageResult, result *CompanyResult) bool {
	var stageFailed bool
	for _, run := range runs {
		rec := run.rec
		if rec.CompanyValid.False() {
			sr.RecordsSkipped++
			continue
		}
		if !run.completed[agents.AgentRegistryPull] {
			o.logger.Info("intent scoring skipped: registry sync output unavailable",
				zap.String("record_id", rec.ID))
			sr.RecordsSkipped++
			continue
		}

		recFailed := false
		for _, agent := range order {
			auth := o.dispatcher.Authorize(rec, agent, nil)
			o.metrics.RecordDispatch(ctx, auth.Status, agent)
			switch auth.Status {
			case dispatch.StatusKilled:
				continue
			case dispatch.StatusThrottled, dispatch.StatusCostExceeded:
				run.blocked = true
			case dispatch.StatusRouted:
				if err := o.executeAgent(ctx, agents.StageIntentScoring, auth.Task, []*recordRun{run}, sr, result); err != nil {
					recFailed = true
				}
			}
			if run.blocked {
				break
			}
		}

		if recFailed {
			sr.RecordsFailed++
			stageFailed = true
		} else {
			sr.RecordsProcessed++
		}
	}
	return stageFailed
}

// executeAgent runs one routed task through the retry executor, settles the
// budget with the actual reported cost, applies the result to every record
// in runs, and funnels any failure to the router. The reserved estimate was
// already charged by Authorize; only the surplus of an actual cost is added.
func (o *Orchestrator) executeAgent(ctx context.Context, stage agents.Stage, task *dispatch.Task, runs []*recordRun, sr *StageResult, result *CompanyResult) error {
	if limiter := o.limiters[stage]; limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("stage pacing interrupted: %w", err)
		}
	}

	spec, err := o.registry.Lookup(task.Agent)
	if err != nil {
		o.router.RouteError(err, task.Agent, failure.Context{Stage: stage, RecordID: task.RecordID})
		return err
	}

	res, err := o.retry.WithRetry(ctx, o.retryCfg, spec.Op, task.Input)
	if err != nil {
		o.budget.ReportFailure(task.Vendor)
		o.router.RouteError(err, task.Agent, failure.Context{Stage: stage, RecordID: task.RecordID})
		return err
	}
	o.budget.ReportSuccess(task.Vendor)

	// Prefer the vendor-reported actual cost; the static estimate was only
	// the pre-execution reservation.
	cost := task.EstimatedCost
	if res.Cost > 0 {
		cost = res.Cost
		if res.Cost > task.EstimatedCost {
			o.budget.RecordSpend(task.Vendor, res.Cost-task.EstimatedCost)
		}
	}
	o.metrics.RecordSpend(ctx, task.Vendor, cost)
	sr.CostIncurredUSD += cost

	now := o.now()
	for i, run := range runs {
		if i == 0 {
			run.rec.AddCost(cost, now)
		}
		if err := o.applyResult(run.rec, task.Agent, res.Data, now, result); err != nil {
			o.router.RouteError(err, task.Agent, failure.Context{Stage: stage, RecordID: run.rec.ID})
			return err
		}
		run.completed[task.Agent] = true
	}
	return nil
}

// applyResult mutates the record with the fields the agent's output fills.
// Each field is written only by its owning agent.
func (o *Orchestrator) applyResult(rec *slot.Record, agent agents.AgentType, data map[string]any, now time.Time, result *CompanyResult) error {
	switch agent {
	case agents.AgentCompanyIdentity:
		if valid, ok := getBool(data, "company_valid"); ok {
			rec.CompanyValid = slot.TriOf(valid)
			rec.CompanyInvalidReason = getString(data, "company_invalid_reason")
			rec.Touch(now)
		}
	case agents.AgentEmailPatternDiscovery:
		if pattern := getString(data, "email_pattern"); pattern != "" {
			rec.EmailPattern = pattern
			rec.Touch(now)
		}
	case agents.AgentLinkedInDiscovery:
		if url := getString(data, "linkedin_url"); url != "" {
			rec.LinkedInURL = url
			rec.Touch(now)
		}
	case agents.AgentProfileAccessCheck:
		if accessible, ok := getBool(data, "public_accessible"); ok {
			rec.PublicAccessible = slot.TriOf(accessible)
			rec.Touch(now)
		}
	case agents.AgentEmploymentConfirmation:
		if title := getString(data, "current_title"); title != "" {
			rec.CurrentTitle = title
		}
		if company := getString(data, "current_company"); company != "" {
			rec.CurrentCompany = company
		}
		if valid, ok := getBool(data, "person_company_valid"); ok {
			rec.PersonCompanyValid = slot.TriOf(valid)
		}
		rec.Touch(now)
	case agents.AgentEmailGeneration:
		if email := getString(data, "email"); email != "" {
			if err := rec.SetEmail(email, now); err != nil {
				return fmt.Errorf("refusing generated email for %s: %w", rec.ID, err)
			}
		}
	case agents.AgentEmailVerification:
		if verified, ok := getBool(data, "email_verified"); ok {
			rec.EmailVerified = verified
			rec.Touch(now)
		}
	case agents.AgentMovementHash:
		if hash := getString(data, "movement_hash"); hash != "" {
			rec.MovementHash = hash
			rec.Touch(now)
		}
	case agents.AgentIntentScoring:
		if score, ok := getFloat64(data, "intent_score"); ok {
			result.IntentScores[rec.ID] = score
		}
	}
	// Role detection and registry pull feed company-level telemetry only.
	return nil
}

func (o *Orchestrator) routeDependencyUnmet(stage agents.Stage, agent agents.AgentType, missing []agents.AgentType, recordID string) {
	err := fmt.Errorf("%w: %s requires %v", ErrDependencyUnmet, agent, missing)
	o.router.RouteError(err, agent, failure.Context{Stage: stage, RecordID: recordID})
}

// companyAgentNeeded reports whether a company-scope agent still has work.
func (o *Orchestrator) companyAgentNeeded(agent agents.AgentType, runs []*recordRun) bool {
	switch agent {
	case agents.AgentCompanyIdentity:
		for _, run := range runs {
			if !run.rec.CompanyValid.Known() {
				return true
			}
		}
		return false
	case agents.AgentEmailPatternDiscovery:
		for _, run := range runs {
			if run.rec.EmailPattern == "" {
				return true
			}
		}
		return false
	case agents.AgentRoleDetection, agents.AgentRegistryPull:
		return !runs[0].completed[agent]
	default:
		return false
	}
}

// personAgentNeeded reports whether a per-person agent still has work on a
// record.
func personAgentNeeded(rec *slot.Record, agent agents.AgentType) bool {
	switch agent {
	case agents.AgentLinkedInDiscovery:
		return rec.LinkedInURL == ""
	case agents.AgentProfileAccessCheck:
		return !rec.PublicAccessible.Known()
	case agents.AgentEmploymentConfirmation:
		return rec.CurrentTitle == "" || rec.CurrentCompany == "" || !rec.PersonCompanyValid.Known()
	case agents.AgentMovementHash:
		return rec.MovementHash == ""
	case agents.AgentEmailGeneration:
		return rec.Email == ""
	case agents.AgentEmailVerification:
		return rec.Email != "" && !rec.EmailVerified
	default:
		return false
	}
}

// contactAgent reports whether an agent manufactures a contact channel and
// is therefore subject to the golden rule.
func contactAgent(agent agents.AgentType) bool {
	return agent == agents.AgentEmailGeneration || agent == agents.AgentEmailVerification
}

func getString(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func getBool(data map[string]any, key string) (bool, bool) {
	v, ok := data[key].(bool)
	return v, ok
}

func getFloat64(data map[string]any, key string) (float64, bool) {
	switch v := data[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
