package dispatch

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/enrichd/internal/agents"
	"github.com/fyrsmithlabs/enrichd/internal/budget"
	"github.com/fyrsmithlabs/enrichd/internal/killswitch"
	"github.com/fyrsmithlabs/enrichd/internal/slot"
)

// Dispatcher combines the checklist evaluator, kill-switch registry, and
// budget manager into the next-action decision for one record. Given
// identical inputs it always produces the same status.
type Dispatcher struct {
	registry *agents.Registry
	kills    *killswitch.Registry
	budget   *budget.Manager
	now      func() time.Time
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher. If logger is nil, uses a no-op logger.
func NewDispatcher(registry *agents.Registry, kills *killswitch.Registry, bm *budget.Manager, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		registry: registry,
		kills:    kills,
		budget:   bm,
		now:      time.Now,
		logger:   logger.Named("dispatch"),
	}
}

// SetClock overrides the time source. Intended for tests.
func (d *Dispatcher) SetClock(now func() time.Time) {
	d.now = now
}

// Dispatch evaluates one record and returns the next action. companyMaster is
// the canonical company list forwarded to the task input for identity
// resolution agents.
func (d *Dispatcher) Dispatch(rec *slot.Record, companyMaster []string) Result {
	// Completion is terminal: a complete record is never routed again, and
	// repeat calls are side-effect free.
	if rec.Complete {
		return Result{Status: StatusCompleted}
	}

	checklist := slot.EvaluateChecklist(rec)
	if checklist.ReadyForCompletion {
		rec.MarkComplete(d.now())
		d.logger.Info("slot complete",
			zap.String("record_id", rec.ID),
			zap.String("slot_type", string(rec.SlotType)),
			zap.Float64("cost_accumulated", rec.CostAccumulated),
		)
		return Result{Status: StatusCompleted}
	}

	agent, ok := checklist.NextAgent()
	if !ok {
		return Result{Status: StatusNoAction, Reason: "no agent fills the missing items"}
	}

	return d.Authorize(rec, agent, companyMaster)
}

// Authorize runs the gating sequence for a specific agent type against a
// record: kill switch, slot cost ceiling, then the budget manager's combined
// rate-and-spend reservation. On success it constructs the task and returns
// StatusRouted. The pipeline uses this directly when executing a stage's
// fixed agent order.
func (d *Dispatcher) Authorize(rec *slot.Record, agent agents.AgentType, companyMaster []string) Result {
	if d.kills.IsKilled(string(agent)) {
		return Result{Status: StatusKilled, Agent: agent, Reason: "agent kill switch set"}
	}

	estimated := d.registry.EstimatedCost(agent)
	if rec.CostLimit > 0 && rec.CostAccumulated+estimated > rec.CostLimit {
		return Result{
			Status: StatusCostExceeded,
			Agent:  agent,
			Reason: "slot cost ceiling",
		}
	}

	vendor := d.registry.Vendor(agent)
	if err := d.budget.Reserve(vendor, string(agent), estimated); err != nil {
		if budget.Throttled(err) {
			return Result{Status: StatusThrottled, Agent: agent, Reason: err.Error()}
		}
		return Result{Status: StatusCostExceeded, Agent: agent, Reason: err.Error()}
	}

	task := &Task{
		ID:            uuid.New().String(),
		Agent:         agent,
		RecordID:      rec.ID,
		Vendor:        vendor,
		EstimatedCost: estimated,
		Input: agents.Input{
			RecordID:       rec.ID,
			CompanyID:      rec.CompanyID,
			CompanyName:    rec.CompanyName,
			SlotType:       string(rec.SlotType),
			PersonName:     rec.PersonName,
			LinkedInURL:    rec.LinkedInURL,
			EmailPattern:   rec.EmailPattern,
			Email:          rec.Email,
			CurrentTitle:   rec.CurrentTitle,
			CurrentCompany: rec.CurrentCompany,
			CompanyMaster:  companyMaster,
		},
	}

	d.logger.Debug("record routed",
		zap.String("record_id", rec.ID),
		zap.String("agent", string(agent)),
		zap.String("vendor", vendor),
		zap.Float64("estimated_cost", estimated),
	)
	return Result{Status: StatusRouted, Agent: agent, Task: task, Cost: estimated}
}
