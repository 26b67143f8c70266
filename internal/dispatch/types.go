// Package dispatch decides the next enrichment action for a single slot
// record. It is pure gating logic: checklist, kill switches, cost ceilings,
// and vendor throttles. No vendor I/O happens here; execution belongs to the
// caller.
package dispatch

import (
	"github.com/fyrsmithlabs/enrichd/internal/agents"
)

// Status tags the outcome of one dispatch attempt. Exactly one status per
// call; gating conditions are outcomes, never errors.
type Status string

const (
	// StatusRouted means a task was constructed and the vendor call was
	// reserved against the budget.
	StatusRouted Status = "routed"
	// StatusThrottled means the vendor rate limit or cooldown blocked the
	// call; retry later.
	StatusThrottled Status = "throttled"
	// StatusKilled means the needed agent type is kill-switched; the record
	// was not mutated and no cost was recorded.
	StatusKilled Status = "killed"
	// StatusCostExceeded means a slot, vendor, or global spend ceiling would
	// be exceeded.
	StatusCostExceeded Status = "cost_exceeded"
	// StatusCompleted means the checklist is satisfied and the record is
	// marked complete.
	StatusCompleted Status = "completed"
	// StatusNoAction means nothing is missing that any agent can fill.
	StatusNoAction Status = "no_action"
)

// Task is the unit of work handed to the executing stage when a record is
// routed.
type Task struct {
	ID            string          `json:"id"`
	Agent         agents.AgentType `json:"agent"`
	RecordID      string          `json:"record_id"`
	Vendor        string          `json:"vendor"`
	EstimatedCost float64         `json:"estimated_cost"`
	Input         agents.Input    `json:"input"`
}

// Result is the tagged outcome of one dispatch attempt.
type Result struct {
	Status Status
	// Agent is the agent type that was considered, when one was.
	Agent agents.AgentType
	// Task carries the constructed work unit when Status is StatusRouted.
	Task *Task
	// Cost is the estimated cost reserved when Status is StatusRouted.
	Cost float64
	// Reason explains gating outcomes for operators.
	Reason string
}
