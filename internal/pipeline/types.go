// Package pipeline runs slot records through the four ordered enrichment
// stages: company resolution, person enrichment, external registry sync, and
// intent scoring. Each stage is a node with an explicit state transition and
// its own kill switch, pacing, and telemetry; the company-validity gate
// decides whether person enrichment runs at all.
package pipeline

import (
	"errors"
	"time"

	"github.com/fyrsmithlabs/enrichd/internal/agents"
	"github.com/fyrsmithlabs/enrichd/internal/slot"
)

// Pipeline errors.
var (
	ErrDependencyUnmet = errors.New("dependency unmet")
	ErrUnknownStage    = errors.New("unknown stage")
	ErrNilRecord       = errors.New("record must not be nil")
)

// SkipReasonCompanyInvalid marks records whose person enrichment was skipped
// because company resolution invalidated the company.
const SkipReasonCompanyInvalid = "company_invalid"

// NodeState is the lifecycle state of one stage node during a run.
type NodeState string

const (
	NodeIdle      NodeState = "idle"
	NodeRunning   NodeState = "running"
	NodeCompleted NodeState = "completed"
	NodeFailed    NodeState = "failed"
	NodeKilled    NodeState = "killed"
)

// StageResult aggregates one stage's telemetry for a company run. Skips are
// reported distinctly from failures.
type StageResult struct {
	Stage            agents.Stage `json:"stage"`
	State            NodeState    `json:"state"`
	RecordsProcessed int          `json:"records_processed"`
	RecordsFailed    int          `json:"records_failed"`
	RecordsSkipped   int          `json:"records_skipped"`
	CostIncurredUSD  float64      `json:"cost_incurred_usd"`
	StartedAt        time.Time    `json:"started_at"`
	CompletedAt      time.Time    `json:"completed_at"`
}

// CompanyResult is the outcome of running one company's records through the
// pipeline.
type CompanyResult struct {
	CompanyID    string                       `json:"company_id"`
	CompanyName  string                       `json:"company_name"`
	Stages       []*StageResult               `json:"stages"`
	IntentScores map[string]float64           `json:"intent_scores,omitempty"`
	Records      []*slot.Record               `json:"records"`
	TotalCostUSD float64                      `json:"total_cost_usd"`
}

// StageFor returns the result for a stage, or nil if the stage did not run.
func (r *CompanyResult) StageFor(stage agents.Stage) *StageResult {
	for _, sr := range r.Stages {
		if sr.Stage == stage {
			return sr
		}
	}
	return nil
}

// Company is one unit of batch work: a company and its slot records.
type Company struct {
	ID      string
	Name    string
	Records []*slot.Record
}

// BatchResult aggregates a multi-company run.
type BatchResult struct {
	Companies    []*CompanyResult `json:"companies"`
	TotalCostUSD float64          `json:"total_cost_usd"`
	Completed    int              `json:"completed"`
	Incomplete   int              `json:"incomplete"`
}
