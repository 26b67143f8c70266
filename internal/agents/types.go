// Package agents defines the enrichment step taxonomy: agent types, the
// pipeline stages they belong to, and the uniform contract every vendor
// operation satisfies. The package is deliberately free of vendor I/O;
// concrete integrations plug in as Operation functions.
package agents

import "context"

// AgentType identifies a single enrichment step with one narrow responsibility.
type AgentType string

const (
	// Company resolution agents.
	AgentCompanyIdentity       AgentType = "company_identity"
	AgentEmailPatternDiscovery AgentType = "email_pattern_discovery"
	AgentRoleDetection         AgentType = "role_detection"

	// Person enrichment agents.
	AgentLinkedInDiscovery       AgentType = "linkedin_discovery"
	AgentProfileAccessCheck      AgentType = "profile_access_check"
	AgentEmploymentConfirmation  AgentType = "employment_confirmation"
	AgentEmailGeneration         AgentType = "email_generation"
	AgentEmailVerification       AgentType = "email_verification"
	AgentMovementHash            AgentType = "movement_hash"

	// External registry sync agents.
	AgentRegistryPull AgentType = "registry_pull"

	// Intent scoring agents.
	AgentIntentScoring AgentType = "intent_scoring"
)

// Stage represents one of the four ordered pipeline phases.
type Stage string

const (
	StageCompanyResolution Stage = "company_resolution"
	StagePersonEnrichment  Stage = "person_enrichment"
	StageRegistrySync      Stage = "registry_sync"
	StageIntentScoring     Stage = "intent_scoring"
)

// StageOrder returns the stages in fixed execution order.
func StageOrder() []Stage {
	return []Stage{
		StageCompanyResolution,
		StagePersonEnrichment,
		StageRegistrySync,
		StageIntentScoring,
	}
}

// stageAgents is the fixed per-stage agent execution order. Within a stage,
// agents run in this order; the dispatcher's checklist and the dependency
// graph both assume it.
var stageAgents = map[Stage][]AgentType{
	StageCompanyResolution: {
		AgentCompanyIdentity,
		AgentEmailPatternDiscovery,
		AgentRoleDetection,
	},
	StagePersonEnrichment: {
		AgentLinkedInDiscovery,
		AgentProfileAccessCheck,
		AgentEmploymentConfirmation,
		AgentMovementHash,
		AgentEmailGeneration,
		AgentEmailVerification,
	},
	StageRegistrySync: {
		AgentRegistryPull,
	},
	StageIntentScoring: {
		AgentIntentScoring,
	},
}

// AgentsForStage returns the fixed agent order for a stage.
func AgentsForStage(stage Stage) []AgentType {
	order, ok := stageAgents[stage]
	if !ok {
		return nil
	}
	out := make([]AgentType, len(order))
	copy(out, order)
	return out
}

// StageOf returns the stage an agent type belongs to.
func StageOf(agent AgentType) (Stage, bool) {
	for _, stage := range StageOrder() {
		for _, a := range stageAgents[stage] {
			if a == agent {
				return stage, true
			}
		}
	}
	return "", false
}

// Input is the minimal record context handed to an operation. It is a value
// copy: operations never mutate the slot record directly, they report results
// through Result.Data and the caller applies them.
type Input struct {
	RecordID       string   `json:"record_id"`
	CompanyID      string   `json:"company_id"`
	CompanyName    string   `json:"company_name"`
	SlotType       string   `json:"slot_type"`
	PersonName     string   `json:"person_name"`
	LinkedInURL    string   `json:"linkedin_url,omitempty"`
	EmailPattern   string   `json:"email_pattern,omitempty"`
	Email          string   `json:"email,omitempty"`
	CurrentTitle   string   `json:"current_title,omitempty"`
	CurrentCompany string   `json:"current_company,omitempty"`
	CompanyMaster  []string `json:"company_master,omitempty"`
}

// Result is the uniform outcome shape every vendor operation returns.
// Retryable is nil when the vendor gave no signal either way; Cost is the
// actual reported cost in USD, 0 when the vendor does not report one.
type Result struct {
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Cost      float64        `json:"cost,omitempty"`
	Retryable *bool          `json:"retryable,omitempty"`
}

// Operation is a single vendor call. A nil error with Result.Success=false is
// invalid; operations report failure through the error return.
type Operation func(ctx context.Context, in Input) (*Result, error)

// RetryableFlag is a convenience for building Results with an explicit
// retryable signal.
func RetryableFlag(v bool) *bool {
	return &v
}
