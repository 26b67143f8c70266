// Package depgraph validates agent ordering: a static per-stage table of
// which agent types must have completed on a record before another may run.
// This is independent of the checklist's field-presence check; a field can be
// present while the specific producing agent has not recorded completion.
package depgraph

import "github.com/fyrsmithlabs/enrichd/internal/agents"

// Decision is the outcome of a dependency check. Missing lists the
// prerequisite agents that have not completed, in table order.
type Decision struct {
	Allowed bool
	Missing []agents.AgentType
}

// table maps stage -> agent -> prerequisite agents that must already be
// completed on the same record. Agents absent from the table have no
// prerequisites. The structure is a fixed chain with one cross edge (intent
// scoring reads registry-sync output), not a general graph.
var table = map[agents.Stage]map[agents.AgentType][]agents.AgentType{
	agents.StageCompanyResolution: {
		agents.AgentEmailPatternDiscovery: {agents.AgentCompanyIdentity},
		agents.AgentRoleDetection:         {agents.AgentCompanyIdentity},
	},
	agents.StagePersonEnrichment: {
		agents.AgentProfileAccessCheck:     {agents.AgentLinkedInDiscovery},
		agents.AgentEmploymentConfirmation: {agents.AgentLinkedInDiscovery},
		agents.AgentMovementHash:           {agents.AgentEmploymentConfirmation},
		agents.AgentEmailGeneration: {
			agents.AgentEmailPatternDiscovery,
			agents.AgentEmploymentConfirmation,
		},
		agents.AgentEmailVerification: {agents.AgentEmailGeneration},
	},
	agents.StageIntentScoring: {
		agents.AgentIntentScoring: {agents.AgentRegistryPull},
	},
}

// Validator checks agent prerequisites against a record's completed set.
type Validator struct {
	// Enforce disables validation when false: Validate always allows.
	Enforce bool
}

// NewValidator creates a validator with enforcement on or off.
func NewValidator(enforce bool) *Validator {
	return &Validator{Enforce: enforce}
}

// Requirements returns the prerequisite agents for an agent within a stage.
func Requirements(stage agents.Stage, agent agents.AgentType) []agents.AgentType {
	stageTable, ok := table[stage]
	if !ok {
		return nil
	}
	reqs := stageTable[agent]
	out := make([]agents.AgentType, len(reqs))
	copy(out, reqs)
	return out
}

// Validate reports whether agent may run in stage given the set of agents
// already completed on the record.
func (v *Validator) Validate(stage agents.Stage, agent agents.AgentType, completed map[agents.AgentType]bool) Decision {
	if !v.Enforce {
		return Decision{Allowed: true}
	}

	var missing []agents.AgentType
	for _, req := range Requirements(stage, agent) {
		if !completed[req] {
			missing = append(missing, req)
		}
	}
	return Decision{
		Allowed: len(missing) == 0,
		Missing: missing,
	}
}
