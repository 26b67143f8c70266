package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/enrichd/internal/agents"
)

func TestValidate_EmailBeforePattern(t *testing.T) {
	v := NewValidator(true)

	dec := v.Validate(agents.StagePersonEnrichment, agents.AgentEmailGeneration, map[agents.AgentType]bool{
		agents.AgentEmploymentConfirmation: true,
	})
	assert.False(t, dec.Allowed)
	assert.Equal(t, []agents.AgentType{agents.AgentEmailPatternDiscovery}, dec.Missing)
}

func TestValidate_AllPrerequisitesMet(t *testing.T) {
	v := NewValidator(true)

	dec := v.Validate(agents.StagePersonEnrichment, agents.AgentEmailGeneration, map[agents.AgentType]bool{
		agents.AgentEmailPatternDiscovery:  true,
		agents.AgentEmploymentConfirmation: true,
	})
	assert.True(t, dec.Allowed)
	assert.Empty(t, dec.Missing)
}

func TestValidate_MissingListedInOrder(t *testing.T) {
	v := NewValidator(true)

	dec := v.Validate(agents.StagePersonEnrichment, agents.AgentEmailGeneration, nil)
	assert.False(t, dec.Allowed)
	assert.Equal(t, []agents.AgentType{
		agents.AgentEmailPatternDiscovery,
		agents.AgentEmploymentConfirmation,
	}, dec.Missing)
}

func TestValidate_NoPrerequisites(t *testing.T) {
	v := NewValidator(true)

	dec := v.Validate(agents.StagePersonEnrichment, agents.AgentLinkedInDiscovery, nil)
	assert.True(t, dec.Allowed, "agents absent from the table have no prerequisites")

	dec = v.Validate(agents.StageCompanyResolution, agents.AgentCompanyIdentity, nil)
	assert.True(t, dec.Allowed)
}

func TestValidate_EnforcementOff(t *testing.T) {
	v := NewValidator(false)

	dec := v.Validate(agents.StagePersonEnrichment, agents.AgentEmailGeneration, nil)
	assert.True(t, dec.Allowed, "validation disabled must always allow")
}

func TestValidate_Chain(t *testing.T) {
	v := NewValidator(true)

	tests := []struct {
		name      string
		stage     agents.Stage
		agent     agents.AgentType
		completed map[agents.AgentType]bool
		allowed   bool
	}{
		{
			name:    "pattern before identity",
			stage:   agents.StageCompanyResolution,
			agent:   agents.AgentEmailPatternDiscovery,
			allowed: false,
		},
		{
			name:  "pattern after identity",
			stage: agents.StageCompanyResolution,
			agent: agents.AgentEmailPatternDiscovery,
			completed: map[agents.AgentType]bool{
				agents.AgentCompanyIdentity: true,
			},
			allowed: true,
		},
		{
			name:    "hash before employment",
			stage:   agents.StagePersonEnrichment,
			agent:   agents.AgentMovementHash,
			allowed: false,
		},
		{
			name:    "verification before generation",
			stage:   agents.StagePersonEnrichment,
			agent:   agents.AgentEmailVerification,
			allowed: false,
		},
		{
			name:    "scoring before registry pull",
			stage:   agents.StageIntentScoring,
			agent:   agents.AgentIntentScoring,
			allowed: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := v.Validate(tt.stage, tt.agent, tt.completed)
			assert.Equal(t, tt.allowed, dec.Allowed)
		})
	}
}

func TestRequirements_CopyIsolated(t *testing.T) {
	reqs := Requirements(agents.StagePersonEnrichment, agents.AgentEmailGeneration)
	assert.Len(t, reqs, 2)

	reqs[0] = agents.AgentIntentScoring
	again := Requirements(agents.StagePersonEnrichment, agents.AgentEmailGeneration)
	assert.Equal(t, agents.AgentEmailPatternDiscovery, again[0], "callers must not mutate the table")
}
