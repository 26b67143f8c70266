package slot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/enrichd/internal/agents"
)

func newTestRecord() *Record {
	return &Record{
		ID:          "acme-ceo",
		CompanyID:   "acme",
		CompanyName: "Acme Corp",
		SlotType:    TypeCEO,
		PersonName:  "Jane Smith",
	}
}

func fillRecord(r *Record) {
	now := time.Now()
	r.LinkedInURL = "https://www.linkedin.com/in/jane-smith"
	r.PublicAccessible = TriTrue
	r.EmailPattern = "{first}.{last}@acmecorp.com"
	r.CompanyValid = TriTrue
	r.PersonCompanyValid = TriTrue
	r.CurrentTitle = "CEO"
	r.CurrentCompany = "Acme Corp"
	r.MovementHash = "deadbeefdeadbeef"
	_ = r.SetEmail("jane.smith@acmecorp.com", now)
}

func TestEvaluateChecklist_EmptyRecord(t *testing.T) {
	checklist := EvaluateChecklist(newTestRecord())

	assert.False(t, checklist.ReadyForCompletion)
	assert.Equal(t, []ChecklistItem{
		ItemLinkedInURL,
		ItemPublicAccessible,
		ItemEmailPattern,
		ItemEmail,
		ItemTitleCompany,
		ItemMovementHash,
	}, checklist.Missing, "missing items must preserve priority order")

	agent, ok := checklist.NextAgent()
	require.True(t, ok)
	assert.Equal(t, agents.AgentLinkedInDiscovery, agent)
}

func TestEvaluateChecklist_FilledRecord(t *testing.T) {
	rec := newTestRecord()
	fillRecord(rec)

	checklist := EvaluateChecklist(rec)
	assert.True(t, checklist.ReadyForCompletion)
	assert.Empty(t, checklist.Missing)

	_, ok := checklist.NextAgent()
	assert.False(t, ok)
}

func TestEvaluateChecklist_PriorityOrder(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *Record)
		wantItem  ChecklistItem
		wantAgent agents.AgentType
	}{
		{
			name:      "linkedin first",
			mutate:    func(r *Record) {},
			wantItem:  ItemLinkedInURL,
			wantAgent: agents.AgentLinkedInDiscovery,
		},
		{
			name: "accessibility after linkedin",
			mutate: func(r *Record) {
				r.LinkedInURL = "https://www.linkedin.com/in/jane-smith"
			},
			wantItem:  ItemPublicAccessible,
			wantAgent: agents.AgentProfileAccessCheck,
		},
		{
			name: "pattern after accessibility",
			mutate: func(r *Record) {
				r.LinkedInURL = "https://www.linkedin.com/in/jane-smith"
				r.PublicAccessible = TriFalse
			},
			wantItem:  ItemEmailPattern,
			wantAgent: agents.AgentEmailPatternDiscovery,
		},
		{
			name: "title needs both fields",
			mutate: func(r *Record) {
				fillRecord(r)
				r.CurrentCompany = ""
			},
			wantItem:  ItemTitleCompany,
			wantAgent: agents.AgentEmploymentConfirmation,
		},
		{
			name: "hash last",
			mutate: func(r *Record) {
				fillRecord(r)
				r.MovementHash = ""
			},
			wantItem:  ItemMovementHash,
			wantAgent: agents.AgentMovementHash,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newTestRecord()
			tt.mutate(rec)
			checklist := EvaluateChecklist(rec)

			item, ok := checklist.NextItem()
			require.True(t, ok)
			assert.Equal(t, tt.wantItem, item)

			agent, ok := checklist.NextAgent()
			require.True(t, ok)
			assert.Equal(t, tt.wantAgent, agent)
		})
	}
}

func TestEvaluateChecklist_Pure(t *testing.T) {
	rec := newTestRecord()
	before := *rec
	EvaluateChecklist(rec)
	assert.Equal(t, before, *rec, "evaluation must not mutate the record")
}
