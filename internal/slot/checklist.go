package slot

import "github.com/fyrsmithlabs/enrichd/internal/agents"

// ChecklistItem names one field-presence requirement for slot completion.
type ChecklistItem string

const (
	ItemLinkedInURL      ChecklistItem = "linkedin_url"
	ItemPublicAccessible ChecklistItem = "public_accessible"
	ItemEmailPattern     ChecklistItem = "email_pattern"
	ItemEmail            ChecklistItem = "email"
	ItemTitleCompany     ChecklistItem = "title_company"
	ItemMovementHash     ChecklistItem = "movement_hash"
)

// checklistOrder is the fixed priority order: the dispatcher fills the
// highest-priority missing item first. LinkedIn discovery comes first and
// hashing last because later steps assume earlier data exists.
var checklistOrder = []ChecklistItem{
	ItemLinkedInURL,
	ItemPublicAccessible,
	ItemEmailPattern,
	ItemEmail,
	ItemTitleCompany,
	ItemMovementHash,
}

// itemAgents maps each checklist item to the agent type that fills it.
var itemAgents = map[ChecklistItem]agents.AgentType{
	ItemLinkedInURL:      agents.AgentLinkedInDiscovery,
	ItemPublicAccessible: agents.AgentProfileAccessCheck,
	ItemEmailPattern:     agents.AgentEmailPatternDiscovery,
	ItemEmail:            agents.AgentEmailGeneration,
	ItemTitleCompany:     agents.AgentEmploymentConfirmation,
	ItemMovementHash:     agents.AgentMovementHash,
}

// Checklist is the result of evaluating a record against the completion
// requirements. Missing preserves priority order.
type Checklist struct {
	Missing            []ChecklistItem
	ReadyForCompletion bool
}

// NextItem returns the highest-priority missing item.
func (c Checklist) NextItem() (ChecklistItem, bool) {
	if len(c.Missing) == 0 {
		return "", false
	}
	return c.Missing[0], true
}

// NextAgent returns the agent type that fills the highest-priority missing
// item.
func (c Checklist) NextAgent() (agents.AgentType, bool) {
	item, ok := c.NextItem()
	if !ok {
		return "", false
	}
	return itemAgents[item], true
}

// AgentFor returns the agent type that fills a checklist item.
func AgentFor(item ChecklistItem) agents.AgentType {
	return itemAgents[item]
}

// EvaluateChecklist inspects a record and reports which completion items are
// missing, in priority order. Pure: no side effects, no I/O.
func EvaluateChecklist(r *Record) Checklist {
	var missing []ChecklistItem
	for _, item := range checklistOrder {
		if itemMissing(r, item) {
			missing = append(missing, item)
		}
	}
	return Checklist{
		Missing:            missing,
		ReadyForCompletion: len(missing) == 0,
	}
}

func itemMissing(r *Record, item ChecklistItem) bool {
	switch item {
	case ItemLinkedInURL:
		return r.LinkedInURL == ""
	case ItemPublicAccessible:
		return !r.PublicAccessible.Known()
	case ItemEmailPattern:
		return r.EmailPattern == ""
	case ItemEmail:
		return r.Email == ""
	case ItemTitleCompany:
		return r.CurrentTitle == "" || r.CurrentCompany == ""
	case ItemMovementHash:
		return r.MovementHash == ""
	default:
		return false
	}
}
