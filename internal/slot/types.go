// Package slot defines the slot record, the mutable unit of work in the
// enrichment pipeline, along with its lifecycle invariants and the pure
// checklist evaluator the dispatcher consults.
package slot

import (
	"bytes"
	"time"
)

// Type is a named role at a company to be filled with a verified contact.
type Type string

const (
	TypeCEO Type = "CEO"
	TypeCFO Type = "CFO"
	TypeHR  Type = "HR"
)

// ValidTypes lists the fixed slot role enumeration.
var ValidTypes = []Type{TypeCEO, TypeCFO, TypeHR}

// Valid reports whether t is a known slot type.
func (t Type) Valid() bool {
	for _, v := range ValidTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Tri is a three-valued flag: unknown until an agent records a result.
type Tri int

const (
	TriUnknown Tri = iota
	TriTrue
	TriFalse
)

// Known reports whether the flag has been set either way.
func (t Tri) Known() bool { return t != TriUnknown }

// True reports whether the flag is affirmatively true.
func (t Tri) True() bool { return t == TriTrue }

// False reports whether the flag is affirmatively false.
func (t Tri) False() bool { return t == TriFalse }

// TriOf converts a bool into a known Tri value.
func TriOf(v bool) Tri {
	if v {
		return TriTrue
	}
	return TriFalse
}

// MarshalJSON encodes unknown as null, otherwise as a bool.
func (t Tri) MarshalJSON() ([]byte, error) {
	switch t {
	case TriTrue:
		return []byte("true"), nil
	case TriFalse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes null as unknown, bools as known values.
func (t *Tri) UnmarshalJSON(data []byte) error {
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = TriUnknown
	case bytes.Equal(data, []byte("true")):
		*t = TriTrue
	case bytes.Equal(data, []byte("false")):
		*t = TriFalse
	default:
		return ErrInvalidTriValue
	}
	return nil
}

// Record is one slot under enrichment. It is mutated exclusively through the
// setters below, each of which stamps LastUpdated. Once Complete is true the
// record is never routed again; permanently failed records keep Complete
// false with an attached failure record.
type Record struct {
	ID          string `json:"id"`
	CompanyID   string `json:"company_id"`
	CompanyName string `json:"company_name"`
	SlotType    Type   `json:"slot_type"`

	PersonName       string `json:"person_name"`
	LinkedInURL      string `json:"linkedin_url,omitempty"`
	PublicAccessible Tri    `json:"public_accessible"`
	Email            string `json:"email,omitempty"`
	EmailPattern     string `json:"email_pattern,omitempty"`
	EmailVerified    bool   `json:"email_verified"`
	CurrentTitle     string `json:"current_title,omitempty"`
	CurrentCompany   string `json:"current_company,omitempty"`
	MovementHash     string `json:"movement_hash,omitempty"`

	CompanyValid         Tri    `json:"company_valid"`
	CompanyInvalidReason string `json:"company_invalid_reason,omitempty"`
	PersonCompanyValid   Tri    `json:"person_company_valid"`
	SkipReason           string `json:"skip_reason,omitempty"`

	Complete        bool    `json:"slot_complete"`
	CostAccumulated float64 `json:"slot_cost_accumulated"`
	CostLimit       float64 `json:"slot_cost_limit"`

	LastUpdated time.Time `json:"last_updated"`
}

// Touch stamps LastUpdated.
func (r *Record) Touch(now time.Time) {
	r.LastUpdated = now
}

// SetEmail records a generated email. It enforces the golden rule: no contact
// channel may exist unless both company and person identity are confirmed.
func (r *Record) SetEmail(email string, now time.Time) error {
	if !r.CompanyValid.True() || !r.PersonCompanyValid.True() {
		return ErrGoldenRuleViolation
	}
	r.Email = email
	r.Touch(now)
	return nil
}

// AddCost accumulates spend against the slot and stamps LastUpdated.
func (r *Record) AddCost(amount float64, now time.Time) {
	r.CostAccumulated += amount
	r.Touch(now)
}

// MarkComplete flags the record as done. Completion is terminal.
func (r *Record) MarkComplete(now time.Time) {
	r.Complete = true
	r.Touch(now)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	cp := *r
	return &cp
}
