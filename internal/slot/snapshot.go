package slot

import (
	"encoding/json"
	"fmt"
)

// Snapshot serializes a record for storage alongside a resume job.
func (r *Record) Snapshot() (map[string]any, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot record: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to snapshot record: %w", err)
	}
	return out, nil
}

// FromSnapshot reconstructs a record from a resume-job snapshot. It validates
// the required identity fields and fails fast rather than producing a
// partially-initialized record; callers treat a reconstruction error as a
// permanent failure.
func FromSnapshot(snapshot map[string]any) (*Record, error) {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	if rec.ID == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, ErrSnapshotMissingID)
	}
	if rec.CompanyID == "" || rec.CompanyName == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, ErrSnapshotNoCompany)
	}
	if !rec.SlotType.Valid() {
		return nil, fmt.Errorf("%w: %v (%q)", ErrInvalidSnapshot, ErrSnapshotBadSlot, rec.SlotType)
	}

	return &rec, nil
}
