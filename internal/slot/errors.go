package slot

import "errors"

// Record invariant errors.
var (
	ErrGoldenRuleViolation = errors.New("email requires confirmed company and person identity")
	ErrInvalidTriValue     = errors.New("invalid tri-state value")
)

// Snapshot reconstruction errors.
var (
	ErrInvalidSnapshot    = errors.New("invalid record snapshot")
	ErrSnapshotMissingID  = errors.New("snapshot missing record id")
	ErrSnapshotNoCompany  = errors.New("snapshot missing company identity")
	ErrSnapshotBadSlot    = errors.New("snapshot has unknown slot type")
)
