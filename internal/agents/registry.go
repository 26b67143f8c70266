package agents

import (
	"errors"
	"fmt"
	"sync"
)

// Vendor names used for budget and throttle accounting.
const (
	VendorInternal    = "internal"
	VendorLinkedIn    = "linkedin"
	VendorHunter      = "hunter"
	VendorNeverBounce = "neverbounce"
	VendorDOL         = "dol"
)

// Registry errors.
var (
	ErrAgentNotRegistered = errors.New("agent not registered")
	ErrNilOperation       = errors.New("operation must not be nil")
)

// Spec describes one registered agent: which vendor its calls are accounted
// against and the static cost estimate used for pre-execution budget checks.
type Spec struct {
	Vendor        string
	EstimatedCost float64
	Op            Operation
}

// Registry maps agent types to their vendor, cost estimate, and operation.
type Registry struct {
	mu    sync.RWMutex
	specs map[AgentType]Spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[AgentType]Spec)}
}

// Register adds or replaces an agent spec.
func (r *Registry) Register(agent AgentType, spec Spec) error {
	if spec.Op == nil {
		return fmt.Errorf("%w: %s", ErrNilOperation, agent)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[agent] = spec
	return nil
}

// Lookup returns the spec for an agent type.
func (r *Registry) Lookup(agent AgentType) (Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[agent]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s", ErrAgentNotRegistered, agent)
	}
	return spec, nil
}

// Vendor returns the vendor an agent's calls are accounted against.
// Unregistered agents fall back to the internal vendor.
func (r *Registry) Vendor(agent AgentType) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if spec, ok := r.specs[agent]; ok {
		return spec.Vendor
	}
	return VendorInternal
}

// EstimatedCost returns the static pre-execution cost estimate for an agent.
// Unregistered agents estimate to zero.
func (r *Registry) EstimatedCost(agent AgentType) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.specs[agent].EstimatedCost
}

// defaultEstimates is the static cost table, in USD per call.
var defaultEstimates = map[AgentType]Spec{
	AgentCompanyIdentity:        {Vendor: VendorInternal, EstimatedCost: 0},
	AgentEmailPatternDiscovery:  {Vendor: VendorHunter, EstimatedCost: 0.008},
	AgentRoleDetection:          {Vendor: VendorInternal, EstimatedCost: 0},
	AgentLinkedInDiscovery:      {Vendor: VendorLinkedIn, EstimatedCost: 0.01},
	AgentProfileAccessCheck:     {Vendor: VendorLinkedIn, EstimatedCost: 0.002},
	AgentEmploymentConfirmation: {Vendor: VendorLinkedIn, EstimatedCost: 0.005},
	AgentEmailGeneration:        {Vendor: VendorHunter, EstimatedCost: 0.001},
	AgentEmailVerification:      {Vendor: VendorNeverBounce, EstimatedCost: 0.004},
	AgentMovementHash:           {Vendor: VendorInternal, EstimatedCost: 0},
	AgentRegistryPull:           {Vendor: VendorDOL, EstimatedCost: 0},
	AgentIntentScoring:          {Vendor: VendorInternal, EstimatedCost: 0},
}

// NewMockRegistry returns a registry with every agent bound to its
// deterministic mock operation and the default cost table. Used for mock
// mode and tests.
func NewMockRegistry() *Registry {
	r := NewRegistry()
	for agent, spec := range defaultEstimates {
		spec.Op = mockOperation(agent)
		r.specs[agent] = spec
	}
	return r
}
