package agents

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// mockOperation returns a deterministic in-process operation for an agent
// type. Mock operations never fail and never perform I/O, which makes them
// suitable for mock mode and for exercising the full engine in tests.
func mockOperation(agent AgentType) Operation {
	switch agent {
	case AgentCompanyIdentity:
		return mockCompanyIdentity
	case AgentEmailPatternDiscovery:
		return mockEmailPatternDiscovery
	case AgentRoleDetection:
		return mockRoleDetection
	case AgentLinkedInDiscovery:
		return mockLinkedInDiscovery
	case AgentProfileAccessCheck:
		return mockProfileAccessCheck
	case AgentEmploymentConfirmation:
		return mockEmploymentConfirmation
	case AgentEmailGeneration:
		return mockEmailGeneration
	case AgentEmailVerification:
		return mockEmailVerification
	case AgentMovementHash:
		return mockMovementHash
	case AgentRegistryPull:
		return mockRegistryPull
	case AgentIntentScoring:
		return mockIntentScoring
	default:
		return func(ctx context.Context, in Input) (*Result, error) {
			return nil, fmt.Errorf("no mock operation for agent %s", agent)
		}
	}
}

func mockCompanyIdentity(_ context.Context, in Input) (*Result, error) {
	valid := len(in.CompanyMaster) == 0
	for _, name := range in.CompanyMaster {
		if strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(in.CompanyName)) {
			valid = true
			break
		}
	}
	data := map[string]any{"company_valid": valid}
	if !valid {
		data["company_invalid_reason"] = "not in company master"
	}
	return &Result{Success: true, Data: data}, nil
}

func mockEmailPatternDiscovery(_ context.Context, in Input) (*Result, error) {
	return &Result{
		Success: true,
		Data: map[string]any{
			"email_pattern": "{first}.{last}@" + mockDomain(in.CompanyName),
		},
		Cost: 0.008,
	}, nil
}

func mockRoleDetection(_ context.Context, _ Input) (*Result, error) {
	return &Result{Success: true, Data: map[string]any{"missing_roles": []string{}}}, nil
}

func mockLinkedInDiscovery(_ context.Context, in Input) (*Result, error) {
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(in.PersonName), " ", "-"))
	return &Result{
		Success: true,
		Data:    map[string]any{"linkedin_url": "https://www.linkedin.com/in/" + slug},
		Cost:    0.01,
	}, nil
}

func mockProfileAccessCheck(_ context.Context, _ Input) (*Result, error) {
	return &Result{Success: true, Data: map[string]any{"public_accessible": true}, Cost: 0.002}, nil
}

func mockEmploymentConfirmation(_ context.Context, in Input) (*Result, error) {
	return &Result{
		Success: true,
		Data: map[string]any{
			"current_title":        in.SlotType,
			"current_company":      in.CompanyName,
			"person_company_valid": true,
		},
		Cost: 0.005,
	}, nil
}

func mockEmailGeneration(_ context.Context, in Input) (*Result, error) {
	pattern := in.EmailPattern
	if pattern == "" {
		pattern = "{first}.{last}@" + mockDomain(in.CompanyName)
	}
	first, last := splitName(in.PersonName)
	email := strings.NewReplacer("{first}", first, "{last}", last).Replace(pattern)
	return &Result{Success: true, Data: map[string]any{"email": email}, Cost: 0.001}, nil
}

func mockEmailVerification(_ context.Context, _ Input) (*Result, error) {
	return &Result{Success: true, Data: map[string]any{"email_verified": true}, Cost: 0.004}, nil
}

func mockMovementHash(_ context.Context, in Input) (*Result, error) {
	h := fnv.New64a()
	h.Write([]byte(in.PersonName + "|" + in.CurrentTitle + "|" + in.CurrentCompany))
	return &Result{
		Success: true,
		Data:    map[string]any{"movement_hash": fmt.Sprintf("%016x", h.Sum64())},
	}, nil
}

func mockRegistryPull(_ context.Context, in Input) (*Result, error) {
	return &Result{
		Success: true,
		Data:    map[string]any{"filings": []string{"renewal:" + in.CompanyID}},
	}, nil
}

func mockIntentScoring(_ context.Context, in Input) (*Result, error) {
	h := fnv.New32a()
	h.Write([]byte(in.CompanyID + "|" + in.RecordID))
	score := float64(h.Sum32()%100) / 100.0
	return &Result{Success: true, Data: map[string]any{"intent_score": score}}, nil
}

func mockDomain(companyName string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return -1
		}
	}, companyName)
	if cleaned == "" {
		cleaned = "example"
	}
	return cleaned + ".com"
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(strings.ToLower(name))
	if len(parts) == 0 {
		return "unknown", "unknown"
	}
	if len(parts) == 1 {
		return parts[0], parts[0]
	}
	return parts[0], parts[len(parts)-1]
}
