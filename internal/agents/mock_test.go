package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockCompanyIdentity(t *testing.T) {
	tests := []struct {
		name    string
		company string
		master  []string
		valid   bool
	}{
		{"exact match", "Acme Corp", []string{"Acme Corp", "Globex"}, true},
		{"case insensitive", "acme corp", []string{"Acme Corp"}, true},
		{"whitespace trimmed", " Acme Corp ", []string{"Acme Corp"}, true},
		{"not in master", "Evil Corp", []string{"Acme Corp"}, false},
		{"empty master accepts all", "Anything Inc", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := mockCompanyIdentity(context.Background(), Input{
				CompanyName:   tt.company,
				CompanyMaster: tt.master,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Data["company_valid"])
			if !tt.valid {
				assert.Equal(t, "not in company master", res.Data["company_invalid_reason"])
			}
		})
	}
}

func TestMockEmailGeneration_AppliesPattern(t *testing.T) {
	res, err := mockEmailGeneration(context.Background(), Input{
		PersonName:   "Jane Marie Smith",
		EmailPattern: "{first}.{last}@acmecorp.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "jane.smith@acmecorp.com", res.Data["email"])
}

func TestMockEmailGeneration_DerivesPattern(t *testing.T) {
	res, err := mockEmailGeneration(context.Background(), Input{
		PersonName:  "Jane Smith",
		CompanyName: "Acme Corp",
	})
	require.NoError(t, err)
	assert.Equal(t, "jane.smith@acmecorp.com", res.Data["email"])
}

func TestMockMovementHash_Deterministic(t *testing.T) {
	in := Input{PersonName: "Jane Smith", CurrentTitle: "CEO", CurrentCompany: "Acme Corp"}

	a, err := mockMovementHash(context.Background(), in)
	require.NoError(t, err)
	b, err := mockMovementHash(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, a.Data["movement_hash"], b.Data["movement_hash"])

	in.CurrentCompany = "Globex"
	c, err := mockMovementHash(context.Background(), in)
	require.NoError(t, err)
	assert.NotEqual(t, a.Data["movement_hash"], c.Data["movement_hash"],
		"a job change must produce a different hash")
}

func TestMockIntentScoring_Range(t *testing.T) {
	res, err := mockIntentScoring(context.Background(), Input{CompanyID: "acme", RecordID: "acme-ceo"})
	require.NoError(t, err)
	score, ok := res.Data["intent_score"].(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.Less(t, score, 1.0)
}

func TestMockDomain(t *testing.T) {
	assert.Equal(t, "acmecorp.com", mockDomain("Acme Corp"))
	assert.Equal(t, "7eleven.com", mockDomain("7-Eleven"))
	assert.Equal(t, "example.com", mockDomain("!!!"))
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name  string
		first string
		last  string
	}{
		{"Jane Smith", "jane", "smith"},
		{"Jane Marie Smith", "jane", "smith"},
		{"Prince", "prince", "prince"},
		{"", "unknown", "unknown"},
	}
	for _, tt := range tests {
		first, last := splitName(tt.name)
		assert.Equal(t, tt.first, first)
		assert.Equal(t, tt.last, last)
	}
}
