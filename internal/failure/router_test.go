package failure

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/enrichd/internal/agents"
)

func TestClassify_DefaultRules(t *testing.T) {
	c := NewClassifier(nil)

	tests := []struct {
		message string
		class   Class
		rule    string
	}{
		{"vendor rate limit exceeded", ClassTemporary, "rate_limit"},
		{"HTTP 429 Too Many Requests", ClassTemporary, "rate_limit"},
		{"context deadline exceeded", ClassTemporary, "timeout"},
		{"request timed out after 30s", ClassTemporary, "timeout"},
		{"service unavailable (503)", ClassTemporary, "unavailable"},
		{"connection reset by peer", ClassTemporary, "connection"},
		{"dial tcp: no such host", ClassTemporary, "connection"},
		{"profile is private", ClassPermanent, "default"},
		{"invalid API key", ClassPermanent, "default"},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			class, rule := c.Classify(tt.message)
			assert.Equal(t, tt.class, class)
			assert.Equal(t, tt.rule, rule)
		})
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	c := NewClassifier([]Rule{
		{Name: "custom", Pattern: regexp.MustCompile(`timeout`), Class: ClassPermanent},
		{Name: "late", Pattern: regexp.MustCompile(`timeout`), Class: ClassTemporary},
	})
	class, rule := c.Classify("request timeout")
	assert.Equal(t, ClassPermanent, class)
	assert.Equal(t, "custom", rule)
}

func testContext() Context {
	return Context{Stage: agents.StagePersonEnrichment, RecordID: "acme-ceo"}
}

func TestRouteError_NewFailure(t *testing.T) {
	r := NewRouter(nil, 0, nil)

	rec := r.RouteError(errors.New("profile is private"), agents.AgentProfileAccessCheck, testContext())
	assert.Equal(t, ClassPermanent, rec.Class)
	assert.Equal(t, "default", rec.Rule)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, "person_enrichment/profile_access_check", rec.Bay)
	assert.True(t, rec.Permanent())
}

func TestRouteError_DuplicateIncrementsAttempts(t *testing.T) {
	r := NewRouter(nil, 0, nil)
	err := errors.New("profile is private")

	first := r.RouteError(err, agents.AgentProfileAccessCheck, testContext())
	second := r.RouteError(err, agents.AgentProfileAccessCheck, testContext())

	assert.Equal(t, first.ID, second.ID, "identical failures collapse into one record")
	assert.Equal(t, 2, second.Attempts)

	stats := r.Statistics()
	assert.Equal(t, 1, stats.Total)
}

func TestRouteError_DistinctRecordsDistinctFailures(t *testing.T) {
	r := NewRouter(nil, 0, nil)
	err := errors.New("profile is private")

	a := r.RouteError(err, agents.AgentProfileAccessCheck, Context{Stage: agents.StagePersonEnrichment, RecordID: "acme-ceo"})
	b := r.RouteError(err, agents.AgentProfileAccessCheck, Context{Stage: agents.StagePersonEnrichment, RecordID: "acme-cfo"})
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, r.Statistics().Total)
}

func TestRouteError_TemporaryPromotedAtCeiling(t *testing.T) {
	r := NewRouter(nil, 2, nil)
	err := errors.New("vendor timeout")

	first := r.RouteError(err, agents.AgentLinkedInDiscovery, testContext())
	assert.Equal(t, ClassTemporary, first.Class)

	second := r.RouteError(err, agents.AgentLinkedInDiscovery, testContext())
	assert.Equal(t, ClassTemporary, second.Class)

	third := r.RouteError(err, agents.AgentLinkedInDiscovery, testContext())
	assert.Equal(t, ClassPermanent, third.Class, "past the attempt ceiling only manual repair remains")
	assert.Equal(t, 3, third.Attempts)

	stats := r.Statistics()
	assert.Equal(t, 1, stats.Permanent)
	assert.Equal(t, 1, stats.PendingRepair)
	assert.Zero(t, stats.Temporary)
}

func TestStatistics_GroupedByBayAndAgent(t *testing.T) {
	r := NewRouter(nil, 0, nil)

	r.RouteError(errors.New("profile is private"), agents.AgentProfileAccessCheck, testContext())
	r.RouteError(errors.New("invalid API key"), agents.AgentEmailVerification, testContext())
	r.RouteError(errors.New("vendor timeout"), agents.AgentEmailVerification, Context{Stage: agents.StagePersonEnrichment, RecordID: "acme-cfo"})

	stats := r.Statistics()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByAgent["email_verification"])
	assert.Equal(t, 1, stats.ByBay["person_enrichment/profile_access_check"])
	assert.Equal(t, 2, stats.ByBay["person_enrichment/email_verification"])
}

func TestGet(t *testing.T) {
	r := NewRouter(nil, 0, nil)
	rec := r.RouteError(errors.New("profile is private"), agents.AgentProfileAccessCheck, testContext())

	got, err := r.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = r.Get("fail_nope")
	assert.ErrorIs(t, err, ErrFailureNotFound)
}

func TestReport(t *testing.T) {
	r := NewRouter(nil, 0, nil)
	assert.Equal(t, "no failures recorded\n", r.Report())

	r.RouteError(errors.New("profile is private"), agents.AgentProfileAccessCheck, testContext())
	report := r.Report()
	assert.Contains(t, report, "1 failure(s)")
	assert.Contains(t, report, "bay person_enrichment/profile_access_check")
	assert.Contains(t, report, "profile is private")
	assert.Contains(t, report, "resume jobs pending: 0")
}

func TestCreateResumeJob(t *testing.T) {
	r := NewRouter(nil, 0, nil)
	rec := r.RouteError(errors.New("profile is private"), agents.AgentProfileAccessCheck, testContext())

	snapshot := map[string]any{"id": "acme-ceo", "company_id": "acme", "company_name": "Acme Corp", "slot_type": "CEO"}
	job, err := r.CreateResumeJob(rec.ID, agents.StagePersonEnrichment, agents.AgentProfileAccessCheck, snapshot)
	require.NoError(t, err)
	assert.Equal(t, JobPending, job.Status)
	assert.Equal(t, rec.Bay, job.Bay)
	assert.NotEmpty(t, job.ID)
}

func TestCreateResumeJob_Validation(t *testing.T) {
	r := NewRouter(nil, 0, nil)

	_, err := r.CreateResumeJob("fail_nope", agents.StagePersonEnrichment, "", map[string]any{})
	assert.ErrorIs(t, err, ErrFailureNotFound)

	rec := r.RouteError(errors.New("profile is private"), agents.AgentProfileAccessCheck, testContext())
	_, err = r.CreateResumeJob(rec.ID, agents.StagePersonEnrichment, "", nil)
	assert.ErrorIs(t, err, ErrNilSnapshot)
}

func TestResumeJob_Lifecycle(t *testing.T) {
	r := NewRouter(nil, 0, nil)
	rec := r.RouteError(errors.New("profile is private"), agents.AgentProfileAccessCheck, testContext())
	job, err := r.CreateResumeJob(rec.ID, agents.StagePersonEnrichment, "", map[string]any{"id": "acme-ceo"})
	require.NoError(t, err)

	// Completing a pending job skips in_progress and must fail.
	err = r.UpdateResumeJobStatus(job.ID, JobCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, r.UpdateResumeJobStatus(job.ID, JobInProgress))
	require.NoError(t, r.UpdateResumeJobStatus(job.ID, JobCompleted))

	// Terminal states reject further transitions.
	err = r.UpdateResumeJobStatus(job.ID, JobFailed)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.ErrorIs(t, r.UpdateResumeJobStatus("resume_nope", JobInProgress), ErrJobNotFound)
}

func TestPendingResumeJobs_CreationOrder(t *testing.T) {
	r := NewRouter(nil, 0, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	r.SetClock(func() time.Time {
		current = current.Add(time.Second)
		return current
	})

	rec := r.RouteError(errors.New("profile is private"), agents.AgentProfileAccessCheck, testContext())
	a, err := r.CreateResumeJob(rec.ID, agents.StagePersonEnrichment, "", map[string]any{"id": "a"})
	require.NoError(t, err)
	b, err := r.CreateResumeJob(rec.ID, agents.StagePersonEnrichment, "", map[string]any{"id": "b"})
	require.NoError(t, err)

	pending := r.PendingResumeJobs()
	require.Len(t, pending, 2)
	assert.Equal(t, a.ID, pending[0].ID)
	assert.Equal(t, b.ID, pending[1].ID)

	require.NoError(t, r.UpdateResumeJobStatus(a.ID, JobInProgress))
	pending = r.PendingResumeJobs()
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)
}
