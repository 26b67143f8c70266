package failure

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/enrichd/internal/agents"
)

// JobStatus is the lifecycle state of a resume job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// jobTransitions defines the allowed status transitions.
var jobTransitions = map[JobStatus][]JobStatus{
	JobPending:    {JobInProgress},
	JobInProgress: {JobCompleted, JobFailed},
	JobCompleted:  {},
	JobFailed:     {},
}

// CanTransitionTo checks if a transition to target is valid.
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// ResumeJob is a request to replay a record starting at a specific stage and
// agent once its failure has been manually repaired.
type ResumeJob struct {
	ID        string           `json:"id"`
	FailureID string           `json:"failure_id"`
	Bay       string           `json:"bay"`
	Stage     agents.Stage     `json:"stage"`
	Agent     agents.AgentType `json:"agent,omitempty"`
	Status    JobStatus        `json:"status"`
	Snapshot  map[string]any   `json:"snapshot"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// CreateResumeJob files a pending resume job against an existing failure.
// The snapshot is the record state to replay from.
func (r *Router) CreateResumeJob(failureID string, stage agents.Stage, agent agents.AgentType, snapshot map[string]any) (*ResumeJob, error) {
	if snapshot == nil {
		return nil, ErrNilSnapshot
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[failureID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFailureNotFound, failureID)
	}

	now := r.now()
	job := &ResumeJob{
		ID:        "resume_" + uuid.New().String(),
		FailureID: failureID,
		Bay:       rec.Bay,
		Stage:     stage,
		Agent:     agent,
		Status:    JobPending,
		Snapshot:  snapshot,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.jobs[job.ID] = job

	r.logger.Info("resume job created",
		zap.String("job_id", job.ID),
		zap.String("failure_id", failureID),
		zap.String("stage", string(stage)),
		zap.String("agent", string(agent)),
	)
	return job.clone(), nil
}

// PendingResumeJobs returns pending jobs in creation order.
func (r *Router) PendingResumeJobs() []*ResumeJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []*ResumeJob
	for _, job := range r.jobs {
		if job.Status == JobPending {
			pending = append(pending, job.clone())
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending
}

// UpdateResumeJobStatus transitions a job through
// pending -> in_progress -> completed|failed.
func (r *Router) UpdateResumeJobStatus(jobID string, status JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if !job.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, status)
	}
	job.Status = status
	job.UpdatedAt = r.now()

	r.logger.Info("resume job status updated",
		zap.String("job_id", jobID),
		zap.String("status", string(status)),
	)
	return nil
}

func (j *ResumeJob) clone() *ResumeJob {
	cp := *j
	return &cp
}
