package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/enrichd/internal/agents"
	"github.com/fyrsmithlabs/enrichd/internal/failure"
	"github.com/fyrsmithlabs/enrichd/internal/slot"
)

// Resume replays a single record through the stage sequence starting at
// fromStage. If fromAgent is non-empty, earlier agents within fromStage are
// skipped. Work completed before the entry point is never redone: the
// completed-agent set is seeded from the record's own fields.
func (o *Orchestrator) Resume(ctx context.Context, rec *slot.Record, fromStage agents.Stage, fromAgent agents.AgentType, companyMaster []string) (*CompanyResult, error) {
	if rec == nil {
		return nil, ErrNilRecord
	}
	return o.run(ctx, rec.CompanyID, rec.CompanyName, []*slot.Record{rec}, companyMaster, fromStage, fromAgent)
}

// ResumePendingJobs drains the router's pending resume queue. Each job's
// snapshot is reconstructed and replayed from the job's stage and agent; a
// snapshot that fails validation is filed as a permanent failure and the job
// is marked failed without retry. Returns the completed and failed counts.
func (o *Orchestrator) ResumePendingJobs(ctx context.Context, companyMaster []string) (completed, failed int) {
	for _, job := range o.router.PendingResumeJobs() {
		if ctx.Err() != nil {
			return completed, failed
		}
		if err := o.router.UpdateResumeJobStatus(job.ID, failure.JobInProgress); err != nil {
			o.logger.Warn("skipping resume job", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}

		rec, err := slot.FromSnapshot(job.Snapshot)
		if err != nil {
			o.router.RouteError(err, job.Agent, failure.Context{Stage: job.Stage})
			o.failJob(job.ID)
			failed++
			continue
		}

		if _, err := o.Resume(ctx, rec, job.Stage, job.Agent, companyMaster); err != nil {
			o.logger.Error("resume run aborted",
				zap.String("job_id", job.ID),
				zap.String("record_id", rec.ID),
				zap.Error(err),
			)
			o.failJob(job.ID)
			failed++
			continue
		}

		if err := o.router.UpdateResumeJobStatus(job.ID, failure.JobCompleted); err != nil {
			o.logger.Warn("resume job finished but status update failed",
				zap.String("job_id", job.ID), zap.Error(err))
		}
		completed++
	}
	return completed, failed
}

func (o *Orchestrator) failJob(jobID string) {
	if err := o.router.UpdateResumeJobStatus(jobID, failure.JobFailed); err != nil {
		o.logger.Warn("failed to mark resume job failed",
			zap.String("job_id", jobID), zap.Error(err))
	}
}
