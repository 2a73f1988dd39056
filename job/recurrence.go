package job

import (
	"context"
	"time"

	"github.com/fieldmark/joblane/errors"
	"github.com/fieldmark/joblane/temporal"
)

// resolveRecurrence resolves the row's effective recurrence source. A
// temporal expression reference wins; the legacy descriptor is consulted
// only when no expression id is set, with a deprecation warning logged
// once per controller lifetime. Returns (nil, nil, nil) for one-shot rows.
func (c *Controller) resolveRecurrence(ctx context.Context, j *Job) (temporal.Expression, *LegacyRecurrence, error) {
	if j.TempExprID != "" {
		if c.eval == nil {
			return nil, nil, errors.Wrapf(ErrInvalidJob,
				"job %s references temporal expression %s but no evaluator is configured",
				c.jobID, j.TempExprID)
		}
		expr, err := c.eval.Expression(ctx, j.TempExprID)
		if err != nil {
			return nil, nil, errors.Wrapf(err,
				"job %s references unusable temporal expression %s", c.jobID, j.TempExprID)
		}
		return expr, nil, nil
	}

	if j.LegacyRecurrence != nil {
		if !c.legacyWarned {
			c.log.Warnw("Job uses a legacy recurrence descriptor, prefer a temporal expression",
				"job_id", c.jobID,
				"frequency", j.LegacyRecurrence.Frequency)
			c.legacyWarned = true
		}
		expr, err := j.LegacyRecurrence.Expression()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "job %s has an unusable legacy recurrence", c.jobID)
		}
		return expr, j.LegacyRecurrence, nil
	}

	return nil, nil, nil
}

// createSuccessor chains the follow-up row for a recurrence or retry. At
// most one successor is chained per controller lifetime, and a successor
// must run strictly later than the current row — a schedule that does not
// advance must not chain rows at a single instant.
//
// Chaining is not idempotent against a crash between the decision and the
// create: a duplicate PENDING row is possible and self-correcting
// (whichever is claimed first wins, the other becomes unclaimable).
func (c *Controller) createSuccessor(ctx context.Context, j *Job, next time.Time, isRetry bool) error {
	if !c.nextRecurrence.IsZero() {
		return nil
	}
	if !next.After(c.runTime) {
		c.log.Debugw("Skipping successor at non-advancing run time",
			"job_id", c.jobID,
			"run_time", c.runTime,
			"next_run_time", next)
		return nil
	}

	parentID := j.ParentJobID
	if parentID == "" {
		parentID = j.ID
	}

	successor := *j
	if j.LegacyRecurrence != nil {
		legacy := *j.LegacyRecurrence
		successor.LegacyRecurrence = &legacy
	}
	successor.ID = ""
	successor.PreviousJobID = j.ID
	successor.ParentJobID = parentID
	successor.Status = StatusPending
	successor.StartedAt = nil
	successor.CancelledAt = nil
	successor.FinishedAt = nil
	successor.RunByInstanceID = ""
	successor.Result = ""
	successor.RunTime = next

	retries := int64(0)
	if isRetry {
		retries = c.currentRetryCount + 1
	}
	successor.CurrentRetryCount = &retries

	id, err := c.store.CreateJobWithGeneratedID(ctx, &successor)
	if err != nil {
		return errors.Wrapf(err, "failed to create successor for job %s", c.jobID)
	}

	c.nextRecurrence = next
	c.log.Debugw("Created successor job",
		"job_id", c.jobID,
		"successor_id", id,
		"run_time", next,
		"is_retry", isRetry)
	return nil
}
