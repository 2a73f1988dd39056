package job

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fieldmark/joblane/errors"
	"github.com/fieldmark/joblane/temporal"
)

// Options configures a Controller.
type Options struct {
	// InstanceID identifies this worker instance; Initialize refuses rows
	// accepted by a different instance.
	InstanceID string
	// RetryBackoff is how long after a failure the retry successor becomes
	// eligible to run.
	RetryBackoff time.Duration
	// Identity resolves run-as identities for the execution context. Optional.
	Identity IdentityResolver
}

// Controller owns the state transitions of a single job row: claim,
// initialize, run, finish or fail. Construct one controller per attempt;
// the successor sentinel only holds within one controller's lifetime.
//
// Operations within one controller are strictly sequential. Cross-instance
// coordination happens entirely through the store: the claim token on row
// updates makes the claim's check-then-set safe against a concurrent
// claimer, whose write loses and reports a conflict.
type Controller struct {
	store    Store
	eval     temporal.Evaluator
	executor Executor
	opts     Options
	log      *zap.SugaredLogger

	jobID             string
	runTime           time.Time
	maxRetry          int64
	currentRetryCount int64

	// nextRecurrence is the successor sentinel: zero until a successor row
	// is chained, after which no second successor may be created.
	nextRecurrence time.Time

	legacyWarned bool
}

// NewController binds a controller to a job row. The row is read once to
// seed run time and retry bookkeeping; rows predating the retry counter
// get it recomputed from FAILED siblings.
func NewController(ctx context.Context, store Store, eval temporal.Evaluator, executor Executor, opts Options, log *zap.SugaredLogger, jobID string) (*Controller, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	c := &Controller{
		store:    store,
		eval:     eval,
		executor: executor,
		opts:     opts,
		log:      log,
		jobID:    jobID,
	}

	j, err := c.getJob(ctx)
	if err != nil {
		return nil, err
	}

	c.runTime = j.RunTime
	c.maxRetry = j.MaxRetry
	if j.CurrentRetryCount != nil {
		c.currentRetryCount = *j.CurrentRetryCount
	} else {
		// backward compatibility with rows predating the counter column
		c.currentRetryCount = recomputeRetryCount(ctx, store, j, log)
	}

	return c, nil
}

// JobID returns the id of the bound row.
func (c *Controller) JobID() string {
	return c.jobID
}

// getJob fetches the freshest copy of the bound row.
func (c *Controller) getJob(ctx context.Context) (*Job, error) {
	j, err := c.store.GetJob(ctx, c.jobID)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load job %s", c.jobID)
	}
	return j, nil
}

// Claim takes ownership of the row for this attempt: refuses rows that
// were already started or cancelled, then marks the row running with the
// start time set. The conflict check and the write are two store
// operations; the claim token on the write closes the window between them.
func (c *Controller) Claim(ctx context.Context) error {
	j, err := c.getJob(ctx)
	if err != nil {
		return err
	}

	if j.CancelledAt != nil || j.StartedAt != nil {
		return errors.Wrapf(ErrClaimConflict, "job %s", c.jobID)
	}

	now := time.Now()
	j.StartedAt = &now
	j.Status = StatusRunning
	if err := c.store.UpdateJob(ctx, j); err != nil {
		if errors.Is(err, ErrStaleJob) {
			return errors.Wrapf(ErrClaimConflict, "job %s", c.jobID)
		}
		return errors.Wrapf(err, "unable to mark job %s running", c.jobID)
	}

	c.log.Infow("Job claimed",
		"job_id", c.jobID,
		"instance_id", c.opts.InstanceID)
	return nil
}

// Initialize verifies ownership and configures the row's recurrence before
// execution, so a recurring schedule survives even if this run crashes.
// When the recurrence budget allows and the schedule yields a next
// occurrence, a successor row is chained eagerly.
func (c *Controller) Initialize(ctx context.Context) error {
	j, err := c.getJob(ctx)
	if err != nil {
		return err
	}

	if j.RunByInstanceID != c.opts.InstanceID {
		return errors.Wrapf(ErrInvalidJob,
			"job %s accepted by instance %q, this instance is %q",
			c.jobID, j.RunByInstanceID, c.opts.InstanceID)
	}

	expr, legacy, err := c.resolveRecurrence(ctx, j)
	if err != nil {
		return err
	}

	if expr != nil && c.nextRecurrence.IsZero() {
		if legacy != nil && j.CurrentRecurrenceCount == 0 && legacy.CurrentCount > 0 {
			// legacy rows carried the count on the descriptor
			j.CurrentRecurrenceCount = legacy.CurrentCount
		}

		if j.MaxRecurrenceCount == Unlimited || j.CurrentRecurrenceCount+1 <= j.MaxRecurrenceCount {
			if next, ok := expr.Next(time.Now()); ok && next.After(c.runTime) {
				j.CurrentRecurrenceCount++
				if legacy != nil {
					legacy.CurrentCount++
				}
				if err := c.createSuccessor(ctx, j, next, false); err != nil {
					return err
				}
			}
		}
	}

	if err := c.store.UpdateJob(ctx, j); err != nil {
		return errors.Wrapf(err, "unable to persist recurrence bookkeeping for job %s", c.jobID)
	}

	if !c.nextRecurrence.IsZero() {
		c.log.Infow("Job initialized",
			"job_id", c.jobID,
			"service_name", j.ServiceName,
			"next_run_time", c.nextRecurrence)
	} else {
		c.log.Debugw("Job initialized", "job_id", c.jobID, "service_name", j.ServiceName)
	}
	return nil
}

// Run resolves the execution input and delegates to the executor.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	if c.executor == nil {
		return nil, errors.Wrapf(ErrInvalidJob, "job %s has no executor", c.jobID)
	}

	rc, err := c.ResolveContext(ctx)
	if err != nil {
		return nil, err
	}
	if rc.ServiceName == "" {
		return nil, errors.Wrapf(ErrInvalidJob, "job %s has no service name", c.jobID)
	}

	return c.executor.Execute(ctx, rc.ServiceName, rc.Context)
}

// Finish records a FINISHED outcome with the truncated result summary.
// The executor has already completed, so a bookkeeping write failure is
// logged, never returned.
func (c *Controller) Finish(ctx context.Context, result *Result) error {
	j, err := c.getJob(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	j.Status = StatusFinished
	j.FinishedAt = &now
	if summary := result.Summary(); summary != "" {
		j.Result = truncateResult(summary)
	}

	if err := c.store.UpdateJob(ctx, j); err != nil {
		c.log.Errorw("Cannot record job finish",
			"job_id", c.jobID,
			"error", err)
	}
	return nil
}

// Fail records a FAILED outcome. If no successor was chained this lifetime
// and the retry policy allows another attempt, a retry successor is
// chained at now plus the configured backoff first. Bookkeeping write
// failures are logged, never returned — the outcome is already determined.
func (c *Controller) Fail(ctx context.Context, execErr error) error {
	j, err := c.getJob(ctx)
	if err != nil {
		return err
	}

	if c.nextRecurrence.IsZero() {
		if canRetry(c.maxRetry, c.currentRetryCount) {
			next := time.Now().Add(c.opts.RetryBackoff)
			if err := c.createSuccessor(ctx, j, next, true); err != nil {
				c.log.Errorw("Unable to reschedule failed job",
					"job_id", c.jobID,
					"error", err)
			} else {
				c.log.Infow("Job failed, retry scheduled",
					"job_id", c.jobID,
					"retry_run_time", next,
					"retry_count", c.currentRetryCount+1)
			}
		} else {
			c.log.Warnw("Job failed with max retries hit, not rescheduling",
				"job_id", c.jobID,
				"max_retry", c.maxRetry,
				"current_retry_count", c.currentRetryCount)
		}
	}

	now := time.Now()
	j.Status = StatusFailed
	j.FinishedAt = &now
	if execErr != nil {
		j.Result = truncateResult(execErr.Error())
	}

	if err := c.store.UpdateJob(ctx, j); err != nil {
		c.log.Errorw("Cannot record job failure",
			"job_id", c.jobID,
			"error", err)
	}
	return nil
}

// Execute drives one full attempt the way a worker would: claim,
// initialize, run, then finish or fail on the executor outcome. An error
// Result finishes with the error as its summary; only a returned executor
// error fails the row.
func (c *Controller) Execute(ctx context.Context) error {
	if err := c.Claim(ctx); err != nil {
		return err
	}
	if err := c.Initialize(ctx); err != nil {
		return err
	}
	result, err := c.Run(ctx)
	if err != nil {
		return c.Fail(ctx, err)
	}
	return c.Finish(ctx, result)
}
