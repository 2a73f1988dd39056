package job

import (
	"context"

	"go.uber.org/zap"
)

// canRetry reports whether a failed job may be scheduled for another
// attempt. A max of Unlimited never exhausts.
func canRetry(maxRetry, currentRetryCount int64) bool {
	if maxRetry == Unlimited {
		return true
	}
	return currentRetryCount < maxRetry
}

// recomputeRetryCount reconstructs the retry counter for legacy rows that
// predate the counter column: FAILED siblings sharing the lineage root,
// plus one for the root itself. Best effort — concurrently-failing
// siblings may be undercounted.
func recomputeRetryCount(ctx context.Context, store Store, j *Job, log *zap.SugaredLogger) int64 {
	if j.ParentJobID == "" {
		return 0
	}

	count, err := store.CountJobsByParentAndStatus(ctx, j.ParentJobID, StatusFailed)
	if err != nil {
		log.Errorw("Failed to count failed sibling jobs",
			"job_id", j.ID,
			"parent_job_id", j.ParentJobID,
			"error", err)
		count = 0
	}

	return count + 1
}
