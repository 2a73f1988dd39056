// Package job implements the lifecycle of durably-persisted, recurring,
// retryable jobs: the claim protocol, recurrence chaining, retry
// bookkeeping, and terminal-state accounting over rows in a shared store.
package job

import (
	"encoding/json"
	"time"

	"github.com/fieldmark/joblane/errors"
	"github.com/fieldmark/joblane/temporal"
)

// Status represents the current state of a job row.
type Status string

const (
	// StatusPending means the row is waiting to be claimed by a worker.
	StatusPending Status = "pending"
	// StatusRunning means a worker instance has claimed the row.
	StatusRunning Status = "running"
	// StatusFinished means the run completed; the result field carries the summary.
	StatusFinished Status = "finished"
	// StatusFailed means the run failed; a retry successor may have been chained.
	StatusFailed Status = "failed"
)

// IsValidStatus returns true if the status string is a valid Status.
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusRunning, StatusFinished, StatusFailed:
		return true
	default:
		return false
	}
}

// Unlimited disables a recurrence or retry budget.
const Unlimited int64 = -1

// MaxResultLen caps the stored human-readable outcome summary.
const MaxResultLen = 255

// Job is one persisted row representing a single scheduled execution
// attempt. Successor rows (recurrences and retries) link back through
// PreviousJobID and share the lineage root in ParentJobID.
type Job struct {
	ID            string `json:"id"`
	ParentJobID   string `json:"parent_job_id,omitempty"`
	PreviousJobID string `json:"previous_job_id,omitempty"`

	ServiceName   string `json:"service_name,omitempty"`
	RuntimeDataID string `json:"runtime_data_id,omitempty"`
	RunAs         string `json:"run_as,omitempty"`

	RunTime                time.Time         `json:"run_time"`
	TempExprID             string            `json:"temp_expr_id,omitempty"`
	LegacyRecurrence       *LegacyRecurrence `json:"legacy_recurrence,omitempty"`
	MaxRecurrenceCount     int64             `json:"max_recurrence_count"`
	CurrentRecurrenceCount int64             `json:"current_recurrence_count"`

	MaxRetry int64 `json:"max_retry"`
	// CurrentRetryCount is nil on legacy rows that predate the counter
	// column; the controller recomputes it from FAILED siblings.
	CurrentRetryCount *int64 `json:"current_retry_count,omitempty"`

	RunByInstanceID string     `json:"run_by_instance_id,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`

	Status Status `json:"status"`
	Result string `json:"result,omitempty"`

	// ClaimToken is the optimistic-concurrency version of the row; every
	// persisted update must carry the token it read.
	ClaimToken int64 `json:"claim_token"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Claimable reports whether a worker may take ownership of the row.
func (j *Job) Claimable() bool {
	return j.Status == StatusPending && j.StartedAt == nil && j.CancelledAt == nil
}

// Terminal reports whether the row has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == StatusFinished || j.Status == StatusFailed
}

// Legacy recurrence descriptor frequencies.
const (
	FreqMinutely = "minutely"
	FreqHourly   = "hourly"
	FreqDaily    = "daily"
	FreqWeekly   = "weekly"
	FreqMonthly  = "monthly"
	FreqYearly   = "yearly"
)

// LegacyRecurrence is the pre-expression recurrence descriptor still
// carried by old rows. It converts to an interval expression; new rows
// should reference a temporal expression instead.
type LegacyRecurrence struct {
	Frequency    string `json:"frequency"`
	Interval     int    `json:"interval"`
	CurrentCount int64  `json:"current_count"`
}

// Expression converts the descriptor to an evaluable interval expression.
func (r *LegacyRecurrence) Expression() (temporal.Expression, error) {
	interval := r.Interval
	if interval <= 0 {
		interval = 1
	}
	switch r.Frequency {
	case FreqMinutely:
		return temporal.Interval{Every: time.Duration(interval) * time.Minute}, nil
	case FreqHourly:
		return temporal.Interval{Every: time.Duration(interval) * time.Hour}, nil
	case FreqDaily:
		return temporal.Interval{Every: time.Duration(interval) * 24 * time.Hour}, nil
	case FreqWeekly:
		return temporal.Interval{Every: time.Duration(interval) * 7 * 24 * time.Hour}, nil
	case FreqMonthly:
		return temporal.Interval{Months: interval}, nil
	case FreqYearly:
		return temporal.Interval{Years: interval}, nil
	default:
		return nil, errors.Newf("job: unknown legacy recurrence frequency %q", r.Frequency)
	}
}

// MarshalLegacyRecurrence converts a descriptor to its stored JSON form.
func MarshalLegacyRecurrence(r *LegacyRecurrence) (string, error) {
	if r == nil {
		return "", nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal legacy recurrence")
	}
	return string(data), nil
}

// UnmarshalLegacyRecurrence parses the stored JSON form of a descriptor.
func UnmarshalLegacyRecurrence(data string) (*LegacyRecurrence, error) {
	if data == "" {
		return nil, nil
	}
	var r LegacyRecurrence
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal legacy recurrence")
	}
	return &r, nil
}

// truncateResult caps an outcome summary at MaxResultLen characters.
func truncateResult(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxResultLen {
		return s
	}
	return string(runes[:MaxResultLen])
}
