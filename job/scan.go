package job

import (
	"database/sql"
	"time"
)

// jobScanArgs holds the nullable column targets needed when scanning a job
// row. Follows the scan-args pattern used across the stores.
type jobScanArgs struct {
	ParentJobID       sql.NullString
	PreviousJobID     sql.NullString
	ServiceName       sql.NullString
	TempExprID        sql.NullString
	LegacyRecurrence  sql.NullString
	CurrentRetryCount sql.NullInt64
	RunByInstanceID   sql.NullString
	StartedAt         sql.NullTime
	CancelledAt       sql.NullTime
	FinishedAt        sql.NullTime
	Result            sql.NullString
	RuntimeDataID     sql.NullString
	RunAs             sql.NullString
}

// jobSelectColumns returns the standard column list, in scan order.
func jobSelectColumns() string {
	return `id, parent_job_id, previous_job_id, service_name, run_time,
		temp_expr_id, legacy_recurrence, max_recurrence_count, current_recurrence_count,
		max_retry, current_retry_count, run_by_instance_id,
		started_at, cancelled_at, finished_at, status, result,
		runtime_data_id, run_as, claim_token, created_at, updated_at`
}

// jobScanTargets returns scan destinations matching jobSelectColumns order.
func jobScanTargets(j *Job, args *jobScanArgs) []interface{} {
	return []interface{}{
		&j.ID,
		&args.ParentJobID,
		&args.PreviousJobID,
		&args.ServiceName,
		&j.RunTime,
		&args.TempExprID,
		&args.LegacyRecurrence,
		&j.MaxRecurrenceCount,
		&j.CurrentRecurrenceCount,
		&j.MaxRetry,
		&args.CurrentRetryCount,
		&args.RunByInstanceID,
		&args.StartedAt,
		&args.CancelledAt,
		&args.FinishedAt,
		&j.Status,
		&args.Result,
		&args.RuntimeDataID,
		&args.RunAs,
		&j.ClaimToken,
		&j.CreatedAt,
		&j.UpdatedAt,
	}
}

// applyJobScanArgs moves scanned nullable values onto the job struct.
func applyJobScanArgs(j *Job, args *jobScanArgs) error {
	if args.ParentJobID.Valid {
		j.ParentJobID = args.ParentJobID.String
	}
	if args.PreviousJobID.Valid {
		j.PreviousJobID = args.PreviousJobID.String
	}
	if args.ServiceName.Valid {
		j.ServiceName = args.ServiceName.String
	}
	if args.TempExprID.Valid {
		j.TempExprID = args.TempExprID.String
	}
	if args.LegacyRecurrence.Valid {
		legacy, err := UnmarshalLegacyRecurrence(args.LegacyRecurrence.String)
		if err != nil {
			return err
		}
		j.LegacyRecurrence = legacy
	}
	if args.CurrentRetryCount.Valid {
		count := args.CurrentRetryCount.Int64
		j.CurrentRetryCount = &count
	}
	if args.RunByInstanceID.Valid {
		j.RunByInstanceID = args.RunByInstanceID.String
	}
	if args.StartedAt.Valid {
		t := args.StartedAt.Time
		j.StartedAt = &t
	}
	if args.CancelledAt.Valid {
		t := args.CancelledAt.Time
		j.CancelledAt = &t
	}
	if args.FinishedAt.Valid {
		t := args.FinishedAt.Time
		j.FinishedAt = &t
	}
	if args.Result.Valid {
		j.Result = args.Result.String
	}
	if args.RuntimeDataID.Valid {
		j.RuntimeDataID = args.RuntimeDataID.String
	}
	if args.RunAs.Valid {
		j.RunAs = args.RunAs.String
	}
	return nil
}

// nullString converts an optional string field to its bound value.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullTime converts an optional timestamp field to its bound value.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullInt64 converts an optional counter field to its bound value.
func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
