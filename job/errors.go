package job

import "github.com/fieldmark/joblane/errors"

var (
	// ErrJobNotFound means the row id has no backing record.
	ErrJobNotFound = errors.New("job: job not found")

	// ErrClaimConflict means the row was already started or cancelled;
	// the caller must not proceed with this attempt.
	ErrClaimConflict = errors.New("job: job already started or cancelled")

	// ErrInvalidJob means the row is structurally unusable for this
	// attempt (missing, claimed by another instance, no service name).
	ErrInvalidJob = errors.New("job: invalid job")

	// ErrStaleJob means a persisted update lost an optimistic-concurrency
	// race: another writer updated the row after it was read.
	ErrStaleJob = errors.New("job: row modified concurrently")
)
