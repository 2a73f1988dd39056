package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jltest "github.com/fieldmark/joblane/internal/testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	return NewSQLiteStore(jltest.CreateTestDB(t))
}

func TestCreateAndGetJob(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	retries := int64(1)
	runTime := time.Now().Add(time.Hour)
	id, err := store.CreateJobWithGeneratedID(ctx, &Job{
		ParentJobID:            "root",
		PreviousJobID:          "prev",
		ServiceName:            "demo.echo",
		RunTime:                runTime,
		TempExprID:             "weekly",
		MaxRecurrenceCount:     10,
		CurrentRecurrenceCount: 4,
		MaxRetry:               3,
		CurrentRetryCount:      &retries,
		RunByInstanceID:        "worker0",
		Status:                 StatusPending,
		RuntimeDataID:          "payload-1",
		RunAs:                  "flow-admin",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	j, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, j.ID)
	assert.Equal(t, "root", j.ParentJobID)
	assert.Equal(t, "prev", j.PreviousJobID)
	assert.Equal(t, "demo.echo", j.ServiceName)
	assert.WithinDuration(t, runTime, j.RunTime, time.Second)
	assert.Equal(t, "weekly", j.TempExprID)
	assert.Equal(t, int64(10), j.MaxRecurrenceCount)
	assert.Equal(t, int64(4), j.CurrentRecurrenceCount)
	assert.Equal(t, int64(3), j.MaxRetry)
	require.NotNil(t, j.CurrentRetryCount)
	assert.Equal(t, int64(1), *j.CurrentRetryCount)
	assert.Equal(t, "worker0", j.RunByInstanceID)
	assert.Equal(t, StatusPending, j.Status)
	assert.Equal(t, "payload-1", j.RuntimeDataID)
	assert.Equal(t, "flow-admin", j.RunAs)
	assert.Equal(t, int64(0), j.ClaimToken)
	assert.Nil(t, j.StartedAt)
	assert.Nil(t, j.CancelledAt)
	assert.Nil(t, j.FinishedAt)
}

func TestGetJobNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestCreateJobPersistsLegacyRecurrence(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.CreateJobWithGeneratedID(ctx, &Job{
		ServiceName:      "demo.echo",
		RunTime:          time.Now(),
		Status:           StatusPending,
		LegacyRecurrence: &LegacyRecurrence{Frequency: FreqDaily, Interval: 2, CurrentCount: 5},
	})
	require.NoError(t, err)

	j, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, j.LegacyRecurrence)
	assert.Equal(t, FreqDaily, j.LegacyRecurrence.Frequency)
	assert.Equal(t, 2, j.LegacyRecurrence.Interval)
	assert.Equal(t, int64(5), j.LegacyRecurrence.CurrentCount)
}

func TestUpdateJobBumpsClaimToken(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.CreateJobWithGeneratedID(ctx, &Job{
		ServiceName: "demo.echo",
		RunTime:     time.Now(),
		Status:      StatusPending,
	})
	require.NoError(t, err)

	j, err := store.GetJob(ctx, id)
	require.NoError(t, err)

	j.Status = StatusRunning
	require.NoError(t, store.UpdateJob(ctx, j))
	assert.Equal(t, int64(1), j.ClaimToken)

	fresh, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, fresh.Status)
	assert.Equal(t, int64(1), fresh.ClaimToken)
}

func TestUpdateJobRejectsStaleWriter(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.CreateJobWithGeneratedID(ctx, &Job{
		ServiceName: "demo.echo",
		RunTime:     time.Now(),
		Status:      StatusPending,
	})
	require.NoError(t, err)

	first, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	second, err := store.GetJob(ctx, id)
	require.NoError(t, err)

	first.Status = StatusRunning
	require.NoError(t, store.UpdateJob(ctx, first))

	second.Status = StatusFailed
	err = store.UpdateJob(ctx, second)
	assert.ErrorIs(t, err, ErrStaleJob)

	// the losing write left no trace
	fresh, err := store.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, fresh.Status)
}

func TestCountJobsByParentAndStatus(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, status := range []Status{StatusFailed, StatusFailed, StatusFinished} {
		_, err := store.CreateJobWithGeneratedID(ctx, &Job{
			ParentJobID: "root",
			ServiceName: "demo.echo",
			RunTime:     time.Now(),
			Status:      status,
		})
		require.NoError(t, err)
	}

	count, err := store.CountJobsByParentAndStatus(ctx, "root", StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = store.CountJobsByParentAndStatus(ctx, "other", StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestListJobsByParentIncludesRoot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Now()
	rootID, err := store.CreateJobWithGeneratedID(ctx, &Job{
		ServiceName: "demo.echo",
		RunTime:     base,
		Status:      StatusFinished,
	})
	require.NoError(t, err)

	for i := 1; i <= 2; i++ {
		_, err := store.CreateJobWithGeneratedID(ctx, &Job{
			ParentJobID: rootID,
			ServiceName: "demo.echo",
			RunTime:     base.Add(time.Duration(i) * time.Hour),
			Status:      StatusPending,
		})
		require.NoError(t, err)
	}

	lineage, err := store.ListJobsByParent(ctx, rootID)
	require.NoError(t, err)
	require.Len(t, lineage, 3)
	assert.Equal(t, rootID, lineage[0].ID)
	assert.True(t, lineage[1].RunTime.Before(lineage[2].RunTime))
}

func TestRuntimeDataRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.PutRuntimeData(ctx, "", []byte(`{"a":1}`))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	data, err := store.GetRuntimeData(ctx, id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))

	// overwrite under the same id
	_, err = store.PutRuntimeData(ctx, id, []byte(`{"a":2}`))
	require.NoError(t, err)

	data, err = store.GetRuntimeData(ctx, id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(data))
}

func TestGetRuntimeDataMissing(t *testing.T) {
	store := newTestStore(t)

	data, err := store.GetRuntimeData(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, data)
}
