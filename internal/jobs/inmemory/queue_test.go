package inmemory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/sales-ledger/internal/jobs"
)

func waitForStatus(t *testing.T, store *Store, jobID string, want jobs.JobStatus) *jobs.IngestJob {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached status %s", jobID, want)
	return nil
}

func TestQueueProcessesJob(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, 2, store)
	defer queue.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := func(ctx context.Context, job *jobs.IngestJob) error {
		job.Accepted = 7
		job.Processed = 9
		return nil
	}
	require.NoError(t, queue.Start(ctx, handler))

	job := &jobs.IngestJob{Source: "/tmp/batch.csv"}
	require.NoError(t, queue.PublishIngest(ctx, job))
	require.NotEmpty(t, job.JobID)
	assert.Equal(t, jobs.JobStatusPending, job.Status)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 7, done.Accepted)
	assert.Equal(t, 9, done.Processed)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Empty(t, done.Error)
}

func TestQueueMarksFailedJobWithoutRetry(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, 1, store)
	defer queue.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	attempts := 0
	handler := func(ctx context.Context, job *jobs.IngestJob) error {
		attempts++
		job.Processed = 3
		return fmt.Errorf("source unreadable")
	}
	require.NoError(t, queue.Start(ctx, handler))

	job := &jobs.IngestJob{Source: "gs://bucket/missing.csv"}
	require.NoError(t, queue.PublishIngest(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, "source unreadable", failed.Error)
	// The partial counters survive the failure.
	assert.Equal(t, 3, failed.Processed)

	// No automatic retry: the handler ran exactly once.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, attempts)
}

func TestQueuePublishAfterCloseFails(t *testing.T) {
	store := NewStore()
	queue := NewQueue(10, 1, store)
	require.NoError(t, queue.Close())

	err := queue.PublishIngest(context.Background(), &jobs.IngestJob{Source: "x"})
	assert.Error(t, err)
}

func TestStoreListJobs(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		status := jobs.JobStatusCompleted
		if i%2 == 1 {
			status = jobs.JobStatusFailed
		}
		require.NoError(t, store.SaveJob(ctx, &jobs.IngestJob{
			JobID:     fmt.Sprintf("job-%d", i),
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := store.ListJobs(ctx, jobs.JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	// Newest first.
	assert.Equal(t, "job-4", all[0].JobID)

	failed, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 2)

	page, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "job-3", page[0].JobID)
}

func TestStoreGetJobMissing(t *testing.T) {
	store := NewStore()
	_, err := store.GetJob(context.Background(), "nope")
	assert.Error(t, err)
}
