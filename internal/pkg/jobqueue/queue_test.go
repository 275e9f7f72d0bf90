package jobqueue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupQueueTest(t *testing.T) *Queue {
	t.Helper()

	host, port, password := resolveTestRedis(t)
	configureTestCache(host, port, password)
	resetJobQueueRedis(t)
	t.Cleanup(func() { resetJobQueueRedis(t) })

	return NewQueue(1, &Dependencies{})
}

func TestEnqueueAndGetJob(t *testing.T) {
	q := setupQueueTest(t)
	ctx := context.Background()

	payload := IsolationJobPayload{ServiceID: 11, InvoiceID: 3, InvoiceNumber: "INV-202608-TEST0001"}
	job, err := q.EnqueueJob(JobTypeIsolateService, payload.ToMap())
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)

	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, DefaultMaxRetries, job.MaxRetries)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobTypeIsolateService, stored.Type)

	restored, err := IsolationJobPayloadFromMap(stored.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint(11), restored.ServiceID)
	assert.Equal(t, "INV-202608-TEST0001", restored.InvoiceNumber)

	size, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestDequeueMovesJobToProcessing(t *testing.T) {
	q := setupQueueTest(t)
	ctx := context.Background()

	payload := RestorationJobPayload{ServiceID: 5}
	enqueued, err := q.EnqueueJob(JobTypeRestoreService, payload.ToMap())
	require.NoError(t, err)

	job, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, enqueued.ID, job.ID)

	pending, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending)

	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), processing)
}

func TestJobStatsTrackEnqueues(t *testing.T) {
	q := setupQueueTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := q.EnqueueJob(JobTypeSendNotification, NotificationJobPayload{
			Channel:   "whatsapp",
			Recipient: "628123456789",
			Body:      "test",
		}.ToMap())
		require.NoError(t, err)
	}

	stats, err := q.GetJobStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats[JobStatusPending])
}
