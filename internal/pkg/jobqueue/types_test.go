package jobqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobTypeConstants(t *testing.T) {
	assert.Equal(t, "isolate_service", string(JobTypeIsolateService))
	assert.Equal(t, "restore_service", string(JobTypeRestoreService))
	assert.Equal(t, "send_notification", string(JobTypeSendNotification))
	assert.Equal(t, "provision_service", string(JobTypeProvisionService))
}

func TestRetryDelaySchedules(t *testing.T) {
	tests := []struct {
		jobType JobType
		attempt int
		want    time.Duration
	}{
		{JobTypeIsolateService, 1, 60 * time.Second},
		{JobTypeIsolateService, 2, 120 * time.Second},
		{JobTypeIsolateService, 3, 240 * time.Second},
		{JobTypeRestoreService, 1, 60 * time.Second},
		{JobTypeRestoreService, 2, 300 * time.Second},
		{JobTypeRestoreService, 3, 900 * time.Second},
		{JobTypeSendNotification, 2, 120 * time.Second},
		{JobTypeProvisionService, 3, 240 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RetryDelay(tt.jobType, tt.attempt),
			"type=%s attempt=%d", tt.jobType, tt.attempt)
	}
}

func TestRetryDelayClamping(t *testing.T) {
	// attempts past the schedule stick to the last step
	assert.Equal(t, 900*time.Second, RetryDelay(JobTypeRestoreService, 7))
	// attempts below 1 use the first step
	assert.Equal(t, 60*time.Second, RetryDelay(JobTypeIsolateService, 0))
	// unknown types fall back to a linear schedule
	assert.Equal(t, 2*time.Minute, RetryDelay(JobType("unknown"), 2))
}

func TestIsolationPayloadRoundTrip(t *testing.T) {
	payload := IsolationJobPayload{ServiceID: 42, InvoiceID: 7, InvoiceNumber: "INV-202608-AABBCCDD"}

	restored, err := IsolationJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, payload, *restored)
}

func TestNotificationPayloadRoundTrip(t *testing.T) {
	payload := NotificationJobPayload{
		Channel:   "whatsapp",
		Recipient: "628123456789",
		Subject:   "Tagihan Baru",
		Body:      "Tagihan Anda sudah terbit.",
	}

	restored, err := NotificationJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, payload, *restored)
}

func TestJobStatusTransitions(t *testing.T) {
	job := &Job{
		Status:     JobStatusFailed,
		RetryCount: 1,
		MaxRetries: 3,
	}

	assert.True(t, job.IsRetryable())

	job.RetryCount = 3
	assert.False(t, job.IsRetryable())

	beforeTime := time.Now()

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.NotNil(t, job.ProcessedAt)
	assert.False(t, job.UpdatedAt.Before(beforeTime))

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
	assert.Empty(t, job.ErrorMsg)

	job.MarkAsFailed("router unreachable")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "router unreachable", job.ErrorMsg)
	assert.Equal(t, 4, job.RetryCount)
}

func TestParseClockTime(t *testing.T) {
	assert.Equal(t, 60, parseClockTime("01:00"))
	assert.Equal(t, 2*60, parseClockTime("02:00"))
	assert.Equal(t, 23*60+59, parseClockTime("23:59"))
	assert.Equal(t, 0, parseClockTime("00:00"))

	// invalid inputs fall back to 01:00
	assert.Equal(t, 60, parseClockTime("noon"))
	assert.Equal(t, 60, parseClockTime("25:00"))
	assert.Equal(t, 60, parseClockTime("12:75"))
	assert.Equal(t, 60, parseClockTime(""))
}
