package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeIsolateService   JobType = "isolate_service"
	JobTypeRestoreService   JobType = "restore_service"
	JobTypeSendNotification JobType = "send_notification"
	JobTypeProvisionService JobType = "provision_service"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// retrySchedules holds the per-type backoff ladder. Restoration waits longer
// between attempts: a paying subscriber being offline is worse than a
// delinquent one staying online, so restoration retries stretch out to give a
// flapping router time to come back instead of burning attempts.
var retrySchedules = map[JobType][]time.Duration{
	JobTypeIsolateService:   {60 * time.Second, 120 * time.Second, 240 * time.Second},
	JobTypeRestoreService:   {60 * time.Second, 300 * time.Second, 900 * time.Second},
	JobTypeSendNotification: {60 * time.Second, 120 * time.Second, 240 * time.Second},
	JobTypeProvisionService: {60 * time.Second, 120 * time.Second, 240 * time.Second},
}

// RetryDelay returns the wait before the given retry attempt (1-based).
func RetryDelay(jobType JobType, attempt int) time.Duration {
	schedule, ok := retrySchedules[jobType]
	if !ok || len(schedule) == 0 {
		return time.Minute * time.Duration(attempt)
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(schedule) {
		return schedule[len(schedule)-1]
	}
	return schedule[attempt-1]
}

// IsolationJobPayload carries one overdue service to isolate. InvoiceNumber
// is informational for the logs.
type IsolationJobPayload struct {
	ServiceID     uint   `json:"service_id"`
	InvoiceID     uint   `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
}

// ToMap converts the payload to a map for storage
func (p IsolationJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"service_id":     p.ServiceID,
		"invoice_id":     p.InvoiceID,
		"invoice_number": p.InvoiceNumber,
	}
}

// IsolationJobPayloadFromMap creates a payload from a map
func IsolationJobPayloadFromMap(data map[string]interface{}) (*IsolationJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload IsolationJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// RestorationJobPayload carries one paid-up service to restore.
type RestorationJobPayload struct {
	ServiceID uint `json:"service_id"`
}

// ToMap converts the payload to a map for storage
func (p RestorationJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"service_id": p.ServiceID,
	}
}

// RestorationJobPayloadFromMap creates a payload from a map
func RestorationJobPayloadFromMap(data map[string]interface{}) (*RestorationJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload RestorationJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// NotificationJobPayload carries one outbound subscriber message.
type NotificationJobPayload struct {
	Channel   string `json:"channel"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// ToMap converts the payload to a map for storage
func (p NotificationJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"channel":   p.Channel,
		"recipient": p.Recipient,
		"subject":   p.Subject,
		"body":      p.Body,
	}
}

// NotificationJobPayloadFromMap creates a payload from a map
func NotificationJobPayloadFromMap(data map[string]interface{}) (*NotificationJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload NotificationJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// ProvisionJobPayload carries one service whose router push should be retried.
type ProvisionJobPayload struct {
	ServiceID uint `json:"service_id"`
}

// ToMap converts the payload to a map for storage
func (p ProvisionJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"service_id": p.ServiceID,
	}
}

// ProvisionJobPayloadFromMap creates a payload from a map
func ProvisionJobPayloadFromMap(data map[string]interface{}) (*ProvisionJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ProvisionJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
