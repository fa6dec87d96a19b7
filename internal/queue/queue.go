package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeReconcileLedger JobType = "reconcile_ledger"
	JobTypeNotifyUser      JobType = "notify_user"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job represents a background job
type Job struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	Type       JobType         `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Status     JobStatus       `json:"status"`
	RetryCount int             `json:"retry_count" gorm:"default:0"`
	MaxRetries int             `json:"max_retries" gorm:"default:3"`
	NextRetry  *time.Time      `json:"next_retry,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Error      string          `json:"error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// JobHandler is a function that processes a job
type JobHandler func(ctx context.Context, job Job) (interface{}, error)

// Queue is a database-backed job queue with retry and exponential backoff
type Queue struct {
	db         *gorm.DB
	handlers   map[JobType]JobHandler
	processing bool
}

// NewQueue creates a new queue
func NewQueue(db *gorm.DB) *Queue {
	return &Queue{
		db:       db,
		handlers: make(map[JobType]JobHandler),
	}
}

// RegisterHandler registers a handler for a job type
func (q *Queue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.handlers[jobType] = handler
}

// EnqueueJob adds a job to the queue
func (q *Queue) EnqueueJob(jobType JobType, payload interface{}) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	job := Job{
		ID:         uuid.New(),
		Type:       jobType,
		Payload:    payloadBytes,
		Status:     JobStatusPending,
		MaxRetries: 3,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if err := q.db.Create(&job).Error; err != nil {
		return "", err
	}

	return job.ID.String(), nil
}

// GetJob retrieves a job by ID
func (q *Queue) GetJob(jobID string) (*Job, error) {
	var job Job
	err := q.db.Model(&Job{}).Where("id = ?", jobID).First(&job).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("job not found")
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// ProcessJobs starts processing jobs from the queue
func (q *Queue) ProcessJobs() {
	if q.processing {
		return
	}

	q.processing = true
	go func() {
		for q.processing {
			var job Job
			err := q.db.Model(&Job{}).
				Where("status = ? AND (next_retry IS NULL OR next_retry <= ?)", JobStatusPending, time.Now()).
				Order("created_at").
				First(&job).Error
			if err != nil {
				if err != gorm.ErrRecordNotFound {
					log.Printf("Error getting job from queue: %v", err)
				}
				time.Sleep(1 * time.Second)
				continue
			}

			q.processJob(job)
		}
	}()
}

// StopProcessing stops the job loop
func (q *Queue) StopProcessing() {
	q.processing = false
}

func (q *Queue) processJob(job Job) {
	handler, ok := q.handlers[job.Type]
	if !ok {
		log.Printf("No handler registered for job type: %s", job.Type)
		q.updateJob(job.ID, map[string]interface{}{
			"status": JobStatusFailed,
			"error":  "no handler registered",
		})
		return
	}

	if err := q.updateJob(job.ID, map[string]interface{}{"status": JobStatusProcessing}); err != nil {
		log.Printf("Failed to update job status: %v", err)
		return
	}

	result, err := handler(context.Background(), job)
	if err != nil {
		q.handleFailure(job, err)
		return
	}

	var resultJSON []byte
	if result != nil {
		resultJSON, err = json.Marshal(result)
		if err != nil {
			log.Printf("Failed to marshal job result: %v", err)
		}
	}

	if err := q.updateJob(job.ID, map[string]interface{}{
		"status": JobStatusCompleted,
		"result": resultJSON,
	}); err != nil {
		log.Printf("Failed to update job result: %v", err)
	}
}

// handleFailure reschedules a failed job with exponential backoff until its
// retry budget is spent
func (q *Queue) handleFailure(job Job, jobErr error) {
	retryCount := job.RetryCount + 1
	if retryCount > job.MaxRetries {
		log.Printf("Job %s exceeded maximum retry attempts: %v", job.ID, jobErr)
		if err := q.updateJob(job.ID, map[string]interface{}{
			"status": JobStatusFailed,
			"error":  fmt.Sprintf("exceeded max retries: %v", jobErr),
		}); err != nil {
			log.Printf("Failed to update job status: %v", err)
		}
		return
	}

	backoff := 30 * time.Second * time.Duration(1<<(retryCount-1))
	nextRetry := time.Now().Add(backoff)

	log.Printf("Job %s failed (attempt %d/%d), retrying at %s: %v",
		job.ID, retryCount, job.MaxRetries, nextRetry.Format(time.RFC3339), jobErr)

	if err := q.updateJob(job.ID, map[string]interface{}{
		"status":      JobStatusPending,
		"retry_count": retryCount,
		"next_retry":  nextRetry,
		"error":       jobErr.Error(),
	}); err != nil {
		log.Printf("Failed to schedule job retry: %v", err)
	}
}

func (q *Queue) updateJob(jobID uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	return q.db.Model(&Job{}).Where("id = ?", jobID).Updates(updates).Error
}
