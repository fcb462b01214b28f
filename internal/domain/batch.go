package domain

import "time"

// JobStatus is the lifecycle state of a batch job
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobType selects what a batch job does
type JobType string

const (
	JobCleanupTokens       JobType = "cleanup_tokens"
	JobCleanupOldJobs      JobType = "cleanup_old_jobs"
	JobUpdatePopularVideos JobType = "update_popular_videos"
)

// BatchJob is a unit of background work recorded in the database
type BatchJob struct {
	ID          string         `json:"id"`
	Type        JobType        `json:"jobType"`
	Status      JobStatus      `json:"status"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// JobResult is reported for every processed job
type JobResult struct {
	JobID  string    `json:"jobId"`
	Type   JobType   `json:"jobType"`
	Status JobStatus `json:"status"`
	Error  string    `json:"error,omitempty"`
}
