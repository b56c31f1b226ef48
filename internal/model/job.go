package model

import "time"

// JobStatus represents the lifecycle state of a queued pipeline job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one unit of pipeline work: process a single lead. Jobs live in the
// store and are claimed by workers; a failed attempt is rescheduled with a
// fixed backoff until MaxAttempts is exhausted.
type Job struct {
	ID             string    `json:"id"`
	LeadID         string    `json:"lead_id"`
	OrganizationID string    `json:"organization_id"`
	Status         JobStatus `json:"status"`
	Attempts       int       `json:"attempts"`
	MaxAttempts    int       `json:"max_attempts"`
	RunAfter       time.Time `json:"run_after"`
	LastError      string    `json:"last_error,omitempty"`
	MessageStyle   string    `json:"message_style,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
