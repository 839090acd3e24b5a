// Package sse streams conversion job events to HTTP clients as Server-Sent Events.
package sse

import (
	"time"

	"github.com/listenupapp/listenup-transcoder/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventConnected is the first event on every stream.
	EventConnected EventType = "connected"
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"

	// EventJobStarted is sent once the source tree has been scanned.
	EventJobStarted EventType = "job.started"
	// EventJobProgress carries one drained progress event.
	EventJobProgress EventType = "job.progress"
	// EventJobUpdated carries a job record after it is written.
	EventJobUpdated EventType = "job.updated"
	// EventJobFinished is sent after the JobFinished progress event.
	EventJobFinished EventType = "job.finished"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// JobID restricts delivery to clients watching this job (or all jobs).
	JobID string `json:"-"`
}

// JobStartedEventData is the data payload for job.started.
type JobStartedEventData struct {
	JobID      string `json:"job_id"`
	FilesFound int    `json:"files_found"`
	Workers    int    `json:"workers"`
}

// JobRecordEventData is the data payload for job.updated and job.finished.
type JobRecordEventData struct {
	Job *domain.JobRecord `json:"job"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewJobStartedEvent creates a job.started event.
func NewJobStartedEvent(jobID string, filesFound, workers int) Event {
	return Event{
		Type:      EventJobStarted,
		Data:      JobStartedEventData{JobID: jobID, FilesFound: filesFound, Workers: workers},
		Timestamp: time.Now(),
		JobID:     jobID,
	}
}

// NewJobProgressEvent wraps a progress event.
func NewJobProgressEvent(e domain.ProgressEvent) Event {
	return Event{
		Type:      EventJobProgress,
		Data:      e,
		Timestamp: e.Timestamp,
		JobID:     e.JobID,
	}
}

// NewJobUpdatedEvent creates a job.updated event.
func NewJobUpdatedEvent(job *domain.JobRecord) Event {
	return Event{
		Type:      EventJobUpdated,
		Data:      JobRecordEventData{Job: job},
		Timestamp: time.Now(),
		JobID:     job.ID,
	}
}

// NewJobFinishedEvent creates a job.finished event.
func NewJobFinishedEvent(job *domain.JobRecord) Event {
	return Event{
		Type:      EventJobFinished,
		Data:      JobRecordEventData{Job: job},
		Timestamp: time.Now(),
		JobID:     job.ID,
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	now := time.Now()
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: now},
		Timestamp: now,
	}
}
