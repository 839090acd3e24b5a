package domain

import "time"

// EventKind classifies a progress event.
type EventKind string

const (
	EventSuccess        EventKind = "success"
	EventFail           EventKind = "fail"
	EventWorkerFinished EventKind = "worker_finished"
	EventJobFinished    EventKind = "job_finished"
)

// JobWorker is the worker id reserved for job-level events.
const JobWorker = 0

// ProgressEvent is a unit of status about one file, one worker, or the whole job.
type ProgressEvent struct {
	Timestamp time.Time `json:"timestamp"`
	JobID     string    `json:"job_id"`
	Path      string    `json:"path,omitempty"`
	Message   string    `json:"message"`
	Kind      EventKind `json:"kind"`
	Worker    int       `json:"worker"`
}

// IsFileEvent reports whether the event accounts for a single file.
func (e ProgressEvent) IsFileEvent() bool {
	return e.Kind == EventSuccess || e.Kind == EventFail
}
