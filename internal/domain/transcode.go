package domain

import "time"

// JobStatus represents the state of a conversion job record.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusFailed    JobStatus = "failed"
)

// JobRecord is the persisted summary of a conversion job.
// It is created when a job is dispatched and updated as progress events drain.
type JobRecord struct {
	ID               string         `json:"id"`
	SourceRoot       string         `json:"source_root"`
	DestinationRoot  string         `json:"destination_root"`
	Workers          int            `json:"workers"`
	CopyUnrecognized bool           `json:"copy_unrecognized"`
	TargetFormat     TargetFormat   `json:"target_format"`
	Quality          Quality        `json:"quality"`
	Bitrate          Bitrate        `json:"bitrate"`
	TagMerge         TagMergePolicy `json:"tag_merge"`

	Status     JobStatus `json:"status"`
	FilesFound int       `json:"files_found"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewJobRecord builds a running record for job.
func NewJobRecord(job ConversionJob) *JobRecord {
	return &JobRecord{
		ID:               job.ID,
		SourceRoot:       job.SourceRoot,
		DestinationRoot:  job.DestinationRoot,
		Workers:          job.Workers,
		CopyUnrecognized: job.CopyUnrecognized,
		TargetFormat:     job.TargetFormat,
		Quality:          job.Encode.Quality,
		Bitrate:          job.Encode.Bitrate,
		TagMerge:         job.Encode.TagMerge,
		Status:           JobStatusRunning,
		StartedAt:        time.Now(),
	}
}

// Tally counts a drained per-file event. Worker and job lifecycle events are ignored.
func (r *JobRecord) Tally(e ProgressEvent) {
	switch e.Kind {
	case EventSuccess:
		r.Succeeded++
	case EventFail:
		r.Failed++
	case EventWorkerFinished, EventJobFinished:
	}
}

// MarkFinished transitions the record to a terminal status.
func (r *JobRecord) MarkFinished(status JobStatus, errText string) {
	r.Status = status
	r.Error = errText
	now := time.Now()
	r.FinishedAt = &now
}

// IsTerminal reports whether the job has stopped.
func (r *JobRecord) IsTerminal() bool {
	return r.Status != JobStatusRunning
}
