package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/listenup-transcoder/internal/domain"
	"github.com/listenupapp/listenup-transcoder/internal/service"
)

func (s *Server) registerJobRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "startJob",
		Method:        http.MethodPost,
		Path:          "/api/v1/jobs",
		Summary:       "Start conversion job",
		Description:   "Mirrors the source tree into the destination tree, transcoding recognized audio to MP3. Returns immediately; follow progress on the event stream.",
		Tags:          []string{"Jobs"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleStartJob)

	huma.Register(s.api, huma.Operation{
		OperationID:   "cancelJob",
		Method:        http.MethodPost,
		Path:          "/api/v1/jobs/cancel",
		Summary:       "Cancel running job",
		Description:   "Requests cooperative cancellation. Files already being processed finish; no new files are started.",
		Tags:          []string{"Jobs"},
		DefaultStatus: http.StatusAccepted,
	}, s.handleCancelJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "listJobs",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs",
		Summary:     "List jobs",
		Description: "Returns the job history, most recent first",
		Tags:        []string{"Jobs"},
	}, s.handleListJobs)

	huma.Register(s.api, huma.Operation{
		OperationID: "getJob",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs/{id}",
		Summary:     "Get job",
		Description: "Returns a job by ID",
		Tags:        []string{"Jobs"},
	}, s.handleGetJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "getJobStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Job slot status",
		Description: "Reports whether a job is idle, running or cancelling",
		Tags:        []string{"Jobs"},
	}, s.handleStatus)
}

// === DTOs ===

// StartJobRequest is the request body for starting a job.
type StartJobRequest struct {
	Source           string `json:"source" validate:"required,dir" doc:"Source root to mirror"`
	Destination      string `json:"destination" validate:"required,nefield=Source" doc:"Destination root"`
	Workers          int    `json:"workers,omitempty" validate:"gte=0,lte=256" doc:"Worker count; 0 uses the server default"`
	CopyUnrecognized *bool  `json:"copy_unrecognized,omitempty" doc:"Copy files that are not convertible audio"`
	Format           string `json:"format,omitempty" doc:"Target format; opus is reserved" example:"mp3"`
	Quality          string `json:"quality,omitempty" validate:"omitempty,quality" doc:"Encoder quality, best through worst"`
	Bitrate          int    `json:"bitrate,omitempty" validate:"bitrate" doc:"Constant bitrate in kbps; 0 selects 320"`
	TagMerge         string `json:"tag_merge,omitempty" validate:"tagmerge" doc:"Which tag wins on collision: last or first"`
}

// StartJobInput wraps the start job request for Huma.
type StartJobInput struct {
	Body StartJobRequest
}

// JobResponse contains job data in API responses.
type JobResponse struct {
	ID               string     `json:"id" doc:"Job ID"`
	SourceRoot       string     `json:"source_root" doc:"Source root"`
	DestinationRoot  string     `json:"destination_root" doc:"Destination root"`
	Workers          int        `json:"workers" doc:"Worker count"`
	CopyUnrecognized bool       `json:"copy_unrecognized" doc:"Whether non-audio files are copied"`
	TargetFormat     string     `json:"target_format" doc:"Target format"`
	Quality          string     `json:"quality" doc:"Encoder quality"`
	Bitrate          int        `json:"bitrate" doc:"Effective bitrate in kbps"`
	TagMerge         string     `json:"tag_merge" doc:"Tag collision policy"`
	Status           string     `json:"status" doc:"running, completed, cancelled or failed"`
	FilesFound       int        `json:"files_found" doc:"Files found by the scan"`
	Succeeded        int        `json:"succeeded" doc:"Files converted or copied"`
	Failed           int        `json:"failed" doc:"Files that failed"`
	Error            string     `json:"error,omitempty" doc:"Job-level error"`
	StartedAt        time.Time  `json:"started_at" doc:"Start time"`
	FinishedAt       *time.Time `json:"finished_at,omitempty" doc:"Finish time"`
}

// JobOutput wraps the job response for Huma.
type JobOutput struct {
	Body JobResponse
}

// ListJobsResponse contains the job history.
type ListJobsResponse struct {
	Jobs  []JobResponse `json:"jobs" doc:"Jobs, most recent first"`
	Total int           `json:"total" doc:"Number of jobs"`
}

// ListJobsOutput wraps the list jobs response for Huma.
type ListJobsOutput struct {
	Body ListJobsResponse
}

// GetJobInput contains parameters for getting a job.
type GetJobInput struct {
	ID string `path:"id" doc:"Job ID"`
}

// StatusResponse reports the job slot.
type StatusResponse struct {
	State string `json:"state" doc:"idle, running or cancelling"`
	JobID string `json:"job_id,omitempty" doc:"Active job ID"`
}

// StatusOutput wraps the status response for Huma.
type StatusOutput struct {
	Body StatusResponse
}

// === Handlers ===

func (s *Server) handleStartJob(ctx context.Context, input *StartJobInput) (*JobOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, toAPIError(err)
	}

	req := service.StartJobRequest{
		Source:           input.Body.Source,
		Destination:      input.Body.Destination,
		Workers:          input.Body.Workers,
		CopyUnrecognized: input.Body.CopyUnrecognized,
		Format:           domain.TargetFormat(input.Body.Format),
		Bitrate:          domain.Bitrate(input.Body.Bitrate),
		TagMerge:         domain.TagMergePolicy(input.Body.TagMerge),
	}
	if input.Body.Quality != "" {
		q, err := domain.ParseQuality(input.Body.Quality)
		if err != nil {
			return nil, toAPIError(err)
		}
		req.Quality = q
	}

	rec, err := s.services.Transcode.StartJob(ctx, req)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &JobOutput{Body: mapJobResponse(rec)}, nil
}

func (s *Server) handleCancelJob(_ context.Context, _ *struct{}) (*JobOutput, error) {
	rec, err := s.services.Transcode.Cancel()
	if err != nil {
		return nil, toAPIError(err)
	}
	return &JobOutput{Body: mapJobResponse(rec)}, nil
}

func (s *Server) handleListJobs(ctx context.Context, _ *struct{}) (*ListJobsOutput, error) {
	jobs, err := s.services.Transcode.ListJobs(ctx)
	if err != nil {
		return nil, toAPIError(err)
	}

	resp := make([]JobResponse, len(jobs))
	for i, j := range jobs {
		resp[i] = mapJobResponse(j)
	}
	return &ListJobsOutput{Body: ListJobsResponse{Jobs: resp, Total: len(resp)}}, nil
}

func (s *Server) handleGetJob(ctx context.Context, input *GetJobInput) (*JobOutput, error) {
	rec, err := s.services.Transcode.GetJob(ctx, input.ID)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &JobOutput{Body: mapJobResponse(rec)}, nil
}

func (s *Server) handleStatus(_ context.Context, _ *struct{}) (*StatusOutput, error) {
	state, jobID := s.services.Transcode.State()
	return &StatusOutput{Body: StatusResponse{State: state.String(), JobID: jobID}}, nil
}

func mapJobResponse(r *domain.JobRecord) JobResponse {
	return JobResponse{
		ID:               r.ID,
		SourceRoot:       r.SourceRoot,
		DestinationRoot:  r.DestinationRoot,
		Workers:          r.Workers,
		CopyUnrecognized: r.CopyUnrecognized,
		TargetFormat:     string(r.TargetFormat),
		Quality:          string(r.Quality),
		Bitrate:          r.Bitrate.Kbps(),
		TagMerge:         string(r.TagMerge),
		Status:           string(r.Status),
		FilesFound:       r.FilesFound,
		Succeeded:        r.Succeeded,
		Failed:           r.Failed,
		Error:            r.Error,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
	}
}
