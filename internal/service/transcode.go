// Package service coordinates conversion jobs: it owns the single job slot,
// persists job records and forwards progress to event stream clients.
package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/listenupapp/listenup-transcoder/internal/config"
	"github.com/listenupapp/listenup-transcoder/internal/domain"
	domainerrors "github.com/listenupapp/listenup-transcoder/internal/errors"
	"github.com/listenupapp/listenup-transcoder/internal/id"
	"github.com/listenupapp/listenup-transcoder/internal/progress"
	"github.com/listenupapp/listenup-transcoder/internal/sse"
	"github.com/listenupapp/listenup-transcoder/internal/transcode"
)

// JobStore persists job records.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.JobRecord) error
	UpdateJob(ctx context.Context, job *domain.JobRecord) error
	GetJob(ctx context.Context, id string) (*domain.JobRecord, error)
	ListJobs(ctx context.Context) ([]*domain.JobRecord, error)
}

// Events receives drained progress events and job lifecycle events.
type Events interface {
	progress.Sink
	Emit(event any)
}

// StartJobRequest describes a job. Zero values fall back to the configured defaults.
type StartJobRequest struct {
	Source           string
	Destination      string
	Workers          int
	CopyUnrecognized *bool
	Format           domain.TargetFormat
	Quality          domain.Quality
	Bitrate          domain.Bitrate
	TagMerge         domain.TagMergePolicy
}

// TranscodeService runs at most one conversion job at a time.
type TranscodeService struct {
	runner   *transcode.Runner
	store    JobStore
	events   Events
	defaults config.TranscodeConfig
	logger   *slog.Logger

	token *transcode.Token

	// Worker management
	ctx    context.Context //nolint:containedctx // Context needed for job lifecycle management
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	active *domain.JobRecord
}

// NewTranscodeService creates a transcode service.
func NewTranscodeService(
	runner *transcode.Runner,
	store JobStore,
	events Events,
	defaults config.TranscodeConfig,
	logger *slog.Logger,
) *TranscodeService {
	ctx, cancel := context.WithCancel(context.Background())
	return &TranscodeService{
		runner:   runner,
		store:    store,
		events:   events,
		defaults: defaults,
		logger:   logger,
		token:    transcode.NewToken(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Resolve builds a job from req, filling unset fields from the defaults.
func (s *TranscodeService) Resolve(req StartJobRequest) domain.ConversionJob {
	enc := s.defaults.EncodeConfig()
	job := domain.ConversionJob{
		SourceRoot:       req.Source,
		DestinationRoot:  req.Destination,
		Workers:          req.Workers,
		CopyUnrecognized: s.defaults.CopyUnrecognized,
		TargetFormat:     req.Format,
		Encode:           enc,
	}
	if job.Workers == 0 {
		job.Workers = s.defaults.Workers
	}
	if req.CopyUnrecognized != nil {
		job.CopyUnrecognized = *req.CopyUnrecognized
	}
	if job.TargetFormat == "" {
		job.TargetFormat = domain.TargetMP3
	}
	if req.Quality != "" {
		job.Encode.Quality = req.Quality
	}
	if req.Bitrate != domain.BitrateUnknown {
		job.Encode.Bitrate = req.Bitrate
	}
	if req.TagMerge != "" {
		job.Encode.TagMerge = req.TagMerge
	}
	return job
}

// StartJob validates req, claims the job slot and starts the job in the
// background. It returns a snapshot of the new job record.
// Returns a conflict error while another job holds the slot.
func (s *TranscodeService) StartJob(ctx context.Context, req StartJobRequest) (*domain.JobRecord, error) {
	job := s.Resolve(req)
	if err := job.Check(); err != nil {
		return nil, err
	}

	if !s.token.TryStart() {
		return nil, domainerrors.Conflict("a conversion job is already running")
	}

	jobID, err := id.NewJobID()
	if err != nil {
		s.token.Finish()
		return nil, domainerrors.Internalf("generate job id: %v", err)
	}
	job.ID = jobID

	rec := domain.NewJobRecord(job)
	if err := s.store.CreateJob(ctx, rec); err != nil {
		s.token.Finish()
		return nil, err
	}

	s.mu.Lock()
	s.active = rec
	snapshot := *rec
	s.mu.Unlock()

	s.logger.Info("conversion job accepted",
		slog.String("job_id", job.ID),
		slog.String("source", job.SourceRoot),
		slog.String("destination", job.DestinationRoot),
		slog.Int("workers", job.Workers),
		slog.String("format", string(job.TargetFormat)),
	)

	s.wg.Add(1)
	go s.run(job, rec)

	return &snapshot, nil
}

// run executes job and drains its progress until the JobFinished event.
func (s *TranscodeService) run(job domain.ConversionJob, rec *domain.JobRecord) {
	defer s.wg.Done()

	buf := progress.NewBuffer()
	emitter := progress.NewEmitter(s.defaults.PollInterval, s.logger)

	tally := progress.SinkFunc(func(e domain.ProgressEvent) {
		s.mu.Lock()
		rec.Tally(e)
		s.mu.Unlock()
	})

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		if err := emitter.Run(s.ctx, buf, progress.Fanout(tally, s.events, progress.LogSink(s.logger))); err != nil {
			s.logger.Warn("progress emitter stopped early", slog.String("job_id", job.ID), slog.Any("error", err))
		}
	}()

	started := func(files int) {
		s.mu.Lock()
		rec.FilesFound = files
		snapshot := *rec
		s.mu.Unlock()

		s.events.Emit(sse.NewJobStartedEvent(job.ID, files, job.Workers))
		if err := s.store.UpdateJob(s.ctx, &snapshot); err != nil {
			s.logger.Error("failed to record file count", slog.String("job_id", job.ID), slog.Any("error", err))
		}
	}

	result, runErr := s.runner.Run(s.ctx, job, s.token, buf, started)
	<-drained

	s.mu.Lock()
	switch {
	case runErr != nil:
		rec.MarkFinished(domain.JobStatusFailed, runErr.Error())
	case result.Cancelled:
		rec.MarkFinished(domain.JobStatusCancelled, "")
	default:
		rec.MarkFinished(domain.JobStatusCompleted, "")
	}
	final := *rec
	if s.active == rec {
		s.active = nil
	}
	s.mu.Unlock()

	// The service context may already be canceled on shutdown.
	if err := s.store.UpdateJob(context.WithoutCancel(s.ctx), &final); err != nil {
		s.logger.Error("failed to record job result", slog.String("job_id", job.ID), slog.Any("error", err))
	}
	s.events.Emit(sse.NewJobFinishedEvent(&final))

	s.logger.Info("conversion job finished",
		slog.String("job_id", job.ID),
		slog.String("status", string(final.Status)),
		slog.Int("files_found", final.FilesFound),
		slog.Int("succeeded", final.Succeeded),
		slog.Int("failed", final.Failed),
	)
}

// Cancel requests cancellation of the running job. Workers stop before their
// next file; files already in progress finish. It returns the job being cancelled.
func (s *TranscodeService) Cancel() (*domain.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == nil || !s.token.Cancel() {
		return nil, domainerrors.Conflict("no conversion job is running")
	}
	snapshot := *s.active
	s.logger.Info("conversion job cancel requested", slog.String("job_id", snapshot.ID))
	return &snapshot, nil
}

// State returns the job slot state and the active job id, if any.
func (s *TranscodeService) State() (transcode.State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return s.token.State(), ""
	}
	return s.token.State(), s.active.ID
}

// GetJob returns a job record. The active job is served from memory so its
// counters are current.
func (s *TranscodeService) GetJob(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	s.mu.Lock()
	if s.active != nil && s.active.ID == jobID {
		snapshot := *s.active
		s.mu.Unlock()
		return &snapshot, nil
	}
	s.mu.Unlock()

	return s.store.GetJob(ctx, jobID)
}

// ListJobs returns the job history, most recent first.
func (s *TranscodeService) ListJobs(ctx context.Context) ([]*domain.JobRecord, error) {
	jobs, err := s.store.ListJobs(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		for i, j := range jobs {
			if j.ID == s.active.ID {
				snapshot := *s.active
				jobs[i] = &snapshot
			}
		}
	}
	return jobs, nil
}

// Wait blocks until no job is running or ctx is done.
func (s *TranscodeService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels any running job and waits for it to wind down.
func (s *TranscodeService) Stop(ctx context.Context) error {
	s.logger.Info("stopping transcode service")
	s.token.Cancel()
	s.cancel()
	return s.Wait(ctx)
}
