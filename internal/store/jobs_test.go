package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-transcoder/internal/domain"
	domainerrors "github.com/listenupapp/listenup-transcoder/internal/errors"
	"github.com/listenupapp/listenup-transcoder/internal/store"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []any
}

func (r *recordingEmitter) Emit(event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) all() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.events...)
}

func setupTestStore(t *testing.T) (*store.Store, *recordingEmitter) {
	t.Helper()

	emitter := &recordingEmitter{}
	s, err := store.New(store.Options{InMemory: true}, nil, emitter)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, emitter
}

func newRecord(id string, started time.Time) *domain.JobRecord {
	rec := domain.NewJobRecord(domain.ConversionJob{
		ID:              id,
		SourceRoot:      "/music/flac",
		DestinationRoot: "/music/mp3",
		Workers:         4,
		TargetFormat:    domain.TargetMP3,
		Encode:          domain.DefaultEncodeConfig(),
	})
	rec.StartedAt = started
	return rec
}

func TestStore_CreateAndGet(t *testing.T) {
	s, emitter := setupTestStore(t)
	ctx := context.Background()

	rec := newRecord("job-1", time.Now())
	require.NoError(t, s.CreateJob(ctx, rec))

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "/music/flac", got.SourceRoot)
	assert.Equal(t, domain.JobStatusRunning, got.Status)
	assert.Equal(t, domain.QualityBest, got.Quality)

	events := emitter.all()
	require.Len(t, events, 1)
	updated, ok := events[0].(store.JobUpdated)
	require.True(t, ok)
	assert.Equal(t, "job-1", updated.Job.ID)
}

func TestStore_CreateDuplicate(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateJob(ctx, newRecord("job-1", time.Now())))
	err := s.CreateJob(ctx, newRecord("job-1", time.Now()))
	assert.True(t, errors.Is(err, store.ErrAlreadyExists))
	assert.True(t, errors.Is(err, domainerrors.ErrConflict))
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := setupTestStore(t)

	_, err := s.GetJob(context.Background(), "job-missing")
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

func TestStore_UpdateMovesStatusIndex(t *testing.T) {
	s, emitter := setupTestStore(t)
	ctx := context.Background()

	rec := newRecord("job-1", time.Now())
	require.NoError(t, s.CreateJob(ctx, rec))

	rec.FilesFound = 3
	rec.Tally(domain.ProgressEvent{Kind: domain.EventSuccess})
	rec.Tally(domain.ProgressEvent{Kind: domain.EventFail})
	rec.MarkFinished(domain.JobStatusCompleted, "")
	require.NoError(t, s.UpdateJob(ctx, rec))

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Succeeded)
	assert.Equal(t, 1, got.Failed)
	assert.True(t, got.IsTerminal())
	require.NotNil(t, got.FinishedAt)

	running, err := s.ListJobsByStatus(ctx, domain.JobStatusRunning)
	require.NoError(t, err)
	assert.Empty(t, running)

	completed, err := s.ListJobsByStatus(ctx, domain.JobStatusCompleted)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "job-1", completed[0].ID)

	assert.Len(t, emitter.all(), 2)
}

func TestStore_UpdateMissing(t *testing.T) {
	s, _ := setupTestStore(t)
	err := s.UpdateJob(context.Background(), newRecord("job-ghost", time.Now()))
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestStore_ListJobsNewestFirst(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateJob(ctx, newRecord("job-b", base.Add(time.Minute))))
	require.NoError(t, s.CreateJob(ctx, newRecord("job-a", base)))
	require.NoError(t, s.CreateJob(ctx, newRecord("job-c", base.Add(2*time.Minute))))

	jobs, err := s.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "job-c", jobs[0].ID)
	assert.Equal(t, "job-b", jobs[1].ID)
	assert.Equal(t, "job-a", jobs[2].ID)
}

func TestStore_DeleteJob(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateJob(ctx, newRecord("job-1", time.Now())))
	require.NoError(t, s.DeleteJob(ctx, "job-1"))
	require.NoError(t, s.DeleteJob(ctx, "job-1"), "delete is idempotent")

	_, err := s.GetJob(ctx, "job-1")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	running, err := s.ListJobsByStatus(ctx, domain.JobStatusRunning)
	require.NoError(t, err)
	assert.Empty(t, running)
}

func TestStore_MarkInterrupted(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateJob(ctx, newRecord("job-running", time.Now())))
	done := newRecord("job-done", time.Now())
	require.NoError(t, s.CreateJob(ctx, done))
	done.MarkFinished(domain.JobStatusCompleted, "")
	require.NoError(t, s.UpdateJob(ctx, done))

	n, err := s.MarkInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetJob(ctx, "job-running")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, "interrupted by shutdown", got.Error)

	got, err = s.GetJob(ctx, "job-done")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
}

func TestStore_CanceledContext(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.CreateJob(ctx, newRecord("job-1", time.Now())), context.Canceled)
	_, err := s.ListJobs(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_PersistsOnDisk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "jobs")
	ctx := context.Background()

	s, err := store.New(store.Options{Path: dir}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateJob(ctx, newRecord("job-1", time.Now())))
	require.NoError(t, s.Close())

	s, err = store.New(store.Options{Path: dir}, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", got.ID)
}

func TestStore_Ping(t *testing.T) {
	s, err := store.New(store.Options{InMemory: true}, nil, nil)
	require.NoError(t, err)

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()))
}
