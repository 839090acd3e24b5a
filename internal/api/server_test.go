package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-transcoder/internal/audio"
	"github.com/listenupapp/listenup-transcoder/internal/config"
	"github.com/listenupapp/listenup-transcoder/internal/domain"
	"github.com/listenupapp/listenup-transcoder/internal/encoder"
	"github.com/listenupapp/listenup-transcoder/internal/scanner"
	"github.com/listenupapp/listenup-transcoder/internal/service"
	"github.com/listenupapp/listenup-transcoder/internal/sse"
	"github.com/listenupapp/listenup-transcoder/internal/store"
	"github.com/listenupapp/listenup-transcoder/internal/transcode"
)

type silentDecoder struct{}

func (silentDecoder) Decode(string) (*audio.RawAudioData, error) {
	return audio.NewRawAudioData(map[audio.ChannelLabel][]int32{audio.FrontLeft: make([]int32, 32)}, 8000, 16, nil, nil, nil)
}

type stubEncoder struct{}

func (stubEncoder) Encode(*audio.RawAudioData, domain.EncodeConfig) ([]byte, error) {
	return []byte("encoded"), nil
}

func setupServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	manager := sse.NewManager(logger)
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	st, err := store.New(store.Options{InMemory: true}, logger, manager)
	require.NoError(t, err)

	lister := scanner.NewScanner(logger)
	classifier := scanner.NewClassifier(audio.DefaultRegistry())
	runner := transcode.NewRunner(
		lister,
		classifier,
		silentDecoder{},
		func(domain.TargetFormat) (encoder.Encoder, error) { return stubEncoder{}, nil },
		logger,
	)
	transcodeSvc := service.NewTranscodeService(runner, st, manager, config.TranscodeConfig{
		Workers:          2,
		CopyUnrecognized: true,
		Quality:          "best",
		TagMerge:         "last",
		PollInterval:     5 * time.Millisecond,
	}, logger)

	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = transcodeSvc.Stop(stopCtx)
		_ = manager.Shutdown(stopCtx)
		cancel()
		_ = st.Close()
	})

	services := &Services{
		Transcode:   transcodeSvc,
		Directories: service.NewDirectoryService(lister, classifier, logger),
	}
	return NewServer(services, st, manager, sse.NewHandler(manager, logger), []string{"*"}, logger)
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, rel := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(rel), 0o644))
	}
}

func waitForJob(t *testing.T, srv http.Handler, jobID string) JobResponse {
	t.Helper()
	var job JobResponse
	require.Eventually(t, func() bool {
		rec := doJSON(t, srv, http.MethodGet, "/api/v1/jobs/"+jobID, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		job = decode[JobResponse](t, rec)
		return job.Status != string(domain.JobStatusRunning)
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestHealthCheck(t *testing.T) {
	srv := setupServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Components["database"].Status)
	assert.Equal(t, "0 connected clients", resp.Components["sse"].Message)
	assert.Equal(t, "idle", resp.Components["jobs"].Message)
}

func TestStartJob_RunsToCompletion(t *testing.T) {
	srv := setupServer(t)
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")
	writeTree(t, src, "a.flac", "b.txt")

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/jobs", map[string]any{
		"source":      src,
		"destination": dst,
		"quality":     "NICE",
		"bitrate":     192,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	started := decode[JobResponse](t, rec)
	assert.True(t, strings.HasPrefix(started.ID, "job-"))
	assert.Equal(t, "nice", started.Quality)
	assert.Equal(t, 192, started.Bitrate)
	assert.Equal(t, "mp3", started.TargetFormat)
	assert.Equal(t, 2, started.Workers)

	job := waitForJob(t, srv, started.ID)
	assert.Equal(t, string(domain.JobStatusCompleted), job.Status)
	assert.Equal(t, 2, job.FilesFound)
	assert.Equal(t, 2, job.Succeeded)
	assert.Zero(t, job.Failed)
	assert.NotNil(t, job.FinishedAt)

	data, err := os.ReadFile(filepath.Join(dst, "a.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "encoded", string(data))
	data, err = os.ReadFile(filepath.Join(dst, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b.txt", string(data))

	list := decode[ListJobsResponse](t, doJSON(t, srv, http.MethodGet, "/api/v1/jobs", nil))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, started.ID, list.Jobs[0].ID)

	status := decode[StatusResponse](t, doJSON(t, srv, http.MethodGet, "/api/v1/status", nil))
	assert.Equal(t, "idle", status.State)
	assert.Empty(t, status.JobID)
}

func TestStartJob_Validation(t *testing.T) {
	srv := setupServer(t)
	src := t.TempDir()

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{
			name:  "missing source directory",
			body:  map[string]any{"source": filepath.Join(src, "nope"), "destination": "/tmp/out"},
			field: "source",
		},
		{
			name:  "same source and destination",
			body:  map[string]any{"source": src, "destination": src},
			field: "destination",
		},
		{
			name:  "unknown quality",
			body:  map[string]any{"source": src, "destination": "/tmp/out", "quality": "pristine"},
			field: "quality",
		},
		{
			name:  "unsupported bitrate",
			body:  map[string]any{"source": src, "destination": "/tmp/out", "bitrate": 100},
			field: "bitrate",
		},
		{
			name:  "unknown tag merge policy",
			body:  map[string]any{"source": src, "destination": "/tmp/out", "tag_merge": "longest"},
			field: "tag_merge",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/v1/jobs", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			resp := decode[struct {
				Code    string            `json:"code"`
				Details map[string]string `json:"details"`
			}](t, rec)
			assert.Equal(t, "VALIDATION", resp.Code)
			assert.Contains(t, resp.Details, tt.field)
		})
	}

	status := decode[StatusResponse](t, doJSON(t, srv, http.MethodGet, "/api/v1/status", nil))
	assert.Equal(t, "idle", status.State)
}

func TestStartJob_UnsupportedFormat(t *testing.T) {
	srv := setupServer(t)
	src := t.TempDir()

	for _, format := range []string{"opus", "ogg"} {
		t.Run(format, func(t *testing.T) {
			body := map[string]any{"source": src, "destination": filepath.Join(t.TempDir(), "out"), "format": format}
			rec := doJSON(t, srv, http.MethodPost, "/api/v1/jobs", body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			resp := decode[APIError](t, rec)
			assert.Equal(t, "CONFIG_ERROR", resp.Code)
			assert.Contains(t, resp.Message, format)
		})
	}

	status := decode[StatusResponse](t, doJSON(t, srv, http.MethodGet, "/api/v1/status", nil))
	assert.Equal(t, "idle", status.State)
}

func TestStartJob_MissingBodyField(t *testing.T) {
	srv := setupServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/jobs", map[string]any{"source": t.TempDir()})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decode[APIError](t, rec)
	assert.Equal(t, "VALIDATION", resp.Code)
}

func TestCancelJob_NoneRunning(t *testing.T) {
	srv := setupServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/jobs/cancel", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	resp := decode[APIError](t, rec)
	assert.Equal(t, "CONFLICT", resp.Code)
	assert.Equal(t, "no conversion job is running", resp.Message)
}

func TestGetJob_NotFound(t *testing.T) {
	srv := setupServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/jobs/job-missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	resp := decode[APIError](t, rec)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestListJobs_Empty(t *testing.T) {
	srv := setupServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[ListJobsResponse](t, rec)
	assert.Zero(t, resp.Total)
	assert.Empty(t, resp.Jobs)
}

func TestCheckDirectory(t *testing.T) {
	srv := setupServer(t)
	src := t.TempDir()
	writeTree(t, src, "disc1/01.flac", "disc1/02.FLAC", "cover.jpg", "notes/readme.txt")

	rec := doJSON(t, srv, http.MethodPost, "/api/v1/directories/check", map[string]any{"path": src})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[DirectoryResponse](t, rec)
	assert.Equal(t, src, resp.Path)
	assert.Equal(t, 4, resp.Files)
	assert.Equal(t, 2, resp.Convertible)
	assert.Equal(t, 2, resp.Other)
}

func TestCheckDirectory_Errors(t *testing.T) {
	srv := setupServer(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "a.flac")
	writeTree(t, dir, "a.flac")

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{name: "missing", path: filepath.Join(dir, "missing"), status: http.StatusUnprocessableEntity, code: "IO_ERROR"},
		{name: "not a directory", path: file, status: http.StatusUnprocessableEntity, code: "IO_ERROR"},
		{name: "empty path", path: "", status: http.StatusBadRequest, code: "VALIDATION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/v1/directories/check", map[string]any{"path": tt.path})
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[APIError](t, rec).Code)
		})
	}
}

func TestEventStreamRoute(t *testing.T) {
	srv := setupServer(t)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)
}

func TestCORSPreflight(t *testing.T) {
	srv := setupServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
