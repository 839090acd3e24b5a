package transcode

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/listenupapp/listenup-transcoder/internal/audio"
	"github.com/listenupapp/listenup-transcoder/internal/domain"
	"github.com/listenupapp/listenup-transcoder/internal/encoder"
	domainerrors "github.com/listenupapp/listenup-transcoder/internal/errors"
	"github.com/listenupapp/listenup-transcoder/internal/progress"
	"github.com/listenupapp/listenup-transcoder/internal/scanner"
)

// Lister enumerates the files of a source tree.
type Lister interface {
	Scan(ctx context.Context, root string) ([]string, error)
}

// Decoder builds decoded audio from a file path.
type Decoder interface {
	Decode(path string) (*audio.RawAudioData, error)
}

// EncoderFor returns the encoder for a target format.
type EncoderFor func(format domain.TargetFormat) (encoder.Encoder, error)

// Result summarizes a finished run.
type Result struct {
	FilesFound int
	// Processed counts the files each worker took from the queue, by worker id.
	Processed map[int]int
	Cancelled bool
}

// Runner executes conversion jobs.
type Runner struct {
	lister     Lister
	classifier *scanner.Classifier
	decoder    Decoder
	encoderFor EncoderFor
	logger     *slog.Logger
}

// NewRunner creates a runner.
func NewRunner(lister Lister, classifier *scanner.Classifier, decoder Decoder, encoderFor EncoderFor, logger *slog.Logger) *Runner {
	return &Runner{
		lister:     lister,
		classifier: classifier,
		decoder:    decoder,
		encoderFor: encoderFor,
		logger:     logger,
	}
}

// Run scans the source tree, fills the queue and drains it with job.Workers
// workers, appending progress events to buf. The token must already be
// Running; Run returns it to Idle when the last worker has stopped.
//
// started, if non-nil, is called with the file count before any worker starts.
// A scan failure is returned after a job-level Fail and the JobFinished event.
func (r *Runner) Run(
	ctx context.Context,
	job domain.ConversionJob,
	token *Token,
	buf *progress.Buffer,
	started func(files int),
) (Result, error) {
	defer token.Finish()

	if err := job.Check(); err != nil {
		r.finish(job, buf, fmt.Sprintf("Conversion failed: %v", err), err)
		return Result{}, err
	}
	enc, err := r.encoderFor(job.TargetFormat)
	if err != nil {
		r.finish(job, buf, fmt.Sprintf("Conversion failed: %v", err), err)
		return Result{}, err
	}

	files, err := r.lister.Scan(ctx, job.SourceRoot)
	if err != nil {
		r.logger.Error("source scan failed",
			slog.String("job_id", job.ID),
			slog.String("root", job.SourceRoot),
			slog.Any("error", err),
		)
		r.finish(job, buf, fmt.Sprintf("Failed to read %s: %v", job.SourceRoot, err), err)
		return Result{}, err
	}

	result := Result{FilesFound: len(files), Processed: make(map[int]int, job.Workers)}
	if started != nil {
		started(len(files))
	}

	r.logger.Info("conversion started",
		slog.String("job_id", job.ID),
		slog.Int("files", len(files)),
		slog.Int("workers", job.Workers),
	)

	queue := NewWorkQueue(files)
	var mu sync.Mutex
	var g errgroup.Group
	for id := 1; id <= job.Workers; id++ {
		g.Go(func() error {
			n := r.work(ctx, id, job, enc, queue, token, buf)
			mu.Lock()
			result.Processed[id] = n
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result.Cancelled = token.State() == StateCancelling || ctx.Err() != nil
	msg := "Conversion Finished"
	if result.Cancelled {
		msg = "Conversion Cancelled"
	}
	r.finish(job, buf, msg, nil)

	r.logger.Info("conversion finished",
		slog.String("job_id", job.ID),
		slog.Bool("cancelled", result.Cancelled),
		slog.Int("remaining", queue.Len()),
	)
	return result, nil
}

// finish emits the optional job-level failure and the terminal JobFinished event.
func (r *Runner) finish(job domain.ConversionJob, buf *progress.Buffer, msg string, err error) {
	if err != nil {
		buf.Push(event(job, domain.JobWorker, "", msg, domain.EventFail))
		msg = "Conversion Finished"
	}
	buf.Push(event(job, domain.JobWorker, "", msg, domain.EventJobFinished))
}

// work is one worker's loop. It returns the number of files it took.
func (r *Runner) work(
	ctx context.Context,
	id int,
	job domain.ConversionJob,
	enc encoder.Encoder,
	queue *WorkQueue,
	token *Token,
	buf *progress.Buffer,
) int {
	taken := 0
	for {
		if !token.Running() || ctx.Err() != nil {
			r.logger.Debug("worker observed cancellation", slog.Int("worker_id", id))
			return taken
		}

		rel, ok := queue.Pop()
		if !ok {
			buf.Push(event(job, id, "", "No more files to convert", domain.EventWorkerFinished))
			return taken
		}
		taken++

		if e, emit := r.process(id, job, enc, rel); emit {
			buf.Push(e)
		}
	}
}

// process handles one file to completion. It reports false when the file is
// skipped without an event.
func (r *Runner) process(id int, job domain.ConversionJob, enc encoder.Encoder, rel string) (e domain.ProgressEvent, emit bool) {
	src := filepath.Join(job.SourceRoot, rel)
	defer func() {
		if rec := recover(); rec != nil {
			err := domainerrors.Internalf("panic: %v", rec)
			r.logger.Error("file processing panicked",
				slog.Int("worker_id", id),
				slog.String("path", src),
				slog.Any("error", err),
			)
			e, emit = event(job, id, rel, fmt.Sprintf("Failed to process %s: %v", src, err), domain.EventFail), true
		}
	}()

	switch r.classifier.Classify(rel) {
	case scanner.ActionConvert:
		return r.convert(id, job, enc, rel), true
	default:
		if !job.CopyUnrecognized {
			return domain.ProgressEvent{}, false
		}
		return r.copy(id, job, rel), true
	}
}

func (r *Runner) convert(id int, job domain.ConversionJob, enc encoder.Encoder, rel string) domain.ProgressEvent {
	src := filepath.Join(job.SourceRoot, rel)
	dst := filepath.Join(job.DestinationRoot, replaceExt(rel, job.TargetFormat.Extension()))

	raw, err := r.decoder.Decode(src)
	if err != nil {
		r.logFailure(id, src, "decode", err)
		return event(job, id, rel, fmt.Sprintf("Failed to decode file at %s. Skipping this file. (%v)", src, err), domain.EventFail)
	}

	data, err := encodeSafely(enc, raw, job.Encode)
	if err != nil {
		r.logFailure(id, src, "encode", err)
		return event(job, id, rel, fmt.Sprintf("Failed to encode %s: %v", src, err), domain.EventFail)
	}

	if err := writeFile(dst, data); err != nil {
		r.logFailure(id, dst, "write", err)
		return event(job, id, rel, fmt.Sprintf("Failed to write %s: %v", dst, err), domain.EventFail)
	}

	return event(job, id, rel,
		fmt.Sprintf("Converted %s to %s (%s)", src, dst, humanize.Bytes(uint64(len(data)))),
		domain.EventSuccess)
}

func (r *Runner) copy(id int, job domain.ConversionJob, rel string) domain.ProgressEvent {
	src := filepath.Join(job.SourceRoot, rel)
	dst := filepath.Join(job.DestinationRoot, rel)

	n, err := copyFile(src, dst)
	if err != nil {
		r.logFailure(id, src, "copy", err)
		return event(job, id, rel, fmt.Sprintf("Failed to copy %s to %s: %v", src, dst, err), domain.EventFail)
	}
	return event(job, id, rel, fmt.Sprintf("Copied %s to %s (%s)", src, dst, humanize.Bytes(uint64(n))), domain.EventSuccess)
}

func (r *Runner) logFailure(id int, path, stage string, err error) {
	r.logger.Warn("file failed",
		slog.Int("worker_id", id),
		slog.String("path", path),
		slog.String("stage", stage),
		slog.String("code", string(domainerrors.CodeOf(err))),
		slog.Any("error", err),
	)
}

// encodeSafely turns an encoder panic into an encode error.
func encodeSafely(enc encoder.Encoder, raw *audio.RawAudioData, cfg domain.EncodeConfig) (data []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			data, err = nil, domainerrors.Encodef("encoder panic: %v", rec)
		}
	}()
	return enc.Encode(raw, cfg)
}

func replaceExt(rel, ext string) string {
	return strings.TrimSuffix(rel, filepath.Ext(rel)) + ext
}

// writeFile creates dst's parent directories and overwrites dst with data.
func writeFile(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return domainerrors.IOf(err, "create directory %s", filepath.Dir(dst))
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return domainerrors.IOf(err, "write %s", dst)
	}
	return nil
}

// copyFile copies src to dst byte for byte, creating parent directories.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, domainerrors.IOf(err, "open %s", src)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, domainerrors.IOf(err, "create directory %s", filepath.Dir(dst))
	}

	out, err := os.Create(dst)
	if err != nil {
		return 0, domainerrors.IOf(err, "create %s", dst)
	}

	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return n, domainerrors.IOf(err, "copy to %s", dst)
	}
	return n, nil
}

func event(job domain.ConversionJob, worker int, rel, msg string, kind domain.EventKind) domain.ProgressEvent {
	return domain.ProgressEvent{
		Timestamp: time.Now(),
		JobID:     job.ID,
		Path:      filepath.ToSlash(rel),
		Message:   msg,
		Kind:      kind,
		Worker:    worker,
	}
}
