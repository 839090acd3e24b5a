package progress

import (
	"context"
	"log/slog"
	"time"

	"github.com/listenupapp/listenup-transcoder/internal/domain"
)

// DefaultPollInterval is how long the emitter sleeps on an empty buffer.
const DefaultPollInterval = 100 * time.Millisecond

// Sink receives events in buffer order. Publish must not block for long.
type Sink interface {
	Publish(e domain.ProgressEvent)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(e domain.ProgressEvent)

// Publish calls f(e).
func (f SinkFunc) Publish(e domain.ProgressEvent) { f(e) }

// Fanout publishes each event to every sink in turn.
func Fanout(sinks ...Sink) Sink {
	return SinkFunc(func(e domain.ProgressEvent) {
		for _, s := range sinks {
			s.Publish(e)
		}
	})
}

// LogSink writes each event to logger.
func LogSink(logger *slog.Logger) Sink {
	return SinkFunc(func(e domain.ProgressEvent) {
		level := slog.LevelInfo
		switch e.Kind {
		case domain.EventFail:
			level = slog.LevelWarn
		case domain.EventWorkerFinished:
			level = slog.LevelDebug
		}
		logger.Log(context.Background(), level, e.Message,
			"job_id", e.JobID,
			"worker", e.Worker,
			"kind", e.Kind,
			"path", e.Path,
		)
	})
}

// Emitter drains a Buffer into a Sink.
type Emitter struct {
	poll   time.Duration
	logger *slog.Logger
}

// NewEmitter creates an emitter. A non-positive poll uses DefaultPollInterval.
func NewEmitter(poll time.Duration, logger *slog.Logger) *Emitter {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Emitter{poll: poll, logger: logger}
}

// Run publishes events oldest first until it has published a JobFinished
// event or ctx is done. Events still buffered when ctx ends are not published.
func (e *Emitter) Run(ctx context.Context, buf *Buffer, sink Sink) error {
	timer := time.NewTimer(e.poll)
	defer timer.Stop()

	published := 0
	for {
		if ev, ok := buf.Pop(); ok {
			sink.Publish(ev)
			published++
			if ev.Kind == domain.EventJobFinished {
				e.logger.Debug("progress emitter finished", "job_id", ev.JobID, "events", published)
				return nil
			}
			continue
		}

		timer.Reset(e.poll)
		select {
		case <-ctx.Done():
			e.logger.Debug("progress emitter stopped", "events", published, "pending", buf.Len())
			return ctx.Err()
		case <-timer.C:
		}
	}
}
