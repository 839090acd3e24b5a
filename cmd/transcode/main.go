// Package main provides the transcode command: a one-shot FLAC to MP3 mirror of a directory tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/listenupapp/listenup-transcoder/internal/audio"
	"github.com/listenupapp/listenup-transcoder/internal/config"
	"github.com/listenupapp/listenup-transcoder/internal/domain"
	"github.com/listenupapp/listenup-transcoder/internal/encoder"
	"github.com/listenupapp/listenup-transcoder/internal/lame"
	"github.com/listenupapp/listenup-transcoder/internal/logger"
	"github.com/listenupapp/listenup-transcoder/internal/scanner"
	"github.com/listenupapp/listenup-transcoder/internal/service"
	"github.com/listenupapp/listenup-transcoder/internal/sse"
	"github.com/listenupapp/listenup-transcoder/internal/store"
	"github.com/listenupapp/listenup-transcoder/internal/transcode"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand needs once flags are parsed.
type app struct {
	cfg *config.Config
	log *logger.Logger

	envFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "transcode",
		Short: "Mirror a FLAC library into an MP3 tree",
		Long: `transcode walks a source directory, converts every recognized audio file
to MP3 at the same relative path under the destination, and copies everything
else verbatim. The source tree is never modified.

Examples:
  transcode convert --src ~/Music/flac --dest ~/Music/mp3
  transcode convert --src ./in --dest ./out --quality good --bitrate 192 -w 8
  transcode check ~/Music/flac`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Path to .env file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(newConvertCmd(a), newCheckCmd(a), newFormatsCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load([]string{"-env-file", a.envFile, "-log-level", a.logLevel})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.New(logger.Config{
		Writer:      cmd.ErrOrStderr(),
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      logger.Format(cfg.Logger.Format),
		Environment: cfg.App.Environment,
	})
	return nil
}

func (a *app) pipeline() (*audio.Registry, *scanner.Scanner, *scanner.Classifier) {
	registry := audio.DefaultRegistry()
	return registry, scanner.NewScanner(a.log.Logger), scanner.NewClassifier(registry)
}

type convertOptions struct {
	src              string
	dest             string
	workers          int
	quality          string
	bitrate          int
	tagMerge         string
	format           string
	copyUnrecognized bool
}

func newConvertCmd(a *app) *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a source tree into the destination tree",
		Long: `convert mirrors --src into --dest. Flags left unset fall back to the
TRANSCODE_* environment defaults. Ctrl-C stops workers before their next
file; files already in progress are finished. A second Ctrl-C exits at once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runConvert(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.src, "src", "", "Source directory (required)")
	f.StringVar(&opts.dest, "dest", "", "Destination directory (required)")
	f.IntVarP(&opts.workers, "workers", "w", 0, "Worker count (default: TRANSCODE_WORKERS or number of CPUs)")
	f.StringVarP(&opts.quality, "quality", "q", "", "Encoder quality: "+joinQualities())
	f.IntVarP(&opts.bitrate, "bitrate", "b", 0, "Constant bitrate in kbps, 0 for 320")
	f.StringVar(&opts.tagMerge, "tag-merge", "", "Which tag wins when several map to one field: last or first")
	f.StringVar(&opts.format, "format", string(domain.TargetMP3), "Target format")
	f.BoolVar(&opts.copyUnrecognized, "copy-unrecognized", true, "Copy files that are not converted")
	_ = cmd.MarkFlagRequired("src")
	_ = cmd.MarkFlagRequired("dest")

	return cmd
}

func (a *app) runConvert(cmd *cobra.Command, opts *convertOptions) error {
	src, err := config.ExpandPath(opts.src, "")
	if err != nil {
		return err
	}
	dest, err := config.ExpandPath(opts.dest, "")
	if err != nil {
		return err
	}

	req := service.StartJobRequest{
		Source:      src,
		Destination: dest,
		Workers:     opts.workers,
		Format:      domain.TargetFormat(opts.format),
		Bitrate:     domain.Bitrate(opts.bitrate),
		TagMerge:    domain.TagMergePolicy(opts.tagMerge),
	}
	if opts.quality != "" {
		q, err := domain.ParseQuality(opts.quality)
		if err != nil {
			return err
		}
		req.Quality = q
	}
	if cmd.Flags().Changed("copy-unrecognized") {
		req.CopyUnrecognized = &opts.copyUnrecognized
	}

	// Job history is not kept between CLI runs.
	st, err := store.New(store.Options{InMemory: true}, a.log.Logger, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	registry, fileScanner, classifier := a.pipeline()
	runner := transcode.NewRunner(fileScanner, classifier, registry, func(format domain.TargetFormat) (encoder.Encoder, error) {
		return encoder.ForFormat(format, a.log.Logger)
	}, a.log.Logger)

	out := cmd.OutOrStdout()
	printer := &progressPrinter{w: out}
	svc := service.NewTranscodeService(runner, st, printer, a.cfg.Transcode, a.log.Logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	rec, err := svc.StartJob(ctx, req)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// Restore default signal handling so a second Ctrl-C exits.
			stop()
			if _, err := svc.Cancel(); err == nil {
				fmt.Fprintln(out, "Cancelling: finishing files in progress...")
			}
		case <-done:
		}
	}()

	err = svc.Wait(context.Background())
	close(done)
	if err != nil {
		return err
	}

	final, err := svc.GetJob(context.Background(), rec.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s: %s converted or copied, %s failed of %s files (%s written) in %s\n",
		final.Status,
		humanize.Comma(int64(final.Succeeded)),
		humanize.Comma(int64(final.Failed)),
		humanize.Comma(int64(final.FilesFound)),
		humanize.Bytes(treeSize(dest)),
		time.Since(start).Round(time.Millisecond),
	)

	switch {
	case final.Status == domain.JobStatusFailed:
		return errors.New(final.Error)
	case final.Failed > 0:
		return fmt.Errorf("%d files failed", final.Failed)
	}
	return nil
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check DIR",
		Short: "Count the files a conversion of DIR would convert or copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0], "")
			if err != nil {
				return err
			}

			_, fileScanner, classifier := a.pipeline()
			report, err := service.NewDirectoryService(fileScanner, classifier, a.log.Logger).Check(cmd.Context(), path)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s files, %s convertible, %s other (%s)\n",
				report.Path,
				humanize.Comma(int64(report.Files)),
				humanize.Comma(int64(report.Convertible)),
				humanize.Comma(int64(report.Other)),
				humanize.Bytes(treeSize(path)),
			)
			return nil
		},
	}
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported input extensions, quality levels, bitrates and the encoder",
		Args:  cobra.NoArgs,
		// No config needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "inputs:    %s\n", strings.Join(audio.DefaultRegistry().Extensions(), " "))
			fmt.Fprintf(out, "qualities: %s\n", joinQualities())

			rates := make([]string, 0, len(domain.Bitrates()))
			for _, b := range domain.Bitrates() {
				rates = append(rates, fmt.Sprint(b.Kbps()))
			}
			fmt.Fprintf(out, "bitrates:  %s kbps\n", strings.Join(rates, " "))
			fmt.Fprintf(out, "encoder:   LAME %s\n", lame.Version())
		},
	}
}

// progressPrinter writes drained progress to the terminal. It receives file
// events from the emitter goroutine and lifecycle events from the job goroutine.
type progressPrinter struct {
	w     io.Writer
	mu    sync.Mutex
	total int
	done  int
}

func (p *progressPrinter) Publish(e domain.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case e.IsFileEvent() && e.Worker != domain.JobWorker:
		p.done++
		fmt.Fprintf(p.w, "[%d/%d] %s\n", p.done, p.total, e.Message)
	case e.Kind == domain.EventFail, e.Kind == domain.EventJobFinished:
		fmt.Fprintln(p.w, e.Message)
	}
}

func (p *progressPrinter) Emit(event any) {
	evt, ok := event.(sse.Event)
	if !ok || evt.Type != sse.EventJobStarted {
		return
	}
	data, ok := evt.Data.(sse.JobStartedEventData)
	if !ok {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = data.FilesFound
	fmt.Fprintf(p.w, "Found %s files, %d workers\n", humanize.Comma(int64(data.FilesFound)), data.Workers)
}

// treeSize sums regular file sizes under root. Unreadable entries are skipped.
func treeSize(root string) uint64 {
	var total uint64
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // best effort
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += uint64(info.Size())
			}
		}
		return nil
	})
	return total
}

func joinQualities() string {
	names := make([]string, 0, len(domain.Qualities()))
	for _, q := range domain.Qualities() {
		names = append(names, string(q))
	}
	return strings.Join(names, ", ")
}
