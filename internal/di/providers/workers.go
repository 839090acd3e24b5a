package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-transcoder/internal/audio"
	"github.com/listenupapp/listenup-transcoder/internal/config"
	"github.com/listenupapp/listenup-transcoder/internal/domain"
	"github.com/listenupapp/listenup-transcoder/internal/encoder"
	"github.com/listenupapp/listenup-transcoder/internal/logger"
	"github.com/listenupapp/listenup-transcoder/internal/scanner"
	"github.com/listenupapp/listenup-transcoder/internal/service"
	"github.com/listenupapp/listenup-transcoder/internal/transcode"
)

// ProvideRunner provides the job runner wired to the real decoders and encoders.
func ProvideRunner(i do.Injector) (*transcode.Runner, error) {
	log := do.MustInvoke[*logger.Logger](i)
	registry := do.MustInvoke[*audio.Registry](i)
	fileScanner := do.MustInvoke[*scanner.Scanner](i)
	classifier := do.MustInvoke[*scanner.Classifier](i)

	encoderFor := func(format domain.TargetFormat) (encoder.Encoder, error) {
		return encoder.ForFormat(format, log.Logger)
	}

	return transcode.NewRunner(fileScanner, classifier, registry, encoderFor, log.Logger), nil
}

// TranscodeServiceHandle wraps the transcode service with shutdown capability.
type TranscodeServiceHandle struct {
	*service.TranscodeService
}

// Shutdown implements do.Shutdownable. A running job is cancelled and
// given shutdownTimeout to finish the files already in progress.
func (h *TranscodeServiceHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.TranscodeService.Stop(ctx)
}

// ProvideTranscodeService provides the conversion job service.
func ProvideTranscodeService(i do.Injector) (*TranscodeServiceHandle, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	runner := do.MustInvoke[*transcode.Runner](i)

	svc := service.NewTranscodeService(runner, storeHandle.Store, sseHandle.Manager, cfg.Transcode, log.Logger)

	log.Info("Transcode service started",
		"workers", cfg.Transcode.Workers,
		"quality", cfg.Transcode.Quality,
	)

	return &TranscodeServiceHandle{TranscodeService: svc}, nil
}
