// Package providers contains dependency injection providers for the transcoder server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-transcoder/internal/config"
	"github.com/listenupapp/listenup-transcoder/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      logger.Format(cfg.Logger.Format),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting ListenUp Transcoder",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Storage.DataPath,
		"workers", cfg.Transcode.Workers,
	)

	return log, nil
}
