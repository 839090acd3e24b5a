// Package di provides dependency injection configuration for the transcoder server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-transcoder/internal/audio"
	"github.com/listenupapp/listenup-transcoder/internal/config"
	"github.com/listenupapp/listenup-transcoder/internal/di/providers"
	"github.com/listenupapp/listenup-transcoder/internal/logger"
	"github.com/listenupapp/listenup-transcoder/internal/scanner"
	"github.com/listenupapp/listenup-transcoder/internal/service"
	"github.com/listenupapp/listenup-transcoder/internal/transcode"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Database layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)

	// Pipeline
	do.Provide(injector, providers.ProvideAudioRegistry)
	do.Provide(injector, providers.ProvideScanner)
	do.Provide(injector, providers.ProvideClassifier)
	do.Provide(injector, providers.ProvideRunner)

	// Business services
	do.Provide(injector, providers.ProvideTranscodeService)
	do.Provide(injector, providers.ProvideDirectoryService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*audio.Registry](injector)
	_ = do.MustInvoke[*scanner.Scanner](injector)
	_ = do.MustInvoke[*scanner.Classifier](injector)
	_ = do.MustInvoke[*transcode.Runner](injector)

	_ = do.MustInvoke[*providers.TranscodeServiceHandle](injector)
	_ = do.MustInvoke[*service.DirectoryService](injector)

	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
