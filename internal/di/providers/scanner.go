package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-transcoder/internal/audio"
	"github.com/listenupapp/listenup-transcoder/internal/logger"
	"github.com/listenupapp/listenup-transcoder/internal/scanner"
)

// ProvideAudioRegistry provides the decoder registry (FLAC and WAV).
func ProvideAudioRegistry(i do.Injector) (*audio.Registry, error) {
	log := do.MustInvoke[*logger.Logger](i)

	registry := audio.DefaultRegistry()
	log.Debug("Audio decoders registered", "extensions", registry.Extensions())

	return registry, nil
}

// ProvideScanner provides the source tree scanner.
func ProvideScanner(i do.Injector) (*scanner.Scanner, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return scanner.NewScanner(log.Logger), nil
}

// ProvideClassifier provides the convert-or-copy classifier.
func ProvideClassifier(i do.Injector) (*scanner.Classifier, error) {
	registry := do.MustInvoke[*audio.Registry](i)
	return scanner.NewClassifier(registry), nil
}
