package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/listenup-transcoder/internal/logger"
	"github.com/listenupapp/listenup-transcoder/internal/scanner"
	"github.com/listenupapp/listenup-transcoder/internal/service"
)

// ProvideDirectoryService provides the source directory inspection service.
func ProvideDirectoryService(i do.Injector) (*service.DirectoryService, error) {
	fileScanner := do.MustInvoke[*scanner.Scanner](i)
	classifier := do.MustInvoke[*scanner.Classifier](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewDirectoryService(fileScanner, classifier, log.Logger), nil
}
