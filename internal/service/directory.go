package service

import (
	"context"
	"log/slog"
	"os"

	domainerrors "github.com/listenupapp/listenup-transcoder/internal/errors"
	"github.com/listenupapp/listenup-transcoder/internal/scanner"
	"github.com/listenupapp/listenup-transcoder/internal/transcode"
)

// DirectoryReport summarizes what a job over a directory would do.
type DirectoryReport struct {
	Path        string `json:"path"`
	Files       int    `json:"files"`
	Convertible int    `json:"convertible"`
	Other       int    `json:"other"`
}

// DirectoryService inspects source trees without converting anything.
type DirectoryService struct {
	lister     transcode.Lister
	classifier *scanner.Classifier
	logger     *slog.Logger
}

// NewDirectoryService creates a directory service.
func NewDirectoryService(lister transcode.Lister, classifier *scanner.Classifier, logger *slog.Logger) *DirectoryService {
	return &DirectoryService{lister: lister, classifier: classifier, logger: logger}
}

// Check walks path and counts the files a job would convert or copy.
func (s *DirectoryService) Check(ctx context.Context, path string) (*DirectoryReport, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, domainerrors.IOf(err, "read %s", path)
	}
	if !info.IsDir() {
		return nil, domainerrors.IOf(nil, "%s is not a directory", path)
	}

	files, err := s.lister.Scan(ctx, path)
	if err != nil {
		return nil, err
	}

	report := &DirectoryReport{Path: path, Files: len(files)}
	for _, rel := range files {
		if s.classifier.Classify(rel) == scanner.ActionConvert {
			report.Convertible++
		} else {
			report.Other++
		}
	}

	s.logger.Debug("directory checked",
		slog.String("path", path),
		slog.Int("files", report.Files),
		slog.Int("convertible", report.Convertible),
	)
	return report, nil
}
