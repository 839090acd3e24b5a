package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerDirectoryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "checkDirectory",
		Method:      http.MethodPost,
		Path:        "/api/v1/directories/check",
		Summary:     "Check source directory",
		Description: "Scans a directory and counts the files a job would convert or copy. Nothing is written.",
		Tags:        []string{"Directories"},
	}, s.handleCheckDirectory)
}

// CheckDirectoryRequest is the request body for checking a directory.
type CheckDirectoryRequest struct {
	Path string `json:"path" validate:"required" doc:"Directory to scan"`
}

// CheckDirectoryInput wraps the check directory request for Huma.
type CheckDirectoryInput struct {
	Body CheckDirectoryRequest
}

// DirectoryResponse contains scan counts in API responses.
type DirectoryResponse struct {
	Path        string `json:"path" doc:"Scanned directory"`
	Files       int    `json:"files" doc:"Regular files found"`
	Convertible int    `json:"convertible" doc:"Files that would be transcoded"`
	Other       int    `json:"other" doc:"Files that would be copied or skipped"`
}

// DirectoryOutput wraps the directory response for Huma.
type DirectoryOutput struct {
	Body DirectoryResponse
}

func (s *Server) handleCheckDirectory(ctx context.Context, input *CheckDirectoryInput) (*DirectoryOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, toAPIError(err)
	}

	report, err := s.services.Directories.Check(ctx, input.Body.Path)
	if err != nil {
		return nil, toAPIError(err)
	}

	return &DirectoryOutput{
		Body: DirectoryResponse{
			Path:        report.Path,
			Files:       report.Files,
			Convertible: report.Convertible,
			Other:       report.Other,
		},
	}, nil
}
