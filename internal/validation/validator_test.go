package validation_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/listenup-transcoder/internal/errors"
	"github.com/listenupapp/listenup-transcoder/internal/validation"
)

type jobRequest struct {
	Source      string `json:"source" validate:"required,dir"`
	Destination string `json:"destination" validate:"required,nefield=Source"`
	Workers     int    `json:"workers" validate:"gte=0,lte=256"`
	Quality     string `json:"quality" validate:"omitempty,quality"`
	Bitrate     int    `json:"bitrate" validate:"bitrate"`
	TagMerge    string `json:"tag_merge" validate:"tagmerge"`
}

func validRequest(t *testing.T) jobRequest {
	t.Helper()
	return jobRequest{
		Source:      t.TempDir(),
		Destination: t.TempDir(),
		Workers:     4,
		Quality:     "best",
		Bitrate:     320,
		TagMerge:    "last",
	}
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()
	assert.NoError(t, v.Validate(validRequest(t)))

	minimal := jobRequest{Source: t.TempDir(), Destination: "/out"}
	assert.NoError(t, v.Validate(minimal))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name   string
		mutate func(*jobRequest)
		field  string
	}{
		{"missing source", func(r *jobRequest) { r.Source = "" }, "source"},
		{"source not a directory", func(r *jobRequest) { r.Source = "/definitely/not/here" }, "source"},
		{"same destination", func(r *jobRequest) { r.Destination = r.Source }, "destination"},
		{"too many workers", func(r *jobRequest) { r.Workers = 1000 }, "workers"},
		{"unknown quality", func(r *jobRequest) { r.Quality = "superb" }, "quality"},
		{"off-step bitrate", func(r *jobRequest) { r.Bitrate = 100 }, "bitrate"},
		{"unknown policy", func(r *jobRequest) { r.TagMerge = "middle" }, "tag_merge"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(t)
			tt.mutate(&req)

			err := v.Validate(req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domainerrors.ErrValidation))

			var domainErr *domainerrors.Error
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tt.field)
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	req := validRequest(t)
	req.TagMerge = "sometimes"

	err := v.Validate(req)
	require.Error(t, err)

	// JSON tag name, not the struct field name
	assert.Contains(t, err.Error(), "tag_merge")
	assert.NotContains(t, err.Error(), "TagMerge")
}

func TestValidator_NonStruct(t *testing.T) {
	v := validation.New()
	err := v.Validate("not a struct")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, domainerrors.ErrValidation))
}
