package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/listenup-transcoder/internal/errors"
)

func TestParseQuality(t *testing.T) {
	tests := []struct {
		input string
		want  Quality
		level int
		ok    bool
	}{
		{"best", QualityBest, 0, true},
		{"BEST", QualityBest, 0, true},
		{"good", QualityGood, 5, true},
		{" worst ", QualityWorst, 9, true},
		{"excellent", "", 0, false},
		{"", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			q, err := ParseQuality(tt.input)
			if !tt.ok {
				assert.True(t, domainerrors.Is(err, domainerrors.ErrConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, q)
			assert.Equal(t, tt.level, q.Level())
		})
	}

	assert.Len(t, Qualities(), 10)
}

func TestBitrate(t *testing.T) {
	assert.Len(t, Bitrates(), 16)
	assert.Equal(t, 320, BitrateUnknown.Kbps())
	assert.Equal(t, 128, Bitrate(128).Kbps())
	assert.True(t, Bitrate(8).Valid())
	assert.True(t, BitrateUnknown.Valid())
	assert.False(t, Bitrate(100).Valid())
	assert.False(t, Bitrate(-1).Valid())
}

func TestConversionJob_Check(t *testing.T) {
	valid := ConversionJob{
		SourceRoot:      "/music",
		DestinationRoot: "/out",
		Workers:         2,
		TargetFormat:    TargetMP3,
		Encode:          DefaultEncodeConfig(),
	}
	require.NoError(t, valid.Check())

	tests := []struct {
		name   string
		mutate func(j *ConversionJob)
	}{
		{"zero workers", func(j *ConversionJob) { j.Workers = 0 }},
		{"negative workers", func(j *ConversionJob) { j.Workers = -3 }},
		{"reserved opus", func(j *ConversionJob) { j.TargetFormat = TargetOpus }},
		{"unknown format", func(j *ConversionJob) { j.TargetFormat = "aac" }},
		{"bad bitrate", func(j *ConversionJob) { j.Encode.Bitrate = 100 }},
		{"bad quality", func(j *ConversionJob) { j.Encode.Quality = "great" }},
		{"missing source", func(j *ConversionJob) { j.SourceRoot = "" }},
		{"bad tag policy", func(j *ConversionJob) { j.Encode.TagMerge = "middle" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := valid
			tt.mutate(&job)
			err := job.Check()
			assert.True(t, domainerrors.Is(err, domainerrors.ErrConfig), "got %v", err)
		})
	}
}

func TestTargetFormat(t *testing.T) {
	assert.Equal(t, ".mp3", TargetMP3.Extension())
	assert.True(t, TargetMP3.Implemented())
	assert.False(t, TargetOpus.Implemented())
}

func TestJobRecord_Tally(t *testing.T) {
	record := NewJobRecord(ConversionJob{ID: "job-1", Workers: 1, TargetFormat: TargetMP3})

	for _, kind := range []EventKind{EventSuccess, EventSuccess, EventFail, EventWorkerFinished, EventJobFinished} {
		record.Tally(ProgressEvent{Kind: kind})
	}

	assert.Equal(t, 2, record.Succeeded)
	assert.Equal(t, 1, record.Failed)
	assert.False(t, record.IsTerminal())

	record.MarkFinished(JobStatusCancelled, "")
	assert.True(t, record.IsTerminal())
	assert.NotNil(t, record.FinishedAt)
}
