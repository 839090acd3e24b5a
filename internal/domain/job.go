// Package domain contains the core types shared by the transcoding pipeline and its transports.
package domain

import (
	domainerrors "github.com/listenupapp/listenup-transcoder/internal/errors"
)

// TargetFormat selects the destination codec of a job.
type TargetFormat string

const (
	// TargetMP3 is the only implemented destination codec.
	TargetMP3 TargetFormat = "mp3"
	// TargetOpus is a reserved selector. Dispatching it is a configuration error.
	TargetOpus TargetFormat = "opus"
)

// Extension returns the canonical file extension for the format, including the dot.
func (f TargetFormat) Extension() string {
	return "." + string(f)
}

// Implemented reports whether a job may be dispatched with this format.
func (f TargetFormat) Implemented() bool {
	return f == TargetMP3
}

// TagMergePolicy decides which value wins when several source tags map to the same output field.
type TagMergePolicy string

const (
	// TagMergeLastWins keeps the last tag seen in source order. This is the default.
	TagMergeLastWins TagMergePolicy = "last"
	// TagMergeFirstWins keeps the first tag seen in source order.
	TagMergeFirstWins TagMergePolicy = "first"
)

// EncodeConfig carries the encoder settings of a job.
type EncodeConfig struct {
	Quality  Quality
	Bitrate  Bitrate
	TagMerge TagMergePolicy
}

// DefaultEncodeConfig returns best quality at the highest bitrate with last-write-wins tags.
func DefaultEncodeConfig() EncodeConfig {
	return EncodeConfig{
		Quality:  QualityBest,
		Bitrate:  BitrateUnknown,
		TagMerge: TagMergeLastWins,
	}
}

// ConversionJob describes one mirror-and-transcode run. It is immutable once started.
type ConversionJob struct {
	ID               string
	SourceRoot       string
	DestinationRoot  string
	Workers          int
	CopyUnrecognized bool
	TargetFormat     TargetFormat
	Encode           EncodeConfig
}

// Check validates the job before dispatch. Failures are CONFIG_ERROR.
func (j ConversionJob) Check() error {
	if j.SourceRoot == "" || j.DestinationRoot == "" {
		return domainerrors.Configf("source and destination roots are required")
	}
	if j.Workers < 1 {
		return domainerrors.Configf("worker count must be positive, got %d", j.Workers)
	}
	if !j.TargetFormat.Implemented() {
		return domainerrors.Configf("target format %q is not supported", j.TargetFormat)
	}
	if _, err := ParseQuality(string(j.Encode.Quality)); err != nil {
		return err
	}
	if !j.Encode.Bitrate.Valid() {
		return domainerrors.Configf("bitrate %d kbps is not supported", j.Encode.Bitrate)
	}
	if !j.Encode.TagMerge.Valid() {
		return domainerrors.Configf("unknown tag merge policy %q", j.Encode.TagMerge)
	}
	return nil
}

// Valid reports whether p is a known policy. The empty policy means last-wins.
func (p TagMergePolicy) Valid() bool {
	return p == "" || p == TagMergeLastWins || p == TagMergeFirstWins
}
