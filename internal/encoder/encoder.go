// Package encoder turns decoded audio into destination files.
package encoder

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/listenupapp/listenup-transcoder/internal/audio"
	"github.com/listenupapp/listenup-transcoder/internal/domain"
	domainerrors "github.com/listenupapp/listenup-transcoder/internal/errors"
	"github.com/listenupapp/listenup-transcoder/internal/lame"
)

// Encoder produces the complete bytes of a destination file.
type Encoder interface {
	Encode(raw *audio.RawAudioData, cfg domain.EncodeConfig) ([]byte, error)
}

// ForFormat returns the encoder for a target format. Reserved formats are a
// configuration error.
func ForFormat(format domain.TargetFormat, logger *slog.Logger) (Encoder, error) {
	switch format {
	case domain.TargetMP3:
		return NewMP3(logger), nil
	default:
		return nil, domainerrors.Configf("no encoder for target format %q", format)
	}
}

// MP3 encodes constant-bitrate MP3 with a leading ID3v2.4 tag.
type MP3 struct {
	logger *slog.Logger
}

// NewMP3 creates an MP3 encoder.
func NewMP3(logger *slog.Logger) *MP3 {
	if logger == nil {
		logger = slog.Default()
	}
	return &MP3{logger: logger}
}

var (
	leftCandidates  = []audio.ChannelLabel{audio.FrontLeft, audio.SideLeft, audio.RearLeft}
	rightCandidates = []audio.ChannelLabel{audio.FrontRight, audio.SideRight, audio.RearRight}
)

// Encode renders raw as a whole MP3 file: tag block, frames, then a no-gap flush.
func (m *MP3) Encode(raw *audio.RawAudioData, cfg domain.EncodeConfig) ([]byte, error) {
	left, right, channels, err := selectChannels(raw)
	if err != nil {
		return nil, err
	}

	enc, err := lame.New(lame.Config{
		Channels:   channels,
		SampleRate: int(raw.SampleRate()),
		Bitrate:    cfg.Bitrate.Kbps(),
		Quality:    cfg.Quality.Level(),
	})
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeEncode, "configure mp3 encoder")
	}
	defer enc.Close()

	var buf bytes.Buffer
	buf.Grow(lame.BufferSize(len(left)))

	fields := mergeTags(raw.Tags(), cfg.TagMerge, m.logger)
	if err := writeTag(&buf, fields, raw.Image()); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeEncode, "write id3 tag")
	}

	if err := enc.Encode(left, right, &buf); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeEncode, "encode mp3 frames")
	}
	if err := enc.Flush(&buf); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeEncode, "flush mp3 encoder")
	}

	m.logger.Debug("encoded mp3",
		"channels", channels,
		"channel_mask", fmt.Sprintf("%#x", raw.Mask()),
		"samples", len(left),
		"duration", raw.Duration(),
		"pcm_bytes", raw.ApproxSize(),
		"bytes", buf.Len(),
	)
	return buf.Bytes(), nil
}

// selectChannels picks the planes fed to the encoder. A single channel is
// encoded as mono whatever its label; otherwise each side falls back from
// front to side to rear.
func selectChannels(raw *audio.RawAudioData) (left, right []int32, channels int, err error) {
	if raw.NumChannels() == 1 {
		only, _ := raw.Channel(raw.Labels()[0])
		return only, nil, 1, nil
	}

	left, lok := firstChannel(raw, leftCandidates)
	right, rok := firstChannel(raw, rightCandidates)
	switch {
	case !lok:
		return nil, nil, 0, domainerrors.Encodef("missing channel: no front, side or rear left among %v", raw.Labels())
	case !rok:
		return nil, nil, 0, domainerrors.Encodef("missing channel: no front, side or rear right among %v", raw.Labels())
	}
	return left, right, 2, nil
}

func firstChannel(raw *audio.RawAudioData, candidates []audio.ChannelLabel) ([]int32, bool) {
	for _, label := range candidates {
		if samples, ok := raw.Channel(label); ok {
			return samples, true
		}
	}
	return nil, false
}
