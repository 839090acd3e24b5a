package audio

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/go-audio/riff"
	"github.com/go-audio/wav"

	domainerrors "github.com/listenupapp/listenup-transcoder/internal/errors"
)

// WAVE format tags for integer PCM.
const (
	wavFormatPCM        = 0x0001
	wavFormatExtensible = 0xFFFE
)

// subFormatPCM is KSDATAFORMAT_SUBTYPE_PCM as stored in a WAVE_FORMAT_EXTENSIBLE header.
var subFormatPCM = [16]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71}

// wavExtensible is the tail of a WAVE_FORMAT_EXTENSIBLE fmt chunk.
type wavExtensible struct {
	FormatTag      uint16
	Channels       uint16
	SampleRate     uint32
	AvgBytesPerSec uint32
	BlockAlign     uint16
	BitsPerSample  uint16
	ExtraSize      uint16
	ValidBits      uint16
	ChannelMask    uint32
	SubFormat      [16]byte
}

// WAVDecoder decodes RIFF/WAVE files holding integer PCM.
type WAVDecoder struct{}

// NewWAVDecoder creates a WAV decoder.
func NewWAVDecoder() *WAVDecoder {
	return &WAVDecoder{}
}

func (d *WAVDecoder) Name() string { return "wav" }

func (d *WAVDecoder) Extensions() []string { return []string{".wav", ".wave"} }

func (d *WAVDecoder) Match(header []byte) bool {
	return len(header) >= 12 &&
		bytes.Equal(header[0:4], []byte("RIFF")) &&
		bytes.Equal(header[8:12], []byte("WAVE"))
}

// Decode reads the full PCM buffer and the LIST/INFO tags. Extensible files
// must carry the PCM subformat; their channel mask picks the labels.
func (d *WAVDecoder) Decode(r io.ReadSeeker) (*RawAudioData, error) {
	ext := readExtensible(r)
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeDecode, "rewind wav stream")
	}

	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, domainerrors.Decode("no audio track")
	}

	var mask uint32
	switch dec.WavAudioFormat {
	case wavFormatPCM:
	case wavFormatExtensible:
		if ext == nil {
			return nil, domainerrors.Decode("unsupported sample layout: truncated extensible format header")
		}
		if ext.SubFormat != subFormatPCM {
			return nil, domainerrors.Decodef("unsupported sample layout: extensible subformat %x", ext.SubFormat[:4])
		}
		mask = ext.ChannelMask
	default:
		return nil, domainerrors.Decodef("unsupported sample layout: wave format %#04x", dec.WavAudioFormat)
	}
	switch dec.BitDepth {
	case 16, 24, 32:
	default:
		return nil, domainerrors.Decodef("unsupported sample layout: %d-bit pcm", dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeDecode, "read wav samples")
	}

	nch := int(dec.NumChans)
	if nch == 0 {
		return nil, domainerrors.Decode("no audio track")
	}
	labels, err := layoutFor(nch, mask)
	if err != nil {
		return nil, domainerrors.Decodef("unsupported sample layout: %v", err)
	}

	frames := len(buf.Data) / nch
	shift := 32 - uint(dec.BitDepth)
	planes := make([][]int32, nch)
	for i := range planes {
		planes[i] = make([]int32, frames)
	}
	for frame := range frames {
		for ch := range nch {
			planes[ch][frame] = int32(buf.Data[frame*nch+ch]) << shift
		}
	}

	channels := make(map[ChannelLabel][]int32, nch)
	for i, plane := range planes {
		channels[labels[i]] = plane
	}

	raw, err := NewRawAudioData(channels, dec.SampleRate, uint32(dec.BitDepth), nil, nil, readWAVTags(r))
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeDecode, "assemble wav audio")
	}
	return raw, nil
}

// readExtensible returns the fmt chunk of an extensible WAV, or nil when r has
// no fmt chunk long enough to hold the extension.
func readExtensible(r io.ReadSeeker) *wavExtensible {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil
	}
	parser := riff.New(r)
	if err := parser.ParseHeaders(); err != nil || parser.Format != riff.WavFormatID {
		return nil
	}

	for {
		chunk, err := parser.NextChunk()
		if err != nil {
			return nil
		}
		if chunk.ID != riff.FmtID {
			chunk.Drain()
			continue
		}

		var ext wavExtensible
		if chunk.Size < binary.Size(ext) {
			return nil
		}
		if err := chunk.ReadLE(&ext); err != nil || ext.FormatTag != wavFormatExtensible {
			return nil
		}
		return &ext
	}
}

// readWAVTags maps the LIST/INFO chunk onto tags. A file without one has no tags.
func readWAVTags(r io.ReadSeeker) []Tag {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil
	}
	dec := wav.NewDecoder(r)
	dec.ReadMetadata()
	if dec.Err() != nil || dec.Metadata == nil {
		return nil
	}

	md := dec.Metadata
	fields := []struct {
		key   string
		value string
	}{
		{"TITLE", md.Title},
		{"ARTIST", md.Artist},
		{"ALBUM", md.Product},
		{"DATE", md.CreationDate},
		{"GENRE", md.Genre},
		{"COMMENT", md.Comments},
		{"COPYRIGHT", md.Copyright},
		{"TRACKNUMBER", md.TrackNbr},
		{"ENCODER", md.Software},
	}

	var tags []Tag
	for _, f := range fields {
		if f.value != "" {
			tags = append(tags, NewTag(f.key, f.value))
		}
	}
	return tags
}
