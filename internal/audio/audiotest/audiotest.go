// Package audiotest writes small synthetic audio files for tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
	"github.com/stretchr/testify/require"
)

// FLAC describes a synthetic FLAC file.
type FLAC struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Samples       int
	Tags          [][2]string
	Picture       []byte
	PictureMIME   string
	Application   []byte
	ApplicationID uint32
}

// DefaultFLAC is one second of 16-bit stereo at 44.1 kHz.
func DefaultFLAC() FLAC {
	return FLAC{SampleRate: 44100, Channels: 2, BitsPerSample: 16, Samples: 44100}
}

const flacBlockSize = 4096

var flacChannels = map[int]frame.Channels{
	1: frame.ChannelsMono,
	2: frame.ChannelsLR,
	3: frame.ChannelsLRC,
	4: frame.ChannelsLRLsRs,
	5: frame.ChannelsLRCLsRs,
	6: frame.ChannelsLRCLfeLsRs,
}

// Sample returns the deterministic sample the fixtures use for channel ch at index i,
// at the given bit depth.
func Sample(ch, i, sampleRate, bitsPerSample int) int32 {
	amp := float64(int64(1)<<(bitsPerSample-1)-1) * 0.5
	freq := 220.0 * float64(ch+1)
	return int32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
}

// WriteFLAC encodes fixture into path, creating parent directories.
func WriteFLAC(t testing.TB, path string, fixture FLAC) {
	t.Helper()

	layout, ok := flacChannels[fixture.Channels]
	require.True(t, ok, "unsupported fixture channel count %d", fixture.Channels)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	info := &meta.StreamInfo{
		BlockSizeMin:  16,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(fixture.SampleRate),
		NChannels:     uint8(fixture.Channels),
		BitsPerSample: uint8(fixture.BitsPerSample),
		NSamples:      uint64(fixture.Samples),
	}

	enc, err := flac.NewEncoder(f, info, metadataBlocks(fixture)...)
	require.NoError(t, err)

	num := uint64(0)
	for start := 0; start < fixture.Samples; start += flacBlockSize {
		n := min(flacBlockSize, fixture.Samples-start)
		subframes := make([]*frame.Subframe, fixture.Channels)
		for ch := range fixture.Channels {
			samples := make([]int32, n)
			for i := range n {
				samples[i] = Sample(ch, start+i, fixture.SampleRate, fixture.BitsPerSample)
			}
			subframes[ch] = &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples,
				NSamples:  n,
			}
		}
		fr := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(n),
				SampleRate:        uint32(fixture.SampleRate),
				Channels:          layout,
				BitsPerSample:     uint8(fixture.BitsPerSample),
				Num:               num,
			},
			Subframes: subframes,
		}
		require.NoError(t, enc.WriteFrame(fr))
		num++
	}
	require.NoError(t, enc.Close())
}

func metadataBlocks(fixture FLAC) []*meta.Block {
	var blocks []*meta.Block

	if len(fixture.Tags) > 0 {
		vendor := "audiotest"
		length := 4 + len(vendor) + 4
		for _, kv := range fixture.Tags {
			length += 4 + len(kv[0]) + 1 + len(kv[1])
		}
		blocks = append(blocks, &meta.Block{
			Header: meta.Header{Type: meta.TypeVorbisComment, Length: int64(length)},
			Body:   &meta.VorbisComment{Vendor: vendor, Tags: fixture.Tags},
		})
	}

	if fixture.Picture != nil {
		mime := fixture.PictureMIME
		if mime == "" {
			mime = "image/png"
		}
		desc := "cover"
		blocks = append(blocks, &meta.Block{
			Header: meta.Header{Type: meta.TypePicture, Length: int64(32 + len(mime) + len(desc) + len(fixture.Picture))},
			Body: &meta.Picture{
				Type: 3,
				MIME: mime,
				Desc: desc,
				Data: fixture.Picture,
			},
		})
	}

	if fixture.Application != nil {
		id := fixture.ApplicationID
		if id == 0 {
			id = 0x74657374 // "test"
		}
		blocks = append(blocks, &meta.Block{
			Header: meta.Header{Type: meta.TypeApplication, Length: int64(4 + len(fixture.Application))},
			Body:   &meta.Application{ID: id, Data: fixture.Application},
		})
	}

	return blocks
}

// WAV describes a synthetic integer PCM WAV file.
type WAV struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Samples    int
	Title      string
	Artist     string
}

// WriteWAV encodes fixture into path, creating parent directories.
func WriteWAV(t testing.TB, path string, fixture WAV) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, fixture.SampleRate, fixture.BitDepth, fixture.Channels, 1)
	if fixture.Title != "" || fixture.Artist != "" {
		enc.Metadata = &wav.Metadata{Title: fixture.Title, Artist: fixture.Artist}
	}

	data := make([]int, 0, fixture.Samples*fixture.Channels)
	for i := range fixture.Samples {
		for ch := range fixture.Channels {
			data = append(data, int(Sample(ch, i, fixture.SampleRate, fixture.BitDepth)))
		}
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: fixture.Channels, SampleRate: fixture.SampleRate},
		Data:           data,
		SourceBitDepth: fixture.BitDepth,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

// Subformat GUIDs of a WAVE_FORMAT_EXTENSIBLE header.
var (
	SubFormatPCM   = [16]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71}
	SubFormatFloat = [16]byte{0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71}
)

// WriteExtensibleWAV writes fixture with a WAVE_FORMAT_EXTENSIBLE header carrying
// mask and subFormat. Samples are always stored as little-endian integers.
func WriteExtensibleWAV(t testing.TB, path string, fixture WAV, mask uint32, subFormat [16]byte) {
	t.Helper()

	width := fixture.BitDepth / 8
	blockAlign := width * fixture.Channels
	var pcm bytes.Buffer
	for i := range fixture.Samples {
		for ch := range fixture.Channels {
			s := Sample(ch, i, fixture.SampleRate, fixture.BitDepth)
			for b := range width {
				pcm.WriteByte(byte(s >> (8 * b)))
			}
		}
	}

	var buf bytes.Buffer
	le := func(v any) {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}
	buf.WriteString("RIFF")
	le(uint32(4 + 8 + 40 + 8 + pcm.Len()))
	buf.WriteString("WAVEfmt ")
	le(uint32(40))
	le(uint16(0xFFFE))
	le(uint16(fixture.Channels))
	le(uint32(fixture.SampleRate))
	le(uint32(fixture.SampleRate * blockAlign))
	le(uint16(blockAlign))
	le(uint16(fixture.BitDepth))
	le(uint16(22))
	le(uint16(fixture.BitDepth))
	le(mask)
	buf.Write(subFormat[:])
	buf.WriteString("data")
	le(uint32(pcm.Len()))
	buf.Write(pcm.Bytes())

	WriteFile(t, path, buf.Bytes())
}

// PNG returns an encoded w×h RGBA image.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// PrependID3v2 puts an ID3v2 tag carrying title in front of the file at path.
func PrependID3v2(t testing.TB, path, title string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	tag := id3v2.NewEmptyTag()
	tag.SetTitle(title)
	var buf bytes.Buffer
	_, err = tag.WriteTo(&buf)
	require.NoError(t, err)
	buf.Write(data)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// WriteFile writes raw bytes to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
