package audio_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-transcoder/internal/audio"
	"github.com/listenupapp/listenup-transcoder/internal/audio/audiotest"
	domainerrors "github.com/listenupapp/listenup-transcoder/internal/errors"
)

func TestRegistry_Supports(t *testing.T) {
	reg := audio.DefaultRegistry()

	tests := []struct {
		path string
		want bool
	}{
		{"a.flac", true},
		{"Album/B.FLAC", true},
		{"c.wav", true},
		{"d.mp3", false},
		{"cover.jpg", false},
		{"flac", false},
		{"noext", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, reg.Supports(tt.path))
		})
	}

	assert.ElementsMatch(t, []string{".flac", ".wav", ".wave"}, reg.Extensions())
}

func TestRegistry_DecodeFLAC(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.flac")
	fixture := audiotest.DefaultFLAC()
	fixture.Samples = 10000
	fixture.Tags = [][2]string{{"TITLE", "Song"}, {"ARTIST", "Band"}, {"CUSTOM", "v"}}
	fixture.Picture = audiotest.PNG(t, 4, 3)
	fixture.Application = []byte{1, 2, 3}
	audiotest.WriteFLAC(t, path, fixture)

	raw, err := audio.DefaultRegistry().Decode(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(44100), raw.SampleRate())
	assert.Equal(t, uint32(16), raw.BitsPerSample())
	assert.Equal(t, []audio.ChannelLabel{audio.FrontLeft, audio.FrontRight}, raw.Labels())
	assert.Equal(t, 10000, raw.NumSamples())

	left, ok := raw.Channel(audio.FrontLeft)
	require.True(t, ok)
	right, ok := raw.Channel(audio.FrontRight)
	require.True(t, ok)
	for _, i := range []int{0, 1, 100, 4095, 4096, 9999} {
		assert.Equal(t, audiotest.Sample(0, i, 44100, 16)<<16, left[i], "left[%d]", i)
		assert.Equal(t, audiotest.Sample(1, i, 44100, 16)<<16, right[i], "right[%d]", i)
	}

	require.Len(t, raw.Tags(), 3)
	assert.Equal(t, audio.StdTrackTitle, raw.Tags()[0].Std)
	assert.Equal(t, "Song", raw.Tags()[0].Value)
	assert.Equal(t, audio.StdNone, raw.Tags()[2].Std)

	require.NotNil(t, raw.Image())
	assert.Equal(t, "image/png", raw.Image().MIME)
	assert.Equal(t, uint32(4), raw.Image().Width)
	assert.Equal(t, uint32(3), raw.Image().Height)
	assert.NotZero(t, raw.Image().BitsPerPixel)

	require.NotNil(t, raw.Vendor())
	assert.Equal(t, "test", raw.Vendor().ID)
	assert.Equal(t, []byte{1, 2, 3}, raw.Vendor().Data)
}

func TestRegistry_DecodeFLACMono24(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.flac")
	audiotest.WriteFLAC(t, path, audiotest.FLAC{SampleRate: 48000, Channels: 1, BitsPerSample: 24, Samples: 5000})

	raw, err := audio.DefaultRegistry().Decode(path)
	require.NoError(t, err)

	assert.Equal(t, []audio.ChannelLabel{audio.FrontLeft}, raw.Labels())
	mono, _ := raw.Channel(audio.FrontLeft)
	assert.Equal(t, audiotest.Sample(0, 1234, 48000, 24)<<8, mono[1234])
	assert.Nil(t, raw.Image())
	assert.Empty(t, raw.Tags())
}

func TestRegistry_DecodeFLACChannelMask(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sides.flac")
	fixture := audiotest.DefaultFLAC()
	fixture.Samples = 100
	fixture.Tags = [][2]string{{"WAVEFORMATEXTENSIBLE_CHANNEL_MASK", "0x0600"}}
	audiotest.WriteFLAC(t, path, fixture)

	raw, err := audio.DefaultRegistry().Decode(path)
	require.NoError(t, err)
	assert.Equal(t, []audio.ChannelLabel{audio.SideLeft, audio.SideRight}, raw.Labels())
}

func TestRegistry_DecodeWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	audiotest.WriteWAV(t, path, audiotest.WAV{SampleRate: 22050, Channels: 2, BitDepth: 16, Samples: 3000})

	raw, err := audio.DefaultRegistry().Decode(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(22050), raw.SampleRate())
	assert.Equal(t, 3000, raw.NumSamples())
	right, _ := raw.Channel(audio.FrontRight)
	assert.Equal(t, audiotest.Sample(1, 777, 22050, 16)<<16, right[777])
}

func TestRegistry_DecodeExtensibleWAV(t *testing.T) {
	dir := t.TempDir()
	reg := audio.DefaultRegistry()
	stereo := audiotest.WAV{SampleRate: 48000, Channels: 2, BitDepth: 24, Samples: 2000}

	t.Run("channel mask picks labels", func(t *testing.T) {
		path := filepath.Join(dir, "sides.wav")
		audiotest.WriteExtensibleWAV(t, path, stereo, 0x600, audiotest.SubFormatPCM)

		raw, err := reg.Decode(path)
		require.NoError(t, err)
		assert.Equal(t, []audio.ChannelLabel{audio.SideLeft, audio.SideRight}, raw.Labels())
		assert.Equal(t, 2000, raw.NumSamples())

		right, _ := raw.Channel(audio.SideRight)
		assert.Equal(t, audiotest.Sample(1, 321, 48000, 24)<<8, right[321])
	})

	t.Run("mismatched mask falls back to default layout", func(t *testing.T) {
		path := filepath.Join(dir, "surround.wav")
		audiotest.WriteExtensibleWAV(t, path, stereo, 0x3F, audiotest.SubFormatPCM)

		raw, err := reg.Decode(path)
		require.NoError(t, err)
		assert.Equal(t, []audio.ChannelLabel{audio.FrontLeft, audio.FrontRight}, raw.Labels())
	})

	t.Run("float subformat rejected", func(t *testing.T) {
		path := filepath.Join(dir, "float.wav")
		audiotest.WriteExtensibleWAV(t, path, audiotest.WAV{SampleRate: 44100, Channels: 2, BitDepth: 32, Samples: 100}, 0x3, audiotest.SubFormatFloat)

		_, err := reg.Decode(path)
		assert.True(t, domainerrors.Is(err, domainerrors.ErrDecode), "got %v", err)
	})
}

func TestRegistry_DecodeSkipsLeadingID3v2(t *testing.T) {
	dir := t.TempDir()
	reg := audio.DefaultRegistry()

	t.Run("flac", func(t *testing.T) {
		path := filepath.Join(dir, "tagged.flac")
		audiotest.WriteFLAC(t, path, audiotest.DefaultFLAC())
		audiotest.PrependID3v2(t, path, "Leading Tag")

		raw, err := reg.Decode(path)
		require.NoError(t, err)
		assert.Equal(t, 44100, raw.NumSamples())
		assert.Equal(t, []audio.ChannelLabel{audio.FrontLeft, audio.FrontRight}, raw.Labels())
		left, _ := raw.Channel(audio.FrontLeft)
		assert.Equal(t, audiotest.Sample(0, 500, 44100, 16)<<16, left[500])
	})

	t.Run("wav", func(t *testing.T) {
		path := filepath.Join(dir, "tagged.wav")
		audiotest.WriteWAV(t, path, audiotest.WAV{SampleRate: 8000, Channels: 1, BitDepth: 16, Samples: 800})
		audiotest.PrependID3v2(t, path, "Leading Tag")

		raw, err := reg.Decode(path)
		require.NoError(t, err)
		assert.Equal(t, 800, raw.NumSamples())
	})

	t.Run("tag followed by garbage", func(t *testing.T) {
		path := filepath.Join(dir, "tagonly.flac")
		audiotest.WriteFile(t, path, []byte("not audio after the tag"))
		audiotest.PrependID3v2(t, path, "Leading Tag")

		_, err := reg.Decode(path)
		assert.True(t, domainerrors.Is(err, domainerrors.ErrDecode), "got %v", err)
	})
}

func TestRegistry_DecodeErrors(t *testing.T) {
	dir := t.TempDir()
	reg := audio.DefaultRegistry()

	t.Run("missing file", func(t *testing.T) {
		_, err := reg.Decode(filepath.Join(dir, "nope.flac"))
		assert.True(t, domainerrors.Is(err, domainerrors.ErrIO), "got %v", err)
	})

	t.Run("garbage with flac extension", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt.flac")
		audiotest.WriteFile(t, path, []byte("this is not audio at all"))
		_, err := reg.Decode(path)
		assert.True(t, domainerrors.Is(err, domainerrors.ErrDecode), "got %v", err)
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.flac")
		audiotest.WriteFile(t, path, nil)
		_, err := reg.Decode(path)
		assert.True(t, domainerrors.Is(err, domainerrors.ErrDecode), "got %v", err)
	})

	t.Run("corrupted frame", func(t *testing.T) {
		path := filepath.Join(dir, "damaged.flac")
		fixture := audiotest.DefaultFLAC()
		fixture.Samples = 20000
		audiotest.WriteFLAC(t, path, fixture)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		mid := len(data) / 2
		for i := mid; i < mid+64; i++ {
			data[i] ^= 0x5A
		}
		require.NoError(t, os.WriteFile(path, data, 0o644))

		_, err = reg.Decode(path)
		assert.True(t, domainerrors.Is(err, domainerrors.ErrDecode), "got %v", err)
	})
}
