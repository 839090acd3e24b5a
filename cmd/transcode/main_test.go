package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/listenup-transcoder/internal/audio/audiotest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	// Keep a developer's .env out of the test.
	args = append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env"))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConvert_MirrorsTree(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "mp3")

	fixture := audiotest.DefaultFLAC()
	fixture.Samples = 4410
	fixture.Tags = [][2]string{{"TITLE", "Intro"}}
	audiotest.WriteFLAC(t, filepath.Join(src, "album", "01.flac"), fixture)
	audiotest.WriteFile(t, filepath.Join(src, "album", "cover.txt"), []byte("liner notes"))

	out, err := execute(t, "convert", "--src", src, "--dest", dst, "-w", "2", "-q", "good", "-b", "128")
	require.NoError(t, err, out)

	assert.Contains(t, out, "Found 2 files, 2 workers")
	assert.Contains(t, out, "Conversion Finished")
	assert.Contains(t, out, "completed: 2 converted or copied, 0 failed of 2 files")

	mp3, err := os.ReadFile(filepath.Join(dst, "album", "01.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "ID3", string(mp3[:3]))

	notes, err := os.ReadFile(filepath.Join(dst, "album", "cover.txt"))
	require.NoError(t, err)
	assert.Equal(t, "liner notes", string(notes))

	_, err = os.Stat(filepath.Join(src, "album", "01.mp3"))
	assert.True(t, os.IsNotExist(err), "source tree must not change")
}

func TestConvert_SkipsUnrecognizedWhenCopyDisabled(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "mp3")
	audiotest.WriteFile(t, filepath.Join(src, "b.txt"), []byte("b"))

	out, err := execute(t, "convert", "--src", src, "--dest", dst, "--copy-unrecognized=false")
	require.NoError(t, err, out)

	assert.Contains(t, out, "0 converted or copied, 0 failed of 1 files")
	_, err = os.Stat(filepath.Join(dst, "b.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestConvert_CorruptFileFails(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "mp3")
	audiotest.WriteFile(t, filepath.Join(src, "broken.flac"), []byte("not a flac stream"))

	out, err := execute(t, "convert", "--src", src, "--dest", dst)
	require.Error(t, err)
	assert.EqualError(t, err, "1 files failed")
	assert.Contains(t, out, "[1/1] Failed to decode file at "+filepath.Join(src, "broken.flac"))
}

func TestConvert_InvalidSettings(t *testing.T) {
	src := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing dest", args: []string{"convert", "--src", src}},
		{name: "unknown quality", args: []string{"convert", "--src", src, "--dest", "out", "-q", "superb"}},
		{name: "unsupported bitrate", args: []string{"convert", "--src", src, "--dest", "out", "-b", "100"}},
		{name: "reserved format", args: []string{"convert", "--src", src, "--dest", "out", "--format", "opus"}},
		{name: "missing source", args: []string{"convert", "--src", filepath.Join(src, "nope"), "--dest", "out"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestCheck(t *testing.T) {
	src := t.TempDir()
	audiotest.WriteFile(t, filepath.Join(src, "a.flac"), []byte("a"))
	audiotest.WriteFile(t, filepath.Join(src, "disc2", "b.FLAC"), []byte("b"))
	audiotest.WriteFile(t, filepath.Join(src, "disc2", "c.jpg"), []byte("c"))

	out, err := execute(t, "check", src)
	require.NoError(t, err, out)
	assert.Contains(t, out, "3 files, 2 convertible, 1 other")
}

func TestCheck_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.flac")
	audiotest.WriteFile(t, file, []byte("a"))

	_, err := execute(t, "check", file)
	assert.Error(t, err)
}

func TestFormats(t *testing.T) {
	out, err := execute(t, "formats")
	require.NoError(t, err)
	assert.Contains(t, out, ".flac")
	assert.Contains(t, out, "second_worst")
	assert.Contains(t, out, "320 kbps")
	assert.Contains(t, out, "encoder:   LAME ")
}
