package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	domainerrors "github.com/listenupapp/listenup-transcoder/internal/errors"
)

// probeSize is the number of leading bytes handed to Decoder.Match.
const probeSize = 12

// Decoder turns one container format into RawAudioData.
type Decoder interface {
	// Name is a short format name used in logs.
	Name() string

	// Extensions lists the lowercase file extensions (with dot) the format uses.
	Extensions() []string

	// Match reports whether header looks like this format.
	Match(header []byte) bool

	// Decode reads the whole file. r is positioned at the start.
	Decode(r io.ReadSeeker) (*RawAudioData, error)
}

// Registry selects a decoder for a file by its magic bytes.
type Registry struct {
	decoders []Decoder
}

// NewRegistry creates a registry probing decoders in the given order.
func NewRegistry(decoders ...Decoder) *Registry {
	return &Registry{decoders: decoders}
}

// DefaultRegistry knows FLAC and WAV.
func DefaultRegistry() *Registry {
	return NewRegistry(NewFLACDecoder(), NewWAVDecoder())
}

// Supports reports whether any registered decoder claims path's extension.
func (r *Registry) Supports(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	for _, d := range r.decoders {
		if slices.Contains(d.Extensions(), ext) {
			return true
		}
	}
	return false
}

// Extensions returns every extension known to the registry.
func (r *Registry) Extensions() []string {
	var exts []string
	for _, d := range r.decoders {
		exts = append(exts, d.Extensions()...)
	}
	return exts
}

// Decode opens path, probes its format and decodes it. An ID3v2 tag in front
// of the stream is skipped before probing.
// Open failures are IO errors; everything else is a decode error.
func (r *Registry) Decode(path string) (raw *RawAudioData, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domainerrors.IOf(err, "open %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, domainerrors.IOf(err, "stat %s", path)
	}

	header, err := readHeaderAt(f, 0)
	if err != nil {
		return nil, domainerrors.IOf(err, "read %s", path)
	}
	offset := id3v2Size(header)
	if offset > 0 {
		if header, err = readHeaderAt(f, offset); err != nil {
			return nil, domainerrors.IOf(err, "read %s", path)
		}
	}

	dec := r.match(header)
	if dec == nil {
		return nil, domainerrors.Decodef("%s: no supported audio track", path)
	}
	stream := io.NewSectionReader(f, offset, info.Size()-offset)

	defer func() {
		if rec := recover(); rec != nil {
			raw = nil
			err = domainerrors.Decodef("%s: %s decoder panic: %v", path, dec.Name(), rec)
		}
	}()

	raw, err = dec.Decode(stream)
	if err != nil {
		if domainerrors.CodeOf(err) == domainerrors.CodeInternal {
			return nil, domainerrors.Wrapf(err, domainerrors.CodeDecode, "%s: %s decode failed", path, dec.Name())
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return raw, nil
}

func readHeaderAt(f *os.File, offset int64) ([]byte, error) {
	header := make([]byte, probeSize)
	n, err := f.ReadAt(header, offset)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return header[:n], nil
}

// id3v2Size returns the byte length of the ID3v2 tag that header starts with,
// footer included, or 0 when there is none.
func id3v2Size(header []byte) int64 {
	if len(header) < 10 || string(header[:3]) != "ID3" {
		return 0
	}
	var size int64
	for _, b := range header[6:10] {
		if b&0x80 != 0 {
			return 0
		}
		size = size<<7 | int64(b)
	}
	size += 10
	if header[5]&0x10 != 0 {
		size += 10
	}
	return size
}

func (r *Registry) match(header []byte) Decoder {
	for _, d := range r.decoders {
		if d.Match(header) {
			return d
		}
	}
	return nil
}
