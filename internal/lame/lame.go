// Package lame is a minimal cgo binding to libmp3lame for constant-bitrate
// encoding of full-scale 32-bit PCM.
package lame

/*
#cgo LDFLAGS: -lmp3lame
#include <lame/lame.h>
*/
import "C"

import (
	"bytes"
	"fmt"
	"unsafe"
)

// flushMargin is added to every output reservation; LAME may emit up to
// 7200 bytes of buffered frames on flush.
const flushMargin = 7200

// Config selects the output stream parameters.
type Config struct {
	Channels   int // 1 or 2
	SampleRate int
	Bitrate    int // kbps
	Quality    int // 0 (best) to 9 (worst)
}

// Error reports a negative return code from a LAME call.
type Error struct {
	Op   string
	Code int
}

func (e *Error) Error() string {
	return fmt.Sprintf("lame: %s failed with code %d", e.Op, e.Code)
}

// Encoder wraps one lame_global_flags context. It is not safe for concurrent use.
type Encoder struct {
	gfp      C.lame_t
	channels int
}

// New allocates and configures an encoder.
func New(cfg Config) (*Encoder, error) {
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return nil, fmt.Errorf("lame: unsupported channel count %d", cfg.Channels)
	}

	gfp := C.lame_init()
	if gfp == nil {
		return nil, &Error{Op: "init", Code: -1}
	}
	e := &Encoder{gfp: gfp, channels: cfg.Channels}

	mode := C.JOINT_STEREO
	if cfg.Channels == 1 {
		mode = C.MONO
	}

	steps := []struct {
		op   string
		call func() C.int
	}{
		{"set_num_channels", func() C.int { return C.lame_set_num_channels(gfp, C.int(cfg.Channels)) }},
		{"set_in_samplerate", func() C.int { return C.lame_set_in_samplerate(gfp, C.int(cfg.SampleRate)) }},
		{"set_brate", func() C.int { return C.lame_set_brate(gfp, C.int(cfg.Bitrate)) }},
		{"set_quality", func() C.int { return C.lame_set_quality(gfp, C.int(cfg.Quality)) }},
		{"set_mode", func() C.int { return C.lame_set_mode(gfp, C.MPEG_mode(mode)) }},
		{"set_bWriteVbrTag", func() C.int { return C.lame_set_bWriteVbrTag(gfp, 0) }},
		{"init_params", func() C.int { return C.lame_init_params(gfp) }},
	}
	for _, step := range steps {
		if rc := step.call(); rc < 0 {
			e.Close()
			return nil, &Error{Op: step.op, Code: int(rc)}
		}
	}
	return e, nil
}

// BufferSize is LAME's worst-case output estimate for n samples per channel.
func BufferSize(n int) int {
	return n + n/4 + flushMargin
}

// Encode appends the MP3 frames for one block of samples to dst. right is
// ignored for mono. Both slices must have the same length.
func (e *Encoder) Encode(left, right []int32, dst *bytes.Buffer) error {
	if len(left) == 0 {
		return nil
	}
	if e.channels == 1 {
		right = left
	}
	if len(right) != len(left) {
		return fmt.Errorf("lame: channel length mismatch %d != %d", len(left), len(right))
	}

	size := BufferSize(len(left)) + flushMargin
	out := reserve(dst, size)
	rc := C.lame_encode_buffer_int(
		e.gfp,
		(*C.int)(unsafe.Pointer(&left[0])),
		(*C.int)(unsafe.Pointer(&right[0])),
		C.int(len(left)),
		(*C.uchar)(unsafe.Pointer(&out[0])),
		C.int(size),
	)
	return commit(dst, out, "encode_buffer_int", int(rc))
}

// Flush appends the remaining buffered frames to dst without padding, so
// consecutive tracks play back gaplessly.
func (e *Encoder) Flush(dst *bytes.Buffer) error {
	size := 2 * flushMargin
	out := reserve(dst, size)
	rc := C.lame_encode_flush_nogap(e.gfp, (*C.uchar)(unsafe.Pointer(&out[0])), C.int(size))
	return commit(dst, out, "encode_flush_nogap", int(rc))
}

// Close releases the LAME context. It is safe to call more than once.
func (e *Encoder) Close() error {
	if e.gfp == nil {
		return nil
	}
	rc := C.lame_close(e.gfp)
	e.gfp = nil
	if rc < 0 {
		return &Error{Op: "close", Code: int(rc)}
	}
	return nil
}

func reserve(dst *bytes.Buffer, size int) []byte {
	dst.Grow(size)
	return dst.AvailableBuffer()[:size]
}

func commit(dst *bytes.Buffer, out []byte, op string, rc int) error {
	if rc < 0 {
		return &Error{Op: op, Code: rc}
	}
	if rc > len(out) {
		return &Error{Op: op, Code: rc}
	}
	dst.Write(out[:rc])
	return nil
}

// Version returns the linked libmp3lame version string.
func Version() string {
	return C.GoString(C.get_lame_version())
}
