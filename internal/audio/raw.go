// Package audio decodes lossless audio files into a channel-mapped 32-bit PCM model.
//
// Every decoder produces a RawAudioData whose samples are scaled to the full
// signed 32-bit range regardless of the source bit depth. The model lives for
// one file's processing and is owned by the worker handling that file.
package audio

import (
	"fmt"
	"slices"
	"time"
)

// Image is an embedded picture, usually the album cover.
type Image struct {
	Data         []byte
	MIME         string
	Description  string
	Width        uint32
	Height       uint32
	BitsPerPixel uint32
}

// VendorData is an opaque application block carried by the source.
type VendorData struct {
	ID   string
	Data []byte
}

// RawAudioData is decoded audio keyed by channel position, plus metadata.
type RawAudioData struct {
	channels      map[ChannelLabel][]int32
	sampleRate    uint32
	bitsPerSample uint32
	image         *Image
	vendor        *VendorData
	tags          []Tag
}

// NewRawAudioData validates and assembles decoded audio. All channel sequences
// must have the same length and the sample rate must be positive.
func NewRawAudioData(
	channels map[ChannelLabel][]int32,
	sampleRate, bitsPerSample uint32,
	image *Image,
	vendor *VendorData,
	tags []Tag,
) (*RawAudioData, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("no audio channels")
	}
	if sampleRate == 0 {
		return nil, fmt.Errorf("sample rate is zero")
	}

	length := -1
	for label, samples := range channels {
		if length == -1 {
			length = len(samples)
			continue
		}
		if len(samples) != length {
			return nil, fmt.Errorf("channel %s has %d samples, expected %d", label, len(samples), length)
		}
	}

	return &RawAudioData{
		channels:      channels,
		sampleRate:    sampleRate,
		bitsPerSample: bitsPerSample,
		image:         image,
		vendor:        vendor,
		tags:          tags,
	}, nil
}

// SampleRate returns samples per second per channel.
func (r *RawAudioData) SampleRate() uint32 { return r.sampleRate }

// BitsPerSample returns the source bit depth before scaling.
func (r *RawAudioData) BitsPerSample() uint32 { return r.bitsPerSample }

// Image returns the first embedded picture, or nil.
func (r *RawAudioData) Image() *Image { return r.image }

// Vendor returns the first vendor data block, or nil.
func (r *RawAudioData) Vendor() *VendorData { return r.vendor }

// Tags returns the complete tag list in source order.
func (r *RawAudioData) Tags() []Tag { return r.tags }

// NumChannels returns the number of channel sequences.
func (r *RawAudioData) NumChannels() int { return len(r.channels) }

// Channel returns the samples for label.
func (r *RawAudioData) Channel(label ChannelLabel) ([]int32, bool) {
	samples, ok := r.channels[label]
	return samples, ok
}

// Labels returns the present channel labels in mask order.
func (r *RawAudioData) Labels() []ChannelLabel {
	labels := make([]ChannelLabel, 0, len(r.channels))
	for label := range r.channels {
		labels = append(labels, label)
	}
	slices.Sort(labels)
	return labels
}

// Mask returns the channel mask formed by the present labels.
func (r *RawAudioData) Mask() uint32 {
	var mask uint32
	for label := range r.channels {
		mask |= uint32(label)
	}
	return mask
}

// NumSamples returns the per-channel sample count.
func (r *RawAudioData) NumSamples() int {
	for _, samples := range r.channels {
		return len(samples)
	}
	return 0
}

// Duration returns the playing time of the audio.
func (r *RawAudioData) Duration() time.Duration {
	return time.Duration(r.NumSamples()) * time.Second / time.Duration(r.sampleRate)
}

// ApproxSize estimates the in-memory footprint in bytes: 4 bytes per sample per
// channel plus the uncompressed size of the embedded picture.
func (r *RawAudioData) ApproxSize() int {
	size := r.NumSamples() * 4 * len(r.channels)
	if r.image != nil {
		size += int(r.image.BitsPerPixel/8) * int(r.image.Width) * int(r.image.Height)
	}
	return size
}

func (r *RawAudioData) String() string {
	return fmt.Sprintf("channels=%d bits=%d rate=%d samples=%d tags=%d",
		len(r.channels), r.bitsPerSample, r.sampleRate, r.NumSamples(), len(r.tags))
}
