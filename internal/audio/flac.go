package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/meta"

	domainerrors "github.com/listenupapp/listenup-transcoder/internal/errors"
)

// channelMaskTag is the Vorbis comment carrying an explicit WAVE channel mask.
const channelMaskTag = "WAVEFORMATEXTENSIBLE_CHANNEL_MASK"

var flacMagic = []byte("fLaC")

// FLACDecoder decodes native FLAC streams.
type FLACDecoder struct{}

// NewFLACDecoder creates a FLAC decoder.
func NewFLACDecoder() *FLACDecoder {
	return &FLACDecoder{}
}

func (d *FLACDecoder) Name() string { return "flac" }

func (d *FLACDecoder) Extensions() []string { return []string{".flac"} }

func (d *FLACDecoder) Match(header []byte) bool {
	return bytes.HasPrefix(header, flacMagic)
}

// Decode reads the metadata blocks and every audio frame.
func (d *FLACDecoder) Decode(r io.ReadSeeker) (*RawAudioData, error) {
	stream, err := flac.Parse(r)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeDecode, "parse flac stream")
	}
	defer stream.Close()

	info := stream.Info
	if info == nil || info.NChannels == 0 {
		return nil, domainerrors.Decode("no audio track")
	}
	if info.BitsPerSample == 0 || info.BitsPerSample > 32 {
		return nil, domainerrors.Decodef("unsupported sample layout: %d bits per sample", info.BitsPerSample)
	}

	var (
		image  *Image
		vendor *VendorData
		tags   []Tag
		mask   uint32
	)
	for _, block := range stream.Blocks {
		switch body := block.Body.(type) {
		case *meta.VorbisComment:
			// A later comment block supersedes earlier ones.
			tags = tags[:0]
			mask = 0
			for _, kv := range body.Tags {
				tags = append(tags, NewTag(kv[0], kv[1]))
				if strings.EqualFold(kv[0], channelMaskTag) {
					mask = parseChannelMask(kv[1])
				}
			}
		case *meta.Picture:
			if image == nil {
				image = &Image{
					Data:         body.Data,
					MIME:         body.MIME,
					Description:  body.Desc,
					Width:        body.Width,
					Height:       body.Height,
					BitsPerPixel: body.Depth,
				}
			}
		case *meta.Application:
			if vendor == nil {
				vendor = &VendorData{ID: applicationID(body.ID), Data: body.Data}
			}
		}
	}

	nch := int(info.NChannels)
	labels, err := layoutFor(nch, mask)
	if err != nil {
		return nil, domainerrors.Decodef("unsupported sample layout: %v", err)
	}

	planes := make([][]int32, nch)
	if info.NSamples > 0 && info.NSamples <= maxPrealloc {
		for i := range planes {
			planes[i] = make([]int32, 0, info.NSamples)
		}
	}

	for {
		f, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeDecode, "read flac frame")
		}
		if len(f.Subframes) != nch {
			return nil, domainerrors.Decodef("frame %d has %d subframes, expected %d", f.Num, len(f.Subframes), nch)
		}
		for i, sub := range f.Subframes {
			planes[i] = append(planes[i], sub.Samples...)
		}
	}

	shift := 32 - uint(info.BitsPerSample)
	channels := make(map[ChannelLabel][]int32, nch)
	for i, plane := range planes {
		if shift > 0 {
			for j := range plane {
				plane[j] <<= shift
			}
		}
		channels[labels[i]] = plane
	}

	if image != nil {
		fillImageDimensions(image)
	}

	raw, err := NewRawAudioData(channels, info.SampleRate, uint32(info.BitsPerSample), image, vendor, tags)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeDecode, "assemble flac audio")
	}
	return raw, nil
}

// maxPrealloc caps up-front plane allocation for streams declaring a huge length.
const maxPrealloc = 1 << 28

func parseChannelMask(v string) uint32 {
	v = strings.TrimSpace(strings.ToLower(v))
	base := 10
	if strings.HasPrefix(v, "0x") {
		v = v[2:]
		base = 16
	}
	mask, err := strconv.ParseUint(v, base, 32)
	if err != nil {
		return 0
	}
	return uint32(mask)
}

// applicationID renders a registered application id as its four-character code.
func applicationID(id uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], id)
	return string(b[:])
}
