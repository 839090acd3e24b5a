package audio

import (
	"fmt"
	"math/bits"
)

// ChannelLabel is a canonical speaker position. The value is the position's bit
// in a WAVE-style channel mask, so a set of labels round-trips through a mask.
type ChannelLabel uint32

const (
	FrontLeft        ChannelLabel = 0x0000_0001 // Front-left, or the mono channel.
	FrontRight       ChannelLabel = 0x0000_0002
	FrontCentre      ChannelLabel = 0x0000_0004
	LFE1             ChannelLabel = 0x0000_0008
	RearLeft         ChannelLabel = 0x0000_0010
	RearRight        ChannelLabel = 0x0000_0020
	FrontLeftCentre  ChannelLabel = 0x0000_0040
	FrontRightCentre ChannelLabel = 0x0000_0080
	RearCentre       ChannelLabel = 0x0000_0100
	SideLeft         ChannelLabel = 0x0000_0200
	SideRight        ChannelLabel = 0x0000_0400
	TopCentre        ChannelLabel = 0x0000_0800
	TopFrontLeft     ChannelLabel = 0x0000_1000
	TopFrontCentre   ChannelLabel = 0x0000_2000
	TopFrontRight    ChannelLabel = 0x0000_4000
	TopRearLeft      ChannelLabel = 0x0000_8000
	TopRearCentre    ChannelLabel = 0x0001_0000
	TopRearRight     ChannelLabel = 0x0002_0000
	RearLeftCentre   ChannelLabel = 0x0004_0000
	RearRightCentre  ChannelLabel = 0x0008_0000
	FrontLeftWide    ChannelLabel = 0x0010_0000
	FrontRightWide   ChannelLabel = 0x0020_0000
	FrontLeftHigh    ChannelLabel = 0x0040_0000
	FrontCentreHigh  ChannelLabel = 0x0080_0000
	FrontRightHigh   ChannelLabel = 0x0100_0000
	LFE2             ChannelLabel = 0x0200_0000
)

// knownChannelBits covers all 26 canonical positions.
const knownChannelBits = 0x03FF_FFFF

var channelNames = map[ChannelLabel]string{
	FrontLeft:        "front_left",
	FrontRight:       "front_right",
	FrontCentre:      "front_centre",
	LFE1:             "lfe1",
	RearLeft:         "rear_left",
	RearRight:        "rear_right",
	FrontLeftCentre:  "front_left_centre",
	FrontRightCentre: "front_right_centre",
	RearCentre:       "rear_centre",
	SideLeft:         "side_left",
	SideRight:        "side_right",
	TopCentre:        "top_centre",
	TopFrontLeft:     "top_front_left",
	TopFrontCentre:   "top_front_centre",
	TopFrontRight:    "top_front_right",
	TopRearLeft:      "top_rear_left",
	TopRearCentre:    "top_rear_centre",
	TopRearRight:     "top_rear_right",
	RearLeftCentre:   "rear_left_centre",
	RearRightCentre:  "rear_right_centre",
	FrontLeftWide:    "front_left_wide",
	FrontRightWide:   "front_right_wide",
	FrontLeftHigh:    "front_left_high",
	FrontCentreHigh:  "front_centre_high",
	FrontRightHigh:   "front_right_high",
	LFE2:             "lfe2",
}

func (c ChannelLabel) String() string {
	if name, ok := channelNames[c]; ok {
		return name
	}
	return fmt.Sprintf("channel(%#x)", uint32(c))
}

// LabelsFromMask expands a channel mask into labels in plane order (lowest bit first).
// Bits outside the 26 canonical positions are an error.
func LabelsFromMask(mask uint32) ([]ChannelLabel, error) {
	if mask&^knownChannelBits != 0 {
		return nil, fmt.Errorf("channel mask %#x has unknown positions", mask)
	}
	labels := make([]ChannelLabel, 0, bits.OnesCount32(mask))
	for rest := mask; rest != 0; rest &= rest - 1 {
		labels = append(labels, ChannelLabel(rest&-rest))
	}
	return labels, nil
}

// defaultMasks are the FLAC/WAVE layouts implied by a bare channel count.
var defaultMasks = map[int]uint32{
	1: uint32(FrontLeft),
	2: uint32(FrontLeft | FrontRight),
	3: uint32(FrontLeft | FrontRight | FrontCentre),
	4: uint32(FrontLeft | FrontRight | RearLeft | RearRight),
	5: uint32(FrontLeft | FrontRight | FrontCentre | RearLeft | RearRight),
	6: uint32(FrontLeft | FrontRight | FrontCentre | LFE1 | RearLeft | RearRight),
	7: uint32(FrontLeft | FrontRight | FrontCentre | LFE1 | RearCentre | SideLeft | SideRight),
	8: uint32(FrontLeft | FrontRight | FrontCentre | LFE1 | RearLeft | RearRight | SideLeft | SideRight),
}

// DefaultMask returns the conventional mask for n channels.
func DefaultMask(n int) (uint32, bool) {
	mask, ok := defaultMasks[n]
	return mask, ok
}

// layoutFor picks the channel labels for n planes, preferring an explicit mask
// when it describes exactly n positions.
func layoutFor(n int, explicit uint32) ([]ChannelLabel, error) {
	if explicit != 0 && bits.OnesCount32(explicit) == n {
		return LabelsFromMask(explicit)
	}
	mask, ok := DefaultMask(n)
	if !ok {
		return nil, fmt.Errorf("no channel layout for %d channels", n)
	}
	return LabelsFromMask(mask)
}
