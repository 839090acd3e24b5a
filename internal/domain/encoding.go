package domain

import (
	"strings"

	domainerrors "github.com/listenupapp/listenup-transcoder/internal/errors"
)

// Quality is one of the ten encoder quality levels, from best to worst.
type Quality string

const (
	QualityBest        Quality = "best"
	QualitySecondBest  Quality = "second_best"
	QualityNearBest    Quality = "near_best"
	QualityVeryNice    Quality = "very_nice"
	QualityNice        Quality = "nice"
	QualityGood        Quality = "good"
	QualityDecent      Quality = "decent"
	QualityOk          Quality = "ok"
	QualitySecondWorst Quality = "second_worst"
	QualityWorst       Quality = "worst"
)

// qualityLevels is ordered best to worst; the index is the encoder's numeric level.
var qualityLevels = []Quality{
	QualityBest,
	QualitySecondBest,
	QualityNearBest,
	QualityVeryNice,
	QualityNice,
	QualityGood,
	QualityDecent,
	QualityOk,
	QualitySecondWorst,
	QualityWorst,
}

// ParseQuality converts a level name into a Quality. Matching is case-insensitive.
func ParseQuality(s string) (Quality, error) {
	q := Quality(strings.ToLower(strings.TrimSpace(s)))
	for _, level := range qualityLevels {
		if q == level {
			return q, nil
		}
	}
	return "", domainerrors.Configf("unknown quality %q", s)
}

// Level returns the numeric encoder level, 0 (best) through 9 (worst).
func (q Quality) Level() int {
	for i, level := range qualityLevels {
		if q == level {
			return i
		}
	}
	return 0
}

// Qualities returns all quality names from best to worst.
func Qualities() []Quality {
	out := make([]Quality, len(qualityLevels))
	copy(out, qualityLevels)
	return out
}

// Bitrate is a constant bitrate in kbps. BitrateUnknown selects the highest step.
type Bitrate int

// BitrateUnknown is the sentinel for an unspecified bitrate.
const BitrateUnknown Bitrate = 0

var bitrateSteps = []Bitrate{8, 16, 24, 32, 40, 48, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320}

// Kbps resolves the sentinel and returns the effective bitrate.
func (b Bitrate) Kbps() int {
	if b == BitrateUnknown {
		return int(bitrateSteps[len(bitrateSteps)-1])
	}
	return int(b)
}

// Valid reports whether b is one of the sixteen steps or the sentinel.
func (b Bitrate) Valid() bool {
	if b == BitrateUnknown {
		return true
	}
	for _, step := range bitrateSteps {
		if b == step {
			return true
		}
	}
	return false
}

// Bitrates returns the supported kbps steps in ascending order.
func Bitrates() []Bitrate {
	out := make([]Bitrate, len(bitrateSteps))
	copy(out, bitrateSteps)
	return out
}
