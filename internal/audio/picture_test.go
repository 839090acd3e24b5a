package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/listenupapp/listenup-transcoder/internal/audio/audiotest"
)

func TestFillImageDimensions(t *testing.T) {
	t.Run("probes missing values", func(t *testing.T) {
		img := &Image{Data: audiotest.PNG(t, 7, 5)}
		fillImageDimensions(img)
		assert.Equal(t, uint32(7), img.Width)
		assert.Equal(t, uint32(5), img.Height)
		assert.NotZero(t, img.BitsPerPixel)
		assert.Equal(t, "image/png", img.MIME)
	})

	t.Run("keeps declared values", func(t *testing.T) {
		img := &Image{Data: audiotest.PNG(t, 7, 5), Width: 100, Height: 200, BitsPerPixel: 24, MIME: "image/x-custom"}
		fillImageDimensions(img)
		assert.Equal(t, uint32(100), img.Width)
		assert.Equal(t, "image/x-custom", img.MIME)
	})

	t.Run("undecodable data", func(t *testing.T) {
		img := &Image{Data: []byte("nope")}
		fillImageDimensions(img)
		assert.Zero(t, img.Width)
		assert.Zero(t, img.BitsPerPixel)
	})
}
