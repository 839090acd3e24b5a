package audio

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// fillImageDimensions probes the picture bytes when the container left the
// dimensions or depth unset. Undecodable pictures keep their zero values.
func fillImageDimensions(img *Image) {
	if img.Width != 0 && img.Height != 0 && img.BitsPerPixel != 0 {
		return
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil {
		return
	}

	if img.Width == 0 || img.Height == 0 {
		img.Width = uint32(cfg.Width)
		img.Height = uint32(cfg.Height)
	}
	if img.BitsPerPixel == 0 {
		img.BitsPerPixel = bitsPerPixel(cfg.ColorModel)
	}
	if img.MIME == "" {
		img.MIME = "image/" + format
	}
}

func bitsPerPixel(m color.Model) uint32 {
	switch m {
	case color.GrayModel, color.AlphaModel:
		return 8
	case color.Gray16Model, color.Alpha16Model:
		return 16
	case color.YCbCrModel:
		return 24
	case color.RGBAModel, color.NRGBAModel, color.CMYKModel:
		return 32
	case color.RGBA64Model, color.NRGBA64Model:
		return 64
	}
	if _, ok := m.(color.Palette); ok {
		return 8
	}
	return 24
}
