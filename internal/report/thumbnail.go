package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/nao1215/sitediff/internal/imagediff"
)

// DefaultThumbnailWidth is the width of report thumbnails in pixels.
const DefaultThumbnailWidth = 300

// Thumbnail loads the PNG at path and scales it to width pixels, keeping
// the aspect ratio. Images narrower than width are returned unscaled.
func Thumbnail(path string, width int) (image.Image, error) {
	src, err := imagediff.Load(path)
	if err != nil {
		return nil, err
	}
	return scale(src, width), nil
}

// scale resizes img to width pixels with Catmull-Rom resampling.
func scale(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || b.Dx() <= width {
		return img
	}

	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// dataURI encodes img as a base64 PNG data URI.
func dataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
