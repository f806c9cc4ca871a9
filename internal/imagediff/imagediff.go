package imagediff

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/crypto/sha3"
)

// DiffThreshold is the per-channel difference, as a fraction of full scale,
// above which a channel is lit in the difference image.
const DiffThreshold = 0.01

// ErrDimensionMismatch is returned when two images do not share a size.
var ErrDimensionMismatch = errors.New("image dimensions differ")

// Result is the outcome of a pixel comparison.
type Result struct {
	// ErrorCount is the number of pixels with at least one differing channel.
	ErrorCount int

	// Width and Height are the dimensions of the compared images.
	Width  int
	Height int
}

// Percent returns 100 × ErrorCount / (Width × Height).
// Zero errors always yield exactly zero.
func (r Result) Percent() float64 {
	if r.ErrorCount == 0 {
		return 0
	}
	total := r.Width * r.Height
	if total == 0 {
		return 0
	}
	return 100 * float64(r.ErrorCount) / float64(total)
}

// Load decodes the PNG at path.
func Load(path string) (image.Image, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// Decode decodes PNG bytes.
func Decode(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Compare counts the pixels that differ between a and b.
// The images must have the same width and height; their origins may differ.
func Compare(a, b image.Image) (Result, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return Result{}, fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy())
	}

	na, nb := toNRGBA(a), toNRGBA(b)
	res := Result{Width: ab.Dx(), Height: ab.Dy()}

	for y := 0; y < res.Height; y++ {
		rowA := na.Pix[y*na.Stride : y*na.Stride+res.Width*4]
		rowB := nb.Pix[y*nb.Stride : y*nb.Stride+res.Width*4]
		if bytes.Equal(rowA, rowB) {
			continue
		}
		for x := 0; x < len(rowA); x += 4 {
			if rowA[x] != rowB[x] || rowA[x+1] != rowB[x+1] || rowA[x+2] != rowB[x+2] || rowA[x+3] != rowB[x+3] {
				res.ErrorCount++
			}
		}
	}
	return res, nil
}

// CompareFiles compares two PNG files. Byte-identical files are reported as
// zero difference without decoding; the dimensions are then read from the
// PNG header only.
func CompareFiles(baseline, candidate string) (Result, error) {
	a, err := os.ReadFile(filepath.Clean(baseline))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read baseline: %w", err)
	}
	b, err := os.ReadFile(filepath.Clean(candidate))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read candidate: %w", err)
	}
	return CompareBytes(a, b)
}

// CompareBytes compares two PNG images held in memory.
func CompareBytes(a, b []byte) (Result, error) {
	if Fingerprint(a) == Fingerprint(b) {
		cfg, err := png.DecodeConfig(bytes.NewReader(a))
		if err != nil {
			return Result{}, fmt.Errorf("failed to decode image header: %w", err)
		}
		return Result{Width: cfg.Width, Height: cfg.Height}, nil
	}

	imgA, err := Decode(a)
	if err != nil {
		return Result{}, fmt.Errorf("baseline: %w", err)
	}
	imgB, err := Decode(b)
	if err != nil {
		return Result{}, fmt.Errorf("candidate: %w", err)
	}
	return Compare(imgA, imgB)
}

// Difference renders the per-channel absolute difference of a and b.
// A channel is 255 when its difference exceeds DiffThreshold of full scale
// and 0 otherwise; the result is fully opaque.
func Difference(a, b image.Image) (*image.NRGBA, error) {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy())
	}

	na, nb := toNRGBA(a), toNRGBA(b)
	w, h := ab.Dx(), ab.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	limit := int(math.Floor(DiffThreshold * 255))

	for y := 0; y < h; y++ {
		ia, ib, o := y*na.Stride, y*nb.Stride, y*out.Stride
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				if absDiff(na.Pix[ia+c], nb.Pix[ib+c]) > limit {
					out.Pix[o+c] = 0xff
				}
			}
			out.Pix[o+3] = 0xff
			ia, ib, o = ia+4, ib+4, o+4
		}
	}
	return out, nil
}

// WriteDifference loads two PNG files and writes their difference image to out.
func WriteDifference(baseline, candidate, out string) error {
	a, err := Load(baseline)
	if err != nil {
		return err
	}
	b, err := Load(candidate)
	if err != nil {
		return err
	}

	diff, err := Difference(a, b)
	if err != nil {
		return err
	}
	return Save(out, diff)
}

// Save encodes img as PNG at path, creating parent directories.
func Save(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Fingerprint returns the hex SHA3-256 digest of data.
func Fingerprint(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// toNRGBA returns img as a zero-origin NRGBA image, converting when needed.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	n := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(n, n.Bounds(), img, b.Min, draw.Src)
	return n
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
