// Package thumbs post-processes shot thumbnails written by ffmpeg.
package thumbs

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"math"
	"os"

	"github.com/keagan/shotlist/pkg/util"
	"github.com/nfnt/resize"
)

// JPEGQuality is used when re-encoding downscaled thumbnails.
const JPEGQuality = 90

// Stats summarizes the luminance of a thumbnail.
type Stats struct {
	Width  int
	Height int
	// MeanLuma is the average luminance on a 0-255 scale.
	MeanLuma float64
	// Contrast is the luminance standard deviation normalized to 0-1.
	Contrast float64
}

// IsBlank reports a frame that is almost uniformly black, typically a fade or slate gap.
func (s Stats) IsBlank() bool {
	return s.MeanLuma < 16 && s.Contrast < 0.05
}

// Downscale rewrites the image at path so it is at most width pixels wide,
// keeping the aspect ratio. Narrower images are left untouched.
func Downscale(path string, width int) error {
	if width <= 0 {
		return nil
	}
	img, err := load(path)
	if err != nil {
		return err
	}
	if img.Bounds().Dx() <= width {
		return nil
	}

	small := resize.Resize(uint(width), 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, small, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return util.WriteFileAtomic(path, buf.Bytes())
}

// Analyze computes luminance statistics for the image at path.
func Analyze(path string) (Stats, error) {
	img, err := load(path)
	if err != nil {
		return Stats{}, err
	}

	// a small copy is enough for averages
	if img.Bounds().Dx() > 64 {
		img = resize.Resize(64, 0, img, resize.Bilinear)
	}

	bounds := img.Bounds()
	pixels := float64(bounds.Dx() * bounds.Dy())
	var sum, sumSq float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			lum := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			sum += lum
			sumSq += lum * lum
		}
	}

	mean := sum / pixels
	stdDev := math.Sqrt(math.Max(0, sumSq/pixels-mean*mean))
	return Stats{
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		MeanLuma: mean,
		Contrast: math.Min(1, stdDev/60),
	}, nil
}

func load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("empty image %s", path)
	}
	return img, nil
}
