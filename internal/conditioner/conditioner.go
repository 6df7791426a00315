// Package conditioner turns a label photograph into a binarized raster that the
// script recognizers can read reliably.
//
// The transform is deterministic and runs in a fixed order: scale-down,
// contrast boost, desaturation and a global mean-based threshold. A single
// threshold only works while the photo keeps a reasonable global contrast;
// strong shadow bands across a label can blank part of it. That is a known
// boundary of the method and is not compensated for here.
package conditioner

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/anthonynsimon/bild/histogram"
	"github.com/disintegration/imaging"
)

const (
	// MaxSide is the longest side, in pixels, of a conditioned image.
	MaxSide = 1920
	// ContrastFactor is the slope of the linear contrast stretch.
	ContrastFactor = 1.5
	// ThresholdRatio scales the mean luma into the binarization cutoff.
	ThresholdRatio = 0.85

	black = 0
	white = 255
)

// Stats describes what the conditioner did to one image.
type Stats struct {
	SourceWidth  int     `json:"source_width"`
	SourceHeight int     `json:"source_height"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Scaled       bool    `json:"scaled"`
	MeanLuma     float64 `json:"mean_luma"`
	Threshold    float64 `json:"threshold"`
}

// Conditioned is a binarized raster no larger than MaxSide on its longer side.
// It is immutable: the gray buffer returned by Image must not be modified.
type Conditioned struct {
	gray  *image.Gray
	stats Stats
}

// Image returns the single-channel raster holding only 0 and 255 samples.
func (c *Conditioned) Image() *image.Gray { return c.gray }

// Bounds returns the raster bounds.
func (c *Conditioned) Bounds() image.Rectangle { return c.gray.Rect }

// Stats returns the conditioning statistics.
func (c *Conditioned) Stats() Stats { return c.stats }

// PNG encodes the raster, for backends that consume encoded images.
func (c *Conditioned) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, c.gray); err != nil {
		return nil, fmt.Errorf("encode conditioned image: %w", err)
	}
	return buf.Bytes(), nil
}

// Condition runs the four conditioning steps over img. Only malformed input
// fails, with a *DecodeError.
func Condition(img image.Image) (*Conditioned, error) {
	if err := checkImage(img); err != nil {
		return nil, err
	}
	b := img.Bounds()
	stats := Stats{SourceWidth: b.Dx(), SourceHeight: b.Dy()}

	scaled := ScaleDown(img)
	sb := scaled.Bounds()
	stats.Width, stats.Height = sb.Dx(), sb.Dy()
	stats.Scaled = stats.Width != stats.SourceWidth || stats.Height != stats.SourceHeight

	gray := Desaturate(BoostContrast(scaled))
	mean, threshold := Binarize(gray)
	stats.MeanLuma, stats.Threshold = mean, threshold

	return &Conditioned{gray: gray, stats: stats}, nil
}

// ConditionRaster wraps r and conditions it.
func ConditionRaster(r Raster) (*Conditioned, error) {
	img, err := r.Image()
	if err != nil {
		return nil, err
	}
	return Condition(img)
}

// ScaledSize returns the dimensions ScaleDown produces for a w x h image.
func ScaledSize(w, h int) (int, int) {
	longest := max(w, h)
	if longest <= MaxSide {
		return w, h
	}
	factor := float64(MaxSide) / float64(longest)
	nw := int(math.Round(float64(w) * factor))
	nh := int(math.Round(float64(h) * factor))
	if w >= h {
		nw = MaxSide
	} else {
		nh = MaxSide
	}
	return max(nw, 1), max(nh, 1)
}

// ScaleDown shrinks img so its longer side equals MaxSide. Smaller images are
// returned unchanged.
func ScaleDown(img image.Image) image.Image {
	b := img.Bounds()
	nw, nh := ScaledSize(b.Dx(), b.Dy())
	if nw == b.Dx() && nh == b.Dy() {
		return img
	}
	return imaging.Resize(img, nw, nh, imaging.Linear)
}

var contrastLUT = buildContrastLUT(ContrastFactor)

// buildContrastLUT tabulates out = in*k + (0.5 - 0.5k)*255 for every 8-bit input.
func buildContrastLUT(k float64) [256]uint8 {
	var lut [256]uint8
	offset := (0.5 - 0.5*k) * 255
	for i := range lut {
		v := math.Round(float64(i)*k + offset)
		lut[i] = uint8(math.Max(0, math.Min(255, v)))
	}
	return lut
}

// BoostContrast applies the fixed linear contrast stretch to each color channel.
func BoostContrast(img image.Image) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: contrastLUT[c.R], G: contrastLUT[c.G], B: contrastLUT[c.B], A: c.A}
	})
}

// Desaturate converts img to single-channel luma.
func Desaturate(img image.Image) *image.Gray {
	g := imaging.Grayscale(img)
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := g.Pix[y*g.Stride : y*g.Stride+b.Dx()*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return out
}

// MeanLuma returns the mean of the gray samples.
func MeanLuma(gray *image.Gray) float64 {
	b := gray.Bounds()
	n := int64(b.Dx()) * int64(b.Dy())
	if n == 0 {
		return 0
	}
	hist := histogram.NewRGBAHistogram(gray)
	var sum int64
	for v, count := range hist.R.Bins {
		sum += int64(v) * int64(count)
	}
	return float64(sum) / float64(n)
}

// Binarize thresholds gray in place at ThresholdRatio of its mean luma and
// returns the mean and cutoff used. Samples above the cutoff become white,
// the rest black.
func Binarize(gray *image.Gray) (mean, threshold float64) {
	mean = MeanLuma(gray)
	threshold = mean * ThresholdRatio
	b := gray.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
		for x, v := range row {
			if float64(v) > threshold {
				row[x] = white
			} else {
				row[x] = black
			}
		}
	}
	return mean, threshold
}
