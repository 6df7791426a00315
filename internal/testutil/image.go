package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// LabelConfig describes a synthetic label photograph.
type LabelConfig struct {
	Lines  []string
	Width  int
	Height int
	// Hue, Saturation and Value of the label background (HSV, hue in degrees).
	Hue, Saturation, Value float64
	Ink                    color.Color
	// Scale enlarges the rendered glyphs before they are placed.
	Scale int
}

// DefaultLabelConfig returns a cream label with black text.
func DefaultLabelConfig() LabelConfig {
	return LabelConfig{
		Lines:      []string{"INGREDIENTS: WATER, SUGAR"},
		Width:      640,
		Height:     240,
		Hue:        45,
		Saturation: 0.15,
		Value:      0.95,
		Ink:        color.Black,
		Scale:      2,
	}
}

// Background returns the label background color.
func (c LabelConfig) Background() color.RGBA {
	r, g, b := colorful.Hsv(c.Hue, c.Saturation, c.Value).Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// GenerateLabel renders the configured lines onto a tinted background.
func GenerateLabel(cfg LabelConfig) *image.RGBA {
	scale := max(cfg.Scale, 1)
	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil()

	textW := 1
	for _, l := range cfg.Lines {
		textW = max(textW, font.MeasureString(face, l).Ceil())
	}
	textH := max(1, len(cfg.Lines)*lineHeight*2)

	text := image.NewRGBA(image.Rect(0, 0, textW, textH))
	draw.Draw(text, text.Bounds(), image.Transparent, image.Point{}, draw.Src)
	ink := cfg.Ink
	if ink == nil {
		ink = color.Black
	}
	d := &font.Drawer{Dst: text, Src: image.NewUniform(ink), Face: face}
	for i, l := range cfg.Lines {
		d.Dot = fixed.P(0, (2*i+1)*lineHeight)
		d.DrawString(l)
	}
	glyphs := imaging.Resize(text, textW*scale, textH*scale, imaging.NearestNeighbor)

	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(cfg.Background()), image.Point{}, draw.Src)
	x := max(0, (cfg.Width-glyphs.Bounds().Dx())/2)
	y := max(0, (cfg.Height-glyphs.Bounds().Dy())/2)
	draw.Draw(img, glyphs.Bounds().Add(image.Pt(x, y)), glyphs, image.Point{}, draw.Over)
	return img
}

// SaveImage writes img as PNG, creating parent directories.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))

	file, err := os.Create(path) //nolint:gosec // G304: test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()
	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}
