package conditioner

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gradientImage returns an RGBA image with a diagonal color gradient.
func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := uint8((x + y) % 256)
			img.Set(x, y, color.RGBA{R: v, G: 255 - v, B: v / 2, A: 255})
		}
	}
	return img
}

func assertBinary(t *testing.T, g *image.Gray) {
	t.Helper()
	for i, v := range g.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("sample %d = %d, want 0 or 255", i, v)
		}
	}
}

func TestCondition_Malformed(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
	}{
		{"nil image", nil},
		{"zero width", image.NewRGBA(image.Rect(0, 0, 0, 10))},
		{"zero height", image.NewGray(image.Rect(0, 0, 10, 0))},
		{"truncated rgba", &image.RGBA{Pix: make([]uint8, 10), Stride: 40, Rect: image.Rect(0, 0, 10, 10)}},
		{"short stride", &image.Gray{Pix: make([]uint8, 100), Stride: 5, Rect: image.Rect(0, 0, 10, 10)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Condition(tt.img)
			require.Error(t, err)
			assert.Nil(t, out)
			var de *DecodeError
			assert.True(t, errors.As(err, &de))
		})
	}
}

func TestNewRaster(t *testing.T) {
	_, err := NewRaster(4, 3, 4, make([]uint8, 48))
	require.NoError(t, err)

	_, err = NewRaster(4, 3, 4, make([]uint8, 47))
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, errTruncated)

	_, err = NewRaster(0, 3, 1, nil)
	assert.ErrorIs(t, err, errZeroDimension)

	_, err = NewRaster(2, 2, 3, make([]uint8, 12))
	assert.ErrorIs(t, err, errChannels)
}

func TestFromImage(t *testing.T) {
	g := image.NewGray(image.Rect(2, 2, 5, 4))
	g.SetGray(2, 2, color.Gray{Y: 9})
	r, err := FromImage(g)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Channels)
	assert.Equal(t, 3, r.Width)
	assert.Equal(t, uint8(9), r.Pix[0])

	r, err = FromImage(gradientImage(4, 2))
	require.NoError(t, err)
	assert.Equal(t, 4, r.Channels)
	assert.Len(t, r.Pix, 4*2*4)

	_, err = FromImage(nil)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
}

func TestConditionRaster(t *testing.T) {
	pix := make([]uint8, 8*8)
	for i := range pix {
		if i%2 == 0 {
			pix[i] = 240
		} else {
			pix[i] = 20
		}
	}
	r, err := NewRaster(8, 8, 1, pix)
	require.NoError(t, err)

	out, err := ConditionRaster(r)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), out.Bounds())
	assertBinary(t, out.Image())
	assert.Equal(t, uint8(240), pix[0], "source buffer must not be modified")
}

func TestScaledSize(t *testing.T) {
	tests := []struct {
		w, h, wantW, wantH int
	}{
		{3000, 2000, 1920, 1280},
		{2000, 3000, 1280, 1920},
		{1920, 1080, 1920, 1080},
		{640, 480, 640, 480},
		{1921, 1921, 1920, 1920},
		{4000, 1, 1920, 1},
		{4032, 3024, 1920, 1440},
	}
	for _, tt := range tests {
		w, h := ScaledSize(tt.w, tt.h)
		assert.Equal(t, tt.wantW, w, "width for %dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, h, "height for %dx%d", tt.w, tt.h)
	}
}

func TestScaleDown_NoUpscale(t *testing.T) {
	img := gradientImage(100, 50)
	assert.Same(t, image.Image(img), ScaleDown(img))
}

func TestCondition_LargePhoto(t *testing.T) {
	img := gradientImage(3000, 2000)
	out, err := Condition(img)
	require.NoError(t, err)

	assert.Equal(t, 1920, out.Bounds().Dx())
	assert.Equal(t, 1280, out.Bounds().Dy())
	st := out.Stats()
	assert.True(t, st.Scaled)
	assert.Equal(t, 3000, st.SourceWidth)
	assert.Equal(t, 2000, st.SourceHeight)
	assert.InDelta(t, st.MeanLuma*ThresholdRatio, st.Threshold, 1e-9)
	assertBinary(t, out.Image())
}

func TestContrastLUT(t *testing.T) {
	assert.Equal(t, uint8(0), contrastLUT[0])
	assert.Equal(t, uint8(0), contrastLUT[42])
	assert.Equal(t, uint8(86), contrastLUT[100])
	assert.Equal(t, uint8(128), contrastLUT[128])
	assert.Equal(t, uint8(255), contrastLUT[255])
	assert.Equal(t, uint8(255), contrastLUT[213])
}

func TestBoostContrast_KeepsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 100, G: 128, B: 255, A: 77})
	out := BoostContrast(img)
	assert.Equal(t, color.NRGBA{R: 86, G: 128, B: 255, A: 77}, out.NRGBAAt(0, 0))
}

func TestDesaturate_SingleChannel(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.Set(1, 0, color.RGBA{A: 255})
	g := Desaturate(img)
	assert.Equal(t, []uint8{255, 0}, g.Pix)
}

func TestBinarize(t *testing.T) {
	t.Run("mean cutoff", func(t *testing.T) {
		g := &image.Gray{Pix: []uint8{100, 100, 200, 200}, Stride: 2, Rect: image.Rect(0, 0, 2, 2)}
		mean, threshold := Binarize(g)
		assert.InDelta(t, 150.0, mean, 1e-9)
		assert.InDelta(t, 127.5, threshold, 1e-9)
		assert.Equal(t, []uint8{0, 0, 255, 255}, g.Pix)
	})

	t.Run("fractional mean is not rounded", func(t *testing.T) {
		tests := []struct {
			name      string
			pix       []uint8
			mean      float64
			threshold float64
			want      []uint8
		}{
			{
				// mean 107.9, cutoff 91.715: 91 stays black
				name:      "sample just under the cutoff",
				pix:       []uint8{91, 110, 110, 110, 110, 110, 110, 110, 110, 108},
				mean:      107.9,
				threshold: 91.715,
				want:      []uint8{0, 255, 255, 255, 255, 255, 255, 255, 255, 255},
			},
			{
				// mean 2/3, cutoff 0.5667
				name:      "tiny mean",
				pix:       []uint8{0, 1, 1},
				mean:      2.0 / 3,
				threshold: 2.0 / 3 * ThresholdRatio,
				want:      []uint8{0, 255, 255},
			},
			{
				// mean 101/3, cutoff 28.617: 28 stays black, 29 turns white
				name:      "neighbors of the cutoff",
				pix:       []uint8{28, 29, 44},
				mean:      101.0 / 3,
				threshold: 101.0 / 3 * ThresholdRatio,
				want:      []uint8{0, 255, 255},
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				g := &image.Gray{Pix: tt.pix, Stride: len(tt.pix), Rect: image.Rect(0, 0, len(tt.pix), 1)}
				mean, threshold := Binarize(g)
				assert.InDelta(t, tt.mean, mean, 1e-9)
				assert.InDelta(t, tt.threshold, threshold, 1e-9)
				assert.Equal(t, tt.want, g.Pix)
			})
		}
	})

	t.Run("uniform gray becomes white", func(t *testing.T) {
		g := image.NewGray(image.Rect(0, 0, 3, 3))
		for i := range g.Pix {
			g.Pix[i] = 100
		}
		Binarize(g)
		for _, v := range g.Pix {
			assert.Equal(t, uint8(255), v)
		}
	})

	t.Run("all black stays black", func(t *testing.T) {
		g := image.NewGray(image.Rect(0, 0, 3, 3))
		Binarize(g)
		for _, v := range g.Pix {
			assert.Equal(t, uint8(0), v)
		}
	})
}

func TestSavePNG(t *testing.T) {
	out, err := Condition(gradientImage(40, 20))
	require.NoError(t, err)

	dir := t.TempDir()
	path := DebugPath(filepath.Join(dir, "debug"), "/photos/label.jpg")
	assert.Equal(t, filepath.Join(dir, "debug", "label.conditioned.png"), path)
	require.NoError(t, out.SavePNG(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	data, err := out.PNG()
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}

func TestSaveDebug_NoDirIsNoop(t *testing.T) {
	out, err := Condition(gradientImage(4, 4))
	require.NoError(t, err)
	SaveDebug(out, "", "x.png")
	SaveDebug(nil, t.TempDir(), "x.png")
}
