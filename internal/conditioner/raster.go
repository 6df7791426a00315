package conditioner

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
)

// DecodeError reports a malformed input raster: zero dimensions, a nil image,
// or a pixel buffer shorter than its declared bounds.
type DecodeError struct {
	Width  int
	Height int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed raster %dx%d: %v", e.Width, e.Height, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var (
	errNilImage      = errors.New("image is nil")
	errZeroDimension = errors.New("zero dimension")
	errTruncated     = errors.New("pixel buffer truncated")
	errChannels      = errors.New("unsupported channel count")
)

// Raster is a decoded pixel buffer. Channels is 1 for gray samples or 4 for
// packed RGBA.
type Raster struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// NewRaster validates the buffer against its dimensions and returns the raster.
func NewRaster(width, height, channels int, pix []uint8) (Raster, error) {
	r := Raster{Width: width, Height: height, Channels: channels, Pix: pix}
	if err := r.validate(); err != nil {
		return Raster{}, err
	}
	return r, nil
}

func (r Raster) validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return &DecodeError{Width: r.Width, Height: r.Height, Err: errZeroDimension}
	}
	if r.Channels != 1 && r.Channels != 4 {
		return &DecodeError{
			Width: r.Width, Height: r.Height,
			Err: fmt.Errorf("%w: %d", errChannels, r.Channels),
		}
	}
	if want := r.Width * r.Height * r.Channels; len(r.Pix) != want {
		return &DecodeError{
			Width: r.Width, Height: r.Height,
			Err: fmt.Errorf("%w: have %d bytes, want %d", errTruncated, len(r.Pix), want),
		}
	}
	return nil
}

// Image wraps the raster's buffer in an image.Image without copying it.
func (r Raster) Image() (image.Image, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, r.Width, r.Height)
	if r.Channels == 1 {
		return &image.Gray{Pix: r.Pix, Stride: r.Width, Rect: rect}, nil
	}
	return &image.RGBA{Pix: r.Pix, Stride: r.Width * 4, Rect: rect}, nil
}

// FromImage copies img into a packed raster: one channel for gray images,
// RGBA otherwise.
func FromImage(img image.Image) (Raster, error) {
	if err := checkImage(img); err != nil {
		return Raster{}, err
	}
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok {
		dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Rect, g, b.Min, draw.Src)
		return Raster{Width: b.Dx(), Height: b.Dy(), Channels: 1, Pix: dst.Pix}, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return Raster{Width: b.Dx(), Height: b.Dy(), Channels: 4, Pix: dst.Pix}, nil
}

// checkImage applies the same malformed-input rules to a decoded image.
func checkImage(img image.Image) error {
	if img == nil {
		return &DecodeError{Err: errNilImage}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return &DecodeError{Width: w, Height: h, Err: errZeroDimension}
	}

	var pixLen, stride, bpp, last int
	switch m := img.(type) {
	case *image.RGBA:
		pixLen, stride, bpp = len(m.Pix), m.Stride, 4
		last = m.PixOffset(b.Max.X-1, b.Max.Y-1)
	case *image.NRGBA:
		pixLen, stride, bpp = len(m.Pix), m.Stride, 4
		last = m.PixOffset(b.Max.X-1, b.Max.Y-1)
	case *image.Gray:
		pixLen, stride, bpp = len(m.Pix), m.Stride, 1
		last = m.PixOffset(b.Max.X-1, b.Max.Y-1)
	default:
		// Other decoders own their buffers; trust them.
		return nil
	}
	if stride < w*bpp || last < 0 || last+bpp > pixLen {
		return &DecodeError{
			Width: w, Height: h,
			Err: fmt.Errorf("%w: %d bytes for stride %d", errTruncated, pixLen, stride),
		}
	}
	return nil
}
