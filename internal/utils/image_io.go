// Package utils loads label photographs from files and upload streams.
package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder
)

// SupportedImageExtensions lists supported file extensions for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tif", ".tiff", ".webp"}

// MaxPixels bounds the decoded size of a single photo.
const MaxPixels = 80_000_000

// ImageError reports a failure to load an image.
type ImageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *ImageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("image %s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("image %s failed for %s: %v", e.Operation, e.Path, e.Err)
}

func (e *ImageError) Unwrap() error { return e.Err }

// ErrTooLarge is returned for images over MaxPixels.
var ErrTooLarge = errors.New("image dimensions exceed the limit")

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	return slices.Contains(SupportedImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string `json:"path,omitempty"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"size_bytes"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// LoadImage opens and decodes an image file. EXIF orientation is applied so
// phone photos come out upright.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		return nil, ImageMetadata{}, &ImageError{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		return nil, ImageMetadata{}, &ImageError{Operation: "load", Path: path,
			Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}

	f, err := os.Open(path) //nolint:gosec // G304: reading user-provided image file path is expected
	if err != nil {
		return nil, ImageMetadata{}, &ImageError{Operation: "load", Path: path, Err: err}
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("Error closing image file", "path", path, "error", err)
		}
	}()

	img, meta, err := DecodeImage(f)
	if err != nil {
		var ie *ImageError
		if errors.As(err, &ie) {
			ie.Path = path
		}
		return nil, ImageMetadata{}, err
	}
	meta.Path = path
	if fi, statErr := f.Stat(); statErr == nil {
		meta.SizeBytes = fi.Size()
	}
	return img, meta, nil
}

// DecodeImage decodes an image stream after checking its header against
// MaxPixels.
func DecodeImage(r io.Reader) (image.Image, ImageMetadata, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ImageMetadata{}, &ImageError{Operation: "read", Err: err}
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ImageMetadata{}, &ImageError{Operation: "decode", Err: err}
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, ImageMetadata{}, &ImageError{Operation: "decode",
			Err: fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)}
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ImageMetadata{}, &ImageError{Operation: "decode", Err: err}
	}
	b := img.Bounds()
	return img, ImageMetadata{
		Format:    format,
		SizeBytes: int64(len(data)),
		Width:     b.Dx(),
		Height:    b.Dy(),
	}, nil
}
