package paddle

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/labelscan/internal/mempool"
	"github.com/MeKo-Tech/labelscan/internal/onnx"
)

// cropLine cuts one text line out of the conditioned raster. Light-on-dark
// labels are inverted so every line reaches the model as dark text on white.
func cropLine(g *image.Gray, r image.Rectangle, invert bool) image.Image {
	line := imaging.Crop(g, r)
	if invert {
		return imaging.Invert(line)
	}
	return line
}

// resizeForRecognition scales img to targetHeight keeping the aspect ratio,
// clamps the width to maxWidth and pads the right edge with white up to a
// multiple of padToMultiple.
func resizeForRecognition(img image.Image, targetHeight, maxWidth, padToMultiple int) (image.Image, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if targetHeight <= 0 {
		return nil, fmt.Errorf("invalid targetHeight: %d", targetHeight)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, errors.New("empty text line")
	}

	newW := max(1, int(float64(w)*float64(targetHeight)/float64(h)))
	if maxWidth > 0 && newW > maxWidth {
		newW = maxWidth
	}
	resized := imaging.Resize(img, newW, targetHeight, imaging.Lanczos)

	outW := newW
	if padToMultiple > 0 {
		if rem := newW % padToMultiple; rem != 0 {
			outW += padToMultiple - rem
		}
	}
	if outW == newW {
		return resized, nil
	}
	canvas := imaging.New(outW, targetHeight, color.White)
	return imaging.Paste(canvas, resized, image.Pt(0, 0)), nil
}

// toTensor converts a line image into a [1, 3, H, W] tensor scaled to [-1, 1].
// The data comes from mempool; release it with mempool.PutFloat32 after the
// model has run.
func toTensor(img image.Image) (onnx.Tensor, error) {
	n := imaging.Clone(img)
	b := n.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	data := mempool.GetFloat32(3 * plane)
	for y := range h {
		row := n.Pix[y*n.Stride : y*n.Stride+w*4]
		for x := range w {
			i := y*w + x
			for c := range 3 {
				data[c*plane+i] = float32(row[x*4+c])/127.5 - 1
			}
		}
	}
	return onnx.NewImageTensor(data, 3, h, w)
}
