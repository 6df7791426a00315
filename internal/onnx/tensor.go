package onnx

import (
	"errors"
	"fmt"
)

// Tensor is a float32 tensor in row-major order; images use NCHW.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewImageTensor builds a [1, C, H, W] tensor. data must hold C*H*W values.
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	if want := c * h * w; len(data) != want {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), want)
	}
	return Tensor{Data: data, Shape: []int64{1, int64(c), int64(h), int64(w)}}, nil
}

// ValidateNCHW ensures shape is [N, C, H, W] with positive dimensions.
func ValidateNCHW(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// VerifyImageTensor checks the data length against the NCHW shape.
func VerifyImageTensor(t Tensor) error {
	if err := ValidateNCHW(t.Shape); err != nil {
		return err
	}
	want := int(t.Shape[0] * t.Shape[1] * t.Shape[2] * t.Shape[3])
	if len(t.Data) != want {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), want, t.Shape)
	}
	return nil
}
