package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	onnxrt "github.com/yalue/onnxruntime_go"
)

// SessionConfig configures a single-input, single-output model session.
type SessionConfig struct {
	ModelPath   string
	LibraryPath string
	NumThreads  int
}

// Session runs a model with one float32 input and one float32 output.
// Run is safe for concurrent use.
type Session struct {
	mu         sync.RWMutex
	session    *onnxrt.DynamicAdvancedSession
	inputInfo  onnxrt.InputOutputInfo
	outputInfo onnxrt.InputOutputInfo
}

// NewSession initializes the runtime if needed and opens cfg.ModelPath.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("model path cannot be empty")
	}
	if err := Init(cfg.LibraryPath); err != nil {
		return nil, err
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("expected 1 input and 1 output, got %d and %d", len(inputs), len(outputs))
	}

	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("Failed to destroy session options", "error", err)
		}
	}()
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	sess, err := onnxrt.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	slog.Debug("ONNX session ready", "model", cfg.ModelPath,
		"input", inputs[0].Name, "input_shape", inputs[0].Dimensions,
		"output", outputs[0].Name)

	return &Session{session: sess, inputInfo: inputs[0], outputInfo: outputs[0]}, nil
}

// InputShape returns the model's declared input dimensions; -1 marks a
// dynamic axis.
func (s *Session) InputShape() []int64 {
	return []int64(s.inputInfo.Dimensions)
}

// Run feeds t to the model and returns a copy of the output data and its shape.
func (s *Session) Run(t Tensor) ([]float32, []int64, error) {
	if err := VerifyImageTensor(t); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, nil, errors.New("session is closed")
	}

	input, err := onnxrt.NewTensor(onnxrt.NewShape(t.Shape...), t.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	outputs := []onnxrt.Value{nil}
	if err := s.session.Run([]onnxrt.Value{input}, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			_ = outputs[0].Destroy()
		}
	}()

	out, ok := outputs[0].(*onnxrt.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("expected float32 tensor, got %T", outputs[0])
	}
	data := append([]float32(nil), out.GetData()...)
	return data, []int64(out.GetShape()), nil
}

// Close releases the session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}
