// Package onnx wraps ONNX Runtime setup and session handling for the
// recognition models.
package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	onnxrt "github.com/yalue/onnxruntime_go"
)

// EnvLibraryPath overrides the shared library location.
const EnvLibraryPath = "LABELSCAN_ONNX_LIB"

var (
	initMu      sync.Mutex
	initialized bool
)

// LibraryName returns the ONNX Runtime shared library name for this OS.
func LibraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// ResolveLibraryPath picks the shared library: an explicit path, then the
// environment override, then system locations, then <project>/onnxruntime/lib.
func ResolveLibraryPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("ONNX Runtime library not found at %s: %w", explicit, err)
		}
		return explicit, nil
	}
	if env := os.Getenv(EnvLibraryPath); env != "" {
		return ResolveLibraryPath(env)
	}

	name, err := LibraryName()
	if err != nil {
		return "", err
	}
	for _, dir := range []string{"/usr/local/lib", "/usr/lib", "/opt/onnxruntime/cpu/lib"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	root, err := findProjectRoot()
	if err != nil {
		return "", err
	}
	p := filepath.Join(root, "onnxruntime", "lib", name)
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("ONNX Runtime library not found at %s", p)
	}
	return p, nil
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}

// Init loads the shared library and initializes the runtime environment.
// Later calls are no-ops.
func Init(libPath string) error {
	initMu.Lock()
	defer initMu.Unlock()
	if initialized || onnxrt.IsInitialized() {
		initialized = true
		return nil
	}
	path, err := ResolveLibraryPath(libPath)
	if err != nil {
		return err
	}
	onnxrt.SetSharedLibraryPath(path)
	if err := onnxrt.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	initialized = true
	return nil
}
