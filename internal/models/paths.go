// Package models resolves the on-disk locations of the per-script
// recognition models and their character dictionaries.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Recognition model files.
const (
	RecognitionLatin  = "latin_PP-OCRv5_mobile_rec.onnx"
	RecognitionHan    = "PP-OCRv5_mobile_rec.onnx"
	RecognitionHangul = "korean_PP-OCRv5_mobile_rec.onnx"

	DictionaryLatin  = "latin_dict.txt"
	DictionaryHan    = "ppocrv5_dict.txt"
	DictionaryHangul = "korean_dict.txt"
)

// Directory layout below the models directory.
const (
	TypeRecognition  = "recognition"
	TypeDictionaries = "dictionaries"
)

// DefaultModelsDir is used when nothing else is configured.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "LABELSCAN_MODELS_DIR"

// ScriptModel names the files one script recognizer needs.
type ScriptModel struct {
	Script      string
	Model       string
	Dictionary  string
	Description string
}

var scriptModels = map[string]ScriptModel{
	"latin": {
		Script: "latin", Model: RecognitionLatin, Dictionary: DictionaryLatin,
		Description: "Latin alphabet text lines",
	},
	"han": {
		Script: "han", Model: RecognitionHan, Dictionary: DictionaryHan,
		Description: "Simplified and traditional Chinese text lines",
	},
	"hangul": {
		Script: "hangul", Model: RecognitionHangul, Dictionary: DictionaryHangul,
		Description: "Korean text lines",
	},
}

// ForScript returns the model files for a script name.
func ForScript(script string) (ScriptModel, error) {
	m, ok := scriptModels[script]
	if !ok {
		return ScriptModel{}, fmt.Errorf("no recognition model for script %q", script)
	}
	return m, nil
}

// List returns every known script model sorted by script name.
func List() []ScriptModel {
	out := make([]ScriptModel, 0, len(scriptModels))
	for _, m := range scriptModels {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Script < out[j].Script })
	return out
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root (go.mod not found)")
		}
		dir = parent
	}
}

// GetModelsDir returns the models directory.
// Priority: explicit argument, environment variable, project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if env := os.Getenv(EnvModelsDir); env != "" {
		return env
	}
	if root, err := findProjectRoot(); err == nil {
		return filepath.Join(root, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolvePath prefers <dir>/<kind>/<file> and falls back to a flat <dir>/<file>.
func ResolvePath(modelsDir, kind, filename string) string {
	base := GetModelsDir(modelsDir)
	organized := filepath.Join(base, kind, filename)
	if _, err := os.Stat(organized); err == nil {
		return organized
	}
	flat := filepath.Join(base, filename)
	if _, err := os.Stat(flat); err == nil {
		return flat
	}
	return organized
}

// RecognitionPaths returns the model and dictionary paths for script.
func RecognitionPaths(modelsDir, script string) (model, dict string, err error) {
	m, err := ForScript(script)
	if err != nil {
		return "", "", err
	}
	return ResolvePath(modelsDir, TypeRecognition, m.Model),
		ResolvePath(modelsDir, TypeDictionaries, m.Dictionary), nil
}

// ValidateExists checks that a model or dictionary file is present.
func ValidateExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", path)
	}
	return nil
}
