package conditioner

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// SavePNG writes the conditioned raster to path, creating parent directories.
func (c *Conditioned) SavePNG(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create debug directory: %w", err)
	}
	if err := imaging.Save(c.gray, path); err != nil {
		return fmt.Errorf("save conditioned image: %w", err)
	}
	return nil
}

// DebugPath names the debug dump for source inside dir.
func DebugPath(dir, source string) string {
	base := filepath.Base(source)
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "image"
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+".conditioned.png")
}

// SaveDebug writes c into dir. Failures are logged, not returned.
func SaveDebug(c *Conditioned, dir, source string) {
	if dir == "" || c == nil {
		return
	}
	path := DebugPath(dir, source)
	if err := c.SavePNG(path); err != nil {
		slog.Warn("Failed to save conditioned image", "path", path, "error", err)
		return
	}
	slog.Debug("Saved conditioned image", "path", path)
}
