package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}
}

func TestDiscover_EmptyArgs(t *testing.T) {
	files, err := Discover(nil, false, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscover_SingleFiles(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "label.png")
	txt := filepath.Join(dir, "notes.txt")
	touch(t, png, txt)

	// Files named explicitly are kept regardless of extension.
	files, err := Discover([]string{png, txt}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{png, txt}, files)

	files, err = Discover([]string{png, txt}, false, []string{"*.png"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{png}, files)
}

func TestDiscover_Directory(t *testing.T) {
	dir := t.TempDir()
	touch(t,
		filepath.Join(dir, "b.JPG"),
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "readme.md"),
		filepath.Join(dir, "sub", "c.webp"),
	)

	files, err := Discover([]string{dir}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.JPG")}, files)

	files, err = Discover([]string{dir}, true, nil, nil)
	require.NoError(t, err)
	assert.Len(t, files, 3)
	assert.Contains(t, files, filepath.Join(dir, "sub", "c.webp"))
}

func TestDiscover_Patterns(t *testing.T) {
	dir := t.TempDir()
	touch(t,
		filepath.Join(dir, "label_1.png"),
		filepath.Join(dir, "label_2.png"),
		filepath.Join(dir, "thumb_label.png"),
		filepath.Join(dir, "scan.tiff"),
	)

	files, err := Discover([]string{dir}, false, []string{"label_*"}, nil)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, err = Discover([]string{dir}, false, nil, []string{"thumb_*", "*.tiff"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "label_1.png"), filepath.Join(dir, "label_2.png")}, files)
}

func TestDiscover_Deduplicates(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.png")
	touch(t, p)

	files, err := Discover([]string{dir, p}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{p}, files)
}

func TestDiscover_MissingPath(t *testing.T) {
	_, err := Discover([]string{filepath.Join(t.TempDir(), "nope")}, false, nil, nil)
	require.ErrorContains(t, err, "cannot access")
}

func TestShouldIncludeFile(t *testing.T) {
	tests := []struct {
		name             string
		path             string
		include, exclude []string
		want             bool
	}{
		{"no patterns", "/x/a.png", nil, nil, true},
		{"include match", "/x/a.png", []string{"*.png"}, nil, true},
		{"include miss", "/x/a.jpg", []string{"*.png"}, nil, false},
		{"exclude wins", "/x/a.png", []string{"*.png"}, []string{"a.*"}, false},
		{"exclude miss", "/x/b.png", nil, []string{"a.*"}, true},
		{"base name only", "/labels/a.png", []string{"labels*"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldIncludeFile(tt.path, tt.include, tt.exclude))
		})
	}
}
