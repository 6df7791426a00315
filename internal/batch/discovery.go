package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/MeKo-Tech/labelscan/internal/utils"
)

// Discover expands args into image files. Directories are scanned (and
// descended into when recursive is set); files named explicitly are kept as
// long as they pass the patterns. Without include patterns only supported
// image extensions are picked up from directories. The result is sorted
// per argument and free of duplicates.
func Discover(args []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			if shouldIncludeFile(arg, includePatterns, excludePatterns) {
				add(arg)
			}
			continue
		}
		found, err := discoverInDirectory(arg, recursive, includePatterns, excludePatterns)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}

func discoverInDirectory(dir string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if len(includePatterns) == 0 && !utils.IsSupportedImage(path) {
			return nil
		}
		if shouldIncludeFile(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

// shouldIncludeFile applies exclude patterns first, then include patterns.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}
	if len(includePatterns) == 0 {
		return true
	}
	return matchesAnyPattern(path, includePatterns)
}

// matchesAnyPattern matches the base name of path against shell patterns.
func matchesAnyPattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
