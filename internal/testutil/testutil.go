// Package testutil holds helpers shared by the package and integration tests.
package testutil

import "os"

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
