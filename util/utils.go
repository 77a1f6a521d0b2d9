package util

import (
	"log"
	"os"
	"path/filepath"
)

// GetAbsolutePath resolves relativePath against the current working directory.
// Absolute paths are returned unchanged.
func GetAbsolutePath(relativePath string) string {
	if filepath.IsAbs(relativePath) {
		return relativePath
	}

	// Get the current working directory
	root, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	return filepath.Join(root, relativePath)
}

func StringPtr(s string) *string {
	return &s
}

func Float64Ptr(f float64) *float64 {
	return &f
}
