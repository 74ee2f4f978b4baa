// Package storage defines the workspace file-system abstraction.
package storage

import (
	"io/fs"
)

// WalkFunc is called for every regular file found by Walk. path is absolute.
type WalkFunc func(path string, info fs.FileInfo) error

// Provider is the interface for workspace file operations. Paths may be
// absolute (inside Root) or relative to Root.
type Provider interface {
	// Root returns the absolute workspace root.
	Root() string
	// Walk visits every regular file under the root in lexical order,
	// skipping ignored directories.
	Walk(fn WalkFunc) error
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)
}
