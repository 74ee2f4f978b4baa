// Package apperr defines the error taxonomy shared by the metadata engine
// and its transports.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNoWorkspace   = errors.New("no workspace contains path")
	ErrNoStylesheets = errors.New("document links no stylesheets")
)

// Error is implemented by every typed error in this package.
type Error interface {
	error
	appError()
}

// IOError reports a failed file system operation on Path.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
func (e *IOError) appError()     {}

// ParseError reports content at Path that could not be decoded.
type ParseError struct {
	Path   string
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parse %s: %s", e.Path, e.Detail)
	}
	return fmt.Sprintf("parse %s: %s: %v", e.Path, e.Detail, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
func (e *ParseError) appError()     {}

// PathResolutionError reports a reference from Document to Target that
// could not be turned into a file system path.
type PathResolutionError struct {
	Document string
	Target   string
	Reason   string
}

func (e *PathResolutionError) Error() string {
	return fmt.Sprintf("resolve %q from %s: %s", e.Target, e.Document, e.Reason)
}

func (e *PathResolutionError) appError() {}

// ClassificationError reports a path that could not be assigned to a workspace.
type ClassificationError struct {
	Path   string
	Reason string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %s: %s", e.Path, e.Reason)
}

func (e *ClassificationError) Unwrap() error { return ErrNoWorkspace }
func (e *ClassificationError) appError()     {}

// IO wraps err as an IOError, returning nil for a nil err.
func IO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}
