package apperr

import (
	"errors"
	"io/fs"
	"strings"
	"testing"
)

func TestIOErrorUnwrap(t *testing.T) {
	err := IO("read", "/w/a.css", fs.ErrNotExist)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("IOError should unwrap to cause: %v", err)
	}
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected *IOError, got %T", err)
	}
	if ioErr.Path != "/w/a.css" || ioErr.Op != "read" {
		t.Errorf("unexpected payload: %+v", ioErr)
	}
	if !strings.Contains(err.Error(), "/w/a.css") {
		t.Errorf("message should carry path: %q", err.Error())
	}
}

func TestIONil(t *testing.T) {
	if err := IO("write", "x", nil); err != nil {
		t.Errorf("IO(nil) = %v, want nil", err)
	}
}

func TestClassificationErrorIsNoWorkspace(t *testing.T) {
	err := error(&ClassificationError{Path: "/elsewhere/a.html", Reason: "outside every root"})
	if !errors.Is(err, ErrNoWorkspace) {
		t.Error("ClassificationError should match ErrNoWorkspace")
	}
}

func TestTaxonomyImplementsError(t *testing.T) {
	errs := []error{
		&IOError{Op: "stat", Path: "p", Err: fs.ErrPermission},
		&ParseError{Path: "p", Detail: "bad json"},
		&PathResolutionError{Document: "d", Target: "t", Reason: "r"},
		&ClassificationError{Path: "p", Reason: "r"},
	}
	for _, e := range errs {
		var ae Error
		if !errors.As(e, &ae) {
			t.Errorf("%T does not implement apperr.Error", e)
		}
	}
}
