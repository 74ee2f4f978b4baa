package htmldoc

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/bhc/internal/apperr"
)

// FindAbsolutePath resolves cssPath as referenced from the document at
// documentPath. An absolute cssPath is returned unchanged when it exists.
// A relative one is walked component by component against the document's
// directory: ".." pops, "." is ignored, anything else is appended. Both "/"
// and "\" separate components so paths authored on either platform resolve.
func FindAbsolutePath(documentPath, cssPath string) (string, error) {
	if isAbsPath(cssPath) {
		if _, err := os.Stat(cssPath); err != nil {
			return "", &apperr.PathResolutionError{Document: documentPath, Target: cssPath, Reason: "absolute path does not exist"}
		}
		return cssPath, nil
	}

	prefix, base := splitVolume(documentPath)
	if len(base) == 0 {
		return "", &apperr.PathResolutionError{Document: documentPath, Target: cssPath, Reason: "document has no parent directory"}
	}
	base = base[:len(base)-1]

	var acc []string
	for _, c := range splitComponents(cssPath) {
		switch c {
		case ".":
		case "..":
			switch {
			case len(acc) > 0:
				acc = acc[:len(acc)-1]
			case len(base) > 0:
				base = base[:len(base)-1]
			default:
				return "", &apperr.PathResolutionError{Document: documentPath, Target: cssPath, Reason: "path climbs above the file system root"}
			}
		default:
			acc = append(acc, c)
		}
	}
	if len(acc) == 0 {
		return "", &apperr.PathResolutionError{Document: documentPath, Target: cssPath, Reason: "reference names no file"}
	}
	joined := prefix + strings.Join(append(base, acc...), "/")
	return filepath.FromSlash(joined), nil
}

func splitComponents(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' })
}

// splitVolume separates a leading root ("/" or a drive such as "C:/") from
// the remaining components.
func splitVolume(p string) (string, []string) {
	parts := splitComponents(p)
	switch {
	case isDrivePath(p):
		return parts[0] + "/", parts[1:]
	case strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`):
		return "/", parts
	default:
		return "", parts
	}
}

func isDrivePath(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAbsPath(p string) bool {
	return filepath.IsAbs(p) || strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) || isDrivePath(p)
}

// URIToPath converts a file:// URI from the editor into a file system path.
func URIToPath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", &apperr.PathResolutionError{Document: uri, Target: uri, Reason: err.Error()}
	}
	if u.Scheme != "file" {
		return "", &apperr.PathResolutionError{Document: uri, Target: uri, Reason: "unsupported scheme " + u.Scheme}
	}
	p := u.Path
	if len(p) > 2 && p[0] == '/' && isDrivePath(p[1:]) {
		p = p[1:]
	}
	if p == "" {
		return "", &apperr.PathResolutionError{Document: uri, Target: uri, Reason: "uri has no path"}
	}
	return filepath.FromSlash(p), nil
}

// PathToURI converts an absolute file system path into a file:// URI.
func PathToURI(path string) string {
	p := filepath.ToSlash(path)
	if isDrivePath(p) {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}
