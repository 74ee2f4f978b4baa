// Package htmldoc finds the stylesheets an HTML document links and
// resolves them to file system paths.
package htmldoc

import (
	"bytes"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/net/html"
)

// ExtractStylesheetLinks returns the href of every <link> that references a
// stylesheet, in document order. A link counts when its rel contains
// "stylesheet" or its href ends in ".css".
func ExtractStylesheetLinks(r io.Reader) []string {
	var out []string
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "link" || !hasAttr {
				continue
			}
			var rel, href string
			for {
				key, val, more := z.TagAttr()
				switch string(key) {
				case "rel":
					rel = string(val)
				case "href":
					href = strings.TrimSpace(string(val))
				}
				if !more {
					break
				}
			}
			if href == "" {
				continue
			}
			if isStylesheetRel(rel) || strings.HasSuffix(strings.ToLower(stripQuery(href)), ".css") {
				out = append(out, href)
			}
		}
	}
}

func isStylesheetRel(rel string) bool {
	for _, f := range strings.Fields(rel) {
		if strings.EqualFold(f, "stylesheet") {
			return true
		}
	}
	return false
}

func stripQuery(href string) string {
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		return href[:i]
	}
	return href
}

// localHref reports the file path part of href, or false for remote URLs.
func localHref(href string) (string, bool) {
	href = stripQuery(href)
	if href == "" || strings.HasPrefix(href, "//") {
		return "", false
	}
	if isDrivePath(href) {
		return href, true
	}
	u, err := url.Parse(href)
	if err != nil {
		return href, true
	}
	if u.Scheme != "" {
		if u.Scheme == "file" {
			return u.Path, u.Path != ""
		}
		return "", false
	}
	return u.Path, u.Path != ""
}

// StylesheetPaths resolves the stylesheets linked from content against the
// document at documentPath. Hrefs rooted at "/" that do not exist as
// absolute paths resolve against root. Remote URLs are skipped. The result is
// deduplicated and keeps document order; unresolvable links are reported in
// the returned error while the rest still resolve.
func StylesheetPaths(documentPath, root string, content []byte) ([]string, error) {
	var (
		out  []string
		errs error
		seen = map[string]struct{}{}
	)
	for _, href := range ExtractStylesheetLinks(bytes.NewReader(content)) {
		p, ok := localHref(href)
		if !ok {
			continue
		}
		abs, err := resolveHref(documentPath, root, p)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	return out, errs
}

func resolveHref(documentPath, root, href string) (string, error) {
	if strings.HasPrefix(href, "/") || strings.HasPrefix(href, `\`) {
		if abs, err := FindAbsolutePath(documentPath, href); err == nil {
			return abs, nil
		}
		if root != "" {
			return filepath.Join(root, filepath.FromSlash(strings.TrimLeft(href, `/\`))), nil
		}
	}
	return FindAbsolutePath(documentPath, href)
}
