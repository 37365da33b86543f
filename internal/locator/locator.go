// Package locator turns the resource locators delivered with an open-file
// signal into local filesystem paths.
//
// Only file URLs naming the local machine resolve. Everything else (web
// URLs, custom schemes, file URLs with a remote host, relative or malformed
// input) is filtered out. Filtering is a policy, not an error.
package locator

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// Resolve converts a file URL into a path for the running platform.
// It reports false when raw does not name a local file.
func Resolve(raw string) (string, bool) {
	return resolve(raw, runtime.GOOS)
}

// Filter resolves every locator and keeps the ones that name local files,
// preserving their relative order. It also reports how many were dropped.
func Filter(locators []string) (paths []string, discarded int) {
	return filter(locators, runtime.GOOS)
}

func filter(locators []string, goos string) ([]string, int) {
	paths := make([]string, 0, len(locators))
	discarded := 0
	for _, raw := range locators {
		p, ok := resolve(raw, goos)
		if !ok {
			discarded++
			continue
		}
		paths = append(paths, p)
	}
	return paths, discarded
}

func resolve(raw, goos string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if !strings.EqualFold(u.Scheme, "file") || u.Opaque != "" {
		return "", false
	}
	if u.Host != "" && !strings.EqualFold(u.Host, "localhost") {
		return "", false
	}
	if u.Path == "" || strings.ContainsRune(u.Path, 0) {
		return "", false
	}
	return osPath(u.Path, goos)
}

// osPath converts a slash-separated URL path into an absolute OS path.
func osPath(p, goos string) (string, bool) {
	if goos != "windows" {
		if !strings.HasPrefix(p, "/") {
			return "", false
		}
		return p, true
	}

	// file:///C:/dir/file.txt has the path "/C:/dir/file.txt".
	p = strings.TrimPrefix(p, "/")
	if !hasDriveLetter(p) {
		return "", false
	}
	if len(p) == 2 {
		p += "/"
	}
	return strings.ReplaceAll(p, "/", `\`), true
}

func hasDriveLetter(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	if !(('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')) {
		return false
	}
	return len(p) == 2 || p[2] == '/'
}

// FromArg converts a command-line argument into a locator. Arguments that
// already look like URLs pass through untouched; anything else is treated as
// a path, made absolute against cwd and encoded as a file URL.
func FromArg(arg, cwd string) string {
	if looksLikeURL(arg) {
		return arg
	}
	p := arg
	if !filepath.IsAbs(p) {
		p = filepath.Join(cwd, p)
	}
	return FromPath(p)
}

// FromPath encodes an absolute path as a file URL.
func FromPath(p string) string {
	slashed := filepath.ToSlash(filepath.Clean(p))
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	u := url.URL{Scheme: "file", Path: slashed}
	return u.String()
}

func looksLikeURL(arg string) bool {
	if strings.Contains(arg, "://") {
		return true
	}
	scheme, _, ok := strings.Cut(arg, ":")
	if !ok {
		return false
	}
	switch strings.ToLower(scheme) {
	case "file", "http", "https", "mailto":
		return true
	}
	return false
}
