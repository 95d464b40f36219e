package sync

import (
	"regexp"
	"strings"
)

// Route templates arrive in several dialects: plain `{pk}` placeholders,
// typed placeholders like `<int:pk>`, bare `<pk>`, and raw regex fragments
// with named groups `(?P<pk>[0-9]+)`. NormalizePath converts them all to
// the canonical `{name}` form stored in the catalog.
var (
	namedGroupRe   = regexp.MustCompile(`\(\?P<([^>]+)>[^)]*\)`)
	typedParamRe   = regexp.MustCompile(`<(?:[a-zA-Z_][a-zA-Z0-9_]*:)?([a-zA-Z_][a-zA-Z0-9_]*)>`)
	formatSuffixRe = regexp.MustCompile(`\\?\.\(\?P<format>[^)]*\)\??|\(\\?\.[^)]*\)\?`)
	multiSlashRe   = regexp.MustCompile(`/{2,}`)
)

// NormalizePath canonicalizes a route template. The result always has a
// leading slash and no trailing slash except for root. Normalization is
// idempotent: applying it to its own output is a no-op.
func NormalizePath(path string) string {
	// Regex anchors and escaped slashes from raw-pattern routes.
	path = strings.TrimPrefix(path, "^")
	path = strings.TrimSuffix(path, "$")
	path = strings.ReplaceAll(path, `\/`, "/")

	// Optional format-suffix groups, e.g. `(\.json)?`.
	path = formatSuffixRe.ReplaceAllString(path, "")

	// Named regex groups and typed placeholders to `{name}`.
	path = namedGroupRe.ReplaceAllString(path, "{$1}")
	path = typedParamRe.ReplaceAllString(path, "{$1}")

	path = multiSlashRe.ReplaceAllString(path, "/")

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
