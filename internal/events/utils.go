package events

import (
	"net/url"
	"strings"
)

// NormalizePagePath reduces a tracked path to its path component with a
// leading slash. Query strings and fragments are dropped. Absolute URLs are
// accepted and reduced to their path. It reports false when nothing usable remains.
func NormalizePagePath(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if strings.Contains(raw, "://") {
		parsed, err := url.Parse(raw)
		if err != nil {
			return "", false
		}
		raw = parsed.Path
	}

	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		raw = "/"
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	if len(raw) > MaxPagePathLength {
		raw = raw[:MaxPagePathLength]
	}

	return raw, true
}
