package validate

import (
	"regexp"
	"strings"
)

var instagramHandleRe = regexp.MustCompile(`instagram\.com/([A-Za-z0-9_.-]+)`)

// reservedSegments are Instagram URL structural path segments, never handles.
var reservedSegments = map[string]struct{}{
	"p":       {},
	"explore": {},
	"about":   {},
	"legal":   {},
	"reel":    {},
}

// ExtractInstagramHandle pulls the account handle out of an Instagram profile
// URL. Trailing slashes are stripped first; reserved path segments such as
// /p/ or /explore/ are rejected. Returns "" for non-Instagram URLs.
func ExtractInstagramHandle(rawURL string) string {
	u := strings.TrimSuffix(rawURL, "/")
	m := instagramHandleRe.FindStringSubmatch(u)
	if m == nil {
		return ""
	}
	if _, reserved := reservedSegments[m[1]]; reserved {
		return ""
	}
	return m[1]
}
