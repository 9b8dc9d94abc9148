package sections

import (
	"regexp"
	"strings"
)

var documentationPathPattern = regexp.MustCompile(`/documentation/([^/]+)/([^/]+)$`)

// structuralTokens are path segments that never name a configuration type.
var structuralTokens = map[string]struct{}{
	"documentation":            {},
	"devicemanagement":         {},
	"doc":                      {},
	"comappledevicemanagement": {},
}

// ExtractConfigType returns the configuration-type name referenced by ref.
//
// Refs of the form ".../documentation/<Parent>/<Segment>" yield Segment with its
// casing preserved. Anything else falls back to the final path segment, unless that
// segment is a structural token. The boolean is false when no name can be derived.
func ExtractConfigType(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimRight(ref, "/")
	if ref == "" {
		return "", false
	}

	if m := documentationPathPattern.FindStringSubmatch(ref); m != nil {
		if seg := strings.TrimSpace(m[2]); NormalizeKey(seg) != "" {
			return seg, true
		}
	}

	segment := ref
	if i := strings.LastIndex(segment, "/"); i >= 0 {
		segment = segment[i+1:]
	}
	if i := strings.LastIndex(segment, ":"); i >= 0 {
		segment = segment[i+1:]
	}
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "", false
	}
	if _, structural := structuralTokens[NormalizeKey(segment)]; structural {
		return "", false
	}
	if NormalizeKey(segment) == "" {
		return "", false
	}
	return segment, true
}
