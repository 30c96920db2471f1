package intent

import (
	"regexp"
	"strings"
)

var (
	offsetPattern   = regexp.MustCompile(`[+-].+`)
	dateTimePattern = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})[T\s](\d{2}:\d{2})`)
	looseDateTime   = regexp.MustCompile(`(\d{4}-\d{2}-\d{2}).*(\d{2}:\d{2})`)
)

// NormalizeDateTime reduces an ISO-like date-time to "YYYY-MM-DD HH:MM".
// A trailing "Z" and any UTC offset after the date are dropped without
// conversion, so the wall-clock time is kept as written. Accepted forms
// include 2025-11-18T12:00, 2025-11-18T12:00:00Z,
// 2025-11-18T12:00:00+02:00 and 2025-11-18 12:00.
func NormalizeDateTime(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	core, _, _ := strings.Cut(raw, "Z")
	if len(core) > 10 {
		if off := offsetPattern.FindStringIndex(core[10:]); off != nil {
			core = core[:10+off[0]]
		}
	}
	if m := dateTimePattern.FindStringSubmatch(core); m != nil {
		return m[1] + " " + m[2], true
	}
	if m := looseDateTime.FindStringSubmatch(raw); m != nil {
		return m[1] + " " + m[2], true
	}
	return "", false
}
