package permission

import (
	"strings"
)

// ParseMask parses a comma-separated capability list such as
// "review.read,review.author". Blank entries are ignored.
func ParseMask(r *Registry, list string) (Mask64, error) {
	var names []string
	for _, part := range strings.Split(list, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return r.MaskOf(names...)
}

// FormatMask renders m as the sorted comma-separated list accepted by
// [ParseMask]. Bits with no registered name are dropped.
func FormatMask(r *Registry, m Mask64) string {
	return strings.Join(r.Names(m), ",")
}
